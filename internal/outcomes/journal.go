// Package outcomes publishes one journal record per processed lead to
// the message bus. The journal is an observability sink: publishing is
// fire-and-forget and never blocks or fails the pipeline.
package outcomes

import (
	"context"
	"time"

	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/common/messaging"
	"github.com/caseflow-systems/leadrelay/common/middleware"
	"github.com/caseflow-systems/leadrelay/internal/models"
)

// Record is the journal entry for one logical lead.
type Record struct {
	RequestID  string              `json:"request_id,omitempty"`
	Endpoint   string              `json:"endpoint,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	Tag        models.OutcomeTag   `json:"tag"`
	Shape      string              `json:"shape"`
	RemoteID   string              `json:"remote_id,omitempty"`
	Attempts   int                 `json:"attempts,omitempty"`
	Fallbacks  []string            `json:"fallbacks,omitempty"`
	FieldError map[string][]string `json:"field_errors,omitempty"`
	Cause      string              `json:"cause,omitempty"`
	LatencyMS  int64               `json:"latency_ms"`
}

// Journal writes outcome records to a publisher.
type Journal struct {
	pub    messaging.Publisher
	logger *logging.Logger
}

// NewJournal wraps a publisher. A nil publisher yields a no-op journal,
// used when the bus is disabled.
func NewJournal(pub messaging.Publisher, logger *logging.Logger) *Journal {
	if logger == nil {
		logger = logging.Default()
	}
	return &Journal{pub: pub, logger: logger}
}

// Write publishes the journal record for one outcome. Failures are
// logged and swallowed; the lead's fate was already decided.
func (j *Journal) Write(ctx context.Context, endpoint string, outcome models.DispatchOutcome) {
	if j == nil || j.pub == nil {
		return
	}

	record := Record{
		RequestID:  middleware.GetRequestID(ctx),
		Endpoint:   endpoint,
		Timestamp:  time.Now().UTC(),
		Tag:        outcome.Tag,
		Shape:      outcome.Shape.String(),
		RemoteID:   outcome.RemoteID,
		Attempts:   outcome.Attempts,
		Fallbacks:  outcome.Fallbacks,
		FieldError: outcome.FieldErrors,
		Cause:      outcome.Cause,
		LatencyMS:  outcome.Latency.Milliseconds(),
	}

	subject := messaging.OutcomeSubject(string(outcome.Tag))
	if err := j.pub.PublishJSON(ctx, subject, record); err != nil {
		j.logger.WarnContext(ctx, "outcome journal publish failed",
			logging.Outcome(string(outcome.Tag)), logging.Error(err))
	}
}

// WriteAll journals a batch of outcomes under one endpoint.
func (j *Journal) WriteAll(ctx context.Context, endpoint string, outcomes []models.DispatchOutcome) {
	for _, outcome := range outcomes {
		j.Write(ctx, endpoint, outcome)
	}
}

// Close releases the underlying publisher.
func (j *Journal) Close() error {
	if j == nil || j.pub == nil {
		return nil
	}
	return j.pub.Close()
}
