// Package pipeline orchestrates one inbound submission end to end:
// decode, classify, map, dispatch. Control flow is strictly top-down;
// every component below the dispatch client is pure, and exactly one
// outcome is produced per logical lead, batch or not.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/internal/classifier"
	"github.com/caseflow-systems/leadrelay/internal/envelope"
	"github.com/caseflow-systems/leadrelay/internal/mapper"
	"github.com/caseflow-systems/leadrelay/internal/metrics"
	"github.com/caseflow-systems/leadrelay/internal/models"
	"github.com/caseflow-systems/leadrelay/internal/outcomes"
)

// Dispatcher delivers one normalized lead downstream.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead models.NormalizedLead) models.DispatchOutcome
}

// Orchestrator runs the intake pipeline. Stateless apart from the
// injected collaborators; safe for concurrent use.
type Orchestrator struct {
	policy     mapper.FallbackPolicy
	dispatcher Dispatcher
	journal    *outcomes.Journal
	logger     *logging.Logger
}

// New builds an orchestrator. The fallback policy must have passed its
// totality audit before it gets here.
func New(policy mapper.FallbackPolicy, dispatcher Dispatcher, journal *outcomes.Journal, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		policy:     policy,
		dispatcher: dispatcher,
		journal:    journal,
		logger:     logger,
	}
}

// Handle processes one raw request body and returns one outcome per
// logical lead it contained. Malformed bodies and unknown shapes yield a
// single local outcome; batches yield one outcome per item, processed in
// input order but independently.
func (o *Orchestrator) Handle(ctx context.Context, endpoint string, body []byte) []models.DispatchOutcome {
	start := time.Now()
	metrics.PayloadBytesTotal.Add(float64(len(body)))

	results := o.run(ctx, body)

	for i := range results {
		if results[i].Latency == 0 {
			results[i].Latency = time.Since(start)
		}
		o.observe(ctx, endpoint, results[i])
	}
	return results
}

func (o *Orchestrator) run(ctx context.Context, body []byte) []models.DispatchOutcome {
	var raw models.RawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		metrics.DecodeErrors.Inc()
		return []models.DispatchOutcome{{
			Tag:   models.OutcomeDecodeError,
			Shape: models.ShapeUnknown,
			Cause: fmt.Sprintf("body is not a JSON object: %v", err),
		}}
	}

	payload, wrapped, err := envelope.Decode(raw)
	if err != nil {
		metrics.DecodeErrors.Inc()
		return []models.DispatchOutcome{{
			Tag:   models.OutcomeDecodeError,
			Shape: models.ShapeUnknown,
			Cause: err.Error(),
		}}
	}
	if wrapped {
		o.logger.DebugContext(ctx, "transport envelope unwrapped")
	}

	shape := classifier.Classify(payload)
	switch shape {
	case models.ShapeUnknown:
		return []models.DispatchOutcome{{
			Tag:   models.OutcomeUnknownShape,
			Shape: models.ShapeUnknown,
			Cause: "payload matches no known lead format",
		}}

	case models.ShapeEnvelopeBatch:
		items := classifier.ExpandBatch(payload)
		results := make([]models.DispatchOutcome, 0, len(items))
		for i, item := range items {
			if item == nil {
				results = append(results, models.DispatchOutcome{
					Tag:   models.OutcomeInvalid,
					Shape: shape,
					Cause: fmt.Sprintf("batch item %d is not an object", i),
				})
				continue
			}
			// Expanded items carry producer-native fields at the top
			// level, the flat key table applies.
			results = append(results, o.processOne(ctx, models.ShapeFlatLegacy, shape, item))
		}
		return results

	default:
		return []models.DispatchOutcome{o.processOne(ctx, shape, shape, payload)}
	}
}

// processOne maps and dispatches a single lead. keyShape selects the
// mapper's key table; reportShape is what the outcome is annotated with
// (they differ for expanded batch items).
func (o *Orchestrator) processOne(ctx context.Context, keyShape, reportShape models.PayloadShape, payload models.RawPayload) models.DispatchOutcome {
	lead, applied, err := mapper.Map(keyShape, payload, o.policy)
	if err != nil {
		fieldErrors := map[string][]string{}
		var verr *mapper.ValidationError
		if errors.As(err, &verr) {
			for _, name := range verr.Fields {
				fieldErrors[name] = []string{"empty after fallback substitution"}
			}
		}
		return models.DispatchOutcome{
			Tag:         models.OutcomeInvalid,
			Shape:       reportShape,
			FieldErrors: fieldErrors,
			Cause:       err.Error(),
		}
	}

	for _, field := range applied {
		metrics.FallbacksApplied.WithLabelValues(field).Inc()
	}

	outcome := o.dispatcher.Dispatch(ctx, lead)
	outcome.Shape = reportShape
	outcome.Fallbacks = applied
	return outcome
}

func (o *Orchestrator) observe(ctx context.Context, endpoint string, outcome models.DispatchOutcome) {
	metrics.LeadsTotal.WithLabelValues(endpoint, outcome.Shape.String(), string(outcome.Tag)).Inc()
	metrics.PipelineDuration.WithLabelValues(endpoint).Observe(outcome.Latency.Seconds())
	if outcome.Attempts > 0 {
		metrics.DispatchAttempts.Observe(float64(outcome.Attempts))
	}

	o.logger.InfoContext(ctx, "lead processed",
		logging.Endpoint(endpoint),
		logging.Shape(outcome.Shape.String()),
		logging.Outcome(string(outcome.Tag)),
		logging.Attempts(outcome.Attempts),
		logging.RemoteID(outcome.RemoteID),
		logging.Fallbacks(outcome.Fallbacks),
		logging.Duration(outcome.Latency.Milliseconds()),
	)
	o.journal.Write(ctx, endpoint, outcome)
}

// Validate runs the pipeline up to (but not including) dispatch. Used by
// the dry-run endpoint to let producers test their payloads without
// creating leads.
func (o *Orchestrator) Validate(body []byte) (models.PayloadShape, []string, error) {
	var raw models.RawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.ShapeUnknown, nil, fmt.Errorf("body is not a JSON object: %w", err)
	}
	payload, _, err := envelope.Decode(raw)
	if err != nil {
		return models.ShapeUnknown, nil, err
	}
	shape := classifier.Classify(payload)
	if shape == models.ShapeUnknown {
		return shape, nil, fmt.Errorf("payload matches no known lead format")
	}
	keyShape := shape
	if shape == models.ShapeEnvelopeBatch {
		items := classifier.ExpandBatch(payload)
		if len(items) == 0 || items[0] == nil {
			return shape, nil, fmt.Errorf("batch contains no valid items")
		}
		payload = items[0]
		keyShape = models.ShapeFlatLegacy
	}
	_, applied, err := mapper.Map(keyShape, payload, o.policy)
	return shape, applied, err
}
