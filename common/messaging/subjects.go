// Package messaging defines the relay's message subjects and the
// transport-agnostic publisher contract.
package messaging

import "context"

// Subject hierarchy for outcome journal records. One record is published
// per dispatched lead, routed by its outcome tag so consumers can
// subscribe to failures only (leadrelay.outcomes.transient_failure) or to
// everything (leadrelay.outcomes.>).
const (
	SubjectRoot     = "leadrelay"
	SubjectOutcomes = SubjectRoot + ".outcomes"
)

// OutcomeSubject returns the subject for an outcome tag.
func OutcomeSubject(tag string) string {
	return SubjectOutcomes + "." + tag
}

// Publisher publishes JSON-encoded messages to a subject. Implementations
// must be safe for concurrent use.
type Publisher interface {
	PublishJSON(ctx context.Context, subject string, data interface{}) error
	Close() error
}
