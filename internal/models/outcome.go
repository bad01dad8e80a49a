package models

import "time"

// OutcomeTag enumerates the terminal states of one logical lead.
type OutcomeTag string

const (
	// Terminal states produced by the dispatch client.
	OutcomeCreated            OutcomeTag = "created"
	OutcomeValidationRejected OutcomeTag = "validation_rejected"
	OutcomeAuthRejected       OutcomeTag = "auth_rejected"
	OutcomeRateLimited        OutcomeTag = "rate_limited"
	OutcomeTransientFailure   OutcomeTag = "transient_failure"
	OutcomeFatalFailure       OutcomeTag = "fatal_failure"

	// Terminal states resolved locally by the orchestrator, without
	// network access.
	OutcomeDecodeError  OutcomeTag = "decode_error"
	OutcomeUnknownShape OutcomeTag = "unknown_shape"
	OutcomeInvalid      OutcomeTag = "invalid"
)

// DispatchOutcome is the single result object produced per logical lead.
// Exactly one tag applies; the payload fields that accompany it depend on
// the tag.
type DispatchOutcome struct {
	Tag OutcomeTag `json:"tag"`

	// RemoteID is the downstream lead ID (Tag == OutcomeCreated). It may
	// be empty when the downstream response carried no parsable ID; that
	// is logged but not fatal.
	RemoteID string `json:"remote_id,omitempty"`

	// FieldErrors carries the structured downstream validation errors
	// (Tag == OutcomeValidationRejected), or the locally unsatisfiable
	// field names (Tag == OutcomeInvalid).
	FieldErrors map[string][]string `json:"field_errors,omitempty"`

	// RetryAfter is the server-requested wait (Tag == OutcomeRateLimited).
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// Attempts is the number of outbound calls actually issued.
	Attempts int `json:"attempts,omitempty"`

	// Cause is a human-readable failure description for the failure tags.
	Cause string `json:"cause,omitempty"`

	// Shape and Fallbacks are annotated by the orchestrator for
	// observability: which format the payload matched and which fields
	// were synthesized by the fallback policy.
	Shape     PayloadShape `json:"shape"`
	Fallbacks []string     `json:"fallbacks,omitempty"`

	// Latency covers the full pipeline run for this lead.
	Latency time.Duration `json:"latency,omitempty"`
}

// Delivered reports whether the lead reached the downstream inbox.
func (o DispatchOutcome) Delivered() bool {
	return o.Tag == OutcomeCreated
}

// Retriable reports whether the caller may usefully resubmit the same
// payload later. Malformed input and downstream rejections are not
// retriable; transient and rate-limit failures are.
func (o DispatchOutcome) Retriable() bool {
	switch o.Tag {
	case OutcomeTransientFailure, OutcomeRateLimited:
		return true
	default:
		return false
	}
}

// BatchResult summarizes the independent outcomes of one EnvelopeBatch
// submission.
type BatchResult struct {
	TotalLeads int               `json:"total_leads"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []DispatchOutcome `json:"results"`
}

// Summarize builds a BatchResult from per-lead outcomes.
func Summarize(outcomes []DispatchOutcome) BatchResult {
	result := BatchResult{
		TotalLeads: len(outcomes),
		Results:    outcomes,
	}
	for _, o := range outcomes {
		if o.Delivered() {
			result.Successful++
		} else {
			result.Failed++
		}
	}
	return result
}
