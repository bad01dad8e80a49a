package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/caseflow-systems/leadrelay/internal/envelope"
	"github.com/caseflow-systems/leadrelay/internal/mapper"
	"github.com/caseflow-systems/leadrelay/internal/models"
	"github.com/caseflow-systems/leadrelay/internal/outcomes"
)

// scriptedDispatcher returns canned outcomes in call order and records
// the leads it was handed.
type scriptedDispatcher struct {
	mu       sync.Mutex
	leads    []models.NormalizedLead
	script   []models.DispatchOutcome
	fallback models.DispatchOutcome
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, lead models.NormalizedLead) models.DispatchOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leads = append(d.leads, lead)
	if len(d.script) > 0 {
		next := d.script[0]
		d.script = d.script[1:]
		return next
	}
	if d.fallback.Tag == "" {
		return models.DispatchOutcome{Tag: models.OutcomeCreated, RemoteID: "1", Attempts: 1}
	}
	return d.fallback
}

func newTestOrchestrator(d *scriptedDispatcher) *Orchestrator {
	return New(mapper.DefaultPolicy(), d, outcomes.NewJournal(nil, nil), nil)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleDirectLead(t *testing.T) {
	d := &scriptedDispatcher{}
	o := newTestOrchestrator(d)

	body := mustJSON(t, map[string]interface{}{
		"inbox_lead": map[string]interface{}{
			"from_first":    "Ada",
			"from_last":     "Lovelace",
			"from_message":  "please call",
			"from_email":    "ada@example.com",
			"from_phone":    "555-0100",
			"referring_url": "https://example.com",
			"from_source":   "Website",
		},
	})

	results := o.Handle(context.Background(), "web-form", body)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	out := results[0]
	if out.Tag != models.OutcomeCreated {
		t.Fatalf("tag = %s (cause: %s)", out.Tag, out.Cause)
	}
	if out.Shape != models.ShapeDirect {
		t.Errorf("shape = %s, want direct", out.Shape)
	}
	if len(out.Fallbacks) != 0 {
		t.Errorf("fallbacks = %v, want none", out.Fallbacks)
	}
	if out.Latency <= 0 {
		t.Error("latency not annotated")
	}
	if len(d.leads) != 1 || d.leads[0].FromFirst != "Ada" {
		t.Errorf("dispatched leads = %+v", d.leads)
	}
}

func TestHandleTransportWrappedLead(t *testing.T) {
	d := &scriptedDispatcher{}
	o := newTestOrchestrator(d)

	inner := models.RawPayload{
		"first_name": "Grace",
		"email":      "grace@example.com",
	}
	wrapped, err := envelope.Encode(inner, 99)
	if err != nil {
		t.Fatal(err)
	}

	results := o.Handle(context.Background(), "unified", mustJSON(t, wrapped))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Tag != models.OutcomeCreated {
		t.Fatalf("tag = %s (cause: %s)", results[0].Tag, results[0].Cause)
	}
	if results[0].Shape != models.ShapeFlatLegacy {
		t.Errorf("shape = %s, want flat_legacy", results[0].Shape)
	}
	// Missing fields were synthesized, and recorded.
	if len(results[0].Fallbacks) == 0 {
		t.Error("expected applied fallbacks for the sparse payload")
	}
	if d.leads[0].FromLast != "Contact" {
		t.Errorf("fallback value not dispatched: %+v", d.leads[0])
	}
}

func TestHandleBatchIndependence(t *testing.T) {
	d := &scriptedDispatcher{script: []models.DispatchOutcome{
		{Tag: models.OutcomeCreated, RemoteID: "10", Attempts: 1},
		{Tag: models.OutcomeValidationRejected, Attempts: 1},
		{Tag: models.OutcomeCreated, RemoteID: "11", Attempts: 1},
	}}
	o := newTestOrchestrator(d)

	body := mustJSON(t, map[string]interface{}{
		"inbox_leads": []interface{}{
			map[string]interface{}{"first_name": "A"},
			map[string]interface{}{"first_name": "B"},
			map[string]interface{}{"first_name": "C"},
		},
	})

	results := o.Handle(context.Background(), "capture-now", body)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// One failed item does not block its siblings.
	if results[0].Tag != models.OutcomeCreated || results[2].Tag != models.OutcomeCreated {
		t.Errorf("sibling outcomes = %s, %s", results[0].Tag, results[2].Tag)
	}
	if results[1].Tag != models.OutcomeValidationRejected {
		t.Errorf("middle outcome = %s", results[1].Tag)
	}
	for _, r := range results {
		if r.Shape != models.ShapeEnvelopeBatch {
			t.Errorf("shape = %s, want envelope_batch", r.Shape)
		}
	}
	// Input order preserved.
	if d.leads[0].FromFirst != "A" || d.leads[2].FromFirst != "C" {
		t.Errorf("dispatch order = %+v", d.leads)
	}

	summary := models.Summarize(results)
	if summary.TotalLeads != 3 || summary.Successful != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestHandleBatchInvalidItem(t *testing.T) {
	d := &scriptedDispatcher{}
	o := newTestOrchestrator(d)

	body := mustJSON(t, map[string]interface{}{
		"inbox_leads": []interface{}{
			"garbage",
			map[string]interface{}{"first_name": "B"},
		},
	})

	results := o.Handle(context.Background(), "capture-now", body)
	if len(results) != 2 {
		t.Fatalf("results = %d, want one outcome per slot", len(results))
	}
	if results[0].Tag != models.OutcomeInvalid {
		t.Errorf("invalid slot tag = %s", results[0].Tag)
	}
	if results[1].Tag != models.OutcomeCreated {
		t.Errorf("sibling tag = %s", results[1].Tag)
	}
	if len(d.leads) != 1 {
		t.Errorf("dispatched = %d leads, want 1", len(d.leads))
	}
}

func TestHandleMalformedBody(t *testing.T) {
	o := newTestOrchestrator(&scriptedDispatcher{})

	results := o.Handle(context.Background(), "unified", []byte("not json at all"))
	if len(results) != 1 || results[0].Tag != models.OutcomeDecodeError {
		t.Fatalf("results = %+v", results)
	}
}

func TestHandleBadTransportEnvelope(t *testing.T) {
	o := newTestOrchestrator(&scriptedDispatcher{})

	results := o.Handle(context.Background(), "unified", []byte(`{"message":"not-valid-base64!!"}`))
	if len(results) != 1 || results[0].Tag != models.OutcomeDecodeError {
		t.Fatalf("results = %+v", results)
	}
}

func TestHandleUnknownShape(t *testing.T) {
	d := &scriptedDispatcher{}
	o := newTestOrchestrator(d)

	results := o.Handle(context.Background(), "unified", []byte(`{"foo":"bar"}`))
	if len(results) != 1 || results[0].Tag != models.OutcomeUnknownShape {
		t.Fatalf("results = %+v", results)
	}
	if len(d.leads) != 0 {
		t.Error("unknown shape must not reach dispatch")
	}
}

func TestHandleFailsClosedOnPolicyHole(t *testing.T) {
	policy := mapper.DefaultPolicy()
	policy["email"] = ""
	d := &scriptedDispatcher{}
	o := New(policy, d, outcomes.NewJournal(nil, nil), nil)

	results := o.Handle(context.Background(), "legacy", []byte(`{"first_name":"Ada"}`))
	if len(results) != 1 || results[0].Tag != models.OutcomeInvalid {
		t.Fatalf("results = %+v", results)
	}
	if _, ok := results[0].FieldErrors["email"]; !ok {
		t.Errorf("field errors = %v, want email named", results[0].FieldErrors)
	}
	if len(d.leads) != 0 {
		t.Error("incomplete lead must not be dispatched")
	}
}

func TestValidateDryRun(t *testing.T) {
	o := newTestOrchestrator(&scriptedDispatcher{})

	shape, applied, err := o.Validate([]byte(`{"first_name":"Ada","message":"hi"}`))
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if shape != models.ShapeFlatLegacy {
		t.Errorf("shape = %s", shape)
	}
	if len(applied) == 0 {
		t.Error("expected fallbacks reported")
	}

	if _, _, err := o.Validate([]byte(`{"foo":1}`)); err == nil {
		t.Error("unknown shape should error in dry run")
	}
}
