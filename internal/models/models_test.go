package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPayloadShape_String(t *testing.T) {
	tests := []struct {
		shape PayloadShape
		want  string
	}{
		{ShapeDirect, "direct"},
		{ShapeEnvelopeSingle, "envelope_single"},
		{ShapeEnvelopeBatch, "envelope_batch"},
		{ShapeFlatLegacy, "flat_legacy"},
		{ShapeUnknown, "unknown"},
		{PayloadShape(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.shape.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPayloadShape_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(ShapeEnvelopeBatch)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"envelope_batch"` {
		t.Errorf("Marshal = %s", data)
	}

	var shape PayloadShape
	if err := json.Unmarshal(data, &shape); err != nil {
		t.Fatal(err)
	}
	if shape != ShapeEnvelopeBatch {
		t.Errorf("Unmarshal = %v, want ShapeEnvelopeBatch", shape)
	}

	if err := json.Unmarshal([]byte(`"whatever"`), &shape); err != nil {
		t.Fatal(err)
	}
	if shape != ShapeUnknown {
		t.Errorf("unknown name = %v, want ShapeUnknown", shape)
	}
}

func TestNormalizedLead_EmptyFields(t *testing.T) {
	full := NormalizedLead{
		FromFirst:    "Jane",
		FromLast:     "Doe",
		FromMessage:  "need help",
		FromEmail:    "jane@example.com",
		FromPhone:    "555",
		ReferringURL: "https://example.com",
		FromSource:   "Web",
	}
	if empty := full.EmptyFields(); empty != nil {
		t.Errorf("EmptyFields() = %v, want nil", empty)
	}

	partial := NormalizedLead{FromFirst: "Jane", FromMessage: "hi"}
	want := []string{FieldLastName, FieldEmail, FieldPhoneNumber, FieldReferringURL, FieldSource}
	if got := partial.EmptyFields(); !reflect.DeepEqual(got, want) {
		t.Errorf("EmptyFields() = %v, want %v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []DispatchOutcome{
		{Tag: OutcomeCreated, RemoteID: "1"},
		{Tag: OutcomeValidationRejected},
		{Tag: OutcomeCreated, RemoteID: "2"},
	}

	result := Summarize(outcomes)
	if result.TotalLeads != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Errorf("Summarize() = %+v", result)
	}
}

func TestDispatchOutcome_Retriable(t *testing.T) {
	if !(DispatchOutcome{Tag: OutcomeTransientFailure}).Retriable() {
		t.Error("transient failures should be retriable")
	}
	if !(DispatchOutcome{Tag: OutcomeRateLimited}).Retriable() {
		t.Error("rate limited should be retriable")
	}
	for _, tag := range []OutcomeTag{OutcomeCreated, OutcomeAuthRejected, OutcomeValidationRejected, OutcomeDecodeError, OutcomeUnknownShape, OutcomeFatalFailure} {
		if (DispatchOutcome{Tag: tag}).Retriable() {
			t.Errorf("%s should not be retriable", tag)
		}
	}
}
