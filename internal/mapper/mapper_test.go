package mapper

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/caseflow-systems/leadrelay/internal/models"
)

func TestDefaultPolicyIsTotal(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy failed audit: %v", err)
	}
}

func TestPolicyValidateReportsHoles(t *testing.T) {
	policy := DefaultPolicy()
	policy[models.FieldEmail] = ""
	delete(policy, models.FieldPhoneNumber)

	err := policy.Validate()
	if err == nil {
		t.Fatal("expected audit failure")
	}
	for _, name := range []string{"email", "phone_number"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("audit error missing %q: %v", name, err)
		}
	}
}

func TestMapDirect(t *testing.T) {
	payload := models.RawPayload{
		"inbox_lead": map[string]interface{}{
			"from_first":    "Ada",
			"from_last":     "Lovelace",
			"from_message":  "please call",
			"from_email":    "ada@example.com",
			"from_phone":    "555-0100",
			"referring_url": "https://example.com/form",
			"from_source":   "Website",
		},
	}

	lead, applied, err := Map(models.ShapeDirect, payload, DefaultPolicy())
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("no fallbacks expected, got %v", applied)
	}
	want := models.NormalizedLead{
		FromFirst:    "Ada",
		FromLast:     "Lovelace",
		FromMessage:  "please call",
		FromEmail:    "ada@example.com",
		FromPhone:    "555-0100",
		ReferringURL: "https://example.com/form",
		FromSource:   "Website",
	}
	if lead != want {
		t.Errorf("lead = %+v, want %+v", lead, want)
	}
}

func TestMapEnvelopeSingleWithFallbacks(t *testing.T) {
	payload := models.RawPayload{
		"envelope": map[string]interface{}{
			"first_name": "Grace",
			"email":      "grace@example.com",
		},
	}

	lead, applied, err := Map(models.ShapeEnvelopeSingle, payload, DefaultPolicy())
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	wantApplied := []string{"last_name", "message", "phone_number", "referring_url", "source"}
	if !reflect.DeepEqual(applied, wantApplied) {
		t.Errorf("applied = %v, want %v", applied, wantApplied)
	}
	if lead.FromFirst != "Grace" || lead.FromEmail != "grace@example.com" {
		t.Errorf("source values not preserved: %+v", lead)
	}
	if lead.FromLast != "Contact" || lead.FromMessage != "Voice agent intake submission" {
		t.Errorf("fallback values not applied: %+v", lead)
	}
	if lead.ReferringURL != "https://intake-system.local" || lead.FromSource != "Voice Agent Bot" {
		t.Errorf("fallback values not applied: %+v", lead)
	}
}

func TestMapFlatLegacyCoercion(t *testing.T) {
	payload := models.RawPayload{
		"first_name":   "  Joan  ",
		"last_name":    "Clarke",
		"message":      false,
		"phone_number": float64(5550100),
		"email":        "joan@example.com",
	}

	lead, applied, err := Map(models.ShapeFlatLegacy, payload, DefaultPolicy())
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	if lead.FromFirst != "Joan" {
		t.Errorf("expected whitespace trimmed, got %q", lead.FromFirst)
	}
	if lead.FromPhone != "5550100" {
		t.Errorf("numeric phone not coerced, got %q", lead.FromPhone)
	}
	if lead.FromMessage != "Voice agent intake submission" {
		t.Errorf("false message marker should fall back, got %q", lead.FromMessage)
	}
	if !containsString(applied, "message") {
		t.Errorf("message fallback not recorded: %v", applied)
	}
	if containsString(applied, "first_name") {
		t.Errorf("first_name was present, fallback recorded anyway: %v", applied)
	}
}

func TestMapEmptyPayloadAllFallbacks(t *testing.T) {
	lead, applied, err := Map(models.ShapeFlatLegacy, models.RawPayload{}, DefaultPolicy())
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	if len(applied) != len(models.LeadFields) {
		t.Errorf("expected all %d fields substituted, got %v", len(models.LeadFields), applied)
	}
	if empty := lead.EmptyFields(); len(empty) != 0 {
		t.Errorf("lead still has empty fields: %v", empty)
	}
}

func TestMapFailsClosedOnPolicyHole(t *testing.T) {
	policy := DefaultPolicy()
	policy[models.FieldEmail] = ""

	_, _, err := Map(models.ShapeFlatLegacy, models.RawPayload{"first_name": "Ada"}, policy)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.Fields, []string{"email"}) {
		t.Errorf("unsatisfiable fields = %v, want [email]", verr.Fields)
	}
}

func TestMapUnknownShapeYieldsFallbackOnly(t *testing.T) {
	// Unknown shapes are short-circuited upstream, but Map stays total.
	lead, _, err := Map(models.ShapeUnknown, models.RawPayload{"foo": "bar"}, DefaultPolicy())
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	if lead.FromFirst != "Unknown" {
		t.Errorf("expected fallback lead, got %+v", lead)
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
