// Package mapper turns a classified payload into the downstream lead
// schema. Missing or empty fields are filled from a FallbackPolicy and
// every substitution is recorded, so a lead is delivered best-effort
// rather than dropped, with the synthesized fields visible downstream.
package mapper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/caseflow-systems/leadrelay/internal/models"
)

// FallbackPolicy maps each logical field name to the default substituted
// when the source value is absent or empty. Loaded once at process start
// and immutable afterwards.
type FallbackPolicy map[string]string

// DefaultPolicy returns the stock policy. First/last/message/url/source
// follow the values the voice agent integration has always used; email
// and phone get placeholders so the policy stays total.
func DefaultPolicy() FallbackPolicy {
	return FallbackPolicy{
		models.FieldFirstName:    "Unknown",
		models.FieldLastName:     "Contact",
		models.FieldMessage:      "Voice agent intake submission",
		models.FieldEmail:        "unknown@intake-system.local",
		models.FieldPhoneNumber:  "unknown",
		models.FieldReferringURL: "https://intake-system.local",
		models.FieldSource:       "Voice Agent Bot",
	}
}

// Validate checks that the policy covers every logical field with a
// non-empty default. A policy that fails this audit can produce leads
// that fail closed at map time, so callers should refuse to start.
func (p FallbackPolicy) Validate() error {
	var missing []string
	for _, name := range models.LeadFields {
		if strings.TrimSpace(p[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("fallback policy missing defaults for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidationError reports fields that stayed empty even after fallback
// substitution. It means the policy itself has a hole; the lead is not
// dispatched.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lead unsatisfiable after fallbacks, empty fields: %s", strings.Join(e.Fields, ", "))
}

// directKeys maps each logical field to its key inside an already
// downstream-shaped "inbox_lead" object.
var directKeys = map[string]string{
	models.FieldFirstName:    "from_first",
	models.FieldLastName:     "from_last",
	models.FieldMessage:      "from_message",
	models.FieldEmail:        "from_email",
	models.FieldPhoneNumber:  "from_phone",
	models.FieldReferringURL: "referring_url",
	models.FieldSource:       "from_source",
}

// Map extracts the seven logical fields from payload according to its
// shape, substitutes policy defaults for anything absent or empty, and
// returns the normalized lead plus the sorted list of fields that were
// synthesized. It fails closed with a *ValidationError when a field is
// empty even after substitution.
func Map(shape models.PayloadShape, payload models.RawPayload, policy FallbackPolicy) (models.NormalizedLead, []string, error) {
	fields := extractFields(shape, payload)

	var applied []string
	for _, name := range models.LeadFields {
		if fields[name] != "" {
			continue
		}
		if def := policy[name]; def != "" {
			fields[name] = def
			applied = append(applied, name)
		}
	}
	sort.Strings(applied)

	lead := models.NormalizedLead{
		FromFirst:    fields[models.FieldFirstName],
		FromLast:     fields[models.FieldLastName],
		FromMessage:  fields[models.FieldMessage],
		FromEmail:    fields[models.FieldEmail],
		FromPhone:    fields[models.FieldPhoneNumber],
		ReferringURL: fields[models.FieldReferringURL],
		FromSource:   fields[models.FieldSource],
	}

	if empty := lead.EmptyFields(); len(empty) > 0 {
		return models.NormalizedLead{}, nil, &ValidationError{Fields: empty}
	}
	return lead, applied, nil
}

func extractFields(shape models.PayloadShape, payload models.RawPayload) map[string]string {
	fields := make(map[string]string, len(models.LeadFields))
	if payload == nil {
		return fields
	}

	switch shape {
	case models.ShapeDirect:
		inner, _ := payload["inbox_lead"].(map[string]interface{})
		for name, key := range directKeys {
			fields[name] = coerceString(inner[key])
		}
	case models.ShapeEnvelopeSingle:
		inner, _ := payload["envelope"].(map[string]interface{})
		for _, name := range models.LeadFields {
			fields[name] = coerceString(inner[name])
		}
	case models.ShapeFlatLegacy:
		for _, name := range models.LeadFields {
			fields[name] = coerceString(payload[name])
		}
	}
	return fields
}

// coerceString normalizes the loosely typed values producers send.
// Numbers show up for phone fields, and the voice agent sends
// "message": false when no transcript was captured.
func coerceString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return ""
	default:
		return ""
	}
}
