package models

import "encoding/json"

// RawPayload is the untyped JSON object as received at the intake
// boundary. It is ephemeral: the pipeline converts it into a typed shape
// immediately after classification and never passes it further down.
type RawPayload map[string]interface{}

// PayloadShape identifies which of the known producer formats a raw
// payload matches. Assignment is total: anything unrecognized is
// ShapeUnknown, never an error.
type PayloadShape int

const (
	ShapeUnknown PayloadShape = iota
	ShapeDirect
	ShapeEnvelopeSingle
	ShapeEnvelopeBatch
	ShapeFlatLegacy
)

// String returns the wire/log representation of the shape.
func (s PayloadShape) String() string {
	switch s {
	case ShapeDirect:
		return "direct"
	case ShapeEnvelopeSingle:
		return "envelope_single"
	case ShapeEnvelopeBatch:
		return "envelope_batch"
	case ShapeFlatLegacy:
		return "flat_legacy"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the string form, so outcome payloads and journal
// records carry "direct" rather than an enum ordinal.
func (s PayloadShape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PayloadShape) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "direct":
		*s = ShapeDirect
	case "envelope_single":
		*s = ShapeEnvelopeSingle
	case "envelope_batch":
		*s = ShapeEnvelopeBatch
	case "flat_legacy":
		*s = ShapeFlatLegacy
	default:
		*s = ShapeUnknown
	}
	return nil
}

// NormalizedLead is the downstream inbox schema. Every field must be
// non-empty before the lead is handed to the dispatch client; the mapper's
// fallback policy guarantees that.
type NormalizedLead struct {
	FromFirst    string `json:"from_first"`
	FromLast     string `json:"from_last"`
	FromMessage  string `json:"from_message"`
	FromEmail    string `json:"from_email"`
	FromPhone    string `json:"from_phone"`
	ReferringURL string `json:"referring_url"`
	FromSource   string `json:"from_source"`
}

// Field names used by the fallback policy, key-mapping tables, and
// validation reporting. These are the seven semantic fields, named the
// way producers name them.
const (
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldMessage      = "message"
	FieldEmail        = "email"
	FieldPhoneNumber  = "phone_number"
	FieldReferringURL = "referring_url"
	FieldSource       = "source"
)

// LeadFields lists the seven semantic fields in canonical order.
var LeadFields = []string{
	FieldFirstName,
	FieldLastName,
	FieldMessage,
	FieldEmail,
	FieldPhoneNumber,
	FieldReferringURL,
	FieldSource,
}

// FieldValue returns the value of one of the seven semantic fields.
// Unknown names return the empty string.
func (l NormalizedLead) FieldValue(name string) string {
	switch name {
	case FieldFirstName:
		return l.FromFirst
	case FieldLastName:
		return l.FromLast
	case FieldMessage:
		return l.FromMessage
	case FieldEmail:
		return l.FromEmail
	case FieldPhoneNumber:
		return l.FromPhone
	case FieldReferringURL:
		return l.ReferringURL
	case FieldSource:
		return l.FromSource
	default:
		return ""
	}
}

// EmptyFields returns the names of fields that are still empty, in
// canonical field order. Used by the mapper's fail-closed audit after
// fallback substitution.
func (l NormalizedLead) EmptyFields() []string {
	var empty []string
	for _, name := range LeadFields {
		if l.FieldValue(name) == "" {
			empty = append(empty, name)
		}
	}
	return empty
}

// InboxSubmission is the exact request body sent to the downstream lead
// inbox API. The token comes from configuration, never from the caller.
type InboxSubmission struct {
	InboxLead      NormalizedLead `json:"inbox_lead"`
	InboxLeadToken string         `json:"inbox_lead_token"`
}
