// Package classifier assigns exactly one PayloadShape to each decoded
// payload. Classification is a pure, total function: the same payload
// always yields the same shape, and anything unrecognized is ShapeUnknown.
package classifier

import (
	"github.com/caseflow-systems/leadrelay/internal/models"
)

// Top-level marker keys, matching the producers' wire formats.
const (
	keyInboxLead  = "inbox_lead"
	keyInboxLeads = "inbox_leads"
	keyEnvelope   = "envelope"
)

// nativeFields are the producer-native field names whose presence at the
// top level marks a flat legacy payload.
var nativeFields = []string{
	models.FieldFirstName,
	models.FieldLastName,
	models.FieldEmail,
	models.FieldPhoneNumber,
	models.FieldMessage,
	models.FieldSource,
	models.FieldReferringURL,
}

// Classify determines the shape of a decoded payload. Decision order is a
// strict precedence, first match wins:
//
//  1. "inbox_leads" holding a sequence            -> EnvelopeBatch
//  2. "inbox_lead" holding a mapping              -> Direct
//  3. "envelope" holding a mapping with native
//     field names                                 -> EnvelopeSingle
//  4. producer-native field names at the top
//     level                                       -> FlatLegacy
//  5. none of the above                           -> Unknown
func Classify(payload models.RawPayload) models.PayloadShape {
	if payload == nil {
		return models.ShapeUnknown
	}

	if _, ok := payload[keyInboxLeads].([]interface{}); ok {
		return models.ShapeEnvelopeBatch
	}

	if _, ok := payload[keyInboxLead].(map[string]interface{}); ok {
		return models.ShapeDirect
	}

	if wrapped, ok := payload[keyEnvelope].(map[string]interface{}); ok {
		if hasNativeField(wrapped) {
			return models.ShapeEnvelopeSingle
		}
	}

	if hasNativeField(payload) {
		return models.ShapeFlatLegacy
	}

	return models.ShapeUnknown
}

// ExpandBatch flattens an EnvelopeBatch into its independent items. Each
// item keeps its own fields; values present at the batch root (a voice
// agent sometimes reports contact details once for the whole envelope)
// fill in fields the item itself lacks. Non-mapping entries are kept as
// nil so the caller produces one outcome per slot, preserving the
// one-outcome-per-logical-lead guarantee.
func ExpandBatch(payload models.RawPayload) []models.RawPayload {
	entries, ok := payload[keyInboxLeads].([]interface{})
	if !ok {
		return nil
	}

	items := make([]models.RawPayload, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			items = append(items, nil)
			continue
		}

		item := make(models.RawPayload, len(fields))
		for k, v := range fields {
			item[k] = v
		}
		for _, name := range nativeFields {
			if isAbsent(item[name]) {
				if root, ok := payload[name]; ok && !isAbsent(root) {
					item[name] = root
				}
			}
		}
		items = append(items, item)
	}
	return items
}

func hasNativeField(fields map[string]interface{}) bool {
	for _, name := range nativeFields {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

// isAbsent mirrors the mapper's notion of an empty value: nil, empty
// string, or the voice agent's "message": false marker.
func isAbsent(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case bool:
		return !value
	default:
		return false
	}
}
