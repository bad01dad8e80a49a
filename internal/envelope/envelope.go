// Package envelope reverses the transport-level encoding some producers
// apply before submission: the lead payload is JSON-serialized, base64
// encoded, and wrapped as {"timestamp": ..., "callId": ..., "message": "<b64>"}.
// Payloads that are already plain JSON pass through unchanged.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/caseflow-systems/leadrelay/internal/models"
)

// Wrapper keys of the transport envelope.
const (
	keyTimestamp = "timestamp"
	keyCallID    = "callId"
	keyMessage   = "message"
)

// DecodeError reports a malformed transport envelope. It carries the
// original encoded string so the failure can be diagnosed; the decoder
// never substitutes content silently.
type DecodeError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode transport envelope: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode transport envelope: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransport reports whether the payload looks like a transport envelope
// rather than a lead payload. A transport envelope carries a string
// "message" value and nothing besides the wrapper keys; a flat lead also
// has a "message" key, but alongside producer-native fields.
func IsTransport(payload models.RawPayload) bool {
	msg, ok := payload[keyMessage].(string)
	if !ok || msg == "" {
		return false
	}
	for key := range payload {
		switch key {
		case keyTimestamp, keyCallID, keyMessage:
		default:
			return false
		}
	}
	return true
}

// Decode unwraps a transport envelope into the inner RawPayload. Payloads
// that are not transport envelopes are returned unchanged with
// wrapped=false. Malformed base64, non-UTF8 bytes, or invalid JSON after
// decoding yield a *DecodeError.
func Decode(payload models.RawPayload) (inner models.RawPayload, wrapped bool, err error) {
	if !IsTransport(payload) {
		return payload, false, nil
	}

	encoded := payload[keyMessage].(string)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, true, &DecodeError{Raw: encoded, Reason: "invalid base64", Err: err}
	}

	if !utf8.Valid(raw) {
		return nil, true, &DecodeError{Raw: encoded, Reason: "decoded bytes are not valid UTF-8"}
	}

	var decoded models.RawPayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, true, &DecodeError{Raw: encoded, Reason: "decoded message is not a JSON object", Err: err}
	}

	return decoded, true, nil
}

// Encode wraps a lead payload in the transport envelope. callID <= 0
// omits the callId key, matching producers that do not track calls.
// Used by leadctl's seeder and by round-trip tests.
func Encode(inner models.RawPayload, callID int64) (models.RawPayload, error) {
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("encode transport envelope: %w", err)
	}

	wrapper := models.RawPayload{
		keyTimestamp: time.Now().Unix(),
		keyMessage:   base64.StdEncoding.EncodeToString(raw),
	}
	if callID > 0 {
		wrapper[keyCallID] = callID
	}
	return wrapper, nil
}
