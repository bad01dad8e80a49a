package envelope

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"

	"github.com/caseflow-systems/leadrelay/internal/models"
)

func TestDecode_RoundTrip(t *testing.T) {
	inner := models.RawPayload{
		"first_name": "Minnie",
		"last_name":  "Mouse",
		"message":    "This is a sample transcript from the voice agent.",
	}

	wrapped, err := Encode(inner, 4451)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, ok := wrapped["timestamp"]; !ok {
		t.Error("Encode() missing timestamp")
	}
	if wrapped["callId"] != int64(4451) {
		t.Errorf("callId = %v, want 4451", wrapped["callId"])
	}

	decoded, isWrapped, err := Decode(wrapped)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !isWrapped {
		t.Error("Decode() wrapped = false, want true")
	}
	if !reflect.DeepEqual(decoded, inner) {
		t.Errorf("round trip mismatch:\n got  %v\n want %v", decoded, inner)
	}
}

func TestEncode_OmitsCallID(t *testing.T) {
	wrapped, err := Encode(models.RawPayload{"first_name": "Jane"}, 0)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, ok := wrapped["callId"]; ok {
		t.Error("callId should be omitted when not tracked")
	}
}

func TestDecode_Passthrough(t *testing.T) {
	// A flat lead also has a "message" key; the presence of other
	// producer-native fields means it is not a transport envelope.
	flat := models.RawPayload{
		"first_name": "John",
		"message":    "need help",
	}

	out, wrapped, err := Decode(flat)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if wrapped {
		t.Error("flat payload should pass through")
	}
	if !reflect.DeepEqual(out, flat) {
		t.Errorf("passthrough altered payload: %v", out)
	}
}

func TestDecode_InvalidBase64(t *testing.T) {
	payload := models.RawPayload{"message": "not-valid-base64!!"}

	_, wrapped, err := Decode(payload)
	if !wrapped {
		t.Error("bare message payload should be treated as transport")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
	if decodeErr.Raw != "not-valid-base64!!" {
		t.Errorf("DecodeError.Raw = %q, want original string", decodeErr.Raw)
	}
}

func TestDecode_InnerNotJSON(t *testing.T) {
	payload := models.RawPayload{
		"timestamp": float64(1753731000),
		"message":   base64.StdEncoding.EncodeToString([]byte("just a transcript, not json")),
	}

	_, _, err := Decode(payload)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
}

func TestDecode_InnerNotUTF8(t *testing.T) {
	payload := models.RawPayload{
		"timestamp": float64(1753731000),
		"message":   base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd}),
	}

	_, _, err := Decode(payload)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Decode() error = %v, want *DecodeError", err)
	}
}

func TestIsTransport(t *testing.T) {
	tests := []struct {
		name    string
		payload models.RawPayload
		want    bool
	}{
		{
			name: "wrapper with all keys",
			payload: models.RawPayload{
				"timestamp": float64(1753731000),
				"callId":    float64(12),
				"message":   "YWJj",
			},
			want: true,
		},
		{
			name:    "bare message",
			payload: models.RawPayload{"message": "YWJj"},
			want:    true,
		},
		{
			name: "flat lead with message text",
			payload: models.RawPayload{
				"first_name": "John",
				"message":    "need help",
			},
			want: false,
		},
		{
			name:    "message is not a string",
			payload: models.RawPayload{"message": false},
			want:    false,
		},
		{
			name:    "no message key",
			payload: models.RawPayload{"inbox_lead": map[string]interface{}{}},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransport(tt.payload); got != tt.want {
				t.Errorf("IsTransport() = %v, want %v", got, tt.want)
			}
		})
	}
}
