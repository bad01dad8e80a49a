package authgate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func requestWithHeader(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhook/unified", nil)
	if name != "" {
		r.Header.Set(name, value)
	}
	return r
}

func TestNoopGate(t *testing.T) {
	assert.NoError(t, NoopGate{}.Authorize(requestWithHeader("", "")))
}

func TestAPIKeyGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key-1"), bcrypt.MinCost)
	require.NoError(t, err)
	otherHash, err := bcrypt.GenerateFromPassword([]byte("secret-key-2"), bcrypt.MinCost)
	require.NoError(t, err)

	gate, err := NewAPIKeyGate([]string{string(hash), string(otherHash)})
	require.NoError(t, err)

	t.Run("valid key", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(requestWithHeader("X-API-Key", "secret-key-1")))
	})
	t.Run("second configured key", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(requestWithHeader("X-API-Key", "secret-key-2")))
	})
	t.Run("wrong key", func(t *testing.T) {
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("X-API-Key", "nope")), ErrInvalidCredential)
	})
	t.Run("missing key", func(t *testing.T) {
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("", "")), ErrMissingCredential)
	})
}

func TestNewAPIKeyGateRejectsBadConfig(t *testing.T) {
	_, err := NewAPIKeyGate(nil)
	assert.Error(t, err)

	_, err = NewAPIKeyGate([]string{"plaintext-key"})
	assert.Error(t, err, "plaintext keys must not be accepted as hashes")
}

func TestHashAPIKeyRoundTrip(t *testing.T) {
	hash, err := HashAPIKey("fresh-key")
	require.NoError(t, err)

	gate, err := NewAPIKeyGate([]string{hash})
	require.NoError(t, err)
	assert.NoError(t, gate.Authorize(requestWithHeader("X-API-Key", "fresh-key")))
}

func TestJWTGate(t *testing.T) {
	gate, err := NewJWTGate("test-secret", "leadrelay")
	require.NoError(t, err)

	token, err := gate.IssueToken("voice-agent", time.Hour)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(requestWithHeader("Authorization", "Bearer "+token)))
	})
	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("", "")), ErrMissingCredential)
	})
	t.Run("wrong scheme", func(t *testing.T) {
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("Authorization", "Basic abc")), ErrInvalidCredential)
	})
	t.Run("garbage token", func(t *testing.T) {
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("Authorization", "Bearer not.a.jwt")), ErrInvalidCredential)
	})
	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewJWTGate("different-secret", "leadrelay")
		require.NoError(t, err)
		forged, err := other.IssueToken("voice-agent", time.Hour)
		require.NoError(t, err)
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("Authorization", "Bearer "+forged)), ErrInvalidCredential)
	})
	t.Run("expired token", func(t *testing.T) {
		expired, err := gate.IssueToken("voice-agent", -time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("Authorization", "Bearer "+expired)), ErrInvalidCredential)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewJWTGate("test-secret", "someone-else")
		require.NoError(t, err)
		wrongIssuer, err := other.IssueToken("voice-agent", time.Hour)
		require.NoError(t, err)
		assert.ErrorIs(t, gate.Authorize(requestWithHeader("Authorization", "Bearer "+wrongIssuer)), ErrInvalidCredential)
	})
}

func TestNewJWTGateRequiresSecret(t *testing.T) {
	_, err := NewJWTGate("", "leadrelay")
	assert.Error(t, err)
}
