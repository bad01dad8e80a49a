// Package authgate checks intake credentials before any pipeline work
// happens. The public form endpoints run ungated; the admin-facing
// variants require either a static API key or an HS256 bearer token.
package authgate

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/caseflow-systems/leadrelay/internal/metrics"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Gate authorizes one inbound request. Authorize returns nil to admit;
// any error rejects with 401.
type Gate interface {
	Authorize(r *http.Request) error
}

// NoopGate admits everything. Used for the public form endpoints.
type NoopGate struct{}

func (NoopGate) Authorize(*http.Request) error { return nil }

// APIKeyGate checks the X-API-Key header against a set of bcrypt hashes.
// Only hashes live in configuration; the plaintext keys are handed to
// producers out of band.
type APIKeyGate struct {
	hashes [][]byte
}

// NewAPIKeyGate builds a gate from bcrypt hash strings. Hashes that do
// not look like bcrypt output are rejected up front rather than failing
// every request at runtime.
func NewAPIKeyGate(hashes []string) (*APIKeyGate, error) {
	if len(hashes) == 0 {
		return nil, errors.New("no api key hashes configured")
	}
	gate := &APIKeyGate{}
	for _, h := range hashes {
		if !strings.HasPrefix(h, "$2a$") && !strings.HasPrefix(h, "$2b$") && !strings.HasPrefix(h, "$2y$") {
			return nil, errors.New("api key hash is not a bcrypt hash")
		}
		gate.hashes = append(gate.hashes, []byte(h))
	}
	return gate, nil
}

func (g *APIKeyGate) Authorize(r *http.Request) error {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		metrics.AuthRejections.WithLabelValues("missing_key").Inc()
		return ErrMissingCredential
	}
	// bcrypt comparison is constant-time per hash; every configured hash
	// is checked so timing does not reveal which key matched.
	var matched bool
	for _, hash := range g.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			matched = true
		}
	}
	if !matched {
		metrics.AuthRejections.WithLabelValues("bad_key").Inc()
		return ErrInvalidCredential
	}
	return nil
}

// HashAPIKey produces the bcrypt hash to place in configuration for a
// new producer key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Claims carried by intake bearer tokens.
type Claims struct {
	Producer string `json:"producer"`
	jwt.RegisteredClaims
}

// JWTGate verifies HS256 bearer tokens from the Authorization header.
type JWTGate struct {
	secret []byte
	issuer string
}

func NewJWTGate(secret, issuer string) (*JWTGate, error) {
	if secret == "" {
		return nil, errors.New("empty jwt secret")
	}
	return &JWTGate{secret: []byte(secret), issuer: issuer}, nil
}

func (g *JWTGate) Authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		metrics.AuthRejections.WithLabelValues("missing_token").Inc()
		return ErrMissingCredential
	}
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		metrics.AuthRejections.WithLabelValues("bad_scheme").Inc()
		return ErrInvalidCredential
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredential
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		metrics.AuthRejections.WithLabelValues("bad_token").Inc()
		return ErrInvalidCredential
	}

	if g.issuer != "" {
		claims, ok := token.Claims.(*Claims)
		if !ok || claims.Issuer != g.issuer {
			metrics.AuthRejections.WithLabelValues("bad_issuer").Inc()
			return ErrInvalidCredential
		}
	}
	return nil
}

// IssueToken mints a bearer token for a producer, used by operators to
// provision intake credentials.
func (g *JWTGate) IssueToken(producer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Producer: producer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    g.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}
