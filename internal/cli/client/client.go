// Package client talks to a running lead relay over HTTP.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RelayClient submits leads to the relay's webhook endpoints.
type RelayClient struct {
	baseURL     string
	apiKey      string
	bearerToken string
	client      *http.Client
}

func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithAPIKey sets the X-API-Key header on every request.
func (c *RelayClient) WithAPIKey(key string) *RelayClient {
	c.apiKey = key
	return c
}

// WithBearerToken sets the Authorization header on every request.
func (c *RelayClient) WithBearerToken(token string) *RelayClient {
	c.bearerToken = token
	return c
}

// LeadResult is one per-lead outcome as reported by the relay.
type LeadResult struct {
	Tag         string              `json:"tag"`
	RemoteID    string              `json:"remote_id,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
	Attempts    int                 `json:"attempts,omitempty"`
	Cause       string              `json:"cause,omitempty"`
	Shape       string              `json:"shape"`
	Fallbacks   []string            `json:"fallbacks,omitempty"`
}

// SubmitResult is the relay's intake reply.
type SubmitResult struct {
	Status     string       `json:"status"`
	TotalLeads int          `json:"total_leads"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []LeadResult `json:"results"`

	// HTTPStatus is the response status code; 207 marks a partial batch.
	HTTPStatus int `json:"-"`
}

// Submit posts a payload to /webhook/{endpoint}. Rejections the relay
// reports per lead (validation, unknown shape) come back inside the
// result, not as an error; an error means the relay could not be
// reached or answered with something other than an intake reply.
func (c *RelayClient) Submit(endpoint string, payload []byte) (*SubmitResult, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/webhook/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	result.HTTPStatus = resp.StatusCode
	return &result, nil
}

// ValidateResult is the relay's dry-run report for one endpoint.
type ValidateResult struct {
	Endpoint   string `json:"endpoint"`
	Validation struct {
		Shape            string   `json:"shape"`
		IsValid          bool     `json:"is_valid"`
		AppliedFallbacks []string `json:"applied_fallbacks"`
	} `json:"validation"`
}

// Validate asks the relay whether the named endpoint would accept a
// well-formed probe, without dispatching anything downstream.
func (c *RelayClient) Validate(endpoint string) (*ValidateResult, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/validate/"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validate failed with status %d", resp.StatusCode)
	}

	var result ValidateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks the relay's liveness endpoint.
func (c *RelayClient) Health() error {
	resp, err := c.client.Get(c.baseURL + "/healthz")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *RelayClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
