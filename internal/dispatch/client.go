// Package dispatch owns every outbound call to the downstream lead inbox
// API. It is the only component in the pipeline with network side effects
// and mutable state (the rate-limit window); everything upstream of it is
// pure.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/internal/metrics"
	"github.com/caseflow-systems/leadrelay/internal/models"
)

const maxResponseBody = 1 << 20

// Config holds the dispatch client settings. All durations and counts
// come from configuration at process start.
type Config struct {
	InboxURL    string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Jitter      bool
	RateLimit   int
	RateWindow  time.Duration
}

// DefaultConfig mirrors the limits the downstream API documents.
func DefaultConfig() Config {
	return Config{
		InboxURL:    "https://grow.clio.com/inbox_leads",
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffCap:  30 * time.Second,
		Jitter:      true,
		RateLimit:   50,
		RateWindow:  time.Minute,
	}
}

// Client dispatches normalized leads and fetches paginated resources from
// the downstream API, enforcing the shared rate-limit window and the
// retry policy on both paths.
type Client struct {
	cfg    Config
	http   *http.Client
	window *Window
	logger *logging.Logger

	// Test seam for backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a dispatch client. The HTTP client and its connection
// pool are owned here and shared across all concurrent dispatches.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		window: NewWindow(cfg.RateLimit, cfg.RateWindow),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Dispatch delivers one normalized lead and classifies the result.
// Exactly one outcome is returned per call; it never panics and never
// returns an error, the outcome tag is the error channel.
func (c *Client) Dispatch(ctx context.Context, lead models.NormalizedLead) models.DispatchOutcome {
	body, err := json.Marshal(models.InboxSubmission{
		InboxLead:      lead,
		InboxLeadToken: c.cfg.Token,
	})
	if err != nil {
		return models.DispatchOutcome{
			Tag:   models.OutcomeFatalFailure,
			Cause: fmt.Sprintf("encode submission: %v", err),
		}
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.InboxURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	outcome := c.execute(ctx, build, c.classifyDispatch)
	if outcome.Tag == models.OutcomeCreated && outcome.RemoteID == "" {
		c.logger.WarnContext(ctx, "lead created but response carried no parsable id")
	}
	return outcome
}

// Page is one page of a bulk resource listing, body plus the response
// headers the pagination cursor is derived from.
type Page struct {
	Body   []byte
	Header http.Header
}

// FetchPage issues one rate-limited GET against the downstream API,
// inheriting the retry and backoff policy. A 2xx fetch reports the
// taxonomy's success tag with the page attached; any other tag is
// terminal for the caller's pagination loop.
func (c *Client) FetchPage(ctx context.Context, rawURL string, query url.Values) (*Page, models.DispatchOutcome) {
	target := rawURL
	if len(query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, models.DispatchOutcome{
				Tag:   models.OutcomeFatalFailure,
				Cause: fmt.Sprintf("parse url %q: %v", rawURL, err),
			}
		}
		merged := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				merged.Set(k, v)
			}
		}
		u.RawQuery = merged.Encode()
		target = u.String()
	}

	var page *Page
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
		return req, nil
	}
	classify := func(status int, header http.Header, body []byte) models.DispatchOutcome {
		outcome := c.classifyDispatch(status, header, body)
		if outcome.Tag == models.OutcomeCreated {
			page = &Page{Body: body, Header: header}
			outcome.RemoteID = ""
		}
		return outcome
	}

	outcome := c.execute(ctx, build, classify)
	return page, outcome
}

// execute runs the shared rate-limit, call, and retry loop. classify maps
// a terminal HTTP response to an outcome; a retriable response (429 the
// client is willing to wait out, or 5xx) is handled here.
func (c *Client) execute(ctx context.Context, build func() (*http.Request, error), classify func(int, http.Header, []byte) models.DispatchOutcome) models.DispatchOutcome {
	start := time.Now()
	attempts := 0

	finish := func(o models.DispatchOutcome) models.DispatchOutcome {
		o.Attempts = attempts
		o.Latency = time.Since(start)
		metrics.DispatchDuration.Observe(o.Latency.Seconds())
		return o
	}

	for attempts < c.cfg.MaxAttempts {
		if err := c.window.Acquire(ctx); err != nil {
			return finish(models.DispatchOutcome{
				Tag:   models.OutcomeTransientFailure,
				Cause: "timeout waiting for rate-limit slot",
			})
		}

		req, err := build()
		if err != nil {
			return finish(models.DispatchOutcome{
				Tag:   models.OutcomeFatalFailure,
				Cause: fmt.Sprintf("build request: %v", err),
			})
		}

		attempts++
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return finish(models.DispatchOutcome{
					Tag:   models.OutcomeTransientFailure,
					Cause: "request cancelled: " + ctx.Err().Error(),
				})
			}
			c.logger.WarnContext(ctx, "outbound call failed",
				logging.Attempts(attempts), logging.Error(err))
			if attempts >= c.cfg.MaxAttempts {
				return finish(models.DispatchOutcome{
					Tag:   models.OutcomeTransientFailure,
					Cause: fmt.Sprintf("network error after %d attempts: %v", attempts, err),
				})
			}
			if err := c.backoff(ctx, attempts, 0); err != nil {
				return finish(models.DispatchOutcome{
					Tag:   models.OutcomeTransientFailure,
					Cause: "request cancelled during backoff",
				})
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		if readErr != nil {
			body = nil
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := retryAfterDuration(resp.Header, c.nextDelay(attempts))
			if c.declinesWait(ctx, retryAfter) {
				return finish(models.DispatchOutcome{
					Tag:        models.OutcomeRateLimited,
					RetryAfter: retryAfter,
					Cause:      "downstream rate limit, wait exceeds budget",
				})
			}
			if attempts >= c.cfg.MaxAttempts {
				return finish(models.DispatchOutcome{
					Tag:        models.OutcomeTransientFailure,
					RetryAfter: retryAfter,
					Cause:      fmt.Sprintf("still rate limited after %d attempts", attempts),
				})
			}
			c.logger.WarnContext(ctx, "downstream rate limited, waiting",
				logging.Attempts(attempts), "retry_after", retryAfter.String())
			if err := c.backoff(ctx, attempts, retryAfter); err != nil {
				return finish(models.DispatchOutcome{
					Tag:   models.OutcomeTransientFailure,
					Cause: "request cancelled during backoff",
				})
			}
			continue

		case resp.StatusCode >= 500:
			if attempts >= c.cfg.MaxAttempts {
				return finish(models.DispatchOutcome{
					Tag:   models.OutcomeTransientFailure,
					Cause: fmt.Sprintf("downstream returned %d after %d attempts", resp.StatusCode, attempts),
				})
			}
			c.logger.WarnContext(ctx, "downstream server error, retrying",
				logging.Status(resp.StatusCode), logging.Attempts(attempts))
			if err := c.backoff(ctx, attempts, 0); err != nil {
				return finish(models.DispatchOutcome{
					Tag:   models.OutcomeTransientFailure,
					Cause: "request cancelled during backoff",
				})
			}
			continue

		default:
			return finish(classify(resp.StatusCode, resp.Header, body))
		}
	}

	return finish(models.DispatchOutcome{
		Tag:   models.OutcomeTransientFailure,
		Cause: fmt.Sprintf("exhausted %d attempts", c.cfg.MaxAttempts),
	})
}

// classifyDispatch maps a terminal (non-retriable) response to its
// outcome. Retriable statuses never reach this.
func (c *Client) classifyDispatch(status int, _ http.Header, body []byte) models.DispatchOutcome {
	switch {
	case status >= 200 && status < 300:
		return models.DispatchOutcome{
			Tag:      models.OutcomeCreated,
			RemoteID: parseRemoteID(body),
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.DispatchOutcome{
			Tag:   models.OutcomeAuthRejected,
			Cause: fmt.Sprintf("downstream returned %d", status),
		}
	case status == http.StatusUnprocessableEntity:
		return models.DispatchOutcome{
			Tag:         models.OutcomeValidationRejected,
			FieldErrors: parseFieldErrors(body),
			Cause:       "downstream rejected lead fields",
		}
	default:
		return models.DispatchOutcome{
			Tag:   models.OutcomeFatalFailure,
			Cause: fmt.Sprintf("unexpected downstream status %d", status),
		}
	}
}

// backoff waits before the next attempt. retryAfter, when non-zero,
// overrides the exponential schedule (server knows best).
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := retryAfter
	if delay <= 0 {
		delay = c.nextDelay(attempt)
	}
	return c.sleep(ctx, delay)
}

// nextDelay computes the exponential delay after the k-th attempt,
// capped, with optional jitter of up to half the delay.
func (c *Client) nextDelay(attempt int) time.Duration {
	base := c.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	delay := base << (attempt - 1)
	if c.cfg.BackoffCap > 0 && delay > c.cfg.BackoffCap {
		delay = c.cfg.BackoffCap
	}
	if c.cfg.Jitter && delay > 1 {
		delay += time.Duration(rand.Int63n(int64(delay / 2)))
	}
	return delay
}

// declinesWait reports whether the client should surface RateLimited
// instead of honoring the server's wait: either the wait would overrun
// the caller's remaining context budget, or it exceeds the backoff cap.
func (c *Client) declinesWait(ctx context.Context, wait time.Duration) bool {
	if c.cfg.BackoffCap > 0 && wait > c.cfg.BackoffCap {
		return true
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		return true
	}
	return false
}

// retryAfterDuration reads the Retry-After header, either delta-seconds
// or an HTTP date, falling back to the client's own schedule.
func retryAfterDuration(header http.Header, fallback time.Duration) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return fallback
}

// parseRemoteID pulls the created lead ID out of a success body. The API
// nests it under "inbox_lead", older deployments returned it bare; either
// numeric or string forms are accepted. Returns "" when nothing parses.
func parseRemoteID(body []byte) string {
	var envelope struct {
		ID        interface{} `json:"id"`
		InboxLead struct {
			ID interface{} `json:"id"`
		} `json:"inbox_lead"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return ""
	}
	if id := idString(envelope.InboxLead.ID); id != "" {
		return id
	}
	return idString(envelope.ID)
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// parseFieldErrors pulls the structured 422 body, a mapping from field
// name to violation strings under "inbox_lead.errors". An unparsable
// body yields a single catch-all entry so the caller still sees that
// validation failed.
func parseFieldErrors(body []byte) map[string][]string {
	var envelope struct {
		InboxLead struct {
			Errors map[string][]string `json:"errors"`
		} `json:"inbox_lead"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.InboxLead.Errors) > 0 {
		return envelope.InboxLead.Errors
	}
	return map[string][]string{"_body": {"unparsable validation error response"}}
}
