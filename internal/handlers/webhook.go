package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/caseflow-systems/leadrelay/common/httputil"
	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/internal/authgate"
	"github.com/caseflow-systems/leadrelay/internal/models"
	"github.com/caseflow-systems/leadrelay/internal/pipeline"
	"github.com/caseflow-systems/leadrelay/internal/ratelimit"
)

// WebhookHandler serves the intake endpoints. Each named endpoint accepts
// a subset of payload shapes; /webhook/unified accepts anything,
// including the base64 transport wrapper.
type WebhookHandler struct {
	orchestrator *pipeline.Orchestrator
	limiter      ratelimit.RateLimiter
	gate         authgate.Gate
	maxBody      int64
	logger       *logging.Logger
}

func NewWebhookHandler(orchestrator *pipeline.Orchestrator, limiter ratelimit.RateLimiter, gate authgate.Gate, maxBody int64, logger *logging.Logger) *WebhookHandler {
	if limiter == nil {
		limiter = ratelimit.NoOpRateLimiter{}
	}
	if gate == nil {
		gate = authgate.NoopGate{}
	}
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		orchestrator: orchestrator,
		limiter:      limiter,
		gate:         gate,
		maxBody:      maxBody,
		logger:       logger,
	}
}

// webhookResponse is the intake reply: an overall status plus the
// per-lead outcomes, so batch callers can always compute their own
// success and failure counts.
type webhookResponse struct {
	Status     string                   `json:"status"`
	TotalLeads int                      `json:"total_leads"`
	Successful int                      `json:"successful"`
	Failed     int                      `json:"failed"`
	Results    []models.DispatchOutcome `json:"results"`
}

// HandleWebForm accepts direct submissions from web forms. The body must
// carry the downstream "inbox_lead" wrapper.
func (h *WebhookHandler) HandleWebForm(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "web-form", "inbox_lead")
}

// HandleCaptureNow accepts batch envelopes from the voice agent. The
// body must carry "inbox_leads".
func (h *WebhookHandler) HandleCaptureNow(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "capture-now", "inbox_leads")
}

// HandleUnified auto-detects any payload shape.
func (h *WebhookHandler) HandleUnified(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "unified", "")
}

// HandleLegacy accepts flat producer-native payloads.
func (h *WebhookHandler) HandleLegacy(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "legacy", "")
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, endpoint, requiredKey string) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.gate.Authorize(r); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	clientIP := httputil.GetClientIP(r)
	allowed, err := h.limiter.Allow(r.Context(), clientIP)
	if err != nil {
		// Admission control failing must not drop leads.
		h.logger.WarnContext(r.Context(), "rate limiter unavailable, admitting",
			logging.IP(clientIP), logging.Error(err))
	} else if !allowed {
		w.Header().Set("Retry-After", "60")
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty request body")
		return
	}
	if int64(len(body)) > h.maxBody {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if requiredKey != "" {
		var probe models.RawPayload
		if err := json.Unmarshal(body, &probe); err == nil {
			if _, ok := probe[requiredKey]; !ok {
				httputil.WriteError(w, http.StatusUnprocessableEntity,
					fmt.Sprintf("payload must contain %q", requiredKey))
				return
			}
		}
	}

	results := h.orchestrator.Handle(r.Context(), endpoint, body)
	h.writeResults(w, results)
}

func (h *WebhookHandler) writeResults(w http.ResponseWriter, results []models.DispatchOutcome) {
	summary := models.Summarize(results)

	resp := webhookResponse{
		TotalLeads: summary.TotalLeads,
		Successful: summary.Successful,
		Failed:     summary.Failed,
		Results:    summary.Results,
	}

	var status int
	switch {
	case summary.Failed == 0:
		resp.Status = "success"
		status = http.StatusCreated
	case summary.Successful > 0:
		resp.Status = "partial"
		status = http.StatusMultiStatus
	default:
		resp.Status = "failed"
		status = failureStatus(results)
	}

	if status == http.StatusTooManyRequests && len(results) == 1 && results[0].RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(results[0].RetryAfter.Seconds())))
	}
	httputil.WriteJSON(w, status, resp)
}

// failureStatus maps an all-failed result set to the response status.
// For batches the first outcome decides; items are independent, so a
// homogeneous failure is the common case here.
func failureStatus(results []models.DispatchOutcome) int {
	if len(results) == 0 {
		return http.StatusUnprocessableEntity
	}
	switch results[0].Tag {
	case models.OutcomeDecodeError:
		return http.StatusBadRequest
	case models.OutcomeUnknownShape, models.OutcomeInvalid, models.OutcomeValidationRejected:
		return http.StatusUnprocessableEntity
	case models.OutcomeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// HandleValidate reports whether the named endpoint would accept a
// well-formed probe envelope, without dispatching anything.
func (h *WebhookHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	endpoint := strings.TrimPrefix(r.URL.Path, "/validate/")
	if endpoint == "" || strings.Contains(endpoint, "/") {
		httputil.WriteError(w, http.StatusNotFound, "unknown endpoint")
		return
	}

	probe := []byte(`{
		"first_name": "Test",
		"last_name": "User",
		"message": "Test message",
		"referring_url": "https://test.com",
		"source": "API Test"
	}`)

	shape, applied, err := h.orchestrator.Validate(probe)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"endpoint": endpoint,
		"validation": map[string]interface{}{
			"shape":             shape.String(),
			"is_valid":          err == nil,
			"applied_fallbacks": applied,
		},
	})
}

// Health reports liveness.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "leadrelay",
	})
}

// Ready reports readiness. The relay has no hard startup dependencies;
// once the process serves traffic it is ready.
func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
