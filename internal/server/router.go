package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseflow-systems/leadrelay/common/middleware"
	"github.com/caseflow-systems/leadrelay/internal/handlers"
)

// NewRouter constructs a ServeMux with the relay's intake routes
// registered.
func NewRouter(h *handlers.WebhookHandler) http.Handler {
	mux := http.NewServeMux()

	// Intake endpoints
	mux.HandleFunc("/webhook/web-form", h.HandleWebForm)
	mux.HandleFunc("/webhook/capture-now", h.HandleCaptureNow)
	mux.HandleFunc("/webhook/unified", h.HandleUnified)
	mux.HandleFunc("/webhook/legacy", h.HandleLegacy)

	// Dry-run validation
	mux.HandleFunc("/validate/", h.HandleValidate)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
