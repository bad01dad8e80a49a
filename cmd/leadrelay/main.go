package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caseflow-systems/leadrelay/common/logging"
	"github.com/caseflow-systems/leadrelay/common/messaging"
	"github.com/caseflow-systems/leadrelay/internal/authgate"
	"github.com/caseflow-systems/leadrelay/internal/config"
	"github.com/caseflow-systems/leadrelay/internal/dispatch"
	"github.com/caseflow-systems/leadrelay/internal/handlers"
	"github.com/caseflow-systems/leadrelay/internal/outcomes"
	"github.com/caseflow-systems/leadrelay/internal/pipeline"
	"github.com/caseflow-systems/leadrelay/internal/ratelimit"
	"github.com/caseflow-systems/leadrelay/internal/server"

	natsclient "github.com/caseflow-systems/leadrelay/common/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("leadrelay"))
	logging.SetDefault(logger)

	slog.Info("Starting lead relay",
		slog.Int("port", cfg.Server.Port),
		slog.String("inbox_url", cfg.Inbox.URL),
		slog.String("log_level", cfg.Logging.Level),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	if cfg.Inbox.Token == "" {
		slog.Warn("No inbox token configured, downstream dispatch will be rejected")
	}

	// Initialize inbound rate limiter
	var rateLimiter ratelimit.RateLimiter
	if cfg.Intake.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Intake.RateLimitRedis,
			cfg.Intake.RateLimitPerKey,
			cfg.Intake.RateLimitWindow,
		)
		if err != nil {
			log.Printf("WARNING: Failed to initialize Redis rate limiter: %v", err)
			log.Println("Continuing without inbound rate limiting")
			rateLimiter = ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			log.Printf("Inbound rate limiting enabled: %d requests per %s per caller",
				cfg.Intake.RateLimitPerKey, cfg.Intake.RateLimitWindow)
		}
	} else {
		rateLimiter = ratelimit.NoOpRateLimiter{}
		log.Println("Inbound rate limiting disabled in configuration")
	}
	defer rateLimiter.Close()

	// Initialize auth gate
	var gate authgate.Gate
	switch cfg.Auth.Mode {
	case "apikey":
		gate, err = authgate.NewAPIKeyGate(cfg.Auth.APIKeyHashes)
		if err != nil {
			log.Fatalf("Failed to initialize API key gate: %v", err)
		}
		log.Printf("Auth gate enabled: api keys (%d configured)", len(cfg.Auth.APIKeyHashes))
	case "jwt":
		gate, err = authgate.NewJWTGate(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			log.Fatalf("Failed to initialize JWT gate: %v", err)
		}
		log.Println("Auth gate enabled: jwt bearer tokens")
	default:
		gate = authgate.NoopGate{}
		log.Println("Auth gate disabled, intake endpoints are open")
	}

	// Initialize outcome journal
	var publisher messaging.Publisher
	if cfg.NATS.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		client, err := natsclient.NewClient(natsCfg)
		if err != nil {
			log.Printf("WARNING: Failed to connect to NATS: %v", err)
			log.Println("Outcome journal disabled")
		} else {
			publisher = client
			log.Printf("Outcome journal enabled (nats: %s)", cfg.NATS.URL)
		}
	} else {
		log.Println("Outcome journal disabled in configuration")
	}
	journal := outcomes.NewJournal(publisher, logger)
	defer journal.Close()

	// Initialize dispatch client
	dispatchCfg := dispatch.Config{
		InboxURL:    cfg.Inbox.URL,
		Token:       cfg.Inbox.Token,
		Timeout:     cfg.Inbox.Timeout,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BackoffBase: cfg.Dispatch.BackoffBase,
		BackoffCap:  cfg.Dispatch.BackoffCap,
		Jitter:      cfg.Dispatch.Jitter,
		RateLimit:   cfg.Dispatch.RateLimit,
		RateWindow:  cfg.Dispatch.RateWindow,
	}
	dispatcher := dispatch.NewClient(dispatchCfg, logger)
	log.Printf("Dispatch client initialized: %d requests per %s, %d attempts",
		cfg.Dispatch.RateLimit, cfg.Dispatch.RateWindow, cfg.Dispatch.MaxAttempts)

	// Assemble the pipeline
	orchestrator := pipeline.New(cfg.FallbackPolicy(), dispatcher, journal, logger)

	// Initialize HTTP handlers
	handler := handlers.NewWebhookHandler(orchestrator, rateLimiter, gate, cfg.Intake.MaxBodySize, logger)
	router := server.NewRouter(handler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Lead relay listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
