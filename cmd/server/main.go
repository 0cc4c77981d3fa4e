package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/hearth/internal"
	"github.com/DukeRupert/hearth/internal/billing"
	"github.com/DukeRupert/hearth/internal/email"
	"github.com/DukeRupert/hearth/internal/handler"
	"github.com/DukeRupert/hearth/internal/jobs"
	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/middleware"
	"github.com/DukeRupert/hearth/internal/notify"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/DukeRupert/hearth/internal/sms"
	"github.com/DukeRupert/hearth/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)

	// ==========================================================================
	// Services
	// ==========================================================================

	notifier := notify.NewJobNotifier(store, logger)

	userService := service.NewUserService(store, logger)
	entitlementService := service.NewEntitlementService(store, logger)
	capGuard := service.NewCapGuard(store, cfg.ReserveMaxAttempts, logger)
	leadRouter := service.NewLeadRouter(store, notifier, cfg.ReserveMaxAttempts, logger)
	leadService := service.NewLeadService(store, leadRouter, logger)
	routingService := service.NewRoutingConfigService(store, logger)

	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripePrices)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing not configured, webhooks will be acknowledged and ignored")
	}

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		jobWorker, err = newWorker(cfg, store, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if jobWorker != nil {
		jobWorker.Start(workerCtx)
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, cfg.TrustedIdentityHeader, logger)
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	intakeLimiter := middleware.NewRateLimiter(cfg.IntakeRateLimit, cfg.IntakeRateWindow, logger)
	defer intakeLimiter.Stop()
	limitIntake := middleware.NewRateLimitMiddleware(intakeLimiter, logger).Limit

	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	handler.NewEntitlementHandler(entitlementService, logger).RegisterRoutes(mux, requireUser)
	handler.NewListingHandler(capGuard, logger).RegisterRoutes(mux, requireUser)
	handler.NewOrganizationHandler(capGuard, routingService, leadService, logger).RegisterRoutes(mux, requireUser)
	handler.NewLeadHandler(leadService, leadRouter, logger).RegisterRoutes(mux, requireUser, limitIntake)
	handler.NewWebhookHandler(billingService, userService, logger).RegisterRoutes(mux)

	root := middleware.Stack(
		loggingMw.Handler,
		securityMw.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// Stop taking jobs only after in-flight requests have enqueued theirs.
	if jobWorker != nil {
		jobWorker.Stop()
	}
	cancelWorker()

	logger.Info("Graceful shutdown complete")
	return nil
}

// newWorker builds the job worker and registers the lead notification
// handler with the configured email and SMS channels.
func newWorker(cfg *internal.Config, store repository.Store, logger *slog.Logger) (*worker.Worker, error) {
	workerCfg := worker.DefaultConfig()
	workerCfg.Concurrency = cfg.WorkerConcurrency
	workerCfg.PollInterval = cfg.WorkerPollInterval
	workerCfg.JobTimeout = cfg.WorkerJobTimeout

	w, err := worker.New(store, workerCfg, logger)
	if err != nil {
		return nil, err
	}

	emailService, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("email service: %w", err)
	}

	var smsSender sms.Sender = sms.LogSender{Logger: logger}
	if cfg.SMSEnabled {
		smsSender = sms.NewSNSSender(sms.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SenderID:        cfg.SMSSenderID,
		}, logger)
	}

	w.Register(jobs.NewNotifyAgentLeadHandler(store, emailService, smsSender, logger))
	return w, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
