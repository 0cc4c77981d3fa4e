package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/hearth/internal/billing"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Application base URL (for links in lead emails)
	BaseURL string

	// SMS via AWS SNS. When disabled, messages are logged and dropped.
	SMSEnabled         bool
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SMSSenderID        string

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// ReserveMaxAttempts bounds how often a cap reservation or lead
	// assignment is retried after a serialization failure.
	ReserveMaxAttempts int

	// TrustedIdentityHeader names the header the upstream gateway uses to
	// forward the authenticated user ID.
	TrustedIdentityHeader string

	// Public lead intake rate limit, per client IP.
	IntakeRateLimit  int
	IntakeRateWindow time.Duration

	// Stripe Billing Configuration.
	// The webhook is acknowledged and ignored when these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe price IDs per paid role. Monthly and yearly prices are listed
	// together, comma separated.
	StripePrices billing.PriceConfig

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "leads@hearth.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Hearth"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		SMSEnabled:         getEnvBool("SMS_ENABLED", false),
		AWSRegion:          getEnv("AWS_REGION", "us-west-2"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SMSSenderID:        getEnv("SMS_SENDER_ID", ""),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 1*time.Minute),

		ReserveMaxAttempts:    getEnvInt("RESERVE_MAX_ATTEMPTS", 5),
		TrustedIdentityHeader: getEnv("TRUSTED_IDENTITY_HEADER", "X-Hearth-User-ID"),

		IntakeRateLimit:  getEnvInt("INTAKE_RATE_LIMIT", 10),
		IntakeRateWindow: getEnvDuration("INTAKE_RATE_WINDOW", time.Minute),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		StripePrices: billing.PriceConfig{
			PremiumPriceIDs: getEnvList("STRIPE_PREMIUM_PRICE_IDS"),
			AgentPriceIDs:   getEnvList("STRIPE_AGENT_PRICE_IDS"),
			AgencyPriceIDs:  getEnvList("STRIPE_AGENCY_PRICE_IDS"),
			ExpertPriceIDs:  getEnvList("STRIPE_EXPERT_PRICE_IDS"),
		},

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SMSEnabled {
		if cfg.AWSAccessKeyID == "" || cfg.AWSSecretAccessKey == "" {
			return nil, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required when SMS_ENABLED is true")
		}
	}

	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	if cfg.ReserveMaxAttempts < 1 {
		return nil, fmt.Errorf("RESERVE_MAX_ATTEMPTS must be at least 1, got %d", cfg.ReserveMaxAttempts)
	}
	if cfg.IntakeRateLimit < 1 {
		return nil, fmt.Errorf("INTAKE_RATE_LIMIT must be at least 1, got %d", cfg.IntakeRateLimit)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
