package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	// Settlement split rates. CommissionRate is the platform's cut of each
	// donation; VATRate applies to the gross commission, VAT inclusive.
	CommissionRate float64
	VATRate        float64

	// Webhook verification.
	WebhookPublicKeyPath    string
	WebhookTimestampSkewSec int

	// Callback queue retry policy.
	QueueMaxAttempts int
	QueueRetryBase   time.Duration

	// Payout scheduling.
	PayoutScheduleInterval time.Duration
	PayoutMaxBatchesPerRun int
	PayoutHoldWindow       time.Duration
	PayoutMinCents         int64
	PayoutOrphanSweepAfter time.Duration
	PayoutFeeCents         int64

	// Reconciliation.
	ReconcileToleranceCents int64
	ReconcileWindow         time.Duration

	// Payment provider.
	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaInitiator      string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),

		CommissionRate: getEnvFloat("COMMISSION_RATE", 0.30),
		VATRate:        getEnvFloat("VAT_RATE", 0.16),

		WebhookPublicKeyPath:    os.Getenv("WEBHOOK_PUBLIC_KEY_PATH"),
		WebhookTimestampSkewSec: getEnvInt("WEBHOOK_TIMESTAMP_SKEW_SECONDS", 300),

		QueueMaxAttempts: getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
		QueueRetryBase:   time.Second * time.Duration(getEnvInt("QUEUE_RETRY_BASE_SECONDS", 2)),

		PayoutScheduleInterval: time.Minute * time.Duration(getEnvInt("PAYOUT_SCHEDULE_INTERVAL_MINUTES", 15)),
		PayoutMaxBatchesPerRun: getEnvInt("PAYOUT_MAX_BATCHES_PER_RUN", 5),
		PayoutHoldWindow:       time.Hour * time.Duration(getEnvInt("PAYOUT_HOLD_WINDOW_HOURS", 24)),
		PayoutMinCents:         int64(getEnvInt("PAYOUT_MIN_CENTS", 5000)),
		PayoutOrphanSweepAfter: time.Minute * time.Duration(getEnvInt("PAYOUT_ORPHAN_SWEEP_AFTER_MINUTES", 10)),
		PayoutFeeCents:         int64(getEnvInt("PAYOUT_FEE_CENTS", 0)),

		ReconcileToleranceCents: int64(getEnvInt("RECONCILE_TOLERANCE_CENTS", 200)),
		ReconcileWindow:         time.Hour * time.Duration(getEnvInt("RECONCILE_WINDOW_HOURS", 24)),

		MpesaBaseURL:        getEnv("MPESA_BASE_URL", "https://api.safaricom.co.ke"),
		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortcode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaInitiator:      os.Getenv("MPESA_INITIATOR_NAME"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.CommissionRate < 0 || cfg.CommissionRate >= 1 {
		return nil, fmt.Errorf("COMMISSION_RATE must be in [0,1), got %v", cfg.CommissionRate)
	}

	if cfg.VATRate < 0 || cfg.VATRate >= 1 {
		return nil, fmt.Errorf("VAT_RATE must be in [0,1), got %v", cfg.VATRate)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
