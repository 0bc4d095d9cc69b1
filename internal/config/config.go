package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP; disabled when AMQPURL is empty
	AMQPURL           string
	AMQPExchange      string
	AMQPFeedbackQueue string
	AMQPExportQueue   string

	// Analysis service
	AnalysisBaseURL   string
	AdvisoryThreshold float64
	AdvisoryTimeout   time.Duration
	FeedbackTimeout   time.Duration
	ScoreCacheSize    int
	ScoreCacheTTL     time.Duration

	// Sessions and rate limiting
	SessionTTL      time.Duration
	RateLimitPerMin int
	CacheSweepEvery time.Duration
	GuardMaxEvents  int

	// Worker
	WorkerSweepSchedule string
	SweepBatchSize      int

	// Google Sheets export; disabled when GoogleSpreadsheetID is empty
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Logging
	LogFormat string
	LogLevel  string
}

// Load reads .env when present, then the environment.
func Load() *Config {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/smartfinance.db"),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "smartfinance"),
		AMQPFeedbackQueue: getEnv("AMQP_FEEDBACK_QUEUE", "feedback"),
		AMQPExportQueue:   getEnv("AMQP_EXPORT_QUEUE", "export_transactions"),

		AnalysisBaseURL:   getEnv("ANALYSIS_BASE_URL", "http://localhost:5000"),
		AdvisoryThreshold: getEnvFloat("ADVISORY_THRESHOLD", 0.5),
		AdvisoryTimeout:   getEnvDuration("ADVISORY_TIMEOUT", 8*time.Second),
		FeedbackTimeout:   getEnvDuration("FEEDBACK_TIMEOUT", 10*time.Second),
		ScoreCacheSize:    getEnvInt("SCORE_CACHE_SIZE", 256),
		ScoreCacheTTL:     getEnvDuration("SCORE_CACHE_TTL", 10*time.Minute),

		SessionTTL:      getEnvDuration("SESSION_TTL", 24*time.Hour),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CacheSweepEvery: getEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
		GuardMaxEvents:  getEnvInt("GUARD_MAX_EVENTS", 100),

		WorkerSweepSchedule: getEnv("WORKER_SWEEP_SCHEDULE", "@every 1m"),
		SweepBatchSize:      getEnvInt("SWEEP_BATCH_SIZE", 20),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendMemory, BackendSQLite))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPFeedbackQueue == "" || c.AMQPExportQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		} else if c.AMQPFeedbackQueue == c.AMQPExportQueue {
			errors = append(errors, fmt.Sprintf("AMQP feedback and export queues must differ, both are '%s'", c.AMQPFeedbackQueue))
		}
	}

	if c.AnalysisBaseURL != "" {
		if parsedURL, err := url.Parse(c.AnalysisBaseURL); err != nil || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid analysis base URL '%s'", c.AnalysisBaseURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid analysis base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.AdvisoryThreshold < 0 || c.AdvisoryThreshold > 1 {
		errors = append(errors, fmt.Sprintf("invalid advisory threshold %v: must be between 0 and 1", c.AdvisoryThreshold))
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"advisory timeout", c.AdvisoryTimeout},
		{"feedback timeout", c.FeedbackTimeout},
	} {
		if t.d < time.Second || t.d > 2*time.Minute {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be between 1s and 2m", t.name, t.d))
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMin))
	}

	if _, err := cron.ParseStandard(c.WorkerSweepSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid worker sweep schedule '%s': %v", c.WorkerSweepSchedule, err))
	}
	if c.SweepBatchSize < 1 || c.SweepBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sweep batch size %d: must be between 1 and 1000", c.SweepBatchSize))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
