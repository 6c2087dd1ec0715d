package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int

	// Backend selection
	DataBackend  string
	DatabaseURL  string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Owner used when requests carry none, and by the worker sweep
	OwnerID    string
	OwnerEmail string

	// Import
	ImportPendingThreshold int

	// Open Finance
	OpenFinanceRedirectURL string
	OpenFinanceCacheTTL    time.Duration

	// Listing
	TransactionsPageSize int

	// Worker
	SyncStaleAfter    time.Duration
	SyncSweepInterval time.Duration
}

var validBackends = []string{"memory", "sqlite", "postgres"}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", "sqlite")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finboard.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "openfinance_sync"),

		OwnerID:    getEnv("FINBOARD_OWNER_ID", ""),
		OwnerEmail: getEnv("FINBOARD_OWNER_EMAIL", ""),

		ImportPendingThreshold: getEnvInt("IMPORT_PENDING_THRESHOLD", 70),

		OpenFinanceRedirectURL: getEnv("OPENFINANCE_REDIRECT_URL", "http://localhost:8080/api/openfinance"),
		OpenFinanceCacheTTL:    getEnvDuration("OPENFINANCE_CACHE_TTL", 10*time.Minute),

		TransactionsPageSize: getEnvInt("TRANSACTIONS_PAGE_SIZE", 50),

		SyncStaleAfter:    getEnvDuration("SYNC_STALE_AFTER", 6*time.Hour),
		SyncSweepInterval: getEnvDuration("SYNC_SWEEP_INTERVAL", 30*time.Minute),
	}

	return cfg
}

// DSN returns the connection string for the selected relational backend.
func (c *Config) DSN() string {
	if c.DataBackend == "postgres" {
		return c.DatabaseURL
	}
	return c.SQLiteDBPath
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ImportPendingThreshold < 0 || c.ImportPendingThreshold > 100 {
		errors = append(errors, fmt.Sprintf("invalid import pending threshold %d: must be between 0 and 100", c.ImportPendingThreshold))
	}

	if u, err := url.Parse(c.OpenFinanceRedirectURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid Open Finance redirect URL '%s': must be absolute", c.OpenFinanceRedirectURL))
	}
	if c.OpenFinanceCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid Open Finance cache TTL %v: must be at least 1 second", c.OpenFinanceCacheTTL))
	}

	if c.TransactionsPageSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid transactions page size %d: must be at least 1", c.TransactionsPageSize))
	} else if c.TransactionsPageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid transactions page size %d: must be at most 1000", c.TransactionsPageSize))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SyncStaleAfter < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync stale age %v: must be at least 1 minute", c.SyncStaleAfter))
	}
	// Zero disables the periodic sweep.
	if c.SyncSweepInterval != 0 && c.SyncSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync sweep interval %v: must be at least 1 second", c.SyncSweepInterval))
	} else if c.SyncSweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync sweep interval %v: must be at most 24 hours", c.SyncSweepInterval))
	}

	// Return combined errors
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
