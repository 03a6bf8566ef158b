package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends lists the accepted HOMEPAY_BACKEND values.
var Backends = []string{"memory", "sheets", "sqlite", "xlsx"}

// MailTransports lists the accepted MAIL_TRANSPORT values.
var MailTransports = []string{"log", "gmail", "queue"}

type Config struct {
	// Documents
	Backend    string
	FilePrefix string
	LayoutFile string
	// Document overrides the yearly document name derived from FilePrefix.
	Document string
	SeedFile string

	// Google
	GoogleSpreadsheetID      string
	GoogleDriveFolderID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// Local stores
	SQLiteDBPath string
	Journal      bool
	XLSXDir      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Mail
	MailTransport  string
	MailFrom       string
	MailSenderName string

	// HTTP Server
	Port               string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Worker and scheduler
	WorkerInterval    time.Duration
	WorkerBatchSize   int
	OutboxMaxAttempts int
	SchedulerInterval time.Duration

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Backend:    getEnv("HOMEPAY_BACKEND", "memory"),
		FilePrefix: getEnv("HOMEPAY_FILE_PREFIX", "Home payments"),
		LayoutFile: getEnv("HOMEPAY_LAYOUT_FILE", ""),
		Document:   getEnv("HOMEPAY_DOCUMENT", ""),
		SeedFile:   getEnv("HOMEPAY_SEED_FILE", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleDriveFolderID:      getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/homepay.db"),
		Journal:      getEnvBool("HOMEPAY_JOURNAL", false),
		XLSXDir:      getEnv("XLSX_DIR", "./data/workbooks"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "homepay"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		MailTransport:  getEnv("MAIL_TRANSPORT", "log"),
		MailFrom:       getEnv("MAIL_FROM", ""),
		MailSenderName: getEnv("MAIL_SENDER_NAME", "HomePayments"),

		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		WorkerInterval:    getEnvDuration("WORKER_INTERVAL", 30*time.Second),
		WorkerBatchSize:   getEnvInt("WORKER_BATCH_SIZE", 20),
		OutboxMaxAttempts: getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),
		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", 15*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// GoogleConfigured reports whether any Google credential source is set.
func (c *Config) GoogleConfigured() bool {
	hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
	hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
	hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
	return hasServiceAccount || (hasClient && hasToken)
}

// UsesSQLite reports whether a SQLite store must be opened, either as the
// document backend or for the journal and outbox.
func (c *Config) UsesSQLite() bool {
	return c.Backend == "sqlite" || c.Journal || c.MailTransport == "queue"
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

	if !slices.Contains(Backends, c.Backend) {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, Backends))
	}

	if strings.TrimSpace(c.FilePrefix) == "" {
		errors = append(errors, "file prefix cannot be empty")
	}

	if c.LayoutFile != "" {
		if _, err := os.Stat(c.LayoutFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("layout file does not exist: %s", c.LayoutFile))
		}
	}

	if c.SeedFile != "" {
		if c.Backend != "memory" {
			errors = append(errors, "a seed file only applies to the memory backend")
		} else if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if c.UsesSQLite() && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when the sqlite store is used")
	}

	if c.Backend == "xlsx" && c.XLSXDir == "" {
		errors = append(errors, "workbook directory cannot be empty when using xlsx backend")
	}

	// Google credentials are needed by the sheets backend and by Gmail.
	if c.Backend == "sheets" || c.MailTransport == "gmail" {
		if !c.GoogleConfigured() {
			errors = append(errors, "Google credentials are required: set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or an OAuth client and token")
		}
		for _, f := range []struct{ label, path string }{
			{"service account file", c.GoogleServiceAccountFile},
			{"OAuth client file", c.GoogleOAuthClientFile},
			{"OAuth token file", c.GoogleOAuthTokenFile},
		} {
			if f.path == "" {
				continue
			}
			if _, err := os.Stat(f.path); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google %s does not exist: %s", f.label, f.path))
			}
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

	if !slices.Contains(MailTransports, c.MailTransport) {
		errors = append(errors, fmt.Sprintf("invalid mail transport '%s': must be one of %v", c.MailTransport, MailTransports))
	}
	if c.MailFrom != "" {
		if _, err := mail.ParseAddress(c.MailFrom); err != nil {
			errors = append(errors, fmt.Sprintf("invalid sender address '%s': %v", c.MailFrom, err))
		}
	} else if c.MailTransport == "gmail" {
		errors = append(errors, "MAIL_FROM is required when using gmail transport")
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate worker configuration
	if c.WorkerBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid worker batch size %d: must be at least 1", c.WorkerBatchSize))
	} else if c.WorkerBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid worker batch size %d: must be at most 1000", c.WorkerBatchSize))
	}
	if c.OutboxMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("invalid outbox max attempts %d: must be at least 1", c.OutboxMaxAttempts))
	}

	if c.WorkerInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid worker interval %v: must be at least 1 second", c.WorkerInterval))
	} else if c.WorkerInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid worker interval %v: must be at most 24 hours", c.WorkerInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}
	if c.SchedulerInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid scheduler interval %v: must be at least 1 minute", c.SchedulerInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
