// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP run-trigger queue (optional; empty URL disables the queue)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Budget provider
	ProviderBaseURL      string
	ProviderTokenURL     string
	ProviderClientID     string
	ProviderClientSecret string
	ProviderTimeout      time.Duration

	// LLM
	LLMModel         string
	LLMFallbackModel string
	LLMMaxTokens     int

	// Mail
	MailAPIKey        string
	MailFrom          string
	DefaultRecipients []string

	// Snapshot mirror (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Scheduler
	SendWeekday   time.Weekday
	SendHour      int
	CheckInterval time.Duration

	// Misc
	CronSecret      string
	DefaultTimezone string
	DefaultUserID   string
	FrontendURL     string
	PeriodMonths    int
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetdigest.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetdigest"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "digest_runs"),

		ProviderBaseURL:      getEnv("PROVIDER_BASE_URL", "https://api.ynab.com/v1"),
		ProviderTokenURL:     getEnv("PROVIDER_TOKEN_URL", "https://app.ynab.com/oauth/token"),
		ProviderClientID:     getEnv("PROVIDER_CLIENT_ID", ""),
		ProviderClientSecret: getEnv("PROVIDER_CLIENT_SECRET", ""),
		ProviderTimeout:      getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),

		LLMModel:         getEnv("LLM_MODEL", "gemini-2.0-flash"),
		LLMFallbackModel: getEnv("LLM_FALLBACK_MODEL", "gemini-1.5-flash"),
		LLMMaxTokens:     getEnvInt("LLM_MAX_TOKENS", 1024),

		MailAPIKey: getEnv("MAIL_API_KEY", ""),
		MailFrom:   getEnv("MAIL_FROM", ""),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Snapshots"),

		SendWeekday:   time.Weekday(getEnvInt("SEND_WEEKDAY", int(time.Saturday))),
		SendHour:      getEnvInt("SEND_HOUR", 9),
		CheckInterval: getEnvDuration("CHECK_INTERVAL", 15*time.Minute),

		CronSecret:      getEnv("CRON_SECRET", ""),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),
		DefaultUserID:   getEnv("DEFAULT_USER_ID", "default"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		PeriodMonths:    getEnvInt("PERIOD_MONTHS", 6),
	}

	if v := getEnv("MAIL_RECIPIENTS", ""); v != "" {
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				cfg.DefaultRecipients = append(cfg.DefaultRecipients, r)
			}
		}
	}

	return cfg
}

// MailConfigured reports whether scheduled delivery can run at all. When
// false the scheduler stays idle but manual runs with skipEmail still work.
func (c *Config) MailConfigured() bool {
	return c.MailAPIKey != "" && c.MailFrom != ""
}

// Validate checks the configuration and returns every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ProviderBaseURL == "" {
		errs = append(errs, "provider base URL cannot be empty")
	}
	if c.ProviderTimeout < time.Second || c.ProviderTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid provider timeout %v: must be between 1s and 1m", c.ProviderTimeout))
	}

	if c.MailAPIKey != "" && c.MailFrom == "" {
		errs = append(errs, "MAIL_FROM is required when MAIL_API_KEY is set")
	}

	if c.SendWeekday < time.Sunday || c.SendWeekday > time.Saturday {
		errs = append(errs, fmt.Sprintf("invalid send weekday %d: must be 0-6", c.SendWeekday))
	}
	if c.SendHour < 0 || c.SendHour > 23 {
		errs = append(errs, fmt.Sprintf("invalid send hour %d: must be 0-23", c.SendHour))
	}

	if c.PeriodMonths < 1 || c.PeriodMonths > 24 {
		errs = append(errs, fmt.Sprintf("invalid period months %d: must be between 1 and 24", c.PeriodMonths))
	}

	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid default timezone '%s': %v", c.DefaultTimezone, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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
