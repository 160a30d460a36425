/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. Defaults in the struct tags below
  2. A .env file, if present (godotenv; does not override real env vars)
  3. Process environment (LEDGER_* variables)
  4. Command-line flags in cmd/server

VARIABLES:
  LEDGER_PORT              HTTP port (8080)
  LEDGER_DB_DRIVER         sqlite3 | postgres (sqlite3)
  LEDGER_DB_DSN            sqlite path or postgres URL (./data/ledger.db)
  LEDGER_LOG_LEVEL         logrus level (info)
  LEDGER_LOG_FORMAT        text | json (text)
  LEDGER_CURRENCY          ISO 4217 code for display strings (USD)
  LEDGER_RATE_LIMIT        requests/second per user, 0 disables (20)
  LEDGER_RATE_BURST        token bucket size (40)
  LEDGER_REQUEST_TIMEOUT   per-request deadline (10s)
  LEDGER_SHUTDOWN_TIMEOUT  graceful shutdown window (30s)
  LEDGER_CORS_ORIGINS      comma-separated allowed origins
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port            int           `env:"LEDGER_PORT,default=8080"`
	DBDriver        string        `env:"LEDGER_DB_DRIVER,default=sqlite3"`
	DBDSN           string        `env:"LEDGER_DB_DSN,default=./data/ledger.db"`
	LogLevel        string        `env:"LEDGER_LOG_LEVEL,default=info"`
	LogFormat       string        `env:"LEDGER_LOG_FORMAT,default=text"`
	Currency        string        `env:"LEDGER_CURRENCY,default=USD"`
	RateLimit       float64       `env:"LEDGER_RATE_LIMIT,default=20"`
	RateBurst       int           `env:"LEDGER_RATE_BURST,default=40"`
	RequestTimeout  time.Duration `env:"LEDGER_REQUEST_TIMEOUT,default=10s"`
	ShutdownTimeout time.Duration `env:"LEDGER_SHUTDOWN_TIMEOUT,default=30s"`
	CORSOrigins     string        `env:"LEDGER_CORS_ORIGINS"`
}

// Load reads envFile (if it exists) into the environment and decodes the
// LEDGER_* variables. An empty envFile skips the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that the decoder cannot.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("LEDGER_DB_DRIVER: unsupported driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("LEDGER_DB_DSN: must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("LEDGER_PORT: %d out of range", c.Port)
	}
	if money.GetCurrency(c.Currency) == nil {
		return fmt.Errorf("LEDGER_CURRENCY: unknown currency %q", c.Currency)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LEDGER_LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LEDGER_LOG_FORMAT: must be text or json, got %q", c.LogFormat)
	}
	if c.RateLimit < 0 {
		return errors.New("LEDGER_RATE_LIMIT: must not be negative")
	}
	return nil
}

// Origins splits CORSOrigins. Nil means the router default.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
