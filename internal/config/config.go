// Package config loads the service configuration from the environment.
// A .env file in the working directory is read first when present;
// variables already set in the environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort string

	DNSServer   string
	DNSTimeout  time.Duration
	DNSCacheTTL time.Duration

	SMTPTimeout    time.Duration
	SMTPPort       string
	SMTPHeloDomain string
	SMTPMailFrom   string
	SMTPMaxMXHosts int
	// SMTPMaxSessions bounds concurrent probe sessions per MX host.
	SMTPMaxSessions int

	DisposableDomains []string
	DNSBLZones        []string
	DNSBLBudget       time.Duration

	DKIMEnabled   bool
	DKIMSelectors []string

	BatchWidth  int
	BatchInput  string
	BatchOutput string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration. Files names the .env files to try; with
// none, ".env" is used. Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	cfg := Config{
		ServerPort: getEnv("SERVER_PORT", "3000"),

		DNSServer:   getEnv("DNS_SERVER", ""),
		DNSTimeout:  getEnvAsDuration("DNS_TIMEOUT", 5*time.Second),
		DNSCacheTTL: getEnvAsDuration("DNS_CACHE_TTL", 0),

		SMTPTimeout:    getEnvAsDuration("SMTP_TIMEOUT", 3*time.Second),
		SMTPPort:       getEnv("SMTP_PORT", "25"),
		SMTPHeloDomain: getEnv("SMTP_HELO_DOMAIN", "localhost"),
		SMTPMailFrom:   getEnv("SMTP_MAIL_FROM", "verify@localhost"),
		SMTPMaxMXHosts: getEnvAsInt("SMTP_MAX_MX_HOSTS", 1),

		SMTPMaxSessions: getEnvAsInt("SMTP_MAX_SESSIONS_PER_HOST", 3),

		DisposableDomains: getEnvAsList("DISPOSABLE_DOMAINS"),
		DNSBLZones:        getEnvAsList("DNSBL_ZONES"),
		DNSBLBudget:       getEnvAsDuration("DNSBL_BUDGET", 10*time.Second),

		DKIMEnabled:   getEnvAsBool("DKIM_ENABLED", false),
		DKIMSelectors: getEnvAsList("DKIM_SELECTORS"),

		BatchWidth:  getEnvAsInt("BATCH_WIDTH", 10),
		BatchInput:  getEnv("BATCH_INPUT", "email.csv"),
		BatchOutput: getEnv("BATCH_OUTPUT", "results.csv"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.ServerPort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("SERVER_PORT is not a valid port: %q", c.ServerPort)
	}
	if port, err := strconv.Atoi(c.SMTPPort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("SMTP_PORT is not a valid port: %q", c.SMTPPort)
	}
	if c.SMTPHeloDomain == "" {
		return errors.New("SMTP_HELO_DOMAIN is required")
	}
	if c.SMTPMailFrom == "" {
		return errors.New("SMTP_MAIL_FROM is required")
	}
	if c.SMTPMaxMXHosts < 1 {
		return errors.New("SMTP_MAX_MX_HOSTS must be at least 1")
	}
	if c.SMTPMaxSessions < 0 {
		return errors.New("SMTP_MAX_SESSIONS_PER_HOST must not be negative")
	}
	if c.DNSTimeout <= 0 || c.SMTPTimeout <= 0 {
		return errors.New("DNS_TIMEOUT and SMTP_TIMEOUT must be positive")
	}
	if c.BatchWidth < 1 {
		return errors.New("BATCH_WIDTH must be at least 1")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid integer %q, using default %d", valueStr, fallback)
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid duration %q, using default %s", valueStr, fallback)
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
