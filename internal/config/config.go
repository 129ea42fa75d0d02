// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	DataPath    string        // base directory for the store and journal
	ClientsPath string        // per-tenant transport auth directories
	GatewayURL  string        // messaging bridge base URL
	QRWait      time.Duration // how long HTTP start waits for a handshake code
	StopGrace   time.Duration // bounded grace before forced transport teardown
	SessionTTL  time.Duration // orphaned session records older than this are reaped
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		DataPath:    getEnv("DATA_PATH", "./data"),
		ClientsPath: getEnv("CLIENTS_PATH", "./clients"),
		GatewayURL:  getEnv("GATEWAY_URL", "ws://localhost:8089"),
		QRWait:      getEnvDuration("QR_WAIT", 30*time.Second),
		StopGrace:   getEnvDuration("STOP_GRACE", 10*time.Second),
		SessionTTL:  getEnvDuration("SESSION_TTL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DataPath == "" {
		return fmt.Errorf("DATA_PATH cannot be empty")
	}
	if c.ClientsPath == "" {
		return fmt.Errorf("CLIENTS_PATH cannot be empty")
	}
	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL cannot be empty")
	}
	if c.QRWait <= 0 {
		return fmt.Errorf("QR_WAIT must be positive")
	}
	if c.StopGrace <= 0 {
		return fmt.Errorf("STOP_GRACE must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// StorePath is the JSON document backing the persistence store.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataPath, "database.json")
}

// JournalPath is the SQLite database backing the message journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataPath, "messages.db")
}

// ClientPath is the local storage directory for one tenant's transport.
func (c *Config) ClientPath(tenantID string) string {
	return filepath.Join(c.ClientsPath, tenantID)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
