package store

import (
	"fmt"
	"net/url"
)

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DefaultConfig returns sensible defaults for a local database.
func DefaultConfig() Config {
	return Config{
		Port:     5432,
		DBName:   "marketpulse",
		User:     "pulse",
		SSLMode:  "prefer",
		MaxConns: 4,
		MinConns: 1,
	}
}

// Enabled reports whether a database is configured at all.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg Config) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		sslMode,
	)
}
