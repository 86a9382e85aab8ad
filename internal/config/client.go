package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ashureev/aptitude-tutor/internal/domain"
)

// ClientConfig holds the terminal client configuration.
type ClientConfig struct {
	ProxyURL       string        `toml:"proxy_url"`
	ClientKey      string        `toml:"client_key"`
	DBPath         string        `toml:"db_path"`
	Mode           string        `toml:"mode"`
	Topic          string        `toml:"topic"`
	RequestTimeout time.Duration `toml:"-"`
	LogLevel       string        `toml:"log_level"`

	// Timeout is the TOML spelling of RequestTimeout, e.g. "2m".
	Timeout string `toml:"request_timeout"`
}

// DefaultProfilePath returns the per-user profile location.
func DefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".aptitude-tutor", "config.toml")
	}
	return filepath.Join(home, ".aptitude-tutor", "config.toml")
}

// LoadClient builds the client configuration from defaults, the TOML profile
// at profilePath (optional, missing is fine) and environment overrides, in
// that order.
func LoadClient(profilePath string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		ProxyURL:       "http://localhost:8080/v1/chat",
		DBPath:         "./data/tutor.db",
		Mode:           string(domain.ModeSolve),
		RequestTimeout: 2 * time.Minute,
		LogLevel:       "warn",
	}

	if profilePath != "" {
		if err := cfg.loadTOML(profilePath); err != nil {
			return nil, err
		}
	}

	cfg.ProxyURL = getEnv("TUTOR_PROXY_URL", cfg.ProxyURL)
	cfg.ClientKey = getEnv("TUTOR_CLIENT_KEY", cfg.ClientKey)
	cfg.DBPath = getEnv("TUTOR_DB_PATH", cfg.DBPath)
	cfg.Mode = getEnv("TUTOR_MODE", cfg.Mode)
	cfg.Topic = getEnv("TUTOR_TOPIC", cfg.Topic)
	cfg.RequestTimeout = getEnvDuration("TUTOR_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.LogLevel = getEnv("TUTOR_LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *ClientConfig) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode profile %s: %w", path, err)
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("profile request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate checks the client configuration.
func (c *ClientConfig) Validate() error {
	if c.ProxyURL == "" {
		return fmt.Errorf("TUTOR_PROXY_URL cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("TUTOR_DB_PATH cannot be empty")
	}
	if !domain.LearningMode(c.Mode).Valid() {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("TUTOR_REQUEST_TIMEOUT must be >= 0")
	}
	return nil
}

// LearningMode returns the configured starting mode.
func (c *ClientConfig) LearningMode() domain.LearningMode {
	return domain.LearningMode(c.Mode)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to warn.
func (c *ClientConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
