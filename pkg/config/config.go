package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
)

// Session backend names accepted in config.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Session  SessionConfig  `json:"session"`
	Status   StatusConfig   `json:"status,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// TelegramConfig configures the Telegram binding.
type TelegramConfig struct {
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// AllowFromIDs parses the allow list into numeric user IDs.
func (c TelegramConfig) AllowFromIDs() ([]int64, error) {
	if len(c.AllowFrom) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(c.AllowFrom))
	for _, value := range c.AllowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram.allow_from entry %q is not a user id: %w", value, err)
		}
		ids = append(ids, id)
	}

	return slices.Clip(ids), nil
}

// SessionConfig selects where per-user conversation state persists.
type SessionConfig struct {
	Backend  string `json:"backend"`
	Path     string `json:"path,omitempty"`
	URI      string `json:"uri,omitempty"`
	Database string `json:"database,omitempty"`
}

// StatusConfig configures the optional HTTP health and readiness endpoints.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// LoadConfig resolves config.json, unmarshals it, and applies environment
// overrides and defaults.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}
}

// applyDefaults fills omitted settings with working values.
func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if strings.TrimSpace(cfg.Session.Backend) == "" {
		cfg.Session.Backend = BackendMemory
	}
	if cfg.Session.Backend == BackendSQLite && strings.TrimSpace(cfg.Session.Path) == "" {
		cfg.Session.Path = "recurry.db"
	}
	if cfg.Session.Backend == BackendMongo && strings.TrimSpace(cfg.Session.Database) == "" {
		cfg.Session.Database = "recurry"
	}
}

func (cfg *Config) validate() error {
	switch cfg.Session.Backend {
	case BackendMemory, BackendSQLite, BackendMongo:
	default:
		return fmt.Errorf("session.backend must be %s, %s, or %s, got %q",
			BackendMemory, BackendSQLite, BackendMongo, cfg.Session.Backend)
	}

	if cfg.Session.Backend == BackendMongo && strings.TrimSpace(cfg.Session.URI) == "" {
		return fmt.Errorf("session.uri is required for the %s backend", BackendMongo)
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is RECURRY_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("RECURRY_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("RECURRY_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
