package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("RECURRY_CONFIG", path)
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	writeConfig(t, `{
	  "telegram": {"token": "123:abc", "allow_from": ["7", "8"]},
	  "session": {"backend": "sqlite", "path": "bot.db"},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("telegram.token = %q, want %q", cfg.Telegram.Token, "123:abc")
	}
	if cfg.Session.Backend != BackendSQLite || cfg.Session.Path != "bot.db" {
		t.Fatalf("session = %+v, want sqlite/bot.db", cfg.Session)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("RECURRY_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	writeConfig(t, `{"telegram": {"token": "123:abc"}}`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Session.Backend != BackendMemory {
		t.Fatalf("session.backend = %q, want %q", cfg.Session.Backend, BackendMemory)
	}
}

func TestLoadConfigSQLiteDefaultPath(t *testing.T) {
	writeConfig(t, `{"session": {"backend": "sqlite"}}`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Session.Path != "recurry.db" {
		t.Fatalf("session.path = %q, want default", cfg.Session.Path)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	writeConfig(t, `{"session": {"backend": "redis"}}`)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown session backend")
	}
}

func TestLoadConfigRequiresMongoURI(t *testing.T) {
	writeConfig(t, `{"session": {"backend": "mongo"}}`)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for mongo backend without uri")
	}
}

func TestLoadConfigStatusSection(t *testing.T) {
	writeConfig(t, `{
	  "telegram": {"token": "123:abc"},
	  "status": {"enabled": true, "host": "127.0.0.1", "port": 9100}
	}`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if !cfg.Status.Enabled {
		t.Fatal("status.enabled = false, want true")
	}
	if cfg.Status.Host != "127.0.0.1" || cfg.Status.Port != 9100 {
		t.Fatalf("status = %+v", cfg.Status)
	}
}

func TestEnvOverrides(t *testing.T) {
	writeConfig(t, `{"telegram": {"token": "file-token", "allow_from": ["1"]}}`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_ALLOW_FROM", " 7 , , 8 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("telegram.token = %q, want env override", cfg.Telegram.Token)
	}
	ids, err := cfg.Telegram.AllowFromIDs()
	if err != nil {
		t.Fatalf("AllowFromIDs error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 8 {
		t.Fatalf("allow ids = %v, want [7 8]", ids)
	}
}

func TestAllowFromIDsRejectsGarbage(t *testing.T) {
	cfg := TelegramConfig{AllowFrom: []string{"7", "bob"}}
	if _, err := cfg.AllowFromIDs(); err == nil {
		t.Fatal("expected error for non-numeric allow_from entry")
	}
}
