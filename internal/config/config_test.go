package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, expected %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Organization.JoinCodeTTLMinutes != 60 {
		t.Errorf("JoinCodeTTLMinutes = %d, expected 60", cfg.Organization.JoinCodeTTLMinutes)
	}
	if cfg.Organization.JoinCodeLength != 6 {
		t.Errorf("JoinCodeLength = %d, expected 6", cfg.Organization.JoinCodeLength)
	}
	if cfg.App.ResetTokenTTLMinutes != 60 {
		t.Errorf("ResetTokenTTLMinutes = %d, expected 60", cfg.App.ResetTokenTTLMinutes)
	}
	if cfg.Search.Enabled {
		t.Error("search should be disabled by default")
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"host only", "redis://localhost:6379", "localhost:6379", "", 0},
		{"with password", "redis://:secret@cache:6380", "cache:6380", "secret", 0},
		{"with user and db", "redis://user:pw@cache:6379/3", "cache:6379", "pw", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.parseRedisURL(tt.url)

			if cfg.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, expected %q", cfg.Redis.Addr, tt.addr)
			}
			if cfg.Redis.Password != tt.password {
				t.Errorf("Password = %q, expected %q", cfg.Redis.Password, tt.password)
			}
			if cfg.Redis.DB != tt.db {
				t.Errorf("DB = %d, expected %d", cfg.Redis.DB, tt.db)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("expected default server port")
	}
}

func TestLoad_FileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"9090\"\norganization:\n  join_code_ttl_minutes: 5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != "9090" && os.Getenv("SERVER_PORT") == "" {
		t.Errorf("Server.Port = %q, expected %q", cfg.Server.Port, "9090")
	}
	if cfg.Organization.JoinCodeTTLMinutes != 5 {
		t.Errorf("JoinCodeTTLMinutes = %d, expected 5", cfg.Organization.JoinCodeTTLMinutes)
	}
	if cfg.Organization.JoinCodeLength != 6 {
		t.Errorf("JoinCodeLength = %d, expected default 6", cfg.Organization.JoinCodeLength)
	}
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("SEARCH_HOST", "http://search:7700")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("APP_BASE_URL", "https://bugs.example.com/")
	t.Setenv("CORS_ORIGINS", "https://bugs.example.com/, http://localhost:5173")

	cfg := DefaultConfig()
	cfg.overrideFromEnv()

	if !cfg.Search.Enabled || cfg.Search.Host != "http://search:7700" {
		t.Errorf("search override not applied: %+v", cfg.Search)
	}
	if cfg.Mail.Port != 2525 {
		t.Errorf("Mail.Port = %d, expected 2525", cfg.Mail.Port)
	}
	if cfg.App.BaseURL != "https://bugs.example.com" {
		t.Errorf("App.BaseURL = %q, expected trailing slash trimmed", cfg.App.BaseURL)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://bugs.example.com" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}
