package config

import (
	"testing"
	"time"

	"github.com/edushield/edushield/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("Expected default session TTL 24h, got %v", cfg.Auth.SessionTTL)
	}
	if !cfg.Auth.PermissionCache.Enabled {
		t.Error("Expected permission cache enabled by default")
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected default info log level, got %v", cfg.Observability.LogLevel)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EDUSHIELD_PORT", "3000")
	t.Setenv("EDUSHIELD_LOG_LEVEL", "debug")
	t.Setenv("EDUSHIELD_SESSION_TTL", "2h")
	t.Setenv("EDUSHIELD_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("EDUSHIELD_PERMISSION_CACHE_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Expected port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Expected debug log level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Expected session TTL 2h, got %v", cfg.Auth.SessionTTL)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Expected two trimmed origins, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Auth.PermissionCache.Enabled {
		t.Error("Expected permission cache disabled")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Server:   loadServerConfig(),
			Postgres: loadPostgresConfig(),
			Redis:    loadRedisConfig(),
			Auth:     loadAuthConfig(),
		}
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Expected valid config, got %v", err)
		}
	})

	t.Run("same server and health port rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for colliding ports")
		}
	})

	t.Run("missing postgres URL rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Postgres.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for missing postgres URL")
		}
	})

	t.Run("out of range bcrypt cost rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.BcryptCost = 99
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for bcrypt cost 99")
		}
	})

	t.Run("zero cache TTL rejected when enabled", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.PermissionCache.TTL = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for zero cache TTL")
		}
	})
}
