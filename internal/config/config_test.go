package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8081" {
		t.Fatalf("default port = %q", cfg.Port)
	}
	if cfg.DataBackend != "memory" {
		t.Fatalf("default backend = %q", cfg.DataBackend)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("default model = %q", cfg.GeminiModel)
	}
	if cfg.CoachTimeout != 15*time.Second {
		t.Fatalf("default coach timeout = %v", cfg.CoachTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", t.TempDir()+"/x.db")
	t.Setenv("COACH_TIMEOUT", "5s")
	cfg := Load()
	if cfg.Port != "9090" || cfg.DataBackend != "sqlite" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.CoachTimeout != 5*time.Second {
		t.Fatalf("coach timeout = %v", cfg.CoachTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "nope" }, "invalid port"},
		{"port range", func(c *Config) { c.Port = "70000" }, "between 1 and 65535"},
		{"bad backend", func(c *Config) { c.DataBackend = "firestore" }, "invalid data backend"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "invalid AMQP URL scheme"},
		{"amqp queue empty", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = "" }, "queue name cannot be empty"},
		{"empty model", func(c *Config) { c.GeminiModel = "" }, "model cannot be empty"},
		{"tiny timeout", func(c *Config) { c.CoachTimeout = time.Millisecond }, "at least 1 second"},
		{"empty default user", func(c *Config) { c.DefaultUserID = "" }, "default user id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q missing %q", err, tc.want)
			}
		})
	}
}
