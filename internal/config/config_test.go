package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

const configTestPrefix = "config:config_test"

var envVars = []string{
	"COMMS_ENABLED", "COMMS_URL", "SERVICE_NAME",
	"BRIDGE_SUBJECT", "BRIDGE_EVENT_SUBJECT", "BRIDGE_EVENTS_FAILURES_ONLY",
	"BRIDGE_LOCALE", "BRIDGE_HEADER_PREFIX", "BRIDGE_MANIFEST_FILE", "BRIDGE_STRICT_JSON",
	"BRIDGE_REQUEST_TIMEOUT", "AUDIT_ENABLED", "DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH", "AUDIT_RETENTION", "AUDIT_PRUNE_SCHEDULE",
	"BRIDGE_HTTP_ADDR", "HTTP_PORT", "HEALTH_CHECK_TIMEOUT",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "SERVICE_VERSION", "LOG_LEVEL",
}

// clearEnv unsets every variable the config reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envVars {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", configTestPrefix, err)
	}

	if !cfg.COMMSEnabled || cfg.COMMSURL != "nats://127.0.0.1:4222" || cfg.COMMSName != "json-bridge" {
		t.Errorf("%s - unexpected COMMS defaults %v %q %q", configTestPrefix, cfg.COMMSEnabled, cfg.COMMSURL, cfg.COMMSName)
	}
	if cfg.Subject != "bridge.invoke" || cfg.EventSubject != "" || cfg.EventsFailuresOnly {
		t.Errorf("%s - unexpected subject defaults %q %q", configTestPrefix, cfg.Subject, cfg.EventSubject)
	}
	if cfg.Locale != "en-US" || cfg.HeaderPrefix != "X-Param-" || cfg.StrictJSON {
		t.Errorf("%s - unexpected binding defaults %q %q", configTestPrefix, cfg.Locale, cfg.HeaderPrefix)
	}
	if cfg.RequestTimeout != 25*time.Second || cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("%s - unexpected timeouts %v %v", configTestPrefix, cfg.RequestTimeout, cfg.HealthCheckTimeout)
	}
	if cfg.AuditEnabled || cfg.RunMigrations || cfg.MigrationPath != "" || cfg.AuditRetention != 720*time.Hour || cfg.AuditPruneSchedule != "@hourly" {
		t.Errorf("%s - unexpected audit defaults", configTestPrefix)
	}
	if cfg.Addr() != ":8080" || cfg.LogLevel != "info" || cfg.ServiceVersion != "dev" {
		t.Errorf("%s - unexpected server defaults %q %q", configTestPrefix, cfg.Addr(), cfg.LogLevel)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("%s - defaults must validate: %v", configTestPrefix, err)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"COMMS_ENABLED":          "false",
		"BRIDGE_SUBJECT":         "acme.bridge",
		"BRIDGE_LOCALE":          "de_DE",
		"BRIDGE_HEADER_PREFIX":   "X-Arg-",
		"BRIDGE_STRICT_JSON":     "true",
		"BRIDGE_REQUEST_TIMEOUT": "10s",
		"AUDIT_ENABLED":          "true",
		"DATABASE_URL":           "postgres://test@localhost/test",
		"BRIDGE_HTTP_ADDR":       "127.0.0.1:9090",
		"LOG_LEVEL":              "debug",
	}
	for key, val := range overrides {
		t.Setenv(key, val)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", configTestPrefix, err)
	}
	if cfg.COMMSEnabled || cfg.Subject != "acme.bridge" || cfg.HeaderPrefix != "X-Arg-" || !cfg.StrictJSON {
		t.Errorf("%s - overrides not applied: %+v", configTestPrefix, cfg)
	}
	if cfg.RequestTimeout != 10*time.Second || !cfg.AuditEnabled || cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("%s - overrides not applied: %+v", configTestPrefix, cfg)
	}
	tag, err := cfg.LocaleTag()
	if err != nil || tag != language.MustParse("de-DE") {
		t.Errorf("%s - LocaleTag = %v, %v", configTestPrefix, tag, err)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("%s - SlogLevel = %v", configTestPrefix, cfg.SlogLevel())
	}
}

func TestLoadConfig_BadValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_REQUEST_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Errorf("%s - expected error for malformed duration", configTestPrefix)
	}
}

func TestValidateForServe(t *testing.T) {
	valid := func() *Config {
		return &Config{
			COMMSEnabled: true, Subject: "bridge.invoke", Locale: "en-US", HeaderPrefix: "X-Param-",
			RequestTimeout: time.Second, HealthCheckTimeout: time.Second, HTTPPort: 8080,
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"timeout", func(c *Config) { c.RequestTimeout = 0 }, "BRIDGE_REQUEST_TIMEOUT"},
		{"health timeout", func(c *Config) { c.HealthCheckTimeout = -1 }, "HEALTH_CHECK_TIMEOUT"},
		{"port", func(c *Config) { c.HTTPPort = 70000 }, "HTTP_PORT"},
		{"prefix", func(c *Config) { c.HeaderPrefix = " " }, "BRIDGE_HEADER_PREFIX"},
		{"locale", func(c *Config) { c.Locale = "x" }, "BRIDGE_LOCALE"},
		{"subject", func(c *Config) { c.Subject = "" }, "BRIDGE_SUBJECT"},
		{"audit without database", func(c *Config) { c.AuditEnabled = true }, "DATABASE_URL"},
		{"prune schedule", func(c *Config) {
			c.AuditEnabled, c.DatabaseURL, c.AuditRetention, c.AuditPruneSchedule = true, "postgres://x", time.Hour, "every now and then"
		}, "AUDIT_PRUNE_SCHEDULE"},
		{"retention", func(c *Config) {
			c.AuditEnabled, c.DatabaseURL, c.AuditPruneSchedule = true, "postgres://x", "@daily"
		}, "AUDIT_RETENTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.ValidateForServe()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("%s - expected error mentioning %s, got %v", configTestPrefix, tt.want, err)
			}
		})
	}
	if err := valid().ValidateForServe(); err != nil {
		t.Errorf("%s - unexpected error: %v", configTestPrefix, err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "info": slog.LevelInfo, "": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (&Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("%s - SlogLevel(%q) = %v, want %v", configTestPrefix, in, got, want)
		}
	}
}
