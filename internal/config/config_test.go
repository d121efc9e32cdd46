package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Empty addr", func(c *Config) { c.Server.Addr = "" }, "addr is required"},
		{"Empty db path", func(c *Config) { c.Database.Path = "" }, "path is required"},
		{"Bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"Bad lock backend", func(c *Config) { c.Locking.Backend = "etcd" }, "invalid backend"},
		{"Redis without addr", func(c *Config) {
			c.Locking.Backend = LockBackendRedis
			c.Locking.RedisAddr = ""
		}, "redis_addr is required"},
		{"Zero ttl", func(c *Config) { c.Locking.TTL = Duration{} }, "ttl must be positive"},
		{"PubSub without project", func(c *Config) { c.Notifications.Backend = NotificationBackendPubSub }, "pubsub_project_id"},
		{"Unknown role", func(c *Config) { c.Notifications.ShortageRoles = []string{"janitor"} }, "unknown capability: janitor"},
		{"Empty prefix", func(c *Config) { c.Manufacturing.MONumberPrefix = "" }, "mo_number_prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDBPath, "/var/lib/plantops/plant.db")
	t.Setenv(EnvRedisAddr, "redis:6379")
	t.Setenv(EnvRestrictDelete, "true")

	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/plantops/plant.db" {
		t.Errorf("expected db path override, got %s", cfg.Database.Path)
	}
	if cfg.Locking.Backend != LockBackendRedis || cfg.Locking.RedisAddr != "redis:6379" {
		t.Errorf("expected redis locking at redis:6379, got %s at %s", cfg.Locking.Backend, cfg.Locking.RedisAddr)
	}
	if !cfg.Manufacturing.RestrictClosedDeletion {
		t.Error("expected closed deletion to be restricted")
	}

	t.Run("Bad bool", func(t *testing.T) {
		t.Setenv(EnvRestrictDelete, "sometimes")
		if err := ApplyEnv(Default()); err == nil {
			t.Error("expected error for unparsable bool")
		}
	})
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plantops.toml")

	content := `
[server]
addr = ":9090"
shutdown_timeout = "3s"

[locking]
ttl = "45s"

[manufacturing]
mo_number_prefix = "WO"
restrict_closed_deletion = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, loadedFrom, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loadedFrom != path {
		t.Errorf("expected path %s, got %s", path, loadedFrom)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout.Duration != 3*time.Second {
		t.Errorf("expected shutdown timeout 3s, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Locking.TTL.Duration != 45*time.Second {
		t.Errorf("expected ttl 45s, got %s", cfg.Locking.TTL)
	}
	if cfg.Manufacturing.MONumberPrefix != "WO" || !cfg.Manufacturing.RestrictClosedDeletion {
		t.Errorf("unexpected manufacturing config %+v", cfg.Manufacturing)
	}
	if cfg.Database.Path != "plantops.db" {
		t.Errorf("expected default db path to survive, got %s", cfg.Database.Path)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(path, []byte("[server\naddr = "), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, _, err := Load(path, false)
	if err == nil {
		t.Fatal("expected parse error")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Path != path {
		t.Errorf("expected LoadError for %s, got %v", path, err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plantops.toml")

	cfg := Default()
	cfg.Notifications.ShipmentRoles = []string{"admin"}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := loadFromFile(path)
	if err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}
	if len(got.Notifications.ShipmentRoles) != 1 || got.Notifications.ShipmentRoles[0] != "admin" {
		t.Errorf("expected shipment roles [admin], got %v", got.Notifications.ShipmentRoles)
	}
	if got.Locking.RetryInterval.Duration != 100*time.Millisecond {
		t.Errorf("expected retry interval 100ms, got %s", got.Locking.RetryInterval)
	}
}
