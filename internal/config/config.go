// Package config provides configuration management for plantops.
// Configurations are loaded from TOML files with XDG-compliant paths and
// may be overridden from the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Logging       LoggingConfig       `toml:"logging"`
	Locking       LockingConfig       `toml:"locking"`
	Notifications NotificationsConfig `toml:"notifications"`
	Manufacturing ManufacturingConfig `toml:"manufacturing"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig controls SQLite database settings.
type DatabaseConfig struct {
	Path                string `toml:"path"`
	BusyTimeoutMS       int    `toml:"busy_timeout_ms"`
	BackupIntervalHours int    `toml:"backup_interval_hours"`
	BackupRetentionDays int    `toml:"backup_retention_days"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level LogLevel `toml:"level"`
	File  string   `toml:"file"`
}

// LogLevel defines logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LockBackend selects the lock implementation guarding MO transitions.
type LockBackend string

const (
	LockBackendLocal LockBackend = "local"
	LockBackendRedis LockBackend = "redis"
)

// LockingConfig controls per-order locking.
type LockingConfig struct {
	Backend       LockBackend `toml:"backend"`
	RedisAddr     string      `toml:"redis_addr"`
	RedisPassword string      `toml:"redis_password"`
	RedisDB       int         `toml:"redis_db"`
	TTL           Duration    `toml:"ttl"`
	RetryInterval Duration    `toml:"retry_interval"`
	RetryCount    int         `toml:"retry_count"`
}

// NotificationBackend selects where alerts are delivered.
type NotificationBackend string

const (
	NotificationBackendStore  NotificationBackend = "store"
	NotificationBackendPubSub NotificationBackend = "pubsub"
	NotificationBackendBoth   NotificationBackend = "both"
)

// NotificationsConfig controls alert delivery and recipient selection.
type NotificationsConfig struct {
	Backend          NotificationBackend `toml:"backend"`
	PubSubProjectID  string              `toml:"pubsub_project_id"`
	PubSubTopic      string              `toml:"pubsub_topic"`
	ShortageRoles    []string            `toml:"shortage_roles"`
	QCRejectionRoles []string            `toml:"qc_rejection_roles"`
	ShipmentRoles    []string            `toml:"shipment_roles"`
}

// ManufacturingConfig controls manufacturing order numbering and governance.
type ManufacturingConfig struct {
	MONumberPrefix         string `toml:"mo_number_prefix"`
	RestrictClosedDeletion bool   `toml:"restrict_closed_deletion"`
}

// Duration is a time.Duration that reads and writes as a TOML string ("30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Locking.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("locking: %w", err))
	}
	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	if c.Manufacturing.MONumberPrefix == "" {
		errs = append(errs, errors.New("manufacturing: mo_number_prefix is required"))
	}

	return errors.Join(errs...)
}

// Validate checks that the server configuration is valid.
func (s *ServerConfig) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if s.ReadTimeout.Duration < 0 || s.WriteTimeout.Duration < 0 {
		errs = append(errs, errors.New("timeouts must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks that the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	var errs []error

	if d.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if d.BusyTimeoutMS < 0 {
		errs = append(errs, errors.New("busy_timeout_ms must be non-negative"))
	}
	if d.BackupIntervalHours < 0 {
		errs = append(errs, errors.New("backup_interval_hours must be non-negative"))
	}
	if d.BackupRetentionDays < 0 {
		errs = append(errs, errors.New("backup_retention_days must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks that the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return fmt.Errorf("invalid log level: %s", l.Level)
	}
}

// Validate checks that the locking configuration is valid.
func (l *LockingConfig) Validate() error {
	var errs []error

	switch l.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if l.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %s", l.Backend))
	}

	if l.TTL.Duration <= 0 {
		errs = append(errs, errors.New("ttl must be positive"))
	}
	if l.RetryCount < 0 {
		errs = append(errs, errors.New("retry_count must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks that the notifications configuration is valid.
func (n *NotificationsConfig) Validate() error {
	var errs []error

	switch n.Backend {
	case NotificationBackendStore:
	case NotificationBackendPubSub, NotificationBackendBoth:
		if n.PubSubProjectID == "" || n.PubSubTopic == "" {
			errs = append(errs, errors.New("pubsub_project_id and pubsub_topic are required for pubsub delivery"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %s", n.Backend))
	}

	for _, roles := range [][]string{n.ShortageRoles, n.QCRejectionRoles, n.ShipmentRoles} {
		for _, r := range roles {
			if !knownCapabilities[r] {
				errs = append(errs, fmt.Errorf("unknown capability: %s", r))
			}
		}
	}

	return errors.Join(errs...)
}

var knownCapabilities = map[string]bool{
	"admin":               true,
	"hr":                  true,
	"manufacture_manager": true,
	"inventory_manager":   true,
	"purchasing":          true,
	"cfo":                 true,
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Path:                "plantops.db",
			BusyTimeoutMS:       5000,
			BackupIntervalHours: 24,
			BackupRetentionDays: 14,
		},
		Logging: LoggingConfig{
			Level: LogLevelInfo,
		},
		Locking: LockingConfig{
			Backend:       LockBackendLocal,
			RedisAddr:     "localhost:6379",
			TTL:           Duration{30 * time.Second},
			RetryInterval: Duration{100 * time.Millisecond},
			RetryCount:    20,
		},
		Notifications: NotificationsConfig{
			Backend:          NotificationBackendStore,
			PubSubTopic:      "plantops-notifications",
			ShortageRoles:    []string{"manufacture_manager", "purchasing", "admin"},
			QCRejectionRoles: []string{"admin", "manufacture_manager"},
			ShipmentRoles:    []string{"inventory_manager", "manufacture_manager"},
		},
		Manufacturing: ManufacturingConfig{
			MONumberPrefix: "MO",
		},
	}
}
