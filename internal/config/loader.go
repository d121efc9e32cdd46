package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	// DefaultConfigFileName is the standard configuration file name.
	DefaultConfigFileName = "plantops.toml"

	// XDGConfigSubdir is the subdirectory under XDG_CONFIG_HOME for plantops.
	XDGConfigSubdir = "plantops"
)

// Environment variables applied on top of the file configuration.
const (
	EnvDBPath          = "PLANTOPS_DB_PATH"
	EnvLogLevel        = "PLANTOPS_LOG_LEVEL"
	EnvHTTPAddr        = "PLANTOPS_HTTP_ADDR"
	EnvRedisAddr       = "PLANTOPS_REDIS_ADDR"
	EnvPubSubProjectID = "PUBSUB_PROJECT_ID"
	EnvPubSubTopic     = "PLANTOPS_PUBSUB_TOPIC"
	EnvRestrictDelete  = "PLANTOPS_RESTRICT_CLOSED_DELETION"
)

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load resolves configuration in order of precedence:
// 1. Explicit path (if provided)
// 2. XDG config path (~/.config/plantops/plantops.toml)
// 3. Current working directory (./plantops.toml)
// 4. Default configuration (written out if createDefault is true)
//
// A .env file in the working directory is loaded first when present, and
// environment overrides are applied last. Returns the configuration and the
// path it was loaded from.
func Load(explicitPath string, createDefault bool) (*Config, string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", &LoadError{Path: ".env", Err: err}
	}

	cfg, path, err := loadFile(explicitPath, createDefault)
	if err != nil {
		return nil, "", err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, "", &LoadError{Path: "environment", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", &LoadError{Path: path, Err: err}
	}

	return cfg, path, nil
}

func loadFile(explicitPath string, createDefault bool) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := loadFromFile(explicitPath)
		if err != nil {
			return nil, "", &LoadError{Path: explicitPath, Err: err}
		}
		return cfg, explicitPath, nil
	}

	xdgPath := xdgConfigPath()
	if xdgPath != "" && fileExists(xdgPath) {
		cfg, err := loadFromFile(xdgPath)
		if err != nil {
			return nil, "", &LoadError{Path: xdgPath, Err: err}
		}
		return cfg, xdgPath, nil
	}

	cwdPath := filepath.Join(".", DefaultConfigFileName)
	if fileExists(cwdPath) {
		cfg, err := loadFromFile(cwdPath)
		if err != nil {
			return nil, "", &LoadError{Path: cwdPath, Err: err}
		}
		return cfg, cwdPath, nil
	}

	if !createDefault {
		return nil, "", errors.New("no configuration file found; searched: " + xdgPath + ", " + cwdPath)
	}

	cfg := Default()

	defaultPath := cwdPath
	if xdgPath != "" {
		if err := os.MkdirAll(filepath.Dir(xdgPath), 0750); err == nil {
			defaultPath = xdgPath
		}
	}

	if err := Save(cfg, defaultPath); err != nil {
		// Continue with in-memory default if we can't write
		return cfg, "", nil
	}

	return cfg, defaultPath, nil
}

// loadFromFile parses a TOML file over the defaults so missing keys keep
// sensible values.
func loadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = LogLevel(v)
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Locking.RedisAddr = v
		cfg.Locking.Backend = LockBackendRedis
	}
	if v := os.Getenv(EnvPubSubProjectID); v != "" {
		cfg.Notifications.PubSubProjectID = v
	}
	if v := os.Getenv(EnvPubSubTopic); v != "" {
		cfg.Notifications.PubSubTopic = v
	}
	if v := os.Getenv(EnvRestrictDelete); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRestrictDelete, err)
		}
		cfg.Manufacturing.RestrictClosedDeletion = b
	}
	return nil
}

// Save writes a configuration to a TOML file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header := "# plantops configuration\n#\n# Auto-generated. Environment variables (PLANTOPS_*) override these values.\n\n"
	if _, err := f.WriteString(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}

	return nil
}

// xdgConfigPath returns the XDG-compliant config file path, or "" when
// neither XDG_CONFIG_HOME nor HOME is available.
func xdgConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, XDGConfigSubdir, DefaultConfigFileName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", XDGConfigSubdir, DefaultConfigFileName)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EnsureDataDir resolves the database path, placing relative paths under
// $XDG_DATA_HOME/plantops.
func EnsureDataDir(cfg *Config) (string, error) {
	dbPath := cfg.Database.Path

	if filepath.IsAbs(dbPath) {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
		return dbPath, nil
	}

	dataDir := xdgDataDir()
	if dataDir == "" {
		return dbPath, nil
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		// Fall back to current directory
		return dbPath, nil
	}
	return filepath.Join(dataDir, dbPath), nil
}

// BackupDir returns the directory for database backups, next to the database.
func BackupDir(dbPath string) (string, error) {
	backupDir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(backupDir, 0750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	return backupDir, nil
}

// EnsureLogDir creates the log directory if needed and returns the log file
// path, or "" when file logging is disabled.
func EnsureLogDir(cfg *Config) (string, error) {
	logPath := cfg.Logging.File
	if logPath == "" {
		return "", nil
	}

	dir := filepath.Dir(logPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("creating log directory: %w", err)
		}
	}
	return logPath, nil
}

func xdgDataDir() string {
	xdgData := os.Getenv("XDG_DATA_HOME")
	if xdgData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgData = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(xdgData, XDGConfigSubdir)
}
