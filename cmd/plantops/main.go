// plantops: production and inventory engine for a make-to-order plant.
//
// Serves the manufacturing, quality control, sales and inventory ledger
// operations over an HTTP API backed by SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plantops/plantops/internal/api"
	"github.com/plantops/plantops/internal/app"
	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/database/seed"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// shutdownGrace bounds in-flight requests after a signal when no shutdown
// timeout is configured.
const shutdownGrace = 10 * time.Second

type options struct {
	configPath  string
	migrateOnly bool
	seedData    bool
	backupOnly  bool
	debugMode   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.migrateOnly, "migrate-only", false, "Run migrations and exit")
	flag.BoolVar(&opts.seedData, "seed", false, "Generate demo catalog data and exit")
	flag.BoolVar(&opts.backupOnly, "backup", false, "Write a database backup and exit")
	flag.BoolVar(&opts.debugMode, "debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("plantops version %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, cfgPath, err := config.Load(opts.configPath, true)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	closeLog, err := setupLogging(cfg, opts.debugMode)
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Info("plantops starting",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cfgPath,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		slog.Info("closing database")
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	if opts.migrateOnly {
		slog.Info("migrations complete, exiting")
		return nil
	}

	if opts.backupOnly {
		path, err := db.Backup(ctx)
		if err != nil {
			return fmt.Errorf("backing up database: %w", err)
		}
		slog.Info("backup written", "path", path)
		return nil
	}

	if opts.seedData {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err == nil && count > 0 {
			slog.Warn("database already contains products, skipping seed generation", "count", count)
			return nil
		}
		if err := seed.NewGenerator(db.DB, seed.DefaultConfig()).Generate(ctx); err != nil {
			return fmt.Errorf("generating seed data: %w", err)
		}
		return nil
	}

	a, err := app.New(ctx, cfg, db, app.Deps{})
	if err != nil {
		return fmt.Errorf("wiring application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("error closing application", "error", err)
		}
	}()

	return serve(ctx, cfg.Server, api.NewRouter(a))
}

func setupLogging(cfg *config.Config, debug bool) (func(), error) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case config.LogLevelDebug:
			logLevel = slog.LevelDebug
		case config.LogLevelWarn:
			logLevel = slog.LevelWarn
		case config.LogLevelError:
			logLevel = slog.LevelError
		}
	}

	logPath, err := config.EnsureLogDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	closeFn := func() {}
	var handler slog.Handler
	if logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		closeFn = func() { logFile.Close() }
		handler = slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	dbPath, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring data directory: %w", err)
	}

	backupDir, err := config.BackupDir(dbPath)
	if err != nil {
		slog.Warn("failed to create backup directory", "error", err)
		backupDir = ""
	}

	if _, err := os.Stat(dbPath); err == nil {
		report, err := database.AttemptRecovery(ctx, dbPath, backupDir)
		if err != nil {
			slog.Error("database recovery failed",
				"path", dbPath,
				"steps", len(report.Steps),
			)
			return nil, fmt.Errorf("database recovery failed: %w", err)
		}

		switch report.Result {
		case database.RecoveryFromBackup:
			slog.Warn("database restored from backup",
				"backup", report.BackupUsed, "preserved", report.Preserved)
		case database.RecoverySuccess:
			slog.Debug("database integrity verified")
		}
	}

	db, err := database.Open(dbPath, &cfg.Database, backupDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	migrator, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}

	result, err := migrator.MigrateUp(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(result.Applied) > 0 {
		slog.Info("applied migrations",
			"count", len(result.Applied),
			"to_version", result.TargetVersion,
		)
	}

	return db, nil
}

func serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	grace := cfg.ShutdownTimeout.Duration
	if grace <= 0 {
		grace = shutdownGrace
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	slog.Info("plantops shutdown complete")
	return nil
}
