// Package app wires the engine services, lock backend and notification
// sinks selected by configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/plantops/plantops/internal/access"
	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/lock"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/services/bom"
	"github.com/plantops/plantops/internal/services/catalog"
	"github.com/plantops/plantops/internal/services/ledger"
	"github.com/plantops/plantops/internal/services/manufacturing"
	"github.com/plantops/plantops/internal/services/quality"
	"github.com/plantops/plantops/internal/services/reservations"
	"github.com/plantops/plantops/internal/services/sales"
	"github.com/plantops/plantops/internal/util"
)

// App holds every engine service over one database.
type App struct {
	DB            *database.DB
	Clock         util.Clock
	Catalog       *catalog.Service
	BOM           *bom.Resolver
	Ledger        *ledger.Service
	Reservations  *reservations.Service
	Manufacturing *manufacturing.Service
	Quality       *quality.Service
	Sales         *sales.Service
	Access        *access.Directory
	Notifications *repository.NotificationRepository

	closers []func() error
}

// Deps overrides collaborators normally built from configuration.
type Deps struct {
	Clock    util.Clock
	Locker   lock.Locker
	Notifier notify.Notifier
}

// New builds the application. Zero fields in deps are built from cfg.
func New(ctx context.Context, cfg *config.Config, db *database.DB, deps Deps) (*App, error) {
	a := &App{DB: db}

	if deps.Clock == nil {
		deps.Clock = util.SystemClock{}
	}

	if deps.Locker == nil {
		locker, closeLocker, err := lock.New(ctx, cfg.Locking)
		if err != nil {
			return nil, fmt.Errorf("creating locker: %w", err)
		}
		deps.Locker = locker
		a.closers = append(a.closers, closeLocker)
	}

	if deps.Notifier == nil {
		notifier, closeNotifier, err := notify.New(ctx, cfg.Notifications, db.DB, deps.Clock)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating notifier: %w", err)
		}
		deps.Notifier = notifier
		a.closers = append(a.closers, closeNotifier)
	}

	a.Clock = deps.Clock
	a.Access = access.NewDirectory(db.DB, deps.Clock)
	dispatcher := notify.NewDispatcher(a.Access, deps.Notifier, cfg.Notifications)

	a.Catalog = catalog.NewService(db.DB, deps.Clock)
	a.BOM = bom.NewResolver(db.DB)
	a.Ledger = ledger.NewService(db.DB, deps.Clock)
	a.Reservations = reservations.NewService(db.DB, deps.Clock)
	a.Manufacturing = manufacturing.NewService(db.DB, manufacturing.Options{
		Clock:      deps.Clock,
		Locker:     deps.Locker,
		LockTTL:    cfg.Locking.TTL.Duration,
		Dispatcher: dispatcher,
		Config:     cfg.Manufacturing,
	})
	a.Quality = quality.NewService(db.DB, quality.Options{
		Clock:      deps.Clock,
		Locker:     deps.Locker,
		LockTTL:    cfg.Locking.TTL.Duration,
		Dispatcher: dispatcher,
	})
	a.Sales = sales.NewService(db.DB, sales.Options{
		Clock:         deps.Clock,
		Dispatcher:    dispatcher,
		Manufacturing: a.Manufacturing,
	})
	a.Notifications = repository.NewNotificationRepository(db.DB)

	slog.Debug("application wired",
		"lock_backend", cfg.Locking.Backend, "notification_backend", cfg.Notifications.Backend)
	return a, nil
}

// Close releases the lock backend and notification sinks. The database is
// owned by the caller.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
