// Package quality provides the quality control gate between finished
// production and finished-goods stock.
package quality

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/lock"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/services/ledger"
	"github.com/plantops/plantops/internal/services/reservations"
	"github.com/plantops/plantops/internal/util"
)

const defaultLockTTL = 30 * time.Second

// Service provides quality control operations.
type Service struct {
	db           *sql.DB
	records      *repository.QualityRepository
	orders       *repository.ManufacturingRepository
	ledger       *ledger.Service
	reservations *reservations.Service
	locker       lock.Locker
	lockTTL      time.Duration
	dispatcher   *notify.Dispatcher
	clock        util.Clock
}

// NewService creates a new quality service.
func NewService(db *sql.DB, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = util.SystemClock{}
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker(0)
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}

	return &Service{
		db:           db,
		records:      repository.NewQualityRepository(db),
		orders:       repository.NewManufacturingRepository(db),
		ledger:       ledger.NewService(db, opts.Clock),
		reservations: reservations.NewService(db, opts.Clock),
		locker:       opts.Locker,
		lockTTL:      opts.LockTTL,
		dispatcher:   opts.Dispatcher,
		clock:        opts.Clock,
	}
}

// Accept accepts a record under review. The order's reservations for the
// record's product complete. Build-to-stock output is booked into finished
// goods; output of orders linked to a sales order ships directly. The order
// closes once every one of its records is accepted.
func (s *Service) Accept(ctx context.Context, id, inspectorID, notes string) (*Decision, error) {
	d, err := s.decide(ctx, id, models.QCStatusAccepted, models.MOStatusClosed, func(tx *sql.Tx, rec *models.QualityControlRecord, mo *models.ManufacturingOrder, now time.Time) (*Decision, error) {
		rec.Status = models.QCStatusAccepted
		rec.Notes = notes
		if err := s.record(ctx, tx, rec, inspectorID, now); err != nil {
			return nil, err
		}

		if _, err := s.reservations.CompleteForMOTx(ctx, tx, mo.ID, rec.ProductID); err != nil {
			return nil, err
		}

		d := &Decision{Record: rec, Order: mo}
		if mo.BuildToStock() {
			if _, err := s.ledger.ReplenishTx(ctx, tx, ledger.Entry{
				Kind:          models.ItemKindProduct,
				ItemID:        rec.ProductID,
				Quantity:      rec.Quantity,
				ReferenceType: models.ReferenceQualityControl,
				ReferenceID:   rec.ID,
				Note:          fmt.Sprintf("QC accepted for %s", mo.MONumber),
				CreatedBy:     rec.InspectorID,
			}); err != nil {
				return nil, err
			}
			d.Restocked = true
		}

		progress, err := s.records.Progress(ctx, tx, mo.ID)
		if err != nil {
			return nil, err
		}
		d.Progress = progress

		if progress.AllAccepted() {
			if err := s.moveOrder(ctx, tx, mo, models.MOStatusClosed, now); err != nil {
				return nil, err
			}
			slog.Info("manufacturing order closed",
				"mo_id", mo.ID, "mo_number", mo.MONumber,
				"from", models.MOStatusUnderQC, "to", mo.Status)
		}

		slog.Info("quality control accepted",
			"qc_id", rec.ID, "mo_id", mo.ID, "product_id", rec.ProductID,
			"accepted", progress.Accepted, "total", progress.Total, "restocked", d.Restocked)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Reject rejects a record under review and moves its order to qc_rejected.
// Stock and reservations are left untouched; rejected output is handled
// outside the engine.
func (s *Service) Reject(ctx context.Context, id, inspectorID, reason string) (*Decision, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &models.ValidationError{Entity: "quality control record", Field: "rejection_reason", Message: "is required"}
	}

	d, err := s.decide(ctx, id, models.QCStatusRejected, models.MOStatusQCRejected, func(tx *sql.Tx, rec *models.QualityControlRecord, mo *models.ManufacturingOrder, now time.Time) (*Decision, error) {
		rec.Status = models.QCStatusRejected
		rec.RejectionReason = &reason
		if err := s.record(ctx, tx, rec, inspectorID, now); err != nil {
			return nil, err
		}
		if err := s.moveOrder(ctx, tx, mo, models.MOStatusQCRejected, now); err != nil {
			return nil, err
		}

		progress, err := s.records.Progress(ctx, tx, mo.ID)
		if err != nil {
			return nil, err
		}

		slog.Info("quality control rejected",
			"qc_id", rec.ID, "mo_id", mo.ID, "mo_number", mo.MONumber,
			"from", models.MOStatusUnderQC, "to", mo.Status)
		return &Decision{Record: rec, Order: mo, Progress: progress}, nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, notify.KindQCRejection, models.Notification{
		Title:         fmt.Sprintf("QC rejected for %s", d.Order.MONumber),
		Message:       fmt.Sprintf("%s units of product %s failed inspection: %s", d.Record.Quantity, d.Record.ProductID, reason),
		Severity:      models.SeverityCritical,
		ReferenceType: models.ReferenceQualityControl,
		ReferenceID:   d.Record.ID,
	})

	return d, nil
}

type decideFunc func(tx *sql.Tx, rec *models.QualityControlRecord, mo *models.ManufacturingOrder, now time.Time) (*Decision, error)

// decide loads a record and its order under the order's lock and runs fn in
// one transaction once both are in a decidable state.
func (s *Service) decide(ctx context.Context, id string, target models.QCStatus, moTarget models.MOStatus, fn decideFunc) (*Decision, error) {
	rec, err := s.records.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	var d *Decision
	err = lock.With(ctx, s.locker, lock.MOKey(rec.MOID), s.lockTTL, func() error {
		return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			rec, err := s.records.Get(ctx, tx, id)
			if err != nil {
				return err
			}
			if rec.Status.Terminal() {
				return &models.TransitionError{
					Entity:    "quality control record",
					ID:        rec.ID,
					Current:   string(rec.Status),
					Requested: string(target),
				}
			}

			mo, err := s.orders.Get(ctx, tx, rec.MOID)
			if err != nil {
				return err
			}
			if mo.Status != models.MOStatusUnderQC {
				return &models.TransitionError{
					Entity:    "manufacturing order",
					ID:        mo.ID,
					Current:   string(mo.Status),
					Requested: string(moTarget),
				}
			}

			d, err = fn(tx, rec, mo, s.clock.Now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) record(ctx context.Context, tx *sql.Tx, rec *models.QualityControlRecord, inspectorID string, now time.Time) error {
	if inspectorID != "" {
		rec.InspectorID = &inspectorID
	}
	rec.InspectedAt = &now
	rec.UpdatedAt = now

	ok, err := s.records.Decide(ctx, tx, rec)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ConflictError{Entity: "quality control record", ID: rec.ID, Reason: "decided concurrently"}
	}
	return nil
}

func (s *Service) moveOrder(ctx context.Context, tx *sql.Tx, mo *models.ManufacturingOrder, to models.MOStatus, now time.Time) error {
	ok, err := s.orders.Transition(ctx, tx, mo.ID, models.MOStatusUnderQC, to, nil, nil, now)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ConflictError{Entity: "manufacturing order", ID: mo.ID, Reason: "status changed concurrently"}
	}
	mo.Status = to
	mo.UpdatedAt = now
	return nil
}

// ============================================================================
// QUERIES
// ============================================================================

// Get retrieves a record by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.QualityControlRecord, error) {
	return s.records.Get(ctx, nil, id)
}

// ListForMO retrieves an order's records and inspection progress.
func (s *Service) ListForMO(ctx context.Context, moID string) (*Inspection, error) {
	if _, err := s.orders.Get(ctx, nil, moID); err != nil {
		return nil, err
	}

	records, err := s.records.ListByMO(ctx, nil, moID)
	if err != nil {
		return nil, err
	}
	progress, err := s.records.Progress(ctx, nil, moID)
	if err != nil {
		return nil, err
	}
	return &Inspection{Records: records, Progress: progress}, nil
}
