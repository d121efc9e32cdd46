// Package manufacturing owns the manufacturing order lifecycle:
//
//	planned -> in_progress -> under_qc -> closed | qc_rejected
//	planned | in_progress -> cancelled
//
// Every transition runs under the order's lock and inside one database
// transaction that re-reads the order and guards the UPDATE on its status.
package manufacturing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/lock"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/services/bom"
	"github.com/plantops/plantops/internal/services/ledger"
	"github.com/plantops/plantops/internal/services/reservations"
	"github.com/plantops/plantops/internal/util"
	"github.com/plantops/plantops/internal/validate"
)

const (
	defaultPrefix  = "MO"
	defaultLockTTL = 30 * time.Second
)

// Service provides manufacturing order operations.
type Service struct {
	db           *sql.DB
	orders       *repository.ManufacturingRepository
	quality      *repository.QualityRepository
	catalog      *repository.CatalogRepository
	sales        *repository.SalesRepository
	resolver     *bom.Resolver
	ledger       *ledger.Service
	reservations *reservations.Service
	locker       lock.Locker
	lockTTL      time.Duration
	dispatcher   *notify.Dispatcher
	prefix       string
	restrict     bool
	idGenerator  *util.IDGenerator
	clock        util.Clock
}

// NewService creates a new manufacturing service.
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
	prefix := opts.Config.MONumberPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Service{
		db:           db,
		orders:       repository.NewManufacturingRepository(db),
		quality:      repository.NewQualityRepository(db),
		catalog:      repository.NewCatalogRepository(db),
		sales:        repository.NewSalesRepository(db),
		resolver:     bom.NewResolver(db),
		ledger:       ledger.NewService(db, opts.Clock),
		reservations: reservations.NewService(db, opts.Clock),
		locker:       opts.Locker,
		lockTTL:      opts.LockTTL,
		dispatcher:   opts.Dispatcher,
		prefix:       prefix,
		restrict:     opts.Config.RestrictClosedDeletion,
		idGenerator:  util.NewIDGenerator(),
		clock:        opts.Clock,
	}
}

// ============================================================================
// CREATE
// ============================================================================

// Create creates a planned manufacturing order. When stock does not cover
// its BOM, a shortage alert is dispatched after commit.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.ManufacturingOrder, error) {
	var mo *models.ManufacturingOrder
	var shortages []bom.Requirement

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		mo, shortages, err = s.CreateTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.NotifyShortage(ctx, mo, shortages)
	return mo, nil
}

// CreateTx creates an order inside the caller's transaction and returns the
// material shortages it faces. The caller notifies after commit.
func (s *Service) CreateTx(ctx context.Context, tx *sql.Tx, input CreateInput) (*models.ManufacturingOrder, []bom.Requirement, error) {
	if err := validate.Struct("manufacturing order", input); err != nil {
		return nil, nil, err
	}
	if input.PlannedStart != nil && input.PlannedEnd != nil && input.PlannedEnd.Before(*input.PlannedStart) {
		return nil, nil, &models.ValidationError{Entity: "manufacturing order", Field: "planned_end", Message: "must not be before planned_start"}
	}

	if err := s.checkReferences(ctx, tx, input); err != nil {
		return nil, nil, err
	}

	number, err := s.orders.NextNumber(ctx, tx, s.prefix)
	if err != nil {
		return nil, nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	now := s.clock.Now()
	mo := &models.ManufacturingOrder{
		ID:           s.idGenerator.NewID(),
		MONumber:     number,
		ProductID:    input.ProductID,
		Quantity:     input.Quantity,
		Status:       models.MOStatusPlanned,
		Priority:     priority,
		SalesOrderID: input.SalesOrderID,
		QuotationID:  input.QuotationID,
		PlannedStart: input.PlannedStart,
		PlannedEnd:   input.PlannedEnd,
		Notes:        input.Notes,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, it := range input.Items {
		mo.Items = append(mo.Items, &models.MoItem{
			ID:        s.idGenerator.NewID(),
			MOID:      mo.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Status:    models.MoItemStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := mo.Validate(); err != nil {
		return nil, nil, &models.ValidationError{Entity: "manufacturing order", Message: err.Error()}
	}
	if err := s.orders.Create(ctx, tx, mo); err != nil {
		return nil, nil, fmt.Errorf("creating manufacturing order: %w", err)
	}

	reqs, err := s.resolver.Requirements(ctx, tx, mo.ProductQuantities())
	if err != nil {
		return nil, nil, err
	}

	slog.Info("manufacturing order created",
		"mo_id", mo.ID, "mo_number", mo.MONumber,
		"product_id", mo.ProductID, "quantity", mo.Quantity.String(), "items", len(mo.Items))

	return mo, bom.Shortages(reqs), nil
}

func (s *Service) checkReferences(ctx context.Context, tx *sql.Tx, input CreateInput) error {
	if _, err := s.catalog.GetProduct(ctx, tx, input.ProductID); err != nil {
		return err
	}
	for _, it := range input.Items {
		if _, err := s.catalog.GetProduct(ctx, tx, it.ProductID); err != nil {
			return err
		}
	}
	if input.SalesOrderID != nil {
		if _, err := s.sales.GetSalesOrder(ctx, tx, *input.SalesOrderID); err != nil {
			return err
		}
	}
	if input.QuotationID != nil {
		if _, err := s.sales.GetQuotation(ctx, tx, *input.QuotationID); err != nil {
			return err
		}
	}
	return nil
}

// NotifyShortage alerts shortage recipients about an order's uncovered
// materials. It never fails.
func (s *Service) NotifyShortage(ctx context.Context, mo *models.ManufacturingOrder, shortages []bom.Requirement) {
	if mo == nil || len(shortages) == 0 {
		return
	}

	parts := make([]string, 0, len(shortages))
	for _, r := range shortages {
		parts = append(parts, fmt.Sprintf("%s (%s): need %s, have %s, short %s",
			r.Material.Name, r.Material.SKU, r.Required, r.Available, r.Shortage))
	}

	s.dispatcher.Dispatch(ctx, notify.KindShortage, models.Notification{
		Title:         fmt.Sprintf("Material shortage for %s", mo.MONumber),
		Message:       strings.Join(parts, "; "),
		Severity:      models.SeverityWarning,
		ReferenceType: models.ReferenceManufacturingOrder,
		ReferenceID:   mo.ID,
	})
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// Start moves a planned order to in_progress and deducts the BOM demand of
// the primary product and every item, one out row per material. The status
// guard and the deduction share a transaction, so a retried Start fails with
// a TransitionError instead of deducting twice.
func (s *Service) Start(ctx context.Context, id string, actor *string) (*models.ManufacturingOrder, error) {
	var mo *models.ManufacturingOrder

	err := s.withOrder(ctx, id, func(tx *sql.Tx) error {
		var err error
		mo, err = s.orders.Get(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		from := mo.Status
		if err := s.transition(ctx, tx, mo, models.MOStatusInProgress, &now, nil, now); err != nil {
			return err
		}

		reqs, err := s.resolver.Requirements(ctx, tx, mo.ProductQuantities())
		if err != nil {
			return err
		}
		for _, r := range reqs {
			res, err := s.ledger.DeductTx(ctx, tx, ledger.Entry{
				Kind:          models.ItemKindRawMaterial,
				ItemID:        r.Material.ID,
				Quantity:      r.Required,
				ReferenceType: models.ReferenceManufacturingOrder,
				ReferenceID:   mo.ID,
				Note:          fmt.Sprintf("Production start %s", mo.MONumber),
				CreatedBy:     actor,
			})
			if err != nil {
				return fmt.Errorf("deducting %s: %w", r.Material.SKU, err)
			}
			if !res.Applied {
				slog.Warn("material already deducted for order",
					"mo_id", mo.ID, "raw_material_id", r.Material.ID)
			}
		}

		if err := s.orders.SetItemsStatus(ctx, tx, mo.ID, models.MoItemStatusInProgress, now); err != nil {
			return err
		}
		if _, err := s.reservations.MoveForMOTx(ctx, tx, mo.ID,
			models.ReservationStatusPending, models.ReservationStatusInProduction); err != nil {
			return err
		}

		logTransition(mo, from, "materials", len(reqs))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orders.Get(ctx, nil, id)
}

// MarkComplete moves an in_progress order to under_qc and opens one quality
// control record per produced product.
func (s *Service) MarkComplete(ctx context.Context, id string) (*Completion, error) {
	var records []*models.QualityControlRecord

	err := s.withOrder(ctx, id, func(tx *sql.Tx) error {
		mo, err := s.orders.Get(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		from := mo.Status
		if err := s.transition(ctx, tx, mo, models.MOStatusUnderQC, nil, &now, now); err != nil {
			return err
		}

		for _, pq := range mo.ProductQuantities() {
			rec := &models.QualityControlRecord{
				ID:        s.idGenerator.NewID(),
				MOID:      mo.ID,
				ProductID: pq.ProductID,
				Quantity:  pq.Quantity,
				Status:    models.QCStatusUnderReview,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.quality.Create(ctx, tx, rec); err != nil {
				return err
			}
			records = append(records, rec)
		}

		if err := s.orders.SetItemsStatus(ctx, tx, mo.ID, models.MoItemStatusCompleted, now); err != nil {
			return err
		}

		logTransition(mo, from, "qc_records", len(records))
		return nil
	})
	if err != nil {
		return nil, err
	}

	mo, err := s.orders.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &Completion{Order: mo, Records: records}, nil
}

// Cancel cancels a planned or in_progress order. Deductions already made
// stay; reservations the order had put in production return to pending.
func (s *Service) Cancel(ctx context.Context, id string) (*models.ManufacturingOrder, error) {
	err := s.withOrder(ctx, id, func(tx *sql.Tx) error {
		mo, err := s.orders.Get(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		from := mo.Status
		if err := s.transition(ctx, tx, mo, models.MOStatusCancelled, nil, nil, now); err != nil {
			return err
		}
		if _, err := s.reservations.MoveForMOTx(ctx, tx, mo.ID,
			models.ReservationStatusInProduction, models.ReservationStatusPending); err != nil {
			return err
		}

		logTransition(mo, from)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orders.Get(ctx, nil, id)
}

// Delete removes an order after writing its deletion audit in the same
// transaction. Any status may be deleted unless closed-order deletion is
// restricted by configuration.
func (s *Service) Delete(ctx context.Context, id string, actor *string, reason string) (*models.MoDeletionAudit, error) {
	var audit *models.MoDeletionAudit

	err := s.withOrder(ctx, id, func(tx *sql.Tx) error {
		mo, err := s.orders.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.restrict && mo.Status == models.MOStatusClosed {
			return &models.TransitionError{
				Entity:    "manufacturing order",
				ID:        mo.ID,
				Current:   string(mo.Status),
				Requested: "deleted",
			}
		}

		snapshot, err := json.Marshal(mo)
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}

		audit = &models.MoDeletionAudit{
			ID:        s.idGenerator.NewID(),
			MOID:      mo.ID,
			MONumber:  mo.MONumber,
			Snapshot:  string(snapshot),
			DeletedBy: actor,
			Reason:    reason,
			DeletedAt: s.clock.Now(),
		}
		if err := s.orders.InsertDeletionAudit(ctx, tx, audit); err != nil {
			return err
		}

		// Demand survives the order; it is no longer in production.
		if _, err := s.reservations.MoveForMOTx(ctx, tx, mo.ID,
			models.ReservationStatusInProduction, models.ReservationStatusPending); err != nil {
			return err
		}

		ok, err := s.orders.Delete(ctx, tx, mo.ID)
		if err != nil {
			return err
		}
		if !ok {
			return &models.ConflictError{Entity: "manufacturing order", ID: mo.ID, Reason: "deleted concurrently"}
		}

		slog.Info("manufacturing order deleted",
			"mo_id", mo.ID, "mo_number", mo.MONumber, "status", mo.Status, "reason", reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return audit, nil
}

func (s *Service) transition(ctx context.Context, tx *sql.Tx, mo *models.ManufacturingOrder, to models.MOStatus, start, end *time.Time, at time.Time) error {
	if !mo.Status.CanTransition(to) {
		return &models.TransitionError{
			Entity:    "manufacturing order",
			ID:        mo.ID,
			Current:   string(mo.Status),
			Requested: string(to),
		}
	}

	ok, err := s.orders.Transition(ctx, tx, mo.ID, mo.Status, to, start, end, at)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ConflictError{Entity: "manufacturing order", ID: mo.ID, Reason: "status changed concurrently"}
	}

	mo.Status = to
	return nil
}

// withOrder runs fn in a transaction while holding the order's lock.
func (s *Service) withOrder(ctx context.Context, id string, fn func(tx *sql.Tx) error) error {
	return lock.With(ctx, s.locker, lock.MOKey(id), s.lockTTL, func() error {
		return database.WithTx(ctx, s.db, fn)
	})
}

func logTransition(mo *models.ManufacturingOrder, from models.MOStatus, attrs ...any) {
	args := append([]any{"mo_id", mo.ID, "mo_number", mo.MONumber, "from", from, "to", mo.Status}, attrs...)
	slog.Info("manufacturing order "+transitionVerb(mo.Status), args...)
}

func transitionVerb(to models.MOStatus) string {
	switch to {
	case models.MOStatusInProgress:
		return "started"
	case models.MOStatusUnderQC:
		return "completed"
	case models.MOStatusCancelled:
		return "cancelled"
	default:
		return "moved"
	}
}

// ============================================================================
// QUERIES
// ============================================================================

// Get retrieves an order with its items.
func (s *Service) Get(ctx context.Context, id string) (*models.ManufacturingOrder, error) {
	return s.orders.Get(ctx, nil, id)
}

// List retrieves orders with filtering and pagination.
func (s *Service) List(ctx context.Context, filter models.MOFilter, page models.Pagination) (*models.MOList, error) {
	return s.orders.List(ctx, filter, page)
}

// Shortages reports the materials current stock does not cover for an
// order's full demand.
func (s *Service) Shortages(ctx context.Context, id string) ([]bom.Requirement, error) {
	mo, err := s.orders.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	reqs, err := s.resolver.Requirements(ctx, nil, mo.ProductQuantities())
	if err != nil {
		return nil, err
	}
	return bom.Shortages(reqs), nil
}

// DeletionAudits retrieves the audits recorded for a deleted order ID.
func (s *Service) DeletionAudits(ctx context.Context, id string) ([]*models.MoDeletionAudit, error) {
	return s.orders.ListDeletionAudits(ctx, id)
}
