// Package reservations maintains product assignments and the derived
// assigned_quantity counter. Recompute is the only writer of that counter,
// and every mutation here calls it inside the mutating transaction.
package reservations

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/util"
	"github.com/plantops/plantops/internal/validate"
)

// Service provides reservation operations.
type Service struct {
	db           *sql.DB
	reservations *repository.ReservationRepository
	catalog      *repository.CatalogRepository
	idGenerator  *util.IDGenerator
	clock        util.Clock
}

// NewService creates a new reservation service.
func NewService(db *sql.DB, clock util.Clock) *Service {
	return &Service{
		db:           db,
		reservations: repository.NewReservationRepository(db),
		catalog:      repository.NewCatalogRepository(db),
		idGenerator:  util.NewIDGenerator(),
		clock:        clock,
	}
}

// ============================================================================
// RECOMPUTE
// ============================================================================

// Recompute rewrites a product's assigned quantity in its own transaction.
func (s *Service) Recompute(ctx context.Context, productID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		total, err = s.RecomputeTx(ctx, tx, productID)
		return err
	})
	return total, err
}

// RecomputeTx sums the open reservations of a product and writes the total
// to assigned_quantity. The read and the write share tx.
func (s *Service) RecomputeTx(ctx context.Context, tx *sql.Tx, productID string) (decimal.Decimal, error) {
	total, err := s.reservations.OpenQuantity(ctx, tx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.catalog.SetAssignedQuantity(ctx, tx, productID, total, s.clock.Now()); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Service) recomputeAll(ctx context.Context, tx *sql.Tx, productIDs []string) error {
	for _, id := range productIDs {
		if _, err := s.RecomputeTx(ctx, tx, id); err != nil {
			return fmt.Errorf("recomputing product %s: %w", id, err)
		}
	}
	return nil
}

// ============================================================================
// CREATE / STATUS
// ============================================================================

// Create inserts a pending reservation and recomputes its product.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	var res *models.Reservation
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		res, err = s.CreateTx(ctx, tx, input)
		return err
	})
	return res, err
}

// CreateTx is Create inside the caller's transaction.
func (s *Service) CreateTx(ctx context.Context, tx *sql.Tx, input CreateInput) (*models.Reservation, error) {
	if err := validate.Struct("reservation", input); err != nil {
		return nil, err
	}

	if _, err := s.catalog.GetProduct(ctx, tx, input.ProductID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	res := &models.Reservation{
		ID:          s.idGenerator.NewID(),
		ProductID:   input.ProductID,
		QuotationID: input.QuotationID,
		MOID:        input.MOID,
		Quantity:    input.Quantity,
		Status:      models.ReservationStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.reservations.Create(ctx, tx, res); err != nil {
		return nil, fmt.Errorf("creating reservation: %w", err)
	}
	if _, err := s.RecomputeTx(ctx, tx, res.ProductID); err != nil {
		return nil, err
	}

	return res, nil
}

// SetStatus moves a reservation to status and recomputes its product.
func (s *Service) SetStatus(ctx context.Context, id string, status models.ReservationStatus) (*models.Reservation, error) {
	var res *models.Reservation
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		res, err = s.SetStatusTx(ctx, tx, id, status)
		return err
	})
	return res, err
}

// SetStatusTx is SetStatus inside the caller's transaction. Setting the
// current status again is a no-op.
func (s *Service) SetStatusTx(ctx context.Context, tx *sql.Tx, id string, status models.ReservationStatus) (*models.Reservation, error) {
	if !status.Valid() {
		return nil, &models.ValidationError{Entity: "reservation", Field: "status", Message: fmt.Sprintf("unknown value %q", status)}
	}

	res, err := s.reservations.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.Status == status {
		return res, nil
	}
	if !res.Status.CanTransition(status) {
		return nil, &models.TransitionError{
			Entity:    "reservation",
			ID:        id,
			Current:   string(res.Status),
			Requested: string(status),
		}
	}

	now := s.clock.Now()
	ok, err := s.reservations.UpdateStatus(ctx, tx, id, res.Status, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.ConflictError{Entity: "reservation", ID: id, Reason: "status changed concurrently"}
	}
	if _, err := s.RecomputeTx(ctx, tx, res.ProductID); err != nil {
		return nil, err
	}

	res.Status = status
	res.UpdatedAt = now
	return res, nil
}

// LinkMOTx records the manufacturing order fulfilling a reservation.
func (s *Service) LinkMOTx(ctx context.Context, tx *sql.Tx, id, moID string) error {
	return s.reservations.SetMO(ctx, tx, id, moID, s.clock.Now())
}

// ============================================================================
// BULK TRANSITIONS
// ============================================================================

// ReleaseAllForQuotation completes every open reservation of a quotation.
func (s *Service) ReleaseAllForQuotation(ctx context.Context, quotationID string) (*Release, error) {
	var rel *Release
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		rel, err = s.ReleaseAllForQuotationTx(ctx, tx, quotationID)
		return err
	})
	return rel, err
}

// ReleaseAllForQuotationTx is ReleaseAllForQuotation inside tx.
func (s *Service) ReleaseAllForQuotationTx(ctx context.Context, tx *sql.Tx, quotationID string) (*Release, error) {
	return s.move(ctx, tx, models.ReservationFilter{QuotationID: quotationID},
		models.OpenReservationStatuses, models.ReservationStatusCompleted)
}

// ReleaseAllForSalesOrder completes every open reservation under a sales
// order: those of its originating quotation and those fulfilled by MOs
// linked to it.
func (s *Service) ReleaseAllForSalesOrder(ctx context.Context, salesOrderID string) (*Release, error) {
	var rel *Release
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		rel, err = s.ReleaseAllForSalesOrderTx(ctx, tx, salesOrderID)
		return err
	})
	return rel, err
}

// ReleaseAllForSalesOrderTx is ReleaseAllForSalesOrder inside tx.
func (s *Service) ReleaseAllForSalesOrderTx(ctx context.Context, tx *sql.Tx, salesOrderID string) (*Release, error) {
	return s.move(ctx, tx, models.ReservationFilter{SalesOrderID: salesOrderID},
		models.OpenReservationStatuses, models.ReservationStatusCompleted)
}

// CompleteForMOTx completes the open reservations an MO fulfils for one
// product.
func (s *Service) CompleteForMOTx(ctx context.Context, tx *sql.Tx, moID, productID string) (*Release, error) {
	return s.move(ctx, tx, models.ReservationFilter{MOID: moID, ProductID: productID},
		models.OpenReservationStatuses, models.ReservationStatusCompleted)
}

// MoveForMOTx moves an MO's reservations from one status to another.
func (s *Service) MoveForMOTx(ctx context.Context, tx *sql.Tx, moID string, from, to models.ReservationStatus) (*Release, error) {
	return s.move(ctx, tx, models.ReservationFilter{MOID: moID}, []models.ReservationStatus{from}, to)
}

func (s *Service) move(ctx context.Context, tx *sql.Tx, filter models.ReservationFilter, from []models.ReservationStatus, to models.ReservationStatus) (*Release, error) {
	filter.Statuses = from
	open, err := s.reservations.List(ctx, tx, filter)
	if err != nil {
		return nil, err
	}

	rel := &Release{}
	if len(open) == 0 {
		return rel, nil
	}

	now := s.clock.Now()
	for _, res := range open {
		ok, err := s.reservations.UpdateStatus(ctx, tx, res.ID, res.Status, to, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &models.ConflictError{Entity: "reservation", ID: res.ID, Reason: "status changed concurrently"}
		}
		res.Status = to
		res.UpdatedAt = now
		rel.Reservations = append(rel.Reservations, res)

		if !slices.Contains(rel.Products, res.ProductID) {
			rel.Products = append(rel.Products, res.ProductID)
		}
	}

	slices.Sort(rel.Products)
	if err := s.recomputeAll(ctx, tx, rel.Products); err != nil {
		return nil, err
	}

	slog.Debug("reservations moved",
		"count", len(rel.Reservations), "to", to, "products", len(rel.Products))
	return rel, nil
}

// ============================================================================
// QUERIES
// ============================================================================

// AvailableToPromise reports current stock minus assigned quantity. The
// result may be negative.
func (s *Service) AvailableToPromise(ctx context.Context, productID string) (*Availability, error) {
	p, err := s.catalog.GetProduct(ctx, nil, productID)
	if err != nil {
		return nil, err
	}
	return &Availability{
		ProductID:        p.ID,
		CurrentStock:     p.CurrentStock,
		AssignedQuantity: p.AssignedQuantity,
		Available:        p.AvailableToPromise(),
		OverCommitted:    p.IsOverCommitted(),
	}, nil
}

// Get retrieves a reservation by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Reservation, error) {
	return s.reservations.Get(ctx, nil, id)
}

// ListForProduct retrieves every reservation against a product.
func (s *Service) ListForProduct(ctx context.Context, productID string) ([]*models.Reservation, error) {
	return s.reservations.List(ctx, nil, models.ReservationFilter{ProductID: productID})
}

// ListForQuotation retrieves every reservation made for a quotation.
func (s *Service) ListForQuotation(ctx context.Context, quotationID string) ([]*models.Reservation, error) {
	return s.reservations.List(ctx, nil, models.ReservationFilter{QuotationID: quotationID})
}

// ListForMO retrieves every reservation fulfilled by a manufacturing order.
func (s *Service) ListForMO(ctx context.Context, moID string) ([]*models.Reservation, error) {
	return s.reservations.List(ctx, nil, models.ReservationFilter{MOID: moID})
}
