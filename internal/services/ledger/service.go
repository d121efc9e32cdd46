// Package ledger provides the inventory ledger: the append-only transaction
// log and the current_stock counters it summarizes.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/database"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/util"
	"github.com/plantops/plantops/internal/validate"
)

// Service provides stock movement operations.
type Service struct {
	db          *sql.DB
	catalog     *repository.CatalogRepository
	inventory   *repository.InventoryRepository
	idGenerator *util.IDGenerator
	clock       util.Clock
}

// NewService creates a new ledger service.
func NewService(db *sql.DB, clock util.Clock) *Service {
	return &Service{
		db:          db,
		catalog:     repository.NewCatalogRepository(db),
		inventory:   repository.NewInventoryRepository(db),
		idGenerator: util.NewIDGenerator(),
		clock:       clock,
	}
}

// ============================================================================
// DEDUCT
// ============================================================================

// Deduct removes stock in its own transaction. See DeductTx.
func (s *Service) Deduct(ctx context.Context, e Entry) (*Result, error) {
	var res *Result
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		res, err = s.DeductTx(ctx, tx, e)
		return err
	})
	return res, err
}

// DeductTx clamps stock at zero and appends an out row for the requested
// quantity. When clamping happens an adjustment row records the shortfall so
// the ledger still reconciles with the counter. A repeated deduction for the
// same reference and item is a no-op.
func (s *Service) DeductTx(ctx context.Context, tx *sql.Tx, e Entry) (*Result, error) {
	if err := validate.Struct("inventory deduction", e); err != nil {
		return nil, err
	}

	current, err := s.catalog.GetStock(ctx, tx, e.Kind, e.ItemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	applied, err := s.inventory.Append(ctx, tx, s.row(e, models.TransactionTypeOut, e.Quantity, now))
	if err != nil {
		return nil, err
	}
	if !applied {
		slog.Debug("deduction already recorded",
			"reference_type", e.ReferenceType, "reference_id", e.ReferenceID, "item_id", e.ItemID)
		return &Result{Before: current, After: current}, nil
	}

	after := current.Sub(e.Quantity)
	shortfall := decimal.Zero
	if after.IsNegative() {
		shortfall = after.Neg()
		after = decimal.Zero

		if _, err := s.inventory.Append(ctx, tx, s.row(e, models.TransactionTypeAdjustment, shortfall, now)); err != nil {
			return nil, err
		}
	}

	if err := s.catalog.SetStock(ctx, tx, e.Kind, e.ItemID, after, now); err != nil {
		return nil, err
	}

	if shortfall.IsPositive() {
		slog.Warn("deduction clamped at zero",
			"item_kind", e.Kind, "item_id", e.ItemID,
			"requested", e.Quantity.String(), "shortfall", shortfall.String())
	}

	return &Result{Applied: true, Before: current, After: after, Shortfall: shortfall}, nil
}

// ============================================================================
// REPLENISH
// ============================================================================

// Replenish adds stock in its own transaction. See ReplenishTx.
func (s *Service) Replenish(ctx context.Context, e Entry) (*Result, error) {
	var res *Result
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		res, err = s.ReplenishTx(ctx, tx, e)
		return err
	})
	return res, err
}

// ReplenishTx adds stock and appends an in row. A repeated replenishment for
// the same reference and item is a no-op.
func (s *Service) ReplenishTx(ctx context.Context, tx *sql.Tx, e Entry) (*Result, error) {
	if err := validate.Struct("inventory replenishment", e); err != nil {
		return nil, err
	}

	current, err := s.catalog.GetStock(ctx, tx, e.Kind, e.ItemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	applied, err := s.inventory.Append(ctx, tx, s.row(e, models.TransactionTypeIn, e.Quantity, now))
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Before: current, After: current}, nil
	}

	after := current.Add(e.Quantity)
	if err := s.catalog.SetStock(ctx, tx, e.Kind, e.ItemID, after, now); err != nil {
		return nil, err
	}

	return &Result{Applied: true, Before: current, After: after}, nil
}

// ============================================================================
// ADJUST
// ============================================================================

// Adjust applies a signed correction in its own transaction. See AdjustTx.
func (s *Service) Adjust(ctx context.Context, a Adjustment) (*Result, error) {
	var res *Result
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		res, err = s.AdjustTx(ctx, tx, a)
		return err
	})
	return res, err
}

// AdjustTx appends an adjustment row carrying the signed delta. Unlike
// deductions, an adjustment that would drive stock below zero is rejected.
func (s *Service) AdjustTx(ctx context.Context, tx *sql.Tx, a Adjustment) (*Result, error) {
	if a.ReferenceType == "" {
		a.ReferenceType = models.ReferenceStockAdjustment
	}
	if err := validate.Struct("stock adjustment", a); err != nil {
		return nil, err
	}

	current, err := s.catalog.GetStock(ctx, tx, a.Kind, a.ItemID)
	if err != nil {
		return nil, err
	}

	after := current.Add(a.Delta)
	if after.IsNegative() {
		return nil, &models.ValidationError{
			Entity:  "stock adjustment",
			Field:   "delta",
			Message: fmt.Sprintf("would drive %s %s stock to %s", a.Kind, a.ItemID, after),
		}
	}

	now := s.clock.Now()
	e := Entry{
		Kind:          a.Kind,
		ItemID:        a.ItemID,
		ReferenceType: a.ReferenceType,
		ReferenceID:   a.ReferenceID,
		Note:          a.Note,
		CreatedBy:     a.CreatedBy,
	}
	applied, err := s.inventory.Append(ctx, tx, s.row(e, models.TransactionTypeAdjustment, a.Delta, now))
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Result{Before: current, After: current}, nil
	}

	if err := s.catalog.SetStock(ctx, tx, a.Kind, a.ItemID, after, now); err != nil {
		return nil, err
	}

	slog.Info("stock adjusted",
		"item_kind", a.Kind, "item_id", a.ItemID, "delta", a.Delta.String(), "stock", after.String())

	return &Result{Applied: true, Before: current, After: after}, nil
}

// ============================================================================
// QUERIES
// ============================================================================

// Reconcile compares the ledger balance of an item against its counter.
func (s *Service) Reconcile(ctx context.Context, kind models.ItemKind, itemID string) (*models.Reconciliation, error) {
	if !kind.Valid() {
		return nil, &models.ValidationError{Entity: "reconciliation", Field: "item_kind", Message: fmt.Sprintf("unknown value %q", kind)}
	}

	rec := &models.Reconciliation{ItemKind: kind, ItemID: itemID}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := s.catalog.GetStock(ctx, tx, kind, itemID)
		if err != nil {
			return err
		}
		balance, err := s.inventory.Balance(ctx, tx, kind, itemID)
		if err != nil {
			return err
		}
		rec.CurrentStock = current
		rec.LedgerBalance = balance
		rec.Drift = current.Sub(balance)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !rec.Balanced() {
		slog.Warn("stock counter drifted from ledger",
			"item_kind", kind, "item_id", itemID, "drift", rec.Drift.String())
	}
	return rec, nil
}

// History retrieves ledger rows with filtering and pagination.
func (s *Service) History(ctx context.Context, filter models.TransactionFilter, page models.Pagination) (*models.TransactionList, error) {
	return s.inventory.List(ctx, filter, page)
}

// ForReference retrieves every row written for one reference.
func (s *Service) ForReference(ctx context.Context, refType, refID string) ([]*models.InventoryTransaction, error) {
	return s.inventory.ListByReference(ctx, nil, refType, refID)
}

func (s *Service) row(e Entry, typ models.TransactionType, qty decimal.Decimal, at time.Time) *models.InventoryTransaction {
	return &models.InventoryTransaction{
		ID:            s.idGenerator.NewID(),
		Type:          typ,
		Quantity:      qty,
		ItemKind:      e.Kind,
		ItemID:        e.ItemID,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		Notes:         e.Note,
		CreatedBy:     e.CreatedBy,
		CreatedAt:     at,
	}
}
