package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// InventoryRepository handles the append-only inventory ledger.
type InventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const transactionColumns = `id, type, quantity, item_kind, item_id,
	reference_type, reference_id, notes, created_by, created_at`

// Append inserts a ledger row unless a row with the same reference, item and
// type already exists. It reports whether the row was written.
func (r *InventoryRepository) Append(ctx context.Context, tx *sql.Tx, t *models.InventoryTransaction) (bool, error) {
	query := `
		INSERT INTO inventory_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (reference_type, reference_id, item_kind, item_id, type) DO NOTHING`

	res, err := conn(r.db, tx).ExecContext(ctx, query,
		t.ID, t.Type, t.Quantity, t.ItemKind, t.ItemID,
		t.ReferenceType, t.ReferenceID, nullableString(t.Notes),
		nullableStringPtr(t.CreatedBy), formatTime(t.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting inventory transaction: %w", err)
	}
	return affected(res)
}

// Balance folds every ledger row for an item into its net stock effect.
func (r *InventoryRepository) Balance(ctx context.Context, tx *sql.Tx, kind models.ItemKind, itemID string) (decimal.Decimal, error) {
	rows, err := conn(r.db, tx).QueryContext(ctx,
		"SELECT type, quantity FROM inventory_transactions WHERE item_kind = ? AND item_id = ?",
		kind, itemID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("querying ledger balance: %w", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var t models.InventoryTransaction
		if err := rows.Scan(&t.Type, &t.Quantity); err != nil {
			return decimal.Zero, fmt.Errorf("scanning ledger row: %w", err)
		}
		balance = balance.Add(t.SignedQuantity())
	}
	return balance, rows.Err()
}

// List retrieves ledger rows matching the filter, newest first.
func (r *InventoryRepository) List(ctx context.Context, filter models.TransactionFilter, page models.Pagination) (*models.TransactionList, error) {
	var conditions []string
	var args []any

	if filter.ItemKind != "" {
		conditions = append(conditions, "item_kind = ?")
		args = append(args, filter.ItemKind)
	}
	if filter.ItemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *filter.Type)
	}
	if filter.ReferenceType != "" {
		conditions = append(conditions, "reference_type = ?")
		args = append(args, filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		conditions = append(conditions, "reference_id = ?")
		args = append(args, filter.ReferenceID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(*filter.StartDate))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, formatTime(*filter.EndDate))
	}

	where := whereClause(conditions)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inventory_transactions "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting inventory transactions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM inventory_transactions
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, transactionColumns, where)

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying inventory transactions: %w", err)
	}
	defer rows.Close()

	list := &models.TransactionList{Total: total, Page: page.Page, TotalPages: page.TotalPages(total)}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list.Transactions = append(list.Transactions, t)
	}
	return list, rows.Err()
}

// ListByReference retrieves every ledger row written for a reference.
func (r *InventoryRepository) ListByReference(ctx context.Context, tx *sql.Tx, refType, refID string) ([]*models.InventoryTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM inventory_transactions
		WHERE reference_type = ? AND reference_id = ?
		ORDER BY id`

	rows, err := conn(r.db, tx).QueryContext(ctx, query, refType, refID)
	if err != nil {
		return nil, fmt.Errorf("querying inventory transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.InventoryTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanTransaction(s rowScanner) (*models.InventoryTransaction, error) {
	var t models.InventoryTransaction
	var notes, createdBy sql.NullString
	var createdStr string

	err := s.Scan(
		&t.ID, &t.Type, &t.Quantity, &t.ItemKind, &t.ItemID,
		&t.ReferenceType, &t.ReferenceID, &notes, &createdBy, &createdStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning inventory transaction: %w", err)
	}

	t.Notes = notes.String
	t.CreatedBy = stringPtr(createdBy)
	t.CreatedAt = parseTime(createdStr)
	return &t, nil
}
