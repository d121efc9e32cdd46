package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/util"
)

// ManufacturingRepository handles manufacturing orders, their items and
// deletion audits.
type ManufacturingRepository struct {
	db *sql.DB
}

// NewManufacturingRepository creates a new manufacturing repository.
func NewManufacturingRepository(db *sql.DB) *ManufacturingRepository {
	return &ManufacturingRepository{db: db}
}

const moColumns = `id, mo_number, product_id, quantity, status, priority,
	sales_order_id, quotation_id, planned_start, planned_end, actual_start, actual_end,
	notes, created_by, created_at, updated_at`

// ============================================================================
// ORDERS
// ============================================================================

// Create inserts a manufacturing order together with its items.
func (r *ManufacturingRepository) Create(ctx context.Context, tx *sql.Tx, mo *models.ManufacturingOrder) error {
	query := `
		INSERT INTO manufacturing_orders (` + moColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	q := conn(r.db, tx)
	_, err := q.ExecContext(ctx, query,
		mo.ID, mo.MONumber, mo.ProductID, mo.Quantity, mo.Status, mo.Priority,
		nullableStringPtr(mo.SalesOrderID), nullableStringPtr(mo.QuotationID),
		nullableTime(mo.PlannedStart), nullableTime(mo.PlannedEnd),
		nullableTime(mo.ActualStart), nullableTime(mo.ActualEnd),
		nullableString(mo.Notes), nullableStringPtr(mo.CreatedBy),
		formatTime(mo.CreatedAt), formatTime(mo.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting manufacturing order: %w", err)
	}

	for _, item := range mo.Items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO mo_items (id, mo_id, product_id, quantity, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, mo.ID, item.ProductID, item.Quantity, item.Status,
			formatTime(item.CreatedAt), formatTime(item.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting mo item: %w", err)
		}
	}

	return nil
}

// Get retrieves a manufacturing order with its items.
func (r *ManufacturingRepository) Get(ctx context.Context, tx *sql.Tx, id string) (*models.ManufacturingOrder, error) {
	q := conn(r.db, tx)

	mo, err := scanMO(q.QueryRowContext(ctx, `SELECT `+moColumns+` FROM manufacturing_orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "manufacturing order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning manufacturing order: %w", err)
	}

	items, err := r.listItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	mo.Items = items

	return mo, nil
}

// List retrieves a page of manufacturing orders matching the filter.
// Items are not loaded.
func (r *ManufacturingRepository) List(ctx context.Context, filter models.MOFilter, page models.Pagination) (*models.MOList, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.ProductID != "" {
		conditions = append(conditions, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.QuotationID != "" {
		conditions = append(conditions, "quotation_id = ?")
		args = append(args, filter.QuotationID)
	}
	if filter.SalesOrderID != "" {
		conditions = append(conditions, "sales_order_id = ?")
		args = append(args, filter.SalesOrderID)
	}

	where := whereClause(conditions)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM manufacturing_orders "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting manufacturing orders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM manufacturing_orders
		%s
		ORDER BY mo_number DESC
		LIMIT ? OFFSET ?`, moColumns, where)

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying manufacturing orders: %w", err)
	}
	defer rows.Close()

	list := &models.MOList{Total: total, Page: page.Page, TotalPages: page.TotalPages(total)}
	for rows.Next() {
		mo, err := scanMO(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning manufacturing order row: %w", err)
		}
		list.Orders = append(list.Orders, mo)
	}
	return list, rows.Err()
}

// ListOpenByQuotation retrieves the planned or in-flight orders created for
// a quotation.
func (r *ManufacturingRepository) ListOpenByQuotation(ctx context.Context, tx *sql.Tx, quotationID string) ([]*models.ManufacturingOrder, error) {
	query := `SELECT ` + moColumns + ` FROM manufacturing_orders
		WHERE quotation_id = ? AND status IN (?, ?, ?)
		ORDER BY mo_number`

	rows, err := conn(r.db, tx).QueryContext(ctx, query, quotationID,
		models.MOStatusPlanned, models.MOStatusInProgress, models.MOStatusUnderQC)
	if err != nil {
		return nil, fmt.Errorf("querying manufacturing orders: %w", err)
	}
	defer rows.Close()

	var out []*models.ManufacturingOrder
	for rows.Next() {
		mo, err := scanMO(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning manufacturing order row: %w", err)
		}
		out = append(out, mo)
	}
	return out, rows.Err()
}

// Transition moves an order from one status to another, stamping the given
// actual start/end when non-nil. It reports false when the order no longer
// holds the expected status.
func (r *ManufacturingRepository) Transition(ctx context.Context, tx *sql.Tx, id string, from, to models.MOStatus, actualStart, actualEnd *time.Time, at time.Time) (bool, error) {
	query := `
		UPDATE manufacturing_orders
		SET status = ?,
			actual_start = COALESCE(?, actual_start),
			actual_end = COALESCE(?, actual_end),
			updated_at = ?
		WHERE id = ? AND status = ?`

	res, err := conn(r.db, tx).ExecContext(ctx, query,
		to, nullableTime(actualStart), nullableTime(actualEnd), formatTime(at), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating manufacturing order status: %w", err)
	}
	return affected(res)
}

// LinkSalesOrder attaches a sales order to an order.
func (r *ManufacturingRepository) LinkSalesOrder(ctx context.Context, tx *sql.Tx, id, salesOrderID string, at time.Time) error {
	_, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE manufacturing_orders SET sales_order_id = ?, updated_at = ? WHERE id = ?",
		salesOrderID, formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("linking sales order: %w", err)
	}
	return nil
}

// Delete removes an order. Items and QC records cascade; reservations keep
// their rows with mo_id cleared.
func (r *ManufacturingRepository) Delete(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx, "DELETE FROM manufacturing_orders WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting manufacturing order: %w", err)
	}
	return affected(res)
}

// NextNumber allocates the next MO number for the prefix. Call it inside
// the creating transaction; the UNIQUE constraint rejects a racing duplicate.
func (r *ManufacturingRepository) NextNumber(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	return nextDocumentNumber(ctx, conn(r.db, tx), "manufacturing_orders", "mo_number", prefix)
}

func scanMO(s rowScanner) (*models.ManufacturingOrder, error) {
	var mo models.ManufacturingOrder
	var salesOrderID, quotationID, notes, createdBy sql.NullString
	var plannedStart, plannedEnd, actualStart, actualEnd sql.NullString
	var createdStr, updatedStr string

	err := s.Scan(
		&mo.ID, &mo.MONumber, &mo.ProductID, &mo.Quantity, &mo.Status, &mo.Priority,
		&salesOrderID, &quotationID, &plannedStart, &plannedEnd, &actualStart, &actualEnd,
		&notes, &createdBy, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	mo.SalesOrderID = stringPtr(salesOrderID)
	mo.QuotationID = stringPtr(quotationID)
	mo.PlannedStart = timePtr(plannedStart)
	mo.PlannedEnd = timePtr(plannedEnd)
	mo.ActualStart = timePtr(actualStart)
	mo.ActualEnd = timePtr(actualEnd)
	mo.Notes = notes.String
	mo.CreatedBy = stringPtr(createdBy)
	mo.CreatedAt = parseTime(createdStr)
	mo.UpdatedAt = parseTime(updatedStr)
	return &mo, nil
}

// ============================================================================
// ITEMS
// ============================================================================

func (r *ManufacturingRepository) listItems(ctx context.Context, q queryer, moID string) ([]*models.MoItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, mo_id, product_id, quantity, status, created_at, updated_at
		FROM mo_items WHERE mo_id = ? ORDER BY created_at, id`, moID)
	if err != nil {
		return nil, fmt.Errorf("querying mo items: %w", err)
	}
	defer rows.Close()

	var items []*models.MoItem
	for rows.Next() {
		var item models.MoItem
		var createdStr, updatedStr string
		if err := rows.Scan(&item.ID, &item.MOID, &item.ProductID, &item.Quantity, &item.Status, &createdStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scanning mo item: %w", err)
		}
		item.CreatedAt = parseTime(createdStr)
		item.UpdatedAt = parseTime(updatedStr)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// SetItemsStatus moves every item of an order to status.
func (r *ManufacturingRepository) SetItemsStatus(ctx context.Context, tx *sql.Tx, moID string, status models.MoItemStatus, at time.Time) error {
	_, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE mo_items SET status = ?, updated_at = ? WHERE mo_id = ?",
		status, formatTime(at), moID,
	)
	if err != nil {
		return fmt.Errorf("updating mo items: %w", err)
	}
	return nil
}

// ============================================================================
// DELETION AUDITS
// ============================================================================

// InsertDeletionAudit records the pre-delete snapshot of an order.
func (r *ManufacturingRepository) InsertDeletionAudit(ctx context.Context, tx *sql.Tx, a *models.MoDeletionAudit) error {
	_, err := conn(r.db, tx).ExecContext(ctx, `
		INSERT INTO mo_deletion_audits (id, mo_id, mo_number, snapshot, deleted_by, reason, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MOID, a.MONumber, a.Snapshot,
		nullableStringPtr(a.DeletedBy), nullableString(a.Reason), formatTime(a.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting deletion audit: %w", err)
	}
	return nil
}

// ListDeletionAudits retrieves the audits recorded for an order ID.
func (r *ManufacturingRepository) ListDeletionAudits(ctx context.Context, moID string) ([]*models.MoDeletionAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mo_id, mo_number, snapshot, deleted_by, reason, deleted_at
		FROM mo_deletion_audits WHERE mo_id = ? ORDER BY deleted_at, id`, moID)
	if err != nil {
		return nil, fmt.Errorf("querying deletion audits: %w", err)
	}
	defer rows.Close()

	var audits []*models.MoDeletionAudit
	for rows.Next() {
		var a models.MoDeletionAudit
		var deletedBy, reason sql.NullString
		var deletedStr string
		if err := rows.Scan(&a.ID, &a.MOID, &a.MONumber, &a.Snapshot, &deletedBy, &reason, &deletedStr); err != nil {
			return nil, fmt.Errorf("scanning deletion audit: %w", err)
		}
		a.DeletedBy = stringPtr(deletedBy)
		a.Reason = reason.String
		a.DeletedAt = parseTime(deletedStr)
		audits = append(audits, &a)
	}
	return audits, rows.Err()
}

// nextDocumentNumber advances the document_sequences counter for
// table and prefix and returns the new number. Numbers are never reissued,
// even after the document holding one is deleted. The counter never falls
// below the highest number already stored in column.
func nextDocumentNumber(ctx context.Context, q queryer, table, column, prefix string) (string, error) {
	floor, err := highestDocumentNumber(ctx, q, table, column, prefix)
	if err != nil {
		return "", err
	}

	var seq int
	err = q.QueryRowContext(ctx, `
		INSERT INTO document_sequences (name, last_value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET last_value = MAX(last_value + 1, excluded.last_value)
		RETURNING last_value`,
		table+":"+prefix, floor+1,
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("advancing %s sequence: %w", column, err)
	}
	return util.FormatDocumentNumber(prefix, seq), nil
}

// highestDocumentNumber returns the largest sequence stored in column for
// prefix, or 0. Longer numbers sort first so MO-1000000 beats MO-999999.
func highestDocumentNumber(ctx context.Context, q queryer, table, column, prefix string) (int, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s LIKE ? ORDER BY LENGTH(%s) DESC, %s DESC LIMIT 1",
		column, table, column, column, column,
	)

	var last string
	err := q.QueryRowContext(ctx, query, prefix+"-%").Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading last %s: %w", column, err)
	}
	return util.ParseDocumentNumber(prefix, last)
}
