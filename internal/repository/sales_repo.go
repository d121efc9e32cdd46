package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plantops/plantops/internal/models"
)

// SalesRepository handles quotations and sales orders.
type SalesRepository struct {
	db *sql.DB
}

// NewSalesRepository creates a new sales repository.
func NewSalesRepository(db *sql.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// ============================================================================
// QUOTATIONS
// ============================================================================

const quotationColumns = `id, quotation_number, customer_name, status, valid_until, notes, created_at, updated_at`

// CreateQuotation inserts a quotation and its items.
func (r *SalesRepository) CreateQuotation(ctx context.Context, tx *sql.Tx, q *models.Quotation) error {
	c := conn(r.db, tx)

	_, err := c.ExecContext(ctx, `
		INSERT INTO quotations (`+quotationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuotationNumber, q.CustomerName, q.Status,
		nullableTime(q.ValidUntil), nullableString(q.Notes),
		formatTime(q.CreatedAt), formatTime(q.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting quotation: %w", err)
	}

	for i, item := range q.Items {
		_, err := c.ExecContext(ctx, `
			INSERT INTO quotation_items (id, quotation_id, product_id, description, quantity, unit_price, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, q.ID, nullableStringPtr(item.ProductID), item.Description,
			item.Quantity, item.UnitPrice, i,
		)
		if err != nil {
			return fmt.Errorf("inserting quotation item: %w", err)
		}
	}

	return nil
}

// GetQuotation retrieves a quotation with its items.
func (r *SalesRepository) GetQuotation(ctx context.Context, tx *sql.Tx, id string) (*models.Quotation, error) {
	c := conn(r.db, tx)

	var q models.Quotation
	var validUntil, notes sql.NullString
	var createdStr, updatedStr string

	err := c.QueryRowContext(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = ?`, id).Scan(
		&q.ID, &q.QuotationNumber, &q.CustomerName, &q.Status,
		&validUntil, &notes, &createdStr, &updatedStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "quotation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning quotation: %w", err)
	}

	q.ValidUntil = timePtr(validUntil)
	q.Notes = notes.String
	q.CreatedAt = parseTime(createdStr)
	q.UpdatedAt = parseTime(updatedStr)

	rows, err := c.QueryContext(ctx, `
		SELECT id, quotation_id, product_id, description, quantity, unit_price
		FROM quotation_items WHERE quotation_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying quotation items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.QuotationItem
		var productID sql.NullString
		if err := rows.Scan(&item.ID, &item.QuotationID, &productID, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning quotation item: %w", err)
		}
		item.ProductID = stringPtr(productID)
		q.Items = append(q.Items, &item)
	}

	return &q, rows.Err()
}

// TransitionQuotation moves a quotation to status "to" if it currently holds
// one of the "from" statuses. It reports false otherwise.
func (r *SalesRepository) TransitionQuotation(ctx context.Context, tx *sql.Tx, id string, from []models.QuotationStatus, to models.QuotationStatus, at time.Time) (bool, error) {
	args := []any{to, formatTime(at), id}
	for _, s := range from {
		args = append(args, s)
	}

	query := fmt.Sprintf("UPDATE quotations SET status = ?, updated_at = ? WHERE id = ? AND status IN (%s)",
		placeholders(len(from)))

	res, err := conn(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("updating quotation status: %w", err)
	}
	return affected(res)
}

// NextQuotationNumber allocates the next quotation number.
func (r *SalesRepository) NextQuotationNumber(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	return nextDocumentNumber(ctx, conn(r.db, tx), "quotations", "quotation_number", prefix)
}

// ============================================================================
// SALES ORDERS
// ============================================================================

const salesOrderColumns = `id, order_number, quotation_id, customer_name, status, shipped_at, notes, created_at, updated_at`

// CreateSalesOrder inserts a sales order and its items.
func (r *SalesRepository) CreateSalesOrder(ctx context.Context, tx *sql.Tx, so *models.SalesOrder) error {
	c := conn(r.db, tx)

	_, err := c.ExecContext(ctx, `
		INSERT INTO sales_orders (`+salesOrderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		so.ID, so.OrderNumber, nullableStringPtr(so.QuotationID), so.CustomerName, so.Status,
		nullableTime(so.ShippedAt), nullableString(so.Notes),
		formatTime(so.CreatedAt), formatTime(so.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting sales order: %w", err)
	}

	for i, item := range so.Items {
		_, err := c.ExecContext(ctx, `
			INSERT INTO sales_order_items (id, sales_order_id, product_id, description, quantity, unit_price, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, so.ID, nullableStringPtr(item.ProductID), item.Description,
			item.Quantity, item.UnitPrice, i,
		)
		if err != nil {
			return fmt.Errorf("inserting sales order item: %w", err)
		}
	}

	return nil
}

// GetSalesOrder retrieves a sales order with its items.
func (r *SalesRepository) GetSalesOrder(ctx context.Context, tx *sql.Tx, id string) (*models.SalesOrder, error) {
	c := conn(r.db, tx)

	so, err := scanSalesOrder(c.QueryRowContext(ctx, `SELECT `+salesOrderColumns+` FROM sales_orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "sales order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sales order: %w", err)
	}

	rows, err := c.QueryContext(ctx, `
		SELECT id, sales_order_id, product_id, description, quantity, unit_price
		FROM sales_order_items WHERE sales_order_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying sales order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.SalesOrderItem
		var productID sql.NullString
		if err := rows.Scan(&item.ID, &item.SalesOrderID, &productID, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning sales order item: %w", err)
		}
		item.ProductID = stringPtr(productID)
		so.Items = append(so.Items, &item)
	}

	return so, rows.Err()
}

// TransitionSalesOrder moves a sales order to status "to" if it currently
// holds one of the "from" statuses, stamping shipped_at when given.
func (r *SalesRepository) TransitionSalesOrder(ctx context.Context, tx *sql.Tx, id string, from []models.SalesOrderStatus, to models.SalesOrderStatus, shippedAt *time.Time, at time.Time) (bool, error) {
	args := []any{to, nullableTime(shippedAt), formatTime(at), id}
	for _, s := range from {
		args = append(args, s)
	}

	query := fmt.Sprintf(`
		UPDATE sales_orders SET status = ?, shipped_at = COALESCE(?, shipped_at), updated_at = ?
		WHERE id = ? AND status IN (%s)`, placeholders(len(from)))

	res, err := conn(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("updating sales order status: %w", err)
	}
	return affected(res)
}

// NextOrderNumber allocates the next sales order number.
func (r *SalesRepository) NextOrderNumber(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	return nextDocumentNumber(ctx, conn(r.db, tx), "sales_orders", "order_number", prefix)
}

func scanSalesOrder(s rowScanner) (*models.SalesOrder, error) {
	var so models.SalesOrder
	var quotationID, shippedAt, notes sql.NullString
	var createdStr, updatedStr string

	err := s.Scan(
		&so.ID, &so.OrderNumber, &quotationID, &so.CustomerName, &so.Status,
		&shippedAt, &notes, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	so.QuotationID = stringPtr(quotationID)
	so.ShippedAt = timePtr(shippedAt)
	so.Notes = notes.String
	so.CreatedAt = parseTime(createdStr)
	so.UpdatedAt = parseTime(updatedStr)
	return &so, nil
}
