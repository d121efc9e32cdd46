package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// ReservationRepository handles product assignments.
type ReservationRepository struct {
	db *sql.DB
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `id, product_id, quotation_id, mo_id, quantity, status, created_at, updated_at`

// Create inserts a reservation.
func (r *ReservationRepository) Create(ctx context.Context, tx *sql.Tx, res *models.Reservation) error {
	query := `
		INSERT INTO product_assignments (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := conn(r.db, tx).ExecContext(ctx, query,
		res.ID, res.ProductID, nullableStringPtr(res.QuotationID), nullableStringPtr(res.MOID),
		res.Quantity, res.Status, formatTime(res.CreatedAt), formatTime(res.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}
	return nil
}

// Get retrieves a reservation by ID.
func (r *ReservationRepository) Get(ctx context.Context, tx *sql.Tx, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM product_assignments WHERE id = ?`

	res, err := scanReservation(conn(r.db, tx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "reservation", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning reservation: %w", err)
	}
	return res, nil
}

// List retrieves reservations matching the filter, oldest first.
func (r *ReservationRepository) List(ctx context.Context, tx *sql.Tx, filter models.ReservationFilter) ([]*models.Reservation, error) {
	conditions, args := reservationConditions(filter)

	query := fmt.Sprintf(`SELECT %s FROM product_assignments %s ORDER BY created_at, id`,
		reservationColumns, whereClause(conditions))

	rows, err := conn(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reservation row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// OpenQuantity sums the quantity of every non-terminal reservation for a
// product.
func (r *ReservationRepository) OpenQuantity(ctx context.Context, tx *sql.Tx, productID string) (decimal.Decimal, error) {
	query := fmt.Sprintf(`
		SELECT quantity FROM product_assignments
		WHERE product_id = ? AND status IN (%s)`, placeholders(len(models.OpenReservationStatuses)))

	args := []any{productID}
	for _, s := range models.OpenReservationStatuses {
		args = append(args, s)
	}

	rows, err := conn(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("querying open reservations: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var qty decimal.Decimal
		if err := rows.Scan(&qty); err != nil {
			return decimal.Zero, fmt.Errorf("scanning reservation quantity: %w", err)
		}
		total = total.Add(qty)
	}
	return total, rows.Err()
}

// UpdateStatus moves a reservation from one status to another. It reports
// false when the reservation no longer holds the expected status.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, from, to models.ReservationStatus, at time.Time) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE product_assignments SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, formatTime(at), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating reservation status: %w", err)
	}
	return affected(res)
}

// SetMO links a reservation to the manufacturing order fulfilling it.
func (r *ReservationRepository) SetMO(ctx context.Context, tx *sql.Tx, id, moID string, at time.Time) error {
	res, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE product_assignments SET mo_id = ?, updated_at = ? WHERE id = ?",
		moID, formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("linking reservation to mo: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return &models.NotFoundError{Entity: "reservation", ID: id}
	}
	return nil
}

func reservationConditions(filter models.ReservationFilter) ([]string, []any) {
	var conditions []string
	var args []any

	if filter.ProductID != "" {
		conditions = append(conditions, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.QuotationID != "" {
		conditions = append(conditions, "quotation_id = ?")
		args = append(args, filter.QuotationID)
	}
	if filter.MOID != "" {
		conditions = append(conditions, "mo_id = ?")
		args = append(args, filter.MOID)
	}
	if filter.SalesOrderID != "" {
		// Reservations under a sales order are those of its originating
		// quotation plus those fulfilled by MOs linked to the order.
		conditions = append(conditions, `(
			quotation_id IN (SELECT quotation_id FROM sales_orders WHERE id = ? AND quotation_id IS NOT NULL)
			OR mo_id IN (SELECT id FROM manufacturing_orders WHERE sales_order_id = ?))`)
		args = append(args, filter.SalesOrderID, filter.SalesOrderID)
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders(len(filter.Statuses))))
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	return conditions, args
}

func scanReservation(s rowScanner) (*models.Reservation, error) {
	var res models.Reservation
	var quotationID, moID sql.NullString
	var createdStr, updatedStr string

	err := s.Scan(
		&res.ID, &res.ProductID, &quotationID, &moID,
		&res.Quantity, &res.Status, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	res.QuotationID = stringPtr(quotationID)
	res.MOID = stringPtr(moID)
	res.CreatedAt = parseTime(createdStr)
	res.UpdatedAt = parseTime(updatedStr)
	return &res, nil
}
