package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/plantops/plantops/internal/models"
)

// QualityRepository handles quality control records.
type QualityRepository struct {
	db *sql.DB
}

// NewQualityRepository creates a new quality repository.
func NewQualityRepository(db *sql.DB) *QualityRepository {
	return &QualityRepository{db: db}
}

const qcColumns = `id, mo_id, product_id, quantity, status, inspector_id,
	inspected_at, rejection_reason, notes, created_at, updated_at`

// Create inserts a quality control record.
func (r *QualityRepository) Create(ctx context.Context, tx *sql.Tx, rec *models.QualityControlRecord) error {
	query := `
		INSERT INTO quality_control_records (` + qcColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := conn(r.db, tx).ExecContext(ctx, query,
		rec.ID, rec.MOID, rec.ProductID, rec.Quantity, rec.Status,
		nullableStringPtr(rec.InspectorID), nullableTime(rec.InspectedAt),
		nullableStringPtr(rec.RejectionReason), nullableString(rec.Notes),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting quality control record: %w", err)
	}
	return nil
}

// Get retrieves a quality control record by ID.
func (r *QualityRepository) Get(ctx context.Context, tx *sql.Tx, id string) (*models.QualityControlRecord, error) {
	query := `SELECT ` + qcColumns + ` FROM quality_control_records WHERE id = ?`

	rec, err := scanQC(conn(r.db, tx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "quality control record", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning quality control record: %w", err)
	}
	return rec, nil
}

// ListByMO retrieves every record of a manufacturing order.
func (r *QualityRepository) ListByMO(ctx context.Context, tx *sql.Tx, moID string) ([]*models.QualityControlRecord, error) {
	query := `SELECT ` + qcColumns + ` FROM quality_control_records WHERE mo_id = ? ORDER BY created_at, id`

	rows, err := conn(r.db, tx).QueryContext(ctx, query, moID)
	if err != nil {
		return nil, fmt.Errorf("querying quality control records: %w", err)
	}
	defer rows.Close()

	var out []*models.QualityControlRecord
	for rows.Next() {
		rec, err := scanQC(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning quality control record row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Decide records an inspection outcome on a record still under review.
// It reports false when the record was already decided.
func (r *QualityRepository) Decide(ctx context.Context, tx *sql.Tx, rec *models.QualityControlRecord) (bool, error) {
	query := `
		UPDATE quality_control_records
		SET status = ?, inspector_id = ?, inspected_at = ?, rejection_reason = ?,
			notes = COALESCE(?, notes), updated_at = ?
		WHERE id = ? AND status = ?`

	res, err := conn(r.db, tx).ExecContext(ctx, query,
		rec.Status, nullableStringPtr(rec.InspectorID), nullableTime(rec.InspectedAt),
		nullableStringPtr(rec.RejectionReason), nullableString(rec.Notes),
		formatTime(rec.UpdatedAt), rec.ID, models.QCStatusUnderReview,
	)
	if err != nil {
		return false, fmt.Errorf("updating quality control record: %w", err)
	}
	return affected(res)
}

// Progress counts the records of an order by status.
func (r *QualityRepository) Progress(ctx context.Context, tx *sql.Tx, moID string) (models.QCProgress, error) {
	var p models.QCProgress

	rows, err := conn(r.db, tx).QueryContext(ctx,
		"SELECT status, COUNT(*) FROM quality_control_records WHERE mo_id = ? GROUP BY status", moID)
	if err != nil {
		return p, fmt.Errorf("querying qc progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.QCStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return p, fmt.Errorf("scanning qc progress: %w", err)
		}
		p.Total += n
		switch status {
		case models.QCStatusAccepted:
			p.Accepted = n
		case models.QCStatusRejected:
			p.Rejected = n
		case models.QCStatusUnderReview:
			p.UnderReview = n
		}
	}
	return p, rows.Err()
}

func scanQC(s rowScanner) (*models.QualityControlRecord, error) {
	var rec models.QualityControlRecord
	var inspectorID, inspectedAt, reason, notes sql.NullString
	var createdStr, updatedStr string

	err := s.Scan(
		&rec.ID, &rec.MOID, &rec.ProductID, &rec.Quantity, &rec.Status,
		&inspectorID, &inspectedAt, &reason, &notes, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	rec.InspectorID = stringPtr(inspectorID)
	rec.InspectedAt = timePtr(inspectedAt)
	rec.RejectionReason = stringPtr(reason)
	rec.Notes = notes.String
	rec.CreatedAt = parseTime(createdStr)
	rec.UpdatedAt = parseTime(updatedStr)
	return &rec, nil
}
