package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/plantops/plantops/internal/models"
)

// AccessRepository stores user capability grants.
type AccessRepository struct {
	db *sql.DB
}

// NewAccessRepository creates a new access repository.
func NewAccessRepository(db *sql.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// Grant gives a user a capability. Granting twice is a no-op.
func (r *AccessRepository) Grant(ctx context.Context, userID string, c models.Capability, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_capabilities (user_id, capability, granted_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, capability) DO NOTHING`,
		userID, c, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("granting capability: %w", err)
	}
	return nil
}

// Revoke removes a capability from a user.
func (r *AccessRepository) Revoke(ctx context.Context, userID string, c models.Capability) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM user_capabilities WHERE user_id = ? AND capability = ?", userID, c,
	); err != nil {
		return fmt.Errorf("revoking capability: %w", err)
	}
	return nil
}

// UsersWithCapabilities returns the distinct users holding any of caps.
func (r *AccessRepository) UsersWithCapabilities(ctx context.Context, caps []models.Capability) ([]string, error) {
	if len(caps) == 0 {
		return nil, nil
	}

	args := make([]any, len(caps))
	for i, c := range caps {
		args[i] = c
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT user_id FROM user_capabilities WHERE capability IN (%s) ORDER BY user_id",
		placeholders(len(caps)),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying capability holders: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// CapabilitiesOf returns the capabilities a user holds.
func (r *AccessRepository) CapabilitiesOf(ctx context.Context, userID string) ([]models.Capability, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT capability FROM user_capabilities WHERE user_id = ? ORDER BY capability", userID)
	if err != nil {
		return nil, fmt.Errorf("querying capabilities: %w", err)
	}
	defer rows.Close()

	var caps []models.Capability
	for rows.Next() {
		var c models.Capability
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning capability: %w", err)
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}
