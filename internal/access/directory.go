// Package access resolves which users hold which capabilities. The engine
// uses it only to pick notification recipients; authorization is enforced
// by the surrounding application.
package access

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/repository"
	"github.com/plantops/plantops/internal/util"
)

// Directory is a capability directory backed by the user_capabilities table.
type Directory struct {
	repo  *repository.AccessRepository
	clock util.Clock
}

// NewDirectory creates a new capability directory.
func NewDirectory(db *sql.DB, clock util.Clock) *Directory {
	return &Directory{repo: repository.NewAccessRepository(db), clock: clock}
}

// Grant gives a user a capability.
func (d *Directory) Grant(ctx context.Context, userID string, c models.Capability) error {
	if userID == "" {
		return &models.ValidationError{Entity: "capability grant", Field: "user_id", Message: "is required"}
	}
	if !c.Valid() {
		return &models.ValidationError{Entity: "capability grant", Field: "capability", Message: fmt.Sprintf("unknown value %q", c)}
	}
	return d.repo.Grant(ctx, userID, c, d.clock.Now())
}

// Revoke removes a capability from a user.
func (d *Directory) Revoke(ctx context.Context, userID string, c models.Capability) error {
	return d.repo.Revoke(ctx, userID, c)
}

// UsersWithCapabilities returns the distinct users holding any of caps.
func (d *Directory) UsersWithCapabilities(ctx context.Context, caps ...models.Capability) ([]string, error) {
	return d.repo.UsersWithCapabilities(ctx, caps)
}

// CapabilitiesOf returns the capabilities a user holds.
func (d *Directory) CapabilitiesOf(ctx context.Context, userID string) ([]models.Capability, error) {
	return d.repo.CapabilitiesOf(ctx, userID)
}

// HasCapability reports whether a user holds c.
func (d *Directory) HasCapability(ctx context.Context, userID string, c models.Capability) (bool, error) {
	caps, err := d.repo.CapabilitiesOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(caps, c), nil
}
