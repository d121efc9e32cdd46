package repository

import (
	"context"
	"testing"
	"time"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/testutil"
)

func TestAccessRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccessRepository(db.DB.DB)
	ctx := context.Background()
	now := time.Now()

	grants := []struct {
		user string
		cap  models.Capability
	}{
		{"alice", models.CapabilityAdmin},
		{"alice", models.CapabilityManufactureManager},
		{"bob", models.CapabilityPurchasing},
		{"carol", models.CapabilityInventoryManager},
	}
	for _, g := range grants {
		if err := repo.Grant(ctx, g.user, g.cap, now); err != nil {
			t.Fatalf("failed to grant %s to %s: %v", g.cap, g.user, err)
		}
	}

	t.Run("Grant is idempotent", func(t *testing.T) {
		if err := repo.Grant(ctx, "alice", models.CapabilityAdmin, now); err != nil {
			t.Fatalf("failed to re-grant: %v", err)
		}
		db.AssertRowCount(t, "user_capabilities", 4)
	})

	t.Run("Distinct holders", func(t *testing.T) {
		users, err := repo.UsersWithCapabilities(ctx, []models.Capability{
			models.CapabilityAdmin, models.CapabilityManufactureManager, models.CapabilityPurchasing,
		})
		if err != nil {
			t.Fatalf("failed to query holders: %v", err)
		}
		if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
			t.Errorf("expected [alice bob], got %v", users)
		}
	})

	t.Run("No capabilities", func(t *testing.T) {
		users, err := repo.UsersWithCapabilities(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(users) != 0 {
			t.Errorf("expected no users, got %v", users)
		}
	})

	t.Run("Revoke", func(t *testing.T) {
		if err := repo.Revoke(ctx, "alice", models.CapabilityAdmin); err != nil {
			t.Fatalf("failed to revoke: %v", err)
		}
		caps, err := repo.CapabilitiesOf(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to read capabilities: %v", err)
		}
		if len(caps) != 1 || caps[0] != models.CapabilityManufactureManager {
			t.Errorf("expected [manufacture_manager], got %v", caps)
		}
	})
}
