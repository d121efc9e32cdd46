package access

import (
	"context"
	"testing"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/testutil"
	"github.com/plantops/plantops/internal/util"
)

func TestDirectory(t *testing.T) {
	db := testutil.NewTestDB(t)
	d := NewDirectory(db.DB.DB, util.SystemClock{})
	ctx := context.Background()

	t.Run("Grant validates input", func(t *testing.T) {
		tests := []struct {
			name string
			user string
			cap  models.Capability
		}{
			{"Missing user", "", models.CapabilityAdmin},
			{"Unknown capability", "alice", "janitor"},
		}
		for _, tt := range tests {
			if err := d.Grant(ctx, tt.user, tt.cap); !models.IsValidation(err) {
				t.Errorf("%s: expected validation error, got %v", tt.name, err)
			}
		}
	})

	if err := d.Grant(ctx, "alice", models.CapabilityCFO); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if err := d.Grant(ctx, "bob", models.CapabilityCFO); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	t.Run("HasCapability", func(t *testing.T) {
		ok, err := d.HasCapability(ctx, "alice", models.CapabilityCFO)
		if err != nil {
			t.Fatalf("HasCapability() error = %v", err)
		}
		if !ok {
			t.Error("expected alice to hold cfo")
		}
		ok, err = d.HasCapability(ctx, "alice", models.CapabilityAdmin)
		if err != nil {
			t.Fatalf("HasCapability() error = %v", err)
		}
		if ok {
			t.Error("expected alice not to hold admin")
		}
	})

	t.Run("Holders after revoke", func(t *testing.T) {
		if err := d.Revoke(ctx, "bob", models.CapabilityCFO); err != nil {
			t.Fatalf("Revoke() error = %v", err)
		}
		users, err := d.UsersWithCapabilities(ctx, models.CapabilityCFO)
		if err != nil {
			t.Fatalf("UsersWithCapabilities() error = %v", err)
		}
		if len(users) != 1 || users[0] != "alice" {
			t.Errorf("expected [alice], got %v", users)
		}
	})
}
