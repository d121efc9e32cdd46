package bom

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/testutil"
)

func TestResolver_CheckAvailability(t *testing.T) {
	db := testutil.NewTestDB(t)
	r := NewResolver(db.DB.DB)
	ctx := context.Background()

	p := db.InsertProduct(t)
	steel := db.InsertRawMaterial(t, testutil.WithMaterialStock("150"))
	bolts := db.InsertRawMaterial(t, testutil.WithMaterialStock("100"), func(m *models.RawMaterial) {
		m.Name = "Bolt"
	})
	db.InsertBOMLine(t, p.ID, steel.ID, "2")
	db.InsertBOMLine(t, p.ID, bolts.ID, "4")

	tests := []struct {
		name      string
		quantity  string
		available bool
		shortages map[string]string
	}{
		{"Enough of everything", "25", true, nil},
		{"Bolts short", "60", false, map[string]string{bolts.ID: "140"}},
		{"Both short", "80", false, map[string]string{steel.ID: "10", bolts.ID: "220"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.CheckAvailability(ctx, p.ID, testutil.Dec(tt.quantity))
			if err != nil {
				t.Fatalf("CheckAvailability failed: %v", err)
			}
			if !a.HasBOM {
				t.Error("expected HasBOM")
			}
			if a.FullyAvailable != tt.available {
				t.Errorf("FullyAvailable = %v, want %v", a.FullyAvailable, tt.available)
			}

			short := a.Shortages()
			if len(short) != len(tt.shortages) {
				t.Fatalf("expected %d shortages, got %d", len(tt.shortages), len(short))
			}
			for _, l := range short {
				want, ok := tt.shortages[l.Material.ID]
				if !ok {
					t.Errorf("unexpected shortage for %s", l.Material.SKU)
					continue
				}
				testutil.AssertDecimal(t, "shortage", l.Shortage, want)
			}
		})
	}

	t.Run("No BOM is trivially available", func(t *testing.T) {
		bare := db.InsertProduct(t)
		a, err := r.CheckAvailability(ctx, bare.ID, testutil.Dec("5"))
		if err != nil {
			t.Fatalf("CheckAvailability failed: %v", err)
		}
		if a.HasBOM || !a.FullyAvailable || len(a.Lines) != 0 {
			t.Errorf("unexpected availability for product without BOM: %+v", a)
		}
	})

	t.Run("Non-positive quantity", func(t *testing.T) {
		for _, q := range []decimal.Decimal{decimal.Zero, testutil.Dec("-3")} {
			if _, err := r.CheckAvailability(ctx, p.ID, q); !models.IsValidation(err) {
				t.Errorf("quantity %s: expected validation error, got %v", q, err)
			}
		}
	})

	t.Run("Unknown product", func(t *testing.T) {
		if _, err := r.CheckAvailability(ctx, "missing", testutil.Dec("1")); !models.IsNotFound(err) {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func TestResolver_Requirements(t *testing.T) {
	db := testutil.NewTestDB(t)
	r := NewResolver(db.DB.DB)
	ctx := context.Background()

	frame := db.InsertProduct(t)
	wheel := db.InsertProduct(t)
	steel := db.InsertRawMaterial(t, testutil.WithMaterialStock("50"), func(m *models.RawMaterial) { m.SKU = "A-STEEL" })
	rubber := db.InsertRawMaterial(t, testutil.WithMaterialStock("500"), func(m *models.RawMaterial) { m.SKU = "B-RUBBER" })
	db.InsertBOMLine(t, frame.ID, steel.ID, "3")
	db.InsertBOMLine(t, wheel.ID, steel.ID, "0.5")
	db.InsertBOMLine(t, wheel.ID, rubber.ID, "1.25")

	reqs, err := r.Requirements(ctx, nil, []models.ProductQuantity{
		{ProductID: frame.ID, Quantity: testutil.Dec("10")},
		{ProductID: wheel.ID, Quantity: testutil.Dec("40")},
	})
	if err != nil {
		t.Fatalf("Requirements failed: %v", err)
	}

	if len(reqs) != 2 {
		t.Fatalf("expected requirements aggregated to 2 materials, got %d", len(reqs))
	}
	if reqs[0].Material.ID != steel.ID || reqs[1].Material.ID != rubber.ID {
		t.Errorf("expected requirements sorted by SKU")
	}
	testutil.AssertDecimal(t, "steel required", reqs[0].Required, "50")
	testutil.AssertDecimal(t, "rubber required", reqs[1].Required, "50")
	if len(Shortages(reqs)) != 0 {
		t.Errorf("expected no shortages, got %+v", Shortages(reqs))
	}
}
