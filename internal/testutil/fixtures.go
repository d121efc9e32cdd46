package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
)

// Dec parses a decimal literal, panicking on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// AssertDecimal fails the test when got != want.
func AssertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()

	if !got.Equal(Dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

// FixtureProduct creates a test product with sensible defaults.
func FixtureProduct(overrides ...func(*models.Product)) *models.Product {
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	p := &models.Product{
		ID:        id,
		SKU:       "P-" + id[:8],
		Name:      "Widget",
		Unit:      "pcs",
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(p)
	}

	return p
}

// FixtureRawMaterial creates a test raw material with sensible defaults.
func FixtureRawMaterial(overrides ...func(*models.RawMaterial)) *models.RawMaterial {
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	m := &models.RawMaterial{
		ID:        id,
		SKU:       "M-" + id[:8],
		Name:      "Steel",
		Unit:      "kg",
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(m)
	}

	return m
}

// FixtureManufacturingOrder creates a planned test order for productID.
func FixtureManufacturingOrder(productID string, overrides ...func(*models.ManufacturingOrder)) *models.ManufacturingOrder {
	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Second)

	mo := &models.ManufacturingOrder{
		ID:        id,
		MONumber:  "TMO-" + id[:6],
		ProductID: productID,
		Quantity:  decimal.NewFromInt(10),
		Status:    models.MOStatusPlanned,
		Priority:  models.PriorityNormal,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(mo)
	}

	return mo
}

// WithStock sets a product's current stock.
func WithStock(qty string) func(*models.Product) {
	return func(p *models.Product) { p.CurrentStock = Dec(qty) }
}

// WithMaterialStock sets a raw material's current stock.
func WithMaterialStock(qty string) func(*models.RawMaterial) {
	return func(m *models.RawMaterial) { m.CurrentStock = Dec(qty) }
}

// InsertProduct stores a product fixture directly. Stock set here bypasses
// the ledger, so reconciliation against it reports drift.
func (tdb *TestDB) InsertProduct(t *testing.T, overrides ...func(*models.Product)) *models.Product {
	t.Helper()

	p := FixtureProduct(overrides...)
	tdb.ExecSQL(t, `
		INSERT INTO products (id, sku, name, unit, current_stock, minimum_stock, reorder_point, assigned_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Name, p.Unit, p.CurrentStock.String(), p.MinimumStock.String(),
		p.ReorderPoint.String(), p.AssignedQuantity.String(),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
	)
	return p
}

// InsertRawMaterial stores a raw material fixture directly.
func (tdb *TestDB) InsertRawMaterial(t *testing.T, overrides ...func(*models.RawMaterial)) *models.RawMaterial {
	t.Helper()

	m := FixtureRawMaterial(overrides...)
	tdb.ExecSQL(t, `
		INSERT INTO raw_materials (id, sku, name, unit, current_stock, minimum_stock, reorder_point, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SKU, m.Name, m.Unit, m.CurrentStock.String(), m.MinimumStock.String(),
		m.ReorderPoint.String(), m.CreatedAt.Format(time.RFC3339), m.UpdatedAt.Format(time.RFC3339),
	)
	return m
}

// InsertBOMLine stores a BOM line requiring perUnit of materialID per unit
// of productID.
func (tdb *TestDB) InsertBOMLine(t *testing.T, productID, materialID, perUnit string) string {
	t.Helper()

	id := uuid.New().String()
	tdb.ExecSQL(t, `
		INSERT INTO bom_lines (id, product_id, raw_material_id, quantity_per_unit, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, productID, materialID, Dec(perUnit).String(), time.Now().UTC().Format(time.RFC3339),
	)
	return id
}

// Stock reads the current_stock counter of a product or raw material.
func (tdb *TestDB) Stock(t *testing.T, kind models.ItemKind, id string) decimal.Decimal {
	t.Helper()

	var qty decimal.Decimal
	if err := tdb.QueryRow("SELECT current_stock FROM "+kind.Table()+" WHERE id = ?", id).Scan(&qty); err != nil {
		t.Fatalf("failed to read stock of %s %s: %v", kind, id, err)
	}
	return qty
}

// Assigned reads a product's assigned_quantity counter.
func (tdb *TestDB) Assigned(t *testing.T, productID string) decimal.Decimal {
	t.Helper()

	var qty decimal.Decimal
	if err := tdb.QueryRow("SELECT assigned_quantity FROM products WHERE id = ?", productID).Scan(&qty); err != nil {
		t.Fatalf("failed to read assigned quantity of %s: %v", productID, err)
	}
	return qty
}

// AssertAssignedQuantity checks that a product's assigned quantity equals
// the sum of its open reservations.
func (tdb *TestDB) AssertAssignedQuantity(t *testing.T, productID string) {
	t.Helper()

	rows, err := tdb.Query(
		"SELECT quantity FROM product_assignments WHERE product_id = ? AND status IN ('pending', 'in_production')",
		productID,
	)
	if err != nil {
		t.Fatalf("failed to query reservations: %v", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var q decimal.Decimal
		if err := rows.Scan(&q); err != nil {
			t.Fatalf("failed to scan reservation: %v", err)
		}
		sum = sum.Add(q)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate reservations: %v", err)
	}

	if got := tdb.Assigned(t, productID); !got.Equal(sum) {
		t.Errorf("product %s assigned_quantity = %s, open reservations sum to %s", productID, got, sum)
	}
}

// AssertLedgerBalanced checks that an item's counter equals the signed sum
// of its ledger rows.
func (tdb *TestDB) AssertLedgerBalanced(t *testing.T, kind models.ItemKind, id string) {
	t.Helper()

	rows, err := tdb.Query(
		"SELECT type, quantity FROM inventory_transactions WHERE item_kind = ? AND item_id = ?", kind, id)
	if err != nil {
		t.Fatalf("failed to query ledger: %v", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var typ models.TransactionType
		var q decimal.Decimal
		if err := rows.Scan(&typ, &q); err != nil {
			t.Fatalf("failed to scan ledger row: %v", err)
		}
		if typ == models.TransactionTypeOut {
			q = q.Neg()
		}
		balance = balance.Add(q)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate ledger: %v", err)
	}

	if got := tdb.Stock(t, kind, id); !got.Equal(balance) {
		t.Errorf("%s %s current_stock = %s, ledger balance = %s", kind, id, got, balance)
	}
}
