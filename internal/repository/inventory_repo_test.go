package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/testutil"
)

func setupInventoryTest(t *testing.T) (*InventoryRepository, *testutil.TestDB, context.Context) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return NewInventoryRepository(db.DB.DB), db, context.Background()
}

func ledgerRow(kind models.ItemKind, itemID string, typ models.TransactionType, qty, refType, refID string, at time.Time) *models.InventoryTransaction {
	return &models.InventoryTransaction{
		ID:            uuid.New().String(),
		Type:          typ,
		Quantity:      testutil.Dec(qty),
		ItemKind:      kind,
		ItemID:        itemID,
		ReferenceType: refType,
		ReferenceID:   refID,
		CreatedAt:     at,
	}
}

func TestInventoryRepository_Append(t *testing.T) {
	repo, db, ctx := setupInventoryTest(t)
	now := time.Now().UTC()

	m := db.InsertRawMaterial(t)

	t.Run("First append writes", func(t *testing.T) {
		ok, err := repo.Append(ctx, nil, ledgerRow(models.ItemKindRawMaterial, m.ID, models.TransactionTypeOut, "12", "manufacturing_order", "mo-1", now))
		if err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if !ok {
			t.Error("expected first append to write")
		}
	})

	t.Run("Same key is a no-op", func(t *testing.T) {
		ok, err := repo.Append(ctx, nil, ledgerRow(models.ItemKindRawMaterial, m.ID, models.TransactionTypeOut, "12", "manufacturing_order", "mo-1", now))
		if err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if ok {
			t.Error("expected duplicate append to be skipped")
		}
		db.AssertRowCount(t, "inventory_transactions", 1)
	})

	t.Run("Different type writes", func(t *testing.T) {
		ok, err := repo.Append(ctx, nil, ledgerRow(models.ItemKindRawMaterial, m.ID, models.TransactionTypeAdjustment, "-3", "manufacturing_order", "mo-1", now))
		if err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if !ok {
			t.Error("expected adjustment row to write")
		}
	})
}

func TestInventoryRepository_Balance(t *testing.T) {
	repo, db, ctx := setupInventoryTest(t)
	now := time.Now().UTC()

	p := db.InsertProduct(t)
	rows := []*models.InventoryTransaction{
		ledgerRow(models.ItemKindProduct, p.ID, models.TransactionTypeIn, "100", "opening_stock", p.ID, now),
		ledgerRow(models.ItemKindProduct, p.ID, models.TransactionTypeOut, "30", "manufacturing_order", "mo-1", now),
		ledgerRow(models.ItemKindProduct, p.ID, models.TransactionTypeAdjustment, "-2.5", "manual_adjustment", "adj-1", now),
	}
	for _, r := range rows {
		if _, err := repo.Append(ctx, nil, r); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	got, err := repo.Balance(ctx, nil, models.ItemKindProduct, p.ID)
	if err != nil {
		t.Fatalf("failed to compute balance: %v", err)
	}
	testutil.AssertDecimal(t, "balance", got, "67.5")

	empty, err := repo.Balance(ctx, nil, models.ItemKindRawMaterial, "none")
	if err != nil {
		t.Fatalf("failed to compute balance: %v", err)
	}
	testutil.AssertDecimal(t, "empty balance", empty, "0")
}

func TestInventoryRepository_List(t *testing.T) {
	repo, db, ctx := setupInventoryTest(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	m := db.InsertRawMaterial(t)
	for i := 0; i < 5; i++ {
		row := ledgerRow(models.ItemKindRawMaterial, m.ID, models.TransactionTypeIn, "1", "purchase", uuid.New().String(), base.Add(time.Duration(i)*time.Hour))
		if _, err := repo.Append(ctx, nil, row); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}
	out := ledgerRow(models.ItemKindRawMaterial, m.ID, models.TransactionTypeOut, "2", "manufacturing_order", "mo-9", base.Add(10*time.Hour))
	if _, err := repo.Append(ctx, nil, out); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	t.Run("Paginated newest first", func(t *testing.T) {
		list, err := repo.List(ctx, models.TransactionFilter{ItemKind: models.ItemKindRawMaterial, ItemID: m.ID}, models.Pagination{Page: 1, PageSize: 4})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if list.Total != 6 {
			t.Errorf("expected total 6, got %d", list.Total)
		}
		if len(list.Transactions) != 4 {
			t.Fatalf("expected 4 rows, got %d", len(list.Transactions))
		}
		if list.Transactions[0].ReferenceID != "mo-9" {
			t.Errorf("expected newest row first, got %s", list.Transactions[0].ReferenceID)
		}
	})

	t.Run("Filter by type", func(t *testing.T) {
		typ := models.TransactionTypeOut
		list, err := repo.List(ctx, models.TransactionFilter{Type: &typ}, models.DefaultPagination())
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if list.Total != 1 {
			t.Errorf("expected 1 out row, got %d", list.Total)
		}
	})

	t.Run("By reference", func(t *testing.T) {
		rows, err := repo.ListByReference(ctx, nil, "manufacturing_order", "mo-9")
		if err != nil {
			t.Fatalf("failed to list by reference: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		testutil.AssertDecimal(t, "quantity", rows[0].Quantity, "2")
	})
}
