package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/testutil"
)

func setupManufacturingTest(t *testing.T) (*ManufacturingRepository, *testutil.TestDB, context.Context) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return NewManufacturingRepository(db.DB.DB), db, context.Background()
}

func TestManufacturingRepository_Create(t *testing.T) {
	repo, db, ctx := setupManufacturingTest(t)

	frame := db.InsertProduct(t)
	wheel := db.InsertProduct(t)

	mo := testutil.FixtureManufacturingOrder(frame.ID, func(m *models.ManufacturingOrder) {
		m.Priority = models.PriorityHigh
		m.Notes = "rush"
		m.Items = []*models.MoItem{{
			ID:        uuid.New().String(),
			MOID:      m.ID,
			ProductID: wheel.ID,
			Quantity:  testutil.Dec("4"),
			Status:    models.MoItemStatusPending,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		}}
	})

	t.Run("Create with items", func(t *testing.T) {
		if err := repo.Create(ctx, nil, mo); err != nil {
			t.Fatalf("failed to create mo: %v", err)
		}

		got, err := repo.Get(ctx, nil, mo.ID)
		if err != nil {
			t.Fatalf("failed to get mo: %v", err)
		}
		if got.MONumber != mo.MONumber {
			t.Errorf("expected number %s, got %s", mo.MONumber, got.MONumber)
		}
		if got.Priority != models.PriorityHigh {
			t.Errorf("expected priority high, got %s", got.Priority)
		}
		if got.Notes != "rush" {
			t.Errorf("expected notes rush, got %q", got.Notes)
		}
		if len(got.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(got.Items))
		}
		testutil.AssertDecimal(t, "item quantity", got.Items[0].Quantity, "4")
	})

	t.Run("Duplicate number fails", func(t *testing.T) {
		dup := testutil.FixtureManufacturingOrder(frame.ID, func(m *models.ManufacturingOrder) { m.MONumber = mo.MONumber })
		if err := repo.Create(ctx, nil, dup); err == nil {
			t.Error("expected error for duplicate mo number")
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		if _, err := repo.Get(ctx, nil, "missing"); !models.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestManufacturingRepository_Transition(t *testing.T) {
	repo, db, ctx := setupManufacturingTest(t)

	p := db.InsertProduct(t)
	mo := testutil.FixtureManufacturingOrder(p.ID)
	if err := repo.Create(ctx, nil, mo); err != nil {
		t.Fatalf("failed to create mo: %v", err)
	}

	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	ok, err := repo.Transition(ctx, nil, mo.ID, models.MOStatusPlanned, models.MOStatusInProgress, &start, nil, start)
	if err != nil {
		t.Fatalf("failed to transition: %v", err)
	}
	if !ok {
		t.Fatal("expected planned -> in_progress to apply")
	}

	ok, err = repo.Transition(ctx, nil, mo.ID, models.MOStatusPlanned, models.MOStatusInProgress, &start, nil, start)
	if err != nil {
		t.Fatalf("failed to transition: %v", err)
	}
	if ok {
		t.Error("expected stale transition to report false")
	}

	got, err := repo.Get(ctx, nil, mo.ID)
	if err != nil {
		t.Fatalf("failed to get mo: %v", err)
	}
	if got.Status != models.MOStatusInProgress {
		t.Errorf("expected in_progress, got %s", got.Status)
	}
	if got.ActualStart == nil || !got.ActualStart.Equal(start) {
		t.Errorf("expected actual_start %v, got %v", start, got.ActualStart)
	}
}

func TestManufacturingRepository_NextNumber(t *testing.T) {
	repo, db, ctx := setupManufacturingTest(t)

	p := db.InsertProduct(t)

	first, err := repo.NextNumber(ctx, nil, "MO")
	if err != nil {
		t.Fatalf("failed to allocate number: %v", err)
	}
	if first != "MO-000001" {
		t.Errorf("expected MO-000001, got %s", first)
	}

	mo := testutil.FixtureManufacturingOrder(p.ID, func(m *models.ManufacturingOrder) { m.MONumber = "MO-000041" })
	if err := repo.Create(ctx, nil, mo); err != nil {
		t.Fatalf("failed to create mo: %v", err)
	}

	next, err := repo.NextNumber(ctx, nil, "MO")
	if err != nil {
		t.Fatalf("failed to allocate number: %v", err)
	}
	if next != "MO-000042" {
		t.Errorf("expected MO-000042, got %s", next)
	}

	other, err := repo.NextNumber(ctx, nil, "WO")
	if err != nil {
		t.Fatalf("failed to allocate number: %v", err)
	}
	if other != "WO-000001" {
		t.Errorf("expected WO-000001, got %s", other)
	}
}

func TestManufacturingRepository_NextNumberPastSixDigits(t *testing.T) {
	repo, db, ctx := setupManufacturingTest(t)

	p := db.InsertProduct(t)

	for _, number := range []string{"MO-999999", "MO-1000000"} {
		mo := testutil.FixtureManufacturingOrder(p.ID, func(m *models.ManufacturingOrder) { m.MONumber = number })
		if err := repo.Create(ctx, nil, mo); err != nil {
			t.Fatalf("failed to create mo %s: %v", number, err)
		}
	}

	next, err := repo.NextNumber(ctx, nil, "MO")
	if err != nil {
		t.Fatalf("failed to allocate number: %v", err)
	}
	if next != "MO-1000001" {
		t.Errorf("expected MO-1000001, got %s", next)
	}

	again, err := repo.NextNumber(ctx, nil, "MO")
	if err != nil {
		t.Fatalf("failed to allocate number: %v", err)
	}
	if again != "MO-1000002" {
		t.Errorf("expected MO-1000002, got %s", again)
	}
}

func TestManufacturingRepository_List(t *testing.T) {
	repo, db, ctx := setupManufacturingTest(t)

	a := db.InsertProduct(t)
	b := db.InsertProduct(t)

	started := models.MOStatusInProgress
	for i, spec := range []struct {
		product string
		status  models.MOStatus
	}{
		{a.ID, models.MOStatusPlanned},
		{a.ID, models.MOStatusInProgress},
		{b.ID, models.MOStatusInProgress},
	} {
		mo := testutil.FixtureManufacturingOrder(spec.product, func(m *models.ManufacturingOrder) {
			m.Status = spec.status
			m.CreatedAt = m.CreatedAt.Add(time.Duration(i) * time.Minute)
		})
		if err := repo.Create(ctx, nil, mo); err != nil {
			t.Fatalf("failed to create mo: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter models.MOFilter
		want   int
	}{
		{"All", models.MOFilter{}, 3},
		{"By product", models.MOFilter{ProductID: a.ID}, 2},
		{"By status", models.MOFilter{Status: &started}, 2},
		{"By product and status", models.MOFilter{ProductID: b.ID, Status: &started}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(ctx, tt.filter, models.DefaultPagination())
			if err != nil {
				t.Fatalf("failed to list: %v", err)
			}
			if list.Total != tt.want {
				t.Errorf("expected %d orders, got %d", tt.want, list.Total)
			}
		})
	}
}

func TestManufacturingRepository_DeleteAndAudit(t *testing.T) {
	repo, db, ctx := setupManufacturingTest(t)

	p := db.InsertProduct(t)
	mo := testutil.FixtureManufacturingOrder(p.ID)
	if err := repo.Create(ctx, nil, mo); err != nil {
		t.Fatalf("failed to create mo: %v", err)
	}

	actor := "user-7"
	audit := &models.MoDeletionAudit{
		ID:        uuid.New().String(),
		MOID:      mo.ID,
		MONumber:  mo.MONumber,
		Snapshot:  `{"id":"` + mo.ID + `"}`,
		DeletedBy: &actor,
		Reason:    "duplicate",
		DeletedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := repo.InsertDeletionAudit(ctx, nil, audit); err != nil {
		t.Fatalf("failed to insert audit: %v", err)
	}

	ok, err := repo.Delete(ctx, nil, mo.ID)
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if !ok {
		t.Error("expected delete to remove the order")
	}

	ok, err = repo.Delete(ctx, nil, mo.ID)
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if ok {
		t.Error("expected second delete to report false")
	}

	audits, err := repo.ListDeletionAudits(ctx, mo.ID)
	if err != nil {
		t.Fatalf("failed to list audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("expected audit to survive delete, got %d", len(audits))
	}
	if audits[0].DeletedBy == nil || *audits[0].DeletedBy != actor {
		t.Errorf("expected deleted_by %s, got %v", actor, audits[0].DeletedBy)
	}
	if audits[0].Reason != "duplicate" {
		t.Errorf("expected reason duplicate, got %q", audits[0].Reason)
	}
}
