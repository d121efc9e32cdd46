package sales

import (
	"context"
	"testing"
	"time"

	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/notify"
	"github.com/plantops/plantops/internal/services/manufacturing"
	"github.com/plantops/plantops/internal/services/reservations"
	"github.com/plantops/plantops/internal/testutil"
	"github.com/plantops/plantops/internal/util"
)

type fixture struct {
	svc      *Service
	mfg      *manufacturing.Service
	res      *reservations.Service
	db       *testutil.TestDB
	notifier *testutil.RecordingNotifier
}

func setup(t *testing.T) (*fixture, context.Context) {
	t.Helper()

	db := testutil.NewTestDB(t)
	clock := util.NewManualClock(time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC))
	notifier := &testutil.RecordingNotifier{}
	dispatcher := notify.NewDispatcher(testutil.StaticDirectory{
		models.CapabilityInventoryManager:   {"u-stock"},
		models.CapabilityManufactureManager: {"u-plant"},
		models.CapabilityPurchasing:         {"u-buyer"},
	}, notifier, config.Default().Notifications)

	mfg := manufacturing.NewService(db.DB.DB, manufacturing.Options{Clock: clock, Dispatcher: dispatcher})

	return &fixture{
		svc:      NewService(db.DB.DB, Options{Clock: clock, Dispatcher: dispatcher, Manufacturing: mfg}),
		mfg:      mfg,
		res:      reservations.NewService(db.DB.DB, clock),
		db:       db,
		notifier: notifier,
	}, context.Background()
}

func (f *fixture) quotation(t *testing.T, ctx context.Context, items ...ItemInput) *models.Quotation {
	t.Helper()

	q, err := f.svc.CreateQuotation(ctx, CreateQuotationInput{CustomerName: "Acme Tools", Items: items})
	if err != nil {
		t.Fatalf("CreateQuotation failed: %v", err)
	}
	return q
}

func item(productID, qty string) ItemInput {
	return ItemInput{
		ProductID:   &productID,
		Description: "Line " + productID[:4],
		Quantity:    testutil.Dec(qty),
		UnitPrice:   testutil.Dec("19.99"),
	}
}

func TestService_CreateQuotation(t *testing.T) {
	f, ctx := setup(t)

	p := f.db.InsertProduct(t)

	q := f.quotation(t, ctx, item(p.ID, "2"), ItemInput{Description: "Installation", Quantity: testutil.Dec("1")})
	if q.QuotationNumber != "QT-000001" {
		t.Errorf("QuotationNumber = %s, want QT-000001", q.QuotationNumber)
	}
	if q.Status != models.QuotationStatusDraft {
		t.Errorf("status = %s, want draft", q.Status)
	}

	got, err := f.svc.GetQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuotation failed: %v", err)
	}
	if len(got.Items) != 2 || got.Items[1].ProductID != nil {
		t.Errorf("unexpected items %+v", got.Items)
	}
	testutil.AssertDecimal(t, "line total", got.Items[0].LineTotal(), "39.98")

	t.Run("Validation", func(t *testing.T) {
		tests := []struct {
			name  string
			input CreateQuotationInput
			check func(error) bool
		}{
			{"no customer", CreateQuotationInput{Items: []ItemInput{item(p.ID, "1")}}, models.IsValidation},
			{"no items", CreateQuotationInput{CustomerName: "Acme"}, models.IsValidation},
			{"zero quantity", CreateQuotationInput{CustomerName: "Acme", Items: []ItemInput{item(p.ID, "0")}}, models.IsValidation},
			{"unknown product", CreateQuotationInput{CustomerName: "Acme", Items: []ItemInput{item("missing-product", "1")}}, models.IsNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := f.svc.CreateQuotation(ctx, tt.input); !tt.check(err) {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})
}

func TestService_AcceptWithManufacturing(t *testing.T) {
	f, ctx := setup(t)

	p := f.db.InsertProduct(t, testutil.WithStock("3"))
	q := f.quotation(t, ctx, item(p.ID, "10"), ItemInput{Description: "Freight", Quantity: testutil.Dec("1")})

	if _, err := f.svc.Send(ctx, q.ID); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	actor := "u-sales"
	acc, err := f.svc.Accept(ctx, q.ID, true, &actor)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if acc.Quotation.Status != models.QuotationStatusAccepted {
		t.Errorf("status = %s, want accepted", acc.Quotation.Status)
	}
	if len(acc.Orders) != 1 {
		t.Fatalf("expected exactly one MO, got %d", len(acc.Orders))
	}
	mo := acc.Orders[0]
	testutil.AssertDecimal(t, "mo quantity", mo.Quantity, "10")
	if mo.QuotationID == nil || *mo.QuotationID != q.ID {
		t.Errorf("expected MO linked to quotation %s", q.ID)
	}
	if mo.CreatedBy == nil || *mo.CreatedBy != actor {
		t.Errorf("expected MO created by %s", actor)
	}

	if len(acc.Reservations) != 1 {
		t.Fatalf("expected one reservation, got %d", len(acc.Reservations))
	}
	r, err := f.res.Get(ctx, acc.Reservations[0].ID)
	if err != nil {
		t.Fatalf("reservation Get failed: %v", err)
	}
	if r.Status != models.ReservationStatusPending {
		t.Errorf("reservation status = %s, want pending", r.Status)
	}
	testutil.AssertDecimal(t, "reservation quantity", r.Quantity, "10")
	if r.MOID == nil || *r.MOID != mo.ID {
		t.Errorf("expected reservation linked to MO %s", mo.ID)
	}
	testutil.AssertDecimal(t, "assigned", f.db.Assigned(t, p.ID), "10")
	f.db.AssertAssignedQuantity(t, p.ID)

	t.Run("Accept again is rejected", func(t *testing.T) {
		if _, err := f.svc.Accept(ctx, q.ID, true, nil); !models.IsTransition(err) {
			t.Errorf("expected transition error, got %v", err)
		}
		f.db.AssertRowCount(t, "manufacturing_orders", 1)
	})
}

func TestService_AcceptWithoutManufacturing(t *testing.T) {
	f, ctx := setup(t)

	a := f.db.InsertProduct(t)
	b := f.db.InsertProduct(t)
	q := f.quotation(t, ctx, item(a.ID, "4"), item(b.ID, "6"))

	acc, err := f.svc.Accept(ctx, q.ID, false, nil)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if len(acc.Orders) != 0 {
		t.Errorf("expected no MOs, got %d", len(acc.Orders))
	}
	if len(acc.Reservations) != 2 {
		t.Errorf("expected 2 reservations, got %d", len(acc.Reservations))
	}
	testutil.AssertDecimal(t, "a assigned", f.db.Assigned(t, a.ID), "4")
	testutil.AssertDecimal(t, "b assigned", f.db.Assigned(t, b.ID), "6")
	f.db.AssertRowCount(t, "manufacturing_orders", 0)
}

func TestService_AcceptNotifiesShortage(t *testing.T) {
	f, ctx := setup(t)

	p := f.db.InsertProduct(t)
	m := f.db.InsertRawMaterial(t, testutil.WithMaterialStock("1"))
	f.db.InsertBOMLine(t, p.ID, m.ID, "3")
	q := f.quotation(t, ctx, item(p.ID, "2"))

	acc, err := f.svc.Accept(ctx, q.ID, true, nil)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	sent := f.notifier.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 shortage notification, got %d", len(sent))
	}
	if sent[0].ReferenceID != acc.Orders[0].ID {
		t.Errorf("notification references %s, want %s", sent[0].ReferenceID, acc.Orders[0].ID)
	}
}

func TestService_RejectAndExpire(t *testing.T) {
	f, ctx := setup(t)

	p := f.db.InsertProduct(t)

	t.Run("Reject accepted quotation releases reservations", func(t *testing.T) {
		q := f.quotation(t, ctx, item(p.ID, "5"))
		if _, err := f.svc.Accept(ctx, q.ID, false, nil); err != nil {
			t.Fatalf("Accept failed: %v", err)
		}

		c, err := f.svc.Reject(ctx, q.ID)
		if err != nil {
			t.Fatalf("Reject failed: %v", err)
		}
		if c.Quotation.Status != models.QuotationStatusRejected {
			t.Errorf("status = %s, want rejected", c.Quotation.Status)
		}
		if len(c.Released.Reservations) != 1 {
			t.Errorf("expected 1 released reservation, got %d", len(c.Released.Reservations))
		}
		testutil.AssertDecimal(t, "assigned", f.db.Assigned(t, p.ID), "0")
	})

	t.Run("Expire draft quotation", func(t *testing.T) {
		q := f.quotation(t, ctx, item(p.ID, "5"))
		c, err := f.svc.Expire(ctx, q.ID)
		if err != nil {
			t.Fatalf("Expire failed: %v", err)
		}
		if c.Quotation.Status != models.QuotationStatusExpired {
			t.Errorf("status = %s, want expired", c.Quotation.Status)
		}
		if len(c.Released.Reservations) != 0 {
			t.Errorf("expected nothing released, got %d", len(c.Released.Reservations))
		}
	})

	t.Run("Closed quotation cannot be accepted", func(t *testing.T) {
		q := f.quotation(t, ctx, item(p.ID, "1"))
		if _, err := f.svc.Reject(ctx, q.ID); err != nil {
			t.Fatalf("Reject failed: %v", err)
		}
		if _, err := f.svc.Accept(ctx, q.ID, false, nil); !models.IsTransition(err) {
			t.Errorf("expected transition error, got %v", err)
		}
		if _, err := f.svc.Send(ctx, q.ID); !models.IsTransition(err) {
			t.Errorf("expected transition error, got %v", err)
		}
	})
}

func TestService_ConvertToSalesOrder(t *testing.T) {
	f, ctx := setup(t)

	p := f.db.InsertProduct(t)
	q := f.quotation(t, ctx, item(p.ID, "10"))

	t.Run("Draft cannot be converted", func(t *testing.T) {
		if _, err := f.svc.ConvertToSalesOrder(ctx, q.ID); !models.IsTransition(err) {
			t.Errorf("expected transition error, got %v", err)
		}
	})

	acc, err := f.svc.Accept(ctx, q.ID, true, nil)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	so, err := f.svc.ConvertToSalesOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("ConvertToSalesOrder failed: %v", err)
	}

	if so.OrderNumber != "SO-000001" {
		t.Errorf("OrderNumber = %s, want SO-000001", so.OrderNumber)
	}
	if so.QuotationID == nil || *so.QuotationID != q.ID {
		t.Errorf("expected sales order linked to quotation")
	}
	if so.Status != models.SalesOrderStatusPending || len(so.Items) != 1 {
		t.Errorf("unexpected sales order %+v", so)
	}

	got, err := f.svc.GetQuotation(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuotation failed: %v", err)
	}
	if got.Status != models.QuotationStatusConverted {
		t.Errorf("quotation status = %s, want converted", got.Status)
	}

	mo, err := f.mfg.Get(ctx, acc.Orders[0].ID)
	if err != nil {
		t.Fatalf("Get MO failed: %v", err)
	}
	if mo.SalesOrderID == nil || *mo.SalesOrderID != so.ID {
		t.Errorf("expected MO linked to sales order %s", so.ID)
	}
	if mo.BuildToStock() {
		t.Error("expected linked MO not to be build-to-stock")
	}
}

func TestService_OnShipment(t *testing.T) {
	f, ctx := setup(t)

	a := f.db.InsertProduct(t, testutil.WithStock("50"))
	b := f.db.InsertProduct(t, testutil.WithStock("50"))
	q := f.quotation(t, ctx, item(a.ID, "10"), item(b.ID, "20"))

	acc, err := f.svc.Accept(ctx, q.ID, true, nil)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if _, err := f.mfg.Start(ctx, acc.Orders[0].ID, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	unrelated, err := f.res.Create(ctx, reservations.CreateInput{ProductID: a.ID, Quantity: testutil.Dec("1")})
	if err != nil {
		t.Fatalf("reservation Create failed: %v", err)
	}

	so, err := f.svc.ConvertToSalesOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("ConvertToSalesOrder failed: %v", err)
	}
	if _, err := f.svc.ConfirmSalesOrder(ctx, so.ID); err != nil {
		t.Fatalf("ConfirmSalesOrder failed: %v", err)
	}

	before := len(f.notifier.Sent())
	c, err := f.svc.OnShipment(ctx, so.ID)
	if err != nil {
		t.Fatalf("OnShipment failed: %v", err)
	}

	if c.SalesOrder.Status != models.SalesOrderStatusShipped || c.SalesOrder.ShippedAt == nil {
		t.Errorf("unexpected sales order %+v", c.SalesOrder)
	}
	if len(c.Released.Reservations) != 2 {
		t.Errorf("expected 2 released reservations, got %d", len(c.Released.Reservations))
	}
	for _, r := range acc.Reservations {
		got, err := f.res.Get(ctx, r.ID)
		if err != nil {
			t.Fatalf("reservation Get failed: %v", err)
		}
		if got.Status != models.ReservationStatusCompleted {
			t.Errorf("reservation %s status = %s, want completed", r.ID, got.Status)
		}
	}

	testutil.AssertDecimal(t, "a assigned", f.db.Assigned(t, a.ID), "1")
	testutil.AssertDecimal(t, "b assigned", f.db.Assigned(t, b.ID), "0")
	f.db.AssertAssignedQuantity(t, a.ID)
	f.db.AssertAssignedQuantity(t, b.ID)
	testutil.AssertDecimal(t, "a stock", f.db.Stock(t, models.ItemKindProduct, a.ID), "50")

	got, err := f.res.Get(ctx, unrelated.ID)
	if err != nil {
		t.Fatalf("reservation Get failed: %v", err)
	}
	if got.Status != models.ReservationStatusPending {
		t.Errorf("unrelated reservation moved to %s", got.Status)
	}

	sent := f.notifier.Sent()[before:]
	if len(sent) != 1 {
		t.Fatalf("expected 1 shipment notification, got %d", len(sent))
	}
	if sent[0].Severity != models.SeverityInfo || sent[0].ReferenceID != so.ID {
		t.Errorf("unexpected shipment notification %+v", sent[0])
	}
	if len(sent[0].UserIDs) != 2 {
		t.Errorf("expected inventory and manufacture manager recipients, got %v", sent[0].UserIDs)
	}

	t.Run("Shipping again is rejected", func(t *testing.T) {
		if _, err := f.svc.OnShipment(ctx, so.ID); !models.IsTransition(err) {
			t.Errorf("expected transition error, got %v", err)
		}
	})
}

func TestService_CancelSalesOrder(t *testing.T) {
	f, ctx := setup(t)

	p := f.db.InsertProduct(t)
	q := f.quotation(t, ctx, item(p.ID, "8"))
	if _, err := f.svc.Accept(ctx, q.ID, false, nil); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	so, err := f.svc.ConvertToSalesOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("ConvertToSalesOrder failed: %v", err)
	}

	c, err := f.svc.CancelSalesOrder(ctx, so.ID)
	if err != nil {
		t.Fatalf("CancelSalesOrder failed: %v", err)
	}
	if c.SalesOrder.Status != models.SalesOrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", c.SalesOrder.Status)
	}
	testutil.AssertDecimal(t, "assigned", f.db.Assigned(t, p.ID), "0")

	if _, err := f.svc.ConfirmSalesOrder(ctx, so.ID); !models.IsTransition(err) {
		t.Errorf("expected transition error, got %v", err)
	}
}
