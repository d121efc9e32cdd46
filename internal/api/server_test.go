package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plantops/plantops/internal/app"
	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/lock"
	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/testutil"
	"github.com/plantops/plantops/internal/util"
)

// unknownID is well formed but never issued.
const unknownID = "0190c9a1-7f3b-7c2e-9b5a-3d2f1e0a4b6c"

type harness struct {
	router *gin.Engine
	db     *testutil.TestDB
	app    *app.App
}

func setup(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	a, err := app.New(context.Background(), config.Default(), db.DB, app.Deps{
		Clock:    util.NewManualClock(time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)),
		Locker:   lock.NewLocalLocker(5 * time.Second),
		Notifier: &testutil.RecordingNotifier{},
	})
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	return &harness{router: NewRouter(a), db: db, app: a}
}

func (h *harness) do(t *testing.T, method, path string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()

	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func TestHealthAndRouting(t *testing.T) {
	h := setup(t)

	w := h.do(t, http.MethodGet, "/healthz", nil, "")
	expectStatus(t, w, http.StatusNoContent)
	if w.Header().Get(HeaderRequestID) == "" {
		t.Error("expected a request id header")
	}

	w = h.do(t, http.MethodGet, "/api/v1/nowhere", nil, "")
	expectStatus(t, w, http.StatusNotFound)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &models.NotFoundError{Entity: "product", ID: "x"}, http.StatusNotFound},
		{"validation", &models.ValidationError{Entity: "product", Field: "sku", Message: "is required"}, http.StatusBadRequest},
		{"transition", &models.TransitionError{Entity: "manufacturing order", ID: "m", Current: "closed", Requested: "in_progress"}, http.StatusConflict},
		{"conflict", &models.ConflictError{Entity: "manufacturing order", ID: "m", Reason: "locked"}, http.StatusConflict},
		{"other", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProducts(t *testing.T) {
	h := setup(t)

	w := h.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"sku": "CHAIR-1", "name": "Chair", "unit": "pcs", "opening_stock": "4",
	}, "u-admin")
	expectStatus(t, w, http.StatusCreated)
	p := decode[models.Product](t, w)
	testutil.AssertDecimal(t, "current_stock", p.CurrentStock, "4")

	t.Run("Duplicate SKU is a conflict or validation failure", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/v1/products", map[string]any{"sku": "CHAIR-1", "name": "Again"}, "")
		if w.Code != http.StatusConflict && w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 409 or 400", w.Code)
		}
	})

	t.Run("Missing name is rejected", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/v1/products", map[string]any{"sku": "X-1"}, "")
		expectStatus(t, w, http.StatusBadRequest)
	})

	t.Run("Malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		h.router.ServeHTTP(w, req)
		expectStatus(t, w, http.StatusBadRequest)
	})

	t.Run("Get and list", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/v1/products/"+p.ID, nil, "")
		expectStatus(t, w, http.StatusOK)

		w = h.do(t, http.MethodGet, "/api/v1/products?page=1&page_size=10", nil, "")
		expectStatus(t, w, http.StatusOK)
		list := decode[models.ProductList](t, w)
		if list.Total != 1 || len(list.Products) != 1 {
			t.Errorf("list = %+v, want one product", list)
		}

		w = h.do(t, http.MethodGet, "/api/v1/products/"+unknownID, nil, "")
		expectStatus(t, w, http.StatusNotFound)
	})

	t.Run("Malformed IDs are rejected", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/products/missing",
			"/api/v1/products/missing/availability?quantity=1",
			"/api/v1/raw-materials/42",
		} {
			w := h.do(t, http.MethodGet, path, nil, "")
			expectStatus(t, w, http.StatusBadRequest)
		}
	})

	t.Run("Availability needs a quantity", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/v1/products/"+p.ID+"/availability", nil, "")
		expectStatus(t, w, http.StatusBadRequest)

		w = h.do(t, http.MethodGet, "/api/v1/products/"+p.ID+"/availability?quantity=3", nil, "")
		expectStatus(t, w, http.StatusOK)
	})

	t.Run("Available to promise", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/v1/products/"+p.ID+"/atp", nil, "")
		expectStatus(t, w, http.StatusOK)
	})
}

func TestManufacturingLifecycle(t *testing.T) {
	h := setup(t)

	p := h.db.InsertProduct(t)

	w := h.do(t, http.MethodPost, "/api/v1/raw-materials", map[string]any{
		"sku": "STEEL", "name": "Steel", "unit": "kg", "opening_stock": "100",
	}, "")
	expectStatus(t, w, http.StatusCreated)
	m := decode[models.RawMaterial](t, w)

	w = h.do(t, http.MethodPost, "/api/v1/products/"+p.ID+"/bom", map[string]any{
		"raw_material_id": m.ID, "quantity_per_unit": "2",
	}, "")
	expectStatus(t, w, http.StatusCreated)

	w = h.do(t, http.MethodPost, "/api/v1/manufacturing-orders", map[string]any{
		"product_id": p.ID, "quantity": "5",
	}, "u-plant")
	expectStatus(t, w, http.StatusCreated)
	mo := decode[models.ManufacturingOrder](t, w)
	if mo.Status != models.MOStatusPlanned {
		t.Fatalf("status = %s, want planned", mo.Status)
	}
	if mo.CreatedBy == nil || *mo.CreatedBy != "u-plant" {
		t.Errorf("created_by = %v, want u-plant", mo.CreatedBy)
	}

	base := "/api/v1/manufacturing-orders/" + mo.ID

	w = h.do(t, http.MethodPost, base+"/complete", nil, "")
	expectStatus(t, w, http.StatusConflict)

	w = h.do(t, http.MethodPost, base+"/start", nil, "u-plant")
	expectStatus(t, w, http.StatusOK)
	testutil.AssertDecimal(t, "material stock", h.db.Stock(t, models.ItemKindRawMaterial, m.ID), "90")

	w = h.do(t, http.MethodPost, base+"/start", nil, "u-plant")
	expectStatus(t, w, http.StatusConflict)

	w = h.do(t, http.MethodPost, base+"/complete", nil, "")
	expectStatus(t, w, http.StatusOK)
	done := decode[struct {
		Records []models.QualityControlRecord `json:"quality_control_records"`
	}](t, w)
	if len(done.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(done.Records))
	}
	qcPath := "/api/v1/quality-control/" + done.Records[0].ID

	t.Run("Decisions need an inspector", func(t *testing.T) {
		w := h.do(t, http.MethodPost, qcPath+"/accept", nil, "")
		expectStatus(t, w, http.StatusUnauthorized)
	})

	w = h.do(t, http.MethodPost, qcPath+"/accept", map[string]any{"notes": "ok"}, "u-qc")
	expectStatus(t, w, http.StatusOK)

	w = h.do(t, http.MethodGet, base, nil, "")
	expectStatus(t, w, http.StatusOK)
	if got := decode[models.ManufacturingOrder](t, w); got.Status != models.MOStatusClosed {
		t.Errorf("status = %s, want closed", got.Status)
	}
	testutil.AssertDecimal(t, "product stock", h.db.Stock(t, models.ItemKindProduct, p.ID), "5")

	w = h.do(t, http.MethodGet, "/api/v1/manufacturing-orders?status=closed", nil, "")
	expectStatus(t, w, http.StatusOK)

	w = h.do(t, http.MethodGet, "/api/v1/manufacturing-orders?status=bogus", nil, "")
	expectStatus(t, w, http.StatusBadRequest)

	w = h.do(t, http.MethodGet, "/api/v1/inventory/transactions?item_id="+m.ID, nil, "")
	expectStatus(t, w, http.StatusOK)
	hist := decode[models.TransactionList](t, w)
	if hist.Total != 2 {
		t.Errorf("ledger rows = %d, want opening and deduction", hist.Total)
	}

	w = h.do(t, http.MethodGet, "/api/v1/inventory/reconcile/raw_material/"+m.ID, nil, "")
	expectStatus(t, w, http.StatusOK)
	if rec := decode[struct {
		Balanced bool `json:"balanced"`
	}](t, w); !rec.Balanced {
		t.Errorf("ledger and counter drifted: %s", w.Body.String())
	}
}

func TestDeleteManufacturingOrder(t *testing.T) {
	h := setup(t)

	p := h.db.InsertProduct(t)
	w := h.do(t, http.MethodPost, "/api/v1/manufacturing-orders", map[string]any{
		"product_id": p.ID, "quantity": "1",
	}, "")
	expectStatus(t, w, http.StatusCreated)
	mo := decode[models.ManufacturingOrder](t, w)

	w = h.do(t, http.MethodDelete, "/api/v1/manufacturing-orders/"+mo.ID, map[string]any{"reason": "duplicate"}, "u-admin")
	expectStatus(t, w, http.StatusOK)
	audit := decode[models.MoDeletionAudit](t, w)
	if audit.MONumber != mo.MONumber {
		t.Errorf("audit mo_number = %s, want %s", audit.MONumber, mo.MONumber)
	}

	w = h.do(t, http.MethodGet, "/api/v1/manufacturing-orders/"+mo.ID, nil, "")
	expectStatus(t, w, http.StatusNotFound)

	w = h.do(t, http.MethodGet, "/api/v1/manufacturing-orders/"+mo.ID+"/deletion-audits", nil, "")
	expectStatus(t, w, http.StatusOK)
}

func TestQuotationFlow(t *testing.T) {
	h := setup(t)

	p := h.db.InsertProduct(t, testutil.WithStock("20"))

	w := h.do(t, http.MethodPost, "/api/v1/quotations", map[string]any{
		"customer_name": "Acme",
		"items": []map[string]any{
			{"product_id": p.ID, "description": "Chairs", "quantity": "3", "unit_price": "49.90"},
			{"description": "Delivery", "quantity": "1", "unit_price": "15"},
		},
	}, "")
	expectStatus(t, w, http.StatusCreated)
	q := decode[models.Quotation](t, w)

	base := "/api/v1/quotations/" + q.ID

	w = h.do(t, http.MethodPost, base+"/convert", nil, "")
	expectStatus(t, w, http.StatusConflict)

	expectStatus(t, h.do(t, http.MethodPost, base+"/send", nil, ""), http.StatusOK)
	expectStatus(t, h.do(t, http.MethodPost, base+"/accept", map[string]any{"create_mo": false}, "u-sales"), http.StatusOK)
	testutil.AssertDecimal(t, "assigned", h.db.Assigned(t, p.ID), "3")

	w = h.do(t, http.MethodPost, base+"/convert", nil, "")
	expectStatus(t, w, http.StatusCreated)
	so := decode[models.SalesOrder](t, w)

	orderPath := "/api/v1/sales-orders/" + so.ID
	expectStatus(t, h.do(t, http.MethodPost, orderPath+"/confirm", nil, ""), http.StatusOK)
	expectStatus(t, h.do(t, http.MethodPost, orderPath+"/ship", nil, ""), http.StatusOK)
	testutil.AssertDecimal(t, "assigned after shipment", h.db.Assigned(t, p.ID), "0")

	expectStatus(t, h.do(t, http.MethodPost, orderPath+"/cancel", nil, ""), http.StatusConflict)
}

func TestNotifications(t *testing.T) {
	h := setup(t)

	w := h.do(t, http.MethodGet, "/api/v1/notifications", nil, "")
	expectStatus(t, w, http.StatusUnauthorized)

	w = h.do(t, http.MethodGet, "/api/v1/notifications?limit=0", nil, "u-1")
	expectStatus(t, w, http.StatusBadRequest)

	w = h.do(t, http.MethodGet, "/api/v1/notifications?unread=true", nil, "u-1")
	expectStatus(t, w, http.StatusOK)

	w = h.do(t, http.MethodPost, "/api/v1/notifications/"+unknownID+"/read", nil, "u-1")
	expectStatus(t, w, http.StatusNotFound)

	w = h.do(t, http.MethodPost, "/api/v1/notifications/missing/read", nil, "u-1")
	expectStatus(t, w, http.StatusBadRequest)
}
