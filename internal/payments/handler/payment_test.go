package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	customerservice "smartdorm/internal/customers/service"
	"smartdorm/internal/notices"
	"smartdorm/internal/payments/service"
	"smartdorm/internal/testutil"
	"smartdorm/internal/testutil/memstore"
	"smartdorm/pkg/blob"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/validator"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
)

func setup(t *testing.T) (*httprouter.Router, *memstore.Store, model.Bill) {
	t.Helper()
	cfg := testutil.NewConfig(testutil.NewClock(time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)))
	store := memstore.New()
	v := validator.New(cfg.Log)

	verifier := identity.NewStaticVerifier()
	verifier.Add("tok-a", identity.Identity{Subject: "UA"})
	verifier.Add("tok-b", identity.Identity{Subject: "UB"})

	svc := service.NewPaymentService(service.Dependencies{
		Repo:      store.Payments(),
		Bills:     store.Bills(),
		Auth:      customerservice.NewCustomerService(store.Customers(), verifier, v, cfg),
		Blobs:     blob.NewMemoryStorage(),
		TxManager: store,
		Notices:   notices.NewPublisher(&testutil.Notifier{}, store.Customers(), cfg),
		Validator: v,
		Config:    cfg,
	})
	router := httprouter.New()
	NewPaymentHandler(svc, cfg.Log).RegisterRoutes(router)

	customer := store.PutCustomer(model.Customer{ExternalID: "UA"})
	bill := store.PutBill(model.Bill{
		RoomNumber: "101",
		CustomerID: customer.ID,
		ExternalID: "UA",
		Period:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Rent:       3000,
		Total:      3000,
		DueDate:    time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
		Status:     model.BillUnpaid,
	})
	return router, store, bill
}

func do(router http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func slipBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(model.PaymentSubmission{
		Slip:            []byte("%PDF-1.4 transfer slip"),
		SlipContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestPaymentHandler_SubmitAndApprove(t *testing.T) {
	router, store, bill := setup(t)
	path := "/api/v1/bills/id/" + bill.ID + "/payments"

	if w := do(router, http.MethodPost, path, "tok-b", slipBody(t)); w.Code != http.StatusForbidden {
		t.Errorf("foreign submit status = %d, want 403", w.Code)
	}

	if w := do(router, http.MethodPost, path, "tok-a", slipBody(t)); w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %s", w.Code, w.Body.String())
	}
	if got, _ := store.Bill(bill.ID); got.Status != model.BillVerifying {
		t.Errorf("bill status = %q, want VERIFYING", got.Status)
	}

	if w := do(router, http.MethodPost, path, "tok-a", slipBody(t)); w.Code != http.StatusConflict {
		t.Errorf("resubmit while verifying status = %d, want 409", w.Code)
	}

	w := do(router, http.MethodGet, path, "", nil)
	var listed struct {
		Data []model.Payment `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || len(listed.Data) != 1 {
		t.Errorf("list status = %d, payments = %d", w.Code, len(listed.Data))
	}

	if w := do(router, http.MethodPost, path+"/approve", "", nil); w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", w.Code, w.Body.String())
	}
	if got, _ := store.Bill(bill.ID); got.Status != model.BillPaid {
		t.Errorf("bill status = %q, want PAID", got.Status)
	}
}

func TestPaymentHandler_MissingToken(t *testing.T) {
	router, _, bill := setup(t)

	w := do(router, http.MethodPost, "/api/v1/bills/id/"+bill.ID+"/payments", "", slipBody(t))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
