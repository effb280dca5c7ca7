package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"smartdorm/internal/bookings/service"
	customerservice "smartdorm/internal/customers/service"
	"smartdorm/internal/notices"
	roomservice "smartdorm/internal/rooms/service"
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

func newRouter(t *testing.T) (*httprouter.Router, *memstore.Store) {
	t.Helper()
	cfg := testutil.NewConfig(testutil.NewClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)))
	store := memstore.New()
	v := validator.New(cfg.Log)

	verifier := identity.NewStaticVerifier()
	verifier.Add("tok-a", identity.Identity{Subject: "UA", Name: "Anong"})
	verifier.Add("tok-b", identity.Identity{Subject: "UB", Name: "Boon"})

	svc := service.NewBookingService(service.Dependencies{
		Repo:      store.Bookings(),
		Rooms:     roomservice.NewRoomService(store.Rooms(), store, v, cfg),
		Customers: customerservice.NewCustomerService(store.Customers(), verifier, v, cfg),
		Blobs:     blob.NewMemoryStorage(),
		TxManager: store,
		Notices:   notices.NewPublisher(&testutil.Notifier{}, store.Customers(), cfg),
		Validator: v,
		Config:    cfg,
	})

	router := httprouter.New()
	NewBookingHandler(svc, cfg.Log).RegisterRoutes(router)

	store.PutRoom(model.Room{Number: "101", Rent: 3000, Deposit: 6000, Status: model.RoomAvailable})
	return router, store
}

func bookingBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(model.BookingRequest{
		RoomNumber:      "101",
		CheckinDate:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Profile:         model.CustomerProfile{FirstName: "Anong", LastName: "Suk", Phone: "+66812345678"},
		Slip:            []byte("\x89PNG\r\n\x1a\nslip"),
		SlipContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
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

func TestBookingHandler_CreateAndApprove(t *testing.T) {
	router, store := newRouter(t)

	w := do(router, http.MethodPost, "/api/v1/bookings", "tok-a", bookingBody(t))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		Data model.Booking `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.ID == "" || created.Data.Approval != model.ApprovalPending {
		t.Fatalf("created = %+v", created.Data)
	}

	w = do(router, http.MethodPost, "/api/v1/bookings", "tok-b", bookingBody(t))
	if w.Code != http.StatusConflict {
		t.Errorf("second create status = %d, want 409", w.Code)
	}

	w = do(router, http.MethodPost, "/api/v1/bookings/id/"+created.Data.ID+"/approve", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", w.Code, w.Body.String())
	}
	if b, _ := store.Booking(created.Data.ID); b.Approval != model.ApprovalApproved {
		t.Errorf("approval = %q, want APPROVED", b.Approval)
	}

	w = do(router, http.MethodPost, "/api/v1/bookings/id/"+created.Data.ID+"/reject", "", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("reject after approve status = %d, want 409", w.Code)
	}

	w = do(router, http.MethodGet, "/api/v1/bookings/mine", "tok-a", nil)
	var mine struct {
		TotalCount int64 `json:"total_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &mine); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || mine.TotalCount != 1 {
		t.Errorf("mine status = %d, total = %d", w.Code, mine.TotalCount)
	}
}

func TestBookingHandler_Errors(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   []byte
		want   int
	}{
		{"missing token", http.MethodPost, "/api/v1/bookings", "", bookingBody(t), http.StatusUnauthorized},
		{"unknown token", http.MethodPost, "/api/v1/bookings", "nope", bookingBody(t), http.StatusUnauthorized},
		{"mine without token", http.MethodGet, "/api/v1/bookings/mine", "", nil, http.StatusUnauthorized},
		{"missing booking", http.MethodGet, "/api/v1/bookings/id/65a000000000000000000000", "", nil, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/v1/bookings", "tok-a", []byte(`{"room_number":`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(router, tt.method, tt.path, tt.token, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
