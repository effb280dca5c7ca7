package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"smartdorm/pkg/logger"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		r.Header.Set("Idempotency-Key", "abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusCreated || w.Body.String() != `{"data":"ok"}` {
			t.Fatalf("attempt %d: got %d %q", i, w.Code, w.Body.String())
		}
	}

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestIdempotency_KeyScopedToRoute(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/v1/bills/id/1/payments/approve", "/api/v1/bills/id/2/payments/approve"} {
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.Header.Set("Idempotency-Key", "same")
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestCallerRateLimit(t *testing.T) {
	limiter := NewCallerRateLimiter(2, time.Minute, testLogger())
	defer limiter.Stop()

	h := CallerRateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/bills/mine", nil)
		r.Header.Set("Authorization", "Bearer tenant-a")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/bills/mine", nil)
	r.Header.Set("Authorization", "Bearer tenant-b")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("other caller should not be limited, got %d", w.Code)
	}
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"json body", `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"text body", `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"empty action post", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			r := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/1/approve", body)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if seen != "req-123" || w.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("request id not propagated: ctx=%q header=%q", seen, w.Header().Get(RequestIDHeader))
	}
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

func TestMaxRequestSize(t *testing.T) {
	h := MaxRequestSize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too large")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestIdempotency_RefusesConcurrentDuplicate(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	entered := make(chan struct{})
	release := make(chan struct{})
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	newRequest := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		r.Header.Set("Idempotency-Key", "tap")
		return r
	}

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(first, newRequest())
		close(done)
	}()
	<-entered

	second := httptest.NewRecorder()
	h.ServeHTTP(second, newRequest())
	if second.Code != http.StatusConflict {
		t.Errorf("concurrent duplicate got %d, want 409", second.Code)
	}

	close(release)
	<-done
	if first.Code != http.StatusCreated {
		t.Errorf("first request got %d, want 201", first.Code)
	}

	third := httptest.NewRecorder()
	h.ServeHTTP(third, newRequest())
	if third.Code != http.StatusCreated || third.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("retry after completion got %d replayed=%q", third.Code, third.Header().Get("Idempotent-Replayed"))
	}
}

func TestIdempotency_FailureReleasesKey(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		r.Header.Set("Idempotency-Key", "retry")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusConflict || codes[1] != http.StatusCreated {
		t.Errorf("codes = %v, want [409 201]", codes)
	}
}
