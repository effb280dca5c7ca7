package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"
)

// IdempotencyStore remembers the outcome of write requests by key. A key is
// reserved while its first request runs, so a concurrent retry is refused
// instead of submitting the same booking or slip twice.
type IdempotencyStore interface {
	// Begin reserves key. It returns the stored response when the key has
	// already completed, or busy when another request still holds it.
	Begin(key string) (cached *CachedResponse, busy bool)
	Complete(key string, response *CachedResponse)
	Release(key string)
	Stop()
}

type CachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	CreatedAt  time.Time
}

type idempotencyEntry struct {
	response *CachedResponse
	reserved time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Begin(key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && !s.expired(e, now) {
		if e.response == nil {
			return nil, true
		}
		return e.response, false
	}

	s.entries[key] = &idempotencyEntry{reserved: now}
	return nil, false
}

func (s *InMemoryIdempotencyStore) Complete(key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = s.now()
	s.entries[key] = &idempotencyEntry{response: response, reserved: response.CreatedAt}
}

// Release drops a reservation whose request failed so the client can retry
// with the same key.
func (s *InMemoryIdempotencyStore) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.response == nil {
		delete(s.entries, key)
	}
}

func (s *InMemoryIdempotencyStore) expired(e *idempotencyEntry, now time.Time) bool {
	return now.Sub(e.reserved) > s.ttl
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for key, e := range s.entries {
				if s.expired(e, now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	if rc.wroteHeader {
		return
	}
	rc.wroteHeader = true
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated key and
// answers 409 while the first request is still running. Failed requests
// release the key.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "Idempotency-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := idempotencyKey(r, headerName)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			cached, busy := store.Begin(key)
			switch {
			case cached != nil:
				replay(w, cached)
				return
			case busy:
				writeJSONError(w, http.StatusConflict, "CONFLICT", "A request with this Idempotency-Key is still being processed")
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			returned := false
			defer func() {
				if returned && capture.statusCode >= 200 && capture.statusCode < 300 {
					store.Complete(key, &CachedResponse{
						StatusCode: capture.statusCode,
						Headers:    w.Header().Clone(),
						Body:       capture.body.Bytes(),
					})
					return
				}
				store.Release(key)
			}()
			next.ServeHTTP(capture, r)
			returned = true
		})
	}
}

// idempotencyKey scopes the client key to the caller and route so the same
// key on a different endpoint or token never replays a foreign response.
func idempotencyKey(r *http.Request, headerName string) string {
	key := r.Header.Get(headerName)
	if key == "" {
		return ""
	}
	return r.Method + " " + r.URL.Path + " " + callerKey(r) + " " + key
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
