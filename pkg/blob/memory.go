package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryScheme = "mem://slips/"

// MemoryStorage keeps slips in process memory. Used by tests and by the
// service when no bucket is configured in development.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailStore, when set, is returned by every Store call.
	FailStore error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := Check(data, contentType); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStore != nil {
		return "", m.FailStore
	}

	ext, _ := ExtensionFor(contentType)
	url := memoryScheme + uuid.NewString() + ext
	m.objects[url] = append([]byte(nil), data...)
	return url, nil
}

func (m *MemoryStorage) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, memoryScheme) {
		return fmt.Errorf("%w: %s", ErrForeignURL, url)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, url)
	return nil
}

// Has reports whether url is currently stored.
func (m *MemoryStorage) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}

func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
