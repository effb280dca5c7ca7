package identity

import (
	"context"
	"strings"
	"sync"
)

// StaticVerifier resolves tokens from a fixed table. It backs local
// development and tests where no identity provider is reachable.
type StaticVerifier struct {
	mu      sync.RWMutex
	tokens  map[string]Identity
	expired map[string]bool
}

func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{
		tokens:  make(map[string]Identity),
		expired: make(map[string]bool),
	}
}

// Add registers token as a credential for id.
func (s *StaticVerifier) Add(token string, id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = id
	delete(s.expired, token)
}

// Expire makes every later Verify of token fail with ErrExpiredCredential.
func (s *StaticVerifier) Expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[token] = true
}

func (s *StaticVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token = strings.TrimSpace(token)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.expired[token] {
		return nil, ErrExpiredCredential
	}
	id, ok := s.tokens[token]
	if !ok {
		return nil, ErrInvalidCredential
	}
	return &id, nil
}
