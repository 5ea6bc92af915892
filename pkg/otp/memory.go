package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	hash      []byte
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Issue(_ context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := hashCode(code)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[NormalizeEmail(email)] = memoryEntry{hash: hash, expiresAt: s.now().Add(s.ttl)}
	return code, nil
}

func (s *MemoryStore) Verify(_ context.Context, email, code string) (bool, error) {
	key := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	if !matches(entry.hash, code) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}
