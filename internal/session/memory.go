package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is a process-local Store, used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Company(_ context.Context, user string) (string, error) {
	return s.get(companyKey(user)), nil
}

func (s *MemoryStore) SetCompany(_ context.Context, user, company string) error {
	s.set(companyKey(user), company)
	return nil
}

func (s *MemoryStore) ClearCompany(_ context.Context, user string) error {
	s.del(companyKey(user))
	return nil
}

func (s *MemoryStore) Continuation(_ context.Context, user string) (string, error) {
	return s.get(continuationKey(user)), nil
}

func (s *MemoryStore) SetContinuation(_ context.Context, user, rest string) error {
	if rest == "" {
		s.del(continuationKey(user))
		return nil
	}
	s.set(continuationKey(user), capContinuation(rest))
	return nil
}

func (s *MemoryStore) ClearContinuation(_ context.Context, user string) error {
	s.del(continuationKey(user))
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return ""
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return ""
	}
	return e.value
}

func (s *MemoryStore) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expires: s.now().Add(s.ttl)}
}

func (s *MemoryStore) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
