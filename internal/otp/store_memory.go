package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps challenges in a process-local map. State is ephemeral by
// design: a restart drops all live challenges and users simply re-request a
// code. Use the Redis store to externalize the table.
type MemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]Challenge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[string]Challenge)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, ch Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[key] = ch
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Challenge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[key]
	return ch, ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, key)
	return nil
}

// Sweep removes expired, never-consumed challenges to bound memory growth.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ch := range s.challenges {
		if now.After(ch.ExpiresAt) {
			delete(s.challenges, key)
		}
	}
	return nil
}
