// Package attempts counts failed logins per key over a sliding window.
package attempts

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock func() time.Time

// InMemory keeps failure timestamps per key. Suitable for a single instance.
type InMemory struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      Clock
}

type InMemoryOption func(*InMemory)

func WithClock(clock Clock) InMemoryOption {
	return func(s *InMemory) {
		s.now = clock
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{failures: make(map[string][]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Failures(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prune(key, window)), nil
}

func (s *InMemory) RecordFailure(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := append(s.prune(key, window), s.now())
	s.failures[key] = kept
	return len(kept), nil
}

func (s *InMemory) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key)
	return nil
}

// prune drops timestamps older than window. Caller holds s.mu.
func (s *InMemory) prune(key string, window time.Duration) []time.Time {
	cutoff := s.now().Add(-window)
	ts := s.failures[key]
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	ts = ts[i:]
	if len(ts) == 0 {
		delete(s.failures, key)
		return nil
	}
	s.failures[key] = ts
	return ts
}
