package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultSweepProbability is the chance that a call also drops expired entries.
const DefaultSweepProbability = 0.01

type entry struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryStore keeps counters in process memory. State is lost on restart and
// is not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	now        func() time.Time
	roll       func() float64
	sweepProba float64
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithSweep overrides the sweep probability and the random source used to roll it.
func WithSweep(probability float64, roll func() float64) MemoryOption {
	return func(s *MemoryStore) {
		s.sweepProba = probability
		if roll != nil {
			s.roll = roll
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*entry),
		now:        time.Now,
		roll:       rand.Float64,
		sweepProba: DefaultSweepProbability,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Allow(_ context.Context, key string, window time.Duration, max int) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{windowStart: now, window: window}
		s.entries[key] = e
	}
	if now.Sub(e.windowStart) > window {
		e.count = 0
		e.windowStart = now
	}
	e.window = window
	e.count++
	allowed := e.count <= max

	if s.roll() < s.sweepProba {
		s.sweepLocked(now)
	}

	return allowed, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, e := range s.entries {
		if now.Sub(e.windowStart) > e.window {
			delete(s.entries, key)
		}
	}
}
