// Package stats counts how much work each search and scroll path does.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Event is a single counter increment
type Event struct {
	Name  string
	Delta int64
	At    time.Time
}

// Store persists counter increments. Implementations may keep them in
// memory, Redis, etc. Callers treat errors as best-effort.
type Store interface {
	Record(ctx context.Context, ev Event) error
}

// Counter is a named counter value
type Counter struct {
	Name  string
	Value int64
}

// MemoryStore keeps counters in a map. It never expires anything.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[ev.Name] += ev.Delta
	return nil
}

// Get returns the value of name, zero if it was never recorded
func (s *MemoryStore) Get(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// Snapshot returns every counter sorted by name
func (s *MemoryStore) Snapshot() []Counter {
	s.mu.Lock()
	out := make([]Counter, 0, len(s.counts))
	for k, v := range s.counts {
		out = append(out, Counter{Name: k, Value: v})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset drops all counters
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int64)
}
