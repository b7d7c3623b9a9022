package stats

import (
	"context"
	"sync"
)

// MemoryStore keeps counters in process memory. Per-IP counters are not kept
// to avoid unbounded growth.
type MemoryStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRoute: make(map[string]Counters)}
}

// Record adds the event to the total and its route counters
func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	route := routeKey(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	c := s.byRoute[route]
	c.add(ev.Allowed)
	s.byRoute[route] = c
	return nil
}

// Snapshot returns a copy of the current counters
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{Total: s.total, ByRoute: make(map[string]Counters, len(s.byRoute))}
	for k, v := range s.byRoute {
		out.ByRoute[k] = v
	}
	return out
}

func routeKey(ev Event) string {
	return ev.Method + " " + ev.Path
}
