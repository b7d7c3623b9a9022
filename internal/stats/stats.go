// Package stats records admission decisions (allowed or rejected requests).
// Recording is best effort and never influences the decision itself.
package stats

import (
	"context"
	"time"
)

// Event is one admission decision
type Event struct {
	Key     string // normalized client IP
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// Store persists admission events
type Store interface {
	Record(ctx context.Context, ev Event) error
}

// Counters aggregates decisions
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// Snapshot is a point-in-time copy of the aggregated counters
type Snapshot struct {
	Total   Counters            `json:"total"`
	ByRoute map[string]Counters `json:"by_route"`
}

// Snapshotter is implemented by stores that can report their counters back
type Snapshotter interface {
	Snapshot() Snapshot
}

// Multi fans an event out to several stores. Every store is tried; the
// first error is returned.
type Multi []Store

// Record sends ev to every store and returns the first error
func (m Multi) Record(ctx context.Context, ev Event) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}
