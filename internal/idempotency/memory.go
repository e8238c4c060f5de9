// internal/idempotency/memory.go
package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/metrics"
)

// MemoryGuard is the default, process-local idempotency guard. Admission state is
// lost on restart, which the service accepts; the redis and etcd guards exist for
// deployments that need the window to survive restarts or span nodes.
//
// All records share one retention window, so insertion order is also expiry
// order and a FIFO of record pointers is enough for both lazy eviction and the
// capacity bound.
type MemoryGuard struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	records  map[string]*domain.IdempotencyRecord
	order    []*domain.IdempotencyRecord
	logger   *slog.Logger
	now      func() time.Time
}

// NewMemory creates an in-memory guard holding at most capacity records, each
// retained for window.
func NewMemory(window time.Duration, capacity int, logger *slog.Logger) *MemoryGuard {
	return &MemoryGuard{
		window:   window,
		capacity: capacity,
		records:  make(map[string]*domain.IdempotencyRecord),
		logger:   logger.With("component", "idempotency-memory"),
		now:      time.Now,
	}
}

// Admit atomically records requestID if it is not already held. The whole
// check-and-insert runs under one lock so concurrent callers with the same ID
// can never both observe "not present".
func (g *MemoryGuard) Admit(_ context.Context, requestID string, kind domain.OperationKind) (bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.records[requestID]; ok {
		if !rec.Expired(now) {
			return false, nil
		}
		delete(g.records, requestID)
	}

	g.evictLocked(now)

	rec := &domain.IdempotencyRecord{
		RequestID:   requestID,
		Kind:        kind,
		FirstSeenAt: now,
		ExpiresAt:   now.Add(g.window),
	}
	g.records[requestID] = rec
	g.order = append(g.order, rec)
	metrics.IdempotencyRecords.Set(float64(len(g.records)))
	return true, nil
}

// Sweep purges every expired record. The cron sweeper calls this; lookups also
// evict lazily, so Sweep is a bound on staleness rather than a correctness need.
func (g *MemoryGuard) Sweep(_ context.Context) (int, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for len(g.order) > 0 && g.order[0].Expired(now) {
		if g.popHeadLocked() {
			evicted++
		}
	}
	metrics.IdempotencyRecords.Set(float64(len(g.records)))
	return evicted, nil
}

// evictLocked drops expired heads, then enforces the capacity bound. The input
// stream of request IDs is unbounded, so when the window alone cannot keep the
// set under capacity the oldest live record goes too.
func (g *MemoryGuard) evictLocked(now time.Time) {
	for len(g.order) > 0 && g.order[0].Expired(now) {
		g.popHeadLocked()
	}
	for g.capacity > 0 && len(g.records) >= g.capacity && len(g.order) > 0 {
		head := g.order[0]
		if g.popHeadLocked() {
			g.logger.Warn("capacity reached, evicting live idempotency record",
				"request_id", head.RequestID)
		}
	}
}

// popHeadLocked removes the oldest queue entry. The map entry is deleted only if
// it still points at this exact record; a lazily evicted and re-admitted ID
// leaves a stale queue entry behind that must not take the fresh record with it.
func (g *MemoryGuard) popHeadLocked() bool {
	head := g.order[0]
	g.order[0] = nil
	g.order = g.order[1:]
	if cur, ok := g.records[head.RequestID]; ok && cur == head {
		delete(g.records, head.RequestID)
		return true
	}
	return false
}

// Len reports the number of live records.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
