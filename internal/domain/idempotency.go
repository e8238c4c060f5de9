// internal/domain/idempotency.go
package domain

import (
	"context"
	"time"
)

// IdempotencyRecord remembers one admitted request ID for the retention window.
// Records are immutable after creation; expiry removes them, nothing mutates them.
type IdempotencyRecord struct {
	RequestID   string        `json:"request_id"`
	Kind        OperationKind `json:"operation"`
	FirstSeenAt time.Time     `json:"first_seen_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Expired reports whether the record's retention window has elapsed at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IdempotencyGuard deduplicates requests carrying the same request ID within a
// retention window.
//
// Admit must be atomic: of N concurrent calls with the same request ID, exactly
// one observes admitted=true. A non-nil error means the guard's backing store
// failed and admission is unknown; callers must not treat that as either verdict.
type IdempotencyGuard interface {
	Admit(ctx context.Context, requestID string, kind OperationKind) (admitted bool, err error)
}

// IdempotencySweeper is implemented by guards whose expired records need an
// explicit purge; stores with native TTLs (redis, etcd leases) do not.
type IdempotencySweeper interface {
	Sweep(ctx context.Context) (evicted int, err error)
}
