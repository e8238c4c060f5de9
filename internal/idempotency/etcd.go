// internal/idempotency/etcd.go
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"rtm-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// EtcdRecordDir defines the etcd prefix where admission records live.
	EtcdRecordDir = "/rtm/idempotency/"
)

// EtcdGuard stores admission records in etcd, one key per request ID, attached to
// a lease whose TTL is the retention window. The create-revision transaction
// gives the atomic check-and-insert; lease expiry handles eviction.
type EtcdGuard struct {
	client *clientv3.Client
	window time.Duration
	logger *slog.Logger
}

// NewEtcd creates an etcd-backed guard retaining records for window. Windows
// below one second round up to one second, the smallest lease etcd grants.
func NewEtcd(client *clientv3.Client, window time.Duration, logger *slog.Logger) *EtcdGuard {
	return &EtcdGuard{
		client: client,
		window: window,
		logger: logger.With("component", "idempotency-etcd"),
	}
}

// Admit records requestID unless etcd already holds a live record for it.
func (g *EtcdGuard) Admit(ctx context.Context, requestID string, kind domain.OperationKind) (bool, error) {
	now := time.Now()
	rec := domain.IdempotencyRecord{
		RequestID:   requestID,
		Kind:        kind,
		FirstSeenAt: now,
		ExpiresAt:   now.Add(g.window),
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal idempotency record %s: %w", requestID, err)
	}

	ttl := int64(g.window / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	lease, err := g.client.Grant(ctx, ttl)
	if err != nil {
		return false, fmt.Errorf("failed to grant lease for request %s: %w", requestID, err)
	}

	key := path.Join(EtcdRecordDir, requestID)
	resp, err := g.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value), clientv3.WithLease(lease.ID))).
		Commit()
	if err != nil {
		return false, fmt.Errorf("failed to admit request %s via etcd: %w", requestID, err)
	}

	if !resp.Succeeded {
		// The lease was granted for nothing; revoke it rather than letting it
		// linger until TTL.
		if _, rerr := g.client.Revoke(ctx, lease.ID); rerr != nil {
			g.logger.Warn("failed to revoke unused lease", "request_id", requestID, "error", rerr)
		}
		return false, nil
	}
	return true, nil
}
