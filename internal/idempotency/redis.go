// internal/idempotency/redis.go
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"rtm-dispatcher/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rtm:idempotency"

// RedisGuard stores admission records in redis so the retention window survives
// restarts and is shared across dispatcher nodes. SET NX with a TTL gives the
// atomic check-and-insert and native expiry in one call, so no sweep is needed.
type RedisGuard struct {
	client *redis.Client
	window time.Duration
	logger *slog.Logger
}

// NewRedis creates a redis-backed guard retaining records for window.
func NewRedis(client *redis.Client, window time.Duration, logger *slog.Logger) *RedisGuard {
	return &RedisGuard{
		client: client,
		window: window,
		logger: logger.With("component", "idempotency-redis"),
	}
}

// Admit records requestID unless redis already holds it within the window.
func (g *RedisGuard) Admit(ctx context.Context, requestID string, kind domain.OperationKind) (bool, error) {
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

	key := path.Join(redisKeyPrefix, requestID)
	admitted, err := g.client.SetNX(ctx, key, value, g.window).Result()
	if err != nil {
		g.logger.Error("redis admission failed", "request_id", requestID, "error", err)
		return false, fmt.Errorf("failed to admit request %s via redis: %w", requestID, err)
	}
	return admitted, nil
}
