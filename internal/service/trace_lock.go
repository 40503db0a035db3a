package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forprompt/forprompt/api/internal/pkg/database"
)

// TraceLocker serializes concurrent trace creation for the same client
// trace ID. The lock is best effort: the unique index on traces is the
// authoritative guard, the lock just keeps the common race off the
// conflict path.
type TraceLocker interface {
	// Acquire returns true when this caller holds the lock.
	Acquire(ctx context.Context, projectID uuid.UUID, traceID string) (bool, error)
	// Release frees the lock early; expiry covers callers that crash.
	Release(ctx context.Context, projectID uuid.UUID, traceID string)
}

// RedisTraceLocker implements TraceLocker with a Redis SetNX key that
// expires after ttl.
type RedisTraceLocker struct {
	redis *database.RedisClient
	ttl   time.Duration
}

// NewRedisTraceLocker creates a Redis-backed trace creation lock
func NewRedisTraceLocker(redis *database.RedisClient, ttl time.Duration) *RedisTraceLocker {
	return &RedisTraceLocker{redis: redis, ttl: ttl}
}

func lockKey(projectID uuid.UUID, traceID string) string {
	return fmt.Sprintf("trace:create:%s:%s", projectID, traceID)
}

// Acquire attempts to take the creation lock
func (l *RedisTraceLocker) Acquire(ctx context.Context, projectID uuid.UUID, traceID string) (bool, error) {
	return l.redis.SetNX(ctx, lockKey(projectID, traceID), "1", l.ttl)
}

// Release frees the creation lock
func (l *RedisTraceLocker) Release(ctx context.Context, projectID uuid.UUID, traceID string) {
	_ = l.redis.Delete(ctx, lockKey(projectID, traceID))
}
