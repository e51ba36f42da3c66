package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// promotionLockTTL bounds how long a crashed writer can block a session.
const promotionLockTTL = 10 * time.Second

// PromotionLock serializes memory promotion per session with a short-lived
// Redis key (SET NX PX). The UNIQUE(session_id) constraint in the corpus is
// the backstop when Redis loses the key.
type PromotionLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPromotionLock creates a lock store on the given Redis client.
func NewPromotionLock(client *redis.Client) *PromotionLock {
	return &PromotionLock{client: client, ttl: promotionLockTTL}
}

func lockKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("promote:%s", sessionID.String())
}

// Acquire returns true when this caller now holds the session's promotion lock.
func (l *PromotionLock) Acquire(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(sessionID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring promotion lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock early; TTL expiry covers the crash path.
func (l *PromotionLock) Release(ctx context.Context, sessionID uuid.UUID) {
	if err := l.client.Del(ctx, lockKey(sessionID)).Err(); err != nil {
		slog.Warn("releasing promotion lock", "error", err, "session_id", sessionID)
	}
}
