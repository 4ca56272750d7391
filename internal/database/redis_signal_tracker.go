package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefix for executed-signal deduplication.
// Format: smc:signal:{userID}:{signalID}
const signalKeyPrefix = "smc:signal"

// DefaultSignalTTL bounds how long an executed signal id is remembered.
// Signals age out of the strategy window long before this.
const DefaultSignalTTL = 24 * time.Hour

// SignalTracker is the atomic last-executed-signal store. The SetNX
// check-and-set is the double-execution guard: concurrent analysis
// cycles for the same user cannot both claim the same signal, and the
// mark survives process restarts.
type SignalTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSignalTracker creates a Redis-backed signal tracker.
func NewSignalTracker(client *redis.Client, ttl time.Duration) *SignalTracker {
	if ttl <= 0 {
		ttl = DefaultSignalTTL
	}
	return &SignalTracker{client: client, ttl: ttl}
}

// MarkExecuted atomically claims a signal for execution. Returns true if
// this caller won the claim, false if the signal was already executed.
func (t *SignalTracker) MarkExecuted(ctx context.Context, userID, signalID string) (bool, error) {
	if t.client == nil {
		return false, fmt.Errorf("redis client not available")
	}

	key := signalKey(userID, signalID)
	ok, err := t.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim signal %s: %w", signalID, err)
	}
	return ok, nil
}

// WasExecuted reports whether a signal has already been claimed.
func (t *SignalTracker) WasExecuted(ctx context.Context, userID, signalID string) (bool, error) {
	if t.client == nil {
		return false, fmt.Errorf("redis client not available")
	}

	n, err := t.client.Exists(ctx, signalKey(userID, signalID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear releases a claim. Used only when execution failed cleanly (the
// order never reached the exchange) so the signal may retry next cycle.
func (t *SignalTracker) Clear(ctx context.Context, userID, signalID string) error {
	if t.client == nil {
		return nil
	}
	return t.client.Del(ctx, signalKey(userID, signalID)).Err()
}

func signalKey(userID, signalID string) string {
	return fmt.Sprintf("%s:%s:%s", signalKeyPrefix, userID, signalID)
}
