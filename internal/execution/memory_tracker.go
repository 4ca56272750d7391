package execution

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker is the in-process SignalTracker used when Redis is
// disabled. Claims do not survive restarts, so paper setups lose
// deduplication across a restart; the strategy's own seen set still
// prevents re-signaling old sweeps.
type MemoryTracker struct {
	mu     sync.Mutex
	claims map[string]time.Time
	ttl    time.Duration
}

// NewMemoryTracker creates an in-process signal tracker.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryTracker{
		claims: make(map[string]time.Time),
		ttl:    ttl,
	}
}

func (t *MemoryTracker) MarkExecuted(ctx context.Context, userID, signalID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := userID + ":" + signalID
	now := time.Now()
	if expiry, ok := t.claims[key]; ok && now.Before(expiry) {
		return false, nil
	}
	t.claims[key] = now.Add(t.ttl)

	// Opportunistic sweep of expired claims.
	for k, expiry := range t.claims {
		if now.After(expiry) {
			delete(t.claims, k)
		}
	}
	return true, nil
}

func (t *MemoryTracker) Clear(ctx context.Context, userID, signalID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.claims, userID+":"+signalID)
	return nil
}

var _ SignalTracker = (*MemoryTracker)(nil)
