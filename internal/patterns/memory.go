package patterns

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used in paper mode and tests. Safe
// for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	stats map[string]map[string]*Stat // userID -> patternID -> stat
}

// NewMemoryStore creates an empty in-memory pattern store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stats: make(map[string]map[string]*Stat),
	}
}

func (m *MemoryStore) Score(ctx context.Context, userID, patternID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.stats[userID]
	if !ok {
		return 50, nil
	}
	stat, ok := user[patternID]
	if !ok {
		return 50, nil
	}
	return ScoreFromStat(*stat), nil
}

func (m *MemoryStore) Record(ctx context.Context, userID, patternID string, win bool, reward float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.stats[userID]
	if !ok {
		user = make(map[string]*Stat)
		m.stats[userID] = user
	}
	stat, ok := user[patternID]
	if !ok {
		stat = &Stat{PatternID: patternID}
		user[patternID] = stat
	}

	if win {
		stat.Wins++
	} else {
		stat.Losses++
	}
	stat.TimesTested++
	stat.AccumulatedReward += reward
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stats, userID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
