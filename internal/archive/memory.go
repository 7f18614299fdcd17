package archive

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps finished games in process memory. Used when no Redis or
// database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]GameSummary
}

// NewMemoryStore builds an empty in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]GameSummary)}
}

func (m *MemoryStore) SaveGame(_ context.Context, g GameSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.MovesSAN = append([]string(nil), g.MovesSAN...)
	g.MovesUCI = append([]string(nil), g.MovesUCI...)
	m.byID[g.ID] = g
	return nil
}

func (m *MemoryStore) LoadGame(_ context.Context, id string) (GameSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.byID[id]
	if !ok {
		return GameSummary{}, ErrNotFound
	}
	return g, nil
}

func (m *MemoryStore) ListGames(_ context.Context, limit int) ([]GameSummary, error) {
	m.mu.RLock()
	items := make([]GameSummary, 0, len(m.byID))
	for _, g := range m.byID {
		items = append(items, g)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
