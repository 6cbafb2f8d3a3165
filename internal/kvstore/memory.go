package kvstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"myswing/internal/swing"
)

// MemoryStore is a process-local Store. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	kv   map[string]string
	runs []*swing.Run
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *MemoryStore) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) StartRun(run *swing.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == run.ID {
			return fmt.Errorf("recording run %s: already exists", run.ID)
		}
	}
	cp := *run
	m.runs = append(m.runs, &cp)
	return nil
}

func (m *MemoryStore) FinishRun(run *swing.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.runs {
		if r.ID == run.ID {
			cp := *run
			m.runs[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("updating run %s: run not found", run.ID)
}

func (m *MemoryStore) ListRuns(limit int) ([]*swing.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*swing.Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		cp := *m.runs[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var (
	_ swing.KVStore = (*MemoryStore)(nil)
	_ swing.RunLog  = (*MemoryStore)(nil)
)
