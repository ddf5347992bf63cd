package storage

import "sync"

// MemoryGroupStore is an in-process GroupStore, used by tests.
type MemoryGroupStore struct {
	mu     sync.Mutex
	groups map[string]RegisteredGroup
	order  []string
}

// NewMemoryGroupStore creates an empty in-memory GroupStore.
func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{groups: make(map[string]RegisteredGroup)}
}

func (m *MemoryGroupStore) PutGroup(group RegisteredGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[group.ID]; !exists {
		m.order = append(m.order, group.ID)
	}
	m.groups[group.ID] = group
	return nil
}

func (m *MemoryGroupStore) ListGroups() ([]RegisteredGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RegisteredGroup, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.groups[id])
	}
	return out, nil
}

func (m *MemoryGroupStore) GetGroup(id string) (RegisteredGroup, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	return g, ok, nil
}

func (m *MemoryGroupStore) RemoveGroup(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

var _ GroupStore = (*MemoryGroupStore)(nil)
