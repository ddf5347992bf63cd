package storage

import "sync"

// Memory is an in-process KV, used by tests and by device builds without
// durable storage. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	u32s    map[string]uint32
	strings map[string]string
	bytes   map[string][]byte
}

// NewMemory creates an empty in-memory KV store.
func NewMemory() *Memory {
	return &Memory{
		u32s:    make(map[string]uint32),
		strings: make(map[string]string),
		bytes:   make(map[string][]byte),
	}
}

func (m *Memory) GetU32(key string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.u32s[key]
	return v, ok
}

func (m *Memory) SetU32(key string, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.u32s[key] = value
	return nil
}

func (m *Memory) GetString(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	return v, ok
}

func (m *Memory) SetString(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	return nil
}

func (m *Memory) GetBytes(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.bytes[key]
	return v, ok
}

func (m *Memory) SetBytes(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.bytes[key] = cp
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.u32s, key)
	delete(m.strings, key)
	delete(m.bytes, key)
	return nil
}

var _ KV = (*Memory)(nil)
