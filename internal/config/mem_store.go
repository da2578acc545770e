package config

import "sync"

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu    sync.Mutex
	board *Board
}

// NewMemStore returns a new in-memory store with nil board (defaults to Default on Load).
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns a copy of the stored board, or Default if none has been saved yet.
func (m *MemStore) Load() (*Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.board == nil {
		def := Default()
		return &def, nil
	}
	cp := m.board.DeepCopy()
	return &cp, nil
}

// Save stores a deep copy of the given board in memory.
func (m *MemStore) Save(board *Board) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := board.DeepCopy()
	m.board = &cp
	return nil
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

// Ensure MemStore implements config.Store
var _ Store = (*MemStore)(nil)
