package database

import (
	"log"
	"sync"
)

// Manager provides lazy, race-safe access to the shared Database handle.
// The first Ensure call opens the database; concurrent callers block on the
// in-flight initialization instead of opening a second connection. Cleanup
// closes the handle and resets the manager so a later Ensure reopens it.
type Manager struct {
	path string

	mu sync.Mutex
	db *Database
}

// NewManager creates a manager for the database at path. Nothing is opened
// until the first Ensure call.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Ensure returns the ready database handle, initializing it on first use.
// Exactly one underlying connection is opened even under concurrent callers.
func (m *Manager) Ensure() (*Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	db, err := Open(m.path)
	if err != nil {
		return nil, err
	}
	m.db = db
	return m.db, nil
}

// Cleanup closes the handle if one exists. Best effort: the manager is reset
// even when Close reports an error.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	err := m.db.Close()
	m.db = nil
	if err != nil {
		log.Printf("Error closing database: %v", err)
	}
	return err
}
