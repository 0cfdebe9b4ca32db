// Package session persists the login session between runs.
//
// A session is stored and cleared as one unit: token, user id and username
// are never written separately.
package session

import (
	"errors"
	"sync"

	"github.com/naveenspark/todo/pkg/domain"
)

// ErrIncomplete is returned by Save when the session lacks a token or username.
var ErrIncomplete = errors.New("session: token and username are required")

// Store is the persisted key-value home of the session.
type Store interface {
	// Load returns the stored session, or the zero Session when none exists.
	Load() (domain.Session, error)
	// Save replaces the stored session.
	Save(s domain.Session) error
	// Clear removes every session field.
	Clear() error
}

func validate(s domain.Session) error {
	if !s.Active() {
		return ErrIncomplete
	}
	return nil
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session domain.Session
}

// NewMemoryStore returns a MemoryStore seeded with s (which may be zero).
func NewMemoryStore(s domain.Session) *MemoryStore {
	return &MemoryStore{session: s}
}

func (m *MemoryStore) Load() (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *MemoryStore) Save(s domain.Session) error {
	if err := validate(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = domain.Session{}
	return nil
}
