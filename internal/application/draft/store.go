// Package draft holds the editable record of the active confirmation. Each
// edit replaces the snapshot wholesale, so readers never observe a partially
// applied change.
package draft

import (
	"sync"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// Store is the in-memory holder of one draft and its edit log
type Store struct {
	mu      sync.RWMutex
	current entity.Draft
	history []Command
}

// NewStore seeds a store. Items default to an empty sequence.
func NewStore(seed entity.Draft) *Store {
	return &Store{current: seed.WithItems(seed.Items)}
}

// Snapshot returns a deep copy of the current draft
func (s *Store) Snapshot() entity.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Apply runs an edit command. On error the snapshot is left unchanged and
// nothing is logged.
func (s *Store) Apply(cmd Command) (entity.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := cmd.Apply(s.current)
	if err != nil {
		return s.current.Clone(), err
	}
	s.current = next
	s.history = append(s.history, cmd)
	return next.Clone(), nil
}

// Replace swaps the snapshot without logging an edit
func (s *Store) Replace(d entity.Draft) {
	s.mu.Lock()
	s.current = d.Clone()
	s.mu.Unlock()
}

// History returns the applied commands in order
func (s *Store) History() []Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Command(nil), s.history...)
}
