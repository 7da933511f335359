package confirmation

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// Manager keeps at most one active session. Beginning a new one cancels
// the previous session first without releasing the captured file.
type Manager struct {
	deps Dependencies

	mu     sync.Mutex
	active *Session
}

// NewManager creates a manager whose sessions share deps
func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// Begin supersedes the active session, if any, and opens a new one
func (m *Manager) Begin(ctx context.Context, nc entity.NeedsConfirmation) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !m.active.State().IsTerminal() {
		if err := m.active.supersede(ctx); err != nil {
			return nil, fmt.Errorf("failed to supersede active session: %w", err)
		}
	}

	s, err := Begin(ctx, nc, m.deps)
	if err != nil {
		return nil, err
	}
	m.active = s
	return s, nil
}

// Active returns the open session, or nil once it is committed or cancelled
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.State().IsTerminal() {
		return nil
	}
	return m.active
}
