package session

import (
	"context"
	"sync"
)

// Loader fetches the persisted body of a document when a session opens.
type Loader interface {
	LoadBody(ctx context.Context, documentID string) (string, error)
}

// Manager owns at most one controller per open document.
type Manager struct {
	loader  Loader
	persist Persister
	cfg     Config

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewManager creates a Manager.
func NewManager(loader Loader, persist Persister, cfg Config) *Manager {
	return &Manager{
		loader:   loader,
		persist:  persist,
		cfg:      cfg,
		sessions: make(map[string]*Controller),
	}
}

// Open returns the document's session, creating one seeded with the
// persisted body if none is open.
func (m *Manager) Open(ctx context.Context, documentID string) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.sessions[documentID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	body, err := m.loader.LoadBody(ctx, documentID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another opener may have raced us; keep the first session.
	if c, ok := m.sessions[documentID]; ok {
		return c, nil
	}
	c := NewController(documentID, body, m.persist, m.cfg)
	m.sessions[documentID] = c
	return c, nil
}

// Get returns the open session for a document, if any.
func (m *Manager) Get(documentID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[documentID]
	return c, ok
}

// Close flushes and discards the document's session. Closing a document
// with no open session is a no-op.
func (m *Manager) Close(ctx context.Context, documentID string) error {
	m.mu.Lock()
	c, ok := m.sessions[documentID]
	delete(m.sessions, documentID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(ctx)
}

// CloseAll flushes every open session, used at shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		all = append(all, c)
	}
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, c := range all {
		_ = c.Close(ctx)
	}
}
