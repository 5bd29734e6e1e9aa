package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DoctorGattino/blog/types"
)

// Store persists the signed-in user across restarts
type Store interface {
	Load(ctx context.Context) (types.User, bool, error)
	Save(ctx context.Context, user types.User) error
	Clear(ctx context.Context) error
}

// Manager is the single authenticated-session slot of the process.
// It satisfies client.TokenSource.
type Manager struct {
	mu     sync.RWMutex
	user   *types.User
	store  Store
	logger *slog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates an empty session slot backed by store; a nil store keeps it in memory only
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores the persisted session, if any
func (m *Manager) Load(ctx context.Context) error {
	user, ok, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ok && user.Token != "" {
		m.user = &user
		m.logger.Debug("session restored", "username", user.Username)
	} else {
		m.user = nil
	}
	return nil
}

// Token returns the current bearer token, or "" when signed out
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.Token
}

// User returns a copy of the signed-in user
func (m *Manager) User() (types.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return types.User{}, false
	}
	return *m.user, true
}

// Active reports whether a user is signed in
func (m *Manager) Active() bool {
	_, ok := m.User()
	return ok
}

// Set replaces the session after login or registration
func (m *Manager) Set(ctx context.Context, user types.User) error {
	if user.Token == "" {
		return fmt.Errorf("session for %q has no token", user.Username)
	}
	if err := m.store.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()

	m.logger.Info("signed in", "username", user.Username)
	return nil
}

// Update merges a profile update into the session, keeping the token when the
// server response omits it
func (m *Manager) Update(ctx context.Context, user types.User) error {
	m.mu.RLock()
	current := m.user
	m.mu.RUnlock()
	if current == nil {
		return types.ErrUnauthenticated
	}
	if user.Token == "" {
		user.Token = current.Token
	}
	if err := m.store.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()

	m.logger.Info("profile updated", "username", user.Username)
	return nil
}

// Clear signs out and removes the persisted session. If the store cannot be
// cleared the session stays active, so memory and storage do not disagree.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	m.mu.Lock()
	prev := m.user
	m.user = nil
	m.mu.Unlock()

	if prev != nil {
		m.logger.Info("signed out", "username", prev.Username)
	}
	return nil
}

// MemoryStore keeps the session for the lifetime of the process only
type MemoryStore struct {
	mu   sync.Mutex
	user *types.User
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (types.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return types.User{}, false, nil
	}
	return *s.user, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, user types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}
