package cache

import (
	"context"
	"fmt"

	"github.com/DoctorGattino/blog/types"
)

// Login signs in and drops cached favorited flags that belonged to the previous viewer
func (m *Manager) Login(ctx context.Context, creds types.Credentials) (types.User, error) {
	if err := creds.Validate(); err != nil {
		return types.User{}, err
	}
	user, err := m.remote.Login(ctx, creds)
	if err != nil {
		return types.User{}, err
	}
	if err := m.session.Set(ctx, user); err != nil {
		return types.User{}, err
	}
	m.store.InvalidateAll()
	return user, nil
}

// Register creates an account and signs it in
func (m *Manager) Register(ctx context.Context, reg types.Registration) (types.User, error) {
	if err := reg.Validate(); err != nil {
		return types.User{}, err
	}
	user, err := m.remote.Register(ctx, reg)
	if err != nil {
		return types.User{}, err
	}
	if err := m.session.Set(ctx, user); err != nil {
		return types.User{}, err
	}
	m.store.InvalidateAll()
	return user, nil
}

// UpdateUser changes the profile of the session user. Pages embed author data,
// so the list tag is invalidated afterwards.
func (m *Manager) UpdateUser(ctx context.Context, update types.ProfileUpdate) (types.User, error) {
	if _, ok := m.session.User(); !ok {
		return types.User{}, types.ErrUnauthenticated
	}
	if err := update.Validate(); err != nil {
		return types.User{}, err
	}
	user, err := m.remote.UpdateUser(ctx, update)
	if err != nil {
		return types.User{}, err
	}
	if err := m.session.Update(ctx, user); err != nil {
		return types.User{}, fmt.Errorf("profile saved but session not updated: %w", err)
	}
	m.store.Invalidate(ListTag())
	current, _ := m.session.User()
	return current, nil
}

// Logout clears the session. Favorited flags are per viewer, so every cached
// entry is invalidated.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.session.Clear(ctx); err != nil {
		return err
	}
	m.store.InvalidateAll()
	return nil
}
