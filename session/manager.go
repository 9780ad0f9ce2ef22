package session

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionauth/identity"
)

// ErrNoHandle is returned when a Manager method receives a nil handle.
var ErrNoHandle = errors.New("nil session handle")

// Manager binds identity views to sessions. It is the only component that
// writes the session's user payload.
//
// Manager is safe for concurrent use; the handles it receives are not.
type Manager struct {
	store *Store
}

// NewManager returns a Manager over store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// Store returns the underlying store adapter.
func (m *Manager) Store() *Store {
	return m.store
}

// Login establishes a session for v. The token is always rotated: any record
// bound to h is deleted and a new token is issued and set as the cookie.
func (m *Manager) Login(ctx context.Context, h *Handle, v identity.View) error {
	if h == nil {
		return ErrNoHandle
	}

	payload, err := Encode(v)
	if err != nil {
		return err
	}

	token, err := m.store.create(ctx, h.token, payload)
	if err != nil {
		return err
	}

	h.bind(token)
	return nil
}

// Logout removes the session payload bound to h and expires the cookie. It
// returns the removed view when one was present. Logging out without a
// session is not an error.
func (m *Manager) Logout(ctx context.Context, h *Handle) (identity.View, bool, error) {
	if h == nil {
		return identity.View{}, false, ErrNoHandle
	}
	if h.token == "" {
		h.unbind()
		return identity.View{}, false, nil
	}

	payload, ok, err := m.store.take(ctx, h.token)
	h.unbind()
	if err != nil {
		return identity.View{}, false, err
	}
	if !ok {
		return identity.View{}, false, nil
	}

	v, err := Decode(payload)
	if err != nil {
		return identity.View{}, false, nil
	}
	return v, true, nil
}

// CurrentUser returns the view bound to h. Absence, expiry, and undecodable
// payloads all report ok=false; only store failures return an error.
func (m *Manager) CurrentUser(ctx context.Context, h *Handle) (identity.View, bool, error) {
	if h == nil || h.token == "" {
		return identity.View{}, false, nil
	}

	payload, ok, err := m.store.read(ctx, h.token)
	if err != nil || !ok {
		return identity.View{}, false, err
	}

	v, err := Decode(payload)
	if err != nil {
		return identity.View{}, false, nil
	}
	return v, true, nil
}

// IsLoggedIn reports whether h carries a live session. Store failures count
// as not logged in.
func (m *Manager) IsLoggedIn(ctx context.Context, h *Handle) bool {
	_, ok, err := m.CurrentUser(ctx, h)
	return err == nil && ok
}
