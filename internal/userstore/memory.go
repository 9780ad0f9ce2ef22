package userstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
)

// Memory is a map-backed Repository with the same visibility rules as
// Postgres. Records are copied in and out.
type Memory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*identity.Record
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{users: make(map[uuid.UUID]*identity.Record)}
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *identity.Record
	for _, rec := range m.users {
		if rec.Email != email {
			continue
		}
		if best == nil || preferForLogin(rec, best) {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(best), nil
}

// preferForLogin orders live records before deleted ones, then newest first.
func preferForLogin(a, b *identity.Record) bool {
	if a.Deleted() != b.Deleted() {
		return !a.Deleted()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (m *Memory) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liveEmailTaken(email, uuid.Nil), nil
}

func (m *Memory) liveEmailTaken(email string, except uuid.UUID) bool {
	for id, rec := range m.users {
		if id != except && !rec.Deleted() && rec.Email == email {
			return true
		}
	}
	return false
}

func (m *Memory) Create(_ context.Context, u identity.NewUser) (*identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.liveEmailTaken(u.Email, uuid.Nil) {
		return nil, ErrDuplicateEmail
	}

	now := nowFunc()
	hash := u.PasswordHash
	rec := &identity.Record{
		ID:           uuid.New(),
		AccountID:    u.AccountID,
		BranchID:     cloneUUID(u.BranchID),
		Name:         cloneString(u.Name),
		Email:        u.Email,
		PasswordHash: &hash,
		Role:         u.Role,
		Status:       identity.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[rec.ID] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]identity.Record, 0)
	for _, rec := range m.users {
		if rec.Deleted() || !matches(rec, f) {
			continue
		}
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func matches(rec *identity.Record, f Filter) bool {
	if f.AccountID != nil && rec.AccountID != *f.AccountID {
		return false
	}
	if f.BranchID != nil && (rec.BranchID == nil || *rec.BranchID != *f.BranchID) {
		return false
	}
	if f.Role != nil && rec.Role != *f.Role {
		return false
	}
	return true
}

func (m *Memory) Update(_ context.Context, id uuid.UUID, p Patch) (*identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Empty() {
		return cloneRecord(rec), nil
	}
	if p.Email != nil && !rec.Deleted() && m.liveEmailTaken(*p.Email, id) {
		return nil, ErrDuplicateEmail
	}

	switch {
	case p.ClearBranch:
		rec.BranchID = nil
	case p.BranchID != nil:
		rec.BranchID = cloneUUID(p.BranchID)
	}
	switch {
	case p.ClearName:
		rec.Name = nil
	case p.Name != nil:
		rec.Name = cloneString(p.Name)
	}
	if p.Email != nil {
		rec.Email = *p.Email
	}
	if p.PasswordHash != nil {
		rec.PasswordHash = cloneString(p.PasswordHash)
	}
	if p.Role != nil {
		rec.Role = *p.Role
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	rec.UpdatedAt = nowFunc()
	return cloneRecord(rec), nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	rec.PasswordHash = &hash
	rec.UpdatedAt = nowFunc()
	return nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	now := nowFunc()
	if rec.DeletedAt == nil {
		rec.DeletedAt = &now
	}
	rec.Status = identity.StatusInactive
	rec.UpdatedAt = now
	return nil
}

func (m *Memory) Restore(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Deleted() && m.liveEmailTaken(rec.Email, id) {
		return ErrDuplicateEmail
	}
	rec.DeletedAt = nil
	rec.Status = identity.StatusActive
	rec.UpdatedAt = nowFunc()
	return nil
}

func cloneRecord(r *identity.Record) *identity.Record {
	out := *r
	out.BranchID = cloneUUID(r.BranchID)
	out.Name = cloneString(r.Name)
	out.PasswordHash = cloneString(r.PasswordHash)
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
