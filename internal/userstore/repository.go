// Package userstore persists user identity records. Postgres is the
// production backend; Memory backs -dev mode and tests.
package userstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/permission"
)

// Store errors. They alias the identity sentinels so callers that only know
// the identity package can match them.
var (
	ErrNotFound       = identity.ErrNotFound
	ErrDuplicateEmail = identity.ErrDuplicateEmail
)

// Filter narrows List. Nil fields do not filter.
type Filter struct {
	AccountID *uuid.UUID
	BranchID  *uuid.UUID
	Role      *permission.Role
}

// Patch is a partial update. Nil fields are left unchanged; ClearBranch and
// ClearName null the column.
type Patch struct {
	BranchID     *uuid.UUID
	ClearBranch  bool
	Name         *string
	ClearName    bool
	Email        *string
	PasswordHash *string
	Role         *permission.Role
	Status       *identity.Status
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.BranchID == nil && !p.ClearBranch && p.Name == nil && !p.ClearName &&
		p.Email == nil && p.PasswordHash == nil && p.Role == nil && p.Status == nil
}

// Repository is the storage contract for user records.
//
// FindByEmail and GetByID return soft-deleted records too; List and
// ExistsByEmail skip them.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*identity.Record, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u identity.NewUser) (*identity.Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (*identity.Record, error)
	List(ctx context.Context, f Filter) ([]identity.Record, error)
	Update(ctx context.Context, id uuid.UUID, p Patch) (*identity.Record, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

var nowFunc = func() time.Time { return time.Now().UTC() }

var (
	_ Repository = (*Postgres)(nil)
	_ Repository = (*Memory)(nil)
)
