package sessionauth

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
)

// UserProvider is the user-storage collaborator the Engine authenticates
// against. Implementations return identity.ErrNotFound for a missing email
// and identity.ErrDuplicateEmail when Create hits the unique email index.
type UserProvider interface {
	// FindByEmail returns soft-deleted records too; the Engine rejects them.
	FindByEmail(ctx context.Context, email string) (*identity.Record, error)
	// ExistsByEmail ignores soft-deleted records.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user identity.NewUser) (*identity.Record, error)
}

// PasswordHashUpdater is implemented by providers that can store a rehashed
// password. When present and Password.UpgradeOnLogin is set, a successful
// login with a weaker stored hash writes a fresh one.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// RegisterRequest is the registration payload. Name and BranchID are
// optional; Role is a wire name such as "WAITER".
type RegisterRequest struct {
	AccountID string  `json:"account_id" validate:"required,uuid"`
	BranchID  *string `json:"branch_id,omitempty" validate:"omitempty,uuid"`
	Name      *string `json:"name,omitempty" validate:"omitnil,min=1,max=100"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=100"`
	Role      string  `json:"role" validate:"required"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
