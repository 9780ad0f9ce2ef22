package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/permission"
)

var (
	// ErrUnknownStatus is returned by ParseStatus for names other than ACTIVE and INACTIVE.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrNotFound is returned by user stores when no record matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by user stores when an email is already taken.
	ErrDuplicateEmail = errors.New("email already in use")
)

// Status is the account lifecycle state.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusInactive
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusInactive:
		return "INACTIVE"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// ParseStatus maps "ACTIVE" or "INACTIVE" to a Status.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "ACTIVE":
		return StatusActive, nil
	case "INACTIVE":
		return StatusInactive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if s != StatusActive && s != StatusInactive {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Record is the stored user identity as returned by the user store.
// PasswordHash and DeletedAt never leave the process.
type Record struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	BranchID     *uuid.UUID      `json:"branch_id"`
	Name         *string         `json:"name"`
	Email        string          `json:"email"`
	PasswordHash *string         `json:"-"`
	Role         permission.Role `json:"role"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"-"`
}

// Deleted reports whether the record carries a soft-delete marker.
func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// CanAuthenticate reports whether the record may log in at all: active and
// not soft-deleted. Credential checks are separate.
func (r *Record) CanAuthenticate() bool {
	return r.Status == StatusActive && !r.Deleted()
}

// View returns the credential-free projection of r.
func (r *Record) View() View {
	v := View{
		ID:        r.ID,
		AccountID: r.AccountID,
		Email:     r.Email,
		Role:      r.Role,
		Status:    r.Status,
	}
	if r.BranchID != nil {
		branch := *r.BranchID
		v.BranchID = &branch
	}
	if r.Name != nil {
		name := *r.Name
		v.Name = &name
	}
	return v
}

// NewUser is the input for creating a record. PasswordHash is already hashed;
// stores never see plaintext.
type NewUser struct {
	AccountID    uuid.UUID
	BranchID     *uuid.UUID
	Name         *string
	Email        string
	PasswordHash string
	Role         permission.Role
}

// View is the reduced identity placed in session state, request context and
// response bodies.
type View struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"account_id"`
	BranchID  *uuid.UUID      `json:"branch_id"`
	Name      *string         `json:"name"`
	Email     string          `json:"email"`
	Role      permission.Role `json:"role"`
	Status    Status          `json:"status"`
}

// Equal compares two views field by field, following optional pointers.
func (v View) Equal(o View) bool {
	if v.ID != o.ID || v.AccountID != o.AccountID || v.Email != o.Email ||
		v.Role != o.Role || v.Status != o.Status {
		return false
	}
	if (v.BranchID == nil) != (o.BranchID == nil) {
		return false
	}
	if v.BranchID != nil && *v.BranchID != *o.BranchID {
		return false
	}
	if (v.Name == nil) != (o.Name == nil) {
		return false
	}
	return v.Name == nil || *v.Name == *o.Name
}
