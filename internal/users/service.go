// Package users implements user management on top of a userstore.Repository.
// Errors are the sessionauth sentinels, so the HTTP layer maps them with
// sessionauth.HTTPStatus.
package users

//go:generate mockgen -destination=mock_repository_test.go -package=users github.com/MrEthical07/sessionauth/internal/userstore Repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/internal/userstore"
	"github.com/MrEthical07/sessionauth/internal/validate"
	"github.com/MrEthical07/sessionauth/permission"
)

// Registrar creates users with the registration rules. *sessionauth.Engine
// implements it.
type Registrar interface {
	Register(ctx context.Context, req sessionauth.RegisterRequest) (identity.View, error)
}

// Hasher hashes replacement passwords.
type Hasher interface {
	Hash(password string) (string, error)
}

// User is the management view of a record: the identity view plus
// timestamps. It never carries the password hash.
type User struct {
	identity.View
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUser(rec *identity.Record) User {
	return User{View: rec.View(), CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
}

// UpdateRequest is a partial update. Omitted fields are unchanged.
type UpdateRequest struct {
	BranchID *string `json:"branch_id,omitempty" validate:"omitempty,uuid"`
	Name     *string `json:"name,omitempty" validate:"omitnil,min=1,max=100"`
	Email    *string `json:"email,omitempty" validate:"omitnil,email"`
	Password *string `json:"password,omitempty" validate:"omitnil,min=8,max=100"`
	Role     *string `json:"role,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// Service applies the management rules.
type Service struct {
	repo      userstore.Repository
	registrar Registrar
	hasher    Hasher
	validator *validate.Validator
	logger    *slog.Logger
}

// NewService wires the service. A nil logger discards.
func NewService(repo userstore.Repository, registrar Registrar, hasher Hasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		repo:      repo,
		registrar: registrar,
		hasher:    hasher,
		validator: validate.New(),
		logger:    logger.With("component", "users"),
	}
}

// List returns every live user.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.list(ctx, userstore.Filter{})
}

// ListByAccount returns the live users of one account.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]User, error) {
	return s.list(ctx, userstore.Filter{AccountID: &accountID})
}

// ListByBranch returns the live users of one branch.
func (s *Service) ListByBranch(ctx context.Context, branchID uuid.UUID) ([]User, error) {
	return s.list(ctx, userstore.Filter{BranchID: &branchID})
}

// ListByRole returns the live users holding role, given by wire name.
func (s *Service) ListByRole(ctx context.Context, role string) ([]User, error) {
	r, err := permission.ParseRole(role)
	if err != nil {
		return nil, &sessionauth.ValidationError{Field: "role", Message: "role is invalid"}
	}
	return s.list(ctx, userstore.Filter{Role: &r})
}

func (s *Service) list(ctx context.Context, f userstore.Filter) ([]User, error) {
	recs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]User, 0, len(recs))
	for i := range recs {
		out = append(out, toUser(&recs[i]))
	}
	return out, nil
}

// Get returns one user, including a deactivated one.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, storeError(err)
	}
	return toUser(rec), nil
}

// Create registers a user with the same rules as self-registration.
func (s *Service) Create(ctx context.Context, req sessionauth.RegisterRequest) (User, error) {
	v, err := s.registrar.Register(ctx, req)
	if err != nil {
		return User{}, err
	}
	rec, err := s.repo.GetByID(ctx, v.ID)
	if err != nil {
		// Registered but not readable back; the view is still accurate.
		s.logger.Warn("created user not readable", "user_id", v.ID, "error", err)
		return User{View: v}, nil
	}
	return toUser(rec), nil
}

// Update applies req to the user.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (User, error) {
	if err := s.validator.Struct(req); err != nil {
		return User{}, validationError(err)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, storeError(err)
	}

	patch, err := s.buildPatch(ctx, current, req)
	if err != nil {
		return User{}, err
	}

	rec, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return User{}, storeError(err)
	}

	s.logger.Info("user updated", "user_id", id)
	return toUser(rec), nil
}

func (s *Service) buildPatch(ctx context.Context, current *identity.Record, req UpdateRequest) (userstore.Patch, error) {
	var patch userstore.Patch

	if req.BranchID != nil {
		if *req.BranchID == "" {
			patch.ClearBranch = true
		} else {
			branch, err := uuid.Parse(*req.BranchID)
			if err != nil {
				return patch, &sessionauth.ValidationError{Field: "branch_id", Message: "branch_id is invalid"}
			}
			patch.BranchID = &branch
		}
	}
	patch.Name = req.Name

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != current.Email {
			exists, err := s.repo.ExistsByEmail(ctx, email)
			if err != nil {
				return patch, storeError(err)
			}
			if exists {
				return patch, sessionauth.ErrConflict
			}
		}
		patch.Email = &email
	}

	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return patch, errors.Join(sessionauth.ErrInternal, err)
		}
		patch.PasswordHash = &hash
	}

	if req.Role != nil {
		role, err := permission.ParseRole(*req.Role)
		if err != nil {
			return patch, &sessionauth.ValidationError{Field: "role", Message: "role is invalid"}
		}
		if role != current.Role {
			if err := checkRoleGrant(ctx, current.Role, role); err != nil {
				return patch, err
			}
		}
		patch.Role = &role
	}

	if req.Status != nil {
		status, err := identity.ParseStatus(*req.Status)
		if err != nil {
			return patch, &sessionauth.ValidationError{Field: "status", Message: "status must be ACTIVE or INACTIVE"}
		}
		if current.Role == permission.RoleRoot && status == identity.StatusInactive {
			return patch, sessionauth.ErrForbidden
		}
		patch.Status = &status
	}

	return patch, nil
}

// checkRoleGrant refuses a role change unless the caller is at least as
// senior as both the target's current role and the role being granted.
func checkRoleGrant(ctx context.Context, from, to permission.Role) error {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return sessionauth.ErrForbidden
	}
	if to.Outranks(caller.Role) || from.Outranks(caller.Role) {
		return sessionauth.ErrForbidden
	}
	return nil
}

// Delete removes the user permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// Deactivate soft-deletes the user. ROOT users cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if rec.Role == permission.RoleRoot {
		return sessionauth.ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return storeError(err)
	}
	s.logger.Info("user deactivated", "user_id", id)
	return nil
}

// Activate restores a soft-deleted user.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Restore(ctx, id); err != nil {
		return storeError(err)
	}
	s.logger.Info("user activated", "user_id", id)
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		return sessionauth.ErrNotFound
	case errors.Is(err, userstore.ErrDuplicateEmail):
		return sessionauth.ErrConflict
	default:
		return errors.Join(sessionauth.ErrUnavailable, err)
	}
}

func validationError(err error) error {
	var verrs *validate.Errors
	if errors.As(err, &verrs) {
		field, msg := verrs.First()
		return &sessionauth.ValidationError{Field: field, Message: msg}
	}
	return &sessionauth.ValidationError{Message: err.Error()}
}
