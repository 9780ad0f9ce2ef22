package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionauth/identity"
)

// RegisterMetrics carries metric IDs needed by the registration flow.
type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
	RegisterFailure   int
}

// RegisterEvents carries audit event names used by the registration flow.
type RegisterEvents struct {
	RegisterSuccess string
	RegisterFailure string
}

// RegisterErrors carries host-level sentinel errors used by the registration flow.
type RegisterErrors struct {
	EngineNotReady error
	Conflict       error
	Internal       error
	Unavailable    error
}

// RegisterInput is a validated registration request. Password is plaintext
// and is hashed by the flow before it reaches the store.
type RegisterInput struct {
	User     identity.NewUser
	Password string
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	ExistsByEmail func(context.Context, string) (bool, error)
	CreateUser    func(context.Context, identity.NewUser) (*identity.Record, error)
	IsDuplicate   func(error) bool
	HashPassword  func(string) (string, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.IsDuplicate == nil {
		deps.IsDuplicate = func(error) bool { return false }
	}
}

// RunRegister creates an ACTIVE user from a validated request. Duplicate
// emails, whether caught by the pre-check or by the store, fail with Conflict.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (identity.View, error) {
	normalizeRegisterDeps(&deps)

	if deps.ExistsByEmail == nil || deps.CreateUser == nil || deps.HashPassword == nil {
		return identity.View{}, deps.Errors.EngineNotReady
	}

	email := in.User.Email

	fail := func(reason string, err error) (identity.View, error) {
		if errors.Is(err, deps.Errors.Conflict) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
		} else {
			deps.MetricInc(deps.Metrics.RegisterFailure)
		}
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     reason,
			}
		})
		return identity.View{}, err
	}

	exists, err := deps.ExistsByEmail(ctx, email)
	if err != nil {
		return fail("lookup_failed", errors.Join(deps.Errors.Unavailable, err))
	}
	if exists {
		return fail("duplicate", deps.Errors.Conflict)
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return fail("hash_failed", errors.Join(deps.Errors.Internal, err))
	}

	nu := in.User
	nu.PasswordHash = hash

	rec, err := deps.CreateUser(ctx, nu)
	if err != nil {
		if deps.IsDuplicate(err) {
			return fail("duplicate", deps.Errors.Conflict)
		}
		return fail("create_failed", errors.Join(deps.Errors.Unavailable, err))
	}
	if rec == nil {
		return fail("create_failed", deps.Errors.Internal)
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, rec.ID.String(), nil, func() map[string]string {
		return map[string]string{
			"role": rec.Role.String(),
		}
	})

	return rec.View(), nil
}
