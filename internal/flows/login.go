package flows

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
)

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	PasswordUpgraded int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountInactive    error
	LoginRateLimited   error
	Unavailable        error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	// DiscloseInactive returns AccountInactive instead of InvalidCredentials
	// for inactive or soft-deleted accounts.
	DiscloseInactive       bool
	PasswordUpgradeOnLogin bool

	ClientIPFromContext func(context.Context) string
	ValidateInput       func(email, password string) error

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string, string) error

	FindByEmail        func(context.Context, string) (*identity.Record, error)
	IsNotFound         func(error) bool
	UpdatePasswordHash func(context.Context, uuid.UUID, string) error

	VerifyPassword       func(password, encoded string) bool
	PasswordNeedsUpgrade func(string) bool
	HashPassword         func(string) (string, error)
	// DummyHash is verified against on failures that have no stored hash to
	// check, so every credential failure costs one derivation.
	DummyHash string

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.IsNotFound == nil {
		deps.IsNotFound = func(error) bool { return false }
	}
}

// RunLogin authenticates email and password and returns the identity view.
// Steps run strictly in order and stop at the first failure: input
// validation, throttle gate, lookup, status check, credential check.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (identity.View, error) {
	normalizeLoginDeps(&deps)

	if deps.ValidateInput == nil || deps.FindByEmail == nil || deps.VerifyPassword == nil {
		return identity.View{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	fail := func(userID, reason string, err error) (identity.View, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     reason,
			}
		})
		// Backend failures say nothing about the caller; only count credential failures.
		if deps.IncrementLoginRate != nil && !errors.Is(err, deps.Errors.Unavailable) {
			if incErr := deps.IncrementLoginRate(ctx, email, ip); incErr != nil && !errors.Is(incErr, deps.Errors.LoginRateLimited) {
				deps.Warn("sessionauth: login throttle increment failed", "error", incErr)
			}
		}
		return identity.View{}, err
	}

	if err := deps.ValidateInput(email, password); err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return identity.View{}, err
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, email, ip); err != nil {
			if errors.Is(err, deps.Errors.LoginRateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", err, func() map[string]string {
					return map[string]string{"identifier": email}
				})
			}
			return identity.View{}, err
		}
	}

	burn := func() { deps.VerifyPassword(password, deps.DummyHash) }

	rec, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound(err) {
			burn()
			return fail("", "unknown_identifier", deps.Errors.InvalidCredentials)
		}
		return fail("", "lookup_failed", errors.Join(deps.Errors.Unavailable, err))
	}
	if rec == nil {
		burn()
		return fail("", "unknown_identifier", deps.Errors.InvalidCredentials)
	}

	userID := rec.ID.String()

	if !rec.CanAuthenticate() {
		burn()
		if deps.DiscloseInactive {
			return fail(userID, "account_status", deps.Errors.AccountInactive)
		}
		return fail(userID, "account_status", deps.Errors.InvalidCredentials)
	}

	if rec.PasswordHash == nil || *rec.PasswordHash == "" {
		burn()
		return fail(userID, "no_credential", deps.Errors.InvalidCredentials)
	}
	if !deps.VerifyPassword(password, *rec.PasswordHash) {
		return fail(userID, "password", deps.Errors.InvalidCredentials)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, email, ip); err != nil {
			deps.Warn("sessionauth: login throttle reset failed", "error", err)
		}
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil &&
		deps.HashPassword != nil && deps.UpdatePasswordHash != nil &&
		deps.PasswordNeedsUpgrade(*rec.PasswordHash) {
		// Best effort: the login already succeeded.
		if upgraded, err := deps.HashPassword(password); err == nil {
			if err := deps.UpdatePasswordHash(ctx, rec.ID, upgraded); err != nil {
				deps.Warn("sessionauth: password rehash store failed", "user_id", userID, "error", err)
			} else {
				deps.MetricInc(deps.Metrics.PasswordUpgraded)
			}
		} else {
			deps.Warn("sessionauth: password rehash failed", "user_id", userID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, userID, nil, nil)

	return rec.View(), nil
}
