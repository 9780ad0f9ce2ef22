package sessionauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
	internalaudit "github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/internal/validate"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/permission"
	"github.com/MrEthical07/sessionauth/session"
)

// Engine authenticates credentials against a UserProvider, registers users,
// and starts or ends sessions. Build one with New().…Build(). It is safe for
// concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger

	userProvider UserProvider
	passwordHash *password.Argon2
	dummyHash    string
	validator    *validate.Validator

	sessionStore *session.Store
	sessions     *session.Manager
	rateLimiter  *rate.Limiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Close()
}

// AuditStats counts audit events by outcome since the engine was built.
type AuditStats struct {
	// Dropped events were discarded because the buffer was full.
	Dropped uint64
	// Delivered events reached the sink without it panicking.
	Delivered uint64
	// SinkPanics counts events whose delivery panicked.
	SinkPanics uint64
}

func (e *Engine) AuditStats() AuditStats {
	if e == nil || e.audit == nil {
		return AuditStats{}
	}
	return AuditStats{
		Dropped:    e.audit.Dropped(),
		Delivered:  e.audit.Delivered(),
		SinkPanics: e.audit.SinkPanics(),
	}
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Sessions returns the session manager. Middleware reads the current user
// through it.
func (e *Engine) Sessions() *session.Manager {
	if e == nil {
		return nil
	}
	return e.sessions
}

// SessionStore returns the session store adapter used to load request handles.
func (e *Engine) SessionStore() *session.Store {
	if e == nil {
		return nil
	}
	return e.sessionStore
}

// Hasher returns the configured password hasher.
func (e *Engine) Hasher() *password.Argon2 {
	if e == nil {
		return nil
	}
	return e.passwordHash
}

// Ping checks the session store.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	return e.sessionStore.Ping(ctx)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
LOGIN
====================================
*/

// Login verifies email and password and returns the user's identity view.
// It does not start a session; pass the view to StartSession.
//
// An unknown email, a wrong password, and (unless DiscloseInactiveAccounts is
// set) an inactive or deleted account all fail with ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, pw string) (identity.View, error) {
	if e == nil {
		return identity.View{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}()

	return flows.RunLogin(ctx, email, pw, e.loginDeps())
}

func (e *Engine) loginDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		DiscloseInactive:       e.config.Security.DiscloseInactiveAccounts,
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		ClientIPFromContext:    clientIPFromContext,
		ValidateInput:          e.validateLogin,
		IsNotFound: func(err error) bool {
			return errors.Is(err, identity.ErrNotFound)
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      e.logger.Warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountInactive:    ErrAccountInactive,
			LoginRateLimited:   ErrLoginRateLimited,
			Unavailable:        ErrUnavailable,
		},
	}

	if e.userProvider != nil {
		deps.FindByEmail = e.userProvider.FindByEmail
		if updater, ok := e.userProvider.(PasswordHashUpdater); ok {
			deps.UpdatePasswordHash = updater.UpdatePasswordHash
		}
	}
	if e.passwordHash != nil {
		deps.VerifyPassword = e.passwordHash.Verify
		deps.PasswordNeedsUpgrade = e.passwordHash.NeedsUpgrade
		deps.HashPassword = e.passwordHash.Hash
		deps.DummyHash = e.dummyHash
	}
	if e.rateLimiter != nil && e.config.Security.EnableLoginThrottle {
		deps.CheckLoginRate = func(ctx context.Context, email, ip string) error {
			return mapRateError(e.rateLimiter.CheckLogin(ctx, email, ip))
		}
		deps.IncrementLoginRate = func(ctx context.Context, email, ip string) error {
			return mapRateError(e.rateLimiter.IncrementLogin(ctx, email, ip))
		}
		deps.ResetLoginRate = func(ctx context.Context, email, ip string) error {
			return mapRateError(e.rateLimiter.ResetLogin(ctx, email, ip))
		}
	}

	return deps
}

func mapRateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrLoginRateLimited
	default:
		return errors.Join(ErrUnavailable, err)
	}
}

func (e *Engine) validateLogin(email, pw string) error {
	if e.validator == nil {
		return ErrEngineNotReady
	}
	return e.toValidationError(e.validator.Struct(LoginRequest{Email: email, Password: pw}))
}

func (e *Engine) toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs *validate.Errors
	if errors.As(err, &verrs) {
		field, msg := verrs.First()
		return newValidationError(field, msg)
	}
	return newValidationError("", err.Error())
}

/*
====================================
REGISTRATION
====================================
*/

// Register validates req and creates an ACTIVE user. A taken email fails with
// ErrConflict.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (identity.View, error) {
	if e == nil || e.validator == nil {
		return identity.View{}, ErrEngineNotReady
	}

	in, err := e.registerInput(req)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return identity.View{}, err
	}

	deps := flows.RegisterDeps{
		IsDuplicate: func(err error) bool {
			return errors.Is(err, identity.ErrDuplicateEmail)
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Metrics: flows.RegisterMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterDuplicate: int(MetricRegisterDuplicate),
			RegisterFailure:   int(MetricRegisterFailure),
		},
		Events: flows.RegisterEvents{
			RegisterSuccess: auditEventRegisterSuccess,
			RegisterFailure: auditEventRegisterFailure,
		},
		Errors: flows.RegisterErrors{
			EngineNotReady: ErrEngineNotReady,
			Conflict:       ErrConflict,
			Internal:       ErrInternal,
			Unavailable:    ErrUnavailable,
		},
	}
	if e.userProvider != nil {
		deps.ExistsByEmail = e.userProvider.ExistsByEmail
		deps.CreateUser = e.userProvider.Create
	}
	if e.passwordHash != nil {
		deps.HashPassword = e.passwordHash.Hash
	}

	return flows.RunRegister(ctx, in, deps)
}

func (e *Engine) registerInput(req RegisterRequest) (flows.RegisterInput, error) {
	if err := e.validator.Struct(req); err != nil {
		return flows.RegisterInput{}, e.toValidationError(err)
	}

	role, err := permission.ParseRole(req.Role)
	if err != nil {
		return flows.RegisterInput{}, newValidationError("role", "role is invalid")
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return flows.RegisterInput{}, newValidationError("account_id", "account_id must be a valid UUID")
	}

	nu := identity.NewUser{
		AccountID: accountID,
		Email:     strings.TrimSpace(req.Email),
		Role:      role,
	}
	if req.BranchID != nil && *req.BranchID != "" {
		branchID, err := uuid.Parse(*req.BranchID)
		if err != nil {
			return flows.RegisterInput{}, newValidationError("branch_id", "branch_id must be a valid UUID")
		}
		nu.BranchID = &branchID
	}
	if req.Name != nil {
		name := *req.Name
		nu.Name = &name
	}

	return flows.RegisterInput{User: nu, Password: req.Password}, nil
}

/*
====================================
SESSIONS
====================================
*/

// StartSession binds v to the request's session, rotating its token and
// setting the cookie on the handle's response writer.
func (e *Engine) StartSession(ctx context.Context, h *session.Handle, v identity.View) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.Login(ctx, h, v); err != nil {
		e.metricInc(MetricSessionCreateFailure)
		e.emitAudit(ctx, auditEventSessionFailure, false, v.ID.String(), ErrUnavailable, nil)
		if errors.Is(err, session.ErrRedisUnavailable) {
			return errors.Join(ErrUnavailable, err)
		}
		return errors.Join(ErrInternal, err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, v.ID.String(), nil, nil)
	return nil
}

// EndSession logs the request's session out and clears the cookie. The
// cookie is cleared even when the store call fails.
func (e *Engine) EndSession(ctx context.Context, h *session.Handle) (identity.View, bool, error) {
	if e == nil || e.sessions == nil {
		return identity.View{}, false, ErrEngineNotReady
	}

	v, ok, err := e.sessions.Logout(ctx, h)
	if err != nil {
		return identity.View{}, false, errors.Join(ErrUnavailable, err)
	}
	if ok {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, v.ID.String(), nil, nil)
	}
	return v, ok, nil
}
