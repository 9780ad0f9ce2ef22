package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/permission"
)

var (
	errNotReady     = errors.New("not ready")
	errInvalidCreds = errors.New("invalid credentials")
	errInactive     = errors.New("inactive")
	errLimited      = errors.New("limited")
	errUnavailable  = errors.New("unavailable")
	errValidation   = errors.New("validation")
	errConflict     = errors.New("conflict")
	errInternal     = errors.New("internal")
)

type loginHarness struct {
	records    map[string]*identity.Record
	lookupErr  error
	increments int
	resets     int
	metrics    map[int]int
	audits     []string
	reasons    []string
	rehashed   string
	verifies   []string
}

func newLoginHarness() *loginHarness {
	return &loginHarness{
		records: map[string]*identity.Record{},
		metrics: map[int]int{},
	}
}

func (h *loginHarness) add(email, password string, status identity.Status, deleted bool) *identity.Record {
	hash := "hash:" + password
	rec := &identity.Record{
		ID:           uuid.New(),
		AccountID:    uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		Role:         permission.RoleCustomer,
		Status:       status,
	}
	if deleted {
		now := time.Now()
		rec.DeletedAt = &now
	}
	h.records[email] = rec
	return rec
}

func (h *loginHarness) deps() LoginDeps {
	return LoginDeps{
		ValidateInput: func(email, password string) error {
			if email == "" || password == "" {
				return errValidation
			}
			return nil
		},
		IncrementLoginRate: func(context.Context, string, string) error {
			h.increments++
			return nil
		},
		ResetLoginRate: func(context.Context, string, string) error {
			h.resets++
			return nil
		},
		FindByEmail: func(_ context.Context, email string) (*identity.Record, error) {
			if h.lookupErr != nil {
				return nil, h.lookupErr
			}
			rec, ok := h.records[email]
			if !ok {
				return nil, identity.ErrNotFound
			}
			return rec, nil
		},
		IsNotFound: func(err error) bool { return errors.Is(err, identity.ErrNotFound) },
		VerifyPassword: func(password, encoded string) bool {
			h.verifies = append(h.verifies, encoded)
			return encoded == "hash:"+password
		},
		DummyHash:            "dummy",
		PasswordNeedsUpgrade: func(encoded string) bool { return true },
		HashPassword:         func(p string) (string, error) { return "hash:" + p, nil },
		UpdatePasswordHash: func(_ context.Context, _ uuid.UUID, hash string) error {
			h.rehashed = hash
			return nil
		},
		MetricInc: func(id int) { h.metrics[id]++ },
		EmitAudit: func(_ context.Context, event string, _ bool, _ string, _ error, meta func() map[string]string) {
			h.audits = append(h.audits, event)
			if meta != nil {
				h.reasons = append(h.reasons, meta()["reason"])
			}
		},
		Metrics: LoginMetrics{LoginSuccess: 1, LoginFailure: 2, LoginRateLimited: 3, PasswordUpgraded: 4},
		Events:  LoginEvents{LoginSuccess: "login_success", LoginFailure: "login_failure", LoginRateLimited: "login_rate_limited"},
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			InvalidCredentials: errInvalidCreds,
			AccountInactive:    errInactive,
			LoginRateLimited:   errLimited,
			Unavailable:        errUnavailable,
		},
	}
}

func TestRunLoginSuccess(t *testing.T) {
	h := newLoginHarness()
	rec := h.add("ok@example.com", "correct-horse", identity.StatusActive, false)

	view, err := RunLogin(context.Background(), "ok@example.com", "correct-horse", h.deps())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if view.ID != rec.ID || view.Email != rec.Email {
		t.Fatalf("unexpected view %+v", view)
	}
	if h.metrics[1] != 1 || h.resets != 1 || h.increments != 0 {
		t.Fatalf("metrics=%v resets=%d increments=%d", h.metrics, h.resets, h.increments)
	}
	if len(h.audits) != 1 || h.audits[0] != "login_success" {
		t.Fatalf("audits = %v", h.audits)
	}
}

func TestRunLoginUniformFailures(t *testing.T) {
	h := newLoginHarness()
	h.add("ok@example.com", "correct-horse", identity.StatusActive, false)

	_, missErr := RunLogin(context.Background(), "nobody@example.com", "whatever1", h.deps())
	_, wrongErr := RunLogin(context.Background(), "ok@example.com", "wrong-pass", h.deps())

	if !errors.Is(missErr, errInvalidCreds) || !errors.Is(wrongErr, errInvalidCreds) {
		t.Fatalf("expected identical errors, got %v and %v", missErr, wrongErr)
	}
	if missErr.Error() != wrongErr.Error() {
		t.Fatalf("error text differs: %q vs %q", missErr, wrongErr)
	}
	if h.increments != 2 {
		t.Fatalf("expected both failures throttled, got %d", h.increments)
	}
	if h.reasons[0] != "unknown_identifier" || h.reasons[1] != "password" {
		t.Fatalf("audit reasons = %v", h.reasons)
	}
}

func TestRunLoginRejectsInactiveAndDeleted(t *testing.T) {
	h := newLoginHarness()
	h.add("off@example.com", "correct-horse", identity.StatusInactive, false)
	h.add("gone@example.com", "correct-horse", identity.StatusActive, true)

	for _, email := range []string{"off@example.com", "gone@example.com"} {
		if _, err := RunLogin(context.Background(), email, "correct-horse", h.deps()); !errors.Is(err, errInvalidCreds) {
			t.Fatalf("%s: expected uniform invalid credentials, got %v", email, err)
		}
	}

	deps := h.deps()
	deps.DiscloseInactive = true
	if _, err := RunLogin(context.Background(), "off@example.com", "correct-horse", deps); !errors.Is(err, errInactive) {
		t.Fatalf("expected disclosed inactive error, got %v", err)
	}
	for _, r := range h.reasons {
		if r != "account_status" {
			t.Fatalf("expected account_status reasons, got %v", h.reasons)
		}
	}
}

func TestRunLoginMissingHash(t *testing.T) {
	h := newLoginHarness()
	rec := h.add("nohash@example.com", "x", identity.StatusActive, false)
	rec.PasswordHash = nil

	if _, err := RunLogin(context.Background(), "nohash@example.com", "anything", h.deps()); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestRunLoginValidationPrecedesLookup(t *testing.T) {
	h := newLoginHarness()
	h.lookupErr = errors.New("must not be called")

	if _, err := RunLogin(context.Background(), "", "pw", h.deps()); !errors.Is(err, errValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.increments != 0 {
		t.Fatal("validation failures must not consume throttle budget")
	}
}

func TestRunLoginProviderFailureIsUnavailable(t *testing.T) {
	h := newLoginHarness()
	h.lookupErr = errors.New("connection refused")

	_, err := RunLogin(context.Background(), "ok@example.com", "pw", h.deps())
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if errors.Is(err, errInvalidCreds) {
		t.Fatal("provider failure must not look like bad credentials")
	}
	if h.increments != 0 {
		t.Fatal("provider failures must not consume throttle budget")
	}
}

func TestRunLoginThrottleGate(t *testing.T) {
	h := newLoginHarness()
	h.add("ok@example.com", "correct-horse", identity.StatusActive, false)
	deps := h.deps()
	deps.CheckLoginRate = func(context.Context, string, string) error { return errLimited }

	_, err := RunLogin(context.Background(), "ok@example.com", "correct-horse", deps)
	if !errors.Is(err, errLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if h.metrics[3] != 1 || h.audits[0] != "login_rate_limited" {
		t.Fatalf("metrics=%v audits=%v", h.metrics, h.audits)
	}
}

func TestRunLoginUpgradesHash(t *testing.T) {
	h := newLoginHarness()
	h.add("ok@example.com", "correct-horse", identity.StatusActive, false)
	deps := h.deps()
	deps.PasswordUpgradeOnLogin = true

	if _, err := RunLogin(context.Background(), "ok@example.com", "correct-horse", deps); err != nil {
		t.Fatalf("login: %v", err)
	}
	if h.rehashed != "hash:correct-horse" || h.metrics[4] != 1 {
		t.Fatalf("rehash not stored: %q metrics=%v", h.rehashed, h.metrics)
	}
}

func TestRunLoginNotReady(t *testing.T) {
	if _, err := RunLogin(context.Background(), "a@b.c", "pw", LoginDeps{Errors: LoginErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestRunLoginFailuresVerifyExactlyOnce(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		disclose bool
		setup    func(*loginHarness)
		want     string
	}{
		{"unknown email", "nobody@example.com", false, nil, "dummy"},
		{"inactive account", "off@example.com", false, nil, "dummy"},
		{"inactive account disclosed", "off@example.com", true, nil, "dummy"},
		{"soft-deleted account", "gone@example.com", false, nil, "dummy"},
		{"missing hash", "nohash@example.com", false, func(h *loginHarness) {
			h.records["nohash@example.com"].PasswordHash = nil
		}, "dummy"},
		{"wrong password", "ok@example.com", false, nil, "hash:correct-horse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newLoginHarness()
			h.add("ok@example.com", "correct-horse", identity.StatusActive, false)
			h.add("off@example.com", "correct-horse", identity.StatusInactive, false)
			h.add("gone@example.com", "correct-horse", identity.StatusActive, true)
			h.add("nohash@example.com", "correct-horse", identity.StatusActive, false)
			if tt.setup != nil {
				tt.setup(h)
			}
			deps := h.deps()
			deps.DiscloseInactive = tt.disclose

			if _, err := RunLogin(context.Background(), tt.email, "wrong-pass", deps); err == nil {
				t.Fatal("expected failure")
			}
			if len(h.verifies) != 1 || h.verifies[0] != tt.want {
				t.Fatalf("expected one verification against %q, got %v", tt.want, h.verifies)
			}
		})
	}
}

func TestRunLoginValidationPrecedesThrottle(t *testing.T) {
	h := newLoginHarness()
	checks := 0
	deps := h.deps()
	deps.CheckLoginRate = func(context.Context, string, string) error {
		checks++
		return nil
	}

	if _, err := RunLogin(context.Background(), "", "pw", deps); !errors.Is(err, errValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if checks != 0 {
		t.Fatalf("throttle consulted %d times for invalid input", checks)
	}
	if len(h.verifies) != 0 {
		t.Fatal("invalid input must not reach the hasher")
	}
}
