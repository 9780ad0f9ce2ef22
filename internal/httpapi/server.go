// Package httpapi is the HTTP surface: auth and user-management routes on a
// gorilla/mux router, guarded by session authentication and a per-route role
// policy.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/respond"
	"github.com/MrEthical07/sessionauth/internal/users"
	"github.com/MrEthical07/sessionauth/metrics/export/prometheus"
	"github.com/MrEthical07/sessionauth/middleware"
	"github.com/MrEthical07/sessionauth/permission"
)

const maxBodyBytes = 1 << 20

// Pinger reports backend reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the API.
type Options struct {
	Engine *sessionauth.Engine
	Users  *users.Service
	Logger *slog.Logger

	Version string
	// Database is checked by /health when set.
	Database Pinger

	// AuthRate and AuthBurst bound login and register per client IP.
	// Zero disables the limiter.
	AuthRate  rate.Limit
	AuthBurst int

	// TrustProxy makes the first X-Forwarded-For entry the client IP.
	TrustProxy bool
}

// API holds the handlers' collaborators.
type API struct {
	engine   *sessionauth.Engine
	users    *users.Service
	logger   *slog.Logger
	version  string
	database Pinger
	started  time.Time
	limiter  *ipRateLimiter
	trust    bool
}

// New validates opts and builds the API.
func New(opts Options) (*API, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Users == nil {
		return nil, errors.New("httpapi: user service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	a := &API{
		engine:   opts.Engine,
		users:    opts.Users,
		logger:   opts.Logger.With("component", "httpapi"),
		version:  opts.Version,
		database: opts.Database,
		started:  time.Now(),
		trust:    opts.TrustProxy,
	}
	if opts.AuthRate > 0 && opts.AuthBurst > 0 {
		a.limiter = newIPRateLimiter(opts.AuthRate, opts.AuthBurst)
	}
	return a, nil
}

var (
	managers    = permission.Roles(permission.RoleRoot, permission.RoleGeneralManager, permission.RoleManager)
	seniorStaff = permission.Roles(permission.RoleRoot, permission.RoleGeneralManager)
)

// Policy maps each protected route name to the roles it admits.
func Policy() middleware.RoutePolicy {
	return middleware.RoutePolicy{
		"auth.me":          permission.AnyRole(),
		"users.list":       managers,
		"users.create":     managers,
		"users.get":        permission.AnyRole(),
		"users.update":     managers,
		"users.delete":     seniorStaff,
		"users.deactivate": managers,
		"users.activate":   managers,
		"users.by_account": managers,
		"users.by_branch":  managers,
		"users.by_role":    managers,
	}
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(recoverer(a.logger), clientIP(a.trust), requestLogger(a.logger))

	r.HandleFunc("/health", a.health).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", prometheus.Handler(prometheus.NewCollector(a.engine))).Methods(http.MethodGet).Name("metrics")

	r.Handle("/auth/register", a.limited(a.register)).Methods(http.MethodPost).Name("auth.register")
	r.Handle("/auth/login", a.limited(a.login)).Methods(http.MethodPost).Name("auth.login")
	r.HandleFunc("/auth/logout", a.logout).Methods(http.MethodDelete).Name("auth.logout")

	protected := r.NewRoute().Subrouter()
	protected.Use(
		middleware.Authenticate(a.engine.SessionStore(), a.engine.Sessions(), a.writeError),
		middleware.Authorize(Policy().Resolve, a.writeError),
	)

	protected.HandleFunc("/auth/me", a.me).Methods(http.MethodGet).Name("auth.me")

	protected.HandleFunc("/users", a.listUsers).Methods(http.MethodGet).Name("users.list")
	protected.HandleFunc("/users", a.createUser).Methods(http.MethodPost).Name("users.create")
	protected.HandleFunc("/users/account/{account_id}", a.listByAccount).Methods(http.MethodGet).Name("users.by_account")
	protected.HandleFunc("/users/branch/{branch_id}", a.listByBranch).Methods(http.MethodGet).Name("users.by_branch")
	protected.HandleFunc("/users/role/{role}", a.listByRole).Methods(http.MethodGet).Name("users.by_role")
	protected.HandleFunc("/users/{id}", a.getUser).Methods(http.MethodGet).Name("users.get")
	protected.HandleFunc("/users/{id}", a.updateUser).Methods(http.MethodPut).Name("users.update")
	protected.HandleFunc("/users/{id}", a.deleteUser).Methods(http.MethodDelete).Name("users.delete")
	protected.HandleFunc("/users/{id}/deactivate", a.deactivateUser).Methods(http.MethodPost).Name("users.deactivate")
	protected.HandleFunc("/users/{id}/activate", a.activateUser).Methods(http.MethodPost).Name("users.activate")

	return r
}

func (a *API) limited(h http.HandlerFunc) http.Handler {
	if a.limiter == nil {
		return h
	}
	return a.limiter.middleware(h)
}

// writeError renders err through sessionauth.HTTPStatus. Server-side
// failures are logged with their cause; the client only sees the mapped
// message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := sessionauth.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	respond.Error(w, status, msg)
}

var errMalformedBody = &sessionauth.ValidationError{Field: "body", Message: "request body must be valid JSON"}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errMalformedBody
	}
	return nil
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  uint64            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
}

const healthTimeout = 2 * time.Second

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Version: a.version,
		Uptime:  uint64(time.Since(a.started).Seconds()),
		Checks:  map[string]string{},
	}

	if _, err := a.engine.Ping(ctx); err != nil {
		resp.Checks["redis"] = "unreachable"
		resp.Status = "degraded"
	} else {
		resp.Checks["redis"] = "ok"
	}
	if a.database != nil {
		if err := a.database.Ping(ctx); err != nil {
			resp.Checks["database"] = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Checks["database"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respond.Raw(w, status, resp)
}
