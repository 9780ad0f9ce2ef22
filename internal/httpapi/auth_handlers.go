package httpapi

import (
	"net/http"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/internal/respond"
)

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req sessionauth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	v, err := a.engine.Register(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.logger.Info("user registered", "user_id", v.ID)
	respond.JSON(w, http.StatusCreated, "user registered", v)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req sessionauth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	v, err := a.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	h := a.engine.SessionStore().Load(w, r)
	if err := a.engine.StartSession(r.Context(), h, v); err != nil {
		a.writeError(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, "login successful", v)
}

// logout always answers 200. The cookie is cleared even when no session
// exists or the store is down.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	h := a.engine.SessionStore().Load(w, r)
	if _, _, err := a.engine.EndSession(r.Context(), h); err != nil {
		a.logger.Warn("logout could not reach session store", "error", err)
	}
	respond.JSON(w, http.StatusOK, "logged out", nil)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	v, ok := identity.FromContext(r.Context())
	if !ok {
		a.writeError(w, r, sessionauth.ErrUnauthenticated)
		return
	}
	respond.JSON(w, http.StatusOK, "current user", v)
}
