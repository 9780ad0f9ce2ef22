package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/respond"
	"github.com/MrEthical07/sessionauth/internal/users"
)

// pathUUID reads the named path variable as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, &sessionauth.ValidationError{Field: name, Message: name + " must be a valid UUID"}
	}
	return id, nil
}

func (a *API) writeUsers(w http.ResponseWriter, r *http.Request, list []users.User, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "users retrieved", list)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.users.List(r.Context())
	a.writeUsers(w, r, list, err)
}

func (a *API) listByAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "account_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.users.ListByAccount(r.Context(), id)
	a.writeUsers(w, r, list, err)
}

func (a *API) listByBranch(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "branch_id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.users.ListByBranch(r.Context(), id)
	a.writeUsers(w, r, list, err)
}

func (a *API) listByRole(w http.ResponseWriter, r *http.Request) {
	list, err := a.users.ListByRole(r.Context(), mux.Vars(r)["role"])
	a.writeUsers(w, r, list, err)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req sessionauth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, err := a.users.Create(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "user created", u)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	u, err := a.users.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "user retrieved", u)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var req users.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, err := a.users.Update(r.Context(), id, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "user updated", u)
}

// userAction runs a body-less mutation on the {id} user.
func (a *API) userAction(do func(*users.Service, *http.Request, uuid.UUID) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := do(a.users, r, id); err != nil {
			a.writeError(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, message, nil)
	}
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	a.userAction(func(s *users.Service, r *http.Request, id uuid.UUID) error {
		return s.Delete(r.Context(), id)
	}, "user deleted")(w, r)
}

func (a *API) deactivateUser(w http.ResponseWriter, r *http.Request) {
	a.userAction(func(s *users.Service, r *http.Request, id uuid.UUID) error {
		return s.Deactivate(r.Context(), id)
	}, "user deactivated")(w, r)
}

func (a *API) activateUser(w http.ResponseWriter, r *http.Request) {
	a.userAction(func(s *users.Service, r *http.Request, id uuid.UUID) error {
		return s.Activate(r.Context(), id)
	}, "user activated")(w, r)
}
