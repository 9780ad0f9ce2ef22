package session

import (
	"net/http"
	"strings"
	"time"
)

// Handle is the per-request binding between a session cookie and the store.
// It is not safe for concurrent use; create one per request with [Store.Load].
type Handle struct {
	store *Store
	w     http.ResponseWriter
	token string
}

// Token returns the session token bound to the request, or "" when none.
func (h *Handle) Token() string {
	if h == nil {
		return ""
	}
	return h.token
}

func (h *Handle) bind(token string) {
	h.token = token
	if h.w == nil {
		return
	}
	opts := h.store.opts
	http.SetCookie(h.w, &http.Cookie{
		Name:     opts.CookieName,
		Value:    token,
		Path:     opts.CookiePath,
		Domain:   opts.CookieDomain,
		MaxAge:   int(opts.MaxAge / time.Second),
		Expires:  h.store.now().Add(opts.MaxAge),
		HttpOnly: true,
		Secure:   opts.CookieSecure,
		SameSite: opts.SameSite,
	})
}

func (h *Handle) unbind() {
	h.token = ""
	if h.w == nil {
		return
	}
	opts := h.store.opts
	http.SetCookie(h.w, &http.Cookie{
		Name:     opts.CookieName,
		Value:    "",
		Path:     opts.CookiePath,
		Domain:   opts.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   opts.CookieSecure,
		SameSite: opts.SameSite,
	})
}

// ParseSameSite maps "strict", "lax", or "none" (any case) to its cookie mode.
// Anything else yields Lax.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
