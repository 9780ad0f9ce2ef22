//go:build integration
// +build integration

// Package test holds integration suites that exercise the session store
// against miniredis and, when configured, a real Redis.
package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/permission"
	"github.com/MrEthical07/sessionauth/session"
)

func newIntegrationStore(t *testing.T, opts session.Options) (*session.Store, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := session.NewStore(rdb, opts)

	return store, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func makeView(email string, role permission.Role) identity.View {
	return identity.View{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Email:     email,
		Role:      role,
		Status:    identity.StatusActive,
	}
}

// handleFor binds token (possibly empty) to a fresh handle without a
// response writer, so no cookie is emitted.
func handleFor(store *session.Store, token string) *session.Handle {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: store.Options().CookieName, Value: token})
	}
	return store.Load(nil, r)
}

func login(t *testing.T, m *session.Manager, v identity.View) string {
	t.Helper()

	h := handleFor(m.Store(), "")
	if err := m.Login(context.Background(), h, v); err != nil {
		t.Fatalf("login: %v", err)
	}
	if h.Token() == "" {
		t.Fatal("login must bind a token")
	}
	return h.Token()
}

const testIdle = 10 * time.Minute
