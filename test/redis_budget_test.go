//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/permission"
	"github.com/MrEthical07/sessionauth/session"
)

// cmdCounter is a go-redis Hook that counts Redis round-trips. Single
// commands and pipelines are tracked apart.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
	piped     atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.piped.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
	h.piped.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// RoundTrips counts each pipeline once, however many commands it carried.
func (h *cmdCounter) RoundTrips() int64 { return h.Commands() + h.Pipelines() }

func newCountedManager(t *testing.T, idle time.Duration) (*session.Manager, *cmdCounter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// go-redis may emit handshake commands on first use.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()

	store := session.NewStore(rdb, session.Options{
		KeyPrefix:   "budget",
		MaxAge:      time.Hour,
		IdleTimeout: idle,
	})
	return session.NewManager(store), counter
}

// TestLoginRedisBudget verifies that a login, fresh or rotating, is one
// transactional pipeline.
func TestLoginRedisBudget(t *testing.T) {
	m, counter := newCountedManager(t, testIdle)
	ctx := context.Background()
	v := makeView("budget@example.com", permission.RoleWaiter)

	h := handleFor(m.Store(), "")
	if err := m.Login(ctx, h, v); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := counter.RoundTrips(); got != 1 {
		t.Fatalf("fresh login used %d round-trips, want 1", got)
	}
	if counter.Pipelines() != 1 || counter.Commands() != 0 {
		t.Fatalf("fresh login must be a single pipeline: commands=%d pipelines=%d", counter.Commands(), counter.Pipelines())
	}

	counter.Reset()
	if err := m.Login(ctx, h, v); err != nil {
		t.Fatalf("rotating login: %v", err)
	}
	if got := counter.RoundTrips(); got != 1 {
		t.Fatalf("rotating login used %d round-trips, want 1", got)
	}
}

// TestCurrentUserRedisBudget verifies the read path: one HMGET plus one
// PEXPIRE when sliding expiry is on, and the HMGET alone when it is off.
func TestCurrentUserRedisBudget(t *testing.T) {
	tests := []struct {
		name string
		idle time.Duration
		want int64
	}{
		{"sliding", testIdle, 2},
		{"fixed", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, counter := newCountedManager(t, tt.idle)
			token := login(t, m, makeView("read@example.com", permission.RoleCook))

			counter.Reset()
			_, ok, err := m.CurrentUser(context.Background(), handleFor(m.Store(), token))
			if err != nil || !ok {
				t.Fatalf("current user: ok=%v err=%v", ok, err)
			}
			if got := counter.RoundTrips(); got != tt.want {
				t.Fatalf("read used %d round-trips, want %d", got, tt.want)
			}
		})
	}
}

func TestCurrentUserMissingRedisBudget(t *testing.T) {
	m, counter := newCountedManager(t, testIdle)

	forged := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	_, ok, err := m.CurrentUser(context.Background(), handleFor(m.Store(), forged))
	if err != nil || ok {
		t.Fatalf("unknown token: ok=%v err=%v", ok, err)
	}
	if got := counter.RoundTrips(); got != 1 {
		t.Fatalf("miss used %d round-trips, want 1", got)
	}

	counter.Reset()
	if _, ok, _ := m.CurrentUser(context.Background(), handleFor(m.Store(), "")); ok {
		t.Fatal("no token must not resolve a user")
	}
	if got := counter.RoundTrips(); got != 0 {
		t.Fatalf("tokenless read touched redis %d times", got)
	}
}

// TestLogoutRedisBudget allows a second call for the script load that
// follows a NOSCRIPT reply on first use.
func TestLogoutRedisBudget(t *testing.T) {
	m, counter := newCountedManager(t, testIdle)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		token := login(t, m, makeView("out@example.com", permission.RoleCustomer))
		counter.Reset()

		_, ok, err := m.Logout(ctx, handleFor(m.Store(), token))
		if err != nil || !ok {
			t.Fatalf("logout %d: ok=%v err=%v", i, ok, err)
		}
		limit := int64(1)
		if i == 0 {
			limit = 2
		}
		if got := counter.RoundTrips(); got > limit {
			t.Fatalf("logout %d used %d round-trips, want <= %d", i, got, limit)
		}
	}
}
