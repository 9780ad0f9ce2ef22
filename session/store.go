package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every failure to reach or command the session store.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldUser    = "user"
	fieldCreated = "created"

	minSlidingTTL = time.Second
)

// takeUserScript atomically reads and removes the user payload. A record left
// with nothing but its creation stamp is dropped entirely.
const takeUserScript = `
local data = redis.call("HGET", KEYS[1], ARGV[1])
if not data then
  return false
end
redis.call("HDEL", KEYS[1], ARGV[1])
if redis.call("HLEN", KEYS[1]) <= 1 then
  redis.call("DEL", KEYS[1])
end
return data
`

var takeUserLua = redis.NewScript(takeUserScript)

// Options configures key layout, cookie attributes, and lifetimes.
type Options struct {
	// KeyPrefix namespaces session hashes as "<prefix>:<token>".
	KeyPrefix string

	CookieName   string
	CookieDomain string
	CookiePath   string
	CookieSecure bool
	SameSite     http.SameSite

	// MaxAge bounds a session's total life from login, regardless of activity.
	MaxAge time.Duration
	// IdleTimeout expires a session that has not been read for this long.
	// Zero disables sliding expiry.
	IdleTimeout time.Duration
	// OperationTimeout bounds every individual Redis call.
	OperationTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = "sess"
	}
	if o.CookieName == "" {
		o.CookieName = "sid"
	}
	if o.CookiePath == "" {
		o.CookiePath = "/"
	}
	if o.SameSite == 0 || o.SameSite == http.SameSiteDefaultMode {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 24 * time.Hour
	}
	if o.IdleTimeout < 0 || o.IdleTimeout > o.MaxAge {
		o.IdleTimeout = 0
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = 2 * time.Second
	}
	return o
}

// Store is the Redis-backed session store adapter. It owns token issuance,
// the per-session hash, expiry, and the cookie that carries the token.
type Store struct {
	redis redis.UniversalClient
	opts  Options
	now   func() time.Time
}

// NewStore creates a [Store] over the given Redis client. Zero-valued options
// take defaults: prefix "sess", cookie "sid", path "/", SameSite Lax, 24h max
// age, 2s operation timeout.
func NewStore(rdb redis.UniversalClient, opts Options) *Store {
	return &Store{
		redis: rdb,
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
}

// Options returns the effective options after defaults were applied.
func (s *Store) Options() Options {
	return s.opts
}

func (s *Store) key(token string) string {
	return s.opts.KeyPrefix + ":" + token
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

// Load binds the request's session cookie to a [Handle]. It does not touch
// Redis; a missing or malformed cookie yields a handle with no token.
func (s *Store) Load(w http.ResponseWriter, r *http.Request) *Handle {
	h := &Handle{store: s, w: w}
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil {
		return h
	}
	if _, err := ParseToken(c.Value); err != nil {
		return h
	}
	h.token = c.Value
	return h
}

// initialTTL is the expiry applied at creation: the idle window when sliding
// is enabled, otherwise the full max age.
func (s *Store) initialTTL() time.Duration {
	if s.opts.IdleTimeout > 0 {
		return s.opts.IdleTimeout
	}
	return s.opts.MaxAge
}

// create writes a fresh record under a new token, dropping previous in the
// same transaction, and returns the new token.
func (s *Store) create(ctx context.Context, previous string, payload []byte) (string, error) {
	tok, err := NewToken()
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	token := tok.String()
	key := s.key(token)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" {
			pipe.Del(ctx, s.key(previous))
		}
		pipe.HSet(ctx, key, fieldUser, payload, fieldCreated, s.now().Unix())
		pipe.PExpire(ctx, key, s.initialTTL())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return token, nil
}

// read returns the payload for token and slides its expiry. Expired or
// absent records report ok=false without error.
func (s *Store) read(ctx context.Context, token string) ([]byte, bool, error) {
	key := s.key(token)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vals, err := s.redis.HMGet(ctx, key, fieldUser, fieldCreated).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 2 || vals[0] == nil {
		return nil, false, nil
	}

	payload, ok := asBytes(vals[0])
	if !ok {
		return nil, false, nil
	}

	created, ok := asUnix(vals[1])
	if !ok {
		// A record without a creation stamp cannot be aged; treat it as gone.
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, false, nil
	}

	remaining := s.remainingMaxAge(created)
	if remaining <= 0 {
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil, false, nil
	}

	if s.opts.IdleTimeout > 0 {
		if err := s.redis.PExpire(ctx, key, s.nextSlidingTTL(remaining)).Err(); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return payload, true, nil
}

// take atomically removes and returns the payload for token.
func (s *Store) take(ctx context.Context, token string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := takeUserLua.Run(ctx, s.redis, []string{s.key(token)}, fieldUser).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	payload, ok := asBytes(res)
	if !ok {
		return nil, false, nil
	}
	return payload, true, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) remainingMaxAge(created int64) time.Duration {
	return time.Unix(created, 0).Add(s.opts.MaxAge).Sub(s.now())
}

func (s *Store) nextSlidingTTL(remaining time.Duration) time.Duration {
	next := s.opts.IdleTimeout
	if next > remaining {
		next = remaining
	}
	minTTL := minSlidingTTL
	if remaining < minTTL {
		minTTL = remaining
	}
	if next < minTTL {
		next = minTTL
	}
	return next
}

func asBytes(v interface{}) ([]byte, bool) {
	switch t := v.(type) {
	case string:
		return []byte(t), true
	case []byte:
		return t, true
	default:
		return nil, false
	}
}

func asUnix(v interface{}) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
