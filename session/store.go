package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/MrEthical07/netapi/security"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session does not exist or has expired.
var ErrSessionNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionExpired is returned by Save for a session whose absolute lifetime has
// elapsed.
var ErrSessionExpired = errors.New("session expired")

const minSlidingTTL = time.Second

// Store persists sessions between requests.
type Store interface {
	// Load returns the session with id, or [ErrSessionNotFound].
	Load(ctx context.Context, id string) (*Session, error)
	// Save persists s for at most ttl, never past its absolute expiry.
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	// Delete removes the session with id. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

const saveSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
if existed == 0 then
  redis.call("INCR", KEYS[2])
end
return existed
`

var saveSessionLua = redis.NewScript(saveSessionScript)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  local count = tonumber(redis.call("GET", KEYS[2]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[2])
  elseif count == 1 then
    redis.call("DEL", KEYS[2])
  end
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// RedisOptions configures a [RedisStore].
type RedisOptions struct {
	// Prefix namespaces session keys. Defaults to "ns".
	Prefix string
	// Sliding extends the key TTL on every load.
	Sliding bool
	// IdleTTL is the sliding window applied on load.
	IdleTTL time.Duration
	// JitterRange randomizes the sliding TTL by ±JitterRange when positive.
	JitterRange time.Duration
}

// RedisStore is a Redis-backed [Store] with sliding expiration bounded by the
// session's absolute expiry.
type RedisStore struct {
	redis redis.UniversalClient
	codec security.ProfileCodec
	opts  RedisOptions
}

// NewRedisStore creates a [RedisStore]. codec encodes attached profiles; it may be
// nil when no operation attaches profiles.
func NewRedisStore(client redis.UniversalClient, codec security.ProfileCodec, opts RedisOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = "ns"
	}
	return &RedisStore{redis: client, codec: codec, opts: opts}
}

func (s *RedisStore) key(id string) string {
	return s.opts.Prefix + ":" + id
}

func (s *RedisStore) countKey() string {
	return s.opts.Prefix + ":count"
}

// Load implements [Store].
//
//	Performance: 1 Redis GET, plus 1 PEXPIRE with sliding expiration.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	key := s.key(id)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data, s.codec)
	if err != nil {
		return nil, err
	}
	sess.ID = id

	now := time.Now()
	remaining := time.Unix(sess.ExpiresAt, 0).Sub(now)
	if remaining <= 0 {
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	if s.opts.Sliding && s.opts.IdleTTL > 0 {
		nextTTL, err := s.nextSlidingTTL(remaining)
		if err != nil {
			return nil, err
		}
		if err := s.redis.PExpire(ctx, key, nextTTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sess, nil
}

// Save implements [Store].
//
//	Performance: 1 Lua EVALSHA (SET plus counter increment for new keys).
func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	ttl = boundTTL(sess, ttl, time.Now())
	if ttl <= 0 {
		return ErrSessionExpired
	}

	data, err := Encode(sess, s.codec)
	if err != nil {
		return err
	}

	err = saveSessionLua.Run(ctx, s.redis,
		[]string{s.key(sess.ID), s.countKey()},
		data, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess.markSaved()
	return nil
}

// Delete implements [Store].
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id), s.countKey()}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// EstimateActiveSessions returns the saved-session counter. Sessions that expire
// in Redis without an explicit Delete are not subtracted, so the value is an upper
// bound.
func (s *RedisStore) EstimateActiveSessions(ctx context.Context) (int, error) {
	n, err := s.redis.Get(ctx, s.countKey()).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *RedisStore) nextSlidingTTL(remainingAbsolute time.Duration) (time.Duration, error) {
	nextTTL := s.opts.IdleTTL

	if s.opts.JitterRange > 0 {
		jitter, err := randomJitter(s.opts.JitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if nextTTL > remainingAbsolute {
		nextTTL = remainingAbsolute
	}

	minTTL := minSlidingTTL
	if remainingAbsolute < minTTL {
		minTTL = remainingAbsolute
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}

	return nextTTL, nil
}

// boundTTL caps ttl at the session's remaining absolute lifetime.
func boundTTL(sess *Session, ttl time.Duration, now time.Time) time.Duration {
	remaining := time.Unix(sess.ExpiresAt, 0).Sub(now)
	if ttl <= 0 || ttl > remaining {
		return remaining
	}
	return ttl
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}
