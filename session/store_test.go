package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/netapi/security"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T, opts RedisOptions) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, testCodec(t), opts), mr, rdb
}

func testCodec(t *testing.T) *security.BasicCodec {
	t.Helper()
	policy, err := security.NewPolicy(64, map[string][]string{
		"member": {"demo.Notes.list"},
	})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return security.NewBasicCodec(policy)
}

func TestRedisStoreSaveLoadWithProfile(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, RedisOptions{})
	ctx := context.Background()

	profile, err := store.codec.(*security.BasicCodec).Policy.Profile("member")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	profile.SetSessionData("alice")

	sess := New(time.Hour)
	sess.Attach(profile)
	sess.Set("locale", "en")

	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if sess.IsNew() || sess.Dirty() {
		t.Fatal("save must clear new/dirty state")
	}

	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != sess.ID {
		t.Fatalf("expected id %q, got %q", sess.ID, loaded.ID)
	}
	if loaded.Profile() == nil || loaded.Profile().IsAllowed("demo.Notes", "list") == nil {
		t.Fatal("loaded session lost profile grants")
	}
	if got := loaded.Profile().SessionData(); got != "alice" {
		t.Fatalf("unexpected session data %#v", got)
	}
	if v, ok := loaded.Get("locale"); !ok || v != "en" {
		t.Fatalf("unexpected value %q %v", v, ok)
	}
	if loaded.IsNew() || loaded.Dirty() {
		t.Fatal("loaded session must be clean")
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, RedisOptions{})
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreDeleteIdempotentCounter(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, RedisOptions{})
	ctx := context.Background()

	sess := New(time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	sess.Set("k", "v")
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("resave: %v", err)
	}

	n, err := store.EstimateActiveSessions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 active session, got %d (%v)", n, err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Delete(ctx, sess.ID); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}

	n, err = store.EstimateActiveSessions(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 active sessions, got %d (%v)", n, err)
	}
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestRedisStoreSlidingTTLBoundedByAbsoluteExpiry(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, RedisOptions{Sliding: true, IdleTTL: 10 * time.Minute})
	ctx := context.Background()

	sess := New(time.Hour)
	if err := store.Save(ctx, sess, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(store.key(sess.ID)); ttl > time.Minute {
		t.Fatalf("expected ttl <= 1m after save, got %v", ttl)
	}

	if _, err := store.Load(ctx, sess.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	ttl := mr.TTL(store.key(sess.ID))
	if ttl <= time.Minute || ttl > 10*time.Minute {
		t.Fatalf("expected sliding ttl in (1m, 10m], got %v", ttl)
	}
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, RedisOptions{})
	sess := New(time.Hour)
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()

	if err := store.Save(context.Background(), sess, time.Hour); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, RedisOptions{})
	mr.Close()

	if _, err := store.Load(context.Background(), "sid"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable from ping, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(nil, MemoryOptions{})
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess := New(time.Hour)
	sess.Set("cart", "3")
	if err := store.Save(ctx, sess, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded.Set("cart", "4")
	if again, _ := store.Load(ctx, sess.ID); again != nil {
		if v, _ := again.Get("cart"); v != "3" {
			t.Fatalf("stored session aliased loaded copy: %q", v)
		}
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry removed, got %d", store.Len())
	}
}

func TestMemoryStoreRequiresCodecForProfiles(t *testing.T) {
	store := NewMemoryStore(nil, MemoryOptions{})
	policy, _ := security.NewPolicy(64, map[string][]string{"admin": {security.RootGrant}})
	profile, _ := policy.Profile("admin")

	sess := New(time.Hour)
	sess.Attach(profile)
	if err := store.Save(context.Background(), sess, 0); !errors.Is(err, ErrNoProfileCodec) {
		t.Fatalf("expected ErrNoProfileCodec, got %v", err)
	}
}

func TestMemoryStoreSlidingExpiry(t *testing.T) {
	store := NewMemoryStore(nil, MemoryOptions{Sliding: true, IdleTTL: 30 * time.Minute})
	start := time.Now()
	now := start
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess := New(time.Hour)
	if err := store.Save(ctx, sess, 30*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, at := range []time.Duration{20 * time.Minute, 40 * time.Minute, 55 * time.Minute} {
		now = start.Add(at)
		if _, err := store.Load(ctx, sess.ID); err != nil {
			t.Fatalf("read at %v must keep the session alive: %v", at, err)
		}
	}

	now = start.Add(61 * time.Minute)
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("sliding must stop at the absolute lifetime, got %v", err)
	}
}

func TestMemoryStoreFixedExpiryWithoutSliding(t *testing.T) {
	store := NewMemoryStore(nil, MemoryOptions{IdleTTL: 30 * time.Minute})
	start := time.Now()
	now := start
	store.now = func() time.Time { return now }
	ctx := context.Background()

	sess := New(time.Hour)
	if err := store.Save(ctx, sess, 30*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = start.Add(20 * time.Minute)
	if _, err := store.Load(ctx, sess.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	now = start.Add(40 * time.Minute)
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry without sliding, got %v", err)
	}
}
