// Command netapi-loadtest measures session store and dispatch throughput.
//
// The load and save phases drive session.RedisStore directly. The dispatch
// phase sends catalog and cart requests through a full engine over loopback HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	netapi "github.com/MrEthical07/netapi"
	"github.com/MrEthical07/netapi/examples/shop"
	"github.com/MrEthical07/netapi/password"
	"github.com/MrEthical07/netapi/security"
	"github.com/MrEthical07/netapi/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type sessionState struct {
	id string
	mu sync.Mutex
}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (load + save)")
		requests    = flag.Int("requests", 20000, "dispatch requests; 0 skips the dispatch phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *requests < 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	policy, err := security.NewPolicy(64, shop.Groups())
	if err != nil {
		fmt.Fprintf(os.Stderr, "policy: %v\n", err)
		os.Exit(1)
	}
	store := session.NewRedisStore(client, security.NewBasicCodec(policy), session.RedisOptions{
		Prefix:  *prefix,
		Sliding: true,
		IdleTTL: 30 * time.Minute,
	})

	profile, err := policy.Profile(shop.GroupCustomer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "profile: %v\n", err)
		os.Exit(1)
	}

	states := make([]sessionState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		sess := session.New(24 * time.Hour)
		if i%2 == 0 {
			sess.Attach(profile)
		}
		sess.Set("seq", "0")
		states[i] = sessionState{id: sess.ID}
		if err := store.Save(ctx, sess, 24*time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loadStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		_, err := store.Load(ctx, states[r.Intn(len(states))].id)
		return err
	})
	saveStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()
		sess, err := store.Load(ctx, state.id)
		if err != nil {
			return err
		}
		sess.Set("seq", strconv.Itoa(i))
		return store.Save(ctx, sess, 30*time.Minute)
	})

	fmt.Println("---- results ----")
	printStats("load", loadStats)
	printStats("save", saveStats)

	if *requests > 0 {
		dispatchStats, err := runDispatchPhase(client, *requests, *concurrency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dispatch phase: %v\n", err)
			os.Exit(1)
		}
		printStats("dispatch", dispatchStats)
	}
}

// runPhase calls op ops times from concurrency workers and records latency.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runDispatchPhase(client redis.UniversalClient, requests, concurrency int) (phaseStats, error) {
	hashCfg := password.DefaultConfig()
	hashCfg.Memory = 8 * 1024
	hashCfg.Time = 1
	hasher, err := password.NewArgon2(hashCfg)
	if err != nil {
		return phaseStats{}, err
	}
	dir, err := shop.NewDirectory(hasher)
	if err != nil {
		return phaseStats{}, err
	}

	cfg := netapi.DefaultConfig()
	cfg.ServicePath = shop.Namespace
	cfg.JWT.Secret = "loadtest-secret-0123456789abcdef!"
	cfg.Security.Groups = shop.Groups()
	cfg.Session.RedisPrefix = "ltd"
	cfg.Metrics.Enabled = true

	engine, err := netapi.New().
		WithConfig(cfg).
		WithRedis(client).
		WithServices(shop.Services(shop.SampleInventory(), dir)...).
		Build()
	if err != nil {
		return phaseStats{}, err
	}
	defer engine.Close()

	srv := httptest.NewServer(engine.Routes())
	defer srv.Close()

	// One cookie jar per worker so cart requests reuse a session.
	clients := make([]*http.Client, concurrency)
	for i := range clients {
		jar, _ := cookiejar.New(nil)
		clients[i] = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	paths := []string{
		"/api/Catalog/list?inStock=true",
		"/api/Catalog/get?sku=A-100&outputType=msgpack",
		"/api/Cart/add?sku=B-300&quantity=1",
		"/api/Cart/list?outputType=xml",
		"/api/Cart/clear",
	}

	var next int64
	stats := runPhase(requests, concurrency, 3571, func(r *rand.Rand, _ int) error {
		c := clients[int(atomic.AddInt64(&next, 1))%len(clients)]
		resp, err := c.Get(srv.URL + paths[r.Intn(len(paths))])
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	})

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine counters: %v\n", snap.Counters)
	return stats, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
