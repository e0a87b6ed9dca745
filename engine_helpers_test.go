package netapi

import (
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/netapi/registry"
	"github.com/MrEthical07/netapi/security"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type item struct {
	Name string   `json:"name" xml:"name" yaml:"name" toml:"name" codec:"name" param:"name"`
	Qty  int      `json:"qty" xml:"qty" yaml:"qty" toml:"qty" codec:"qty" param:"qty"`
	Tags []string `json:"tags" xml:"tags" yaml:"tags" toml:"tags" codec:"tags" param:"tag"`
}

type newItem struct {
	Name string `param:"name" validate:"required,min=3"`
	Qty  int    `param:"qty" validate:"gte=1"`
}

type quantity struct {
	N int `param:"n"`
}

func (q quantity) Validate() error {
	if q.N < 0 {
		return errors.New("n must not be negative")
	}
	return nil
}

type credentials struct {
	User     string `param:"user"`
	Password string `param:"password"`
}

// tally counts handler constructions and operation calls across requests.
type tally struct {
	constructed atomic.Int64
	calls       atomic.Int64
	lastReport  atomic.Pointer[trackedReader]
}

type catalog struct{ p *tally }

func (c *catalog) Echo(in item) (item, error) {
	c.p.calls.Add(1)
	return in, nil
}

func (c *catalog) Hidden(in item) (item, error) {
	c.p.calls.Add(1)
	return in, nil
}

func (c *catalog) Secret() (string, error) {
	c.p.calls.Add(1)
	return "classified", nil
}

func (c *catalog) Fail() (string, error) {
	c.p.calls.Add(1)
	return "", errors.New("warehouse offline")
}

func (c *catalog) Explode() (string, error) {
	c.p.calls.Add(1)
	panic("boom")
}

func (c *catalog) Create(in newItem) (string, error) {
	c.p.calls.Add(1)
	return in.Name, nil
}

func (c *catalog) Count(q quantity) (int, error) {
	c.p.calls.Add(1)
	return q.N, nil
}

func (c *catalog) Report() (*Download, error) {
	c.p.calls.Add(1)
	r := &trackedReader{Reader: strings.NewReader("sku,qty\nA-1,3\n")}
	c.p.lastReport.Store(r)
	return &Download{Reader: r, Name: "stock.csv", MIMEType: "text/csv", Encoding: "utf-8"}, nil
}

func (c *catalog) Attributes() (map[string]any, error) {
	c.p.calls.Add(1)
	return map[string]any{"colour": "red"}, nil
}

func (c *catalog) BrokenReport() (Downloadable, error) {
	c.p.calls.Add(1)
	return unopenable{&Download{Name: "broken.csv"}}, nil
}

func (c *catalog) TruncatedReport() (*Download, error) {
	c.p.calls.Add(1)
	return &Download{Reader: io.MultiReader(strings.NewReader("sku,qty\n"), faultyReader{}), Name: "cut.csv", MIMEType: "text/csv"}, nil
}

// unopenable panics when the engine opens its stream.
type unopenable struct{ *Download }

func (unopenable) Stream() (io.Reader, error) { panic("disk detached") }

// faultyReader panics after the response has started.
type faultyReader struct{}

func (faultyReader) Read([]byte) (int, error) { panic("disk detached") }

type trackedReader struct {
	io.Reader
	closed atomic.Bool
}

func (r *trackedReader) Close() error {
	r.closed.Store(true)
	return nil
}

type auth struct {
	p  *tally
	cc registry.CallContext
}

func (a *auth) Login(c credentials) (*security.BasicProfile, error) {
	a.p.calls.Add(1)
	if c.Password != "pw" {
		return nil, errors.New("invalid credentials")
	}
	group := "staff"
	if c.User == "root" {
		group = "admin"
	}
	return a.cc.Policy.Profile(group)
}

func (a *auth) NilLogin() (*security.BasicProfile, error) {
	a.p.calls.Add(1)
	return nil, nil
}

func (a *auth) BadLogin() (string, error) {
	a.p.calls.Add(1)
	return "not a profile", nil
}

func (a *auth) Logout() error {
	a.p.calls.Add(1)
	return nil
}

func (a *auth) Whoami() ([]string, error) {
	a.p.calls.Add(1)
	if a.cc.Profile == nil {
		return nil, nil
	}
	return a.cc.Profile.UserGroups(), nil
}

func (a *auth) Remember(q quantity) error {
	a.cc.Session.Set("remembered", "yes")
	return nil
}

func testServices(p *tally) []registry.Definition {
	cat := registry.NewService("test.Catalog", func(registry.CallContext) (*catalog, error) {
		p.constructed.Add(1)
		return &catalog{p: p}, nil
	})
	registry.Method1(cat, "echo", (*catalog).Echo, registry.Exposed())
	registry.Method1(cat, "hidden", (*catalog).Hidden)
	registry.Method0(cat, "secret", (*catalog).Secret, registry.Exposed(), registry.Secured())
	registry.Method0(cat, "fail", (*catalog).Fail, registry.Exposed())
	registry.Method0(cat, "explode", (*catalog).Explode, registry.Exposed())
	registry.Method1(cat, "create", (*catalog).Create, registry.Exposed(), registry.Validated())
	registry.Method1(cat, "count", (*catalog).Count, registry.Exposed())
	registry.Method0(cat, "report", (*catalog).Report, registry.Exposed())
	registry.Method0(cat, "attributes", (*catalog).Attributes, registry.Exposed())
	registry.Method0(cat, "brokenReport", (*catalog).BrokenReport, registry.Exposed())
	registry.Method0(cat, "truncatedReport", (*catalog).TruncatedReport, registry.Exposed())

	au := registry.NewService("test.Auth", func(cc registry.CallContext) (*auth, error) {
		p.constructed.Add(1)
		return &auth{p: p, cc: cc}, nil
	})
	registry.Method1(au, "login", (*auth).Login, registry.Exposed(), registry.Login())
	registry.Method0(au, "badLogin", (*auth).BadLogin, registry.Exposed(), registry.Login())
	registry.Method0(au, "nilLogin", (*auth).NilLogin, registry.Exposed(), registry.Login())
	registry.Action0(au, "logout", (*auth).Logout, registry.Exposed(), registry.Logout())
	registry.Method0(au, "whoami", (*auth).Whoami, registry.Exposed())
	registry.Action1(au, "remember", (*auth).Remember, registry.Exposed())

	broken := registry.NewService("test.Broken", func(registry.CallContext) (*catalog, error) {
		return nil, errors.New("database unreachable")
	})
	registry.Method0(broken, "secret", (*catalog).Secret, registry.Exposed())

	return []registry.Definition{cat, au, broken}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ServicePath = "test"
	cfg.JWT.Secret = testSecret
	cfg.Security.Groups = map[string][]string{
		"staff": {"test.Catalog.secret"},
		"admin": {security.RootGrant},
	}
	cfg.Security.MaxLoginFailures = 2
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	tally  *tally
	server *httptest.Server
	client *http.Client
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEnv(t *testing.T, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p := &tally{}
	cfg := testConfig()
	b := New().WithRedis(rdb).WithServices(testServices(p)...)
	if mutate != nil {
		mutate(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(engine.Routes(withTestClientIP))
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{
		engine: engine,
		tally:  p,
		server: srv,
		client: &http.Client{Jar: jar, Timeout: 5 * time.Second},
		mr:     mr,
		rdb:    rdb,
	}
}

func withTestClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), "192.0.2.10")))
	})
}

type reply struct {
	status int
	header http.Header
	body   []byte
}

func (env *testEnv) get(t *testing.T, pathAndQuery string) reply {
	t.Helper()
	return env.do(t, http.MethodGet, pathAndQuery, "", nil)
}

func (env *testEnv) do(t *testing.T, method, pathAndQuery, contentType string, body io.Reader) reply {
	t.Helper()
	req, err := http.NewRequest(method, env.server.URL+pathAndQuery, body)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, pathAndQuery, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return reply{status: resp.StatusCode, header: resp.Header, body: data}
}
