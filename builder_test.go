package netapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/netapi/converter"
	"github.com/MrEthical07/netapi/registry"
	"github.com/tidwall/gjson"
)

func TestBuildRequiresServices(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = "short"
	if _, err := New().WithConfig(cfg).WithServices(testServices(&tally{})...).Build(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildOnlyOnce(t *testing.T) {
	b := New().WithConfig(testConfig()).WithServices(testServices(&tally{})...)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}

func TestBuildRejectsDuplicateServices(t *testing.T) {
	p := &tally{}
	defs := append(testServices(p), testServices(p)[0])
	if _, err := New().WithConfig(testConfig()).WithServices(defs...).Build(); !errors.Is(err, registry.ErrDuplicateService) {
		t.Fatalf("expected ErrDuplicateService, got %v", err)
	}
}

func TestBuildFreezesRegistries(t *testing.T) {
	engine, err := New().WithConfig(testConfig()).WithServices(testServices(&tally{})...).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if !engine.Converters().Frozen() {
		t.Fatal("converter registry must be frozen")
	}
	if err := engine.Converters().RegisterResponse(converter.Writer(converter.JSON)); !errors.Is(err, converter.ErrRegistryFrozen) {
		t.Fatalf("expected frozen converter registry, got %v", err)
	}
	if err := engine.Services().Register(registry.NewService[*catalog]("late.Service", nil)); !errors.Is(err, registry.ErrRegistryFrozen) {
		t.Fatalf("expected frozen operation registry, got %v", err)
	}
	if engine.Policy() == nil || engine.Policy().Permissions() != 1 {
		t.Fatalf("expected policy built from configured groups")
	}
}

func TestEngineWithoutRedisUsesMemorySessions(t *testing.T) {
	engine, err := New().WithConfig(testConfig()).WithServices(testServices(&tally{})...).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/Auth/login?user=ann&password=pw", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", rec.Code, rec.Body)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly {
		t.Fatalf("expected one HttpOnly session cookie, got %v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/Catalog/secret", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "dto").String() != "classified" {
		t.Fatalf("expected access through memory session, got %d: %s", rec.Code, rec.Body)
	}

	if _, err := engine.Ping(req.Context()); err == nil {
		t.Fatal("Ping must fail without redis")
	}
}

func TestConfigAccessorReturnsCopy(t *testing.T) {
	engine, err := New().WithConfig(testConfig()).WithServices(testServices(&tally{})...).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	cfg := engine.Config()
	cfg.Security.Groups["staff"][0] = "changed"
	if engine.Config().Security.Groups["staff"][0] != "test.Catalog.secret" {
		t.Fatal("Config must return a deep copy")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.Cookie.Secure = true
		cfg.Audit.Enabled = true
	})

	report := env.engine.SecurityReport()
	if report.SessionStore != "redis" || !report.LoginThrottleActive {
		t.Fatalf("expected redis sessions with an active throttle: %+v", report)
	}
	if !report.CookieSecure || !report.CookieHTTPOnly || report.CookieSameSite != "lax" {
		t.Fatalf("unexpected cookie posture: %+v", report)
	}
	if report.SigningAlgorithm != "hs256" || !report.AuditActive {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.RootGroups) != 1 || report.RootGroups[0] != "admin" {
		t.Fatalf("unexpected root groups %v", report.RootGroups)
	}
	if report.SecuredOperations != 1 || len(report.RootOnlyOperations) != 0 {
		t.Fatalf("test.Catalog.secret is granted to staff: %+v", report)
	}

	var nilEngine *Engine
	if got := nilEngine.SecurityReport(); got.SessionStore != "" {
		t.Fatalf("nil engine must return an empty report, got %+v", got)
	}
}
