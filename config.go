package netapi

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config holds every tunable of the dispatch engine.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable. [Builder.Build] works on a private copy.
type Config struct {
	// ServicePath is the namespace prefix qualifying short owner names taken
	// from the request path ("shop" turns /api/Cart/add into shop.Cart).
	ServicePath string `yaml:"service_path" env:"NETAPI_SERVICE_PATH"`
	// MountPath is the URL prefix the dispatcher is mounted under by Routes.
	MountPath string `yaml:"mount_path" env:"NETAPI_MOUNT_PATH"`

	Query    QueryConfig    `yaml:"query"`
	Params   ParamsConfig   `yaml:"params"`
	Session  SessionConfig  `yaml:"session"`
	Cookie   CookieConfig   `yaml:"cookie"`
	JWT      JWTConfig      `yaml:"jwt"`
	Security SecurityConfig `yaml:"security"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

/*
====================================
QUERY CONFIG
====================================
*/

// QueryConfig names the query parameters selecting request and response formats.
type QueryConfig struct {
	InputParam    string `yaml:"input_param" env:"NETAPI_QUERY_INPUT_PARAM"`
	OutputParam   string `yaml:"output_param" env:"NETAPI_QUERY_OUTPUT_PARAM"`
	MaxFormatLen  int    `yaml:"max_format_len" env:"NETAPI_QUERY_MAX_FORMAT_LEN"`
	DefaultInput  string `yaml:"default_input" env:"NETAPI_QUERY_DEFAULT_INPUT"`
	DefaultOutput string `yaml:"default_output" env:"NETAPI_QUERY_DEFAULT_OUTPUT"`
}

/*
====================================
PARAMS CONFIG
====================================
*/

// ParamsConfig bounds request parsing.
type ParamsConfig struct {
	MaxMemory   int64 `yaml:"max_memory" env:"NETAPI_PARAMS_MAX_MEMORY"`
	MaxBodySize int64 `yaml:"max_body_size" env:"NETAPI_PARAMS_MAX_BODY_SIZE"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session persistence.
type SessionConfig struct {
	RedisPrefix             string        `yaml:"redis_prefix" env:"NETAPI_SESSION_REDIS_PREFIX"`
	SlidingExpiration       bool          `yaml:"sliding_expiration" env:"NETAPI_SESSION_SLIDING"`
	IdleTTL                 time.Duration `yaml:"idle_ttl" env:"NETAPI_SESSION_IDLE_TTL"`
	AbsoluteSessionLifetime time.Duration `yaml:"absolute_lifetime" env:"NETAPI_SESSION_ABSOLUTE_LIFETIME"`
	JitterEnabled           bool          `yaml:"jitter_enabled" env:"NETAPI_SESSION_JITTER_ENABLED"`
	JitterRange             time.Duration `yaml:"jitter_range" env:"NETAPI_SESSION_JITTER_RANGE"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the session cookie carrying the signed session token.
type CookieConfig struct {
	Name     string        `yaml:"name" env:"NETAPI_COOKIE_NAME"`
	Path     string        `yaml:"path" env:"NETAPI_COOKIE_PATH"`
	Domain   string        `yaml:"domain" env:"NETAPI_COOKIE_DOMAIN"`
	Secure   bool          `yaml:"secure" env:"NETAPI_COOKIE_SECURE"`
	HTTPOnly bool          `yaml:"http_only" env:"NETAPI_COOKIE_HTTP_ONLY"`
	SameSite http.SameSite `yaml:"same_site"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures signing of the session token.
type JWTConfig struct {
	SigningMethod string        `yaml:"signing_method" env:"NETAPI_JWT_SIGNING_METHOD"` // "ed25519" or "hs256" (default)
	Secret        string        `yaml:"-" env:"NETAPI_JWT_SECRET"`
	PrivateKey    []byte        `yaml:"-"`
	PublicKey     []byte        `yaml:"-"`
	Issuer        string        `yaml:"issuer" env:"NETAPI_JWT_ISSUER"`
	Audience      string        `yaml:"audience" env:"NETAPI_JWT_AUDIENCE"`
	Leeway        time.Duration `yaml:"leeway" env:"NETAPI_JWT_LEEWAY"`
	KeyID         string        `yaml:"key_id" env:"NETAPI_JWT_KEY_ID"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the permission policy and login throttling.
type SecurityConfig struct {
	// Groups maps a user group to the operations it may call, written as
	// qualified "owner.operation" names. "*" grants everything.
	Groups           map[string][]string `yaml:"groups"`
	PermissionBits   int                 `yaml:"permission_bits" env:"NETAPI_SECURITY_PERMISSION_BITS"`
	EnableThrottle   bool                `yaml:"enable_throttle" env:"NETAPI_SECURITY_ENABLE_THROTTLE"`
	MaxLoginFailures int                 `yaml:"max_login_failures" env:"NETAPI_SECURITY_MAX_LOGIN_FAILURES"`
	LoginCooldown    time.Duration       `yaml:"login_cooldown" env:"NETAPI_SECURITY_LOGIN_COOLDOWN"`
	ProductionMode   bool                `yaml:"production_mode" env:"NETAPI_SECURITY_PRODUCTION_MODE"`
}

/*
====================================
AUDIT, METRICS, LOG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"NETAPI_AUDIT_ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"NETAPI_AUDIT_BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"NETAPI_AUDIT_DROP_IF_FULL"`
}

// MetricsConfig controls in-process dispatch metrics.
type MetricsConfig struct {
	Enabled                 bool   `yaml:"enabled" env:"NETAPI_METRICS_ENABLED"`
	EnableLatencyHistograms bool   `yaml:"latency_histograms" env:"NETAPI_METRICS_LATENCY_HISTOGRAMS"`
	Path                    string `yaml:"path" env:"NETAPI_METRICS_PATH"`
}

// LogConfig selects the logger built by the demo host.
type LogConfig struct {
	Level       string `yaml:"level" env:"NETAPI_LOG_LEVEL"`
	Development bool   `yaml:"development" env:"NETAPI_LOG_DEVELOPMENT"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration usable for local development.
// A JWT secret must still be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		MountPath: "/api",
		Query: QueryConfig{
			InputParam:    "inputType",
			OutputParam:   "outputType",
			MaxFormatLen:  32,
			DefaultInput:  "properties",
			DefaultOutput: "json",
		},
		Params: ParamsConfig{
			MaxMemory:   32 << 20,
			MaxBodySize: 64 << 20,
		},
		Session: SessionConfig{
			RedisPrefix:             "ns",
			SlidingExpiration:       true,
			IdleTTL:                 30 * time.Minute,
			AbsoluteSessionLifetime: 24 * time.Hour,
			JitterEnabled:           true,
			JitterRange:             30 * time.Second,
		},
		Cookie: CookieConfig{
			Name:     "NETAPISESSION",
			Path:     "/",
			HTTPOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "netapi",
			Leeway:        30 * time.Second,
		},
		Security: SecurityConfig{
			PermissionBits:   64,
			EnableThrottle:   true,
			MaxLoginFailures: 5,
			LoginCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
			Path:                    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Security.Groups != nil {
		out.Security.Groups = make(map[string][]string, len(cfg.Security.Groups))
		for group, grants := range cfg.Security.Groups {
			out.Security.Groups[group] = append([]string(nil), grants...)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// signingKey returns the configured private key, falling back to Secret for hs256.
func (c *Config) signingKey() []byte {
	if len(c.JWT.PrivateKey) == 0 && c.JWT.Secret != "" {
		return []byte(c.JWT.Secret)
	}
	return c.JWT.PrivateKey
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports every configuration problem at once. The returned error
// combines one error per problem; use multierr.Errors to list them.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if strings.Contains(c.ServicePath, "/") || strings.HasPrefix(c.ServicePath, ".") || strings.HasSuffix(c.ServicePath, ".") {
		add("ServicePath %q must be a dot-separated namespace", c.ServicePath)
	}
	if c.MountPath == "" || !strings.HasPrefix(c.MountPath, "/") {
		add("MountPath must start with '/'")
	}

	// Query
	if c.Query.InputParam == "" || c.Query.OutputParam == "" {
		add("Query InputParam and OutputParam must be set")
	}
	if c.Query.InputParam == c.Query.OutputParam {
		add("Query InputParam and OutputParam must differ")
	}
	if c.Query.MaxFormatLen <= 0 {
		add("Query MaxFormatLen must be > 0")
	}
	if c.Query.DefaultInput == "" || c.Query.DefaultOutput == "" {
		add("Query default formats must be set")
	}

	// Params
	if c.Params.MaxMemory <= 0 {
		add("Params MaxMemory must be > 0")
	}
	if c.Params.MaxBodySize <= 0 {
		add("Params MaxBodySize must be > 0")
	}

	// Session
	if c.Session.AbsoluteSessionLifetime <= 0 {
		add("Session AbsoluteSessionLifetime must be > 0")
	}
	if c.Session.IdleTTL <= 0 {
		add("Session IdleTTL must be > 0")
	}
	if c.Session.IdleTTL > c.Session.AbsoluteSessionLifetime {
		add("Session IdleTTL must not exceed AbsoluteSessionLifetime")
	}
	if c.Session.JitterRange < 0 {
		add("Session JitterRange must be >= 0")
	}
	if c.Session.JitterRange > time.Duration((math.MaxInt64-1)/2) {
		add("Session JitterRange is too large")
	}
	if c.Session.JitterEnabled && c.Session.JitterRange <= 0 {
		add("Session JitterRange must be > 0 when JitterEnabled is true")
	}

	// Cookie
	if c.Cookie.Name == "" {
		add("Cookie Name must be set")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		add("Cookie SameSite=None requires Secure")
	}

	// JWT
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.signingKey()) < 32 {
			add("hs256 requires a key of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			add("ed25519 requires PrivateKey")
		}
	default:
		add("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		add("JWT Leeway must be between 0 and 2m")
	}

	// Security
	switch c.Security.PermissionBits {
	case 64, 128, 256, 512:
	default:
		add("Security PermissionBits must be 64, 128, 256 or 512")
	}
	if c.Security.EnableThrottle {
		if c.Security.MaxLoginFailures <= 0 {
			add("Security MaxLoginFailures must be > 0 when throttling is enabled")
		}
		if c.Security.LoginCooldown <= 0 {
			add("Security LoginCooldown must be > 0 when throttling is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		add("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		add("Metrics latency histograms require Metrics Enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("Metrics Path must start with '/'")
	}

	if c.Security.ProductionMode {
		if !c.Cookie.Secure {
			add("ProductionMode requires Secure cookies")
		}
		if !c.Cookie.HTTPOnly {
			add("ProductionMode requires HttpOnly cookies")
		}
		if !c.Security.EnableThrottle {
			add("ProductionMode requires login throttling")
		}
	}

	return errs
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration observation.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list returned by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports valid but risky settings.
func (c *Config) Lint() LintResult {
	var out LintResult
	warn := func(code, msg string) {
		out = append(out, LintWarning{Code: code, Message: msg})
	}

	if !c.Cookie.Secure {
		warn("cookie_insecure", "session cookie is sent over plain HTTP")
	}
	if !c.Security.EnableThrottle {
		warn("login_throttle_disabled", "failed login calls are not throttled")
	}
	if c.Session.AbsoluteSessionLifetime > 7*24*time.Hour {
		warn("session_lifetime_long", "absolute session lifetime exceeds 7 days")
	}
	if !c.Session.SlidingExpiration && c.Session.IdleTTL < c.Session.AbsoluteSessionLifetime {
		warn("idle_ttl_unused", "IdleTTL has no effect without sliding expiration")
	}
	if c.Params.MaxBodySize > 512<<20 {
		warn("body_limit_large", "request bodies above 512 MiB are accepted")
	}
	if c.JWT.Leeway > time.Minute {
		warn("leeway_large", "JWT leeway exceeds one minute")
	}
	if len(c.Security.Groups) == 0 {
		warn("no_groups", "no permission groups configured; secured operations are unreachable")
	}
	return out
}
