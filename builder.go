package netapi

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/netapi/converter"
	"github.com/MrEthical07/netapi/internal/rate"
	"github.com/MrEthical07/netapi/jwt"
	"github.com/MrEthical07/netapi/registry"
	"github.com/MrEthical07/netapi/security"
	"github.com/MrEthical07/netapi/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder collects the engine's collaborators. It is used once: Build freezes
// the registries it was given and returns an immutable [Engine].
type Builder struct {
	config Config
	redis  redis.UniversalClient

	services    []registry.Definition
	converters  *converter.Registry
	store       session.Store
	policy      *security.Policy
	codec       security.ProfileCodec
	profileData func() any
	validator   Validator
	logger      *zap.Logger
	auditSink   AuditSink

	built bool
}

// New returns a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions and the login throttle.
// Without one, sessions live in process memory and throttling is off.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithServices adds service definitions to the operation registry.
func (b *Builder) WithServices(defs ...registry.Definition) *Builder {
	b.services = append(b.services, defs...)
	return b
}

// WithConverters replaces the default converter registry.
func (b *Builder) WithConverters(r *converter.Registry) *Builder {
	b.converters = r
	return b
}

// WithSessionStore overrides the session store derived from WithRedis.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithPolicy overrides the policy built from Config.Security.Groups.
func (b *Builder) WithPolicy(p *security.Policy) *Builder {
	b.policy = p
	return b
}

// WithProfileCodec sets the codec persisting custom [security.Profile]
// implementations. The default codec only handles [security.BasicProfile].
func (b *Builder) WithProfileCodec(c security.ProfileCodec) *Builder {
	b.codec = c
	return b
}

// WithProfileData sets the constructor for the session data carried by
// BasicProfile, used when decoding stored sessions.
func (b *Builder) WithProfileData(newData func() any) *Builder {
	b.profileData = newData
	return b
}

// WithValidator replaces the default [StructValidator].
func (b *Builder) WithValidator(v Validator) *Builder {
	b.validator = v
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the dispatch latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, freezes every registry, and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(b.services) == 0 {
		return nil, fmt.Errorf("%w: no services registered", ErrEngineNotReady)
	}

	// -------- OPERATION REGISTRY --------
	services := registry.New()
	if err := services.Register(b.services...); err != nil {
		return nil, err
	}
	services.Freeze()

	// -------- CONVERTERS --------
	converters := b.converters
	if converters == nil {
		converters = converter.NewDefaultRegistry()
	}
	if !converters.Frozen() {
		if err := converters.SetDefaults(cfg.Query.DefaultInput, cfg.Query.DefaultOutput); err != nil {
			return nil, err
		}
		if err := converters.Freeze(); err != nil {
			return nil, err
		}
	}

	// -------- SECURITY POLICY --------
	policy := b.policy
	if policy == nil && len(cfg.Security.Groups) > 0 {
		p, err := security.NewPolicy(cfg.Security.PermissionBits, cfg.Security.Groups)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	codec := b.codec
	if codec == nil && policy != nil {
		bc := security.NewBasicCodec(policy)
		bc.NewData = b.profileData
		codec = bc
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil {
		if b.redis != nil {
			idle := cfg.Session.IdleTTL
			jitter := cfg.Session.JitterRange
			if !cfg.Session.JitterEnabled {
				jitter = 0
			}
			store = session.NewRedisStore(b.redis, codec, session.RedisOptions{
				Prefix:      cfg.Session.RedisPrefix,
				Sliding:     cfg.Session.SlidingExpiration,
				IdleTTL:     idle,
				JitterRange: jitter,
			})
		} else {
			store = session.NewMemoryStore(codec, session.MemoryOptions{
				Sliding: cfg.Session.SlidingExpiration,
				IdleTTL: cfg.Session.IdleTTL,
			})
		}
	}

	tokens, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.AbsoluteSessionLifetime,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.signingKey()),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	v := b.validator
	if v == nil {
		v = NewStructValidator()
	}

	engine := &Engine{
		config:     cfg,
		services:   services,
		converters: converters,
		sessions:   store,
		policy:     policy,
		tokens:     tokens,
		validator:  v,
		logger:     logger.Named("netapi"),
		metrics:    NewMetrics(cfg.Metrics),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		redis:      b.redis,
	}

	if b.redis != nil && cfg.Security.EnableThrottle {
		engine.throttle = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Session.RedisPrefix + ":login",
			MaxLoginFailures: cfg.Security.MaxLoginFailures,
			LoginCooldown:    cfg.Security.LoginCooldown,
		})
	}

	b.built = true

	return engine, nil
}

var errNoRedis = errors.New("redis client not configured")
