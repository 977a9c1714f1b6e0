package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/squeezyhq/authcore/password"
	"github.com/squeezyhq/authcore/session"
	"github.com/squeezyhq/authcore/token"
	"github.com/squeezyhq/authcore/totp"
)

// Builder assembles an [Engine]. A builder is single-use: Build returns an
// error when called twice.
type Builder struct {
	config Config
	redis  *redis.Client

	users     UserStore
	hasher    PasswordHasher
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore injects the credential store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithHasher overrides the default argon2id password hasher.
func (b *Builder) WithHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. The returned engine
// is safe for concurrent use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		users:    b.users,
		sessions: session.NewStore(b.redis, cfg.Session.RedisPrefix),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
		totp: totp.New(totp.Config{
			Issuer: cfg.TOTP.Issuer,
			Digits: cfg.TOTP.Digits,
			Period: cfg.TOTP.Period,
			Skew:   cfg.TOTP.Skew,
		}),
	}

	if b.hasher != nil {
		engine.hasher = b.hasher
	} else {
		ph, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		engine.hasher = ph
	}

	tm, err := token.NewManager(token.Config{
		AccessTTL:         cfg.JWT.AccessTTL,
		RefreshTTL:        cfg.JWT.RefreshTTL,
		SigningMethod:     token.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:        cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:         cloneBytes(cfg.JWT.PublicKey),
		RefreshPrivateKey: cloneBytes(cfg.JWT.RefreshPrivateKey),
		RefreshPublicKey:  cloneBytes(cfg.JWT.RefreshPublicKey),
		Issuer:            cfg.JWT.Issuer,
		Leeway:            cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	b.built = true

	return engine, nil
}
