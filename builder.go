package credgate

import (
	"errors"
	"time"

	"github.com/kyralis/credgate/internal/keyed"
	"github.com/kyralis/credgate/jwt"
	"github.com/kyralis/credgate/password"
	"github.com/kyralis/credgate/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  *redis.Client

	creds  CredentialStore
	roles  RoleStore
	hasher PasswordHasher

	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the session store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user-record store.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithRoleStore sets the role-label store.
func (b *Builder) WithRoleStore(store RoleStore) *Builder {
	b.roles = store
	return b
}

// WithHasher overrides the bundled bcrypt hasher.
func (b *Builder) WithHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets the sink receiving audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.creds == nil {
		return nil, errors.New("credential store required")
	}
	if b.roles == nil {
		return nil, errors.New("role store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		creds:        b.creds,
		roles:        b.roles,
		sessionStore: session.NewStore(b.redis, cfg.Session.RedisPrefix, b.clock),
		userLocks:    keyed.NewMutex(),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		now:          b.clock,
	}

	if b.hasher != nil {
		engine.hasher = b.hasher
	} else {
		h, err := password.NewBcrypt(password.Config{Cost: cfg.Password.Cost})
		if err != nil {
			return nil, err
		}
		engine.hasher = h
	}

	tm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.Session.Lifetime,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = tm

	b.built = true

	return engine, nil
}
