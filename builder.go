package authgate

import (
	"errors"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
	"github.com/altairpay/authgate/session"
	"github.com/altairpay/authgate/statusmap"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a Gateway. Configure it, then call Build exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	instruments InstrumentStore
	provider    payerauth.Client
	policies    []policy.PartnerPolicy
	resolver    PolicyResolver
	auditSink   AuditSink

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration. The config is cloned; later changes
// to cfg do not affect the builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing session persistence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithInstrumentStore sets the instrument-catalog client.
func (b *Builder) WithInstrumentStore(store InstrumentStore) *Builder {
	b.instruments = store
	return b
}

// WithProvider sets the authentication-provider client.
func (b *Builder) WithProvider(client payerauth.Client) *Builder {
	b.provider = client
	return b
}

// WithPartnerPolicies sets the partner-policy document.
func (b *Builder) WithPartnerPolicies(policies ...policy.PartnerPolicy) *Builder {
	b.policies = policies
	return b
}

// WithPolicyResolver sets the fallback flight resolver used when a request
// does not carry its own snapshot.
func (b *Builder) WithPolicyResolver(r PolicyResolver) *Builder {
	b.resolver = r
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and dependencies and returns the Gateway.
func (b *Builder) Build() (*Gateway, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.instruments == nil {
		return nil, errors.New("instrument store required")
	}
	if b.provider == nil {
		return nil, errors.New("authentication provider client required")
	}
	if err := validateConfig(&b.config); err != nil {
		return nil, err
	}
	b.built = true

	g := &Gateway{
		config:        b.config,
		sessions:      session.NewStore(b.redis, b.config.Session.RedisPrefix, b.config.Session.TTL),
		instruments:   b.instruments,
		provider:      b.provider,
		policies:      policy.NewSet(b.policies...),
		resolver:      b.resolver,
		authOverrides: statusmap.NewTable(b.config.StatusMap.AuthenticationOverrides...),
		compOverrides: statusmap.NewTable(b.config.StatusMap.CompletionOverrides...),
		attempts:      newAttemptLimiter(b.redis, b.config.Session.RedisPrefix, b.config.Challenge.MaxAuthenticateAttempts, b.config.Session.TTL),
		audit:         newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:       newMetrics(b.config.Metrics),
	}
	return g, nil
}
