package authgate

import (
	"errors"
	"time"

	"github.com/altairpay/authgate/policy"
	"github.com/altairpay/authgate/statusmap"
)

// Config defines how the gateway decides, drives, and attests challenges.
// It is fixed at build time; per-request variation comes from the flight
// snapshot and the partner-policy set, never from mutating Config.
type Config struct {
	Challenge    ChallengeConfig
	StatusMap    StatusMapConfig
	Versioning   VersioningConfig
	Verification VerificationConfig
	Session      SessionConfig
	Provider     ProviderConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
CHALLENGE REQUIREMENT CONFIG
====================================
*/

// ChallengeConfig tunes the requirement resolver.
type ChallengeConfig struct {
	// LegacyRedirectCountries maps a market to the currency legacy
	// redirect-based 3-D Secure applies to, e.g. "IN" -> "INR".
	LegacyRedirectCountries map[string]string
	// AttachPartners lists partners with the unconditional
	// validate-on-attach rule, in addition to partner-policy opt-ins.
	AttachPartners []string
	// MaxAuthenticateAttempts bounds authenticate calls per session.
	// Zero means 3.
	MaxAuthenticateAttempts int
}

/*
====================================
STATUS MAPPING CONFIG
====================================
*/

// StatusMapConfig carries the deployment's status-override rule table.
type StatusMapConfig struct {
	// AuthenticationOverrides apply during authenticate calls,
	// CompletionOverrides during challenge completion. Rules are matched by
	// specificity and always win over the default mapping.
	AuthenticationOverrides []statusmap.Rule
	CompletionOverrides     []statusmap.Rule
}

/*
====================================
PROTOCOL VERSION CONFIG
====================================
*/

// VersioningConfig describes the accepted settings-version range. Versions
// are spelled "V<n>".
type VersioningConfig struct {
	Minimum    string
	Default    string
	Additional []string
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig tunes the verification engine's cross-validation.
type VerificationConfig struct {
	// RelaxedPartners are callers allowed to pass verification despite a
	// purchase-context mismatch. A relaxation applies only when the
	// authenticated caller partner matches exactly.
	RelaxedPartners []string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session persistence.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
}

// ProviderConfig tunes provider interaction.
type ProviderConfig struct {
	// CallTimeout bounds each provider call. Zero means the client default.
	CallTimeout time.Duration
	// NotificationBaseURL is the externally reachable base used to build the
	// challenge-completion callback URL handed to the provider.
	NotificationBaseURL string
}

// AuditConfig tunes the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig tunes the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the Builder starts from: sensible
// production defaults with no override rules and no relaxations.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Challenge: ChallengeConfig{
			LegacyRedirectCountries: map[string]string{"IN": "INR"},
			MaxAuthenticateAttempts: 3,
		},
		Versioning: VersioningConfig{
			Minimum: "V18",
			Default: "V21",
		},
		Session: SessionConfig{
			RedisPrefix: "ps",
			TTL:         30 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Challenge.LegacyRedirectCountries != nil {
		m := make(map[string]string, len(cfg.Challenge.LegacyRedirectCountries))
		for k, v := range cfg.Challenge.LegacyRedirectCountries {
			m[k] = v
		}
		out.Challenge.LegacyRedirectCountries = m
	}
	out.Challenge.AttachPartners = append([]string(nil), cfg.Challenge.AttachPartners...)
	out.StatusMap.AuthenticationOverrides = append([]statusmap.Rule(nil), cfg.StatusMap.AuthenticationOverrides...)
	out.StatusMap.CompletionOverrides = append([]statusmap.Rule(nil), cfg.StatusMap.CompletionOverrides...)
	out.Versioning.Additional = append([]string(nil), cfg.Versioning.Additional...)
	out.Verification.RelaxedPartners = append([]string(nil), cfg.Verification.RelaxedPartners...)
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Versioning.Default == "" {
		return errors.New("versioning: default version required")
	}
	if cfg.Versioning.Minimum == "" {
		cfg.Versioning.Minimum = cfg.Versioning.Default
	}
	if cfg.Challenge.MaxAuthenticateAttempts <= 0 {
		cfg.Challenge.MaxAuthenticateAttempts = 3
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = "ps"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * time.Minute
	}
	if cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = 1
	}
	return nil
}

// PolicyResolver resolves the enabled flight set for a request when the
// caller did not supply one. Implementations typically front a toggle store.
type PolicyResolver interface {
	ResolveFlights(partner, country string) policy.Snapshot
}

// StaticPolicyResolver returns the same flights for every request. Useful in
// tests and single-tenant deployments.
type StaticPolicyResolver []string

// ResolveFlights implements PolicyResolver.
func (s StaticPolicyResolver) ResolveFlights(string, string) policy.Snapshot {
	return policy.NewSnapshot(s...)
}
