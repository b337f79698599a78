// Package policy models per-request feature flights and per-partner policy as
// data. A Snapshot is the immutable set of flights resolved for one request;
// a Set is the partner-policy document (feature -> applicable markets ->
// customization detail) evaluated by one small interpreter. Both are passed
// explicitly into every decision so evaluation stays deterministic.
package policy

import "strings"

// Flight names understood by the gateway. Flights are free-form strings at
// the resolver boundary; these are the ones the core reacts to.
const (
	FlagPretendRequired3DS2     = "PretendRequired3DS2"
	FlagBypassMOTOChallenge     = "BypassMOTOChallenge"
	FlagSkipZeroAmountLegacy3DS = "SkipZeroAmountLegacy3DS"
	FlagInstrumentScopedLookup  = "InstrumentScopedSessionLookup"
	FlagSessionSchemaV2         = "SessionSchemaV2"
	FlagForceVerified           = "AuthenticateStatusForceVerified"
	FlagValidateProperties      = "ValidatePaymentSessionProperties"
	FlagZeroAmountSkipValidate  = "SkipZeroAmountPropertyValidation"
	FlagGuestCheckoutPSD2       = "EnablePSD2ForGuestCheckout"

	// SettingsVersionPrefix marks flights that roll out an additional
	// accepted protocol version, e.g. "SettingsVersionV25".
	SettingsVersionPrefix = "SettingsVersionV"
)

// Snapshot is the set of flights enabled for one request. The zero value is a
// valid empty snapshot.
type Snapshot struct {
	flights map[string]struct{}
}

// NewSnapshot builds a Snapshot from the resolved flight names. Matching is
// case-insensitive, following the upstream toggle store.
func NewSnapshot(flights ...string) Snapshot {
	if len(flights) == 0 {
		return Snapshot{}
	}
	m := make(map[string]struct{}, len(flights))
	for _, f := range flights {
		m[strings.ToLower(f)] = struct{}{}
	}
	return Snapshot{flights: m}
}

// Enabled reports whether the named flight is on in this snapshot.
func (s Snapshot) Enabled(name string) bool {
	if s.flights == nil {
		return false
	}
	_, ok := s.flights[strings.ToLower(name)]
	return ok
}

// Names returns the enabled flight names, lower-cased, in no fixed order.
func (s Snapshot) Names() []string {
	if s.flights == nil {
		return nil
	}
	out := make([]string, 0, len(s.flights))
	for f := range s.flights {
		out = append(out, f)
	}
	return out
}

// WithPrefix returns every enabled flight that begins with prefix, with the
// prefix stripped. Used for version rollout flights.
func (s Snapshot) WithPrefix(prefix string) []string {
	if s.flights == nil {
		return nil
	}
	lp := strings.ToLower(prefix)
	var out []string
	for f := range s.flights {
		if strings.HasPrefix(f, lp) {
			out = append(out, f[len(lp):])
		}
	}
	return out
}

// Feature names in the partner-policy document.
type Feature string

const (
	// FeatureValidateOnAttach opts a partner into the validate-instrument-on-
	// attach challenge for eligible instruments.
	FeatureValidateOnAttach Feature = "validatePIOnAttach"
	// FeatureLegacyRedirect3DS enables legacy redirect-based 3-D Secure for a
	// market (e.g. India) and scheme.
	FeatureLegacyRedirect3DS Feature = "threeDSOne"
	// FeatureSkipOwnershipPrecheck allows the requirement resolver to use the
	// extended instrument view instead of a second ownership-verifying call.
	FeatureSkipOwnershipPrecheck Feature = "skipOwnershipPrecheck"
	// FeatureRelaxedVerification puts a partner on the relaxed-enforcement
	// allow-list for purchase-context cross-validation.
	FeatureRelaxedVerification Feature = "relaxedVerification"
	// FeatureInlineRedirect selects the inline redirection strategy for
	// browser challenges instead of a full-page redirect.
	FeatureInlineRedirect Feature = "inlineRedirect"
	// FeatureEmbeddedFrame selects the embedded-frame redirection strategy.
	FeatureEmbeddedFrame Feature = "embeddedFrame"
	// FeatureUnconditionalAttach makes validate-on-attach apply regardless of
	// amount and pre-order state for the partner.
	FeatureUnconditionalAttach Feature = "unconditionalValidatePIOnAttach"
)

// Rule scopes a feature to markets, optionally carrying a customization
// detail. An empty Countries list applies to every market.
type Rule struct {
	Countries []string
	Detail    string
}

func (r Rule) applies(country string) bool {
	if len(r.Countries) == 0 {
		return true
	}
	for _, c := range r.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// PartnerPolicy is one partner's feature document.
type PartnerPolicy struct {
	Partner string
	Rules   map[Feature][]Rule
}

// Set is the full partner-policy document the gateway was configured with.
// New partner policies are additions to this data, not new code paths.
type Set struct {
	partners map[string]PartnerPolicy
}

// NewSet indexes the given partner policies by partner name.
func NewSet(policies ...PartnerPolicy) *Set {
	s := &Set{partners: make(map[string]PartnerPolicy, len(policies))}
	for _, p := range policies {
		s.partners[strings.ToLower(p.Partner)] = p
	}
	return s
}

// Enabled reports whether the feature applies to the partner in the market.
func (s *Set) Enabled(partner, country string, f Feature) bool {
	_, ok := s.lookup(partner, country, f)
	return ok
}

// Detail returns the customization detail of the first rule that applies to
// the partner and market, if any.
func (s *Set) Detail(partner, country string, f Feature) (string, bool) {
	return s.lookup(partner, country, f)
}

func (s *Set) lookup(partner, country string, f Feature) (string, bool) {
	if s == nil || s.partners == nil {
		return "", false
	}
	p, ok := s.partners[strings.ToLower(partner)]
	if !ok {
		return "", false
	}
	for _, r := range p.Rules[f] {
		if r.applies(country) {
			return r.Detail, true
		}
	}
	return "", false
}
