package internaldefs

import (
	authgate "github.com/altairpay/authgate"
)

// CounterDef binds a gateway counter id to its stable exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported gateway counter. Both exporters render
// from this table so names stay identical across backends.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Payment sessions created."},
	{ID: authgate.MetricChallengeRequired, Name: "authgate_challenge_required_total", Help: "Sessions created with a required challenge."},
	{ID: authgate.MetricChallengeNotRequired, Name: "authgate_challenge_not_required_total", Help: "Sessions created with no challenge required."},
	{ID: authgate.MetricSafetyNet, Name: "authgate_safety_net_engaged_total", Help: "Provider failures absorbed by the safety net."},
	{ID: authgate.MetricChallengeSucceeded, Name: "authgate_challenge_succeeded_total", Help: "Challenges completed successfully."},
	{ID: authgate.MetricChallengeFailed, Name: "authgate_challenge_failed_total", Help: "Challenges that terminally failed."},
	{ID: authgate.MetricChallengeCancelled, Name: "authgate_challenge_cancelled_total", Help: "Challenges cancelled or timed out."},
	{ID: authgate.MetricVersionMismatch, Name: "authgate_version_mismatch_total", Help: "Settings-version negotiation failures."},
	{ID: authgate.MetricVerificationVerified, Name: "authgate_verification_verified_total", Help: "Verification queries answered verified."},
	{ID: authgate.MetricVerificationRejected, Name: "authgate_verification_rejected_total", Help: "Verification queries answered not verified."},
	{ID: authgate.MetricOwnershipRejected, Name: "authgate_ownership_rejected_total", Help: "Instrument ownership check failures."},
	{ID: authgate.MetricProviderError, Name: "authgate_provider_error_total", Help: "Authentication provider call failures."},
	{ID: authgate.MetricAttemptsExceeded, Name: "authgate_attempts_exceeded_total", Help: "Sessions that exhausted authenticate attempts."},
}

// AuditDroppedName is the exported name of the audit backpressure counter.
const AuditDroppedName = "authgate_audit_dropped_total"

// AuditDroppedHelp documents the audit backpressure counter.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
