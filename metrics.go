package authgate

import "sync/atomic"

// MetricID identifies one gateway counter.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions persisted.
	MetricSessionCreated MetricID = iota
	// MetricChallengeRequired counts sessions created with a required challenge.
	MetricChallengeRequired
	// MetricChallengeNotRequired counts sessions created with no challenge.
	MetricChallengeNotRequired
	// MetricSafetyNet counts provider failures absorbed by the safety net.
	MetricSafetyNet
	// MetricChallengeSucceeded counts challenges completed successfully.
	MetricChallengeSucceeded
	// MetricChallengeFailed counts challenges that terminally failed.
	MetricChallengeFailed
	// MetricChallengeCancelled counts cancelled or timed-out challenges.
	MetricChallengeCancelled
	// MetricVersionMismatch counts settings-version negotiation failures.
	MetricVersionMismatch
	// MetricVerificationVerified counts verification queries answered verified.
	MetricVerificationVerified
	// MetricVerificationRejected counts verification queries answered not verified.
	MetricVerificationRejected
	// MetricOwnershipRejected counts instrument-ownership failures.
	MetricOwnershipRejected
	// MetricProviderError counts provider call failures, absorbed or not.
	MetricProviderError
	// MetricAttemptsExceeded counts sessions that exhausted authenticate attempts.
	MetricAttemptsExceeded

	metricCount
)

// MetricsSnapshot is a point-in-time copy of the gateway's counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Metrics holds the gateway's in-process counters. All methods are safe for
// concurrent use.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}

// MetricName returns a stable exportable name for a counter.
func MetricName(id MetricID) string {
	switch id {
	case MetricSessionCreated:
		return "session_created"
	case MetricChallengeRequired:
		return "challenge_required"
	case MetricChallengeNotRequired:
		return "challenge_not_required"
	case MetricSafetyNet:
		return "safety_net_engaged"
	case MetricChallengeSucceeded:
		return "challenge_succeeded"
	case MetricChallengeFailed:
		return "challenge_failed"
	case MetricChallengeCancelled:
		return "challenge_cancelled"
	case MetricVersionMismatch:
		return "version_mismatch"
	case MetricVerificationVerified:
		return "verification_verified"
	case MetricVerificationRejected:
		return "verification_rejected"
	case MetricOwnershipRejected:
		return "ownership_rejected"
	case MetricProviderError:
		return "provider_error"
	case MetricAttemptsExceeded:
		return "attempts_exceeded"
	default:
		return "unknown"
	}
}

// MetricIDs lists every counter id, for exporters.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricCount)
	for id := MetricID(0); id < metricCount; id++ {
		ids = append(ids, id)
	}
	return ids
}
