package authgate

import (
	"sync"
	"testing"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionCreated)

	if got := m.Snapshot().Counters[MetricSessionCreated]; got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionCreated)

	if got := m.Snapshot().Counters[MetricSessionCreated]; got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsOutOfRangeIgnored(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricCount)
	m.Inc(metricCount + 10)

	snap := m.Snapshot()
	for id, v := range snap.Counters {
		if v != 0 {
			t.Fatalf("counter %s = %d, want all zero", MetricName(id), v)
		}
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricChallengeFailed)

	snap := m.Snapshot()
	m.Inc(MetricChallengeFailed)

	if snap.Counters[MetricChallengeFailed] != 1 {
		t.Fatalf("snapshot mutated, got %d", snap.Counters[MetricChallengeFailed])
	}
	if got := m.Snapshot().Counters[MetricChallengeFailed]; got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := newMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				m.Inc(MetricVerificationVerified)
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Counters[MetricVerificationVerified]; got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
}

func TestMetricNamesUniqueAndKnown(t *testing.T) {
	seen := make(map[string]MetricID)
	for _, id := range MetricIDs() {
		name := MetricName(id)
		if name == "unknown" {
			t.Fatalf("counter %d has no name", id)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("name %q shared by %d and %d", name, prev, id)
		}
		seen[name] = id
	}
}
