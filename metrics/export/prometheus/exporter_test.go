package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authgate "github.com/altairpay/authgate"
)

type fakeSource struct {
	snapshot authgate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authgate.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderIncludesCounters(t *testing.T) {
	src := &fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters: map[authgate.MetricID]uint64{
				authgate.MetricSessionCreated:       7,
				authgate.MetricChallengeSucceeded:   3,
				authgate.MetricSafetyNet:            1,
				authgate.MetricVerificationVerified: 2,
			},
		},
		dropped: 4,
	}

	out := NewPrometheusExporterFromSource(src).Render()
	for _, want := range []string{
		"authgate_session_created_total 7",
		"authgate_challenge_succeeded_total 3",
		"authgate_safety_net_engaged_total 1",
		"authgate_verification_verified_total 2",
		"authgate_audit_dropped_total 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptyWhenNoData(t *testing.T) {
	out := NewPrometheusExporterFromSource(&fakeSource{}).Render()
	if out != "" {
		t.Fatalf("expected empty render, got %q", out)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	src := &fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters: map[authgate.MetricID]uint64{authgate.MetricSessionCreated: 1},
		},
	}
	rec := httptest.NewRecorder()
	NewPrometheusExporterFromSource(src).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authgate_session_created_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}
