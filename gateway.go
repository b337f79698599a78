package authgate

import (
	"context"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
	"github.com/altairpay/authgate/session"
	"github.com/altairpay/authgate/statusmap"
)

// Gateway is the payment-authentication core. Build one with the Builder and
// treat it as immutable; all methods are safe for concurrent use.
type Gateway struct {
	config      Config
	sessions    *session.Store
	instruments InstrumentStore
	provider    payerauth.Client
	policies    *policy.Set
	resolver    PolicyResolver

	authOverrides *statusmap.Table
	compOverrides *statusmap.Table

	attempts *attemptLimiter
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close flushes and stops the audit dispatcher. The gateway must not be used
// afterwards.
func (g *Gateway) Close() {
	if g == nil {
		return
	}
	if g.audit != nil {
		g.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under pressure.
func (g *Gateway) AuditDropped() uint64 {
	if g == nil || g.audit == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot copies the gateway's counters.
func (g *Gateway) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return g.metrics.Snapshot()
}

func (g *Gateway) metricInc(id MetricID) {
	if g == nil || g.metrics == nil {
		return
	}
	g.metrics.Inc(id)
}

func (g *Gateway) emitAudit(ctx context.Context, event AuditEvent) {
	if g == nil || g.audit == nil {
		return
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["client_ip"] = ip
	}
	g.audit.Emit(ctx, event)
}

// flightsFor returns the request's flight snapshot: the caller-supplied one
// when present, otherwise whatever the configured resolver yields.
func (g *Gateway) flightsFor(supplied *policy.Snapshot, partner, country string) policy.Snapshot {
	if supplied != nil {
		return *supplied
	}
	if g.resolver != nil {
		return g.resolver.ResolveFlights(partner, country)
	}
	return policy.Snapshot{}
}
