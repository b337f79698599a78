package authgate

import (
	"context"

	"github.com/altairpay/authgate/policy"
)

// PollStatus returns the current challenge status of a session. Polling is
// caller driven and read only: the gateway never re-queries the provider
// here, and a terminal status read back is exactly what was recorded at the
// transition, never recomputed.
func (g *Gateway) PollStatus(ctx context.Context, accountID, sessionID string) (*PaymentSession, error) {
	rec, err := g.loadSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}
	return toPaymentSession(rec), nil
}

// PollStatusForInstrument is PollStatus with the instrument-scoped lookup
// precedence applied: when the lookup flight is on and an instrument index
// record exists, the indexed session is read instead of sessionID.
func (g *Gateway) PollStatusForInstrument(ctx context.Context, accountID, sessionID, instrumentID string, flights *policy.Snapshot) (*PaymentSession, error) {
	if g == nil || g.sessions == nil {
		return nil, ErrGatewayNotReady
	}
	caller := callerFromContext(ctx)
	snap := g.flightsFor(flights, caller.Partner, "")
	key := g.resolveLookupKey(ctx, snap, sessionID, instrumentID)
	return g.PollStatus(ctx, accountID, key)
}
