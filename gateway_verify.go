package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/altairpay/authgate/policy"
	"github.com/altairpay/authgate/session"
)

// VerifyRequest asks whether an instrument's challenge obligation is met for
// a purchase.
type VerifyRequest struct {
	InstrumentID string
	SessionID    string
	// Purchase enables cross-validation of the purchase the attestation is
	// being used for against the purchase the challenge was run for. It is
	// mandatory when property validation is flighted on.
	Purchase *PurchaseContext
	// Flights overrides flight resolution for this request.
	Flights *policy.Snapshot
}

// VerifyAuthentication is the attestation query run at authorization time:
// did this instrument clear the challenge it needed for this purchase.
//
// The answer is verified only on a good recorded status or an explicitly
// matched override; every ambiguous path fails closed to not verified. The
// one exception is a session degraded by the safety net, whose skip was the
// gateway's own doing and is honored here.
func (g *Gateway) VerifyAuthentication(ctx context.Context, accountID string, req VerifyRequest) (*VerificationOutcome, error) {
	if g == nil || g.sessions == nil {
		return nil, ErrGatewayNotReady
	}
	if req.InstrumentID == "" {
		return nil, fmt.Errorf("%w: payment instrument id required", ErrInvalidRequest)
	}

	caller := callerFromContext(ctx)
	caller.AccountID = accountID

	pc := PurchaseContext{InstrumentID: req.InstrumentID}
	if req.Purchase != nil {
		pc = *req.Purchase
		pc.InstrumentID = req.InstrumentID
	}

	pi, err := g.resolveInstrument(ctx, caller, pc)
	if err != nil {
		return nil, err
	}

	flights := g.flightsFor(req.Flights, pc.Partner, pc.Country)

	// An instrument with no challenge obligation has nothing to attest. A
	// CVV-only set counts as no obligation: CVV is checked locally at
	// authorization, no payment session is ever created for it.
	if !requiresAnyChallenge(pi) {
		outcome := &VerificationOutcome{
			Verified:        true,
			InstrumentID:    req.InstrumentID,
			ChallengeStatus: StatusNotApplicable,
		}
		g.finishVerification(ctx, accountID, pc.Partner, outcome)
		return outcome, nil
	}

	key := g.resolveLookupKey(ctx, flights, req.SessionID, req.InstrumentID)
	rec, err := g.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeError(err)
	}
	if rec.AccountID != accountID || rec.InstrumentID != req.InstrumentID {
		// Someone else's session looks exactly like a missing one.
		return nil, ErrSessionNotFound
	}

	outcome := &VerificationOutcome{
		InstrumentID:    req.InstrumentID,
		SessionID:       rec.ID,
		ChallengeStatus: ChallengeStatus(rec.ChallengeStatus),
	}
	outcome.Verified = g.challengeCleared(rec, flights)

	if outcome.Verified && flights.Enabled(policy.FlagValidateProperties) {
		reason, err := g.validateProperties(rec, req.Purchase, flights)
		if err != nil {
			return nil, err
		}
		if reason != VerificationSuccess && !g.relaxedFor(caller, rec.Country) {
			outcome.Verified = false
			outcome.FailureReason = reason
		}
	}

	g.finishVerification(ctx, accountID, pc.Partner, outcome)
	return outcome, nil
}

// challengeCleared decides whether the recorded status satisfies the
// obligation.
func (g *Gateway) challengeCleared(rec *session.Record, flights policy.Snapshot) bool {
	if flights.Enabled(policy.FlagForceVerified) {
		return true
	}
	status := ChallengeStatus(rec.ChallengeStatus)
	if status.IsGood() {
		return true
	}
	// A safety-net session sits at a non-good status through no fault of the
	// cardholder; the gateway stands behind its own skip.
	if status == StatusUnknown && rec.IsSystemError {
		return true
	}
	return false
}

// validateProperties cross-checks the purchase the attestation is for
// against the purchase the challenge was run for.
func (g *Gateway) validateProperties(rec *session.Record, pc *PurchaseContext, flights policy.Snapshot) (VerificationResult, error) {
	if rec.Amount == 0 && flights.Enabled(policy.FlagZeroAmountSkipValidate) {
		return VerificationSuccess, nil
	}
	if pc == nil || pc.Currency == "" || pc.Country == "" {
		return VerificationSuccess, fmt.Errorf("%w: purchase context required for property validation", ErrInvalidRequest)
	}
	if !strings.EqualFold(pc.Currency, rec.Currency) {
		return CurrencyMismatch, nil
	}
	if !strings.EqualFold(pc.Country, rec.Country) {
		return CountryMismatch, nil
	}
	if pc.Amount != rec.Amount {
		return AmountMismatch, nil
	}
	if rec.PurchaseOrderID != "" && pc.PurchaseOrderID != "" && pc.PurchaseOrderID != rec.PurchaseOrderID {
		return PurchaseOrderMismatch, nil
	}
	return VerificationSuccess, nil
}

// relaxedFor reports whether the authenticated caller is on the relaxed
// enforcement allow-list. The relaxation is matched against the caller's own
// partner, never the partner named in the request.
func (g *Gateway) relaxedFor(caller CallerIdentity, country string) bool {
	if caller.Partner == "" {
		return false
	}
	for _, p := range g.config.Verification.RelaxedPartners {
		if strings.EqualFold(p, caller.Partner) {
			return true
		}
	}
	return g.policies.Enabled(caller.Partner, country, policy.FeatureRelaxedVerification)
}

func requiresAnyChallenge(pi *PaymentInstrument) bool {
	return pi.RequiresChallenge(challengeKind3DS2) ||
		pi.RequiresChallenge(challengeKind3DS)
}

func (g *Gateway) finishVerification(ctx context.Context, accountID, partner string, outcome *VerificationOutcome) {
	if outcome.Verified {
		g.metricInc(MetricVerificationVerified)
	} else {
		g.metricInc(MetricVerificationRejected)
	}
	g.emitAudit(ctx, AuditEvent{
		Type:         AuditVerificationChecked,
		AccountID:    accountID,
		Partner:      partner,
		SessionID:    outcome.SessionID,
		InstrumentID: outcome.InstrumentID,
		Status:       outcome.ChallengeStatus,
		Success:      outcome.Verified,
		Error:        string(outcome.FailureReason),
	})
}
