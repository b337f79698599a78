package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/altairpay/authgate/policy"
)

// Instrument-declared challenge kinds the resolver reacts to.
const (
	challengeKind3DS2 = "3ds2"
	challengeKind3DS  = "3ds"
	challengeKindCvv  = "cvv"
)

// requirementDecision is the requirement resolver's answer for one purchase:
// whether a challenge is needed, which kind, and the status the session starts
// in when no challenge will run.
type requirementDecision struct {
	Required bool
	Type     ChallengeType
	Status   ChallengeStatus
}

// resolveInstrument fetches the payment instrument with the ownership check
// the active policy calls for. Ownership failures are indistinguishable from
// a missing instrument.
func (g *Gateway) resolveInstrument(ctx context.Context, caller CallerIdentity, pc PurchaseContext) (*PaymentInstrument, error) {
	owner := caller.AccountID
	if pc.InstrumentAccountID != "" {
		owner = pc.InstrumentAccountID
	}

	var (
		pi  *PaymentInstrument
		err error
	)
	if g.policies.Enabled(pc.Partner, pc.Country, policy.FeatureSkipOwnershipPrecheck) {
		pi, err = g.instruments.GetExtended(ctx, pc.InstrumentID)
	} else {
		pi, err = g.instruments.Get(ctx, owner, pc.InstrumentID)
	}
	if err != nil {
		g.metricInc(MetricOwnershipRejected)
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditOwnershipRejected,
			AccountID:    owner,
			Partner:      pc.Partner,
			InstrumentID: pc.InstrumentID,
			Error:        err.Error(),
		})
		if errors.Is(err, ErrInstrumentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInstrumentNotFound, err)
	}
	if pi == nil {
		return nil, ErrInstrumentNotFound
	}
	return pi, nil
}

// resolveRequirement classifies the purchase against the instrument's
// required-challenge set. First match wins; later rules are never consulted.
func (g *Gateway) resolveRequirement(caller CallerIdentity, pc PurchaseContext, pi *PaymentInstrument, flights policy.Snapshot) requirementDecision {
	// Rewards redemptions never go through payer authentication.
	if pc.RedeemRewards {
		return requirementDecision{Status: StatusNotApplicable}
	}

	// Mail-order / telephone-order purchases have no cardholder present to
	// challenge. With the bypass flight on, the session records a deliberate
	// skip instead of a non-requirement.
	if pc.IsMOTO && flights.Enabled(policy.FlagBypassMOTOChallenge) {
		return requirementDecision{Status: StatusByPassed}
	}

	if g.wants3DS2(caller, pi, flights) {
		return requirementDecision{Required: true, Type: ChallengePSD2, Status: StatusUnknown}
	}

	if g.wantsLegacyRedirect(pc, pi, flights) {
		return requirementDecision{Required: true, Type: ChallengeLegacyRedirect, Status: StatusUnknown}
	}

	if g.wantsValidateOnAttach(pc) {
		return requirementDecision{Required: true, Type: ChallengeValidateOnAttach, Status: StatusUnknown}
	}

	return requirementDecision{Status: StatusNotApplicable}
}

func (g *Gateway) wants3DS2(caller CallerIdentity, pi *PaymentInstrument, flights policy.Snapshot) bool {
	required := pi.RequiresChallenge(challengeKind3DS2)
	if !required && flights.Enabled(policy.FlagPretendRequired3DS2) &&
		pi.Family == FamilyExpressWallet && len(pi.RequiredChallenges) == 0 {
		required = true
	}
	if !required {
		return false
	}
	// Guest purchases only run the strong-authentication flow once it has
	// been rolled out for guest checkout.
	if caller.AccountID == "" && !flights.Enabled(policy.FlagGuestCheckoutPSD2) {
		return false
	}
	return true
}

func (g *Gateway) wantsLegacyRedirect(pc PurchaseContext, pi *PaymentInstrument, flights policy.Snapshot) bool {
	if !pi.RequiresChallenge(challengeKind3DS) {
		return false
	}
	currency, ok := g.config.Challenge.LegacyRedirectCountries[pc.Country]
	if !ok || currency != pc.Currency {
		return false
	}
	if !g.policies.Enabled(pc.Partner, pc.Country, policy.FeatureLegacyRedirect3DS) {
		return false
	}
	if pc.Amount == 0 && flights.Enabled(policy.FlagSkipZeroAmountLegacy3DS) {
		return false
	}
	return true
}

func (g *Gateway) wantsValidateOnAttach(pc PurchaseContext) bool {
	optedIn := g.policies.Enabled(pc.Partner, pc.Country, policy.FeatureValidateOnAttach)
	if !optedIn {
		for _, p := range g.config.Challenge.AttachPartners {
			if p == pc.Partner {
				optedIn = true
				break
			}
		}
	}
	if !optedIn {
		return false
	}
	// Legacy-redirect markets keep their own flow.
	if _, legacy := g.config.Challenge.LegacyRedirectCountries[pc.Country]; legacy {
		return false
	}
	if g.policies.Enabled(pc.Partner, pc.Country, policy.FeatureUnconditionalAttach) {
		return true
	}
	return pc.Amount != 0 || !pc.HasPreOrder
}
