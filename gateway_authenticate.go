package authgate

import (
	"context"
	"errors"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
	"github.com/altairpay/authgate/session"
	"github.com/altairpay/authgate/statusmap"
)

// AuthenticateRequest is the per-attempt input to the authenticate
// operations: the client environment the access control server needs to
// decide between a frictionless and a challenged flow.
type AuthenticateRequest struct {
	SettingsVersion string
	BrowserInfo     map[string]string
	SDKInfo         map[string]string
	// MethodCompletion reports whether the fingerprinting step ran:
	// "Y", "N", or "U".
	MethodCompletion string
	// Flights overrides flight resolution for this request. Nil means the
	// flights recorded at session creation, then the resolver.
	Flights *policy.Snapshot
}

// Authenticate drives one authenticate attempt for an open session.
//
// A frictionless or bypassed outcome completes the session in place and the
// returned descriptor carries CompleteByItself. A challenged outcome leaves
// the session open and the descriptor carries the challenge URL. A terminal
// failure is returned as a ChallengeError with the provider's
// cardholder-facing message.
func (g *Gateway) Authenticate(ctx context.Context, accountID, sessionID string, req AuthenticateRequest) (*ChallengeDescriptor, error) {
	rec, err := g.loadSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}
	return g.authenticate(ctx, rec, req)
}

// CreateAndAuthenticate opens a session and, when a challenge is required,
// immediately drives the first authenticate attempt. It exists so a single
// round trip can reach a frictionless completion.
func (g *Gateway) CreateAndAuthenticate(ctx context.Context, accountID string, create CreateSessionRequest, auth AuthenticateRequest) (*ChallengeDescriptor, error) {
	rec, err := g.createSession(ctx, accountID, create)
	if err != nil {
		return nil, err
	}
	if !rec.IsChallengeRequired {
		return &ChallengeDescriptor{
			Session:          *toPaymentSession(rec),
			Type:             ChallengeType(rec.ChallengeType),
			CompleteByItself: true,
		}, nil
	}
	if auth.SettingsVersion == "" {
		auth.SettingsVersion = create.SettingsVersion
	}
	if auth.Flights == nil {
		auth.Flights = create.Flights
	}
	return g.authenticate(ctx, rec, auth)
}

// ThreeDSMethodURL fetches the issuer's fingerprinting URL for the session,
// when the issuer publishes one. Fingerprinting is best effort: a provider
// failure here yields a descriptor with no method URL rather than an error,
// because the challenge can proceed without it.
func (g *Gateway) ThreeDSMethodURL(ctx context.Context, accountID, sessionID string) (*ChallengeDescriptor, error) {
	rec, err := g.loadSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}
	desc := &ChallengeDescriptor{
		Session: *toPaymentSession(rec),
		Type:    ChallengeType(rec.ChallengeType),
	}
	resp, err := g.provider.GetMethodURL(ctx, payerauth.MethodRequest{SessionID: rec.ID})
	if err != nil {
		g.metricInc(MetricProviderError)
		return desc, nil
	}
	desc.MethodURL = resp.MethodURL
	if resp.FormInput != "" {
		desc.FormFields = map[string]string{"threeDSMethodData": resp.FormInput}
	}
	return desc, nil
}

func (g *Gateway) authenticate(ctx context.Context, rec *session.Record, req AuthenticateRequest) (*ChallengeDescriptor, error) {
	if !rec.IsChallengeRequired || ChallengeStatus(rec.ChallengeStatus).IsTerminal() {
		return &ChallengeDescriptor{
			Session:          *toPaymentSession(rec),
			Type:             ChallengeType(rec.ChallengeType),
			CompleteByItself: true,
		}, nil
	}

	flights := g.sessionFlights(req.Flights, rec)

	if err := g.negotiateVersion(ctx, rec.AccountID, recPurchase(rec), flights, req.SettingsVersion); err != nil {
		return nil, err
	}

	if err := g.attempts.Record(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrAttemptsExceeded) {
			g.metricInc(MetricAttemptsExceeded)
		}
		return nil, err
	}

	resp, err := g.provider.Authenticate(ctx, payerauth.AuthRequest{
		SessionID:               rec.ID,
		SettingsVersion:         rec.ProtocolVersion,
		SettingsVersionTryCount: tryCountFromContext(ctx),
		BrowserInfo:             req.BrowserInfo,
		SDKInfo:                 req.SDKInfo,
		MethodCompletion:        req.MethodCompletion,
		NotificationURL:         g.notificationURL(rec.ID),
	})
	if err != nil {
		// No cardholder has seen a challenge yet for this attempt, so the
		// failure is absorbed rather than surfaced.
		g.engageSafetyNet(ctx, rec, StatusByPassed, err)
		if uerr := g.updateSession(ctx, rec); uerr != nil {
			return nil, uerr
		}
		return &ChallengeDescriptor{
			Session:          *toPaymentSession(rec),
			Type:             ChallengeType(rec.ChallengeType),
			CompleteByItself: true,
		}, nil
	}

	outcome := statusmap.MapAuthentication(statusmap.Input{
		Status: resp.TransactionStatus,
		Reason: resp.TransactionStatusReason,
		MOTO:   rec.IsMOTO,
	}, g.authOverrides)

	rec.ChallengeStatus = string(outcome)
	rec.ProviderPayload = resp.RawPayload
	if err := g.updateSession(ctx, rec); err != nil {
		return nil, err
	}

	desc := &ChallengeDescriptor{
		Session:     *toPaymentSession(rec),
		Type:        ChallengeType(rec.ChallengeType),
		Redirection: g.redirectionFor(rec.Partner, rec.Country),
	}

	switch ChallengeStatus(rec.ChallengeStatus) {
	case StatusUnknown:
		// Challenge flow: the renderer sends the cardholder to the access
		// control server next.
		desc.ChallengeURL = resp.ChallengeURL
		if desc.ChallengeURL == "" {
			desc.ChallengeURL = resp.AcsURL
		}
		if resp.AcsChallengeData != "" {
			desc.FormFields = map[string]string{"creq": resp.AcsChallengeData}
		}
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditChallengeStarted,
			AccountID:    rec.AccountID,
			Partner:      rec.Partner,
			SessionID:    rec.ID,
			InstrumentID: rec.InstrumentID,
			Status:       StatusUnknown,
			Success:      true,
		})
		return desc, nil
	case StatusFailed:
		g.metricInc(MetricChallengeFailed)
		g.resetAttempts(ctx, rec.ID)
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditChallengeCompleted,
			AccountID:    rec.AccountID,
			Partner:      rec.Partner,
			SessionID:    rec.ID,
			InstrumentID: rec.InstrumentID,
			Status:       StatusFailed,
		})
		return nil, &ChallengeError{
			SessionID:          rec.ID,
			Status:             StatusFailed,
			ErrorCode:          CodeRejectedByProvider,
			UserDisplayMessage: resp.CardHolderInfo,
		}
	default:
		// Frictionless success or bypass.
		g.metricInc(MetricChallengeSucceeded)
		g.resetAttempts(ctx, rec.ID)
		desc.CompleteByItself = true
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditChallengeCompleted,
			AccountID:    rec.AccountID,
			Partner:      rec.Partner,
			SessionID:    rec.ID,
			InstrumentID: rec.InstrumentID,
			Status:       ChallengeStatus(rec.ChallengeStatus),
			Success:      true,
		})
		return desc, nil
	}
}

// sessionFlights resolves the flight snapshot for operations on an existing
// session: the caller-supplied snapshot wins, then the snapshot recorded at
// creation, then the resolver.
func (g *Gateway) sessionFlights(supplied *policy.Snapshot, rec *session.Record) policy.Snapshot {
	if supplied != nil {
		return *supplied
	}
	if len(rec.EnabledFlights) > 0 {
		return policy.NewSnapshot(rec.EnabledFlights...)
	}
	return g.flightsFor(nil, rec.Partner, rec.Country)
}

// redirectionFor selects the rendering strategy from partner policy.
func (g *Gateway) redirectionFor(partner, country string) RedirectionType {
	if g.policies.Enabled(partner, country, policy.FeatureEmbeddedFrame) {
		return EmbeddedFrame
	}
	if g.policies.Enabled(partner, country, policy.FeatureInlineRedirect) {
		return InlineRedirect
	}
	return FullPageRedirect
}

func (g *Gateway) notificationURL(sessionID string) string {
	base := g.config.Provider.NotificationBaseURL
	if base == "" {
		return ""
	}
	return base + "/v1/paymentSessions/" + sessionID + "/completeChallenge"
}

func (g *Gateway) updateSession(ctx context.Context, rec *session.Record) error {
	err := g.sessions.Update(ctx, rec)
	if err == nil {
		return nil
	}
	// A terminal status in the store means a racing write already finished
	// the challenge; the stored state stands.
	if errors.Is(err, session.ErrTerminalStatus) {
		fresh, gerr := g.sessions.Get(ctx, rec.ID)
		if gerr == nil {
			*rec = *fresh
			return nil
		}
	}
	return storeError(err)
}

func (g *Gateway) resetAttempts(ctx context.Context, sessionID string) {
	if g.attempts == nil {
		return
	}
	_ = g.attempts.Reset(ctx, sessionID)
}

// recPurchase reconstructs the purchase context recorded with the session,
// for paths that re-run negotiation or validation against it.
func recPurchase(rec *session.Record) PurchaseContext {
	return PurchaseContext{
		Amount:            rec.Amount,
		Currency:          rec.Currency,
		Country:           rec.Country,
		Partner:           rec.Partner,
		InstrumentID:      rec.InstrumentID,
		Language:          rec.Language,
		HasPreOrder:       rec.HasPreOrder,
		IsMOTO:            rec.IsMOTO,
		ChallengeScenario: ChallengeScenario(rec.ChallengeScenario),
		PurchaseOrderID:   rec.PurchaseOrderID,
		SuccessURL:        rec.SuccessURL,
		FailureURL:        rec.FailureURL,
	}
}
