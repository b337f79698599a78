package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/altairpay/authgate/internal/version"
	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
	"github.com/altairpay/authgate/session"
	"github.com/google/uuid"
)

// CreateSessionRequest is the input to CreateSession and
// CreateAndAuthenticate.
type CreateSessionRequest struct {
	Purchase PurchaseContext
	// SettingsVersion is the challenge-protocol version the client runs.
	// Empty means the configured default.
	SettingsVersion string
	// Flights overrides flight resolution for this request. Nil means the
	// gateway's resolver decides.
	Flights *policy.Snapshot
}

// CreateSession decides whether the purchase needs a challenge and opens a
// payment session recording that decision.
//
// Version negotiation runs before anything else: a version-incompatible
// client is turned away with no session created and no provider call made.
// Provider failures never fail this operation; the safety net degrades the
// session to a non-challenged one instead, since at this point no cardholder
// has engaged with a challenge yet.
func (g *Gateway) CreateSession(ctx context.Context, accountID string, req CreateSessionRequest) (*PaymentSession, error) {
	rec, err := g.createSession(ctx, accountID, req)
	if err != nil {
		return nil, err
	}
	return toPaymentSession(rec), nil
}

func (g *Gateway) createSession(ctx context.Context, accountID string, req CreateSessionRequest) (*session.Record, error) {
	if g == nil || g.sessions == nil {
		return nil, ErrGatewayNotReady
	}
	pc := req.Purchase
	if err := validatePurchase(accountID, pc); err != nil {
		return nil, err
	}

	flights := g.flightsFor(req.Flights, pc.Partner, pc.Country)

	if err := g.negotiateVersion(ctx, accountID, pc, flights, req.SettingsVersion); err != nil {
		return nil, err
	}

	caller := callerFromContext(ctx)
	caller.AccountID = accountID

	pi, err := g.resolveInstrument(ctx, caller, pc)
	if err != nil {
		return nil, err
	}

	decision := g.resolveRequirement(caller, pc, pi, flights)

	rec := newSessionRecord(accountID, pc, decision, flights, req.SettingsVersion, g.config.Versioning.Default)

	if decision.Required {
		resp, perr := g.provider.CreateSession(ctx, payerauth.SessionRequest{
			AccountID:              accountID,
			InstrumentID:           pc.InstrumentID,
			Partner:                pc.Partner,
			Amount:                 pc.Amount,
			Currency:               pc.Currency,
			Country:                pc.Country,
			Language:               pc.Language,
			IsMOTO:                 pc.IsMOTO,
			ChallengeScenario:      string(pc.ChallengeScenario),
			RequiresAuthentication: true,
			PurchaseOrderID:        pc.PurchaseOrderID,
		})
		switch {
		case perr != nil:
			g.engageSafetyNet(ctx, rec, StatusNotApplicable, perr)
		case resp.SessionID != "":
			rec.ID = resp.SessionID
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if err := g.sessions.Create(ctx, rec); err != nil {
		return nil, storeError(err)
	}
	if flights.Enabled(policy.FlagInstrumentScopedLookup) {
		derived := &session.DerivedRecord{
			SessionID:          rec.ID,
			InstrumentID:       pc.InstrumentID,
			RequiredChallenges: pi.RequiredChallenges,
		}
		if derr := g.sessions.PutDerived(ctx, derived); derr != nil {
			// The index is an optimization; the session itself is durable.
			g.emitAudit(ctx, AuditEvent{
				Type:      AuditSessionCreated,
				AccountID: accountID,
				SessionID: rec.ID,
				Error:     fmt.Sprintf("derived index write failed: %v", derr),
			})
		}
	}

	g.metricInc(MetricSessionCreated)
	if rec.IsChallengeRequired {
		g.metricInc(MetricChallengeRequired)
	} else {
		g.metricInc(MetricChallengeNotRequired)
	}
	g.emitAudit(ctx, AuditEvent{
		Type:         AuditSessionCreated,
		AccountID:    accountID,
		Partner:      pc.Partner,
		SessionID:    rec.ID,
		InstrumentID: pc.InstrumentID,
		Status:       ChallengeStatus(rec.ChallengeStatus),
		Success:      true,
	})
	return rec, nil
}

// GetSession returns the caller-facing view of a session. A session owned by
// a different account reads as not found.
func (g *Gateway) GetSession(ctx context.Context, accountID, sessionID string) (*PaymentSession, error) {
	rec, err := g.loadSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}
	return toPaymentSession(rec), nil
}

// engageSafetyNet degrades rec after a provider failure observed before any
// cardholder-facing step. At session creation the challenge decision itself
// is withdrawn (NotApplicable); after creation the requirement stands and the
// challenge is recorded as deliberately skipped (ByPassed).
func (g *Gateway) engageSafetyNet(ctx context.Context, rec *session.Record, status ChallengeStatus, perr error) {
	g.metricInc(MetricProviderError)
	g.metricInc(MetricSafetyNet)
	rec.ChallengeStatus = string(status)
	rec.IsSystemError = true
	if status == StatusNotApplicable {
		rec.IsChallengeRequired = false
	}
	g.emitAudit(ctx, AuditEvent{
		Type:         AuditSafetyNetEngaged,
		AccountID:    rec.AccountID,
		Partner:      rec.Partner,
		InstrumentID: rec.InstrumentID,
		Status:       status,
		Success:      true,
		Error:        perr.Error(),
	})
}

// negotiateVersion runs settings-version negotiation for the request, with
// the retry count from ctx suppressing a mismatch on later attempts.
func (g *Gateway) negotiateVersion(ctx context.Context, accountID string, pc PurchaseContext, flights policy.Snapshot, reported string) error {
	mismatch := version.Negotiate(version.Config{
		Minimum:    g.config.Versioning.Minimum,
		Default:    g.config.Versioning.Default,
		Additional: g.config.Versioning.Additional,
	}, flights, reported, tryCountFromContext(ctx))
	if mismatch == nil {
		return nil
	}
	g.metricInc(MetricVersionMismatch)
	g.emitAudit(ctx, AuditEvent{
		Type:         AuditVersionMismatch,
		AccountID:    accountID,
		Partner:      pc.Partner,
		InstrumentID: pc.InstrumentID,
		Metadata: map[string]string{
			"reported": mismatch.Reported,
			"target":   mismatch.Target,
		},
	})
	return &VersionMismatchError{Reported: mismatch.Reported, Target: mismatch.Target}
}

// loadSession fetches a record and enforces ownership. A wrong-account read
// and a missing session are the same error.
func (g *Gateway) loadSession(ctx context.Context, accountID, sessionID string) (*session.Record, error) {
	if g == nil || g.sessions == nil {
		return nil, ErrGatewayNotReady
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidRequest)
	}
	rec, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, storeError(err)
	}
	if rec.AccountID != accountID {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// resolveLookupKey picks which session id a status or verification query
// reads. Precedence: when instrument-scoped lookup is flighted on AND a
// derived index record exists for the instrument, the indexed session wins;
// in every other case the caller-supplied id is used as-is. The derived
// record is written at creation, so the indexed session is the most recent
// challenge attempt for the instrument.
func (g *Gateway) resolveLookupKey(ctx context.Context, flights policy.Snapshot, sessionID, instrumentID string) string {
	if !flights.Enabled(policy.FlagInstrumentScopedLookup) || instrumentID == "" {
		return sessionID
	}
	derived, err := g.sessions.GetDerived(ctx, instrumentID)
	if err != nil || derived.SessionID == "" {
		return sessionID
	}
	return derived.SessionID
}

func newSessionRecord(accountID string, pc PurchaseContext, decision requirementDecision, flights policy.Snapshot, reportedVersion, defaultVersion string) *session.Record {
	protocol := reportedVersion
	if protocol == "" {
		protocol = defaultVersion
	}
	rec := &session.Record{
		AccountID:           accountID,
		InstrumentID:        pc.InstrumentID,
		Partner:             pc.Partner,
		Amount:              pc.Amount,
		Currency:            pc.Currency,
		Country:             pc.Country,
		Language:            pc.Language,
		HasPreOrder:         pc.HasPreOrder,
		IsMOTO:              pc.IsMOTO,
		ChallengeScenario:   string(pc.ChallengeScenario),
		PurchaseOrderID:     pc.PurchaseOrderID,
		SuccessURL:          pc.SuccessURL,
		FailureURL:          pc.FailureURL,
		ChallengeStatus:     string(decision.Status),
		ChallengeType:       string(decision.Type),
		IsChallengeRequired: decision.Required,
		ProtocolVersion:     protocol,
	}
	if flights.Enabled(policy.FlagSessionSchemaV2) {
		rec.SchemaVersion = session.SchemaV2
		rec.EnabledFlights = flights.Names()
	} else {
		rec.SchemaVersion = session.SchemaV1
	}
	return rec
}

func toPaymentSession(rec *session.Record) *PaymentSession {
	s := &PaymentSession{
		ID:                  rec.ID,
		IsChallengeRequired: rec.IsChallengeRequired,
		ChallengeStatus:     ChallengeStatus(rec.ChallengeStatus),
		ChallengeType:       ChallengeType(rec.ChallengeType),
		InstrumentID:        rec.InstrumentID,
		Partner:             rec.Partner,
		Amount:              rec.Amount,
		Currency:            rec.Currency,
		Country:             rec.Country,
		Language:            rec.Language,
		HasPreOrder:         rec.HasPreOrder,
		IsMOTO:              rec.IsMOTO,
		ChallengeScenario:   ChallengeScenario(rec.ChallengeScenario),
		PurchaseOrderID:     rec.PurchaseOrderID,
	}
	return s
}

func validatePurchase(accountID string, pc PurchaseContext) error {
	switch {
	case accountID == "":
		return fmt.Errorf("%w: account id required", ErrInvalidRequest)
	case pc.InstrumentID == "":
		return fmt.Errorf("%w: payment instrument id required", ErrInvalidRequest)
	case pc.Currency == "":
		return fmt.Errorf("%w: currency required", ErrInvalidRequest)
	case pc.Country == "":
		return fmt.Errorf("%w: country required", ErrInvalidRequest)
	case pc.Partner == "":
		return fmt.Errorf("%w: partner required", ErrInvalidRequest)
	case pc.Amount < 0:
		return fmt.Errorf("%w: negative amount", ErrInvalidRequest)
	case strings.ContainsAny(pc.InstrumentID, " \t\r\n"):
		return fmt.Errorf("%w: malformed payment instrument id", ErrInvalidRequest)
	}
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrBackend):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
