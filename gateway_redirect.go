package authgate

import (
	"context"
	"fmt"

	"github.com/altairpay/authgate/payerauth"
)

// AuthenticateRedirect drives a legacy redirect-based 3-D Secure 1.x
// authentication for markets still on that rail. The session must have been
// created with the legacy redirect challenge type and must carry success and
// failure URLs, since the issuer returns the cardholder by redirect only.
//
// The descriptor carries the issuer's redirect form; the challenge finishes
// through CompleteChallenge like any other.
func (g *Gateway) AuthenticateRedirect(ctx context.Context, accountID, sessionID string) (*ChallengeDescriptor, error) {
	rec, err := g.loadSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}
	if ChallengeType(rec.ChallengeType) != ChallengeLegacyRedirect {
		return nil, fmt.Errorf("%w: session is not a redirect challenge", ErrInvalidRequest)
	}
	if ChallengeStatus(rec.ChallengeStatus).IsTerminal() {
		return &ChallengeDescriptor{
			Session:          *toPaymentSession(rec),
			Type:             ChallengeLegacyRedirect,
			CompleteByItself: true,
		}, nil
	}
	if rec.SuccessURL == "" || rec.FailureURL == "" {
		return nil, fmt.Errorf("%w: redirect challenge requires success and failure urls", ErrInvalidRequest)
	}

	resp, perr := g.provider.AuthenticateRedirect(ctx, payerauth.RedirectRequest{
		SessionID:       rec.ID,
		SuccessURL:      rec.SuccessURL,
		FailureURL:      rec.FailureURL,
		NotificationURL: g.notificationURL(rec.ID),
	})
	if perr != nil {
		// Initiation failure: the cardholder never saw the issuer page.
		g.engageSafetyNet(ctx, rec, StatusByPassed, perr)
		if uerr := g.updateSession(ctx, rec); uerr != nil {
			return nil, uerr
		}
		return &ChallengeDescriptor{
			Session:          *toPaymentSession(rec),
			Type:             ChallengeLegacyRedirect,
			CompleteByItself: true,
		}, nil
	}

	// Legacy mapping is narrower than the 3DS2 one: the issuer either hands
	// back a form to render or a conclusive answer.
	var status ChallengeStatus
	switch resp.TransactionStatus {
	case payerauth.StatusC:
		status = StatusUnknown
	case payerauth.StatusY, payerauth.StatusA:
		status = StatusSucceeded
	default:
		status = StatusFailed
	}

	rec.ChallengeStatus = string(status)
	rec.ProviderPayload = resp.RawPayload
	if err := g.updateSession(ctx, rec); err != nil {
		return nil, err
	}

	if status == StatusFailed {
		g.metricInc(MetricChallengeFailed)
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditChallengeCompleted,
			AccountID:    rec.AccountID,
			Partner:      rec.Partner,
			SessionID:    rec.ID,
			InstrumentID: rec.InstrumentID,
			Status:       StatusFailed,
		})
		return nil, &ChallengeError{
			SessionID: rec.ID,
			Status:    StatusFailed,
			ErrorCode: CodeRejectedByProvider,
		}
	}

	desc := &ChallengeDescriptor{
		Session:       *toPaymentSession(rec),
		Type:          ChallengeLegacyRedirect,
		Redirection:   FullPageRedirect,
		RedirectURL:   resp.RedirectURL,
		FormActionURL: resp.FormActionURL,
		FormFields:    resp.FormFields,
	}
	if status == StatusSucceeded {
		desc.CompleteByItself = true
		g.metricInc(MetricChallengeSucceeded)
	} else {
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditChallengeStarted,
			AccountID:    rec.AccountID,
			Partner:      rec.Partner,
			SessionID:    rec.ID,
			InstrumentID: rec.InstrumentID,
			Status:       StatusUnknown,
			Success:      true,
		})
	}
	return desc, nil
}
