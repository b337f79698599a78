package authgate

import (
	"context"
	"errors"
	"net/url"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/session"
	"github.com/altairpay/authgate/statusmap"
)

// BrowserAuthenticate drives an authenticate attempt for a browser client and
// forces the full-page redirect rendering strategy. On a terminal outcome the
// descriptor also carries the redirect back to the caller's success or
// failure URL.
func (g *Gateway) BrowserAuthenticate(ctx context.Context, accountID, sessionID string, req AuthenticateRequest) (*ChallengeDescriptor, error) {
	return g.browserAuthenticate(ctx, accountID, sessionID, req, FullPageRedirect)
}

// BrowserAuthenticateIframe is BrowserAuthenticate rendered inside an
// embedded frame instead of a full-page redirect.
func (g *Gateway) BrowserAuthenticateIframe(ctx context.Context, accountID, sessionID string, req AuthenticateRequest) (*ChallengeDescriptor, error) {
	return g.browserAuthenticate(ctx, accountID, sessionID, req, EmbeddedFrame)
}

func (g *Gateway) browserAuthenticate(ctx context.Context, accountID, sessionID string, req AuthenticateRequest, redirection RedirectionType) (*ChallengeDescriptor, error) {
	rec, err := g.loadSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}
	desc, err := g.authenticate(ctx, rec, req)
	if err != nil {
		var cerr *ChallengeError
		if errors.As(err, &cerr) && rec.FailureURL != "" {
			return &ChallengeDescriptor{
				Session:     *toPaymentSession(rec),
				Type:        ChallengeType(rec.ChallengeType),
				Redirection: redirection,
				RedirectURL: failureRedirectURL(rec.FailureURL, cerr),
			}, nil
		}
		return nil, err
	}
	desc.Redirection = redirection
	if desc.CompleteByItself && rec.SuccessURL != "" {
		desc.RedirectURL = successRedirectURL(rec.SuccessURL, rec)
	}
	return desc, nil
}

// CompleteChallenge finishes a challenge with the parameters the access
// control server posted back. It is the callback leg, so there is no caller
// account: the session id in the callback is the authority.
//
// By this point the cardholder was engaged with the challenge, so a provider
// failure is a terminal InternalServerError rather than a safety-net bypass.
func (g *Gateway) CompleteChallenge(ctx context.Context, sessionID string, params map[string]string) (*ChallengeDescriptor, error) {
	if g == nil || g.sessions == nil {
		return nil, ErrGatewayNotReady
	}
	rec, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, storeError(err)
	}
	if ChallengeStatus(rec.ChallengeStatus).IsTerminal() {
		return g.completionDescriptor(rec, ""), nil
	}

	resp, perr := g.provider.CompleteChallenge(ctx, payerauth.CompletionRequest{
		SessionID:           rec.ID,
		AuthorizationParams: params,
	})
	if perr != nil {
		g.metricInc(MetricProviderError)
		rec.ChallengeStatus = string(StatusInternalServerError)
		if uerr := g.updateSession(ctx, rec); uerr != nil {
			return nil, uerr
		}
		g.resetAttempts(ctx, rec.ID)
		g.emitAudit(ctx, AuditEvent{
			Type:         AuditChallengeCompleted,
			AccountID:    rec.AccountID,
			Partner:      rec.Partner,
			SessionID:    rec.ID,
			InstrumentID: rec.InstrumentID,
			Status:       StatusInternalServerError,
			Error:        perr.Error(),
		})
		return nil, &ChallengeError{
			SessionID: rec.ID,
			Status:    StatusInternalServerError,
			ErrorCode: CodeInternalServerError,
		}
	}

	outcome := statusmap.MapCompletion(statusmap.Input{
		Status: resp.TransactionStatus,
		Reason: resp.TransactionStatusReason,
		Cancel: resp.ChallengeCancelIndicator,
		MOTO:   rec.IsMOTO,
	}, g.compOverrides)

	rec.ChallengeStatus = string(outcome)
	rec.ProviderPayload = resp.RawPayload
	if err := g.updateSession(ctx, rec); err != nil {
		return nil, err
	}
	if ChallengeStatus(rec.ChallengeStatus).IsTerminal() {
		g.resetAttempts(ctx, rec.ID)
	}

	status := ChallengeStatus(rec.ChallengeStatus)
	switch {
	case status.IsGood():
		g.metricInc(MetricChallengeSucceeded)
	case status == StatusCancelled || status == StatusTimedOut:
		g.metricInc(MetricChallengeCancelled)
	case status == StatusFailed:
		g.metricInc(MetricChallengeFailed)
	}
	g.emitAudit(ctx, AuditEvent{
		Type:         AuditChallengeCompleted,
		AccountID:    rec.AccountID,
		Partner:      rec.Partner,
		SessionID:    rec.ID,
		InstrumentID: rec.InstrumentID,
		Status:       status,
		Success:      status.IsGood(),
	})
	return g.completionDescriptor(rec, resp.CardHolderInfo), nil
}

// completionDescriptor builds the post-completion descriptor, including the
// redirect back to the caller when one was registered at creation.
func (g *Gateway) completionDescriptor(rec *session.Record, displayMessage string) *ChallengeDescriptor {
	desc := &ChallengeDescriptor{
		Session:          *toPaymentSession(rec),
		Type:             ChallengeType(rec.ChallengeType),
		Redirection:      g.redirectionFor(rec.Partner, rec.Country),
		CompleteByItself: true,
	}
	status := ChallengeStatus(rec.ChallengeStatus)
	switch {
	case status.IsGood() && rec.SuccessURL != "":
		desc.RedirectURL = successRedirectURL(rec.SuccessURL, rec)
	case !status.IsGood() && rec.FailureURL != "":
		desc.RedirectURL = failureRedirectURL(rec.FailureURL, &ChallengeError{
			SessionID:          rec.ID,
			Status:             status,
			ErrorCode:          CodeRejectedByProvider,
			UserDisplayMessage: displayMessage,
		})
	}
	return desc
}

// successRedirectURL appends the challenge outcome to the caller's success
// URL: challengeStatus, sessionId, and the instrument id.
func successRedirectURL(base string, rec *session.Record) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("challengeStatus", rec.ChallengeStatus)
	q.Set("sessionId", rec.ID)
	q.Set("piid", rec.InstrumentID)
	u.RawQuery = q.Encode()
	return u.String()
}

// failureRedirectURL appends the failure details to the caller's failure URL:
// errorCode, errorMessage, and the cardholder-facing display message.
func failureRedirectURL(base string, cerr *ChallengeError) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("errorCode", cerr.ErrorCode)
	q.Set("errorMessage", string(cerr.Status))
	if cerr.UserDisplayMessage != "" {
		q.Set("userDisplayMessage", cerr.UserDisplayMessage)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
