package authgate

import (
	"context"
	"time"
)

// ChallengeStatus is the canonical outcome of a challenge attempt. It is a
// closed set: the status mapper is total over provider outcomes and always
// lands on one of these values.
type ChallengeStatus string

const (
	// StatusUnknown means the challenge has been created but not resolved.
	StatusUnknown ChallengeStatus = "Unknown"
	// StatusNotApplicable means no challenge was required for the purchase.
	StatusNotApplicable ChallengeStatus = "NotApplicable"
	// StatusByPassed means a required challenge was deliberately skipped
	// (MOTO, degraded provider) and the purchase may proceed.
	StatusByPassed ChallengeStatus = "ByPassed"
	// StatusSucceeded means the cardholder completed the challenge.
	StatusSucceeded ChallengeStatus = "Succeeded"
	// StatusFailed means the challenge conclusively did not succeed.
	StatusFailed ChallengeStatus = "Failed"
	// StatusCancelled means the cardholder or requestor abandoned the challenge.
	StatusCancelled ChallengeStatus = "Cancelled"
	// StatusTimedOut means the challenge expired before completion.
	StatusTimedOut ChallengeStatus = "TimedOut"
	// StatusInternalServerError records a provider failure observed while a
	// challenge was already in flight.
	StatusInternalServerError ChallengeStatus = "InternalServerError"
)

// IsTerminal reports whether the status is final for the attempt. Terminal
// statuses are never overwritten by a later poll of the same attempt.
func (s ChallengeStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusTimedOut, StatusInternalServerError:
		return true
	}
	return false
}

// IsGood reports whether the status counts as verified for attestation.
func (s ChallengeStatus) IsGood() bool {
	return s == StatusSucceeded || s == StatusByPassed || s == StatusNotApplicable
}

// ChallengeType identifies the kind of challenge selected at session creation.
// It is fixed for the lifetime of the session.
type ChallengeType string

const (
	ChallengeNone             ChallengeType = ""
	ChallengeValidateOnAttach ChallengeType = "ValidatePIOnAttach"
	ChallengePSD2             ChallengeType = "PSD2Challenge"
	ChallengeLegacyRedirect   ChallengeType = "India3DSChallenge"
	ChallengeCvv              ChallengeType = "Cvv"
)

// ChallengeScenario describes why the challenge is being run.
type ChallengeScenario string

const (
	ScenarioPaymentTransaction   ChallengeScenario = "PaymentTransaction"
	ScenarioRecurringTransaction ChallengeScenario = "RecurringTransaction"
	ScenarioAddCard              ChallengeScenario = "AddCard"
)

// RedirectionType is the rendering strategy the gateway selects for a
// challenge. The gateway never renders UI itself; the descriptor consumer does.
type RedirectionType string

const (
	FullPageRedirect RedirectionType = "FullPageRedirect"
	InlineRedirect   RedirectionType = "InlineRedirect"
	EmbeddedFrame    RedirectionType = "EmbeddedFrame"
)

// PurchaseContext is the ephemeral request input describing the purchase a
// challenge decision is being made for. It is never persisted directly; the
// session keeps its own snapshot of the fields that matter for later
// cross-validation.
type PurchaseContext struct {
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	Country           string            `json:"country"`
	Partner           string            `json:"partner"`
	InstrumentID      string            `json:"piid"`
	Language          string            `json:"language,omitempty"`
	HasPreOrder       bool              `json:"hasPreOrder,omitempty"`
	IsMOTO            bool              `json:"isMOTO,omitempty"`
	ChallengeScenario ChallengeScenario `json:"challengeScenario,omitempty"`
	RedeemRewards     bool              `json:"redeemRewards,omitempty"`
	RewardsPoints     int64             `json:"rewardsPoints,omitempty"`
	PurchaseOrderID   string            `json:"purchaseOrderId,omitempty"`
	SuccessURL        string            `json:"successUrl,omitempty"`
	FailureURL        string            `json:"failureUrl,omitempty"`

	// InstrumentAccountID overrides the caller account as the instrument's
	// owning account, for flows where a billing account holds the instrument.
	InstrumentAccountID string `json:"piAccountId,omitempty"`
}

// PaymentSession is the caller-facing view of a challenge session.
type PaymentSession struct {
	ID                  string            `json:"id"`
	IsChallengeRequired bool              `json:"isChallengeRequired"`
	ChallengeStatus     ChallengeStatus   `json:"challengeStatus"`
	ChallengeType       ChallengeType     `json:"challengeType,omitempty"`
	InstrumentID        string            `json:"piid"`
	Partner             string            `json:"partner"`
	Amount              float64           `json:"amount"`
	Currency            string            `json:"currency"`
	Country             string            `json:"country"`
	Language            string            `json:"language,omitempty"`
	HasPreOrder         bool              `json:"hasPreOrder,omitempty"`
	IsMOTO              bool              `json:"isMOTO,omitempty"`
	ChallengeScenario   ChallengeScenario `json:"challengeScenario,omitempty"`
	PurchaseOrderID     string            `json:"purchaseOrderId,omitempty"`
	UserDisplayMessage  string            `json:"userDisplayMessage,omitempty"`
}

// ChallengeDescriptor is what the gateway hands to the external renderer: the
// challenge kind, the chosen redirection strategy, and the raw data needed to
// build the next user-facing step.
type ChallengeDescriptor struct {
	Session          PaymentSession    `json:"session"`
	Type             ChallengeType     `json:"type"`
	Redirection      RedirectionType   `json:"redirection,omitempty"`
	ChallengeURL     string            `json:"challengeUrl,omitempty"`
	MethodURL        string            `json:"methodUrl,omitempty"`
	RedirectURL      string            `json:"redirectUrl,omitempty"`
	FormActionURL    string            `json:"formActionUrl,omitempty"`
	FormFields       map[string]string `json:"formFields,omitempty"`
	CompleteByItself bool              `json:"completeByItself,omitempty"`
}

// VerificationResult names the reason a purchase-context cross-check failed.
type VerificationResult string

const (
	VerificationSuccess   VerificationResult = "Success"
	CurrencyMismatch      VerificationResult = "CurrencyMismatch"
	CountryMismatch       VerificationResult = "CountryMismatch"
	AmountMismatch        VerificationResult = "AmountMismatch"
	PurchaseOrderMismatch VerificationResult = "PurchaseOrderMismatch"
)

// VerificationOutcome is the verification engine's answer to "is this
// instrument+session verified for this purchase".
type VerificationOutcome struct {
	Verified        bool               `json:"verified"`
	InstrumentID    string             `json:"piid"`
	SessionID       string             `json:"sessionId"`
	ChallengeStatus ChallengeStatus    `json:"challengeStatus"`
	FailureReason   VerificationResult `json:"failureReason,omitempty"`
}

// CallerIdentity is the authenticated identity a request arrived with. The
// partner field is what caller-scoped relaxations in the verification engine
// are matched against; an empty identity never matches a relaxation.
type CallerIdentity struct {
	AccountID string
	Partner   string
}

// InstrumentFamily is a coarse classification of payment instruments used by
// the requirement resolver's policy rules.
type InstrumentFamily string

const (
	FamilyCreditCard    InstrumentFamily = "credit_card"
	FamilyExpressWallet InstrumentFamily = "express_wallet"
	FamilyDirectDebit   InstrumentFamily = "direct_debit"
	FamilyStoredValue   InstrumentFamily = "stored_value"
)

// PaymentInstrument is the slice of the instrument catalog record the gateway
// consumes: ownership plus the issuer-declared required-challenge set.
type PaymentInstrument struct {
	ID                 string
	AccountID          string
	Family             InstrumentFamily
	Scheme             string
	IssuerCountry      string
	RequiredChallenges []string
}

// RequiresChallenge reports whether the instrument's required-challenge set
// names the given challenge kind (e.g. "3ds2", "3ds", "cvv").
func (pi *PaymentInstrument) RequiresChallenge(kind string) bool {
	if pi == nil {
		return false
	}
	for _, c := range pi.RequiredChallenges {
		if c == kind {
			return true
		}
	}
	return false
}

// InstrumentStore is the external instrument-catalog client.
//
// Get verifies ownership: it must fail with a not-found style error when the
// instrument does not belong to accountID. GetExtended returns the extended
// view without verifying ownership and is used only where policy explicitly
// allows skipping the ownership precheck.
type InstrumentStore interface {
	Get(ctx context.Context, accountID, instrumentID string) (*PaymentInstrument, error)
	GetExtended(ctx context.Context, instrumentID string) (*PaymentInstrument, error)
}

// AuditEventType identifies a gateway audit event.
type AuditEventType string

const (
	AuditSessionCreated      AuditEventType = "session_created"
	AuditChallengeStarted    AuditEventType = "challenge_started"
	AuditChallengeCompleted  AuditEventType = "challenge_completed"
	AuditSafetyNetEngaged    AuditEventType = "safety_net_engaged"
	AuditVerificationChecked AuditEventType = "verification_checked"
	AuditOwnershipRejected   AuditEventType = "ownership_rejected"
	AuditVersionMismatch     AuditEventType = "version_mismatch"
)

// AuditEvent is one gateway audit record handed to the configured sink.
type AuditEvent struct {
	Type         AuditEventType
	Timestamp    time.Time
	AccountID    string
	Partner      string
	SessionID    string
	InstrumentID string
	Status       ChallengeStatus
	Success      bool
	Error        string
	Metadata     map[string]string
}

// AuditSink receives audit events from the gateway's dispatcher. Emit must be
// safe for concurrent use and should not block for long; the dispatcher
// buffers and optionally drops under pressure.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all audit events.
type NoOpSink struct{}

// Emit implements AuditSink.
func (NoOpSink) Emit(context.Context, AuditEvent) {}
