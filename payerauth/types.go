package payerauth

import "encoding/json"

// TransactionStatus is the provider's raw transaction status code, following
// the 3-D Secure vocabulary.
type TransactionStatus string

const (
	// StatusY: authentication successful.
	StatusY TransactionStatus = "Y"
	// StatusA: attempted; proof of authentication generated.
	StatusA TransactionStatus = "A"
	// StatusC: challenge required, still in progress.
	StatusC TransactionStatus = "C"
	// StatusN: not authenticated; cardholder did not complete.
	StatusN TransactionStatus = "N"
	// StatusR: rejected by the issuer.
	StatusR TransactionStatus = "R"
	// StatusU: authentication could not be performed.
	StatusU TransactionStatus = "U"
	// StatusFR: rejected by the fraud screen before authentication.
	StatusFR TransactionStatus = "FR"
)

// TransactionStatusReason qualifies a TransactionStatus.
type TransactionStatusReason string

const (
	// ReasonNone is the absent reason.
	ReasonNone TransactionStatusReason = ""
	// ReasonTimedOut (TSR14): transaction timed out at the access control server.
	ReasonTimedOut TransactionStatusReason = "TSR14"
	// ReasonMaxChallenges (TSR19): cardholder exhausted the allowed challenge retries.
	ReasonMaxChallenges TransactionStatusReason = "TSR19"
)

// ChallengeCancelIndicator reports how an in-flight challenge ended early.
type ChallengeCancelIndicator string

const (
	CancelNone               ChallengeCancelIndicator = ""
	CancelledByCardholder    ChallengeCancelIndicator = "01"
	CancelSoftTransactionErr ChallengeCancelIndicator = "02"
	TransactionAbandoned     ChallengeCancelIndicator = "03"
	TransactionCReqTimedOut  ChallengeCancelIndicator = "04"
	TransactionTimedOut      ChallengeCancelIndicator = "05"
	CancelSoftUnknown        ChallengeCancelIndicator = "06"
	CancelledByRequestor     ChallengeCancelIndicator = "07"
)

// IsHard reports whether the indicator denotes a deliberate cardholder or
// requestor abandonment, or a challenge timeout. Hard indicators force a
// Cancelled or TimedOut outcome; soft ones (provider or transaction error,
// unknown cause) do not force a bad outcome on their own.
func (c ChallengeCancelIndicator) IsHard() bool {
	switch c {
	case CancelledByCardholder, CancelledByRequestor, TransactionAbandoned,
		TransactionCReqTimedOut, TransactionTimedOut:
		return true
	}
	return false
}

// IsTimeout reports whether the indicator denotes a challenge timeout.
func (c ChallengeCancelIndicator) IsTimeout() bool {
	return c == TransactionCReqTimedOut || c == TransactionTimedOut
}

// EnrollmentStatus is the enrollment-level outcome of session creation.
type EnrollmentStatus string

const (
	Enrolled              EnrollmentStatus = "Enrolled"
	NotEnrolled           EnrollmentStatus = "NotEnrolled"
	EnrollmentBypassed    EnrollmentStatus = "Bypassed"
	EnrollmentUnavailable EnrollmentStatus = "Unavailable"
)

// SessionRequest creates a provider-side payment session.
type SessionRequest struct {
	AccountID              string  `json:"accountId"`
	InstrumentID           string  `json:"piid"`
	Partner                string  `json:"partner"`
	Amount                 float64 `json:"amount"`
	Currency               string  `json:"currency"`
	Country                string  `json:"country"`
	Language               string  `json:"language,omitempty"`
	IsMOTO                 bool    `json:"isMoto,omitempty"`
	ChallengeScenario      string  `json:"challengeScenario,omitempty"`
	RequiresAuthentication bool    `json:"piRequiresAuthentication"`
	DeviceChannel          string  `json:"deviceChannel,omitempty"`
	PurchaseOrderID        string  `json:"purchaseOrderId,omitempty"`
}

// SessionResponse is the provider's answer to session creation.
type SessionResponse struct {
	SessionID        string           `json:"paymentSessionId"`
	EnrollmentStatus EnrollmentStatus `json:"enrollmentStatus"`
}

// MethodRequest asks for the 3-D Secure method (fingerprinting) URL.
type MethodRequest struct {
	SessionID string `json:"paymentSessionId"`
}

// MethodResponse carries the fingerprinting form data, when the issuer
// supports it.
type MethodResponse struct {
	MethodURL  string          `json:"threeDSMethodURL,omitempty"`
	FormInput  string          `json:"formInput,omitempty"`
	RawPayload json.RawMessage `json:"rawPayload,omitempty"`
}

// AuthRequest drives an authenticate call for an existing session.
type AuthRequest struct {
	SessionID               string            `json:"paymentSessionId"`
	SettingsVersion         string            `json:"settingsVersion,omitempty"`
	SettingsVersionTryCount int               `json:"settingsVersionTryCount,omitempty"`
	BrowserInfo             map[string]string `json:"browserInfo,omitempty"`
	SDKInfo                 map[string]string `json:"sdkInfo,omitempty"`
	MethodCompletion        string            `json:"threeDSMethodCompletionIndicator,omitempty"`
	NotificationURL         string            `json:"notificationUrl,omitempty"`
}

// AuthResponse is the raw authenticate outcome.
type AuthResponse struct {
	EnrollmentStatus        EnrollmentStatus        `json:"enrollmentStatus"`
	TransactionStatus       TransactionStatus       `json:"transStatus"`
	TransactionStatusReason TransactionStatusReason `json:"transStatusReason,omitempty"`
	AcsURL                  string                  `json:"acsUrl,omitempty"`
	AcsChallengeData        string                  `json:"acsChallengeData,omitempty"`
	ChallengeURL            string                  `json:"challengeUrl,omitempty"`
	CardHolderInfo          string                  `json:"cardHolderInfo,omitempty"`
	RawPayload              json.RawMessage         `json:"rawPayload,omitempty"`
}

// CompletionRequest finishes a challenge with the parameters posted back by
// the access control server.
type CompletionRequest struct {
	SessionID           string            `json:"paymentSessionId"`
	AuthorizationParams map[string]string `json:"authorizationParameters,omitempty"`
}

// CompletionResponse is the raw completion outcome.
type CompletionResponse struct {
	TransactionStatus        TransactionStatus        `json:"transStatus"`
	TransactionStatusReason  TransactionStatusReason  `json:"transStatusReason,omitempty"`
	ChallengeCancelIndicator ChallengeCancelIndicator `json:"challengeCancelIndicator,omitempty"`
	CardHolderInfo           string                   `json:"cardHolderInfo,omitempty"`
	RawPayload               json.RawMessage          `json:"rawPayload,omitempty"`
}

// RedirectRequest drives a legacy redirect-based (3-D Secure 1.x)
// authentication.
type RedirectRequest struct {
	SessionID       string `json:"paymentSessionId"`
	SuccessURL      string `json:"successUrl"`
	FailureURL      string `json:"failureUrl"`
	NotificationURL string `json:"notificationUrl,omitempty"`
}

// RedirectResponse carries the issuer redirect form for a legacy challenge.
type RedirectResponse struct {
	TransactionStatus TransactionStatus `json:"transStatus"`
	RedirectURL       string            `json:"redirectUrl,omitempty"`
	FormActionURL     string            `json:"formActionUrl,omitempty"`
	FormFields        map[string]string `json:"formFields,omitempty"`
	RawPayload        json.RawMessage   `json:"rawPayload,omitempty"`
}
