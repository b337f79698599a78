package authgate

import (
	"errors"
	"fmt"
)

var (
	// ErrInstrumentNotFound is returned when the instrument does not exist or
	// is not owned by the requesting account. The two cases are deliberately
	// indistinguishable.
	ErrInstrumentNotFound = errors.New("payment instrument not found")
	// ErrSessionNotFound is returned when the session does not exist or
	// belongs to a different account. The two cases are deliberately
	// indistinguishable.
	ErrSessionNotFound = errors.New("payment session not found")
	// ErrInvalidRequest is returned for missing or malformed request input.
	ErrInvalidRequest = errors.New("invalid request data")
	// ErrInvalidAccountID is returned when the instrument-owning account
	// override does not resolve to a known account.
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrVersionMismatch is returned when protocol-version negotiation fails.
	// It is always wrapped in a VersionMismatchError carrying the target.
	ErrVersionMismatch = errors.New("settings version mismatch")
	// ErrChallengeFailed is returned when an active, cardholder-facing
	// challenge conclusively failed. It is wrapped in a ChallengeError
	// carrying the provider's display message.
	ErrChallengeFailed = errors.New("challenge failed")
	// ErrAttemptsExceeded is returned when a session has exhausted its
	// authenticate attempts.
	ErrAttemptsExceeded = errors.New("authenticate attempts exceeded")
	// ErrStoreUnavailable is returned when the session store backend is
	// unreachable.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrGatewayNotReady is returned when the gateway was not fully built.
	ErrGatewayNotReady = errors.New("gateway not initialized")
)

// VersionMismatchError reports a protocol-version negotiation failure along
// with the version the client should move to. It is detected before any
// authentication side effect runs.
type VersionMismatchError struct {
	Reported string
	Target   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("settings version mismatch: reported %q, target %q", e.Reported, e.Target)
}

// Unwrap makes errors.Is(err, ErrVersionMismatch) hold.
func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// ChallengeError is a terminal challenge failure surfaced to the caller once a
// cardholder was already engaged with the challenge. UserDisplayMessage is the
// provider's cardholder-facing text and may be empty.
type ChallengeError struct {
	SessionID          string
	Status             ChallengeStatus
	ErrorCode          string
	UserDisplayMessage string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("challenge %s: %s (%s)", e.SessionID, e.Status, e.ErrorCode)
}

// Unwrap makes errors.Is(err, ErrChallengeFailed) hold.
func (e *ChallengeError) Unwrap() error { return ErrChallengeFailed }

// ServiceError is the wire-level error envelope: a machine error code, a
// message, and an inner error carrying the cardholder-facing display message.
type ServiceError struct {
	ErrorCode  string      `json:"errorCode"`
	Message    string      `json:"message"`
	InnerError *InnerError `json:"innerError,omitempty"`
}

// InnerError carries the machine code and display message of a ServiceError.
type InnerError struct {
	Code               string `json:"code"`
	Message            string `json:"message,omitempty"`
	UserDisplayMessage string `json:"userDisplayMessage,omitempty"`
	Target             string `json:"target,omitempty"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// Wire error codes used in the ServiceError envelope.
const (
	CodeInstrumentNotFound      = "PaymentInstrumentNotFound"
	CodeSessionNotFound         = "SessionNotFound"
	CodeInvalidRequestData      = "InvalidRequestData"
	CodeInvalidAccountID        = "InvalidAccountId"
	CodeSettingsVersionMismatch = "SettingsVersionMismatch"
	CodeRejectedByProvider      = "RejectedByProvider"
	CodeInternalServerError     = "InternalServerError"
)
