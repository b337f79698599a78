package session

import "encoding/json"

// Schema generations for the persisted record. V2 adds the purchase-order id
// and the enabled-flight snapshot; V1 records predate both and still decode.
const (
	SchemaV1 = 1
	SchemaV2 = 2
)

// Record is the durable payment-session entity. It is created once per
// challenge attempt, mutated only by the authentication coordinator, and read
// by the verification engine and status-polling callers.
//
// Revision is the store's optimistic token: every successful update advances
// it, and an update carrying a stale revision is rejected rather than lost.
type Record struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`

	InstrumentID      string  `json:"piid"`
	Partner           string  `json:"partner"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Country           string  `json:"country"`
	Language          string  `json:"language,omitempty"`
	HasPreOrder       bool    `json:"hasPreOrder,omitempty"`
	IsMOTO            bool    `json:"isMoto,omitempty"`
	ChallengeScenario string  `json:"challengeScenario,omitempty"`
	PurchaseOrderID   string  `json:"purchaseOrderId,omitempty"`
	SuccessURL        string  `json:"successUrl,omitempty"`
	FailureURL        string  `json:"failureUrl,omitempty"`

	ChallengeStatus     string `json:"challengeStatus"`
	ChallengeType       string `json:"challengeType,omitempty"`
	IsChallengeRequired bool   `json:"isChallengeRequired"`

	ProtocolVersion string   `json:"protocolVersion,omitempty"`
	EnabledFlights  []string `json:"enabledFlights,omitempty"`

	// ProviderPayload is the raw provider response recorded with the last
	// status transition, kept opaque for the renderer and for diagnosis.
	ProviderPayload json.RawMessage `json:"providerPayload,omitempty"`

	// IsSystemError marks sessions degraded by the safety net while a
	// challenge was nominally required.
	IsSystemError bool `json:"isSystemError,omitempty"`

	SchemaVersion int   `json:"-"`
	Revision      int64 `json:"-"`
	CreatedAt     int64 `json:"createdAt"`
	UpdatedAt     int64 `json:"updatedAt,omitempty"`
}

// DerivedRecord is the instrument-scoped session index: a small record keyed
// by instrument id rather than session id, written when instrument-scoped
// lookup is enabled.
type DerivedRecord struct {
	SessionID          string   `json:"sessionId"`
	InstrumentID       string   `json:"piid"`
	RequiredChallenges []string `json:"requiredChallenge,omitempty"`
}
