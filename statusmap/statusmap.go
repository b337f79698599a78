// Package statusmap maps raw authentication-provider outcomes to a canonical
// challenge status. The mapping is a total function: every representable
// input yields exactly one outcome.
//
// Deployments can override individual mappings through a rule table. Rules
// are data, matched by specificity, and always win over the default mapping.
// Historically these overrides were encoded in free-form toggle names parsed
// per request; here they are loaded once into a Table.
package statusmap

import (
	"sort"

	"github.com/altairpay/authgate/payerauth"
)

// Outcome is the canonical challenge status the mapper lands on. Values match
// the gateway's ChallengeStatus vocabulary.
type Outcome string

const (
	Unknown             Outcome = "Unknown"
	NotApplicable       Outcome = "NotApplicable"
	ByPassed            Outcome = "ByPassed"
	Succeeded           Outcome = "Succeeded"
	Failed              Outcome = "Failed"
	Cancelled           Outcome = "Cancelled"
	TimedOut            Outcome = "TimedOut"
	InternalServerError Outcome = "InternalServerError"
)

// Wildcard matches any reason or cancel indicator in a rule.
const Wildcard = "_"

// Input is the raw outcome triple plus the enrollment/poll-level status and
// the MOTO marker that shifts the default success mapping to ByPassed.
type Input struct {
	Status payerauth.TransactionStatus
	Reason payerauth.TransactionStatusReason
	Cancel payerauth.ChallengeCancelIndicator
	MOTO   bool
}

// Rule overrides the outcome for outcomes matching the pattern. Status is
// exact; Reason and Cancel are exact or Wildcard.
type Rule struct {
	Status  payerauth.TransactionStatus
	Reason  string
	Cancel  string
	Outcome Outcome
}

func (r Rule) specificity() int {
	// Exact fields beat wildcards; an exact cancel indicator beats an exact
	// reason, mirroring the probe order of the flight-based predecessor.
	s := 0
	if r.Cancel != Wildcard {
		s += 2
	}
	if r.Reason != Wildcard {
		s += 1
	}
	return s
}

func (r Rule) matches(in Input) bool {
	if r.Status != in.Status {
		return false
	}
	if r.Reason != Wildcard && r.Reason != string(in.Reason) {
		return false
	}
	if r.Cancel != Wildcard && r.Cancel != string(in.Cancel) {
		return false
	}
	return true
}

// Table is an ordered override rule set. The zero value has no overrides.
type Table struct {
	rules []Rule
}

// NewTable builds a Table, ordering rules most-specific-first. Relative order
// of equally specific rules is preserved.
func NewTable(rules ...Rule) *Table {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].specificity() > sorted[j].specificity()
	})
	return &Table{rules: sorted}
}

func (t *Table) lookup(in Input) (Outcome, bool) {
	if t == nil {
		return "", false
	}
	for _, r := range t.rules {
		if r.matches(in) {
			return r.Outcome, true
		}
	}
	return "", false
}

// MapAuthentication maps the outcome of an authenticate call. An override
// always wins when it matches, except that a fraud rejection (FR) is Failed
// unconditionally.
func MapAuthentication(in Input, overrides *Table) Outcome {
	if in.Status == payerauth.StatusFR {
		return Failed
	}
	if out, ok := overrides.lookup(in); ok {
		return out
	}
	switch in.Status {
	case payerauth.StatusC:
		return Unknown
	case payerauth.StatusR:
		return Failed
	case payerauth.StatusN:
		if in.Reason == payerauth.ReasonMaxChallenges {
			return Failed
		}
		fallthrough
	default:
		if in.MOTO {
			return ByPassed
		}
		return Succeeded
	}
}

// MapCompletion maps the outcome of a challenge-completion call.
func MapCompletion(in Input, overrides *Table) Outcome {
	if out, ok := overrides.lookup(in); ok {
		return out
	}
	switch in.Status {
	case payerauth.StatusR, payerauth.StatusFR, payerauth.StatusU:
		return Failed
	case payerauth.StatusC:
		return Unknown
	case payerauth.StatusN:
		if in.Cancel.IsHard() {
			if in.Cancel.IsTimeout() {
				return TimedOut
			}
			return Cancelled
		}
		if in.Cancel == payerauth.CancelNone && in.Reason == payerauth.ReasonTimedOut {
			return TimedOut
		}
		if in.Reason == payerauth.ReasonMaxChallenges {
			return Failed
		}
		// Soft cancel indicators (provider or transaction error, unknown
		// cause) do not force a bad outcome.
		return Succeeded
	default:
		return Succeeded
	}
}
