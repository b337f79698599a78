package authgate

import (
	"context"
	"errors"
	"testing"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
)

func TestPollStatusReadsRecordedState(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := h.gateway.PollStatus(context.Background(), "acct-1", ps.ID)
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if got.ChallengeStatus != StatusUnknown {
		t.Fatalf("status = %q, want Unknown before any attempt", got.ChallengeStatus)
	}

	if _, err := h.gateway.Authenticate(context.Background(), "acct-1", ps.ID, AuthenticateRequest{}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	got, err = h.gateway.PollStatus(context.Background(), "acct-1", ps.ID)
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if got.ChallengeStatus != StatusSucceeded {
		t.Fatalf("status = %q, want Succeeded after the attempt", got.ChallengeStatus)
	}
	if h.provider.authCalls != 1 {
		t.Fatal("polling must never reach the provider")
	}
}

func TestPollStatusEnforcesOwnership(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := h.gateway.PollStatus(context.Background(), "acct-2", ps.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound for a foreign account", err)
	}
}

func TestPollStatusForInstrumentUsesIndex(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{
		Purchase: testPurchase(),
		Flights:  snapshotOf(policy.FlagInstrumentScopedLookup),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	h.provider.authResp = &payerauth.AuthResponse{TransactionStatus: payerauth.StatusY}
	if _, err := h.gateway.Authenticate(context.Background(), "acct-1", ps.ID, AuthenticateRequest{}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	got, err := h.gateway.PollStatusForInstrument(context.Background(), "acct-1", "stale-id", "pi-1",
		snapshotOf(policy.FlagInstrumentScopedLookup))
	if err != nil {
		t.Fatalf("PollStatusForInstrument: %v", err)
	}
	if got.ID != ps.ID || got.ChallengeStatus != StatusSucceeded {
		t.Fatalf("got %+v, want the indexed session", got)
	}

	// Flight off: the stale id is read as-is and misses.
	if _, err := h.gateway.PollStatusForInstrument(context.Background(), "acct-1", "stale-id", "pi-1", nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound without the lookup flight", err)
	}
}
