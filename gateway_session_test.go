package authgate

import (
	"context"
	"errors"
	"testing"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
)

func TestCreateSessionChallengeRequired(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ps.ID != "prov-sess-1" {
		t.Fatalf("session id = %q, want the provider's id", ps.ID)
	}
	if !ps.IsChallengeRequired || ps.ChallengeStatus != StatusUnknown {
		t.Fatalf("got %+v, want a required challenge in Unknown", ps)
	}
	if ps.ChallengeType != ChallengePSD2 {
		t.Fatalf("type = %q, want PSD2", ps.ChallengeType)
	}
	if h.provider.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", h.provider.createCalls)
	}
}

func TestCreateSessionNotRequiredSkipsProvider(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	h.instruments.instruments["pi-1"].RequiredChallenges = nil

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ps.IsChallengeRequired || ps.ChallengeStatus != StatusNotApplicable {
		t.Fatalf("got %+v, want NotApplicable", ps)
	}
	if ps.ID == "" || ps.ID == "prov-sess-1" {
		t.Fatalf("session id = %q, want a locally generated id", ps.ID)
	}
	if h.provider.createCalls != 0 {
		t.Fatalf("provider called %d times for a non-challenged session", h.provider.createCalls)
	}
}

func TestCreateSessionSafetyNetOnProviderError(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	h.provider.createErr = errors.New("upstream 503")

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("provider outage must not fail creation: %v", err)
	}
	if ps.IsChallengeRequired || ps.ChallengeStatus != StatusNotApplicable {
		t.Fatalf("got %+v, want degraded NotApplicable session", ps)
	}

	rec, err := h.gateway.sessions.Get(context.Background(), ps.ID)
	if err != nil {
		t.Fatalf("reading stored session: %v", err)
	}
	if !rec.IsSystemError {
		t.Fatal("degraded session not marked as a system error")
	}

	snap := h.gateway.MetricsSnapshot()
	if snap.Counters[MetricSafetyNet] != 1 || snap.Counters[MetricProviderError] != 1 {
		t.Fatalf("snapshot = %+v, want one safety-net and one provider error", snap)
	}
}

func TestCreateSessionVersionMismatchBeforeProvider(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	_, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{
		Purchase:        testPurchase(),
		SettingsVersion: "V12",
	})
	var mismatch *VersionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want VersionMismatchError", err)
	}
	if mismatch.Target != "V18" {
		t.Fatalf("target = %q, want the configured minimum", mismatch.Target)
	}
	if h.provider.createCalls != 0 {
		t.Fatal("provider consulted before version negotiation settled")
	}
}

func TestCreateSessionRetrySuppressesMismatch(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ctx := WithSettingsTryCount(context.Background(), 2)
	ps, err := h.gateway.CreateSession(ctx, "acct-1", CreateSessionRequest{
		Purchase:        testPurchase(),
		SettingsVersion: "V12",
	})
	if err != nil {
		t.Fatalf("second settings attempt must pass: %v", err)
	}
	if !ps.IsChallengeRequired {
		t.Fatalf("got %+v, want a required challenge", ps)
	}
}

func TestCreateSessionMOTOBypassRecorded(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	pc := testPurchase()
	pc.IsMOTO = true
	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{
		Purchase: pc,
		Flights:  snapshotOf(policy.FlagBypassMOTOChallenge),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ps.IsChallengeRequired || ps.ChallengeStatus != StatusByPassed {
		t.Fatalf("got %+v, want ByPassed", ps)
	}
	if h.provider.createCalls != 0 {
		t.Fatal("provider consulted for a bypassed purchase")
	}
}

func TestCreateSessionWritesDerivedIndex(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{
		Purchase: testPurchase(),
		Flights:  snapshotOf(policy.FlagInstrumentScopedLookup),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	derived, err := h.gateway.sessions.GetDerived(context.Background(), "pi-1")
	if err != nil {
		t.Fatalf("GetDerived: %v", err)
	}
	if derived.SessionID != ps.ID {
		t.Fatalf("derived index points at %q, want %q", derived.SessionID, ps.ID)
	}
}

func TestCreateSessionUnknownInstrument(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	pc := testPurchase()
	pc.InstrumentID = "pi-missing"
	_, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: pc})
	if !errors.Is(err, ErrInstrumentNotFound) {
		t.Fatalf("got %v, want ErrInstrumentNotFound", err)
	}
}

func TestCreateSessionRejectsMalformedPurchase(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	cases := []struct {
		name   string
		mutate func(*PurchaseContext)
	}{
		{"missing instrument", func(pc *PurchaseContext) { pc.InstrumentID = "" }},
		{"missing currency", func(pc *PurchaseContext) { pc.Currency = "" }},
		{"missing country", func(pc *PurchaseContext) { pc.Country = "" }},
		{"missing partner", func(pc *PurchaseContext) { pc.Partner = "" }},
		{"negative amount", func(pc *PurchaseContext) { pc.Amount = -1 }},
		{"whitespace instrument id", func(pc *PurchaseContext) { pc.InstrumentID = "pi 1" }},
	}
	for _, tc := range cases {
		pc := testPurchase()
		tc.mutate(&pc)
		_, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: pc})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: got %v, want ErrInvalidRequest", tc.name, err)
		}
	}
}

func TestCreateSessionUsesLocalIDWhenProviderOmitsOne(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	h.provider.createResp = &payerauth.SessionResponse{EnrollmentStatus: payerauth.Enrolled}

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ps.ID == "" {
		t.Fatal("no session id generated")
	}
}

func TestGetSessionEnforcesOwnership(t *testing.T) {
	h := newGatewayTest(t, nil)
	defer h.cleanup()

	ps, err := h.gateway.CreateSession(context.Background(), "acct-1", CreateSessionRequest{Purchase: testPurchase()})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := h.gateway.GetSession(context.Background(), "acct-1", ps.ID); err != nil {
		t.Fatalf("owner read failed: %v", err)
	}
	if _, err := h.gateway.GetSession(context.Background(), "acct-2", ps.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound for a foreign account", err)
	}
	if _, err := h.gateway.GetSession(context.Background(), "acct-1", "no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound for a missing session", err)
	}
}
