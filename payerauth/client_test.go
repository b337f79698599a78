package payerauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateSessionRoundTrip(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq SessionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(SessionResponse{
			SessionID:        "prov-sess-1",
			EnrollmentStatus: Enrolled,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithAPIKey("secret-key"))
	resp, err := c.CreateSession(context.Background(), SessionRequest{
		AccountID:    "acct-1",
		InstrumentID: "pi-1",
		Amount:       49.99,
		Currency:     "EUR",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if resp.SessionID != "prov-sess-1" || resp.EnrollmentStatus != Enrolled {
		t.Fatalf("response = %+v", resp)
	}
	if gotPath != "/paymentSessions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotReq.AccountID != "acct-1" || gotReq.Amount != 49.99 {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestAuthenticatePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(AuthResponse{TransactionStatus: StatusY})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	resp, err := c.Authenticate(context.Background(), AuthRequest{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if resp.TransactionStatus != StatusY {
		t.Fatalf("response = %+v", resp)
	}
	if gotPath != "/paymentSessions/sess-1/authenticate" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestNon2xxBecomesCallError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"errorCode": "UpstreamUnavailable",
			"message":   "issuer unreachable",
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.CompleteChallenge(context.Background(), CompletionRequest{SessionID: "sess-1"})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("got %T, want *CallError", err)
	}
	if callErr.StatusCode != http.StatusBadGateway || callErr.Code != "UpstreamUnavailable" {
		t.Fatalf("call error = %+v", callErr)
	}
	if callErr.Message != "issuer unreachable" {
		t.Fatalf("message = %q", callErr.Message)
	}
}

func TestNon2xxWithOpaqueBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.Authenticate(context.Background(), AuthRequest{SessionID: "sess-1"})
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("got %v, want *CallError", err)
	}
	if callErr.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d", callErr.StatusCode)
	}
}

func TestMalformedResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.CreateSession(context.Background(), SessionRequest{})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel r.Context(); otherwise srv.Close
		// deadlocks waiting on this handler.
		_, _ = io.ReadAll(r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Authenticate(context.Background(), AuthRequest{SessionID: "sess-1"})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider on timeout", err)
	}
}

func TestUnreachableProvider(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", WithTimeout(time.Second))
	_, err := c.CreateSession(context.Background(), SessionRequest{})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
}
