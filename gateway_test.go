package authgate

import (
	"context"
	"sync"
	"testing"

	"github.com/altairpay/authgate/payerauth"
	"github.com/altairpay/authgate/policy"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeInstruments struct {
	mu          sync.Mutex
	instruments map[string]*PaymentInstrument
	getErr      error
}

func newFakeInstruments(instruments ...*PaymentInstrument) *fakeInstruments {
	f := &fakeInstruments{instruments: make(map[string]*PaymentInstrument)}
	for _, pi := range instruments {
		f.instruments[pi.ID] = pi
	}
	return f
}

func (f *fakeInstruments) Get(_ context.Context, accountID, instrumentID string) (*PaymentInstrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	pi, ok := f.instruments[instrumentID]
	if !ok || pi.AccountID != accountID {
		return nil, ErrInstrumentNotFound
	}
	cp := *pi
	return &cp, nil
}

func (f *fakeInstruments) GetExtended(_ context.Context, instrumentID string) (*PaymentInstrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	pi, ok := f.instruments[instrumentID]
	if !ok {
		return nil, ErrInstrumentNotFound
	}
	cp := *pi
	return &cp, nil
}

type fakeProvider struct {
	mu sync.Mutex

	createResp *payerauth.SessionResponse
	createErr  error
	methodResp *payerauth.MethodResponse
	methodErr  error
	authResp   *payerauth.AuthResponse
	authErr    error
	compResp   *payerauth.CompletionResponse
	compErr    error
	redirResp  *payerauth.RedirectResponse
	redirErr   error

	createCalls int
	authCalls   int
	compCalls   int
	redirCalls  int
}

func (f *fakeProvider) CreateSession(context.Context, payerauth.SessionRequest) (*payerauth.SessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return &payerauth.SessionResponse{SessionID: "prov-sess-1", EnrollmentStatus: payerauth.Enrolled}, nil
}

func (f *fakeProvider) GetMethodURL(context.Context, payerauth.MethodRequest) (*payerauth.MethodResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.methodErr != nil {
		return nil, f.methodErr
	}
	if f.methodResp != nil {
		return f.methodResp, nil
	}
	return &payerauth.MethodResponse{}, nil
}

func (f *fakeProvider) Authenticate(context.Context, payerauth.AuthRequest) (*payerauth.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	if f.authResp != nil {
		return f.authResp, nil
	}
	return &payerauth.AuthResponse{TransactionStatus: payerauth.StatusY}, nil
}

func (f *fakeProvider) CompleteChallenge(context.Context, payerauth.CompletionRequest) (*payerauth.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compCalls++
	if f.compErr != nil {
		return nil, f.compErr
	}
	if f.compResp != nil {
		return f.compResp, nil
	}
	return &payerauth.CompletionResponse{TransactionStatus: payerauth.StatusY}, nil
}

func (f *fakeProvider) AuthenticateRedirect(context.Context, payerauth.RedirectRequest) (*payerauth.RedirectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirCalls++
	if f.redirErr != nil {
		return nil, f.redirErr
	}
	if f.redirResp != nil {
		return f.redirResp, nil
	}
	return &payerauth.RedirectResponse{TransactionStatus: payerauth.StatusC, FormActionURL: "https://issuer.example/acs"}, nil
}

type gatewayHarness struct {
	gateway     *Gateway
	provider    *fakeProvider
	instruments *fakeInstruments
	cleanup     func()
}

func testInstrument() *PaymentInstrument {
	return &PaymentInstrument{
		ID:                 "pi-1",
		AccountID:          "acct-1",
		Family:             FamilyCreditCard,
		Scheme:             "visa",
		RequiredChallenges: []string{"3ds2"},
	}
}

func newGatewayTest(t *testing.T, mutate func(*Builder)) *gatewayHarness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	provider := &fakeProvider{}
	instruments := newFakeInstruments(testInstrument())

	builder := New().
		WithRedis(rdb).
		WithInstrumentStore(instruments).
		WithProvider(provider)
	if mutate != nil {
		mutate(builder)
	}
	gateway, err := builder.Build()
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}

	return &gatewayHarness{
		gateway:     gateway,
		provider:    provider,
		instruments: instruments,
		cleanup: func() {
			gateway.Close()
			rdb.Close()
			mr.Close()
		},
	}
}

func testPurchase() PurchaseContext {
	return PurchaseContext{
		Amount:       49.99,
		Currency:     "EUR",
		Country:      "DE",
		Partner:      "webstore",
		InstrumentID: "pi-1",
	}
}

func snapshotOf(flights ...string) *policy.Snapshot {
	s := policy.NewSnapshot(flights...)
	return &s
}
