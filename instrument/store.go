// Package instrument is the HTTP client for the payment-instrument catalog,
// the external service that owns instrument records and their ownership.
package instrument

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	authgate "github.com/altairpay/authgate"
)

// ErrCatalog is the base error for catalog-call failures other than a
// missing or foreign instrument.
var ErrCatalog = errors.New("instrument catalog call failed")

// HTTPStore implements authgate.InstrumentStore over the catalog's HTTP API.
type HTTPStore struct {
	base    string
	client  *http.Client
	apiKey  string
	timeout time.Duration
}

// Option customizes an HTTPStore.
type Option func(*HTTPStore)

// WithTimeout bounds every catalog call. The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAPIKey attaches a bearer credential to every call.
func WithAPIKey(key string) Option {
	return func(s *HTTPStore) { s.apiKey = key }
}

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *HTTPStore) {
		if hc != nil {
			s.client = hc
		}
	}
}

// NewHTTPStore builds a catalog client against the given base URL.
func NewHTTPStore(baseURL string, opts ...Option) *HTTPStore {
	s := &HTTPStore{
		base:    baseURL,
		client:  &http.Client{},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type wireInstrument struct {
	ID                 string   `json:"id"`
	AccountID          string   `json:"accountId"`
	Family             string   `json:"family"`
	Scheme             string   `json:"scheme,omitempty"`
	IssuerCountry      string   `json:"issuerCountry,omitempty"`
	RequiredChallenges []string `json:"requiredChallenge,omitempty"`
}

// Get implements authgate.InstrumentStore. The catalog enforces ownership:
// an instrument held by a different account answers 404.
func (s *HTTPStore) Get(ctx context.Context, accountID, instrumentID string) (*authgate.PaymentInstrument, error) {
	path := "/accounts/" + url.PathEscape(accountID) + "/paymentInstruments/" + url.PathEscape(instrumentID)
	return s.fetch(ctx, path)
}

// GetExtended implements authgate.InstrumentStore: the extended view without
// the ownership check.
func (s *HTTPStore) GetExtended(ctx context.Context, instrumentID string) (*authgate.PaymentInstrument, error) {
	path := "/paymentInstruments/" + url.PathEscape(instrumentID) + "/extendedView"
	return s.fetch(ctx, path)
}

func (s *HTTPStore) fetch(ctx context.Context, path string) (*authgate.PaymentInstrument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return nil, authgate.ErrInstrumentNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", ErrCatalog, resp.StatusCode)
	}

	var wire wireInstrument
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCatalog, err)
	}
	return &authgate.PaymentInstrument{
		ID:                 wire.ID,
		AccountID:          wire.AccountID,
		Family:             authgate.InstrumentFamily(wire.Family),
		Scheme:             wire.Scheme,
		IssuerCountry:      wire.IssuerCountry,
		RequiredChallenges: wire.RequiredChallenges,
	}, nil
}
