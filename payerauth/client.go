// Package payerauth is the client for the external authentication provider:
// the service that creates, advances, and completes 3-D Secure style
// challenges. The gateway consumes the Client interface; HTTPClient is the
// production implementation.
package payerauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrProvider is the base error for any provider-call failure: network
// errors, timeouts, and non-2xx responses all wrap it so the coordinator can
// apply its resilience policy with a single errors.Is check.
var ErrProvider = errors.New("authentication provider call failed")

// CallError is a provider-call failure with the HTTP status and the
// provider's error body, when one was returned.
type CallError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("payerauth %s: status %d code %q: %s", e.Operation, e.StatusCode, e.Code, e.Message)
}

// Unwrap makes errors.Is(err, ErrProvider) hold.
func (e *CallError) Unwrap() error { return ErrProvider }

// Client is the authentication-provider surface the gateway drives. Every
// call carries a bounded timeout through ctx.
type Client interface {
	CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error)
	GetMethodURL(ctx context.Context, req MethodRequest) (*MethodResponse, error)
	Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error)
	CompleteChallenge(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	AuthenticateRedirect(ctx context.Context, req RedirectRequest) (*RedirectResponse, error)
}

// HTTPClient talks to the provider over HTTP with JSON bodies.
type HTTPClient struct {
	base    string
	client  *http.Client
	apiKey  string
	timeout time.Duration
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout bounds every provider call. The default is 15 seconds.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAPIKey attaches a bearer credential to every call.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) { c.apiKey = key }
}

// WithHTTPClient swaps the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewHTTPClient builds a provider client against the given base URL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		base:    baseURL,
		client:  &http.Client{},
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession implements Client.
func (c *HTTPClient) CreateSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.post(ctx, "createSession", "/paymentSessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMethodURL implements Client.
func (c *HTTPClient) GetMethodURL(ctx context.Context, req MethodRequest) (*MethodResponse, error) {
	var resp MethodResponse
	if err := c.post(ctx, "getMethodURL", "/paymentSessions/"+req.SessionID+"/methodUrl", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Authenticate implements Client.
func (c *HTTPClient) Authenticate(ctx context.Context, req AuthRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, "authenticate", "/paymentSessions/"+req.SessionID+"/authenticate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteChallenge implements Client.
func (c *HTTPClient) CompleteChallenge(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp CompletionResponse
	if err := c.post(ctx, "completeChallenge", "/paymentSessions/"+req.SessionID+"/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuthenticateRedirect implements Client.
func (c *HTTPClient) AuthenticateRedirect(ctx context.Context, req RedirectRequest) (*RedirectResponse, error) {
	var resp RedirectResponse
	if err := c.post(ctx, "authenticateRedirect", "/paymentSessions/"+req.SessionID+"/redirect", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) post(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrProvider, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build %s: %v", ErrProvider, op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProvider, op, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrProvider, op, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		callErr := &CallError{Operation: op, StatusCode: httpResp.StatusCode}
		var wire struct {
			Code    string `json:"errorCode"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &wire) == nil {
			callErr.Code = wire.Code
			callErr.Message = wire.Message
		}
		return callErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrProvider, op, err)
	}
	return nil
}
