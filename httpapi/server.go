// Package httpapi exposes the gateway's operations over HTTP with JSON
// bodies. Routing is gorilla/mux; caller identity arrives as a bearer token
// and feeds the gateway through its context helpers. Errors are rendered as
// the gateway's ServiceError envelope.
package httpapi

import (
	"net/http"

	authgate "github.com/altairpay/authgate"
	"github.com/gorilla/mux"
)

// Server wires the gateway's operations onto an HTTP router.
type Server struct {
	gateway  *authgate.Gateway
	verifier *TokenVerifier
}

// Option customizes a Server.
type Option func(*Server)

// WithTokenVerifier enables bearer-token caller identity on every
// account-scoped route.
func WithTokenVerifier(v *TokenVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// NewServer builds a Server over the gateway.
func NewServer(gateway *authgate.Gateway, opts ...Option) *Server {
	s := &Server{gateway: gateway}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.identity)

	v1.HandleFunc("/{account}/paymentSessions", s.handleCreateSession).Methods(http.MethodPost)
	v1.HandleFunc("/{account}/paymentSessions/authenticate", s.handleCreateAndAuthenticate).Methods(http.MethodPost)
	v1.HandleFunc("/{account}/paymentSessions/{id}/authenticate", s.handleAuthenticate).Methods(http.MethodPost)
	v1.HandleFunc("/{account}/paymentSessions/{id}/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/{account}/paymentSessions/{id}/methodUrl", s.handleMethodURL).Methods(http.MethodGet)
	v1.HandleFunc("/{account}/paymentSessions/{id}/browserAuthenticate", s.handleBrowserAuthenticate).Methods(http.MethodPost)
	v1.HandleFunc("/{account}/paymentSessions/{id}/browserAuthenticateIframe", s.handleBrowserAuthenticateIframe).Methods(http.MethodPost)
	v1.HandleFunc("/{account}/paymentSessions/{id}/authenticateRedirect", s.handleAuthenticateRedirect).Methods(http.MethodPost)
	v1.HandleFunc("/{account}/paymentSessions/{id}/authenticationStatus", s.handleAuthenticationStatus).Methods(http.MethodGet)

	// The completion callback is posted by the provider, not an account.
	v1.HandleFunc("/paymentSessions/{id}/completeChallenge", s.handleCompleteChallenge).Methods(http.MethodPost)

	return r
}
