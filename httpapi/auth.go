package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	authgate "github.com/altairpay/authgate"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a presented bearer token does not verify.
var ErrInvalidToken = errors.New("invalid bearer token")

// headerSettingsTryCount carries the client's settings-download attempt
// count, suppressing a version mismatch on retries.
const headerSettingsTryCount = "X-Settings-Try-Count"

// TokenVerifier verifies HMAC-signed bearer tokens carrying the caller
// identity: the subject is the account, the "partner" claim the partner.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier builds a verifier over the shared signing secret. issuer
// is enforced when non-empty.
func NewTokenVerifier(secret []byte, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: secret, issuer: issuer}
}

type callerClaims struct {
	Partner string `json:"partner,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token, returning the caller identity.
func (v *TokenVerifier) Verify(token string) (authgate.CallerIdentity, error) {
	claims := &callerClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return authgate.CallerIdentity{}, ErrInvalidToken
	}
	return authgate.CallerIdentity{
		AccountID: claims.Subject,
		Partner:   claims.Partner,
	}, nil
}

// identity attaches the caller identity, client IP, and settings retry count
// to the request context. A missing token leaves the identity empty; a
// presented token that fails verification rejects the request.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if ip := clientIP(r); ip != "" {
			ctx = authgate.WithClientIP(ctx, ip)
		}
		if tc, err := strconv.Atoi(r.Header.Get(headerSettingsTryCount)); err == nil && tc > 1 {
			ctx = authgate.WithSettingsTryCount(ctx, tc)
		}

		if auth := r.Header.Get("Authorization"); auth != "" && s.verifier != nil {
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				renderError(w, ErrInvalidToken)
				return
			}
			caller, err := s.verifier.Verify(token)
			if err != nil {
				renderError(w, err)
				return
			}
			ctx = authgate.WithCaller(ctx, caller)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
