package authgate

import "context"

type callerContextKey struct{}
type clientIPContextKey struct{}
type tryCountContextKey struct{}

// WithCaller attaches the authenticated caller identity to ctx. The
// verification engine matches caller-scoped relaxations against it; an
// absent identity never matches a relaxation.
func WithCaller(ctx context.Context, caller CallerIdentity) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// WithClientIP attaches the caller's IP address to ctx for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithSettingsTryCount attaches the client's settings-download attempt count
// to ctx. On the second and later attempts a version mismatch is not raised,
// so a client that cannot fetch the target settings can still authenticate.
func WithSettingsTryCount(ctx context.Context, tryCount int) context.Context {
	return context.WithValue(ctx, tryCountContextKey{}, tryCount)
}

func callerFromContext(ctx context.Context) CallerIdentity {
	if ctx == nil {
		return CallerIdentity{}
	}
	caller, _ := ctx.Value(callerContextKey{}).(CallerIdentity)
	return caller
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func tryCountFromContext(ctx context.Context) int {
	if ctx == nil {
		return 1
	}
	n, ok := ctx.Value(tryCountContextKey{}).(int)
	if !ok || n < 1 {
		return 1
	}
	return n
}
