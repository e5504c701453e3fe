package auth

import (
	"context"

	"github.com/pkg/errors"

	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/rate"
)

const (
	metricsStructName = "auth.Authenticator"
)

var (
	ErrRemoteNotAllowed = errors.New("remote address not allowed")
	ErrRateLimited      = errors.New("remote address rate limited")
	ErrInvalidKey       = errors.New("key wrong or missing")
)

// Authenticator gates provider callbacks on the caller's remote address and
// presented key. The remote address is always checked first.
type Authenticator struct {
	validator Validator
	limiter   rate.Limiter
}

// NewAuthenticator returns a new Authenticator. A nil limiter disables rate
// limiting.
func NewAuthenticator(validator Validator, limiter rate.Limiter) *Authenticator {
	if limiter == nil {
		limiter = &rate.NoLimiter{}
	}

	return &Authenticator{
		validator: validator,
		limiter:   limiter,
	}
}

// Authenticate returns nil when the caller is allowed, ErrRemoteNotAllowed or
// ErrRateLimited when the remote address is rejected, and ErrInvalidKey when
// the key is wrong or missing.
func (a *Authenticator) Authenticate(ctx context.Context, remoteAddress, presentedKey string) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Authenticate")
	defer tracer.End()

	if !a.validator.IsAllowedRemote(ctx, remoteAddress) {
		return ErrRemoteNotAllowed
	}

	// Limiter failures fail open, the allow-list already passed
	allowed, err := a.limiter.Allow(remoteAddress)
	if err == nil && !allowed {
		return ErrRateLimited
	}

	if !a.validator.IsValidKey(ctx, presentedKey) {
		return ErrInvalidKey
	}

	return nil
}
