package auth

import (
	"context"

	xrate "golang.org/x/time/rate"

	"github.com/code-payments/txstatus-server/pkg/rate"
)

// NewRateLimiter returns the per remote address limiter for callbacks. The
// limit is read once, and a non-positive limit disables rate limiting.
func NewRateLimiter(ctx context.Context, configProvider ConfigProvider) rate.Limiter {
	limit := configProvider().rateLimitPerSecond.Get(ctx)
	if limit <= 0 {
		return &rate.NoLimiter{}
	}
	return rate.NewLocalRateLimiter(xrate.Limit(limit))
}
