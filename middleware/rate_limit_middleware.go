package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"discovery/wire/message"
)

// RateLimitMiddleware rejects requests beyond a token-bucket budget. It
// shields the dynamic store from announcement storms when a fleet restarts.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			if !limiter.Allow() {
				return &message.Envelope{
					Error: "rate limit exceeded",
				}
			}
			return next(ctx, req)
		}
	}
}
