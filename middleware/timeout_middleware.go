package middleware

import (
	"context"
	"time"

	"discovery/wire/message"
)

// TimeOutMiddleware fails a request whose handler outlives the budget.
// Backing-store calls can block on network I/O, so every handler gets a
// deadline.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Envelope, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case response := <-done:
				return response
			case <-ctx.Done():
				return &message.Envelope{
					Error: "request timed out",
				}
			}
		}
	}
}
