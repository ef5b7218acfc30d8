package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"discovery/wire/message"
)

// RetryMiddleware retries transient failures (timeouts, refused connections)
// with exponential backoff. The store itself never retries; retry policy
// belongs to the calling side.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			response := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if response.Error == "" {
					return response
				}
				if strings.Contains(response.Error, "timeout") || strings.Contains(response.Error, "timed out") ||
					strings.Contains(response.Error, "connection refused") {
					log.Printf("Retry attempt %d for %s due to error: %s", i+1, req.ServiceMethod, response.Error)
					time.Sleep(baseDelay * time.Duration(1<<i))
					response = next(ctx, req)
				} else {
					return response
				}
			}
			return response
		}
	}
}
