package middleware

import (
	"context"
	"log"
	"time"

	"discovery/wire/message"
)

// LoggingMiddleware logs each request's method, duration, and error.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			start := time.Now()
			response := next(ctx, req)
			duration := time.Since(start)
			log.Printf("ServiceMethod: %s, Duration: %s", req.ServiceMethod, duration)
			if response.Error != "" {
				log.Printf("Error: %s", response.Error)
			}
			return response
		}
	}
}
