// Package middleware provides the wire server's handler chain: logging,
// timeout, rate limiting, and retry wrappers around the dispatch handler.
package middleware

import (
	"context"

	"discovery/wire/message"
)

type HandlerFunc func(ctx context.Context, req *message.Envelope) *message.Envelope

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. Chain(A, B, C)(h) = A(B(C(h))), so A
// sees the request first and the response last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
