// Package middleware implements the onion model middleware chain around a
// session's application-message handler.
//
// Middleware wraps the business handler to add cross-cutting concerns
// (logging, timeout, rate limiting) without modifying the handler itself.
//
// Onion model execution order:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Request:   A.before → B.before → C.before → handler
//	Response:  handler → C.after → B.after → A.after
//
// Each middleware can:
//   - Do pre-processing (before calling next)
//   - Call next(ctx, sessionID, req) to pass to the next layer
//   - Do post-processing (after next returns)
//   - Short-circuit by returning early without calling next (e.g., rate limiting)
package middleware

import (
	"context"

	"fixcore/message"
)

// Result is what a handler produces for one inbound application message:
// zero or more outbound replies, or an error. The innermost HandlerFunc
// ultimately adapts the ApplicationHandler contract of spec.md §6.
type Result struct {
	Replies []*message.FixMessage
	Err     error
}

// HandlerFunc is the function signature for application-message handlers.
// Both the business handler and middleware-wrapped handlers share this
// signature. sessionID identifies which session's handler is running, since
// a single HandlerFunc chain is shared across all sessions on a server.
type HandlerFunc func(ctx context.Context, sessionID string, req *message.FixMessage) *Result

// Middleware takes a handler and returns a new handler that wraps it.
// This is the decorator pattern — each middleware adds behavior around the
// next handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middlewares into a single middleware.
// It builds the chain from right to left so that the first middleware in
// the list is the outermost layer (executed first on request, last on
// response).
//
// Example:
//
//	chain := Chain(Logging, Timeout, RateLimit)
//	handler := chain(businessHandler)
//	// Execution: Logging → Timeout → RateLimit → businessHandler → RateLimit → Timeout → Logging
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		// Build from right to left: wrap innermost first
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
