package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"fixcore/message"
)

// ErrRateLimited is returned when an inbound application message is
// rejected for exceeding the configured throughput.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware creates a rate limiter using the token bucket
// algorithm, throttling inbound application messages. One limiter is
// shared by every session whose handler chain uses this middleware.
//
// Token bucket: tokens are added at rate r per second, up to a burst size.
// Each message consumes one token. If the bucket is empty, the message is
// rejected. Unlike a leaky bucket (constant drain rate), token bucket
// allows short bursts of traffic — more suitable for order flow than a
// constant cap.
//
// CRITICAL: the limiter is created in the OUTER closure (once per
// middleware creation), NOT in the inner handler function. If created
// per-message, every message would get a fresh full bucket, defeating the
// entire purpose of rate limiting.
//
// Parameters:
//   - r: token refill rate (messages per second)
//   - burst: maximum bucket size (allows this many messages in a burst)
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst) // Shared across all sessions
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, sessionID string, req *message.FixMessage) *Result {
			if !limiter.Allow() {
				return &Result{Err: ErrRateLimited}
			}
			return next(ctx, sessionID, req)
		}
	}
}
