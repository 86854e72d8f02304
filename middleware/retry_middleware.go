package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"fixcore/message"
)

// RetryMiddleware retries an application handler call on transient errors
// (an error whose text contains "timeout" or "connection refused") with
// exponential backoff, giving up after maxRetries.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, sessionID string, req *message.FixMessage) *Result {
			res := next(ctx, sessionID, req)
			for i := 0; i < maxRetries; i++ {
				if res.Err == nil {
					return res
				}
				msg := res.Err.Error()
				if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused") {
					log.Printf("retry attempt %d for session %s due to error: %s", i+1, sessionID, msg)
					time.Sleep(baseDelay * time.Duration(1<<i)) // Exponential backoff
					res = next(ctx, sessionID, req)
				} else {
					return res // Non-retryable error, return immediately
				}
			}
			return res
		}
	}
}
