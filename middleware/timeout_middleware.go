package middleware

import (
	"context"
	"errors"
	"time"

	"fixcore/message"
)

// ErrTimedOut is returned when an application handler does not complete
// within the configured timeout.
var ErrTimedOut = errors.New("middleware: request timed out")

// TimeOutMiddleware enforces a maximum duration for each application
// message handled. If the handler doesn't complete within the timeout, it
// returns an error immediately.
//
// Implementation:
//  1. Create a context with timeout (ctx.Done() fires when timeout expires)
//  2. Run the next handler in a goroutine, sending its result to a channel
//  3. Select between the result channel and ctx.Done()
//
// Note: the handler goroutine is NOT cancelled — it continues running in
// the background. The timeout only controls when the caller gives up
// waiting. For true cancellation, the handler must check ctx.Done()
// internally.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, sessionID string, req *message.FixMessage) *Result {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *Result, 1) // Buffered: prevent goroutine leak if timeout fires
			go func() {
				done <- next(ctx, sessionID, req)
			}()

			select {
			case res := <-done:
				return res
			case <-ctx.Done():
				return &Result{Err: ErrTimedOut}
			}
		}
	}
}
