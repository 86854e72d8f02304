package middleware

import (
	"context"
	"time"

	"fixcore/internal/obslog"
	"fixcore/message"
)

// LoggingMiddleware records the inbound MsgType, session, duration, and any
// error for each application message. It captures the start time before
// calling next, and logs the elapsed time after next returns.
func LoggingMiddleware(logger *obslog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, sessionID string, req *message.FixMessage) *Result {
			start := time.Now()

			res := next(ctx, sessionID, req)

			logger.Info("application message handled",
				"session", sessionID,
				"msgType", req.MsgType(),
				"duration", time.Since(start).String(),
			)
			if res.Err != nil {
				logger.Error("application handler error",
					"session", sessionID,
					"msgType", req.MsgType(),
					"error", res.Err.Error(),
				)
			}
			return res
		}
	}
}
