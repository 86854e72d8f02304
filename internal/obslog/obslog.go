// Package obslog is the thin structured-logging wrapper used throughout
// fixcore. The teacher only pulled in zap indirectly (via etcd's client);
// this promotes it to a direct dependency for the core's own operational
// logging, per spec.md §7's requirement that session events (logon,
// logout, disconnect, gap, reject) produce structured entries.
package obslog

import "go.uber.org/zap"

// Logger wraps a zap.SugaredLogger so call sites use plain key-value
// pairs instead of zap.Field constructors.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production JSON logger.
func New() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() error { return l.s.Sync() }

// With returns a Logger with kv attached to every subsequent entry —
// used to scope a logger to one session's id for the lifetime of a
// connection.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}
