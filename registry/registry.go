// Package registry implements the SessionRegistry of spec.md §4.7: create,
// lookup, and tear down Sessions, with a ceiling on concurrent sessions.
//
// Grounded on the teacher's server.Server: the same wg.Wait-with-timeout
// fan-out used there for Shutdown (server/server.go) drives shutdownAll
// here, generalized from "wait for in-flight requests" to "wait for every
// session's graceful logout". Lookup uses sync.Map instead of the
// teacher's plain map, per spec.md §4.7's "lookup and iteration are
// lock-free (or fine-grained)" requirement — insert/remove still go
// through a mutex to keep the session-count ceiling exact.
package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fixcore/session"
)

// ErrLimitReached is returned by Create when MaxSessions active sessions
// already exist.
var ErrLimitReached = errors.New("registry: session limit reached")

// ErrDuplicate is returned by Create when a session with the given id
// already exists.
var ErrDuplicate = errors.New("registry: session already exists")

// Entry pairs a session with the machine driving it, so shutdownAll can
// invoke graceful-logout machinery without the registry importing
// transport.
type Entry struct {
	Session *session.Session
	Machine *session.Machine
}

// Registry is the SessionRegistry.
type Registry struct {
	maxSessions int

	mu      sync.Mutex // serializes Create/Remove against the count ceiling
	count   atomic.Int64
	entries sync.Map // id -> *Entry, lock-free reads
}

// New creates a registry enforcing at most maxSessions concurrent
// sessions. maxSessions <= 0 means unbounded.
func New(maxSessions int) *Registry {
	return &Registry{maxSessions: maxSessions}
}

// Create registers a new session/machine pair under id.
func (r *Registry) Create(id string, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries.Load(id); exists {
		return ErrDuplicate
	}
	if r.maxSessions > 0 && r.count.Load() >= int64(r.maxSessions) {
		return ErrLimitReached
	}

	r.entries.Store(id, &entry)
	r.count.Add(1)
	return nil
}

// Lookup returns the entry for id, if any.
func (r *Registry) Lookup(id string) (Entry, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return Entry{}, false
	}
	return *v.(*Entry), true
}

// Remove deletes the entry at id and releases its registry slot. It does
// not disconnect the session or send a Logout; callers drive that through
// the Machine before calling Remove.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, existed := r.entries.LoadAndDelete(id); existed {
		r.count.Add(-1)
	}
}

// Snapshot returns a read-only view of every active session, per
// spec.md §4.7.
func (r *Registry) Snapshot() []session.Stats {
	var out []session.Stats
	r.entries.Range(func(_, v any) bool {
		out = append(out, v.(*Entry).Session.Snapshot())
		return true
	})
	return out
}

// ShutdownAll calls closeEach for every active session, each in its own
// goroutine, and waits for all of them up to deadline. When the deadline
// expires it returns an error; it does not force-close the sessions whose
// closeEach has not returned, and those goroutines keep running. Mirrors
// the teacher's Server.Shutdown (server/server.go): wait on a WaitGroup
// with a timeout fallback.
func (r *Registry) ShutdownAll(ctx context.Context, deadline time.Duration, closeEach func(ctx context.Context, e Entry) error) error {
	var wg sync.WaitGroup
	r.entries.Range(func(_, v any) bool {
		entry := *v.(*Entry)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = closeEach(ctx, entry)
		}()
		return true
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(deadline):
		return errors.New("registry: timeout waiting for sessions to close")
	}
}

// Count returns the number of currently registered sessions.
func (r *Registry) Count() int {
	return int(r.count.Load())
}
