// Package heartbeat implements the HeartbeatScheduler of spec.md §4.5: a
// shared timer wheel that ticks once per session and dispatches
// heartbeat-due, test-request-due, and timeout events through callbacks
// — never mutating session state directly from the timer goroutine, per
// spec.md §9's "scheduled executors" redesign note (the source's two
// separate heartbeat/timeout executors collapse into this one wheel).
package heartbeat

import (
	"sync"
	"time"

	"fixcore/internal/clock"
)

// Callbacks are invoked by the scheduler's tick goroutine. Implementations
// must not block — they should enqueue work onto the owning session's
// mailbox and return, matching spec.md §5's "dispatch one event per
// session via its per-session mailbox" requirement.
type Callbacks struct {
	OnHeartbeatDue   func()
	OnTestRequestDue func() (testReqID string)
	OnTimeout        func()
}

// deadline tracks one session's liveness state.
type deadline struct {
	interval        time.Duration
	lastOutbound    time.Duration // monotonic
	lastInbound     time.Duration // monotonic
	testReqPending  bool
	callbacks       Callbacks
}

// Scheduler is the single timer wheel shared by every session on a
// fixcore instance. Register a session at Logon, update its activity
// timestamps as messages flow, and Unregister at session teardown.
type Scheduler struct {
	clock clock.Clock
	tick  time.Duration

	mu       sync.Mutex
	sessions map[string]*deadline

	stop chan struct{}
	once sync.Once
}

// NewScheduler creates a scheduler that ticks every `tick` (spec.md §4.5
// recommends 1-10s; it need not fire at the exact deadline but must not
// exceed it by more than one tick).
func NewScheduler(c clock.Clock, tick time.Duration) *Scheduler {
	return &Scheduler{
		clock:    c,
		tick:     tick,
		sessions: make(map[string]*deadline),
		stop:     make(chan struct{}),
	}
}

// Register starts tracking liveness for sessionID with the given
// heartbeat interval H (seconds).
func (s *Scheduler) Register(sessionID string, heartbeatSeconds int, cb Callbacks) {
	now := s.clock.Monotonic()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &deadline{
		interval:     time.Duration(heartbeatSeconds) * time.Second,
		lastOutbound: now,
		lastInbound:  now,
		callbacks:    cb,
	}
}

// Unregister stops tracking a session, e.g. on teardown.
func (s *Scheduler) Unregister(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// NoteOutbound records that a message was just written, resetting the
// heartbeat-due deadline.
func (s *Scheduler) NoteOutbound(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.sessions[sessionID]; ok {
		d.lastOutbound = s.clock.Monotonic()
	}
}

// NoteInbound records that a message just arrived, clearing any pending
// TestReqID and resetting both the test-request and timeout deadlines,
// per spec.md §4.5's "any inbound message clears the pending TestReqID".
func (s *Scheduler) NoteInbound(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.sessions[sessionID]; ok {
		d.lastInbound = s.clock.Monotonic()
		d.testReqPending = false
	}
}

// Run drives the timer wheel until Stop is called. Intended to run in
// its own goroutine for the lifetime of the process.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.checkAll()
		}
	}
}

// Stop halts the timer wheel. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Scheduler) checkAll() {
	now := s.clock.Monotonic()

	s.mu.Lock()
	type due struct {
		heartbeat, testRequest, timeout bool
		cb                              Callbacks
	}
	fire := make(map[string]due, len(s.sessions))
	for id, d := range s.sessions {
		var f due
		f.cb = d.callbacks
		if now-d.lastOutbound >= d.interval {
			f.heartbeat = true
		}
		sinceInbound := now - d.lastInbound
		testThreshold := time.Duration(float64(d.interval) * 1.5)
		timeoutThreshold := d.interval * 2
		if sinceInbound >= timeoutThreshold && d.testReqPending {
			f.timeout = true
		} else if sinceInbound >= testThreshold && !d.testReqPending {
			f.testRequest = true
			d.testReqPending = true
		}
		fire[id] = f
	}
	s.mu.Unlock()

	for _, f := range fire {
		if f.heartbeat && f.cb.OnHeartbeatDue != nil {
			f.cb.OnHeartbeatDue()
		}
		if f.testRequest && f.cb.OnTestRequestDue != nil {
			f.cb.OnTestRequestDue()
		}
		if f.timeout && f.cb.OnTimeout != nil {
			f.cb.OnTimeout()
		}
	}
}
