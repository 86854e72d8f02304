package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"

	"fixcore/internal/clock"
)

func TestHeartbeatDueFiresAfterInterval(t *testing.T) {
	fc := clock.NewFake(time.Now())
	s := NewScheduler(fc, time.Second)

	var heartbeats int32
	s.Register("sess-1", 30, Callbacks{
		OnHeartbeatDue: func() { atomic.AddInt32(&heartbeats, 1) },
	})

	fc.Advance(29 * time.Second)
	s.checkAll()
	if atomic.LoadInt32(&heartbeats) != 0 {
		t.Fatalf("expected no heartbeat before interval elapses")
	}

	fc.Advance(2 * time.Second)
	s.checkAll()
	if atomic.LoadInt32(&heartbeats) == 0 {
		t.Fatalf("expected heartbeat after interval elapses")
	}
}

func TestTestRequestFiresAtOneAndHalfInterval(t *testing.T) {
	fc := clock.NewFake(time.Now())
	s := NewScheduler(fc, time.Second)

	var testRequests int32
	s.Register("sess-1", 30, Callbacks{
		OnTestRequestDue: func() string {
			atomic.AddInt32(&testRequests, 1)
			return "TEST_1"
		},
	})

	fc.Advance(44 * time.Second)
	s.checkAll()
	if atomic.LoadInt32(&testRequests) != 0 {
		t.Fatalf("expected no test request before 1.5x interval")
	}

	fc.Advance(2 * time.Second)
	s.checkAll()
	if atomic.LoadInt32(&testRequests) != 1 {
		t.Fatalf("expected exactly one test request, got %d", testRequests)
	}

	// Should not re-fire on the next tick while pending.
	fc.Advance(time.Second)
	s.checkAll()
	if atomic.LoadInt32(&testRequests) != 1 {
		t.Fatalf("expected test request not to repeat while pending, got %d", testRequests)
	}
}

func TestTimeoutFiresAtTwiceIntervalWithPendingTestRequest(t *testing.T) {
	fc := clock.NewFake(time.Now())
	s := NewScheduler(fc, time.Second)

	var timedOut int32
	s.Register("sess-1", 30, Callbacks{
		OnTestRequestDue: func() string { return "TEST_1" },
		OnTimeout:        func() { atomic.AddInt32(&timedOut, 1) },
	})

	fc.Advance(46 * time.Second)
	s.checkAll() // triggers test request, marks pending

	fc.Advance(14 * time.Second) // total 60s = 2x interval
	s.checkAll()
	if atomic.LoadInt32(&timedOut) != 1 {
		t.Fatalf("expected timeout at 2x interval with pending test request, got %d", timedOut)
	}
}

func TestNoteInboundClearsPendingTestRequest(t *testing.T) {
	fc := clock.NewFake(time.Now())
	s := NewScheduler(fc, time.Second)

	var testRequests int32
	s.Register("sess-1", 30, Callbacks{
		OnTestRequestDue: func() string {
			atomic.AddInt32(&testRequests, 1)
			return "TEST_1"
		},
	})

	fc.Advance(46 * time.Second)
	s.checkAll()
	if testRequests != 1 {
		t.Fatalf("expected one test request")
	}

	s.NoteInbound("sess-1")
	fc.Advance(46 * time.Second)
	s.checkAll()
	if testRequests != 2 {
		t.Fatalf("expected a fresh test request cycle after inbound activity, got %d", testRequests)
	}
}
