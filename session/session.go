// Package session implements the SessionStateMachine of spec.md §4.4: the
// component owning one counterparty's sequence numbers, status, and
// reaction to each inbound message type.
//
// Per spec.md §9's "shared mutable session state" redesign note, a
// Session is meant to be touched by a single owning goroutine; Machine
// enforces that by serializing every inbound frame through HandleInbound
// and every outbound send through sendMessage. The mutex on Session
// exists only so SessionRegistry's snapshot() can take a safe read-only
// copy from another goroutine, not as a substitute for single ownership.
package session

import (
	"sync"
	"time"

	"fixcore/gap"
)

// Status is one of the states in spec.md §4.4's transition table.
type Status int

const (
	Disconnected Status = iota
	Connecting
	LogonSent
	LoggedOn
	LogoutSent
	Disconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case LogonSent:
		return "LogonSent"
	case LoggedOn:
		return "LoggedOn"
	case LogoutSent:
		return "LogoutSent"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Session is the mutable state owned by one Machine, per spec.md §3.
type Session struct {
	mu sync.Mutex

	ID     string
	Local  string
	Remote string

	Status            Status
	NextExpected      uint32
	NextOutbound      uint32
	HeartbeatInterval int
	StartTime         time.Time
	PendingTestReqID  string

	Gaps *gap.Tracker

	// buffered holds inbound messages received while a gap is open,
	// keyed by MsgSeqNum, until the gap that precedes them closes.
	buffered map[uint32][]byte
}

// New creates a freshly Disconnected session with sequence numbers
// starting at 1, per spec.md §3.
func New(id, local, remote string) *Session {
	return &Session{
		ID:           id,
		Local:        local,
		Remote:       remote,
		Status:       Disconnected,
		NextExpected: 1,
		NextOutbound: 1,
		Gaps:         gap.NewTracker(),
		buffered:     make(map[uint32][]byte),
	}
}

// Stats is a read-only snapshot for SessionRegistry.snapshot(), per
// spec.md §4.7.
type Stats struct {
	ID                string
	Local             string
	Remote            string
	Status            Status
	NextExpected      uint32
	NextOutbound      uint32
	HeartbeatInterval int
	StartTime         time.Time
	OpenGaps          int
}

// Snapshot returns a point-in-time, lock-protected copy of the session's
// observable state.
func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ID:                s.ID,
		Local:             s.Local,
		Remote:            s.Remote,
		Status:            s.Status,
		NextExpected:      s.NextExpected,
		NextOutbound:      s.NextOutbound,
		HeartbeatInterval: s.HeartbeatInterval,
		StartTime:         s.StartTime,
		OpenGaps:          len(s.Gaps.Gaps()),
	}
}
