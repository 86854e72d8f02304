package gap

import "fixcore/message"

// administrative is the set of MsgTypes that must never be replayed
// verbatim on resend, per spec.md §4.6 step 2.
var administrative = map[string]bool{
	message.MsgTypeLogon:         true,
	message.MsgTypeHeartbeat:     true,
	message.MsgTypeTestRequest:   true,
	message.MsgTypeResendRequest: true,
	message.MsgTypeReject:        true,
	message.MsgTypeSequenceReset: true,
	message.MsgTypeLogout:        true,
}

// Action tags what a ReplayPlan step does; the session state machine
// switches on it to build the concrete outbound FixMessage, matching the
// tagged-variant dispatch style spec.md §9 asks for instead of
// polymorphic replay objects.
type Action int

const (
	ActionGapFill Action = iota
	ActionReplay
)

// ReplayStep is one instruction produced by PlanResend.
type ReplayStep struct {
	Action Action

	// Valid when Action == ActionGapFill: collapse [FromSeq, ToSeq] into
	// a single SequenceReset-GapFill advancing the peer's expectation to
	// NewSeqNo.
	FromSeq   uint32
	ToSeq     uint32
	NewSeqNo  uint32

	// Valid when Action == ActionReplay: re-emit this stored message with
	// PossDupFlag=Y and OrigSendingTime set to its original send time.
	OriginalSeq  uint32
	OriginalBody []byte
}

// StoredOutbound is the minimal view PlanResend needs of a previously
// sent message — decoupled from store.Record so this package doesn't
// need to import store.
type StoredOutbound struct {
	Seq     uint32
	MsgType string
	Frame   []byte
}

// PlanResend implements spec.md §4.6's incoming-resend handling: it walks
// the stored outbound messages in [begin, end] and collapses contiguous
// runs of administrative messages into single GapFill steps, emitting a
// Replay step for every application message in between.
func PlanResend(begin, end uint32, stored []StoredOutbound, nextOutbound uint32) []ReplayStep {
	var steps []ReplayStep

	effectiveEnd := end
	if effectiveEnd == 0 {
		effectiveEnd = nextOutbound - 1
	}
	if effectiveEnd < begin {
		// Nothing has been sent in range: spec.md §8 boundary behavior —
		// a single GapFill from begin to nextOutbound.
		return []ReplayStep{{Action: ActionGapFill, FromSeq: begin, ToSeq: effectiveEnd, NewSeqNo: nextOutbound}}
	}

	var runStart uint32
	var runActive bool

	flushRun := func(runEnd uint32) {
		if runActive {
			steps = append(steps, ReplayStep{Action: ActionGapFill, FromSeq: runStart, ToSeq: runEnd, NewSeqNo: runEnd + 1})
			runActive = false
		}
	}

	for _, rec := range stored {
		if rec.Seq < begin || rec.Seq > effectiveEnd {
			continue
		}
		if administrative[rec.MsgType] {
			if !runActive {
				runStart = rec.Seq
				runActive = true
			}
			continue
		}
		flushRun(rec.Seq - 1)
		steps = append(steps, ReplayStep{
			Action:       ActionReplay,
			OriginalSeq:  rec.Seq,
			OriginalBody: rec.Frame,
		})
	}
	flushRun(effectiveEnd)

	return steps
}
