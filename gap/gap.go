// Package gap implements the GapManager of spec.md §4.6: tracking
// inbound sequence gaps, planning ResendRequests, and planning the
// administrative-skip-collapsing replay of a peer's own ResendRequest.
//
// gap deliberately does not import the session package — it operates on
// plain sequence numbers and store.Record values and returns Plan values
// describing what the session state machine should send. This keeps the
// dependency graph one-directional (session → gap), per the teacher's
// own layering where protocol/codec/registry never import server.
package gap

import (
	"sort"

	"golang.org/x/time/rate"
)

// resendRequestRate bounds how often a Tracker will approve issuing a
// fresh ResendRequest for the same session: a persistently out-of-sync
// peer should not be asked to resend on every single out-of-order
// frame it delivers.
const (
	resendRequestRate  = 1 // per second
	resendRequestBurst = 1
)

// Gap is a contiguous inclusive range of inbound sequence numbers the
// peer has not yet delivered, per spec.md §3's SequenceGap.
type Gap struct {
	Begin           uint32
	End             uint32 // 0 means "through infinity"
	ResendRequested bool
}

// Tracker holds the active gap list for one session. It is not
// goroutine-safe — callers must serialize access the same way the owning
// session serializes all its other state, per spec.md §3's Ownership note.
type Tracker struct {
	gaps    []Gap
	limiter *rate.Limiter
}

// NewTracker returns an empty gap tracker, throttled to at most one
// outbound ResendRequest per second per session.
func NewTracker() *Tracker {
	return &Tracker{limiter: rate.NewLimiter(resendRequestRate, resendRequestBurst)}
}

// AllowResendRequest reports whether the caller may issue another
// outbound ResendRequest now, consuming a token if so.
func (t *Tracker) AllowResendRequest() bool {
	return t.limiter.Allow()
}

// Open records a new gap [begin, end] and returns it. end of 0 means
// "through infinity", used when the gap is still growing.
func (t *Tracker) Open(begin, end uint32) Gap {
	g := Gap{Begin: begin, End: end}
	t.gaps = append(t.gaps, g)
	sort.Slice(t.gaps, func(i, j int) bool { return t.gaps[i].Begin < t.gaps[j].Begin })
	return g
}

// MarkResendRequested flags the gap covering seq (if any) as having had
// its ResendRequest issued, so retries don't re-issue redundantly.
func (t *Tracker) MarkResendRequested(seq uint32) {
	for i := range t.gaps {
		if t.gaps[i].Begin <= seq && (t.gaps[i].End == 0 || seq <= t.gaps[i].End) {
			t.gaps[i].ResendRequested = true
		}
	}
}

// Fill removes a single delivered sequence number from the gap list, per
// spec.md §4.6's "range-delete of a single point": removing an interior
// point splits the gap into two; removing an endpoint shrinks it;
// removing the sole element deletes the gap entirely.
func (t *Tracker) Fill(seq uint32) {
	out := t.gaps[:0]
	for _, g := range t.gaps {
		inRange := g.Begin <= seq && (g.End == 0 || seq <= g.End)
		if !inRange {
			out = append(out, g)
			continue
		}
		switch {
		case g.Begin == seq && g.End == seq:
			// sole element: drop entirely
		case g.Begin == seq:
			out = append(out, Gap{Begin: seq + 1, End: g.End, ResendRequested: g.ResendRequested})
		case g.End == seq:
			out = append(out, Gap{Begin: g.Begin, End: seq - 1, ResendRequested: g.ResendRequested})
		case g.End == 0:
			// unbounded gap, interior point: split into a closed gap and
			// a new unbounded gap starting past seq.
			out = append(out, Gap{Begin: g.Begin, End: seq - 1, ResendRequested: g.ResendRequested})
			out = append(out, Gap{Begin: seq + 1, End: 0, ResendRequested: g.ResendRequested})
		default:
			out = append(out, Gap{Begin: g.Begin, End: seq - 1, ResendRequested: g.ResendRequested})
			out = append(out, Gap{Begin: seq + 1, End: g.End, ResendRequested: g.ResendRequested})
		}
	}
	t.gaps = out
}

// FillRange removes every sequence number in [begin, end] (inclusive)
// from the gap list — the range-wide counterpart to Fill, needed when a
// GapFill SequenceReset skips more than one sequence number at once
// (spec.md §4.6/§8): a single-point Fill only closes the one number it
// names, leaving the rest of a wider skipped range stranded as a
// stale, never-closable gap entry.
func (t *Tracker) FillRange(begin, end uint32) {
	for seq := begin; seq <= end; seq++ {
		t.Fill(seq)
	}
}

// HasOpenGaps reports whether any gap remains.
func (t *Tracker) HasOpenGaps() bool {
	return len(t.gaps) > 0
}

// Gaps returns a read-only snapshot of the active gap list.
func (t *Tracker) Gaps() []Gap {
	out := make([]Gap, len(t.gaps))
	copy(out, t.gaps)
	return out
}
