// Package validator performs the structural and semantic checks of
// spec.md §4.3 on a decoded FixMessage. It is pure: every check returns a
// *Rejection describing the offending tag and reason instead of throwing,
// per spec.md §9's "replace exception control flow with typed result
// values" design note. The session state machine decides what to do with
// a Rejection (reply, disconnect, or ignore).
package validator

import (
	"fmt"
	"time"

	"fixcore/message"
)

// RejectReason mirrors the SessionRejectReason values a Reject(3) needs to
// carry, per spec.md §6/§7.
type RejectReason int

const (
	ReasonInvalidTagNumber RejectReason = iota
	ReasonRequiredTagMissing
	ReasonValueIncorrect
	ReasonCompIDProblem
	ReasonSendingTimeAccuracyProblem
)

func (r RejectReason) String() string {
	switch r {
	case ReasonInvalidTagNumber:
		return "InvalidTagNumber"
	case ReasonRequiredTagMissing:
		return "RequiredTagMissing"
	case ReasonValueIncorrect:
		return "ValueIncorrect"
	case ReasonCompIDProblem:
		return "CompIDProblem"
	case ReasonSendingTimeAccuracyProblem:
		return "SendingTimeAccuracyProblem"
	default:
		return "Unknown"
	}
}

// Rejection is the typed outcome of a failed validation.
type Rejection struct {
	Reason      RejectReason
	RefTagID    int    // offending tag, 0 if not tag-specific
	Text        string // human-readable detail for the Reject(3)'s tag 58
	Disconnect  bool   // true when spec.md §4.3/§7 calls for closing the connection
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("validator: %s (tag %d): %s", r.Reason, r.RefTagID, r.Text)
}

func reject(reason RejectReason, tag int, text string, disconnect bool) *Rejection {
	return &Rejection{Reason: reason, RefTagID: tag, Text: text, Disconnect: disconnect}
}

// sendingTimeSkew is the ±2 minute tolerance from spec.md §4.3 step 3.
const sendingTimeSkew = 2 * time.Minute

// requiredTags lists the fields spec.md §4.3 step 4 names as required for
// each recognized MsgType. Types not listed pass as an "application
// message" unchallenged beyond the header checks every message gets.
var requiredTags = map[string][]int{
	message.MsgTypeLogon:         {message.TagEncryptMethod, message.TagHeartBtInt},
	message.MsgTypeLogout:        {},
	message.MsgTypeHeartbeat:     {},
	message.MsgTypeTestRequest:   {message.TagTestReqID},
	message.MsgTypeResendRequest: {message.TagBeginSeqNo, message.TagEndSeqNo},
	message.MsgTypeReject:        {message.TagRefSeqNum},
	message.MsgTypeSequenceReset: {message.TagNewSeqNo},
	message.MsgTypeNewOrderSingle: {message.TagClOrdID, message.TagSymbol, message.TagSide, message.TagOrdType},
	message.MsgTypeExecutionReport: {},
}

// Validate runs the ordered checks of spec.md §4.3. localCompID and
// remoteCompID are the session's own identifiers: the message's
// SenderCompID must equal remoteCompID and its TargetCompID must equal
// localCompID. now is the clock's current wall time, used for the
// SendingTime skew check.
func Validate(m *message.FixMessage, localCompID, remoteCompID string, now time.Time) *Rejection {
	// Step 1: header well-formedness.
	if bs, ok := m.Get(message.TagBeginString); !ok || bs != message.BeginString {
		return reject(ReasonValueIncorrect, message.TagBeginString, "BeginString missing or unsupported", true)
	}
	if !m.Has(message.TagBodyLength) {
		return reject(ReasonRequiredTagMissing, message.TagBodyLength, "BodyLength missing", true)
	}
	if _, err := m.GetInt(message.TagBodyLength); err != nil {
		return reject(ReasonValueIncorrect, message.TagBodyLength, "BodyLength not numeric", true)
	}
	msgType, ok := m.Get(message.TagMsgType)
	if !ok || msgType == "" {
		return reject(ReasonRequiredTagMissing, message.TagMsgType, "MsgType missing", true)
	}

	// Step 2: CompID cross-check. Mismatch disconnects (spec.md §7).
	if sender := m.SenderCompID(); sender != remoteCompID {
		return reject(ReasonCompIDProblem, message.TagSenderCompID,
			fmt.Sprintf("SenderCompID %q does not match session's remote id %q", sender, remoteCompID), true)
	}
	if target := m.TargetCompID(); target != localCompID {
		return reject(ReasonCompIDProblem, message.TagTargetCompID,
			fmt.Sprintf("TargetCompID %q does not match session's local id %q", target, localCompID), true)
	}

	// Step 3: SendingTime skew. Stays connected; this is a session-level
	// reject, not a disconnect, per spec.md §4.3.
	if st, err := m.SendingTime(); err == nil {
		skew := now.Sub(st)
		if skew < 0 {
			skew = -skew
		}
		if skew > sendingTimeSkew {
			return reject(ReasonSendingTimeAccuracyProblem, message.TagSendingTime,
				fmt.Sprintf("SendingTime %v outside ±%v of local clock", st, sendingTimeSkew), false)
		}
	}

	// Step 4: per-MsgType required fields.
	for _, tag := range requiredTags[msgType] {
		if !m.Has(tag) {
			return reject(ReasonRequiredTagMissing, tag,
				fmt.Sprintf("MsgType %s requires tag %d", msgType, tag), false)
		}
	}

	return nil
}
