package session

import (
	"context"

	"fixcore/gap"
	"fixcore/message"
	"fixcore/store"
	"fixcore/validator"
)

// handleLogon implements spec.md §4.4's Connecting→LoggedOn transition:
// echo HeartBtInt, honor ResetSeqNumFlag=Y by resetting both counters.
func (m *Machine) handleLogon(ctx context.Context, in *message.FixMessage) error {
	heartBtInt, err := in.GetInt(message.TagHeartBtInt)
	if err != nil {
		return m.disconnect(ctx)
	}
	m.sess.HeartbeatInterval = heartBtInt
	m.sess.StartTime = m.clock.Now()

	if in.GetBool(message.TagResetSeqNumFlag) {
		m.sess.NextExpected = 1
		m.sess.NextOutbound = 1
	}

	inSeq, err := in.MsgSeqNum()
	if err != nil {
		return m.disconnect(ctx)
	}
	if inSeq >= m.sess.NextExpected {
		m.sess.NextExpected = inSeq + 1
	}

	if err := m.recordInbound(ctx, inSeq, mustEncode(m.codec, in)); err != nil {
		return m.disconnect(ctx)
	}

	m.sess.Status = LoggedOn
	if m.hb != nil {
		m.hb.Register(m.sess.ID, m.sess.HeartbeatInterval, buildHeartbeatCallbacks(m))
	}

	return m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeLogon)
		out.SetInt(message.TagEncryptMethod, 0)
		out.SetInt(message.TagHeartBtInt, heartBtInt)
	})
}

func (m *Machine) handleHeartbeat(ctx context.Context, in *message.FixMessage) error {
	m.sess.PendingTestReqID = ""
	return nil
}

// handleTestRequest emits a Heartbeat echoing the TestReqID, per
// spec.md §4.4.
func (m *Machine) handleTestRequest(ctx context.Context, in *message.FixMessage) error {
	testReqID, _ := in.Get(message.TagTestReqID)
	return m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeHeartbeat)
		out.Set(message.TagTestReqID, testReqID)
	})
}

// handleResendRequest implements spec.md §4.6's incoming-resend handling
// via gap.PlanResend, replaying stored outbound messages with
// administrative runs collapsed into GapFills.
func (m *Machine) handleResendRequest(ctx context.Context, in *message.FixMessage) error {
	begin, err := in.GetInt(message.TagBeginSeqNo)
	if err != nil {
		return m.disconnect(ctx)
	}
	end, err := in.GetInt(message.TagEndSeqNo)
	if err != nil {
		return m.disconnect(ctx)
	}

	records, err := m.store.Range(ctx, m.sess.ID, store.Out, uint32(begin), uint32(end))
	if err != nil {
		return m.disconnect(ctx)
	}

	stored := make([]gap.StoredOutbound, 0, len(records))
	for _, rec := range records {
		decoded, derr := m.codec.Decode(rec.Frame)
		if derr != nil {
			continue
		}
		stored = append(stored, gap.StoredOutbound{Seq: rec.Seq, MsgType: decoded.MsgType(), Frame: rec.Frame})
	}

	steps := gap.PlanResend(uint32(begin), uint32(end), stored, m.sess.NextOutbound)
	for _, step := range steps {
		switch step.Action {
		case gap.ActionGapFill:
			if err := m.sendMessage(ctx, func(out *message.FixMessage) {
				out.Set(message.TagMsgType, message.MsgTypeSequenceReset)
				out.SetBool(message.TagGapFillFlag, true)
				out.SetInt(message.TagNewSeqNo, int(step.NewSeqNo))
				out.SetBool(message.TagPossDupFlag, true)
			}); err != nil {
				return err
			}
		case gap.ActionReplay:
			original, derr := m.codec.Decode(step.OriginalBody)
			if derr != nil {
				continue
			}
			origSendingTime, _ := original.Get(message.TagSendingTime)
			if err := m.sendMessage(ctx, func(out *message.FixMessage) {
				for _, tag := range original.Tags() {
					if tag == message.TagBeginString || tag == message.TagBodyLength ||
						tag == message.TagMsgType || tag == message.TagMsgSeqNum ||
						tag == message.TagSenderCompID || tag == message.TagTargetCompID ||
						tag == message.TagSendingTime || tag == message.TagCheckSum {
						continue
					}
					v, _ := original.Get(tag)
					out.Set(tag, v)
				}
				out.Set(message.TagMsgType, original.MsgType())
				out.SetBool(message.TagPossDupFlag, true)
				out.Set(message.TagOrigSendingTime, origSendingTime)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleSequenceReset implements spec.md §4.6's SequenceReset handling.
func (m *Machine) handleSequenceReset(ctx context.Context, in *message.FixMessage) error {
	newSeqNo, err := in.GetInt(message.TagNewSeqNo)
	if err != nil {
		return m.disconnect(ctx)
	}
	gapFill := in.GetBool(message.TagGapFillFlag)

	if gapFill {
		if uint32(newSeqNo) > m.sess.NextExpected {
			m.sess.Gaps.FillRange(m.sess.NextExpected, uint32(newSeqNo)-1)
			m.sess.NextExpected = uint32(newSeqNo)
		}
		// NewSeqNo < nextExpected is invalid; spec.md leaves the exact
		// reply unspecified beyond "reject as invalid" — treated as a
		// silently ignored no-op here since it cannot safely be undone.
		return nil
	}

	// Hard reset: unconditional, permitted only during recovery.
	m.sess.NextExpected = uint32(newSeqNo)
	return nil
}

// handleLogout implements spec.md §4.4's LoggedOn→LogoutSent transition.
func (m *Machine) handleLogout(ctx context.Context, in *message.FixMessage) error {
	if m.sess.Status == LogoutSent {
		return m.disconnect(ctx)
	}
	m.sess.Status = LogoutSent
	if m.hb != nil {
		m.hb.Unregister(m.sess.ID)
	}
	return m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeLogout)
	})
}

func (m *Machine) handleApplication(ctx context.Context, in *message.FixMessage) error {
	if m.app == nil {
		return nil
	}
	replies, err := m.app.OnApplicationMessage(ctx, m.sess.ID, in)
	if err != nil {
		return nil // application errors never escalate, per spec.md §7
	}
	for _, reply := range replies {
		r := reply
		if err := m.sendMessage(ctx, func(out *message.FixMessage) {
			for _, tag := range r.Tags() {
				v, _ := r.Get(tag)
				out.Set(tag, v)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// sendReject implements spec.md §7's validation-error reply: Reject(3)
// with SessionRejectReason and RefSeqNum set, connection stays open.
func (m *Machine) sendReject(ctx context.Context, in *message.FixMessage, rej *validator.Rejection) error {
	return m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeReject)
		refSeq, _ := in.MsgSeqNum()
		out.SetInt(message.TagRefSeqNum, int(refSeq))
		out.SetInt(message.TagSessionRejectReason, int(rej.Reason))
		if rej.RefTagID != 0 {
			out.SetInt(message.TagRefTagID, rej.RefTagID)
		}
		out.Set(message.TagText, rej.Text)
	})
}

// sendTooLowLogout implements spec.md §4.4/§7's too-low sequence error:
// Logout then disconnect.
func (m *Machine) sendTooLowLogout(ctx context.Context, in *message.FixMessage) error {
	if err := m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeLogout)
		out.Set(message.TagText, "MsgSeqNum too low")
	}); err != nil {
		return err
	}
	return m.disconnect(ctx)
}

// sendResendRequest implements spec.md §4.6's gap-detection reply.
func (m *Machine) sendResendRequest(ctx context.Context, g gap.Gap) error {
	return m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeResendRequest)
		out.SetInt(message.TagBeginSeqNo, int(g.Begin))
		out.SetInt(message.TagEndSeqNo, int(g.End))
	})
}

func mustEncode(c interface {
	Encode(*message.FixMessage) ([]byte, error)
}, m *message.FixMessage) []byte {
	frame, err := c.Encode(m)
	if err != nil {
		return nil
	}
	return frame
}
