package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"fixcore/codec"
	"fixcore/heartbeat"
	"fixcore/internal/clock"
	"fixcore/message"
	"fixcore/store"
	"fixcore/validator"
)

// ApplicationHandler is the ApplicationHandler contract of spec.md §6:
// non-session-level message types are forwarded here, and any messages
// it returns are assigned sequence numbers and sent by the core.
type ApplicationHandler interface {
	OnApplicationMessage(ctx context.Context, sessionID string, m *message.FixMessage) ([]*message.FixMessage, error)
}

// Sender delivers an encoded outbound frame to the transport's
// per-session FIFO. Implementations must preserve write order.
type Sender interface {
	Send(frame []byte) error

	// Close tears down the underlying connection; called when the
	// machine transitions to Disconnecting.
	Close() error
}

// Machine is the SessionStateMachine: it owns a *Session and is the only
// thing allowed to mutate it. One Machine exists per connection.
type Machine struct {
	mu sync.Mutex

	sess  *Session
	codec codec.Codec
	store store.MessageStore
	clock clock.Clock
	app   ApplicationHandler
	out   Sender
	hb    *heartbeat.Scheduler
}

// Config bundles the collaborators a Machine needs, per spec.md §6.
type Config struct {
	Store    store.MessageStore
	Clock    clock.Clock
	App      ApplicationHandler
	Sender   Sender
	Heartbeats *heartbeat.Scheduler
}

// NewMachine wires a fresh Session to its collaborators and marks it
// Connecting, per spec.md §4.4's Disconnected→Connecting transition.
func NewMachine(sess *Session, cfg Config) *Machine {
	sess.Status = Connecting
	m := &Machine{
		sess:  sess,
		codec: codec.Get(codec.TypeWire),
		store: cfg.Store,
		clock: cfg.Clock,
		app:   cfg.App,
		out:   cfg.Sender,
		hb:    cfg.Heartbeats,
	}
	return m
}

// Session exposes the underlying session for registry/administrative use.
func (m *Machine) Session() *Session { return m.sess }

// HandleInbound processes one complete wire frame. Frames for a single
// session must be delivered to this method strictly in arrival order —
// per spec.md §4.4's ordering guarantee, effects of message N complete
// before message N+1 is processed.
func (m *Machine) HandleInbound(ctx context.Context, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	decoded, err := m.codec.Decode(frame)
	if err != nil {
		// Decoding error with no identifiable tag: close per spec.md §7.
		return m.disconnect(ctx)
	}

	msgType := decoded.MsgType()

	rej := validator.Validate(decoded, m.sess.Local, m.sess.Remote, m.clock.Now())

	if m.sess.Status == Connecting {
		if msgType != message.MsgTypeLogon || rej != nil {
			return m.disconnect(ctx)
		}
		return m.handleLogon(ctx, decoded)
	}

	if rej != nil {
		if rej.Disconnect {
			return m.disconnect(ctx)
		}
		return m.sendReject(ctx, decoded, rej)
	}

	if m.hb != nil {
		m.hb.NoteInbound(m.sess.ID)
	}

	seq, err := decoded.GetInt(message.TagMsgSeqNum)
	if err != nil {
		return m.disconnect(ctx)
	}
	possDup := decoded.GetBool(message.TagPossDupFlag)
	isGapFillReset := msgType == message.MsgTypeSequenceReset && decoded.GetBool(message.TagGapFillFlag)

	if !isGapFillReset && !possDup {
		switch {
		case uint32(seq) < m.sess.NextExpected:
			return m.sendTooLowLogout(ctx, decoded)
		case uint32(seq) > m.sess.NextExpected:
			return m.openGapAndBuffer(ctx, uint32(seq), decoded, frame)
		default:
			m.sess.NextExpected++
			m.sess.Gaps.Fill(uint32(seq))
		}
	}

	if err := m.recordInbound(ctx, uint32(seq), frame); err != nil {
		return m.disconnect(ctx)
	}

	if err := m.dispatch(ctx, decoded); err != nil {
		return err
	}

	return m.drainBuffered(ctx)
}

// dispatch is the explicit MsgType switch spec.md §9 calls for in place
// of polymorphic handler classes.
func (m *Machine) dispatch(ctx context.Context, decoded *message.FixMessage) error {
	switch decoded.MsgType() {
	case message.MsgTypeHeartbeat:
		return m.handleHeartbeat(ctx, decoded)
	case message.MsgTypeTestRequest:
		return m.handleTestRequest(ctx, decoded)
	case message.MsgTypeResendRequest:
		return m.handleResendRequest(ctx, decoded)
	case message.MsgTypeSequenceReset:
		return m.handleSequenceReset(ctx, decoded)
	case message.MsgTypeReject:
		return nil // log-only, per spec.md §4.4
	case message.MsgTypeLogout:
		return m.handleLogout(ctx, decoded)
	default:
		return m.handleApplication(ctx, decoded)
	}
}

func (m *Machine) recordInbound(ctx context.Context, seq uint32, frame []byte) error {
	return m.store.Append(ctx, m.sess.ID, store.In, seq, frame, m.clock.Now())
}

// openGapAndBuffer implements spec.md §4.4's MsgSeqNum > nextExpected
// branch: open the gap via GapManager and hold the triggering message
// until the gap closes.
func (m *Machine) openGapAndBuffer(ctx context.Context, seq uint32, decoded *message.FixMessage, frame []byte) error {
	// Duplicate-of-buffered: the peer re-delivered a message already
	// held pending gap closure. Drop it rather than opening a second,
	// overlapping gap entry for the same range, per spec.md §4.4's
	// "duplicate-of-buffered messages are dropped".
	if _, already := m.sess.buffered[seq]; already {
		return nil
	}

	g := m.sess.Gaps.Open(m.sess.NextExpected, seq-1)
	m.sess.buffered[seq] = frame

	if !m.sess.Gaps.AllowResendRequest() {
		return nil
	}
	m.sess.Gaps.MarkResendRequested(seq)
	return m.sendResendRequest(ctx, g)
}

// drainBuffered replays any buffered messages that are now unblocked by
// gap closure, continuing until a gap reopens or the buffer is empty.
func (m *Machine) drainBuffered(ctx context.Context) error {
	for {
		if m.sess.Gaps.HasOpenGaps() {
			return nil
		}
		frame, ok := m.sess.buffered[m.sess.NextExpected]
		if !ok {
			return nil
		}
		delete(m.sess.buffered, m.sess.NextExpected)

		decoded, err := m.codec.Decode(frame)
		if err != nil {
			return m.disconnect(ctx)
		}
		m.sess.NextExpected++
		bufSeq, err := decoded.MsgSeqNum()
		if err != nil {
			return m.disconnect(ctx)
		}
		if err := m.recordInbound(ctx, bufSeq, frame); err != nil {
			return m.disconnect(ctx)
		}
		if err := m.dispatch(ctx, decoded); err != nil {
			return err
		}
	}
}

// sendMessage assigns the next outbound sequence number, stamps
// SendingTime, encodes, stores, and writes the frame — atomically with
// respect to other outbound sends on this session, per spec.md §4.4's
// outbound assignment rule. Callers must already hold m.mu.
func (m *Machine) sendMessage(ctx context.Context, build func(*message.FixMessage)) error {
	out := message.New()
	out.Set(message.TagBeginString, message.BeginString)
	out.Set(message.TagSenderCompID, m.sess.Local)
	out.Set(message.TagTargetCompID, m.sess.Remote)
	out.SetInt(message.TagMsgSeqNum, int(m.sess.NextOutbound))
	out.SetSendingTime(m.clock.Now())
	build(out)

	frame, err := m.codec.Encode(out)
	if err != nil {
		return err
	}

	seq := m.sess.NextOutbound
	if err := m.store.Append(ctx, m.sess.ID, store.Out, seq, frame, m.clock.Now()); err != nil {
		return m.disconnect(ctx)
	}
	if err := m.out.Send(frame); err != nil {
		return m.disconnect(ctx)
	}
	m.sess.NextOutbound++
	if m.hb != nil {
		m.hb.NoteOutbound(m.sess.ID)
	}
	return nil
}

func (m *Machine) disconnect(ctx context.Context) error {
	m.sess.Status = Disconnecting
	return m.out.Close()
}

// Shutdown initiates a server-side graceful logout: unlike handleLogout's
// ack path, here the server itself is ending the session, so it sends the
// Logout and closes without waiting for the counterparty's echo. Used by
// registry.Registry.ShutdownAll during process shutdown.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.Status != LoggedOn {
		return m.disconnect(ctx)
	}

	if err := m.sendMessage(ctx, func(out *message.FixMessage) {
		out.Set(message.TagMsgType, message.MsgTypeLogout)
	}); err != nil {
		return err
	}
	return m.disconnect(ctx)
}

func newTestReqID() string {
	return "TEST_" + uuid.NewString()[:8]
}

// buildHeartbeatCallbacks wires the scheduler's timer events back onto
// this machine. Each callback acquires m.mu itself, since the timer
// wheel invokes these from its own goroutine, never from HandleInbound.
func buildHeartbeatCallbacks(m *Machine) heartbeat.Callbacks {
	return heartbeat.Callbacks{
		OnHeartbeatDue: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			_ = m.sendMessage(context.Background(), func(out *message.FixMessage) {
				out.Set(message.TagMsgType, message.MsgTypeHeartbeat)
			})
		},
		OnTestRequestDue: func() string {
			m.mu.Lock()
			defer m.mu.Unlock()
			id := newTestReqID()
			m.sess.PendingTestReqID = id
			_ = m.sendMessage(context.Background(), func(out *message.FixMessage) {
				out.Set(message.TagMsgType, message.MsgTypeTestRequest)
				out.Set(message.TagTestReqID, id)
			})
			return id
		},
		OnTimeout: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			_ = m.disconnect(context.Background())
		},
	}
}
