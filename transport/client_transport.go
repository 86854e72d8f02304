// ClientTransport is the client-side counterpart of the Acceptor: it owns
// one TCP connection to a counterparty, assigns outbound MsgSeqNum values,
// and demultiplexes inbound frames back to whichever caller is waiting for
// a reply of a given MsgType.
//
// Grounded directly on the teacher's transport.ClientTransport
// (client_transport.go): the same shape — a sending mutex serializing
// writes, a background recvLoop, and a pending map that routes replies to
// per-call channels — carries over unchanged. What changes is the
// correlation key: the teacher routes by a monotonic RPC Seq because every
// request gets exactly one response; a FIX admin probe instead waits for
// the next reply of a particular MsgType (the next Logon, the next
// Heartbeat, the next Logout ack), so pending is keyed by MsgType and each
// key holds a FIFO queue of waiters rather than a single entry.
package transport

import (
	"net"
	"sync"
	"time"

	"fixcore/codec"
	"fixcore/frame"
	"fixcore/message"
)

var clientWireCodec = codec.Get(codec.TypeWire)

// clientReadBufSize is the chunk size used to read off the connection
// before feeding the frame scanner.
const clientReadBufSize = 4096

// ClientTransport manages a single FIX connection from the probing side.
type ClientTransport struct {
	conn net.Conn

	sending sync.Mutex
	seq     uint32

	mu      sync.Mutex
	pending map[string][]chan *message.FixMessage // MsgType -> FIFO waiters
	closed  bool
}

// NewClientTransport wraps conn and starts its background recvLoop.
func NewClientTransport(conn net.Conn) *ClientTransport {
	t := &ClientTransport{
		conn:    conn,
		pending: make(map[string][]chan *message.FixMessage),
	}
	go t.recvLoop()
	return t
}

// Send assembles a message via build, stamps MsgSeqNum and SendingTime,
// encodes it, and writes it to the connection. If waitType is non-empty,
// the returned channel receives the next inbound message of that MsgType;
// a nil value on the channel means the connection closed before one
// arrived. The sending mutex guarantees the whole frame is written
// atomically, exactly as in the teacher's Send.
func (t *ClientTransport) Send(senderCompID, targetCompID string, build func(*message.FixMessage), waitType string) (uint32, <-chan *message.FixMessage, error) {
	t.sending.Lock()
	defer t.sending.Unlock()

	t.seq++
	seq := t.seq

	m := message.New()
	build(m)
	m.Set(message.TagSenderCompID, senderCompID)
	m.Set(message.TagTargetCompID, targetCompID)
	m.SetInt(message.TagMsgSeqNum, int(seq))
	m.SetSendingTime(time.Now())

	var respChan chan *message.FixMessage
	if waitType != "" {
		respChan = make(chan *message.FixMessage, 1)
		t.mu.Lock()
		t.pending[waitType] = append(t.pending[waitType], respChan)
		t.mu.Unlock()
	}

	frameBytes, err := clientWireCodec.Encode(m)
	if err != nil {
		return 0, nil, err
	}
	if _, err := t.conn.Write(frameBytes); err != nil {
		return 0, nil, err
	}
	return seq, respChan, nil
}

// recvLoop runs in a dedicated goroutine, reading frames off the
// connection and routing each to the oldest waiter for its MsgType. A
// single reader is required here for the same reason as on the server
// side: frame boundaries only parse correctly under sequential reads.
func (t *ClientTransport) recvLoop() {
	scanner := frame.NewScanner()
	buf := make([]byte, clientReadBufSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			scanner.Feed(buf[:n])
			for {
				fb, ok, ferr := scanner.Next()
				if ferr != nil {
					t.closeAllPending()
					return
				}
				if !ok {
					break
				}
				decoded, derr := clientWireCodec.Decode(fb)
				if derr != nil {
					continue
				}
				t.dispatch(decoded)
			}
		}
		if err != nil {
			t.closeAllPending()
			return
		}
	}
}

// dispatch routes one decoded inbound message to the oldest caller
// waiting on its MsgType, if any.
func (t *ClientTransport) dispatch(m *message.FixMessage) {
	t.mu.Lock()
	var ch chan *message.FixMessage
	if waiters := t.pending[m.MsgType()]; len(waiters) > 0 {
		ch = waiters[0]
		t.pending[m.MsgType()] = waiters[1:]
	}
	t.mu.Unlock()
	if ch != nil {
		ch <- m
	}
}

// closeAllPending is called when the connection breaks, so no waiter
// blocks forever; a nil value on the channel signals closure.
func (t *ClientTransport) closeAllPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, waiters := range t.pending {
		for _, ch := range waiters {
			ch <- nil
		}
		delete(t.pending, key)
	}
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// Close closes the underlying connection. Safe to call more than once.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
