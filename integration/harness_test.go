// Package integration drives fixcore end to end over real loopback TCP
// connections, replacing the teacher's etcd-backed multi-server RPC
// integration suite (test/integration_test.go) with the six wire-level
// scenarios spec.md §8 names: clean handshake, gap/resend, a too-low
// inbound sequence, a corrupt frame, graceful logout, and administrative
// replay collapsing.
//
// Every test here wires the same collaborators cmd/fixserver wires in
// production (an Acceptor over a Registry, MessageStore and
// identity.Resolver) and drives them from a bare net.Conn so the exact
// bytes on the wire — not just the Machine's internal calls — are under
// test.
package integration

import (
	"context"
	"net"
	"testing"
	"time"

	"fixcore/codec"
	"fixcore/frame"
	"fixcore/identity"
	"fixcore/internal/clock"
	"fixcore/message"
	"fixcore/registry"
	"fixcore/store"
	"fixcore/transport"
)

// harness bundles one Acceptor and its Registry, listening on a fixed
// loopback address for the life of a single test.
type harness struct {
	addr     string
	registry *registry.Registry
	resolver *identity.MemoryResolver
}

// newHarness starts an Acceptor on addr and stops it when the test ends.
func newHarness(t *testing.T, addr string) *harness {
	t.Helper()
	resolver := identity.NewMemoryResolver()
	reg := registry.New(0)
	a := &transport.Acceptor{
		Store:    store.NewMemStore(),
		Resolver: resolver,
		Registry: reg,
		Clock:    clock.NewReal(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go a.Serve(ctx, "tcp", addr)
	t.Cleanup(cancel)
	time.Sleep(50 * time.Millisecond)

	return &harness{addr: addr, registry: reg, resolver: resolver}
}

// provision authorizes a CompID pair for this harness's resolver.
func (h *harness) provision(t *testing.T, sender, target string, heartBtInt int) {
	t.Helper()
	if err := h.resolver.Provision(context.Background(), sender, target, identity.SessionConfig{HeartbeatInterval: heartBtInt}); err != nil {
		t.Fatalf("provision: %v", err)
	}
}

// sessionID mirrors transport.Acceptor.bindSession's id derivation.
func sessionID(sender, target string) string {
	return sender + "->" + target
}

// awaitRegistered polls until a session id appears in (or disappears from)
// the registry, since binding happens on the accept goroutine.
func awaitRegistered(t *testing.T, h *harness, id string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, ok := h.registry.Lookup(id)
		if ok == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for session %q registered=%v", id, want)
}

// buildMessage assembles a FixMessage carrying an explicit MsgSeqNum, so
// scenario tests can drive sequence gaps deliberately instead of relying
// on ClientTransport's auto-increment.
func buildMessage(msgType, sender, target string, seq int, set func(*message.FixMessage)) *message.FixMessage {
	m := message.New()
	m.Set(message.TagMsgType, msgType)
	m.SetInt(message.TagMsgSeqNum, seq)
	m.Set(message.TagSenderCompID, sender)
	m.Set(message.TagTargetCompID, target)
	m.SetSendingTime(time.Now().UTC())
	if set != nil {
		set(m)
	}
	return m
}

// sendMessage encodes m and writes it whole to conn.
func sendMessage(t *testing.T, conn net.Conn, m *message.FixMessage) {
	t.Helper()
	fb, err := codec.Get(codec.TypeWire).Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(fb); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// encodeForTest wraps Encode for call sites that need the raw bytes
// before intentionally corrupting them.
func encodeForTest(t *testing.T, m *message.FixMessage) []byte {
	t.Helper()
	fb, err := codec.Get(codec.TypeWire).Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return fb
}

// corruptChecksum flips one digit of a well-formed frame's trailing
// CheckSum field, producing a frame whose BeginString/BodyLength/body are
// untouched but whose "10=" value no longer matches — a BadChecksum
// protocol violation per frame.Extract.
func corruptChecksum(fb []byte) []byte {
	out := make([]byte, len(fb))
	copy(out, fb)
	// Layout: ...10=DDD\x01 — the last byte is SOH, the three digits
	// precede it.
	pos := len(out) - 2
	if out[pos] == '9' {
		out[pos] = '0'
	} else {
		out[pos]++
	}
	return out
}

// frameReader scans complete frames off a connection one at a time,
// blocking on short reads the way the Acceptor's own scanner does.
type frameReader struct {
	conn    net.Conn
	scanner *frame.Scanner
	buf     []byte
}

func newFrameReader(conn net.Conn) *frameReader {
	return &frameReader{conn: conn, scanner: frame.NewScanner(), buf: make([]byte, 4096)}
}

// next blocks until a full frame is available, decodes it, and returns
// the result. Returns a non-nil error when the connection closes or a
// protocol violation is detected, or when timeout elapses first.
func (r *frameReader) next(timeout time.Duration) (*message.FixMessage, error) {
	deadline := time.Now().Add(timeout)
	for {
		if fb, ok, err := r.scanner.Next(); err != nil {
			return nil, err
		} else if ok {
			return codec.Get(codec.TypeWire).Decode(fb)
		}

		r.conn.SetReadDeadline(deadline)
		n, err := r.conn.Read(r.buf)
		if n > 0 {
			r.scanner.Feed(r.buf[:n])
		}
		if err != nil {
			return nil, err
		}
	}
}
