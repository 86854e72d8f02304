package transport

import (
	"net"
	"testing"
	"time"

	"fixcore/codec"
	"fixcore/message"
)

// dialPair opens a loopback TCP connection and returns both ends, letting
// a test drive the server side by hand without needing a real Acceptor.
func dialPair(t *testing.T) (client net.Conn, serverSide net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := listener.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err = net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	serverSide = <-accepted
	return client, serverSide
}

// TestClientTransportSendAssignsIncrementingSeqAndRoutesReplyByMsgType
// mirrors the teacher's serial-call test, replacing "n requests matched by
// RPC Seq" with "n sends matched by MsgType": Logon waits for the next
// Logon reply, Heartbeat is fire-and-forget.
func TestClientTransportSendAssignsIncrementingSeqAndRoutesReplyByMsgType(t *testing.T) {
	clientConn, serverConn := dialPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	ct := NewClientTransport(clientConn)

	seq1, ch, err := ct.Send("CLIENT1", "SERVER1", func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeLogon)
		m.SetInt(message.TagHeartBtInt, 30)
	}, message.MsgTypeLogon)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if seq1 != 1 {
		t.Fatalf("expected seq 1, got %d", seq1)
	}

	buf := make([]byte, 4096)
	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := serverConn.Read(buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	sent, err := codec.Get(codec.TypeWire).Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode sent: %v", err)
	}
	if sent.MsgType() != message.MsgTypeLogon {
		t.Fatalf("expected Logon on the wire, got %q", sent.MsgType())
	}

	reply := message.New()
	reply.Set(message.TagMsgType, message.MsgTypeLogon)
	reply.SetInt(message.TagMsgSeqNum, 1)
	reply.Set(message.TagSenderCompID, "SERVER1")
	reply.Set(message.TagTargetCompID, "CLIENT1")
	reply.SetSendingTime(time.Now())
	reply.SetInt(message.TagHeartBtInt, 30)
	replyFrame, err := codec.Get(codec.TypeWire).Encode(reply)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	if _, err := serverConn.Write(replyFrame); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case got := <-ch:
		if got == nil {
			t.Fatal("expected a Logon reply, got connection-closed signal")
		}
		if got.MsgType() != message.MsgTypeLogon {
			t.Fatalf("expected Logon, got %q", got.MsgType())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Logon reply")
	}

	seq2, _, err := ct.Send("CLIENT1", "SERVER1", func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeHeartbeat)
	}, "")
	if err != nil {
		t.Fatalf("send heartbeat: %v", err)
	}
	if seq2 != 2 {
		t.Fatalf("expected seq 2, got %d", seq2)
	}
}

// TestClientTransportConcurrentSendsGetDistinctSeqNumbers mirrors the
// teacher's concurrent-call test (the "multiplexing core test"): many
// goroutines sending at once must never observe a duplicate MsgSeqNum,
// exactly as spec.md §4.4's outbound-assignment invariant requires.
func TestClientTransportConcurrentSendsGetDistinctSeqNumbers(t *testing.T) {
	clientConn, serverConn := dialPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := serverConn.Read(buf); err != nil {
				return
			}
		}
	}()

	ct := NewClientTransport(clientConn)

	const n = 50
	seqs := make(chan uint32, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			seq, _, err := ct.Send("CLIENT1", "SERVER1", func(m *message.FixMessage) {
				m.Set(message.TagMsgType, message.MsgTypeHeartbeat)
			}, "")
			seqs <- seq
			errs <- err
		}()
	}

	seen := make(map[uint32]bool, n)
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("send failed: %v", err)
		}
		seq := <-seqs
		if seen[seq] {
			t.Fatalf("duplicate MsgSeqNum %d assigned concurrently", seq)
		}
		seen[seq] = true
	}
}

func TestClientTransportClosingConnectionUnblocksPendingWaiters(t *testing.T) {
	clientConn, serverConn := dialPair(t)
	defer clientConn.Close()

	ct := NewClientTransport(clientConn)
	_, ch, err := ct.Send("CLIENT1", "SERVER1", func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeLogout)
	}, message.MsgTypeLogout)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	serverConn.Close()

	select {
	case got := <-ch:
		if got != nil {
			t.Fatal("expected nil on connection close, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close signal")
	}
}
