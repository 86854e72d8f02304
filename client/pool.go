package client

import (
	"net"
	"time"

	"fixcore/message"
	"fixcore/transport"
)

// Pool dials and authenticates up to size connections to one
// counterparty up front, then hands them out for repeated
// Heartbeat/TestRequest probes — the shape cmd/fixclient's bench mode
// needs to measure steady-state round-trip latency without a Logon
// handshake on the critical path of every sample.
type Pool struct {
	sessions *transport.SessionPool
	sender   string
	target   string
}

// DialPool builds a Pool of up to size pre-authenticated connections to
// addr. Each underlying connection performs its own Logon handshake the
// first time it's created; logonTimeout bounds that handshake.
func DialPool(addr, senderCompID, targetCompID string, heartBtInt, size int, logonTimeout time.Duration) *Pool {
	factory := func() (*transport.ClientTransport, error) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		ct := transport.NewClientTransport(conn)

		_, ch, err := ct.Send(senderCompID, targetCompID, func(m *message.FixMessage) {
			m.Set(message.TagMsgType, message.MsgTypeLogon)
			m.SetInt(message.TagEncryptMethod, 0)
			m.SetInt(message.TagHeartBtInt, heartBtInt)
		}, message.MsgTypeLogon)
		if err != nil {
			ct.Close()
			return nil, err
		}

		select {
		case reply := <-ch:
			if reply == nil {
				return nil, ErrClosed
			}
		case <-time.After(logonTimeout):
			ct.Close()
			return nil, ErrTimeout
		}
		return ct, nil
	}

	return &Pool{
		sessions: transport.NewSessionPool(size, factory),
		sender:   senderCompID,
		target:   targetCompID,
	}
}

// Probe borrows a session, sends a TestRequest carrying testReqID, waits
// for the Heartbeat echo, and returns the session to the pool. Returning
// to the pool happens regardless of outcome; a session that errors is
// marked unusable so Put discards it instead of recycling a broken
// connection.
func (p *Pool) Probe(testReqID string, timeout time.Duration) (*message.FixMessage, error) {
	s, err := p.sessions.Get()
	if err != nil {
		return nil, err
	}

	_, ch, err := s.Send(p.sender, p.target, func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeTestRequest)
		m.Set(message.TagTestReqID, testReqID)
	}, message.MsgTypeHeartbeat)
	if err != nil {
		s.MarkUnusable()
		p.sessions.Put(s)
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply == nil {
			s.MarkUnusable()
			p.sessions.Put(s)
			return nil, ErrClosed
		}
		p.sessions.Put(s)
		return reply, nil
	case <-time.After(timeout):
		s.MarkUnusable()
		p.sessions.Put(s)
		return nil, ErrTimeout
	}
}

// Close closes every idle pooled session.
func (p *Pool) Close() error {
	return p.sessions.Close()
}
