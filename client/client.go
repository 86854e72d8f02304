// Package client is the administrative/test FIX client: Logon, Heartbeat,
// TestRequest, Logout against a single counterparty. It backs cmd/fixclient;
// the integration tests drive the server over bare net.Conn instead.
//
// Grounded on the teacher's Client.Call flow (client/client.go): discover →
// pick → transport → send → await collapses here into dial → send →
// await, because a FIX session has exactly one counterparty per
// connection — there is no registry or load balancer to consult
// client-side. The send/await-by-correlation-key idea is carried from
// transport.ClientTransport, the same way the teacher's Call awaits on the
// channel returned by transport.Send.
package client

import (
	"errors"
	"net"
	"time"

	"fixcore/message"
	"fixcore/transport"
)

// ErrTimeout is returned when a reply does not arrive within the caller's
// deadline.
var ErrTimeout = errors.New("client: timed out waiting for reply")

// ErrClosed is returned when the connection closes while a reply is
// outstanding.
var ErrClosed = errors.New("client: connection closed")

// Client drives one FIX session from the probing side.
type Client struct {
	t      *transport.ClientTransport
	sender string
	target string
}

// Dial connects to addr, sends a Logon carrying heartBtInt (and
// ResetSeqNumFlag=Y when resetSeqNum is set), and blocks until the
// counterparty's Logon reply arrives or timeout elapses — spec.md
// scenario S1's opening exchange, driven from the client side.
func Dial(addr, senderCompID, targetCompID string, heartBtInt int, resetSeqNum bool, timeout time.Duration) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		t:      transport.NewClientTransport(conn),
		sender: senderCompID,
		target: targetCompID,
	}

	_, ch, err := c.t.Send(c.sender, c.target, func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeLogon)
		m.SetInt(message.TagEncryptMethod, 0)
		m.SetInt(message.TagHeartBtInt, heartBtInt)
		if resetSeqNum {
			m.SetBool(message.TagResetSeqNumFlag, true)
		}
	}, message.MsgTypeLogon)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := c.await(ch, timeout); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Heartbeat sends an unsolicited Heartbeat(0), the reply to a peer's
// TestRequest in spec.md §4.4's steady-state transition table.
func (c *Client) Heartbeat() error {
	_, _, err := c.t.Send(c.sender, c.target, func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeHeartbeat)
	}, "")
	return err
}

// TestRequest sends a TestRequest(1) carrying testReqID and waits for the
// counterparty's Heartbeat(0) echo, per spec.md §4.4.
func (c *Client) TestRequest(testReqID string, timeout time.Duration) (*message.FixMessage, error) {
	_, ch, err := c.t.Send(c.sender, c.target, func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeTestRequest)
		m.Set(message.TagTestReqID, testReqID)
	}, message.MsgTypeHeartbeat)
	if err != nil {
		return nil, err
	}
	return c.await(ch, timeout)
}

// Logout sends a Logout(5), waits for the counterparty's acknowledgement,
// and closes the connection — spec.md scenario S5 driven from the client
// side.
func (c *Client) Logout(timeout time.Duration) error {
	_, ch, err := c.t.Send(c.sender, c.target, func(m *message.FixMessage) {
		m.Set(message.TagMsgType, message.MsgTypeLogout)
	}, message.MsgTypeLogout)
	if err != nil {
		return err
	}
	_, waitErr := c.await(ch, timeout)
	_ = c.Close()
	return waitErr
}

// Close closes the underlying connection without a Logout handshake.
func (c *Client) Close() error {
	return c.t.Close()
}

func (c *Client) await(ch <-chan *message.FixMessage, timeout time.Duration) (*message.FixMessage, error) {
	select {
	case reply := <-ch:
		if reply == nil {
			return nil, ErrClosed
		}
		return reply, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}
