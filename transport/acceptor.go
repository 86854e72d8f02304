// Package transport implements the network edge of fixcore: accepting TCP
// (optionally TLS) connections, scanning complete FIX frames off the wire,
// and binding each connection to a session.Machine once its Logon has been
// authorized.
//
// Grounded on the teacher's server.Serve/handleConn accept loop
// (server/server.go): one goroutine per connection reads frames
// sequentially (frame boundaries require a single reader), but where the
// teacher spun off a fresh goroutine per request and serialized writes
// behind a shared writeMu, fixcore serializes entirely on one per-session
// goroutine (per spec.md §4.4's FIFO ordering requirement) and replaces
// writeMu with an explicit bounded outbound queue drained by a single
// writer goroutine — the same "one writer, no interleaving" guarantee,
// expressed as backpressure instead of a lock.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"fixcore/frame"
	"fixcore/heartbeat"
	"fixcore/identity"
	"fixcore/internal/clock"
	"fixcore/internal/obslog"
	"fixcore/message"
	"fixcore/registry"
	"fixcore/session"
	"fixcore/store"
)

// outboundQueueSize bounds how many encoded frames may be pending write
// before Send starts rejecting, per spec.md §5's backpressure requirement.
const outboundQueueSize = 256

// readBufSize is the chunk size used to read off the connection before
// feeding the frame scanner.
const readBufSize = 4096

// Acceptor listens for counterparty connections, performs the Logon
// handshake, and binds each accepted connection to a registry.Registry
// entry.
type Acceptor struct {
	Store      store.MessageStore
	Resolver   identity.Resolver
	Registry   *registry.Registry
	Heartbeats *heartbeat.Scheduler
	App        session.ApplicationHandler
	Clock      clock.Clock
	Logger     *obslog.Logger

	// TLSConfig, if non-nil, is used to wrap accepted connections before
	// any frame is read.
	TLSConfig *tls.Config

	// LogonTimeout bounds how long a freshly accepted connection is given
	// to send a well-formed Logon before it is dropped.
	LogonTimeout time.Duration
}

// Serve listens on address and runs the accept loop until ctx is
// cancelled or the listener errors.
func (a *Acceptor) Serve(ctx context.Context, network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if a.TLSConfig != nil {
			conn = tls.Server(conn, a.TLSConfig)
		}
		go a.handleConn(ctx, conn)
	}
}

// handleConn drives one connection from its first byte through Logon and
// into steady-state frame dispatch. A single goroutine owns the read loop
// for the life of the connection, matching the Machine's single-owner
// mutation model.
func (a *Acceptor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sender := newConnSender(conn)
	defer sender.stop()

	scanner := frame.NewScanner()
	r := bufio.NewReaderSize(conn, readBufSize)
	buf := make([]byte, readBufSize)

	var machine *session.Machine
	var entryID string

	if a.LogonTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(a.LogonTimeout))
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			scanner.Feed(buf[:n])
		}
		if err != nil {
			break
		}

		for {
			fb, ok, ferr := scanner.Next()
			if ferr != nil {
				return
			}
			if !ok {
				break
			}

			if machine == nil {
				m, id, bindErr := a.bindSession(ctx, fb, sender)
				if bindErr != nil {
					if a.Logger != nil {
						a.Logger.Warn("logon rejected", "error", bindErr.Error())
					}
					return
				}
				machine = m
				entryID = id
				conn.SetReadDeadline(time.Time{})
				continue
			}

			if err := machine.HandleInbound(ctx, fb); err != nil {
				if a.Logger != nil {
					a.Logger.Error("handle inbound failed", "session", entryID, "error", err.Error())
				}
				a.Registry.Remove(entryID)
				return
			}
		}
	}

	if entryID != "" {
		a.Registry.Remove(entryID)
	}
}

// bindSession decodes the first frame, requires it to be a Logon,
// resolves the CompID pair through the IdentityResolver, and — if
// authorized — creates the session.Session/Machine pair and registers it.
func (a *Acceptor) bindSession(ctx context.Context, firstFrame []byte, sender session.Sender) (*session.Machine, string, error) {
	codecMsg, err := decodeFirst(firstFrame)
	if err != nil {
		return nil, "", err
	}
	if codecMsg.MsgType() != message.MsgTypeLogon {
		return nil, "", errors.New("transport: first message was not Logon")
	}

	senderCompID := codecMsg.SenderCompID()
	targetCompID := codecMsg.TargetCompID()

	cfg, ok, err := a.Resolver.Resolve(ctx, senderCompID, targetCompID)
	if err != nil || !ok {
		return nil, "", errors.New("transport: identity not authorized")
	}

	sessionID := senderCompID + "->" + targetCompID
	sess := session.New(sessionID, targetCompID, senderCompID)
	sess.HeartbeatInterval = cfg.HeartbeatInterval

	// Resume sequence counters from durable history, per spec.md §9's
	// "restart vs. reset" open question: a restarted instance picks up
	// where it left off rather than silently resetting to 1. A
	// ResetSeqNumFlag=Y on the Logon itself (handled by handleLogon,
	// invoked just below) overrides this back to 1 either way.
	if lastOut, err := a.Store.LastSeq(ctx, sessionID, store.Out); err == nil && lastOut > 0 {
		sess.NextOutbound = lastOut + 1
	}
	if lastIn, err := a.Store.LastSeq(ctx, sessionID, store.In); err == nil && lastIn > 0 {
		sess.NextExpected = lastIn + 1
	}

	machine := session.NewMachine(sess, session.Config{
		Store:      a.Store,
		Clock:      a.Clock,
		App:        a.App,
		Sender:     sender,
		Heartbeats: a.Heartbeats,
	})

	if err := a.Registry.Create(sessionID, registry.Entry{Session: sess, Machine: machine}); err != nil {
		return nil, "", err
	}

	if err := machine.HandleInbound(ctx, firstFrame); err != nil {
		a.Registry.Remove(sessionID)
		return nil, "", err
	}
	return machine, sessionID, nil
}

func decodeFirst(frameBytes []byte) (*message.FixMessage, error) {
	return wireCodec.Decode(frameBytes)
}
