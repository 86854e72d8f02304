// SessionPool is a small fixed-size pool of pre-authenticated FIX
// connections to one counterparty, for tools that issue repeated
// synchronous probes — cmd/fixclient's bench mode — where paying for a
// fresh Logon handshake on every round trip would swamp the measurement.
//
// Grounded on the teacher's ConnPool (transport/pool.go): the same
// buffered-channel-as-FIFO-queue design for connections used exclusively
// (one request in flight at a time), generalized from a raw net.Conn to a
// *ClientTransport so every pooled entry is already past Logon and ready
// for a Heartbeat/TestRequest round trip the moment it's borrowed.
package transport

import (
	"fmt"
	"sync"
)

// SessionPool manages a pool of reusable, already-authenticated
// ClientTransports to a single counterparty.
type SessionPool struct {
	mu       sync.Mutex
	conns    chan *PooledSession // buffered channel as pool — FIFO, goroutine-safe
	maxConns int
	curConns int
	factory  func() (*ClientTransport, error)
}

// PooledSession wraps a *ClientTransport with pool metadata.
type PooledSession struct {
	*ClientTransport
	pool     *SessionPool
	unusable bool
}

// MarkUnusable flags a session as broken so the pool discards it on Put
// instead of recycling it to the next borrower.
func (s *PooledSession) MarkUnusable() {
	s.unusable = true
}

// NewSessionPool creates a pool bounded at maxConns. Connections are
// created lazily via factory — the pool starts empty and grows on
// demand, exactly like the teacher's ConnPool.
func NewSessionPool(maxConns int, factory func() (*ClientTransport, error)) *SessionPool {
	return &SessionPool{
		conns:    make(chan *PooledSession, maxConns),
		maxConns: maxConns,
		factory:  factory,
	}
}

// Get retrieves a session from the pool: an idle one if available,
// otherwise a freshly dialed-and-logged-on one if under the cap,
// otherwise it blocks until one is returned.
func (p *SessionPool) Get() (*PooledSession, error) {
	select {
	case s := <-p.conns:
		if s.unusable {
			return p.createNew()
		}
		return s, nil
	default:
		p.mu.Lock()
		underCap := p.curConns < p.maxConns
		p.mu.Unlock()
		if underCap {
			return p.createNew()
		}
		s := <-p.conns
		return s, nil
	}
}

// Put returns a session to the pool. A session marked unusable (its
// connection broke mid-probe) is closed and discarded instead of
// recycled.
func (p *SessionPool) Put(s *PooledSession) {
	if s.unusable {
		s.Close()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.conns <- s
}

// Close shuts down the pool, closing every idle session.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.conns)
	for s := range p.conns {
		s.Close()
		p.curConns--
	}
	return nil
}

func (p *SessionPool) createNew() (*PooledSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, fmt.Errorf("transport: session pool exhausted")
	}

	ct, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.curConns++
	return &PooledSession{ClientTransport: ct, pool: p}, nil
}
