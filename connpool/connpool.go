// Package connpool manages the set of underlying HTTP connections a session
// multiplexes requests across, one authentication sequence at a time per
// connection and at most one request in flight per connection.
package connpool

import (
	"fmt"
	"sync"
)

// ConnState is the lifecycle state of a single pooled connection.
type ConnState int

const (
	// Idle means the connection is authenticated and has no request in
	// flight; it can be handed the next plaintext body to seal and send.
	Idle ConnState = iota
	// PreAuth means the connection was just allocated and its first
	// request carries the opening round of the authentication sequence;
	// the queued plaintext is held until authentication completes.
	PreAuth
	// Pending means a sealed request is in flight on this connection.
	Pending
	// Closed means the connection failed and must not be reused.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case PreAuth:
		return "PreAuth"
	case Pending:
		return "Pending"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// InvalidStateError reports an accept() call against a connection whose
// state cannot accept a response (Idle or Closed).
type InvalidStateError struct {
	ConnID uint32
	State  ConnState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("connpool: connection %d cannot accept a response in state %s", e.ConnID, e.State)
}

// UnknownConnectionError reports a reference to a conn_id the pool has no
// record of.
type UnknownConnectionError struct {
	ConnID uint32
}

func (e *UnknownConnectionError) Error() string {
	return fmt.Sprintf("connpool: unknown connection %d", e.ConnID)
}

// Sealer seals plaintext into a request body (applying whatever the
// connection's authentication round requires — signing, encryption, or a
// pass-through for Basic/no-encryption modes) and unseals a response body
// back into plaintext.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Unseal(ciphertext []byte) ([]byte, error)
}

// AuthSequence drives the multi-round handshake a fresh connection must
// complete before it can carry sealed application traffic.
type AuthSequence interface {
	// Done reports whether the handshake has produced a Sealer.
	Done() bool
	Sealer() Sealer
}

type connection struct {
	id      uint32
	state   ConnState
	sealer  Sealer
	auth    AuthSequence
	queued  []byte
}

// JustSend is returned by Send when an Idle connection was available: the
// caller should transmit request on conn_id.
type JustSend struct {
	ConnID  uint32
	Request []byte
}

// AuthNeeded is returned by Send when a fresh connection had to be
// allocated: the caller must drive Sequence's handshake and then call
// Pool.FinishAuth(ConnID) to obtain the sealed form of the originally
// queued plaintext.
type AuthNeeded struct {
	ConnID   uint32
	Sequence AuthSequence
}

// NewConnFunc allocates a fresh AuthSequence for a newly opened connection.
type NewConnFunc func() AuthSequence

// Pool allocates and tracks connections, sealing outbound plaintext and
// unsealing inbound responses according to each connection's state.
type Pool struct {
	mu      sync.Mutex
	nextID  uint32
	conns   map[uint32]*connection
	newConn NewConnFunc
}

// New returns an empty Pool that allocates fresh authentication sequences
// via newConn whenever it must open a connection.
func New(newConn NewConnFunc) *Pool {
	return &Pool{conns: make(map[uint32]*connection), newConn: newConn}
}

// Send looks for an Idle connection to reuse; failing that it allocates a
// new PreAuth connection and returns the handshake the caller must drive.
func (p *Pool) Send(plaintext []byte) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.conns {
		if c.state == Idle {
			sealed, err := c.sealer.Seal(plaintext)
			if err != nil {
				c.state = Closed
				return nil, fmt.Errorf("connpool: seal: %w", err)
			}
			c.state = Pending
			return JustSend{ConnID: c.id, Request: sealed}, nil
		}
	}

	id := p.nextID
	p.nextID++
	seq := p.newConn()
	c := &connection{id: id, state: PreAuth, auth: seq, queued: plaintext}
	p.conns[id] = c
	return AuthNeeded{ConnID: id, Sequence: seq}, nil
}

// FinishAuth is called once Sequence.Done() holds for a PreAuth connection:
// it materializes the Sealer, seals the plaintext originally passed to
// Send, and transitions the connection to Pending.
func (p *Pool) FinishAuth(connID uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conns[connID]
	if !ok {
		return nil, &UnknownConnectionError{ConnID: connID}
	}
	if c.state != PreAuth {
		return nil, &InvalidStateError{ConnID: connID, State: c.state}
	}

	sealer := c.auth.Sealer()
	if sealer == nil {
		c.state = Closed
		return nil, fmt.Errorf("connpool: connection %d: authentication produced no sealer", connID)
	}
	c.sealer = sealer

	sealed, err := c.sealer.Seal(c.queued)
	if err != nil {
		c.state = Closed
		return nil, fmt.Errorf("connpool: seal: %w", err)
	}
	c.queued = nil
	c.state = Pending
	return sealed, nil
}

// Accept processes a response for conn_id. authenticated indicates the
// handshake on a PreAuth connection has just completed (the caller having
// driven AuthSequence to Done()); it is ignored for connections already
// Pending.
func (p *Pool) Accept(connID uint32, response []byte, authenticated bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conns[connID]
	if !ok {
		return nil, &UnknownConnectionError{ConnID: connID}
	}

	switch c.state {
	case PreAuth:
		if !authenticated {
			return nil, &InvalidStateError{ConnID: connID, State: c.state}
		}
		c.sealer = c.auth.Sealer()
		if c.sealer == nil {
			c.state = Closed
			return nil, fmt.Errorf("connpool: connection %d: authentication produced no sealer", connID)
		}
		plaintext, err := c.sealer.Unseal(response)
		if err != nil {
			c.state = Closed
			return nil, fmt.Errorf("connpool: unseal: %w", err)
		}
		c.state = Idle
		return plaintext, nil

	case Pending:
		plaintext, err := c.sealer.Unseal(response)
		if err != nil {
			c.state = Closed
			return nil, fmt.Errorf("connpool: unseal: %w", err)
		}
		c.state = Idle
		return plaintext, nil

	default:
		return nil, &InvalidStateError{ConnID: connID, State: c.state}
	}
}

// State reports the current state of conn_id; used by tests and the
// session loop's diagnostics.
func (p *Pool) State(connID uint32) (ConnState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[connID]
	if !ok {
		return 0, false
	}
	return c.state, true
}

// Close marks conn_id Closed so it is never reused; future Accept calls
// against it fail with InvalidStateError.
func (p *Pool) Close(connID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[connID]; ok {
		c.state = Closed
	}
}

// Len reports how many connections the pool currently tracks (any state).
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// PassthroughSealer is a Sealer that performs no transformation. It is the
// correct Sealer for a caller whose message-level encryption already
// happens one layer down (e.g. inside an http.RoundTripper negotiating
// SPNEGO/NTLM session security), where Pool's job is reduced to tracking
// the connection's Idle/Pending/Closed lifecycle above that layer rather
// than sealing the bytes itself.
type PassthroughSealer struct{}

func (PassthroughSealer) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }

func (PassthroughSealer) Unseal(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// NopAuthSequence is an AuthSequence that is Done immediately and yields a
// PassthroughSealer. It is the AuthSequence counterpart to PassthroughSealer:
// use it when a connection's authentication round-trips are already driven
// by a lower transport layer, so Pool's PreAuth state is passed through
// rather than exercised with real challenge/response traffic.
type NopAuthSequence struct{}

func (NopAuthSequence) Done() bool     { return true }
func (NopAuthSequence) Sealer() Sealer { return PassthroughSealer{} }
