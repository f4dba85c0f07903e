// Package session implements the active session loop: a single cooperative
// goroutine that owns a runspace pool and its connection, serializing HTTP
// completions, user operations, and host-call responses into one ordered
// event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpmsg"
	"github.com/oleiade/psrp/psrpval"
	"github.com/oleiade/psrp/runspace"
	"github.com/oleiade/psrp/wsman"
)

// DefaultHostCallTimeout bounds how long the loop waits for a HostResponse
// before injecting a CancelHostCall on the server's behalf.
const DefaultHostCallTimeout = 5 * time.Second

// Config configures a Session's negotiation and polling behavior.
type Config struct {
	MinRunspaces    int32
	MaxRunspaces    int32
	MaxEnvelopeSize int
	HostInfo        psrpmsg.HostInfo
	HostCallTimeout time.Duration
	ReceiveInterval time.Duration
}

// DefaultConfig returns a Config with the teacher's customary negotiation
// defaults: a single runspace, a 150KB envelope, and a null host.
func DefaultConfig() Config {
	return Config{
		MinRunspaces:    1,
		MaxRunspaces:    1,
		MaxEnvelopeSize: 153600,
		HostInfo:        psrpmsg.HostInfoAllNull(),
		HostCallTimeout: DefaultHostCallTimeout,
		ReceiveInterval: 500 * time.Millisecond,
	}
}

// ErrSessionClosed is returned by every Session method once Close has run.
var ErrSessionClosed = errors.New("session: closed")

// userOp is the internal representation of one of the five operations the
// spec's event source (b) accepts.
type userOp struct {
	kind     userOpKind
	handle   runspace.PipelineHandle
	command  psrpmsg.Command
	callID   int64
	response psrpmsg.HostResponse
	reply    chan error
}

type userOpKind int

const (
	opInvoke userOpKind = iota
	opAddCommand
	opStop
	opSubmitHostResponse
	opCancelHostCall
)

// Session drives one runspace pool over one WS-Management shell/command
// pair. Once Open has started the loop goroutine, pool mutation happens on
// that goroutine, with one exception: CreatePipeline registers its handle on
// the caller's goroutine, under the pool's own lock. Every other method
// communicates with the loop over channels.
type Session struct {
	cfg       Config
	pool      *runspace.Pool
	ws        *wsman.Client
	epr       *wsman.EndpointReference
	commandID string
	logger    *slog.Logger

	Output      chan runspace.PipelineOutputEvent
	PipelineDone chan runspace.PipelineFinishedEvent
	HostCalls   chan runspace.HostCallEvent

	userOps  chan userOp
	stopCh   chan struct{}
	done     chan struct{}
	err      error
}

// New constructs a Session bound to ws, running a fresh runspace pool under
// a new GUID. Open must be called before any other method.
func New(ws *wsman.Client, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	runspaceID := uuid.New()
	return &Session{
		cfg:          cfg,
		pool:         runspace.New(runspaceID, cfg.MaxEnvelopeSize, logger),
		ws:           ws,
		logger:       logger,
		Output:       make(chan runspace.PipelineOutputEvent, 64),
		PipelineDone: make(chan runspace.PipelineFinishedEvent, 16),
		HostCalls:    make(chan runspace.HostCallEvent, 16),
		userOps:      make(chan userOp),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Open creates the remote shell and command, drives negotiation to
// completion, then starts the background loop goroutine.
func (s *Session) Open(ctx context.Context) error {
	creationXML, err := s.pool.Open(s.cfg.MinRunspaces, s.cfg.MaxRunspaces, s.cfg.HostInfo)
	if err != nil {
		return fmt.Errorf("session: open: %w", err)
	}

	epr, err := s.ws.Create(ctx, map[string]string{"protocolversion": "2.3"}, creationXML)
	if err != nil {
		return fmt.Errorf("session: create shell: %w", err)
	}
	s.epr = epr

	commandID, err := s.ws.Command(ctx, epr, "", "")
	if err != nil {
		return fmt.Errorf("session: open command channel: %w", err)
	}
	s.commandID = commandID

	for s.pool.State() != runspace.Opened {
		result, err := s.ws.Receive(ctx, epr, commandID)
		if err != nil {
			return fmt.Errorf("session: negotiation receive: %w", err)
		}
		if len(result.Stdout) == 0 && len(result.Streams) == 0 {
			continue
		}
		evs, err := s.pool.AcceptResponse(result.Stdout, result.Streams)
		if err != nil {
			return fmt.Errorf("session: negotiation dispatch: %w", err)
		}
		for _, ev := range evs {
			s.dispatch(ev)
		}
	}

	go s.loop()
	return nil
}

// RunspaceID reports the GUID identifying this session's runspace pool.
func (s *Session) RunspaceID() uuid.UUID { return s.pool.RunspaceID }

// CreatePipeline allocates a new pipeline handle on the runspace pool.
func (s *Session) CreatePipeline() runspace.PipelineHandle {
	return s.pool.InitPipeline()
}

// AddCommand queues cmd onto handle's pipeline.
func (s *Session) AddCommand(ctx context.Context, handle runspace.PipelineHandle, cmd psrpmsg.Command) error {
	return s.call(ctx, userOp{kind: opAddCommand, handle: handle, command: cmd})
}

// Invoke sends handle's accumulated commands to the server.
func (s *Session) Invoke(ctx context.Context, handle runspace.PipelineHandle) error {
	return s.call(ctx, userOp{kind: opInvoke, handle: handle})
}

// Stop signals the server to terminate handle's pipeline.
func (s *Session) Stop(ctx context.Context, handle runspace.PipelineHandle) error {
	return s.call(ctx, userOp{kind: opStop, handle: handle})
}

// SubmitHostResponse answers a HostCallEvent previously delivered on
// HostCalls.
func (s *Session) SubmitHostResponse(ctx context.Context, handle runspace.PipelineHandle, resp psrpmsg.HostResponse) error {
	return s.call(ctx, userOp{kind: opSubmitHostResponse, handle: handle, response: resp})
}

// CancelHostCall injects a local cancellation for a host call the consumer
// chose not to answer; the loop sends the server an error response carrying
// "Host call N was cancelled".
func (s *Session) CancelHostCall(ctx context.Context, handle runspace.PipelineHandle, callID int64) error {
	return s.call(ctx, userOp{kind: opCancelHostCall, handle: handle, callID: callID})
}

func (s *Session) call(ctx context.Context, op userOp) error {
	op.reply = make(chan error, 1)
	select {
	case s.userOps <- op:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-op.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop goroutine and returns the session's terminal error,
// if any.
func (s *Session) Close() error {
	select {
	case <-s.done:
	default:
		close(s.stopCh)
		<-s.done
	}
	return s.err
}

// loop is the single cooperative goroutine mutating the runspace pool. It
// alternates between polling the server for new fragments and draining
// queued user operations, matching the spec's three-event-source model
// collapsed onto one goroutine (http completions, user ops, host responses
// are never processed concurrently with each other here by construction).
func (s *Session) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.ReceiveInterval)
	defer ticker.Stop()
	ctx := context.Background()

	for {
		select {
		case <-s.stopCh:
			return

		case op := <-s.userOps:
			op.reply <- s.handleUserOp(ctx, op)

		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil {
				s.err = err
				return
			}
		}
	}
}

func (s *Session) pollOnce(ctx context.Context) error {
	result, err := s.ws.Receive(ctx, s.epr, s.commandID)
	if err != nil {
		return fmt.Errorf("session: receive: %w", err)
	}
	if len(result.Stdout) == 0 && len(result.Streams) == 0 {
		return nil
	}
	events, err := s.pool.AcceptResponse(result.Stdout, result.Streams)
	if err != nil {
		return fmt.Errorf("session: dispatch: %w", err)
	}
	for _, ev := range events {
		s.dispatch(ev)
	}
	return nil
}

func (s *Session) dispatch(ev runspace.Event) {
	switch e := ev.(type) {
	case runspace.PipelineOutputEvent:
		s.Output <- e
	case runspace.PipelineFinishedEvent:
		s.PipelineDone <- e
	case runspace.HostCallEvent:
		s.awaitHostResponse(e)
	case runspace.ReceiveResponseEvent:
		s.logger.Debug("session: receive acknowledged", "streams", e.DesiredStreams)
	case runspace.PipelineCreatedEvent:
		// lifecycle bookkeeping only; nothing to forward.
	}
}

// awaitHostResponse publishes a host call and blocks the loop until either
// a matching SubmitHostResponse/CancelHostCall user op arrives or the
// configured timeout elapses, per the spec's host-call suspension rule.
func (s *Session) awaitHostResponse(e runspace.HostCallEvent) {
	select {
	case s.HostCalls <- e:
	case <-s.stopCh:
		return
	}

	timeout := s.cfg.HostCallTimeout
	if timeout <= 0 {
		timeout = DefaultHostCallTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case op := <-s.userOps:
			if op.callID == e.Call.CallID || (op.kind == opSubmitHostResponse && op.response.CallID == e.Call.CallID) {
				op.reply <- s.handleUserOp(context.Background(), op)
				return
			}
			// Not the response we're waiting on; process it immediately so
			// unrelated operations aren't starved by the suspension.
			op.reply <- s.handleUserOp(context.Background(), op)
		case <-timer.C:
			s.sendCancelResponse(e)
			return
		}
	}
}

func (s *Session) sendCancelResponse(e runspace.HostCallEvent) {
	msg := fmt.Sprintf("Host call %d was cancelled", e.Call.CallID)
	errObj := psrpmsg.ErrorRecord{Message: msg}.ToObj()
	resp := psrpmsg.HostResponse{
		CallID:     e.Call.CallID,
		MethodID:   e.Call.MethodID,
		MethodName: e.Call.MethodName,
		Exception:  psrpval.FromObj(errObj),
		HasError:   true,
	}
	s.sendHostResponse(e.Scope, resp)
}

func (s *Session) handleUserOp(ctx context.Context, op userOp) error {
	switch op.kind {
	case opAddCommand:
		return s.pool.AddCommand(op.handle, op.command)

	case opInvoke:
		data, err := s.pool.InvokePipelineRequest(op.handle, s.cfg.HostInfo)
		if err != nil {
			return err
		}
		return s.ws.Send(ctx, s.epr, s.commandID, "stdin", data)

	case opStop:
		return s.ws.Signal(ctx, s.epr, s.commandID, wsman.SignalTerminate)

	case opSubmitHostResponse:
		return s.submitHostResponse(ctx, op.handle, op.response)

	case opCancelHostCall:
		scope, ok := s.pool.PendingHostCall(op.callID)
		if !ok {
			return nil
		}
		s.sendCancelResponse(runspace.HostCallEvent{Scope: scope, Call: psrpmsg.HostCall{CallID: op.callID}})
		return nil

	default:
		return fmt.Errorf("session: unknown user op %d", op.kind)
	}
}

func (s *Session) submitHostResponse(ctx context.Context, handle runspace.PipelineHandle, resp psrpmsg.HostResponse) error {
	scope, ok := s.pool.PendingHostCall(resp.CallID)
	if !ok {
		scope = runspace.HostCallScope{Pipeline: true, CommandID: handle.ID}
	}
	return s.sendHostResponseCtx(ctx, scope, resp)
}

func (s *Session) sendHostResponse(scope runspace.HostCallScope, resp psrpmsg.HostResponse) {
	_ = s.sendHostResponseCtx(context.Background(), scope, resp)
}

func (s *Session) sendHostResponseCtx(ctx context.Context, scope runspace.HostCallScope, resp psrpmsg.HostResponse) error {
	var (
		data []byte
		err  error
	)
	if scope.Pipeline {
		data, err = s.pool.SendPipelineHostResponse(runspace.PipelineHandle{ID: scope.CommandID}, resp)
	} else {
		data, err = s.pool.SendRunspacePoolHostResponse(resp)
	}
	if err != nil {
		return err
	}
	return s.ws.Send(ctx, s.epr, s.commandID, "stdin", data)
}
