// Package runspace implements the runspace pool finite state machine:
// negotiation with the server, pipeline lifecycle tracking, and dispatch of
// defragmented PSRP messages into typed events for the session loop.
package runspace

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/fragment"
	"github.com/oleiade/psrp/psrpmsg"
	"github.com/oleiade/psrp/psrpval"
)

// State is the runspace pool's negotiation state.
type State int

const (
	// NegotiationSent means the client has sent SessionCapability and
	// InitRunspacePool and is waiting for the server's NegotiationSucceeded
	// RunspacePoolState plus ApplicationPrivateData.
	NegotiationSent State = iota
	// Opened means negotiation completed; pipelines may now be created.
	Opened
)

func (s State) String() string {
	if s == Opened {
		return "Opened"
	}
	return "NegotiationSent"
}

type pipelineEntry struct {
	handle   PipelineHandle
	commands []psrpmsg.Command
	created  bool
	errors   []psrpmsg.ErrorRecord
}

// Pool is the runspace pool FSM for a single PSRP session. Every method
// takes the pool's own mutex, so it is safe to call from more than one
// goroutine.
type Pool struct {
	mu sync.Mutex

	RunspaceID uuid.UUID
	MaxEnvelope int

	state                 State
	negotiationSucceeded   bool
	applicationPrivateData bool

	fragmenter   *fragment.Fragmenter
	defragmenter *fragment.Defragmenter

	pipelines map[uuid.UUID]*pipelineEntry

	// pendingHostCalls records the scope of every host call the server has
	// issued and not yet received a response for.
	pendingHostCalls map[int64]HostCallScope

	logger *slog.Logger
}

// New returns a fresh Pool for runspaceID, bounding fragment size at
// maxEnvelope bytes.
func New(runspaceID uuid.UUID, maxEnvelope int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		RunspaceID:       runspaceID,
		MaxEnvelope:      maxEnvelope,
		fragmenter:       fragment.NewFragmenter(maxEnvelope),
		defragmenter:     fragment.NewDefragmenter(),
		pipelines:        make(map[uuid.UUID]*pipelineEntry),
		pendingHostCalls: make(map[int64]HostCallScope),
		logger:           logger,
	}
}

// State reports the pool's current negotiation state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pool) encodeFragmented(msgType psrpmsg.MessageType, pipelineID uuid.UUID, payload psrpval.Value) ([]byte, error) {
	msg := &psrpmsg.Message{
		Destination: psrpmsg.DestinationServer,
		Type:        msgType,
		RunspaceID:  p.RunspaceID,
		PipelineID:  pipelineID,
		Payload:     payload,
	}
	body, err := msg.Encode()
	if err != nil {
		return nil, fmt.Errorf("runspace: encode %s: %w", msgType, err)
	}
	fragments := p.fragmenter.Fragment(body)
	groups := fragment.Group(fragments, p.MaxEnvelope)
	var out []byte
	for _, g := range groups {
		out = append(out, g...)
	}
	return out, nil
}

// Open builds the SessionCapability and InitRunspacePool negotiation
// messages and returns the base64 text to embed as the WS-Management
// Shell's creationXml.
func (p *Pool) Open(minRunspaces, maxRunspaces int32, hostInfo psrpmsg.HostInfo) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sessionCap := psrpmsg.SessionCapability{
		PSVersion:            "2.0",
		ProtocolVersion:      "2.3",
		SerializationVersion: "1.1.0.1",
	}
	capBytes, err := p.encodeFragmented(psrpmsg.SessionCapabilityMsg, uuid.Nil, psrpval.FromObj(sessionCap.ToObj()))
	if err != nil {
		return "", err
	}

	init := psrpmsg.InitRunspacePool{
		MinRunspaces: minRunspaces,
		MaxRunspaces: maxRunspaces,
		HostInfo:     hostInfo,
	}
	initBytes, err := p.encodeFragmented(psrpmsg.InitRunspacePoolMsg, uuid.Nil, psrpval.FromObj(init.ToObj()))
	if err != nil {
		return "", err
	}

	wire := append(append([]byte{}, capBytes...), initBytes...)
	p.state = NegotiationSent
	return base64.StdEncoding.EncodeToString(wire), nil
}

// InitPipeline allocates a client-side pipeline identity. The server only
// confirms it once AcceptResponse observes the matching PipelineState.
func (p *Pool) InitPipeline() PipelineHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	handle := PipelineHandle{ID: uuid.New()}
	p.pipelines[handle.ID] = &pipelineEntry{handle: handle}
	return handle
}

// AddCommand appends cmd to handle's pipeline.
func (p *Pool) AddCommand(handle PipelineHandle, cmd psrpmsg.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.pipelines[handle.ID]
	if !ok {
		return &UnknownPipelineError{Handle: handle}
	}
	entry.commands = append(entry.commands, cmd)
	return nil
}

// InvokePipelineRequest builds the CreatePipeline message for handle's
// accumulated commands and returns its fragmented wire bytes, ready to pass
// to the transport's Send (which performs its own base64 encoding).
func (p *Pool) InvokePipelineRequest(handle PipelineHandle, hostInfo psrpmsg.HostInfo) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Opened {
		return nil, &UnexpectedStateError{Op: "InvokePipelineRequest", State: p.state}
	}
	entry, ok := p.pipelines[handle.ID]
	if !ok {
		return nil, &UnknownPipelineError{Handle: handle}
	}

	cp := psrpmsg.CreatePipeline{
		NoInput:  true,
		HostInfo: hostInfo,
		Pipeline: psrpmsg.PowerShellPipeline{
			Cmds:                          entry.commands,
			RedirectShellErrorOutputPipe: true,
		},
	}
	return p.encodeFragmented(psrpmsg.CreatePipelineMsg, handle.ID, psrpval.FromObj(cp.ToObj()))
}

// SendPipelineHostResponse builds a HostResponse message addressed to
// handle's pipeline.
func (p *Pool) SendPipelineHostResponse(handle PipelineHandle, resp psrpmsg.HostResponse) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pendingHostCalls, resp.CallID)
	return p.encodeFragmented(psrpmsg.PipelineHostResponse, handle.ID, psrpval.FromObj(resp.ToObj()))
}

// SendRunspacePoolHostResponse builds a HostResponse message addressed to
// the runspace pool itself (PipelineID zero).
func (p *Pool) SendRunspacePoolHostResponse(resp psrpmsg.HostResponse) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pendingHostCalls, resp.CallID)
	return p.encodeFragmented(psrpmsg.RunspacePoolHostResponse, uuid.Nil, psrpval.FromObj(resp.ToObj()))
}

// PendingHostCall reports the scope recorded for callID, if the server has
// issued a host call under that id awaiting a response.
func (p *Pool) PendingHostCall(callID int64) (HostCallScope, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	scope, ok := p.pendingHostCalls[callID]
	return scope, ok
}

// AcceptResponse feeds a raw (already base64-decoded) response body through
// the defragmenter and dispatches every completed PSRP message, in order,
// into zero or more Events. desiredStreams names the WS-Management output
// streams the server acknowledged in this same Receive response (e.g.
// "stdout"); when non-empty, a ReceiveResponseEvent reporting them is
// emitted first.
func (p *Pool) AcceptResponse(data []byte, desiredStreams []string) ([]Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var events []Event
	if len(desiredStreams) > 0 {
		events = append(events, ReceiveResponseEvent{DesiredStreams: desiredStreams})
	}

	bodies, err := p.defragmenter.Feed(data)
	if err != nil {
		return events, fmt.Errorf("runspace: defragment: %w", err)
	}

	for _, body := range bodies {
		msg, err := psrpmsg.Decode(body)
		if err != nil {
			return events, fmt.Errorf("runspace: decode message: %w", err)
		}
		evs, err := p.dispatch(msg)
		if err != nil {
			return events, err
		}
		events = append(events, evs...)
	}
	return events, nil
}

func (p *Pool) dispatch(msg *psrpmsg.Message) ([]Event, error) {
	switch msg.Type {
	case psrpmsg.RunspacePoolStateMsg:
		rps, err := psrpmsg.RunspacePoolStateMessageFromValue(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		if rps.State == psrpmsg.RunspacePoolNegotiationSucceeded {
			p.negotiationSucceeded = true
			p.maybeOpen()
		}
		return nil, nil

	case psrpmsg.ApplicationPrivateDataMsg:
		if _, err := psrpmsg.ApplicationPrivateDataFromValue(msg.Payload); err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		p.applicationPrivateData = true
		p.maybeOpen()
		return nil, nil

	case psrpmsg.PipelineStateMsg:
		ps, err := psrpmsg.PipelineStateMessageFromValue(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		handle := PipelineHandle{ID: msg.PipelineID}
		entry, ok := p.pipelines[msg.PipelineID]
		if !ok {
			entry = &pipelineEntry{handle: handle}
			p.pipelines[msg.PipelineID] = entry
		}

		var events []Event
		if !entry.created {
			entry.created = true
			events = append(events, PipelineCreatedEvent{Handle: handle})
		}
		if ps.IsTerminal() {
			// Errors belong to a Failed pipeline; other terminal states only
			// carry them along if the server happened to emit diagnostics
			// before terminating.
			errs := entry.errors
			if ps.State != psrpmsg.PipelineFailed && len(errs) == 0 {
				errs = nil
			}
			events = append(events, PipelineFinishedEvent{Handle: handle, State: ps.State, Errors: errs})
			delete(p.pipelines, msg.PipelineID)
		}
		return events, nil

	case psrpmsg.PipelineOutputMsg:
		out, err := psrpmsg.PipelineOutputFromValue(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		return []Event{PipelineOutputEvent{Handle: PipelineHandle{ID: msg.PipelineID}, Output: out.ToValue()}}, nil

	case psrpmsg.ErrorRecordMsg:
		er, err := psrpmsg.ErrorRecordFromValue(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		if entry, ok := p.pipelines[msg.PipelineID]; ok {
			entry.errors = append(entry.errors, er)
		}
		return nil, nil

	case psrpmsg.PipelineHostCall:
		hc, err := psrpmsg.HostCallFromValue(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		scope := HostCallScope{Pipeline: true, CommandID: msg.PipelineID}
		p.pendingHostCalls[hc.CallID] = scope
		return []Event{HostCallEvent{Scope: scope, Call: hc}}, nil

	case psrpmsg.RunspacePoolHostCall:
		hc, err := psrpmsg.HostCallFromValue(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("runspace: %w", err)
		}
		scope := HostCallScope{}
		p.pendingHostCalls[hc.CallID] = scope
		return []Event{HostCallEvent{Scope: scope, Call: hc}}, nil

	default:
		p.logger.Warn("runspace: dropping message", "type", msg.Type.String(), "known", msg.Type.Known())
		return nil, nil
	}
}

func (p *Pool) maybeOpen() {
	if p.state == NegotiationSent && p.negotiationSucceeded && p.applicationPrivateData {
		p.state = Opened
	}
}
