package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oleiade/psrp/fragment"
	"github.com/oleiade/psrp/psrpmsg"
	"github.com/oleiade/psrp/psrpval"
	"github.com/oleiade/psrp/runspace"
	"github.com/oleiade/psrp/wsman"
	"github.com/oleiade/psrp/wsman/transport"
	"github.com/stretchr/testify/require"
)

// fakeServer plays a scripted WinRM endpoint: Create and Command return
// canned identities, and Receive serves a queue of pre-encoded PSRP wire
// payloads one at a time, returning an empty body once the queue drains.
type fakeServer struct {
	mu    sync.Mutex
	queue [][]byte
}

func (f *fakeServer) push(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, data)
}

func (f *fakeServer) pop() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil
	}
	data := f.queue[0]
	f.queue = f.queue[1:]
	return data
}

func (f *fakeServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		action := extractAction(string(body))

		w.Header().Set("Content-Type", "application/soap+xml;charset=UTF-8")

		switch action {
		case wsman.ActionCreate:
			fmt.Fprint(w, createResponseXML())
		case wsman.ActionCommand:
			fmt.Fprint(w, commandResponseXML("cmd-1"))
		case wsman.ActionReceive:
			data := f.pop()
			fmt.Fprint(w, receiveResponseXML(data))
		case wsman.ActionSend:
			fmt.Fprint(w, emptyResponseXML())
		case wsman.ActionSignal:
			fmt.Fprint(w, emptyResponseXML())
		default:
			fmt.Fprint(w, emptyResponseXML())
		}
	}
}

func extractAction(body string) string {
	const marker = "<a:Action"
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	rest := body[idx:]
	start := strings.Index(rest, ">")
	end := strings.Index(rest, "</a:Action>")
	if start < 0 || end < 0 || end < start {
		return ""
	}
	return rest[start+1 : end]
}

func createResponseXML() string {
	return `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><x:ResourceCreated xmlns:x="http://schemas.xmlsoap.org/ws/2004/09/transfer">
<a:Address xmlns:a="http://schemas.xmlsoap.org/ws/2004/08/addressing">http://localhost/wsman</a:Address>
<x:ReferenceParameters>
<w:ResourceURI xmlns:w="http://schemas.dmtf.org/wbem/wsman/1/wsman.xsd">http://schemas.microsoft.com/powershell/Microsoft.PowerShell</w:ResourceURI>
<w:SelectorSet xmlns:w="http://schemas.dmtf.org/wbem/wsman/1/wsman.xsd">
<w:Selector Name="ShellId">SHELL-1</w:Selector>
</w:SelectorSet>
</x:ReferenceParameters>
</x:ResourceCreated></s:Body></s:Envelope>`
}

func commandResponseXML(commandID string) string {
	return `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><rsp:CommandResponse xmlns:rsp="http://schemas.microsoft.com/wbem/wsman/1/windows/shell">
<rsp:CommandId>` + commandID + `</rsp:CommandId>
</rsp:CommandResponse></s:Body></s:Envelope>`
}

func receiveResponseXML(data []byte) string {
	if data == nil {
		return `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><rsp:ReceiveResponse xmlns:rsp="http://schemas.microsoft.com/wbem/wsman/1/windows/shell">
<rsp:CommandState CommandId="cmd-1" State="http://schemas.microsoft.com/wbem/wsman/1/windows/shell/CommandState/Running"/>
</rsp:ReceiveResponse></s:Body></s:Envelope>`
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><rsp:ReceiveResponse xmlns:rsp="http://schemas.microsoft.com/wbem/wsman/1/windows/shell">
<rsp:Stream Name="stdout" CommandId="cmd-1">` + encoded + `</rsp:Stream>
<rsp:CommandState CommandId="cmd-1" State="http://schemas.microsoft.com/wbem/wsman/1/windows/shell/CommandState/Running"/>
</rsp:ReceiveResponse></s:Body></s:Envelope>`
}

func emptyResponseXML() string {
	return `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body/></s:Envelope>`
}

func encodeWire(t *testing.T, runspaceID, pipelineID uuid.UUID, msgType psrpmsg.MessageType, payload psrpval.Value) []byte {
	t.Helper()
	msg := &psrpmsg.Message{
		Destination: psrpmsg.DestinationClient,
		Type:        msgType,
		RunspaceID:  runspaceID,
		PipelineID:  pipelineID,
		Payload:     payload,
	}
	body, err := msg.Encode()
	require.NoError(t, err)
	fr := fragment.NewFragmenter(153600)
	var wire []byte
	for _, f := range fr.Fragment(body) {
		wire = append(wire, f...)
	}
	return wire
}

func newTestSession(t *testing.T, srv *fakeServer) (*httptest.Server, *Session) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	tr := transport.NewHTTPTransport(transport.WithTimeout(5 * time.Second))
	client := wsman.NewClient(ts.URL, tr)
	cfg := DefaultConfig()
	cfg.ReceiveInterval = 10 * time.Millisecond
	cfg.HostCallTimeout = 50 * time.Millisecond
	s := New(client, cfg, nil)
	return ts, s
}

func TestSessionOpenNegotiates(t *testing.T) {
	srv := &fakeServer{}
	ts, s := newTestSession(t, srv)
	defer ts.Close()

	stateMsg := psrpmsg.RunspacePoolStateMessage{State: psrpmsg.RunspacePoolNegotiationSucceeded}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.RunspacePoolStateMsg, psrpval.FromObj(stateMsg.ToObj())))

	appData := psrpmsg.ApplicationPrivateData{Data: map[string]psrpval.Value{}}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.ApplicationPrivateDataMsg, psrpval.FromObj(appData.ToObj())))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx))
	defer s.Close()
}

func TestSessionPipelineOutputAndDone(t *testing.T) {
	srv := &fakeServer{}
	ts, s := newTestSession(t, srv)
	defer ts.Close()

	stateMsg := psrpmsg.RunspacePoolStateMessage{State: psrpmsg.RunspacePoolNegotiationSucceeded}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.RunspacePoolStateMsg, psrpval.FromObj(stateMsg.ToObj())))
	appData := psrpmsg.ApplicationPrivateData{Data: map[string]psrpval.Value{}}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.ApplicationPrivateDataMsg, psrpval.FromObj(appData.ToObj())))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	handle := s.CreatePipeline()
	require.NoError(t, s.AddCommand(ctx, handle, psrpmsg.Command{Cmd: "Get-Process"}))
	require.NoError(t, s.Invoke(ctx, handle))

	runningMsg := psrpmsg.PipelineStateMessage{State: psrpmsg.PipelineRunning}
	srv.push(encodeWire(t, s.RunspaceID(), handle.ID, psrpmsg.PipelineStateMsg, psrpval.FromObj(runningMsg.ToObj())))

	outMsg := psrpmsg.PipelineOutput{Data: psrpval.FromPrimitive(psrpval.String("hello"))}
	srv.push(encodeWire(t, s.RunspaceID(), handle.ID, psrpmsg.PipelineOutputMsg, outMsg.ToValue()))

	completedMsg := psrpmsg.PipelineStateMessage{State: psrpmsg.PipelineCompleted}
	srv.push(encodeWire(t, s.RunspaceID(), handle.ID, psrpmsg.PipelineStateMsg, psrpval.FromObj(completedMsg.ToObj())))

	select {
	case out := <-s.Output:
		require.Equal(t, "hello", out.Output.Prim.Str)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pipeline output")
	}

	select {
	case done := <-s.PipelineDone:
		require.Equal(t, psrpmsg.PipelineCompleted, done.State)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pipeline completion")
	}
}

func TestSessionHostCallTimeoutSendsCancellation(t *testing.T) {
	srv := &fakeServer{}
	ts, s := newTestSession(t, srv)
	defer ts.Close()

	stateMsg := psrpmsg.RunspacePoolStateMessage{State: psrpmsg.RunspacePoolNegotiationSucceeded}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.RunspacePoolStateMsg, psrpval.FromObj(stateMsg.ToObj())))
	appData := psrpmsg.ApplicationPrivateData{Data: map[string]psrpval.Value{}}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.ApplicationPrivateDataMsg, psrpval.FromObj(appData.ToObj())))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	handle := s.CreatePipeline()
	hc := psrpmsg.HostCall{CallID: 7, MethodID: psrpmsg.HostMethodWriteLine, MethodName: "WriteLine"}
	srv.push(encodeWire(t, s.RunspaceID(), handle.ID, psrpmsg.PipelineHostCall, psrpval.FromObj(hc.ToObj())))

	select {
	case call := <-s.HostCalls:
		require.Equal(t, int64(7), call.Call.CallID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for host call")
	}

	// Do not answer it; the loop's timeout should fire and send a
	// cancellation response without the consumer taking any action.
	time.Sleep(200 * time.Millisecond)
	_, pending := s.pool.PendingHostCall(7)
	require.False(t, pending, "timed-out host call should have been answered with a cancellation")
}

func TestSessionWriteProgressHostCallRoundTrip(t *testing.T) {
	srv := &fakeServer{}
	ts, s := newTestSession(t, srv)
	defer ts.Close()

	stateMsg := psrpmsg.RunspacePoolStateMessage{State: psrpmsg.RunspacePoolNegotiationSucceeded}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.RunspacePoolStateMsg, psrpval.FromObj(stateMsg.ToObj())))
	appData := psrpmsg.ApplicationPrivateData{Data: map[string]psrpval.Value{}}
	srv.push(encodeWire(t, s.RunspaceID(), uuid.Nil, psrpmsg.ApplicationPrivateDataMsg, psrpval.FromObj(appData.ToObj())))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	handle := s.CreatePipeline()
	hc := psrpmsg.HostCall{CallID: 42, MethodID: psrpmsg.HostMethodWriteProgress, MethodName: "WriteProgress"}
	srv.push(encodeWire(t, s.RunspaceID(), handle.ID, psrpmsg.PipelineHostCall, psrpval.FromObj(hc.ToObj())))

	var call runspace.HostCallEvent
	select {
	case call = <-s.HostCalls:
		require.Equal(t, int64(42), call.Call.CallID)
		require.Equal(t, int32(psrpmsg.HostMethodWriteProgress), call.Call.MethodID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for WriteProgress host call")
	}

	// WriteProgress has no return value; answer with an empty result before
	// the host-call timeout fires, and confirm the call is no longer pending.
	resp := psrpmsg.HostResponse{CallID: call.Call.CallID, MethodID: call.Call.MethodID, HasResult: false}
	require.NoError(t, s.SubmitHostResponse(ctx, handle, resp))

	time.Sleep(200 * time.Millisecond)
	_, pending := s.pool.PendingHostCall(42)
	require.False(t, pending, "answered host call should no longer be pending")
}
