package psrpmsg

import "github.com/oleiade/psrp/psrpval"

// HostCall is the payload of RunspacePoolHostCall/PipelineHostCall: a
// request from the server for the client to invoke one method of the
// client-side PSHost the client advertised in HostInfo.
type HostCall struct {
	CallID     int64
	MethodID   int32
	MethodName string
	Parameters []psrpval.Value
}

func (m HostCall) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI64(o.Extended, "ci", m.CallID)
	setI32(o.Extended, "mi", m.MethodID)
	setStr(o.Extended, "mn", m.MethodName)

	args := newMsgObj()
	args.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{
		Kind: psrpval.ContainerList, Items: append([]psrpval.Value(nil), m.Parameters...),
	}}
	o.Extended.Set("mp", psrpval.FromObj(args))
	return o
}

func HostCallFromValue(v psrpval.Value) (HostCall, error) {
	const msg = "HostCall"
	o, err := asObj(msg, v)
	if err != nil {
		return HostCall{}, err
	}
	var m HostCall
	if m.CallID, err = getI64(o.Extended, msg, "ci"); err != nil {
		return m, err
	}
	if m.MethodID, err = getI32(o.Extended, msg, "mi"); err != nil {
		return m, err
	}
	m.MethodName = getOptStrOr(o.Extended, "mn", "")

	if argsVal, ok := o.Extended.Get("mp"); ok {
		argsObj, err := asObj(msg, argsVal)
		if err != nil {
			return m, err
		}
		if argsObj.Content.Container != nil {
			m.Parameters = argsObj.Content.Container.Items
		}
	}
	return m, nil
}

// HostResponse answers a HostCall. Exactly one of Result/Exception is set
// for a value-returning method; both are absent for a void method, and a
// void response produces no further wire traffic once delivered.
type HostResponse struct {
	CallID     int64
	MethodID   int32
	MethodName string
	Result     psrpval.Value
	Exception  psrpval.Value
	HasResult  bool
	HasError   bool
}

// NewVoidHostResponse builds the response to a void method call: both
// result and exception absent.
func NewVoidHostResponse(callID int64, methodID int32, methodName string) HostResponse {
	return HostResponse{CallID: callID, MethodID: methodID, MethodName: methodName}
}

func (m HostResponse) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI64(o.Extended, "ci", m.CallID)
	setI32(o.Extended, "mi", m.MethodID)
	setStr(o.Extended, "mn", m.MethodName)

	if m.HasResult {
		mr := newMsgObj()
		mr.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{
			Kind: psrpval.ContainerList, Items: []psrpval.Value{m.Result},
		}}
		o.Extended.Set("mr", psrpval.FromObj(mr))
	} else {
		o.Extended.Set("mr", psrpval.FromPrimitive(psrpval.Nil()))
	}

	if m.HasError {
		o.Extended.Set("me", m.Exception)
	} else {
		o.Extended.Set("me", psrpval.FromPrimitive(psrpval.Nil()))
	}
	return o
}

func HostResponseFromValue(v psrpval.Value) (HostResponse, error) {
	const msg = "HostResponse"
	o, err := asObj(msg, v)
	if err != nil {
		return HostResponse{}, err
	}
	var m HostResponse
	if m.CallID, err = getI64(o.Extended, msg, "ci"); err != nil {
		return m, err
	}
	if m.MethodID, err = getI32(o.Extended, msg, "mi"); err != nil {
		return m, err
	}
	m.MethodName = getOptStrOr(o.Extended, "mn", "")

	if mrVal, ok := o.Extended.Get("mr"); ok && mrVal.Obj != nil {
		if mrVal.Obj.Content.Container != nil && len(mrVal.Obj.Content.Container.Items) == 1 {
			m.Result = mrVal.Obj.Content.Container.Items[0]
			m.HasResult = true
		}
	}
	if meVal, ok := o.Extended.Get("me"); ok && (meVal.Obj != nil || (meVal.Prim != nil && meVal.Prim.Tag != psrpval.TagNil)) {
		m.Exception = meVal
		m.HasError = true
	}
	return m, nil
}

// CancelHostCall is injected locally (never sent over the wire as its own
// message) when a host-call response times out; the session turns it into
// an error HostResponse carrying the text "Host call N was cancelled".
type CancelHostCall struct {
	CallID int64
}
