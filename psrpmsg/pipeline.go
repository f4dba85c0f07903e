package psrpmsg

import "github.com/oleiade/psrp/psrpval"

// ApartmentState mirrors System.Threading.ApartmentState.
type ApartmentState int32

const (
	ApartmentSTA     ApartmentState = 0
	ApartmentMTA     ApartmentState = 1
	ApartmentUnknown ApartmentState = 2
)

// RemoteStreamOptions mirrors System.Management.Automation.RemoteStreamOptions
// (a [Flags] enum; commonly left at None).
type RemoteStreamOptions int32

const (
	RemoteStreamNone                             RemoteStreamOptions = 0
	RemoteStreamAddInvocationInfoToErrorRecord   RemoteStreamOptions = 1
	RemoteStreamAddInvocationInfoToWarningRecord RemoteStreamOptions = 2
	RemoteStreamAddInvocationInfoToDebugRecord   RemoteStreamOptions = 4
	RemoteStreamAddInvocationInfoToVerboseRecord RemoteStreamOptions = 8
)

// PipelineResultTypes mirrors System.Management.Automation.Runspaces.PipelineResultTypes,
// used by Command's merge-stream properties.
type PipelineResultTypes int32

const (
	ResultNone        PipelineResultTypes = 0
	ResultOutput      PipelineResultTypes = 1
	ResultError       PipelineResultTypes = 2
	ResultWarning     PipelineResultTypes = 3
	ResultVerbose     PipelineResultTypes = 4
	ResultDebug       PipelineResultTypes = 5
	ResultAll         PipelineResultTypes = 6
	ResultInformation PipelineResultTypes = 7
)

func enumObj(ordinal int32, name string, typeNames ...string) *psrpval.Obj {
	return psrpval.NewEnumObj(typeNames, name, ordinal)
}

var apartmentStateNames = map[ApartmentState]string{ApartmentSTA: "STA", ApartmentMTA: "MTA", ApartmentUnknown: "Unknown"}
var remoteStreamOptionsNames = map[RemoteStreamOptions]string{RemoteStreamNone: "None"}
var pipelineResultTypeNames = map[PipelineResultTypes]string{
	ResultNone: "None", ResultOutput: "Output", ResultError: "Error", ResultWarning: "Warning",
	ResultVerbose: "Verbose", ResultDebug: "Debug", ResultAll: "All", ResultInformation: "Information",
}

func (s ApartmentState) toObj() *psrpval.Obj {
	return enumObj(int32(s), apartmentStateNames[s], "System.Threading.ApartmentState", "System.Enum", "System.ValueType", "System.Object")
}

func (o RemoteStreamOptions) toObj() *psrpval.Obj {
	name := remoteStreamOptionsNames[o]
	if name == "" {
		name = "None"
	}
	return enumObj(int32(o), name, "System.Management.Automation.RemoteStreamOptions", "System.Enum", "System.ValueType", "System.Object")
}

func (t PipelineResultTypes) toObj() *psrpval.Obj {
	return enumObj(int32(t), pipelineResultTypeNames[t],
		"System.Management.Automation.Runspaces.PipelineResultTypes", "System.Enum", "System.ValueType", "System.Object")
}

func enumOrdinalFromValue(v psrpval.Value) (int32, bool) {
	ordinal, ok := psrpval.EnumOrdinal(v)
	if !ok {
		return 0, false
	}
	return int32(ordinal), true
}

// CommandParameter is one positional or named argument of a pipeline Command.
type CommandParameter struct {
	Name  *string
	Value psrpval.Value
}

func (p CommandParameter) toObj() *psrpval.Obj {
	o := newMsgObj()
	setOptStr(o.Extended, "N", p.Name)
	o.Extended.Set("V", p.Value)
	return o
}

func commandParameterFromObj(o *psrpval.Obj) (CommandParameter, error) {
	p := CommandParameter{Name: getOptStr(o.Extended, "N")}
	v, ok := o.Extended.Get("V")
	if !ok {
		return p, &MissingPropertyError{Message: "CommandParameter", Property: "V"}
	}
	p.Value = v
	return p, nil
}

// Command is a single pipeline stage (cmdlet, script, or expression).
type Command struct {
	Cmd                  string
	IsScript             bool
	Args                 []CommandParameter
	UseLocalScope        *bool
	MergeMyResult        PipelineResultTypes
	MergeToResult        PipelineResultTypes
	MergePreviousResults PipelineResultTypes
	MergeDebug           PipelineResultTypes
	MergeError           PipelineResultTypes
	MergeInformation     PipelineResultTypes
	MergeVerbose         PipelineResultTypes
	MergeWarning         PipelineResultTypes
}

var commandParameterArrayListTypes = []string{"System.Collections.ArrayList", "System.Object"}

func (c Command) toObj() *psrpval.Obj {
	o := newMsgObj()
	setStr(o.Extended, "Cmd", c.Cmd)

	argItems := make([]psrpval.Value, 0, len(c.Args))
	for _, a := range c.Args {
		argItems = append(argItems, psrpval.FromObj(a.toObj()))
	}
	argsObj := newMsgObj(commandParameterArrayListTypes...)
	cmdName := c.Cmd
	argsObj.ToString = &cmdName
	argsObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerList, Items: argItems}}
	o.Extended.Set("Args", psrpval.FromObj(argsObj))

	setBool(o.Extended, "IsScript", c.IsScript)
	setOptBool(o.Extended, "UseLocalScope", c.UseLocalScope)
	o.Extended.Set("MergeMyResult", psrpval.FromObj(c.MergeMyResult.toObj()))
	o.Extended.Set("MergeToResult", psrpval.FromObj(c.MergeToResult.toObj()))
	o.Extended.Set("MergePreviousResults", psrpval.FromObj(c.MergePreviousResults.toObj()))
	o.Extended.Set("MergeDebug", psrpval.FromObj(c.MergeDebug.toObj()))
	o.Extended.Set("MergeError", psrpval.FromObj(c.MergeError.toObj()))
	o.Extended.Set("MergeInformation", psrpval.FromObj(c.MergeInformation.toObj()))
	o.Extended.Set("MergeVerbose", psrpval.FromObj(c.MergeVerbose.toObj()))
	o.Extended.Set("MergeWarning", psrpval.FromObj(c.MergeWarning.toObj()))
	o.ToString = &cmdName
	return o
}

func setOptBool(bag *psrpval.PropertyBag, name string, v *bool) {
	if v == nil {
		bag.Set(name, psrpval.FromPrimitive(psrpval.Nil()))
		return
	}
	setBool(bag, name, *v)
}

func getOptBool(bag *psrpval.PropertyBag, name string) *bool {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil || v.Prim.Tag == psrpval.TagNil {
		return nil
	}
	b := v.Prim.Bool
	return &b
}

func mergeResultType(bag *psrpval.PropertyBag, name string) PipelineResultTypes {
	v, ok := bag.Get(name)
	if !ok {
		return ResultNone
	}
	ordinal, ok := enumOrdinalFromValue(v)
	if !ok {
		return ResultNone
	}
	return PipelineResultTypes(ordinal)
}

func commandFromObj(o *psrpval.Obj) (Command, error) {
	const msg = "Command"
	var c Command
	var err error
	if c.Cmd, err = getStr(o.Extended, msg, "Cmd"); err != nil {
		return c, err
	}
	if c.IsScript, err = getBool(o.Extended, msg, "IsScript"); err != nil {
		return c, err
	}
	c.UseLocalScope = getOptBool(o.Extended, "UseLocalScope")

	if argsVal, ok := o.Extended.Get("Args"); ok {
		argsObj, err := asObj(msg, argsVal)
		if err != nil {
			return c, err
		}
		if argsObj.Content.Kind == psrpval.ContentContainer && argsObj.Content.Container != nil {
			for _, item := range argsObj.Content.Container.Items {
				paramObj, err := asObj(msg, item)
				if err != nil {
					return c, err
				}
				param, err := commandParameterFromObj(paramObj)
				if err != nil {
					return c, err
				}
				c.Args = append(c.Args, param)
			}
		}
	}

	c.MergeMyResult = mergeResultType(o.Extended, "MergeMyResult")
	c.MergeToResult = mergeResultType(o.Extended, "MergeToResult")
	c.MergePreviousResults = mergeResultType(o.Extended, "MergePreviousResults")
	c.MergeDebug = mergeResultType(o.Extended, "MergeDebug")
	c.MergeError = mergeResultType(o.Extended, "MergeError")
	c.MergeInformation = mergeResultType(o.Extended, "MergeInformation")
	c.MergeVerbose = mergeResultType(o.Extended, "MergeVerbose")
	c.MergeWarning = mergeResultType(o.Extended, "MergeWarning")
	return c, nil
}

// PowerShellPipeline is the nested "PowerShell" object inside CreatePipeline:
// the ordered command list plus pipeline-scoped flags.
type PowerShellPipeline struct {
	Cmds                          []Command
	IsNested                      bool
	History                       *string
	RedirectShellErrorOutputPipe bool
}

var cmdsArrayListTypes = []string{"System.Collections.ArrayList", "System.Object"}

func (p PowerShellPipeline) toObj() *psrpval.Obj {
	o := newMsgObj()

	cmdItems := make([]psrpval.Value, 0, len(p.Cmds))
	for _, c := range p.Cmds {
		cmdItems = append(cmdItems, psrpval.FromObj(c.toObj()))
	}
	cmdsObj := newMsgObj(cmdsArrayListTypes...)
	cmdsObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerList, Items: cmdItems}}
	o.Extended.Set("Cmds", psrpval.FromObj(cmdsObj))

	setBool(o.Extended, "IsNested", p.IsNested)
	setOptStr(o.Extended, "History", p.History)
	setBool(o.Extended, "RedirectShellErrorOutputPipe", p.RedirectShellErrorOutputPipe)
	return o
}

func powerShellPipelineFromObj(o *psrpval.Obj) (PowerShellPipeline, error) {
	const msg = "PowerShell"
	var p PowerShellPipeline
	cmdsVal, ok := o.Extended.Get("Cmds")
	if !ok {
		return p, &MissingPropertyError{Message: msg, Property: "Cmds"}
	}
	cmdsObj, err := asObj(msg, cmdsVal)
	if err != nil {
		return p, err
	}
	if cmdsObj.Content.Kind == psrpval.ContentContainer && cmdsObj.Content.Container != nil {
		for _, item := range cmdsObj.Content.Container.Items {
			cmdObj, err := asObj(msg, item)
			if err != nil {
				return p, err
			}
			cmd, err := commandFromObj(cmdObj)
			if err != nil {
				return p, err
			}
			p.Cmds = append(p.Cmds, cmd)
		}
	}
	if p.IsNested, err = getBool(o.Extended, msg, "IsNested"); err != nil {
		return p, err
	}
	p.History = getOptStr(o.Extended, "History")
	if p.RedirectShellErrorOutputPipe, err = getBool(o.Extended, msg, "RedirectShellErrorOutputPipe"); err != nil {
		return p, err
	}
	return p, nil
}

// CreatePipeline invokes a new pipeline on an opened runspace pool.
type CreatePipeline struct {
	NoInput             bool
	ApartmentState      ApartmentState
	RemoteStreamOptions RemoteStreamOptions
	AddToHistory        bool
	HostInfo            HostInfo
	Pipeline            PowerShellPipeline
	IsNested            bool
}

func (m CreatePipeline) ToObj() *psrpval.Obj {
	o := newMsgObj("System.Object")
	setBool(o.Extended, "NoInput", m.NoInput)
	o.Extended.Set("ApartmentState", psrpval.FromObj(m.ApartmentState.toObj()))
	o.Extended.Set("RemoteStreamOptions", psrpval.FromObj(m.RemoteStreamOptions.toObj()))
	setBool(o.Extended, "AddToHistory", m.AddToHistory)
	o.Extended.Set("HostInfo", psrpval.FromObj(m.HostInfo.toObj()))
	o.Extended.Set("PowerShell", psrpval.FromObj(m.Pipeline.toObj()))
	setBool(o.Extended, "IsNested", m.IsNested)
	return o
}

func CreatePipelineFromValue(v psrpval.Value) (CreatePipeline, error) {
	const msg = "CreatePipeline"
	o, err := asObj(msg, v)
	if err != nil {
		return CreatePipeline{}, err
	}
	var m CreatePipeline
	if m.NoInput, err = getBool(o.Extended, msg, "NoInput"); err != nil {
		return m, err
	}
	if asVal, ok := o.Extended.Get("ApartmentState"); ok {
		if ord, ok := enumOrdinalFromValue(asVal); ok {
			m.ApartmentState = ApartmentState(ord)
		}
	}
	if rsoVal, ok := o.Extended.Get("RemoteStreamOptions"); ok {
		if ord, ok := enumOrdinalFromValue(rsoVal); ok {
			m.RemoteStreamOptions = RemoteStreamOptions(ord)
		}
	}
	if m.AddToHistory, err = getBool(o.Extended, msg, "AddToHistory"); err != nil {
		return m, err
	}
	hostVal, ok := o.Extended.Get("HostInfo")
	if !ok {
		return m, &MissingPropertyError{Message: msg, Property: "HostInfo"}
	}
	hostObj, err := asObj(msg, hostVal)
	if err != nil {
		return m, err
	}
	if m.HostInfo, err = hostInfoFromObj(hostObj); err != nil {
		return m, err
	}
	psVal, ok := o.Extended.Get("PowerShell")
	if !ok {
		return m, &MissingPropertyError{Message: msg, Property: "PowerShell"}
	}
	psObj, err := asObj(msg, psVal)
	if err != nil {
		return m, err
	}
	if m.Pipeline, err = powerShellPipelineFromObj(psObj); err != nil {
		return m, err
	}
	m.IsNested, err = getBool(o.Extended, msg, "IsNested")
	return m, err
}

// GetCommandMetadata asks the server for cmdlet/function metadata matching a
// glob/name pattern set, for tab-completion style clients.
type GetCommandMetadata struct {
	Names          []string
	CommandTypes   int32 // System.Management.Automation.CommandTypes bitmask
	Namespace      []string
	ArgumentList   []psrpval.Value
}

func (m GetCommandMetadata) ToObj() *psrpval.Obj {
	o := newMsgObj()
	items := make([]psrpval.Value, 0, len(m.Names))
	for _, n := range m.Names {
		items = append(items, psrpval.FromPrimitive(psrpval.String(n)))
	}
	namesObj := newMsgObj()
	namesObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerList, Items: items}}
	o.Extended.Set("Name", psrpval.FromObj(namesObj))
	setI32(o.Extended, "CommandType", m.CommandTypes)

	nsItems := make([]psrpval.Value, 0, len(m.Namespace))
	for _, n := range m.Namespace {
		nsItems = append(nsItems, psrpval.FromPrimitive(psrpval.String(n)))
	}
	nsObj := newMsgObj()
	nsObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerList, Items: nsItems}}
	o.Extended.Set("Namespace", psrpval.FromObj(nsObj))

	argObj := newMsgObj()
	argObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerList, Items: m.ArgumentList}}
	o.Extended.Set("ArgumentList", psrpval.FromObj(argObj))
	return o
}

func GetCommandMetadataFromValue(v psrpval.Value) (GetCommandMetadata, error) {
	const msg = "GetCommandMetadata"
	o, err := asObj(msg, v)
	if err != nil {
		return GetCommandMetadata{}, err
	}
	var m GetCommandMetadata
	if nameVal, ok := o.Extended.Get("Name"); ok {
		nameObj, err := asObj(msg, nameVal)
		if err != nil {
			return m, err
		}
		if nameObj.Content.Container != nil {
			for _, item := range nameObj.Content.Container.Items {
				if item.Prim != nil {
					m.Names = append(m.Names, item.Prim.Str)
				}
			}
		}
	}
	if m.CommandTypes, err = getI32(o.Extended, msg, "CommandType"); err != nil {
		return m, err
	}
	if nsVal, ok := o.Extended.Get("Namespace"); ok {
		nsObj, err := asObj(msg, nsVal)
		if err != nil {
			return m, err
		}
		if nsObj.Content.Container != nil {
			for _, item := range nsObj.Content.Container.Items {
				if item.Prim != nil {
					m.Namespace = append(m.Namespace, item.Prim.Str)
				}
			}
		}
	}
	if argVal, ok := o.Extended.Get("ArgumentList"); ok {
		argObj, err := asObj(msg, argVal)
		if err != nil {
			return m, err
		}
		if argObj.Content.Container != nil {
			m.ArgumentList = argObj.Content.Container.Items
		}
	}
	return m, nil
}

// PipelineInput carries one object of streamed standard input.
type PipelineInput struct {
	Data psrpval.Value
}

func (m PipelineInput) ToValue() psrpval.Value { return m.Data }

func PipelineInputFromValue(v psrpval.Value) (PipelineInput, error) {
	return PipelineInput{Data: v}, nil
}

// EndOfPipelineInput is an empty message signaling no further PipelineInput
// will be sent.
type EndOfPipelineInput struct{}

func (m EndOfPipelineInput) ToObj() *psrpval.Obj { return newMsgObj() }

func EndOfPipelineInputFromValue(v psrpval.Value) (EndOfPipelineInput, error) {
	return EndOfPipelineInput{}, nil
}

// PipelineOutput carries one object of pipeline output; the payload's own
// type determines how a client renders it, so it is passed through untouched.
type PipelineOutput struct {
	Data psrpval.Value
}

func (m PipelineOutput) ToValue() psrpval.Value { return m.Data }

func PipelineOutputFromValue(v psrpval.Value) (PipelineOutput, error) {
	return PipelineOutput{Data: v}, nil
}

// PipelineStateMessage reports a PipelineState transition, with the failing
// error attached when the new state is Failed or Stopped due to an error.
type PipelineStateMessage struct {
	State           PipelineState
	ErrorRecordData psrpval.Value
}

func (m PipelineStateMessage) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "PipelineState", int32(m.State))
	if m.ErrorRecordData.Prim != nil || m.ErrorRecordData.Obj != nil {
		o.Extended.Set("ExceptionAsErrorRecord", m.ErrorRecordData)
	}
	return o
}

func PipelineStateMessageFromValue(v psrpval.Value) (PipelineStateMessage, error) {
	const msg = "PipelineState"
	o, err := asObj(msg, v)
	if err != nil {
		return PipelineStateMessage{}, err
	}
	ordinal, err := getI32(o.Extended, msg, "PipelineState")
	if err != nil {
		return PipelineStateMessage{}, err
	}
	state := PipelineState(ordinal)
	if state < PipelineNotStarted || state > PipelineDisconnected {
		return PipelineStateMessage{}, &InvalidEnumOrdinalError{EnumType: "PSInvocationState", Ordinal: int64(ordinal)}
	}
	m := PipelineStateMessage{State: state}
	if ex, ok := o.Extended.Get("ExceptionAsErrorRecord"); ok {
		m.ErrorRecordData = ex
	}
	return m, nil
}

func (m PipelineStateMessage) IsTerminal() bool { return m.State.Terminal() }
