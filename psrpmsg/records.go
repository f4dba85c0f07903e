package psrpmsg

import "github.com/oleiade/psrp/psrpval"

// CategoryInfo mirrors the ErrorCategoryInfo fields PowerShell attaches to
// every ErrorRecord.
type CategoryInfo struct {
	Category   int32
	Activity   string
	Reason     string
	TargetName string
	TargetType string
}

// InvocationInfo is the subset of System.Management.Automation.InvocationInfo
// useful to a client rendering a remote error: where in the remote script the
// failure occurred.
type InvocationInfo struct {
	CommandName      string
	ScriptName       string
	ScriptLineNumber int32
	OffsetInLine     int32
	Line             string
	PositionMessage  string
}

// ErrorRecord is the payload of the ErrorRecord message: a nested exception
// message, category, optional invocation context, and the object (if any)
// the error was raised against.
type ErrorRecord struct {
	Message               string
	FullyQualifiedErrorId string
	CategoryInfo          CategoryInfo
	InvocationInfo        *InvocationInfo
	TargetObject          psrpval.Value
}

func (m ErrorRecord) ToObj() *psrpval.Obj {
	o := newMsgObj("System.Management.Automation.ErrorRecord")
	setStr(o.Extended, "Message", m.Message)
	setStr(o.Extended, "FullyQualifiedErrorId", m.FullyQualifiedErrorId)
	setI32(o.Extended, "ErrorCategory_Category", m.CategoryInfo.Category)
	setStr(o.Extended, "ErrorCategory_Activity", m.CategoryInfo.Activity)
	setStr(o.Extended, "ErrorCategory_Reason", m.CategoryInfo.Reason)
	setStr(o.Extended, "ErrorCategory_TargetName", m.CategoryInfo.TargetName)
	setStr(o.Extended, "ErrorCategory_TargetType", m.CategoryInfo.TargetType)

	if m.InvocationInfo != nil {
		inv := newMsgObj()
		setStr(inv.Extended, "CommandName", m.InvocationInfo.CommandName)
		setStr(inv.Extended, "ScriptName", m.InvocationInfo.ScriptName)
		setI32(inv.Extended, "ScriptLineNumber", m.InvocationInfo.ScriptLineNumber)
		setI32(inv.Extended, "OffsetInLine", m.InvocationInfo.OffsetInLine)
		setStr(inv.Extended, "Line", m.InvocationInfo.Line)
		setStr(inv.Extended, "PositionMessage", m.InvocationInfo.PositionMessage)
		o.Extended.Set("InvocationInfo", psrpval.FromObj(inv))
	} else {
		o.Extended.Set("InvocationInfo", psrpval.FromPrimitive(psrpval.Nil()))
	}

	if m.TargetObject.Prim != nil || m.TargetObject.Obj != nil {
		o.Extended.Set("TargetObject", m.TargetObject)
	} else {
		o.Extended.Set("TargetObject", psrpval.FromPrimitive(psrpval.Nil()))
	}
	return o
}

func ErrorRecordFromValue(v psrpval.Value) (ErrorRecord, error) {
	const msg = "ErrorRecord"
	o, err := asObj(msg, v)
	if err != nil {
		return ErrorRecord{}, err
	}
	var m ErrorRecord
	m.Message = getOptStrOr(o.Extended, "Message", "")
	m.FullyQualifiedErrorId = getOptStrOr(o.Extended, "FullyQualifiedErrorId", "")
	if cat := getOptI32(o.Extended, "ErrorCategory_Category"); cat != nil {
		m.CategoryInfo.Category = *cat
	}
	m.CategoryInfo.Activity = getOptStrOr(o.Extended, "ErrorCategory_Activity", "")
	m.CategoryInfo.Reason = getOptStrOr(o.Extended, "ErrorCategory_Reason", "")
	m.CategoryInfo.TargetName = getOptStrOr(o.Extended, "ErrorCategory_TargetName", "")
	m.CategoryInfo.TargetType = getOptStrOr(o.Extended, "ErrorCategory_TargetType", "")

	if invVal, ok := o.Extended.Get("InvocationInfo"); ok && invVal.Obj != nil {
		inv := &InvocationInfo{
			CommandName:     getOptStrOr(invVal.Obj.Extended, "CommandName", ""),
			ScriptName:      getOptStrOr(invVal.Obj.Extended, "ScriptName", ""),
			Line:            getOptStrOr(invVal.Obj.Extended, "Line", ""),
			PositionMessage: getOptStrOr(invVal.Obj.Extended, "PositionMessage", ""),
		}
		if n := getOptI32(invVal.Obj.Extended, "ScriptLineNumber"); n != nil {
			inv.ScriptLineNumber = *n
		}
		if n := getOptI32(invVal.Obj.Extended, "OffsetInLine"); n != nil {
			inv.OffsetInLine = *n
		}
		m.InvocationInfo = inv
	}

	if tgt, ok := o.Extended.Get("TargetObject"); ok {
		m.TargetObject = tgt
	}
	return m, nil
}

func getOptStrOr(bag *psrpval.PropertyBag, name, fallback string) string {
	if s := getOptStr(bag, name); s != nil {
		return *s
	}
	return fallback
}

// streamRecord is the shared shape of Debug/Verbose/Warning/Information
// records: a message plus the same optional InvocationInfo ErrorRecord
// carries.
type streamRecord struct {
	Message        string
	InvocationInfo *InvocationInfo
}

func (r streamRecord) toObj() *psrpval.Obj {
	o := newMsgObj()
	setStr(o.Extended, "Message", r.Message)
	if r.InvocationInfo != nil {
		inv := newMsgObj()
		setStr(inv.Extended, "CommandName", r.InvocationInfo.CommandName)
		o.Extended.Set("InvocationInfo", psrpval.FromObj(inv))
	} else {
		o.Extended.Set("InvocationInfo", psrpval.FromPrimitive(psrpval.Nil()))
	}
	return o
}

func streamRecordFromValue(msg string, v psrpval.Value) (streamRecord, error) {
	o, err := asObj(msg, v)
	if err != nil {
		return streamRecord{}, err
	}
	r := streamRecord{Message: getOptStrOr(o.Extended, "Message", "")}
	if invVal, ok := o.Extended.Get("InvocationInfo"); ok && invVal.Obj != nil {
		r.InvocationInfo = &InvocationInfo{CommandName: getOptStrOr(invVal.Obj.Extended, "CommandName", "")}
	}
	return r, nil
}

// DebugRecord carries a Write-Debug message.
type DebugRecord struct{ streamRecord }

func (m DebugRecord) ToObj() *psrpval.Obj { return m.streamRecord.toObj() }

func DebugRecordFromValue(v psrpval.Value) (DebugRecord, error) {
	r, err := streamRecordFromValue("DebugRecord", v)
	return DebugRecord{r}, err
}

// VerboseRecord carries a Write-Verbose message.
type VerboseRecord struct{ streamRecord }

func (m VerboseRecord) ToObj() *psrpval.Obj { return m.streamRecord.toObj() }

func VerboseRecordFromValue(v psrpval.Value) (VerboseRecord, error) {
	r, err := streamRecordFromValue("VerboseRecord", v)
	return VerboseRecord{r}, err
}

// WarningRecord carries a Write-Warning message.
type WarningRecord struct{ streamRecord }

func (m WarningRecord) ToObj() *psrpval.Obj { return m.streamRecord.toObj() }

func WarningRecordFromValue(v psrpval.Value) (WarningRecord, error) {
	r, err := streamRecordFromValue("WarningRecord", v)
	return WarningRecord{r}, err
}

// InformationRecord carries a Write-Information message, including its tags
// and origin metadata.
type InformationRecord struct {
	MessageData  psrpval.Value
	Source       string
	TimeGenerated string
	Tags         []string
	User         string
	Computer     string
	ProcessID    int32
	NativeThreadID int32
	ManagedThreadID int32
}

func (m InformationRecord) ToObj() *psrpval.Obj {
	o := newMsgObj()
	o.Extended.Set("MessageData", m.MessageData)
	setStr(o.Extended, "Source", m.Source)
	setStr(o.Extended, "TimeGenerated", m.TimeGenerated)

	tagItems := make([]psrpval.Value, 0, len(m.Tags))
	for _, t := range m.Tags {
		tagItems = append(tagItems, psrpval.FromPrimitive(psrpval.String(t)))
	}
	tagsObj := newMsgObj()
	tagsObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: &psrpval.Container{Kind: psrpval.ContainerList, Items: tagItems}}
	o.Extended.Set("Tags", psrpval.FromObj(tagsObj))

	setStr(o.Extended, "User", m.User)
	setStr(o.Extended, "Computer", m.Computer)
	setI32(o.Extended, "ProcessId", m.ProcessID)
	setI32(o.Extended, "NativeThreadId", m.NativeThreadID)
	setI32(o.Extended, "ManagedThreadId", m.ManagedThreadID)
	return o
}

func InformationRecordFromValue(v psrpval.Value) (InformationRecord, error) {
	const msg = "InformationRecord"
	o, err := asObj(msg, v)
	if err != nil {
		return InformationRecord{}, err
	}
	var m InformationRecord
	m.MessageData, _ = o.Extended.Get("MessageData")
	m.Source = getOptStrOr(o.Extended, "Source", "")
	m.TimeGenerated = getOptStrOr(o.Extended, "TimeGenerated", "")
	if tagsVal, ok := o.Extended.Get("Tags"); ok {
		tagsObj, err := asObj(msg, tagsVal)
		if err != nil {
			return m, err
		}
		if tagsObj.Content.Container != nil {
			for _, item := range tagsObj.Content.Container.Items {
				if item.Prim != nil {
					m.Tags = append(m.Tags, item.Prim.Str)
				}
			}
		}
	}
	m.User = getOptStrOr(o.Extended, "User", "")
	m.Computer = getOptStrOr(o.Extended, "Computer", "")
	if n := getOptI32(o.Extended, "ProcessId"); n != nil {
		m.ProcessID = *n
	}
	if n := getOptI32(o.Extended, "NativeThreadId"); n != nil {
		m.NativeThreadID = *n
	}
	if n := getOptI32(o.Extended, "ManagedThreadId"); n != nil {
		m.ManagedThreadID = *n
	}
	return m, nil
}

// ProgressRecord mirrors Write-Progress output. PercentComplete is clamped to
// [-1,100] and SecondsRemaining to [-1,∞) by the Set* methods and when
// decoding, matching the source's builder-time clamp semantics rather than
// rejecting out-of-range input at decode time.
type ProgressRecord struct {
	Activity          string
	ActivityID        int32
	StatusDescription *string
	CurrentOperation  *string
	ParentActivityID  *int32
	PercentComplete   int32
	Type              ProgressRecordType
	SecondsRemaining  *int32
}

// NewProgressRecord returns a record with PercentComplete -1 ("unknown") and
// the optional fields absent. The clamp rules live in the Set* methods:
// PercentComplete outside [-1,100] collapses to -1; a negative
// ParentActivityID is treated as absent; SecondsRemaining below -1 collapses
// to -1.
func NewProgressRecord(activity string, activityID int32) ProgressRecord {
	return ProgressRecord{Activity: activity, ActivityID: activityID, PercentComplete: -1}
}

func (r *ProgressRecord) SetPercentComplete(pct int32) {
	if pct < -1 || pct > 100 {
		pct = -1
	}
	r.PercentComplete = pct
}

func (r *ProgressRecord) SetParentActivityID(id int32) {
	if id < 0 {
		r.ParentActivityID = nil
		return
	}
	r.ParentActivityID = &id
}

func (r *ProgressRecord) SetSecondsRemaining(s int32) {
	if s < -1 {
		s = -1
	}
	r.SecondsRemaining = &s
}

func (m ProgressRecord) ToObj() *psrpval.Obj {
	o := newMsgObj()
	setStr(o.Extended, "Activity", m.Activity)
	setI32(o.Extended, "ActivityId", m.ActivityID)
	setOptStr(o.Extended, "StatusDescription", m.StatusDescription)
	setOptStr(o.Extended, "CurrentOperation", m.CurrentOperation)
	setOptI32(o.Extended, "ParentActivityId", m.ParentActivityID)
	setI32(o.Extended, "PercentComplete", m.PercentComplete)
	o.Extended.Set("Type", psrpval.FromObj(psrpval.NewEnumObj(
		[]string{"System.Management.Automation.ProgressRecordType", "System.Enum", "System.ValueType", "System.Object"},
		m.Type.String(), int32(m.Type))))
	setOptI32(o.Extended, "SecondsRemaining", m.SecondsRemaining)
	return o
}

func ProgressRecordFromValue(v psrpval.Value) (ProgressRecord, error) {
	const msg = "ProgressRecord"
	o, err := asObj(msg, v)
	if err != nil {
		return ProgressRecord{}, err
	}
	m := NewProgressRecord("", 0)
	if m.Activity, err = getStr(o.Extended, msg, "Activity"); err != nil {
		return m, err
	}
	if m.ActivityID, err = getI32(o.Extended, msg, "ActivityId"); err != nil {
		return m, err
	}
	m.StatusDescription = getOptStr(o.Extended, "StatusDescription")
	m.CurrentOperation = getOptStr(o.Extended, "CurrentOperation")
	m.ParentActivityID = getOptI32(o.Extended, "ParentActivityId")
	if m.ParentActivityID != nil && *m.ParentActivityID < 0 {
		m.ParentActivityID = nil
	}
	if pct := getOptI32(o.Extended, "PercentComplete"); pct != nil {
		m.SetPercentComplete(*pct)
	} else {
		m.PercentComplete = -1
	}
	if typeVal, ok := o.Extended.Get("Type"); ok {
		if ordinal, ok := enumOrdinalFromValue(typeVal); ok {
			m.Type = ProgressRecordType(ordinal)
		}
	}
	if s := getOptI32(o.Extended, "SecondsRemaining"); s != nil {
		m.SetSecondsRemaining(*s)
	}
	return m, nil
}
