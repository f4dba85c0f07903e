package psrpmsg

import (
	"fmt"

	"github.com/oleiade/psrp/psrpval"
)

// Coordinates mirrors System.Management.Automation.Host.Coordinates.
type Coordinates struct {
	X, Y int32
}

func (c Coordinates) toObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "x", c.X)
	setI32(o.Extended, "y", c.Y)
	return o
}

func coordinatesFromObj(o *psrpval.Obj) (Coordinates, error) {
	x, err := getI32(o.Extended, "Coordinates", "x")
	if err != nil {
		return Coordinates{}, err
	}
	y, err := getI32(o.Extended, "Coordinates", "y")
	if err != nil {
		return Coordinates{}, err
	}
	return Coordinates{X: x, Y: y}, nil
}

// Size mirrors System.Management.Automation.Host.Size.
type Size struct {
	Width, Height int32
}

func (s Size) toObj() *psrpval.Obj {
	o := newMsgObj()
	setI32(o.Extended, "width", s.Width)
	setI32(o.Extended, "height", s.Height)
	return o
}

func sizeFromObj(o *psrpval.Obj) (Size, error) {
	w, err := getI32(o.Extended, "Size", "width")
	if err != nil {
		return Size{}, err
	}
	h, err := getI32(o.Extended, "Size", "height")
	if err != nil {
		return Size{}, err
	}
	return Size{Width: w, Height: h}, nil
}

// HostDefaultData is the raw-UI snapshot the client advertises during
// negotiation: console colors, cursor/window geometry, title, and locale.
// Field order follows the dictionary key convention (0-11) PowerShell expects.
type HostDefaultData struct {
	ForegroundColor       int32
	BackgroundColor       int32
	CursorPosition        Coordinates
	WindowPosition        Coordinates
	CursorSize            int32
	WindowSize            Size
	BufferSize            Size
	MaxWindowSize         Size
	MaxPhysicalWindowSize Size
	WindowTitle           string
	Locale                string
	UILocale              string
}

// DefaultHostDefaultData matches the fallback a server assumes when a client
// omits raw-UI data: a 120-column console (120x50 window, 120x3000 buffer)
// in en-US.
func DefaultHostDefaultData() HostDefaultData {
	return HostDefaultData{
		ForegroundColor:       7,
		BackgroundColor:       0,
		CursorSize:            25,
		BufferSize:            Size{Width: 120, Height: 3000},
		WindowSize:            Size{Width: 120, Height: 50},
		MaxWindowSize:         Size{Width: 120, Height: 50},
		MaxPhysicalWindowSize: Size{Width: 120, Height: 50},
		WindowTitle:           "PowerShell",
		Locale:                "en-US",
		UILocale:              "en-US",
	}
}

func wrappedI32(typeName string, v int32) *psrpval.Obj {
	o := newMsgObj()
	setStr(o.Extended, "T", typeName)
	o.Extended.Set("V", psrpval.FromPrimitive(psrpval.I32(v)))
	return o
}

func wrappedString(v string) *psrpval.Obj {
	o := newMsgObj()
	setStr(o.Extended, "T", "System.String")
	o.Extended.Set("V", psrpval.FromPrimitive(psrpval.String(v)))
	return o
}

func wrappedObj(typeName string, o *psrpval.Obj) *psrpval.Obj {
	w := newMsgObj()
	setStr(w.Extended, "T", typeName)
	w.Extended.Set("V", psrpval.FromObj(o))
	return w
}

func unwrapValue(msg string, v psrpval.Value) (psrpval.Value, error) {
	o, err := asObj(msg, v)
	if err != nil {
		return psrpval.Value{}, err
	}
	val, ok := o.Extended.Get("V")
	if !ok {
		return psrpval.Value{}, &MissingPropertyError{Message: msg, Property: "V"}
	}
	return val, nil
}

// toDictionary renders d as the 12-entry I32-keyed dictionary HostInfo wraps
// its "data" property around.
func (d HostDefaultData) toDictionary() *psrpval.Container {
	entries := []psrpval.DictEntry{
		{Key: psrpval.FromPrimitive(psrpval.I32(0)), Val: psrpval.FromObj(wrappedI32("System.ConsoleColor", d.ForegroundColor))},
		{Key: psrpval.FromPrimitive(psrpval.I32(1)), Val: psrpval.FromObj(wrappedI32("System.ConsoleColor", d.BackgroundColor))},
		{Key: psrpval.FromPrimitive(psrpval.I32(2)), Val: psrpval.FromObj(wrappedObj("System.Management.Automation.Host.Coordinates", d.CursorPosition.toObj()))},
		{Key: psrpval.FromPrimitive(psrpval.I32(3)), Val: psrpval.FromObj(wrappedObj("System.Management.Automation.Host.Coordinates", d.WindowPosition.toObj()))},
		{Key: psrpval.FromPrimitive(psrpval.I32(4)), Val: psrpval.FromObj(wrappedI32("System.Int32", d.CursorSize))},
		{Key: psrpval.FromPrimitive(psrpval.I32(5)), Val: psrpval.FromObj(wrappedObj("System.Management.Automation.Host.Size", d.WindowSize.toObj()))},
		{Key: psrpval.FromPrimitive(psrpval.I32(6)), Val: psrpval.FromObj(wrappedObj("System.Management.Automation.Host.Size", d.BufferSize.toObj()))},
		{Key: psrpval.FromPrimitive(psrpval.I32(7)), Val: psrpval.FromObj(wrappedObj("System.Management.Automation.Host.Size", d.MaxWindowSize.toObj()))},
		{Key: psrpval.FromPrimitive(psrpval.I32(8)), Val: psrpval.FromObj(wrappedObj("System.Management.Automation.Host.Size", d.MaxPhysicalWindowSize.toObj()))},
		{Key: psrpval.FromPrimitive(psrpval.I32(9)), Val: psrpval.FromObj(wrappedString(d.WindowTitle))},
		{Key: psrpval.FromPrimitive(psrpval.I32(10)), Val: psrpval.FromObj(wrappedString(d.Locale))},
		{Key: psrpval.FromPrimitive(psrpval.I32(11)), Val: psrpval.FromObj(wrappedString(d.UILocale))},
	}
	return &psrpval.Container{Kind: psrpval.ContainerDictionary, Entries: entries}
}

func dictLookup(c *psrpval.Container, key int32) (psrpval.Value, bool) {
	for _, e := range c.Entries {
		if e.Key.Prim != nil && e.Key.Prim.Tag == psrpval.TagI32 && int32(e.Key.Prim.Int) == key {
			return e.Val, true
		}
	}
	return psrpval.Value{}, false
}

func hostDefaultDataFromContainer(c *psrpval.Container) (HostDefaultData, error) {
	const msg = "HostDefaultData"
	getI32Key := func(key int32) (int32, error) {
		wv, ok := dictLookup(c, key)
		if !ok {
			return 0, &MissingPropertyError{Message: msg, Property: fmt.Sprintf("key %d", key)}
		}
		v, err := unwrapValue(msg, wv)
		if err != nil {
			return 0, err
		}
		if v.Prim == nil {
			return 0, &MissingPropertyError{Message: msg, Property: fmt.Sprintf("key %d", key)}
		}
		return int32(v.Prim.Int), nil
	}
	getStrKey := func(key int32) (string, error) {
		wv, ok := dictLookup(c, key)
		if !ok {
			return "", &MissingPropertyError{Message: msg, Property: fmt.Sprintf("key %d", key)}
		}
		v, err := unwrapValue(msg, wv)
		if err != nil {
			return "", err
		}
		if v.Prim == nil {
			return "", &MissingPropertyError{Message: msg, Property: fmt.Sprintf("key %d", key)}
		}
		return v.Prim.Str, nil
	}
	getObjKey := func(key int32) (*psrpval.Obj, error) {
		wv, ok := dictLookup(c, key)
		if !ok {
			return nil, &MissingPropertyError{Message: msg, Property: fmt.Sprintf("key %d", key)}
		}
		v, err := unwrapValue(msg, wv)
		if err != nil {
			return nil, err
		}
		return asObj(msg, v)
	}

	var d HostDefaultData
	var err error
	if d.ForegroundColor, err = getI32Key(0); err != nil {
		return d, err
	}
	if d.BackgroundColor, err = getI32Key(1); err != nil {
		return d, err
	}
	cursorObj, err := getObjKey(2)
	if err != nil {
		return d, err
	}
	if d.CursorPosition, err = coordinatesFromObj(cursorObj); err != nil {
		return d, err
	}
	windowPosObj, err := getObjKey(3)
	if err != nil {
		return d, err
	}
	if d.WindowPosition, err = coordinatesFromObj(windowPosObj); err != nil {
		return d, err
	}
	if d.CursorSize, err = getI32Key(4); err != nil {
		return d, err
	}
	windowSizeObj, err := getObjKey(5)
	if err != nil {
		return d, err
	}
	if d.WindowSize, err = sizeFromObj(windowSizeObj); err != nil {
		return d, err
	}
	bufferSizeObj, err := getObjKey(6)
	if err != nil {
		return d, err
	}
	if d.BufferSize, err = sizeFromObj(bufferSizeObj); err != nil {
		return d, err
	}
	maxWindowObj, err := getObjKey(7)
	if err != nil {
		return d, err
	}
	if d.MaxWindowSize, err = sizeFromObj(maxWindowObj); err != nil {
		return d, err
	}
	maxPhysObj, err := getObjKey(8)
	if err != nil {
		return d, err
	}
	if d.MaxPhysicalWindowSize, err = sizeFromObj(maxPhysObj); err != nil {
		return d, err
	}
	if d.WindowTitle, err = getStrKey(9); err != nil {
		return d, err
	}
	if d.Locale, err = getStrKey(10); err != nil {
		return d, err
	}
	if d.UILocale, err = getStrKey(11); err != nil {
		return d, err
	}
	return d, nil
}

// HostInfo is the client-side host-capability announcement carried by
// InitRunspacePool and ConnectRunspacePool.
type HostInfo struct {
	IsHostNull       bool
	IsHostUINull     bool
	IsHostRawUINull  bool
	UseRunspaceHost  bool
	HostDefaultData  HostDefaultData
}

// HostInfoAllNull announces that the client exposes no interactive host at
// all, deferring everything to the runspace's own host.
func HostInfoAllNull() HostInfo {
	return HostInfo{
		IsHostNull:      true,
		IsHostUINull:    true,
		IsHostRawUINull: true,
		UseRunspaceHost: true,
		HostDefaultData: DefaultHostDefaultData(),
	}
}

func (h HostInfo) toObj() *psrpval.Obj {
	o := newMsgObj()
	setBool(o.Extended, "_isHostNull", h.IsHostNull)
	setBool(o.Extended, "_isHostUINull", h.IsHostUINull)
	setBool(o.Extended, "_isHostRawUINull", h.IsHostRawUINull)
	setBool(o.Extended, "_useRunspaceHost", h.UseRunspaceHost)

	dataObj := newMsgObj("System.Collections.Hashtable", "System.Object")
	dataObj.Content = psrpval.Content{Kind: psrpval.ContentContainer, Container: h.HostDefaultData.toDictionary()}

	wrapper := newMsgObj()
	wrapper.Extended.Set("data", psrpval.FromObj(dataObj))

	o.Extended.Set("_hostDefaultData", psrpval.FromObj(wrapper))
	return o
}

func hostInfoFromObj(o *psrpval.Obj) (HostInfo, error) {
	const msg = "HostInfo"
	var h HostInfo
	if v, ok := o.Extended.Get("_isHostNull"); ok && v.Prim != nil {
		h.IsHostNull = v.Prim.Bool
	}
	if v, ok := o.Extended.Get("_isHostUINull"); ok && v.Prim != nil {
		h.IsHostUINull = v.Prim.Bool
	}
	if v, ok := o.Extended.Get("_isHostRawUINull"); ok && v.Prim != nil {
		h.IsHostRawUINull = v.Prim.Bool
	}
	if v, ok := o.Extended.Get("_useRunspaceHost"); ok && v.Prim != nil {
		h.UseRunspaceHost = v.Prim.Bool
	}

	wrapperVal, ok := o.Extended.Get("_hostDefaultData")
	if !ok {
		h.HostDefaultData = DefaultHostDefaultData()
		return h, nil
	}
	wrapper, err := asObj(msg, wrapperVal)
	if err != nil {
		return h, err
	}
	dataVal, ok := wrapper.Extended.Get("data")
	if !ok {
		return h, &MissingPropertyError{Message: msg, Property: "data"}
	}
	dataObj, err := asObj(msg, dataVal)
	if err != nil {
		return h, err
	}
	if dataObj.Content.Kind != psrpval.ContentContainer || dataObj.Content.Container == nil {
		return h, fmt.Errorf("psrpmsg: HostInfo: _hostDefaultData.data is not a dictionary")
	}
	h.HostDefaultData, err = hostDefaultDataFromContainer(dataObj.Content.Container)
	return h, err
}
