// Package psrpval implements the CLI-XML value codec: the serialization
// format PowerShell uses to represent primitives, typed complex objects,
// containers, and shared-reference graphs on the wire.
//
// A Value is either a Primitive or a complex object (*Obj). Complex objects
// carry an ordered property bag (adapted and extended properties), optional
// type names, and one of a closed set of Content shapes (plain property bag,
// boxed/enum primitive, or container). Shared object identity and shared
// type-name lists are modeled directly with Go pointer identity: reusing the
// same *Obj or *TypeNames value at two places in a graph is what produces a
// <Ref>/<TNRef> on the wire, and what Deserialize reconstructs on the way
// back in.
package psrpval

// PrimitiveTag identifies the CLI-XML primitive tag a Primitive was, or will
// be, encoded with.
type PrimitiveTag int

const (
	TagString PrimitiveTag = iota
	TagChar
	TagBool
	TagI8
	TagI16
	TagI32
	TagI64
	TagU8
	TagU16
	TagU32
	TagU64
	TagF32
	TagF64
	TagDecimal
	TagGUID
	TagVersion
	TagDateTime
	TagDuration
	TagByteArray
	TagNil
	TagScriptBlock
	TagURI
)

// Primitive is a leaf CLI-XML value. Exactly the fields relevant to Tag are
// meaningful; the rest are zero.
type Primitive struct {
	Tag   PrimitiveTag
	Str   string // String, Char, Version, GUID, URI, ScriptBlock, Decimal (canonical text), DateTime, Duration
	Int   int64  // I8..I64
	Uint  uint64 // U8..U64
	Float float64
	Bool  bool
	Bytes []byte // ByteArray
}

func String(s string) Primitive       { return Primitive{Tag: TagString, Str: s} }
func Char(r rune) Primitive           { return Primitive{Tag: TagChar, Str: string(r)} }
func Bool(b bool) Primitive           { return Primitive{Tag: TagBool, Bool: b} }
func I8(v int8) Primitive             { return Primitive{Tag: TagI8, Int: int64(v)} }
func I16(v int16) Primitive           { return Primitive{Tag: TagI16, Int: int64(v)} }
func I32(v int32) Primitive           { return Primitive{Tag: TagI32, Int: int64(v)} }
func I64(v int64) Primitive           { return Primitive{Tag: TagI64, Int: v} }
func U8(v uint8) Primitive            { return Primitive{Tag: TagU8, Uint: uint64(v)} }
func U16(v uint16) Primitive          { return Primitive{Tag: TagU16, Uint: uint64(v)} }
func U32(v uint32) Primitive          { return Primitive{Tag: TagU32, Uint: uint64(v)} }
func U64(v uint64) Primitive          { return Primitive{Tag: TagU64, Uint: v} }
func F32(v float32) Primitive         { return Primitive{Tag: TagF32, Float: float64(v)} }
func F64(v float64) Primitive         { return Primitive{Tag: TagF64, Float: v} }
func Decimal(s string) Primitive      { return Primitive{Tag: TagDecimal, Str: s} }
func GUID(s string) Primitive         { return Primitive{Tag: TagGUID, Str: s} }
func Version(dotted string) Primitive { return Primitive{Tag: TagVersion, Str: dotted} }
func DateTime(iso string) Primitive   { return Primitive{Tag: TagDateTime, Str: iso} }
func Duration(iso string) Primitive   { return Primitive{Tag: TagDuration, Str: iso} }
func ByteArray(b []byte) Primitive    { return Primitive{Tag: TagByteArray, Bytes: b} }
func Nil() Primitive                  { return Primitive{Tag: TagNil} }
func ScriptBlock(s string) Primitive  { return Primitive{Tag: TagScriptBlock, Str: s} }
func URI(s string) Primitive          { return Primitive{Tag: TagURI, Str: s} }

// Value is either a Primitive or a complex object. Exactly one of Prim/Obj is set.
type Value struct {
	Prim *Primitive
	Obj  *Obj
}

// FromPrimitive wraps p as a Value.
func FromPrimitive(p Primitive) Value { return Value{Prim: &p} }

// FromObj wraps o as a Value.
func FromObj(o *Obj) Value { return Value{Obj: o} }

// IsPrimitive reports whether v holds a Primitive.
func (v Value) IsPrimitive() bool { return v.Prim != nil }

// ContainerKind identifies which of the four container shapes a Container
// holds.
type ContainerKind int

const (
	ContainerList ContainerKind = iota
	ContainerDictionary
	ContainerStack
	ContainerQueue
)

// DictEntry is one key/value pair of a Dictionary container. Keys are
// themselves Values; equality for dictionary lookups follows value semantics
// (primitives by content, objects by structural identity, not by RefId).
type DictEntry struct {
	Key Value
	Val Value
}

// Container holds one of List, Dictionary, Stack, or Queue.
type Container struct {
	Kind    ContainerKind
	Items   []Value // List, Stack, Queue
	Entries []DictEntry
}

// ContentKind discriminates the shape of an Obj's content.
type ContentKind int

const (
	ContentStandard ContentKind = iota
	ContentExtendedPrimitive
	ContentContainer
	ContentEnum
)

// Content is the payload shape of a complex object, beyond its property bags.
type Content struct {
	Kind      ContentKind
	Primitive Primitive  // ContentExtendedPrimitive, ContentEnum: the backing primitive
	Container *Container // ContentContainer
}

// TypeNames is an ordered list of .NET type names, most-derived first. Two
// Obj values sharing the same *TypeNames pointer serialize as a TN/TNRef pair.
type TypeNames struct {
	Names []string
}

// PropertyBag is an insertion-ordered, name-unique map of properties.
type PropertyBag struct {
	order []string
	vals  map[string]Value
}

// NewPropertyBag returns an empty property bag.
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{vals: make(map[string]Value)}
}

// Set inserts or overwrites a property, preserving first-insertion order.
func (b *PropertyBag) Set(name string, v Value) {
	if _, exists := b.vals[name]; !exists {
		b.order = append(b.order, name)
	}
	b.vals[name] = v
}

// Get returns the named property and whether it was present.
func (b *PropertyBag) Get(name string) (Value, bool) {
	v, ok := b.vals[name]
	return v, ok
}

// Keys returns property names in insertion order.
func (b *PropertyBag) Keys() []string {
	return append([]string(nil), b.order...)
}

// Len returns the number of properties.
func (b *PropertyBag) Len() int { return len(b.order) }

// Obj is a complex CLI-XML object: a typed, possibly-referenced property bag
// with an optional ToString rendering and one Content shape.
type Obj struct {
	TypeNames *TypeNames
	ToString  *string
	Content   Content
	Adapted   *PropertyBag
	Extended  *PropertyBag
}

// NewObj returns an empty standard-content object.
func NewObj() *Obj {
	return &Obj{Adapted: NewPropertyBag(), Extended: NewPropertyBag()}
}
