package psrpval

import "fmt"

// MissingPropertyError is returned when a message decoder requires a
// property that is absent from the deserialized object's property bag.
type MissingPropertyError struct{ Name string }

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("psrpval: missing property %q", e.Name)
}

// WrongPrimitiveTypeError is returned when a decoder expects one primitive
// tag and finds another.
type WrongPrimitiveTypeError struct {
	Expected, Got PrimitiveTag
}

func (e *WrongPrimitiveTypeError) Error() string {
	return fmt.Sprintf("psrpval: wrong primitive type: expected %d, got %d", e.Expected, e.Got)
}

// UnresolvedRefError is returned when a <Ref>/<TNRef> element's RefId does
// not resolve within the enclosing document's deserialization context.
type UnresolvedRefError struct{ RefID uint64 }

func (e *UnresolvedRefError) Error() string {
	return fmt.Sprintf("psrpval: unresolved reference RefId=%d", e.RefID)
}

// InvalidEnumOrdinalError is returned when a backing integer does not map to
// a known enum variant for the named type.
type InvalidEnumOrdinalError struct {
	Type  string
	Value int64
}

func (e *InvalidEnumOrdinalError) Error() string {
	return fmt.Sprintf("psrpval: invalid enum ordinal %d for type %s", e.Value, e.Type)
}

// UnknownTagError is returned when a child element uses a tag not in the
// CLI-XML grammar understood by this codec (a hard error per the property
// bag rule: unknown child tags are rejected, not skipped).
type UnknownTagError struct{ Tag string }

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("psrpval: unknown tag %q", e.Tag)
}

// DuplicatePropertyTagError is returned when an Obj repeats a child tag: a
// second <Props>, <MS> or <ToString>, a second container (<LST|DCT|STK|QUE>),
// or a second type-name tag (<TN|TNRef>). Different tags may appear together.
type DuplicatePropertyTagError struct{ Tag string }

func (e *DuplicatePropertyTagError) Error() string {
	return fmt.Sprintf("psrpval: duplicate %s element in one Obj", e.Tag)
}

// ForwardRefError is returned when a Ref/TNRef element's RefId has not yet
// been assigned at the point it is encountered, which this codec rejects
// rather than deferring resolution.
type ForwardRefError struct{ RefID uint64 }

func (e *ForwardRefError) Error() string {
	return fmt.Sprintf("psrpval: forward reference to RefId=%d", e.RefID)
}
