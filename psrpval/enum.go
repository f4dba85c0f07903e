package psrpval

// EnumOrdinal extracts the backing integer ordinal from an enum-shaped or
// extended-primitive Obj, for message decoders that know the concrete enum
// type and need to validate/interpret the ordinal (e.g. PSInvocationState).
func EnumOrdinal(v Value) (int64, bool) {
	if v.Obj == nil {
		return 0, false
	}
	switch v.Obj.Content.Kind {
	case ContentEnum, ContentExtendedPrimitive:
	default:
		return 0, false
	}
	p := v.Obj.Content.Primitive
	switch p.Tag {
	case TagI8, TagI16, TagI32, TagI64:
		return p.Int, true
	case TagU8, TagU16, TagU32, TagU64:
		return int64(p.Uint), true
	default:
		return 0, false
	}
}

// NewEnumObj builds an enum-shaped Obj: a type name list, the stringified
// variant name as ToString, and the backing I32 ordinal.
func NewEnumObj(typeNames []string, name string, ordinal int32) *Obj {
	o := &Obj{
		TypeNames: &TypeNames{Names: typeNames},
		ToString:  &name,
		Content:   Content{Kind: ContentEnum, Primitive: I32(ordinal)},
		Adapted:   NewPropertyBag(),
		Extended:  NewPropertyBag(),
	}
	return o
}
