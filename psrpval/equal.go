package psrpval

// Equal reports structural equality of two Values. Primitives compare by
// content; objects compare by structure (type names, property bags, content)
// rather than by RefId, since RefId is an artifact of a particular
// serialization pass, not part of the value's identity.
func Equal(a, b Value) bool {
	switch {
	case a.Prim != nil && b.Prim != nil:
		return primitiveEqual(*a.Prim, *b.Prim)
	case a.Obj != nil && b.Obj != nil:
		return objEqual(a.Obj, b.Obj)
	default:
		return false
	}
}

func primitiveEqual(a, b Primitive) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNil:
		return true
	case TagBool:
		return a.Bool == b.Bool
	case TagI8, TagI16, TagI32, TagI64:
		return a.Int == b.Int
	case TagU8, TagU16, TagU32, TagU64:
		return a.Uint == b.Uint
	case TagF32, TagF64:
		return a.Float == b.Float
	case TagByteArray:
		if len(a.Bytes) != len(b.Bytes) {
			return false
		}
		for i := range a.Bytes {
			if a.Bytes[i] != b.Bytes[i] {
				return false
			}
		}
		return true
	default:
		return a.Str == b.Str
	}
}

func objEqual(a, b *Obj) bool {
	if a == b {
		return true
	}
	if (a.ToString == nil) != (b.ToString == nil) {
		return false
	}
	if a.ToString != nil && *a.ToString != *b.ToString {
		return false
	}
	if !typeNamesEqual(a.TypeNames, b.TypeNames) {
		return false
	}
	if !contentEqual(a.Content, b.Content) {
		return false
	}
	if !bagEqual(a.Adapted, b.Adapted) {
		return false
	}
	return bagEqual(a.Extended, b.Extended)
}

func typeNamesEqual(a, b *TypeNames) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Names) != len(b.Names) {
		return false
	}
	for i := range a.Names {
		if a.Names[i] != b.Names[i] {
			return false
		}
	}
	return true
}

func contentEqual(a, b Content) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ContentStandard:
		return true
	case ContentExtendedPrimitive, ContentEnum:
		return primitiveEqual(a.Primitive, b.Primitive)
	case ContentContainer:
		return containerEqual(a.Container, b.Container)
	default:
		return false
	}
}

func containerEqual(a, b *Container) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	if len(a.Items) != len(b.Items) || len(a.Entries) != len(b.Entries) {
		return false
	}
	for i := range a.Items {
		if !Equal(a.Items[i], b.Items[i]) {
			return false
		}
	}
	for i := range a.Entries {
		if !Equal(a.Entries[i].Key, b.Entries[i].Key) || !Equal(a.Entries[i].Val, b.Entries[i].Val) {
			return false
		}
	}
	return true
}

func bagEqual(a, b *PropertyBag) bool {
	if a == nil || b == nil {
		return a == b || (a.Len() == 0 && b.Len() == 0)
	}
	if a.Len() != b.Len() {
		return false
	}
	ak, bk := a.Keys(), b.Keys()
	for i := range ak {
		if ak[i] != bk[i] {
			return false
		}
		av, _ := a.Get(ak[i])
		bv, _ := b.Get(bk[i])
		if !Equal(av, bv) {
			return false
		}
	}
	return true
}
