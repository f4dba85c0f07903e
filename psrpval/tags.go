package psrpval

// tagNames maps a PrimitiveTag to its CLI-XML local element name (§6).
var tagNames = map[PrimitiveTag]string{
	TagString:     "S",
	TagChar:       "C",
	TagBool:       "B",
	TagI8:         "I8",
	TagI16:        "I16",
	TagI32:        "I32",
	TagI64:        "I64",
	TagU8:         "U8",
	TagU16:        "U16",
	TagU32:        "U32",
	TagU64:        "U64",
	TagF32:        "Sg",
	TagF64:        "Db",
	TagDecimal:    "D",
	TagGUID:       "G",
	TagVersion:    "Version",
	TagDateTime:   "DT",
	TagDuration:   "TS",
	TagByteArray:  "BA",
	TagNil:        "Nil",
	TagScriptBlock: "SBK",
	TagURI:        "URI",
}

var tagsByName map[string]PrimitiveTag

func init() {
	tagsByName = make(map[string]PrimitiveTag, len(tagNames))
	for tag, name := range tagNames {
		tagsByName[name] = tag
	}
}

// IsPrimitiveTag reports whether name is a recognized primitive element tag.
func IsPrimitiveTag(name string) bool {
	_, ok := tagsByName[name]
	return ok
}
