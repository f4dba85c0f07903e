package psrpval

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/oleiade/psrp/xmltree"
)

// DeserializationContext tracks the RefId -> TypeNames and RefId -> Value
// tables for a single top-level document. A fresh context must be used per
// document; reusing one across documents would let references leak between
// unrelated messages.
type DeserializationContext struct {
	typeNames map[uint64]*TypeNames
	objects   map[uint64]*Obj
}

// NewDeserializationContext returns an empty context.
func NewDeserializationContext() *DeserializationContext {
	return &DeserializationContext{
		typeNames: make(map[uint64]*TypeNames),
		objects:   make(map[uint64]*Obj),
	}
}

// Deserialize parses el as a top-level CLI-XML Value using a fresh context.
func Deserialize(el *xmltree.Element) (Value, error) {
	return NewDeserializationContext().Value(el)
}

// Value decodes el as a Value within ctx.
func (ctx *DeserializationContext) Value(el *xmltree.Element) (Value, error) {
	if el.Name == "Ref" {
		idStr, ok := el.Attr("RefId")
		if !ok {
			return Value{}, fmt.Errorf("psrpval: Ref missing RefId")
		}
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("psrpval: Ref RefId: %w", err)
		}
		o, ok := ctx.objects[id]
		if !ok {
			return Value{}, &ForwardRefError{RefID: id}
		}
		return Value{Obj: o}, nil
	}

	if el.Name == "Obj" {
		o, err := ctx.decodeObj(el)
		if err != nil {
			return Value{}, err
		}
		return Value{Obj: o}, nil
	}

	if IsPrimitiveTag(el.Name) {
		p, err := decodePrimitive(el)
		if err != nil {
			return Value{}, err
		}
		return Value{Prim: &p}, nil
	}

	return Value{}, &UnknownTagError{Tag: el.Name}
}

func decodePrimitive(el *xmltree.Element) (Primitive, error) {
	tag := tagsByName[el.Name]
	switch tag {
	case TagNil:
		return Nil(), nil
	case TagString:
		return String(el.Text), nil
	case TagChar:
		return Char(firstRune(el.Text)), nil
	case TagBool:
		b, err := strconv.ParseBool(el.Text)
		if err != nil {
			return Primitive{}, fmt.Errorf("psrpval: bool: %w", err)
		}
		return Bool(b), nil
	case TagI8, TagI16, TagI32, TagI64:
		v, err := strconv.ParseInt(el.Text, 10, 64)
		if err != nil {
			return Primitive{}, fmt.Errorf("psrpval: %s: %w", el.Name, err)
		}
		return Primitive{Tag: tag, Int: v}, nil
	case TagU8, TagU16, TagU32, TagU64:
		v, err := strconv.ParseUint(el.Text, 10, 64)
		if err != nil {
			return Primitive{}, fmt.Errorf("psrpval: %s: %w", el.Name, err)
		}
		return Primitive{Tag: tag, Uint: v}, nil
	case TagF32:
		v, err := strconv.ParseFloat(el.Text, 32)
		if err != nil {
			return Primitive{}, fmt.Errorf("psrpval: Sg: %w", err)
		}
		return Primitive{Tag: TagF32, Float: v}, nil
	case TagF64:
		v, err := strconv.ParseFloat(el.Text, 64)
		if err != nil {
			return Primitive{}, fmt.Errorf("psrpval: Db: %w", err)
		}
		return Primitive{Tag: TagF64, Float: v}, nil
	case TagDecimal:
		return Decimal(el.Text), nil
	case TagGUID:
		return GUID(el.Text), nil
	case TagVersion:
		return Version(el.Text), nil
	case TagDateTime:
		return DateTime(el.Text), nil
	case TagDuration:
		return Duration(el.Text), nil
	case TagByteArray:
		b, err := base64.StdEncoding.DecodeString(el.Text)
		if err != nil {
			return Primitive{}, fmt.Errorf("psrpval: BA: %w", err)
		}
		return ByteArray(b), nil
	case TagScriptBlock:
		return ScriptBlock(el.Text), nil
	case TagURI:
		return URI(el.Text), nil
	default:
		return Primitive{}, &UnknownTagError{Tag: el.Name}
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func (ctx *DeserializationContext) decodeObj(el *xmltree.Element) (*Obj, error) {
	o := &Obj{}

	var refID uint64
	var haveRefID bool
	if idStr, ok := el.Attr("RefId"); ok {
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("psrpval: Obj RefId: %w", err)
		}
		refID = id
		haveRefID = true
		ctx.objects[id] = o
	}

	var sawTN, sawToString, sawProps, sawMS, sawContainer bool

	for _, child := range el.Children {
		switch child.Name {
		case "TN":
			if sawTN {
				return nil, &DuplicatePropertyTagError{Tag: "TN"}
			}
			sawTN = true
			tn, id, err := decodeTypeNames(child)
			if err != nil {
				return nil, err
			}
			ctx.typeNames[id] = tn
			o.TypeNames = tn
		case "TNRef":
			if sawTN {
				return nil, &DuplicatePropertyTagError{Tag: "TNRef"}
			}
			sawTN = true
			idStr, ok := child.Attr("RefId")
			if !ok {
				return nil, fmt.Errorf("psrpval: TNRef missing RefId")
			}
			id, err := strconv.ParseUint(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("psrpval: TNRef RefId: %w", err)
			}
			tn, ok := ctx.typeNames[id]
			if !ok {
				return nil, &ForwardRefError{RefID: id}
			}
			o.TypeNames = tn
		case "ToString":
			if sawToString {
				return nil, &DuplicatePropertyTagError{Tag: "ToString"}
			}
			sawToString = true
			text := child.Text
			o.ToString = &text
		case "Props":
			if sawProps {
				return nil, &DuplicatePropertyTagError{Tag: "Props"}
			}
			sawProps = true
			bag, err := ctx.decodeBag(child)
			if err != nil {
				return nil, err
			}
			o.Adapted = bag
		case "MS":
			if sawMS {
				return nil, &DuplicatePropertyTagError{Tag: "MS"}
			}
			sawMS = true
			bag, err := ctx.decodeBag(child)
			if err != nil {
				return nil, err
			}
			o.Extended = bag
		case "LST", "STK", "QUE", "DCT":
			if sawContainer {
				return nil, &DuplicatePropertyTagError{Tag: child.Name}
			}
			sawContainer = true
			c, err := ctx.decodeContainer(child)
			if err != nil {
				return nil, err
			}
			o.Content = Content{Kind: ContentContainer, Container: c}
		default:
			if IsPrimitiveTag(child.Name) {
				// An enum-shaped or extended-primitive object: backing
				// primitive alongside TN/ToString, no Props/MS/container.
				p, err := decodePrimitive(child)
				if err != nil {
					return nil, err
				}
				kind := ContentExtendedPrimitive
				if o.ToString != nil {
					kind = ContentEnum
				}
				o.Content = Content{Kind: kind, Primitive: p}
				continue
			}
			return nil, &UnknownTagError{Tag: child.Name}
		}
	}

	if o.Adapted == nil {
		o.Adapted = NewPropertyBag()
	}
	if o.Extended == nil {
		o.Extended = NewPropertyBag()
	}

	_ = haveRefID
	_ = refID
	return o, nil
}

func decodeTypeNames(el *xmltree.Element) (*TypeNames, uint64, error) {
	idStr, ok := el.Attr("RefId")
	if !ok {
		return nil, 0, fmt.Errorf("psrpval: TN missing RefId")
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("psrpval: TN RefId: %w", err)
	}
	tn := &TypeNames{}
	for _, c := range el.Children {
		if c.Name != "T" {
			return nil, 0, &UnknownTagError{Tag: c.Name}
		}
		tn.Names = append(tn.Names, c.Text)
	}
	return tn, id, nil
}

func (ctx *DeserializationContext) decodeBag(el *xmltree.Element) (*PropertyBag, error) {
	bag := NewPropertyBag()
	for _, child := range el.Children {
		name, ok := child.Attr("N")
		if !ok {
			return nil, fmt.Errorf("psrpval: property element %q missing N", child.Name)
		}
		v, err := ctx.Value(child)
		if err != nil {
			return nil, err
		}
		bag.Set(name, v)
	}
	return bag, nil
}

func (ctx *DeserializationContext) decodeContainer(el *xmltree.Element) (*Container, error) {
	var kind ContainerKind
	switch el.Name {
	case "LST":
		kind = ContainerList
	case "STK":
		kind = ContainerStack
	case "QUE":
		kind = ContainerQueue
	case "DCT":
		kind = ContainerDictionary
	}
	c := &Container{Kind: kind}

	if kind == ContainerDictionary {
		for _, en := range el.Children {
			if en.Name != "En" {
				return nil, &UnknownTagError{Tag: en.Name}
			}
			if len(en.Children) != 2 {
				return nil, fmt.Errorf("psrpval: En must have exactly 2 children, got %d", len(en.Children))
			}
			key, err := ctx.Value(en.Children[0])
			if err != nil {
				return nil, err
			}
			val, err := ctx.Value(en.Children[1])
			if err != nil {
				return nil, err
			}
			c.Entries = append(c.Entries, DictEntry{Key: key, Val: val})
		}
		return c, nil
	}

	for _, item := range el.Children {
		v, err := ctx.Value(item)
		if err != nil {
			return nil, err
		}
		c.Items = append(c.Items, v)
	}
	return c, nil
}
