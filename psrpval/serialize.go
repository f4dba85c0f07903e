package psrpval

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/oleiade/psrp/xmltree"
)

// serCtx tracks reference identity while walking a Value graph. Reusing the
// same *Obj or *TypeNames pointer anywhere in the graph turns the second and
// later occurrences into a <Ref>/<TNRef>.
type serCtx struct {
	objRef     map[*Obj]uint64
	nextObjRef uint64
	tnRef      map[*TypeNames]uint64
	nextTNRef  uint64
}

func newSerCtx() *serCtx {
	return &serCtx{objRef: make(map[*Obj]uint64), tnRef: make(map[*TypeNames]uint64)}
}

// Serialize converts v into an XML element tree ready for xmltree.Write.
func Serialize(v Value) (*xmltree.Element, error) {
	return newSerCtx().value(v, "")
}

func (ctx *serCtx) value(v Value, nameAttr string) (*xmltree.Element, error) {
	switch {
	case v.Prim != nil:
		return primitiveElement(*v.Prim, nameAttr), nil
	case v.Obj != nil:
		return ctx.obj(v.Obj, nameAttr)
	default:
		return nil, fmt.Errorf("psrpval: serialize: empty value")
	}
}

func (ctx *serCtx) obj(o *Obj, nameAttr string) (*xmltree.Element, error) {
	if id, seen := ctx.objRef[o]; seen {
		el := xmltree.New("", "Ref").WithAttr("RefId", strconv.FormatUint(id, 10))
		if nameAttr != "" {
			el.WithAttr("N", nameAttr)
		}
		return el, nil
	}
	id := ctx.nextObjRef
	ctx.nextObjRef++
	ctx.objRef[o] = id

	el := xmltree.New("", "Obj").WithAttr("RefId", strconv.FormatUint(id, 10))
	if nameAttr != "" {
		el.WithAttr("N", nameAttr)
	}

	if o.TypeNames != nil {
		tnEl, err := ctx.typeNames(o.TypeNames)
		if err != nil {
			return nil, err
		}
		el.WithChild(tnEl)
	}

	switch o.Content.Kind {
	case ContentExtendedPrimitive, ContentEnum:
		el.WithChild(primitiveElement(o.Content.Primitive, ""))
	case ContentContainer:
		cEl, err := ctx.container(o.Content.Container)
		if err != nil {
			return nil, err
		}
		el.WithChild(cEl)
	}

	if o.ToString != nil {
		el.WithChild(xmltree.New("", "ToString").WithText(*o.ToString))
	}

	if o.Adapted != nil && o.Adapted.Len() > 0 {
		propsEl := xmltree.New("", "Props")
		for _, k := range o.Adapted.Keys() {
			pv, _ := o.Adapted.Get(k)
			child, err := ctx.value(pv, k)
			if err != nil {
				return nil, err
			}
			propsEl.WithChild(child)
		}
		el.WithChild(propsEl)
	}

	if o.Extended != nil && o.Extended.Len() > 0 {
		msEl := xmltree.New("", "MS")
		for _, k := range o.Extended.Keys() {
			pv, _ := o.Extended.Get(k)
			child, err := ctx.value(pv, k)
			if err != nil {
				return nil, err
			}
			msEl.WithChild(child)
		}
		el.WithChild(msEl)
	}

	return el, nil
}

func (ctx *serCtx) typeNames(tn *TypeNames) (*xmltree.Element, error) {
	if id, seen := ctx.tnRef[tn]; seen {
		return xmltree.New("", "TNRef").WithAttr("RefId", strconv.FormatUint(id, 10)), nil
	}
	id := ctx.nextTNRef
	ctx.nextTNRef++
	ctx.tnRef[tn] = id

	el := xmltree.New("", "TN").WithAttr("RefId", strconv.FormatUint(id, 10))
	for _, n := range tn.Names {
		el.WithChild(xmltree.New("", "T").WithText(n))
	}
	return el, nil
}

func containerTag(kind ContainerKind) string {
	switch kind {
	case ContainerList:
		return "LST"
	case ContainerDictionary:
		return "DCT"
	case ContainerStack:
		return "STK"
	case ContainerQueue:
		return "QUE"
	default:
		return "LST"
	}
}

func (ctx *serCtx) container(c *Container) (*xmltree.Element, error) {
	el := xmltree.New("", containerTag(c.Kind))

	if c.Kind == ContainerDictionary {
		for _, entry := range c.Entries {
			enEl := xmltree.New("", "En")
			kEl, err := ctx.value(entry.Key, "Key")
			if err != nil {
				return nil, err
			}
			vEl, err := ctx.value(entry.Val, "Value")
			if err != nil {
				return nil, err
			}
			enEl.WithChild(kEl).WithChild(vEl)
			el.WithChild(enEl)
		}
		return el, nil
	}

	for _, item := range c.Items {
		child, err := ctx.value(item, "")
		if err != nil {
			return nil, err
		}
		el.WithChild(child)
	}
	return el, nil
}

func primitiveElement(p Primitive, nameAttr string) *xmltree.Element {
	el := xmltree.New("", tagNames[p.Tag])
	if nameAttr != "" {
		el.WithAttr("N", nameAttr)
	}

	switch p.Tag {
	case TagNil:
		// empty element, no text
	case TagString, TagChar, TagDecimal, TagGUID, TagVersion, TagDateTime, TagDuration, TagScriptBlock, TagURI:
		el.WithText(p.Str)
	case TagBool:
		el.WithText(strconv.FormatBool(p.Bool))
	case TagI8, TagI16, TagI32, TagI64:
		el.WithText(strconv.FormatInt(p.Int, 10))
	case TagU8, TagU16, TagU32, TagU64:
		el.WithText(strconv.FormatUint(p.Uint, 10))
	case TagF32:
		el.WithText(strconv.FormatFloat(p.Float, 'G', -1, 32))
	case TagF64:
		el.WithText(strconv.FormatFloat(p.Float, 'G', -1, 64))
	case TagByteArray:
		el.WithText(base64.StdEncoding.EncodeToString(p.Bytes))
	}
	return el
}
