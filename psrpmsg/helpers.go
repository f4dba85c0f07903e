package psrpmsg

import (
	"github.com/google/uuid"
	"github.com/oleiade/psrp/psrpval"
)

// newMsgObj returns an Obj shaped like a PSRP message payload: a type name
// list and an empty extended-property bag (PSRP carries its message
// properties under <MS>, never <Props>).
func newMsgObj(typeNames ...string) *psrpval.Obj {
	o := psrpval.NewObj()
	if len(typeNames) > 0 {
		o.TypeNames = &psrpval.TypeNames{Names: typeNames}
	}
	return o
}

func setStr(bag *psrpval.PropertyBag, name, v string) {
	bag.Set(name, psrpval.FromPrimitive(psrpval.String(v)))
}

func setOptStr(bag *psrpval.PropertyBag, name string, v *string) {
	if v == nil {
		bag.Set(name, psrpval.FromPrimitive(psrpval.Nil()))
		return
	}
	setStr(bag, name, *v)
}

func setI32(bag *psrpval.PropertyBag, name string, v int32) {
	bag.Set(name, psrpval.FromPrimitive(psrpval.I32(v)))
}

func setOptI32(bag *psrpval.PropertyBag, name string, v *int32) {
	if v == nil {
		bag.Set(name, psrpval.FromPrimitive(psrpval.Nil()))
		return
	}
	setI32(bag, name, *v)
}

func setI64(bag *psrpval.PropertyBag, name string, v int64) {
	bag.Set(name, psrpval.FromPrimitive(psrpval.I64(v)))
}

func setBool(bag *psrpval.PropertyBag, name string, v bool) {
	bag.Set(name, psrpval.FromPrimitive(psrpval.Bool(v)))
}

func setGUID(bag *psrpval.PropertyBag, name string, v uuid.UUID) {
	bag.Set(name, psrpval.FromPrimitive(psrpval.GUID(v.String())))
}

func setBytes(bag *psrpval.PropertyBag, name string, v []byte) {
	bag.Set(name, psrpval.FromPrimitive(psrpval.ByteArray(v)))
}

func setValue(bag *psrpval.PropertyBag, name string, v psrpval.Value) {
	bag.Set(name, v)
}

func getStr(bag *psrpval.PropertyBag, msg, name string) (string, error) {
	v, ok := bag.Get(name)
	if !ok {
		return "", &MissingPropertyError{Message: msg, Property: name}
	}
	if v.Prim == nil {
		return "", &MissingPropertyError{Message: msg, Property: name}
	}
	return v.Prim.Str, nil
}

func getOptStr(bag *psrpval.PropertyBag, name string) *string {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil || v.Prim.Tag == psrpval.TagNil {
		return nil
	}
	s := v.Prim.Str
	return &s
}

func getI32(bag *psrpval.PropertyBag, msg, name string) (int32, error) {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil {
		return 0, &MissingPropertyError{Message: msg, Property: name}
	}
	return int32(v.Prim.Int), nil
}

func getOptI32(bag *psrpval.PropertyBag, name string) *int32 {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil || v.Prim.Tag == psrpval.TagNil {
		return nil
	}
	i := int32(v.Prim.Int)
	return &i
}

func getI64(bag *psrpval.PropertyBag, msg, name string) (int64, error) {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil {
		return 0, &MissingPropertyError{Message: msg, Property: name}
	}
	return v.Prim.Int, nil
}

func getBool(bag *psrpval.PropertyBag, msg, name string) (bool, error) {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil {
		return false, &MissingPropertyError{Message: msg, Property: name}
	}
	return v.Prim.Bool, nil
}

func getGUID(bag *psrpval.PropertyBag, msg, name string) (uuid.UUID, error) {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil {
		return uuid.UUID{}, &MissingPropertyError{Message: msg, Property: name}
	}
	id, err := uuid.Parse(v.Prim.Str)
	if err != nil {
		return uuid.UUID{}, &MissingPropertyError{Message: msg, Property: name}
	}
	return id, nil
}

func getBytes(bag *psrpval.PropertyBag, msg, name string) ([]byte, error) {
	v, ok := bag.Get(name)
	if !ok || v.Prim == nil {
		return nil, &MissingPropertyError{Message: msg, Property: name}
	}
	return v.Prim.Bytes, nil
}

// asObj requires v to hold a complex object, for messages whose payload is
// always an Obj rather than a bare primitive.
func asObj(msg string, v psrpval.Value) (*psrpval.Obj, error) {
	if v.Obj == nil {
		return nil, &MissingPropertyError{Message: msg, Property: "<root Obj>"}
	}
	return v.Obj, nil
}
