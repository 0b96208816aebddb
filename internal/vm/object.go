package vm

import (
	"fmt"
	"strings"
)

// Object is the open extension point of the value model: a named polymorphic
// value with a small vtable-style contract. Implementations come from
// `object` declarations in source or from native modules.
type Object interface {
	// TypeName is the declared type, used for extension-method resolution
	// and casts.
	TypeName() string
	// CloneObject returns an independent copy; the VM clones on Copy
	// instructions and when a value crosses a register boundary mutably.
	CloneObject() Object
	// EqualObject reports structural equality with another object.
	EqualObject(Object) bool
	// String renders the object for Puts and string coercion.
	String() string
}

// MethodObject is implemented by objects that dispatch methods themselves,
// ahead of registry lookup.
type MethodObject interface {
	Object
	CallMethod(name string, args []Value) (Value, bool, error)
}

// FieldObject exposes named fields for InstanceGet and map promotion.
type FieldObject interface {
	Object
	GetField(name string) (Value, bool)
	SetField(name string, value Value) error
	Fields() *Map
}

// DynamicObject backs `object` declarations: a type name plus ordered
// fields. Method bodies live in scopes and are dispatched through the
// module registry, not here.
type DynamicObject struct {
	Name   string
	Attrs  *Map
	frozen bool
}

func NewDynamicObject(name string) *DynamicObject {
	return &DynamicObject{Name: name, Attrs: NewMap()}
}

// ObjectFromMap promotes a map to an object, the Add(Map, Object) rule.
func ObjectFromMap(name string, m *Map) *DynamicObject {
	return &DynamicObject{Name: name, Attrs: m.Clone()}
}

func (o *DynamicObject) TypeName() string { return o.Name }

func (o *DynamicObject) CloneObject() Object {
	return &DynamicObject{Name: o.Name, Attrs: o.Attrs.Clone()}
}

func (o *DynamicObject) EqualObject(other Object) bool {
	d, ok := other.(*DynamicObject)
	if !ok {
		return false
	}
	return o.Name == d.Name && o.Attrs.Equal(d.Attrs)
}

func (o *DynamicObject) String() string {
	var sb strings.Builder
	sb.WriteString(o.Name)
	sb.WriteString(" ")
	sb.WriteString(o.Attrs.String())
	return sb.String()
}

func (o *DynamicObject) GetField(name string) (Value, bool) {
	return o.Attrs.Get(StringValue(name))
}

func (o *DynamicObject) SetField(name string, value Value) error {
	if o.frozen {
		return fmt.Errorf("object %s is frozen", o.Name)
	}
	o.Attrs.Set(StringValue(name), value)
	return nil
}

func (o *DynamicObject) Fields() *Map { return o.Attrs }

func (o *DynamicObject) hashKey() string {
	return "o:" + o.Name + ":" + o.Attrs.hashKey()
}
