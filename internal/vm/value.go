package vm

import (
	"fmt"
	"strings"
)

// Kind identifies the variant stored in a Value. The value model is a
// closed tagged union; Object is the single open extension point.
type Kind uint8

const (
	NoneKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	ListKind
	MapKind
	ErrKind
	ObjectKind
)

var kindNames = map[Kind]string{
	NoneKind:   "None",
	BoolKind:   "Bool",
	NumberKind: "Number",
	StringKind: "String",
	ListKind:   "List",
	MapKind:    "Map",
	ErrKind:    "Error",
	ObjectKind: "Object",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is the runtime value: a tag plus the payload for that tag. Values
// are the only thing stored in registers and variable bindings.
type Value struct {
	Kind Kind
	num  Number // Number payload; Bool stored as 0/1 in num.bits
	str  string
	list []Value
	m    *Map
	err  *VMError
	obj  Object
}

// Constructors

func None() Value { return Value{Kind: NoneKind} }

func BoolValue(b bool) Value {
	v := Value{Kind: BoolKind}
	if b {
		v.num.bits = 1
	}
	return v
}

func NumberValue(n Number) Value { return Value{Kind: NumberKind, num: n} }
func IntValue(i int64) Value     { return NumberValue(IntNumber(i)) }
func UIntValue(u uint64) Value   { return NumberValue(UIntNumber(u)) }
func FloatValue(f float64) Value { return NumberValue(FloatNumber(f)) }

func StringValue(s string) Value { return Value{Kind: StringKind, str: s} }

func ListValue(elems []Value) Value { return Value{Kind: ListKind, list: elems} }

func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{Kind: MapKind, m: m}
}

func ErrorValue(e *VMError) Value { return Value{Kind: ErrKind, err: e} }

func ObjectValue(o Object) Value { return Value{Kind: ObjectKind, obj: o} }

// Accessors

func (v Value) AsBool() bool      { return v.num.bits == 1 }
func (v Value) AsNumber() Number  { return v.num }
func (v Value) AsString() string  { return v.str }
func (v Value) AsList() []Value   { return v.list }
func (v Value) AsMap() *Map       { return v.m }
func (v Value) AsError() *VMError { return v.err }
func (v Value) AsObject() Object  { return v.obj }

func (v Value) IsNone() bool  { return v.Kind == NoneKind }
func (v Value) IsError() bool { return v.Kind == ErrKind }

// ToBool is the truthiness coercion used by IfElse, guards and the boolean
// operators. Errors and none are false, empty composites are false, and the
// strings "false" and "0" are false.
func (v Value) ToBool() bool {
	switch v.Kind {
	case NoneKind, ErrKind:
		return false
	case BoolKind:
		return v.AsBool()
	case NumberKind:
		return !v.num.IsZero()
	case StringKind:
		switch v.str {
		case "", "false", "0":
			return false
		}
		return true
	case ListKind:
		return len(v.list) > 0
	case MapKind:
		return v.m.Len() > 0
	default:
		return true
	}
}

// ToNumber attempts numeric coercion: none is 0, bools are 0/1, strings
// parse. Composite kinds do not coerce.
func (v Value) ToNumber() (Number, bool) {
	switch v.Kind {
	case NoneKind:
		return IntNumber(0), true
	case BoolKind:
		if v.AsBool() {
			return IntNumber(1), true
		}
		return IntNumber(0), true
	case NumberKind:
		return v.num, true
	case StringKind:
		n, err := ParseNumber(strings.TrimSpace(v.str))
		if err != nil {
			return Number{}, false
		}
		return n, true
	default:
		return Number{}, false
	}
}

// ToList coerces to a list: none is empty, strings split into characters,
// scalars wrap.
func (v Value) ToList() []Value {
	switch v.Kind {
	case NoneKind:
		return nil
	case StringKind:
		out := make([]Value, 0, len(v.str))
		for _, r := range v.str {
			out = append(out, StringValue(string(r)))
		}
		return out
	case ListKind:
		out := make([]Value, len(v.list))
		copy(out, v.list)
		return out
	case MapKind:
		return v.m.Values()
	default:
		return []Value{v}
	}
}

// ToMap coerces to a map. Lists map each element to itself and objects
// expose their fields.
func (v Value) ToMap() *Map {
	switch v.Kind {
	case NoneKind:
		return NewMap()
	case ListKind:
		m := NewMapCapacity(len(v.list))
		for _, e := range v.list {
			m.Set(e, e)
		}
		return m
	case MapKind:
		return v.m.Clone()
	case ObjectKind:
		if f, ok := v.obj.(FieldObject); ok {
			return f.Fields().Clone()
		}
		m := NewMap()
		m.Set(StringValue(v.obj.TypeName()), v)
		return m
	default:
		m := NewMap()
		m.Set(v, v)
		return m
	}
}

// Clone returns an independent deep copy.
func (v Value) Clone() Value {
	switch v.Kind {
	case ListKind:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.Clone()
		}
		return ListValue(out)
	case MapKind:
		return MapValue(v.m.Clone())
	case ObjectKind:
		return ObjectValue(v.obj.CloneObject())
	default:
		return v
	}
}

// Equal is the language's loose equality: none == false == 0 == "", numbers
// compare across representations and against their string rendering. Errors
// only equal errors of the same kind and message. CallEq, CallNeq and the
// `==` operator use this; map keys use structural equality instead.
func (v Value) Equal(o Value) bool {
	if v.Kind == ErrKind || o.Kind == ErrKind {
		if v.Kind != o.Kind {
			return false
		}
		return v.err.Kind == o.err.Kind && v.err.Message == o.err.Message
	}

	switch {
	case v.Kind == o.Kind:
		switch v.Kind {
		case NoneKind:
			return true
		case BoolKind:
			return v.AsBool() == o.AsBool()
		case NumberKind:
			return v.num.Equal(o.num)
		case StringKind:
			return v.str == o.str
		case ListKind:
			if len(v.list) != len(o.list) {
				return false
			}
			for i := range v.list {
				if !v.list[i].Equal(o.list[i]) {
					return false
				}
			}
			return true
		case MapKind:
			return v.m.Equal(o.m)
		case ObjectKind:
			return v.obj.EqualObject(o.obj)
		}
		return false
	case v.Kind == NoneKind:
		return o.isEmptyLike()
	case o.Kind == NoneKind:
		return v.isEmptyLike()
	case v.Kind == BoolKind:
		return boolLooseEqual(v.AsBool(), o)
	case o.Kind == BoolKind:
		return boolLooseEqual(o.AsBool(), v)
	case v.Kind == NumberKind && o.Kind == StringKind:
		return numberStringEqual(v.num, o.str)
	case v.Kind == StringKind && o.Kind == NumberKind:
		return numberStringEqual(o.num, v.str)
	case v.Kind == ListKind && o.Kind == MapKind:
		return len(v.list) == 0 && o.m.Len() == 0
	case v.Kind == MapKind && o.Kind == ListKind:
		return v.m.Len() == 0 && len(o.list) == 0
	default:
		return false
	}
}

func (v Value) isEmptyLike() bool {
	switch v.Kind {
	case NoneKind:
		return true
	case BoolKind:
		return !v.AsBool()
	case NumberKind:
		return v.num.IsZero()
	case StringKind:
		return v.str == "" || v.str == "none"
	case ListKind:
		return len(v.list) == 0
	case MapKind:
		return v.m.Len() == 0
	default:
		return false
	}
}

func boolLooseEqual(b bool, o Value) bool {
	switch o.Kind {
	case NoneKind:
		return !b
	case NumberKind:
		if b {
			return o.num.IsOne()
		}
		return o.num.IsZero()
	case StringKind:
		if b {
			return o.str == "true" || o.str == "1"
		}
		return o.str == "" || o.str == "false" || o.str == "0"
	case ListKind:
		return !b && len(o.list) == 0
	case MapKind:
		return !b && o.m.Len() == 0
	default:
		return false
	}
}

func numberStringEqual(n Number, s string) bool {
	if s == "" {
		return n.IsZero()
	}
	parsed, err := ParseNumber(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return n.Equal(parsed)
}

func (v Value) String() string {
	switch v.Kind {
	case NoneKind:
		return "none"
	case BoolKind:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case NumberKind:
		return v.num.String()
	case StringKind:
		return v.str
	case ListKind:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteByte(']')
		return sb.String()
	case MapKind:
		return v.m.String()
	case ErrKind:
		return v.err.Error()
	case ObjectKind:
		return v.obj.String()
	default:
		return "<invalid>"
	}
}

// hashKey renders the canonical key used for structural map lookup.
func (v Value) hashKey() string {
	switch v.Kind {
	case NoneKind:
		return "_"
	case BoolKind:
		if v.AsBool() {
			return "b:1"
		}
		return "b:0"
	case NumberKind:
		return v.num.hashKey()
	case StringKind:
		return "s:" + v.str
	case ListKind:
		var sb strings.Builder
		sb.WriteString("l:[")
		for i, e := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(e.hashKey())
		}
		sb.WriteByte(']')
		return sb.String()
	case MapKind:
		return v.m.hashKey()
	case ErrKind:
		return "e:" + v.err.Kind.String() + ":" + v.err.Message
	case ObjectKind:
		if d, ok := v.obj.(*DynamicObject); ok {
			return d.hashKey()
		}
		return "o:" + v.obj.TypeName() + ":" + v.obj.String()
	default:
		return "?"
	}
}

// TypeName reports the runtime type, using the declared name for objects.
func (v Value) TypeName() string {
	if v.Kind == ObjectKind {
		return v.obj.TypeName()
	}
	return v.Kind.String()
}
