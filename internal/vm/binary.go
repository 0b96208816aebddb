package vm

import (
	"fmt"
	"strings"
)

// BinaryOp enumerates the binary operators the Binary instruction applies.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpBitAnd
	OpBitOr
	OpBitXor
	OpEq
	OpNeq
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpRem:    "%",
	OpShl:    "<<",
	OpShr:    ">>",
	OpAnd:    "&&",
	OpOr:     "||",
	OpXor:    "^^",
	OpBitAnd: "&",
	OpBitOr:  "|",
	OpBitXor: "^",
	OpEq:     "==",
	OpNeq:    "!=",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpNames[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", uint8(op))
}

// ApplyBinary applies op to a pair of values following the coercion table.
// Each operator has its own 8x8 table; forbidden cells return a TypeError.
// The tables are deliberately asymmetric in places (string repeat, shifts)
// and must stay that way.
func ApplyBinary(op BinaryOp, a, b Value) (Value, *VMError) {
	switch op {
	case OpEq:
		return BoolValue(a.Equal(b)), nil
	case OpNeq:
		return BoolValue(!a.Equal(b)), nil
	}

	// Error is terminal: it never coerces through an operator.
	if a.Kind == ErrKind || b.Kind == ErrKind {
		return None(), forbidden(op, a, b)
	}

	switch op {
	case OpAdd:
		return binaryAdd(a, b)
	case OpSub:
		return binarySub(a, b)
	case OpMul:
		return binaryMul(a, b)
	case OpDiv:
		return binaryDiv(a, b)
	case OpRem:
		return binaryRem(a, b)
	case OpShl:
		return binaryShl(a, b)
	case OpShr:
		return binaryShr(a, b)
	case OpAnd:
		return BoolValue(a.ToBool() && b.ToBool()), nil
	case OpOr:
		return BoolValue(a.ToBool() || b.ToBool()), nil
	case OpXor:
		return BoolValue(a.ToBool() != b.ToBool()), nil
	case OpBitAnd:
		return binaryBitAnd(a, b)
	case OpBitOr:
		return binaryBitOr(a, b)
	case OpBitXor:
		return binaryBitXor(a, b)
	default:
		return None(), typeErrorf("unknown binary operator %s", op)
	}
}

func forbidden(op BinaryOp, a, b Value) *VMError {
	return typeErrorf("cannot perform %s %s %s", a.TypeName(), op, b.TypeName())
}

func binaryAdd(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind:
		return b, nil
	case b.Kind == NoneKind:
		return a, nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.AsBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		return NumberValue(a.num.Add(b.num)), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		return addNumberString(a.num, b.str), nil
	case a.Kind == StringKind && b.Kind == NumberKind:
		return addNumberString(b.num, a.str), nil
	case a.Kind == StringKind && b.Kind == StringKind:
		return StringValue(a.str + b.str), nil
	case a.Kind == ListKind && b.Kind == ListKind:
		out := make([]Value, 0, len(a.list)+len(b.list))
		out = append(out, a.list...)
		out = append(out, b.list...)
		return ListValue(out), nil
	case a.Kind == ListKind:
		out := make([]Value, 0, len(a.list)+1)
		out = append(out, a.list...)
		return ListValue(append(out, b)), nil
	case b.Kind == ListKind:
		out := make([]Value, 0, len(b.list)+1)
		out = append(out, b.list...)
		return ListValue(append(out, a)), nil
	case a.Kind == MapKind && b.Kind == MapKind:
		out := a.m.Clone()
		out.Merge(b.m)
		return MapValue(out), nil
	case a.Kind == MapKind && b.Kind == ObjectKind:
		return addMapObject(a.m, b.obj)
	case b.Kind == MapKind && a.Kind == ObjectKind:
		return addMapObject(b.m, a.obj)
	case a.Kind == MapKind:
		out := a.m.Clone()
		out.Set(b, b)
		return MapValue(out), nil
	case b.Kind == MapKind:
		out := b.m.Clone()
		out.Set(a, a)
		return MapValue(out), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() || a.ToBool()), nil
	default:
		return None(), forbidden(OpAdd, a, b)
	}
}

// addNumberString adds when the string parses, otherwise concatenates with
// the number rendered first. Both operand orders share this rule.
func addNumberString(n Number, s string) Value {
	if parsed, err := ParseNumber(strings.TrimSpace(s)); err == nil {
		return NumberValue(n.Add(parsed))
	}
	return StringValue(n.String() + s)
}

// addMapObject merges a map into an object's fields, keeping the object's
// type name.
func addMapObject(m *Map, o Object) (Value, *VMError) {
	f, ok := o.(FieldObject)
	if !ok {
		return None(), typeErrorf("cannot perform Map + %s", o.TypeName())
	}
	merged := f.Fields().Clone()
	merged.Merge(m)
	return ObjectValue(ObjectFromMap(o.TypeName(), merged)), nil
}

func binarySub(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind:
		return ApplyUnary(OpNeg, b)
	case b.Kind == NoneKind:
		return a, nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() || a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		return NumberValue(a.num.Sub(b.num)), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		parsed, err := ParseNumber(strings.TrimSpace(b.str))
		if err != nil {
			return None(), forbidden(OpSub, a, b)
		}
		return NumberValue(a.num.Sub(parsed)), nil
	case a.Kind == StringKind && b.Kind == StringKind:
		return StringValue(strings.ReplaceAll(a.str, b.str, "")), nil
	case a.Kind == ListKind && b.Kind == ListKind:
		out := make([]Value, 0, len(a.list))
		for _, e := range a.list {
			if !containsValue(b.list, e) {
				out = append(out, e)
			}
		}
		return ListValue(out), nil
	case a.Kind == ListKind:
		out := make([]Value, 0, len(a.list))
		for _, e := range a.list {
			if !e.Equal(b) {
				out = append(out, e)
			}
		}
		return ListValue(out), nil
	case a.Kind == MapKind && b.Kind == MapKind:
		out := NewMapCapacity(a.m.Len())
		a.m.Each(func(k, v Value) bool {
			if !b.m.Has(k) {
				out.Set(k, v)
			}
			return true
		})
		return MapValue(out), nil
	case a.Kind == MapKind:
		out := NewMapCapacity(a.m.Len())
		a.m.Each(func(k, v Value) bool {
			if !v.Equal(b) {
				out.Set(k, v)
			}
			return true
		})
		return MapValue(out), nil
	default:
		return None(), forbidden(OpSub, a, b)
	}
}

func binaryMul(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind || b.Kind == NoneKind:
		return None(), nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() || a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		return NumberValue(a.num.Mul(b.num)), nil
	case a.Kind == StringKind && b.Kind == NumberKind:
		return mulStringNumber(a.str, b.num)
	default:
		// Number * String stays forbidden: repetition only reads
		// left-to-right.
		return None(), forbidden(OpMul, a, b)
	}
}

// mulStringNumber repeats a string. A fractional multiplier appends the
// matching prefix, so "abc" * 2.5 is "abcabca".
func mulStringNumber(s string, n Number) (Value, *VMError) {
	if n.IsNegative() {
		return None(), runtimeErrorf("cannot multiply %q by negative %s", s, n)
	}
	whole := int(n.ToInt())
	out := strings.Repeat(s, whole)
	if n.Kind == FloatKind {
		frac := n.ToFloat() - float64(whole)
		out += s[:int(frac*float64(len(s)))]
	}
	return StringValue(out), nil
}

func binaryDiv(a, b Value) (Value, *VMError) {
	// Division by none fails for every left kind.
	if b.Kind == NoneKind {
		return None(), typeErrorf("cannot divide %s by none", a)
	}
	switch {
	case a.Kind == NoneKind:
		return None(), nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() || a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		if b.num.IsZero() {
			return None(), typeErrorf("cannot divide %s by 0", a.num)
		}
		return NumberValue(a.num.Div(b.num)), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		parsed, err := ParseNumber(strings.TrimSpace(b.str))
		if err != nil {
			return None(), forbidden(OpDiv, a, b)
		}
		if parsed.IsZero() {
			return None(), typeErrorf("cannot divide %s by 0", a.num)
		}
		return NumberValue(a.num.Div(parsed)), nil
	case a.Kind == StringKind && b.Kind == StringKind:
		return splitString(a.str, b.str), nil
	case a.Kind == StringKind:
		return splitString(a.str, b.String()), nil
	default:
		return None(), forbidden(OpDiv, a, b)
	}
}

func splitString(s, sep string) Value {
	parts := strings.Split(s, sep)
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = StringValue(p)
	}
	return ListValue(out)
}

func binaryRem(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind:
		return None(), nil
	case b.Kind == NoneKind:
		return a, nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() || a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		if b.num.IsZero() {
			return None(), typeErrorf("cannot divide %s by 0", a.num)
		}
		return NumberValue(a.num.Rem(b.num)), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		parsed, err := ParseNumber(strings.TrimSpace(b.str))
		if err != nil {
			return None(), forbidden(OpRem, a, b)
		}
		if parsed.IsZero() {
			return None(), typeErrorf("cannot divide %s by 0", a.num)
		}
		return NumberValue(a.num.Rem(parsed)), nil
	default:
		// Remaining pairs fall back to subtraction.
		return binarySub(a, b)
	}
}

func binaryShl(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind:
		return None(), nil
	case b.Kind == NoneKind:
		return a, nil
	case b.Kind == BoolKind:
		if b.AsBool() {
			return binaryShl(a, IntValue(1))
		}
		return a, nil
	case a.Kind == BoolKind && b.Kind == NumberKind:
		if a.AsBool() {
			return NumberValue(IntNumber(1).Shr(b.num)), nil
		}
		return IntValue(0), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		return NumberValue(a.num.Shl(b.num)), nil
	case a.Kind == StringKind && b.Kind == NumberKind:
		return shiftStringLeft(a.str, b.num), nil
	case a.Kind == StringKind && b.Kind == StringKind:
		return StringValue(a.str + b.str), nil
	default:
		return None(), forbidden(OpShl, a, b)
	}
}

func binaryShr(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind:
		return None(), nil
	case b.Kind == NoneKind:
		return a, nil
	case b.Kind == BoolKind:
		if b.AsBool() {
			return binaryShr(a, IntValue(1))
		}
		return a, nil
	case a.Kind == BoolKind && b.Kind == NumberKind:
		if a.AsBool() {
			return NumberValue(IntNumber(1).Shr(b.num)), nil
		}
		return IntValue(0), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		return NumberValue(a.num.Shr(b.num)), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		parsed, err := ParseNumber(strings.TrimSpace(b.str))
		if err != nil {
			return None(), forbidden(OpShr, a, b)
		}
		return NumberValue(a.num.Shr(parsed)), nil
	case a.Kind == StringKind && b.Kind == NumberKind:
		return shiftStringRight(a.str, b.num), nil
	case a.Kind == StringKind && b.Kind == StringKind:
		// Right shift prepends.
		return StringValue(b.str + a.str), nil
	default:
		return None(), forbidden(OpShr, a, b)
	}
}

// shiftStringLeft drops a prefix; a negative count keeps one instead.
func shiftStringLeft(s string, n Number) Value {
	if n.IsNegative() {
		keep := int(-n.ToInt()) + 1
		if keep > len(s) {
			keep = len(s)
		}
		return StringValue(s[:keep])
	}
	drop := int(n.ToInt())
	if drop > len(s) {
		drop = len(s)
	}
	return StringValue(s[drop:])
}

// shiftStringRight keeps a prefix; a negative count drops one instead.
func shiftStringRight(s string, n Number) Value {
	if n.IsNegative() {
		drop := int(-n.ToInt())
		if drop > len(s) {
			drop = len(s)
		}
		return StringValue(s[drop:])
	}
	keep := int(n.ToInt()) + 1
	if keep > len(s) {
		keep = len(s)
	}
	return StringValue(s[:keep])
}

func binaryBitAnd(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind || b.Kind == NoneKind:
		return None(), nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() && b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() && b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() && a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		n, e := a.num.BitAnd(b.num)
		if e != nil {
			return None(), e
		}
		return NumberValue(n), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		parsed, err := ParseNumber(strings.TrimSpace(b.str))
		if err != nil {
			return None(), forbidden(OpBitAnd, a, b)
		}
		n, e := a.num.BitAnd(parsed)
		if e != nil {
			return None(), e
		}
		return NumberValue(n), nil
	default:
		return None(), forbidden(OpBitAnd, a, b)
	}
}

func binaryBitOr(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind:
		return b, nil
	case b.Kind == NoneKind:
		return a, nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() || b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() || a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		n, e := a.num.BitOr(b.num)
		if e != nil {
			return None(), e
		}
		return NumberValue(n), nil
	case a.Kind == NumberKind && b.Kind == StringKind:
		parsed, err := ParseNumber(strings.TrimSpace(b.str))
		if err != nil {
			return None(), forbidden(OpBitOr, a, b)
		}
		n, e := a.num.BitOr(parsed)
		if e != nil {
			return None(), e
		}
		return NumberValue(n), nil
	default:
		return None(), forbidden(OpBitOr, a, b)
	}
}

func binaryBitXor(a, b Value) (Value, *VMError) {
	switch {
	case a.Kind == NoneKind && b.Kind == NoneKind:
		return None(), nil
	case a.Kind == NoneKind:
		return b, nil
	case b.Kind == NoneKind:
		return a, nil
	case a.Kind == BoolKind && b.Kind == BoolKind:
		return BoolValue(a.AsBool() != b.AsBool()), nil
	case a.Kind == BoolKind:
		return BoolValue(a.AsBool() != b.ToBool()), nil
	case b.Kind == BoolKind:
		return BoolValue(b.AsBool() != a.ToBool()), nil
	case a.Kind == NumberKind && b.Kind == NumberKind:
		n, e := a.num.BitXor(b.num)
		if e != nil {
			return None(), e
		}
		return NumberValue(n), nil
	default:
		return None(), forbidden(OpBitXor, a, b)
	}
}

func containsValue(list []Value, v Value) bool {
	for _, e := range list {
		if e.Equal(v) {
			return true
		}
	}
	return false
}
