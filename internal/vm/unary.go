package vm

import "fmt"

// UnaryOp enumerates the unary operators the Unary instruction applies.
// OpPrint variants write the operand to an output stream; the VM wires the
// actual sink.
type UnaryOp uint8

const (
	OpNot UnaryOp = iota
	OpNeg
	OpRev
	OpPrint
	OpEPrint
	OpPrintLn
	OpEPrintLn
)

var unaryOpNames = map[UnaryOp]string{
	OpNot:      "!",
	OpNeg:      "-",
	OpRev:      "rev",
	OpPrint:    "print",
	OpEPrint:   "eprint",
	OpPrintLn:  "println",
	OpEPrintLn: "eprintln",
}

func (op UnaryOp) String() string {
	if s, ok := unaryOpNames[op]; ok {
		return s
	}
	return fmt.Sprintf("UnaryOp(%d)", uint8(op))
}

// ApplyUnary applies a unary operator. Negation is the identity on composite
// kinds, and Rev passes scalars through untouched.
func ApplyUnary(op UnaryOp, v Value) (Value, *VMError) {
	switch op {
	case OpNot:
		return unaryNot(v), nil
	case OpNeg:
		return unaryNeg(v), nil
	case OpRev:
		return unaryRev(v), nil
	default:
		return None(), typeErrorf("unknown unary operator %s", op)
	}
}

func unaryNot(v Value) Value {
	switch v.Kind {
	case NoneKind:
		return BoolValue(true)
	case BoolKind:
		return BoolValue(!v.AsBool())
	case NumberKind:
		return NumberValue(v.num.Not())
	case ErrKind:
		return v
	default:
		return BoolValue(!v.ToBool())
	}
}

func unaryNeg(v Value) Value {
	switch v.Kind {
	case NoneKind:
		return None()
	case BoolKind:
		return BoolValue(!v.AsBool())
	case NumberKind:
		return NumberValue(v.num.Neg())
	default:
		return v
	}
}

func unaryRev(v Value) Value {
	switch v.Kind {
	case NumberKind:
		return NumberValue(v.num.Rev())
	case StringKind:
		runes := []rune(v.str)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return StringValue(string(runes))
	case ListKind:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[len(v.list)-1-i] = e
		}
		return ListValue(out)
	case MapKind:
		return MapValue(v.m.Reversed())
	default:
		return v
	}
}
