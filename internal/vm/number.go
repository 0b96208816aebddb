package vm

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// NumKind discriminates the numeric representations. Arithmetic widens
// losslessly: any float operand promotes both sides to Float, otherwise a
// signed operand promotes UInt to Int.
type NumKind uint8

const (
	IntKind NumKind = iota
	UIntKind
	FloatKind
)

// Number is the numeric payload of a Value.
type Number struct {
	Kind NumKind
	bits uint64
}

func IntNumber(i int64) Number   { return Number{Kind: IntKind, bits: uint64(i)} }
func UIntNumber(u uint64) Number { return Number{Kind: UIntKind, bits: u} }
func FloatNumber(f float64) Number {
	return Number{Kind: FloatKind, bits: math.Float64bits(f)}
}

func (n Number) Int() int64     { return int64(n.bits) }
func (n Number) UInt() uint64   { return n.bits }
func (n Number) Float() float64 { return math.Float64frombits(n.bits) }

// ToInt converts to int64 regardless of kind.
func (n Number) ToInt() int64 {
	switch n.Kind {
	case FloatKind:
		return int64(n.Float())
	default:
		return int64(n.bits)
	}
}

// ToFloat converts to float64 regardless of kind.
func (n Number) ToFloat() float64 {
	switch n.Kind {
	case IntKind:
		return float64(int64(n.bits))
	case UIntKind:
		return float64(n.bits)
	default:
		return n.Float()
	}
}

func (n Number) IsZero() bool {
	switch n.Kind {
	case FloatKind:
		return n.Float() == 0
	default:
		return n.bits == 0
	}
}

func (n Number) IsOne() bool {
	switch n.Kind {
	case FloatKind:
		return n.Float() == 1
	case IntKind:
		return n.Int() == 1
	default:
		return n.bits == 1
	}
}

func (n Number) IsNegative() bool {
	switch n.Kind {
	case IntKind:
		return n.Int() < 0
	case FloatKind:
		return n.Float() < 0
	default:
		return false
	}
}

func (n Number) String() string {
	switch n.Kind {
	case IntKind:
		return strconv.FormatInt(n.Int(), 10)
	case UIntKind:
		return strconv.FormatUint(n.UInt(), 10)
	default:
		return strconv.FormatFloat(n.Float(), 'g', -1, 64)
	}
}

// ParseNumber parses a numeric literal. Suffixes select the representation:
// `u` for UInt, `i` for Int, `f` for Float; a decimal point implies Float.
func ParseNumber(s string) (Number, error) {
	switch {
	case strings.ContainsAny(s, ".eE") && !strings.HasPrefix(s, "0x"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 64)
		if err != nil {
			return Number{}, err
		}
		return FloatNumber(f), nil
	case strings.HasSuffix(s, "u"):
		u, err := strconv.ParseUint(s[:len(s)-1], 0, 64)
		if err != nil {
			return Number{}, err
		}
		return UIntNumber(u), nil
	case strings.HasSuffix(s, "f"):
		f, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return Number{}, err
		}
		return FloatNumber(f), nil
	case strings.HasSuffix(s, "i"):
		i, err := strconv.ParseInt(s[:len(s)-1], 0, 64)
		if err != nil {
			return Number{}, err
		}
		return IntNumber(i), nil
	default:
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Number{}, err
		}
		return IntNumber(i), nil
	}
}

func (n Number) Equal(o Number) bool {
	switch {
	case n.Kind == o.Kind:
		if n.Kind == FloatKind {
			return n.Float() == o.Float()
		}
		return n.bits == o.bits
	case n.Kind == FloatKind || o.Kind == FloatKind:
		return n.ToFloat() == o.ToFloat()
	case n.Kind == IntKind && o.Kind == UIntKind:
		return n.Int() >= 0 && uint64(n.Int()) == o.UInt()
	case n.Kind == UIntKind && o.Kind == IntKind:
		return o.Int() >= 0 && uint64(o.Int()) == n.UInt()
	default:
		return false
	}
}

// widen promotes two numbers to a common kind for arithmetic.
func widen(a, b Number) NumKind {
	if a.Kind == FloatKind || b.Kind == FloatKind {
		return FloatKind
	}
	if a.Kind == IntKind || b.Kind == IntKind {
		return IntKind
	}
	return UIntKind
}

func (n Number) Add(o Number) Number {
	switch widen(n, o) {
	case FloatKind:
		return FloatNumber(n.ToFloat() + o.ToFloat())
	case UIntKind:
		return UIntNumber(n.UInt() + o.UInt())
	default:
		return IntNumber(n.ToInt() + o.ToInt())
	}
}

func (n Number) Sub(o Number) Number {
	switch widen(n, o) {
	case FloatKind:
		return FloatNumber(n.ToFloat() - o.ToFloat())
	case UIntKind:
		if o.UInt() > n.UInt() {
			// Underflow drops to the signed representation.
			return IntNumber(n.ToInt() - o.ToInt())
		}
		return UIntNumber(n.UInt() - o.UInt())
	default:
		return IntNumber(n.ToInt() - o.ToInt())
	}
}

func (n Number) Mul(o Number) Number {
	switch widen(n, o) {
	case FloatKind:
		return FloatNumber(n.ToFloat() * o.ToFloat())
	case UIntKind:
		return UIntNumber(n.UInt() * o.UInt())
	default:
		return IntNumber(n.ToInt() * o.ToInt())
	}
}

// Div divides; callers must reject zero divisors first (the Value layer
// reports division by none/zero as a TypeError).
func (n Number) Div(o Number) Number {
	switch widen(n, o) {
	case FloatKind:
		return FloatNumber(n.ToFloat() / o.ToFloat())
	case UIntKind:
		return UIntNumber(n.UInt() / o.UInt())
	default:
		a, b := n.ToInt(), o.ToInt()
		if a%b != 0 {
			return FloatNumber(float64(a) / float64(b))
		}
		return IntNumber(a / b)
	}
}

func (n Number) Rem(o Number) Number {
	switch widen(n, o) {
	case FloatKind:
		return FloatNumber(math.Mod(n.ToFloat(), o.ToFloat()))
	case UIntKind:
		return UIntNumber(n.UInt() % o.UInt())
	default:
		return IntNumber(n.ToInt() % o.ToInt())
	}
}

// BitAnd and friends operate on the integer representations; floats are not
// valid bitwise operands.
func (n Number) BitAnd(o Number) (Number, *VMError) {
	if n.Kind == FloatKind || o.Kind == FloatKind {
		return Number{}, typeErrorf("cannot perform %s & %s", n, o)
	}
	if n.Kind == UIntKind && o.Kind == UIntKind {
		return UIntNumber(n.UInt() & o.UInt()), nil
	}
	return IntNumber(n.ToInt() & o.ToInt()), nil
}

func (n Number) BitOr(o Number) (Number, *VMError) {
	if n.Kind == FloatKind || o.Kind == FloatKind {
		return Number{}, typeErrorf("cannot perform %s | %s", n, o)
	}
	if n.Kind == UIntKind && o.Kind == UIntKind {
		return UIntNumber(n.UInt() | o.UInt()), nil
	}
	return IntNumber(n.ToInt() | o.ToInt()), nil
}

func (n Number) BitXor(o Number) (Number, *VMError) {
	if n.Kind == FloatKind || o.Kind == FloatKind {
		return Number{}, typeErrorf("cannot perform %s ^ %s", n, o)
	}
	if n.Kind == UIntKind && o.Kind == UIntKind {
		return UIntNumber(n.UInt() ^ o.UInt()), nil
	}
	return IntNumber(n.ToInt() ^ o.ToInt()), nil
}

func (n Number) Shl(o Number) Number {
	shift := uint64(o.ToInt()) & 63
	switch n.Kind {
	case UIntKind:
		return UIntNumber(n.UInt() << shift)
	default:
		return IntNumber(n.ToInt() << shift)
	}
}

func (n Number) Shr(o Number) Number {
	shift := uint64(o.ToInt()) & 63
	switch n.Kind {
	case UIntKind:
		return UIntNumber(n.UInt() >> shift)
	default:
		return IntNumber(n.ToInt() >> shift)
	}
}

// Neg negates. Unsigned numbers wrap through two's complement and stay
// unsigned.
func (n Number) Neg() Number {
	switch n.Kind {
	case IntKind:
		return IntNumber(-n.Int())
	case UIntKind:
		return UIntNumber(^n.UInt() + 1)
	default:
		return FloatNumber(-n.Float())
	}
}

// Not is bitwise complement; float bits are complemented in place.
func (n Number) Not() Number {
	switch n.Kind {
	case IntKind:
		return IntNumber(^n.Int())
	case UIntKind:
		return UIntNumber(^n.UInt())
	default:
		return Number{Kind: FloatKind, bits: ^n.bits}
	}
}

// Rev reverses the bit pattern.
func (n Number) Rev() Number {
	return Number{Kind: n.Kind, bits: bits.Reverse64(n.bits)}
}

func (n Number) hashKey() string {
	if n.Kind == FloatKind {
		f := n.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			// 2.0 and 2 hash alike so they collide as map keys.
			return fmt.Sprintf("n:%d", int64(f))
		}
		return fmt.Sprintf("n:%g", f)
	}
	if n.Kind == IntKind && n.Int() < 0 {
		return fmt.Sprintf("n:%d", n.Int())
	}
	return fmt.Sprintf("n:%d", n.bits)
}
