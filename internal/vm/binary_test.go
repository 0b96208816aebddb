package vm

import "testing"

func testBinary(t *testing.T, op BinaryOp, a, b, want Value) {
	t.Helper()
	got, err := ApplyBinary(op, a, b)
	if err != nil {
		t.Fatalf("%s %s %s: unexpected error %v", a, op, b, err)
	}
	if !got.Equal(want) || got.Kind != want.Kind {
		t.Fatalf("%s %s %s = %s (%s), want %s (%s)", a, op, b, got, got.Kind, want, want.Kind)
	}
}

func testForbidden(t *testing.T, op BinaryOp, a, b Value, kind ErrorKind) {
	t.Helper()
	_, err := ApplyBinary(op, a, b)
	if err == nil {
		t.Fatalf("%s %s %s: expected error", a, op, b)
	}
	if err.Kind != kind {
		t.Fatalf("%s %s %s: got %s, want %s", a, op, b, err.Kind, kind)
	}
}

func TestAddCoercions(t *testing.T) {
	testBinary(t, OpAdd, None(), IntValue(5), IntValue(5))
	testBinary(t, OpAdd, StringValue("ab"), None(), StringValue("ab"))
	testBinary(t, OpAdd, IntValue(2), IntValue(3), IntValue(5))
	testBinary(t, OpAdd, IntValue(2), FloatValue(0.5), FloatValue(2.5))
	testBinary(t, OpAdd, StringValue("a"), StringValue("b"), StringValue("ab"))
	testBinary(t, OpAdd, IntValue(1), StringValue("2"), IntValue(3))
	testBinary(t, OpAdd, StringValue("2"), IntValue(1), IntValue(3))
	testBinary(t, OpAdd, IntValue(1), StringValue("abc"), StringValue("1abc"))
	testBinary(t, OpAdd, BoolValue(false), BoolValue(true), BoolValue(true))
	testBinary(t, OpAdd, BoolValue(true), IntValue(0), BoolValue(true))

	testBinary(t, OpAdd,
		ListValue([]Value{IntValue(1)}),
		ListValue([]Value{IntValue(2)}),
		ListValue([]Value{IntValue(1), IntValue(2)}))
	testBinary(t, OpAdd,
		ListValue([]Value{IntValue(1)}),
		IntValue(2),
		ListValue([]Value{IntValue(1), IntValue(2)}))

	left := NewMap()
	left.Set(StringValue("a"), IntValue(1))
	left.Set(StringValue("b"), IntValue(2))
	right := NewMap()
	right.Set(StringValue("b"), IntValue(9))
	want := NewMap()
	want.Set(StringValue("a"), IntValue(1))
	want.Set(StringValue("b"), IntValue(9))
	testBinary(t, OpAdd, MapValue(left), MapValue(right), MapValue(want))
}

func TestAddErrorForbidden(t *testing.T) {
	errVal := ErrorValue(runtimeErrorf("boom"))
	testForbidden(t, OpAdd, errVal, IntValue(1), TypeError)
	testForbidden(t, OpAdd, IntValue(1), errVal, TypeError)
	testForbidden(t, OpAdd, None(), errVal, TypeError)
}

func TestSubCoercions(t *testing.T) {
	testBinary(t, OpSub, IntValue(5), IntValue(3), IntValue(2))
	testBinary(t, OpSub, None(), IntValue(3), IntValue(-3))
	testBinary(t, OpSub, IntValue(3), None(), IntValue(3))
	testBinary(t, OpSub, StringValue("banana"), StringValue("an"), StringValue("ba"))
	testBinary(t, OpSub,
		ListValue([]Value{IntValue(1), IntValue(2), IntValue(3)}),
		IntValue(2),
		ListValue([]Value{IntValue(1), IntValue(3)}))
	testBinary(t, OpSub,
		ListValue([]Value{IntValue(1), IntValue(2)}),
		ListValue([]Value{IntValue(1)}),
		ListValue([]Value{IntValue(2)}))
}

func TestMulCoercions(t *testing.T) {
	testBinary(t, OpMul, IntValue(4), IntValue(5), IntValue(20))
	testBinary(t, OpMul, IntValue(4), None(), None())
	testBinary(t, OpMul, StringValue("abc"), IntValue(2), StringValue("abcabc"))
	testBinary(t, OpMul, StringValue("abc"), FloatValue(2.5), StringValue("abcabca"))
}

func TestMulAsymmetries(t *testing.T) {
	// Repetition only reads left-to-right.
	testForbidden(t, OpMul, IntValue(2), StringValue("abc"), TypeError)
	testForbidden(t, OpMul, StringValue("abc"), StringValue("xyz"), TypeError)
}

func TestDivCoercions(t *testing.T) {
	testBinary(t, OpDiv, IntValue(10), IntValue(2), IntValue(5))
	testBinary(t, OpDiv, IntValue(1), IntValue(2), FloatValue(0.5))
	testBinary(t, OpDiv,
		StringValue("a,b,c"), StringValue(","),
		ListValue([]Value{StringValue("a"), StringValue("b"), StringValue("c")}))
}

func TestDivByNoneAlwaysFails(t *testing.T) {
	operands := []Value{
		IntValue(5),
		StringValue("abc"),
		ListValue([]Value{IntValue(1), IntValue(2)}),
		BoolValue(true),
		None(),
		MapValue(NewMap()),
	}
	for _, lhs := range operands {
		testForbidden(t, OpDiv, lhs, None(), TypeError)
	}
}

func TestDivByZero(t *testing.T) {
	testForbidden(t, OpDiv, IntValue(5), IntValue(0), TypeError)
	testForbidden(t, OpRem, IntValue(5), IntValue(0), TypeError)
}

func TestShiftStrings(t *testing.T) {
	testBinary(t, OpShl, StringValue("abcdef"), IntValue(2), StringValue("cdef"))
	testBinary(t, OpShr, StringValue("abcdef"), IntValue(2), StringValue("abc"))
	testBinary(t, OpShl, StringValue("abc"), StringValue("123"), StringValue("abc123"))
	testBinary(t, OpShr, StringValue("abc"), StringValue("123"), StringValue("123abc"))
}

func TestShiftNumbers(t *testing.T) {
	testBinary(t, OpShl, IntValue(1), IntValue(4), IntValue(16))
	testBinary(t, OpShr, IntValue(16), IntValue(4), IntValue(1))
	testBinary(t, OpShl, IntValue(5), None(), IntValue(5))
	testBinary(t, OpShl, IntValue(2), BoolValue(true), IntValue(4))
	testBinary(t, OpShl, IntValue(2), BoolValue(false), IntValue(2))
}

func TestLogicalTruthTables(t *testing.T) {
	testBinary(t, OpAnd, IntValue(1), StringValue("x"), BoolValue(true))
	testBinary(t, OpAnd, IntValue(0), StringValue("x"), BoolValue(false))
	testBinary(t, OpOr, None(), StringValue("x"), BoolValue(true))
	testBinary(t, OpOr, None(), StringValue(""), BoolValue(false))
	testBinary(t, OpXor, BoolValue(true), BoolValue(true), BoolValue(false))
	testBinary(t, OpXor, IntValue(1), IntValue(0), BoolValue(true))
}

func TestBooleanOpsRejectErrors(t *testing.T) {
	errVal := ErrorValue(runtimeErrorf("boom"))
	for _, op := range []BinaryOp{OpAnd, OpOr, OpXor, OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr} {
		testForbidden(t, op, errVal, IntValue(1), TypeError)
		testForbidden(t, op, IntValue(1), errVal, TypeError)
	}
}

func TestBitwiseCoercions(t *testing.T) {
	testBinary(t, OpBitAnd, IntValue(0b1100), IntValue(0b1010), IntValue(0b1000))
	testBinary(t, OpBitOr, IntValue(0b1100), IntValue(0b1010), IntValue(0b1110))
	testBinary(t, OpBitXor, IntValue(0b1100), IntValue(0b1010), IntValue(0b0110))
	testBinary(t, OpBitAnd, IntValue(7), None(), None())
	testBinary(t, OpBitOr, None(), IntValue(7), IntValue(7))
	testForbidden(t, OpBitAnd, FloatValue(1.5), IntValue(1), TypeError)
}

func TestEqualityOperators(t *testing.T) {
	testBinary(t, OpEq, IntValue(1), FloatValue(1.0), BoolValue(true))
	testBinary(t, OpEq, None(), BoolValue(false), BoolValue(true))
	testBinary(t, OpEq, None(), IntValue(0), BoolValue(true))
	testBinary(t, OpEq, StringValue(""), None(), BoolValue(true))
	testBinary(t, OpEq, IntValue(1), StringValue("1"), BoolValue(true))
	testBinary(t, OpNeq, IntValue(1), IntValue(2), BoolValue(true))
}

func TestUnaryOps(t *testing.T) {
	cases := []struct {
		op   UnaryOp
		in   Value
		want Value
	}{
		{OpNeg, IntValue(5), IntValue(-5)},
		{OpNeg, BoolValue(true), BoolValue(false)},
		{OpNeg, None(), None()},
		{OpNot, BoolValue(false), BoolValue(true)},
		{OpNot, None(), BoolValue(true)},
		{OpNot, StringValue("x"), BoolValue(false)},
		{OpRev, StringValue("abc"), StringValue("cba")},
		{OpRev, IntValue(42), IntValue(42)}, // round-tripped below
	}
	for _, c := range cases {
		got, err := ApplyUnary(c.op, c.in)
		if err != nil {
			t.Fatalf("%s %s: %v", c.op, c.in, err)
		}
		if c.op == OpRev && c.in.Kind == NumberKind {
			// rev is an involution on numbers.
			back, _ := ApplyUnary(OpRev, got)
			if !back.Equal(c.in) {
				t.Fatalf("rev(rev(%s)) = %s", c.in, back)
			}
			continue
		}
		if !got.Equal(c.want) {
			t.Fatalf("%s %s = %s, want %s", c.op, c.in, got, c.want)
		}
	}
}

func TestNegIdentityOnComposites(t *testing.T) {
	list := ListValue([]Value{IntValue(1)})
	got, err := ApplyUnary(OpNeg, list)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(list) {
		t.Fatalf("-[1] = %s, want [1]", got)
	}
	m := NewMap()
	m.Set(StringValue("a"), IntValue(1))
	got, err = ApplyUnary(OpNeg, MapValue(m))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(MapValue(m)) {
		t.Fatalf("-map = %s", got)
	}
}
