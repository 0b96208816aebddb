package vm

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func runProgram(t *testing.T, p *Program, opts ...Option) Value {
	t.Helper()
	out, err := New(p, opts...).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return out
}

func TestHaltReturnsRegister(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: IntValue(42)},
		Halt{Register: 2},
	}}}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(42)) {
		t.Fatalf("got %s, want 42", out)
	}
}

func TestBinaryChain(t *testing.T) {
	// (1 + 2) * 3 evaluated strictly in emission order.
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: IntValue(1)},
		Load{Register: 3, Value: IntValue(2)},
		Binary{Op: OpAdd, Lhs: 2, Rhs: 3, Output: 4},
		Load{Register: 5, Value: IntValue(3)},
		Binary{Op: OpMul, Lhs: 4, Rhs: 5, Output: 6},
		Halt{Register: 6},
	}}}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(9)) {
		t.Fatalf("got %s, want 9", out)
	}
}

func TestReservedRegisters(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		// Writes to the reserved registers are dropped.
		Load{Register: 0, Value: IntValue(99)},
		Load{Register: 1, Value: IntValue(99)},
		Binary{Op: OpAdd, Lhs: 0, Rhs: 1, Output: 2},
		Halt{Register: 2},
	}}}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(1)) {
		t.Fatalf("r0 + r1 = %s, want 1", out)
	}
}

func TestVariableBinding(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: StringValue("hello")},
		LoadLet{Name: "a", Register: 2},
		GetVariable{Name: "a", Output: 3},
		Halt{Register: 3},
	}}}}
	out := runProgram(t, p)
	if !out.Equal(StringValue("hello")) {
		t.Fatalf("got %s", out)
	}
}

func TestUnknownVariableFaults(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		GetVariable{Name: "missing", Output: 2},
		Halt{Register: 2},
	}}}}
	_, err := New(p).Run(context.Background())
	vmErr, ok := err.(*VMError)
	if !ok || vmErr.Kind != UnknownVariable {
		t.Fatalf("got %v, want UnknownVariable", err)
	}
}

func TestCallAndRet(t *testing.T) {
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			Call{Scope: 1, Output: 2},
			Halt{Register: 2},
		}},
		{ID: 1, Instructions: []Instruction{
			Load{Register: 3, Value: IntValue(7)},
			Ret{Register: 3},
		}},
	}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(7)) {
		t.Fatalf("got %s, want 7", out)
	}
}

func TestLexicalScopingAcrossCalls(t *testing.T) {
	// The callee frame sees the caller's binding through the parent chain.
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			Load{Register: 2, Value: IntValue(10)},
			LoadLet{Name: "x", Register: 2},
			Call{Scope: 1, Output: 3},
			Halt{Register: 3},
		}},
		{ID: 1, Instructions: []Instruction{
			GetVariable{Name: "x", Output: 4},
			Binary{Op: OpAdd, Lhs: 4, Rhs: 1, Output: 5},
			Ret{Register: 5},
		}},
	}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(11)) {
		t.Fatalf("got %s, want 11", out)
	}
}

func TestCallEqBranches(t *testing.T) {
	build := func(lhs, rhs Value) *Program {
		return &Program{Scopes: []*Scope{
			{ID: 0, Instructions: []Instruction{
				Load{Register: 2, Value: lhs},
				Load{Register: 3, Value: rhs},
				CallEq{Lhs: 2, Rhs: 3, Scope: 1, Output: 4},
				Halt{Register: 4},
			}},
			{ID: 1, Instructions: []Instruction{
				Load{Register: 5, Value: StringValue("equal")},
				Ret{Register: 5},
			}},
		}}
	}
	if out := runProgram(t, build(IntValue(2), IntValue(2))); !out.Equal(StringValue("equal")) {
		t.Fatalf("equal operands: %s", out)
	}
	// Loose equality: 2 == "2".
	if out := runProgram(t, build(IntValue(2), StringValue("2"))); !out.Equal(StringValue("equal")) {
		t.Fatalf("coerced operands: %s", out)
	}
	if out := runProgram(t, build(IntValue(2), IntValue(3))); !out.IsNone() {
		t.Fatalf("unequal operands: %s, want none", out)
	}
}

func TestCallNeqBranches(t *testing.T) {
	build := func(lhs, rhs Value) *Program {
		return &Program{Scopes: []*Scope{
			{ID: 0, Instructions: []Instruction{
				Load{Register: 2, Value: lhs},
				Load{Register: 3, Value: rhs},
				CallNeq{Lhs: 2, Rhs: 3, Scope: 1, Output: 4},
				Halt{Register: 4},
			}},
			{ID: 1, Instructions: []Instruction{
				Load{Register: 5, Value: StringValue("different")},
				Ret{Register: 5},
			}},
		}}
	}
	if out := runProgram(t, build(IntValue(2), IntValue(3))); !out.Equal(StringValue("different")) {
		t.Fatalf("unequal operands: %s", out)
	}
	if out := runProgram(t, build(IntValue(2), IntValue(2))); !out.IsNone() {
		t.Fatalf("equal operands: %s, want none", out)
	}
}

func TestIfElseBranches(t *testing.T) {
	build := func(cond Value) *Program {
		return &Program{Scopes: []*Scope{
			{ID: 0, Instructions: []Instruction{
				Load{Register: 2, Value: cond},
				IfElse{Truthy: 2, IfScope: 1, ElseScope: 2, Output: 3},
				Halt{Register: 3},
			}},
			{ID: 1, Instructions: []Instruction{
				Load{Register: 4, Value: StringValue("yes")},
				Ret{Register: 4},
			}},
			{ID: 2, Instructions: []Instruction{
				Load{Register: 5, Value: StringValue("no")},
				Ret{Register: 5},
			}},
		}}
	}
	if out := runProgram(t, build(BoolValue(true))); !out.Equal(StringValue("yes")) {
		t.Fatalf("truthy branch: %s", out)
	}
	if out := runProgram(t, build(None())); !out.Equal(StringValue("no")) {
		t.Fatalf("falsy branch: %s", out)
	}
	if out := runProgram(t, build(StringValue(""))); !out.Equal(StringValue("no")) {
		t.Fatalf("empty string is falsy: %s", out)
	}
}

func TestMutableSharing(t *testing.T) {
	// mut x = 1; two separate mutable borrows write through the same cell.
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: IntValue(1)},
		LoadMut{Name: "x", Register: 2},
		GetMutableVariable{Name: "x", Output: 3},
		Binary{Op: OpAdd, Lhs: 3, Rhs: 1, Output: 3},
		GetVariable{Name: "x", Output: 4},
		Halt{Register: 4},
	}}}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(2)) {
		t.Fatalf("got %s, want 2", out)
	}
}

func TestMutableBorrowOfImmutable(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: IntValue(1)},
		LoadLet{Name: "x", Register: 2},
		GetMutableVariable{Name: "x", Output: 3},
		Halt{Register: 3},
	}}}}
	_, err := New(p).Run(context.Background())
	vmErr, ok := err.(*VMError)
	if !ok || vmErr.Kind != TypeError {
		t.Fatalf("got %v, want TypeError", err)
	}
}

func TestRaiseUncaught(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: StringValue("boom")},
		Raise{Register: 2},
		Halt{Register: 0},
	}}}}
	_, err := New(p).Run(context.Background())
	vmErr, ok := err.(*VMError)
	if !ok || vmErr.Kind != UserRaised {
		t.Fatalf("got %v, want UserRaised", err)
	}
	if vmErr.Payload == nil || !vmErr.Payload.Equal(StringValue("boom")) {
		t.Fatalf("payload %v", vmErr.Payload)
	}
}

func TestTryCatchesRaise(t *testing.T) {
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			TryStart{CatchScope: 1, Binding: "e", Output: 2},
			Load{Register: 3, Value: StringValue("boom")},
			Raise{Register: 3},
			TryEnd{},
			Halt{Register: 2},
		}},
		{ID: 1, Instructions: []Instruction{
			GetVariable{Name: "e", Output: 4},
			Ret{Register: 4},
		}},
	}}
	out := runProgram(t, p)
	if !out.IsError() {
		t.Fatalf("got %s (%s), want an Error value", out, out.Kind)
	}
	if out.AsError().Kind != UserRaised {
		t.Fatalf("got %s, want UserRaised", out.AsError().Kind)
	}
}

func TestTryCatchesFaultInCallee(t *testing.T) {
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			TryStart{CatchScope: 2, Binding: "e", Output: 2},
			Call{Scope: 1, Output: 3},
			TryEnd{},
			Halt{Register: 2},
		}},
		{ID: 1, Instructions: []Instruction{
			// 5 / none faults inside the callee.
			Load{Register: 4, Value: IntValue(5)},
			Binary{Op: OpDiv, Lhs: 4, Rhs: 0, Output: 5},
			Ret{Register: 5},
		}},
		{ID: 2, Instructions: []Instruction{
			Load{Register: 6, Value: StringValue("caught")},
			Ret{Register: 6},
		}},
	}}
	out := runProgram(t, p)
	if !out.Equal(StringValue("caught")) {
		t.Fatalf("got %s, want caught", out)
	}
}

func TestTryEndDropsHandler(t *testing.T) {
	// A fault after TryEnd is no longer protected.
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			TryStart{CatchScope: 1, Binding: "e", Output: 2},
			TryEnd{},
			Load{Register: 3, Value: StringValue("late")},
			Raise{Register: 3},
			Halt{Register: 0},
		}},
		{ID: 1, Instructions: []Instruction{
			Ret{Register: 0},
		}},
	}}
	_, err := New(p).Run(context.Background())
	if err == nil {
		t.Fatal("expected uncaught fault")
	}
}

func TestHaltIfError(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: ErrorValue(runtimeErrorf("early"))},
		HaltIfError{Register: 2},
		Load{Register: 3, Value: IntValue(1)},
		Halt{Register: 3},
	}}}}
	out := runProgram(t, p)
	if !out.IsError() {
		t.Fatalf("got %s, want error result", out)
	}
}

func TestPutsJoinsArgs(t *testing.T) {
	var buf bytes.Buffer
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: StringValue("a")},
		Load{Register: 3, Value: IntValue(2)},
		Puts{Args: []Register{2, 3}},
		Halt{Register: 0},
	}}}}
	runProgram(t, p, WithOutput(&buf))
	if got := buf.String(); got != "a, 2\n" {
		t.Fatalf("puts wrote %q", got)
	}
}

func TestCastInstruction(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: StringValue("42")},
		Cast{From: 2, Type: "Number", Output: 3},
		Halt{Register: 3},
	}}}}
	out := runProgram(t, p)
	if !out.Equal(IntValue(42)) || out.Kind != NumberKind {
		t.Fatalf("got %s (%s)", out, out.Kind)
	}
}

func TestCastFailureKind(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: StringValue("not a number")},
		Cast{From: 2, Type: "Number", Output: 3},
		Halt{Register: 3},
	}}}}
	_, err := New(p).Run(context.Background())
	vmErr, ok := err.(*VMError)
	if !ok || vmErr.Kind != CastError {
		t.Fatalf("got %v, want CastError", err)
	}
}

func TestCallDepthGuard(t *testing.T) {
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			Call{Scope: 1, Output: 2},
			Halt{Register: 2},
		}},
		{ID: 1, Instructions: []Instruction{
			Call{Scope: 1, Output: 3},
			Ret{Register: 3},
		}},
	}}
	_, err := New(p, WithMaxDepth(32)).Run(context.Background())
	vmErr, ok := err.(*VMError)
	if !ok || vmErr.Kind != RuntimeError {
		t.Fatalf("got %v, want RuntimeError", err)
	}
	if !strings.Contains(vmErr.Message, "depth") {
		t.Fatalf("message %q", vmErr.Message)
	}
}

func TestContextCancellation(t *testing.T) {
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			Call{Scope: 1, Output: 2},
			Halt{Register: 2},
		}},
		{ID: 1, Instructions: []Instruction{
			Call{Scope: 1, Output: 3},
			Ret{Register: 3},
		}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(p).Run(ctx)
	if err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestRunScopeBindsArgs(t *testing.T) {
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{Halt{Register: 0}}},
		{ID: 1, Args: []string{"a", "b"}, Instructions: []Instruction{
			GetVariable{Name: "a", Output: 2},
			GetVariable{Name: "b", Output: 3},
			Binary{Op: OpAdd, Lhs: 2, Rhs: 3, Output: 4},
			Ret{Register: 4},
		}},
	}}
	out, err := New(p).RunScope(context.Background(), 1, []Value{IntValue(2), IntValue(3)})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(IntValue(5)) {
		t.Fatalf("got %s, want 5", out)
	}
}

func TestProgramRoundTrip(t *testing.T) {
	m := NewMap()
	m.Set(StringValue("k"), IntValue(1))
	p := &Program{Scopes: []*Scope{
		{ID: 0, Instructions: []Instruction{
			Load{Register: 2, Value: MapValue(m)},
			Load{Register: 3, Value: ListValue([]Value{IntValue(1), FloatValue(2.5)})},
			Binary{Op: OpAdd, Lhs: 2, Rhs: 3, Output: 4},
			Call{Scope: 1, Output: 5},
			Halt{Register: 5},
		}},
		{ID: 1, Named: "f", Lifecycle: &Lifecycle{Kind: LifecycleTest}, Instructions: []Instruction{
			Load{Register: 6, Value: UIntValue(18446744073709551615)},
			Ret{Register: 6},
		}},
	}}
	data, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeProgram(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Scopes) != 2 {
		t.Fatalf("scopes %d", len(decoded.Scopes))
	}
	want, err := New(p).RunScope(context.Background(), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := New(decoded).RunScope(context.Background(), 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Fatalf("round trip changed result: %s vs %s", got, want)
	}
	if decoded.Scopes[1].Lifecycle == nil || decoded.Scopes[1].Lifecycle.Kind != LifecycleTest {
		t.Fatal("lifecycle lost in round trip")
	}
}

func TestListingIsIntrospectable(t *testing.T) {
	p := &Program{Scopes: []*Scope{{ID: 0, Instructions: []Instruction{
		Load{Register: 2, Value: IntValue(1)},
		Binary{Op: OpAdd, Lhs: 2, Rhs: 1, Output: 3},
		Halt{Register: 3},
	}}}}
	listing := p.Listing()
	for _, want := range []string{"scope 0", "Load r2 1", "Binary r2 + r1 -> r3", "Halt r3"} {
		if !strings.Contains(listing, want) {
			t.Fatalf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestBuilderSealsScopes(t *testing.T) {
	b := NewBuilder()
	r := b.LoadLiteral(IntValue(2))
	id := b.EnterScope("f", nil, nil)
	inner := b.LoadLiteral(IntValue(5))
	b.SetLast(inner)
	b.ExitScope()
	out := b.NextRegister()
	b.Add(Call{Scope: id, Output: out})
	b.Add(Binary{Op: OpAdd, Lhs: r, Rhs: out, Output: b.NextRegister()})
	p := b.Build()

	result := runProgram(t, p)
	if !result.Equal(IntValue(7)) {
		t.Fatalf("got %s, want 7", result)
	}
}

func TestBuilderReservedLiterals(t *testing.T) {
	b := NewBuilder()
	if r := b.LoadLiteral(None()); r != NoneRegister {
		t.Fatalf("none literal got r%d", r)
	}
	if r := b.LoadLiteral(IntValue(1)); r != OneRegister {
		t.Fatalf("one literal got r%d", r)
	}
	if len(b.CurrentScope().Instructions) != 0 {
		t.Fatal("reserved literals should not emit loads")
	}
}
