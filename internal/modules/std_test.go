package modules

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/rigz/internal/vm"
)

func callStd(t *testing.T, fn string, args ...vm.Value) vm.Value {
	t.Helper()
	out, err := Std().Call(fn, args)
	require.Nil(t, err, "Std.%s", fn)
	return out
}

func callExt(t *testing.T, this vm.Value, fn string, args ...vm.Value) vm.Value {
	t.Helper()
	out, err := Std().CallExtension(this, fn, args)
	require.Nil(t, err, "%s.%s", this.TypeName(), fn)
	return out
}

func TestStdType(t *testing.T) {
	require.Equal(t, vm.StringValue("Number"), callStd(t, "type", vm.IntValue(3)))
	require.Equal(t, vm.StringValue("String"), callStd(t, "type", vm.StringValue("x")))
	require.Equal(t, vm.StringValue("None"), callStd(t, "type", vm.None()))
}

func TestStdLen(t *testing.T) {
	require.Equal(t, vm.IntValue(3), callStd(t, "len", vm.StringValue("abc")))
	require.Equal(t, vm.IntValue(2), callStd(t, "len", vm.ListValue([]vm.Value{vm.IntValue(1), vm.IntValue(2)})))
	require.Equal(t, vm.IntValue(0), callStd(t, "len", vm.None()))

	_, err := Std().Call("len", []vm.Value{vm.BoolValue(true)})
	require.NotNil(t, err)
	require.Equal(t, vm.TypeError, err.Kind)
}

func TestStdFirstLast(t *testing.T) {
	list := vm.ListValue([]vm.Value{vm.IntValue(1), vm.IntValue(2), vm.IntValue(3)})
	require.Equal(t, vm.IntValue(1), callStd(t, "first", list))
	require.Equal(t, vm.IntValue(3), callStd(t, "last", list))
	require.Equal(t, vm.StringValue("a"), callStd(t, "first", vm.StringValue("abc")))
	require.Equal(t, vm.StringValue("c"), callStd(t, "last", vm.StringValue("abc")))
	require.True(t, callStd(t, "first", vm.ListValue(nil)).IsNone())
}

func TestStdAssert(t *testing.T) {
	require.True(t, callStd(t, "assert", vm.BoolValue(true)).IsNone())

	_, err := Std().Call("assert", []vm.Value{vm.BoolValue(false), vm.StringValue("boom")})
	require.NotNil(t, err)
	require.Equal(t, vm.RuntimeError, err.Kind)
	require.Contains(t, err.Message, "boom")

	_, err = Std().Call("assert_eq", []vm.Value{vm.IntValue(1), vm.IntValue(2)})
	require.NotNil(t, err)
	require.Equal(t, vm.RuntimeError, err.Kind)
}

func TestStdPrintingHonorsConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	r := Default()
	r.SetOutput(&buf)

	_, err := r.CallFunction("", "puts", []vm.Value{vm.StringValue("a"), vm.IntValue(2)})
	require.NoError(t, err)
	require.Equal(t, "a, 2\n", buf.String())

	buf.Reset()
	_, err = r.CallFunction("Std", "print", []vm.Value{vm.StringValue("b")})
	require.NoError(t, err)
	require.Equal(t, "b", buf.String())
}

func TestStringExtensions(t *testing.T) {
	require.Equal(t, vm.StringValue("ABC"), callExt(t, vm.StringValue("abc"), "upcase"))
	require.Equal(t, vm.StringValue("abc"), callExt(t, vm.StringValue("  abc "), "trim"))
	require.Equal(t, vm.BoolValue(true), callExt(t, vm.StringValue("hello"), "contains", vm.StringValue("ell")))

	parts := callExt(t, vm.StringValue("a,b,c"), "split", vm.StringValue(","))
	require.Equal(t, vm.ListValue([]vm.Value{
		vm.StringValue("a"), vm.StringValue("b"), vm.StringValue("c"),
	}), parts)
}

func TestListExtensions(t *testing.T) {
	list := vm.ListValue([]vm.Value{vm.IntValue(3), vm.IntValue(1), vm.IntValue(2)})
	sorted := callExt(t, list, "sort")
	require.Equal(t, vm.ListValue([]vm.Value{vm.IntValue(1), vm.IntValue(2), vm.IntValue(3)}), sorted)
	// Source list is untouched.
	require.Equal(t, vm.IntValue(3), list.AsList()[0])

	joined := callExt(t, vm.ListValue([]vm.Value{vm.IntValue(1), vm.IntValue(2)}), "join", vm.StringValue("-"))
	require.Equal(t, vm.StringValue("1-2"), joined)
}

func TestMapExtensions(t *testing.T) {
	m := vm.NewMap()
	m.Set(vm.StringValue("a"), vm.IntValue(1))
	m.Set(vm.StringValue("b"), vm.IntValue(2))
	keys := callExt(t, vm.MapValue(m), "keys")
	require.Equal(t, vm.ListValue([]vm.Value{vm.StringValue("a"), vm.StringValue("b")}), keys)
}

func TestNumberExtensions(t *testing.T) {
	require.Equal(t, vm.IntValue(4), callExt(t, vm.IntValue(-4), "abs"))
	require.Equal(t, vm.IntValue(2), callExt(t, vm.FloatValue(2.7), "floor"))
	require.Equal(t, vm.IntValue(3), callExt(t, vm.FloatValue(2.7), "round"))
	// Integral receivers pass through untouched.
	require.Equal(t, vm.IntValue(5), callExt(t, vm.IntValue(5), "ceil"))
}

func TestAnyExtensions(t *testing.T) {
	require.Equal(t, vm.StringValue("42"), callExt(t, vm.IntValue(42), "to_s"))

	m := vm.NewMap()
	m.Set(vm.StringValue("k"), vm.IntValue(1))
	clone := callExt(t, vm.MapValue(m), "clone")
	clone.AsMap().Set(vm.StringValue("k"), vm.IntValue(99))
	got, _ := m.Get(vm.StringValue("k"))
	require.Equal(t, vm.IntValue(1), got)
}
