package modules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/rigz/internal/vm"
)

func TestJSONParse(t *testing.T) {
	out, err := JSON().Call("parse", []vm.Value{
		vm.StringValue(`{"name":"ada","age":36,"tags":["a","b"],"ratio":0.5,"gone":null}`),
	})
	require.Nil(t, err)
	require.Equal(t, vm.MapKind, out.Kind)

	m := out.AsMap()
	name, _ := m.Get(vm.StringValue("name"))
	require.Equal(t, vm.StringValue("ada"), name)
	age, _ := m.Get(vm.StringValue("age"))
	require.Equal(t, vm.IntValue(36), age)
	ratio, _ := m.Get(vm.StringValue("ratio"))
	require.Equal(t, vm.FloatValue(0.5), ratio)
	gone, _ := m.Get(vm.StringValue("gone"))
	require.True(t, gone.IsNone())
	tags, _ := m.Get(vm.StringValue("tags"))
	require.Equal(t, vm.ListValue([]vm.Value{vm.StringValue("a"), vm.StringValue("b")}), tags)
}

func TestJSONParseMalformed(t *testing.T) {
	_, err := JSON().Call("parse", []vm.Value{vm.StringValue("{nope")})
	require.NotNil(t, err)
	require.Equal(t, vm.RuntimeError, err.Kind)
}

func TestJSONGenerate(t *testing.T) {
	m := vm.NewMap()
	m.Set(vm.StringValue("n"), vm.IntValue(1))
	out, err := JSON().Call("generate", []vm.Value{vm.MapValue(m)})
	require.Nil(t, err)
	require.Equal(t, `{"n":1}`, out.AsString())

	out, err = JSON().Call("generate", []vm.Value{vm.ListValue([]vm.Value{
		vm.BoolValue(true), vm.None(), vm.StringValue("x"),
	})})
	require.Nil(t, err)
	require.Equal(t, `[true,null,"x"]`, out.AsString())
}

func TestJSONRoundTrip(t *testing.T) {
	source := `{"a":[1,2.5,"three"],"b":{"nested":true}}`
	parsed, err := JSON().Call("parse", []vm.Value{vm.StringValue(source)})
	require.Nil(t, err)
	generated, err := JSON().Call("generate", []vm.Value{parsed})
	require.Nil(t, err)
	reparsed, err := JSON().Call("parse", []vm.Value{generated})
	require.Nil(t, err)
	require.True(t, parsed.Equal(reparsed), "round trip changed the value")
}
