package modules

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/funvibe/rigz/internal/vm"
)

// JSON converts between language values and JSON text. Malformed input is
// a RuntimeError, not a fault category of its own.
func JSON() *NativeModule {
	m := NewNativeModule("JSON")
	m.Fn("parse(text)", jsonParse)
	m.Fn("generate(value) -> String", jsonGenerate)
	return m
}

func jsonParse(args []vm.Value) (vm.Value, *vm.VMError) {
	text, err := stringArg("JSON.parse", args, 0)
	if err != nil {
		return vm.None(), err
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw any
	if jsonErr := dec.Decode(&raw); jsonErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "JSON.parse: %s", jsonErr)
	}
	return jsonToValue(raw), nil
}

func jsonGenerate(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("JSON.generate", args, 1); err != nil {
		return vm.None(), err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if jsonErr := enc.Encode(valueToJSON(args[0])); jsonErr != nil {
		return vm.None(), vm.Errorf(vm.RuntimeError, "JSON.generate: %s", jsonErr)
	}
	return vm.StringValue(strings.TrimSuffix(buf.String(), "\n")), nil
}

func jsonToValue(raw any) vm.Value {
	switch v := raw.(type) {
	case nil:
		return vm.None()
	case bool:
		return vm.BoolValue(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return vm.IntValue(i)
		}
		f, _ := v.Float64()
		return vm.FloatValue(f)
	case string:
		return vm.StringValue(v)
	case []any:
		elems := make([]vm.Value, len(v))
		for i, e := range v {
			elems[i] = jsonToValue(e)
		}
		return vm.ListValue(elems)
	case map[string]any:
		// Decoder maps lose document order; rebuild sorted for
		// deterministic iteration.
		out := vm.NewMapCapacity(len(v))
		for _, key := range sortedKeys(v) {
			out.Set(vm.StringValue(key), jsonToValue(v[key]))
		}
		return vm.MapValue(out)
	default:
		return vm.None()
	}
}

func valueToJSON(v vm.Value) any {
	switch v.Kind {
	case vm.NoneKind:
		return nil
	case vm.BoolKind:
		return v.AsBool()
	case vm.NumberKind:
		n := v.AsNumber()
		switch n.Kind {
		case vm.IntKind:
			return n.Int()
		case vm.UIntKind:
			return n.UInt()
		default:
			return n.Float()
		}
	case vm.StringKind:
		return v.AsString()
	case vm.ListKind:
		elems := v.AsList()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = valueToJSON(e)
		}
		return out
	case vm.MapKind:
		return mapToJSON(v.AsMap())
	case vm.ErrKind:
		return v.AsError().Error()
	case vm.ObjectKind:
		if fielded, ok := v.AsObject().(vm.FieldObject); ok {
			return mapToJSON(fielded.Fields())
		}
		return v.String()
	default:
		return nil
	}
}

func mapToJSON(m *vm.Map) map[string]any {
	out := make(map[string]any, m.Len())
	m.Each(func(key, value vm.Value) bool {
		out[key.String()] = valueToJSON(value)
		return true
	})
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
