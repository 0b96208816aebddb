package modules

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/funvibe/rigz/internal/vm"
)

// StdModule is the default module: inspection helpers, assertions, and
// the extension methods every script leans on. Its printing functions
// write to a host-configurable stream so captured output stays captured
// whether a script reaches print through the instruction or the module.
type StdModule struct {
	*NativeModule
	out io.Writer
}

func (m *StdModule) setOutput(w io.Writer) { m.out = w }

func (m *StdModule) puts(args []vm.Value) (vm.Value, *vm.VMError) {
	fmt.Fprintln(m.out, joinValues(args, ", "))
	return vm.None(), nil
}

func (m *StdModule) print(args []vm.Value) (vm.Value, *vm.VMError) {
	fmt.Fprint(m.out, joinValues(args, ", "))
	return vm.None(), nil
}

func Std() *StdModule {
	s := &StdModule{NativeModule: NewNativeModule("Std"), out: os.Stdout}
	m := s.NativeModule

	m.Fn("type(value) -> String", stdType)
	m.Fn("len(value) -> Number", stdLen)
	m.Fn("first(value)", stdFirst)
	m.Fn("last(value)", stdLast)
	m.Fn("puts(values) -> None", s.puts)
	m.Fn("print(values) -> None", s.print)
	m.Fn("assert(condition, message) -> None", stdAssert)
	m.Fn("assert_eq(left, right) -> None", stdAssertEq)

	m.Ext("String.upcase() -> String", stringUnary(strings.ToUpper))
	m.Ext("String.downcase() -> String", stringUnary(strings.ToLower))
	m.Ext("String.trim() -> String", stringUnary(strings.TrimSpace))
	m.Ext("String.split(separator) -> List", stdStringSplit)
	m.Ext("String.contains(needle) -> Bool", stdStringContains)
	m.Ext("String.replace(old, new) -> String", stdStringReplace)
	m.Ext("List.join(separator) -> String", stdListJoin)
	m.Ext("List.sort() -> List", stdListSort)
	m.Ext("List.contains(needle) -> Bool", stdListContains)
	m.Ext("Map.keys() -> List", stdMapKeys)
	m.Ext("Map.values() -> List", stdMapValues)
	m.Ext("Number.abs() -> Number", stdNumberAbs)
	m.Ext("Number.floor() -> Number", numberRound(math.Floor))
	m.Ext("Number.ceil() -> Number", numberRound(math.Ceil))
	m.Ext("Number.round() -> Number", numberRound(math.Round))
	m.Ext("Any.to_s() -> String", stdToString)
	m.Ext("Any.clone()", stdClone)

	return s
}

func stdType(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("type", args, 1); err != nil {
		return vm.None(), err
	}
	return vm.StringValue(args[0].TypeName()), nil
}

func stdLen(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("len", args, 1); err != nil {
		return vm.None(), err
	}
	switch args[0].Kind {
	case vm.StringKind:
		return vm.IntValue(int64(len(args[0].AsString()))), nil
	case vm.ListKind:
		return vm.IntValue(int64(len(args[0].AsList()))), nil
	case vm.MapKind:
		return vm.IntValue(int64(args[0].AsMap().Len())), nil
	case vm.NoneKind:
		return vm.IntValue(0), nil
	default:
		return vm.None(), vm.Errorf(vm.TypeError, "len: %s has no length", args[0].TypeName())
	}
}

func stdFirst(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("first", args, 1); err != nil {
		return vm.None(), err
	}
	switch args[0].Kind {
	case vm.StringKind:
		s := args[0].AsString()
		if s == "" {
			return vm.None(), nil
		}
		return vm.StringValue(s[:1]), nil
	case vm.ListKind:
		l := args[0].AsList()
		if len(l) == 0 {
			return vm.None(), nil
		}
		return l[0], nil
	case vm.MapKind:
		keys := args[0].AsMap().Keys()
		if len(keys) == 0 {
			return vm.None(), nil
		}
		return keys[0], nil
	default:
		return args[0], nil
	}
}

func stdLast(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("last", args, 1); err != nil {
		return vm.None(), err
	}
	switch args[0].Kind {
	case vm.StringKind:
		s := args[0].AsString()
		if s == "" {
			return vm.None(), nil
		}
		return vm.StringValue(s[len(s)-1:]), nil
	case vm.ListKind:
		l := args[0].AsList()
		if len(l) == 0 {
			return vm.None(), nil
		}
		return l[len(l)-1], nil
	case vm.MapKind:
		keys := args[0].AsMap().Keys()
		if len(keys) == 0 {
			return vm.None(), nil
		}
		return keys[len(keys)-1], nil
	default:
		return args[0], nil
	}
}

func stdAssert(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := atLeastArgs("assert", args, 1); err != nil {
		return vm.None(), err
	}
	if args[0].ToBool() {
		return vm.None(), nil
	}
	if len(args) > 1 {
		return vm.None(), vm.Errorf(vm.RuntimeError, "assertion failed: %s", args[1])
	}
	return vm.None(), vm.Errorf(vm.RuntimeError, "assertion failed")
}

func stdAssertEq(args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("assert_eq", args, 2); err != nil {
		return vm.None(), err
	}
	if args[0].Equal(args[1]) {
		return vm.None(), nil
	}
	return vm.None(), vm.Errorf(vm.RuntimeError, "assertion failed: %s != %s", args[0], args[1])
}

func stringUnary(fn func(string) string) ExtensionFunction {
	return func(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
		return vm.StringValue(fn(this.AsString())), nil
	}
}

func stdStringSplit(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	sep, err := stringArg("split", args, 0)
	if err != nil {
		return vm.None(), err
	}
	parts := strings.Split(this.AsString(), sep)
	out := make([]vm.Value, len(parts))
	for i, p := range parts {
		out[i] = vm.StringValue(p)
	}
	return vm.ListValue(out), nil
}

func stdStringContains(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	needle, err := stringArg("contains", args, 0)
	if err != nil {
		return vm.None(), err
	}
	return vm.BoolValue(strings.Contains(this.AsString(), needle)), nil
}

func stdStringReplace(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	old, err := stringArg("replace", args, 0)
	if err != nil {
		return vm.None(), err
	}
	repl, err := stringArg("replace", args, 1)
	if err != nil {
		return vm.None(), err
	}
	return vm.StringValue(strings.ReplaceAll(this.AsString(), old, repl)), nil
}

func stdListJoin(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	sep, err := stringArg("join", args, 0)
	if err != nil {
		return vm.None(), err
	}
	return vm.StringValue(joinValues(this.AsList(), sep)), nil
}

func stdListSort(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	out := make([]vm.Value, len(this.AsList()))
	copy(out, this.AsList())
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].ToNumber()
		b, bok := out[j].ToNumber()
		if aok && bok {
			return a.ToFloat() < b.ToFloat()
		}
		return out[i].String() < out[j].String()
	})
	return vm.ListValue(out), nil
}

func stdListContains(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	if err := exactArgs("contains", args, 1); err != nil {
		return vm.None(), err
	}
	for _, elem := range this.AsList() {
		if elem.Equal(args[0]) {
			return vm.BoolValue(true), nil
		}
	}
	return vm.BoolValue(false), nil
}

func stdMapKeys(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	return vm.ListValue(this.AsMap().Keys()), nil
}

func stdMapValues(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	return vm.ListValue(this.AsMap().Values()), nil
}

func stdNumberAbs(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	n := this.AsNumber()
	if n.IsNegative() {
		return vm.NumberValue(n.Neg()), nil
	}
	return this, nil
}

func numberRound(fn func(float64) float64) ExtensionFunction {
	return func(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
		n := this.AsNumber()
		if n.Kind != vm.FloatKind {
			return this, nil
		}
		return vm.IntValue(int64(fn(n.Float()))), nil
	}
}

func stdToString(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	return vm.StringValue(this.String()), nil
}

func stdClone(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
	return this.Clone(), nil
}

func joinValues(values []vm.Value, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}
