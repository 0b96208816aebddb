package modules

import (
	"errors"
	"testing"

	"github.com/funvibe/rigz/internal/vm"
)

func constFn(v vm.Value) Function {
	return func(args []vm.Value) (vm.Value, *vm.VMError) { return v, nil }
}

func constExt(v vm.Value) ExtensionFunction {
	return func(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) { return v, nil }
}

func errKind(t *testing.T, err error) vm.ErrorKind {
	t.Helper()
	var vmErr *vm.VMError
	if !errors.As(err, &vmErr) {
		t.Fatalf("expected *vm.VMError, got %T: %v", err, err)
	}
	return vmErr.Kind
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		line string
		want TraitFunction
	}{
		{"len(value) -> Number", TraitFunction{Name: "len", Params: []string{"value"}, Returns: "Number"}},
		{"now()", TraitFunction{Name: "now"}},
		{"String.split(separator) -> List", TraitFunction{Name: "split", Receiver: "String", Params: []string{"separator"}, Returns: "List"}},
		{"first(value)", TraitFunction{Name: "first", Params: []string{"value"}}},
		{"Any.to_s() -> String", TraitFunction{Name: "to_s", Receiver: "Any", Returns: "String"}},
	}
	for _, tt := range tests {
		got, err := ParseSignature(tt.line)
		if err != nil {
			t.Fatalf("ParseSignature(%q): %v", tt.line, err)
		}
		if got.Name != tt.want.Name || got.Receiver != tt.want.Receiver || got.Returns != tt.want.Returns {
			t.Fatalf("ParseSignature(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
		if len(got.Params) != len(tt.want.Params) {
			t.Fatalf("ParseSignature(%q) params = %v, want %v", tt.line, got.Params, tt.want.Params)
		}
	}
}

func TestParseSignatureErrors(t *testing.T) {
	for _, line := range []string{"", "(x) -> Y", "broken(x"} {
		if _, err := ParseSignature(line); err == nil {
			t.Fatalf("ParseSignature(%q) should fail", line)
		}
	}
}

func TestBareResolutionMostRecentWins(t *testing.T) {
	r := NewRegistry()
	first := NewNativeModule("First").Fn("greet() -> String", constFn(vm.StringValue("first")))
	second := NewNativeModule("Second").Fn("greet() -> String", constFn(vm.StringValue("second")))
	if err := r.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(second); err != nil {
		t.Fatal(err)
	}

	out, err := r.CallFunction("", "greet", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.AsString() != "second" {
		t.Fatalf("bare greet resolved to %q, want most recent", out.AsString())
	}

	// Named resolution still reaches the shadowed module.
	out, err = r.CallFunction("First", "greet", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.AsString() != "first" {
		t.Fatalf("First.greet = %q", out.AsString())
	}
}

func TestExtensionBeatsBareName(t *testing.T) {
	r := NewRegistry()
	m := NewNativeModule("M").
		Fn("size(value) -> Number", constFn(vm.IntValue(-1))).
		Ext("String.size() -> Number", constExt(vm.IntValue(42)))
	if err := r.Register(m); err != nil {
		t.Fatal(err)
	}

	out, err := r.CallExtensionFunction("", "size", vm.StringValue("abc"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(vm.IntValue(42)) {
		t.Fatalf("String.size resolved to %s, want the typed extension", out)
	}

	// A receiver with no typed method falls back to the bare function.
	out, err = r.CallExtensionFunction("", "size", vm.IntValue(7), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(vm.IntValue(-1)) {
		t.Fatalf("Number.size resolved to %s, want the bare fallback", out)
	}
}

func TestUnresolvedNamesAreUnknownFunction(t *testing.T) {
	r := NewRegistry()
	if _, err := r.CallFunction("", "missing", nil); errKind(t, err) != vm.UnknownFunction {
		t.Fatalf("bare miss: %v", err)
	}
	if _, err := r.CallFunction("Nope", "missing", nil); errKind(t, err) != vm.UnknownFunction {
		t.Fatalf("module miss: %v", err)
	}
	if _, err := r.CallExtensionFunction("", "missing", vm.IntValue(1), nil); errKind(t, err) != vm.UnknownFunction {
		t.Fatalf("extension miss: %v", err)
	}
}

func TestRegisterRejectsBadSignature(t *testing.T) {
	m := NewNativeModule("Broken").Fn("(x) -> Y", constFn(vm.None()))
	if err := NewRegistry().Register(m); err == nil {
		t.Fatal("expected registration to fail on a malformed descriptor")
	}
}

func TestCheckImpl(t *testing.T) {
	r := NewRegistry()
	r.DeclareTrait(Trait{
		Name: "Shape",
		Functions: []TraitFunction{
			{Name: "area", Returns: "Number"},
			{Name: "name", Returns: "String"},
		},
	})

	if err := r.CheckImpl(Impl{Trait: "Shape", Functions: []string{"area", "name"}}); err != nil {
		t.Fatalf("complete impl rejected: %v", err)
	}
	if err := r.CheckImpl(Impl{Trait: "Shape", Functions: []string{"area"}}); err == nil {
		t.Fatal("partial impl accepted")
	}
	if err := r.CheckImpl(Impl{Trait: "Nope"}); err == nil {
		t.Fatal("impl of unknown trait accepted")
	}
}

func TestDefaultRegistryModules(t *testing.T) {
	r := Default()
	for _, name := range []string{"Std", "JSON", "UUID", "Date", "File", "HTTP", "RPC"} {
		if _, ok := r.modules[name]; !ok {
			t.Fatalf("default registry is missing %s", name)
		}
	}
}
