package modules

import (
	"github.com/funvibe/rigz/internal/vm"
)

// NativeModule is the standard Module implementation: Go functions keyed
// by the parsed descriptor signatures they are registered under.
type NativeModule struct {
	name  string
	trait Trait
	funcs map[string]Function
	exts  map[string]map[string]ExtensionFunction
	err   error
}

func NewNativeModule(name string) *NativeModule {
	return &NativeModule{
		name:  name,
		trait: Trait{Name: name},
		funcs: make(map[string]Function),
		exts:  make(map[string]map[string]ExtensionFunction),
	}
}

// Fn registers a bare function under a descriptor line like
// `len(value) -> Number`.
func (m *NativeModule) Fn(sig string, impl Function) *NativeModule {
	fn, err := ParseSignature(sig)
	if err != nil {
		m.fail(err)
		return m
	}
	if fn.Receiver != "" {
		return m.Ext(sig, func(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError) {
			return impl(append([]vm.Value{this}, args...))
		})
	}
	m.trait.Functions = append(m.trait.Functions, fn)
	m.funcs[fn.Name] = impl
	return m
}

// Ext registers a receiver-typed method under a descriptor line like
// `String.upcase() -> String`. The receiver `Any` matches every type.
func (m *NativeModule) Ext(sig string, impl ExtensionFunction) *NativeModule {
	fn, err := ParseSignature(sig)
	if err != nil {
		m.fail(err)
		return m
	}
	if fn.Receiver == "" {
		m.fail(errBadReceiver(m.name, sig))
		return m
	}
	m.trait.Functions = append(m.trait.Functions, fn)
	byName := m.exts[fn.Receiver]
	if byName == nil {
		byName = make(map[string]ExtensionFunction)
		m.exts[fn.Receiver] = byName
	}
	byName[fn.Name] = impl
	return m
}

func (m *NativeModule) Name() string { return m.name }
func (m *NativeModule) Trait() Trait { return m.trait }

func (m *NativeModule) Call(fn string, args []vm.Value) (vm.Value, *vm.VMError) {
	if impl, ok := m.funcs[fn]; ok {
		return impl(args)
	}
	return vm.None(), vm.Errorf(vm.UnknownFunction, "%s has no function %s", m.name, fn)
}

func (m *NativeModule) CallExtension(this vm.Value, fn string, args []vm.Value) (vm.Value, *vm.VMError) {
	if byName := m.exts[this.TypeName()]; byName != nil {
		if impl, ok := byName[fn]; ok {
			return impl(this, args)
		}
	}
	if byName := m.exts["Any"]; byName != nil {
		if impl, ok := byName[fn]; ok {
			return impl(this, args)
		}
	}
	if impl, ok := m.funcs[fn]; ok {
		return impl(append([]vm.Value{this}, args...))
	}
	return vm.None(), vm.Errorf(vm.UnknownFunction, "%s has no method %s for %s", m.name, fn, this.TypeName())
}

func (m *NativeModule) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *NativeModule) provides(name, receiver string) bool {
	if receiver == "" {
		_, ok := m.funcs[name]
		return ok
	}
	byName := m.exts[receiver]
	if byName == nil {
		return false
	}
	_, ok := byName[name]
	return ok
}

func (m *NativeModule) undeclared(t Trait) []string {
	declared := make(map[string]bool, len(t.Functions))
	for _, fn := range t.Functions {
		if fn.Receiver == "" {
			declared[fn.Name] = true
		} else {
			declared[fn.Receiver+"."+fn.Name] = true
		}
	}
	var extra []string
	for name := range m.funcs {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	for receiver, byName := range m.exts {
		for name := range byName {
			if !declared[receiver+"."+name] {
				extra = append(extra, receiver+"."+name)
			}
		}
	}
	if m.err != nil {
		extra = append(extra, m.err.Error())
	}
	return extra
}

type badReceiverError struct {
	module, sig string
}

func errBadReceiver(module, sig string) error {
	return badReceiverError{module: module, sig: sig}
}

func (e badReceiverError) Error() string {
	return "module " + e.module + ": extension signature " + e.sig + " has no receiver type"
}
