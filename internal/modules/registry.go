package modules

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/funvibe/rigz/internal/vm"
)

// Function is a bare native function callable from scripts.
type Function func(args []vm.Value) (vm.Value, *vm.VMError)

// ExtensionFunction is a native method resolved by the receiver's runtime
// type.
type ExtensionFunction func(this vm.Value, args []vm.Value) (vm.Value, *vm.VMError)

// TraitFunction is one declared signature: `[Receiver.]name(params) -> Type`.
type TraitFunction struct {
	Name     string
	Receiver string
	Params   []string
	Returns  string
}

func (f TraitFunction) String() string {
	var sb strings.Builder
	if f.Receiver != "" {
		sb.WriteString(f.Receiver)
		sb.WriteByte('.')
	}
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(f.Params, ", "))
	sb.WriteByte(')')
	if f.Returns != "" {
		sb.WriteString(" -> ")
		sb.WriteString(f.Returns)
	}
	return sb.String()
}

// Trait is a named set of function signatures. Script `trait` declarations
// and module descriptors share this shape.
type Trait struct {
	Name      string
	Functions []TraitFunction
}

// Impl records a script `impl Trait [for Type]` block so the runtime can
// check its functions against the trait.
type Impl struct {
	Trait     string
	Target    string
	Functions []string
}

// Module is a named collection of native functions. Call handles bare
// functions, CallExtension handles receiver-typed methods.
type Module interface {
	Name() string
	Trait() Trait
	Call(fn string, args []vm.Value) (vm.Value, *vm.VMError)
	CallExtension(this vm.Value, fn string, args []vm.Value) (vm.Value, *vm.VMError)
}

// Registry resolves module and extension calls for the VM. Registration
// order matters: when two modules export the same bare name or the same
// receiver-typed method, the most recently registered one wins.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	bare    map[string]Module
	exts    map[string]map[string]Module
	traits  map[string]Trait
}

func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
		bare:    make(map[string]Module),
		exts:    make(map[string]map[string]Module),
		traits:  make(map[string]Trait),
	}
}

// Default builds a registry with every built-in module registered.
func Default() *Registry {
	r := NewRegistry()
	for _, m := range []Module{
		Std(), JSON(), UUID(), Date(), File(), HTTP(), RPC(),
	} {
		if err := r.Register(m); err != nil {
			// Built-in descriptors are static; a divergence is a
			// programming error, not a runtime condition.
			panic(err)
		}
	}
	return r
}

// Register adds a module, validating its implementation against its trait
// descriptor: every declared signature must be backed by a native function
// with the same receiver shape, and every native function must be declared.
func (r *Registry) Register(m Module) error {
	t := m.Trait()
	if v, ok := m.(interface {
		provides(name, receiver string) bool
		undeclared(t Trait) []string
	}); ok {
		for _, fn := range t.Functions {
			if !v.provides(fn.Name, fn.Receiver) {
				return fmt.Errorf("module %s declares %s but does not implement it", m.Name(), fn)
			}
		}
		if extra := v.undeclared(t); len(extra) > 0 {
			return fmt.Errorf("module %s implements undeclared functions: %s", m.Name(), strings.Join(extra, ", "))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name()] = m
	for _, fn := range t.Functions {
		if fn.Receiver == "" {
			r.bare[fn.Name] = m
			continue
		}
		byName := r.exts[fn.Receiver]
		if byName == nil {
			byName = make(map[string]Module)
			r.exts[fn.Receiver] = byName
		}
		byName[fn.Name] = m
	}
	return nil
}

// SetOutput redirects module-level printing to w so hosts capturing
// program output see it regardless of which call path a script took.
// Modules without an output stream are left alone.
func (r *Registry) SetOutput(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		if s, ok := m.(interface{ setOutput(io.Writer) }); ok {
			s.setOutput(w)
		}
	}
}

// DeclareTrait records a script-level trait. Redeclaring a name replaces
// the previous descriptor.
func (r *Registry) DeclareTrait(t Trait) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traits[t.Name] = t
}

// LookupTrait returns a declared trait by name.
func (r *Registry) LookupTrait(name string) (Trait, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traits[name]
	return t, ok
}

// CheckImpl verifies an impl block covers every function its trait
// declares.
func (r *Registry) CheckImpl(im Impl) error {
	t, ok := r.LookupTrait(im.Trait)
	if !ok {
		return fmt.Errorf("impl references unknown trait %s", im.Trait)
	}
	have := make(map[string]bool, len(im.Functions))
	for _, name := range im.Functions {
		have[name] = true
	}
	for _, fn := range t.Functions {
		if !have[fn.Name] {
			return fmt.Errorf("impl %s is missing %s", im.Trait, fn)
		}
	}
	return nil
}

// CallFunction resolves a CallModule instruction. An empty module name
// searches bare functions across all modules; unresolved names fail with
// UnknownFunction at call time.
func (r *Registry) CallFunction(module, function string, args []vm.Value) (vm.Value, error) {
	r.mu.RLock()
	var m Module
	if module != "" {
		m = r.modules[module]
	} else {
		m = r.bare[function]
	}
	r.mu.RUnlock()

	if m == nil {
		if module != "" {
			return vm.None(), vm.Errorf(vm.UnknownFunction, "unknown module %s", module)
		}
		return vm.None(), vm.Errorf(vm.UnknownFunction, "unknown function %s", function)
	}
	out, vmErr := m.Call(function, args)
	if vmErr != nil {
		return vm.None(), vmErr
	}
	return out, nil
}

// CallExtensionFunction resolves a CallExtension instruction. A method
// typed to the receiver's runtime type wins over a bare function of the
// same name; a bare function called this way gets the receiver prepended
// to its arguments.
func (r *Registry) CallExtensionFunction(module, function string, this vm.Value, args []vm.Value) (vm.Value, error) {
	if module != "" {
		r.mu.RLock()
		m := r.modules[module]
		r.mu.RUnlock()
		if m == nil {
			return vm.None(), vm.Errorf(vm.UnknownFunction, "unknown module %s", module)
		}
		out, vmErr := m.CallExtension(this, function, args)
		if vmErr != nil {
			return vm.None(), vmErr
		}
		return out, nil
	}

	r.mu.RLock()
	m := r.extensionFor(this.TypeName(), function)
	if m == nil {
		m = r.extensionFor("Any", function)
	}
	fallback := r.bare[function]
	r.mu.RUnlock()

	if m != nil {
		out, vmErr := m.CallExtension(this, function, args)
		if vmErr != nil {
			return vm.None(), vmErr
		}
		return out, nil
	}
	if fallback != nil {
		out, vmErr := fallback.Call(function, append([]vm.Value{this}, args...))
		if vmErr != nil {
			return vm.None(), vmErr
		}
		return out, nil
	}
	return vm.None(), vm.Errorf(vm.UnknownFunction, "no method %s on %s", function, this.TypeName())
}

func (r *Registry) extensionFor(receiver, function string) Module {
	if byName := r.exts[receiver]; byName != nil {
		return byName[function]
	}
	return nil
}

// ParseSignature parses one `[Receiver.]name(params) -> Type` descriptor
// line, the same shape script traits use.
func ParseSignature(line string) (TraitFunction, error) {
	var fn TraitFunction
	rest := strings.TrimSpace(line)

	if i := strings.Index(rest, "->"); i >= 0 {
		fn.Returns = strings.TrimSpace(rest[i+2:])
		rest = strings.TrimSpace(rest[:i])
	}

	open := strings.IndexByte(rest, '(')
	if open >= 0 {
		if !strings.HasSuffix(rest, ")") {
			return fn, fmt.Errorf("bad signature %q: unbalanced parens", line)
		}
		params := strings.TrimSpace(rest[open+1 : len(rest)-1])
		if params != "" {
			for _, p := range strings.Split(params, ",") {
				fn.Params = append(fn.Params, strings.TrimSpace(p))
			}
		}
		rest = rest[:open]
	}

	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		fn.Receiver = rest[:i]
		rest = rest[i+1:]
	}
	fn.Name = rest
	if fn.Name == "" {
		return fn, fmt.Errorf("bad signature %q: missing function name", line)
	}
	return fn, nil
}
