package vm

// Variable is a frame-local binding. Immutable bindings point straight at a
// register; mutable ones go through an arena cell so aliases share writes.
type Variable struct {
	Register Register
	Mutable  bool
	Cell     Handle
}

// CallFrame tracks one live scope activation: where we are, where the
// result goes, and the name bindings introduced so far. Lookup walks the
// parent chain, giving lexical scoping across Call boundaries.
type CallFrame struct {
	Scope     ScopeID
	PC        int
	Output    Register
	Variables map[string]Variable
	Parent    *CallFrame
}

func NewFrame(scope ScopeID, output Register, parent *CallFrame) *CallFrame {
	return &CallFrame{
		Scope:     scope,
		Output:    output,
		Variables: make(map[string]Variable),
		Parent:    parent,
	}
}

// Lookup resolves a name in this frame or any ancestor.
func (f *CallFrame) Lookup(name string) (Variable, bool) {
	for cur := f; cur != nil; cur = cur.Parent {
		if v, ok := cur.Variables[name]; ok {
			return v, true
		}
	}
	return Variable{}, false
}

// Bind introduces a binding in this frame. Shadowing a parent's binding is
// allowed; rebinding within the same frame is rejected by the parser before
// execution, so Bind simply overwrites.
func (f *CallFrame) Bind(name string, v Variable) {
	f.Variables[name] = v
}

// Depth counts frames up to the root, used for the call-depth guard.
func (f *CallFrame) Depth() int {
	n := 0
	for cur := f; cur != nil; cur = cur.Parent {
		n++
	}
	return n
}
