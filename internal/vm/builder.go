package vm

// Builder accumulates scopes and instructions as the parser walks source
// text. Registers are allocated from a single program-wide counter; the
// builder also tracks the register holding the most recent expression
// result, which is how direct emission chains operators without a tree.
type Builder struct {
	scopes []*Scope
	stack  []ScopeID
	next   Register
	last   Register
}

func NewBuilder() *Builder {
	b := &Builder{
		scopes: []*Scope{{ID: 0}},
		stack:  []ScopeID{0},
		next:   FirstFreeRegister,
		last:   NoneRegister,
	}
	return b
}

// NextRegister allocates a fresh register and marks it as the last result.
func (b *Builder) NextRegister() Register {
	r := b.next
	b.next++
	b.last = r
	return r
}

// LastRegister is the register holding the most recent expression result.
func (b *Builder) LastRegister() Register { return b.last }

// SetLast overrides the last-result register, used when an expression
// resolves to an existing register (a variable read, the none register).
func (b *Builder) SetLast(r Register) { b.last = r }

// CurrentScope returns the scope instructions are being appended to.
func (b *Builder) CurrentScope() *Scope {
	return b.scopes[b.stack[len(b.stack)-1]]
}

// Add appends an instruction to the current scope.
func (b *Builder) Add(in Instruction) {
	s := b.CurrentScope()
	s.Instructions = append(s.Instructions, in)
}

// LoadLiteral emits a Load unless the literal is covered by a reserved
// register: none lives in register 0 and the integer 1 in register 1.
func (b *Builder) LoadLiteral(v Value) Register {
	switch {
	case v.Kind == NoneKind:
		b.last = NoneRegister
		return NoneRegister
	case v.Kind == NumberKind && v.AsNumber().Kind == IntKind && v.AsNumber().IsOne():
		b.last = OneRegister
		return OneRegister
	}
	r := b.NextRegister()
	b.Add(Load{Register: r, Value: v})
	return r
}

// EnterScope opens a new scope and makes it current; instructions emitted
// until the matching ExitScope land there.
func (b *Builder) EnterScope(named string, args []string, lifecycle *Lifecycle) ScopeID {
	id := ScopeID(len(b.scopes))
	b.scopes = append(b.scopes, &Scope{
		ID:        id,
		Named:     named,
		Args:      args,
		Lifecycle: lifecycle,
	})
	b.stack = append(b.stack, id)
	return id
}

// ExitScope seals the current scope with a Ret of the last result (unless
// it already returns) and pops back to the enclosing scope.
func (b *Builder) ExitScope() ScopeID {
	id := b.stack[len(b.stack)-1]
	s := b.scopes[id]
	if n := len(s.Instructions); n == 0 {
		s.Instructions = append(s.Instructions, Ret{Register: NoneRegister})
	} else if _, ok := s.Instructions[n-1].(Ret); !ok {
		s.Instructions = append(s.Instructions, Ret{Register: b.last})
	}
	b.stack = b.stack[:len(b.stack)-1]
	return id
}

// Depth reports how many scopes are open, the entrypoint included.
func (b *Builder) Depth() int { return len(b.stack) }

// Build seals the program. The entrypoint gets a final Halt carrying the
// last expression result.
func (b *Builder) Build() *Program {
	entry := b.scopes[0]
	if n := len(entry.Instructions); n == 0 {
		entry.Instructions = append(entry.Instructions, Halt{Register: NoneRegister})
	} else if _, ok := entry.Instructions[n-1].(Halt); !ok {
		entry.Instructions = append(entry.Instructions, Halt{Register: b.last})
	}
	return &Program{Scopes: b.scopes}
}
