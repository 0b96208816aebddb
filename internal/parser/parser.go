// Package parser turns rigz source into executable programs by direct
// emission: as each syntactic unit completes, the matching instructions are
// appended to the current scope. No syntax tree is built or retained.
package parser

import (
	"fmt"

	"github.com/funvibe/rigz/internal/lexer"
	"github.com/funvibe/rigz/internal/modules"
	"github.com/funvibe/rigz/internal/token"
	"github.com/funvibe/rigz/internal/vm"
)

// Result is everything a parse produces: the program plus the declarations
// the runtime registers before execution.
type Result struct {
	Program *vm.Program
	Traits  []modules.Trait
	Impls   []modules.Impl
	Objects []ObjectDecl
}

// ObjectDecl records an `object` block: a named type with ordered fields
// and optional literal defaults.
type ObjectDecl struct {
	Name     string
	Fields   []string
	Defaults map[string]vm.Value
}

type funcDef struct {
	scope    vm.ScopeID
	args     []string
	receiver string
}

// scopeInfo tracks the bindings declared in one open scope, so rebinding an
// immutable name is rejected while still parsing.
type scopeInfo struct {
	bindings map[string]bool // name -> mutable
}

type Parser struct {
	l    *lexer.Lexer
	cur  token.Token
	peek token.Token

	b      *vm.Builder
	scopes []*scopeInfo

	functions  map[string]funcDef
	extensions map[string]funcDef // most recent declaration wins

	traits  []modules.Trait
	impls   []modules.Impl
	objects []ObjectDecl

	pendingLifecycle *vm.Lifecycle

	errors []*vm.VMError
}

func New(input string) *Parser {
	p := &Parser{
		l:          lexer.New(input),
		b:          vm.NewBuilder(),
		functions:  make(map[string]funcDef),
		extensions: make(map[string]funcDef),
	}
	p.pushScope()
	p.advance()
	p.advance()
	return p
}

// Parse consumes the whole input. The returned program is usable only when
// the error is nil.
func Parse(input string) (*Result, error) {
	p := New(input)
	return p.Run()
}

func (p *Parser) Run() (*Result, error) {
	for p.cur.Type != token.EOF {
		p.parseStatement()
		if len(p.errors) > 0 {
			break
		}
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return &Result{
		Program: p.b.Build(),
		Traits:  p.traits,
		Impls:   p.impls,
		Objects: p.objects,
	}, nil
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) expect(t token.Type) bool {
	if p.cur.Type != t {
		p.errorf("expected %s, found %s", t, p.cur)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) errorf(format string, args ...any) {
	e := &vm.VMError{
		Kind:    vm.ParseError,
		Message: fmt.Sprintf(format, args...),
		Line:    p.cur.Line,
		Column:  p.cur.Column,
	}
	p.errors = append(p.errors, e)
}

func (p *Parser) skipNewlines() {
	for p.cur.Type == token.NEWLINE || p.cur.Type == token.SEMI {
		p.advance()
	}
}

func (p *Parser) pushScope() {
	p.scopes = append(p.scopes, &scopeInfo{bindings: make(map[string]bool)})
}

func (p *Parser) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *Parser) currentBindings() *scopeInfo {
	return p.scopes[len(p.scopes)-1]
}

// lookupBinding walks the open scopes outward.
func (p *Parser) lookupBinding(name string) (mutable, found bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if m, ok := p.scopes[i].bindings[name]; ok {
			return m, true
		}
	}
	return false, false
}

func (p *Parser) parseStatement() {
	p.skipNewlines()
	switch p.cur.Type {
	case token.EOF:
		return
	case token.LET:
		p.parseLet(false)
	case token.MUT:
		p.parseLet(true)
	case token.FN:
		p.parseFn()
	case token.AT:
		p.parseLifecycleTag()
	case token.TRAIT:
		p.parseTrait()
	case token.IMPL:
		p.parseImpl()
	case token.OBJECT:
		p.parseObject()
	case token.IF, token.UNLESS:
		p.parseConditional()
		p.endStatement()
	case token.TRY:
		p.parseTry()
		p.endStatement()
	case token.RAISE:
		mark := len(p.b.CurrentScope().Instructions)
		p.advance()
		r := p.parseExpression()
		p.b.Add(vm.Raise{Register: r})
		p.finishStatement(mark, vm.NoneRegister)
	case token.EXIT:
		mark := len(p.b.CurrentScope().Instructions)
		p.advance()
		r := vm.NoneRegister
		if p.startsExpression() {
			r = p.parseExpression()
		}
		p.b.Add(vm.Halt{Register: r})
		p.finishStatement(mark, vm.NoneRegister)
	case token.IDENT:
		switch p.cur.Literal {
		case "puts":
			p.parsePuts()
			return
		case "log":
			p.parseLog()
			return
		}
		if p.peek.Type == token.ASSIGN {
			mark := len(p.b.CurrentScope().Instructions)
			p.parseAssignment()
			p.finishStatement(mark, p.b.LastRegister())
			return
		}
		p.parseExpressionStatement()
	default:
		p.parseExpressionStatement()
	}
}

// finishStatement applies a trailing guard if present, then expects a
// statement boundary.
func (p *Parser) finishStatement(mark int, result vm.Register) {
	if p.cur.Type == token.IF || p.cur.Type == token.UNLESS {
		p.parseTrailingGuard(mark, result)
	}
	p.endStatement()
}

// endStatement expects a statement boundary.
func (p *Parser) endStatement() {
	switch p.cur.Type {
	case token.NEWLINE, token.SEMI:
		p.advance()
	case token.EOF, token.END, token.ELSE, token.CATCH:
	default:
		p.errorf("unexpected %s after statement", p.cur)
	}
}

func (p *Parser) parseLet(mutable bool) {
	p.advance()
	if p.cur.Type != token.IDENT {
		p.errorf("expected identifier after let/mut, found %s", p.cur)
		return
	}
	name := p.cur.Literal
	p.advance()
	if !p.expect(token.ASSIGN) {
		return
	}
	r := p.parseExpression()
	if mutable {
		p.b.Add(vm.LoadMut{Name: name, Register: r})
	} else {
		p.b.Add(vm.LoadLet{Name: name, Register: r})
	}
	p.currentBindings().bindings[name] = mutable
	p.endStatement()
}

// parseAssignment handles `name = expr`. Rebinding an immutable name is a
// parse error, not a runtime one.
func (p *Parser) parseAssignment() {
	name := p.cur.Literal
	mutable, found := p.lookupBinding(name)
	if !found {
		p.errorf("cannot assign to undeclared variable %s", name)
		return
	}
	if !mutable {
		p.errorf("cannot reassign immutable variable %s, use mut", name)
		return
	}
	p.advance() // name
	p.advance() // =
	r := p.parseExpression()
	alias := p.b.NextRegister()
	p.b.Add(vm.GetMutableVariable{Name: name, Output: alias})
	p.b.Add(vm.Copy{From: r, To: alias})
	p.b.SetLast(alias)
}

// parseExpressionStatement parses one expression, converting a trailing
// `= value` into an attribute write and applying trailing guards.
func (p *Parser) parseExpressionStatement() {
	scope := p.b.CurrentScope()
	mark := len(scope.Instructions)
	r := p.parseExpression()

	if p.cur.Type == token.ASSIGN {
		p.parseAttributeWrite()
		p.endStatement()
		return
	}
	if p.cur.Type == token.IF || p.cur.Type == token.UNLESS {
		p.parseTrailingGuard(mark, r)
	}
	p.endStatement()
}

// parseAttributeWrite rewrites the just-emitted InstanceGet into an
// InstanceSet carrying the right-hand side.
func (p *Parser) parseAttributeWrite() {
	scope := p.b.CurrentScope()
	n := len(scope.Instructions)
	get, ok := scope.Instructions[n-1].(vm.InstanceGet)
	if !ok {
		p.errorf("left side of = is not assignable")
		return
	}
	scope.Instructions = scope.Instructions[:n-1]
	p.advance() // =
	value := p.parseExpression()
	p.b.Add(vm.InstanceSet{Source: get.Source, Attr: get.Attr, Value: value})
	p.b.SetLast(get.Source)
}

// parseTrailingGuard moves the statement's already-emitted instructions
// into a fresh scope and wraps them in If/Unless on the guard condition.
func (p *Parser) parseTrailingGuard(mark int, result vm.Register) {
	unless := p.cur.Type == token.UNLESS
	p.advance()

	scope := p.b.CurrentScope()
	body := make([]vm.Instruction, len(scope.Instructions)-mark)
	copy(body, scope.Instructions[mark:])
	scope.Instructions = scope.Instructions[:mark]

	cond := p.parseExpression()

	p.pushScope()
	id := p.b.EnterScope("", nil, nil)
	guarded := p.b.CurrentScope()
	guarded.Instructions = append(guarded.Instructions, body...)
	p.b.SetLast(result)
	p.b.ExitScope()
	p.popScope()

	out := p.b.NextRegister()
	if unless {
		p.b.Add(vm.Unless{Truthy: cond, Scope: id, Output: out})
	} else {
		p.b.Add(vm.If{Truthy: cond, Scope: id, Output: out})
	}
	p.b.SetLast(out)
}

// parseConditional handles statement and expression forms of if/unless
// blocks, returning the output register.
func (p *Parser) parseConditional() vm.Register {
	unless := p.cur.Type == token.UNLESS
	p.advance()
	cond := p.parseExpression()
	p.skipNewlines()

	p.pushScope()
	bodyID := p.b.EnterScope("", nil, nil)
	p.parseBlockUntil(token.END, token.ELSE)
	p.b.ExitScope()
	p.popScope()

	out := p.b.NextRegister()
	if p.cur.Type == token.ELSE {
		p.advance()
		p.skipNewlines()
		p.pushScope()
		elseID := p.b.EnterScope("", nil, nil)
		p.parseBlockUntil(token.END)
		p.b.ExitScope()
		p.popScope()
		p.expect(token.END)
		if unless {
			p.b.Add(vm.IfElse{Truthy: cond, IfScope: elseID, ElseScope: bodyID, Output: out})
		} else {
			p.b.Add(vm.IfElse{Truthy: cond, IfScope: bodyID, ElseScope: elseID, Output: out})
		}
	} else {
		p.expect(token.END)
		if unless {
			p.b.Add(vm.Unless{Truthy: cond, Scope: bodyID, Output: out})
		} else {
			p.b.Add(vm.If{Truthy: cond, Scope: bodyID, Output: out})
		}
	}
	p.b.SetLast(out)
	return out
}

// parseTry emits a protected region. The catch body becomes its own scope,
// entered only when an instruction inside the region faults.
func (p *Parser) parseTry() vm.Register {
	p.advance() // try
	block := false
	if p.cur.Type == token.DO {
		block = true
		p.advance()
		p.skipNewlines()
	}

	out := p.b.NextRegister()
	scope := p.b.CurrentScope()
	tryIndex := len(scope.Instructions)
	p.b.Add(vm.TryStart{CatchScope: -1, Output: out})

	if block {
		p.pushScope()
		p.parseBlockStatementsUntil(token.CATCH, token.END)
		p.popScope()
		p.b.Add(vm.Copy{From: p.b.LastRegister(), To: out})
	} else if p.cur.Type == token.RAISE {
		p.advance()
		r := p.parseExpression()
		p.b.Add(vm.Raise{Register: r})
		p.b.Add(vm.Copy{From: vm.NoneRegister, To: out})
	} else {
		// Single-expression form: `try expr`, optional catch on the
		// next line.
		r := p.parseExpression()
		p.b.Add(vm.Copy{From: r, To: out})
	}
	p.b.Add(vm.TryEnd{})

	if !block && p.cur.Type == token.NEWLINE && p.peek.Type == token.CATCH {
		p.advance()
	}

	binding := ""
	catchID := vm.ScopeID(-1)
	if p.cur.Type == token.CATCH {
		p.advance()
		if p.cur.Type == token.BITOR {
			p.advance()
			if p.cur.Type != token.IDENT {
				p.errorf("expected catch binding, found %s", p.cur)
				return out
			}
			binding = p.cur.Literal
			p.advance()
			if !p.expect(token.BITOR) {
				return out
			}
		}
		p.skipNewlines()
		p.pushScope()
		if binding != "" {
			p.currentBindings().bindings[binding] = false
		}
		catchID = p.b.EnterScope("catch", nil, nil)
		p.parseBlockUntil(token.END)
		p.b.ExitScope()
		p.popScope()
		p.expect(token.END)
	} else {
		// try without catch yields the error value itself, so callers
		// can inspect or propagate it.
		binding = "error"
		p.pushScope()
		p.currentBindings().bindings[binding] = false
		catchID = p.b.EnterScope("catch", nil, nil)
		errReg := p.b.NextRegister()
		p.b.Add(vm.GetVariable{Name: binding, Output: errReg})
		p.b.SetLast(errReg)
		p.b.ExitScope()
		p.popScope()
		if block {
			p.expect(token.END)
		}
	}

	scope.Instructions[tryIndex] = vm.TryStart{CatchScope: catchID, Binding: binding, Output: out}
	p.b.SetLast(out)
	return out
}

// parseBlockUntil parses statements up to (not consuming) a terminator.
func (p *Parser) parseBlockUntil(terminators ...token.Type) {
	p.parseBlockStatementsUntil(terminators...)
}

func (p *Parser) parseBlockStatementsUntil(terminators ...token.Type) {
	for {
		p.skipNewlines()
		if p.cur.Type == token.EOF {
			p.errorf("unexpected end of input, expected %s", terminators[0])
			return
		}
		for _, t := range terminators {
			if p.cur.Type == t {
				return
			}
		}
		p.parseStatement()
		if len(p.errors) > 0 {
			return
		}
	}
}

// parseLifecycleTag reads @test, @memo, or @on("event") ahead of a fn or
// do block.
func (p *Parser) parseLifecycleTag() {
	p.advance() // @
	if p.cur.Type != token.IDENT {
		p.errorf("expected lifecycle name after @, found %s", p.cur)
		return
	}
	name := p.cur.Literal
	p.advance()
	lc := &vm.Lifecycle{}
	switch name {
	case "test":
		lc.Kind = vm.LifecycleTest
	case "memo":
		lc.Kind = vm.LifecycleMemo
	case "on":
		lc.Kind = vm.LifecycleOn
		if !p.expect(token.LPAREN) {
			return
		}
		if p.cur.Type != token.STRING {
			p.errorf("expected event name, found %s", p.cur)
			return
		}
		lc.Event = p.cur.Literal
		p.advance()
		if !p.expect(token.RPAREN) {
			return
		}
	default:
		p.errorf("unknown lifecycle @%s", name)
		return
	}
	p.pendingLifecycle = lc
	p.skipNewlines()
	if p.cur.Type != token.FN && p.cur.Type != token.DO {
		p.errorf("@%s must be followed by fn or do", name)
	}
}

func (p *Parser) takeLifecycle() *vm.Lifecycle {
	lc := p.pendingLifecycle
	p.pendingLifecycle = nil
	return lc
}

// parseFn declares a function or extension method. Bodies open their own
// scope; declarations emit nothing into the enclosing scope.
func (p *Parser) parseFn() {
	p.advance() // fn
	receiver := ""
	if p.cur.Type == token.TYPE_IDENT && p.peek.Type == token.PERIOD {
		receiver = p.cur.Literal
		p.advance()
		p.advance()
	}
	if p.cur.Type != token.IDENT {
		p.errorf("expected function name, found %s", p.cur)
		return
	}
	name := p.cur.Literal
	p.advance()

	var args []string
	if receiver != "" {
		args = append(args, "self")
	}
	if p.cur.Type == token.LPAREN {
		p.advance()
		for p.cur.Type != token.RPAREN {
			if p.cur.Type != token.IDENT {
				p.errorf("expected parameter name, found %s", p.cur)
				return
			}
			args = append(args, p.cur.Literal)
			p.advance()
			if p.cur.Type == token.COMMA {
				p.advance()
			}
		}
		p.advance() // )
	}
	p.skipNewlines()

	p.pushScope()
	for _, a := range args {
		p.currentBindings().bindings[a] = false
	}
	scopeName := name
	if receiver != "" {
		scopeName = receiver + "." + name
	}
	id := p.b.EnterScope(scopeName, args, p.takeLifecycle())
	p.parseBlockUntil(token.END)
	p.b.ExitScope()
	p.popScope()
	p.expect(token.END)

	def := funcDef{scope: id, args: args, receiver: receiver}
	if receiver != "" {
		p.extensions[name] = def
	} else {
		p.functions[name] = def
	}
}

// parseTrait collects a trait declaration: a named list of function
// signatures the registry validates implementations against.
func (p *Parser) parseTrait() {
	p.advance() // trait
	if p.cur.Type != token.TYPE_IDENT {
		p.errorf("expected trait name, found %s", p.cur)
		return
	}
	t := modules.Trait{Name: p.cur.Literal}
	p.advance()
	p.skipNewlines()
	for p.cur.Type == token.FN {
		p.advance()
		receiver := ""
		if p.cur.Type == token.TYPE_IDENT && p.peek.Type == token.PERIOD {
			receiver = p.cur.Literal
			p.advance()
			p.advance()
		}
		if p.cur.Type != token.IDENT {
			p.errorf("expected function name in trait, found %s", p.cur)
			return
		}
		fn := modules.TraitFunction{Name: p.cur.Literal, Receiver: receiver}
		p.advance()
		if p.cur.Type == token.LPAREN {
			p.advance()
			for p.cur.Type != token.RPAREN {
				if p.cur.Type != token.IDENT {
					p.errorf("expected parameter name, found %s", p.cur)
					return
				}
				fn.Params = append(fn.Params, p.cur.Literal)
				p.advance()
				if p.cur.Type == token.COMMA {
					p.advance()
				}
			}
			p.advance()
		}
		if p.cur.Type == token.ARROW {
			p.advance()
			if p.cur.Type != token.TYPE_IDENT {
				p.errorf("expected return type, found %s", p.cur)
				return
			}
			fn.Returns = p.cur.Literal
			p.advance()
		}
		t.Functions = append(t.Functions, fn)
		p.skipNewlines()
	}
	p.expect(token.END)
	p.traits = append(p.traits, t)
}

// parseImpl parses `impl Trait [for Type]` with interpreted function
// bodies. The functions register like top-level declarations; the impl
// record lets the runtime check them against the trait.
func (p *Parser) parseImpl() {
	p.advance() // impl
	if p.cur.Type != token.TYPE_IDENT {
		p.errorf("expected trait name after impl, found %s", p.cur)
		return
	}
	im := modules.Impl{Trait: p.cur.Literal}
	p.advance()
	if p.cur.Type == token.FOR {
		p.advance()
		if p.cur.Type != token.TYPE_IDENT {
			p.errorf("expected type name after for, found %s", p.cur)
			return
		}
		im.Target = p.cur.Literal
		p.advance()
	}
	p.skipNewlines()
	for p.cur.Type == token.FN {
		nameTok := p.peek
		p.parseFn()
		if len(p.errors) > 0 {
			return
		}
		im.Functions = append(im.Functions, nameTok.Literal)
		p.skipNewlines()
	}
	p.expect(token.END)
	p.impls = append(p.impls, im)
}

// parseObject records an object type: `object Name` with one field per
// line, optionally defaulted to a literal.
func (p *Parser) parseObject() {
	p.advance() // object
	if p.cur.Type != token.TYPE_IDENT {
		p.errorf("expected object name, found %s", p.cur)
		return
	}
	decl := ObjectDecl{Name: p.cur.Literal, Defaults: make(map[string]vm.Value)}
	p.advance()
	p.skipNewlines()
	for p.cur.Type == token.IDENT {
		field := p.cur.Literal
		decl.Fields = append(decl.Fields, field)
		p.advance()
		if p.cur.Type == token.ASSIGN {
			p.advance()
			lit, ok := p.literalValue()
			if !ok {
				p.errorf("object field default must be a literal")
				return
			}
			decl.Defaults[field] = lit
		}
		if p.cur.Type == token.COMMA {
			p.advance()
		}
		p.skipNewlines()
	}
	p.expect(token.END)
	p.objects = append(p.objects, decl)
}

func (p *Parser) parsePuts() {
	mark := len(p.b.CurrentScope().Instructions)
	p.advance() // puts
	var args []vm.Register
	if p.startsExpression() {
		args = append(args, p.parseExpression())
		for p.cur.Type == token.COMMA {
			p.advance()
			args = append(args, p.parseExpression())
		}
	}
	p.b.Add(vm.Puts{Args: args})
	p.b.SetLast(vm.NoneRegister)
	p.finishStatement(mark, vm.NoneRegister)
}

// parseLog reads `log :level, 'template', args...`.
func (p *Parser) parseLog() {
	mark := len(p.b.CurrentScope().Instructions)
	p.advance() // log
	if p.cur.Type != token.SYMBOL {
		p.errorf("expected log level symbol, found %s", p.cur)
		return
	}
	level, ok := vm.ParseLogLevel(p.cur.Literal)
	if !ok {
		p.errorf("unknown log level :%s", p.cur.Literal)
		return
	}
	p.advance()
	if !p.expect(token.COMMA) {
		return
	}
	if p.cur.Type != token.STRING {
		p.errorf("expected log template, found %s", p.cur)
		return
	}
	template := p.cur.Literal
	p.advance()
	var args []vm.Register
	for p.cur.Type == token.COMMA {
		p.advance()
		args = append(args, p.parseExpression())
	}
	p.b.Add(vm.Log{Level: level, Template: template, Args: args})
	p.b.SetLast(vm.NoneRegister)
	p.finishStatement(mark, vm.NoneRegister)
}

// objectDecl finds the most recent object declaration with the name.
func (p *Parser) objectDecl(name string) (ObjectDecl, bool) {
	for i := len(p.objects) - 1; i >= 0; i-- {
		if p.objects[i].Name == name {
			return p.objects[i], true
		}
	}
	return ObjectDecl{}, false
}

// literalValue consumes a literal token into a Value, for object defaults.
func (p *Parser) literalValue() (vm.Value, bool) {
	switch p.cur.Type {
	case token.INT, token.UINT, token.FLOAT:
		n, err := vm.ParseNumber(p.cur.Literal)
		if err != nil {
			return vm.None(), false
		}
		p.advance()
		return vm.NumberValue(n), true
	case token.STRING, token.SYMBOL:
		v := vm.StringValue(p.cur.Literal)
		p.advance()
		return v, true
	case token.TRUE:
		p.advance()
		return vm.BoolValue(true), true
	case token.FALSE:
		p.advance()
		return vm.BoolValue(false), true
	case token.NONE:
		p.advance()
		return vm.None(), true
	default:
		return vm.None(), false
	}
}
