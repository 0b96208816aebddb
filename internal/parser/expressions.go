package parser

import (
	"github.com/funvibe/rigz/internal/token"
	"github.com/funvibe/rigz/internal/vm"
)

var binaryOps = map[token.Type]vm.BinaryOp{
	token.PLUS:    vm.OpAdd,
	token.MINUS:   vm.OpSub,
	token.STAR:    vm.OpMul,
	token.SLASH:   vm.OpDiv,
	token.PERCENT: vm.OpRem,
	token.SHL:     vm.OpShl,
	token.SHR:     vm.OpShr,
	token.AND:     vm.OpAnd,
	token.OR:      vm.OpOr,
	token.XOR:     vm.OpXor,
	token.BITAND:  vm.OpBitAnd,
	token.BITOR:   vm.OpBitOr,
	token.BITXOR:  vm.OpBitXor,
	token.EQ:      vm.OpEq,
	token.NEQ:     vm.OpNeq,
}

// parseExpression emits an expression and returns the register holding its
// result. There is no precedence climbing: operators chain strictly in
// textual order, so 1 + 2 * 3 evaluates as (1 + 2) * 3.
func (p *Parser) parseExpression() vm.Register {
	lhs := p.parseOperand()
	for {
		if op, ok := binaryOps[p.cur.Type]; ok {
			p.advance()
			rhs := p.parseOperand()
			out := p.b.NextRegister()
			p.b.Add(vm.Binary{Op: op, Lhs: lhs, Rhs: rhs, Output: out})
			lhs = out
			continue
		}
		if p.cur.Type == token.AS {
			p.advance()
			if p.cur.Type != token.TYPE_IDENT {
				p.errorf("expected type name after as, found %s", p.cur)
				return lhs
			}
			target := p.cur.Literal
			p.advance()
			out := p.b.NextRegister()
			p.b.Add(vm.Cast{From: lhs, Type: target, Output: out})
			lhs = out
			continue
		}
		break
	}
	p.b.SetLast(lhs)
	return lhs
}

// parseOperand handles prefix operators and postfix chains around a
// primary.
func (p *Parser) parseOperand() vm.Register {
	switch p.cur.Type {
	case token.NOT:
		p.advance()
		from := p.parseOperand()
		out := p.b.NextRegister()
		p.b.Add(vm.Unary{Op: vm.OpNot, From: from, Output: out})
		return out
	case token.MINUS:
		p.advance()
		from := p.parseOperand()
		out := p.b.NextRegister()
		p.b.Add(vm.Unary{Op: vm.OpNeg, From: from, Output: out})
		return out
	case token.REV:
		p.advance()
		from := p.parseOperand()
		out := p.b.NextRegister()
		p.b.Add(vm.Unary{Op: vm.OpRev, From: from, Output: out})
		return out
	}
	r := p.parsePrimary()
	return p.parsePostfix(r)
}

// parsePostfix chains attribute reads, indexing, and method calls.
func (p *Parser) parsePostfix(r vm.Register) vm.Register {
	for {
		switch p.cur.Type {
		case token.PERIOD:
			p.advance()
			if p.cur.Type != token.IDENT {
				p.errorf("expected attribute name, found %s", p.cur)
				return r
			}
			name := p.cur.Literal
			p.advance()
			if p.cur.Type == token.LPAREN {
				r = p.emitMethodCall(r, name)
				continue
			}
			attr := p.b.NextRegister()
			p.b.Add(vm.Load{Register: attr, Value: vm.StringValue(name)})
			out := p.b.NextRegister()
			p.b.Add(vm.InstanceGet{Source: r, Attr: attr, Output: out})
			r = out
		case token.LBRACKET:
			p.advance()
			attr := p.parseExpression()
			if !p.expect(token.RBRACKET) {
				return r
			}
			out := p.b.NextRegister()
			p.b.Add(vm.InstanceGet{Source: r, Attr: attr, Output: out})
			r = out
		default:
			return r
		}
	}
}

// emitMethodCall dispatches value.method(args). A declared extension wins;
// anything else goes to the module registry, resolved by the receiver's
// runtime type.
func (p *Parser) emitMethodCall(this vm.Register, name string) vm.Register {
	args := p.parseParenArgs()
	out := p.b.NextRegister()
	if def, ok := p.extensions[name]; ok {
		callArgs := append([]vm.Register{this}, args...)
		p.b.Add(vm.Call{Scope: def.scope, Args: callArgs, Output: out})
		return out
	}
	p.b.Add(vm.CallExtension{Function: name, This: this, Args: args, Output: out})
	return out
}

func (p *Parser) parseParenArgs() []vm.Register {
	var args []vm.Register
	p.advance() // (
	for p.cur.Type != token.RPAREN {
		if p.cur.Type == token.EOF {
			p.errorf("unexpected end of input in argument list")
			return args
		}
		args = append(args, p.parseExpression())
		if p.cur.Type == token.COMMA {
			p.advance()
		}
	}
	p.advance() // )
	return args
}

func (p *Parser) parsePrimary() vm.Register {
	switch p.cur.Type {
	case token.INT, token.UINT, token.FLOAT:
		n, err := vm.ParseNumber(p.cur.Literal)
		if err != nil {
			p.errorf("bad number literal %q: %s", p.cur.Literal, err)
			return vm.NoneRegister
		}
		p.advance()
		return p.b.LoadLiteral(vm.NumberValue(n))
	case token.STRING:
		v := vm.StringValue(p.cur.Literal)
		p.advance()
		return p.b.LoadLiteral(v)
	case token.SYMBOL:
		v := vm.StringValue(p.cur.Literal)
		p.advance()
		return p.b.LoadLiteral(v)
	case token.TRUE:
		p.advance()
		return p.b.LoadLiteral(vm.BoolValue(true))
	case token.FALSE:
		p.advance()
		return p.b.LoadLiteral(vm.BoolValue(false))
	case token.NONE:
		p.advance()
		return p.b.LoadLiteral(vm.None())
	case token.LPAREN:
		p.advance()
		r := p.parseExpression()
		p.expect(token.RPAREN)
		return r
	case token.LBRACKET:
		return p.parseListLiteral()
	case token.LCURLY:
		return p.parseMapLiteral()
	case token.DO:
		return p.parseDoBlock()
	case token.IF, token.UNLESS:
		return p.parseConditional()
	case token.TRY:
		return p.parseTry()
	case token.TYPE_IDENT:
		return p.parseTypePrimary()
	case token.IDENT:
		return p.parseIdentPrimary()
	default:
		p.errorf("unexpected %s in expression", p.cur)
		p.advance()
		return vm.NoneRegister
	}
}

// parseListLiteral builds the list incrementally; appending through Add
// keeps element expressions in emission order.
func (p *Parser) parseListLiteral() vm.Register {
	p.advance() // [
	out := p.b.NextRegister()
	p.b.Add(vm.Load{Register: out, Value: vm.ListValue([]vm.Value{})})
	p.skipNewlines()
	for p.cur.Type != token.RBRACKET {
		if p.cur.Type == token.EOF {
			p.errorf("unterminated list literal")
			return out
		}
		elem := p.parseExpression()
		p.b.Add(vm.Binary{Op: vm.OpAdd, Lhs: out, Rhs: elem, Output: out})
		p.skipNewlines()
		if p.cur.Type == token.COMMA {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // ]
	p.b.SetLast(out)
	return out
}

// parseMapLiteral reads `{k = v, ...}`; keys are expressions.
func (p *Parser) parseMapLiteral() vm.Register {
	p.advance() // {
	out := p.b.NextRegister()
	p.b.Add(vm.Load{Register: out, Value: vm.MapValue(vm.NewMap())})
	p.parseMapEntriesInto(out)
	return out
}

// parseMapEntriesInto reads entries up to the closing brace, writing them
// into an already-loaded map register.
func (p *Parser) parseMapEntriesInto(out vm.Register) {
	p.skipNewlines()
	for p.cur.Type != token.RCURLY {
		if p.cur.Type == token.EOF {
			p.errorf("unterminated map literal")
			return
		}
		var key vm.Register
		if p.cur.Type == token.IDENT && p.peek.Type == token.ASSIGN {
			// Bare identifier keys read as strings.
			key = p.b.NextRegister()
			p.b.Add(vm.Load{Register: key, Value: vm.StringValue(p.cur.Literal)})
			p.advance()
		} else {
			key = p.parseExpression()
		}
		if !p.expect(token.ASSIGN) {
			return
		}
		value := p.parseExpression()
		p.b.Add(vm.InstanceSet{Source: out, Attr: key, Value: value})
		p.skipNewlines()
		if p.cur.Type == token.COMMA {
			p.advance()
			p.skipNewlines()
		}
	}
	p.advance() // }
	p.b.SetLast(out)
}

// parseDoBlock opens an anonymous scope and calls it in place. A pending
// lifecycle tag attaches to the scope instead of running it inline.
func (p *Parser) parseDoBlock() vm.Register {
	p.advance() // do
	p.skipNewlines()
	lc := p.takeLifecycle()
	p.pushScope()
	id := p.b.EnterScope("", nil, lc)
	p.parseBlockUntil(token.END)
	p.b.ExitScope()
	p.popScope()
	p.expect(token.END)
	if lc != nil {
		// Lifecycle scopes run through the runtime, not inline.
		p.b.SetLast(vm.NoneRegister)
		return vm.NoneRegister
	}
	out := p.b.NextRegister()
	p.b.Add(vm.Call{Scope: id, Output: out})
	p.b.SetLast(out)
	return out
}

// parseTypePrimary handles module calls (JSON.parse(x)) and object
// construction (Point { x = 1 }).
func (p *Parser) parseTypePrimary() vm.Register {
	name := p.cur.Literal
	switch p.peek.Type {
	case token.PERIOD:
		p.advance()
		p.advance()
		if p.cur.Type != token.IDENT {
			p.errorf("expected function name after %s., found %s", name, p.cur)
			return vm.NoneRegister
		}
		fn := p.cur.Literal
		p.advance()
		var args []vm.Register
		if p.cur.Type == token.LPAREN {
			args = p.parseParenArgs()
		}
		out := p.b.NextRegister()
		p.b.Add(vm.CallModule{Module: name, Function: fn, Args: args, Output: out})
		return out
	case token.LCURLY:
		p.advance()
		fields := p.b.NextRegister()
		p.b.Add(vm.Load{Register: fields, Value: vm.MapValue(vm.NewMap())})
		// Declared defaults load first so literal entries override them.
		if decl, ok := p.objectDecl(name); ok {
			for _, field := range decl.Fields {
				def, has := decl.Defaults[field]
				if !has {
					continue
				}
				key := p.b.NextRegister()
				p.b.Add(vm.Load{Register: key, Value: vm.StringValue(field)})
				p.b.Add(vm.InstanceSet{Source: fields, Attr: key, Value: p.b.LoadLiteral(def)})
			}
		}
		p.advance() // {
		p.parseMapEntriesInto(fields)
		out := p.b.NextRegister()
		p.b.Add(vm.Cast{From: fields, Type: name, Output: out})
		return out
	default:
		p.errorf("unexpected type name %s in expression", name)
		p.advance()
		return vm.NoneRegister
	}
}

// parseIdentPrimary resolves an identifier: a declared function call, a
// registry call, or a variable read. Unknown names stay unresolved until
// the call instruction executes.
func (p *Parser) parseIdentPrimary() vm.Register {
	name := p.cur.Literal
	p.advance()

	if def, ok := p.functions[name]; ok {
		var args []vm.Register
		if p.cur.Type == token.LPAREN {
			args = p.parseParenArgs()
		} else if _, bound := p.lookupBinding(name); !bound && p.startsExpression() {
			args = append(args, p.parseExpression())
			for p.cur.Type == token.COMMA {
				p.advance()
				args = append(args, p.parseExpression())
			}
		}
		out := p.b.NextRegister()
		p.b.Add(vm.Call{Scope: def.scope, Args: args, Output: out})
		return out
	}

	if p.cur.Type == token.LPAREN {
		args := p.parseParenArgs()
		out := p.b.NextRegister()
		p.b.Add(vm.CallModule{Function: name, Args: args, Output: out})
		return out
	}

	mutable, _ := p.lookupBinding(name)
	out := p.b.NextRegister()
	if mutable && (p.cur.Type == token.LBRACKET || p.cur.Type == token.PERIOD) {
		// Attribute access on a mutable binding goes through the cell so
		// writes stick.
		p.b.Add(vm.GetMutableVariable{Name: name, Output: out})
	} else {
		p.b.Add(vm.GetVariable{Name: name, Output: out})
	}
	return out
}

// startsExpression reports whether the current token can begin an
// expression, used for paren-less argument lists.
func (p *Parser) startsExpression() bool {
	switch p.cur.Type {
	case token.INT, token.UINT, token.FLOAT, token.STRING, token.SYMBOL,
		token.TRUE, token.FALSE, token.NONE, token.IDENT, token.TYPE_IDENT,
		token.LPAREN, token.LBRACKET, token.LCURLY, token.NOT, token.REV,
		token.DO:
		return true
	}
	return false
}
