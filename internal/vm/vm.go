// Package vm implements the register machine: values, coercion tables,
// instructions, and the execution engine that runs numbered scopes.
package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// ModuleHost resolves CallModule and CallExtension instructions. The
// registry in internal/modules implements it; tests substitute fakes.
type ModuleHost interface {
	CallFunction(module, function string, args []Value) (Value, error)
	CallExtensionFunction(module, function string, this Value, args []Value) (Value, error)
}

const defaultMaxDepth = 1024

// VM executes one program. A VM is single threaded; concurrency comes from
// running several instances over the same immutable Program, optionally
// sharing an Arena for mutable cells.
type VM struct {
	program   *Program
	registers map[Register]Value
	aliases   map[Register]Handle
	frame     *CallFrame
	tryStack  []tryHandler
	arena     *Arena
	modules   ModuleHost
	logger    *zap.Logger
	out       io.Writer
	errOut    io.Writer
	maxDepth  int
	scratch   Register
}

type tryHandler struct {
	frame      *CallFrame
	catchScope ScopeID
	binding    string
	output     Register
}

// Option configures a VM.
type Option func(*VM)

func WithLogger(l *zap.Logger) Option { return func(v *VM) { v.logger = l } }
func WithOutput(w io.Writer) Option { return func(v *VM) { v.out = w } }
func WithErrOutput(w io.Writer) Option { return func(v *VM) { v.errOut = w } }
func WithModules(m ModuleHost) Option { return func(v *VM) { v.modules = m } }
func WithMaxDepth(n int) Option { return func(v *VM) { v.maxDepth = n } }
func WithSharedArena(a *Arena) Option { return func(v *VM) { v.arena = a } }

func New(program *Program, opts ...Option) *VM {
	v := &VM{
		program:   program,
		registers: make(map[Register]Value),
		aliases:   make(map[Register]Handle),
		arena:     NewArena(),
		out:       os.Stdout,
		errOut:    os.Stderr,
		maxDepth:  defaultMaxDepth,
		scratch:   -2,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.registers[NoneRegister] = None()
	v.registers[OneRegister] = IntValue(1)
	return v
}

// Run executes the entrypoint scope to completion. A fault that escapes
// every try region is returned as the error; HaltIfError results come back
// as Error-kind values with a nil error.
func (v *VM) Run(ctx context.Context) (Value, error) {
	return v.RunScope(ctx, 0, nil)
}

// RunScope executes a single scope as a root frame, binding args
// positionally to the scope's declared argument names. The runtime uses it
// to drive lifecycle scopes (tests, event handlers).
func (v *VM) RunScope(ctx context.Context, id ScopeID, args []Value) (Value, error) {
	if _, ok := v.program.Scope(id); !ok {
		return None(), runtimeErrorf("no scope %d", id)
	}
	v.frame = NewFrame(id, NoneRegister, nil)
	v.tryStack = v.tryStack[:0]
	v.bindArgs(args)
	return v.loop(ctx)
}

func (v *VM) loop(ctx context.Context) (Value, error) {
	for {
		if err := ctx.Err(); err != nil {
			return None(), err
		}
		scope, ok := v.program.Scope(v.frame.Scope)
		if !ok {
			return None(), runtimeErrorf("no scope %d", v.frame.Scope)
		}
		if v.frame.PC >= len(scope.Instructions) {
			// Implicit return of none for scopes without a Ret.
			if done, result := v.popFrame(None()); done {
				return result, nil
			}
			continue
		}
		in := scope.Instructions[v.frame.PC]
		v.frame.PC++

		halt, result, fault := v.step(in)
		if fault != nil {
			if !v.recover(fault) {
				return None(), fault
			}
			continue
		}
		if halt {
			return result, nil
		}
	}
}

// step executes one instruction. It returns halt=true with the program
// result for Halt-family instructions, or a fault for the caller to route
// through try handlers.
func (v *VM) step(in Instruction) (halt bool, result Value, fault *VMError) {
	switch i := in.(type) {
	case Halt:
		return true, v.get(i.Register), nil
	case HaltIfError:
		if val := v.get(i.Register); val.IsError() {
			return true, val, nil
		}
	case Load:
		fault = v.set(i.Register, i.Value)
	case Copy:
		fault = v.set(i.To, v.get(i.From))
	case Unary:
		fault = v.execUnary(i)
	case Binary:
		out, err := ApplyBinary(i.Op, v.get(i.Lhs), v.get(i.Rhs))
		if err != nil {
			return false, None(), err
		}
		fault = v.set(i.Output, out)
	case Cast:
		out, err := CastValue(v.get(i.From), i.Type)
		if err != nil {
			return false, None(), err
		}
		fault = v.set(i.Output, out)
	case GetVariable:
		fault = v.execGetVariable(i)
	case GetMutableVariable:
		fault = v.execGetMutableVariable(i)
	case LoadLet:
		v.frame.Bind(i.Name, Variable{Register: i.Register})
	case LoadMut:
		h := v.arena.Alloc(v.get(i.Register))
		v.aliases[i.Register] = h
		v.frame.Bind(i.Name, Variable{Register: i.Register, Mutable: true, Cell: h})
	case Call:
		args := make([]Value, len(i.Args))
		for n, r := range i.Args {
			args[n] = v.get(r)
		}
		fault = v.pushFrame(i.Scope, i.Output)
		if fault == nil {
			v.bindArgs(args)
		}
	case CallEq:
		if v.get(i.Lhs).Equal(v.get(i.Rhs)) {
			fault = v.pushFrame(i.Scope, i.Output)
		} else {
			fault = v.set(i.Output, None())
		}
	case CallNeq:
		if !v.get(i.Lhs).Equal(v.get(i.Rhs)) {
			fault = v.pushFrame(i.Scope, i.Output)
		} else {
			fault = v.set(i.Output, None())
		}
	case IfElse:
		if v.get(i.Truthy).ToBool() {
			fault = v.pushFrame(i.IfScope, i.Output)
		} else {
			fault = v.pushFrame(i.ElseScope, i.Output)
		}
	case If:
		if v.get(i.Truthy).ToBool() {
			fault = v.pushFrame(i.Scope, i.Output)
		} else {
			fault = v.set(i.Output, None())
		}
	case Unless:
		if !v.get(i.Truthy).ToBool() {
			fault = v.pushFrame(i.Scope, i.Output)
		} else {
			fault = v.set(i.Output, None())
		}
	case Ret:
		if done, out := v.popFrame(v.get(i.Register)); done {
			return true, out, nil
		}
	case Puts:
		parts := make([]string, len(i.Args))
		for n, r := range i.Args {
			parts[n] = v.get(r).String()
		}
		fmt.Fprintln(v.out, strings.Join(parts, ", "))
	case Log:
		vals := make([]Value, len(i.Args))
		for n, r := range i.Args {
			vals[n] = v.get(r)
		}
		emitLog(v.logger, i.Level, i.Template, vals)
	case CallModule:
		fault = v.execCallModule(i)
	case CallExtension:
		fault = v.execCallExtension(i)
	case Raise:
		fault = raiseValue(v.get(i.Register))
	case TryStart:
		v.tryStack = append(v.tryStack, tryHandler{
			frame:      v.frame,
			catchScope: i.CatchScope,
			binding:    i.Binding,
			output:     i.Output,
		})
	case TryEnd:
		if n := len(v.tryStack); n > 0 {
			v.tryStack = v.tryStack[:n-1]
		}
	case InstanceGet:
		fault = v.execInstanceGet(i)
	case InstanceSet:
		fault = v.execInstanceSet(i)
	default:
		fault = runtimeErrorf("unknown instruction %T", in)
	}
	return false, None(), fault
}

func (v *VM) execUnary(i Unary) *VMError {
	val := v.get(i.From)
	switch i.Op {
	case OpPrint:
		fmt.Fprint(v.out, val.String())
	case OpPrintLn:
		fmt.Fprintln(v.out, val.String())
	case OpEPrint:
		fmt.Fprint(v.errOut, val.String())
	case OpEPrintLn:
		fmt.Fprintln(v.errOut, val.String())
	default:
		out, err := ApplyUnary(i.Op, val)
		if err != nil {
			return err
		}
		return v.set(i.Output, out)
	}
	// Print variants echo the operand.
	return v.set(i.Output, val)
}

func (v *VM) execGetVariable(i GetVariable) *VMError {
	binding, ok := v.frame.Lookup(i.Name)
	if !ok {
		return newError(UnknownVariable, "variable %s does not exist", i.Name)
	}
	if binding.Mutable {
		val, err := v.arena.Get(binding.Cell)
		if err != nil {
			return err
		}
		return v.set(i.Output, val.Clone())
	}
	return v.set(i.Output, v.get(binding.Register))
}

func (v *VM) execGetMutableVariable(i GetMutableVariable) *VMError {
	binding, ok := v.frame.Lookup(i.Name)
	if !ok {
		return newError(UnknownVariable, "variable %s does not exist", i.Name)
	}
	if !binding.Mutable {
		return typeErrorf("variable %s is immutable", i.Name)
	}
	val, err := v.arena.Get(binding.Cell)
	if err != nil {
		return err
	}
	v.aliases[i.Output] = binding.Cell
	v.registers[i.Output] = val
	return nil
}

func (v *VM) execCallModule(i CallModule) *VMError {
	if v.modules == nil {
		return newError(UnknownFunction, "no module host for %s.%s", i.Module, i.Function)
	}
	args := make([]Value, len(i.Args))
	for n, r := range i.Args {
		args[n] = v.get(r)
	}
	out, err := v.modules.CallFunction(i.Module, i.Function, args)
	if err != nil {
		return normalizeError(err)
	}
	return v.set(i.Output, out)
}

func (v *VM) execCallExtension(i CallExtension) *VMError {
	if v.modules == nil {
		return newError(UnknownFunction, "no module host for %s.%s", i.Module, i.Function)
	}
	this := v.get(i.This)
	args := make([]Value, len(i.Args))
	for n, r := range i.Args {
		args[n] = v.get(r)
	}
	out, err := v.modules.CallExtensionFunction(i.Module, i.Function, this, args)
	if err != nil {
		return normalizeError(err)
	}
	return v.set(i.Output, out)
}

func (v *VM) execInstanceGet(i InstanceGet) *VMError {
	source := v.get(i.Source)
	attr := v.get(i.Attr)
	switch source.Kind {
	case MapKind:
		out, _ := source.AsMap().Get(attr)
		return v.set(i.Output, out)
	case ListKind:
		n, ok := attr.ToNumber()
		if !ok {
			return typeErrorf("cannot index List with %s", attr.TypeName())
		}
		idx := int(n.ToInt())
		list := source.AsList()
		if idx < 0 {
			idx += len(list)
		}
		if idx < 0 || idx >= len(list) {
			return v.set(i.Output, None())
		}
		return v.set(i.Output, list[idx])
	case StringKind:
		n, ok := attr.ToNumber()
		if !ok {
			return typeErrorf("cannot index String with %s", attr.TypeName())
		}
		runes := []rune(source.AsString())
		idx := int(n.ToInt())
		if idx < 0 {
			idx += len(runes)
		}
		if idx < 0 || idx >= len(runes) {
			return v.set(i.Output, None())
		}
		return v.set(i.Output, StringValue(string(runes[idx])))
	case ObjectKind:
		if f, ok := source.AsObject().(FieldObject); ok {
			out, found := f.GetField(attr.String())
			if !found {
				out = None()
			}
			return v.set(i.Output, out)
		}
		return typeErrorf("%s has no fields", source.TypeName())
	case NoneKind:
		return v.set(i.Output, None())
	default:
		return typeErrorf("cannot read attribute of %s", source.TypeName())
	}
}

func (v *VM) execInstanceSet(i InstanceSet) *VMError {
	source := v.get(i.Source)
	attr := v.get(i.Attr)
	val := v.get(i.Value)
	switch source.Kind {
	case MapKind:
		m := source.AsMap().Clone()
		m.Set(attr, val)
		return v.set(i.Source, MapValue(m))
	case ListKind:
		n, ok := attr.ToNumber()
		if !ok {
			return typeErrorf("cannot index List with %s", attr.TypeName())
		}
		idx := int(n.ToInt())
		list := source.AsList()
		if idx < 0 {
			idx += len(list)
		}
		if idx < 0 || idx >= len(list) {
			return runtimeErrorf("index %d out of range", idx)
		}
		out := make([]Value, len(list))
		copy(out, list)
		out[idx] = val
		return v.set(i.Source, ListValue(out))
	case ObjectKind:
		obj := source.AsObject().CloneObject()
		f, ok := obj.(FieldObject)
		if !ok {
			return typeErrorf("%s has no fields", source.TypeName())
		}
		if err := f.SetField(attr.String(), val); err != nil {
			return runtimeErrorf("%s", err)
		}
		return v.set(i.Source, ObjectValue(obj))
	default:
		return typeErrorf("cannot write attribute of %s", source.TypeName())
	}
}

// pushFrame enters a scope, guarding against runaway recursion.
func (v *VM) pushFrame(id ScopeID, output Register) *VMError {
	if _, ok := v.program.Scope(id); !ok {
		return runtimeErrorf("no scope %d", id)
	}
	if v.frame.Depth() >= v.maxDepth {
		return runtimeErrorf("call depth exceeded %d", v.maxDepth)
	}
	v.frame = NewFrame(id, output, v.frame)
	return nil
}

// bindArgs binds values to the current scope's declared argument names.
// Missing arguments bind to none, extras are dropped.
func (v *VM) bindArgs(args []Value) {
	scope, ok := v.program.Scope(v.frame.Scope)
	if !ok {
		return
	}
	for i, name := range scope.Args {
		arg := None()
		if i < len(args) {
			arg = args[i]
		}
		r := v.scratchRegister()
		v.registers[r] = arg
		v.frame.Bind(name, Variable{Register: r})
	}
}

// popFrame leaves the current scope, writing value to the caller's output
// register. It reports done when the root frame returns.
func (v *VM) popFrame(value Value) (bool, Value) {
	parent := v.frame.Parent
	if parent == nil {
		return true, value
	}
	output := v.frame.Output
	v.frame = parent
	// A fault writing through an alias surfaces on the next read.
	_ = v.set(output, value)
	return false, None()
}

// recover routes a fault to the innermost try handler, unwinding frames to
// the handler's frame and transferring to the catch scope. It reports false
// when no handler exists.
func (v *VM) recover(fault *VMError) bool {
	if len(v.tryStack) == 0 {
		return false
	}
	h := v.tryStack[len(v.tryStack)-1]
	v.tryStack = v.tryStack[:len(v.tryStack)-1]

	// Drop frames entered after the handler's.
	for v.frame != h.frame && v.frame != nil {
		v.frame = v.frame.Parent
	}
	if v.frame == nil {
		return false
	}
	// Resume after the region's TryEnd.
	scope, ok := v.program.Scope(v.frame.Scope)
	if !ok {
		return false
	}
	depth := 1
	pc := v.frame.PC
	for ; pc < len(scope.Instructions); pc++ {
		switch scope.Instructions[pc].(type) {
		case TryStart:
			depth++
		case TryEnd:
			depth--
		}
		if depth == 0 {
			break
		}
	}
	v.frame.PC = pc + 1

	catch := NewFrame(h.catchScope, h.output, v.frame)
	if h.binding != "" {
		r := v.scratchRegister()
		v.registers[r] = fault.Value()
		catch.Bind(h.binding, Variable{Register: r})
	}
	v.frame = catch
	return true
}

// get reads a register; aliased registers read through their cell so
// writes from other holders are observed.
func (v *VM) get(r Register) Value {
	if h, ok := v.aliases[r]; ok {
		if val, err := v.arena.Get(h); err == nil {
			return val
		}
	}
	if val, ok := v.registers[r]; ok {
		return val
	}
	return None()
}

// set writes a register. The reserved registers are write sinks, and
// aliased registers propagate through their cell.
func (v *VM) set(r Register, val Value) *VMError {
	if r == NoneRegister || r == OneRegister {
		return nil
	}
	v.registers[r] = val
	if h, ok := v.aliases[r]; ok {
		return v.arena.Set(h, val)
	}
	return nil
}

// scratchRegister allocates a VM-internal register. Negative numbers keep
// them clear of everything the builder hands out.
func (v *VM) scratchRegister() Register {
	r := v.scratch
	v.scratch--
	return r
}

// raiseValue converts a raised value into a fault. Raising an Error value
// re-faults with its original kind.
func raiseValue(val Value) *VMError {
	if val.IsError() {
		return val.AsError()
	}
	payload := val
	e := newError(UserRaised, "%s", val)
	e.Payload = &payload
	return e
}

// normalizeError maps native module failures onto the error taxonomy.
func normalizeError(err error) *VMError {
	if vmErr, ok := err.(*VMError); ok {
		return vmErr
	}
	return runtimeErrorf("%s", err)
}
