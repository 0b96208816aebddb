package vm

import (
	"fmt"
	"strings"
)

// Register addresses a slot in the VM's register map. Registers 0 and 1 are
// reserved: 0 always holds none and 1 always holds the integer 1.
type Register int

const (
	NoneRegister Register = 0
	OneRegister  Register = 1

	// FirstFreeRegister is where the builder starts allocating.
	FirstFreeRegister Register = 2
)

// ScopeID numbers a scope inside a program; scope 0 is the entrypoint.
type ScopeID int

// Instruction is one executable step. Implementations are plain structs so
// a program listing can be inspected and rendered instruction by instruction.
type Instruction interface {
	fmt.Stringer
	// Opcode is the opcode mnemonic, stable across releases for listings
	// and the compiled-program cache.
	Opcode() string
}

// Halt stops the VM, producing the value in the register as the program
// result.
type Halt struct {
	Register Register `json:"register"`
}

func (Halt) Opcode() string     { return "Halt" }
func (i Halt) String() string { return fmt.Sprintf("Halt r%d", i.Register) }

// HaltIfError stops the VM early when the register holds an Error value;
// otherwise execution continues.
type HaltIfError struct {
	Register Register `json:"register"`
}

func (HaltIfError) Opcode() string     { return "HaltIfError" }
func (i HaltIfError) String() string { return fmt.Sprintf("HaltIfError r%d", i.Register) }

// Load writes a literal value into a register.
type Load struct {
	Register Register `json:"register"`
	Value    Value    `json:"value"`
}

func (Load) Opcode() string     { return "Load" }
func (i Load) String() string { return fmt.Sprintf("Load r%d %s", i.Register, i.Value) }

// Copy duplicates one register into another.
type Copy struct {
	From Register `json:"from"`
	To   Register `json:"to"`
}

func (Copy) Opcode() string     { return "Copy" }
func (i Copy) String() string { return fmt.Sprintf("Copy r%d -> r%d", i.From, i.To) }

// Unary applies a unary operator to From, writing the result to Output.
type Unary struct {
	Op     UnaryOp  `json:"op"`
	From   Register `json:"from"`
	Output Register `json:"output"`
}

func (Unary) Opcode() string { return "Unary" }
func (i Unary) String() string {
	return fmt.Sprintf("Unary %s r%d -> r%d", i.Op, i.From, i.Output)
}

// Binary applies a binary operator to Lhs and Rhs, writing the result to
// Output. Coercion failures fault the VM.
type Binary struct {
	Op     BinaryOp `json:"op"`
	Lhs    Register `json:"lhs"`
	Rhs    Register `json:"rhs"`
	Output Register `json:"output"`
}

func (Binary) Opcode() string { return "Binary" }
func (i Binary) String() string {
	return fmt.Sprintf("Binary r%d %s r%d -> r%d", i.Lhs, i.Op, i.Rhs, i.Output)
}

// Cast converts From to the named type, writing the result to Output.
type Cast struct {
	From   Register `json:"from"`
	Type   string   `json:"type"`
	Output Register `json:"output"`
}

func (Cast) Opcode() string { return "Cast" }
func (i Cast) String() string {
	return fmt.Sprintf("Cast r%d as %s -> r%d", i.From, i.Type, i.Output)
}

// GetVariable resolves a name through the current frame and its parents,
// copying the bound register into Output.
type GetVariable struct {
	Name   string   `json:"name"`
	Output Register `json:"output"`
}

func (GetVariable) Opcode() string { return "GetVariable" }
func (i GetVariable) String() string {
	return fmt.Sprintf("GetVariable %s -> r%d", i.Name, i.Output)
}

// GetMutableVariable resolves a mutable binding, borrowing its shared cell
// so writes through Output are visible to every holder.
type GetMutableVariable struct {
	Name   string   `json:"name"`
	Output Register `json:"output"`
}

func (GetMutableVariable) Opcode() string { return "GetMutableVariable" }
func (i GetMutableVariable) String() string {
	return fmt.Sprintf("GetMutableVariable %s -> r%d", i.Name, i.Output)
}

// LoadLet binds a name immutably to a register in the current frame.
type LoadLet struct {
	Name     string   `json:"name"`
	Register Register `json:"register"`
}

func (LoadLet) Opcode() string     { return "LoadLet" }
func (i LoadLet) String() string { return fmt.Sprintf("LoadLet %s = r%d", i.Name, i.Register) }

// LoadMut binds a name mutably, backed by a shared cell.
type LoadMut struct {
	Name     string   `json:"name"`
	Register Register `json:"register"`
}

func (LoadMut) Opcode() string     { return "LoadMut" }
func (i LoadMut) String() string { return fmt.Sprintf("LoadMut %s = r%d", i.Name, i.Register) }

// Call pushes a frame and transfers to a scope; argument registers bind
// positionally to the scope's declared names, and the scope's Ret value
// lands in Output.
type Call struct {
	Scope  ScopeID    `json:"scope"`
	Args   []Register `json:"args,omitempty"`
	Output Register   `json:"output"`
}

func (Call) Opcode() string { return "Call" }
func (i Call) String() string {
	if len(i.Args) == 0 {
		return fmt.Sprintf("Call s%d -> r%d", i.Scope, i.Output)
	}
	return fmt.Sprintf("Call s%d %s -> r%d", i.Scope, registerList(i.Args), i.Output)
}

// CallEq calls the scope only when the two registers compare equal.
type CallEq struct {
	Lhs    Register `json:"lhs"`
	Rhs    Register `json:"rhs"`
	Scope  ScopeID  `json:"scope"`
	Output Register `json:"output"`
}

func (CallEq) Opcode() string { return "CallEq" }
func (i CallEq) String() string {
	return fmt.Sprintf("CallEq r%d r%d s%d -> r%d", i.Lhs, i.Rhs, i.Scope, i.Output)
}

// CallNeq calls the scope only when the two registers compare unequal.
type CallNeq struct {
	Lhs    Register `json:"lhs"`
	Rhs    Register `json:"rhs"`
	Scope  ScopeID  `json:"scope"`
	Output Register `json:"output"`
}

func (CallNeq) Opcode() string { return "CallNeq" }
func (i CallNeq) String() string {
	return fmt.Sprintf("CallNeq r%d r%d s%d -> r%d", i.Lhs, i.Rhs, i.Scope, i.Output)
}

// IfElse branches on the truthiness of a register into one of two scopes.
type IfElse struct {
	Truthy    Register `json:"truthy"`
	IfScope   ScopeID  `json:"if_scope"`
	ElseScope ScopeID  `json:"else_scope"`
	Output    Register `json:"output"`
}

func (IfElse) Opcode() string { return "IfElse" }
func (i IfElse) String() string {
	return fmt.Sprintf("IfElse r%d s%d s%d -> r%d", i.Truthy, i.IfScope, i.ElseScope, i.Output)
}

// If calls the scope when the register is truthy; Output holds none
// otherwise.
type If struct {
	Truthy Register `json:"truthy"`
	Scope  ScopeID  `json:"scope"`
	Output Register `json:"output"`
}

func (If) Opcode() string { return "If" }
func (i If) String() string {
	return fmt.Sprintf("If r%d s%d -> r%d", i.Truthy, i.Scope, i.Output)
}

// Unless calls the scope when the register is falsy.
type Unless struct {
	Truthy Register `json:"truthy"`
	Scope  ScopeID  `json:"scope"`
	Output Register `json:"output"`
}

func (Unless) Opcode() string { return "Unless" }
func (i Unless) String() string {
	return fmt.Sprintf("Unless r%d s%d -> r%d", i.Truthy, i.Scope, i.Output)
}

// Ret pops the current frame, writing the register's value into the
// caller's output register.
type Ret struct {
	Register Register `json:"register"`
}

func (Ret) Opcode() string     { return "Ret" }
func (i Ret) String() string { return fmt.Sprintf("Ret r%d", i.Register) }

// Puts prints the argument registers to the VM's output stream, joined
// with ", ", with a trailing newline.
type Puts struct {
	Args []Register `json:"args"`
}

func (Puts) Opcode() string     { return "Puts" }
func (i Puts) String() string { return "Puts " + registerList(i.Args) }

// Log emits a structured log line at the given level; %s placeholders in
// the template are substituted with the argument registers.
type Log struct {
	Level    LogLevel   `json:"level"`
	Template string     `json:"template"`
	Args     []Register `json:"args"`
}

func (Log) Opcode() string { return "Log" }
func (i Log) String() string {
	return fmt.Sprintf("Log %s %q %s", i.Level, i.Template, registerList(i.Args))
}

// CallModule invokes a registered native function, writing its result to
// Output.
type CallModule struct {
	Module   string     `json:"module"`
	Function string     `json:"function"`
	Args     []Register `json:"args"`
	Output   Register   `json:"output"`
}

func (CallModule) Opcode() string { return "CallModule" }
func (i CallModule) String() string {
	return fmt.Sprintf("CallModule %s.%s %s -> r%d", i.Module, i.Function, registerList(i.Args), i.Output)
}

// CallExtension invokes an extension method on the value in This, resolved
// by the value's runtime type.
type CallExtension struct {
	Module   string     `json:"module"`
	Function string     `json:"function"`
	This     Register   `json:"this"`
	Args     []Register `json:"args"`
	Output   Register   `json:"output"`
}

func (CallExtension) Opcode() string { return "CallExtension" }
func (i CallExtension) String() string {
	return fmt.Sprintf("CallExtension r%d.%s.%s %s -> r%d", i.This, i.Module, i.Function, registerList(i.Args), i.Output)
}

// Raise faults the VM with a UserRaised error carrying the register's value
// as payload.
type Raise struct {
	Register Register `json:"register"`
}

func (Raise) Opcode() string     { return "Raise" }
func (i Raise) String() string { return fmt.Sprintf("Raise r%d", i.Register) }

// TryStart opens a protected region. A fault raised before the matching
// TryEnd transfers to the catch scope with the error bound to Binding.
type TryStart struct {
	CatchScope ScopeID  `json:"catch_scope"`
	Binding    string   `json:"binding"`
	Output     Register `json:"output"`
}

func (TryStart) Opcode() string { return "TryStart" }
func (i TryStart) String() string {
	return fmt.Sprintf("TryStart s%d |%s| -> r%d", i.CatchScope, i.Binding, i.Output)
}

// TryEnd closes the innermost protected region.
type TryEnd struct{}

func (TryEnd) Opcode() string   { return "TryEnd" }
func (TryEnd) String() string { return "TryEnd" }

// InstanceGet reads an attribute of the value in Source: a map entry, list
// index, or object field named by the Attr register.
type InstanceGet struct {
	Source Register `json:"source"`
	Attr   Register `json:"attr"`
	Output Register `json:"output"`
}

func (InstanceGet) Opcode() string { return "InstanceGet" }
func (i InstanceGet) String() string {
	return fmt.Sprintf("InstanceGet r%d[r%d] -> r%d", i.Source, i.Attr, i.Output)
}

// InstanceSet writes an attribute of the mutable value in Source.
type InstanceSet struct {
	Source Register `json:"source"`
	Attr   Register `json:"attr"`
	Value  Register `json:"value"`
}

func (InstanceSet) Opcode() string { return "InstanceSet" }
func (i InstanceSet) String() string {
	return fmt.Sprintf("InstanceSet r%d[r%d] = r%d", i.Source, i.Attr, i.Value)
}

func registerList(regs []Register) string {
	if len(regs) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, r := range regs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "r%d", r)
	}
	sb.WriteByte(']')
	return sb.String()
}
