package vm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Program is a sealed set of scopes ready to run. Programs are immutable
// after Build; a VM instance only ever reads them, which is what lets the
// runtime share one Program across concurrent instances.
type Program struct {
	Scopes []*Scope `json:"scopes"`
}

// Scope returns the scope with the given id.
func (p *Program) Scope(id ScopeID) (*Scope, bool) {
	if id < 0 || int(id) >= len(p.Scopes) {
		return nil, false
	}
	return p.Scopes[id], true
}

// Lifecycles returns the scopes tagged with the given kind, in declaration
// order.
func (p *Program) Lifecycles(kind LifecycleKind) []*Scope {
	var out []*Scope
	for _, s := range p.Scopes {
		if s.Lifecycle != nil && s.Lifecycle.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Listing renders every scope, the full introspectable form of the program.
func (p *Program) Listing() string {
	var sb strings.Builder
	for _, s := range p.Scopes {
		sb.WriteString(s.Listing())
	}
	return sb.String()
}

// Encode serializes the program for the compiled-program cache.
func (p *Program) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeProgram restores a program produced by Encode.
func DecodeProgram(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &p, nil
}

// instructionEnvelope is the wire form of a single instruction.
type instructionEnvelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

func (s *Scope) MarshalJSON() ([]byte, error) {
	type alias Scope
	envelopes := make([]instructionEnvelope, len(s.Instructions))
	for i, in := range s.Instructions {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		envelopes[i] = instructionEnvelope{Op: in.Opcode(), Data: data}
	}
	return json.Marshal(struct {
		*alias
		Instructions []instructionEnvelope `json:"instructions"`
	}{(*alias)(s), envelopes})
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	type alias Scope
	aux := struct {
		*alias
		Instructions []instructionEnvelope `json:"instructions"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Instructions = make([]Instruction, len(aux.Instructions))
	for i, env := range aux.Instructions {
		in, err := decodeInstruction(env)
		if err != nil {
			return err
		}
		s.Instructions[i] = in
	}
	return nil
}

func decodeInstruction(env instructionEnvelope) (Instruction, error) {
	switch env.Op {
	case "Halt":
		return decodeAs[Halt](env.Data)
	case "HaltIfError":
		return decodeAs[HaltIfError](env.Data)
	case "Load":
		return decodeAs[Load](env.Data)
	case "Copy":
		return decodeAs[Copy](env.Data)
	case "Unary":
		return decodeAs[Unary](env.Data)
	case "Binary":
		return decodeAs[Binary](env.Data)
	case "Cast":
		return decodeAs[Cast](env.Data)
	case "GetVariable":
		return decodeAs[GetVariable](env.Data)
	case "GetMutableVariable":
		return decodeAs[GetMutableVariable](env.Data)
	case "LoadLet":
		return decodeAs[LoadLet](env.Data)
	case "LoadMut":
		return decodeAs[LoadMut](env.Data)
	case "Call":
		return decodeAs[Call](env.Data)
	case "CallEq":
		return decodeAs[CallEq](env.Data)
	case "CallNeq":
		return decodeAs[CallNeq](env.Data)
	case "IfElse":
		return decodeAs[IfElse](env.Data)
	case "If":
		return decodeAs[If](env.Data)
	case "Unless":
		return decodeAs[Unless](env.Data)
	case "Ret":
		return decodeAs[Ret](env.Data)
	case "Puts":
		return decodeAs[Puts](env.Data)
	case "Log":
		return decodeAs[Log](env.Data)
	case "CallModule":
		return decodeAs[CallModule](env.Data)
	case "CallExtension":
		return decodeAs[CallExtension](env.Data)
	case "Raise":
		return decodeAs[Raise](env.Data)
	case "TryStart":
		return decodeAs[TryStart](env.Data)
	case "TryEnd":
		return decodeAs[TryEnd](env.Data)
	case "InstanceGet":
		return decodeAs[InstanceGet](env.Data)
	case "InstanceSet":
		return decodeAs[InstanceSet](env.Data)
	default:
		return nil, fmt.Errorf("unknown instruction %q", env.Op)
	}
}

func decodeAs[T Instruction](data json.RawMessage) (Instruction, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// valueEnvelope is the wire form of a literal Value. Only literal kinds
// appear in compiled programs; objects and errors are runtime-only.
type valueEnvelope struct {
	Kind   string          `json:"kind"`
	Number string          `json:"number,omitempty"`
	Str    string          `json:"str,omitempty"`
	Bool   bool            `json:"bool,omitempty"`
	List   []Value         `json:"list,omitempty"`
	Map    [][2]Value      `json:"map,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	env := valueEnvelope{Kind: v.Kind.String()}
	switch v.Kind {
	case NoneKind:
	case BoolKind:
		env.Bool = v.AsBool()
	case NumberKind:
		// The kind prefix keeps 64-bit values exact through JSON.
		switch v.num.Kind {
		case IntKind:
			env.Number = "i" + strconv.FormatInt(v.num.Int(), 10)
		case UIntKind:
			env.Number = "u" + strconv.FormatUint(v.num.UInt(), 10)
		default:
			env.Number = "f" + strconv.FormatFloat(v.num.Float(), 'g', -1, 64)
		}
	case StringKind:
		env.Str = v.str
	case ListKind:
		env.List = v.list
		if env.List == nil {
			env.List = []Value{}
		}
	case MapKind:
		pairs := make([][2]Value, 0, v.m.Len())
		v.m.Each(func(k, val Value) bool {
			pairs = append(pairs, [2]Value{k, val})
			return true
		})
		env.Map = pairs
	default:
		return nil, fmt.Errorf("cannot encode %s literal", v.Kind)
	}
	return json.Marshal(env)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Kind {
	case "None":
		*v = None()
	case "Bool":
		*v = BoolValue(env.Bool)
	case "Number":
		if env.Number == "" {
			return fmt.Errorf("number literal missing payload")
		}
		kind, digits := env.Number[0], env.Number[1:]
		switch kind {
		case 'i':
			i, err := strconv.ParseInt(digits, 10, 64)
			if err != nil {
				return err
			}
			*v = IntValue(i)
		case 'u':
			u, err := strconv.ParseUint(digits, 10, 64)
			if err != nil {
				return err
			}
			*v = UIntValue(u)
		case 'f':
			f, err := strconv.ParseFloat(digits, 64)
			if err != nil {
				return err
			}
			*v = FloatValue(f)
		default:
			return fmt.Errorf("bad number prefix %q", kind)
		}
	case "String":
		*v = StringValue(env.Str)
	case "List":
		*v = ListValue(env.List)
	case "Map":
		m := NewMapCapacity(len(env.Map))
		for _, pair := range env.Map {
			m.Set(pair[0], pair[1])
		}
		*v = MapValue(m)
	default:
		return fmt.Errorf("cannot decode %q literal", env.Kind)
	}
	return nil
}
