package vm

import (
	"fmt"
	"strings"
)

// LifecycleKind classifies scope annotations. Tagged scopes are not run by
// the main program flow; the runtime invokes them through dedicated entry
// points (the test runner, event publication, memoized calls).
type LifecycleKind uint8

const (
	LifecycleNone LifecycleKind = iota
	LifecycleTest
	LifecycleOn
	LifecycleMemo
)

var lifecycleNames = map[LifecycleKind]string{
	LifecycleNone: "none",
	LifecycleTest: "test",
	LifecycleOn:   "on",
	LifecycleMemo: "memo",
}

func (k LifecycleKind) String() string {
	if s, ok := lifecycleNames[k]; ok {
		return s
	}
	return fmt.Sprintf("LifecycleKind(%d)", uint8(k))
}

// Lifecycle is a scope's @tag annotation; Event is only set for @on.
type Lifecycle struct {
	Kind  LifecycleKind `json:"kind"`
	Event string        `json:"event,omitempty"`
}

// Scope is a numbered, immutable sequence of instructions. Scope 0 is the
// program entrypoint; every other scope is entered through Call-family
// instructions. Once the builder seals a program, scopes never change.
type Scope struct {
	ID           ScopeID       `json:"id"`
	Named        string        `json:"named,omitempty"`
	Args         []string      `json:"args,omitempty"`
	Instructions []Instruction `json:"instructions"`
	Lifecycle    *Lifecycle    `json:"lifecycle,omitempty"`
}

// Listing renders the scope one instruction per line, for introspection and
// the disassembly command.
func (s *Scope) Listing() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scope %d", s.ID)
	if s.Named != "" {
		fmt.Fprintf(&sb, " (%s)", s.Named)
	}
	if s.Lifecycle != nil {
		fmt.Fprintf(&sb, " @%s", s.Lifecycle.Kind)
		if s.Lifecycle.Event != "" {
			fmt.Fprintf(&sb, "(%q)", s.Lifecycle.Event)
		}
	}
	sb.WriteByte('\n')
	for i, in := range s.Instructions {
		fmt.Fprintf(&sb, "  %3d: %s\n", i, in)
	}
	return sb.String()
}
