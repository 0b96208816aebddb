package vm

import "sync"

// Handle indexes a cell in an Arena.
type Handle int

// Arena owns the shared mutable cells behind `mut` bindings. A cell can be
// aliased by several frames (a closure capturing a loop accumulator); reads
// and writes lock per cell, and a contended lock fails fast with
// BorrowConflict instead of blocking a concurrently executing instance.
type Arena struct {
	mu    sync.Mutex
	cells []*cell
}

type cell struct {
	mu    sync.Mutex
	value Value
}

func NewArena() *Arena {
	return &Arena{}
}

// Alloc creates a cell holding v and returns its handle.
func (a *Arena) Alloc(v Value) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cells = append(a.cells, &cell{value: v})
	return Handle(len(a.cells) - 1)
}

// Get reads a cell's current value.
func (a *Arena) Get(h Handle) (Value, *VMError) {
	c, err := a.cell(h)
	if err != nil {
		return None(), err
	}
	if !c.mu.TryLock() {
		return None(), newError(BorrowConflict, "cell %d is borrowed by another instance", h)
	}
	defer c.mu.Unlock()
	return c.value, nil
}

// Set replaces a cell's value, visible to every alias of the cell.
func (a *Arena) Set(h Handle, v Value) *VMError {
	c, err := a.cell(h)
	if err != nil {
		return err
	}
	if !c.mu.TryLock() {
		return newError(BorrowConflict, "cell %d is borrowed by another instance", h)
	}
	defer c.mu.Unlock()
	c.value = v
	return nil
}

func (a *Arena) cell(h Handle) (*cell, *VMError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h < 0 || int(h) >= len(a.cells) {
		return nil, runtimeErrorf("invalid cell handle %d", h)
	}
	return a.cells[h], nil
}

// Len reports how many cells have been allocated.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cells)
}
