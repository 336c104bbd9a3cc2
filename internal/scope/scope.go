// Package scope implements the scope stack: a vector of
// frames with inner-to-outer lookup, pushed on block entry and popped on
// exit, where the global frame (index 0) is constructed by the analyzer
// from the default registries and is never popped.
package scope

import (
	"cqasm/internal/registry"
	"cqasm/internal/srcloc"
	"cqasm/internal/values"
)

// Frame is one scope level: its own mapping/variable table, an optional
// private function/instruction/error-model extension, and a
// flag recording whether the frame is inside a loop-like construct (a
// repeated subcircuit), used to validate loop-control statements.
type Frame struct {
	Mappings     *registry.MappingTable
	Functions    *registry.FunctionTable    // nil unless this frame extends the global table
	Instructions *registry.InstructionTable // nil unless this frame extends the global table
	ErrorModels  *registry.ErrorModelTable  // nil unless this frame extends the global table
	WithinLoop   bool
}

func newFrame(withinLoop bool) *Frame {
	return &Frame{Mappings: registry.NewMappingTable(), WithinLoop: withinLoop}
}

// Stack is the analyzer's live scope stack.
type Stack struct {
	frames []*Frame
}

// NewStack builds a stack whose single global frame owns the given default
// registries.
func NewStack(functions *registry.FunctionTable, instructions *registry.InstructionTable, errorModels *registry.ErrorModelTable) *Stack {
	global := newFrame(false)
	global.Functions = functions
	global.Instructions = instructions
	global.ErrorModels = errorModels
	return &Stack{frames: []*Frame{global}}
}

// Push opens a new frame, e.g. on entry to a subcircuit body. withinLoop
// marks frames whose enclosing construct repeats.
func (s *Stack) Push(withinLoop bool) {
	s.frames = append(s.frames, newFrame(withinLoop))
}

// Pop closes the innermost frame. The global frame (index 0) can never be
// popped; callers that try get a no-op, matching "the global frame is the
// first element and is never popped".
func (s *Stack) Pop() {
	if len(s.frames) <= 1 {
		return
	}
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *Stack) top() *Frame { return s.frames[len(s.frames)-1] }

// WithinLoop reports whether the innermost frame (or any enclosing frame
// whose flag is set, since loop context does not reset until the loop's
// frame itself is popped) is marked as inside a loop.
func (s *Stack) WithinLoop() bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].WithinLoop {
			return true
		}
	}
	return false
}

// AddMapping binds name in the innermost frame, shadowing any outer
// binding for the lifetime of that frame.
func (s *Stack) AddMapping(name string, value values.Value, decl srcloc.Range) {
	s.top().Mappings.Add(name, value, decl)
}

// ResolveMapping walks frames inner-to-outer and returns a deep clone of
// the first binding found.
func (s *Stack) ResolveMapping(name string) (values.Value, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].Mappings.Resolve(name); ok {
			return v, true
		}
	}
	return nil, false
}

// DeclaredInCurrentFrame reports whether name is already bound in the
// innermost frame, used to detect non-shadowing re-declarations that are
// forbidden at the same level.
func (s *Stack) DeclaredInCurrentFrame(name string) bool {
	return s.top().Mappings.Has(name)
}

// DeclLocation returns where name was declared in the innermost frame that
// binds it.
func (s *Stack) DeclLocation(name string) srcloc.Range {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Mappings.Has(name) {
			return s.frames[i].Mappings.DeclLocation(name)
		}
	}
	return srcloc.Unknown
}

// ResolveFunction walks frames inner-to-outer, the global frame at index 0
// included, and calls name in the first function table that knows it; the
// final result is false when no frame's table knows name.
func (s *Stack) ResolveFunction(name string, args []values.Value) (values.Value, error, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		ft := s.frames[i].Functions
		if ft == nil || !ft.Known(name) {
			continue
		}
		v, err := ft.Call(name, args, srcloc.Unknown)
		return v, err, true
	}
	return nil, nil, false
}

// Instructions returns the nearest enclosing instruction table, which in
// practice is always the global one (instruction sets are not scoped per
// block in either dialect, but the type supports it for symmetry with
// functions).
func (s *Stack) Instructions() *registry.InstructionTable {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Instructions != nil {
			return s.frames[i].Instructions
		}
	}
	return nil
}

// Functions returns the global function table.
func (s *Stack) Functions() *registry.FunctionTable {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Functions != nil {
			return s.frames[i].Functions
		}
	}
	return nil
}

// ErrorModels returns the global error-model table.
func (s *Stack) ErrorModels() *registry.ErrorModelTable {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].ErrorModels != nil {
			return s.frames[i].ErrorModels
		}
	}
	return nil
}

// Depth reports the number of active frames, used by tests to assert
// push/pop balance.
func (s *Stack) Depth() int { return len(s.frames) }
