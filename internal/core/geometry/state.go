package geometry

// State is one graphics-state frame. Values are never mutated: every
// operation returns a new frame, so nested q/Q scopes cannot leak.
type State struct {
	ctm    Matrix
	parent *State
	depth  int
}

// NewState starts a page with the given base transform.
func NewState(base Matrix) *State {
	return &State{ctm: base}
}

func (s *State) CTM() Matrix { return s.ctm }

// Depth is the number of unmatched saves.
func (s *State) Depth() int { return s.depth }

// Save pushes a copy of the current transform.
func (s *State) Save() *State {
	return &State{ctm: s.ctm, parent: s, depth: s.depth + 1}
}

// Restore pops the last saved frame. Unbalanced restores keep the current
// frame and report ok=false.
func (s *State) Restore() (*State, bool) {
	if s.parent == nil {
		return s, false
	}
	return s.parent, true
}

// Concat right-multiplies the current transform by m.
func (s *State) Concat(m Matrix) *State {
	return &State{ctm: s.ctm.Multiply(m), parent: s.parent, depth: s.depth}
}
