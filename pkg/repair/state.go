package repair

// RoundState is the set of specs already dispatched during one run. It
// lives only as long as the run.
type RoundState struct {
	attempted map[MissingSpec]bool
	order     []MissingSpec
}

// NewRoundState returns an empty state.
func NewRoundState() *RoundState {
	return &RoundState{attempted: make(map[MissingSpec]bool)}
}

// Attempted reports whether spec was dispatched before.
func (s *RoundState) Attempted(spec MissingSpec) bool { return s.attempted[spec] }

// Fresh returns the specs in missing that were not dispatched before.
func (s *RoundState) Fresh(missing []MissingSpec) []MissingSpec {
	var out []MissingSpec
	for _, m := range missing {
		if !s.attempted[m] {
			out = append(out, m)
		}
	}
	return out
}

// Add records specs as dispatched.
func (s *RoundState) Add(specs ...MissingSpec) {
	for _, spec := range specs {
		if s.attempted[spec] {
			continue
		}
		s.attempted[spec] = true
		s.order = append(s.order, spec)
	}
}

// All returns every dispatched spec in dispatch order.
func (s *RoundState) All() []MissingSpec { return append([]MissingSpec(nil), s.order...) }

// Len returns the number of dispatched specs.
func (s *RoundState) Len() int { return len(s.order) }
