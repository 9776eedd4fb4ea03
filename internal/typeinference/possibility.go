package typeinference

// Possibility is how certain it is that an expression holds a type.
type Possibility int

const (
	Guaranteed Possibility = iota
	Possible
	Impossible
)

func (p Possibility) String() string {
	switch p {
	case Guaranteed:
		return "guaranteed"
	case Possible:
		return "possible"
	case Impossible:
		return "impossible"
	default:
		return "unknown"
	}
}

// Negate flips Guaranteed and Impossible. Possible has no complement, ok is
// false and the entry has to be dropped.
func (p Possibility) Negate() (Possibility, bool) {
	switch p {
	case Guaranteed:
		return Impossible, true
	case Impossible:
		return Guaranteed, true
	default:
		return p, false
	}
}

// PossibilitySet maps type names to a Possibility and remembers insertion
// order, so everything derived from it is order stable. Overwriting a type
// keeps its position.
type PossibilitySet struct {
	order  []string
	values map[string]Possibility
}

func NewPossibilitySet() *PossibilitySet {
	return &PossibilitySet{values: make(map[string]Possibility)}
}

// possibilitiesOf builds a set giving every type the same possibility.
func possibilitiesOf(p Possibility, types ...string) *PossibilitySet {
	s := NewPossibilitySet()
	for _, t := range types {
		s.Set(t, p)
	}
	return s
}

func (s *PossibilitySet) Set(typeName string, p Possibility) {
	if _, exists := s.values[typeName]; !exists {
		s.order = append(s.order, typeName)
	}
	s.values[typeName] = p
}

func (s *PossibilitySet) Get(typeName string) (Possibility, bool) {
	p, ok := s.values[typeName]
	return p, ok
}

func (s *PossibilitySet) Len() int {
	return len(s.order)
}

// Types returns the type names in insertion order.
func (s *PossibilitySet) Types() []string {
	return append([]string(nil), s.order...)
}

// With returns the types holding p, in insertion order.
func (s *PossibilitySet) With(p Possibility) []string {
	var out []string
	for _, t := range s.order {
		if s.values[t] == p {
			out = append(out, t)
		}
	}
	return out
}

func (s *PossibilitySet) Each(fn func(typeName string, p Possibility)) {
	for _, t := range s.order {
		fn(t, s.values[t])
	}
}

// Merge copies every entry of other into s; other wins on collisions.
func (s *PossibilitySet) Merge(other *PossibilitySet) {
	if other == nil {
		return
	}
	other.Each(s.Set)
}

// Negated returns a new set with every entry negated. Possible entries are
// dropped.
func (s *PossibilitySet) Negated() *PossibilitySet {
	out := NewPossibilitySet()
	s.Each(func(t string, p Possibility) {
		if negated, ok := p.Negate(); ok {
			out.Set(t, negated)
		}
	})
	return out
}

func (s *PossibilitySet) Clear() {
	s.order = nil
	s.values = make(map[string]Possibility)
}

func (s *PossibilitySet) Clone() *PossibilitySet {
	out := NewPossibilitySet()
	out.Merge(s)
	return out
}
