// Package layout describes the shape of physical instances: which
// fields they hold, how dimensions are ordered in memory, alignment
// requirements and the instance specialisation (normal, virtual,
// reduction, external). Constraint sets are immutable once built and
// interned through a Registry so they can be referred to by ID.
package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
)

// ID refers to a constraint set interned in a Registry.
type ID uint64

// NoID denotes the absence of an interned layout.
const NoID ID = 0

// Kind discriminates constraint flavours.
type Kind string

const (
	// KindSpecialized selects the instance specialisation.
	KindSpecialized Kind = "specialized"
	// KindMemory restricts the memory kind an instance may live in.
	KindMemory Kind = "memory"
	// KindOrdering fixes the in-memory dimension order; the position of
	// the field dimension decides SOA versus AOS.
	KindOrdering Kind = "ordering"
	// KindFields lists the fields the instance must hold.
	KindFields Kind = "fields"
	// KindAlignment requires a field offset alignment in bytes.
	KindAlignment Kind = "alignment"
	// KindCapacity requires the instance footprint to fit in a memory
	// pool. It never appears in request sets; allocators synthesise it
	// as the violated constraint when a pool runs out of capacity.
	KindCapacity Kind = "capacity"
)

// Specialized enumerates instance specialisations.
type Specialized string

const (
	NormalInstance    Specialized = "normal"
	VirtualInstance   Specialized = "virtual"
	ReductionInstance Specialized = "reduction"
	ExternalInstance  Specialized = "external"
)

// Dim names a dimension in an ordering constraint. FieldDim is the
// synthetic field dimension; placing it first yields AOS, last SOA.
type Dim string

const (
	DimX     Dim = "x"
	DimY     Dim = "y"
	DimZ     Dim = "z"
	FieldDim Dim = "f"
)

// Constraint is one requirement within a set. Only the fields relevant
// to its Kind are populated.
type Constraint struct {
	Kind        Kind             `json:"kind" yaml:"kind"`
	Specialized Specialized      `json:"specialized,omitempty" yaml:"specialized,omitempty"`
	MemoryKind  mem.Kind         `json:"memoryKind,omitempty" yaml:"memoryKind,omitempty"`
	Ordering    []Dim            `json:"ordering,omitempty" yaml:"ordering,omitempty"`
	Fields      []region.FieldID `json:"fields,omitempty" yaml:"fields,omitempty"`
	Field       region.FieldID   `json:"field,omitempty" yaml:"field,omitempty"`
	Alignment   uint32           `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	Contiguous  bool             `json:"contiguous,omitempty" yaml:"contiguous,omitempty"`
	Bytes       uint64           `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

func (c Constraint) key() string {
	switch c.Kind {
	case KindSpecialized:
		return fmt.Sprintf("sp:%s", c.Specialized)
	case KindMemory:
		return fmt.Sprintf("mem:%s", c.MemoryKind)
	case KindOrdering:
		parts := make([]string, len(c.Ordering))
		for i, d := range c.Ordering {
			parts[i] = string(d)
		}
		return fmt.Sprintf("ord:%s:%v", strings.Join(parts, ","), c.Contiguous)
	case KindFields:
		fields := append([]region.FieldID(nil), c.Fields...)
		sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
		return fmt.Sprintf("flds:%v:%v", fields, c.Contiguous)
	case KindAlignment:
		return fmt.Sprintf("al:%d:%d", c.Field, c.Alignment)
	case KindCapacity:
		return fmt.Sprintf("cap:%d", c.Bytes)
	}
	return string(c.Kind)
}

func (c Constraint) String() string { return c.key() }

// ConstraintSet is an immutable bag of constraints describing an
// instance layout.
type ConstraintSet struct {
	Constraints []Constraint `json:"constraints" yaml:"constraints"`
}

// NewConstraintSet builds a set from explicit constraints.
func NewConstraintSet(constraints ...Constraint) ConstraintSet {
	return ConstraintSet{Constraints: constraints}
}

// WithSpecialized returns a copy with the given specialisation.
func (s ConstraintSet) WithSpecialized(kind Specialized) ConstraintSet {
	return s.with(Constraint{Kind: KindSpecialized, Specialized: kind})
}

// WithMemoryKind returns a copy restricted to the given memory kind.
func (s ConstraintSet) WithMemoryKind(kind mem.Kind) ConstraintSet {
	return s.with(Constraint{Kind: KindMemory, MemoryKind: kind})
}

// WithOrdering returns a copy with a fixed dimension order.
func (s ConstraintSet) WithOrdering(contiguous bool, dims ...Dim) ConstraintSet {
	return s.with(Constraint{Kind: KindOrdering, Ordering: dims, Contiguous: contiguous})
}

// WithFields returns a copy requiring the listed fields.
func (s ConstraintSet) WithFields(contiguous bool, fields ...region.FieldID) ConstraintSet {
	return s.with(Constraint{Kind: KindFields, Fields: fields, Contiguous: contiguous})
}

// WithAlignment returns a copy requiring a field alignment.
func (s ConstraintSet) WithAlignment(field region.FieldID, bytes uint32) ConstraintSet {
	return s.with(Constraint{Kind: KindAlignment, Field: field, Alignment: bytes})
}

func (s ConstraintSet) with(c Constraint) ConstraintSet {
	out := ConstraintSet{Constraints: make([]Constraint, len(s.Constraints), len(s.Constraints)+1)}
	copy(out.Constraints, s.Constraints)
	out.Constraints = append(out.Constraints, c)
	return out
}

// Specialized returns the specialisation, defaulting to NormalInstance
// when the set carries no specialized constraint.
func (s ConstraintSet) Specialized() Specialized {
	for _, c := range s.Constraints {
		if c.Kind == KindSpecialized {
			return c.Specialized
		}
	}
	return NormalInstance
}

// MemoryKind returns the required memory kind; ok is false when the set
// does not restrict it.
func (s ConstraintSet) MemoryKind() (mem.Kind, bool) {
	for _, c := range s.Constraints {
		if c.Kind == KindMemory {
			return c.MemoryKind, true
		}
	}
	return "", false
}

// FieldIDs returns the union of all field constraints in the set.
func (s ConstraintSet) FieldIDs() []region.FieldID {
	var out []region.FieldID
	for _, c := range s.Constraints {
		if c.Kind == KindFields {
			out = append(out, c.Fields...)
		}
	}
	return out
}

// Entails reports whether every constraint in other is satisfied by
// this set. On failure it also returns the first violated constraint.
func (s ConstraintSet) Entails(other ConstraintSet) (bool, *Constraint) {
	for i := range other.Constraints {
		required := other.Constraints[i]
		if !s.satisfies(required) {
			violated := required
			return false, &violated
		}
	}
	return true, nil
}

func (s ConstraintSet) satisfies(required Constraint) bool {
	switch required.Kind {
	case KindSpecialized:
		return s.Specialized() == required.Specialized
	case KindMemory:
		kind, ok := s.MemoryKind()
		return ok && kind == required.MemoryKind
	case KindFields:
		have := make(map[region.FieldID]bool)
		for _, f := range s.FieldIDs() {
			have[f] = true
		}
		for _, f := range required.Fields {
			if !have[f] {
				return false
			}
		}
		return true
	case KindOrdering:
		for _, c := range s.Constraints {
			if c.Kind == KindOrdering && orderingMatches(c.Ordering, required.Ordering) {
				return true
			}
		}
		return false
	case KindAlignment:
		// A zero required alignment constrains nothing.
		if required.Alignment == 0 {
			return true
		}
		for _, c := range s.Constraints {
			if c.Kind == KindAlignment && c.Field == required.Field &&
				c.Alignment > 0 && c.Alignment%required.Alignment == 0 {
				return true
			}
		}
		return false
	}
	return false
}

func orderingMatches(have, want []Dim) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if have[i] != want[i] {
			return false
		}
	}
	return true
}

// Key returns a canonical representation used for interning and
// instance lookup. Constraint order within a set is not significant.
func (s ConstraintSet) Key() string {
	keys := make([]string, len(s.Constraints))
	for i, c := range s.Constraints {
		keys[i] = c.key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}
