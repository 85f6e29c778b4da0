package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
)

func TestConstraintSetEntails(t *testing.T) {
	have := NewConstraintSet().
		WithSpecialized(NormalInstance).
		WithMemoryKind(mem.FrameBuffer).
		WithOrdering(true, DimX, DimY, FieldDim).
		WithFields(false, 1, 2, 3)

	// A subset of the same requirements is entailed
	ok, failed := have.Entails(NewConstraintSet().WithMemoryKind(mem.FrameBuffer).WithFields(false, 2))
	assert.True(t, ok)
	assert.Nil(t, failed)

	// A mismatching memory kind is reported as the violated constraint
	ok, failed = have.Entails(NewConstraintSet().WithMemoryKind(mem.SystemMemory))
	assert.False(t, ok)
	if assert.NotNil(t, failed) {
		assert.Equal(t, KindMemory, failed.Kind)
	}

	// Missing fields fail the fields constraint
	ok, failed = have.Entails(NewConstraintSet().WithFields(false, 9))
	assert.False(t, ok)
	if assert.NotNil(t, failed) {
		assert.Equal(t, KindFields, failed.Kind)
	}

	// The empty set is entailed by anything
	ok, _ = have.Entails(NewConstraintSet())
	assert.True(t, ok)
}

func TestEntailsZeroAlignment(t *testing.T) {
	have := NewConstraintSet().WithAlignment(1, 64)

	// A zero required alignment constrains nothing
	ok, failed := have.Entails(NewConstraintSet().WithAlignment(1, 0))
	assert.True(t, ok)
	assert.Nil(t, failed)

	// Even when the set carries no alignment at all
	ok, _ = NewConstraintSet().Entails(NewConstraintSet().WithAlignment(1, 0))
	assert.True(t, ok)

	// A real requirement still fails without a compatible alignment
	ok, failed = NewConstraintSet().Entails(NewConstraintSet().WithAlignment(1, 8))
	assert.False(t, ok)
	if assert.NotNil(t, failed) {
		assert.Equal(t, KindAlignment, failed.Kind)
	}
}

func TestConstraintSetAccessors(t *testing.T) {
	set := NewConstraintSet().WithFields(true, 3, 1).WithAlignment(1, 64)
	assert.Equal(t, NormalInstance, set.Specialized())
	_, restricted := set.MemoryKind()
	assert.False(t, restricted)
	assert.ElementsMatch(t, []region.FieldID{1, 3}, set.FieldIDs())
}

func TestRegistryInterning(t *testing.T) {
	registry := NewRegistry()
	a := NewConstraintSet().WithMemoryKind(mem.SystemMemory).WithFields(false, 1)
	// Same content in a different construction order interns to one id
	b := NewConstraintSet().WithFields(false, 1).WithMemoryKind(mem.SystemMemory)

	idA := registry.Register(a)
	idB := registry.Register(b)
	assert.Equal(t, idA, idB)
	assert.NotEqual(t, NoID, idA)

	got, ok := registry.Lookup(idA)
	assert.True(t, ok)
	assert.Equal(t, a.Key(), got.Key())

	_, ok = registry.Lookup(NoID)
	assert.False(t, ok)

	idC := registry.Register(NewConstraintSet().WithMemoryKind(mem.Disk))
	assert.NotEqual(t, idA, idC)
}
