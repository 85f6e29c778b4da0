package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
)

func newTestInstance(id uint64, onDestroy func()) PhysicalInstance {
	return New(Options{
		ID:          id,
		Location:    mem.Memory{ID: 1, Kind: mem.SystemMemory, Capacity: 1 << 20},
		Footprint:   4096,
		Domain:      region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(9))),
		FieldSpace:  region.FieldSpace{ID: 1},
		FieldIDs:    []region.FieldID{1, 2},
		TreeID:      7,
		Constraints: layout.NewConstraintSet().WithMemoryKind(mem.SystemMemory),
		OnDestroy:   onDestroy,
	})
}

func TestResourceReferences(t *testing.T) {
	destroyed := 0
	inst := newTestInstance(1, func() { destroyed++ })
	assert.Equal(t, int64(1), inst.ResourceRefs())
	assert.True(t, inst.Exists())

	// Each clone owns its own reference
	clone := inst.Clone()
	assert.Equal(t, int64(2), inst.ResourceRefs())
	assert.True(t, clone.Equal(inst))

	clone.Release()
	assert.True(t, inst.Exists())
	assert.Equal(t, 0, destroyed)

	// The last release destroys the object exactly once
	inst.Release()
	assert.False(t, inst.Exists())
	assert.Equal(t, 1, destroyed)

	// Further releases do not destroy again
	inst.Release()
	assert.Equal(t, 1, destroyed)
}

func TestNullHandle(t *testing.T) {
	assert.False(t, NoInstance.Exists())
	assert.False(t, NoInstance.Valid())
	assert.Equal(t, uint64(0), NoInstance.ID())
	assert.Equal(t, mem.NoMemory, NoInstance.Location())
	assert.False(t, NoInstance.AddGCReference())

	// Cloning and releasing the null handle are no-ops
	assert.False(t, NoInstance.Clone().Exists())
	NoInstance.Release()
	NoInstance.RemoveGCReference()
}

func TestGCReferences(t *testing.T) {
	inst := newTestInstance(2, nil)
	defer inst.Release()

	// Fresh data is collectable until someone holds it
	assert.True(t, inst.Collectable())
	assert.True(t, inst.AddGCReference())
	assert.Equal(t, int64(1), inst.GCRefs())
	assert.False(t, inst.Collectable())

	inst.RemoveGCReference()
	assert.True(t, inst.Collectable())

	// Evicted data refuses new GC references but the object survives
	inst.Invalidate()
	assert.False(t, inst.Valid())
	assert.True(t, inst.Exists())
	assert.False(t, inst.AddGCReference())
	assert.False(t, inst.Collectable())
}

func TestGCReferenceAfterDestroy(t *testing.T) {
	inst := newTestInstance(3, nil)
	inst.Release()
	assert.False(t, inst.AddGCReference())
}

func TestEntailsAndFields(t *testing.T) {
	inst := newTestInstance(4, nil)
	defer inst.Release()

	assert.True(t, inst.HasField(1))
	assert.False(t, inst.HasField(9))

	ok, _ := inst.Entails(layout.NewConstraintSet().WithMemoryKind(mem.SystemMemory))
	assert.True(t, ok)
	ok, failed := inst.Entails(layout.NewConstraintSet().WithMemoryKind(mem.FrameBuffer))
	assert.False(t, ok)
	if assert.NotNil(t, failed) {
		assert.Equal(t, layout.KindMemory, failed.Kind)
	}

	assert.True(t, inst.IsNormal())
	assert.False(t, inst.IsVirtual())
}

func TestStrongExists(t *testing.T) {
	tracked := true
	inst := New(Options{ID: 5, StrongTest: func() bool { return tracked }})
	defer inst.Release()

	assert.True(t, inst.Exists())
	assert.True(t, inst.StrongExists())

	// The owner dropping the allocation flips only the strong check
	tracked = false
	assert.True(t, inst.Exists())
	assert.False(t, inst.StrongExists())
}

func TestEvictHonoursHolds(t *testing.T) {
	inst := newTestInstance(9, nil)
	defer inst.Release()

	assert.True(t, inst.AddGCReference())
	assert.False(t, inst.Evict())
	assert.True(t, inst.Valid())

	inst.RemoveGCReference()
	assert.True(t, inst.Evict())
	assert.False(t, inst.Valid())

	// Already evicted
	assert.False(t, inst.Evict())
	assert.False(t, NoInstance.Evict())
}
