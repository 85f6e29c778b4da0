package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lattixio/lattix/internal/strict"
	"github.com/lattixio/lattix/model/mem"
)

var (
	sysmem = mem.Memory{ID: 1, Kind: mem.SystemMemory, AddressSpace: 0, Capacity: 1 << 20}
	fbmem  = mem.Memory{ID: 2, Kind: mem.FrameBuffer, AddressSpace: 1, Capacity: 1 << 20}
	zcmem  = mem.Memory{ID: 3, Kind: mem.ZeroCopy, AddressSpace: 2, Capacity: 1 << 20}
)

func memberIn(id uint64, location mem.Memory) PhysicalInstance {
	return New(Options{ID: id, Location: location, Footprint: 512})
}

func testAffinity() *mem.Affinity {
	affinity := mem.NewAffinity()
	affinity.Set(sysmem, fbmem, mem.Path{Bandwidth: 16, Latency: 800})
	affinity.Set(sysmem, zcmem, mem.Path{Bandwidth: 8, Latency: 100})
	affinity.Set(fbmem, zcmem, mem.Path{Bandwidth: 4, Latency: 400})
	return affinity
}

func TestViewLifetime(t *testing.T) {
	reg := NewViewRegistry(testAffinity())
	a := memberIn(1, sysmem)
	b := memberIn(2, fbmem)

	view := reg.NewView(a, b)
	assert.True(t, view.Exists())
	assert.NotZero(t, view.DID())
	// The view holds its own member references
	assert.Equal(t, int64(2), a.ResourceRefs())

	// Resolution from the distributed identity yields the same object
	resolved := reg.Resolve(view.DID())
	assert.True(t, resolved.Equal(view))
	assert.Equal(t, int64(2), view.Refs())

	clone := view.Clone()
	assert.Equal(t, int64(3), view.Refs())

	clone.Release()
	resolved.Release()
	assert.Equal(t, int64(1), view.Refs())

	// The last release unregisters the view and drops member references
	view.Release()
	assert.False(t, reg.Resolve(view.DID()).Exists())
	assert.Equal(t, int64(1), a.ResourceRefs())

	a.Release()
	b.Release()
}

func TestViewQueries(t *testing.T) {
	reg := NewViewRegistry(testAffinity())
	a := memberIn(1, sysmem)
	b := memberIn(2, fbmem)
	c := memberIn(3, zcmem)
	view := reg.NewView(a, b, c)
	defer view.Release()

	inSys := view.FindInstancesInMemory(sysmem)
	if assert.Len(t, inSys, 1) {
		assert.Equal(t, sysmem, inSys[0].Location())
	}
	assert.Empty(t, view.FindInstancesInMemory(mem.Memory{ID: 99}))

	// Latency ranking: the pool itself, then zerocopy, then framebuffer
	ranked := view.FindInstancesNearestMemory(sysmem, false)
	if assert.Len(t, ranked, 3) {
		assert.Equal(t, sysmem, ranked[0].Location())
		assert.Equal(t, zcmem, ranked[1].Location())
		assert.Equal(t, fbmem, ranked[2].Location())
	}

	// Bandwidth ranking flips the latter two
	ranked = view.FindInstancesNearestMemory(sysmem, true)
	if assert.Len(t, ranked, 3) {
		assert.Equal(t, fbmem, ranked[1].Location())
		assert.Equal(t, zcmem, ranked[2].Location())
	}

	a.Release()
	b.Release()
	c.Release()
}

func TestNullViewStrictChecks(t *testing.T) {
	strict.Enable(true)
	defer strict.Enable(false)

	reg := NewViewRegistry(testAffinity())
	assert.Panics(t, func() { reg.NewView() })
	assert.Panics(t, func() { NoView.Clone() })

	// Releasing the null view stays a no-op even in strict mode
	NoView.Release()
	assert.Nil(t, NoView.Members())
}
