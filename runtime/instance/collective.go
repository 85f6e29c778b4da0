package instance

import (
	"sort"
	"sync/atomic"

	"github.com/lattixio/lattix/internal/strict"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/service/registry"
)

// view is the underlying distributed object behind CollectiveView
// handles. It owns one resource reference on every member instance.
type view struct {
	did     uint64
	members []PhysicalInstance
	refs    int64
	reg     *ViewRegistry
}

// CollectiveView is a counted handle to a set of instances, one per
// participating address space, all backing the same logical data. A
// single reference class governs its lifetime: the last release
// deletes the underlying object and drops its member references.
type CollectiveView struct {
	v *view
}

// ViewRegistry maps distributed identities to live view objects so a
// view can be re-resolved from its identity on any address space.
type ViewRegistry struct {
	nextDID  uint64
	store    *registry.Store[uint64, view]
	affinity *mem.Affinity
}

// NewViewRegistry creates a registry ranking nearest-memory queries
// with the supplied affinity table.
func NewViewRegistry(affinity *mem.Affinity) *ViewRegistry {
	return &ViewRegistry{
		store:    registry.NewStore[uint64, view](func(v *view) uint64 { return v.did }),
		affinity: affinity,
	}
}

// NewView constructs a view over the member instances, taking one
// resource reference on each. Constructing a view with no live backing
// members is a programming error.
func (r *ViewRegistry) NewView(members ...PhysicalInstance) CollectiveView {
	strict.Check(len(members) > 0, "collective view requires at least one member instance")
	if len(members) == 0 {
		return CollectiveView{}
	}
	held := make([]PhysicalInstance, 0, len(members))
	for _, m := range members {
		strict.Check(m.Exists(), "collective view member must be a live instance")
		held = append(held, m.Clone())
	}
	v := &view{
		did:     atomic.AddUint64(&r.nextDID, 1),
		members: held,
		refs:    1,
		reg:     r,
	}
	r.store.Put(v)
	return CollectiveView{v: v}
}

// Resolve returns a new handle for the view registered under did,
// taking its own reference. The null view is returned when the
// identity is unknown.
func (r *ViewRegistry) Resolve(did uint64) CollectiveView {
	v := r.store.Get(did)
	if v == nil {
		return CollectiveView{}
	}
	atomic.AddInt64(&v.refs, 1)
	return CollectiveView{v: v}
}

// NoView is the null collective view.
var NoView = CollectiveView{}

// Exists reports whether the handle refers to a live view.
func (c CollectiveView) Exists() bool { return c.v != nil }

// DID returns the distributed identity, 0 for the null view.
func (c CollectiveView) DID() uint64 {
	if c.v == nil {
		return 0
	}
	return c.v.did
}

// Clone returns a new handle holding its own reference. Cloning a live
// view never yields the null view; cloning the null view is a
// programming error.
func (c CollectiveView) Clone() CollectiveView {
	strict.Check(c.v != nil, "cannot clone a null collective view")
	if c.v == nil {
		return CollectiveView{}
	}
	atomic.AddInt64(&c.v.refs, 1)
	return CollectiveView{v: c.v}
}

// Release drops this handle's reference. The last release removes the
// view from its registry and releases every member instance.
func (c CollectiveView) Release() {
	if c.v == nil {
		return
	}
	if atomic.AddInt64(&c.v.refs, -1) == 0 {
		c.v.reg.store.Remove(c.v.did)
		for _, m := range c.v.members {
			m.Release()
		}
	}
}

// Members returns the member instances. Handles are borrowed: they are
// valid only while the view is live.
func (c CollectiveView) Members() []PhysicalInstance {
	if c.v == nil {
		return nil
	}
	out := make([]PhysicalInstance, len(c.v.members))
	copy(out, c.v.members)
	return out
}

// FindInstancesInMemory returns member instances whose location equals
// the given memory pool, in no particular order.
func (c CollectiveView) FindInstancesInMemory(memory mem.Memory) []PhysicalInstance {
	if c.v == nil {
		return nil
	}
	var out []PhysicalInstance
	for _, m := range c.v.members {
		if m.Location() == memory {
			out = append(out, m)
		}
	}
	return out
}

// FindInstancesNearestMemory returns member instances ranked by the
// memory-topology distance to the given pool, closest first. The
// preferBandwidth flag selects the tie-break metric between bandwidth
// and latency.
func (c CollectiveView) FindInstancesNearestMemory(memory mem.Memory, preferBandwidth bool) []PhysicalInstance {
	if c.v == nil {
		return nil
	}
	out := make([]PhysicalInstance, len(c.v.members))
	copy(out, c.v.members)
	affinity := c.v.reg.affinity
	sort.SliceStable(out, func(i, j int) bool {
		return affinity.Closer(memory, out[i].Location(), out[j].Location(), preferBandwidth)
	})
	return out
}

// Equal compares underlying object identity, not member contents.
func (c CollectiveView) Equal(other CollectiveView) bool {
	return c.v == other.v
}

// Less orders views by distributed identity for ordered containers.
func (c CollectiveView) Less(other CollectiveView) bool {
	return c.DID() < other.DID()
}

// Refs returns the current reference count. Intended for diagnostics
// and tests.
func (c CollectiveView) Refs() int64 {
	if c.v == nil {
		return 0
	}
	return atomic.LoadInt64(&c.v.refs)
}
