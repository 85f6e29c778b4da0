// Package instance implements the runtime's inventory of physical
// memory allocations. A PhysicalInstance is a counted handle to one
// allocation; a CollectiveView is a counted handle to a set of
// same-data allocations spread across address spaces.
//
// Every allocation carries two independent reference counts:
//
//   - resource references keep the allocation object itself alive;
//     the object is destroyed exactly once, when the count reaches zero.
//   - garbage-collection references keep the allocation's data from
//     being reclaimed under memory pressure; with zero GC references
//     the data may be evicted while the object survives.
//
// The counts are the only synchronisation points in this package -
// structural fields (location, footprint, domain) are immutable after
// creation and can be read without locking.
package instance

import (
	"sync"
	"sync/atomic"

	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
)

// Options describes a new allocation.
type Options struct {
	ID          uint64
	Location    mem.Memory
	Footprint   uint64
	Domain      region.Domain
	FieldSpace  region.FieldSpace
	FieldIDs    []region.FieldID
	TreeID      uint64
	LayoutID    layout.ID
	Constraints layout.ConstraintSet

	// OnDestroy runs exactly once, when the last resource reference is
	// released.
	OnDestroy func()
	// StrongTest, when set, answers whether the owning manager still
	// tracks the allocation. Used only by explicit strong existence
	// checks.
	StrongTest func() bool
}

// state is the underlying allocation object shared by all handles.
type state struct {
	Options

	resourceRefs int64
	gcRefs       int64
	gcPriority   int64
	// valid is cleared when the data is evicted; the object itself may
	// outlive its data.
	valid     atomic.Bool
	destroyed atomic.Bool
	fields    map[region.FieldID]bool

	gcMu sync.Mutex
}

// PhysicalInstance is a counted handle to an allocation. The zero
// value is the null handle: all queries on it return empty or false.
type PhysicalInstance struct {
	st *state
}

// New creates an allocation with one resource reference and no GC
// references, and returns its first handle.
func New(opts Options) PhysicalInstance {
	st := &state{Options: opts, resourceRefs: 1}
	st.valid.Store(true)
	st.fields = make(map[region.FieldID]bool, len(opts.FieldIDs))
	for _, f := range opts.FieldIDs {
		st.fields[f] = true
	}
	return PhysicalInstance{st: st}
}

// NoInstance is the null handle.
var NoInstance = PhysicalInstance{}

// Clone returns a new handle holding its own resource reference.
// Cloning the null handle yields the null handle.
func (i PhysicalInstance) Clone() PhysicalInstance {
	if i.st == nil {
		return PhysicalInstance{}
	}
	atomic.AddInt64(&i.st.resourceRefs, 1)
	return PhysicalInstance{st: i.st}
}

// Release drops this handle's resource reference. When the count
// reaches zero the allocation object is destroyed exactly once.
// Releasing the null handle is a no-op.
func (i PhysicalInstance) Release() {
	if i.st == nil {
		return
	}
	if atomic.AddInt64(&i.st.resourceRefs, -1) == 0 {
		if i.st.destroyed.CompareAndSwap(false, true) {
			i.st.valid.Store(false)
			if i.st.OnDestroy != nil {
				i.st.OnDestroy()
			}
		}
	}
}

// Exists is the cheap local existence check: the handle is non-null
// and its object has not been destroyed.
func (i PhysicalInstance) Exists() bool {
	return i.st != nil && !i.st.destroyed.Load()
}

// StrongExists additionally verifies that the owning manager still
// tracks the allocation. It is strictly more expensive than Exists and
// must be requested explicitly; a passing Exists does not imply the
// owner agrees.
func (i PhysicalInstance) StrongExists() bool {
	if !i.Exists() {
		return false
	}
	if i.st.StrongTest == nil {
		return true
	}
	return i.st.StrongTest()
}

// ID returns the allocation identity, 0 for the null handle.
func (i PhysicalInstance) ID() uint64 {
	if i.st == nil {
		return 0
	}
	return i.st.Options.ID
}

// Location returns the memory pool holding the data, NoMemory for the
// null handle.
func (i PhysicalInstance) Location() mem.Memory {
	if i.st == nil {
		return mem.NoMemory
	}
	return i.st.Location
}

// Size returns the allocation footprint in bytes, 0 for the null
// handle.
func (i PhysicalInstance) Size() uint64 {
	if i.st == nil {
		return 0
	}
	return i.st.Footprint
}

// Domain returns the covered index-space domain, the empty domain for
// the null handle.
func (i PhysicalInstance) Domain() region.Domain {
	if i.st == nil {
		return region.Domain{}
	}
	return i.st.Options.Domain
}

// FieldSpace returns the field-space identity, NoFieldSpace for the
// null handle.
func (i PhysicalInstance) FieldSpace() region.FieldSpace {
	if i.st == nil {
		return region.NoFieldSpace
	}
	return i.st.Options.FieldSpace
}

// TreeID returns the region-tree identity, 0 for the null handle.
func (i PhysicalInstance) TreeID() uint64 {
	if i.st == nil {
		return 0
	}
	return i.st.Options.TreeID
}

// LayoutID returns the interned layout identity, NoID for the null
// handle.
func (i PhysicalInstance) LayoutID() layout.ID {
	if i.st == nil {
		return layout.NoID
	}
	return i.st.Options.LayoutID
}

// HasField reports whether the allocation holds the field; false for
// the null handle.
func (i PhysicalInstance) HasField(field region.FieldID) bool {
	if i.st == nil {
		return false
	}
	return i.st.fields[field]
}

// Entails reports whether the allocation's layout satisfies every
// constraint in the set; on failure the first violated constraint is
// returned. The null handle entails nothing.
func (i PhysicalInstance) Entails(constraints layout.ConstraintSet) (bool, *layout.Constraint) {
	if i.st == nil {
		if len(constraints.Constraints) == 0 {
			return true, nil
		}
		violated := constraints.Constraints[0]
		return false, &violated
	}
	return i.st.Constraints.Entails(constraints)
}

// IsVirtual reports whether the allocation is a virtual instance.
func (i PhysicalInstance) IsVirtual() bool {
	return i.st != nil && i.st.Constraints.Specialized() == layout.VirtualInstance
}

// IsReduction reports whether the allocation is a reduction instance.
func (i PhysicalInstance) IsReduction() bool {
	return i.st != nil && i.st.Constraints.Specialized() == layout.ReductionInstance
}

// IsExternal reports whether the allocation wraps external memory.
func (i PhysicalInstance) IsExternal() bool {
	return i.st != nil && i.st.Constraints.Specialized() == layout.ExternalInstance
}

// IsNormal reports whether the allocation is a plain instance.
func (i PhysicalInstance) IsNormal() bool {
	return i.st != nil && i.st.Constraints.Specialized() == layout.NormalInstance
}

// Less orders handles by object identity for use in ordered
// containers. It carries no semantic meaning.
func (i PhysicalInstance) Less(other PhysicalInstance) bool {
	return i.ID() < other.ID()
}

// Equal reports whether both handles refer to the same allocation.
func (i PhysicalInstance) Equal(other PhysicalInstance) bool {
	return i.st == other.st
}

// AddGCReference takes a garbage-collection reference, preventing the
// data from being reclaimed. It fails when the data has already been
// evicted or the object destroyed.
func (i PhysicalInstance) AddGCReference() bool {
	if i.st == nil {
		return false
	}
	i.st.gcMu.Lock()
	defer i.st.gcMu.Unlock()
	if !i.st.valid.Load() || i.st.destroyed.Load() {
		return false
	}
	i.st.gcRefs++
	return true
}

// RemoveGCReference drops a garbage-collection reference. With zero GC
// references the data becomes reclaimable; the object itself survives
// until its resource references are gone.
func (i PhysicalInstance) RemoveGCReference() {
	if i.st == nil {
		return
	}
	i.st.gcMu.Lock()
	defer i.st.gcMu.Unlock()
	if i.st.gcRefs > 0 {
		i.st.gcRefs--
	}
}

// Collectable reports whether the data may be reclaimed: live data
// with no GC references.
func (i PhysicalInstance) Collectable() bool {
	if i.st == nil {
		return false
	}
	i.st.gcMu.Lock()
	defer i.st.gcMu.Unlock()
	return i.st.valid.Load() && i.st.gcRefs == 0
}

// Valid reports whether the data is still resident (not evicted).
func (i PhysicalInstance) Valid() bool {
	return i.st != nil && i.st.valid.Load()
}

// Evict atomically reclaims collectable data: when the data is live
// and holds no GC references it is marked evicted and true is
// returned. A hold taken concurrently makes it return false, so an
// acquire that succeeded keeps the data resident.
func (i PhysicalInstance) Evict() bool {
	if i.st == nil {
		return false
	}
	i.st.gcMu.Lock()
	defer i.st.gcMu.Unlock()
	if !i.st.valid.Load() || i.st.gcRefs != 0 {
		return false
	}
	i.st.valid.Store(false)
	return true
}

// Invalidate marks the data as evicted. Called by the memory manager
// only; the object survives until resource references reach zero.
func (i PhysicalInstance) Invalidate() {
	if i.st == nil {
		return
	}
	i.st.gcMu.Lock()
	i.st.valid.Store(false)
	i.st.gcMu.Unlock()
}

// GCPriority returns the eviction ordering value; most negative is
// evicted first.
func (i PhysicalInstance) GCPriority() int64 {
	if i.st == nil {
		return 0
	}
	return atomic.LoadInt64(&i.st.gcPriority)
}

// SetGCPriority adjusts the eviction ordering. It does not itself
// evict anything.
func (i PhysicalInstance) SetGCPriority(priority int64) {
	if i.st == nil {
		return
	}
	atomic.StoreInt64(&i.st.gcPriority, priority)
}

// ResourceRefs returns the current resource reference count. Intended
// for diagnostics and tests.
func (i PhysicalInstance) ResourceRefs() int64 {
	if i.st == nil {
		return 0
	}
	return atomic.LoadInt64(&i.st.resourceRefs)
}

// GCRefs returns the current GC reference count. Intended for
// diagnostics and tests.
func (i PhysicalInstance) GCRefs() int64 {
	if i.st == nil {
		return 0
	}
	i.st.gcMu.Lock()
	defer i.st.gcMu.Unlock()
	return i.st.gcRefs
}
