package mapper

import (
	"context"
	"fmt"

	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/runtime/future"
	"github.com/lattixio/lattix/runtime/instance"
	memctl "github.com/lattixio/lattix/runtime/memory"
	"github.com/lattixio/lattix/service/messaging"
	"github.com/lattixio/lattix/service/regiontree"
	"github.com/lattixio/lattix/service/semantic"
	"github.com/lattixio/lattix/tracing"
)

// InstanceSpec describes what an allocation request must satisfy:
// either an explicit constraint set or a pre-registered layout id,
// over a set of logical regions from one region tree.
type InstanceSpec struct {
	Constraints layout.ConstraintSet
	// LayoutID, when non-zero, selects an interned constraint set and
	// takes precedence over Constraints.
	LayoutID layout.ID
	Regions  []region.LogicalRegion
	// Acquire additionally holds the instance for the duration of the
	// current call.
	Acquire bool
	// GCPriority seeds the eviction ordering of a created instance.
	GCPriority int64
	// TightBounds asks the allocator to minimise padding.
	TightBounds bool
}

// CreateResult carries the outcome of an allocation operation.
type CreateResult struct {
	Instance  instance.PhysicalInstance
	Footprint uint64
	// Failed identifies the first violated constraint when the
	// operation did not succeed and a diagnostic is available.
	Failed *layout.Constraint
	// Created distinguishes the create branch of find-or-create.
	Created bool
}

// Runtime is the protocol façade mapper logic programs against. Every
// operation takes the calling context explicitly; expected failures
// are boolean results, never errors raised to the caller.
type Runtime struct {
	space    mem.AddressSpace
	memories *memctl.Manager
	regions  *regiontree.Service
	layouts  *layout.Registry
	views    *instance.ViewRegistry
	semantic *semantic.Service
	exchange *messaging.Exchange
}

// NewRuntime wires the façade over its collaborators.
func NewRuntime(space mem.AddressSpace, memories *memctl.Manager, regions *regiontree.Service,
	layouts *layout.Registry, views *instance.ViewRegistry, semanticSvc *semantic.Service,
	exchange *messaging.Exchange) *Runtime {
	return &Runtime{
		space:    space,
		memories: memories,
		regions:  regions,
		layouts:  layouts,
		views:    views,
		semantic: semanticSvc,
		exchange: exchange,
	}
}

// AddressSpace returns the local address space.
func (r *Runtime) AddressSpace() mem.AddressSpace { return r.space }

// Layouts exposes the layout constraint registry.
func (r *Runtime) Layouts() *layout.Registry { return r.layouts }

// Memories lists the memories visible from this address space, in the
// order they were registered.
func (r *Runtime) Memories(ctx *Context) []mem.Memory { return r.memories.Memories() }

// resolve translates an instance spec into a fully resolved memory
// request. It fails when the layout id is unknown, no regions are
// given, or the regions span multiple region trees.
func (r *Runtime) resolve(spec InstanceSpec) (memctl.Request, error) {
	constraints := spec.Constraints
	if spec.LayoutID != layout.NoID {
		interned, ok := r.layouts.Lookup(spec.LayoutID)
		if !ok {
			return memctl.Request{}, fmt.Errorf("unknown layout id %d", spec.LayoutID)
		}
		constraints = interned
	}
	if len(spec.Regions) == 0 {
		return memctl.Request{}, fmt.Errorf("instance request requires at least one region")
	}
	treeID := spec.Regions[0].TreeID
	fieldSpace := spec.Regions[0].FieldSpace
	var domain region.Domain
	for _, lr := range spec.Regions {
		if lr.TreeID != treeID {
			return memctl.Request{}, fmt.Errorf("instance regions must share one region tree")
		}
		domain = domain.Union(r.regions.RegionDomain(lr))
	}
	fieldIDs := constraints.FieldIDs()
	if len(fieldIDs) == 0 {
		fieldIDs = r.regions.Fields(fieldSpace)
	}
	fields := make([]memctl.Field, 0, len(fieldIDs))
	for _, id := range fieldIDs {
		size, ok := r.regions.FieldSize(fieldSpace, id)
		if !ok {
			return memctl.Request{}, fmt.Errorf("field %d not present in field space %d", id, fieldSpace.ID)
		}
		fields = append(fields, memctl.Field{ID: id, Size: size})
	}
	return memctl.Request{
		Constraints: constraints,
		LayoutID:    spec.LayoutID,
		TreeID:      treeID,
		FieldSpace:  fieldSpace,
		Domain:      domain,
		Fields:      fields,
		TightBounds: spec.TightBounds,
	}, nil
}

// CreatePhysicalInstance allocates a fresh instance in the target
// memory. On success the returned handle owns a resource reference
// the caller must release. On failure ok is false and, when a
// diagnostic is available, CreateResult.Failed names the first
// violated constraint; nothing is partially allocated.
func (r *Runtime) CreatePhysicalInstance(ctx *Context, memory mem.Memory, spec InstanceSpec) (CreateResult, bool) {
	_, span := tracing.StartSpan(context.Background(), "mapper.createPhysicalInstance", "INTERNAL")
	defer tracing.EndSpan(span, nil)
	pool := r.memories.Pool(memory)
	if pool == nil {
		return CreateResult{}, false
	}
	req, err := r.resolve(spec)
	if err != nil {
		return CreateResult{}, false
	}
	inst, footprint, failed, ok := pool.Create(req)
	if !ok {
		return CreateResult{Failed: failed}, false
	}
	if spec.GCPriority != 0 {
		inst.SetGCPriority(spec.GCPriority)
	}
	if spec.Acquire && inst.AddGCReference() {
		ctx.addHold(inst.ID(), inst)
	}
	return CreateResult{Instance: inst, Footprint: footprint, Created: true}, true
}

// FindPhysicalInstance looks up an existing instance satisfying the
// spec; it never allocates. The returned handle owns its own resource
// reference.
func (r *Runtime) FindPhysicalInstance(ctx *Context, memory mem.Memory, spec InstanceSpec) (instance.PhysicalInstance, bool) {
	pool := r.memories.Pool(memory)
	if pool == nil {
		return instance.NoInstance, false
	}
	req, err := r.resolve(spec)
	if err != nil {
		return instance.NoInstance, false
	}
	found, ok := pool.Find(req)
	if !ok {
		return instance.NoInstance, false
	}
	inst := found.Clone()
	if spec.Acquire && inst.AddGCReference() {
		ctx.addHold(inst.ID(), inst)
	}
	return inst, true
}

// FindPhysicalInstances returns every existing instance satisfying the
// spec; empty when none match. Returned handles own their references.
func (r *Runtime) FindPhysicalInstances(ctx *Context, memory mem.Memory, spec InstanceSpec) []instance.PhysicalInstance {
	pool := r.memories.Pool(memory)
	if pool == nil {
		return nil
	}
	req, err := r.resolve(spec)
	if err != nil {
		return nil
	}
	found := pool.FindAll(req)
	out := make([]instance.PhysicalInstance, 0, len(found))
	for _, f := range found {
		inst := f.Clone()
		if spec.Acquire && inst.AddGCReference() {
			ctx.addHold(inst.ID(), inst)
		}
		out = append(out, inst)
	}
	return out
}

// FindOrCreatePhysicalInstance is the common entry point combining
// reuse and allocation under one failure contract: the Created flag
// tells the caller which branch was taken.
func (r *Runtime) FindOrCreatePhysicalInstance(ctx *Context, memory mem.Memory, spec InstanceSpec) (CreateResult, bool) {
	_, span := tracing.StartSpan(context.Background(), "mapper.findOrCreatePhysicalInstance", "INTERNAL")
	defer tracing.EndSpan(span, nil)
	if inst, ok := r.FindPhysicalInstance(ctx, memory, spec); ok {
		return CreateResult{Instance: inst, Footprint: inst.Size(), Created: false}, true
	}
	return r.CreatePhysicalInstance(ctx, memory, spec)
}

// AcquireInstance places a hold preventing the instance's data from
// being reclaimed while the calling context finalises its decision.
// It fails when the data has already been evicted.
func (r *Runtime) AcquireInstance(ctx *Context, inst instance.PhysicalInstance) bool {
	if !inst.AddGCReference() {
		return false
	}
	ctx.addHold(inst.ID(), inst)
	return true
}

// AcquireInstances acquires every instance it can and reports whether
// all succeeded.
func (r *Runtime) AcquireInstances(ctx *Context, instances []instance.PhysicalInstance) bool {
	all := true
	for _, inst := range instances {
		if !r.AcquireInstance(ctx, inst) {
			all = false
		}
	}
	return all
}

// AcquireAndFilterInstances acquires what it can and returns only the
// successfully acquired instances, letting the mapper retry with the
// filtered remainder instead of failing outright.
func (r *Runtime) AcquireAndFilterInstances(ctx *Context, instances []instance.PhysicalInstance) []instance.PhysicalInstance {
	out := make([]instance.PhysicalInstance, 0, len(instances))
	for _, inst := range instances {
		if r.AcquireInstance(ctx, inst) {
			out = append(out, inst)
		}
	}
	return out
}

// ReleaseInstance drops a hold taken by this context. Holds are
// tracked per context, so releasing an instance never acquired here is
// a safe no-op.
func (r *Runtime) ReleaseInstance(ctx *Context, inst instance.PhysicalInstance) {
	ctx.dropHold(inst.ID())
}

// ReleaseInstances drops holds on all given instances.
func (r *Runtime) ReleaseInstances(ctx *Context, instances []instance.PhysicalInstance) {
	for _, inst := range instances {
		r.ReleaseInstance(ctx, inst)
	}
}

// SetGarbageCollectionPriority adjusts the instance's eviction
// ordering; it does not itself evict anything.
func (r *Runtime) SetGarbageCollectionPriority(ctx *Context, inst instance.PhysicalInstance, priority int64) {
	inst.SetGCPriority(priority)
}

// AcquireFuture ensures the future's result value is materialised in
// the given memory before the mapper reads it. The call blocks with
// the pause/resume discipline while the producing task is still
// running.
func (r *Runtime) AcquireFuture(ctx *Context, f *future.Future, memory mem.Memory) bool {
	if !f.IsComplete() {
		ctx.manager.PauseCall(ctx)
		<-f.Ready()
		ctx.manager.ResumeCall(ctx)
	}
	if inst, ok := f.Instance(memory.ID); ok && inst.Valid() {
		return true
	}
	pool := r.memories.Pool(memory)
	if pool == nil {
		return false
	}
	value, _ := f.Value()
	size := uint32(len(value))
	if size == 0 {
		size = 1
	}
	req := memctl.Request{
		Constraints: layout.NewConstraintSet().WithSpecialized(layout.ExternalInstance),
		Domain:      region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(0))),
		Fields:      []memctl.Field{{ID: 0, Size: size}},
		TightBounds: true,
	}
	inst, _, _, ok := pool.Create(req)
	if !ok {
		return false
	}
	f.SetInstance(memory.ID, inst)
	return true
}

// CreateCollectiveView wraps a set of same-data member instances into
// a distributed view.
func (r *Runtime) CreateCollectiveView(ctx *Context, members ...instance.PhysicalInstance) instance.CollectiveView {
	return r.views.NewView(members...)
}

// FindCollectiveView resolves a view from its distributed identity.
func (r *Runtime) FindCollectiveView(ctx *Context, did uint64) instance.CollectiveView {
	return r.views.Resolve(did)
}

// CreateMapperEvent allocates a fresh pending event scoped to the
// current mapper instance.
func (r *Runtime) CreateMapperEvent(ctx *Context) *Event {
	return NewEvent()
}

// HasMapperEventTriggered is a non-blocking poll.
func (r *Runtime) HasMapperEventTriggered(ctx *Context, event *Event) bool {
	return event.HasTriggered()
}

// TriggerMapperEvent transitions the event to triggered; see
// Event.Trigger for the double-trigger contract.
func (r *Runtime) TriggerMapperEvent(ctx *Context, event *Event) {
	event.Trigger()
}

// WaitOnMapperEvent blocks the calling mapper call until the event is
// triggered by some other call, pausing cooperatively meanwhile.
func (r *Runtime) WaitOnMapperEvent(ctx *Context, event *Event) {
	event.Wait(ctx)
}

// EnableReentrant lets other calls of this mapper interleave at pause
// points.
func (r *Runtime) EnableReentrant(ctx *Context) { ctx.manager.EnableReentrant(ctx) }

// DisableReentrant restores strict call serialization.
func (r *Runtime) DisableReentrant(ctx *Context) { ctx.manager.DisableReentrant(ctx) }

// IsReentrant reports whether reentrancy is enabled for this mapper.
func (r *Runtime) IsReentrant(ctx *Context) bool { return ctx.manager.IsReentrant(ctx) }

// IsLocked reports whether the mapper is explicitly locked.
func (r *Runtime) IsLocked(ctx *Context) bool { return ctx.manager.IsLocked(ctx) }

// LockMapper and UnlockMapper bracket a critical section during which
// no other call of this mapper may run, even at pause points.
func (r *Runtime) LockMapper(ctx *Context) { ctx.manager.LockMapper(ctx) }

// UnlockMapper releases an explicit mapper lock.
func (r *Runtime) UnlockMapper(ctx *Context) { ctx.manager.UnlockMapper(ctx) }

// SendMessage delivers an arbitrary payload to the same mapper on
// another address space. Delivery and ordering are the messaging
// layer's contract.
func (r *Runtime) SendMessage(ctx *Context, target mem.AddressSpace, kind int, payload []byte) error {
	return r.exchange.Send(context.Background(), messaging.Envelope{
		Source:   r.space,
		Target:   target,
		MapperID: ctx.manager.MapperID(),
		Kind:     kind,
		Payload:  payload,
	})
}

// Broadcast delivers a payload to the same mapper on every other
// address space.
func (r *Runtime) Broadcast(ctx *Context, kind int, payload []byte) error {
	return r.exchange.Broadcast(context.Background(), messaging.Envelope{
		Source:   r.space,
		MapperID: ctx.manager.MapperID(),
		Kind:     kind,
		Payload:  payload,
	})
}
