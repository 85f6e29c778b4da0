package mapper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/runtime/future"
	"github.com/lattixio/lattix/runtime/instance"
	memctl "github.com/lattixio/lattix/runtime/memory"
	"github.com/lattixio/lattix/service/messaging"
	mmemory "github.com/lattixio/lattix/service/messaging/memory"
	"github.com/lattixio/lattix/service/regiontree"
	"github.com/lattixio/lattix/service/semantic"
)

const testPage = 4096

type fixture struct {
	runtime *Runtime
	manager *Manager
	ctx     *Context
	sysmem  mem.Memory
	fbmem   mem.Memory
	regions *regiontree.Service
	fields  region.FieldSpace
	region1 region.LogicalRegion
	region2 region.LogicalRegion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sysmem := mem.Memory{ID: 1, Kind: mem.SystemMemory, Capacity: 3 * testPage}
	fbmem := mem.Memory{ID: 2, Kind: mem.FrameBuffer, AddressSpace: 1, Capacity: 2 * testPage}

	regions := regiontree.New()
	fields := regions.CreateFieldSpace(map[region.FieldID]uint32{1: 8, 2: 4})
	space1 := regions.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(9))))
	space2 := regions.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(10), region.Pt(19))))
	region1 := regions.CreateLogicalRegion(space1, fields)
	region2 := regions.CreateLogicalRegion(space2, fields)

	memories := memctl.NewManager(sysmem, fbmem)
	affinity := mem.NewAffinity()
	affinity.Set(sysmem, fbmem, mem.Path{Bandwidth: 16, Latency: 800})
	exchange := messaging.NewExchange(nil)
	exchange.Attach(0, mmemory.NewQueue[messaging.Envelope](mmemory.DefaultConfig()))
	exchange.Attach(1, mmemory.NewQueue[messaging.Envelope](mmemory.DefaultConfig()))

	runtime := NewRuntime(0, memories, regions, layout.NewRegistry(),
		instance.NewViewRegistry(affinity), semantic.New(), exchange)
	manager := NewManager("test")
	return &fixture{
		runtime: runtime,
		manager: manager,
		ctx:     manager.BeginCall("test"),
		sysmem:  sysmem,
		fbmem:   fbmem,
		regions: regions,
		fields:  fields,
		region1: region1,
		region2: region2,
	}
}

func (f *fixture) spec(lr region.LogicalRegion) InstanceSpec {
	return InstanceSpec{
		Constraints: layout.NewConstraintSet().WithMemoryKind(mem.SystemMemory),
		Regions:     []region.LogicalRegion{lr},
	}
}

func TestCreateAndFindOrCreate(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	result, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, f.spec(f.region1))
	require.True(t, ok)
	assert.True(t, result.Created)
	assert.Equal(t, uint64(testPage), result.Footprint)
	assert.Equal(t, int64(1), result.Instance.ResourceRefs())

	// The second request reuses the instance; the new handle owns its
	// own reference
	again, ok := f.runtime.FindOrCreatePhysicalInstance(f.ctx, f.sysmem, f.spec(f.region1))
	require.True(t, ok)
	assert.False(t, again.Created)
	assert.True(t, again.Instance.Equal(result.Instance))
	assert.Equal(t, int64(2), result.Instance.ResourceRefs())

	// A disjoint region is not covered, so a fresh instance is created
	other, ok := f.runtime.FindOrCreatePhysicalInstance(f.ctx, f.sysmem, f.spec(f.region2))
	require.True(t, ok)
	assert.True(t, other.Created)
	assert.False(t, other.Instance.Equal(result.Instance))

	result.Instance.Release()
	again.Instance.Release()
	other.Instance.Release()
}

func TestFindNeverAllocates(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	_, ok := f.runtime.FindPhysicalInstance(f.ctx, f.sysmem, f.spec(f.region1))
	assert.False(t, ok)
	assert.Equal(t, uint64(0), f.runtime.memories.Pool(f.sysmem).Used())
}

func TestCreateFailureDiagnostics(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	// Wrong memory kind is reported as the violated constraint
	spec := f.spec(f.region1)
	spec.Constraints = layout.NewConstraintSet().WithMemoryKind(mem.FrameBuffer)
	result, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, spec)
	assert.False(t, ok)
	require.NotNil(t, result.Failed)
	assert.Equal(t, layout.KindMemory, result.Failed.Kind)

	// Exhausted capacity synthesizes a capacity constraint
	big := f.spec(f.region1)
	bigSpace := f.regions.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(8*testPage))))
	big.Regions = []region.LogicalRegion{f.regions.CreateLogicalRegion(bigSpace, f.fields)}
	result, ok = f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, big)
	assert.False(t, ok)
	require.NotNil(t, result.Failed)
	assert.Equal(t, layout.KindCapacity, result.Failed.Kind)
}

func TestAcquireRelease(t *testing.T) {
	f := newFixture(t)

	spec := f.spec(f.region1)
	spec.Acquire = true
	result, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, spec)
	require.True(t, ok)
	inst := result.Instance
	assert.Equal(t, int64(1), inst.GCRefs())

	// Releasing an instance this context never acquired is a no-op
	stranger, _, _, ok := f.runtime.memories.Pool(f.sysmem).Create(memctl.Request{
		Constraints: layout.NewConstraintSet(),
		Domain:      region.NewDomain(1, region.Rc(region.Pt(100), region.Pt(100))),
		Fields:      []memctl.Field{{ID: 1, Size: 8}},
	})
	require.True(t, ok)
	require.True(t, stranger.AddGCReference())
	f.runtime.ReleaseInstance(f.ctx, stranger)
	assert.Equal(t, int64(1), stranger.GCRefs())

	// Explicit release drops the hold
	f.runtime.ReleaseInstance(f.ctx, inst)
	assert.Equal(t, int64(0), inst.GCRefs())

	// Re-acquire, then let call end drain the hold
	assert.True(t, f.runtime.AcquireInstance(f.ctx, inst))
	assert.Equal(t, int64(1), inst.GCRefs())
	f.manager.EndCall(f.ctx)
	assert.Equal(t, int64(0), inst.GCRefs())

	inst.Release()
	stranger.Release()
}

func TestAcquireAndFilter(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	alive, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, f.spec(f.region1))
	require.True(t, ok)
	gone, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, f.spec(f.region2))
	require.True(t, ok)
	gone.Instance.Invalidate()

	usable := f.runtime.AcquireAndFilterInstances(f.ctx,
		[]instance.PhysicalInstance{alive.Instance, gone.Instance})
	if assert.Len(t, usable, 1) {
		assert.True(t, usable[0].Equal(alive.Instance))
	}
	assert.False(t, f.runtime.AcquireInstances(f.ctx,
		[]instance.PhysicalInstance{alive.Instance, gone.Instance}))

	alive.Instance.Release()
	gone.Instance.Release()
}

func TestCollectiveViews(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	a, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.sysmem, f.spec(f.region1))
	require.True(t, ok)
	spec := f.spec(f.region1)
	spec.Constraints = layout.NewConstraintSet().WithMemoryKind(mem.FrameBuffer)
	b, ok := f.runtime.CreatePhysicalInstance(f.ctx, f.fbmem, spec)
	require.True(t, ok)

	view := f.runtime.CreateCollectiveView(f.ctx, a.Instance, b.Instance)
	require.True(t, view.Exists())

	resolved := f.runtime.FindCollectiveView(f.ctx, view.DID())
	assert.True(t, resolved.Equal(view))

	resolved.Release()
	view.Release()
	a.Instance.Release()
	b.Instance.Release()
}

func TestAcquireFuture(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	fut := future.New()
	fut.Complete([]byte("result"))

	require.True(t, f.runtime.AcquireFuture(f.ctx, fut, f.sysmem))
	inst, ok := fut.Instance(f.sysmem.ID)
	require.True(t, ok)
	assert.True(t, inst.IsExternal())
	assert.Equal(t, uint64(len("result")), inst.Size())

	// A second acquire reuses the materialised instance
	require.True(t, f.runtime.AcquireFuture(f.ctx, fut, f.sysmem))
	assert.Equal(t, 1, f.runtime.memories.Pool(f.sysmem).Resident())
}

func TestMapperEvents(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	event := f.runtime.CreateMapperEvent(f.ctx)
	assert.False(t, f.runtime.HasMapperEventTriggered(f.ctx, event))
	f.runtime.TriggerMapperEvent(f.ctx, event)
	assert.True(t, f.runtime.HasMapperEventTriggered(f.ctx, event))
	// Waiting after the trigger returns immediately
	f.runtime.WaitOnMapperEvent(f.ctx, event)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	require.NoError(t, f.runtime.SendMessage(f.ctx, 1, 7, []byte("hello")))
	msg, err := f.runtime.exchange.Consume(context.Background(), 1)
	require.NoError(t, err)
	env := msg.T()
	assert.Equal(t, mem.AddressSpace(0), env.Source)
	assert.Equal(t, "test", env.MapperID)
	assert.Equal(t, 7, env.Kind)
	assert.Equal(t, []byte("hello"), env.Payload)

	// Broadcast reaches every space but the sender
	require.NoError(t, f.runtime.Broadcast(f.ctx, 8, nil))
	msg, err = f.runtime.exchange.Consume(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, msg.T().Broadcast)
}

func TestQueryFacade(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	space := f.runtime.CreateIndexSpaceFromRects(f.ctx, []region.Rect{
		region.Rc(region.Pt(0), region.Pt(3)),
		region.Rc(region.Pt(6), region.Pt(9)),
	})
	require.True(t, space.Exists())
	assert.Equal(t, uint64(8), f.runtime.IndexSpaceDomain(f.ctx, space).Volume())

	points := f.runtime.CreateIndexSpaceFromPoints(f.ctx, []region.Point{region.Pt(1), region.Pt(7)})
	inter, err := f.runtime.IntersectIndexSpaces(f.ctx, space, points)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.runtime.IndexSpaceDomain(f.ctx, inter).Volume())
}

func TestRetrieveSemanticInformation(t *testing.T) {
	f := newFixture(t)
	defer f.manager.EndCall(f.ctx)

	// Absent tags fail fast when allowed to
	_, ok := f.runtime.RetrieveSemanticInformation(f.ctx, semantic.RegionObject, 1, 5, true, false)
	assert.False(t, ok)

	require.NoError(t, f.runtime.semantic.Attach(semantic.RegionObject, 1, 5, []byte("meta")))
	value, ok := f.runtime.RetrieveSemanticInformation(f.ctx, semantic.RegionObject, 1, 5, false, false)
	assert.True(t, ok)
	assert.Equal(t, []byte("meta"), value)

	require.NoError(t, f.runtime.semantic.AttachName(semantic.RegionObject, 1, "grid"))
	name, ok := f.runtime.RetrieveName(f.ctx, semantic.RegionObject, 1, false, false)
	assert.True(t, ok)
	assert.Equal(t, "grid", name)
}
