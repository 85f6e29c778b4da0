package lattix

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/model/task"
	"github.com/lattixio/lattix/runtime/mapper"
	"github.com/lattixio/lattix/service/messaging"
	"github.com/lattixio/lattix/service/policy/bestfit"
)

func TestRuntimeStartShutdownIdempotent(t *testing.T) {
	svc := New()
	rt := svc.Runtime()
	ctx := context.Background()
	require.NoError(t, rt.Start(ctx))
	require.NoError(t, rt.Start(ctx))
	require.NoError(t, rt.Shutdown(ctx))
	require.NoError(t, rt.Shutdown(ctx))
}

func TestInvokeMapperCallRequiresStart(t *testing.T) {
	svc := New()
	err := svc.Runtime().InvokeMapperCall(context.Background(), bestfit.Name, "probe",
		func(callCtx *mapper.Context, rt *mapper.Runtime) error { return nil })
	assert.ErrorContains(t, err, "not started")
}

func TestMapTaskEndToEnd(t *testing.T) {
	sysmem := mem.Memory{ID: 1, Kind: mem.SystemMemory, Capacity: 1 << 20}
	svc := New(WithMemories(sysmem), WithWorkers(2))
	ctx := context.Background()
	rt := svc.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	regions := svc.Regions()
	fields := regions.CreateFieldSpace(map[region.FieldID]uint32{1: 8})
	space := regions.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(9))))
	logical := regions.CreateLogicalRegion(space, fields)

	assignment, failure, err := rt.MapTask(ctx, bestfit.Name, &task.Task{
		ID:      "t1",
		Regions: []region.LogicalRegion{logical},
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	require.NotNil(t, assignment)
	assert.Equal(t, sysmem.ID, assignment.Memory.ID)
	require.Len(t, assignment.Instances, 1)
	assert.True(t, assignment.Instances[0].Exists())

	// A second identical task reuses the resident instance.
	again, failure, err := rt.MapTask(ctx, bestfit.Name, &task.Task{
		ID:      "t2",
		Regions: []region.LogicalRegion{logical},
	})
	require.NoError(t, err)
	require.Nil(t, failure)
	assert.Equal(t, assignment.Instances[0].ID(), again.Instances[0].ID())
}

func TestMapTaskReportsInfeasible(t *testing.T) {
	small := mem.Memory{ID: 1, Kind: mem.SystemMemory, Capacity: 64}
	svc := New(WithMemories(small))
	ctx := context.Background()
	rt := svc.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	regions := svc.Regions()
	fields := regions.CreateFieldSpace(map[region.FieldID]uint32{1: 8})
	space := regions.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(1023))))
	logical := regions.CreateLogicalRegion(space, fields)

	assignment, failure, err := rt.MapTask(ctx, bestfit.Name, &task.Task{
		ID:      "t1",
		Regions: []region.LogicalRegion{logical},
	})
	require.NoError(t, err)
	assert.Nil(t, assignment)
	require.NotNil(t, failure)
	assert.NotNil(t, failure.Failed)
}

func TestMapTaskUnknownMapper(t *testing.T) {
	svc := New()
	ctx := context.Background()
	require.NoError(t, svc.Runtime().Start(ctx))
	defer svc.Runtime().Shutdown(ctx)
	_, _, err := svc.Runtime().MapTask(ctx, "nope", &task.Task{ID: "t1"})
	assert.ErrorContains(t, err, "unknown mapper")
}

func TestPausedCallReleasesWorker(t *testing.T) {
	svc := New(WithWorkers(1))
	ctx := context.Background()
	rt := svc.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	var ev *mapper.Event
	ready := make(chan struct{})
	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- rt.InvokeMapperCall(ctx, bestfit.Name, "awaitSignal",
			func(callCtx *mapper.Context, prt *mapper.Runtime) error {
				prt.EnableReentrant(callCtx)
				ev = prt.CreateMapperEvent(callCtx)
				close(ready)
				prt.WaitOnMapperEvent(callCtx, ev)
				return nil
			})
	}()
	<-ready

	// With a single worker slot, the trigger can only run if the
	// paused waiter handed its slot back.
	err := rt.InvokeMapperCall(ctx, bestfit.Name, "signal",
		func(callCtx *mapper.Context, prt *mapper.Runtime) error {
			prt.TriggerMapperEvent(callCtx, ev)
			return nil
		})
	require.NoError(t, err)

	select {
	case err := <-waiterErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("paused call starved the worker pool")
	}
}

func TestShutdownWithPausedCall(t *testing.T) {
	svc := New(WithWorkers(1))
	ctx := context.Background()
	rt := svc.Runtime()
	require.NoError(t, rt.Start(ctx))

	paused := make(chan struct{})
	go func() {
		_ = rt.InvokeMapperCall(ctx, bestfit.Name, "awaitForever",
			func(callCtx *mapper.Context, prt *mapper.Runtime) error {
				ev := prt.CreateMapperEvent(callCtx)
				close(paused)
				prt.WaitOnMapperEvent(callCtx, ev)
				return nil
			})
	}()
	<-paused
	assert.Eventually(t, func() bool {
		return rt.Manager(bestfit.Name).Snapshot().Paused == 1
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = rt.Shutdown(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown blocked on a paused call")
	}
}

func TestCrossSpaceBroadcast(t *testing.T) {
	shared := messaging.NewExchange(nil)
	svcA := New(WithAddressSpace(1), WithExchange(shared))
	svcB := New(WithAddressSpace(2), WithExchange(shared))
	ctx := context.Background()
	require.NoError(t, svcA.Runtime().Start(ctx))
	require.NoError(t, svcB.Runtime().Start(ctx))
	defer svcA.Runtime().Shutdown(ctx)
	defer svcB.Runtime().Shutdown(ctx)

	err := svcA.Runtime().InvokeMapperCall(ctx, bestfit.Name, "notify",
		func(callCtx *mapper.Context, rt *mapper.Runtime) error {
			return rt.Broadcast(callCtx, 7, []byte("rebalance"))
		})
	require.NoError(t, err)

	peer := svcB.Mappers().Lookup(bestfit.Name).(*bestfit.Service)
	assert.Eventually(t, func() bool { return peer.Received() == 1 },
		time.Second, 5*time.Millisecond)
}
