package regiontree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattixio/lattix/model/region"
)

func TestIndexSpaceAlgebra(t *testing.T) {
	svc := New()
	left := svc.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(4))))
	right := svc.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(3), region.Pt(9))))

	union, err := svc.UnionIndexSpaces(left, right)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), svc.Domain(union).Volume())

	inter, err := svc.IntersectIndexSpaces(left, right)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), svc.Domain(inter).Volume())

	diff, err := svc.SubtractIndexSpaces(left, right)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), svc.Domain(diff).Volume())
	assert.True(t, svc.Domain(diff).Contains(region.Pt(2)))
	assert.False(t, svc.Domain(diff).Contains(region.Pt(3)))
}

func TestIndexPartition(t *testing.T) {
	svc := New()
	parent := svc.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(9))))

	partition, err := svc.CreateIndexPartition(parent, map[region.Color]region.Domain{
		region.Pt(0): region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(4))),
		region.Pt(1): region.NewDomain(1, region.Rc(region.Pt(5), region.Pt(9))),
	})
	require.NoError(t, err)
	assert.True(t, svc.IsDisjoint(partition))
	assert.True(t, svc.IsComplete(partition))
	assert.Len(t, svc.PartitionColors(partition), 2)
	assert.Equal(t, parent, svc.ParentIndexSpace(partition))

	// Child spaces are addressed by color and remember their ancestry
	child := svc.IndexSubspace(partition, region.Pt(1))
	require.True(t, child.Exists())
	assert.Equal(t, uint64(5), svc.Domain(child).Volume())
	assert.Equal(t, region.Pt(1), svc.IndexSpaceColor(child))
	assert.Equal(t, 0, svc.IndexSpaceDepth(parent))
	assert.Equal(t, 1, svc.IndexSpaceDepth(child))
	assert.Equal(t, 1, svc.IndexPartitionDepth(partition))

	back, ok := svc.ParentIndexPartition(child)
	assert.True(t, ok)
	assert.Equal(t, partition.ID, back.ID)
	_, ok = svc.ParentIndexPartition(parent)
	assert.False(t, ok)

	assert.False(t, svc.IndexSubspace(partition, region.Pt(9)).Exists())
}

func TestOverlappingIncompletePartition(t *testing.T) {
	svc := New()
	parent := svc.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(9))))

	partition, err := svc.CreateIndexPartition(parent, map[region.Color]region.Domain{
		region.Pt(0): region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(5))),
		region.Pt(1): region.NewDomain(1, region.Rc(region.Pt(4), region.Pt(7))),
	})
	require.NoError(t, err)
	assert.False(t, svc.IsDisjoint(partition))
	assert.False(t, svc.IsComplete(partition))
}

func TestLogicalRegions(t *testing.T) {
	svc := New()
	space := svc.CreateIndexSpace(region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(9))))
	fields := svc.CreateFieldSpace(map[region.FieldID]uint32{1: 8, 2: 4})

	assert.ElementsMatch(t, []region.FieldID{1, 2}, svc.Fields(fields))
	size, ok := svc.FieldSize(fields, 1)
	assert.True(t, ok)
	assert.Equal(t, uint32(8), size)
	_, ok = svc.FieldSize(fields, 9)
	assert.False(t, ok)

	lr := svc.CreateLogicalRegion(space, fields)
	require.True(t, lr.Exists())
	assert.Equal(t, uint64(10), svc.RegionDomain(lr).Volume())

	partition, err := svc.CreateIndexPartition(space, map[region.Color]region.Domain{
		region.Pt(0): region.NewDomain(1, region.Rc(region.Pt(0), region.Pt(4))),
		region.Pt(1): region.NewDomain(1, region.Rc(region.Pt(5), region.Pt(9))),
	})
	require.NoError(t, err)

	lp := svc.LogicalPartition(lr, partition)
	require.True(t, lp.Exists())
	sub := svc.LogicalSubregion(lp, region.Pt(0))
	require.True(t, sub.Exists())
	// Subregions live in the parent's region tree
	assert.Equal(t, lr.TreeID, sub.TreeID)
	assert.Equal(t, uint64(5), svc.RegionDomain(sub).Volume())
}
