package mapper

import (
	"github.com/lattixio/lattix/internal/strict"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/service/semantic"
)

// The query façade forwards read-only region-tree queries to the
// region-tree service verbatim, adding no caching. Its only own logic
// is deriving the dimensionality tag when constructing index spaces
// from raw point or rectangle lists.

// IndexSpaceDomain returns the point set of an index space.
func (r *Runtime) IndexSpaceDomain(ctx *Context, space region.IndexSpace) region.Domain {
	return r.regions.Domain(space)
}

// RegionDomain returns the point set of a logical region.
func (r *Runtime) RegionDomain(ctx *Context, lr region.LogicalRegion) region.Domain {
	return r.regions.RegionDomain(lr)
}

// UnionIndexSpaces constructs an index space covering all operands.
func (r *Runtime) UnionIndexSpaces(ctx *Context, spaces ...region.IndexSpace) (region.IndexSpace, error) {
	return r.regions.UnionIndexSpaces(spaces...)
}

// IntersectIndexSpaces constructs an index space common to all
// operands.
func (r *Runtime) IntersectIndexSpaces(ctx *Context, spaces ...region.IndexSpace) (region.IndexSpace, error) {
	return r.regions.IntersectIndexSpaces(spaces...)
}

// SubtractIndexSpaces constructs an index space with the points of
// left not in right.
func (r *Runtime) SubtractIndexSpaces(ctx *Context, left, right region.IndexSpace) (region.IndexSpace, error) {
	return r.regions.SubtractIndexSpaces(left, right)
}

// CreateIndexSpaceFromPoints constructs an index space over explicit
// points. The dimensionality tag is derived from the first point;
// mixed-dimension input is a programming error.
func (r *Runtime) CreateIndexSpaceFromPoints(ctx *Context, points []region.Point) region.IndexSpace {
	if len(points) == 0 {
		return region.NoIndexSpace
	}
	dim := points[0].Dim
	for _, p := range points[1:] {
		strict.Check(p.Dim == dim, "mixed point dimensionality: %d vs %d", p.Dim, dim)
	}
	return r.regions.CreateIndexSpace(region.DomainFromPoints(points))
}

// CreateIndexSpaceFromRects constructs an index space over explicit
// rectangles, deriving the dimensionality tag from the first one.
func (r *Runtime) CreateIndexSpaceFromRects(ctx *Context, rects []region.Rect) region.IndexSpace {
	if len(rects) == 0 {
		return region.NoIndexSpace
	}
	dim := rects[0].Dim()
	for _, rc := range rects[1:] {
		strict.Check(rc.Dim() == dim, "mixed rect dimensionality: %d vs %d", rc.Dim(), dim)
	}
	return r.regions.CreateIndexSpace(region.NewDomain(dim, rects...))
}

// IndexSubspace returns the child of a partition under a color.
func (r *Runtime) IndexSubspace(ctx *Context, partition region.IndexPartition, color region.Color) region.IndexSpace {
	return r.regions.IndexSubspace(partition, color)
}

// PartitionColors lists the colors of a partition's children.
func (r *Runtime) PartitionColors(ctx *Context, partition region.IndexPartition) []region.Color {
	return r.regions.PartitionColors(partition)
}

// ParentIndexSpace returns the space a partition subdivides.
func (r *Runtime) ParentIndexSpace(ctx *Context, partition region.IndexPartition) region.IndexSpace {
	return r.regions.ParentIndexSpace(partition)
}

// ParentIndexPartition returns the partition a subspace belongs to;
// ok is false for root spaces.
func (r *Runtime) ParentIndexPartition(ctx *Context, space region.IndexSpace) (region.IndexPartition, bool) {
	return r.regions.ParentIndexPartition(space)
}

// IndexSpaceColor returns the color a subspace carries in its parent.
func (r *Runtime) IndexSpaceColor(ctx *Context, space region.IndexSpace) region.Color {
	return r.regions.IndexSpaceColor(space)
}

// IndexSpaceDepth returns the region-tree depth of a space.
func (r *Runtime) IndexSpaceDepth(ctx *Context, space region.IndexSpace) int {
	return r.regions.IndexSpaceDepth(space)
}

// IndexPartitionDepth returns the region-tree depth of a partition.
func (r *Runtime) IndexPartitionDepth(ctx *Context, partition region.IndexPartition) int {
	return r.regions.IndexPartitionDepth(partition)
}

// IsIndexPartitionDisjoint reports whether no two children overlap.
func (r *Runtime) IsIndexPartitionDisjoint(ctx *Context, partition region.IndexPartition) bool {
	return r.regions.IsDisjoint(partition)
}

// IsIndexPartitionComplete reports whether the children cover the
// parent entirely.
func (r *Runtime) IsIndexPartitionComplete(ctx *Context, partition region.IndexPartition) bool {
	return r.regions.IsComplete(partition)
}

// LogicalSubregion returns the child region of a logical partition
// under a color.
func (r *Runtime) LogicalSubregion(ctx *Context, partition region.LogicalPartition, color region.Color) region.LogicalRegion {
	return r.regions.LogicalSubregion(partition, color)
}

// LogicalPartition derives the partition of a region induced by an
// index partition of its index space.
func (r *Runtime) LogicalPartition(ctx *Context, parent region.LogicalRegion, partition region.IndexPartition) region.LogicalPartition {
	return r.regions.LogicalPartition(parent, partition)
}

// RetrieveSemanticInformation reads out-of-band metadata attached to a
// region-tree object. With canFail an absent tag yields ok=false
// immediately; with waitUntilReady the call blocks cooperatively until
// the tag is attached.
func (r *Runtime) RetrieveSemanticInformation(ctx *Context, kind semantic.ObjectKind, id uint64, tag uint32, canFail, waitUntilReady bool) ([]byte, bool) {
	if value, ok := r.semantic.Retrieve(kind, id, tag, true, false); ok {
		return value, true
	}
	if canFail || !waitUntilReady {
		return nil, false
	}
	ready := r.semantic.Watch(kind, id, tag)
	ctx.manager.PauseCall(ctx)
	<-ready
	ctx.manager.ResumeCall(ctx)
	return r.semantic.Retrieve(kind, id, tag, true, false)
}

// RetrieveName reads an object's human-readable name under the same
// blocking contract as RetrieveSemanticInformation.
func (r *Runtime) RetrieveName(ctx *Context, kind semantic.ObjectKind, id uint64, canFail, waitUntilReady bool) (string, bool) {
	value, ok := r.RetrieveSemanticInformation(ctx, kind, id, semantic.NameTag, canFail, waitUntilReady)
	return string(value), ok
}
