// Package regiontree implements the region-tree collaborator: storage
// and read-only queries over index spaces, index partitions, field
// spaces and logical regions. The mapper runtime forwards its query
// façade here verbatim and adds no caching.
package regiontree

import (
	"fmt"
	"sync"

	"github.com/lattixio/lattix/model/region"
)

type indexSpaceNode struct {
	handle region.IndexSpace
	domain region.Domain
	// parent partition when this space is a subspace, NoIndexPartition
	// for roots.
	parent region.IndexPartition
	color  region.Color
	depth  int
}

type indexPartitionNode struct {
	handle    region.IndexPartition
	parent    region.IndexSpace
	children  map[string]region.IndexSpace
	colors    []region.Color
	disjoint  bool
	complete  bool
	depth     int
	colorKeys map[string]region.Color
}

type fieldSpaceNode struct {
	handle region.FieldSpace
	sizes  map[region.FieldID]uint32
	order  []region.FieldID
}

// Service is an in-memory region-tree store. All methods are safe for
// concurrent use.
type Service struct {
	mu         sync.RWMutex
	nextID     uint64
	nextTree   uint64
	spaces     map[uint64]*indexSpaceNode
	partitions map[uint64]*indexPartitionNode
	fields     map[uint64]*fieldSpaceNode
	regions    map[uint64]region.LogicalRegion
}

// New creates an empty region tree.
func New() *Service {
	return &Service{
		spaces:     make(map[uint64]*indexSpaceNode),
		partitions: make(map[uint64]*indexPartitionNode),
		fields:     make(map[uint64]*fieldSpaceNode),
		regions:    make(map[uint64]region.LogicalRegion),
	}
}

func colorKey(c region.Color) string {
	return fmt.Sprintf("%d:%v", c.Dim, c.Coord[:c.Dim])
}

// CreateIndexSpace registers a root index space over the domain.
func (s *Service) CreateIndexSpace(domain region.Domain) region.IndexSpace {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.nextTree++
	handle := region.IndexSpace{ID: s.nextID, TreeID: s.nextTree, Dim: domain.Dim}
	s.spaces[handle.ID] = &indexSpaceNode{handle: handle, domain: domain}
	return handle
}

// Domain returns the point set of an index space; the empty domain for
// unknown handles.
func (s *Service) Domain(space region.IndexSpace) region.Domain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.spaces[space.ID]; ok {
		return node.domain
	}
	return region.Domain{}
}

// UnionIndexSpaces constructs a new index space covering all operands.
func (s *Service) UnionIndexSpaces(spaces ...region.IndexSpace) (region.IndexSpace, error) {
	if len(spaces) == 0 {
		return region.NoIndexSpace, fmt.Errorf("union requires at least one index space")
	}
	out := s.Domain(spaces[0])
	for _, sp := range spaces[1:] {
		out = out.Union(s.Domain(sp))
	}
	return s.CreateIndexSpace(out), nil
}

// IntersectIndexSpaces constructs a new index space common to all
// operands.
func (s *Service) IntersectIndexSpaces(spaces ...region.IndexSpace) (region.IndexSpace, error) {
	if len(spaces) == 0 {
		return region.NoIndexSpace, fmt.Errorf("intersection requires at least one index space")
	}
	out := s.Domain(spaces[0])
	for _, sp := range spaces[1:] {
		out = out.Intersect(s.Domain(sp))
	}
	return s.CreateIndexSpace(out), nil
}

// SubtractIndexSpaces constructs a new index space with the points of
// left not present in right.
func (s *Service) SubtractIndexSpaces(left, right region.IndexSpace) (region.IndexSpace, error) {
	out := s.Domain(left).Subtract(s.Domain(right))
	return s.CreateIndexSpace(out), nil
}

// CreateIndexPartition splits parent into coloured subspaces. Disjoint
// and complete flags are computed from the supplied subdomains.
func (s *Service) CreateIndexPartition(parent region.IndexSpace, children map[region.Color]region.Domain) (region.IndexPartition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentNode, ok := s.spaces[parent.ID]
	if !ok {
		return region.NoIndexPartition, fmt.Errorf("unknown index space %d", parent.ID)
	}
	s.nextID++
	handle := region.IndexPartition{ID: s.nextID, TreeID: parent.TreeID, Dim: parent.Dim}
	node := &indexPartitionNode{
		handle:    handle,
		parent:    parent,
		children:  make(map[string]region.IndexSpace, len(children)),
		colorKeys: make(map[string]region.Color, len(children)),
		disjoint:  true,
		depth:     parentNode.depth + 1,
	}

	var covered region.Domain
	domains := make([]region.Domain, 0, len(children))
	for color, domain := range children {
		s.nextID++
		child := region.IndexSpace{ID: s.nextID, TreeID: parent.TreeID, Dim: domain.Dim}
		s.spaces[child.ID] = &indexSpaceNode{
			handle: child,
			domain: domain,
			parent: handle,
			color:  color,
			depth:  node.depth,
		}
		key := colorKey(color)
		node.children[key] = child
		node.colorKeys[key] = color
		node.colors = append(node.colors, color)
		for _, existing := range domains {
			if existing.Overlaps(domain) {
				node.disjoint = false
			}
		}
		domains = append(domains, domain)
		covered = covered.Union(domain)
	}
	node.complete = covered.Covers(parentNode.domain)
	s.partitions[handle.ID] = node
	return handle, nil
}

// IndexSubspace returns the child of a partition under the given
// color; NoIndexSpace when absent.
func (s *Service) IndexSubspace(partition region.IndexPartition, color region.Color) region.IndexSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.partitions[partition.ID]
	if !ok {
		return region.NoIndexSpace
	}
	return node.children[colorKey(color)]
}

// PartitionColors returns the colors of a partition's children.
func (s *Service) PartitionColors(partition region.IndexPartition) []region.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.partitions[partition.ID]; ok {
		out := make([]region.Color, len(node.colors))
		copy(out, node.colors)
		return out
	}
	return nil
}

// ParentIndexSpace returns the space a partition subdivides.
func (s *Service) ParentIndexSpace(partition region.IndexPartition) region.IndexSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.partitions[partition.ID]; ok {
		return node.parent
	}
	return region.NoIndexSpace
}

// ParentIndexPartition returns the partition a subspace belongs to, and
// whether it has one (roots do not).
func (s *Service) ParentIndexPartition(space region.IndexSpace) (region.IndexPartition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.spaces[space.ID]; ok && node.parent.Exists() {
		return node.parent, true
	}
	return region.NoIndexPartition, false
}

// IndexSpaceColor returns the color a subspace carries within its
// parent partition; the zero color for roots.
func (s *Service) IndexSpaceColor(space region.IndexSpace) region.Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.spaces[space.ID]; ok {
		return node.color
	}
	return region.Color{}
}

// IndexSpaceDepth returns the tree depth of a space, 0 for roots.
func (s *Service) IndexSpaceDepth(space region.IndexSpace) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.spaces[space.ID]; ok {
		return node.depth
	}
	return 0
}

// IndexPartitionDepth returns the tree depth of a partition.
func (s *Service) IndexPartitionDepth(partition region.IndexPartition) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.partitions[partition.ID]; ok {
		return node.depth
	}
	return 0
}

// IsDisjoint reports whether no two children of the partition overlap.
func (s *Service) IsDisjoint(partition region.IndexPartition) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.partitions[partition.ID]; ok {
		return node.disjoint
	}
	return false
}

// IsComplete reports whether the children cover the parent entirely.
func (s *Service) IsComplete(partition region.IndexPartition) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.partitions[partition.ID]; ok {
		return node.complete
	}
	return false
}

// CreateFieldSpace registers a field space with the given field sizes.
func (s *Service) CreateFieldSpace(fields map[region.FieldID]uint32) region.FieldSpace {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	handle := region.FieldSpace{ID: s.nextID}
	node := &fieldSpaceNode{handle: handle, sizes: make(map[region.FieldID]uint32, len(fields))}
	for id, size := range fields {
		node.sizes[id] = size
		node.order = append(node.order, id)
	}
	s.fields[handle.ID] = node
	return handle
}

// Fields lists the field ids of a field space.
func (s *Service) Fields(space region.FieldSpace) []region.FieldID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.fields[space.ID]; ok {
		out := make([]region.FieldID, len(node.order))
		copy(out, node.order)
		return out
	}
	return nil
}

// FieldSize returns the byte size of a field; ok is false when the
// field space or field is unknown.
func (s *Service) FieldSize(space region.FieldSpace, field region.FieldID) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if node, ok := s.fields[space.ID]; ok {
		size, exists := node.sizes[field]
		return size, exists
	}
	return 0, false
}

// CreateLogicalRegion pairs an index space with a field space in a new
// region tree.
func (s *Service) CreateLogicalRegion(space region.IndexSpace, fields region.FieldSpace) region.LogicalRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTree++
	handle := region.LogicalRegion{TreeID: s.nextTree, IndexSpace: space, FieldSpace: fields}
	s.regions[handle.TreeID] = handle
	return handle
}

// LogicalSubregion returns the child region of a logical partition
// under the given color.
func (s *Service) LogicalSubregion(partition region.LogicalPartition, color region.Color) region.LogicalRegion {
	sub := s.IndexSubspace(partition.IndexPartition, color)
	if !sub.Exists() {
		return region.NoLogicalRegion
	}
	return region.LogicalRegion{TreeID: partition.TreeID, IndexSpace: sub, FieldSpace: partition.FieldSpace}
}

// LogicalPartition derives the partition of a region induced by an
// index partition of its index space.
func (s *Service) LogicalPartition(parent region.LogicalRegion, partition region.IndexPartition) region.LogicalPartition {
	return region.LogicalPartition{TreeID: parent.TreeID, IndexPartition: partition, FieldSpace: parent.FieldSpace}
}

// RegionDomain returns the point set of a logical region.
func (s *Service) RegionDomain(r region.LogicalRegion) region.Domain {
	return s.Domain(r.IndexSpace)
}
