// Package region defines the handle types through which mappers refer
// to the region tree: index spaces, index partitions, field spaces and
// logical regions/partitions. Handles are plain value types; the zero
// value of each is its documented "no such object" sentinel.
package region

// IndexSpace names a set of points. The zero value is NoIndexSpace.
type IndexSpace struct {
	ID     uint64 `json:"id"`
	TreeID uint64 `json:"treeId"`
	Dim    int    `json:"dim"`
}

// NoIndexSpace denotes the absence of an index space.
var NoIndexSpace = IndexSpace{}

// Exists reports whether the handle names a real index space.
func (s IndexSpace) Exists() bool { return s.ID != 0 }

// IndexPartition names a partitioning of an index space into coloured
// subspaces. The zero value is NoIndexPartition.
type IndexPartition struct {
	ID     uint64 `json:"id"`
	TreeID uint64 `json:"treeId"`
	Dim    int    `json:"dim"`
}

// NoIndexPartition denotes the absence of an index partition.
var NoIndexPartition = IndexPartition{}

// Exists reports whether the handle names a real index partition.
func (p IndexPartition) Exists() bool { return p.ID != 0 }

// FieldID names a field within a field space.
type FieldID uint32

// FieldSpace names a set of typed fields. The zero value is
// NoFieldSpace.
type FieldSpace struct {
	ID uint64 `json:"id"`
}

// NoFieldSpace denotes the absence of a field space.
var NoFieldSpace = FieldSpace{}

// Exists reports whether the handle names a real field space.
func (f FieldSpace) Exists() bool { return f.ID != 0 }

// LogicalRegion names a (index space, field space) pair within one
// region tree. The zero value is NoLogicalRegion.
type LogicalRegion struct {
	TreeID     uint64     `json:"treeId"`
	IndexSpace IndexSpace `json:"indexSpace"`
	FieldSpace FieldSpace `json:"fieldSpace"`
}

// NoLogicalRegion denotes the absence of a logical region.
var NoLogicalRegion = LogicalRegion{}

// Exists reports whether the handle names a real logical region.
func (r LogicalRegion) Exists() bool { return r.TreeID != 0 }

// LogicalPartition names a partitioning of a logical region. The zero
// value is NoLogicalPartition.
type LogicalPartition struct {
	TreeID         uint64         `json:"treeId"`
	IndexPartition IndexPartition `json:"indexPartition"`
	FieldSpace     FieldSpace     `json:"fieldSpace"`
}

// NoLogicalPartition denotes the absence of a logical partition.
var NoLogicalPartition = LogicalPartition{}

// Exists reports whether the handle names a real logical partition.
func (p LogicalPartition) Exists() bool { return p.TreeID != 0 }

// Color identifies a child within a partition.
type Color = Point
