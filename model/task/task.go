// Package task defines the scheduler-facing description of a task to
// be mapped and the mapping decision returned by a mapper. The task
// scheduler itself is an external collaborator; these types are the
// contract it exchanges with the mapper runtime.
package task

import (
	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/runtime/instance"
)

// Task describes one schedulable unit of work and the logical data it
// declares to read or write.
type Task struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Regions  []region.LogicalRegion `json:"regions"`
	// Constraints the chosen instances must satisfy.
	Constraints layout.ConstraintSet `json:"constraints"`
	// LayoutID selects a pre-registered layout instead of Constraints
	// when non-zero.
	LayoutID layout.ID `json:"layoutId,omitempty"`
	// TargetKind restricts candidate memories; empty means any.
	TargetKind mem.Kind `json:"targetKind,omitempty"`
	Priority   int      `json:"priority,omitempty"`
	// Candidates are instances the scheduler already knows about and
	// offers for reuse.
	Candidates []instance.PhysicalInstance `json:"-"`
}

// Assignment is a successful mapping decision: the chosen memory and
// the instances backing each declared region, in declaration order.
type Assignment struct {
	TaskID    string                      `json:"taskId"`
	Memory    mem.Memory                  `json:"memory"`
	Instances []instance.PhysicalInstance `json:"-"`
}

// Failure diagnoses why a task could not be mapped. The scheduler
// decides whether to retry with different parameters or fail the task.
type Failure struct {
	TaskID string             `json:"taskId"`
	Memory mem.Memory         `json:"memory"`
	Failed *layout.Constraint `json:"failed,omitempty"`
	Reason string             `json:"reason,omitempty"`
}
