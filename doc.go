// Package lattix is the mapper runtime of a distributed task-parallel
// engine: it manages physical instances in memory pools with dual
// reference counting, serializes mapper calls with cooperative
// pause/resume, and exposes the protocol façade mappers use to query
// region trees, allocate instances and exchange messages across
// address spaces.
//
// A Service wires the engine from options or a profile; its Runtime
// dispatches mapper calls on a worker pool. Scheduling policy lives in
// extension.Mapper implementations; service/policy/bestfit ships the
// default.
package lattix
