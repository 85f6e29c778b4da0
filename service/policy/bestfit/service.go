// Package bestfit provides the built-in mapper: a greedy policy that
// walks candidate memories in affinity order, reuses instances where
// it can and allocates where it must. It is registered by default so
// the engine can map tasks without any application-supplied mapper,
// and doubles as the reference implementation of the mapping protocol.
package bestfit

import (
	"reflect"
	"sync/atomic"

	"github.com/lattixio/lattix/extension"
	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/model/task"
	"github.com/lattixio/lattix/runtime/instance"
	"github.com/lattixio/lattix/runtime/mapper"
	"github.com/lattixio/lattix/service/messaging"
	"github.com/viant/x"
)

// Name is the mapper type name in profiles.
const Name = "bestfit"

// Config tunes the built-in mapper.
type Config struct {
	// TargetKind restricts candidate memories; empty means any.
	TargetKind mem.Kind `yaml:"targetKind" json:"targetKind"`
	// GCPriority seeds the eviction priority of created instances.
	GCPriority int64 `yaml:"gcPriority" json:"gcPriority"`
	// TightBounds requests minimal padding on created instances.
	TightBounds bool `yaml:"tightBounds" json:"tightBounds"`
}

// Service implements extension.Mapper.
type Service struct {
	name   string
	config Config
	// received counts inter-mapper messages, exposed for tests.
	received atomic.Int64
}

// New creates the mapper with the given configuration.
func New(config Config) *Service {
	return &Service{name: Name, config: config}
}

// Register records the mapper type in the registry so profiles can
// instantiate it by name.
func Register(mappers *extension.Mappers) {
	mappers.RegisterType(Name, x.NewType(reflect.TypeOf(Config{}), x.WithName("bestfit.Config")), func(config interface{}) (extension.Mapper, error) {
		cfg := Config{}
		if typed, ok := config.(*Config); ok && typed != nil {
			cfg = *typed
		}
		return New(cfg), nil
	})
}

// Name returns the mapper name.
func (s *Service) Name() string { return s.name }

// MapTask maps every declared region of the task into one memory,
// preferring reuse over allocation. The scheduler's candidate
// instances are acquired and filtered first; regions they cover are
// not reallocated. A task with no feasible memory yields a Failure
// carrying the last violated constraint.
func (s *Service) MapTask(ctx *mapper.Context, rt *mapper.Runtime, t *task.Task) (*task.Assignment, *task.Failure, error) {
	if len(t.Regions) == 0 {
		return &task.Assignment{TaskID: t.ID}, nil, nil
	}

	usable := rt.AcquireAndFilterInstances(ctx, t.Candidates)
	covered := make(map[uint64]instance.PhysicalInstance)
	for _, inst := range usable {
		covered[inst.TreeID()] = inst
	}

	targetKind := t.TargetKind
	if targetKind == "" {
		targetKind = s.config.TargetKind
	}

	failure := &task.Failure{TaskID: t.ID, Reason: "no feasible memory"}
	for _, memory := range rt.Memories(ctx) {
		if targetKind != "" && memory.Kind != targetKind {
			continue
		}
		instances, failed, ok := s.mapInto(ctx, rt, t, memory, covered)
		if ok {
			return &task.Assignment{TaskID: t.ID, Memory: memory, Instances: instances}, nil, nil
		}
		failure.Memory = memory
		failure.Failed = failed
	}
	return nil, failure, nil
}

// mapInto places every region of the task into the given memory. On
// the first failed allocation it releases what it acquired for this
// memory and reports the violated constraint.
func (s *Service) mapInto(ctx *mapper.Context, rt *mapper.Runtime, t *task.Task, memory mem.Memory,
	covered map[uint64]instance.PhysicalInstance) ([]instance.PhysicalInstance, *layout.Constraint, bool) {
	var mapped []instance.PhysicalInstance
	release := func() {
		for _, inst := range mapped {
			rt.ReleaseInstance(ctx, inst)
			inst.Release()
		}
	}
	for _, reg := range t.Regions {
		if inst, ok := covered[reg.TreeID]; ok {
			mapped = append(mapped, inst.Clone())
			continue
		}
		spec := mapper.InstanceSpec{
			Constraints: s.constraintsFor(t, memory),
			LayoutID:    t.LayoutID,
			Regions:     []region.LogicalRegion{reg},
			Acquire:     true,
			GCPriority:  s.config.GCPriority,
			TightBounds: s.config.TightBounds,
		}
		result, ok := rt.FindOrCreatePhysicalInstance(ctx, memory, spec)
		if !ok {
			release()
			return nil, result.Failed, false
		}
		mapped = append(mapped, result.Instance)
	}
	return mapped, nil, true
}

func (s *Service) constraintsFor(t *task.Task, memory mem.Memory) layout.ConstraintSet {
	set := t.Constraints
	if _, ok := set.MemoryKind(); !ok {
		set = set.WithMemoryKind(memory.Kind)
	}
	return set
}

// HandleMessage counts messages from peer address spaces.
func (s *Service) HandleMessage(ctx *mapper.Context, rt *mapper.Runtime, env messaging.Envelope) {
	s.received.Add(1)
}

// Received returns the number of handled peer messages.
func (s *Service) Received() int { return int(s.received.Load()) }
