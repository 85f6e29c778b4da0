package extension

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/lattixio/lattix/model/task"
	"github.com/lattixio/lattix/runtime/mapper"
	"github.com/lattixio/lattix/service/messaging"
	"github.com/viant/structology/conv"
	"github.com/viant/x"
)

// Mapper is the pluggable scheduling policy invoked through serialized
// mapper calls. Implementations query and manipulate instances through
// the protocol façade; expected mapping failures are returned as a
// task.Failure, not as an error.
type Mapper interface {
	Name() string

	// MapTask decides placement for one task. Exactly one of the
	// returns is non-nil on a nil error.
	MapTask(ctx *mapper.Context, rt *mapper.Runtime, t *task.Task) (*task.Assignment, *task.Failure, error)

	// HandleMessage receives a message sent by the same mapper on
	// another address space.
	HandleMessage(ctx *mapper.Context, rt *mapper.Runtime, env messaging.Envelope)
}

// Factory builds a mapper from its typed configuration. config is nil
// when the mapper type registered no config type.
type Factory func(config interface{}) (Mapper, error)

type registration struct {
	factory    Factory
	configType *x.Type
}

// Mappers is the registry of mapper types and live mapper instances.
type Mappers struct {
	types     *x.Registry
	factories map[string]*registration
	instances map[string]Mapper
	converter *conv.Converter
	mux       sync.RWMutex
}

// NewMappers creates an empty registry.
func NewMappers(goTypes ...*x.Type) *Mappers {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	ret := &Mappers{
		types:     x.NewRegistry(),
		factories: make(map[string]*registration),
		instances: make(map[string]Mapper),
		converter: conv.NewConverter(options),
	}
	for _, t := range goTypes {
		ret.types.Register(t)
	}
	return ret
}

// Types exposes the underlying type registry.
func (m *Mappers) Types() *x.Registry { return m.types }

// RegisterType records a mapper type under name; configType may be nil
// for mappers that take no configuration.
func (m *Mappers) RegisterType(name string, configType *x.Type, factory Factory) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if configType != nil {
		m.types.Register(configType)
	}
	m.factories[name] = &registration{factory: factory, configType: configType}
}

// Register adds a ready-made mapper instance.
func (m *Mappers) Register(mp Mapper) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.instances[mp.Name()] = mp
}

// Lookup returns a live mapper instance by name; nil when absent.
func (m *Mappers) Lookup(name string) Mapper {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.instances[name]
}

// Instances lists all registered mapper instances.
func (m *Mappers) Instances() []Mapper {
	m.mux.RLock()
	defer m.mux.RUnlock()
	out := make([]Mapper, 0, len(m.instances))
	for _, mp := range m.instances {
		out = append(out, mp)
	}
	return out
}

// Instantiate builds and registers a mapper of the named type,
// converting the raw profile map into the registered config type.
func (m *Mappers) Instantiate(typeName string, rawConfig map[string]interface{}) (Mapper, error) {
	m.mux.RLock()
	reg, ok := m.factories[typeName]
	m.mux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown mapper type %q", typeName)
	}
	var config interface{}
	if reg.configType != nil {
		config = reflect.New(reg.configType.Type).Interface()
		if len(rawConfig) > 0 {
			if err := m.converter.Convert(rawConfig, config); err != nil {
				return nil, fmt.Errorf("failed to convert config for mapper type %q: %w", typeName, err)
			}
		}
	}
	mp, err := reg.factory(config)
	if err != nil {
		return nil, err
	}
	m.Register(mp)
	return mp, nil
}
