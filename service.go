package lattix

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	"github.com/lattixio/lattix/extension"
	"github.com/lattixio/lattix/internal/strict"
	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/runtime/instance"
	"github.com/lattixio/lattix/runtime/mapper"
	memctl "github.com/lattixio/lattix/runtime/memory"
	"github.com/lattixio/lattix/service/messaging"
	mmemory "github.com/lattixio/lattix/service/messaging/memory"
	"github.com/lattixio/lattix/service/policy/bestfit"
	"github.com/lattixio/lattix/service/profile"
	"github.com/lattixio/lattix/service/regiontree"
	"github.com/lattixio/lattix/service/semantic"
)

// Service assembles the engine: the memory pools, the region tree, the
// layout and mapper registries, the inter-space exchange and the call
// dispatcher, wired per the supplied options and profile.
type Service struct {
	config           *Config
	runtime          *Runtime
	profileService   *profile.Service
	profileBaseURL   string
	profileFsOptions []storage.Option
	mapperTypes      []*x.Type
	initialMappers   []extension.Mapper
	mappers          *extension.Mappers
	memories         *memctl.Manager
	regions          *regiontree.Service
	semantic         *semantic.Service
	layouts          *layout.Registry
	affinity         *mem.Affinity
	views            *instance.ViewRegistry
	exchange         *messaging.Exchange
	calls            messaging.Queue[call]
}

// New creates a Service with the given options applied over defaults.
func New(options ...Option) *Service {
	ret := &Service{}
	ret.init(options)
	return ret
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	if s.config.Strict {
		strict.Enable(true)
	}
	s.mappers = extension.NewMappers(s.mapperTypes...)
	bestfit.Register(s.mappers)
	s.mappers.Register(bestfit.New(bestfit.Config{}))
	for _, mp := range s.initialMappers {
		s.mappers.Register(mp)
	}
	space := mem.AddressSpace(s.config.AddressSpace)
	protocol := mapper.NewRuntime(space, s.memories, s.regions, s.layouts, s.views, s.semantic, s.exchange)
	s.runtime = &Runtime{
		space:    space,
		protocol: protocol,
		mappers:  s.mappers,
		exchange: s.exchange,
		calls:    s.calls,
		workers:  s.config.Dispatcher.WorkerCount,
		managers: make(map[string]*mapper.Manager),
	}
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.profileService == nil {
		s.profileService = profile.New(afs.New(), s.profileBaseURL, s.profileFsOptions...)
	}
	if s.memories == nil {
		s.memories = memctl.NewManager()
	}
	if s.regions == nil {
		s.regions = regiontree.New()
	}
	if s.semantic == nil {
		s.semantic = semantic.New()
	}
	if s.layouts == nil {
		s.layouts = layout.NewRegistry()
	}
	if s.affinity == nil {
		s.affinity = mem.NewAffinity()
	}
	if s.views == nil {
		s.views = instance.NewViewRegistry(s.affinity)
	}
	if s.exchange == nil {
		s.exchange = messaging.NewExchange(nil)
	}
	s.ensureInbound(mem.AddressSpace(s.config.AddressSpace))
	if s.calls == nil {
		s.calls = mmemory.NewQueue[call](mmemory.DefaultConfig())
	}
}

// ensureInbound attaches an in-memory inbound queue for the space
// unless a transport was already supplied.
func (s *Service) ensureInbound(space mem.AddressSpace) {
	for _, attached := range s.exchange.Spaces() {
		if attached == space {
			return
		}
	}
	s.exchange.Attach(space, mmemory.NewQueue[messaging.Envelope](mmemory.DefaultConfig()))
}

// LoadProfile reads the profile at URI and applies it: address space,
// strictness, worker count, memories, affinity paths and mapper
// instances. It must be called before Runtime().Start.
func (s *Service) LoadProfile(ctx context.Context, URI string) error {
	prof, err := s.profileService.Load(ctx, URI)
	if err != nil {
		return err
	}
	return s.ApplyProfile(prof)
}

// ApplyProfile applies an already loaded profile.
func (s *Service) ApplyProfile(prof *profile.Profile) error {
	s.config.AddressSpace = prof.AddressSpace
	// Profiles may enable strict checks but never silently relax them.
	if prof.Strict {
		s.config.Strict = true
		strict.Enable(true)
	}
	if prof.Workers > 0 {
		s.config.Dispatcher.WorkerCount = prof.Workers
		s.runtime.workers = prof.Workers
	}
	space := mem.AddressSpace(prof.AddressSpace)
	s.runtime.space = space
	s.runtime.protocol = mapper.NewRuntime(space, s.memories, s.regions, s.layouts, s.views, s.semantic, s.exchange)
	s.ensureInbound(space)

	byID := make(map[uint64]mem.Memory, len(prof.Memories))
	for _, memory := range prof.Memories {
		s.memories.AddMemory(memory)
		byID[memory.ID] = memory
	}
	for _, path := range prof.Paths {
		from, okFrom := byID[path.From]
		to, okTo := byID[path.To]
		if !okFrom || !okTo {
			return fmt.Errorf("affinity path %d->%d references unknown memory", path.From, path.To)
		}
		s.affinity.Set(from, to, mem.Path{Bandwidth: path.Bandwidth, Latency: path.Latency})
	}
	for _, spec := range prof.Mappers {
		mp, err := s.mappers.Instantiate(spec.Type, spec.Config)
		if err != nil {
			return fmt.Errorf("mapper %q: %w", spec.Name, err)
		}
		s.mappers.Register(mp)
	}
	return nil
}

// RegisterMapperType makes a mapper type available to profiles and
// Instantiate.
func (s *Service) RegisterMapperType(name string, configType *x.Type, factory extension.Factory) {
	s.mappers.RegisterType(name, configType, factory)
}

// RegisterMappers registers live mapper instances.
func (s *Service) RegisterMappers(mappers ...extension.Mapper) {
	for _, mp := range mappers {
		s.mappers.Register(mp)
	}
}

// Mappers exposes the mapper registry.
func (s *Service) Mappers() *extension.Mappers { return s.mappers }

// Memories exposes the physical memory manager.
func (s *Service) Memories() *memctl.Manager { return s.memories }

// Regions exposes the region tree service.
func (s *Service) Regions() *regiontree.Service { return s.regions }

// Semantic exposes the semantic information service.
func (s *Service) Semantic() *semantic.Service { return s.semantic }

// Layouts exposes the layout constraint registry.
func (s *Service) Layouts() *layout.Registry { return s.layouts }

// Exchange exposes the inter-space message exchange.
func (s *Service) Exchange() *messaging.Exchange { return s.exchange }

// Runtime returns the engine runtime.
func (s *Service) Runtime() *Runtime { return s.runtime }
