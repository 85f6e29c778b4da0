package lattix

import (
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lattixio/lattix/extension"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/runtime/instance"
	memctl "github.com/lattixio/lattix/runtime/memory"
	"github.com/lattixio/lattix/service/messaging"
	"github.com/lattixio/lattix/service/profile"
	"github.com/lattixio/lattix/tracing"
)

// Option customises Service assembly.
type Option func(s *Service)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithAddressSpace sets this node's address space.
func WithAddressSpace(space uint32) Option {
	return func(s *Service) {
		if s.config == nil {
			s.config = DefaultConfig()
		}
		s.config.AddressSpace = space
	}
}

// WithStrictChecks upgrades protocol misuse to panics.
func WithStrictChecks(on bool) Option {
	return func(s *Service) {
		if s.config == nil {
			s.config = DefaultConfig()
		}
		s.config.Strict = on
	}
}

// WithWorkers sets the dispatcher worker count.
func WithWorkers(count int) Option {
	return func(s *Service) {
		if s.config == nil {
			s.config = DefaultConfig()
		}
		s.config.Dispatcher.WorkerCount = count
	}
}

// WithMemories registers physical memories up front.
func WithMemories(memories ...mem.Memory) Option {
	return func(s *Service) {
		if s.memories == nil {
			s.memories = memctl.NewManager()
		}
		for _, memory := range memories {
			s.memories.AddMemory(memory)
		}
	}
}

// WithAffinity sets the memory affinity table shared by nearest-memory
// queries.
func WithAffinity(affinity *mem.Affinity) Option {
	return func(s *Service) {
		s.affinity = affinity
		s.views = instance.NewViewRegistry(affinity)
	}
}

// WithMapperTypes pre-registers extension config types.
func WithMapperTypes(types ...*x.Type) Option {
	return func(s *Service) { s.mapperTypes = types }
}

// WithMappers registers live mapper instances at construction.
func WithMappers(mappers ...extension.Mapper) Option {
	return func(s *Service) { s.initialMappers = append(s.initialMappers, mappers...) }
}

// WithExchangeQueue attaches a transport queue for a peer address
// space, e.g. to bridge two in-process engines in tests.
func WithExchangeQueue(space mem.AddressSpace, queue messaging.Queue[messaging.Envelope]) Option {
	return func(s *Service) {
		if s.exchange == nil {
			s.exchange = messaging.NewExchange(nil)
		}
		s.exchange.Attach(space, queue)
	}
}

// WithExchange shares a prebuilt exchange between engines.
func WithExchange(exchange *messaging.Exchange) Option {
	return func(s *Service) { s.exchange = exchange }
}

// WithProfileService sets the profile loader.
func WithProfileService(service *profile.Service) Option {
	return func(s *Service) { s.profileService = service }
}

// WithProfileBaseURL sets the base URL relative profile URIs resolve
// against.
func WithProfileBaseURL(url string) Option {
	return func(s *Service) { s.profileBaseURL = url }
}

// WithProfileFsOptions supplies storage options for profile loading.
func WithProfileFsOptions(options ...storage.Option) Option {
	return func(s *Service) { s.profileFsOptions = options }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times, the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times, the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
