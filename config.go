package lattix

import "fmt"

// Config is a serialisable representation of the engine configuration.
// It can be populated from YAML, JSON or an engine profile. The
// zero-value is useful: all nested fields inherit their package
// defaults.
type Config struct {
	Dispatcher DispatcherConfig `json:"dispatcher" yaml:"dispatcher"`
	// AddressSpace identifies this node in the distributed machine.
	AddressSpace uint32 `json:"addressSpace" yaml:"addressSpace"`
	// Strict upgrades protocol misuse from silent tolerance to panics.
	Strict bool `json:"strict" yaml:"strict"`
}

// DispatcherConfig tunes the mapper-call dispatcher.
type DispatcherConfig struct {
	WorkerCount int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to New via
// WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			WorkerCount: 8,
		},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Dispatcher.WorkerCount <= 0 {
		return fmt.Errorf("dispatcher.workerCount must be > 0")
	}
	return nil
}
