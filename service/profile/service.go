// Package profile loads engine profiles: the declarative description
// of a node's memories, their affinity paths and the mappers to
// instantiate. Profiles are YAML documents read through viant/afs, so
// they can live on any supported storage (file, mem, embed, cloud).
package profile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lattixio/lattix/model/mem"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Path declares an affinity edge between two memories.
type Path struct {
	From      uint64 `yaml:"from" json:"from"`
	To        uint64 `yaml:"to" json:"to"`
	Bandwidth uint64 `yaml:"bandwidth" json:"bandwidth"`
	Latency   uint64 `yaml:"latency" json:"latency"`
}

// MapperSpec names a registered mapper type and its raw configuration.
type MapperSpec struct {
	Name   string                 `yaml:"name" json:"name"`
	Type   string                 `yaml:"type" json:"type"`
	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// Profile is the on-storage engine description.
type Profile struct {
	AddressSpace uint32       `yaml:"addressSpace" json:"addressSpace"`
	Strict       bool         `yaml:"strict" json:"strict"`
	Workers      int          `yaml:"workers" json:"workers"`
	Memories     []mem.Memory `yaml:"memories" json:"memories"`
	Paths        []Path       `yaml:"paths" json:"paths"`
	Mappers      []MapperSpec `yaml:"mappers" json:"mappers"`
}

// Affinity builds the affinity table declared by the profile.
func (p *Profile) Affinity() *mem.Affinity {
	byID := make(map[uint64]mem.Memory, len(p.Memories))
	for _, m := range p.Memories {
		byID[m.ID] = m
	}
	affinity := mem.NewAffinity()
	for _, path := range p.Paths {
		affinity.Set(byID[path.From], byID[path.To], mem.Path{Bandwidth: path.Bandwidth, Latency: path.Latency})
	}
	return affinity
}

// Service loads profiles from storage.
type Service struct {
	fs      afs.Service
	baseURL string
	options []storage.Option
}

// New creates a profile loader rooted at baseURL.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, baseURL: baseURL, options: options}
}

// Load reads and decodes the profile at URI, which is resolved against
// the service base URL unless absolute. ${env.KEY} expressions in the
// document are expanded before decoding.
func (s *Service) Load(ctx context.Context, URI string) (*Profile, error) {
	URL := URI
	if s.baseURL != "" && url.Scheme(URI, "") == "" && !filepath.IsAbs(URI) {
		URL = url.Join(s.baseURL, URI)
	}
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.fs.DownloadWithURL(ctx, URL, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile from %s: %w", URL, err)
	}
	expanded := expandEnvExpr(string(data))
	profile := &Profile{}
	if err := yaml.Unmarshal([]byte(expanded), profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", URL, err)
	}
	return profile, nil
}
