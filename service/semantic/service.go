// Package semantic stores optional out-of-band metadata (human
// readable names, application tags) attached to region-tree objects.
// Retrieval can either fail fast when a tag is absent or block until
// some other party attaches it.
package semantic

import (
	"fmt"
	"sync"

	"github.com/lattixio/lattix/service/registry"
)

// NameTag is the reserved tag under which object names are stored.
const NameTag uint32 = 0

// ObjectKind discriminates the region-tree object a tag is attached to.
type ObjectKind string

const (
	IndexSpaceObject     ObjectKind = "indexSpace"
	IndexPartitionObject ObjectKind = "indexPartition"
	FieldSpaceObject     ObjectKind = "fieldSpace"
	FieldObject          ObjectKind = "field"
	RegionObject         ObjectKind = "logicalRegion"
	PartitionObject      ObjectKind = "logicalPartition"
	TaskObject           ObjectKind = "task"
)

type key struct {
	Kind ObjectKind
	ID   uint64
	Tag  uint32
}

type record struct {
	key   key
	value []byte
	// attached is closed once the value is present, releasing blocked
	// retrievals.
	attached chan struct{}
	mu       sync.Mutex
	present  bool
}

// Service is the semantic/name registry.
type Service struct {
	mu    sync.Mutex
	store *registry.Store[key, record]
}

// New creates an empty registry.
func New() *Service {
	return &Service{
		store: registry.NewStore[key, record](func(r *record) key { return r.key }),
	}
}

func (s *Service) record(k key) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.store.Get(k); r != nil {
		return r
	}
	r := &record{key: k, attached: make(chan struct{})}
	s.store.Put(r)
	return r
}

// Attach stores metadata under (kind, id, tag) and releases any
// retrieval blocked on it. Re-attaching an existing tag is rejected.
func (s *Service) Attach(kind ObjectKind, id uint64, tag uint32, value []byte) error {
	r := s.record(key{Kind: kind, ID: id, Tag: tag})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.present {
		return fmt.Errorf("semantic tag %d already attached to %s %d", tag, kind, id)
	}
	r.value = value
	r.present = true
	close(r.attached)
	return nil
}

// Retrieve reads metadata for (kind, id, tag).
//
// With canFail set an absent tag yields ok=false immediately. With
// waitUntilReady set the call blocks until the tag is attached. With
// neither set an absent tag also yields ok=false; callers that cannot
// tolerate absence should pass waitUntilReady.
func (s *Service) Retrieve(kind ObjectKind, id uint64, tag uint32, canFail, waitUntilReady bool) ([]byte, bool) {
	r := s.record(key{Kind: kind, ID: id, Tag: tag})
	r.mu.Lock()
	if r.present {
		value := r.value
		r.mu.Unlock()
		return value, true
	}
	r.mu.Unlock()
	if canFail || !waitUntilReady {
		return nil, false
	}
	<-r.attached
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, true
}

// Watch returns a channel closed once (kind, id, tag) is attached. It
// lets callers with their own blocking discipline wait without holding
// any registry lock.
func (s *Service) Watch(kind ObjectKind, id uint64, tag uint32) <-chan struct{} {
	return s.record(key{Kind: kind, ID: id, Tag: tag}).attached
}

// AttachName stores a human-readable name for an object.
func (s *Service) AttachName(kind ObjectKind, id uint64, name string) error {
	return s.Attach(kind, id, NameTag, []byte(name))
}

// RetrieveName reads an object's name; ok is false when none is
// attached and canFail was requested.
func (s *Service) RetrieveName(kind ObjectKind, id uint64, canFail, waitUntilReady bool) (string, bool) {
	value, ok := s.Retrieve(kind, id, NameTag, canFail, waitUntilReady)
	return string(value), ok
}
