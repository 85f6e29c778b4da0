// Package memory implements the node-local memory manager: per-pool
// capacity accounting, instance materialisation, lookup of existing
// instances and eviction of collectable data under pressure.
//
// All operations follow the protocol's failure contract: allocation
// that cannot be satisfied returns ok=false together with the first
// violated constraint; nothing is raised and nothing is partially
// allocated.
package memory

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lattixio/lattix/model/layout"
	"github.com/lattixio/lattix/model/mem"
	"github.com/lattixio/lattix/model/region"
	"github.com/lattixio/lattix/runtime/instance"
)

// pageSize is the padding granularity applied when a request does not
// ask for tight bounds.
const pageSize = 4096

// Field pairs a field identity with its size in bytes.
type Field struct {
	ID   region.FieldID
	Size uint32
}

// Request is a fully resolved instance request: regions have already
// been translated to a domain and field sizes by the region-tree
// service.
type Request struct {
	Constraints layout.ConstraintSet
	LayoutID    layout.ID
	TreeID      uint64
	FieldSpace  region.FieldSpace
	Domain      region.Domain
	Fields      []Field
	// TightBounds asks the allocator to minimise padding even at a
	// higher allocation cost.
	TightBounds bool
}

// Footprint returns the byte size the request materialises to.
func (r Request) Footprint() uint64 {
	var rowBytes uint64
	for _, f := range r.Fields {
		rowBytes += uint64(f.Size)
	}
	size := r.Domain.Volume() * rowBytes
	if size == 0 {
		size = rowBytes
	}
	if r.TightBounds {
		return size
	}
	if rem := size % pageSize; rem != 0 {
		size += pageSize - rem
	}
	return size
}

type entry struct {
	inst instance.PhysicalInstance
	key  string
	seq  uint64
}

// Pool manages one physical memory's capacity and its resident
// instances.
type Pool struct {
	memory mem.Memory

	mu      sync.Mutex
	used    uint64
	entries map[uint64]*entry
	seq     uint64

	nextID *uint64
}

// Manager owns all pools of a node and routes requests by memory.
type Manager struct {
	mu     sync.RWMutex
	pools  map[uint64]*Pool
	nextID uint64
}

// NewManager creates a manager with one pool per supplied memory.
func NewManager(memories ...mem.Memory) *Manager {
	m := &Manager{pools: make(map[uint64]*Pool)}
	for _, memory := range memories {
		m.AddMemory(memory)
	}
	return m
}

// AddMemory registers an additional memory pool.
func (m *Manager) AddMemory(memory mem.Memory) *Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool := &Pool{
		memory:  memory,
		entries: make(map[uint64]*entry),
		nextID:  &m.nextID,
	}
	m.pools[memory.ID] = pool
	return pool
}

// Pool returns the pool for the given memory; nil when unknown.
func (m *Manager) Pool(memory mem.Memory) *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[memory.ID]
}

// Memories lists all managed memories.
func (m *Manager) Memories() []mem.Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]mem.Memory, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.memory)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Memory returns the identity of the pool.
func (p *Pool) Memory() mem.Memory { return p.memory }

// Used returns the currently allocated byte count.
func (p *Pool) Used() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Create materialises a fresh instance for the request. On failure it
// returns ok=false and the first violated constraint; the pool state
// is left untouched.
func (p *Pool) Create(req Request) (inst instance.PhysicalInstance, footprint uint64, failed *layout.Constraint, ok bool) {
	if kind, restricted := req.Constraints.MemoryKind(); restricted && kind != p.memory.Kind {
		return instance.NoInstance, 0, &layout.Constraint{Kind: layout.KindMemory, MemoryKind: kind}, false
	}
	footprint = req.Footprint()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.used+footprint > p.memory.Capacity {
		p.evictLocked(p.used + footprint - p.memory.Capacity)
	}
	if p.used+footprint > p.memory.Capacity {
		return instance.NoInstance, 0, &layout.Constraint{Kind: layout.KindCapacity, Bytes: footprint}, false
	}

	id := atomic.AddUint64(p.nextID, 1)
	fieldIDs := make([]region.FieldID, len(req.Fields))
	for i, f := range req.Fields {
		fieldIDs[i] = f.ID
	}
	inst = instance.New(instance.Options{
		ID:          id,
		Location:    p.memory,
		Footprint:   footprint,
		Domain:      req.Domain,
		FieldSpace:  req.FieldSpace,
		FieldIDs:    fieldIDs,
		TreeID:      req.TreeID,
		LayoutID:    req.LayoutID,
		Constraints: req.Constraints,
		OnDestroy:   func() { p.forget(id, footprint) },
		StrongTest:  func() bool { return p.tracks(id) },
	})
	p.used += footprint
	p.entries[id] = &entry{inst: inst, key: req.Constraints.Key(), seq: p.seq}
	p.seq++
	return inst, footprint, nil, true
}

// Find returns an existing resident instance satisfying the request;
// ok is false when none matches. It never allocates.
func (p *Pool) Find(req Request) (instance.PhysicalInstance, bool) {
	matches := p.FindAll(req)
	if len(matches) == 0 {
		return instance.NoInstance, false
	}
	return matches[0], true
}

// FindAll returns every resident instance satisfying the request, in
// creation order.
func (p *Pool) FindAll(req Request) []instance.PhysicalInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found []*entry
	for _, e := range p.entries {
		if p.matchesLocked(e, req) {
			found = append(found, e)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([]instance.PhysicalInstance, len(found))
	for i, e := range found {
		out[i] = e.inst
	}
	return out
}

func (p *Pool) matchesLocked(e *entry, req Request) bool {
	if !e.inst.Valid() {
		return false
	}
	if req.TreeID != 0 && e.inst.TreeID() != req.TreeID {
		return false
	}
	if entails, _ := e.inst.Entails(req.Constraints); !entails {
		return false
	}
	for _, f := range req.Fields {
		if !e.inst.HasField(f.ID) {
			return false
		}
	}
	return e.inst.Domain().Covers(req.Domain)
}

// evictLocked reclaims collectable data until at least need bytes have
// been freed or no candidates remain. Candidates are ordered by GC
// priority (most negative first), FIFO within equal priority.
func (p *Pool) evictLocked(need uint64) {
	var candidates []*entry
	for _, e := range p.entries {
		if e.inst.Collectable() {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := candidates[i].inst.GCPriority(), candidates[j].inst.GCPriority()
		if pi != pj {
			return pi < pj
		}
		return candidates[i].seq < candidates[j].seq
	})
	var freed uint64
	for _, e := range candidates {
		if freed >= need {
			break
		}
		// Evict re-checks the GC count under the instance lock; a hold
		// taken since candidate selection keeps the data resident.
		if !e.inst.Evict() {
			continue
		}
		size := e.inst.Size()
		p.used -= size
		freed += size
		delete(p.entries, e.inst.ID())
	}
}

// forget drops the pool's record of a destroyed instance and releases
// its bytes. Invoked from the instance's OnDestroy hook.
func (p *Pool) forget(id uint64, footprint uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[id]; ok {
		delete(p.entries, id)
		p.used -= footprint
	}
}

// tracks answers strong existence checks.
func (p *Pool) tracks(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[id]
	return ok
}

// Resident returns the number of instances the pool currently tracks.
func (p *Pool) Resident() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
