package mem

import "sync"

// Kind categorises a memory pool by the hardware it lives on.
type Kind string

const (
	// SystemMemory is ordinary host DRAM.
	SystemMemory Kind = "system"
	// FrameBuffer is device-resident memory (e.g. GPU HBM).
	FrameBuffer Kind = "framebuffer"
	// ZeroCopy is host memory pinned for device access.
	ZeroCopy Kind = "zerocopy"
	// Disk is file-backed spill memory.
	Disk Kind = "disk"
)

// AddressSpace identifies a node in the distributed runtime.
type AddressSpace uint32

// Memory identifies a physical memory pool. It is a value type; the
// zero value is the null memory.
type Memory struct {
	ID           uint64       `json:"id" yaml:"id"`
	Kind         Kind         `json:"kind" yaml:"kind"`
	AddressSpace AddressSpace `json:"addressSpace" yaml:"addressSpace"`
	Capacity     uint64       `json:"capacity" yaml:"capacity"`
}

// NoMemory denotes the absence of a memory pool.
var NoMemory = Memory{}

// Exists reports whether the memory identifies a real pool.
func (m Memory) Exists() bool {
	return m.ID != 0
}

// Path describes the cost of moving data between two memory pools.
// Higher bandwidth and lower latency are both better; which one wins a
// tie-break is the caller's choice.
type Path struct {
	Bandwidth uint64 `json:"bandwidth" yaml:"bandwidth"`
	Latency   uint64 `json:"latency" yaml:"latency"`
}

// Affinity is a symmetric table of memory-to-memory paths. Pairs with
// no recorded path are assumed unreachable and rank last. The table is
// safe for concurrent use, so paths may be recorded while mapper calls
// rank memories.
type Affinity struct {
	mu    sync.RWMutex
	paths map[[2]uint64]Path
}

// NewAffinity creates an empty affinity table.
func NewAffinity() *Affinity {
	return &Affinity{paths: make(map[[2]uint64]Path)}
}

// Set records the path between two memories in both directions.
func (a *Affinity) Set(from, to Memory, path Path) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths[[2]uint64{from.ID, to.ID}] = path
	a.paths[[2]uint64{to.ID, from.ID}] = path
}

// Path returns the recorded path between two memories; ok is false when
// no path exists.
func (a *Affinity) Path(from, to Memory) (Path, bool) {
	if a == nil {
		return Path{}, false
	}
	if from.ID == to.ID {
		return Path{Bandwidth: ^uint64(0), Latency: 0}, true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.paths[[2]uint64{from.ID, to.ID}]
	return p, ok
}

// Closer reports whether memory x is preferable to memory y when
// reaching target. With preferBandwidth the comparison favours the
// wider path, otherwise the lower latency one.
func (a *Affinity) Closer(target, x, y Memory, preferBandwidth bool) bool {
	px, okx := a.Path(x, target)
	py, oky := a.Path(y, target)
	if okx != oky {
		return okx
	}
	if !okx {
		return false
	}
	if preferBandwidth {
		if px.Bandwidth != py.Bandwidth {
			return px.Bandwidth > py.Bandwidth
		}
		return px.Latency < py.Latency
	}
	if px.Latency != py.Latency {
		return px.Latency < py.Latency
	}
	return px.Bandwidth > py.Bandwidth
}
