// Package pool implements the frame pool (C4) and its refcounted
// pool-interface handle (C5): a lazily-growing arena of surfaces whose
// free-slot selection runs under the pool mutex (it is not lock-free).
//
// Grounded on original_source/src/cpu/src/cpu_frame_pool.cpp's
// CpuFramePool: two Init overloads (shape-unaware / shape-aware) and a
// linear GetFreeSurface scan. The reference returns MFX_ERR_NOT_FOUND
// when the scan finds nothing and leaves a TODO about whether to grow;
// spec.md §4.2 resolves that TODO as lazy growth for shape-aware pools
// (append a new descriptor of the stored shape) — this port implements
// that resolution, keeping NotFound only for the currently-unused
// fixed-maximum case the spec calls out.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/surface"
	"github.com/vplsoft/govpl/pkg/status"
)

// AllocationPolicy is always Unlimited in this core (spec.md §4.2).
type AllocationPolicy int

const (
	PolicyUnlimited AllocationPolicy = iota
)

// UnboundedPoolSize is the sentinel GetMaximumPoolSize returns for the
// unlimited policy.
const UnboundedPoolSize = -1

// Shape describes the common frame_info a shape-aware pool allocates
// new surfaces with.
type Shape struct {
	Format avutil.PixelFormat
	Width  int
	Height int
}

// Pool is an ordered arena of surfaces of one shape (or, if
// shape-unaware, of empty descriptors that the pool never configures).
//
// The arena is append-only and never compacts, matching spec.md §9's
// design note: surfaces are slaved to the pool's/session's lifetime,
// not to their own refcount, so indices handed out by Bind never go
// stale.
type Pool struct {
	mu sync.Mutex

	shapeAware bool
	shape      Shape
	fixedMax   int // <= 0 means no fixed maximum (always true today)

	surfaces []*surface.Surface

	// ifaceRefCount backs the separate pool-interface handle (C5); it is
	// independent of individual surface refcounts.
	ifaceRefCount atomic.Int32
	ifaceValid    atomic.Bool
}

// NewShapeUnaware creates a pool of n empty descriptors (spec.md §4.2,
// "shape-unaware"). They carry no backing buffers, and the pool does not
// allocate any for them, on first use or later.
func NewShapeUnaware(n int) *Pool {
	p := &Pool{surfaces: make([]*surface.Surface, 0, n)}
	for i := 0; i < n; i++ {
		p.appendLocked(&surface.Surface{})
	}
	p.ifaceRefCount.Store(1)
	p.ifaceValid.Store(true)
	return p
}

// NewShapeAware creates a pool of n descriptors pre-allocated to the
// given format/width/height (spec.md §4.2, "shape-aware").
func NewShapeAware(shape Shape, n int) (*Pool, status.Code) {
	p := &Pool{shapeAware: true, shape: shape, surfaces: make([]*surface.Surface, 0, n)}
	for i := 0; i < n; i++ {
		s, code := p.newShapedSurface()
		if code != status.OK {
			return nil, code
		}
		p.appendLocked(s)
	}
	p.ifaceRefCount.Store(1)
	p.ifaceValid.Store(true)
	return p, status.OK
}

func (p *Pool) newShapedSurface() (*surface.Surface, status.Code) {
	s := &surface.Surface{
		Info: surface.Info{
			Format: p.shape.Format,
			Width:  p.shape.Width,
			Height: p.shape.Height,
		},
	}
	frame := &avutil.Frame{Width: p.shape.Width, Height: p.shape.Height, Format: p.shape.Format}
	if err := frame.AllocBuffer(); err != nil {
		return nil, status.MemoryAlloc
	}
	s.Data = frame.Data
	for i, ls := range frame.Linesize {
		s.Pitch[i] = ls
	}
	return s, status.OK
}

// appendLocked binds and appends s; callers must hold mu (or call
// before p is published).
func (p *Pool) appendLocked(s *surface.Surface) {
	idx := len(p.surfaces)
	s.Bind(p, idx)
	p.surfaces = append(p.surfaces, s)
}

// lastSyncWaitMs satisfies the surfaceOwner contract surface.Surface
// needs to implement Synchronize; the software core resolves
// synchronously so there is nothing to actually wait on.
func (p *Pool) lastSyncWaitMs(poolIndex int) int {
	return 0
}

// GetFreeSurface scans for the first surface with ref_count == 0 ∧
// locked_count == 0, add-refs it to 1, and returns it (spec.md §4.2,
// invariant 1 of §8). If none is free:
//   - shape-aware, no fixed maximum: allocate and append a new surface
//     of the pool's shape (lazy growth);
//   - shape-unaware: append a new empty descriptor;
//   - shape-aware with a fixed maximum reached: NotFound.
//
// The pool mutex is held for the whole call, scan and growth alike, so
// concurrent callers are serialized; the scan is not lock-free.
func (p *Pool) GetFreeSurface() (*surface.Surface, status.Code) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.surfaces {
		if s.Reusable() {
			s.AddRef()
			return s, status.OK
		}
	}

	if p.shapeAware && p.fixedMax > 0 && len(p.surfaces) >= p.fixedMax {
		return nil, status.NotFound
	}

	var s *surface.Surface
	if p.shapeAware {
		var code status.Code
		s, code = p.newShapedSurface()
		if code != status.OK {
			return nil, code
		}
	} else {
		s = &surface.Surface{}
	}
	p.appendLocked(s)
	s.AddRef()
	return s, status.OK
}

// CurrentPoolSize returns the current descriptor count.
func (p *Pool) CurrentPoolSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.surfaces)
}

// Interface is the refcounted handle (C5) through which a pool is
// shared with callers, independent of the pool's own lifetime: the
// interface can be released down to 0 (at which point further calls on
// it return InvalidHandle) while the underlying pool survives until its
// owning session is destroyed (spec.md §4.2).
type Interface struct {
	pool *Pool
}

// NewInterface wraps p. Pool.ifaceRefCount starts at 1 from
// construction; additional Interface values created later call AddRef
// explicitly.
func NewInterface(p *Pool) *Interface {
	return &Interface{pool: p}
}

func (i *Interface) valid() bool {
	return i != nil && i.pool != nil && i.pool.ifaceValid.Load()
}

// AddRef increments the interface's independent refcount.
func (i *Interface) AddRef() status.Code {
	if !i.valid() {
		return status.InvalidHandle
	}
	i.pool.ifaceRefCount.Add(1)
	return status.OK
}

// Release decrements the interface's refcount; at 0 the interface
// becomes invalid (subsequent calls return InvalidHandle) but the pool
// itself is untouched.
func (i *Interface) Release() status.Code {
	if !i.valid() {
		return status.InvalidHandle
	}
	if i.pool.ifaceRefCount.Add(-1) <= 0 {
		i.pool.ifaceValid.Store(false)
	}
	return status.OK
}

// GetRefCounter returns the interface's own refcount.
func (i *Interface) GetRefCounter() (int32, status.Code) {
	if !i.valid() {
		return 0, status.InvalidHandle
	}
	return i.pool.ifaceRefCount.Load(), status.OK
}

// GetAllocationPolicy always reports Unlimited in this core.
func (i *Interface) GetAllocationPolicy() (AllocationPolicy, status.Code) {
	if !i.valid() {
		return 0, status.InvalidHandle
	}
	return PolicyUnlimited, status.OK
}

// GetMaximumPoolSize always reports the unbounded sentinel.
func (i *Interface) GetMaximumPoolSize() (int, status.Code) {
	if !i.valid() {
		return 0, status.InvalidHandle
	}
	return UnboundedPoolSize, status.OK
}

// GetCurrentPoolSize reports the live descriptor count.
func (i *Interface) GetCurrentPoolSize() (int, status.Code) {
	if !i.valid() {
		return 0, status.InvalidHandle
	}
	return i.pool.CurrentPoolSize(), status.OK
}

// SetNumSurfaces always fails: the allocation policy is fixed.
func (i *Interface) SetNumSurfaces(n int) status.Code {
	if !i.valid() {
		return status.InvalidHandle
	}
	return status.IncompatibleVideoParam
}

// RevokeSurfaces always fails: the allocation policy is fixed. See
// spec.md §9's open question on pool shrink policy — this core never
// honors revocation.
func (i *Interface) RevokeSurfaces(n int) status.Code {
	if !i.valid() {
		return status.InvalidHandle
	}
	return status.IncompatibleVideoParam
}
