// Package surface implements the frame descriptor (C2) and the
// surface-interface vtable (C3): the reference-counted, pool-owned
// handle every decoder/VPP/encoder operation consumes and produces.
//
// Grounded on original_source/src/cpu/src/cpu_frames.cpp's
// FrameSurfaceInterface: AddRef/Release/GetRefCounter operate on a
// plain counter (no atomics in the C++ reference, but spec.md §5
// requires atomicity here since applications commonly release surfaces
// from background threads — so this port uses atomic.Int32). Map/Unmap
// are no-ops for system memory. GetNativeHandle/GetDeviceHandle always
// report NotFound, matching the reference's unconditional
// MFX_ERR_NOT_FOUND for system-memory surfaces.
package surface

import (
	"sync/atomic"

	"github.com/vplsoft/govpl/internal/codec/avutil"
	"github.com/vplsoft/govpl/pkg/status"
)

// MapFlags mirrors the flags argument of Map.
type MapFlags int

const (
	MapRead MapFlags = 1 << iota
	MapWrite
	MapReadWrite = MapRead | MapWrite
)

// CropRect is the surface's active region within its allocation.
type CropRect struct {
	X, Y, W, H int
}

// Info is the immutable-once-allocated frame info (spec.md §3).
type Info struct {
	Format      avutil.PixelFormat
	Width       int
	Height      int
	Crop        CropRect
	FrameRate   avutil.Rational
	Structure   avutil.PictureStructure
	ChromaShift int // 1 for 10-bit formats needing a sample shift, else 0
}

// DataFlags marks provenance of a surface's timestamp/content, used by
// the VPP stage's "original timestamp" propagation rule (spec.md §4.5).
type DataFlags int

const (
	DataFlagNone DataFlags = 0
	DataOriginalTimestamp DataFlags = 1 << iota
)

// Surface is one frame descriptor: the pool-owned memory plus the
// metadata every pipeline reads and writes. Surfaces are never
// individually heap-managed by reference count per spec.md's design
// note in §9 — they live in the pool's arena for the pool's lifetime;
// ref_count and Locked only gate reuse eligibility.
type Surface struct {
	Info Info

	// Data holds plane byte slices (Y, U, V — luma/chroma coincide for
	// packed layouts, leaving Data[1]/Data[2] nil).
	Data     [3][]byte
	Pitch    [3]int

	Timestamp int64
	Flags     DataFlags

	refCount atomic.Int32
	locked   atomic.Int32

	// poolIndex is this surface's slot in its owning pool's arena — the
	// "index back to its pool" design note in spec.md §9, replacing the
	// source's cyclic surface<->pool-interface back-pointer.
	poolIndex int
	pool      surfaceOwner
}

// surfaceOwner is the minimal pool-side contract a surface needs from
// its owning pool: enough to let Synchronize resolve against whatever
// sync token the pool's pipeline last associated with this slot. A
// pointer back to pkg/pool.Pool would create an import cycle; pool
// satisfies this interface instead.
type surfaceOwner interface {
	lastSyncWaitMs(poolIndex int) int
}

// Bind attaches this surface to its owning pool at the given arena
// index. Called once by pkg/pool when a surface is allocated.
func (s *Surface) Bind(owner interface{ lastSyncWaitMs(int) int }, index int) {
	s.pool = owner
	s.poolIndex = index
}

// AddRef increments the surface's reference count. Initial value is 0,
// per spec.md §3 — reaching 0 never triggers destruction, it only makes
// the surface eligible for reuse by the pool (invariant 1, §8).
func (s *Surface) AddRef() status.Code {
	if s == nil {
		return status.NullPtr
	}
	s.refCount.Add(1)
	return status.OK
}

// Release decrements the reference count.
func (s *Surface) Release() status.Code {
	if s == nil {
		return status.NullPtr
	}
	s.refCount.Add(-1)
	return status.OK
}

// RefCount returns the current reference count.
func (s *Surface) RefCount() (int32, status.Code) {
	if s == nil {
		return 0, status.NullPtr
	}
	return s.refCount.Load(), status.OK
}

// Lock marks this surface as still in use by a pipeline, making it
// ineligible for reuse regardless of ref_count (spec.md §3's
// "Locked count").
func (s *Surface) Lock() status.Code {
	if s == nil {
		return status.NullPtr
	}
	s.locked.Add(1)
	return status.OK
}

// Unlock reverses Lock.
func (s *Surface) Unlock() status.Code {
	if s == nil {
		return status.NullPtr
	}
	s.locked.Add(-1)
	return status.OK
}

// Reusable reports whether ref_count == 0 ∧ locked_count == 0 (§3
// invariant 1).
func (s *Surface) Reusable() bool {
	return s.refCount.Load() == 0 && s.locked.Load() == 0
}

// Map is a no-op for system memory, matching cpu_frames.cpp's Map.
func (s *Surface) Map(flags MapFlags) status.Code {
	if s == nil {
		return status.NullPtr
	}
	return status.OK
}

// Unmap is a no-op for system memory, matching cpu_frames.cpp's Unmap.
func (s *Surface) Unmap() status.Code {
	if s == nil {
		return status.NullPtr
	}
	return status.OK
}

// GetNativeHandle always reports NotFound for system-memory surfaces.
func (s *Surface) GetNativeHandle() (uintptr, status.Code) {
	if s == nil {
		return 0, status.NullPtr
	}
	return 0, status.NotFound
}

// GetDeviceHandle always reports NotFound for system-memory surfaces —
// hardware/device-memory surfaces are an explicit Non-goal.
func (s *Surface) GetDeviceHandle() (uintptr, status.Code) {
	if s == nil {
		return 0, status.NullPtr
	}
	return 0, status.NotFound
}

// Synchronize resolves the sync token most recently associated with
// this surface. The software core's sync_operation always resolves
// immediately (spec.md §5), so this returns OK unconditionally once the
// surface is bound to a pool; wait is accepted for contract parity.
func (s *Surface) Synchronize(waitMs int) status.Code {
	if s == nil {
		return status.NullPtr
	}
	if s.pool != nil {
		_ = s.pool.lastSyncWaitMs(s.poolIndex)
	}
	return status.OK
}
