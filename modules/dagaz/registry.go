package dagaz

import (
	"fmt"
	"sync/atomic"
)

// Handle identifies a registered object. The slot index is stored in the low
// 32 bits and the slot generation in the high 32 bits, so a handle to a freed
// slot never matches the object that reuses it. The zero Handle is never
// issued.
type Handle uint64

func newHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index(), h.Generation())
}

// SpatialData is the record kept for every registered object.
type SpatialData struct {
	Bounds   BoxSphere
	Category uint32
	Tags     TagSet

	// The number of cells currently referencing this record.
	membership uint32

	// Always visible records are in no cell. alwaysVisibleIndex is their
	// position in the always visible list of the grid.
	alwaysVisible      bool
	alwaysVisibleIndex int

	// The visibility stamp, written by frustum queries which may run
	// concurrently.
	visibility atomic.Uint64
}

// MembershipCount returns the number of cells referencing the record.
func (d *SpatialData) MembershipCount() uint32 {
	return d.membership
}

type slot[T any] struct {
	generation uint32
	data       *SpatialData
	owner      T
}

// A generational arena of spatial data records.
type registry[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func (r *registry[T]) add(bounds BoxSphere, owner T, category uint32) (Handle, *SpatialData) {
	d := &SpatialData{
		Bounds:   bounds,
		Category: category,
	}

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]

		s := &r.slots[idx]
		s.data = d
		s.owner = owner
		r.count++
		return newHandle(idx, s.generation), d
	}

	idx := uint32(len(r.slots))
	r.slots = append(r.slots, slot[T]{
		generation: 1,
		data:       d,
		owner:      owner,
	})
	r.count++
	return newHandle(idx, 1), d
}

func (r *registry[T]) get(h Handle) (*SpatialData, bool) {
	idx := h.Index()
	if int(idx) >= len(r.slots) {
		return nil, false
	}

	s := &r.slots[idx]
	if s.data == nil || s.generation != h.Generation() {
		return nil, false
	}
	return s.data, true
}

func (r *registry[T]) mustGet(h Handle) *SpatialData {
	d, ok := r.get(h)
	if !ok {
		panicInvalidHandle(h)
	}
	return d
}

// owner returns the owner of a handle known to be valid.
func (r *registry[T]) owner(h Handle) T {
	return r.slots[h.Index()].owner
}

func (r *registry[T]) setOwner(h Handle, owner T) {
	r.slots[h.Index()].owner = owner
}

func (r *registry[T]) remove(h Handle) {
	s := &r.slots[h.Index()]

	var zero T
	s.data = nil
	s.owner = zero
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}

	r.free = append(r.free, h.Index())
	r.count--
}

func (r *registry[T]) forEach(fn func(h Handle, d *SpatialData, owner T)) {
	for i := range r.slots {
		s := &r.slots[i]
		if s.data == nil {
			continue
		}
		fn(newHandle(uint32(i), s.generation), s.data, s.owner)
	}
}
