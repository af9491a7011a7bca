package dagaz

import (
	"sync/atomic"
)

// VisibilityState is how an object was last seen by a frustum query.
type VisibilityState uint8

const (
	// Invisible queries do not stamp the objects they report.
	Invisible VisibilityState = iota

	// Indirect is for views that do not reach a viewer, such as shadow or
	// reflection views.
	Indirect

	// Direct is for views seen by a viewer.
	Direct
)

func (v VisibilityState) String() string {
	switch v {
	case Invisible:
		return "invisible"
	case Indirect:
		return "indirect"
	case Direct:
		return "direct"
	default:
		return "unknown"
	}
}

const visibilityBits = 4

// A visibility stamp packs a frame in the high bits and a VisibilityState in
// the low 4 bits. Stamps only grow, so a later frame wins and, within a
// frame, Direct wins over Indirect.
func packVisibility(frame uint64, v VisibilityState) uint64 {
	return frame<<visibilityBits | uint64(v)
}

func unpackVisibility(stamp uint64) (frame uint64, v VisibilityState) {
	return stamp >> visibilityBits, VisibilityState(stamp & (1<<visibilityBits - 1))
}

func stampMax(a *atomic.Uint64, stamp uint64) {
	for {
		old := a.Load()
		if old >= stamp || a.CompareAndSwap(old, stamp) {
			return
		}
	}
}

// VisibilityState returns how the object was seen by the frustum queries of
// the last framesBeforeInvisible frames. An object last seen more than
// framesBeforeInvisible frames ago is Invisible. Always visible objects are
// Direct. It panics when the handle is not registered.
func (g *Grid[T]) VisibilityState(h Handle, framesBeforeInvisible uint64) VisibilityState {
	d := g.registry.mustGet(h)
	if d.alwaysVisible {
		return Direct
	}

	frame, v := unpackVisibility(d.visibility.Load())
	if v == Invisible || g.frame > frame+framesBeforeInvisible {
		return Invisible
	}
	return v
}
