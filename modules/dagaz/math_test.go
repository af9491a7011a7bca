package dagaz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualWithEpsilon(t *testing.T) {
	require.True(t, EqualWithEpsilon(0.1, 0.2, 0.11))
	require.False(t, EqualWithEpsilon(0.1, 0.3, 0.11))
}

func TestBoundingBox(t *testing.T) {
	box := NewBoundingBox(Vec3{1, 1, 1}, Vec3{-1, -1, -1})
	require.Equal(t, Vec3{-1, -1, -1}, box.Min)
	require.Equal(t, Vec3{1, 1, 1}, box.Max)
	require.Equal(t, Vec3{0, 0, 0}, box.Center())
	require.Equal(t, Vec3{1, 1, 1}, box.HalfExtents())
	require.True(t, box.IsValid())

	t.Run("overlaps when touching", func(t *testing.T) {
		other := NewBoundingBox(Vec3{1, 0, 0}, Vec3{2, 1, 1})
		require.True(t, box.Overlaps(other))
		require.True(t, other.Overlaps(box))
	})

	t.Run("does not overlap when apart", func(t *testing.T) {
		other := NewBoundingBox(Vec3{1.5, 0, 0}, Vec3{2, 1, 1})
		require.False(t, box.Overlaps(other))
	})

	t.Run("contains and union", func(t *testing.T) {
		inner := NewBoundingBox(Vec3{0, 0, 0}, Vec3{0.5, 0.5, 0.5})
		require.True(t, box.Contains(inner))
		require.False(t, inner.Contains(box))

		far := NewBoundingBox(Vec3{4, 4, 4}, Vec3{5, 5, 5})
		u := box.Union(far)
		require.Equal(t, Vec3{-1, -1, -1}, u.Min)
		require.Equal(t, Vec3{5, 5, 5}, u.Max)
	})

	t.Run("grow", func(t *testing.T) {
		g := box.Grow(2)
		require.Equal(t, Vec3{-3, -3, -3}, g.Min)
		require.Equal(t, Vec3{3, 3, 3}, g.Max)
	})

	t.Run("invalid", func(t *testing.T) {
		require.False(t, BoundingBox{Min: Vec3{1, 0, 0}, Max: Vec3{0, 0, 0}}.IsValid())

		nan := float32(0)
		nan = nan / nan
		require.False(t, BoundingBox{Min: Vec3{nan, 0, 0}, Max: Vec3{1, 1, 1}}.IsValid())
	})
}

func TestBoundingSphere(t *testing.T) {
	s := BoundingSphere{Center: Vec3{0, 0, 0}, Radius: 1}

	require.True(t, s.Overlaps(BoundingSphere{Center: Vec3{2, 0, 0}, Radius: 1}))
	require.False(t, s.Overlaps(BoundingSphere{Center: Vec3{2.1, 0, 0}, Radius: 1}))

	require.True(t, s.OverlapsBox(NewBoundingBox(Vec3{0.5, 0.5, 0.5}, Vec3{3, 3, 3})))
	require.False(t, s.OverlapsBox(NewBoundingBox(Vec3{0.8, 0.8, 0.8}, Vec3{3, 3, 3})))
	require.True(t, s.OverlapsBox(NewBoundingBox(Vec3{-5, -5, -5}, Vec3{5, 5, 5})))
}

func TestBoxSphere(t *testing.T) {
	b := NewBoxSphere(NewBoundingBox(Vec3{0, 0, 0}, Vec3{2, 4, 4}))
	require.Equal(t, Vec3{1, 2, 2}, b.Center)
	require.Equal(t, Vec3{1, 2, 2}, b.HalfExtents)
	require.Equal(t, float32(3), b.Radius)
	require.Equal(t, NewBoundingBox(Vec3{0, 0, 0}, Vec3{2, 4, 4}), b.Box())

	s := NewBoxSphereFromSphere(BoundingSphere{Center: Vec3{1, 1, 1}, Radius: 2})
	require.Equal(t, Vec3{2, 2, 2}, s.HalfExtents)
	require.Equal(t, BoundingSphere{Center: Vec3{1, 1, 1}, Radius: 2}, s.Sphere())
}

func newTestFrustum() Frustum {
	// Camera at the origin looking down -z with a 90 degree field of view.
	return NewPerspectiveFrustum(Vec3{0, 0, 0}, Vec3{0, 0, -1}, Vec3{0, 1, 0}, 90, 1, 1, 100)
}

func TestFrustum(t *testing.T) {
	f := newTestFrustum()

	t.Run("planes point outward", func(t *testing.T) {
		inside := Vec3{0, 0, -50}
		for i, p := range f {
			require.Less(t, p.SignedDistance(inside), float32(0), "plane %d", i)
		}

		require.Greater(t, f[PlaneNear].SignedDistance(Vec3{0, 0, 10}), float32(0))
		require.Greater(t, f[PlaneFar].SignedDistance(Vec3{0, 0, -200}), float32(0))
		require.Greater(t, f[PlaneLeft].SignedDistance(Vec3{-60, 0, -50}), float32(0))
		require.Greater(t, f[PlaneRight].SignedDistance(Vec3{60, 0, -50}), float32(0))
		require.Greater(t, f[PlaneBottom].SignedDistance(Vec3{0, -60, -50}), float32(0))
		require.Greater(t, f[PlaneTop].SignedDistance(Vec3{0, 60, -50}), float32(0))
	})

	t.Run("planes are normalized", func(t *testing.T) {
		for _, p := range f {
			require.InDelta(t, 1, p.Normal.Len(), 1e-5)
		}
	})

	t.Run("corner points", func(t *testing.T) {
		corners := f.CornerPoints()
		for i, c := range corners[:4] {
			require.InDelta(t, -1, c[2], 1e-3, "near corner %d", i)
			require.InDelta(t, 1, abs(c[0]), 1e-3, "near corner %d", i)
			require.InDelta(t, 1, abs(c[1]), 1e-3, "near corner %d", i)
		}
		for i, c := range corners[4:] {
			require.InDelta(t, -100, c[2], 1e-1, "far corner %d", i)
			require.InDelta(t, 100, abs(c[0]), 1e-1, "far corner %d", i)
			require.InDelta(t, 100, abs(c[1]), 1e-1, "far corner %d", i)
		}
	})

	t.Run("bounding box", func(t *testing.T) {
		box := f.BoundingBox()
		require.InDelta(t, -100, box.Min[0], 1e-1)
		require.InDelta(t, -100, box.Min[1], 1e-1)
		require.InDelta(t, -100, box.Min[2], 1e-1)
		require.InDelta(t, 100, box.Max[0], 1e-1)
		require.InDelta(t, 100, box.Max[1], 1e-1)
		require.InDelta(t, -1, box.Max[2], 1e-3)
	})

	t.Run("intersects", func(t *testing.T) {
		require.True(t, f.Intersects(BoundingSphere{Center: Vec3{0, 0, -10}, Radius: 1}))
		require.True(t, f.Intersects(BoundingSphere{Center: Vec3{0, 0, 0.5}, Radius: 2}))
		require.False(t, f.Intersects(BoundingSphere{Center: Vec3{0, 0, 5}, Radius: 1}))
		require.False(t, f.Intersects(BoundingSphere{Center: Vec3{0, 0, -150}, Radius: 10}))
	})
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
