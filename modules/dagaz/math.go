package dagaz

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 is the vector type used by the index.
type Vec3 = mgl32.Vec3

func EqualWithEpsilon(a float32, b float32, epsilon float64) bool {
	return math.Abs((float64)(a-b)) <= epsilon
}

func minVec(a, b Vec3) Vec3 {
	return Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

func maxVec(a, b Vec3) Vec3 {
	return Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}

// BoundingBox is an axis-aligned box. Min is inclusive on every axis, so is Max.
type BoundingBox struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

func NewBoundingBox(a, b Vec3) BoundingBox {
	return BoundingBox{Min: minVec(a, b), Max: maxVec(a, b)}
}

func (b BoundingBox) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b BoundingBox) HalfExtents() Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// Overlaps reports whether both boxes share at least one point. Touching faces
// count as overlapping.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

func (b BoundingBox) Contains(o BoundingBox) bool {
	return b.Min[0] <= o.Min[0] && b.Max[0] >= o.Max[0] &&
		b.Min[1] <= o.Min[1] && b.Max[1] >= o.Max[1] &&
		b.Min[2] <= o.Min[2] && b.Max[2] >= o.Max[2]
}

func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{Min: minVec(b.Min, o.Min), Max: maxVec(b.Max, o.Max)}
}

// Grow returns the box expanded by v on every side.
func (b BoundingBox) Grow(v float32) BoundingBox {
	d := Vec3{v, v, v}
	return BoundingBox{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

func (b BoundingBox) IsValid() bool {
	for i := 0; i < 3; i++ {
		if isNaN(b.Min[i]) || isNaN(b.Max[i]) || b.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}

type BoundingSphere struct {
	Center Vec3    `json:"center"`
	Radius float32 `json:"radius"`
}

func (s BoundingSphere) Overlaps(o BoundingSphere) bool {
	r := s.Radius + o.Radius
	return s.Center.Sub(o.Center).LenSqr() <= r*r
}

// OverlapsBox tests the sphere against the box using the closest point of the
// box to the sphere center.
func (s BoundingSphere) OverlapsBox(b BoundingBox) bool {
	var d2 float32
	for i := 0; i < 3; i++ {
		c := s.Center[i]
		if c < b.Min[i] {
			d := b.Min[i] - c
			d2 += d * d
		} else if c > b.Max[i] {
			d := c - b.Max[i]
			d2 += d * d
		}
	}
	return d2 <= s.Radius*s.Radius
}

// BoxSphere is the combined volume stored for every object: a box given by
// center and half extents, and a sphere sharing the same center.
type BoxSphere struct {
	Center      Vec3    `json:"center"`
	HalfExtents Vec3    `json:"half_extents"`
	Radius      float32 `json:"radius"`
}

// NewBoxSphere builds the combined volume of a box. The sphere is the one
// circumscribing the box.
func NewBoxSphere(box BoundingBox) BoxSphere {
	he := box.HalfExtents()
	return BoxSphere{
		Center:      box.Center(),
		HalfExtents: he,
		Radius:      he.Len(),
	}
}

func NewBoxSphereFromSphere(s BoundingSphere) BoxSphere {
	return BoxSphere{
		Center:      s.Center,
		HalfExtents: Vec3{s.Radius, s.Radius, s.Radius},
		Radius:      s.Radius,
	}
}

func (b BoxSphere) Box() BoundingBox {
	return BoundingBox{Min: b.Center.Sub(b.HalfExtents), Max: b.Center.Add(b.HalfExtents)}
}

func (b BoxSphere) Sphere() BoundingSphere {
	return BoundingSphere{Center: b.Center, Radius: b.Radius}
}

// Plane is given by n·p + d = 0. The normal points out of the volume the plane
// bounds, so a positive signed distance means outside.
type Plane struct {
	Normal Vec3    `json:"normal"`
	D      float32 `json:"d"`
}

func NewPlaneFromVec4(v mgl32.Vec4) Plane {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v[3] / l}
}

func (p Plane) SignedDistance(v Vec3) float32 {
	return planeDistance(p.Normal[0], p.Normal[1], p.Normal[2], p.D, v)
}

const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum is the six-plane view volume ordered left, right, bottom, top, near,
// far.
type Frustum [6]Plane

// NewFrustumFromMatrix extracts the planes of a combined view-projection
// matrix using an OpenGL clip space (-w <= x,y,z <= w).
func NewFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Rows()

	// Gribb-Hartmann yields inward normals, negate for outward ones.
	inward := [6]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2),
		r3.Sub(r2),
	}

	var f Frustum
	for i, v := range inward {
		f[i] = NewPlaneFromVec4(v.Mul(-1))
	}
	return f
}

// NewPerspectiveFrustum builds a frustum for a camera at eye looking at
// target. fovy is in degrees.
func NewPerspectiveFrustum(eye, target, up Vec3, fovy, aspect, near, far float32) Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far)
	view := mgl32.LookAtV(eye, target, up)
	return NewFrustumFromMatrix(proj.Mul4(view))
}

// CornerPoints returns the 8 corners of the frustum, near plane first.
func (f Frustum) CornerPoints() [8]Vec3 {
	var corners [8]Vec3
	i := 0
	for _, depth := range [2]int{PlaneNear, PlaneFar} {
		for _, vertical := range [2]int{PlaneBottom, PlaneTop} {
			for _, horizontal := range [2]int{PlaneLeft, PlaneRight} {
				corners[i] = intersectPlanes(f[depth], f[vertical], f[horizontal])
				i++
			}
		}
	}
	return corners
}

// BoundingBox returns the box enclosing the frustum corners.
func (f Frustum) BoundingBox() BoundingBox {
	corners := f.CornerPoints()
	box := BoundingBox{Min: corners[0], Max: corners[0]}
	for _, c := range corners[1:] {
		box.Min = minVec(box.Min, c)
		box.Max = maxVec(box.Max, c)
	}
	return box
}

// Grow returns the frustum with every plane moved v outward. A sphere of
// radius at most v that is not entirely outside any plane of f has its center
// inside the grown frustum.
func (f Frustum) Grow(v float32) Frustum {
	for i := range f {
		f[i].D -= v
	}
	return f
}

// Intersects reports whether the sphere is not entirely outside any plane.
func (f Frustum) Intersects(s BoundingSphere) bool {
	for _, p := range f {
		if p.SignedDistance(s.Center) > s.Radius {
			return false
		}
	}
	return true
}

func intersectPlanes(a, b, c Plane) Vec3 {
	bc := b.Normal.Cross(c.Normal)
	ca := c.Normal.Cross(a.Normal)
	ab := a.Normal.Cross(b.Normal)

	denom := a.Normal.Dot(bc)
	if denom == 0 {
		nan := float32(math.NaN())
		return Vec3{nan, nan, nan}
	}

	p := bc.Mul(-a.D).Add(ca.Mul(-b.D)).Add(ab.Mul(-c.D))
	return p.Mul(1 / denom)
}

func isNaN(v float32) bool {
	return v != v
}
