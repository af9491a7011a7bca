package dagaz

// SpatialPartition is the contract of a spatial index over objects owned by
// values of type T. Grid implements it.
type SpatialPartition[T any] interface {
	RegisterObject(bounds BoxSphere, owner T, category uint32) Handle
	RegisterAlwaysVisible(owner T, category uint32) Handle
	RemoveObject(h Handle)
	UpdateObjectBounds(h Handle, newBounds BoxSphere)
	UpdateObjectOwner(h Handle, owner T)
	UpdateObjectCategory(h Handle, category uint32)
	UpdateObjectTags(h Handle, tags TagSet)
	BeginFrame() uint64
	Frame() uint64
	Compact() int

	Object(h Handle) (ObjectInfo, T, bool)
	IsValid(h Handle) bool
	Len() int
	LastVisibleFrame(h Handle) uint64
	VisibilityState(h Handle, framesBeforeInvisible uint64) VisibilityState

	QuerySphere(center Vec3, radius float32, fn func(Handle, T) bool, p QueryParams)
	QueryBox(box BoundingBox, fn func(Handle, T) bool, p QueryParams)
	QueryFrustum(f Frustum, out *[]T, p QueryParams)
	QueryFrustumFunc(f Frustum, fn func(Handle, T), p QueryParams)

	// debug stuff:
	AllCellBoxes() []BoundingBox
	CellBoxesFor(h Handle) []BoundingBox
	DebugInfo() DebugInfo
	CheckInvariants() error
}

var _ SpatialPartition[struct{}] = (*Grid[struct{}])(nil)
