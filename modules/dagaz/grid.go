package dagaz

import (
	"github.com/aukilabs/dagaz/featureflag"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	DefaultCellSize = 128
	DefaultName     = "default"
)

// Grid is a hashed uniform grid indexing objects by their bounds. Each object
// is stored in every cell its bounding box overlaps and carries an owner of
// type T.
//
// A Grid does no locking. Mutations must be serialized against each other
// and against queries. Queries may run concurrently with each other.
type Grid[T any] struct {
	name        string
	cellSize    float32
	invCellSize float32
	flags       featureflag.FeatureFlag

	cells         map[uint64]*Cell
	registry      registry[T]
	alwaysVisible []Handle

	// At least the largest sphere radius stored in a cell. Sphere and frustum
	// queries widen their cell range by it. It only grows between calls to
	// Compact, which recomputes it.
	margin float32
	frame  uint64

	metrics gridMetrics
}

type Option func(*options)

type options struct {
	cellSize float32
	flags    featureflag.FeatureFlag
	name     string
}

// WithCellSize sets the edge length of a cell in world units.
func WithCellSize(v float32) Option {
	return func(o *options) {
		o.cellSize = v
	}
}

func WithFeatureFlags(f featureflag.FeatureFlag) Option {
	return func(o *options) {
		o.flags = f
	}
}

// WithName sets the name the grid reports its metrics under.
func WithName(v string) Option {
	return func(o *options) {
		o.name = v
	}
}

// New creates a grid. It panics when the cell size is not positive.
func New[T any](opts ...Option) *Grid[T] {
	o := options{
		cellSize: DefaultCellSize,
		name:     DefaultName,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !(o.cellSize > 0) {
		panic(errors.New("cell size must be positive").
			WithType(ErrTypeInvalidBounds).
			WithTag("cell_size", o.cellSize))
	}

	return &Grid[T]{
		name:        o.name,
		cellSize:    o.cellSize,
		invCellSize: 1 / o.cellSize,
		flags:       o.flags,
		cells:       make(map[uint64]*Cell),
		metrics:     newGridMetrics(o.name),
	}
}

func (g *Grid[T]) Name() string {
	return g.name
}

func (g *Grid[T]) CellSize() float32 {
	return g.cellSize
}

// Len returns the number of registered objects.
func (g *Grid[T]) Len() int {
	return g.registry.count
}

// CellCount returns the number of cells in the cell table, empty ones
// included.
func (g *Grid[T]) CellCount() int {
	return len(g.cells)
}

// RegisterObject adds an object to the grid and returns its handle.
func (g *Grid[T]) RegisterObject(bounds BoxSphere, owner T, category uint32) Handle {
	validateBounds(bounds)
	r := CellRangeOf(bounds.Box(), g.invCellSize)

	h, d := g.registry.add(bounds, owner, category)
	g.insert(h, d, r)
	g.margin = max(g.margin, bounds.Radius)

	g.metrics.instrumentMutation(mutationRegister)
	return h
}

// RegisterAlwaysVisible adds an object that every query reports, subject to
// the category and tag filters. It has no bounds and is stored in no cell.
func (g *Grid[T]) RegisterAlwaysVisible(owner T, category uint32) Handle {
	h, d := g.registry.add(BoxSphere{}, owner, category)
	d.alwaysVisible = true
	d.alwaysVisibleIndex = len(g.alwaysVisible)
	g.alwaysVisible = append(g.alwaysVisible, h)

	g.metrics.instrumentMutation(mutationRegister)
	return h
}

// RemoveObject removes the object from every cell referencing it and frees
// its handle. It panics when the handle is not registered.
func (g *Grid[T]) RemoveObject(h Handle) {
	d := g.registry.mustGet(h)
	if d.alwaysVisible {
		g.removeAlwaysVisible(d)
	} else {
		g.remove(h, d)
	}

	if d.membership != 0 {
		panicMembership("object is still referenced after removal", h, CellCoord{})
	}
	g.registry.remove(h)

	g.metrics.instrumentMutation(mutationRemove)
}

// UpdateObjectBounds moves the object to new bounds, touching only the cells
// whose membership changes. It panics when the handle is not registered.
func (g *Grid[T]) UpdateObjectBounds(h Handle, newBounds BoxSphere) {
	d := g.registry.mustGet(h)
	if d.alwaysVisible {
		panicAlwaysVisible("update_bounds", h)
	}
	validateBounds(newBounds)

	oldRange := CellRangeOf(d.Bounds.Box(), g.invCellSize)
	newRange := CellRangeOf(newBounds.Box(), g.invCellSize)
	sphere := newBounds.Sphere()

	d.Bounds = newBounds
	g.margin = max(g.margin, newBounds.Radius)

	g.ForEachCellInRange(oldRange.Union(newRange), func(coord CellCoord, key uint64, cell *Cell) bool {
		inOld := oldRange.Contains(coord)
		inNew := newRange.Contains(coord)

		switch {
		case inOld && inNew:
			if cell == nil {
				panicMembership("cell of registered object is missing", h, coord)
			}
			cell.UpdateData(h, sphere)

		case inOld:
			if cell == nil {
				panicMembership("cell of registered object is missing", h, coord)
			}
			cell.RemoveData(h, d)

		case inNew:
			if cell == nil {
				cell = g.createCell(coord, key)
			}
			cell.AddData(h, sphere, d)
		}
		return true
	})

	g.metrics.instrumentMutation(mutationUpdate)
}

// UpdateObjectOwner replaces the owner of the object.
func (g *Grid[T]) UpdateObjectOwner(h Handle, owner T) {
	g.registry.mustGet(h)
	g.registry.setOwner(h, owner)
}

// UpdateObjectCategory replaces the category bitmask of the object.
func (g *Grid[T]) UpdateObjectCategory(h Handle, category uint32) {
	d := g.registry.mustGet(h)
	d.Category = category
	if d.alwaysVisible {
		return
	}

	g.ForEachCellInRange(CellRangeOf(d.Bounds.Box(), g.invCellSize), func(coord CellCoord, _ uint64, cell *Cell) bool {
		if cell == nil {
			panicMembership("cell of registered object is missing", h, coord)
		}
		cell.widenCategories(category)
		return true
	})
}

// UpdateObjectTags replaces the tags of the object.
func (g *Grid[T]) UpdateObjectTags(h Handle, tags TagSet) {
	g.registry.mustGet(h).Tags = tags
}

// BeginFrame advances the frame counter stamped on objects accepted by
// frustum queries and returns the new frame.
func (g *Grid[T]) BeginFrame() uint64 {
	g.frame++
	return g.frame
}

// Frame returns the current frame.
func (g *Grid[T]) Frame() uint64 {
	return g.frame
}

// ObjectInfo is a copy of the spatial data of an object.
type ObjectInfo struct {
	Bounds           BoxSphere       `json:"bounds"`
	Category         uint32          `json:"category"`
	Tags             TagSet          `json:"tags"`
	Membership       uint32          `json:"membership"`
	AlwaysVisible    bool            `json:"always_visible"`
	LastVisibleFrame uint64          `json:"last_visible_frame"`
	LastVisibility   VisibilityState `json:"last_visibility"`
}

// Object returns the spatial data and the owner of the object. ok is false
// when the handle is not registered.
func (g *Grid[T]) Object(h Handle) (info ObjectInfo, owner T, ok bool) {
	d, ok := g.registry.get(h)
	if !ok {
		return ObjectInfo{}, owner, false
	}

	frame, v := unpackVisibility(d.visibility.Load())
	return ObjectInfo{
		Bounds:           d.Bounds,
		Category:         d.Category,
		Tags:             d.Tags,
		Membership:       d.membership,
		AlwaysVisible:    d.alwaysVisible,
		LastVisibleFrame: frame,
		LastVisibility:   v,
	}, g.registry.owner(h), true
}

// IsValid reports whether the handle refers to a registered object.
func (g *Grid[T]) IsValid(h Handle) bool {
	_, ok := g.registry.get(h)
	return ok
}

// LastVisibleFrame returns the latest frame in which a stamping frustum
// query accepted the object, 0 if none did. It panics when the handle is not
// registered.
func (g *Grid[T]) LastVisibleFrame(h Handle) uint64 {
	frame, _ := unpackVisibility(g.registry.mustGet(h).visibility.Load())
	return frame
}

// Compact deletes the empty cells from the cell table and returns how many
// were deleted. It also refits the category mask and the largest radius of
// the remaining cells, and shrinks the query margin to match.
func (g *Grid[T]) Compact() int {
	n := 0
	var margin float32
	for key, cell := range g.cells {
		if cell.Len() == 0 {
			delete(g.cells, key)
			n++
			continue
		}
		refitCell(cell, g.registry.slots)
		margin = max(margin, cell.maxRadius)
	}
	g.margin = margin

	g.metrics.instrumentMutation(mutationCompact)
	g.metrics.instrumentCellCount(len(g.cells))
	return n
}

func (g *Grid[T]) insert(h Handle, d *SpatialData, r CellRange) {
	sphere := d.Bounds.Sphere()

	g.ForEachCellInRange(r, func(coord CellCoord, key uint64, cell *Cell) bool {
		if cell == nil {
			cell = g.createCell(coord, key)
		}
		cell.AddData(h, sphere, d)
		return true
	})
}

func (g *Grid[T]) remove(h Handle, d *SpatialData) {
	g.ForEachCellInRange(CellRangeOf(d.Bounds.Box(), g.invCellSize), func(coord CellCoord, _ uint64, cell *Cell) bool {
		if cell == nil {
			panicMembership("cell of registered object is missing", h, coord)
		}
		cell.RemoveData(h, d)
		return true
	})
}

func (g *Grid[T]) removeAlwaysVisible(d *SpatialData) {
	i := d.alwaysVisibleIndex
	last := len(g.alwaysVisible) - 1

	if i != last {
		moved := g.alwaysVisible[last]
		g.alwaysVisible[i] = moved
		g.registry.slots[moved.Index()].data.alwaysVisibleIndex = i
	}
	g.alwaysVisible = g.alwaysVisible[:last]
}

func (g *Grid[T]) createCell(coord CellCoord, key uint64) *Cell {
	cell := newCell(coord, g.cellSize)
	g.cells[key] = cell
	g.metrics.instrumentCellCount(len(g.cells))
	return cell
}

func validateBounds(b BoxSphere) {
	valid := !isNaN(b.Radius) && b.Radius >= 0
	for i := 0; i < 3; i++ {
		valid = valid && !isNaN(b.Center[i]) && !isNaN(b.HalfExtents[i]) && b.HalfExtents[i] >= 0
	}

	if !valid {
		panic(errors.New("object bounds are invalid").
			WithType(ErrTypeInvalidBounds).
			WithTag("bounds", b))
	}
}
