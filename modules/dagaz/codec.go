package dagaz

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// MaxCellIndex is the largest absolute cell coordinate on any axis.
	MaxCellIndex = (1 << 20) - 1

	cellIndexMask = (1 << 21) - 1
	cellIndexBias = MaxCellIndex
)

// CellCoord is the integer coordinate of a grid cell.
type CellCoord struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (c CellCoord) inRange() bool {
	return c.X >= -MaxCellIndex && c.X <= MaxCellIndex &&
		c.Y >= -MaxCellIndex && c.Y <= MaxCellIndex &&
		c.Z >= -MaxCellIndex && c.Z <= MaxCellIndex
}

// CellCoordOf returns the coordinate of the cell containing p.
func CellCoordOf(p Vec3, invCellSize float32) CellCoord {
	return CellCoord{
		X: cellIndexOf(p[0], invCellSize),
		Y: cellIndexOf(p[1], invCellSize),
		Z: cellIndexOf(p[2], invCellSize),
	}
}

func cellIndexOf(v float32, invCellSize float32) int32 {
	f := math.Floor(float64(v) * float64(invCellSize))
	if math.IsNaN(f) || f < -MaxCellIndex || f > MaxCellIndex {
		panic(errors.New("position is outside of the supported cell range").
			WithType(ErrTypeCoordOutOfRange).
			WithTag("value", v).
			WithTag("cell_index", f))
	}
	return int32(f)
}

// PackKey packs a cell coordinate into a 64-bit key using 21 bits per axis.
func PackKey(c CellCoord) uint64 {
	if !c.inRange() {
		panic(errors.New("cell coordinate is outside of the supported range").
			WithType(ErrTypeCoordOutOfRange).
			WithTag("cell", c))
	}

	sx := uint64(int64(c.X)+cellIndexBias) & cellIndexMask
	sy := uint64(int64(c.Y)+cellIndexBias) & cellIndexMask
	sz := uint64(int64(c.Z)+cellIndexBias) & cellIndexMask
	return sx<<42 | sy<<21 | sz
}

// UnpackKey is the inverse of PackKey.
func UnpackKey(key uint64) CellCoord {
	return CellCoord{
		X: int32(int64((key>>42)&cellIndexMask) - cellIndexBias),
		Y: int32(int64((key>>21)&cellIndexMask) - cellIndexBias),
		Z: int32(int64(key&cellIndexMask) - cellIndexBias),
	}
}

// CellRange is an inclusive range of cell coordinates.
type CellRange struct {
	Min CellCoord `json:"min"`
	Max CellCoord `json:"max"`
}

// CellRangeOf returns the range of cells overlapped by box.
func CellRangeOf(box BoundingBox, invCellSize float32) CellRange {
	if !box.IsValid() {
		panic(errors.New("bounding box is invalid").
			WithType(ErrTypeInvalidBounds).
			WithTag("box", box))
	}

	return CellRange{
		Min: CellCoordOf(box.Min, invCellSize),
		Max: CellCoordOf(box.Max, invCellSize),
	}
}

func (r CellRange) Contains(c CellCoord) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X &&
		c.Y >= r.Min.Y && c.Y <= r.Max.Y &&
		c.Z >= r.Min.Z && c.Z <= r.Max.Z
}

func (r CellRange) Union(o CellRange) CellRange {
	return CellRange{
		Min: CellCoord{min(r.Min.X, o.Min.X), min(r.Min.Y, o.Min.Y), min(r.Min.Z, o.Min.Z)},
		Max: CellCoord{max(r.Max.X, o.Max.X), max(r.Max.Y, o.Max.Y), max(r.Max.Z, o.Max.Z)},
	}
}

// Count returns the number of cells in the range.
func (r CellRange) Count() int {
	return int(r.Max.X-r.Min.X+1) * int(r.Max.Y-r.Min.Y+1) * int(r.Max.Z-r.Min.Z+1)
}

// ForEachCellInRange calls fn for every coordinate of r, x varying fastest,
// then y, then z. Cells are looked up, never created: fn receives nil when no
// cell exists for the coordinate. Iteration stops when fn returns false.
func (g *Grid[T]) ForEachCellInRange(r CellRange, fn func(coord CellCoord, key uint64, cell *Cell) bool) {
	for z := r.Min.Z; z <= r.Max.Z; z++ {
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for x := r.Min.X; x <= r.Max.X; x++ {
				coord := CellCoord{X: x, Y: y, Z: z}
				key := PackKey(coord)
				if !fn(coord, key, g.cells[key]) {
					return
				}
			}
		}
	}
}

// fullCellRange spans every supported cell coordinate.
var fullCellRange = CellRange{
	Min: CellCoord{-MaxCellIndex, -MaxCellIndex, -MaxCellIndex},
	Max: CellCoord{MaxCellIndex, MaxCellIndex, MaxCellIndex},
}

// queryRangeOf is CellRangeOf for query volumes: coordinates beyond the
// supported range are clamped since no cell can exist there, and an invalid
// box spans the full range.
func queryRangeOf(box BoundingBox, invCellSize float32) CellRange {
	if !box.IsValid() {
		return fullCellRange
	}

	clamp := func(v float32) int32 {
		f := math.Floor(float64(v) * float64(invCellSize))
		return int32(max(-MaxCellIndex, min(MaxCellIndex, f)))
	}

	return CellRange{
		Min: CellCoord{clamp(box.Min[0]), clamp(box.Min[1]), clamp(box.Min[2])},
		Max: CellCoord{clamp(box.Max[0]), clamp(box.Max[1]), clamp(box.Max[2])},
	}
}

// forEachPresentCell calls fn for every existing cell of r. Ranges holding
// more coordinates than the table holds cells are served by scanning the
// table instead of walking the range, in which case the order is unspecified.
func (g *Grid[T]) forEachPresentCell(r CellRange, fn func(cell *Cell) bool) {
	if r.Count() > len(g.cells) {
		for _, cell := range g.cells {
			if !r.Contains(cell.coord) {
				continue
			}
			if !fn(cell) {
				return
			}
		}
		return
	}

	g.ForEachCellInRange(r, func(_ CellCoord, _ uint64, cell *Cell) bool {
		if cell == nil {
			return true
		}
		return fn(cell)
	})
}
