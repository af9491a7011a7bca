package dagaz

import (
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// DebugInfo summarizes the state of a grid.
type DebugInfo struct {
	Name           string  `json:"name"`
	CellSize       float32 `json:"cell_size"`
	CellCount      int     `json:"cell_count"`
	NonEmptyCells  int     `json:"non_empty_cells"`
	ObjectCount    int     `json:"object_count"`
	TotalRefs      int     `json:"total_refs"`
	MaxRefsPerCell int     `json:"max_refs_per_cell"`
	AlwaysVisible  int     `json:"always_visible"`
	Margin         float32 `json:"margin"`
	Frame          uint64  `json:"frame"`
}

func (g *Grid[T]) DebugInfo() DebugInfo {
	info := DebugInfo{
		Name:          g.name,
		CellSize:      g.cellSize,
		CellCount:     len(g.cells),
		ObjectCount:   g.registry.count,
		Margin:        g.margin,
		AlwaysVisible: len(g.alwaysVisible),
		Frame:         g.frame,
	}

	for _, cell := range g.cells {
		n := cell.Len()
		if n != 0 {
			info.NonEmptyCells++
		}
		info.TotalRefs += n
		info.MaxRefsPerCell = max(info.MaxRefsPerCell, n)
	}
	return info
}

// AllCellBoxes returns the box of every cell in the cell table, ordered by
// cell key.
func (g *Grid[T]) AllCellBoxes() []BoundingBox {
	keys := make([]uint64, 0, len(g.cells))
	for key := range g.cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	boxes := make([]BoundingBox, len(keys))
	for i, key := range keys {
		boxes[i] = g.cells[key].bounds
	}
	return boxes
}

// CellBoxesFor returns the box of every cell referencing the object. It
// panics when the handle is not registered.
func (g *Grid[T]) CellBoxesFor(h Handle) []BoundingBox {
	d := g.registry.mustGet(h)
	if d.alwaysVisible {
		return nil
	}

	boxes := make([]BoundingBox, 0, d.membership)
	g.ForEachCellInRange(CellRangeOf(d.Bounds.Box(), g.invCellSize), func(_ CellCoord, _ uint64, cell *Cell) bool {
		if cell != nil && cell.Contains(h) {
			boxes = append(boxes, cell.bounds)
		}
		return true
	})
	return boxes
}

// CheckInvariants verifies that every cell keeps its arrays and reverse index
// consistent and that every membership count matches the cells referencing
// the object. Always visible objects must be in no cell.
func (g *Grid[T]) CheckInvariants() error {
	refs := make(map[Handle]uint32, g.registry.count)

	for key, cell := range g.cells {
		if UnpackKey(key) != cell.coord {
			return errors.New("cell is stored under the wrong key").
				WithType(ErrTypeMembershipCorrupted).
				WithTag("key", key).
				WithTag("cell", cell.coord)
		}

		if len(cell.spheres) != len(cell.refs) || len(cell.refs) != len(cell.indexOf) {
			return errors.New("cell arrays are out of step").
				WithType(ErrTypeMembershipCorrupted).
				WithTag("cell", cell.coord).
				WithTag("spheres", len(cell.spheres)).
				WithTag("refs", len(cell.refs)).
				WithTag("index", len(cell.indexOf))
		}

		for i, h := range cell.refs {
			if j, ok := cell.indexOf[h]; !ok || j != i {
				return errors.New("cell reverse index does not match").
					WithType(ErrTypeMembershipCorrupted).
					WithTag("cell", cell.coord).
					WithTag("handle", h.String()).
					WithTag("position", i)
			}

			if !g.IsValid(h) {
				return errors.New("cell references an unregistered object").
					WithType(ErrTypeMembershipCorrupted).
					WithTag("cell", cell.coord).
					WithTag("handle", h.String())
			}
			refs[h]++
		}
	}

	for i, h := range g.alwaysVisible {
		d, ok := g.registry.get(h)
		if !ok || !d.alwaysVisible || d.alwaysVisibleIndex != i {
			return errors.New("always visible list does not match").
				WithType(ErrTypeMembershipCorrupted).
				WithTag("handle", h.String()).
				WithTag("position", i)
		}
	}

	var err error
	g.registry.forEach(func(h Handle, d *SpatialData, _ T) {
		if err != nil {
			return
		}
		if d.alwaysVisible && d.membership != 0 {
			err = errors.New("always visible object is stored in a cell").
				WithType(ErrTypeMembershipCorrupted).
				WithTag("handle", h.String())
			return
		}
		if refs[h] == d.membership {
			return
		}

		err = errors.New("membership count does not match referencing cells").
			WithType(ErrTypeMembershipCorrupted).
			WithTag("handle", h.String()).
			WithTag("membership", d.membership).
			WithTag("cells", refs[h])
	})
	return err
}
