package dagaz

import (
	"time"

	"github.com/aukilabs/dagaz/featureflag"
)

// QueryStats counts the work done by a query. The counters never affect the
// objects a query reports.
type QueryStats struct {
	CellsVisited    int `json:"cells_visited"`
	CellsCulled     int `json:"cells_culled"`
	CellsOccluded   int `json:"cells_occluded"`
	ObjectsTested   int `json:"objects_tested"`
	ObjectsFiltered int `json:"objects_filtered"`
	ObjectsOccluded int `json:"objects_occluded"`
	ObjectsPassed   int `json:"objects_passed"`
}

// QueryParams are the optional parameters of a query.
type QueryParams struct {
	// The category bitmask objects must share at least one bit with. 0
	// matches every object.
	Categories uint32

	// Objects sharing a tag with ExcludeTags are rejected. When IncludeTags
	// is not empty, objects must share a tag with it.
	IncludeTags TagSet
	ExcludeTags TagSet

	// Frustum queries reject the cells and the objects whose box IsOccluded
	// returns true for. It must only return true for boxes that are entirely
	// hidden, and may be called concurrently by parallel queries.
	IsOccluded func(BoundingBox) bool

	// How frustum queries stamp the objects they report. Invisible, the zero
	// value, leaves the stamps untouched.
	Visibility VisibilityState

	// When set, overwritten with the counters of the query.
	Stats *QueryStats

	// The deduplication set to use. A new one is allocated when nil.
	Scratch *QueryScratch
}

type query struct {
	kind    string
	start   time.Time
	stats   QueryStats
	scratch *QueryScratch
	params  QueryParams
}

func (g *Grid[T]) beginQuery(kind string, p QueryParams) *query {
	q := &query{
		kind:    kind,
		scratch: p.Scratch,
		params:  p,
	}

	if !g.flags.IsSet(featureflag.FlagDisableQueryMetrics) {
		q.start = time.Now()
	}

	if q.scratch == nil {
		q.scratch = NewQueryScratch()
	} else {
		q.scratch.reset()
	}
	return q
}

func (g *Grid[T]) endQuery(q *query) {
	if q.params.Stats != nil {
		*q.params.Stats = q.stats
	}

	if !q.start.IsZero() {
		g.metrics.instrumentQuery(q.kind, q.start, q.stats)
	}
}

// accept applies the category filter, the deduplication set and the tag
// filter to an object that passed the volume test. An object rejected by the
// tag filter is counted once.
func (g *Grid[T]) accept(q *query, h Handle) (*SpatialData, bool) {
	d := g.registry.slots[h.Index()].data
	if q.params.Categories != 0 && d.Category&q.params.Categories == 0 {
		return nil, false
	}
	if d.membership > 1 && !q.scratch.accept(h) {
		return nil, false
	}
	if filterByTags(d.Tags, q.params.IncludeTags, q.params.ExcludeTags) {
		q.stats.ObjectsFiltered++
		return nil, false
	}
	return d, true
}

// acceptAlwaysVisible calls fn for every always visible object passing the
// filters and returns false when fn does.
func (g *Grid[T]) acceptAlwaysVisible(q *query, fn func(Handle, *SpatialData) bool) bool {
	for _, h := range g.alwaysVisible {
		q.stats.ObjectsTested++
		d, ok := g.accept(q, h)
		if !ok {
			continue
		}

		q.stats.ObjectsPassed++
		if !fn(h, d) {
			return false
		}
	}
	return true
}

// QuerySphere calls fn once for every object whose sphere overlaps the given
// sphere. The query stops when fn returns false.
func (g *Grid[T]) QuerySphere(center Vec3, radius float32, fn func(Handle, T) bool, p QueryParams) {
	q := g.beginQuery(queryKindSphere, p)
	defer g.endQuery(q)

	sphere := BoundingSphere{Center: center, Radius: radius}
	box := BoundingBox{
		Min: center.Sub(Vec3{radius, radius, radius}),
		Max: center.Add(Vec3{radius, radius, radius}),
	}

	report := func(h Handle, _ *SpatialData) bool {
		return fn(h, g.registry.owner(h))
	}
	if !g.acceptAlwaysVisible(q, report) {
		return
	}

	g.forEachPresentCell(queryRangeOf(box.Grow(g.margin), g.invCellSize), func(cell *Cell) bool {
		if !cell.matches(p.Categories) {
			return true
		}
		q.stats.CellsVisited++

		for i, s := range cell.spheres {
			q.stats.ObjectsTested++
			if !s.Overlaps(sphere) {
				continue
			}

			h := cell.refs[i]
			if _, ok := g.accept(q, h); !ok {
				continue
			}

			q.stats.ObjectsPassed++
			if !fn(h, g.registry.owner(h)) {
				return false
			}
		}
		return true
	})
}

// QueryBox calls fn once for every object whose bounding box overlaps box.
// The query stops when fn returns false.
func (g *Grid[T]) QueryBox(box BoundingBox, fn func(Handle, T) bool, p QueryParams) {
	q := g.beginQuery(queryKindBox, p)
	defer g.endQuery(q)

	report := func(h Handle, _ *SpatialData) bool {
		return fn(h, g.registry.owner(h))
	}
	if !g.acceptAlwaysVisible(q, report) {
		return
	}

	g.forEachPresentCell(queryRangeOf(box, g.invCellSize), func(cell *Cell) bool {
		if !cell.matches(p.Categories) {
			return true
		}
		q.stats.CellsVisited++

		for i, s := range cell.spheres {
			q.stats.ObjectsTested++
			if !s.OverlapsBox(box) {
				continue
			}

			h := cell.refs[i]
			d := g.registry.slots[h.Index()].data
			if !d.Bounds.Box().Overlaps(box) {
				continue
			}
			if _, ok := g.accept(q, h); !ok {
				continue
			}

			q.stats.ObjectsPassed++
			if !fn(h, g.registry.owner(h)) {
				return false
			}
		}
		return true
	})
}

// QueryFrustum appends to out the owner of every object whose sphere is not
// entirely outside any plane of f. Unless p.Visibility is Invisible, those
// objects are stamped with the current frame and p.Visibility.
func (g *Grid[T]) QueryFrustum(f Frustum, out *[]T, p QueryParams) {
	g.QueryFrustumFunc(f, func(_ Handle, owner T) {
		*out = append(*out, owner)
	}, p)
}

// QueryFrustumFunc is QueryFrustum reporting the accepted objects to fn.
func (g *Grid[T]) QueryFrustumFunc(f Frustum, fn func(Handle, T), p QueryParams) {
	q := g.beginQuery(queryKindFrustum, p)
	defer g.endQuery(q)

	pd := newPlaneData(f)
	testBlock := pd.testBlock
	if g.flags.IsSet(featureflag.FlagDisableBatchedPlaneTest) {
		testBlock = pd.testBlockScalar
	}
	cullCells := !g.flags.IsSet(featureflag.FlagDisableCellCulling)
	isOccluded := p.IsOccluded

	var stamp uint64
	if p.Visibility != Invisible {
		stamp = packVisibility(g.frame, p.Visibility)
	}

	g.acceptAlwaysVisible(q, func(h Handle, d *SpatialData) bool {
		if stamp != 0 {
			stampMax(&d.visibility, stamp)
		}
		fn(h, g.registry.owner(h))
		return true
	})

	// A frustum without finite corners spans the full range.
	r := queryRangeOf(f.Grow(g.margin).BoundingBox(), g.invCellSize)

	g.forEachPresentCell(r, func(cell *Cell) bool {
		if cell.Len() == 0 || !cell.matches(p.Categories) {
			return true
		}
		if cullCells && !pd.testOne(cell.BoundingSphere()) {
			q.stats.CellsCulled++
			return true
		}
		if isOccluded != nil && isOccluded(cell.bounds) {
			q.stats.CellsOccluded++
			return true
		}
		q.stats.CellsVisited++

		for start := 0; start < len(cell.spheres); start += sphereBlockSize {
			end := min(start+sphereBlockSize, len(cell.spheres))
			mask := testBlock(cell.spheres[start:end])
			q.stats.ObjectsTested += end - start

			for i := start; i < end; i++ {
				if mask&(1<<(i-start)) == 0 {
					continue
				}

				h := cell.refs[i]
				d, ok := g.accept(q, h)
				if !ok {
					continue
				}

				if isOccluded != nil && isOccluded(d.Bounds.Box()) {
					q.stats.ObjectsOccluded++
					continue
				}

				if stamp != 0 {
					stampMax(&d.visibility, stamp)
				}
				q.stats.ObjectsPassed++
				fn(h, g.registry.owner(h))
			}
		}
		return true
	})
}
