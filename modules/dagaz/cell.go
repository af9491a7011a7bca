package dagaz

// Cell stores the objects overlapping one grid cell. spheres and refs are
// parallel arrays and indexOf maps each handle to its position in them.
type Cell struct {
	coord  CellCoord
	bounds BoundingBox

	spheres []BoundingSphere
	refs    []Handle
	indexOf map[Handle]int

	// Union of the categories added since the cell was last empty or refit.
	categories uint32
	maxRadius  float32
}

func newCell(coord CellCoord, cellSize float32) *Cell {
	origin := Vec3{
		float32(coord.X) * cellSize,
		float32(coord.Y) * cellSize,
		float32(coord.Z) * cellSize,
	}

	return &Cell{
		coord: coord,
		bounds: BoundingBox{
			Min: origin,
			Max: origin.Add(Vec3{cellSize, cellSize, cellSize}),
		},
		indexOf: make(map[Handle]int),
	}
}

func (c *Cell) Coord() CellCoord {
	return c.coord
}

func (c *Cell) Bounds() BoundingBox {
	return c.bounds
}

func (c *Cell) Len() int {
	return len(c.refs)
}

func (c *Cell) Contains(h Handle) bool {
	_, ok := c.indexOf[h]
	return ok
}

// Handles returns the handles stored in the cell. The slice must not be
// modified.
func (c *Cell) Handles() []Handle {
	return c.refs
}

// AddData appends the object to the cell and counts the cell in its
// membership.
func (c *Cell) AddData(h Handle, sphere BoundingSphere, d *SpatialData) {
	if _, ok := c.indexOf[h]; ok {
		panicMembership("object is already stored in cell", h, c.coord)
	}

	c.indexOf[h] = len(c.refs)
	c.spheres = append(c.spheres, sphere)
	c.refs = append(c.refs, h)
	c.categories |= d.Category
	c.maxRadius = max(c.maxRadius, sphere.Radius)
	d.membership++
}

// RemoveData removes the object from the cell. The last entry takes its place.
func (c *Cell) RemoveData(h Handle, d *SpatialData) {
	i, ok := c.indexOf[h]
	if !ok {
		panicMembership("object is not stored in cell", h, c.coord)
	}
	if d.membership == 0 {
		panicMembership("object membership is already zero", h, c.coord)
	}

	c.swapRemove(i)
	d.membership--

	if len(c.refs) == 0 {
		c.categories = 0
		c.maxRadius = 0
	}
}

// UpdateData overwrites the sphere stored for the object.
func (c *Cell) UpdateData(h Handle, sphere BoundingSphere) {
	i, ok := c.indexOf[h]
	if !ok {
		panicMembership("object is not stored in cell", h, c.coord)
	}

	c.spheres[i] = sphere
	c.maxRadius = max(c.maxRadius, sphere.Radius)
}

func (c *Cell) swapRemove(i int) {
	last := len(c.refs) - 1
	removed := c.refs[i]

	if i != last {
		moved := c.refs[last]
		c.refs[i] = moved
		c.spheres[i] = c.spheres[last]
		c.indexOf[moved] = i
	}

	c.refs = c.refs[:last]
	c.spheres = c.spheres[:last]
	delete(c.indexOf, removed)
}

// BoundingSphere returns a sphere enclosing the cell box and every sphere
// stored in the cell. A stored sphere has its center at most its radius away
// from the cell box.
func (c *Cell) BoundingSphere() BoundingSphere {
	return BoundingSphere{
		Center: c.bounds.Center(),
		Radius: c.bounds.HalfExtents().Len() + 2*c.maxRadius,
	}
}

// refitCell recomputes the category mask and the largest radius from the stored
// objects. Removals and updates leave both wider than needed.
func refitCell[T any](c *Cell, slots []slot[T]) {
	c.categories = 0
	c.maxRadius = 0
	for i, h := range c.refs {
		c.categories |= slots[h.Index()].data.Category
		c.maxRadius = max(c.maxRadius, c.spheres[i].Radius)
	}
}

func (c *Cell) matches(categories uint32) bool {
	return categories == 0 || c.categories&categories != 0
}

func (c *Cell) widenCategories(categories uint32) {
	c.categories |= categories
}
