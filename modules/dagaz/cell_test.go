package dagaz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireCellConsistent(t *testing.T, c *Cell) {
	t.Helper()

	require.Len(t, c.spheres, len(c.refs))
	require.Len(t, c.indexOf, len(c.refs))
	for i, h := range c.refs {
		require.Equal(t, i, c.indexOf[h])
	}
}

func TestCell(t *testing.T) {
	c := newCell(CellCoord{1, 0, -1}, 10)
	require.Equal(t, NewBoundingBox(Vec3{10, 0, -10}, Vec3{20, 10, 0}), c.Bounds())

	data := make([]*SpatialData, 4)
	handles := make([]Handle, 4)
	for i := range data {
		data[i] = &SpatialData{Category: 1 << i}
		handles[i] = newHandle(uint32(i), 1)
	}

	t.Run("add", func(t *testing.T) {
		for i, h := range handles {
			c.AddData(h, BoundingSphere{Center: Vec3{15, 5, -5}, Radius: float32(i + 1)}, data[i])
			require.Equal(t, uint32(1), data[i].MembershipCount())
			requireCellConsistent(t, c)
		}

		require.Equal(t, 4, c.Len())
		require.Equal(t, uint32(0b1111), c.categories)
		require.Equal(t, float32(4), c.maxRadius)
		require.Equal(t, handles, c.Handles())
	})

	t.Run("add twice panics", func(t *testing.T) {
		requirePanicType(t, ErrTypeMembershipCorrupted, func() {
			c.AddData(handles[0], BoundingSphere{}, data[0])
		})
	})

	t.Run("update", func(t *testing.T) {
		s := BoundingSphere{Center: Vec3{12, 1, -1}, Radius: 6}
		c.UpdateData(handles[2], s)
		require.Equal(t, s, c.spheres[c.indexOf[handles[2]]])
		require.Equal(t, float32(6), c.maxRadius)
		require.Equal(t, uint32(1), data[2].MembershipCount())
		requireCellConsistent(t, c)
	})

	t.Run("bounding sphere encloses stored spheres", func(t *testing.T) {
		cs := c.BoundingSphere()
		require.Equal(t, Vec3{15, 5, -5}, cs.Center)

		for _, s := range c.spheres {
			d := s.Center.Sub(cs.Center).Len() + s.Radius
			require.LessOrEqual(t, d, cs.Radius)
		}
	})

	t.Run("remove swaps last entry", func(t *testing.T) {
		c.RemoveData(handles[0], data[0])
		require.Equal(t, uint32(0), data[0].MembershipCount())
		require.False(t, c.Contains(handles[0]))
		require.Equal(t, handles[3], c.refs[0])
		requireCellConsistent(t, c)

		c.RemoveData(handles[3], data[3])
		requireCellConsistent(t, c)
		require.Equal(t, 2, c.Len())
	})

	t.Run("remove absent panics", func(t *testing.T) {
		requirePanicType(t, ErrTypeMembershipCorrupted, func() {
			c.RemoveData(handles[0], data[0])
		})
		requirePanicType(t, ErrTypeMembershipCorrupted, func() {
			c.UpdateData(handles[0], BoundingSphere{})
		})
	})

	t.Run("emptied cell resets masks", func(t *testing.T) {
		c.RemoveData(handles[1], data[1])
		c.RemoveData(handles[2], data[2])
		requireCellConsistent(t, c)

		require.Zero(t, c.Len())
		require.Zero(t, c.categories)
		require.Zero(t, c.maxRadius)
		require.True(t, c.matches(0))
		require.False(t, c.matches(1))
	})
}
