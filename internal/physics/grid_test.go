package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridRejectsNonPositiveSize(t *testing.T) {
	for _, tc := range []struct{ w, h int }{{0, 5}, {5, 0}, {-1, 3}, {0, 0}} {
		g, err := NewGrid(tc.w, tc.h)
		assert.ErrorIs(t, err, ErrInvalidSize, "%dx%d", tc.w, tc.h)
		assert.Nil(t, g)
	}
}

func TestNewGridStartsEmpty(t *testing.T) {
	g, err := NewGrid(7, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, g.Width())
	assert.Equal(t, 4, g.Height())

	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			c := g.At(x, y)
			assert.True(t, c.IsEmpty())
			assert.Equal(t, mgl32.Vec2{}, c.Velocity)
		}
	}
	assert.Zero(t, g.Count())
}

func TestSetOutOfBoundsIsNoOp(t *testing.T) {
	g, err := NewGrid(4, 3)
	require.NoError(t, err)
	g.Set(1, 1, NewCell(Sand))
	before := g.Checksum()

	for _, p := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 3}, {100, 100}, {-5, -5}} {
		g.Set(p[0], p[1], NewCell(Water))
		assert.Equal(t, before, g.Checksum(), "write at %v changed the grid", p)
	}
}

func TestSetReplacesOnlyTargetCell(t *testing.T) {
	g, err := NewGrid(5, 5)
	require.NoError(t, err)

	want := Cell{Material: Water, Velocity: mgl32.Vec2{0.25, -0.5}}
	g.Set(2, 3, want)

	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if x == 2 && y == 3 {
				assert.Equal(t, want, g.At(x, y))
				continue
			}
			assert.True(t, g.At(x, y).IsEmpty(), "(%d,%d)", x, y)
		}
	}

	g.Set(2, 3, NewCell(Sand))
	assert.Equal(t, NewCell(Sand), g.At(2, 3))
}

func TestSetEmptyClearsVelocity(t *testing.T) {
	g, err := NewGrid(2, 2)
	require.NoError(t, err)
	g.Set(0, 0, Cell{Material: Empty, Velocity: mgl32.Vec2{1, 1}})
	assert.Equal(t, Cell{}, g.At(0, 0))
}

func TestEachSkipsEmptyCells(t *testing.T) {
	g, err := NewGrid(3, 3)
	require.NoError(t, err)
	g.Set(0, 0, NewCell(Solid))
	g.Set(2, 1, NewCell(Sand))
	g.Set(1, 2, NewCell(Water))

	var seen [][3]int
	g.Each(func(x, y int, c Cell) {
		seen = append(seen, [3]int{x, y, int(c.Material)})
	})
	assert.Equal(t, [][3]int{{0, 0, int(Solid)}, {2, 1, int(Sand)}, {1, 2, int(Water)}}, seen)
	assert.Equal(t, 3, g.Count())
}

func TestSnapshotIsDetached(t *testing.T) {
	g, err := NewGrid(3, 2)
	require.NoError(t, err)
	g.Set(1, 1, NewCell(Sand))

	snap := g.Snapshot()
	g.Set(1, 1, Cell{})
	g.Set(0, 0, NewCell(Water))

	assert.Equal(t, Sand, snap.At(1, 1).Material)
	assert.True(t, snap.At(0, 0).IsEmpty())
	assert.Equal(t, 1, snap.Count())
	assert.NotEqual(t, g.Checksum(), snap.Checksum())
}

func TestChecksumTracksContent(t *testing.T) {
	a, _ := NewGrid(4, 4)
	b, _ := NewGrid(4, 4)
	assert.Equal(t, a.Checksum(), b.Checksum())

	a.Set(1, 2, NewCell(Sand))
	assert.NotEqual(t, a.Checksum(), b.Checksum())

	b.Set(1, 2, NewCell(Sand))
	assert.Equal(t, a.Checksum(), b.Checksum())

	b.Set(1, 2, Cell{Material: Sand, Velocity: mgl32.Vec2{0, -0.1}})
	assert.NotEqual(t, a.Checksum(), b.Checksum())

	c, _ := NewGrid(2, 8)
	assert.NotEqual(t, c.Checksum(), mustGrid(t, 4, 4).Checksum(), "dimensions are part of the hash")
}

func TestNeighborhoodTreatsOffGridAsBoundary(t *testing.T) {
	reg := MustRegistry(DefaultTuning())
	g := mustGrid(t, 3, 3)
	g.Set(1, 1, NewCell(Water))

	corners := []struct {
		x, y    int
		offGrid [][2]int
	}{
		{0, 0, [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {1, -1}}},
		{2, 2, [][2]int{{1, 1}, {1, 0}, {1, -1}, {0, 1}, {-1, 1}}},
	}
	for _, tc := range corners {
		n := g.NeighborhoodAt(tc.x, tc.y, reg)
		for _, off := range tc.offGrid {
			assert.Equal(t, Cell{Material: Solid}, n.At(off[0], off[1]), "(%d,%d)+%v", tc.x, tc.y, off)
		}
	}

	// Interior cells read through, empty stays empty.
	n := g.NeighborhoodAt(0, 0, reg)
	assert.Equal(t, Water, n.At(1, 1).Material)
	assert.True(t, n.At(1, 0).IsEmpty())
	assert.True(t, n.At(0, 0).IsEmpty())
}

func TestNeighborhoodOnSingleCellGrid(t *testing.T) {
	reg := MustRegistry(DefaultTuning())
	g := mustGrid(t, 1, 1)
	g.Set(0, 0, NewCell(Sand))
	n := g.NeighborhoodAt(0, 0, reg)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				assert.Equal(t, Sand, n.At(0, 0).Material)
				continue
			}
			assert.Equal(t, Solid, n.At(dx, dy).Material)
		}
	}
}

func mustGrid(t *testing.T, w, h int) *Grid {
	t.Helper()
	g, err := NewGrid(w, h)
	require.NoError(t, err)
	return g
}
