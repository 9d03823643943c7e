package physics

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zeebo/xxh3"
)

// ErrInvalidSize is returned when a grid is constructed with a non-positive dimension.
var ErrInvalidSize = errors.New("invalid grid size")

// Cell is one grid slot: a material handle and a velocity in cells per tick.
type Cell struct {
	Material MaterialID
	Velocity mgl32.Vec2
}

// IsEmpty reports whether the cell holds no material.
func (c Cell) IsEmpty() bool {
	return c.Material == Empty
}

// NewCell returns a resting cell of the given material.
func NewCell(id MaterialID) Cell {
	return Cell{Material: id}
}

// Grid is a fixed-size field of cells stored row-major with y pointing up.
// A Grid is not safe for concurrent use; the owner must not read or write it
// while a tick is running.
type Grid struct {
	width  int
	height int
	cells  []Cell // Flat slice: [y*width + x]
}

// NewGrid allocates an empty width x height grid.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int {
	return g.width
}

// Height returns the number of rows.
func (g *Grid) Height() int {
	return g.height
}

// InBounds reports whether (x, y) addresses a stored cell.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Set replaces the cell at (x, y). Coordinates outside the grid are ignored.
func (g *Grid) Set(x, y int, c Cell) {
	if !g.InBounds(x, y) {
		return
	}
	if c.Material == Empty {
		c.Velocity = mgl32.Vec2{}
	}
	g.cells[y*g.width+x] = c
}

// At returns the cell at (x, y). The coordinates must be in bounds.
func (g *Grid) At(x, y int) Cell {
	return g.cells[y*g.width+x]
}

// Clear empties every cell.
func (g *Grid) Clear() {
	clear(g.cells)
}

// Each calls fn for every occupied cell, rows ascending.
func (g *Grid) Each(fn func(x, y int, c Cell)) {
	eachOccupied(g.cells, g.width, fn)
}

// Count returns the number of occupied cells.
func (g *Grid) Count() int {
	return countOccupied(g.cells)
}

// Checksum hashes the full cell state. Equal grids hash equally.
func (g *Grid) Checksum() uint64 {
	return checksum(g.width, g.height, g.cells)
}

// Snapshot copies the grid into an immutable view for renderers.
func (g *Grid) Snapshot() *Snapshot {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return &Snapshot{width: g.width, height: g.height, cells: cells}
}

// Snapshot is a read-only copy of a grid taken between ticks.
type Snapshot struct {
	width  int
	height int
	cells  []Cell
}

// Width returns the number of columns.
func (s *Snapshot) Width() int {
	return s.width
}

// Height returns the number of rows.
func (s *Snapshot) Height() int {
	return s.height
}

// At returns the cell at (x, y). The coordinates must be in bounds.
func (s *Snapshot) At(x, y int) Cell {
	return s.cells[y*s.width+x]
}

// Each calls fn for every occupied cell, rows ascending.
func (s *Snapshot) Each(fn func(x, y int, c Cell)) {
	eachOccupied(s.cells, s.width, fn)
}

// Count returns the number of occupied cells.
func (s *Snapshot) Count() int {
	return countOccupied(s.cells)
}

// Checksum hashes the captured cell state.
func (s *Snapshot) Checksum() uint64 {
	return checksum(s.width, s.height, s.cells)
}

func eachOccupied(cells []Cell, width int, fn func(x, y int, c Cell)) {
	for i, c := range cells {
		if c.Material == Empty {
			continue
		}
		fn(i%width, i/width, c)
	}
}

func countOccupied(cells []Cell) int {
	n := 0
	for _, c := range cells {
		if c.Material != Empty {
			n++
		}
	}
	return n
}

// checksum streams cells through xxh3 as fixed 9-byte records.
func checksum(width, height int, cells []Cell) uint64 {
	h := xxh3.New()
	var rec [9]byte
	binary.LittleEndian.PutUint32(rec[0:4], uint32(width))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(height))
	h.Write(rec[:8])
	for _, c := range cells {
		rec[0] = byte(c.Material)
		binary.LittleEndian.PutUint32(rec[1:5], math.Float32bits(c.Velocity.X()))
		binary.LittleEndian.PutUint32(rec[5:9], math.Float32bits(c.Velocity.Y()))
		h.Write(rec[:])
	}
	return h.Sum64()
}

// Neighborhood is the 3x3 window around a cell, indexed by offset -1..+1.
// Offsets that fall outside the grid read as the boundary material.
type Neighborhood struct {
	cells [3][3]Cell // [dx+1][dy+1]
	reg   *Registry
}

// NeighborhoodAt builds the window centred on (x, y).
func (g *Grid) NeighborhoodAt(x, y int, reg *Registry) Neighborhood {
	n := Neighborhood{reg: reg}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			nx, ny := x+dx, y+dy
			if !g.InBounds(nx, ny) {
				n.cells[dx+1][dy+1] = Cell{Material: Solid}
				continue
			}
			n.cells[dx+1][dy+1] = g.cells[ny*g.width+nx]
		}
	}
	return n
}

// At returns the cell at offset (dx, dy) from the centre.
func (n *Neighborhood) At(dx, dy int) Cell {
	return n.cells[dx+1][dy+1]
}

// yields reports whether the cell at (dx, dy) is empty or strictly lighter than density.
func (n *Neighborhood) yields(dx, dy int, density float32) bool {
	c := n.At(dx, dy)
	return c.IsEmpty() || n.reg.Density(c.Material) < density
}
