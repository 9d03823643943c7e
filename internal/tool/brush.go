// Package tool holds the editing brushes players paint the world with.
package tool

import (
	"fmt"

	"github.com/tomz197/sandfall/internal/physics"
)

// Painter receives the cells a brush writes. *physics.Grid satisfies it.
type Painter interface {
	Set(x, y int, c physics.Cell)
}

// Shape is a brush footprint.
type Shape int

const (
	ShapeDot Shape = iota
	ShapePlus
	ShapeDisc
	ShapeSquare
	ShapeSpray
	shapeCount
)

var shapeNames = [...]string{"dot", "plus", "disc", "square", "spray"}

func (s Shape) String() string {
	if s < 0 || s >= shapeCount {
		return fmt.Sprintf("shape(%d)", int(s))
	}
	return shapeNames[s]
}

// Radius limits.
const (
	MinRadius = 1
	MaxRadius = 8
)

// sprayChance is the fraction of footprint cells a spray stamp fills.
const sprayChance = 0.3

// Brush is a shape and size. The zero value is a single-cell dot.
type Brush struct {
	Shape  Shape
	Radius int
}

// DefaultBrush is what new sessions start with.
func DefaultBrush() Brush {
	return Brush{Shape: ShapeDisc, Radius: 2}
}

// Next cycles to the following shape, keeping the radius.
func (b Brush) Next() Brush {
	b.Shape = (b.Shape + 1) % shapeCount
	return b
}

// Grow changes the radius by delta within [MinRadius, MaxRadius].
func (b Brush) Grow(delta int) Brush {
	b.Radius = min(max(b.Radius+delta, MinRadius), MaxRadius)
	return b
}

func (b Brush) String() string {
	if b.Shape == ShapeDot {
		return b.Shape.String()
	}
	return fmt.Sprintf("%s r%d", b.Shape, b.radius())
}

func (b Brush) radius() int {
	return min(max(b.Radius, MinRadius), MaxRadius)
}

// Footprint calls fn with every offset the brush covers, rows ascending.
// Spray covers the disc; Stamp thins it out.
func (b Brush) Footprint(fn func(dx, dy int)) {
	r := b.radius()
	switch b.Shape {
	case ShapeDot:
		fn(0, 0)
	case ShapePlus:
		// The cross is always one cell thick.
		fn(0, -1)
		fn(-1, 0)
		fn(0, 0)
		fn(1, 0)
		fn(0, 1)
	case ShapeSquare:
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				fn(dx, dy)
			}
		}
	case ShapeDisc, ShapeSpray:
		// r*r+r keeps small discs round instead of diamond shaped.
		limit := r*r + r
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx*dx+dy*dy <= limit {
					fn(dx, dy)
				}
			}
		}
	}
}

// Stamp writes c at every footprint cell around (x, y). Cells off the grid are
// dropped by the painter. rng thins spray stamps and may be nil for the other shapes.
// It returns the number of cells written.
func (b Brush) Stamp(p Painter, x, y int, c physics.Cell, rng physics.Rand) int {
	n := 0
	b.Footprint(func(dx, dy int) {
		if b.Shape == ShapeSpray && (rng == nil || rng.Float32() >= sprayChance) {
			return
		}
		p.Set(x+dx, y+dy, c)
		n++
	})
	return n
}

// Stroke stamps along the line from (x0, y0) to (x1, y1) so fast drags leave
// no gaps. The start point is skipped when skipStart is set, because the
// previous stroke already stamped it.
func (b Brush) Stroke(p Painter, x0, y0, x1, y1 int, c physics.Cell, rng physics.Rand, skipStart bool) int {
	n := 0
	first := true
	Line(x0, y0, x1, y1, func(x, y int) {
		if first {
			first = false
			if skipStart {
				return
			}
		}
		n += b.Stamp(p, x, y, c, rng)
	})
	return n
}

// Line visits every cell on the line between two points using Bresenham's
// algorithm, both endpoints included.
func Line(x1, y1, x2, y2 int, fn func(x, y int)) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		fn(x1, y1)

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
