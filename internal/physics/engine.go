package physics

import (
	"github.com/chewxy/math32"
)

// Stats counts what happened during the last tick.
type Stats struct {
	Moves      int // Cells that moved into an empty slot
	Swaps      int // Density swaps
	Collisions int // Blocked cells that ran their collision response
}

// Engine advances a grid one tick at a time.
//
// The resolution phase mutates the grid in place during a single sweep, rows
// ascending and columns ascending within a row. A cell that moves is visible
// to cells visited later in the same sweep, so the sweep order is part of the
// observable behaviour: cascades run faster toward +x and +y.
type Engine struct {
	grid    *Grid
	reg     *Registry
	rng     Rand
	gravity float32

	intents []Step // Per position, rebuilt each tick
	ticks   uint64
	stats   Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithGravity overrides the registry's gravity constant.
func WithGravity(g float32) Option {
	return func(e *Engine) {
		e.gravity = g
	}
}

// NewEngine creates an engine over grid. rng drives every random decision,
// so two engines with equal seeds and inputs produce identical grids.
func NewEngine(grid *Grid, reg *Registry, rng Rand, opts ...Option) *Engine {
	e := &Engine{
		grid:    grid,
		reg:     reg,
		rng:     rng,
		gravity: reg.Tuning().Gravity,
		intents: make([]Step, grid.width*grid.height),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Grid returns the grid the engine mutates.
func (e *Engine) Grid() *Grid {
	return e.grid
}

// Registry returns the material table.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() uint64 {
	return e.ticks
}

// Stats returns counters for the last completed tick.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Tick advances the simulation by exactly one step.
func (e *Engine) Tick() {
	e.stats = Stats{}
	e.applyGravity()
	e.computeIntents()
	e.resolve()
	e.ticks++
}

// applyGravity accelerates every movable cell.
func (e *Engine) applyGravity() {
	for i := range e.grid.cells {
		c := &e.grid.cells[i]
		if !e.reg.Movable(c.Material) {
			continue
		}
		c.Velocity[1] += e.gravity
	}
}

// computeIntents turns each movable cell's velocity into a step for this tick.
// |v| is treated as the probability of moving one cell along that axis.
func (e *Engine) computeIntents() {
	w := e.grid.width
	for y := 0; y < e.grid.height; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			c := e.grid.cells[i]
			if !e.reg.Movable(c.Material) {
				e.intents[i] = Step{}
				continue
			}
			e.intents[i] = Step{
				X: e.axisStep(c.Velocity.X()),
				Y: e.axisStep(c.Velocity.Y()),
			}
		}
	}
}

func (e *Engine) axisStep(v float32) int {
	if e.rng.Float32() < math32.Abs(v) {
		return sign(v)
	}
	return 0
}

// resolve applies the stored intents in sweep order.
func (e *Engine) resolve() {
	g := e.grid
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			i := y*g.width + x
			if g.cells[i].Material == Empty {
				continue
			}
			step := e.intents[i]
			if step.IsZero() {
				continue
			}
			e.resolveCell(x, y, step)
		}
	}
}

func (e *Engine) resolveCell(x, y int, step Step) {
	g := e.grid
	src := y*g.width + x
	tx, ty := x+step.X, y+step.Y

	if g.InBounds(tx, ty) {
		dst := ty*g.width + tx
		if g.cells[dst].Material == Empty {
			g.cells[dst] = g.cells[src]
			g.cells[src] = Cell{}
			e.stats.Moves++
			return
		}
		if e.canSwap(g.cells[src].Material, g.cells[dst].Material, step) {
			e.swap(src, dst)
			e.stats.Swaps++
			return
		}
	}

	n := g.NeighborhoodAt(x, y, e.reg)
	c := &g.cells[src]
	c.Velocity = e.reg.Get(c.Material).Respond(&n, c.Velocity, step, e.rng)
	e.stats.Collisions++
}

// canSwap reports whether a mover may trade places with an occupied target:
// a denser mover sinking, or a lighter mover rising. Immovable cells never swap.
func (e *Engine) canSwap(mover, target MaterialID, step Step) bool {
	if !e.reg.Movable(mover) || !e.reg.Movable(target) {
		return false
	}
	dm, dt := e.reg.Density(mover), e.reg.Density(target)
	return (dm > dt && step.Y < 0) || (dm < dt && step.Y > 0)
}

// swap exchanges two cells and applies buoyancy: each party's vertical
// velocity changes by the other's density minus its own.
func (e *Engine) swap(a, b int) {
	cells := e.grid.cells
	cells[a], cells[b] = cells[b], cells[a]

	da := e.reg.Density(cells[a].Material)
	db := e.reg.Density(cells[b].Material)
	cells[a].Velocity[1] += db - da
	cells[b].Velocity[1] += da - db
}
