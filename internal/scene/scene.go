// Package scene builds the starting layouts a world can be reset to.
package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/tomz197/sandfall/internal/physics"
)

// ErrUnknownScene is returned by Lookup for names that are not registered.
var ErrUnknownScene = errors.New("unknown scene")

// Scene is a named layout plus any emitters that keep feeding it.
type Scene struct {
	Name        string
	Description string
	Build       func(g *physics.Grid, rng physics.Rand)
	Emitters    []Emitter
}

// Apply clears g and builds the layout into it.
func (s Scene) Apply(g *physics.Grid, rng physics.Rand) {
	g.Clear()
	if s.Build != nil {
		s.Build(g, rng)
	}
}

// Emit runs every emitter once and returns the number of cells spawned.
func (s Scene) Emit(g *physics.Grid, rng physics.Rand) int {
	n := 0
	for _, e := range s.Emitters {
		n += e.Update(g, rng)
	}
	return n
}

// Emitter drops a material along the top row until MaxFill of the world is occupied.
type Emitter struct {
	Material physics.MaterialID
	Rate     float32 // Chance per column per tick
	From, To float32 // Horizontal span as fractions of the width
	MaxFill  float32 // Zero means no limit
}

// Update spawns resting cells in empty top-row slots of the emitter's span.
func (e Emitter) Update(g *physics.Grid, rng physics.Rand) int {
	w, top := g.Width(), g.Height()-1
	if e.Rate <= 0 || (e.MaxFill > 0 && float32(g.Count()) >= e.MaxFill*float32(w*g.Height())) {
		return 0
	}
	from := int(e.From * float32(w))
	to := int(e.To * float32(w))
	if to <= from {
		to = w
	}
	spawned := 0
	for x := max(from, 0); x < min(to, w); x++ {
		if !g.At(x, top).IsEmpty() || rng.Float32() >= e.Rate {
			continue
		}
		g.Set(x, top, physics.NewCell(e.Material))
		spawned++
	}
	return spawned
}

var scenes = orderedmap.NewOrderedMap[string, Scene]()

func register(s Scene) {
	scenes.Set(s.Name, s)
}

func init() {
	register(Scene{
		Name:        "empty",
		Description: "nothing but the world edge",
	})
	register(Scene{
		Name:        "basin",
		Description: "solid floor, walls and a shelf",
		Build:       buildBasin,
	})
	register(Scene{
		Name:        "layers",
		Description: "sand resting on water, waiting to sink",
		Build:       buildLayers,
	})
	register(Scene{
		Name:        "rain",
		Description: "a basin under steady sand and water rain",
		Build:       buildRain,
		Emitters: []Emitter{
			{Material: physics.Sand, Rate: 0.02, From: 0.1, To: 0.5, MaxFill: 0.45},
			{Material: physics.Water, Rate: 0.03, From: 0.5, To: 0.9, MaxFill: 0.45},
		},
	})
}

// Lookup returns the scene called name, case-insensitively.
func Lookup(name string) (Scene, error) {
	s, ok := scenes.Get(strings.ToLower(name))
	if !ok {
		return Scene{}, fmt.Errorf("%w: %q (have %s)", ErrUnknownScene, name, strings.Join(Names(), ", "))
	}
	if len(s.Emitters) > 0 {
		s.Emitters = append([]Emitter(nil), s.Emitters...)
	}
	return s, nil
}

// Names lists registered scenes in registration order.
func Names() []string {
	return scenes.Keys()
}

// fill sets every cell in the rectangle [x0,x1) x [y0,y1).
func fill(g *physics.Grid, x0, y0, x1, y1 int, c physics.Cell) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			g.Set(x, y, c)
		}
	}
}

func buildBasin(g *physics.Grid, _ physics.Rand) {
	w, h := g.Width(), g.Height()
	solid := physics.NewCell(physics.Solid)

	fill(g, 0, 0, w, 1, solid)
	fill(g, 0, 0, 1, h*2/3, solid)
	fill(g, w-1, 0, w, h*2/3, solid)

	// A sloped shelf so granular piles have something to slide off.
	for i := 0; i < w/4; i++ {
		g.Set(w/4+i, h/3+i/3, solid)
	}
}

func buildLayers(g *physics.Grid, rng physics.Rand) {
	buildBasin(g, rng)
	w, h := g.Width(), g.Height()

	fill(g, 1, 1, w-1, h/4, physics.NewCell(physics.Water))
	fill(g, 1, h/4, w-1, h/4+max(h/10, 1), physics.NewCell(physics.Sand))
}

func buildRain(g *physics.Grid, rng physics.Rand) {
	buildBasin(g, rng)
	w, h := g.Width(), g.Height()

	// Seed the upper third with a scatter of sand and water.
	for y := h * 2 / 3; y < h; y++ {
		for x := 1; x < w-1; x++ {
			switch r := rng.Float32(); {
			case r < 0.05:
				g.Set(x, y, physics.NewCell(physics.Sand))
			case r < 0.10:
				g.Set(x, y, physics.NewCell(physics.Water))
			}
		}
	}
}
