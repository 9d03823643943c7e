// Package physics implements the falling-sand automaton: a fixed grid of
// single-occupancy cells, the material table, and the per-tick step engine.
//
// Coordinates are y-up: y=0 is the bottom row and negative gravity pulls
// particles toward it.
package physics

import "math/rand/v2"

// Rand is the random stream consumed by the intent phase and collision
// responses. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float32() float32
	IntN(n int) int
}

// NewRand returns a deterministic PCG stream for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Step is a per-axis movement decision in {-1, 0, +1}.
type Step struct {
	X, Y int
}

// IsZero reports whether the step moves nowhere.
func (s Step) IsZero() bool {
	return s.X == 0 && s.Y == 0
}
