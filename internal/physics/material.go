package physics

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidMaterial is returned when a material definition cannot be installed.
var ErrInvalidMaterial = errors.New("invalid material")

// Kind selects the collision response of a material.
type Kind uint8

const (
	KindBoundary Kind = iota // Immovable anchor, never changes velocity
	KindGranular             // Slides down slopes (sand)
	KindFluid                // Spreads sideways (water)
)

// String returns the lowercase kind name used in config files.
func (k Kind) String() string {
	switch k {
	case KindBoundary:
		return "boundary"
	case KindGranular:
		return "granular"
	case KindFluid:
		return "fluid"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind converts a config name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "boundary", "solid":
		return KindBoundary, nil
	case "granular", "powder":
		return KindGranular, nil
	case "fluid", "liquid":
		return KindFluid, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidMaterial, s)
}

// MaterialID is a stable handle into the registry's material table.
// The zero value is the empty cell.
type MaterialID uint8

// Built-in handles. They are installed first by every registry.
const (
	Empty MaterialID = iota
	Sand
	Water
	Solid
)

// Material describes a substance. Materials are created once by NewRegistry
// and never change afterwards.
type Material struct {
	Name    string
	Kind    Kind
	Movable bool
	Density float32
	Color   string // Hex colour for renderers; the simulation never reads it

	// Granular tuning
	SlideSpeed float32 // Minimum sideways speed when sliding off a slope
	SlideScale float32 // Fraction of vertical speed converted into slide
	Bounce     float32 // Multiplier applied to velocity along the blocked axis
}

// Tuning holds the tunable constants of the automaton.
type Tuning struct {
	Gravity    float32
	SlideSpeed float32
	SlideScale float32
	Bounce     float32
}

// DefaultTuning returns the reference constants.
func DefaultTuning() Tuning {
	return Tuning{
		Gravity:    -0.1,
		SlideSpeed: 0.1,
		SlideScale: 0.1,
		Bounce:     -0.1,
	}
}

// Respond computes the velocity of a particle of this material whose move
// toward want was blocked. It never touches the grid.
func (m *Material) Respond(n *Neighborhood, vel mgl32.Vec2, want Step, rng Rand) mgl32.Vec2 {
	switch m.Kind {
	case KindGranular:
		return m.slide(n, vel, want, rng)
	case KindFluid:
		return m.spread(n, vel, rng)
	default:
		return mgl32.Vec2{}
	}
}

// slide bounces the particle back along the blocked axis and, if the
// randomly chosen side is open below, pushes it down the slope.
func (m *Material) slide(n *Neighborhood, vel mgl32.Vec2, want Step, rng Rand) mgl32.Vec2 {
	d := randomSide(rng)

	var extraX float32
	if n.yields(d, 0, m.Density) && n.yields(d, -1, m.Density) {
		extraX = vel.Y() * m.SlideScale * float32(d)
		if math32.Abs(extraX) < m.SlideSpeed {
			extraX = m.SlideSpeed * float32(d)
		}
	}

	return mgl32.Vec2{
		vel.X()*m.Bounce*float32(abs(want.X)) + extraX,
		vel.Y() * m.Bounce * float32(abs(want.Y)),
	}
}

// spread keeps the fluid moving sideways, reversing when the way is shut.
func (m *Material) spread(n *Neighborhood, vel mgl32.Vec2, rng Rand) mgl32.Vec2 {
	dir := sign(vel.X())
	if dir == 0 {
		dir = randomSide(rng)
	}
	if n.At(dir, 0).IsEmpty() {
		return mgl32.Vec2{float32(dir), 0}
	}
	return mgl32.Vec2{float32(-dir), 0}
}

// MaxMaterials caps the table so renderers can give every material a solid
// and a preview shade in a 256 entry palette next to their own colours.
const MaxMaterials = 126

// DefaultColor is used for materials that name no colour.
const DefaultColor = "#ffffff"

// Registry is the append-only material table. Index 0 is reserved for empty.
type Registry struct {
	tuning    Tuning
	materials []Material
	byName    *orderedmap.OrderedMap[string, MaterialID]
}

// NewRegistry installs the built-in materials followed by extra.
// Every definition is validated here so that the engine never meets a
// material it cannot resolve.
func NewRegistry(tuning Tuning, extra ...Material) (*Registry, error) {
	r := &Registry{
		tuning:    tuning,
		materials: make([]Material, 1, 4+len(extra)),
		byName:    orderedmap.NewOrderedMap[string, MaterialID](),
	}

	builtins := []Material{
		{Name: "sand", Kind: KindGranular, Movable: true, Density: 1.0, Color: "#ffc800"},
		{Name: "water", Kind: KindFluid, Movable: true, Density: 0.5, Color: "#0000ff"},
		{Name: "solid", Kind: KindBoundary, Movable: false, Density: 1.0, Color: "#808080"},
	}

	for _, m := range append(builtins, extra...) {
		if _, err := r.add(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for static definitions; it panics on error.
func MustRegistry(tuning Tuning, extra ...Material) *Registry {
	r, err := NewRegistry(tuning, extra...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(m Material) (MaterialID, error) {
	if m.Name == "" {
		return Empty, fmt.Errorf("%w: missing name", ErrInvalidMaterial)
	}
	if _, dup := r.byName.Get(m.Name); dup {
		return Empty, fmt.Errorf("%w: duplicate name %q", ErrInvalidMaterial, m.Name)
	}
	if !(m.Density > 0) || math32.IsInf(m.Density, 0) {
		return Empty, fmt.Errorf("%w: %q density must be positive and finite, got %g", ErrInvalidMaterial, m.Name, m.Density)
	}
	switch m.Kind {
	case KindGranular, KindFluid:
	case KindBoundary:
		if m.Movable {
			return Empty, fmt.Errorf("%w: boundary material %q cannot be movable", ErrInvalidMaterial, m.Name)
		}
	default:
		return Empty, fmt.Errorf("%w: %q has no collision response for %s", ErrInvalidMaterial, m.Name, m.Kind)
	}
	if m.Color == "" {
		m.Color = DefaultColor
	}
	if _, err := colorful.Hex(m.Color); err != nil {
		return Empty, fmt.Errorf("%w: %q color: %v", ErrInvalidMaterial, m.Name, err)
	}
	if len(r.materials)-1 >= MaxMaterials {
		return Empty, fmt.Errorf("%w: material table full (%d)", ErrInvalidMaterial, MaxMaterials)
	}

	if m.Kind == KindGranular {
		m.SlideSpeed = r.tuning.SlideSpeed
		m.SlideScale = r.tuning.SlideScale
		m.Bounce = r.tuning.Bounce
	}

	id := MaterialID(len(r.materials))
	r.materials = append(r.materials, m)
	r.byName.Set(m.Name, id)
	return id, nil
}

// Tuning returns the constants the registry was built with.
func (r *Registry) Tuning() Tuning {
	return r.tuning
}

// Get returns the material for id, or nil for Empty and unknown handles.
func (r *Registry) Get(id MaterialID) *Material {
	if id == Empty || int(id) >= len(r.materials) {
		return nil
	}
	return &r.materials[id]
}

// Lookup finds a material handle by name.
func (r *Registry) Lookup(name string) (MaterialID, bool) {
	return r.byName.Get(name)
}

// IDs lists every material handle in registration order.
func (r *Registry) IDs() []MaterialID {
	ids := make([]MaterialID, 0, r.byName.Len())
	for _, name := range r.byName.Keys() {
		id, _ := r.byName.Get(name)
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of installed materials, excluding Empty.
func (r *Registry) Len() int {
	return len(r.materials) - 1
}

// Density returns the density of id, or 0 for empty cells.
func (r *Registry) Density(id MaterialID) float32 {
	if m := r.Get(id); m != nil {
		return m.Density
	}
	return 0
}

// Movable reports whether cells of id take part in gravity and movement.
func (r *Registry) Movable(id MaterialID) bool {
	m := r.Get(id)
	return m != nil && m.Movable
}

func randomSide(rng Rand) int {
	return rng.IntN(2)*2 - 1
}

func sign(v float32) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
