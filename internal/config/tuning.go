package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/tomz197/sandfall/internal/physics"
	"gopkg.in/gcfg.v1"
)

// File is the layout of a tuning file:
//
//	[physics]
//	gravity = -0.1
//	width = 120
//	height = 80
//	seed = 1
//	scene = basin
//
//	[granular]
//	slidespeed = 0.1
//	slidescale = 0.1
//	bounce = -0.1
//
//	[material "oil"]
//	kind = fluid
//	density = 0.3
//	color = "#553311"
//
// Colours must be quoted because gcfg treats '#' as a comment marker.
type File struct {
	Physics  PhysicsSection
	Granular GranularSection
	Material map[string]*MaterialSection
}

// Float is a number that remembers whether the file set it, so an explicit
// zero can be told apart from a missing key.
type Float struct {
	Value float64
	Set   bool
}

// UnmarshalText implements encoding.TextUnmarshaler for gcfg.
func (f *Float) UnmarshalText(text []byte) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(text)), 64)
	if err != nil {
		return err
	}
	f.Value, f.Set = v, true
	return nil
}

// PhysicsSection holds world-level settings. Zero sizes and an empty scene
// mean "use the default".
type PhysicsSection struct {
	Gravity Float
	Width   int
	Height  int
	Seed    uint64
	Scene   string
}

// GranularSection tunes the slope-slide response.
type GranularSection struct {
	SlideSpeed Float
	SlideScale Float
	Bounce     Float
}

// MaterialSection declares an extra material.
type MaterialSection struct {
	Kind    string
	Density float64
	Color   string
}

// Tuning is the validated result of a tuning file.
type Tuning struct {
	Physics   physics.Tuning
	Width     int
	Height    int
	Seed      uint64
	Scene     string
	Materials []physics.Material
}

// DefaultTuning returns the settings used when no file is given.
func DefaultTuning() Tuning {
	return Tuning{
		Physics: physics.DefaultTuning(),
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Scene:   "basin",
	}
}

// Default world size, matching one 120x40 terminal of half-block cells.
const (
	DefaultWidth  = 120
	DefaultHeight = 80
)

// LoadTuning reads and validates a tuning file. An empty path yields the defaults.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	var f File
	if err := gcfg.ReadFileInto(&f, path); err != nil {
		return Tuning{}, fmt.Errorf("read tuning %s: %w", path, err)
	}
	return f.Tuning()
}

// ParseTuning validates tuning file content held in memory.
func ParseTuning(content string) (Tuning, error) {
	var f File
	if err := gcfg.ReadStringInto(&f, content); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning: %w", err)
	}
	return f.Tuning()
}

// Tuning merges the file over the defaults and checks every value.
func (f *File) Tuning() (Tuning, error) {
	t := DefaultTuning()

	if f.Physics.Gravity.Set {
		t.Physics.Gravity = float32(f.Physics.Gravity.Value)
	}
	if f.Physics.Width < 0 || f.Physics.Height < 0 {
		return Tuning{}, fmt.Errorf("world size must be positive, got %dx%d", f.Physics.Width, f.Physics.Height)
	}
	if f.Physics.Width > 0 {
		t.Width = f.Physics.Width
	}
	if f.Physics.Height > 0 {
		t.Height = f.Physics.Height
	}
	t.Seed = f.Physics.Seed
	if f.Physics.Scene != "" {
		t.Scene = strings.ToLower(f.Physics.Scene)
	}

	if f.Granular.SlideSpeed.Value < 0 || f.Granular.SlideScale.Value < 0 {
		return Tuning{}, fmt.Errorf("granular slide values cannot be negative")
	}
	if f.Granular.SlideSpeed.Set {
		t.Physics.SlideSpeed = float32(f.Granular.SlideSpeed.Value)
	}
	if f.Granular.SlideScale.Set {
		t.Physics.SlideScale = float32(f.Granular.SlideScale.Value)
	}
	if f.Granular.Bounce.Set {
		t.Physics.Bounce = float32(f.Granular.Bounce.Value)
	}

	for name, sec := range f.Material {
		m, err := sec.material(name)
		if err != nil {
			return Tuning{}, err
		}
		t.Materials = append(t.Materials, m)
	}
	// gcfg fills a map, so give extra materials a stable order.
	slices.SortFunc(t.Materials, func(a, b physics.Material) int {
		return strings.Compare(a.Name, b.Name)
	})

	return t, nil
}

// material converts a section into a definition. The registry performs the
// remaining checks when it is built.
func (sec *MaterialSection) material(name string) (physics.Material, error) {
	if sec == nil {
		return physics.Material{}, fmt.Errorf("material %q: empty section", name)
	}
	kind, err := physics.ParseKind(strings.ToLower(sec.Kind))
	if err != nil {
		return physics.Material{}, fmt.Errorf("material %q: %w", name, err)
	}
	color := sec.Color
	if color == "" {
		color = physics.DefaultColor
	}
	if _, err := colorful.Hex(color); err != nil {
		return physics.Material{}, fmt.Errorf("material %q: %w", name, err)
	}
	return physics.Material{
		Name:    strings.ToLower(name),
		Kind:    kind,
		Movable: kind != physics.KindBoundary,
		Density: float32(sec.Density),
		Color:   color,
	}, nil
}

// Registry builds the material table described by the tuning.
func (t Tuning) Registry() (*physics.Registry, error) {
	return physics.NewRegistry(t.Physics, t.Materials...)
}
