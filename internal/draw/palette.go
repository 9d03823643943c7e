package draw

import (
	"errors"
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Background is the palette index every canvas pixel starts with.
const Background uint8 = 0

// ErrPaletteFull is returned when more than 256 colours are added.
var ErrPaletteFull = errors.New("palette full")

// Palette maps small colour indices to precomputed truecolor escape sequences.
type Palette struct {
	colors []colorful.Color
	fgSeq  []string
	bgSeq  []string
}

// NewPalette creates a palette whose index 0 is background.
func NewPalette(background string) (*Palette, error) {
	p := &Palette{}
	if _, err := p.Add(background); err != nil {
		return nil, err
	}
	return p, nil
}

// Add appends a "#rrggbb" colour and returns its index.
func (p *Palette) Add(hex string) (uint8, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0, fmt.Errorf("palette colour %q: %w", hex, err)
	}
	return p.AddColor(c)
}

// AddColor appends c and returns its index.
func (p *Palette) AddColor(c colorful.Color) (uint8, error) {
	if len(p.colors) >= 256 {
		return 0, ErrPaletteFull
	}
	r, g, b := c.Clamped().RGB255()
	p.colors = append(p.colors, c)
	p.fgSeq = append(p.fgSeq, fmt.Sprintf("\033[38;2;%d;%d;%dm", r, g, b))
	p.bgSeq = append(p.bgSeq, fmt.Sprintf("\033[48;2;%d;%d;%dm", r, g, b))
	return uint8(len(p.colors) - 1), nil
}

// Len returns the number of colours.
func (p *Palette) Len() int {
	return len(p.colors)
}

// Color returns the colour at index i, or the background for unknown indices.
func (p *Palette) Color(i uint8) colorful.Color {
	if int(i) >= len(p.colors) {
		return p.colors[Background]
	}
	return p.colors[i]
}

// Shade derives a darker or lighter variant of colour i, blended in Lab space
// toward black (t < 0) or white (t > 0), and appends it.
func (p *Palette) Shade(i uint8, t float64) (uint8, error) {
	base := p.Color(i)
	target := colorful.Color{R: 1, G: 1, B: 1}
	if t < 0 {
		target = colorful.Color{}
		t = -t
	}
	return p.AddColor(base.BlendLab(target, t))
}

// FG returns the escape sequence selecting colour i as the foreground.
func (p *Palette) FG(i uint8) string {
	if int(i) >= len(p.fgSeq) {
		return p.fgSeq[Background]
	}
	return p.fgSeq[i]
}

// BG returns the escape sequence selecting colour i as the background.
func (p *Palette) BG(i uint8) string {
	if int(i) >= len(p.bgSeq) {
		return p.bgSeq[Background]
	}
	return p.bgSeq[i]
}
