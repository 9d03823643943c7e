package draw

import (
	"io"
	"strings"
)

// Canvas is a colour buffer with 2x vertical resolution using half-block characters.
// Every terminal cell shows two stacked pixels: the upper one as the foreground
// of '▀' and the lower one as its background. Pixels hold palette indices and
// canvas coordinates grow downward.
type Canvas struct {
	termWidth      int     // Terminal columns used by the canvas
	termHeight     int     // Terminal rows used by the canvas
	subPixelHeight int     // termHeight * 2
	pixels         []uint8 // Flat slice: [y * termWidth + x] palette index
	shown          []int32 // Last rendered (top<<8 | bottom) per terminal cell, -1 if unknown

	palette *Palette

	// Offset for centering the render area when the terminal is larger than the world.
	// These are 0-based terminal offsets (columns/rows to skip).
	offsetCol int
	offsetRow int

	renderBuf strings.Builder
	numBuf    [20]byte
}

// NewCanvas creates a canvas of width columns and height rows drawing with palette.
// The canvas has height*2 addressable pixel rows.
func NewCanvas(width, height int, palette *Palette) *Canvas {
	c := &Canvas{palette: palette}
	c.Resize(width, height)
	return c
}

// Resize reallocates the canvas for new dimensions and forces a full redraw.
func (c *Canvas) Resize(termWidth, termHeight int) {
	if termWidth < 0 {
		termWidth = 0
	}
	if termHeight < 0 {
		termHeight = 0
	}
	if termWidth != c.termWidth || termHeight != c.termHeight || c.pixels == nil {
		c.termWidth = termWidth
		c.termHeight = termHeight
		c.subPixelHeight = termHeight * 2
		c.pixels = make([]uint8, c.subPixelHeight*termWidth)
		c.shown = make([]int32, termHeight*termWidth)
	}
	c.ForceRedraw()
}

// ForceRedraw makes the next Render emit every cell, e.g. after the screen was cleared.
func (c *Canvas) ForceRedraw() {
	for i := range c.shown {
		c.shown[i] = -1
	}
}

// MarkTextDirty forces the width cells starting at the 1-based canvas position
// (col, row) to be redrawn next frame, so text written over the canvas does not
// linger once it stops being drawn.
func (c *Canvas) MarkTextDirty(col, row, width int) {
	r := row - 1
	if r < 0 || r >= c.termHeight {
		return
	}
	for x := max(col-1, 0); x < min(col-1+width, c.termWidth); x++ {
		c.shown[r*c.termWidth+x] = -1
	}
}

// SetOffset sets the column and row offset for centering the canvas.
// Offsets are 0-based terminal positions: the canvas starts at (offsetCol+1, offsetRow+1).
func (c *Canvas) SetOffset(col, row int) {
	if col != c.offsetCol || row != c.offsetRow {
		c.ForceRedraw()
	}
	c.offsetCol = col
	c.offsetRow = row
}

// OffsetCol returns the column offset used for centering.
func (c *Canvas) OffsetCol() int {
	return c.offsetCol
}

// OffsetRow returns the row offset used for centering.
func (c *Canvas) OffsetRow() int {
	return c.offsetRow
}

// Clear resets all pixels to the background colour.
func (c *Canvas) Clear() {
	clear(c.pixels)
}

// Set paints pixel (x, y) with a palette index. Out-of-range pixels are ignored.
func (c *Canvas) Set(x, y int, color uint8) {
	if x >= 0 && x < c.termWidth && y >= 0 && y < c.subPixelHeight {
		c.pixels[y*c.termWidth+x] = color
	}
}

// At returns the palette index of pixel (x, y), or the background outside the canvas.
func (c *Canvas) At(x, y int) uint8 {
	if x >= 0 && x < c.termWidth && y >= 0 && y < c.subPixelHeight {
		return c.pixels[y*c.termWidth+x]
	}
	return Background
}

// Render writes the cells that changed since the previous Render. If the
// write fails the next Render starts over with every cell.
// Cursor moves are skipped for runs of adjacent changed cells and colour
// sequences are only emitted when the colour differs from the last one written.
func (c *Canvas) Render(w io.Writer) error {
	c.renderBuf.Reset()

	lastFg, lastBg := -1, -1
	cursorRow, cursorCol := -1, -1

	for row := 0; row < c.termHeight; row++ {
		topOffset := row * 2 * c.termWidth
		bottomOffset := topOffset + c.termWidth

		for col := 0; col < c.termWidth; col++ {
			top := c.pixels[topOffset+col]
			bottom := c.pixels[bottomOffset+col]
			key := int32(top)<<8 | int32(bottom)
			cell := row*c.termWidth + col
			if c.shown[cell] == key {
				continue
			}
			c.shown[cell] = key

			if row != cursorRow || col != cursorCol {
				writeCursor(&c.renderBuf, c.numBuf[:], col+1+c.offsetCol, row+1+c.offsetRow)
			}
			if int(top) != lastFg {
				c.renderBuf.WriteString(c.palette.FG(top))
				lastFg = int(top)
			}
			if int(bottom) != lastBg {
				c.renderBuf.WriteString(c.palette.BG(bottom))
				lastBg = int(bottom)
			}
			c.renderBuf.WriteRune(BlockUpperHalf)
			cursorRow, cursorCol = row, col+1
		}
	}
	if c.renderBuf.Len() == 0 {
		return nil
	}
	c.renderBuf.WriteString(ResetAttributes)

	if err := writeChunks(w, c.renderBuf.String()); err != nil {
		c.ForceRedraw()
		return err
	}
	return nil
}

// RenderBorder draws a box border around the canvas area when the terminal
// exceeds the canvas on either axis.
// Draws horizontal borders when there is vertical offset, vertical borders
// when there is horizontal offset, and corners when both are present.
func (c *Canvas) RenderBorder(w io.Writer) error {
	hasH := c.offsetCol >= 1 // Room for left/right vertical bars
	hasV := c.offsetRow >= 1 // Room for top/bottom horizontal bars

	// Border positions (1-based terminal coordinates)
	left := c.offsetCol
	right := c.offsetCol + c.termWidth + 1
	top := c.offsetRow
	bottom := c.offsetRow + c.termHeight + 1

	var buf strings.Builder
	line := strings.Repeat("─", c.termWidth)

	if hasV {
		if hasH {
			buf.WriteString(cursorTo(left, top) + "┌" + line + "┐")
			buf.WriteString(cursorTo(left, bottom) + "└" + line + "┘")
		} else {
			buf.WriteString(cursorTo(c.offsetCol+1, top) + line)
			buf.WriteString(cursorTo(c.offsetCol+1, bottom) + line)
		}
	}

	if hasH {
		startRow, endRow := top+1, bottom
		if !hasV {
			startRow = c.offsetRow + 1
			endRow = c.offsetRow + c.termHeight + 1
		}
		for row := startRow; row < endRow; row++ {
			buf.WriteString(cursorTo(left, row) + "│" + cursorTo(right, row) + "│")
		}
	}

	_, err := io.WriteString(w, buf.String())
	return err
}

// TerminalWidth returns the canvas width in terminal columns.
func (c *Canvas) TerminalWidth() int {
	return c.termWidth
}

// TerminalHeight returns the canvas height in terminal rows.
func (c *Canvas) TerminalHeight() int {
	return c.termHeight
}

// PixelHeight returns the number of pixel rows (twice the terminal rows).
func (c *Canvas) PixelHeight() int {
	return c.subPixelHeight
}

// PixelToTerminal converts a pixel to its 1-based terminal position (col, row),
// offset included. Useful for placing text overlays over canvas content.
func (c *Canvas) PixelToTerminal(x, y int) (col, row int) {
	return x + 1 + c.offsetCol, y/2 + 1 + c.offsetRow
}

// TerminalToPixel maps a 1-based terminal position, such as a mouse report,
// to the upper pixel of that cell. ok is false outside the canvas.
func (c *Canvas) TerminalToPixel(col, row int) (x, y int, ok bool) {
	x = col - 1 - c.offsetCol
	tr := row - 1 - c.offsetRow
	if x < 0 || x >= c.termWidth || tr < 0 || tr >= c.termHeight {
		return 0, 0, false
	}
	return x, tr * 2, true
}
