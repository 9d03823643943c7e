package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomz197/sandfall/internal/draw"
	"github.com/tomz197/sandfall/internal/loop/config"
	"github.com/tomz197/sandfall/internal/loop/server"
	"github.com/tomz197/sandfall/internal/physics"
)

// drawFrame draws the current frame.
func (c *Client) drawFrame() error {
	// On screen or inactivity transitions, do a full terminal clear
	// so overlays from the previous state don't persist on screen.
	screenChanged := c.state.Screen != c.state.prevScreen
	inactiveChanged := c.state.isInactive != c.state.wasInactive
	if screenChanged || inactiveChanged {
		c.chunkWriter.WriteString("\033[H\033[2J")
		c.canvas.ForceRedraw()
		c.state.prevScreen = c.state.Screen
		c.state.wasInactive = c.state.isInactive
	}

	c.canvas.Clear()

	snapshot := c.server.GetSnapshot()
	c.drawCells(snapshot.Cells)
	c.drawCursors(snapshot)

	if err := c.canvas.Render(c.chunkWriter); err != nil {
		return err
	}
	if err := c.canvas.RenderBorder(c.chunkWriter); err != nil {
		return err
	}

	c.drawPlayerNames(snapshot.Players)
	c.drawHUD(snapshot)
	c.drawOverlay()

	return c.chunkWriter.Flush()
}

// drawCells paints every occupied cell visible through the camera.
func (c *Client) drawCells(cells *physics.Snapshot) {
	cells.Each(func(x, y int, cell physics.Cell) {
		px, py := c.gridToPixel(x, y)
		c.canvas.Set(px, py, c.colors.solid[cell.Material])
	})
}

// drawCursors paints the brush preview into empty cells, then the cursors of
// other players and finally our own cursor on top.
func (c *Client) drawCursors(snapshot *server.WorldSnapshot) {
	st := c.state
	if st.Screen == ScreenSandbox {
		preview := c.colors.preview[st.Material]
		st.Brush.Footprint(func(dx, dy int) {
			x, y := st.CursorX+dx, st.CursorY+dy
			if x < 0 || y < 0 || x >= c.worldW || y >= c.worldH {
				return
			}
			if !snapshot.Cells.At(x, y).IsEmpty() {
				return
			}
			px, py := c.gridToPixel(x, y)
			c.canvas.Set(px, py, preview)
		})
	}

	for _, p := range snapshot.Players {
		if p.ID == c.handle.ID {
			continue
		}
		px, py := c.gridToPixel(p.CursorX, p.CursorY)
		c.canvas.Set(px, py, c.colors.other)
	}

	px, py := c.gridToPixel(st.CursorX, st.CursorY)
	c.canvas.Set(px, py, c.colors.cursor)
}

// drawPlayerNames writes usernames just above other players' cursors.
// Marks the drawn cells as dirty so the canvas overwrites them next frame,
// preventing stale name text from persisting when cursors move.
func (c *Client) drawPlayerNames(players []server.PlayerView) {
	termWidth := c.canvas.TerminalWidth()
	termHeight := c.canvas.TerminalHeight()

	for _, p := range players {
		if p.ID == c.handle.ID || p.Username == "" {
			continue
		}
		px, py := c.gridToPixel(p.CursorX, p.CursorY)
		col := px + 1 - len(p.Username)/2
		row := py/2 // One terminal row above the cursor, 1-based

		if row < 1 || row > termHeight {
			continue
		}
		if col < 1 || col+len(p.Username)-1 > termWidth {
			continue
		}

		c.chunkWriter.WriteAt(col, row, p.Username)
		c.canvas.MarkTextDirty(col, row, len(p.Username))
	}
}

// drawHUD draws the status line on the last terminal row, across the full
// terminal width. Text is padded so shorter values overwrite longer ones.
func (c *Client) drawHUD(snapshot *server.WorldSnapshot) {
	// ChunkWriter positions are canvas-relative; undo the offset.
	col := 1 - c.canvas.OffsetCol()
	row := c.termHeight - c.canvas.OffsetRow()
	if c.termWidth < 4 || c.termHeight < 1 {
		return
	}

	st := c.state
	name := "eraser"
	if st.Material != physics.Empty {
		name = c.server.Registry().Get(st.Material).Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s | tick %d | %d cells | %d players",
		name, st.Brush, snapshot.Tick, snapshot.Particles, len(snapshot.Players))
	if snapshot.Paused {
		b.WriteString(" | PAUSED")
	}
	if st.notice != "" {
		b.WriteString(" | ")
		b.WriteString(st.notice)
	}

	swatch := c.colors.solid[st.Material]
	if st.Material == physics.Empty {
		swatch = c.colors.preview[physics.Empty]
	}
	cw := c.chunkWriter
	cw.WriteAt(col, row, c.palette.FG(swatch)+string(draw.BlockFull)+string(draw.BlockFull)+draw.ResetAttributes)
	cw.WriteAt(col+3, row, draw.Fit(b.String(), c.termWidth-3))
}

// drawOverlay draws the modal text for the help, shutdown and inactivity screens.
func (c *Client) drawOverlay() {
	switch {
	case c.state.Screen == ScreenShutdown:
		c.drawShutdownScreen()
	case c.state.isInactive:
		c.drawInactivityScreen()
	case c.state.Screen == ScreenHelp:
		c.drawHelpScreen()
	}
}

// drawCentered writes lines centred on the canvas, one terminal row each,
// with the first as a reverse-video title, and marks them dirty so the canvas reclaims them once the overlay closes.
func (c *Client) drawCentered(lines []string) {
	termWidth := c.canvas.TerminalWidth()
	startRow := (c.canvas.TerminalHeight()-len(lines))/2 + 1
	for i, line := range lines {
		line = draw.Fit(line, min(len([]rune(line)), termWidth))
		width := len([]rune(line))
		if width == 0 {
			continue
		}
		col := (termWidth-width)/2 + 1
		if i == 0 {
			line = draw.Reverse + line + draw.ResetAttributes
		}
		c.chunkWriter.WriteAt(col, startRow+i, line)
		c.canvas.MarkTextDirty(col, startRow+i, width)
	}
}

var helpLines = []string{
	"SANDFALL",
	"",
	"arrows / WASD / HJKL  move cursor",
	"space  paint         mouse  left paint",
	"1-9  material        right  pour water",
	"0  eraser            middle  erase",
	"b  brush shape       wheel  brush size",
	"+ -  brush size      p  pause",
	"n  step when paused  c  clear",
	"r  reset scene       ?  this help",
	"q  quit",
	"",
	"press any key",
}

func (c *Client) drawHelpScreen() {
	lines := make([]string, 0, len(helpLines)+2)
	lines = append(lines, helpLines[:2]...)
	for i, id := range c.materials {
		if i >= 9 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d %s", i+1, c.server.Registry().Get(id).Name))
	}
	lines = append(lines, "")
	lines = append(lines, helpLines[2:]...)
	c.drawCentered(lines)
}

// drawInactivityScreen draws the inactivity warning screen.
func (c *Client) drawInactivityScreen() {
	left := int(config.InactivityDisconnectUser - time.Since(c.lastInput).Seconds())
	c.drawCentered([]string{
		"INACTIVITY WARNING",
		"",
		fmt.Sprintf("Disconnecting in %d seconds.", max(left, 0)),
		"",
		"Press any key to continue",
	})
}

// drawShutdownScreen draws the server shutdown notification screen.
func (c *Client) drawShutdownScreen() {
	remaining := int(c.state.shutdownTime) + 1
	c.drawCentered([]string{
		"SERVER SHUTTING DOWN",
		"",
		"Please reconnect in a moment.",
		fmt.Sprintf("Disconnecting in %d seconds...", remaining),
		"",
		"Press Q to disconnect now",
	})
}
