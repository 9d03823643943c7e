package client

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/tomz197/sandfall/internal/draw"
	"github.com/tomz197/sandfall/internal/input"
	"github.com/tomz197/sandfall/internal/loop/config"
	"github.com/tomz197/sandfall/internal/loop/server"
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/tool"
)

// Client handles rendering and input for a single connection.
type Client struct {
	server       server.GameServer
	handle       *server.ClientHandle
	state        *ClientState
	canvas       *draw.Canvas
	palette      *draw.Palette
	colors       materialColors
	chunkWriter  *draw.ChunkWriter // Accumulates the frame for chunked output
	writer       io.Writer
	inputStream  *input.Stream
	lastInput    time.Time
	termSizeFunc draw.TermSizeFunc
	materials    []physics.MaterialID // Digit 1 selects materials[0]
	worldW       int
	worldH       int
	termWidth    int // Terminal size, for placing the HUD on the last row
	termHeight   int
}

// ClientOptions configures the client.
type ClientOptions struct {
	TermSizeFunc draw.TermSizeFunc
	Username     string
}

// materialColors maps material IDs to palette indices.
type materialColors struct {
	solid   [256]uint8
	preview [256]uint8
	cursor  uint8
	other   uint8
}

// NewClient creates a new client connected to the given server.
func NewClient(gs server.GameServer, r *bufio.Reader, w io.Writer, opts ClientOptions) (*Client, error) {
	termSizeFunc := opts.TermSizeFunc
	if termSizeFunc == nil {
		termSizeFunc = draw.DefaultTermSizeFunc
	}

	reg := gs.Registry()
	palette, colors, err := buildPalette(reg)
	if err != nil {
		return nil, err
	}

	handle, err := gs.RegisterClient(opts.Username)
	if err != nil {
		return nil, err
	}

	snap := gs.GetSnapshot()
	state := NewClientState()
	state.CursorX = snap.Cells.Width() / 2
	state.CursorY = snap.Cells.Height() * 3 / 4

	c := &Client{
		server:       gs,
		handle:       handle,
		state:        state,
		palette:      palette,
		colors:       colors,
		chunkWriter:  draw.NewChunkWriter(w, 0, 0),
		writer:       w,
		lastInput:    time.Now(),
		inputStream:  input.StartStream(r),
		termSizeFunc: termSizeFunc,
		materials:    reg.IDs(),
		worldW:       snap.Cells.Width(),
		worldH:       snap.Cells.Height(),
	}

	termWidth, termHeight, _ := termSizeFunc()
	c.termWidth, c.termHeight = termWidth, termHeight
	cols, rows, offCol, offRow := c.layout(termWidth, termHeight)
	c.canvas = draw.NewCanvas(cols, rows, palette)
	c.canvas.SetOffset(offCol, offRow)
	c.chunkWriter.SetOffset(offCol, offRow)
	c.followCursor()

	return c, nil
}

// buildPalette assigns palette entries to every registered material, plus a
// dimmed preview shade used for the brush outline.
func buildPalette(reg *physics.Registry) (*draw.Palette, materialColors, error) {
	var colors materialColors
	palette, err := draw.NewPalette(config.BackgroundHex)
	if err != nil {
		return nil, colors, err
	}
	for _, id := range reg.IDs() {
		m := reg.Get(id)
		idx, err := palette.Add(m.Color)
		if err != nil {
			return nil, colors, fmt.Errorf("material %s: %w", m.Name, err)
		}
		colors.solid[id] = idx
		if colors.preview[id], err = palette.Shade(idx, -0.6); err != nil {
			return nil, colors, err
		}
	}
	if colors.cursor, err = palette.Add(config.CursorHex); err != nil {
		return nil, colors, err
	}
	if colors.other, err = palette.Add(config.OtherCursorHex); err != nil {
		return nil, colors, err
	}
	eraser, err := palette.Shade(draw.Background, 0.25)
	if err != nil {
		return nil, colors, err
	}
	colors.preview[physics.Empty] = eraser
	return palette, colors, nil
}

// Run starts the client loop. Blocks until the client disconnects or server stops.
func (c *Client) Run() error {
	draw.HideCursor(c.writer)
	draw.EnableMouse(c.writer)
	defer func() {
		draw.DisableMouse(c.writer)
		draw.ShowCursor(c.writer)
	}()
	draw.ClearScreen(c.writer)

	lastTime := time.Now()

	for c.state.Running {
		frameStart := time.Now()
		c.state.delta = frameStart.Sub(lastTime)
		lastTime = frameStart

		c.processInput()
		c.processServerEvents()
		c.updateScreen()
		c.updateTimers()

		if err := c.drawFrame(); err != nil {
			c.server.UnregisterClient(c.handle.ID)
			return err
		}

		// Frame timing
		elapsed := time.Since(frameStart)
		if elapsed < config.ClientTargetFrameTime {
			time.Sleep(config.ClientTargetFrameTime - elapsed)
		}
	}

	// Unregister from server
	c.server.UnregisterClient(c.handle.ID)

	draw.ClearScreen(c.writer)
	return nil
}

// processInput reads input, updates the cursor and forwards edits to the server.
func (c *Client) processInput() {
	c.state.Input = input.ReadInput(c.inputStream)
	in := c.state.Input

	if len(in.Pressed) > 0 {
		c.lastInput = time.Now()
		c.state.isInactive = false
	} else if time.Since(c.lastInput).Seconds() > config.InactivityDisconnectUser {
		c.state.Running = false
	} else if time.Since(c.lastInput).Seconds() > config.InactivityWarnUser {
		c.state.isInactive = true
	}

	if in.Quit {
		c.state.Running = false
		return
	}
	if c.state.Screen == ScreenShutdown {
		return
	}
	c.applyInput(in)
}

// applyInput turns one frame of input into cursor moves, edits and commands.
func (c *Client) applyInput(in input.Input) {
	st := c.state

	switch {
	case in.Help:
		if st.Screen == ScreenHelp {
			st.Screen = ScreenSandbox
		} else {
			st.Screen = ScreenHelp
		}
	case st.Screen == ScreenHelp && len(in.Pressed) > 0:
		st.Screen = ScreenSandbox
	}

	if in.Material == 0 {
		st.Material = physics.Empty
	} else if in.Material > 0 && in.Material <= len(c.materials) {
		st.Material = c.materials[in.Material-1]
	}
	if in.NextBrush {
		st.Brush = st.Brush.Next()
	}
	if in.Bigger {
		st.Brush = st.Brush.Grow(1)
	}
	if in.Smaller {
		st.Brush = st.Brush.Grow(-1)
	}

	for _, cmd := range []struct {
		pressed bool
		cmd     server.Command
	}{
		{in.Pause, server.CommandPause},
		{in.Step, server.CommandStep},
		{in.Clear, server.CommandClear},
		{in.Reset, server.CommandReset},
	} {
		if cmd.pressed {
			c.server.SendCommand(c.handle.ID, cmd.cmd)
		}
	}

	moved := in.DX != 0 || in.DY != 0
	if moved {
		c.moveCursorTo(st.CursorX+in.DX, st.CursorY+in.DY)
	}

	if in.Paint {
		edit := server.Edit{
			FromX: st.CursorX, FromY: st.CursorY,
			X: st.CursorX, Y: st.CursorY,
			Material: st.Material,
			Brush:    st.Brush,
		}
		if st.painting && moved {
			edit.FromX, edit.FromY = st.lastX, st.lastY
			edit.Continue = true
		}
		c.server.SendEdit(c.handle.ID, edit)
		st.lastX, st.lastY = st.CursorX, st.CursorY
	}
	st.painting = in.Paint

	for _, ev := range in.Mouse {
		c.applyMouse(ev)
	}

	if cur := st.cursor(); cur != st.published {
		c.server.MoveCursor(c.handle.ID, server.PlayerView{
			CursorX:  cur.x,
			CursorY:  cur.y,
			Material: cur.material,
			Brush:    cur.brush,
		})
		st.published = cur
	}
}

// applyMouse handles one mouse report. Left paints the selected material,
// right pours water with the plus brush and middle erases.
func (c *Client) applyMouse(ev input.MouseEvent) {
	st := c.state

	switch ev.Button {
	case input.MouseWheelUp:
		st.Brush = st.Brush.Grow(1)
		return
	case input.MouseWheelDown:
		st.Brush = st.Brush.Grow(-1)
		return
	}

	if !ev.Pressed {
		st.dragging = false
		return
	}

	px, py, ok := c.canvas.TerminalToPixel(ev.Col, ev.Row)
	if !ok {
		st.dragging = false
		return
	}
	gx, gy := c.pixelToGrid(px, py)
	c.moveCursorTo(gx, gy)

	var material physics.MaterialID
	var brush tool.Brush
	switch ev.Button {
	case input.MouseLeft:
		material, brush = st.Material, st.Brush
	case input.MouseRight:
		material, brush = physics.Water, tool.Brush{Shape: tool.ShapePlus}
	case input.MouseMiddle:
		material, brush = physics.Empty, st.Brush
	default:
		return // Hover
	}

	edit := server.Edit{
		FromX: st.CursorX, FromY: st.CursorY,
		X: st.CursorX, Y: st.CursorY,
		Material: material,
		Brush:    brush,
	}
	if st.dragging && st.dragButton == ev.Button && ev.Motion {
		edit.FromX, edit.FromY = st.lastX, st.lastY
		edit.Continue = edit.FromX != edit.X || edit.FromY != edit.Y
	}
	c.server.SendEdit(c.handle.ID, edit)

	st.dragging = true
	st.dragButton = ev.Button
	st.lastX, st.lastY = st.CursorX, st.CursorY
}

// moveCursorTo places the cursor inside the world and scrolls the camera to it.
func (c *Client) moveCursorTo(x, y int) {
	c.state.CursorX = min(max(x, 0), c.worldW-1)
	c.state.CursorY = min(max(y, 0), c.worldH-1)
	c.followCursor()
}

// followCursor scrolls the camera so the cursor stays on screen when the
// world is larger than the terminal.
func (c *Client) followCursor() {
	if c.canvas == nil {
		return
	}
	viewW := c.canvas.TerminalWidth()
	viewH := min(c.canvas.PixelHeight(), c.worldH)
	cam := &c.state.Camera

	if c.state.CursorX < cam.X {
		cam.X = c.state.CursorX
	} else if c.state.CursorX >= cam.X+viewW {
		cam.X = c.state.CursorX - viewW + 1
	}
	if c.state.CursorY < cam.Y {
		cam.Y = c.state.CursorY
	} else if c.state.CursorY >= cam.Y+viewH {
		cam.Y = c.state.CursorY - viewH + 1
	}
	cam.X = min(max(cam.X, 0), max(c.worldW-viewW, 0))
	cam.Y = min(max(cam.Y, 0), max(c.worldH-viewH, 0))
}

// pixelToGrid converts a canvas pixel to grid coordinates. The grid is y-up,
// so the bottom pixel row shows the camera's row.
func (c *Client) pixelToGrid(px, py int) (int, int) {
	return c.state.Camera.X + px, c.state.Camera.Y + c.canvas.PixelHeight() - 1 - py
}

// gridToPixel is the inverse of pixelToGrid.
func (c *Client) gridToPixel(gx, gy int) (int, int) {
	return gx - c.state.Camera.X, c.canvas.PixelHeight() - 1 - (gy - c.state.Camera.Y)
}

// processServerEvents handles events from the server.
func (c *Client) processServerEvents() {
	for {
		select {
		case event, ok := <-c.handle.EventsCh:
			if !ok {
				// Server closed the channel
				c.state.Running = false
				return
			}
			switch event.Type {
			case server.EventNotice:
				c.state.notice = event.Text
				c.state.noticeTimer = noticeSeconds
			case server.EventServerShutdown:
				c.state.Screen = ScreenShutdown
				c.state.shutdownTime = config.ShutdownDisplaySeconds
			}
		default:
			return
		}
	}
}

const noticeSeconds = 3.0

func (c *Client) updateTimers() {
	dt := c.state.delta.Seconds()
	if c.state.noticeTimer > 0 {
		c.state.noticeTimer -= dt
		if c.state.noticeTimer <= 0 {
			c.state.notice = ""
		}
	}
	if c.state.Screen == ScreenShutdown {
		c.state.shutdownTime -= dt
		if c.state.shutdownTime <= 0 {
			c.state.Running = false
		}
	}
}

// updateScreen handles terminal resize, clamping the canvas to the world size.
// On actual size changes, clears the terminal to remove residual pixels
// outside the new canvas area (e.g. old borders or offset content).
func (c *Client) updateScreen() {
	termWidth, termHeight, err := c.termSizeFunc()
	if err != nil {
		return
	}
	cols, rows, offCol, offRow := c.layout(termWidth, termHeight)
	c.termWidth, c.termHeight = termWidth, termHeight

	if cols == c.canvas.TerminalWidth() && rows == c.canvas.TerminalHeight() &&
		offCol == c.canvas.OffsetCol() && offRow == c.canvas.OffsetRow() {
		return
	}
	draw.ClearScreen(c.writer)
	c.canvas.Resize(cols, rows)
	c.canvas.SetOffset(offCol, offRow)
	c.chunkWriter.SetOffset(offCol, offRow)
	c.followCursor()
}

// layout fits the world into the terminal, leaving room for the HUD below it,
// and computes the centering offset for the render area.
func (c *Client) layout(termWidth, termHeight int) (cols, rows, offsetCol, offsetRow int) {
	avail := max(termHeight-config.HUDRows, 1)
	termWidth = max(termWidth, 1)

	cols = min(termWidth, c.worldW)
	rows = min(avail, (c.worldH+1)/2)
	offsetCol = (termWidth - cols) / 2
	offsetRow = (avail - rows) / 2
	return
}
