// Package tui is a sandbox frontend built on a tcell screen. It speaks the
// same GameServer interface as the ANSI client but lets tcell handle the
// terminal: key decoding, native mouse reporting and diffed output.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/tomz197/sandfall/internal/loop/config"
	"github.com/tomz197/sandfall/internal/loop/server"
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/tool"
)

const outsideHex = "#000000"

// Frontend renders the shared world into a tcell screen and turns key and
// mouse events into edits.
type Frontend struct {
	screen tcell.Screen
	server server.GameServer
	handle *server.ClientHandle
	reg    *physics.Registry

	colors  [256]tcell.Color
	preview [256]tcell.Color
	cursor  tcell.Color
	other   tcell.Color
	outside tcell.Color

	materials []physics.MaterialID
	worldW    int
	worldH    int

	camX, camY int
	cursorX    int
	cursorY    int
	material   physics.MaterialID
	brush      tool.Brush
	published  server.PlayerView

	dragButton tcell.ButtonMask
	lastX      int
	lastY      int

	showHelp bool
	notice   string
	noticeAt time.Time
}

// New registers a session on gs that draws into screen. The screen must
// already be initialised; the caller owns it and calls Fini.
func New(screen tcell.Screen, gs server.GameServer, username string) (*Frontend, error) {
	f := &Frontend{
		screen:   screen,
		server:   gs,
		reg:      gs.Registry(),
		material: physics.Sand,
		brush:    tool.DefaultBrush(),
		showHelp: true,
	}
	if err := f.buildColors(); err != nil {
		return nil, err
	}

	handle, err := gs.RegisterClient(username)
	if err != nil {
		return nil, err
	}
	f.handle = handle

	snap := gs.GetSnapshot()
	f.worldW = snap.Cells.Width()
	f.worldH = snap.Cells.Height()
	f.materials = f.reg.IDs()
	f.cursorX = f.worldW / 2
	f.cursorY = f.worldH * 3 / 4
	f.published = server.PlayerView{CursorX: -1, CursorY: -1}
	f.followCursor()
	return f, nil
}

func hexColor(hex string) (tcell.Color, colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return tcell.ColorDefault, c, fmt.Errorf("colour %q: %w", hex, err)
	}
	return rgb(c), c, nil
}

func rgb(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func (f *Frontend) buildColors() error {
	bg, bgc, err := hexColor(config.BackgroundHex)
	if err != nil {
		return err
	}
	f.colors[physics.Empty] = bg
	f.preview[physics.Empty] = rgb(bgc.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.25))

	for _, id := range f.reg.IDs() {
		m := f.reg.Get(id)
		col, c, err := hexColor(m.Color)
		if err != nil {
			return fmt.Errorf("material %s: %w", m.Name, err)
		}
		f.colors[id] = col
		f.preview[id] = rgb(c.BlendLab(colorful.Color{}, 0.6))
	}
	if f.cursor, _, err = hexColor(config.CursorHex); err != nil {
		return err
	}
	if f.other, _, err = hexColor(config.OtherCursorHex); err != nil {
		return err
	}
	f.outside, _, err = hexColor(outsideHex)
	return err
}

// Run processes events and redraws at the client frame rate until the user
// quits, the server shuts down or ctx is cancelled.
func (f *Frontend) Run(ctx context.Context) error {
	f.screen.EnableMouse()
	f.screen.HideCursor()
	defer f.server.UnregisterClient(f.handle.ID)

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := f.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(config.ClientTargetFrameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok || !f.handleEvent(ev) {
				return nil
			}
		case ev, ok := <-f.handle.EventsCh:
			if !ok || ev.Type == server.EventServerShutdown {
				return nil
			}
			f.notice = ev.Text
			f.noticeAt = time.Now()
		case <-ticker.C:
			f.publishCursor()
			f.draw()
		}
	}
}

// handleEvent applies one tcell event. It returns false when the session should end.
func (f *Frontend) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return f.handleKey(ev)
	case *tcell.EventMouse:
		f.handleMouse(ev)
	case *tcell.EventResize:
		f.screen.Sync()
		f.followCursor()
	}
	return true
}

func (f *Frontend) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		f.moveCursor(f.cursorX-1, f.cursorY)
	case tcell.KeyRight:
		f.moveCursor(f.cursorX+1, f.cursorY)
	case tcell.KeyUp:
		f.moveCursor(f.cursorX, f.cursorY+1)
	case tcell.KeyDown:
		f.moveCursor(f.cursorX, f.cursorY-1)
	case tcell.KeyRune:
		return f.handleRune(ev.Rune())
	}
	return true
}

func (f *Frontend) handleRune(r rune) bool {
	if f.showHelp && r != '?' {
		f.showHelp = false
	}
	switch r {
	case 'q':
		return false
	case 'a', 'h':
		f.moveCursor(f.cursorX-1, f.cursorY)
	case 'd', 'l':
		f.moveCursor(f.cursorX+1, f.cursorY)
	case 'w', 'k':
		f.moveCursor(f.cursorX, f.cursorY+1)
	case 's', 'j':
		f.moveCursor(f.cursorX, f.cursorY-1)
	case ' ':
		f.paint(f.cursorX, f.cursorY, f.cursorX, f.cursorY, f.material, f.brush, false)
	case 'b':
		f.brush = f.brush.Next()
	case '+', '=':
		f.brush = f.brush.Grow(1)
	case '-', '_':
		f.brush = f.brush.Grow(-1)
	case 'p':
		f.server.SendCommand(f.handle.ID, server.CommandPause)
	case 'n':
		f.server.SendCommand(f.handle.ID, server.CommandStep)
	case 'c':
		f.server.SendCommand(f.handle.ID, server.CommandClear)
	case 'r':
		f.server.SendCommand(f.handle.ID, server.CommandReset)
	case '?':
		f.showHelp = !f.showHelp
	case '0':
		f.material = physics.Empty
	default:
		if r >= '1' && r <= '9' && int(r-'1') < len(f.materials) {
			f.material = f.materials[r-'1']
		}
	}
	return true
}

// handleMouse paints while a button is held: primary with the selected
// material, secondary pours water with the plus brush, middle erases.
// tcell repeats the held buttons on every motion report, so consecutive
// reports with the same button are joined into one stroke.
func (f *Frontend) handleMouse(ev *tcell.EventMouse) {
	btn := ev.Buttons()
	switch {
	case btn&tcell.WheelUp != 0:
		f.brush = f.brush.Grow(1)
		return
	case btn&tcell.WheelDown != 0:
		f.brush = f.brush.Grow(-1)
		return
	}

	col, row := ev.Position()
	x, y, ok := f.screenToGrid(col, row)
	if !ok {
		f.dragButton = tcell.ButtonNone
		return
	}
	f.showHelp = false
	f.moveCursor(x, y)

	var material physics.MaterialID
	var brush tool.Brush
	switch {
	case btn&tcell.ButtonPrimary != 0:
		btn, material, brush = tcell.ButtonPrimary, f.material, f.brush
	case btn&tcell.ButtonSecondary != 0:
		btn, material, brush = tcell.ButtonSecondary, physics.Water, tool.Brush{Shape: tool.ShapePlus}
	case btn&tcell.ButtonMiddle != 0:
		btn, material, brush = tcell.ButtonMiddle, physics.Empty, f.brush
	default:
		f.dragButton = tcell.ButtonNone
		return
	}

	fromX, fromY, cont := x, y, false
	if f.dragButton == btn && (f.lastX != x || f.lastY != y) {
		fromX, fromY, cont = f.lastX, f.lastY, true
	}
	f.paint(fromX, fromY, x, y, material, brush, cont)
	f.dragButton = btn
}

func (f *Frontend) paint(fromX, fromY, x, y int, material physics.MaterialID, brush tool.Brush, cont bool) {
	f.server.SendEdit(f.handle.ID, server.Edit{
		FromX: fromX, FromY: fromY,
		X: x, Y: y,
		Material: material,
		Brush:    brush,
		Continue: cont,
	})
	f.lastX, f.lastY = x, y
}

func (f *Frontend) publishCursor() {
	view := server.PlayerView{CursorX: f.cursorX, CursorY: f.cursorY, Material: f.material, Brush: f.brush}
	if view != f.published {
		f.server.MoveCursor(f.handle.ID, view)
		f.published = view
	}
}

func (f *Frontend) moveCursor(x, y int) {
	f.cursorX = min(max(x, 0), f.worldW-1)
	f.cursorY = min(max(y, 0), f.worldH-1)
	f.followCursor()
}

// viewSize returns the world area visible on screen: every column and two
// pixel rows per terminal row, minus the status line.
func (f *Frontend) viewSize() (cols, pixelRows int) {
	w, h := f.screen.Size()
	return max(w, 0), max(h-1, 0) * 2
}

func (f *Frontend) followCursor() {
	viewW, viewH := f.viewSize()
	if f.cursorX < f.camX {
		f.camX = f.cursorX
	} else if f.cursorX >= f.camX+viewW {
		f.camX = f.cursorX - viewW + 1
	}
	if f.cursorY < f.camY {
		f.camY = f.cursorY
	} else if f.cursorY >= f.camY+viewH {
		f.camY = f.cursorY - viewH + 1
	}
	f.camX = min(max(f.camX, 0), max(f.worldW-viewW, 0))
	f.camY = min(max(f.camY, 0), max(f.worldH-viewH, 0))
}

// screenToGrid maps a terminal cell to the grid cell shown in its upper half.
func (f *Frontend) screenToGrid(col, row int) (int, int, bool) {
	viewW, viewH := f.viewSize()
	if col < 0 || col >= viewW || row < 0 || row*2 >= viewH {
		return 0, 0, false
	}
	x := f.camX + col
	y := f.camY + viewH - 1 - row*2
	if x >= f.worldW || y < 0 || y >= f.worldH {
		return 0, 0, false
	}
	return x, y, true
}

func (f *Frontend) draw() {
	snap := f.server.GetSnapshot()
	viewW, viewH := f.viewSize()

	marks := make(map[[2]int]tcell.Color)
	for _, p := range snap.Players {
		if p.ID != f.handle.ID {
			marks[[2]int{p.CursorX, p.CursorY}] = f.other
		}
	}
	marks[[2]int{f.cursorX, f.cursorY}] = f.cursor
	preview := make(map[[2]int]bool)
	if !f.showHelp {
		f.brush.Footprint(func(dx, dy int) {
			preview[[2]int{f.cursorX + dx, f.cursorY + dy}] = true
		})
	}

	color := func(px, py int) tcell.Color {
		x, y := f.camX+px, f.camY+viewH-1-py
		if x < 0 || y < 0 || x >= f.worldW || y >= f.worldH {
			return f.outside
		}
		if c, ok := marks[[2]int{x, y}]; ok {
			return c
		}
		cell := snap.Cells.At(x, y)
		if cell.IsEmpty() && preview[[2]int{x, y}] {
			return f.preview[f.material]
		}
		return f.colors[cell.Material]
	}

	for row := 0; row*2 < viewH; row++ {
		for col := 0; col < viewW; col++ {
			style := tcell.StyleDefault.Foreground(color(col, row*2)).Background(color(col, row*2+1))
			f.screen.SetContent(col, row, '▀', nil, style)
		}
	}

	for _, p := range snap.Players {
		if p.ID == f.handle.ID {
			continue
		}
		col := p.CursorX - f.camX - len(p.Username)/2
		row := (viewH-1-(p.CursorY-f.camY))/2 - 1
		if row >= 0 && row*2 < viewH && col >= 0 && col+len(p.Username) <= viewW {
			f.drawText(col, row, p.Username, tcell.StyleDefault.Foreground(f.other))
		}
	}

	f.drawStatus(snap, viewW, viewH/2)
	if f.showHelp {
		f.drawHelp(viewW, viewH/2)
	}
	f.screen.Show()
}

func (f *Frontend) drawStatus(snap *server.WorldSnapshot, width, row int) {
	name := "eraser"
	if m := f.reg.Get(f.material); m != nil {
		name = m.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s | tick %d | %d cells | %d players",
		name, f.brush, snap.Tick, snap.Particles, len(snap.Players))
	if snap.Paused {
		b.WriteString(" | PAUSED")
	}
	if f.notice != "" && time.Since(f.noticeAt) < 3*time.Second {
		b.WriteString(" | ")
		b.WriteString(f.notice)
	}

	swatch := f.colors[f.material]
	if f.material == physics.Empty {
		swatch = f.preview[physics.Empty]
	}
	f.screen.SetContent(0, row, '█', nil, tcell.StyleDefault.Foreground(swatch))
	f.screen.SetContent(1, row, '█', nil, tcell.StyleDefault.Foreground(swatch))
	f.screen.SetContent(2, row, ' ', nil, tcell.StyleDefault)

	text := []rune(b.String())
	for col := 3; col < width; col++ {
		r := ' '
		if i := col - 3; i < len(text) {
			r = text[i]
		}
		f.screen.SetContent(col, row, r, nil, tcell.StyleDefault)
	}
}

var helpText = []string{
	"SANDFALL",
	"",
	"arrows/wasd move  space paint",
	"1-9 material  0 eraser",
	"mouse: left paint  right water  middle erase",
	"b brush  +/- size  p pause  n step",
	"c clear  r reset  ? help  q quit",
}

func (f *Frontend) drawHelp(width, height int) {
	top := max((height-len(helpText))/2, 0)
	for i, line := range helpText {
		if top+i >= height {
			break
		}
		if len(line) > width {
			line = line[:width]
		}
		f.drawText((width-len(line))/2, top+i, line, tcell.StyleDefault.Reverse(true))
	}
}

func (f *Frontend) drawText(col, row int, s string, style tcell.Style) {
	for _, r := range s {
		f.screen.SetContent(col, row, r, nil, style)
		col++
	}
}
