package client

import (
	"time"

	"github.com/tomz197/sandfall/internal/input"
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/tool"
)

// Screen represents the session's current overlay.
type Screen int

const (
	ScreenHelp     Screen = iota // Controls overlay shown on connect
	ScreenSandbox                // Plain world view
	ScreenShutdown               // Server is shutting down
)

// Camera is the grid cell shown in the bottom-left corner of the canvas.
type Camera struct {
	X, Y int
}

// ClientState holds per-session state: cursor, tool selection and overlays.
// Each client has its own instance, managed by the Client.
type ClientState struct {
	Input    input.Input
	Screen   Screen
	Camera   Camera
	CursorX  int
	CursorY  int
	Material physics.MaterialID
	Brush    tool.Brush
	Running  bool

	painting   bool // Paint key held on the previous frame
	dragging   bool // A mouse button is held
	dragButton input.MouseButton
	lastX      int // Last stamped position while painting or dragging
	lastY      int

	published    cursorState // Last cursor state sent to the server
	prevScreen   Screen
	delta        time.Duration
	notice       string
	noticeTimer  float64
	shutdownTime float64 // Countdown before auto-disconnect on shutdown
	isInactive   bool
	wasInactive  bool
}

type cursorState struct {
	x, y     int
	material physics.MaterialID
	brush    tool.Brush
}

// NewClientState creates a new initialized client state.
func NewClientState() *ClientState {
	return &ClientState{
		Screen:     ScreenHelp,
		prevScreen: ScreenHelp,
		Material:   physics.Sand,
		Brush:      tool.DefaultBrush(),
		Running:    true,
		published:  cursorState{x: -1, y: -1},
	}
}

func (s *ClientState) cursor() cursorState {
	return cursorState{x: s.CursorX, y: s.CursorY, material: s.Material, brush: s.Brush}
}
