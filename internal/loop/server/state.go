package server

import (
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/tool"
)

// WorldSnapshot is an immutable snapshot of the world state for rendering.
type WorldSnapshot struct {
	Cells     *physics.Snapshot
	Tick      uint64
	Paused    bool
	Scene     string
	Particles int           // Occupied cells
	Stats     physics.Stats // Counters from the last tick
	Players   []PlayerView  // Ordered by client ID
	Dropped   uint64        // Ticks skipped because the server fell behind
}

// PlayerView is what other sessions see of a connected player.
type PlayerView struct {
	ID       int
	Username string
	CursorX  int
	CursorY  int
	Material physics.MaterialID
	Brush    tool.Brush
}

// Edit is one brush stroke from (FromX, FromY) to (X, Y) in grid coordinates.
// A single click has both ends equal.
type Edit struct {
	FromX, FromY int
	X, Y         int
	Material     physics.MaterialID // Empty erases
	Brush        tool.Brush
	Continue     bool // The stroke continues a drag whose start was already stamped
}

// Command is a world-level control request.
type Command int

const (
	CommandNone Command = iota
	CommandPause        // Toggle pause
	CommandStep         // Advance one tick while paused
	CommandClear        // Empty the grid
	CommandReset        // Rebuild the current scene
)

func (c Command) String() string {
	switch c {
	case CommandPause:
		return "pause"
	case CommandStep:
		return "step"
	case CommandClear:
		return "clear"
	case CommandReset:
		return "reset"
	default:
		return "none"
	}
}

// clientMsg carries one request from a client into the server loop.
type clientMsg struct {
	clientID int
	kind     msgKind
	edit     Edit
	command  Command
	x, y     int
	material physics.MaterialID
	brush    tool.Brush
}

type msgKind int

const (
	msgEdit msgKind = iota
	msgCommand
	msgCursor
)
