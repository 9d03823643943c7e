package server

import (
	"fmt"

	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/tool"
)

// applyEdit paints a stroke into the grid. Must be called with lock held.
func (s *Server) applyEdit(handle *ClientHandle, e Edit) {
	if e.Material != physics.Empty && s.reg.Get(e.Material) == nil {
		s.log.Debug("dropping edit with unknown material", "id", handle.ID, "material", e.Material)
		return
	}

	// Clamp both ends so a bogus stroke cannot walk millions of cells.
	fx, fy := s.clampPoint(e.FromX, e.FromY)
	x, y := s.clampPoint(e.X, e.Y)

	n := e.Brush.Stroke(s.grid, fx, fy, x, y, physics.NewCell(e.Material), s.editRN, e.Continue)
	if n == 0 {
		return
	}
	handle.painted += n
	handle.view.CursorX, handle.view.CursorY = x, y
	s.dirty = true
}

func (s *Server) clampPoint(x, y int) (int, int) {
	m := tool.MaxRadius
	x = min(max(x, -m), s.grid.Width()-1+m)
	y = min(max(y, -m), s.grid.Height()-1+m)
	return x, y
}

// applyCommand runs a world control request. Must be called with lock held.
func (s *Server) applyCommand(handle *ClientHandle, cmd Command) {
	switch cmd {
	case CommandPause:
		s.paused = !s.paused
		s.clock.Reset()
		if s.paused {
			s.notifyLocked(fmt.Sprintf("%s paused the world", handle.Username))
		} else {
			s.notifyLocked(fmt.Sprintf("%s resumed the world", handle.Username))
		}
	case CommandStep:
		if !s.paused {
			return
		}
		s.tick()
	case CommandClear:
		s.grid.Clear()
		s.notifyLocked(fmt.Sprintf("%s cleared the world", handle.Username))
	case CommandReset:
		s.scene.Apply(s.grid, s.rng)
		s.notifyLocked(fmt.Sprintf("%s reset the %s scene", handle.Username, s.scene.Name))
	default:
		return
	}
	s.dirty = true
	s.log.Info("command", "cmd", cmd, "id", handle.ID, "user", handle.Username)
}

// notifyLocked sends a notice to every client. Must be called with lock held.
func (s *Server) notifyLocked(text string) {
	for _, handle := range s.clients {
		select {
		case handle.EventsCh <- ClientEvent{Type: EventNotice, Text: text}:
		default:
		}
	}
}
