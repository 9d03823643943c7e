package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomz197/sandfall/internal/loop/config"
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/scene"
	"github.com/tomz197/sandfall/internal/tool"
)

func newTestServer(t *testing.T, sceneName string) *Server {
	t.Helper()
	s, err := NewServer(Options{Width: 16, Height: 12, Seed: 3, Scene: sceneName})
	require.NoError(t, err)
	return s
}

func join(t *testing.T, s *Server, name string) *ClientHandle {
	t.Helper()
	h, err := s.RegisterClient(name)
	require.NoError(t, err)
	s.frame(0)
	return h
}

func drainEvents(h *ClientHandle) []ClientEvent {
	var out []ClientEvent
	for {
		select {
		case ev, ok := <-h.EventsCh:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNewServerValidatesOptions(t *testing.T) {
	_, err := NewServer(Options{Width: 0, Height: 10})
	assert.ErrorIs(t, err, physics.ErrInvalidSize)

	_, err = NewServer(Options{Width: 10, Height: 10, Scene: "volcano"})
	assert.ErrorIs(t, err, scene.ErrUnknownScene)
}

func TestInitialSnapshotHoldsScene(t *testing.T) {
	s := newTestServer(t, "basin")
	snap := s.GetSnapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "basin", snap.Scene)
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Equal(t, physics.Solid, snap.Cells.At(0, 0).Material)
	assert.Equal(t, snap.Cells.Count(), snap.Particles)
	assert.Empty(t, snap.Players)
}

func TestRegisterClientPublishesPlayer(t *testing.T) {
	s := newTestServer(t, "empty")
	a := join(t, s, "alice")
	b := join(t, s, "")

	snap := s.GetSnapshot()
	require.Len(t, snap.Players, 2)
	assert.Equal(t, a.ID, snap.Players[0].ID)
	assert.Equal(t, "alice", snap.Players[0].Username)
	assert.Equal(t, "player2", b.Username)

	long, err := s.RegisterClient("a-very-long-username-indeed")
	require.NoError(t, err)
	assert.Len(t, []rune(long.Username), config.MaxUsernameLength)

	s.UnregisterClient(a.ID)
	s.frame(0)
	require.Len(t, s.GetSnapshot().Players, 2)
	_, open := <-a.EventsCh
	assert.False(t, open, "events channel closed on unregister")
}

func TestEditPaintsBetweenTicks(t *testing.T) {
	s := newTestServer(t, "empty")
	h := join(t, s, "alice")

	s.SendEdit(h.ID, Edit{FromX: 2, FromY: 5, X: 6, Y: 5, Material: physics.Solid, Brush: tool.Brush{}})
	s.frame(0)

	snap := s.GetSnapshot()
	for x := 2; x <= 6; x++ {
		assert.Equal(t, physics.Solid, snap.Cells.At(x, 5).Material, "x=%d", x)
	}
	assert.Equal(t, 5, snap.Particles)
	assert.Equal(t, uint64(0), snap.Tick, "no time passed")
	assert.Equal(t, 6, snap.Players[0].CursorX)
}

func TestEraseAndUnknownMaterial(t *testing.T) {
	s := newTestServer(t, "empty")
	h := join(t, s, "alice")

	s.SendEdit(h.ID, Edit{FromX: 3, FromY: 3, X: 3, Y: 3, Material: physics.Solid, Brush: tool.Brush{Shape: tool.ShapeSquare, Radius: 1}})
	s.frame(0)
	require.Equal(t, 9, s.GetSnapshot().Particles)

	s.SendEdit(h.ID, Edit{FromX: 3, FromY: 3, X: 3, Y: 3, Material: physics.MaterialID(99)})
	s.frame(0)
	assert.Equal(t, 9, s.GetSnapshot().Particles)

	s.SendEdit(h.ID, Edit{FromX: 3, FromY: 3, X: 3, Y: 3, Material: physics.Empty})
	s.frame(0)
	assert.Equal(t, 8, s.GetSnapshot().Particles)
	assert.True(t, s.GetSnapshot().Cells.At(3, 3).IsEmpty())
}

func TestEditsFromUnknownClientsAreIgnored(t *testing.T) {
	s := newTestServer(t, "empty")
	s.SendEdit(42, Edit{FromX: 1, FromY: 1, X: 1, Y: 1, Material: physics.Sand})
	s.frame(0)
	assert.Zero(t, s.GetSnapshot().Particles)
}

func TestFarOffStrokeIsClamped(t *testing.T) {
	s := newTestServer(t, "empty")
	h := join(t, s, "alice")

	s.SendEdit(h.ID, Edit{FromX: -1 << 30, FromY: 4, X: 1 << 30, Y: 4, Material: physics.Solid})
	s.frame(0)
	assert.Equal(t, 16, s.GetSnapshot().Particles)
}

func TestTicksFollowElapsedTime(t *testing.T) {
	s := newTestServer(t, "empty")
	h := join(t, s, "alice")
	s.SendEdit(h.ID, Edit{FromX: 8, FromY: 10, X: 8, Y: 10, Material: physics.Sand})

	s.frame(config.ServerTickTime * 3)
	snap := s.GetSnapshot()
	assert.Equal(t, uint64(3), snap.Tick)
	assert.Equal(t, 1, snap.Particles)

	s.frame(time.Hour)
	snap = s.GetSnapshot()
	assert.Equal(t, uint64(3+config.MaxTicksPerFrame), snap.Tick)
	assert.NotZero(t, snap.Dropped)
}

func TestPauseStepAndResume(t *testing.T) {
	s := newTestServer(t, "empty")
	h := join(t, s, "alice")
	other := join(t, s, "bob")

	s.SendCommand(h.ID, CommandPause)
	s.frame(config.ServerTickTime * 2)
	snap := s.GetSnapshot()
	assert.True(t, snap.Paused)
	assert.Zero(t, snap.Tick)

	events := drainEvents(other)
	require.Len(t, events, 1)
	assert.Equal(t, EventNotice, events[0].Type)
	assert.Equal(t, "alice paused the world", events[0].Text)

	s.SendCommand(h.ID, CommandStep)
	s.frame(0)
	assert.Equal(t, uint64(1), s.GetSnapshot().Tick)

	s.SendCommand(h.ID, CommandPause)
	s.frame(config.ServerTickTime)
	snap = s.GetSnapshot()
	assert.False(t, snap.Paused)
	assert.Equal(t, uint64(2), snap.Tick)

	s.SendCommand(h.ID, CommandStep)
	s.frame(0)
	assert.Equal(t, uint64(2), s.GetSnapshot().Tick, "step only works while paused")
}

func TestClearAndReset(t *testing.T) {
	s := newTestServer(t, "basin")
	h := join(t, s, "alice")
	initial := s.GetSnapshot().Cells.Checksum()

	s.SendCommand(h.ID, CommandClear)
	s.frame(0)
	assert.Zero(t, s.GetSnapshot().Particles)

	s.SendCommand(h.ID, CommandReset)
	s.frame(0)
	assert.Equal(t, initial, s.GetSnapshot().Cells.Checksum())
}

func TestMoveCursorIsVisibleToOthers(t *testing.T) {
	s := newTestServer(t, "empty")
	a := join(t, s, "alice")
	join(t, s, "bob")

	s.MoveCursor(a.ID, PlayerView{CursorX: 4, CursorY: 9, Material: physics.Water, Brush: tool.Brush{Shape: tool.ShapePlus}})
	s.frame(0)

	p := s.GetSnapshot().Players[0]
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, 4, p.CursorX)
	assert.Equal(t, 9, p.CursorY)
	assert.Equal(t, physics.Water, p.Material)
	assert.Equal(t, tool.ShapePlus, p.Brush.Shape)
}

func TestSnapshotIsReusedWhenNothingChanges(t *testing.T) {
	s := newTestServer(t, "empty")
	before := s.GetSnapshot()
	s.frame(0)
	assert.Same(t, before, s.GetSnapshot())
}

func TestSameSeedSameWorld(t *testing.T) {
	run := func() uint64 {
		s, err := NewServer(Options{Width: 24, Height: 18, Seed: 9, Scene: "rain"})
		require.NoError(t, err)
		for i := 0; i < 40; i++ {
			s.frame(config.ServerTickTime)
		}
		return s.GetSnapshot().Cells.Checksum()
	}
	assert.Equal(t, run(), run())
}

func TestServerFull(t *testing.T) {
	s := newTestServer(t, "empty")
	for i := 0; i < config.MaxPlayers; i++ {
		join(t, s, "p")
	}
	_, err := s.RegisterClient("late")
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestConcurrentJoinsRespectPlayerCap(t *testing.T) {
	s := newTestServer(t, "empty")

	var (
		mu       sync.Mutex
		accepted []*ClientHandle
		full     int
		wg       sync.WaitGroup
	)
	for i := 0; i < 3*config.MaxPlayers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.RegisterClient("p")
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrServerFull) {
				full++
				return
			}
			accepted = append(accepted, h)
		}()
	}
	wg.Wait()

	assert.Len(t, accepted, config.MaxPlayers)
	assert.Equal(t, 2*config.MaxPlayers, full)

	s.frame(0)
	assert.Equal(t, config.MaxPlayers, s.clientCount())

	// Leaving frees the seat right away, even before the server catches up.
	s.UnregisterClient(accepted[0].ID)
	_, err := s.RegisterClient("next")
	require.NoError(t, err)
	_, err = s.RegisterClient("late")
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestLeaveBeforeJoinProcessed(t *testing.T) {
	s := newTestServer(t, "empty")
	h, err := s.RegisterClient("ghost")
	require.NoError(t, err)
	s.UnregisterClient(h.ID)
	s.frame(0)

	assert.Zero(t, s.clientCount())
	_, ok := <-h.EventsCh
	assert.False(t, ok, "events channel closed")
}

func TestRunStopsOnCancelAndShutdownNotifies(t *testing.T) {
	s, err := NewServer(Options{Width: 8, Height: 8, Scene: "empty", TickTime: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	h, err := s.RegisterClient("alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(s.GetSnapshot().Players) == 1
	}, time.Second, time.Millisecond)

	go func() {
		ev := <-h.EventsCh
		assert.Equal(t, EventServerShutdown, ev.Type)
		s.UnregisterClient(h.ID)
	}()
	s.Shutdown(2 * time.Second)
	assert.Zero(t, s.clientCount())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
