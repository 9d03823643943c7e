package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tomz197/sandfall/internal/loop/config"
	"github.com/tomz197/sandfall/internal/loop/timestep"
	"github.com/tomz197/sandfall/internal/physics"
	"github.com/tomz197/sandfall/internal/scene"
)

// ErrServerFull is returned by RegisterClient when MaxPlayers are connected.
var ErrServerFull = errors.New("server full")

// GameServer is the interface clients use to communicate with the sandbox server.
// Decouples the Client from the concrete Server implementation, enabling
// testing and potential network-based server implementations.
type GameServer interface {
	RegisterClient(username string) (*ClientHandle, error)
	UnregisterClient(clientID int)
	SendEdit(clientID int, edit Edit)
	SendCommand(clientID int, cmd Command)
	MoveCursor(clientID int, view PlayerView)
	GetSnapshot() *WorldSnapshot
	Registry() *physics.Registry
}

// Server owns the grid and the step engine. Only the Run goroutine touches
// them; clients talk to it through channels and read published snapshots.
type Server struct {
	log *log.Logger

	grid   *physics.Grid
	engine *physics.Engine
	reg    *physics.Registry
	rng    physics.Rand // Simulation stream: engine and emitters
	editRN physics.Rand // Brush stream, kept apart so edits never shift the simulation draws
	scene  scene.Scene
	clock  *timestep.Accumulator

	paused bool
	dirty  bool // Grid changed since the last snapshot

	snapshot     atomic.Pointer[WorldSnapshot]
	clients      map[int]*ClientHandle
	seats        map[int]struct{} // Joined or joining client IDs, caps the player count
	nextClientID int
	msgCh        chan clientMsg
	registerCh   chan *ClientHandle
	unregisterCh chan int
	mu           sync.RWMutex
}

// Compile-time check that Server implements GameServer.
var _ GameServer = (*Server)(nil)

// ClientHandle represents a client's connection to the server.
type ClientHandle struct {
	ID       int
	Username string
	EventsCh chan ClientEvent // Events sent to client (notices, shutdown)

	view    PlayerView
	painted int // Cells written by this client's brushes
}

// ClientEvent represents an event sent from server to client.
type ClientEvent struct {
	Type ClientEventType
	Text string
}

// ClientEventType identifies the type of client event.
type ClientEventType int

const (
	EventNotice ClientEventType = iota
	EventServerShutdown
)

// Options configures a Server.
type Options struct {
	Width    int
	Height   int
	Seed     uint64
	Scene    string
	Registry *physics.Registry // Defaults to the built-in materials
	Logger   *log.Logger       // Defaults to a discarding logger
	TickTime time.Duration     // Defaults to config.ServerTickTime
}

// NewServer creates a sandbox server with the scene already built.
func NewServer(opts Options) (*Server, error) {
	reg := opts.Registry
	if reg == nil {
		var err error
		if reg, err = physics.NewRegistry(physics.DefaultTuning()); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	tick := opts.TickTime
	if tick <= 0 {
		tick = config.ServerTickTime
	}
	sceneName := opts.Scene
	if sceneName == "" {
		sceneName = "basin"
	}
	sc, err := scene.Lookup(sceneName)
	if err != nil {
		return nil, err
	}
	grid, err := physics.NewGrid(opts.Width, opts.Height)
	if err != nil {
		return nil, fmt.Errorf("new server: %w", err)
	}

	rng := physics.NewRand(opts.Seed)
	s := &Server{
		log:          logger,
		grid:         grid,
		engine:       physics.NewEngine(grid, reg, rng),
		reg:          reg,
		rng:          rng,
		editRN:       physics.NewRand(opts.Seed + 1),
		scene:        sc,
		clock:        timestep.New(tick, config.MaxTicksPerFrame),
		clients:      make(map[int]*ClientHandle),
		seats:        make(map[int]struct{}),
		nextClientID: 1,
		msgCh:        make(chan clientMsg, config.EditQueueSize),
		registerCh:   make(chan *ClientHandle, config.MaxPlayers),
		unregisterCh: make(chan int, 16),
	}
	sc.Apply(grid, rng)
	s.dirty = true
	s.createSnapshot()

	logger.Info("world ready", "width", opts.Width, "height", opts.Height,
		"scene", sc.Name, "seed", opts.Seed, "materials", reg.Len())
	return s, nil
}

// Run starts the server loop. Blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) {
	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frameStart := time.Now()
		s.frame(frameStart.Sub(lastTime))
		lastTime = frameStart

		// Sleep until the next tick is due
		if wait := s.clock.UntilNext() - time.Since(frameStart); wait > 0 {
			time.Sleep(wait)
		}
	}
}

// frame runs one wake-up of the loop: client bookkeeping, queued requests,
// due ticks, then a fresh snapshot if anything changed.
func (s *Server) frame(elapsed time.Duration) {
	s.processRegistrations()
	s.applyMessages()

	due := s.clock.Advance(elapsed)
	if s.paused {
		s.clock.Reset()
		due = 0
	}
	for i := 0; i < due; i++ {
		s.tick()
	}

	s.createSnapshot()
}

func (s *Server) tick() {
	s.scene.Emit(s.grid, s.rng)
	s.engine.Tick()
	s.dirty = true
}

// Shutdown gracefully shuts down the server by notifying all connected clients
// and waiting for them to disconnect (up to the given timeout).
// The caller should cancel the server context after Shutdown returns.
func (s *Server) Shutdown(timeout time.Duration) {
	s.broadcast(ClientEvent{Type: EventServerShutdown})

	// Wait for all clients to disconnect, or timeout
	deadline := time.After(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			s.log.Warn("shutdown timed out", "remaining", s.clientCount())
			return
		case <-ticker.C:
			if s.clientCount() == 0 {
				return
			}
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcast(ev ClientEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, handle := range s.clients {
		select {
		case handle.EventsCh <- ev:
		default:
		}
	}
}

// RegisterClient registers a new client with the given username and returns its handle.
func (s *Server) RegisterClient(username string) (*ClientHandle, error) {
	s.mu.Lock()
	if len(s.seats) >= config.MaxPlayers {
		s.mu.Unlock()
		return nil, ErrServerFull
	}
	id := s.nextClientID
	s.nextClientID++
	s.seats[id] = struct{}{}
	s.mu.Unlock()

	if username == "" {
		username = fmt.Sprintf("player%d", id)
	}
	if r := []rune(username); len(r) > config.MaxUsernameLength {
		username = string(r[:config.MaxUsernameLength])
	}

	handle := &ClientHandle{
		ID:       id,
		Username: username,
		EventsCh: make(chan ClientEvent, config.ClientEventSize),
		view: PlayerView{
			ID:       id,
			Username: username,
			CursorX:  s.grid.Width() / 2,
			CursorY:  s.grid.Height() * 3 / 4,
			Material: physics.Sand,
		},
	}

	s.registerCh <- handle
	return handle, nil
}

// UnregisterClient removes a client from the server.
func (s *Server) UnregisterClient(clientID int) {
	s.mu.Lock()
	delete(s.seats, clientID)
	s.mu.Unlock()
	s.unregisterCh <- clientID
}

// SendEdit queues a brush stroke. Edits are dropped when the queue is full.
func (s *Server) SendEdit(clientID int, edit Edit) {
	s.send(clientMsg{clientID: clientID, kind: msgEdit, edit: edit})
}

// SendCommand queues a world control request.
func (s *Server) SendCommand(clientID int, cmd Command) {
	s.send(clientMsg{clientID: clientID, kind: msgCommand, command: cmd})
}

// MoveCursor publishes the client's cursor, material and brush to other players.
// The ID and Username fields of view are ignored.
func (s *Server) MoveCursor(clientID int, view PlayerView) {
	s.send(clientMsg{clientID: clientID, kind: msgCursor, x: view.CursorX, y: view.CursorY,
		material: view.Material, brush: view.Brush})
}

func (s *Server) send(m clientMsg) {
	select {
	case s.msgCh <- m:
	default:
		// Queue full, drop the request
	}
}

// GetSnapshot returns the current world snapshot.
func (s *Server) GetSnapshot() *WorldSnapshot {
	return s.snapshot.Load()
}

// Registry returns the material table shared by every session.
func (s *Server) Registry() *physics.Registry {
	return s.reg
}

// processRegistrations handles pending client registrations/unregistrations.
func (s *Server) processRegistrations() {
	for {
		select {
		case handle := <-s.registerCh:
			s.mu.Lock()
			if _, ok := s.seats[handle.ID]; !ok {
				// Left before the join was processed
				s.mu.Unlock()
				close(handle.EventsCh)
				continue
			}
			s.clients[handle.ID] = handle
			s.mu.Unlock()
			s.dirty = true
			s.log.Info("player joined", "id", handle.ID, "user", handle.Username)
		case clientID := <-s.unregisterCh:
			s.mu.Lock()
			if handle, ok := s.clients[clientID]; ok {
				close(handle.EventsCh)
				delete(s.clients, clientID)
				s.dirty = true
				s.log.Info("player left", "id", clientID, "user", handle.Username, "painted", handle.painted)
			}
			s.mu.Unlock()
		default:
			return
		}
	}
}

// applyMessages drains queued requests in arrival order. They land between
// ticks, so the engine never observes a half-applied edit.
func (s *Server) applyMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case m := <-s.msgCh:
			handle, ok := s.clients[m.clientID]
			if !ok {
				continue
			}
			switch m.kind {
			case msgEdit:
				s.applyEdit(handle, m.edit)
			case msgCommand:
				s.applyCommand(handle, m.command)
			case msgCursor:
				handle.view.CursorX = m.x
				handle.view.CursorY = m.y
				handle.view.Material = m.material
				handle.view.Brush = m.brush
				s.dirty = true
			}
		default:
			return
		}
	}
}

// createSnapshot publishes the world if anything changed since the last one.
func (s *Server) createSnapshot() {
	if !s.dirty {
		return
	}
	s.dirty = false

	s.mu.RLock()
	players := make([]PlayerView, 0, len(s.clients))
	for _, handle := range s.clients {
		players = append(players, handle.view)
	}
	s.mu.RUnlock()
	slices.SortFunc(players, func(a, b PlayerView) int {
		return a.ID - b.ID
	})

	cells := s.grid.Snapshot()
	s.snapshot.Store(&WorldSnapshot{
		Cells:     cells,
		Tick:      s.engine.Ticks(),
		Paused:    s.paused,
		Scene:     s.scene.Name,
		Particles: cells.Count(),
		Stats:     s.engine.Stats(),
		Players:   players,
		Dropped:   s.clock.Dropped(),
	})
}
