package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/logging"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/tomz197/sandfall/internal/config"
	"github.com/tomz197/sandfall/internal/draw"
	"github.com/tomz197/sandfall/internal/loop"
	"github.com/tomz197/sandfall/internal/loop/client"
	"github.com/tomz197/sandfall/internal/loop/server"
)

const (
	defaultHost        = "::"
	defaultPort        = "2222"
	defaultHostKeyPath = "/app/keys/host_key"
)

// Shared sandbox server, used by every SSH session
var (
	sandServer   *server.Server
	cancelServer context.CancelFunc
	serverOnce   sync.Once
	logger       = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "ssh"})
)

func main() {
	host := config.GetEnv("SSH_HOST", defaultHost)
	port := config.GetEnv("SSH_PORT", defaultPort)
	hostKeyPath := config.GetEnv("SSH_HOST_KEY", defaultHostKeyPath)
	tuningPath := config.GetEnv("SANDFALL_TUNING", "")
	statsAddr := config.GetEnv("STATS_ADDR", "")
	shutdownWait := config.GetEnvDuration("SHUTDOWN_WAIT", 15*time.Second)
	if lvl, err := log.ParseLevel(config.GetEnv("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(lvl)
	}
	logger.Info("ssh config", "host", host, "port", port, "hostKeyPath", hostKeyPath, "tuning", tuningPath)

	tuning, err := config.LoadTuning(tuningPath)
	if err != nil {
		logger.Fatal("load tuning", "err", err)
	}
	tuning.Width = config.GetEnvInt("WORLD_WIDTH", tuning.Width)
	tuning.Height = config.GetEnvInt("WORLD_HEIGHT", tuning.Height)
	if tuning.Seed == 0 {
		tuning.Seed = uint64(time.Now().UnixNano())
	}

	// Initialize and start the shared sandbox server
	serverOnce.Do(func() {
		var ctx context.Context
		ctx, cancelServer = context.WithCancel(context.Background())
		sandServer, err = loop.NewServer(tuning, logger.WithPrefix("world"))
		if err != nil {
			logger.Fatal("create world", "err", err)
		}
		go sandServer.Run(ctx)
		logger.Info("sandbox server started")
	})

	var stats *statsview.ViewManager
	if statsAddr != "" {
		// set configurations before calling `statsview.New()` method
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(statsAddr))
		stats = statsview.New()
		go stats.Start()
		logger.Info("runtime stats", "addr", statsAddr)
	}

	opts := []ssh.Option{
		wish.WithAddress(net.JoinHostPort(host, port)),
		wish.WithMiddleware(
			sandMiddleware,
			activeterm.Middleware(),
			logging.Middleware(),
		),
		// Set TCP_NODELAY to reduce latency for cursor input
		ssh.WrapConn(func(ctx ssh.Context, conn net.Conn) net.Conn {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn
		}),
	}

	if hostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(hostKeyPath))
	}

	s, err := wish.NewServer(opts...)
	if err != nil {
		logger.Fatal("failed to create server", "err", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting SSH server", "addr", net.JoinHostPort(host, port))
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-done
	logger.Info("shutting down server")

	// Notify players and wait for them to disconnect before stopping the world
	if sandServer != nil {
		logger.Info("notifying connected players about shutdown")
		sandServer.Shutdown(shutdownWait)
		cancelServer()
		logger.Info("sandbox server stopped")
	}
	if stats != nil {
		stats.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		logger.Fatal("shutdown error", "err", err)
	}
}

// sandMiddleware handles SSH sessions and runs a sandbox client.
func sandMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		pty, winCh, ok := sess.Pty()
		if !ok {
			fmt.Fprintln(sess, "Error: PTY required. Please connect with: ssh -t user@host")
			return
		}

		logger.Info("new session", "user", sess.User(), "term", pty.Term,
			"size", fmt.Sprintf("%dx%d", pty.Window.Width, pty.Window.Height))

		// Create a terminal size tracker that updates on window changes
		sizeTracker := newSizeTracker(pty.Window.Width, pty.Window.Height)

		// Listen for window size changes in a goroutine
		go func() {
			for win := range winCh {
				sizeTracker.update(win.Width, win.Height)
			}
		}()

		reader := bufio.NewReader(sess)
		clientOpts := client.ClientOptions{
			TermSizeFunc: sizeTracker.getSize,
			Username:     sess.User(),
		}

		c, err := client.NewClient(sandServer, reader, sess, clientOpts)
		if errors.Is(err, server.ErrServerFull) {
			fmt.Fprintln(sess, "The sandbox is full, try again in a moment.")
			logger.Warn("session rejected", "user", sess.User(), "err", err)
			return
		}
		if err != nil {
			logger.Error("session setup", "user", sess.User(), "err", err)
			return
		}
		if err := c.Run(); err != nil {
			logger.Error("session error", "user", sess.User(), "err", err)
		}

		logger.Info("session ended", "user", sess.User())
		next(sess)
	}
}

// sizeTracker tracks terminal size from SSH window change events.
type sizeTracker struct {
	mu     sync.RWMutex
	width  int
	height int
}

func newSizeTracker(width, height int) *sizeTracker {
	return &sizeTracker{width: width, height: height}
}

func (s *sizeTracker) update(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

func (s *sizeTracker) getSize() (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height, nil
}

// Ensure sizeTracker.getSize satisfies draw.TermSizeFunc
var _ draw.TermSizeFunc = (*sizeTracker)(nil).getSize
