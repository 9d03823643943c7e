// Package loop runs a local sandbox: a server and a single client in one
// process, sharing the terminal the program was started from.
package loop

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tomz197/sandfall/internal/config"
	"github.com/tomz197/sandfall/internal/draw"
	"github.com/tomz197/sandfall/internal/loop/client"
	"github.com/tomz197/sandfall/internal/loop/server"
)

// Options configures a local session.
type Options struct {
	Tuning       config.Tuning
	Logger       *log.Logger
	TermSizeFunc draw.TermSizeFunc // Defaults to the size of os.Stdout
	Username     string
}

// Run builds the world described by opts.Tuning and plays it on w until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, r *bufio.Reader, w io.Writer, opts Options) error {
	srv, err := NewServer(opts.Tuning, opts.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	c, err := client.NewClient(srv, r, w, client.ClientOptions{
		TermSizeFunc: opts.TermSizeFunc,
		Username:     opts.Username,
	})
	if err != nil {
		return err
	}

	return c.Run()
}

// NewServer creates a server for the world described by t.
func NewServer(t config.Tuning, logger *log.Logger) (*server.Server, error) {
	reg, err := t.Registry()
	if err != nil {
		return nil, err
	}
	return server.NewServer(server.Options{
		Width:    t.Width,
		Height:   t.Height,
		Seed:     t.Seed,
		Scene:    t.Scene,
		Registry: reg,
		Logger:   logger,
	})
}
