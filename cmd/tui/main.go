// Command tui plays a local sandbox on a tcell screen.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/tomz197/sandfall/internal/config"
	"github.com/tomz197/sandfall/internal/loop"
	"github.com/tomz197/sandfall/internal/loop/server"
	"github.com/tomz197/sandfall/internal/tui"
)

func main() {
	tuningPath := flag.String("tuning", config.GetEnv("SANDFALL_TUNING", ""), "tuning file (INI)")
	scene := flag.String("scene", "", "starting scene, overrides the tuning file")
	seed := flag.Uint64("seed", 0, "random seed, 0 picks one from the clock")
	flag.Parse()

	tuning, err := config.LoadTuning(*tuningPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tuning: %v\n", err)
		os.Exit(1)
	}
	if *scene != "" {
		tuning.Scene = *scene
	}
	if *seed != 0 {
		tuning.Seed = *seed
	} else if tuning.Seed == 0 {
		tuning.Seed = uint64(time.Now().UnixNano())
	}

	srv, err := loop.NewServer(tuning, log.New(io.Discard))
	if err != nil {
		fmt.Fprintf(os.Stderr, "world: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.Run(ctx)
	}()

	if err := run(ctx, srv); err != nil {
		stop()
		wg.Wait()
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
	stop()
	wg.Wait()
}

func run(ctx context.Context, srv server.GameServer) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	f, err := tui.New(screen, srv, config.GetEnv("USER", ""))
	if err != nil {
		return err
	}
	return f.Run(ctx)
}
