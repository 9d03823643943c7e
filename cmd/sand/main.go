package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tomz197/sandfall/internal/config"
	"github.com/tomz197/sandfall/internal/draw"
	"github.com/tomz197/sandfall/internal/loop"
	"golang.org/x/term"
)

func main() {
	tuningPath := flag.String("tuning", config.GetEnv("SANDFALL_TUNING", ""), "tuning file (INI)")
	scene := flag.String("scene", "", "starting scene, overrides the tuning file")
	seed := flag.Uint64("seed", 0, "random seed, 0 picks one from the clock")
	logPath := flag.String("log", "", "write logs to this file")
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

	// The terminal belongs to the game, so logs only go to a file.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.NewWithOptions(logOut, log.Options{ReportTimestamp: true, Prefix: "sand"})

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to enable raw mode: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}

	draw.EnterAltScreen(os.Stdout)
	reader := bufio.NewReader(os.Stdin)
	err = loop.Run(context.Background(), reader, os.Stdout, loop.Options{
		Tuning:   tuning,
		Logger:   logger,
		Username: name,
	})
	draw.LeaveAltScreen(os.Stdout)
	if err != nil {
		_ = term.Restore(fd, oldState)
		logger.Error("session ended", "err", err)
		fmt.Fprintf(os.Stderr, "sandbox error: %v\n", err)
		os.Exit(1)
	}
}
