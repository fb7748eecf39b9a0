package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/a2y-d5l/gtpbridge/config"
	"github.com/a2y-d5l/gtpbridge/renderer"
	"github.com/a2y-d5l/gtpbridge/session"
)

const eventBuffer = 64

func printHelp() {
	fmt.Fprintf(os.Stderr, `gtpbridge - Interactive bridge to a GTP analysis engine

DESCRIPTION:
  Starts one analysis engine (such as KataGo) as a child process and lets you
  talk to it line by line. Analysis output is decoded and summarised; every
  other engine line is printed as is. Switching engines shuts the old one
  down before the new one starts.

USAGE:
  gtpbridge [OPTIONS]

OPTIONS:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
EXAMPLES:
  # Start the engine named in the config file and begin analysing
  gtpbridge -analyze

  # Pick another configured engine and board
  gtpbridge -engine leela -board zhenqi

  # Show debug logs, including every command written to the engine
  gtpbridge -log-level debug

CONFIGURATION:
  Engines are read from $HOME/.config/gtpbridge/config.{yaml,toml,json}, or
  from the file named by -config or GTPBRIDGE_CONFIG. Any scalar setting can
  be overridden with a GTPBRIDGE_ environment variable, e.g.
  GTPBRIDGE_OUTPUT_TIMESTAMPS=true.

  engines:
    - name: katago
      path: /opt/katago/katago
      args: gtp -config gtp.cfg

EXIT CODES:
  0  - Clean exit
  1  - Configuration or startup error
`)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func setupLogging(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	if renderer.IsTerminal(os.Stderr) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run() int {
	configPath := flag.String("config", "", "Path to the config file (default $HOME/.config/gtpbridge/config.*)")
	engineName := flag.String("engine", "", "Name of the configured engine to start")
	boardName := flag.String("board", "", "Board variant: gomoku or zhenqi")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error or disabled")
	analyze := flag.Bool("analyze", false, "Request analysis as soon as the engine starts")
	showTimestamps := flag.Bool("timestamps", false, "Prefix each output line with an RFC3339 timestamp")
	help := flag.Bool("help", false, "Show this help message")

	flag.Parse()

	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gtpbridge: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "engine":
			cfg.Current = *engineName
		case "board":
			cfg.Board = *boardName
		case "log-level":
			cfg.LogLevel = *logLevel
		case "analyze":
			cfg.AnalyzeOnStart = *analyze
		case "timestamps":
			cfg.Output.Timestamps = *showTimestamps
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "gtpbridge: %v\n", err)
		return 1
	}
	setupLogging(cfg.Level())

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		cancel(fmt.Errorf("received signal: %v", sig))
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gtpbridge> ",
		HistoryFile:     filepath.Join(os.TempDir(), "gtpbridge.history"),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		log.Err(err).Msg("readline-init-failed")
		return 1
	}
	defer rl.Close()

	sess := session.New(cfg.Session())
	sh := newShell(sess, &cfg, rl.Stdout())

	events := make(chan session.Event, eventBuffer)
	printed := make(chan struct{})
	go sess.Run(ctx, events)
	go func() {
		defer close(printed)
		for ev := range events {
			sh.print(ev)
		}
	}()

	if selected, ok := cfg.Selected(); ok {
		if err := sh.selectEngine(ctx, selected); err != nil {
			sh.printf("error: %v\n", err)
		}
	} else {
		sh.printf("no engines configured; use :engine <path> [args] (see :help)\n")
	}

	// Readline does not watch ctx; closing it ends a pending Readline call.
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	loop(ctx, rl, sh)

	if err := sess.Shutdown(); err != nil {
		log.Err(err).Msg("session-shutdown-failed")
	}
	cancel(nil)
	<-printed

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		log.Info().Str("cause", cause.Error()).Msg("exiting")
	}
	return 0
}

func loop(ctx context.Context, rl *readline.Instance, sh *shell) {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return
			}
			continue
		} else if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Err(err).Msg("readline-failed")
			}
			return
		}

		quit, err := sh.handle(ctx, line)
		if err != nil {
			sh.printf("error: %v\n", err)
		}
		if quit {
			return
		}
	}
}

func main() {
	os.Exit(run())
}
