package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/a2y-d5l/gtpbridge/board"
	"github.com/a2y-d5l/gtpbridge/config"
	"github.com/a2y-d5l/gtpbridge/engine"
	"github.com/a2y-d5l/gtpbridge/gtp"
	"github.com/a2y-d5l/gtpbridge/renderer"
	"github.com/a2y-d5l/gtpbridge/session"
)

var errUnknownCommand = errors.New("unknown command")

const shellHelp = `Lines starting with ':' are local commands; anything else goes to the engine.

  :engines                 list configured engines
  :engine <name>           switch to a configured engine
  :engine <path> [args]    switch to an unconfigured engine
  :analyze [centiseconds]  start continuous analysis (default every 15cs)
  :stop                    stop analysis
  :play <move>             place the next stone, e.g. :play D4
  :board                   show the board
  :new                     start a new game
  :history [clear]         show or clear recent engine output
  :help                    show this help
  :quit                    shut down the engine and exit
`

// shell executes one input line at a time against the session.
type shell struct {
	sess    *session.Session
	cfg     *config.Config
	board   *board.Board
	printer *renderer.Printer
	out     io.Writer

	// mu guards printer and out, which the event loop also uses.
	mu sync.Mutex
}

func newShell(sess *session.Session, cfg *config.Config, out io.Writer) *shell {
	b := board.New(cfg.Variant())
	return &shell{
		sess:  sess,
		cfg:   cfg,
		board: b,
		out:   out,
		printer: &renderer.Printer{
			W:          out,
			Prefix:     cfg.Output.Prefix,
			Timestamps: cfg.Output.Timestamps,
			TopN:       cfg.Output.TopN,
			Height:     b.Size(),
			SkipI:      true,
		},
	}
}

// print renders a session event.
func (sh *shell) print(ev session.Event) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.printer.Print(ev)
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

// handle runs one line and reports whether the shell should exit.
func (sh *shell) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		return false, sh.sess.Send(line)
	}

	fields, err := shellquote.Split(line[1:])
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", line, err)
	}
	if len(fields) == 0 {
		return false, nil
	}

	args := fields[1:]
	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		sh.printf("%s", shellHelp)
	case "engines":
		sh.listEngines()
	case "engine":
		if len(args) == 0 {
			return false, errors.New("usage: :engine <name> | :engine <path> [args]")
		}
		return false, sh.selectEngine(ctx, sh.resolveEngine(args))
	case "analyze":
		return false, sh.analyze(args)
	case "stop":
		return false, sh.sess.Stop()
	case "play":
		if len(args) != 1 {
			return false, errors.New("usage: :play <move>")
		}
		return false, sh.play(args[0])
	case "board":
		sh.printf("%s", sh.board)
	case "new":
		return false, sh.newGame()
	case "history":
		if len(args) == 1 && args[0] == "clear" {
			sh.sess.ClearHistory()
			break
		}
		for _, l := range sh.sess.History() {
			sh.printf("%s\n", l)
		}
	default:
		return false, fmt.Errorf("%w: %s (try :help)", errUnknownCommand, fields[0])
	}
	return false, nil
}

func (sh *shell) listEngines() {
	current, _ := sh.sess.Current()
	for _, name := range sh.cfg.EngineNames() {
		marker := " "
		if name == current.Label() {
			marker = "*"
		}
		sh.printf("%s %s\n", marker, name)
	}
}

// resolveEngine returns the configured engine named args[0], or treats args
// as a path followed by its arguments.
func (sh *shell) resolveEngine(args []string) engine.Config {
	if len(args) == 1 {
		if cfg, ok := sh.cfg.Engine(args[0]); ok {
			return cfg
		}
	}
	return engine.Config{Path: args[0], Args: strings.Join(args[1:], " ")}
}

// selectEngine replaces the current engine and prepares it for the board.
func (sh *shell) selectEngine(ctx context.Context, cfg engine.Config) error {
	if err := sh.sess.Select(ctx, cfg, sh.board.SetupCommands()...); err != nil {
		return err
	}

	sh.mu.Lock()
	sh.printer.Engine = cfg.Label()
	sh.mu.Unlock()

	log.Info().Str("engine", cfg.Label()).Str("board", sh.board.Variant().String()).Msg("engine-selected")
	return nil
}

func (sh *shell) setup() error {
	for _, cmd := range sh.board.SetupCommands() {
		if err := sh.sess.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// analyze starts analysis, at the default interval unless args names one.
func (sh *shell) analyze(args []string) error {
	switch len(args) {
	case 0:
		return sh.sess.Analyze()
	case 1:
		cs, err := strconv.Atoi(args[0])
		if err != nil || cs <= 0 {
			return fmt.Errorf("analyze interval %q: want a positive number of centiseconds", args[0])
		}
		return sh.sess.Send(gtp.AnalyzeEvery(cs))
	default:
		return errors.New("usage: :analyze [centiseconds]")
	}
}

func (sh *shell) play(move string) error {
	if _, ok := sh.sess.Current(); !ok {
		return session.ErrNoEngine
	}
	cmd, ok := sh.board.PlayMove(move)
	if !ok {
		return fmt.Errorf("cannot play %q on this board", move)
	}
	sh.sess.NewGame()
	return sh.sess.Send(cmd)
}

func (sh *shell) newGame() error {
	sh.board.Reset()
	sh.sess.NewGame()
	if _, ok := sh.sess.Current(); !ok {
		return nil
	}
	return sh.setup()
}
