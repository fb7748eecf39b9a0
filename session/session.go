// Package session owns the "current engine" slot of an interactive client.
//
// A Session holds at most one live engine. Selecting another engine shuts the
// current one down completely before the next one starts, so two engine
// processes never overlap. All engines relay into one shared engine.Output
// that the session creates once; Run consumes it, keeps the latest analysis
// batch and a bounded history of everything else, and turns lines into
// events for a renderer.
//
// Quick start:
//
//	s := session.New(session.DefaultConfig())
//	events := make(chan session.Event, 64)
//	go s.Run(ctx, events)
//	if err := s.Select(ctx, engine.Config{Path: "katago", Args: "gtp"}); err != nil {
//	    return err
//	}
//	defer s.Shutdown()
//	_ = s.Analyze()
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/a2y-d5l/gtpbridge/engine"
	"github.com/a2y-d5l/gtpbridge/gtp"
)

const (
	// defaultHistoryLines is the default maximum number of history lines.
	defaultHistoryLines = 1000

	// defaultHistoryBytes is the default maximum size of the history.
	defaultHistoryBytes = 1 << 20

	// outputBuffer is the buffer size of the shared engine output.
	outputBuffer = 256

	// exitBuffer bounds pending exit notices when Run is not consuming.
	exitBuffer = 8
)

// ErrNoEngine is returned when a command is sent while no engine is selected.
var ErrNoEngine = errors.New("session: no engine selected")

// Config holds the session settings. All fields are optional.
type Config struct {
	// HistoryMaxLines bounds the diagnostics history by line count.
	// Zero or negative uses the package default (1000 lines).
	HistoryMaxLines int

	// HistoryMaxBytes bounds the diagnostics history by total size.
	// Zero or negative uses the package default (1MB).
	HistoryMaxBytes int

	// AnalyzeOnStart sends the analysis request once an engine has started
	// and received its setup commands.
	AnalyzeOnStart bool
}

// DefaultConfig returns sensible defaults for Config.
func DefaultConfig() Config {
	return Config{
		HistoryMaxLines: defaultHistoryLines,
		HistoryMaxBytes: defaultHistoryBytes,
		AnalyzeOnStart:  false,
	}
}

// Session is the single slot holding the current engine.
type Session struct {
	out        *engine.Output
	current    *engine.Handle
	history    *History
	analysis   atomic.Pointer[[]gtp.Analysis]
	exits      chan ExitEvent
	engineOpts []engine.Option
	cfg        Config

	// mu serializes engine replacement and shutdown. It is held across the
	// shutdown of the old engine and the start of the new one.
	mu sync.Mutex
}

// New creates an empty session. engineOpts are passed to every engine.Start.
func New(cfg Config, engineOpts ...engine.Option) *Session {
	base := DefaultConfig()
	if cfg.HistoryMaxLines <= 0 {
		cfg.HistoryMaxLines = base.HistoryMaxLines
	}
	if cfg.HistoryMaxBytes <= 0 {
		cfg.HistoryMaxBytes = base.HistoryMaxBytes
	}

	return &Session{
		out:        engine.NewOutput(outputBuffer),
		history:    NewHistory(cfg.HistoryMaxLines, cfg.HistoryMaxBytes),
		exits:      make(chan ExitEvent, exitBuffer),
		engineOpts: engineOpts,
		cfg:        cfg,
	}
}

// Select replaces the current engine with a new one started from cfg and
// sends it the setup commands, in order.
//
// The previous engine's shutdown completes before the new process starts.
// Lines the previous engine relayed but Run has not consumed are discarded,
// and its analysis is forgotten. With AnalyzeOnStart the analysis request
// follows the setup commands, since any later command would interrupt it.
// If the new engine fails to start the slot is left empty and the error
// (wrapping engine.ErrSpawn) is returned.
func (s *Session) Select(ctx context.Context, cfg engine.Config, setup ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		old := s.current
		s.current = nil
		_ = old.Shutdown()
		if n := s.discardPending(); n > 0 {
			log.Debug().Str("engine", old.Config().Label()).Int("lines", n).Msg("stale-output-discarded")
		}
		s.NewGame()
	}

	h, err := engine.Start(ctx, cfg, s.out, s.engineOpts...)
	if err != nil {
		log.Err(err).Str("engine", cfg.Label()).Msg("engine-select-failed")
		return fmt.Errorf("select %s: %w", cfg.Label(), err)
	}
	s.current = h
	go s.watch(h)

	for _, cmd := range setup {
		if err := h.Send(cmd); err != nil {
			return err
		}
	}
	if s.cfg.AnalyzeOnStart {
		if err := h.SendAnalyzeRequest(); err != nil {
			log.Warn().Err(err).Str("engine", cfg.Label()).Msg("analyze-on-start-failed")
		}
	}
	return nil
}

// discardPending empties the shared output without blocking. The old
// engine's readers have exited, so nothing refills it until the next Start.
func (s *Session) discardPending() int {
	n := 0
	for {
		select {
		case <-s.out.Lines():
			n++
		default:
			return n
		}
	}
}

// watch reports the exit of h to Run.
func (s *Session) watch(h *engine.Handle) {
	<-h.Done()
	ev := ExitEvent{Engine: h.Config().Label(), Err: h.ExitErr()}
	select {
	case s.exits <- ev:
	default:
		log.Debug().Str("engine", ev.Engine).Msg("exit-event-dropped")
	}
}

// Current returns the configuration of the current engine.
func (s *Session) Current() (engine.Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return engine.Config{}, false
	}
	return s.current.Config(), true
}

// Send forwards text to the current engine.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()

	if h == nil {
		return ErrNoEngine
	}
	return h.Send(text)
}

// Analyze asks the current engine for continuous analysis.
func (s *Session) Analyze() error {
	return s.Send(gtp.AnalyzeCommand)
}

// Stop asks the current engine to stop analysing.
func (s *Session) Stop() error {
	return s.Send(gtp.StopCommand)
}

// Shutdown takes the current engine out of the slot and shuts it down.
// Calling it on an empty session is a no-op.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	h := s.current
	s.current = nil
	return h.Shutdown()
}

// Analysis returns the most recent analysis batch, or nil. The slice is
// shared and must not be modified.
func (s *Session) Analysis() []gtp.Analysis {
	if p := s.analysis.Load(); p != nil {
		return *p
	}
	return nil
}

// NewGame forgets the analysis of the previous position.
func (s *Session) NewGame() {
	s.analysis.Store(nil)
}

// ClearHistory drops the retained non-analysis lines.
func (s *Session) ClearHistory() {
	s.history.Reset()
}

// History returns the retained non-analysis lines, oldest first.
func (s *Session) History() []string {
	return s.history.Lines()
}

// Run consumes the shared engine output until ctx is cancelled, then closes
// events.
//
// Line handling:
//   - Analysis lines replace the analysis snapshot and emit AnalysisEvent
//   - A finished-board line sends the stop command and emits WarningEvent
//   - Every other line is kept in the history and emits LogEvent
//
// Engine exits are emitted as ExitEvent. Run must be called at most once.
func (s *Session) Run(ctx context.Context, events chan<- Event) {
	defer close(events)

	for {
		var ev Event
		select {
		case <-ctx.Done():
			return
		case line := <-s.out.Lines():
			ev = s.handleLine(line)
		case exit := <-s.exits:
			ev = exit
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handleLine(line string) Event {
	kind := gtp.Classify(line)
	switch kind {
	case gtp.LineAnalysis:
		batch := gtp.Decode(line)
		s.analysis.Store(&batch)
		return AnalysisEvent{Batch: batch}

	case gtp.LineFinished:
		s.history.Add(line)
		if err := s.Stop(); err != nil {
			log.Debug().Err(err).Msg("stop-after-finish-failed")
		}
		return WarningEvent{Line: line}

	default:
		s.history.Add(line)
		return LogEvent{Line: line, Kind: kind}
	}
}
