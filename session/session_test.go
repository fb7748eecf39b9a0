package session_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/gtpbridge/engine"
	"github.com/a2y-d5l/gtpbridge/gtp"
	"github.com/a2y-d5l/gtpbridge/session"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// fakeEngine is a test double for engine.Command that stays alive until it
// is killed. Tests write engine output with emit.
type fakeEngine struct {
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	killed  chan struct{}
	stdin   bytes.Buffer
	name    string
	mu      sync.Mutex
	once    sync.Once
}

func newFakeEngine(name string) *fakeEngine {
	r, w := io.Pipe()
	return &fakeEngine{name: name, stdoutR: r, stdoutW: w, killed: make(chan struct{})}
}

func (f *fakeEngine) emit(t *testing.T, line string) {
	t.Helper()
	_, err := fmt.Fprintln(f.stdoutW, line)
	require.NoError(t, err)
}

func (f *fakeEngine) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stdin.String()
}

func (f *fakeEngine) isKilled() bool {
	select {
	case <-f.killed:
		return true
	default:
		return false
	}
}

func (f *fakeEngine) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stdin.Write(p)
}

func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) StdinPipe() (io.WriteCloser, error) { return f, nil }

func (f *fakeEngine) StdoutPipe() (io.ReadCloser, error) { return f.stdoutR, nil }

func (f *fakeEngine) StderrPipe() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeEngine) Start() error { return nil }

func (f *fakeEngine) Wait() error {
	<-f.killed
	return errors.New("signal: killed")
}

func (f *fakeEngine) Process() engine.ProcessHandle { return fakeProcess{f} }

type fakeProcess struct {
	f *fakeEngine
}

func (p fakeProcess) Signal(_ syscall.Signal) error { return nil }

func (p fakeProcess) Kill() error {
	p.f.once.Do(func() {
		close(p.f.killed)
		_ = p.f.stdoutW.Close()
	})
	return nil
}

func (p fakeProcess) Pid() int { return 100 }

// fakeFactory hands out one fakeEngine per Start, in order.
type fakeFactory struct {
	started []*fakeEngine
	mu      sync.Mutex
	err     error
}

func (ff *fakeFactory) option() engine.Option {
	return engine.WithCommandFactory(func(_ context.Context, cfg engine.Config) (engine.Command, error) {
		ff.mu.Lock()
		defer ff.mu.Unlock()
		if ff.err != nil {
			return nil, ff.err
		}
		for _, prev := range ff.started {
			if !prev.isKilled() {
				return nil, fmt.Errorf("%s started while %s is alive", cfg.Label(), prev.name)
			}
		}
		f := newFakeEngine(cfg.Label())
		ff.started = append(ff.started, f)
		return f, nil
	})
}

func (ff *fakeFactory) last() *fakeEngine {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.started[len(ff.started)-1]
}

func nextEvent(t *testing.T, events <-chan session.Event) session.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func startRun(t *testing.T, s *session.Session) <-chan session.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events := make(chan session.Event, 16)
	go s.Run(ctx, events)
	return events
}

var katago = engine.Config{Name: "katago", Path: "katago", Args: "gtp"}

func TestSendWithoutEngine(t *testing.T) {
	s := session.New(session.DefaultConfig())

	require.ErrorIs(t, s.Send("showboard"), session.ErrNoEngine)
	require.ErrorIs(t, s.Analyze(), session.ErrNoEngine)
	require.ErrorIs(t, s.Stop(), session.ErrNoEngine)
	require.NoError(t, s.Shutdown())

	_, ok := s.Current()
	require.False(t, ok)
}

func TestSelectForwardsCommands(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	require.NoError(t, s.Select(context.Background(), katago))
	defer s.Shutdown()

	cfg, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "katago", cfg.Name)

	require.NoError(t, s.Send("play B D4"))
	require.NoError(t, s.Analyze())
	require.NoError(t, s.Stop())

	want := "play B D4\n" + gtp.AnalyzeCommand + "\n" + gtp.StopCommand + "\n"
	require.Eventually(t, func() bool {
		return ff.last().written() == want
	}, 2*time.Second, 10*time.Millisecond)
}

// TestSelectReplacesSequentially verifies that the previous engine is fully
// shut down before its replacement starts.
func TestSelectReplacesSequentially(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, s.Select(context.Background(), engine.Config{Name: name, Path: name}))
	}
	require.Len(t, ff.started, 3)
	require.True(t, ff.started[0].isKilled())
	require.True(t, ff.started[1].isKilled())
	require.False(t, ff.started[2].isKilled())

	cfg, _ := s.Current()
	require.Equal(t, "third", cfg.Name)

	require.NoError(t, s.Shutdown())
	require.True(t, ff.started[2].isKilled())
}

func TestSelectFailureLeavesSlotEmpty(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	require.NoError(t, s.Select(context.Background(), katago))

	ff.err = errors.New("no such file")
	err := s.Select(context.Background(), engine.Config{Name: "broken", Path: "/missing"})
	require.ErrorIs(t, err, engine.ErrSpawn)
	require.Contains(t, err.Error(), "select broken")

	require.True(t, ff.started[0].isKilled(), "old engine must be shut down before the failed start")
	_, ok := s.Current()
	require.False(t, ok)
	require.ErrorIs(t, s.Send("showboard"), session.ErrNoEngine)
}

func TestAnalyzeOnStart(t *testing.T) {
	ff := &fakeFactory{}
	cfg := session.DefaultConfig()
	cfg.AnalyzeOnStart = true
	s := session.New(cfg, ff.option())
	require.NoError(t, s.Select(context.Background(), katago, "boardsize 19", "clear_board"))
	defer s.Shutdown()

	// The request goes last; any command after it would interrupt analysis.
	want := "boardsize 19\nclear_board\n" + gtp.AnalyzeCommand + "\n"
	require.Eventually(t, func() bool {
		return ff.last().written() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSelectSendsSetupCommands(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	require.NoError(t, s.Select(context.Background(), katago, "boardsize 9", "clear_board"))
	defer s.Shutdown()

	require.Eventually(t, func() bool {
		return ff.last().written() == "boardsize 9\nclear_board\n"
	}, 2*time.Second, 10*time.Millisecond)
}

// TestSelectDiscardsStaleOutput verifies that lines relayed by the previous
// engine but not yet consumed are not reported as the new engine's output.
func TestSelectDiscardsStaleOutput(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	require.NoError(t, s.Select(context.Background(), katago))
	old := ff.last()

	// Once the second write returns, the first line has been relayed.
	old.emit(t, "info move D4 visits 5 order 0")
	old.emit(t, "= old response")

	require.NoError(t, s.Select(context.Background(), engine.Config{Name: "leela", Path: "leelaz"}))
	defer s.Shutdown()
	require.True(t, old.isKilled())

	events := startRun(t, s)
	ff.last().emit(t, "= ")
	require.Equal(t, session.LogEvent{Line: "= ", Kind: gtp.LineResponse}, nextEvent(t, events))
	require.Nil(t, s.Analysis())
	require.Equal(t, []string{"= "}, s.History())
}

func TestSelectClearsAnalysis(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	events := startRun(t, s)
	require.NoError(t, s.Select(context.Background(), katago))
	defer s.Shutdown()

	ff.last().emit(t, "info move Q16 visits 3")
	nextEvent(t, events)
	require.Len(t, s.Analysis(), 1)

	require.NoError(t, s.Select(context.Background(), engine.Config{Name: "leela", Path: "leelaz"}))
	require.Nil(t, s.Analysis())
}

func TestRunRoutesLines(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	events := startRun(t, s)
	require.NoError(t, s.Select(context.Background(), katago))
	defer s.Shutdown()
	f := ff.last()

	f.emit(t, "= ")
	ev := nextEvent(t, events)
	require.Equal(t, session.LogEvent{Line: "= ", Kind: gtp.LineResponse}, ev)

	f.emit(t, "info move D4 visits 10 winrate 0.5 pv D4 Q16 info move Q16 visits 4 pv Q16")
	ev = nextEvent(t, events)
	analysis, ok := ev.(session.AnalysisEvent)
	require.True(t, ok, "got %T", ev)
	require.Len(t, analysis.Batch, 2)
	require.Equal(t, "D4", analysis.Batch[0].Move)
	require.Equal(t, []string{"D4", "Q16"}, analysis.Batch[0].PV)
	require.Equal(t, uint64(4), analysis.Batch[1].Visits)
	require.Equal(t, analysis.Batch, s.Analysis())

	f.emit(t, "KataGo v1.15.3")
	require.Equal(t, session.LogEvent{Line: "KataGo v1.15.3", Kind: gtp.LineLog}, nextEvent(t, events))

	require.Equal(t, []string{"= ", "KataGo v1.15.3"}, s.History())
}

func TestRunStopsAnalysisOnFinishedBoard(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	events := startRun(t, s)
	require.NoError(t, s.Select(context.Background(), katago))
	defer s.Shutdown()
	f := ff.last()

	f.emit(t, "board already finished")
	require.Equal(t, session.WarningEvent{Line: "board already finished"}, nextEvent(t, events))
	require.Eventually(t, func() bool {
		return f.written() == gtp.StopCommand+"\n"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunEmitsExitEvent(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	events := startRun(t, s)
	require.NoError(t, s.Select(context.Background(), katago))

	require.NoError(t, s.Shutdown())
	ev := nextEvent(t, events)
	exit, ok := ev.(session.ExitEvent)
	require.True(t, ok, "got %T", ev)
	require.Equal(t, "katago", exit.Engine)
	require.EqualError(t, exit.Err, "signal: killed")

	require.NoError(t, s.Shutdown())
}

func TestRunClosesEventsOnCancel(t *testing.T) {
	s := session.New(session.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan session.Event)

	done := make(chan struct{})
	go func() {
		s.Run(ctx, events)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	_, ok := <-events
	require.False(t, ok)
}

func TestNewGameClearsAnalysis(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	events := startRun(t, s)
	require.NoError(t, s.Select(context.Background(), katago))
	defer s.Shutdown()

	ff.last().emit(t, "info move K10 visits 1")
	nextEvent(t, events)
	require.Len(t, s.Analysis(), 1)

	s.NewGame()
	require.Nil(t, s.Analysis())
}

func TestClearHistory(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	events := startRun(t, s)
	require.NoError(t, s.Select(context.Background(), katago))
	defer s.Shutdown()

	ff.last().emit(t, "KataGo v1.15.3")
	nextEvent(t, events)
	require.Equal(t, []string{"KataGo v1.15.3"}, s.History())

	s.ClearHistory()
	require.Empty(t, s.History())

	ff.last().emit(t, "= ")
	nextEvent(t, events)
	require.Equal(t, []string{"= "}, s.History())
}

func TestConcurrentSendAndSelect(t *testing.T) {
	ff := &fakeFactory{}
	s := session.New(session.DefaultConfig(), ff.option())
	require.NoError(t, s.Select(context.Background(), katago))

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 50 {
				err := s.Send("showboard")
				if err != nil && !errors.Is(err, engine.ErrSend) {
					t.Errorf("unexpected send error: %v", err)
				}
			}
		})
	}
	wg.Go(func() {
		for i := range 5 {
			if err := s.Select(context.Background(), engine.Config{Path: fmt.Sprintf("e%d", i)}); err != nil {
				t.Errorf("select: %v", err)
			}
		}
	})
	wg.Wait()
	require.NoError(t, s.Shutdown())
}
