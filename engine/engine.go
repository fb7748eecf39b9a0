package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/a2y-d5l/gtpbridge/gtp"
)

var (
	// ErrSpawn is returned by Start when the executable cannot be launched
	// or one of its pipes cannot be obtained.
	ErrSpawn = errors.New("engine: spawn failed")

	// ErrSend is returned by Send once the engine is shutting down or its
	// stdin is broken. Callers should treat the engine as unavailable and
	// must not retry.
	ErrSend = errors.New("engine: command queue closed")
)

// Handle is one live engine process.
//
// The command queue is the only way to talk to the process; the pipes and
// the process itself are owned by the handle's goroutines. Call Shutdown
// when done. A Handle that becomes unreachable without Shutdown is shut down
// by the runtime, once.
type Handle struct {
	*process
	cleanup runtime.Cleanup
}

// process holds everything the background goroutines share. It never points
// back at its Handle, which lets the Handle be collected.
type process struct {
	cmd    Command
	queue  *commandQueue
	out    *Output
	cfg    Config
	pid    int
	relay  errgroup.Group
	quit   chan struct{} // closed when shutdown begins
	writer chan struct{} // closed when the dispatcher exits
	exited chan struct{} // closed after both readers finished and Wait returned

	exitErr error
	once    sync.Once
}

// Start launches the engine described by cfg and relays its output to out.
//
// Lifecycle:
//  1. Create command using the CommandFactory (DefaultCommandFactory unless overridden)
//  2. Obtain stdin, stdout and stderr pipes
//  3. Start the process
//  4. Start the command writer and the two output readers
//
// Every failure before step 4 wraps ErrSpawn and leaves nothing running.
//
// Example:
//
//	out := engine.NewOutput(128)
//	h, err := engine.Start(ctx, cfg, out)
//	if errors.Is(err, engine.ErrSpawn) {
//	    // executable missing or not runnable
//	}
func Start(ctx context.Context, cfg Config, out *Output, opts ...Option) (*Handle, error) {
	if out == nil {
		return nil, fmt.Errorf("%w: nil output", ErrSpawn)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: empty executable path", ErrSpawn)
	}
	o := buildOptions(opts)

	cmd, err := o.factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create command: %w", ErrSpawn, err)
	}

	var pipes []io.Closer
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %w", ErrSpawn, err)
	}
	pipes = append(pipes, stdin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		closeAll(pipes)
		return nil, fmt.Errorf("%w: stdout pipe: %w", ErrSpawn, err)
	}
	pipes = append(pipes, stdout)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		closeAll(pipes)
		return nil, fmt.Errorf("%w: stderr pipe: %w", ErrSpawn, err)
	}
	pipes = append(pipes, stderr)

	if startErr := cmd.Start(); startErr != nil {
		closeAll(pipes)
		return nil, fmt.Errorf("%w: start %s: %w", ErrSpawn, cfg.Path, startErr)
	}

	p := &process{
		cmd:    cmd,
		queue:  newCommandQueue(),
		out:    out,
		cfg:    cfg,
		quit:   make(chan struct{}),
		writer: make(chan struct{}),
		exited: make(chan struct{}),
	}
	if proc := cmd.Process(); proc != nil {
		p.pid = proc.Pid()
	}

	log.Info().
		Str("engine", cfg.Label()).
		Str("path", cfg.Path).
		Strs("args", cfg.Argv()).
		Int("pid", p.pid).
		Msg("engine-started")

	go p.writeCommands(stdin)
	p.relay.Go(func() error { return p.relayLines(stdout, "stdout") })
	p.relay.Go(func() error { return p.relayLines(stderr, "stderr") })
	go p.reap()

	h := &Handle{process: p}
	h.cleanup = runtime.AddCleanup(h, func(p *process) {
		// Cleanups share one goroutine; never block it on the joins.
		go p.shutdown()
	}, p)
	return h, nil
}

// Send queues one command for the engine. Surrounding whitespace is trimmed
// and a newline is appended when it is written. Send never blocks.
//
// Commands are written in the order Send is called, across all goroutines.
// After shutdown has begun, or once the engine's stdin has failed, Send
// returns an error wrapping ErrSend.
func (h *Handle) Send(text string) error {
	text = strings.TrimSpace(text)
	if err := h.queue.push(text); err != nil {
		return fmt.Errorf("send %q: %w", text, err)
	}
	return nil
}

// SendAnalyzeRequest asks the engine for continuous analysis of the current
// position (gtp.AnalyzeCommand).
func (h *Handle) SendAnalyzeRequest() error {
	return h.Send(gtp.AnalyzeCommand)
}

// Shutdown stops the engine and waits until every goroutine of the handle has
// exited. It is safe to call more than once and from several goroutines;
// only the first call does any work and later calls wait for it.
//
// Shutdown sequence:
//  1. Queue the writer's stop sentinel
//  2. If the child is still running, send SIGTERM
//  3. Kill the child regardless of step 2
//  4. Wait for the writer goroutine
//  5. Wait for both reader goroutines, then reap the child
//
// Signal and kill failures are logged, not returned.
func (h *Handle) Shutdown() error {
	h.cleanup.Stop()
	h.shutdown()
	return nil
}

// Config returns the configuration the engine was started with.
func (h *Handle) Config() Config {
	return h.cfg
}

// Pid returns the child's process id, or 0 if the command reported none.
func (h *Handle) Pid() int {
	return h.pid
}

// Done is closed once the child has exited and both output streams have
// been drained, whether or not Shutdown was called.
func (h *Handle) Done() <-chan struct{} {
	return h.exited
}

// ExitErr returns the child's exit status. It is only meaningful after Done
// is closed; nil means the process exited with status 0.
func (h *Handle) ExitErr() error {
	select {
	case <-h.exited:
		return h.exitErr
	default:
		return nil
	}
}

func (p *process) shutdown() {
	p.once.Do(func() {
		logger := log.With().Str("engine", p.cfg.Label()).Int("pid", p.pid).Logger()
		logger.Debug().Msg("engine-shutdown-begin")

		p.queue.stop()

		proc := p.cmd.Process()
		select {
		case <-p.exited:
			logger.Debug().Msg("engine-already-exited")
		default:
			if proc != nil {
				if err := proc.Signal(syscall.SIGTERM); err != nil {
					logger.Debug().Err(err).Msg("engine-terminate-failed")
				}
			}
		}
		if proc != nil {
			if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logger.Debug().Err(err).Msg("engine-kill-failed")
			}
		}

		// Readers may be parked on a full Output; release them so they can
		// drain their pipes to EOF.
		close(p.quit)

		<-p.writer
		logger.Debug().Msg("engine-writer-joined")
		<-p.exited
		logger.Info().AnErr("exit", p.exitErr).Msg("engine-stopped")
	})
}

// writeCommands is the only goroutine that touches stdin.
func (p *process) writeCommands(stdin io.WriteCloser) {
	defer close(p.writer)
	defer p.queue.close()
	defer func() {
		if err := stdin.Close(); err != nil {
			log.Debug().Err(err).Str("engine", p.cfg.Label()).Msg("engine-stdin-close")
		}
	}()

	w := bufio.NewWriter(stdin)
	for {
		text, ok := p.queue.pop()
		if !ok {
			return
		}
		if _, err := w.WriteString(text + "\n"); err != nil {
			log.Err(err).Str("engine", p.cfg.Label()).Str("command", text).Msg("engine-write-failed")
			return
		}
		if err := w.Flush(); err != nil {
			log.Err(err).Str("engine", p.cfg.Label()).Str("command", text).Msg("engine-flush-failed")
			return
		}
		log.Debug().Str("engine", p.cfg.Label()).Str("command", text).Msg("engine-command-sent")
	}
}

// relayLines reads one output pipe line by line until EOF or a read error.
func (p *process) relayLines(r io.Reader, stream string) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines.
	buf := make([]byte, 0, scannerInitialBufferSize)
	scanner.Buffer(buf, scannerMaxBufferSize)

	for scanner.Scan() {
		// Normalize line endings for cross-platform compatibility.
		p.forward(strings.TrimRight(scanner.Text(), "\r\n"))
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		log.Debug().Err(err).Str("engine", p.cfg.Label()).Str("stream", stream).Msg("engine-stream-error")
		return fmt.Errorf("%s: %w", stream, err)
	}
	return nil
}

// forward delivers a line unless shutdown has begun, in which case the line
// is dropped so the reader can keep draining its pipe.
func (p *process) forward(line string) {
	select {
	case <-p.quit:
		return
	default:
	}
	select {
	case p.out.lines <- line:
	case <-p.quit:
	}
}

// reap waits for both readers before Wait, which closes the read ends.
func (p *process) reap() {
	if err := p.relay.Wait(); err != nil {
		log.Debug().Err(err).Str("engine", p.cfg.Label()).Msg("engine-relay-ended")
	}
	p.exitErr = p.cmd.Wait()
	close(p.exited)
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
