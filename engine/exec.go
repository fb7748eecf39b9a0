package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// DefaultCommandFactory creates real os/exec commands for engine processes.
// This is the production implementation of CommandFactory and is used when
// Start is not given WithCommandFactory.
//
// The factory:
//   - Runs cfg.Path with cfg.Argv() as arguments
//   - Does not modify environment or working directory (uses parent process settings)
//   - Binds the process to ctx: cancelling ctx kills the child
func DefaultCommandFactory(ctx context.Context, cfg Config) (Command, error) {
	return &execCommand{
		cmd: exec.CommandContext(ctx, cfg.Path, cfg.Argv()...),
	}, nil
}

// execCommand wraps exec.Cmd to implement the Command interface.
type execCommand struct {
	cmd *exec.Cmd
}

func (e *execCommand) StdinPipe() (io.WriteCloser, error) {
	return e.cmd.StdinPipe()
}

func (e *execCommand) StdoutPipe() (io.ReadCloser, error) {
	return e.cmd.StdoutPipe()
}

func (e *execCommand) StderrPipe() (io.ReadCloser, error) {
	return e.cmd.StderrPipe()
}

func (e *execCommand) Start() error {
	return e.cmd.Start()
}

func (e *execCommand) Wait() error {
	if e.cmd.Process == nil {
		return errors.New("command not started")
	}
	return e.cmd.Wait()
}

func (e *execCommand) Process() ProcessHandle {
	if e.cmd.Process == nil {
		return nil
	}
	return &processWrapper{proc: e.cmd.Process}
}

// processWrapper wraps os.Process to implement ProcessHandle.
type processWrapper struct {
	proc *os.Process
}

// Signal sends a signal to the process.
func (p *processWrapper) Signal(sig syscall.Signal) error {
	// Use os.Process.Signal for cross-platform compatibility
	return p.proc.Signal(sig)
}

// Kill terminates the process.
func (p *processWrapper) Kill() error {
	return p.proc.Kill()
}

func (p *processWrapper) Pid() int {
	return p.proc.Pid
}
