// Package engine runs one external analysis engine as a child process and
// bridges its standard streams to Go values. It knows nothing about boards
// or rendering; it moves lines of text in both directions.
//
// The engine handles:
//   - Process creation from an executable path and a whitespace-split argument string
//   - A single writer goroutine that delivers commands to stdin in send order
//   - Two reader goroutines that relay stdout and stderr lines to one shared Output
//   - An ordered, idempotent shutdown (stop writer → SIGTERM → kill → join)
//
// Basic usage:
//
//	out := engine.NewOutput(128)
//	h, err := engine.Start(ctx, engine.Config{
//	    Name: "katago",
//	    Path: "/usr/local/bin/katago",
//	    Args: "gtp -config analysis.cfg",
//	}, out)
//	if err != nil {
//	    return err
//	}
//	defer h.Shutdown()
//
//	_ = h.SendAnalyzeRequest()
//	for line := range out.Lines() {
//	    fmt.Println(line)
//	}
package engine

import (
	"io"
	"strings"
	"syscall"
)

// Config describes how to launch an engine executable.
// A Config is read once by Start; changing it afterwards has no effect on a
// running engine.
//
// Example:
//
//	cfg := engine.Config{
//	    Name: "KataGo 1.15",
//	    Path: "/opt/katago/katago",
//	    Args: "gtp -model b18.bin.gz -config gtp.cfg",
//	}
type Config struct {
	// Name is the display name shown to the user. It is not passed to the process.
	Name string `mapstructure:"name"`

	// Path is the executable to run, either absolute or a name found in PATH.
	Path string `mapstructure:"path"`

	// Args is the argument string. It is split on runs of whitespace into
	// discrete arguments; there is no shell quoting.
	Args string `mapstructure:"args"`
}

// Argv returns Args split on whitespace.
func (c Config) Argv() []string {
	return strings.Fields(c.Args)
}

// Label returns Name, or Path when Name is empty.
func (c Config) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Path
}

// Command is an abstraction over os/exec.Cmd to enable testing and alternative
// implementations. It represents a runnable command whose three standard
// streams are all pipes.
//
// The standard implementation wraps os/exec.Cmd (see DefaultCommandFactory).
type Command interface {
	// StdinPipe returns the write end of the command's standard input.
	// This must be called before Start().
	StdinPipe() (io.WriteCloser, error)

	// StdoutPipe returns a reader for the command's standard output.
	// This must be called before Start().
	// The pipe will be closed automatically when Wait returns.
	StdoutPipe() (io.ReadCloser, error)

	// StderrPipe returns a reader for the command's standard error.
	// This must be called before Start().
	// The pipe will be closed automatically when Wait returns.
	StderrPipe() (io.ReadCloser, error)

	// Start begins execution of the command without waiting for it to complete.
	// It returns an error if the executable cannot be launched.
	Start() error

	// Wait waits for the command to exit and returns its exit status.
	// It is only called after both output pipes have been read to EOF.
	Wait() error

	// Process returns the underlying process handle, if available.
	// May return nil if the process has not been started.
	Process() ProcessHandle
}

// ProcessHandle is an abstraction over os.Process for signal handling.
type ProcessHandle interface {
	// Signal sends the specified signal to the process.
	// Shutdown uses syscall.SIGTERM to request graceful termination.
	Signal(sig syscall.Signal) error

	// Kill forcefully terminates the process.
	Kill() error

	// Pid returns the operating system process id.
	Pid() int
}
