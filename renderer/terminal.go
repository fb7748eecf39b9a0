package renderer

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/mattn/go-isatty"
)

// FormatExitError formats an engine exit error into a human-readable string.
//
// Return values:
//   - "ok": Process exited successfully (err == nil)
//   - "error: <msg>": Generic error (not an exec.ExitError)
//   - "exit code N": Process exited with code N
//   - "killed by signal SIG (exit code N)": Process was terminated by signal
//
// Engines stopped by the session normally report "killed by signal".
func FormatExitError(err error) string {
	if err == nil {
		return "ok"
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Sprintf("error: %v", err)
	}

	exitCode := exitErr.ExitCode()
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return fmt.Sprintf("killed by signal %v (exit code %d)", status.Signal(), exitCode)
	}
	return fmt.Sprintf("exit code %d", exitCode)
}

// IsTerminal reports whether f is attached to a terminal, including Cygwin
// and MSYS pseudo terminals.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
