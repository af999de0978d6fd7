// Package shell runs external commands on behalf of gilt: the git toolchain
// and the user's post-commands.
//
// Failures are reported as *CommandError values carrying the command line,
// working directory, exit code and captured stderr. In debug mode every
// command is echoed to the logger along with its working directory, and its
// output is streamed as well.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kballard/go-shellquote"

	"github.com/matzehuels/gilt/pkg/observability"
)

// Runner executes commands. The zero value is usable; it logs through
// log.Default() and streams debug output to the process's stdout/stderr.
type Runner struct {
	Debug  bool        // Echo commands and stream their output
	Logger *log.Logger // Destination for debug echo (default: log.Default())
	Stdout io.Writer   // Debug-mode stdout (default: os.Stdout)
	Stderr io.Writer   // Debug-mode stderr (default: os.Stderr)
	Env    []string    // Extra environment entries appended to os.Environ()
	Hooks  observability.CommandHooks
}

// NewRunner creates a runner that logs through logger.
func NewRunner(debug bool, logger *log.Logger) *Runner {
	return &Runner{Debug: debug, Logger: logger}
}

// CommandError describes a command that could not be started or exited
// non-zero.
type CommandError struct {
	Args     []string // Program and arguments
	Dir      string   // Working directory
	ExitCode int      // Exit code, or -1 if the command did not run
	Stderr   string   // Captured stderr
	Err      error    // Underlying exec error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q", shellquote.Join(e.Args...))
	if e.Dir != "" {
		msg += fmt.Sprintf(" in %s", e.Dir)
	}
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" exited with status %d", e.ExitCode)
	} else {
		msg += fmt.Sprintf(" failed: %v", e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error { return e.Err }

// Run executes name with args in dir. An empty dir runs in the current
// working directory.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) error {
	_, err := r.run(ctx, dir, false, append([]string{name}, args...))
	return err
}

// Output executes name with args in dir and returns its trimmed stdout.
func (r *Runner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	out, err := r.run(ctx, dir, true, append([]string{name}, args...))
	return strings.TrimSpace(out), err
}

// RunCommand splits command using shell quoting rules and executes it in
// dir. The command is not passed through a shell, so pipes and redirects are
// not interpreted.
func (r *Runner) RunCommand(ctx context.Context, dir, command string) error {
	args, err := Split(command)
	if err != nil {
		return err
	}
	_, err = r.run(ctx, dir, false, args)
	return err
}

// Split parses command into program and arguments.
func Split(command string) ([]string, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

func (r *Runner) run(ctx context.Context, dir string, capture bool, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	if r.Debug {
		pwd := dir
		if pwd == "" {
			pwd, _ = os.Getwd()
		}
		r.logger().Debug("exec", "pwd", pwd, "command", shellquote.Join(args...))
		cmd.Stderr = io.MultiWriter(r.stderr(), &stderr)
	} else {
		cmd.Stderr = &stderr
	}
	switch {
	case capture:
		cmd.Stdout = &stdout
	case r.Debug:
		cmd.Stdout = r.stdout()
	}

	start := time.Now()
	err := cmd.Run()
	r.hooks().OnCommand(ctx, args, dir, time.Since(start), err)
	if err == nil {
		return stdout.String(), nil
	}

	cerr := &CommandError{Args: args, Dir: dir, ExitCode: -1, Stderr: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return stdout.String(), cerr
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) hooks() observability.CommandHooks {
	if r.Hooks != nil {
		return r.Hooks
	}
	return observability.Command()
}
