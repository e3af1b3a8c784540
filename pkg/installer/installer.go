// Package installer runs the package installer as an external process.
//
// The installer is a black box: it is started with the local registry URL
// and a flag disabling lifecycle scripts, its combined output is written to
// a log file, and only the exit code and the output text are consulted.
// There is no timeout; a run ends when the process exits or the context is
// cancelled.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
)

// IgnoreScriptsFlag disables package lifecycle scripts.
const IgnoreScriptsFlag = "--ignore-scripts"

// Command is one installer invocation.
type Command struct {
	Name string   // executable, looked up in PATH
	Args []string
	Dir  string   // working directory
	Env  []string // extra KEY=VALUE pairs on top of the current environment
}

// String renders the command line as written to the log header.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// InstallCommand builds the installer command pointed at registry. args
// come first; the registry flag follows, then the script guard unless args
// already carry it.
func InstallCommand(name string, args []string, dir, registry string) Command {
	out := slices.Clone(args)
	out = append(out, "--registry", registry)
	if !slices.Contains(out, IgnoreScriptsFlag) {
		out = append(out, IgnoreScriptsFlag)
	}
	return Command{Name: name, Args: out, Dir: dir}
}

// Result is the outcome of a finished installer run.
type Result struct {
	ExitCode int
	Output   string // combined stdout and stderr
	LogPath  string
	Duration time.Duration
}

// Executor runs a command to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command, logPath string) (*Result, error)
}

// ProcessExecutor runs commands as child processes.
type ProcessExecutor struct {
	// Echo, when set, receives the output as it is produced.
	Echo io.Writer
}

// Run starts cmd, writes a header and its combined output to logPath and
// waits for it to exit. A non-zero exit is reported in the result, not as
// an error; errors mean the process could not run at all or ctx ended.
func (e ProcessExecutor) Run(ctx context.Context, cmd Command, logPath string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, lmerrors.Wrap(lmerrors.ErrCodeInvalidPath, err, "create log dir for %s", logPath)
	}
	f, err := os.Create(logPath)
	if err != nil {
		return nil, lmerrors.Wrap(lmerrors.ErrCodeInvalidPath, err, "create %s", logPath)
	}
	defer f.Close()
	fmt.Fprintf(f, "# cmd: %s\n# time: %s\n\n", cmd, time.Now().Format("2006-01-02 15:04:05"))

	var buf bytes.Buffer
	writers := []io.Writer{f, &buf}
	if e.Echo != nil {
		writers = append(writers, e.Echo)
	}
	out := io.MultiWriter(writers...)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = out
	c.Stderr = out
	c.WaitDelay = 5 * time.Second
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	start := time.Now()
	err = c.Run()
	res := &Result{Output: buf.String(), LogPath: logPath, Duration: time.Since(start)}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, lmerrors.Wrap(lmerrors.ErrCodeInstaller, err, "run %s", cmd.Name)
	}
	return res, nil
}
