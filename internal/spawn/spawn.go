// Package spawn runs probe helpers as short-lived child processes with a
// hard time bound and classifies how they ended.
package spawn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/triageworks/libcompat/internal/library"
)

// interferingEnv lists environment variables stripped before every spawn.
// A preloaded interposer changes exactly the loader behavior the probes
// are trying to observe.
var interferingEnv = []string{"LD_PRELOAD"}

// Spec describes one child process invocation.
type Spec struct {
	// Path is the probe executable.
	Path string

	// Args are the arguments, not including the program name.
	Args []string

	// Env is the full environment for the child. Callers pass the result
	// of FilteredEnviron so both probes see identical filtering.
	Env []string

	// Stdin optionally feeds the child's standard input.
	Stdin io.Reader

	// Timeout bounds the child's lifetime. Zero means no bound.
	Timeout time.Duration
}

// Result is the outcome of one invocation.
type Result struct {
	Stdout []byte
	Stderr []byte

	// Exit classifies the termination. Kind is ExitNotRun when the
	// process could not be started at all.
	Exit library.ExitStatus

	// TimedOut is true when the child was killed at the time bound.
	TimedOut bool
}

// FilteredEnviron returns a copy of base with known interfering variables
// removed. Pure; it never touches the process environment.
func FilteredEnviron(base []string) []string {
	out := make([]string, 0, len(base))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if isInterfering(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isInterfering(name string) bool {
	for _, bad := range interferingEnv {
		if name == bad {
			return true
		}
	}
	return false
}

// Run executes spec and waits for the child. A start failure (missing or
// unexecutable binary) is returned as an error with Exit.Kind ExitNotRun;
// any exit of a started process is reported through Result, not through
// the error.
func Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Stdin = spec.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{Exit: library.ExitStatus{Kind: library.ExitNotRun}}, err
	}

	err := cmd.Wait()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
	res.Exit = classify(cmd, err)
	return res, nil
}

// classify turns the process state into the exit taxonomy.
func classify(cmd *exec.Cmd, waitErr error) library.ExitStatus {
	if waitErr == nil {
		return library.ExitStatus{Kind: library.Exited}
	}
	var ee *exec.ExitError
	if !errors.As(waitErr, &ee) || ee.ProcessState == nil {
		return library.ExitStatus{Kind: library.ExitNotRun}
	}
	if sys, ok := ee.ProcessState.Sys().(syscall.WaitStatus); ok {
		if ws := unix.WaitStatus(sys); ws.Signaled() {
			return library.ExitStatus{Kind: library.Killed, Signal: int(ws.Signal())}
		}
	}
	return library.ExitStatus{Kind: library.Exited, Code: ee.ProcessState.ExitCode()}
}
