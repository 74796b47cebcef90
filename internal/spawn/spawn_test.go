package spawn

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triageworks/libcompat/internal/library"
)

func TestFilteredEnviron(t *testing.T) {
	base := []string{
		"PATH=/usr/bin",
		"LD_PRELOAD=/tmp/evil.so",
		"LD_PRELOAD_EXTRA=kept",
		"HOME=/home/u",
	}

	got := FilteredEnviron(base)

	assert.Equal(t, []string{"PATH=/usr/bin", "LD_PRELOAD_EXTRA=kept", "HOME=/home/u"}, got)
	// Pure: the input is untouched.
	assert.Contains(t, base, "LD_PRELOAD=/tmp/evil.so")
}

func TestRunCapturesOutput(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Equal(t, library.ExitStatus{Kind: library.Exited}, res.Exit)
	assert.False(t, res.TimedOut)
}

func TestRunNonzeroExit(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 3"},
	})
	require.NoError(t, err)

	assert.Equal(t, library.ExitStatus{Kind: library.Exited, Code: 3}, res.Exit)
}

func TestRunStdin(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Path:  "/bin/cat",
		Stdin: strings.NewReader("inflate@Base\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "inflate@Base\n", string(res.Stdout))
}

func TestRunTimeoutKillsChild(t *testing.T) {
	start := time.Now()
	res, err := Run(context.Background(), Spec{
		Path:    "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, res.TimedOut)
	assert.Equal(t, library.Killed, res.Exit.Kind)
	assert.Equal(t, 9, res.Exit.Signal)
}

func TestRunMissingBinary(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Path: "/nonexistent/probe-helper",
	})
	require.Error(t, err)

	assert.Equal(t, library.ExitNotRun, res.Exit.Kind)
}

func TestRunPassesEnv(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "printf '%s' \"$PROBE_MARK\""},
		Env:  FilteredEnviron([]string{"PROBE_MARK=ok", "LD_PRELOAD=gone"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", string(res.Stdout))
}
