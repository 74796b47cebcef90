package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Help(t *testing.T) {
	// Given: the root command with no arguments
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--help"})

	// When: asking for help
	err := root.Execute()

	// Then: all subcommands are listed
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "check")
	assert.Contains(t, out, "batch")
	assert.Contains(t, out, "doctor")
	assert.Contains(t, out, "version")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"frobnicate"})

	err := root.Execute()
	require.Error(t, err)
}

func TestRootCmd_VersionFlag(t *testing.T) {
	// Given: the root command with --version
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	// When/Then: it prints the version template
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "libcompat version")
}
