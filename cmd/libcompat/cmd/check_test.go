package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triageworks/libcompat/internal/library"
)

// writeProbe writes an executable shell script posing as a probe helper.
func writeProbe(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// writeConfig writes a config file pointing at the given probe scripts.
func writeConfig(t *testing.T, dir, dynamic, static, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := `version: 1
probes:
  dynamic: ` + dynamic + `
  static: ` + static + `
check:
  timeout_seconds: 5
  workers: 2
` + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const cleanProbe = `echo "requested=libclean.so.1"
echo "soname=libclean.so.1"
echo "path=/usr/lib/libclean.so.1"
exit 0
`

const brokenProbe = `echo "requested=libbroken.so.1"
echo "soname=libbroken.so.1"
echo "path=/usr/lib/libbroken.so.1"
echo "missing_symbol=frob_init"
exit 0
`

func TestCheckCmd_CleanLibrary(t *testing.T) {
	// Given: a probe that reports a healthy library
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", cleanProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, "")

	// When: checking the library
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"check", "libclean.so.1", "--config", cfg, "--no-color"})

	err := root.Execute()

	// Then: it should exit cleanly and print OK
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "OK libclean.so.1")
	assert.Contains(t, buf.String(), "/usr/lib/libclean.so.1")
}

func TestCheckCmd_MissingSymbols(t *testing.T) {
	// Given: a probe that reports a missing symbol
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", brokenProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, "")

	// When: checking the library
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"check", "libbroken.so.1", "--config", cfg, "--no-color", "--skip-slow"})

	err := root.Execute()

	// Then: the command fails and names the symbol
	require.Error(t, err)
	assert.Contains(t, buf.String(), "FAIL libbroken.so.1")
	assert.Contains(t, buf.String(), "frob_init")
}

func TestCheckCmd_JSONOutput(t *testing.T) {
	// Given: a probe that reports a missing symbol
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", brokenProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, "")

	// When: checking with --json
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"check", "libbroken.so.1", "--config", cfg, "--json", "--skip-slow"})

	err := root.Execute()

	// Then: the report decodes and carries the issue
	require.Error(t, err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	lib := rep["library"].(map[string]any)
	assert.Equal(t, "libbroken.so.1", lib["requested_name"])
	assert.Contains(t, rep["issues"], library.IssueMissingSymbols.Names()[0])
	details := rep["details"].(map[string]any)
	assert.Equal(t, []any{"frob_init"}, details["missing_symbols"])
}

func TestCheckCmd_BadArch(t *testing.T) {
	// Given: a nonsense --arch value
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", cleanProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, "")

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"check", "libclean.so.1", "--config", cfg, "--arch", "vax-linux-gnu"})

	// When/Then: it fails before running any probe
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vax-linux-gnu")
}

func TestCheckCmd_RequiresArgument(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check"})

	err := root.Execute()
	require.Error(t, err)
}
