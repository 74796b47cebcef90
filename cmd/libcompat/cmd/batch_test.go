package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoProbe reports back whatever library it was asked about. The name
// is the last argument, clean unless it contains "broken".
const echoProbe = `for arg in "$@"; do name="$arg"; done
echo "requested=$name"
echo "soname=$name"
echo "path=/usr/lib/$name"
case "$name" in
*broken*) echo "missing_symbol=frob_init" ;;
esac
exit 0
`

func TestBatchCmd_OrderedReports(t *testing.T) {
	// Given: a config listing three libraries, one of them broken
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", echoProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, `libraries:
  - name: libone.so.1
  - name: libbroken.so.1
  - name: libtwo.so.2
`)

	// When: running a batch check
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"batch", "--config", cfg, "--no-color"})

	err := root.Execute()

	// Then: it fails, and reports appear in config order
	require.Error(t, err)
	out := buf.String()
	one := strings.Index(out, "libone.so.1")
	broken := strings.Index(out, "libbroken.so.1")
	two := strings.Index(out, "libtwo.so.2")
	require.True(t, one >= 0 && broken >= 0 && two >= 0, "all three libraries should be reported")
	assert.Less(t, one, broken, "reports should follow config order")
	assert.Less(t, broken, two, "reports should follow config order")
	assert.Contains(t, out, "1 of 3 libraries with issues")
}

func TestBatchCmd_AllClean(t *testing.T) {
	// Given: a config listing only healthy libraries
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", echoProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, `libraries:
  - name: libone.so.1
  - name: libtwo.so.2
`)

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"batch", "--config", cfg, "--no-color", "--workers", "1"})

	// When/Then: the batch passes
	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "all 2 libraries compatible")
}

func TestBatchCmd_JSONOutput(t *testing.T) {
	// Given: a config with two libraries
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", echoProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, `libraries:
  - name: libone.so.1
  - name: libbroken.so.1
`)

	// When: running with --json
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"batch", "--config", cfg, "--json"})

	err := root.Execute()

	// Then: the output is a JSON array in config order
	require.Error(t, err)
	var reports []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "libone.so.1", reports[0]["library"].(map[string]any)["requested_name"])
	assert.Equal(t, "libbroken.so.1", reports[1]["library"].(map[string]any)["requested_name"])
}

func TestBatchCmd_NoLibraries(t *testing.T) {
	// Given: a config with no libraries list
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", echoProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, "")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"batch", "--config", cfg})

	// When/Then: the command refuses to run
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no libraries configured")
}

func TestBatchCmd_BadConfigEntry(t *testing.T) {
	// Given: a library entry with an invalid format
	dir := t.TempDir()
	dynamic := writeProbe(t, dir, "inspect-library", echoProbe)
	static := writeProbe(t, dir, "inspect-versions", "exit 0\n")
	cfg := writeConfig(t, dir, dynamic, static, `libraries:
  - name: libone.so.1
    format: xml
`)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"batch", "--config", cfg})

	// When/Then: validation fails before any probe runs
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
