package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-08-01T10:00:00.000Z","level":"DEBUG","msg":"probing","library":"libz.so.1"}
{"time":"2026-08-01T10:00:01.000Z","level":"INFO","msg":"probe finished","exit":"exited(0)"}
not json at all
{"time":"2026-08-01T10:00:02.000Z","level":"ERROR","msg":"probe failed","library":"libbad.so.1"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "check.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestViewerTail(t *testing.T) {
	path := writeLog(t, sampleLog)

	t.Run("all entries", func(t *testing.T) {
		v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("last n", func(t *testing.T) {
		v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
		entries, err := v.Tail(path, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "probe failed", entries[0].Msg)
	})

	t.Run("level filter", func(t *testing.T) {
		v := NewViewer(ViewerConfig{NoColor: true, Level: "error"}, &bytes.Buffer{})
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		// The non-JSON line has no level and is treated as info.
		require.Len(t, entries, 1)
		assert.Equal(t, "ERROR", entries[0].Level)
	})

	t.Run("pattern filter", func(t *testing.T) {
		v := NewViewer(ViewerConfig{NoColor: true, Pattern: regexp.MustCompile(`libz`)}, &bytes.Buffer{})
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "probing", entries[0].Msg)
	})

	t.Run("missing file", func(t *testing.T) {
		v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
		_, err := v.Tail(filepath.Join(t.TempDir(), "nope.log"), 50)
		assert.Error(t, err)
	})
}

func TestViewerFormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	t.Run("valid entry", func(t *testing.T) {
		entry := parseLine(`{"time":"2026-08-01T10:00:00.000Z","level":"INFO","msg":"probe finished","exit":"exited(0)"}`)
		out := v.FormatEntry(entry)
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "probe finished")
		assert.Contains(t, out, "exit=exited(0)")
	})

	t.Run("raw passthrough", func(t *testing.T) {
		entry := parseLine("not json at all")
		assert.Equal(t, "not json at all", v.FormatEntry(entry))
	})
}

func TestViewerPrint(t *testing.T) {
	path := writeLog(t, sampleLog)
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	entries, err := v.Tail(path, 50)
	require.NoError(t, err)
	v.Print(entries)

	out := buf.String()
	assert.Contains(t, out, "probing")
	assert.Contains(t, out, "not json at all")
	assert.Contains(t, out, "probe failed")
}
