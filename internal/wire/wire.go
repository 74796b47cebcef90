// Package wire implements the line-oriented key=value protocol spoken by
// the probe helpers. Values are octal-escaped so the stream stays 7-bit
// safe and one record always fits one line, whatever bytes a path or
// symbol name contains.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	cerrors "github.com/triageworks/libcompat/internal/errors"
)

// Record keys emitted by the probes. Repeated keys denote set membership;
// the order of repeated records carries no meaning on the wire.
const (
	KeyRequested          = "requested"
	KeySONAME             = "soname"
	KeyPath               = "path"
	KeyMissingSymbol      = "missing_symbol"
	KeyMisversionedSymbol = "misversioned_symbol"
	KeyMissingVersion     = "missing_version"
	KeyDependency         = "dependency"
	KeyUnversioned        = "unversioned"
)

// Record is one parsed key=value line.
type Record struct {
	Key   string
	Value string
}

// Escape renders s using only printable ASCII. Bytes below 0x20, at or
// above 0x7F, and the backslash itself become \NNN with three octal
// digits, so Unescape(Escape(s)) == s for every byte string.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7F || c == '\\' {
			fmt.Fprintf(&b, "\\%03o", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Unescape reverses Escape. It fails on a trailing backslash or on an
// escape that is not exactly three octal digits.
func Unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+3 >= len(s) {
			return "", fmt.Errorf("truncated escape at offset %d", i)
		}
		var v int
		for j := i + 1; j <= i+3; j++ {
			d := s[j]
			if d < '0' || d > '7' {
				return "", fmt.Errorf("invalid octal digit %q at offset %d", d, j)
			}
			v = v<<3 | int(d-'0')
		}
		if v > 0xFF {
			return "", fmt.Errorf("escape out of range at offset %d", i)
		}
		b.WriteByte(byte(v))
		i += 3
	}
	return b.String(), nil
}

// Writer emits records to an underlying stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write emits one key=value record with the value escaped.
func (w *Writer) Write(key, value string) error {
	_, err := fmt.Fprintf(w.w, "%s=%s\n", key, Escape(value))
	return err
}

// Parse reads a whole record stream. Lines without a '=' separator and
// lines whose value fails to unescape are handed to malformed (if non-nil)
// and skipped; they are never fatal. Values are returned unescaped.
func Parse(r io.Reader, malformed func(line string)) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		key, raw, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			if malformed != nil {
				malformed(line)
			}
			continue
		}
		value, err := Unescape(raw)
		if err != nil {
			if malformed != nil {
				malformed(line)
			}
			continue
		}
		records = append(records, Record{Key: key, Value: value})
	}
	if err := sc.Err(); err != nil {
		return records, cerrors.Wrap(cerrors.ErrCodeBadProbeOutput, err)
	}
	return records, nil
}
