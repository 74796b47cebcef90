// Package expectations parses the symbol lists a library is checked
// against: either a plain one-symbol-per-line file, or a deb-symbols style
// manifest keyed by SONAME.
package expectations

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	cerrors "github.com/triageworks/libcompat/internal/errors"
)

// Format selects the expectation grammar.
type Format int

const (
	// FormatPlain is one "symbol" or "symbol@version" per non-empty line.
	FormatPlain Format = iota
	// FormatDebSymbols is the Debian symbols-file grammar, where indented
	// lines belong to the most recent SONAME header.
	FormatDebSymbols
)

// String returns the flag spelling of the format.
func (f Format) String() string {
	if f == FormatDebSymbols {
		return "deb-symbols"
	}
	return "plain"
}

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "plain":
		return FormatPlain, nil
	case "deb-symbols":
		return FormatDebSymbols, nil
	}
	return FormatPlain, cerrors.New(cerrors.ErrCodeBadFormat,
		fmt.Sprintf("unknown expectation format %q", s), nil)
}

// Expectation is one expected symbol. An empty Version, or the literal
// version "Base", means the symbol is expected unversioned.
type Expectation struct {
	Symbol  string
	Version string
}

// Unversioned reports whether the expectation carries no real version.
func (e Expectation) Unversioned() bool {
	return e.Version == "" || e.Version == "Base"
}

// SelfReferential reports whether the entry is a pseudo-symbol naming a
// version definition itself (symbol == version). Those are never
// resolvable through the live loader and belong to the static probe.
func (e Expectation) SelfReferential() bool {
	return e.Version != "" && e.Symbol == e.Version
}

// String renders the symbol@version spelling used in reports.
func (e Expectation) String() string {
	if e.Version == "" {
		return e.Symbol
	}
	return e.Symbol + "@" + e.Version
}

// Result is the outcome of parsing one expectation source.
type Result struct {
	// Symbols are the parsed expectations, in file order.
	Symbols []Expectation

	// Warning is set when a deb-symbols file never mentions the target
	// SONAME. Non-fatal; callers log it.
	Warning string
}

// Load reads the source at path, with "-" meaning stdin, and parses it.
// soname is only consulted for FormatDebSymbols.
func Load(path string, format Format, soname string) (Result, error) {
	if path == "-" {
		return Parse(os.Stdin, format, soname)
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{}, cerrors.Wrap(cerrors.ErrCodeBadExpectations, err)
	}
	defer f.Close()
	return Parse(f, format, soname)
}

// Parse reads expectations from r according to format.
func Parse(r io.Reader, format Format, soname string) (Result, error) {
	if format == FormatDebSymbols {
		return parseDebSymbols(r, soname)
	}
	return parsePlain(r)
}

func parsePlain(r io.Reader) (Result, error) {
	var res Result
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		res.Symbols = append(res.Symbols, splitSymbol(line))
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading expectations: %w", err)
	}
	return res, nil
}

func parseDebSymbols(r io.Reader, soname string) (Result, error) {
	var res Result
	inBlock := false
	seen := false
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		switch line[0] {
		case '#', '*', '|':
			// Comments, metadata fields and alternative dependency
			// templates carry no symbols.
			continue
		case ' ', '\t':
			if !inBlock {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			res.Symbols = append(res.Symbols, splitSymbol(fields[0]))
		default:
			// A new SONAME header. The header is "SONAME package ...";
			// match by prefix with a whitespace boundary so libfoo.so.1
			// does not match a libfoo.so.12 block.
			inBlock = matchesSONAME(line, soname)
			if inBlock {
				seen = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading expectations: %w", err)
	}
	if !seen && soname != "" {
		res.Warning = fmt.Sprintf("SONAME %q not found in symbols file", soname)
	}
	return res, nil
}

func matchesSONAME(header, soname string) bool {
	if soname == "" || !strings.HasPrefix(header, soname) {
		return false
	}
	rest := header[len(soname):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

func splitSymbol(token string) Expectation {
	name, version, ok := strings.Cut(token, "@")
	if !ok {
		return Expectation{Symbol: token}
	}
	return Expectation{Symbol: name, Version: version}
}
