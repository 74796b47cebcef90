// Package output renders check reports for the terminal. Styling is
// applied only when writing to a TTY; --json callers bypass this package
// entirely.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/triageworks/libcompat/internal/library"
)

// Color palette, kept to a small accent set.
const (
	colorGreen  = "42"
	colorRed    = "196"
	colorYellow = "220"
	colorGray   = "245"
)

// Writer renders reports to a terminal or plain stream.
type Writer struct {
	out    io.Writer
	styled bool

	ok    lipgloss.Style
	bad   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
	label lipgloss.Style
}

// Option configures a Writer.
type Option func(*Writer)

// WithColor forces styling on or off, overriding TTY detection.
func WithColor(enabled bool) Option {
	return func(w *Writer) {
		w.styled = enabled
	}
}

// New creates a Writer on out. Styling defaults to on when out is a
// terminal.
func New(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		out:    out,
		styled: IsTerminal(out),
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		bad:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorRed)),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		label:  lipgloss.NewStyle().Bold(true),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IsTerminal reports whether out is an interactive terminal.
func IsTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (w *Writer) render(s lipgloss.Style, text string) string {
	if !w.styled {
		return text
	}
	return s.Render(text)
}

// Report prints one check report in human-readable form.
func (w *Writer) Report(rep library.Report) {
	name := rep.Identity.RequestedName
	if rep.Issues == 0 {
		w.printf("%s %s\n", w.render(w.ok, "OK"), name)
	} else {
		w.printf("%s %s: %s\n", w.render(w.bad, "FAIL"), name, rep.Issues)
	}

	if rep.Identity.ResolvedPath != "" {
		w.field("path", rep.Identity.ResolvedPath)
	}
	if rep.Identity.RealSONAME != "" && rep.Identity.RealSONAME != name {
		w.field("soname", rep.Identity.RealSONAME)
	}
	if rep.Identity.Arch != "" {
		w.field("arch", rep.Identity.Arch.String())
	}

	w.set("missing symbols", rep.Result.MissingSymbols)
	w.set("misversioned symbols", rep.Result.MisversionedSymbols)
	w.set("missing versions", rep.Result.MissingVersions)

	if rep.Issues.Has(library.IssueCannotLoad) || rep.Issues.Has(library.IssueUnknown) {
		w.field("probe exit", rep.Result.ExitStatus.String())
	}
	if rep.Result.Diagnostic != "" {
		w.field("diagnostic", rep.Result.Diagnostic)
	}
}

// Summary prints the one-line outcome of a batch run.
func (w *Writer) Summary(total, failed int) {
	if failed == 0 {
		w.printf("\n%s all %d libraries compatible\n", w.render(w.ok, "OK"), total)
		return
	}
	w.printf("\n%s %d of %d libraries with issues\n", w.render(w.bad, "FAIL"), failed, total)
}

// Warning prints a non-fatal notice.
func (w *Writer) Warning(msg string) {
	w.printf("%s %s\n", w.render(w.warn, "WARN"), msg)
}

func (w *Writer) field(label, value string) {
	w.printf("  %s %s\n", w.render(w.label, label+":"), value)
}

func (w *Writer) set(label string, values []string) {
	if len(values) == 0 {
		return
	}
	w.printf("  %s\n", w.render(w.label, label+":"))
	for _, v := range values {
		w.printf("    %s\n", w.render(w.dim, v))
	}
}

// Errors from writing to the console are intentionally ignored.
func (w *Writer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format, args...)
}

// Dependencies prints the loaded-module closure, for verbose mode.
func (w *Writer) Dependencies(deps []string) {
	if len(deps) == 0 {
		return
	}
	w.printf("  %s\n", w.render(w.label, "dependencies:"))
	w.printf("    %s\n", strings.Join(deps, "\n    "))
}
