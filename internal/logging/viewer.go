package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	// Level drops entries below this level. Empty keeps everything.
	Level string

	// Pattern drops lines that do not match. Nil keeps everything.
	Pattern *regexp.Regexp

	// NoColor disables styled output.
	NoColor bool
}

// Viewer reads, filters and formats the debug log.
type Viewer struct {
	config ViewerConfig
	out    io.Writer

	debug lipgloss.Style
	info  lipgloss.Style
	warn  lipgloss.Style
	err   lipgloss.Style
}

// NewViewer creates a Viewer writing formatted entries to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{
		config: cfg,
		out:    out,
		debug:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		info:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// Tail returns the last n matching entries of the log file.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var entries []Entry
	for _, line := range lines {
		entry := parseLine(line)
		if v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// Follow watches the log file for new entries and sends matching ones
// to the channel. Blocks until the context is cancelled.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- Entry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				line = strings.TrimSuffix(line, "\n")
				if line == "" {
					continue
				}
				entry := parseLine(line)
				if !v.matchesFilter(entry) {
					continue
				}
				select {
				case entries <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// FormatEntry formats one entry for display. Unparseable lines come
// back verbatim.
func (v *Viewer) FormatEntry(entry Entry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	timestamp := entry.Time.Format("15:04:05.000")
	level := v.formatLevel(entry.Level)

	var attrs []string
	for k, val := range entry.Attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, val))
	}
	sort.Strings(attrs)
	attrStr := ""
	if len(attrs) > 0 {
		attrStr = " " + strings.Join(attrs, " ")
	}

	return fmt.Sprintf("%s %s %s%s", timestamp, level, entry.Msg, attrStr)
}

// Print prints entries to the output.
func (v *Viewer) Print(entries []Entry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

func parseLine(line string) Entry {
	entry := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	if l, ok := data["level"].(string); ok {
		entry.Level = l
	}
	if m, ok := data["msg"].(string); ok {
		entry.Msg = m
	}
	entry.Attrs = make(map[string]any)
	for k, val := range data {
		if k != "time" && k != "level" && k != "msg" {
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matchesFilter(entry Entry) bool {
	if v.config.Level != "" {
		if parseLevel(entry.Level) < parseLevel(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

func (v *Viewer) formatLevel(level string) string {
	levelStr := strings.ToUpper(level)
	if len(levelStr) > 5 {
		levelStr = levelStr[:5]
	}
	levelStr = fmt.Sprintf("%-5s", levelStr)

	if v.config.NoColor {
		return levelStr
	}
	switch strings.ToLower(level) {
	case "debug":
		return v.debug.Render(levelStr)
	case "info":
		return v.info.Render(levelStr)
	case "warn", "warning":
		return v.warn.Render(levelStr)
	case "error":
		return v.err.Render(levelStr)
	default:
		return levelStr
	}
}
