// Package preflight validates that the check engine can actually run on
// this system: probe helpers present and executable, the dynamic loader
// reachable, the log directory writable.
package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/triageworks/libcompat/internal/library"
	"github.com/triageworks/libcompat/internal/logging"
	"github.com/triageworks/libcompat/internal/spawn"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the status as its name.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks.
type Checker struct {
	probeDynamic string
	probeStatic  string
	verbose      bool
	output       io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithProbePaths sets where the probe helpers are expected.
func WithProbePaths(dynamic, static string) Option {
	return func(c *Checker) {
		c.probeDynamic = dynamic
		c.probeStatic = static
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	var results []CheckResult

	results = append(results, c.CheckProbeBinary("dynamic_probe", c.probeDynamic))
	results = append(results, c.CheckProbeBinary("static_probe", c.probeStatic))
	results = append(results, c.CheckProbeAnswers(ctx, "dynamic_probe_version", c.probeDynamic))
	results = append(results, c.CheckProbeAnswers(ctx, "static_probe_version", c.probeStatic))
	results = append(results, c.CheckLoader(ctx))
	results = append(results, c.CheckLogDir())

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckProbeBinary verifies a probe helper exists and is executable.
func (c *Checker) CheckProbeBinary(name, path string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: true,
	}
	if path == "" {
		result.Status = StatusFail
		result.Message = "probe helper not configured"
		return result
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not found: %v", err)
		return result
	}
	if info.IsDir() {
		result.Status = StatusFail
		result.Message = path + " is a directory"
		return result
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not executable: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = path
	return result
}

// CheckProbeAnswers runs a probe with --version and expects a clean exit.
func (c *Checker) CheckProbeAnswers(ctx context.Context, name, path string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: true,
	}
	if path == "" {
		result.Status = StatusFail
		result.Message = "probe helper not configured"
		return result
	}

	res, err := spawn.Run(ctx, spawn.Spec{
		Path:    path,
		Args:    []string{"--version"},
		Env:     spawn.FilteredEnviron(os.Environ()),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("did not run: %v", err)
		return result
	}
	if res.Exit.Kind != library.Exited || res.Exit.Code != 0 || res.TimedOut {
		result.Status = StatusFail
		result.Message = "probe " + res.Exit.String()
		result.Details = strings.TrimSpace(string(res.Stderr))
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = strings.TrimSpace(string(res.Stdout))
	return result
}

// CheckLoader verifies the dynamic probe can load the one library every
// glibc system has. Non-critical: an exotic libc still allows static
// checks.
func (c *Checker) CheckLoader(ctx context.Context) CheckResult {
	result := CheckResult{
		Name: "loader_roundtrip",
	}
	if c.probeDynamic == "" {
		result.Status = StatusWarn
		result.Message = "skipped, no dynamic probe"
		return result
	}

	res, err := spawn.Run(ctx, spawn.Spec{
		Path:    c.probeDynamic,
		Args:    []string{"--line-based", "libc.so.6"},
		Env:     spawn.FilteredEnviron(os.Environ()),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("did not run: %v", err)
		return result
	}
	if res.Exit.Kind != library.Exited || res.Exit.Code != 0 || res.TimedOut {
		result.Status = StatusFail
		result.Message = "libc.so.6 load check " + res.Exit.String()
		result.Details = strings.TrimSpace(string(res.Stderr))
		return result
	}

	result.Status = StatusPass
	result.Message = "libc.so.6 loads"
	return result
}

// CheckLogDir checks the log directory can be created and written.
func (c *Checker) CheckLogDir() CheckResult {
	result := CheckResult{
		Name: "log_directory",
	}

	if err := logging.EnsureLogDir(); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot create %s: %v", logging.DefaultLogDir(), err)
		return result
	}
	probe := logging.DefaultLogDir() + "/.preflight"
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = logging.DefaultLogDir()
	return result
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "libcompat System Check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			for _, line := range strings.Split(r.Details, "\n") {
				_, _ = fmt.Fprintf(c.output, "      %s\n", line)
			}
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}
