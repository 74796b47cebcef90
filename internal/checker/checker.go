// Package checker orchestrates a library compatibility check: it drives
// the two probe helpers, parses their record streams, merges the results
// and builds the final immutable report.
package checker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/triageworks/libcompat/internal/arch"
	cerrors "github.com/triageworks/libcompat/internal/errors"
	"github.com/triageworks/libcompat/internal/expectations"
	"github.com/triageworks/libcompat/internal/library"
	"github.com/triageworks/libcompat/internal/spawn"
	"github.com/triageworks/libcompat/internal/wire"
)

// Probe helper binary names.
const (
	ProbeDynamic = "inspect-library"
	ProbeStatic  = "inspect-versions"
)

// DefaultTimeout bounds each probe invocation.
const DefaultTimeout = 10 * time.Second

// Request describes one library check.
type Request struct {
	// RequestedName is the library to check, a bare SONAME or a path.
	RequestedName string

	// Arch is the ABI to check against. Empty means the current one.
	Arch arch.Tag

	// ExpectationPath is the symbols file to check against. Empty means
	// the expectations are unknown; the load check still runs.
	ExpectationPath string

	// Format is the expectation file grammar.
	Format expectations.Format

	// HiddenDeps are pre-loaded globally before the target.
	HiddenDeps []string

	// SkipSlow skips the static version-table probe.
	SkipSlow bool

	// Timeout bounds each probe. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Checker runs library checks. One Checker may serve concurrent queries;
// it holds only read-only state.
type Checker struct {
	probeDynamic string
	probeStatic  string
	environ      []string
	logger       *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithProbePaths overrides where the probe helpers are found.
func WithProbePaths(dynamic, static string) Option {
	return func(c *Checker) {
		c.probeDynamic = dynamic
		c.probeStatic = static
	}
}

// WithEnviron sets the base environment handed (filtered) to the probes.
func WithEnviron(env []string) Option {
	return func(c *Checker) {
		c.environ = env
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// New creates a Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		environ: os.Environ(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.probeDynamic == "" {
		c.probeDynamic = FindProbe(ProbeDynamic)
	}
	if c.probeStatic == "" {
		c.probeStatic = FindProbe(ProbeStatic)
	}
	return c
}

// FindProbe locates a helper: next to the running executable first, then
// on PATH, falling back to the bare name so the spawn error names it.
func FindProbe(name string) string {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

// CheckLibrary runs the full check for one library and returns the
// report. The error return covers precondition violations only; probe
// failures surface through the report's issues and diagnostic.
func (c *Checker) CheckLibrary(ctx context.Context, req Request) (library.Report, error) {
	if req.RequestedName == "" {
		return library.Report{}, cerrors.UsageError("requested name must not be empty", nil)
	}
	if req.Arch == "" {
		req.Arch = arch.Current()
	}
	if !req.Arch.Valid() {
		return library.Report{}, cerrors.UsageError(fmt.Sprintf("invalid architecture %q", req.Arch), nil)
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}

	id := library.Identity{RequestedName: req.RequestedName, Arch: req.Arch}
	var pr library.ProbeResult
	var issues library.Issues

	if req.ExpectationPath == "" {
		issues |= library.IssueUnknownExpectations
	}

	env := spawn.FilteredEnviron(c.environ)

	// Probe A: live loader inspection.
	resA, spawnErr := spawn.Run(ctx, spawn.Spec{
		Path:    c.probeDynamic,
		Args:    c.dynamicArgs(req),
		Env:     env,
		Timeout: req.Timeout,
	})
	pr.ExitStatus = resA.Exit
	if spawnErr != nil {
		// The helper never ran; terminal for this one query.
		pr.Diagnostic = cerrors.Wrap(cerrors.ErrCodeProbeMissing, spawnErr).Error()
		issues |= library.IssueCannotLoad
		return library.NewReport(id, issues, pr), nil
	}

	c.applyRecords(resA.Stdout, &id, &pr)
	if diag := strings.TrimSpace(string(resA.Stderr)); diag != "" {
		pr.Diagnostic = diag
	}

	if resA.TimedOut {
		if pr.Diagnostic == "" {
			pr.Diagnostic = cerrors.TimeoutError(
				fmt.Sprintf("dynamic probe exceeded %s", req.Timeout), nil).Error()
		}
		issues |= library.IssueTimeout | library.IssueCannotLoad
		return library.NewReport(id, issues, pr), nil
	}
	if resA.Exit.Kind != library.Exited || resA.Exit.Code != 0 {
		issues |= library.IssueCannotLoad
		return library.NewReport(id, issues, pr), nil
	}

	// Probe B: static version-table walk, against the path the loader
	// actually resolved. A bare SONAME may live somewhere else than a
	// naive search would find it.
	if req.ExpectationPath != "" && !req.SkipSlow {
		issues |= c.runStatic(ctx, req, env, &id, &pr)
	}

	issues |= pr.SetIssues()
	return library.NewReport(id, issues, pr), nil
}

// runStatic drives the static probe and merges its contribution into pr.
// Its failures degrade the result to "unknown" instead of discarding what
// the dynamic probe already established.
func (c *Checker) runStatic(ctx context.Context, req Request, env []string, id *library.Identity, pr *library.ProbeResult) library.Issues {
	target := id.ResolvedPath
	if target == "" {
		target = req.RequestedName
	}

	res, spawnErr := spawn.Run(ctx, spawn.Spec{
		Path:    c.probeStatic,
		Args:    c.staticArgs(req, target),
		Env:     env,
		Timeout: req.Timeout,
	})
	if spawnErr != nil {
		c.logger.Warn("static probe did not run",
			slog.String("probe", c.probeStatic),
			slog.String("error", spawnErr.Error()))
		return library.IssueUnknown
	}

	// Partial output before a failure is still merged.
	c.applyRecords(res.Stdout, id, pr)

	if res.TimedOut {
		return library.IssueUnknown | library.IssueTimeout
	}
	if res.Exit.Kind != library.Exited || res.Exit.Code != 0 {
		if diag := strings.TrimSpace(string(res.Stderr)); diag != "" && pr.Diagnostic == "" {
			pr.Diagnostic = diag
		}
		return library.IssueUnknown
	}
	return 0
}

// dynamicArgs builds the inspect-library argv.
func (c *Checker) dynamicArgs(req Request) []string {
	args := []string{"--line-based"}
	for _, dep := range req.HiddenDeps {
		args = append(args, "--hidden-dependency="+dep)
	}
	if req.ExpectationPath != "" && req.Format == expectations.FormatDebSymbols {
		args = append(args, "--deb-symbols")
	}
	args = append(args, req.RequestedName)
	if req.ExpectationPath != "" {
		args = append(args, req.ExpectationPath)
	}
	return args
}

// staticArgs builds the inspect-versions argv. The requested name, not
// the resolved path, selects the deb-symbols block: that is the name the
// expectation file is keyed by.
func (c *Checker) staticArgs(req Request, target string) []string {
	args := []string{"--line-based"}
	if req.Format == expectations.FormatDebSymbols {
		args = append(args, "--deb-symbols", "--soname-for-symbols="+req.RequestedName)
	}
	return append(args, target, req.ExpectationPath)
}

// applyRecords folds a probe's record stream into the identity and the
// accumulated result. Malformed lines are logged and skipped.
func (c *Checker) applyRecords(stdout []byte, id *library.Identity, pr *library.ProbeResult) {
	records, err := wire.Parse(bytes.NewReader(stdout), func(line string) {
		c.logger.Warn("skipping malformed probe output line", slog.String("line", line))
	})
	if err != nil {
		c.logger.Warn("reading probe output", slog.String("error", err.Error()))
	}

	for _, rec := range records {
		switch rec.Key {
		case wire.KeyRequested:
			// Echo of our own argument; identity keeps the caller's name.
		case wire.KeySONAME:
			if rec.Value != "" {
				id.RealSONAME = rec.Value
			}
		case wire.KeyPath:
			if rec.Value != "" {
				id.ResolvedPath = rec.Value
			}
		case wire.KeyMissingSymbol:
			pr.MissingSymbols = append(pr.MissingSymbols, rec.Value)
		case wire.KeyMisversionedSymbol:
			pr.MisversionedSymbols = append(pr.MisversionedSymbols, rec.Value)
		case wire.KeyMissingVersion:
			pr.MissingVersions = append(pr.MissingVersions, rec.Value)
		case wire.KeyDependency:
			pr.Dependencies = append(pr.Dependencies, rec.Value)
		case wire.KeyUnversioned:
			if rec.Value == "true" {
				pr.UnexpectedlyUnversioned = true
			}
		default:
			c.logger.Debug("ignoring unknown probe record", slog.String("key", rec.Key))
		}
	}
}
