// Package library defines the data model for a single library check: the
// identity of the library under test, the issue bitfield, the raw probe
// results and the immutable report handed back to callers.
package library

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/triageworks/libcompat/internal/arch"
)

// Identity describes which library was checked and what the system
// resolved it to.
type Identity struct {
	// RequestedName is the name as supplied by the caller: a bare SONAME
	// or a path.
	RequestedName string `json:"requested_name"`

	// ResolvedPath is the absolute on-disk path the loader picked, empty
	// when the library could not be loaded.
	ResolvedPath string `json:"resolved_path,omitempty"`

	// RealSONAME is the DT_SONAME read from the binary. It can differ
	// from RequestedName for compatibility aliases.
	RealSONAME string `json:"real_soname,omitempty"`

	// Arch is the ABI the check targeted.
	Arch arch.Tag `json:"arch,omitempty"`
}

// Issues is the bitfield of problems found with a library.
type Issues uint32

const (
	// IssueCannotLoad means the dynamic loader could not load the library.
	IssueCannotLoad Issues = 1 << iota
	// IssueMissingSymbols means at least one expected symbol is absent.
	IssueMissingSymbols
	// IssueMisversionedSymbols means a symbol exists, but not under the
	// expected version.
	IssueMisversionedSymbols
	// IssueMissingVersions means a version definition is absent.
	IssueMissingVersions
	// IssueUnexpectedlyUnversioned means the library carries no version
	// definitions although versioned symbols were expected.
	IssueUnexpectedlyUnversioned
	// IssueUnknownExpectations means no expectation source was supplied.
	IssueUnknownExpectations
	// IssueTimeout means a probe exceeded its time bound.
	IssueTimeout
	// IssueUnknown means a probe failed in a way that leaves the result
	// incomplete (for example a malformed binary container).
	IssueUnknown
)

var issueNames = []struct {
	flag Issues
	name string
}{
	{IssueCannotLoad, "cannot-load"},
	{IssueMissingSymbols, "missing-symbols"},
	{IssueMisversionedSymbols, "misversioned-symbols"},
	{IssueMissingVersions, "missing-versions"},
	{IssueUnexpectedlyUnversioned, "unexpectedly-unversioned"},
	{IssueUnknownExpectations, "unknown-expectations"},
	{IssueTimeout, "timeout"},
	{IssueUnknown, "unknown"},
}

// Has reports whether all bits in flag are set.
func (i Issues) Has(flag Issues) bool {
	return i&flag == flag
}

// Names returns the stable list of issue names for the set bits.
func (i Issues) Names() []string {
	names := []string{}
	for _, e := range issueNames {
		if i.Has(e.flag) {
			names = append(names, e.name)
		}
	}
	return names
}

// String renders the issues for logs, "none" when clear.
func (i Issues) String() string {
	if i == 0 {
		return "none"
	}
	return strings.Join(i.Names(), ",")
}

// MarshalJSON renders the bitfield as a list of issue names.
func (i Issues) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Names())
}

// ExitKind classifies how a probe process ended.
type ExitKind int

const (
	// ExitNotRun means the probe never started.
	ExitNotRun ExitKind = iota
	// Exited means the probe terminated normally with an exit code.
	Exited
	// Killed means the probe was terminated by a signal.
	Killed
)

// ExitStatus is the termination state of a probe process.
type ExitStatus struct {
	Kind   ExitKind
	Code   int
	Signal int
}

// String renders the classification: "exited(0)", "killed(9)", "not-run".
func (e ExitStatus) String() string {
	switch e.Kind {
	case Exited:
		return fmt.Sprintf("exited(%d)", e.Code)
	case Killed:
		return fmt.Sprintf("killed(%d)", e.Signal)
	}
	return "not-run"
}

// MarshalJSON renders the status as a small object.
func (e ExitStatus) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case Exited:
		return json.Marshal(map[string]any{"exited": e.Code})
	case Killed:
		return json.Marshal(map[string]any{"killed": e.Signal})
	}
	return json.Marshal("not-run")
}

// ProbeResult accumulates what the probes reported for one library.
// The slices are treated as sets; Report construction dedupes and sorts
// the symbol and version sets, while Dependencies keeps loader order.
type ProbeResult struct {
	// MissingSymbols are expected symbols the loader could not resolve
	// at all, in symbol@version spelling.
	MissingSymbols []string `json:"missing_symbols"`

	// MisversionedSymbols are expected symbols that exist, but not under
	// the expected version.
	MisversionedSymbols []string `json:"misversioned_symbols"`

	// MissingVersions are version definitions absent from the library's
	// version table.
	MissingVersions []string `json:"missing_versions"`

	// Dependencies are the other modules the loader pulled in, in load
	// order, excluding the main program and the library itself.
	Dependencies []string `json:"dependencies"`

	// UnexpectedlyUnversioned is true when the library has no version
	// table although versioned symbols were expected.
	UnexpectedlyUnversioned bool `json:"unexpectedly_unversioned,omitempty"`

	// Diagnostic carries best-effort human-readable failure detail, for
	// example the loader's error text.
	Diagnostic string `json:"diagnostic,omitempty"`

	// ExitStatus classifies how the dynamic probe ended.
	ExitStatus ExitStatus `json:"exit_status"`
}

// SetIssues returns the issue bits implied by the populated sets. This is
// the invariant tying flags to sets: a set-backed flag is set exactly when
// its set is non-empty.
func (pr ProbeResult) SetIssues() Issues {
	var issues Issues
	if len(pr.MissingSymbols) > 0 {
		issues |= IssueMissingSymbols
	}
	if len(pr.MisversionedSymbols) > 0 {
		issues |= IssueMisversionedSymbols
	}
	if len(pr.MissingVersions) > 0 {
		issues |= IssueMissingVersions
	}
	if pr.UnexpectedlyUnversioned {
		issues |= IssueUnexpectedlyUnversioned
	}
	return issues
}

// Report is the immutable outcome of one library check. It is built once
// per query and never mutated afterwards; all collections are non-nil.
type Report struct {
	Identity Identity    `json:"library"`
	Issues   Issues      `json:"issues"`
	Result   ProbeResult `json:"details"`
}

// NewReport builds a Report with deterministic contents: the symbol and
// version sets are deduplicated and sorted, dependencies deduplicated in
// first-seen order, and nil slices replaced with empty ones.
func NewReport(id Identity, issues Issues, pr ProbeResult) Report {
	pr.MissingSymbols = dedupeSorted(pr.MissingSymbols)
	pr.MisversionedSymbols = dedupeSorted(pr.MisversionedSymbols)
	pr.MissingVersions = dedupeSorted(pr.MissingVersions)
	pr.Dependencies = dedupeOrdered(pr.Dependencies)
	return Report{Identity: id, Issues: issues, Result: pr}
}

// dedupeSorted returns a fresh sorted slice without duplicates.
func dedupeSorted(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// dedupeOrdered removes duplicates but keeps first-seen order, which for
// dependencies is the loader's order.
func dedupeOrdered(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
