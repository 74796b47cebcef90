package library

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuesNames(t *testing.T) {
	issues := IssueCannotLoad | IssueTimeout
	assert.Equal(t, []string{"cannot-load", "timeout"}, issues.Names())
	assert.Equal(t, "cannot-load,timeout", issues.String())

	assert.Equal(t, []string{}, Issues(0).Names())
	assert.Equal(t, "none", Issues(0).String())
}

func TestIssuesJSON(t *testing.T) {
	data, err := json.Marshal(IssueMissingSymbols | IssueMissingVersions)
	require.NoError(t, err)
	assert.JSONEq(t, `["missing-symbols","missing-versions"]`, string(data))
}

func TestExitStatusString(t *testing.T) {
	assert.Equal(t, "exited(0)", ExitStatus{Kind: Exited}.String())
	assert.Equal(t, "exited(1)", ExitStatus{Kind: Exited, Code: 1}.String())
	assert.Equal(t, "killed(9)", ExitStatus{Kind: Killed, Signal: 9}.String())
	assert.Equal(t, "not-run", ExitStatus{}.String())
}

func TestSetIssues(t *testing.T) {
	tests := []struct {
		name   string
		result ProbeResult
		want   Issues
	}{
		{
			name:   "empty result has no set issues",
			result: ProbeResult{},
			want:   0,
		},
		{
			name:   "missing symbols",
			result: ProbeResult{MissingSymbols: []string{"foo"}},
			want:   IssueMissingSymbols,
		},
		{
			name: "all sets populated",
			result: ProbeResult{
				MissingSymbols:          []string{"foo"},
				MisversionedSymbols:     []string{"bar@V2"},
				MissingVersions:         []string{"V2"},
				UnexpectedlyUnversioned: true,
			},
			want: IssueMissingSymbols | IssueMisversionedSymbols |
				IssueMissingVersions | IssueUnexpectedlyUnversioned,
		},
		{
			name:   "dependencies alone imply nothing",
			result: ProbeResult{Dependencies: []string{"libc.so.6"}},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.SetIssues())
		})
	}
}

func TestNewReportNormalizes(t *testing.T) {
	pr := ProbeResult{
		MissingSymbols:  []string{"zeta", "alpha", "zeta"},
		MissingVersions: []string{"V2", "V1", "V2"},
		Dependencies:    []string{"libm.so.6", "libc.so.6", "libm.so.6"},
	}

	rep := NewReport(Identity{RequestedName: "libz.so.1"}, pr.SetIssues(), pr)

	assert.Equal(t, []string{"alpha", "zeta"}, rep.Result.MissingSymbols)
	assert.Equal(t, []string{"V1", "V2"}, rep.Result.MissingVersions)
	// Dependencies keep loader order, only duplicates removed.
	assert.Equal(t, []string{"libm.so.6", "libc.so.6"}, rep.Result.Dependencies)
	// Empty sets come out non-nil.
	assert.NotNil(t, rep.Result.MisversionedSymbols)
	assert.Empty(t, rep.Result.MisversionedSymbols)
}

func TestNewReportIdempotent(t *testing.T) {
	pr := ProbeResult{MissingSymbols: []string{"b", "a"}}
	first := NewReport(Identity{RequestedName: "x"}, pr.SetIssues(), pr)
	second := NewReport(Identity{RequestedName: "x"}, pr.SetIssues(), pr)
	assert.Equal(t, first, second)
}

func TestReportJSON(t *testing.T) {
	rep := NewReport(
		Identity{RequestedName: "libz.so.1", ResolvedPath: "/usr/lib/libz.so.1", RealSONAME: "libz.so.1"},
		IssueMisversionedSymbols,
		ProbeResult{
			MisversionedSymbols: []string{"deflate@ZLIB_1.2.9"},
			ExitStatus:          ExitStatus{Kind: Exited},
		},
	)

	data, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	lib := decoded["library"].(map[string]any)
	assert.Equal(t, "libz.so.1", lib["requested_name"])

	assert.Equal(t, []any{"misversioned-symbols"}, decoded["issues"])

	details := decoded["details"].(map[string]any)
	assert.Equal(t, []any{"deflate@ZLIB_1.2.9"}, details["misversioned_symbols"])
	assert.Equal(t, map[string]any{"exited": float64(0)}, details["exit_status"])
}
