//go:build linux

package dynprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "errors"

	"github.com/triageworks/libcompat/internal/errors"
	"github.com/triageworks/libcompat/internal/expectations"
)

// The tests below exercise the real loader against libc, which is the one
// library guaranteed to be loadable wherever these tests run.

func TestInspectLibc(t *testing.T) {
	out, err := Inspect(Options{
		RequestedName: "libc.so.6",
		Expectations: []expectations.Expectation{
			{Symbol: "printf"},
			{Symbol: "strlen", Version: "Base"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "libc.so.6", out.Identity.RequestedName)
	assert.Equal(t, "libc.so.6", out.Identity.RealSONAME)
	assert.NotEmpty(t, out.Identity.ResolvedPath)
	assert.Empty(t, out.MissingSymbols)
	assert.Empty(t, out.MisversionedSymbols)
	assert.NotContains(t, out.Dependencies, out.Identity.ResolvedPath)
}

func TestInspectMissingSymbol(t *testing.T) {
	out, err := Inspect(Options{
		RequestedName: "libc.so.6",
		Expectations: []expectations.Expectation{
			{Symbol: "libcompat_no_such_symbol"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"libcompat_no_such_symbol"}, out.MissingSymbols)
}

func TestInspectMisversionedSymbol(t *testing.T) {
	// printf exists, but certainly not under this version; the plain
	// lookup succeeding makes it misversioned rather than missing.
	out, err := Inspect(Options{
		RequestedName: "libc.so.6",
		Expectations: []expectations.Expectation{
			{Symbol: "printf", Version: "LIBCOMPAT_NOT_A_VERSION"},
			{Symbol: "libcompat_no_such_symbol", Version: "LIBCOMPAT_NOT_A_VERSION"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"printf@LIBCOMPAT_NOT_A_VERSION"}, out.MisversionedSymbols)
	assert.Equal(t, []string{"libcompat_no_such_symbol@LIBCOMPAT_NOT_A_VERSION"}, out.MissingSymbols)
}

func TestInspectSelfReferentialSkipped(t *testing.T) {
	// A pseudo-symbol naming a version definition must not surface from
	// the dynamic probe at all, present or not.
	out, err := Inspect(Options{
		RequestedName: "libc.so.6",
		Expectations: []expectations.Expectation{
			{Symbol: "GLIBC_NOT_REAL_2.99", Version: "GLIBC_NOT_REAL_2.99"},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, out.MissingSymbols)
	assert.Empty(t, out.MisversionedSymbols)
}

func TestInspectCannotLoad(t *testing.T) {
	_, err := Inspect(Options{RequestedName: "/nonexistent/path/libgone.so.0"})
	require.Error(t, err)

	assert.Equal(t, errors.CategoryLoad, errors.GetCategory(err))
	assert.NotEmpty(t, err.Error())
}

func TestInspectHiddenDepFailure(t *testing.T) {
	_, err := Inspect(Options{
		RequestedName: "libc.so.6",
		HiddenDeps:    []string{"libcompat-no-such-dep.so.9"},
	})
	require.Error(t, err)

	assert.True(t, stderrors.Is(err, errors.New(errors.ErrCodeHiddenDepFailed, "", nil)))
}
