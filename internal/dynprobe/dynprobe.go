//go:build linux

// Package dynprobe inspects a shared library through the live dynamic
// loader: it loads the target, reads its identity out of the loader's
// link_map, walks the loaded-module chain for dependencies and resolves
// each expected symbol with dlsym/dlvsym.
//
// This package runs inside the short-lived inspect-library helper, not in
// the orchestrator: a malformed library can take the whole process down
// with it, and the process boundary is what contains that.
package dynprobe

import (
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/triageworks/libcompat/internal/errors"
	"github.com/triageworks/libcompat/internal/expectations"
	"github.com/triageworks/libcompat/internal/library"
)

// Options configures one inspection.
type Options struct {
	// RequestedName is the library to load, a bare SONAME or a path.
	RequestedName string

	// HiddenDeps are libraries pre-loaded globally before the target, for
	// targets that only resolve once a sibling is already in the process.
	HiddenDeps []string

	// Expectations are the symbols to resolve against the target.
	Expectations []expectations.Expectation
}

// Outcome is what the inspection observed.
type Outcome struct {
	Identity            library.Identity
	MissingSymbols      []string
	MisversionedSymbols []string
	Dependencies        []string
}

// Inspect loads the target and resolves every expectation against it.
// A hidden-dependency failure or a target load failure is returned as a
// load error carrying the loader's own diagnostic text.
func Inspect(opts Options) (*Outcome, error) {
	for _, dep := range opts.HiddenDeps {
		if _, err := purego.Dlopen(dep, purego.RTLD_NOW|purego.RTLD_GLOBAL); err != nil {
			return nil, errors.New(errors.ErrCodeHiddenDepFailed,
				fmt.Sprintf("hidden dependency %s: %v", dep, err), err)
		}
	}

	handle, err := purego.Dlopen(opts.RequestedName, purego.RTLD_NOW)
	if err != nil {
		return nil, errors.LoadError(err.Error(), err)
	}
	// The handle is deliberately not closed: the process exits right
	// after the inspection, and unloading a half-broken library can
	// run destructors in it.

	out := &Outcome{
		Identity: library.Identity{RequestedName: opts.RequestedName},
	}

	lm, err := linkMapFor(handle)
	if err != nil {
		return nil, err
	}
	out.Identity.ResolvedPath = goString(lm.name)
	out.Identity.RealSONAME = sonameFromDynamic(lm)
	out.Dependencies = collectDependencies(lm)

	resolvePlain, resolveVersioned := resolvers(handle)
	for _, e := range opts.Expectations {
		switch {
		case e.SelfReferential():
			// A pseudo-symbol naming a version definition is never
			// resolvable through the loader; the static probe owns it.
		case e.Unversioned():
			if !resolvePlain(e.Symbol) {
				out.MissingSymbols = append(out.MissingSymbols, e.String())
			}
		default:
			if resolveVersioned(e.Symbol, e.Version) {
				break
			}
			if resolvePlain(e.Symbol) {
				out.MisversionedSymbols = append(out.MisversionedSymbols, e.String())
			} else {
				out.MissingSymbols = append(out.MissingSymbols, e.String())
			}
		}
	}

	return out, nil
}

// resolvers returns the plain and versioned lookup functions bound to the
// target handle. dlvsym is a GNU extension, fetched from libc at runtime.
func resolvers(handle uintptr) (func(string) bool, func(string, string) bool) {
	plain := func(symbol string) bool {
		addr, err := purego.Dlsym(handle, symbol)
		return err == nil && addr != 0
	}

	versioned := func(symbol, version string) bool {
		return dlvsym(handle, symbol, version) != 0
	}

	return plain, versioned
}
