//go:build linux

// Package main provides the inspect-library probe helper.
//
// The helper loads REQUESTED_NAME through the dynamic loader, resolves
// each expected symbol against it and reports what it saw as line-based
// key=value records on stdout. Missing symbols are reported through the
// record stream, not through the exit code; a usage error or a fatal load
// failure exits 1 with the diagnostic on stderr.
//
// Usage:
//
//	inspect-library [--hidden-dependency=LIB]... [--deb-symbols]
//	                [--soname-for-symbols=NAME] [--line-based]
//	                [--version] REQUESTED_NAME [SYMBOLS_FILE|-]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/triageworks/libcompat/internal/dynprobe"
	cerrors "github.com/triageworks/libcompat/internal/errors"
	"github.com/triageworks/libcompat/internal/expectations"
	"github.com/triageworks/libcompat/internal/wire"
	"github.com/triageworks/libcompat/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		hiddenDeps       []string
		debSymbols       bool
		sonameForSymbols string
		lineBased        bool
		showVersion      bool
	)

	cmd := &cobra.Command{
		Use:           "inspect-library REQUESTED_NAME [SYMBOLS_FILE|-]",
		Short:         "Load a shared library and resolve expected symbols against it",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if len(args) < 1 || len(args) > 2 {
				return cerrors.UsageError("expected REQUESTED_NAME and optionally a symbols file", nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.Block("inspect-library"))
				return nil
			}
			_ = lineBased // output is always line-based
			return run(cmd, args, hiddenDeps, debSymbols, sonameForSymbols)
		},
	}

	cmd.Flags().StringArrayVar(&hiddenDeps, "hidden-dependency", nil,
		"Library to pre-load globally before the target (repeatable)")
	cmd.Flags().BoolVar(&debSymbols, "deb-symbols", false,
		"Treat the symbols file as a deb-symbols manifest")
	cmd.Flags().StringVar(&sonameForSymbols, "soname-for-symbols", "",
		"SONAME block to select in a deb-symbols manifest (default: REQUESTED_NAME)")
	cmd.Flags().BoolVar(&lineBased, "line-based", false,
		"Emit line-based key=value records (the only supported format)")
	cmd.Flags().BoolVar(&showVersion, "version", false,
		"Print version information and exit")

	return cmd
}

func run(cmd *cobra.Command, args []string, hiddenDeps []string, debSymbols bool, sonameForSymbols string) error {
	requested := args[0]

	var exps []expectations.Expectation
	if len(args) == 2 {
		format := expectations.FormatPlain
		if debSymbols {
			format = expectations.FormatDebSymbols
		}
		soname := sonameForSymbols
		if soname == "" {
			soname = requested
		}
		res, err := expectations.Load(args[1], format, soname)
		if err != nil {
			return err
		}
		if res.Warning != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Warning)
		}
		exps = res.Symbols
	}

	out, err := dynprobe.Inspect(dynprobe.Options{
		RequestedName: requested,
		HiddenDeps:    hiddenDeps,
		Expectations:  exps,
	})
	if err != nil {
		return err
	}

	w := wire.NewWriter(cmd.OutOrStdout())
	records := []struct{ key, value string }{
		{wire.KeyRequested, out.Identity.RequestedName},
		{wire.KeySONAME, out.Identity.RealSONAME},
		{wire.KeyPath, out.Identity.ResolvedPath},
	}
	for _, r := range records {
		if err := w.Write(r.key, r.value); err != nil {
			return err
		}
	}
	for _, s := range out.MissingSymbols {
		if err := w.Write(wire.KeyMissingSymbol, s); err != nil {
			return err
		}
	}
	for _, s := range out.MisversionedSymbols {
		if err := w.Write(wire.KeyMisversionedSymbol, s); err != nil {
			return err
		}
	}
	for _, d := range out.Dependencies {
		if err := w.Write(wire.KeyDependency, d); err != nil {
			return err
		}
	}
	return nil
}
