// Package main provides the inspect-versions probe helper.
//
// The helper opens LIBRARY_PATH as a raw ELF file, without executing any
// of its code, and checks the library's version-definition table against
// the version expectations in SYMBOLS_FILE. Results are line-based
// key=value records on stdout; malformed ELF content exits 1 with the
// diagnostic on stderr.
//
// Usage:
//
//	inspect-versions [--soname-for-symbols=NAME] [--deb-symbols]
//	                 [--line-based] [--version] LIBRARY_PATH SYMBOLS_FILE
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/triageworks/libcompat/internal/elfver"
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
		debSymbols       bool
		sonameForSymbols string
		lineBased        bool
		showVersion      bool
	)

	cmd := &cobra.Command{
		Use:           "inspect-versions LIBRARY_PATH SYMBOLS_FILE",
		Short:         "Check a library's ELF version-definition table against expectations",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if len(args) != 2 {
				return cerrors.UsageError("expected LIBRARY_PATH and SYMBOLS_FILE", nil)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.Block("inspect-versions"))
				return nil
			}
			_ = lineBased // records are always line-based
			return run(cmd, args, debSymbols, sonameForSymbols)
		},
	}

	cmd.Flags().BoolVar(&debSymbols, "deb-symbols", false,
		"Treat the symbols file as a deb-symbols manifest")
	cmd.Flags().StringVar(&sonameForSymbols, "soname-for-symbols", "",
		"SONAME block to select in a deb-symbols manifest (default: LIBRARY_PATH)")
	cmd.Flags().BoolVar(&lineBased, "line-based", false,
		"Emit line-based key=value records (the only supported format)")
	cmd.Flags().BoolVar(&showVersion, "version", false,
		"Print version information and exit")

	return cmd
}

func run(cmd *cobra.Command, args []string, debSymbols bool, sonameForSymbols string) error {
	path, err := elfver.Locate(args[0])
	if err != nil {
		return err
	}

	format := expectations.FormatPlain
	if debSymbols {
		format = expectations.FormatDebSymbols
	}
	soname := sonameForSymbols
	if soname == "" {
		soname = args[0]
	}
	res, err := expectations.Load(args[1], format, soname)
	if err != nil {
		return err
	}
	if res.Warning != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Warning)
	}

	versions, err := elfver.Versions(path)
	if err != nil {
		return err
	}
	missing, unversioned := elfver.Check(res.Symbols, versions)

	w := wire.NewWriter(cmd.OutOrStdout())
	if err := w.Write(wire.KeyRequested, args[0]); err != nil {
		return err
	}
	for _, v := range missing {
		if err := w.Write(wire.KeyMissingVersion, v); err != nil {
			return err
		}
	}
	return w.Write(wire.KeyUnversioned, strconv.FormatBool(unversioned))
}
