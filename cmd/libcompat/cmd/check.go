package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/triageworks/libcompat/internal/arch"
	"github.com/triageworks/libcompat/internal/checker"
	"github.com/triageworks/libcompat/internal/expectations"
	"github.com/triageworks/libcompat/internal/output"
)

// issuesError makes a failed check exit nonzero without cobra printing
// a second error line; the report already said everything.
type issuesError struct {
	failed int
}

func (e *issuesError) Error() string {
	return fmt.Sprintf("%d libraries with issues", e.failed)
}

func newCheckCmd() *cobra.Command {
	var (
		archName   string
		symbols    string
		debSymbols bool
		hiddenDeps []string
		skipSlow   bool
		timeout    time.Duration
		jsonOutput bool
		noColor    bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "check LIBRARY",
		Short: "Check one shared library against expected symbols",
		Long: `Check that a shared library loads and provides the expected symbols.

LIBRARY is a bare SONAME like libz.so.1 (resolved by the dynamic
loader) or an absolute path.

Without --symbols only the load check runs. With --symbols the probe
also resolves every listed symbol and the library's version definition
table is compared against the versions the expectations mention.`,
		Example: `  # Does the library load at all?
  libcompat check libvulkan.so.1

  # Full symbol check
  libcompat check libz.so.1 --symbols expectations/libz.txt

  # Debian symbols file covering several libraries
  libcompat check libgl1.so.1 --symbols libgl1.symbols --deb-symbols`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], checkOptions{
				archName:   archName,
				symbols:    symbols,
				debSymbols: debSymbols,
				hiddenDeps: hiddenDeps,
				skipSlow:   skipSlow,
				timeout:    timeout,
				jsonOutput: jsonOutput,
				noColor:    noColor,
				verbose:    verbose,
			})
		},
	}

	cmd.Flags().StringVar(&archName, "arch", "", "ABI to check against (default: current)")
	cmd.Flags().StringVarP(&symbols, "symbols", "s", "", "Expected symbols file (\"-\" for stdin)")
	cmd.Flags().BoolVar(&debSymbols, "deb-symbols", false, "Parse the symbols file as a Debian symbols file")
	cmd.Flags().StringArrayVar(&hiddenDeps, "hidden-dependency", nil, "Library to pre-load before the target (repeatable)")
	cmd.Flags().BoolVar(&skipSlow, "skip-slow", false, "Skip the version definition table check")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-probe timeout (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print the loaded dependency closure")

	return cmd
}

type checkOptions struct {
	archName   string
	symbols    string
	debSymbols bool
	hiddenDeps []string
	skipSlow   bool
	timeout    time.Duration
	jsonOutput bool
	noColor    bool
	verbose    bool
}

func runCheck(cmd *cobra.Command, name string, opts checkOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req := checker.Request{
		RequestedName:   name,
		ExpectationPath: opts.symbols,
		HiddenDeps:      opts.hiddenDeps,
		SkipSlow:        opts.skipSlow || cfg.Check.SkipSlow,
		Timeout:         opts.timeout,
	}
	if req.Timeout == 0 {
		req.Timeout = cfg.Timeout()
	}
	if opts.debSymbols {
		req.Format = expectations.FormatDebSymbols
	}
	if opts.archName != "" {
		tag, err := arch.Parse(opts.archName)
		if err != nil {
			return err
		}
		req.Arch = tag
	}

	c := checker.New(checker.WithProbePaths(cfg.Probes.Dynamic, cfg.Probes.Static))
	rep, err := c.CheckLibrary(ctx, req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		w := output.New(cmd.OutOrStdout(), output.WithColor(!opts.noColor && colorDefault(cmd)))
		w.Report(rep)
		if opts.verbose {
			w.Dependencies(rep.Result.Dependencies)
		}
	}

	if rep.Issues != 0 {
		return &issuesError{failed: 1}
	}
	return nil
}

// colorDefault decides whether styling applies when --no-color is not
// given: only when stdout is the process terminal.
func colorDefault(cmd *cobra.Command) bool {
	return cmd.OutOrStdout() == os.Stdout && output.IsTerminal(os.Stdout)
}
