package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/triageworks/libcompat/internal/checker"
	"github.com/triageworks/libcompat/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the probe helpers and loader work",
		Long: `Run system diagnostics to ensure libcompat can operate correctly.

Checks:
  - Probe helpers present and executable
  - Probe helpers answer --version
  - The dynamic loader can load libc.so.6
  - Log directory writable

The loader and log directory checks are non-critical warnings.

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  libcompat doctor

  # JSON output for scripting
  libcompat doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The doctor reports the same probe paths the checker would use.
	dynamic, static := cfg.Probes.Dynamic, cfg.Probes.Static
	if dynamic == "" {
		dynamic = checker.FindProbe(checker.ProbeDynamic)
	}
	if static == "" {
		static = checker.FindProbe(checker.ProbeStatic)
	}

	pc := preflight.New(
		preflight.WithProbePaths(dynamic, static),
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := pc.RunAll(ctx)

	if jsonOutput {
		payload := struct {
			Status string                  `json:"status"`
			Checks []preflight.CheckResult `json:"checks"`
		}{
			Status: pc.SummaryStatus(results),
			Checks: results,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return err
		}
	} else {
		pc.PrintResults(results)
	}

	if pc.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}
