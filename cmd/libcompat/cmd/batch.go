package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/triageworks/libcompat/internal/arch"
	"github.com/triageworks/libcompat/internal/checker"
	"github.com/triageworks/libcompat/internal/config"
	"github.com/triageworks/libcompat/internal/expectations"
	"github.com/triageworks/libcompat/internal/library"
	"github.com/triageworks/libcompat/internal/output"
)

func newBatchCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
		skipSlow   bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Check every library listed in the config file",
		Long: `Check all libraries from the configuration's libraries list.

Checks run concurrently, bounded by check.workers, but reports are
printed in the order the config lists them. The exit status is nonzero
when any library has issues.`,
		Example: `  # Check everything in ~/.config/libcompat/config.yaml
  libcompat batch

  # A runtime manifest, machine-readable
  libcompat batch --config runtime.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, jsonOutput, noColor, skipSlow, workers)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output reports as a JSON array")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&skipSlow, "skip-slow", false, "Skip the version definition table check")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent checks (default from config)")

	return cmd
}

func runBatch(cmd *cobra.Command, jsonOutput, noColor, skipSlow bool, workers int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Libraries) == 0 {
		return fmt.Errorf("no libraries configured; add a libraries list to the config file")
	}

	reqs, err := batchRequests(cfg, skipSlow)
	if err != nil {
		return err
	}

	if workers <= 0 {
		workers = cfg.Check.Workers
	}
	if workers <= 0 {
		workers = 1
	}

	c := checker.New(checker.WithProbePaths(cfg.Probes.Dynamic, cfg.Probes.Static))

	reports := make([]library.Report, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			rep, err := c.CheckLibrary(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.RequestedName, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, rep := range reports {
		if rep.Issues != 0 {
			failed++
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		w := output.New(cmd.OutOrStdout(), output.WithColor(!noColor && colorDefault(cmd)))
		for _, rep := range reports {
			w.Report(rep)
		}
		w.Summary(len(reports), failed)
	}

	if failed > 0 {
		return &issuesError{failed: failed}
	}
	return nil
}

// batchRequests turns config entries into check requests, validating
// everything up front so a typo fails before any probe runs.
func batchRequests(cfg config.Config, skipSlow bool) ([]checker.Request, error) {
	reqs := make([]checker.Request, 0, len(cfg.Libraries))
	for _, lib := range cfg.Libraries {
		if lib.Name == "" {
			return nil, fmt.Errorf("config: library entry with empty name")
		}
		req := checker.Request{
			RequestedName:   lib.Name,
			ExpectationPath: lib.Expectations,
			HiddenDeps:      lib.HiddenDeps,
			SkipSlow:        skipSlow || cfg.Check.SkipSlow,
			Timeout:         cfg.Timeout(),
		}
		if lib.Format != "" {
			format, err := expectations.ParseFormat(lib.Format)
			if err != nil {
				return nil, fmt.Errorf("config: library %s: %w", lib.Name, err)
			}
			req.Format = format
		}
		if lib.Arch != "" {
			tag, err := arch.Parse(lib.Arch)
			if err != nil {
				return nil, fmt.Errorf("config: library %s: %w", lib.Name, err)
			}
			req.Arch = tag
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
