package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/triageworks/libcompat/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		filter  string
		noColor bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View libcompat debug logs",
		Long: `View and tail the debug log written by --debug runs.

By default, shows the last 50 lines. Use -f to follow new entries in
real-time (like 'tail -f').`,
		Example: `  # Show last 50 lines
  libcompat logs

  # Follow in real-time
  libcompat logs -f

  # Only errors mentioning one library
  libcompat logs --level error --filter "libvulkan"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, logsOptions{
				follow:  follow,
				lines:   lines,
				level:   level,
				filter:  filter,
				noColor: noColor,
				logFile: logFile,
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file (default ~/.libcompat/logs/check.log)")

	return cmd
}

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path := opts.logFile
	if path == "" {
		path = logging.DefaultLogPath()
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no log file at %s; run with --debug first", path)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, cmd.OutOrStdout())

	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(cmd.ErrOrStderr(), "Following... (Ctrl+C to stop)")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "---")

	if opts.follow {
		return followLog(cmd, viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func followLog(cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.Entry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "\n---")
			fmt.Fprintln(cmd.ErrOrStderr(), "Stopped.")
			return nil
		}
	}
}
