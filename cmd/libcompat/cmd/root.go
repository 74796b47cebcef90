// Package cmd provides the CLI commands for libcompat.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/triageworks/libcompat/internal/config"
	"github.com/triageworks/libcompat/internal/logging"
	"github.com/triageworks/libcompat/pkg/version"
)

var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the libcompat CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libcompat",
		Short: "Check shared library ABI compatibility",
		Long: `libcompat verifies that the shared libraries on a system provide
the symbols and symbol versions an application expects.

Each library is checked in a short-lived probe process, so a library
whose initializers crash or hang cannot take the tool down with it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("libcompat version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.libcompat/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/libcompat/config.yaml)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug logging when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

// stopLogging flushes and closes the debug log.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig loads the configuration honoring the --config flag.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
