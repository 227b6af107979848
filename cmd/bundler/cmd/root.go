package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/version"
)

var (
	// logLevel controls verbosity for every subcommand.
	logLevel string

	// rootCmd represents the base command for assembling and checking runtime bundles.
	rootCmd = &cobra.Command{
		Use:   "localis-bundler",
		Short: "Assemble and verify portable Python runtime bundles.",
		Long: `Builds self-contained Windows runtime bundles for the Localis desktop
application: a pinned embeddable Python, a minimal Git, the binary-only
dependency closure, and the application launcher, packaged into a
deterministic zip with a checksum sidecar.

The verify subcommand independently checks a produced archive without
trusting anything from the build that made it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the localis-bundler CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}
