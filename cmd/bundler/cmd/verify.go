package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localis/runtime-bundler/internal/config"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/verifier"
)

var (
	// keepExtracted preserves the extraction directory for inspection.
	keepExtracted bool
	// verifyPythonVersion is the interpreter version the archive must report.
	verifyPythonVersion string

	// verifyCmd checks an already-built archive without rebuilding anything.
	verifyCmd = &cobra.Command{
		Use:   "verify [archive]",
		Short: "Verify a built bundle archive is fit for distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := verifyArchive(ctx, cmd, verifyPythonVersion, args[0], keepExtracted)

			return err
		},
	}
)

// verifyArchive runs the check battery and prints the report. The three
// failure shapes ask for different operator responses, so each gets its own
// diagnostic before the error propagates.
func verifyArchive(
	ctx context.Context,
	cmd *cobra.Command,
	pythonVersion, archivePath string,
	keep bool,
) (*verifier.Report, error) {
	v := &verifier.Verifier{PythonVersion: pythonVersion, KeepExtracted: keep}

	report, err := v.Verify(ctx, archivePath)

	switch {
	case errors.Is(err, verifier.ErrArchiveNotFound):
		logger.Errorf(ctx, "nothing to verify: %v", err)
	case errors.Is(err, verifier.ErrChecksFailed):
		fmt.Fprintln(cmd.OutOrStdout(), report.Render())
		logger.Errorf(ctx, "%s", report.Summary())
	case err != nil:
		// Extraction failed before any content check could run.
		logger.Errorf(ctx, "archive could not be extracted: %v", err)
	default:
		fmt.Fprintln(cmd.OutOrStdout(), report.Render())
		logger.Infof(ctx, "%s", report.Summary())
	}

	return report, err
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	verifyCmd.Flags().BoolVar(&keepExtracted, "keep-extracted", false, "keep the extraction directory after verification")
	verifyCmd.Flags().
		StringVar(&verifyPythonVersion, "python-version", config.Default().PythonVersion, "interpreter version the archive must report")

	rootCmd.AddCommand(verifyCmd)
}
