package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localis/runtime-bundler/internal/config"
	"github.com/localis/runtime-bundler/internal/fetcher"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/packager"
	"github.com/localis/runtime-bundler/internal/patcher"
	"github.com/localis/runtime-bundler/internal/pipeline"
	"github.com/localis/runtime-bundler/internal/prereq"
	"github.com/localis/runtime-bundler/internal/resolver"
	"github.com/localis/runtime-bundler/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// skipVerify disables the post-build verification battery.
	skipVerify bool
	// versionOverride pins the bundle version instead of asking the repository.
	versionOverride string

	// buildCmd runs the full assembly pipeline and, by default, verifies the result.
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Assemble a runtime bundle from pinned artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			bundleVersion := version.DetectBundle(ctx, nil, cfg.AppRepo, versionOverride)
			p := pipeline.NewContext(cfg, bundleVersion)

			stages := []pipeline.Stage{
				&fetcher.Stage{},
				&resolver.Stage{},
				&patcher.Stage{},
				&prereq.Stage{},
				&packager.Stage{},
			}

			if err := pipeline.Run(ctx, p, stages); err != nil {
				return err
			}

			if skipVerify {
				logger.Warnf(ctx, "verification skipped, archive is unchecked: %s", p.ArchivePath)
				fmt.Fprintln(cmd.OutOrStdout(), p.ArchivePath)

				return nil
			}

			report, err := verifyArchive(ctx, cmd, cfg.PythonVersion, p.ArchivePath, false)
			if err != nil {
				return err
			}

			logger.InfoKV(ctx, "bundle ready",
				"archive", p.ArchivePath,
				"version", bundleVersion,
				"checks", len(report.Results))
			fmt.Fprintln(cmd.OutOrStdout(), p.ArchivePath)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	buildCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	buildCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "do not verify the archive after building")
	buildCmd.Flags().StringVar(&versionOverride, "version-override", "", "bundle version to stamp instead of the repository tag")

	rootCmd.AddCommand(buildCmd)
}
