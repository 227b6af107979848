package prereq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/localis/runtime-bundler/internal/execx"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/pipeline"
)

// Outcome classifies a prerequisite installation run.
type Outcome int

const (
	// OutcomeAlreadyPresent means the marker was found and nothing ran.
	OutcomeAlreadyPresent Outcome = iota
	// OutcomeInstalled means the installer ran and the marker is confirmed.
	OutcomeInstalled
	// OutcomeRestartPending means the installer succeeded but the host
	// needs a restart before the runtime can load. The bundle itself is
	// still valid.
	OutcomeRestartPending
)

// Installer exit codes with non-fatal meanings.
const (
	exitRestartRequired = 3010
	exitNewerInstalled  = 1638
)

// ErrUnsupportedHost is reported by probes on hosts without the
// installation marker mechanism.
var ErrUnsupportedHost = errors.New("prerequisite marker is not queryable on this host")

// Probe queries the host-level installation marker.
type Probe interface {
	// Present reports whether the prerequisite is installed.
	Present(ctx context.Context) (bool, error)
}

// Installer idempotently ensures the native runtime prerequisite is
// installed on the build host.
type Installer struct {
	// Probe queries the installation marker.
	Probe Probe
	// Run executes the silent installer.
	Run execx.Runner
	// InstallerPath is the fetched redistributable installer.
	InstallerPath string
}

// Ensure runs the check-first flow: marker present means no-op; otherwise
// the silent installer runs and its exit code is classified. The marker is
// re-queried afterwards: a confirmed marker outranks a non-zero exit code,
// and a missing marker outranks a zero one.
func (i *Installer) Ensure(ctx context.Context) (Outcome, error) {
	present, err := i.Probe.Present(ctx)
	if err != nil {
		return OutcomeAlreadyPresent, err
	}

	if present {
		logger.Info(ctx, "Prerequisite already installed, nothing to do")
		return OutcomeAlreadyPresent, nil
	}

	logger.InfoKV(ctx, "Installing prerequisite silently", "installer", i.InstallerPath)

	run := i.Run
	if run == nil {
		run = execx.Run
	}

	output, runErr := run(ctx, i.InstallerPath, "/install", "/quiet", "/norestart")
	code := execx.ExitCode(runErr)

	if code == exitRestartRequired {
		logger.Warn(ctx, "Prerequisite installed but the host requires a restart before the runtime can load")
		return OutcomeRestartPending, nil
	}

	confirmed, probeErr := i.Probe.Present(ctx)
	if probeErr != nil {
		return OutcomeInstalled, probeErr
	}

	if confirmed {
		if code != 0 && code != exitNewerInstalled {
			logger.WarnKV(ctx, "Installer exit code non-zero but marker confirmed, treating as success",
				"exit_code", code)
		}

		return OutcomeInstalled, nil
	}

	detail := "installation marker absent after the installer finished"
	if runErr != nil {
		detail = fmt.Sprintf("%s: %s", detail, string(output))
	}

	return OutcomeInstalled, &pipeline.PrerequisiteInstallError{ExitCode: code, Detail: detail}
}

// Stage ensures the redistributable on the build host.
type Stage struct {
	// Probe overrides the platform marker probe (tests).
	Probe Probe
	// Runner overrides the command runner (tests).
	Runner execx.Runner
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "prereq" }

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, p *pipeline.Context) error {
	probe := s.Probe
	if probe == nil {
		probe = NewPlatformProbe()
	}

	installer := &Installer{
		Probe:         probe,
		Run:           s.Runner,
		InstallerPath: filepath.Join(p.CacheDir, installerName(p.Config.Artifacts.VCRedistURL)),
	}

	outcome, err := installer.Ensure(ctx)
	if errors.Is(err, ErrUnsupportedHost) {
		// The prerequisite only matters for executing the bundle on this
		// host; packaging on another platform is still valid.
		logger.Warn(ctx, "Prerequisite marker not queryable on this host, skipping installation")
		return nil
	}

	if err != nil {
		return err
	}

	if outcome == OutcomeRestartPending {
		logger.Warn(ctx, "Continuing packaging; reboot this host before running the bundle locally")
	}

	return nil
}

// installerName derives the cached installer filename from its URL.
func installerName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "vc_redist.x64.exe"
	}

	return path.Base(parsed.Path)
}
