package resolver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/localis/runtime-bundler/internal/execx"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/pipeline"
)

// Resolver installs a pinned, binary-only dependency closure into the
// embedded interpreter. Source compilation is never attempted: the target
// host carries no compiler toolchain, so a requirement without a wheel is
// a fatal configuration problem, not something to build around.
type Resolver struct {
	// Python is the embedded interpreter binary.
	Python string
	// Run executes pip and interpreter subprocesses.
	Run execx.Runner
	// IndexBase is the accelerated wheel index base URL.
	IndexBase string
}

// run dispatches through the injected runner, defaulting to execx.Run.
func (r *Resolver) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Run != nil {
		return r.Run(ctx, name, args...)
	}

	return execx.Run(ctx, name, args...)
}

// EnsurePip bootstraps pip inside the embedded interpreter using the
// fetched bootstrap script. The embeddable distribution ships without pip.
func (r *Resolver) EnsurePip(ctx context.Context, getPipPath string) error {
	output, err := r.run(ctx, r.Python, getPipPath, "--no-warn-script-location")
	if err != nil {
		return &pipeline.DependencyInstallError{
			Requirement: "pip bootstrap",
			Err:         fmt.Errorf("%w: %s", err, firstLines(output, 5)),
		}
	}

	return nil
}

// Preflight checks that every bulk requirement resolves to a binary-only
// artifact before anything is installed. The first unsatisfiable
// requirement aborts the run; no partial installation happens.
func (r *Resolver) Preflight(ctx context.Context, closure Closure) error {
	checkDir, err := os.MkdirTemp("", "localis-preflight-")
	if err != nil {
		return fmt.Errorf("create preflight directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(checkDir)
	}()

	for _, req := range closure.Bulk {
		logger.DebugKV(ctx, "Preflight check", "requirement", req.Line)

		output, err := r.run(ctx, r.Python, "-m", "pip", "download",
			"--only-binary=:all:", "--no-deps", "--dest", checkDir, req.Line)
		if err != nil {
			return &pipeline.DependencyPreflightError{
				Requirement: req.Line,
				Err:         fmt.Errorf("%w: %s", err, firstLines(output, 5)),
			}
		}
	}

	logger.InfoKV(ctx, "Preflight passed", "requirements", len(closure.Bulk))

	return nil
}

// InstallBulk installs the bulk subset with binary-only constraints.
func (r *Resolver) InstallBulk(ctx context.Context, closure Closure) error {
	if len(closure.Bulk) == 0 {
		return nil
	}

	args := []string{"-m", "pip", "install", "--only-binary=:all:", "--no-warn-script-location"}
	for _, req := range closure.Bulk {
		args = append(args, req.Line)
	}

	output, err := r.run(ctx, r.Python, args...)
	if err != nil {
		return &pipeline.DependencyInstallError{
			Requirement: "bulk closure",
			Err:         fmt.Errorf("%w: %s", err, firstLines(output, 5)),
		}
	}

	return nil
}

// InstallIsolated installs the isolated package according to exactly one
// wheel source variant. A failed attempt surfaces a diagnostic telling the
// operator to select a different variant explicitly; cascading silently
// could pick a build for the wrong acceleration target.
func (r *Resolver) InstallIsolated(ctx context.Context, req Requirement, source WheelSource) error {
	args := []string{"-m", "pip", "install", "--no-warn-script-location"}

	switch source.Kind {
	case WheelOfficialCPU:
		args = append(args, "--only-binary=:all:", req.Line)

	case WheelOfficialAccelerated:
		args = append(args,
			"--prefer-binary",
			"--extra-index-url", strings.TrimRight(r.IndexBase, "/")+"/"+source.Tag,
			req.Line)

	case WheelExplicitURL:
		args = append(args, source.URL)

	case WheelLocalPath:
		if _, err := os.Stat(source.Path); err != nil {
			return &pipeline.DependencyInstallError{
				Requirement: req.Name(),
				Hint:        "the local wheel path does not exist; choose a different wheel_source",
				Err:         err,
			}
		}

		args = append(args, source.Path)
	}

	logger.InfoKV(ctx, "Installing isolated package",
		"package", req.Name(), "wheel_source", source.String())

	output, err := r.run(ctx, r.Python, args...)
	if err != nil {
		return &pipeline.DependencyInstallError{
			Requirement: req.Name(),
			Hint:        fmt.Sprintf("wheel source %q did not yield an installable build; choose a different wheel_source explicitly", source.String()),
			Err:         fmt.Errorf("%w: %s", err, firstLines(output, 5)),
		}
	}

	return nil
}

// SmokeTest imports the isolated package in a fresh interpreter subprocess.
// Failure here means a loadable-but-broken binary, reported distinctly from
// an installation failure.
func (r *Resolver) SmokeTest(ctx context.Context, importName string) error {
	output, err := r.run(ctx, r.Python, "-c", "import "+importName)
	if err == nil {
		return nil
	}

	text := string(output)
	installed := !strings.Contains(text, "ModuleNotFoundError") &&
		!strings.Contains(text, "No module named")

	return &pipeline.SmokeTestError{
		Package:   importName,
		Output:    firstLines(output, 5),
		Installed: installed,
	}
}

// firstLines truncates command output for diagnostics.
func firstLines(output []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
