package resolver

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/localis/runtime-bundler/internal/execx"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/pipeline"
)

// isolatedImportName is the import name the smoke test exercises for the
// isolated package (distribution name and import name differ).
const isolatedImportName = "llama_cpp"

// Stage resolves and installs the dependency closure into the staged
// interpreter.
type Stage struct {
	// Runner overrides the command runner (tests).
	Runner execx.Runner
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "resolve" }

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, p *pipeline.Context) error {
	requirementsPath := filepath.Join(p.Config.AppRepo, "requirements.txt")

	data, err := os.ReadFile(filepath.Clean(requirementsPath))
	if err != nil {
		return fmt.Errorf("read requirements: %w", err)
	}

	closure := ParseRequirements(data)

	source, err := ParseWheelSource(p.Config.WheelSource, p.Config.AcceleratedTags)
	if err != nil {
		return err
	}

	r := &Resolver{
		Python:    p.PythonExe(),
		Run:       s.Runner,
		IndexBase: p.Config.AcceleratedIndexURL,
	}

	getPip := filepath.Join(p.CacheDir, getPipName(p.Config.Artifacts.GetPipURL))
	if err := r.EnsurePip(ctx, getPip); err != nil {
		return err
	}

	if err := r.Preflight(ctx, closure); err != nil {
		return err
	}

	if err := r.InstallBulk(ctx, closure); err != nil {
		return err
	}

	if !closure.HasIsolated {
		logger.WarnKV(ctx, "Requirements file does not list the isolated package, skipping",
			"package", IsolatedPackage)
		return nil
	}

	if err := r.InstallIsolated(ctx, closure.Isolated, source); err != nil {
		return err
	}

	return r.SmokeTest(ctx, isolatedImportName)
}

// getPipName derives the cached bootstrap script filename from its URL.
func getPipName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "get-pip.py"
	}

	return path.Base(parsed.Path)
}
