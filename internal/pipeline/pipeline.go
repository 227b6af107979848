package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/localis/runtime-bundler/internal/config"
	"github.com/localis/runtime-bundler/internal/logger"
)

const (
	// lockFilename guards the staging tree against concurrent builds.
	lockFilename = "bundler.lock"

	// stagingDirName is the directory under the output root owned by the stages.
	stagingDirName = "staging"
)

// errBuildLocked indicates another bundler run owns the staging tree.
var errBuildLocked = errors.New("another build is running against this output directory")

// Context carries the per-run state threaded through every stage.
// Stages communicate through directories under StagingRoot only.
type Context struct {
	// RunID identifies this run in logs and temporary names.
	RunID string
	// Config holds the validated settings for this run.
	Config *config.Config
	// StagingRoot is the clean tree whose layout becomes the archive layout.
	StagingRoot string
	// CacheDir holds fetched artifacts that may be reused across runs.
	CacheDir string
	// BundleVersion is the version stamped on the produced archive.
	BundleVersion string
	// ArchivePath is set by the packager once the archive is written.
	ArchivePath string
}

// NewContext builds a run context from validated settings.
func NewContext(cfg *config.Config, bundleVersion string) *Context {
	return &Context{
		RunID:         uuid.NewString(),
		Config:        cfg,
		StagingRoot:   filepath.Join(cfg.OutputDir, stagingDirName),
		CacheDir:      cfg.CacheDir,
		BundleVersion: bundleVersion,
	}
}

// PythonDir returns the staged embedded interpreter directory.
func (p *Context) PythonDir() string {
	return filepath.Join(p.StagingRoot, "runtime", "python")
}

// PythonExe returns the staged embedded interpreter binary.
func (p *Context) PythonExe() string {
	return filepath.Join(p.PythonDir(), "python.exe")
}

// GitDir returns the staged version-control tree.
func (p *Context) GitDir() string {
	return filepath.Join(p.StagingRoot, "runtime", "git")
}

// Stage is one sequential step of the build pipeline.
// Stages fail fast: the first error aborts the run with no archive produced.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string
	// Run executes the stage against the shared run context.
	Run(ctx context.Context, p *Context) error
}

// Run executes the stages in order under an exclusive build lock.
// The staging tree is recreated from scratch: partial state from an
// interrupted run is deleted rather than resumed.
func Run(ctx context.Context, p *Context, stages []Stage) error {
	if err := os.MkdirAll(p.Config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(p.Config.OutputDir, lockFilename))

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}

	if !locked {
		return errBuildLocked
	}

	defer func() {
		_ = lock.Unlock()
	}()

	if err := resetStaging(p.StagingRoot); err != nil {
		return err
	}

	if err := os.MkdirAll(p.CacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	logger.InfoKV(ctx, "Starting build pipeline",
		"run_id", p.RunID, "version", p.BundleVersion, "staging", p.StagingRoot)

	for _, stage := range stages {
		stageCtx := logger.WithName(ctx, stage.Name())

		logger.InfoKV(stageCtx, "Stage starting", "stage", stage.Name())

		if err := stage.Run(stageCtx, p); err != nil {
			logger.ErrorKV(stageCtx, "Stage failed", "stage", stage.Name(), "error", err)
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		logger.InfoKV(stageCtx, "Stage completed", "stage", stage.Name())
	}

	return nil
}

// resetStaging removes any previous staging tree and creates a fresh one.
func resetStaging(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove previous staging tree: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create staging tree: %w", err)
	}

	return nil
}
