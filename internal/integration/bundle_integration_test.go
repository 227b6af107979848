package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localis/runtime-bundler/internal/config"
	"github.com/localis/runtime-bundler/internal/packager"
	"github.com/localis/runtime-bundler/internal/patcher"
	"github.com/localis/runtime-bundler/internal/pipeline"
	"github.com/localis/runtime-bundler/internal/verifier"
)

// stagedRun prepares a run context whose staging tree already contains the
// fetched-and-resolved runtime, as if the earlier stages had completed.
func stagedRun(t *testing.T) *pipeline.Context {
	t.Helper()

	appRepo := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(appRepo, packager.LauncherName), []byte("print('launcher')\n"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(appRepo, "requirements.txt"), []byte("fastapi==0.111.0\n"), 0o644))

	cfg := config.Default()
	cfg.AppRepo = appRepo
	cfg.OutputDir = t.TempDir()
	cfg.CacheDir = t.TempDir()
	cfg.WheelSource = "official-cpu"
	require.NoError(t, config.Validate(cfg))

	p := pipeline.NewContext(cfg, "9.9.9")

	require.NoError(t, os.MkdirAll(p.PythonDir(), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(p.GitDir(), "bin", "git.exe")), 0o755))
	require.NoError(t, os.WriteFile(p.PythonExe(), []byte("fake interpreter"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(p.GitDir(), "bin", "git.exe"), []byte("fake git"), 0o755))

	return p
}

// TestPackageThenVerify_KnownGoodBundle drives the patch and package stages
// over a staged runtime tree, then has the verifier confirm the archive.
func TestPackageThenVerify_KnownGoodBundle(t *testing.T) {
	p := stagedRun(t)
	ctx := context.Background()

	require.NoError(t, (&patcher.Stage{}).Run(ctx, p))
	require.NoError(t, (&packager.Stage{}).Run(ctx, p))
	require.NotEmpty(t, p.ArchivePath)

	// The side-car must hold the archive's actual digest.
	archiveData, err := os.ReadFile(p.ArchivePath)
	require.NoError(t, err)

	digest := sha256.Sum256(archiveData)
	sidecar, err := os.ReadFile(p.ArchivePath + ".sha256")
	require.NoError(t, err)
	require.Equal(t,
		fmt.Sprintf("%s  %s\n", hex.EncodeToString(digest[:]), filepath.Base(p.ArchivePath)),
		string(sidecar))

	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		switch {
		case strings.HasSuffix(name, "python.exe") && len(args) == 1:
			return []byte("Python " + p.Config.PythonVersion + "\n"), nil
		case strings.HasSuffix(name, "git.exe"):
			return []byte("git version 2.45.2.windows.1\n"), nil
		default:
			return nil, nil
		}
	}

	v := &verifier.Verifier{Run: runner, PythonVersion: p.Config.PythonVersion}

	report, err := v.Verify(ctx, p.ArchivePath)
	require.NoError(t, err)
	require.False(t, report.Failed())
}

// TestPackage_DeterministicAcrossRuns rebuilds the archive from the same
// staging tree and expects byte-identical output.
func TestPackage_DeterministicAcrossRuns(t *testing.T) {
	p := stagedRun(t)
	ctx := context.Background()

	require.NoError(t, (&patcher.Stage{}).Run(ctx, p))
	require.NoError(t, (&packager.Stage{}).Run(ctx, p))

	first, err := os.ReadFile(p.ArchivePath)
	require.NoError(t, err)

	require.NoError(t, (&packager.Stage{}).Run(ctx, p))

	second, err := os.ReadFile(p.ArchivePath)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// TestPackage_RefusesIncompleteStaging expects a missing canonical file to
// stop packaging before any archive is written.
func TestPackage_RefusesIncompleteStaging(t *testing.T) {
	p := stagedRun(t)
	ctx := context.Background()

	require.NoError(t, (&patcher.Stage{}).Run(ctx, p))
	require.NoError(t, os.Remove(filepath.Join(p.GitDir(), "bin", "git.exe")))

	err := (&packager.Stage{}).Run(ctx, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), packager.GitExePath)

	_, statErr := os.Stat(filepath.Join(p.Config.OutputDir, packager.ArchiveName(p.BundleVersion)))
	require.True(t, os.IsNotExist(statErr))
}
