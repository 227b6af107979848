package verifier

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localis/runtime-bundler/internal/packager"
	"github.com/localis/runtime-bundler/internal/zipx"
)

// goodArchive writes a well-formed bundle archive and returns its path.
// omit drops entries by canonical path.
func goodArchive(t *testing.T, omit ...string) string {
	t.Helper()

	omitted := make(map[string]struct{}, len(omit))
	for _, name := range omit {
		omitted[name] = struct{}{}
	}

	files := []zipx.File{
		{Path: packager.PythonExePath, Data: []byte("fake interpreter"), Mode: 0o755},
		{Path: "runtime/python/python311._pth", Data: []byte("python311.zip\n.\nLib\\site-packages\nimport site\n")},
		{Path: packager.GitExePath, Data: []byte("fake git"), Mode: 0o755},
		{Path: packager.LauncherName, Data: []byte("print('launcher')\n")},
		{Path: packager.ConfigTemplateName, Data: []byte("{}\n")},
	}

	kept := files[:0]
	for _, f := range files {
		if _, skip := omitted[f.Path]; !skip {
			kept = append(kept, f)
		}
	}

	archive := filepath.Join(t.TempDir(), "bundle.zip")
	output, err := os.Create(archive)
	require.NoError(t, err)
	require.NoError(t, zipx.Write(output, kept))
	require.NoError(t, output.Close())

	return archive
}

// healthyRunner answers the functional checks as a correct bundle would.
func healthyRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	switch {
	case strings.HasSuffix(name, "python.exe") && len(args) == 1 && args[0] == "--version":
		return []byte("Python 3.11.9\n"), nil
	case strings.HasSuffix(name, "git.exe"):
		return []byte("git version 2.45.2.windows.1\n"), nil
	default:
		return nil, nil
	}
}

// TestVerifyKnownGoodArchive expects zero failures and a removed extraction directory.
func TestVerifyKnownGoodArchive(t *testing.T) {
	t.Parallel()

	v := &Verifier{Run: healthyRunner, PythonVersion: "3.11.9"}

	report, err := v.Verify(context.Background(), goodArchive(t))
	require.NoError(t, err)
	require.False(t, report.Failed())
	require.Nil(t, report.FirstFailure())
	require.Contains(t, report.Summary(), "passed")
}

// TestVerifyMissingGitBinary expects exactly one structural failure naming
// the missing path, with every other check still evaluated.
func TestVerifyMissingGitBinary(t *testing.T) {
	t.Parallel()

	// The git binary is absent both structurally and functionally, so the
	// structural check and the invocation check fail; nothing else may.
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if strings.HasSuffix(name, "git.exe") {
			return nil, os.ErrNotExist
		}

		return healthyRunner(ctx, name, args...)
	}

	v := &Verifier{Run: runner, PythonVersion: "3.11.9"}

	report, err := v.Verify(context.Background(), goodArchive(t, packager.GitExePath))
	require.ErrorIs(t, err, ErrChecksFailed)

	var structuralFailures []CheckResult
	for _, result := range report.Results {
		if !result.Passed && strings.HasPrefix(result.Name, "required file ") {
			structuralFailures = append(structuralFailures, result)
		}
	}

	require.Len(t, structuralFailures, 1)
	require.Contains(t, structuralFailures[0].Name, packager.GitExePath)

	// The battery continued past the failure.
	require.GreaterOrEqual(t, len(report.Results), 10)
	require.Contains(t, report.Summary(), packager.GitExePath)
}

// TestVerifyDistinguishesImportFailures checks the contextual hint on the
// isolated package's smoke import.
func TestVerifyDistinguishesImportFailures(t *testing.T) {
	t.Parallel()

	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if len(args) == 2 && args[1] == "import llama_cpp" {
			return []byte("ImportError: DLL load failed while importing llama_cpp"), os.ErrInvalid
		}

		return healthyRunner(ctx, name, args...)
	}

	v := &Verifier{Run: runner, PythonVersion: "3.11.9"}

	report, err := v.Verify(context.Background(), goodArchive(t))
	require.ErrorIs(t, err, ErrChecksFailed)

	found := false
	for _, result := range report.Results {
		if result.Name == "import llama_cpp" {
			found = true

			require.False(t, result.Passed)
			require.Contains(t, result.Detail, "binary present but failed to load")
		}
	}

	require.True(t, found)
}

// TestVerifyArchiveNotFound distinguishes a missing archive from check failures.
func TestVerifyArchiveNotFound(t *testing.T) {
	t.Parallel()

	v := &Verifier{Run: healthyRunner, PythonVersion: "3.11.9"}

	_, err := v.Verify(context.Background(), filepath.Join(t.TempDir(), "absent.zip"))
	require.ErrorIs(t, err, ErrArchiveNotFound)
}

// TestVerifyBOMCheck fails the battery when the path file starts with a BOM.
func TestVerifyBOMCheck(t *testing.T) {
	t.Parallel()

	files := []zipx.File{
		{Path: packager.PythonExePath, Data: []byte("fake interpreter"), Mode: 0o755},
		{Path: "runtime/python/python311._pth", Data: []byte("\xEF\xBB\xBFimport site\n")},
		{Path: packager.GitExePath, Data: []byte("fake git"), Mode: 0o755},
		{Path: packager.LauncherName, Data: []byte("print('launcher')\n")},
		{Path: packager.ConfigTemplateName, Data: []byte("{}\n")},
	}

	archive := filepath.Join(t.TempDir(), "bundle.zip")
	output, err := os.Create(archive)
	require.NoError(t, err)
	require.NoError(t, zipx.Write(output, files))
	require.NoError(t, output.Close())

	v := &Verifier{Run: healthyRunner, PythonVersion: "3.11.9"}

	report, err := v.Verify(context.Background(), archive)
	require.ErrorIs(t, err, ErrChecksFailed)

	first := report.FirstFailure()
	require.NotNil(t, first)
	require.Equal(t, "path file byte-order mark", first.Name)
}

// TestReportAccumulation exercises first-failure tracking and rendering.
func TestReportAccumulation(t *testing.T) {
	t.Parallel()

	report := NewReport()
	report.Add("first", true, "")
	report.Add("second", false, "broke here")
	report.Add("third", false, "also broke")
	report.Add("fourth", true, "")

	require.True(t, report.Failed())
	require.Equal(t, "second", report.FirstFailure().Name)
	require.Contains(t, report.Summary(), "2 of 4 checks failed")
	require.Contains(t, report.Summary(), "second")

	rendered := report.Render()
	require.Contains(t, rendered, "first")
	require.Contains(t, rendered, "broke here")
}
