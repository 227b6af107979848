package patcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localis/runtime-bundler/internal/pipeline"
)

// TestPathFileName derives the file name from the pinned version.
func TestPathFileName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "python311._pth", PathFileName("3.11.9"))
	require.Equal(t, "python312._pth", PathFileName("3.12.1"))
}

// TestDefaultLines carries the four canonical search-path entries.
func TestDefaultLines(t *testing.T) {
	t.Parallel()

	lines := DefaultLines("3.11.9")
	require.Equal(t, []string{"python311.zip", ".", `Lib\site-packages`, "import site"}, lines)
}

// TestPatchNeverWritesBOM asserts bytes 0..2 for populated and empty input,
// and for a file that previously carried a BOM.
func TestPatchNeverWritesBOM(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "python311._pth")

	for _, lines := range [][]string{
		DefaultLines("3.11.9"),
		{},
		{"python311.zip"},
	} {
		require.NoError(t, Patch(path, lines))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)

		if len(raw) >= 3 {
			require.NotEqual(t, []byte{0xEF, 0xBB, 0xBF}, raw[:3])
		}
	}

	// Existing BOM content must be replaced, not preserved.
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFpython311.zip\n"), 0o644))
	require.NoError(t, Patch(path, DefaultLines("3.11.9")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEqual(t, []byte{0xEF, 0xBB, 0xBF}, raw[:3])
}

// TestVerifyNoBOMDetectsViolation reports the typed patcher defect.
func TestVerifyNoBOMDetectsViolation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "python311._pth")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFimport site\n"), 0o644))

	err := VerifyNoBOM(path)

	var patchErr *pipeline.PatchInvariantError
	require.ErrorAs(t, err, &patchErr)
	require.Equal(t, path, patchErr.Path)
}
