package patcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/pipeline"
)

// bomSequence is the UTF-8 byte-order mark. The embedded interpreter
// treats a path file starting with these bytes as a module name, which
// surfaces much later as an obscure "module not found" startup failure.
var bomSequence = []byte{0xEF, 0xBB, 0xBF}

// PathFileName derives the interpreter path-file name from the pinned
// version: "3.11.9" yields "python311._pth".
func PathFileName(pythonVersion string) string {
	return "python" + majorMinor(pythonVersion) + "._pth"
}

// DefaultLines is the search-path content the bundle ships: the stdlib zip,
// the interpreter directory, the package directory, and the site
// auto-import directive.
func DefaultLines(pythonVersion string) []string {
	return []string{
		"python" + majorMinor(pythonVersion) + ".zip",
		".",
		`Lib\site-packages`,
		"import site",
	}
}

// Patch rewrites the path file with the provided lines and asserts the
// BOM invariant on the bytes actually written. The invariant holds after
// every write, not only the last one; a violation is a patcher defect and
// aborts the pipeline.
func Patch(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}

	if err := os.WriteFile(filepath.Clean(path), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write path file: %w", err)
	}

	return VerifyNoBOM(path)
}

// VerifyNoBOM re-reads the raw bytes and rejects a leading byte-order mark.
func VerifyNoBOM(path string) error {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("re-read path file: %w", err)
	}

	if len(raw) >= len(bomSequence) &&
		raw[0] == bomSequence[0] && raw[1] == bomSequence[1] && raw[2] == bomSequence[2] {
		return &pipeline.PatchInvariantError{Path: path}
	}

	return nil
}

// Stage patches the staged interpreter's search-path configuration.
type Stage struct{}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "patch" }

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, p *pipeline.Context) error {
	pathFile := filepath.Join(p.PythonDir(), PathFileName(p.Config.PythonVersion))

	if err := Patch(pathFile, DefaultLines(p.Config.PythonVersion)); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Path file patched", "path", pathFile)

	return nil
}

// majorMinor collapses "3.11.9" into "311".
func majorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return strings.ReplaceAll(version, ".", "")
	}

	return parts[0] + parts[1]
}
