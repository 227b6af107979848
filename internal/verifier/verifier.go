package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/localis/runtime-bundler/internal/execx"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/packager"
	"github.com/localis/runtime-bundler/internal/patcher"
	"github.com/localis/runtime-bundler/internal/zipx"
)

// criticalImports are the packages the extracted interpreter must load,
// mirroring the runtime smoke test shipped with the application.
var criticalImports = []string{"llama_cpp", "fastapi", "uvicorn"}

// ErrArchiveNotFound distinguishes a missing archive from failed checks.
var ErrArchiveNotFound = errors.New("archive not found")

// ErrChecksFailed reports that the battery ran and at least one check failed.
var ErrChecksFailed = errors.New("verification checks failed")

// Verifier independently confirms a produced archive is fit for
// distribution. It extracts into a fresh temporary location, never the
// packager's staging tree, so staging-vs-archive divergence is caught.
type Verifier struct {
	// Run executes interpreter and git subprocesses.
	Run execx.Runner
	// PythonVersion is the pinned interpreter version expected inside.
	PythonVersion string
	// KeepExtracted preserves the extraction directory even on success.
	KeepExtracted bool
}

// Verify runs the ordered check battery against the archive and returns the
// accumulated report. The returned error is ErrArchiveNotFound, an
// extraction failure, or ErrChecksFailed; the report is valid whenever the
// battery ran.
func (v *Verifier) Verify(ctx context.Context, archivePath string) (*Report, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, archivePath)
	}

	extractDir, err := os.MkdirTemp("", "localis-verify-")
	if err != nil {
		return nil, fmt.Errorf("create extraction directory: %w", err)
	}

	report := NewReport()

	v.checkEntryNames(report, archivePath)

	if err := zipx.Extract(archivePath, extractDir); err != nil {
		_ = os.RemoveAll(extractDir)
		return nil, fmt.Errorf("extract archive: %w", err)
	}

	v.checkRequiredPaths(report, extractDir)
	v.checkPathFile(report, extractDir)
	v.checkInterpreterVersion(ctx, report, extractDir)
	v.checkGitInvocable(ctx, report, extractDir)
	v.checkImports(ctx, report, extractDir)

	if report.Failed() || v.KeepExtracted {
		// Preserved for postmortem inspection.
		logger.InfoKV(ctx, "Extraction directory preserved", "path", extractDir)
	} else {
		_ = os.RemoveAll(extractDir)
	}

	if report.Failed() {
		return report, ErrChecksFailed
	}

	return report, nil
}

// checkEntryNames verifies no archive entry matches the unsafe pattern.
func (v *Verifier) checkEntryNames(report *Report, archivePath string) {
	names, err := zipx.EntryNames(archivePath)
	if err != nil {
		report.Add("entry-name safety", false, err.Error())
		return
	}

	for _, name := range names {
		if reason := zipx.CheckEntryName(name); reason != "" {
			report.Add("entry-name safety", false, fmt.Sprintf("entry %q: %s", name, reason))
			return
		}
	}

	report.Add("entry-name safety", true, fmt.Sprintf("%d entries", len(names)))
}

// checkRequiredPaths verifies every canonical relative path exists.
func (v *Verifier) checkRequiredPaths(report *Report, extractDir string) {
	pathFileName := patcher.PathFileName(v.PythonVersion)

	for _, required := range packager.RequiredPaths(pathFileName) {
		target := filepath.Join(extractDir, filepath.FromSlash(required))
		if _, err := os.Stat(target); err != nil {
			report.Add("required file "+required, false, "missing at canonical path")
			continue
		}

		report.Add("required file "+required, true, "")
	}
}

// checkPathFile verifies the patched path file carries no byte-order mark.
func (v *Verifier) checkPathFile(report *Report, extractDir string) {
	pathFile := filepath.Join(extractDir, "runtime", "python", patcher.PathFileName(v.PythonVersion))

	if err := patcher.VerifyNoBOM(pathFile); err != nil {
		report.Add("path file byte-order mark", false, err.Error())
		return
	}

	report.Add("path file byte-order mark", true, "")
}

// checkInterpreterVersion verifies the bundled interpreter reports the pinned version.
func (v *Verifier) checkInterpreterVersion(ctx context.Context, report *Report, extractDir string) {
	python := filepath.Join(extractDir, filepath.FromSlash(packager.PythonExePath))

	output, err := v.run(ctx, python, "--version")
	if err != nil {
		report.Add("interpreter version", false, fmt.Sprintf("%v: %s", err, strings.TrimSpace(string(output))))
		return
	}

	got := strings.TrimSpace(string(output))
	if !strings.Contains(got, v.PythonVersion) {
		report.Add("interpreter version", false,
			fmt.Sprintf("expected %s, got %q", v.PythonVersion, got))
		return
	}

	report.Add("interpreter version", true, got)
}

// checkGitInvocable verifies the bundled git binary runs.
func (v *Verifier) checkGitInvocable(ctx context.Context, report *Report, extractDir string) {
	git := filepath.Join(extractDir, filepath.FromSlash(packager.GitExePath))

	output, err := v.run(ctx, git, "--version")
	if err != nil {
		report.Add("git invocable", false, fmt.Sprintf("%v: %s", err, strings.TrimSpace(string(output))))
		return
	}

	report.Add("git invocable", true, strings.TrimSpace(string(output)))
}

// checkImports smoke-imports each critical dependency in the extracted runtime.
func (v *Verifier) checkImports(ctx context.Context, report *Report, extractDir string) {
	python := filepath.Join(extractDir, filepath.FromSlash(packager.PythonExePath))

	for _, name := range criticalImports {
		output, err := v.run(ctx, python, "-c", "import "+name)
		if err == nil {
			report.Add("import "+name, true, "")
			continue
		}

		detail := strings.TrimSpace(string(output))
		if name == "llama_cpp" {
			// The distinction matters for remediation: a missing package
			// means a resolver problem, a present-but-broken one points at
			// the native prerequisite.
			if strings.Contains(detail, "ModuleNotFoundError") || strings.Contains(detail, "No module named") {
				detail = "binary missing: " + detail
			} else {
				detail = "binary present but failed to load (native prerequisite missing?): " + detail
			}
		}

		report.Add("import "+name, false, detail)
	}
}

// run dispatches through the injected runner, defaulting to execx.Run.
func (v *Verifier) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if v.Run != nil {
		return v.Run(ctx, name, args...)
	}

	return execx.Run(ctx, name, args...)
}
