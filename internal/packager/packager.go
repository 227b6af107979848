package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/patcher"
	"github.com/localis/runtime-bundler/internal/pipeline"
	"github.com/localis/runtime-bundler/internal/zipx"
)

// sidecarSuffix is appended to the archive name for the checksum file.
const sidecarSuffix = ".sha256"

// listProcesses is the process table source for the pre-archive guard.
//
//nolint:gochecknoglobals // Swapped by tests; go-ps offers no injectable handle.
var listProcesses = ps.Processes

// BuildManifest walks the staging root and produces archive entries whose
// names are computed relative to that root, never from absolute sources.
func BuildManifest(stagingRoot string) ([]zipx.File, error) {
	var files []zipx.File

	err := filepath.WalkDir(stagingRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return err
		}

		entry := filepath.ToSlash(rel)
		if reason := zipx.CheckEntryName(entry); reason != "" {
			return &pipeline.ArchiveStructureError{Entry: entry, Reason: reason}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, zipx.File{Path: entry, Source: path, Mode: info.Mode()})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ScanArchive re-opens a written archive and rejects any entry name that
// matches the unsafe pattern. This is the last line of defense before
// distribution; a match is a packaging defect.
func ScanArchive(path string) error {
	names, err := zipx.EntryNames(path)
	if err != nil {
		return fmt.Errorf("re-open archive: %w", err)
	}

	for _, name := range names {
		if reason := zipx.CheckEntryName(name); reason != "" {
			return &pipeline.ArchiveStructureError{Entry: name, Reason: reason}
		}
	}

	return nil
}

// WriteSidecar emits the checksum side-car next to the archive:
// one line, "<hex-digest>  <archive-filename>".
func WriteSidecar(archivePath string) (string, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	sidecarPath := archivePath + sidecarSuffix
	line := fmt.Sprintf("%s  %s\n", digest, filepath.Base(archivePath))

	if err := os.WriteFile(sidecarPath, []byte(line), 0o644); err != nil {
		return "", err
	}

	return sidecarPath, nil
}

// warnAboutRunningStagedBinaries scans the process table for processes
// whose executable name matches a staged binary. Archiving a binary that
// is being executed produces torn reads on Windows, so surface it early.
func warnAboutRunningStagedBinaries(ctx context.Context, stagingRoot string) {
	staged := stagedExecutableNames(stagingRoot)
	if len(staged) == 0 {
		return
	}

	processes, err := listProcesses()
	if err != nil {
		logger.WarnKV(ctx, "Unable to scan process table", "error", err)
		return
	}

	for _, process := range processes {
		if _, found := staged[strings.ToLower(process.Executable())]; found {
			logger.WarnKV(ctx, "A process shares a name with a staged binary; close it if it runs from the staging tree",
				"executable", process.Executable(), "pid", process.Pid())
		}
	}
}

// stagedExecutableNames collects lowercase *.exe base names under the root.
func stagedExecutableNames(stagingRoot string) map[string]struct{} {
	names := make(map[string]struct{})

	_ = filepath.WalkDir(stagingRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // Best-effort scan.
		}

		if strings.EqualFold(filepath.Ext(path), ".exe") {
			names[strings.ToLower(filepath.Base(path))] = struct{}{}
		}

		return nil
	})

	return names
}

// Stage assembles the canonical bundle layout and serializes it into one
// verified archive with its checksum side-car.
type Stage struct{}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "package" }

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, p *pipeline.Context) error {
	if err := stageLauncher(p); err != nil {
		return err
	}

	if err := stageConfigTemplate(p); err != nil {
		return err
	}

	pathFileName := patcher.PathFileName(p.Config.PythonVersion)
	for _, required := range RequiredPaths(pathFileName) {
		target := filepath.Join(p.StagingRoot, filepath.FromSlash(required))
		if _, err := os.Stat(target); err != nil {
			return fmt.Errorf("staging tree is missing %s: %w", required, err)
		}
	}

	warnAboutRunningStagedBinaries(ctx, p.StagingRoot)

	manifest, err := BuildManifest(p.StagingRoot)
	if err != nil {
		return err
	}

	archivePath := filepath.Join(p.Config.OutputDir, ArchiveName(p.BundleVersion))

	output, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	if err := zipx.Write(output, manifest); err != nil {
		_ = output.Close()
		_ = os.Remove(archivePath)

		return fmt.Errorf("write archive: %w", err)
	}

	if err := output.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	if err := ScanArchive(archivePath); err != nil {
		_ = os.Remove(archivePath)
		return err
	}

	sidecarPath, err := WriteSidecar(archivePath)
	if err != nil {
		return fmt.Errorf("write checksum side-car: %w", err)
	}

	p.ArchivePath = archivePath

	logger.InfoKV(ctx, "Archive produced",
		"archive", archivePath, "checksum", sidecarPath, "entries", len(manifest))

	return nil
}

// stageLauncher copies the entry point script from the app repository.
func stageLauncher(p *pipeline.Context) error {
	source := filepath.Join(p.Config.AppRepo, LauncherName)

	data, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("read launcher from app repository: %w", err)
	}

	return os.WriteFile(filepath.Join(p.StagingRoot, LauncherName), data, 0o644)
}

// stageConfigTemplate renders the runtime configuration template.
func stageConfigTemplate(p *pipeline.Context) error {
	data, err := json.MarshalIndent(p.Config.Template, "", "  ")
	if err != nil {
		return fmt.Errorf("render config template: %w", err)
	}

	return os.WriteFile(filepath.Join(p.StagingRoot, ConfigTemplateName), append(data, '\n'), 0o644)
}
