package zipx

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks an archive into destDir, refusing any entry whose name
// could escape the destination.
func Extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		if reason := CheckEntryName(entry.Name); reason != "" {
			return fmt.Errorf("entry %q: %s", entry.Name, reason)
		}

		if err := extractEntry(entry, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractEntry writes one archive entry under destDir.
func extractEntry(entry *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(entry.Name))

	// Containment re-check after joining, in case of exotic encodings.
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry %q escapes extraction root", entry.Name)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	source, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	output, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, entry.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, source); err != nil {
		_ = output.Close()
		return err
	}

	return output.Close()
}
