package zipx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// File is one archive entry. Data takes precedence over Source when both
// are set; Source entries are streamed from disk at write time.
type File struct {
	// Path is the entry name, relative to the bundle root.
	Path string
	// Mode is the file mode recorded in the entry header.
	Mode fs.FileMode
	// Data is the in-memory entry payload.
	Data []byte
	// Source is the on-disk file the payload is read from.
	Source string
}

// fixedTime keeps archives byte-stable across runs regardless of source mtimes.
const fixedTime = "1980-01-01T00:00:00Z"

// driveLetterPattern matches Windows drive designators like "C:".
var driveLetterPattern = regexp.MustCompile(`^[A-Za-z]:`)

// CheckEntryName rejects entry names that could escape relative containment.
// It returns a non-empty reason for unsafe names and "" for safe ones.
func CheckEntryName(name string) string {
	if name == "" {
		return "empty entry name"
	}

	if driveLetterPattern.MatchString(name) {
		return "drive letter prefix"
	}

	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "leading path separator"
	}

	for _, segment := range strings.Split(strings.ReplaceAll(name, `\`, "/"), "/") {
		if segment == ".." {
			return "parent directory segment"
		}
	}

	return ""
}

// Write serializes the entries into a byte-stable archive: entries are
// sorted by name, stamped with a fixed timestamp, and written with
// normalized modes. Every entry name is checked for relative containment
// before anything is written.
func Write(w io.Writer, files []File) error {
	items := make([]File, len(files))
	copy(items, files)
	sort.Slice(items, func(i, j int) bool {
		return items[i].Path < items[j].Path
	})

	for _, f := range items {
		if reason := CheckEntryName(filepath.ToSlash(f.Path)); reason != "" {
			return fmt.Errorf("entry %q: %s", f.Path, reason)
		}
	}

	stamp, _ := time.Parse(time.RFC3339, fixedTime)
	zw := zip.NewWriter(w)

	for _, f := range items {
		header := &zip.FileHeader{
			Name:   filepath.ToSlash(f.Path),
			Method: zip.Deflate,
		}
		header.Modified = stamp
		header.SetMode(normalizeMode(f.Mode))

		entry, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return err
		}

		if err := copyPayload(entry, f); err != nil {
			_ = zw.Close()
			return err
		}
	}

	return zw.Close()
}

// copyPayload writes one entry's contents from memory or from its source file.
func copyPayload(w io.Writer, f File) error {
	if f.Data != nil || f.Source == "" {
		_, err := io.Copy(w, bytes.NewReader(f.Data))
		return err
	}

	source, err := os.Open(f.Source)
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	_, err = io.Copy(w, source)

	return err
}

// normalizeMode collapses source modes into 0644 or 0755 so archives do not
// leak host umask differences.
func normalizeMode(mode fs.FileMode) fs.FileMode {
	if mode&0o111 != 0 {
		return 0o755
	}

	return 0o644
}

// EntryNames returns the sorted entry names of an archive on disk.
func EntryNames(path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = reader.Close()
	}()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}

	sort.Strings(names)

	return names, nil
}
