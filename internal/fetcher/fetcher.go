package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/pipeline"
)

// Kind classifies an artifact for post-download validation.
type Kind int

const (
	// KindFile is a plain file with no structural validation.
	KindFile Kind = iota
	// KindZip requires the zip magic signature before use.
	KindZip
)

// zipMagic is the two-byte signature every zip archive starts with.
var zipMagic = []byte{'P', 'K'}

// ArtifactSpec describes one external file to fetch.
type ArtifactSpec struct {
	// Name identifies the artifact in logs.
	Name string
	// URL is the artifact source.
	URL string
	// Dest is the local path the artifact is written to.
	Dest string
	// SHA256 is the optional expected hex digest; empty skips digest checking.
	SHA256 string
	// Kind selects structural validation after download.
	Kind Kind
}

// Fetcher downloads artifacts through an ordered list of transports under
// one bounded retry and timeout policy.
type Fetcher struct {
	// Transports are tried in order on every attempt.
	Transports []Transport
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Retries is the number of rounds through the transport list.
	Retries int
}

// Fetch produces the artifact at spec.Dest or returns a typed error.
// A cached file whose digest already matches is reused without network.
// Verification failures (magic, digest) are fatal and never retried:
// a corrupt artifact from a clean transport means the pin is wrong.
func (f *Fetcher) Fetch(ctx context.Context, spec ArtifactSpec) error {
	if err := os.MkdirAll(filepath.Dir(spec.Dest), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	if f.cachedCopyValid(ctx, spec) {
		logger.InfoKV(ctx, "Using cached artifact", "artifact", spec.Name, "path", spec.Dest)
		return nil
	}

	partial := spec.Dest + ".partial"
	defer func() {
		_ = os.Remove(partial)
	}()

	if err := f.download(ctx, spec, partial); err != nil {
		return err
	}

	if err := f.validate(spec, partial); err != nil {
		return err
	}

	if err := os.Rename(partial, spec.Dest); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}

	logger.InfoKV(ctx, "Fetched artifact", "artifact", spec.Name, "path", spec.Dest)

	return nil
}

// cachedCopyValid reports whether a previously fetched file can be reused.
// Artifacts without a pinned digest are always re-fetched.
func (f *Fetcher) cachedCopyValid(ctx context.Context, spec ArtifactSpec) bool {
	if spec.SHA256 == "" {
		return false
	}

	if _, err := os.Stat(spec.Dest); err != nil {
		return false
	}

	digest, err := fileSHA256(spec.Dest)
	if err != nil {
		return false
	}

	if !strings.EqualFold(digest, spec.SHA256) {
		logger.WarnKV(ctx, "Cached artifact digest mismatch, re-fetching",
			"artifact", spec.Name, "path", spec.Dest)
		return false
	}

	return true
}

// download runs the bounded retry loop over the transport list.
func (f *Fetcher) download(ctx context.Context, spec ArtifactSpec, dest string) error {
	retries := f.Retries
	if retries <= 0 {
		retries = 1
	}

	var (
		lastErr  error
		attempts int
	)

	for round := 0; round < retries; round++ {
		for _, transport := range f.Transports {
			attempts++

			attemptCtx := ctx

			var cancel context.CancelFunc
			if f.Timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, f.Timeout)
			}

			err := transport.Fetch(attemptCtx, spec.URL, dest)

			if cancel != nil {
				cancel()
			}

			if err == nil {
				return nil
			}

			lastErr = err

			logger.WarnKV(ctx, "Download attempt failed",
				"artifact", spec.Name, "transport", transport.Name(), "attempt", attempts, "error", err)

			if ctx.Err() != nil {
				return &pipeline.DownloadError{URL: spec.URL, Attempts: attempts, Err: ctx.Err()}
			}
		}
	}

	return &pipeline.DownloadError{URL: spec.URL, Attempts: attempts, Err: lastErr}
}

// validate enforces the magic-signature and digest invariants on a downloaded file.
func (f *Fetcher) validate(spec ArtifactSpec, path string) error {
	if spec.Kind == KindZip {
		magic := make([]byte, len(zipMagic))

		file, err := os.Open(path)
		if err != nil {
			return err
		}

		_, err = io.ReadFull(file, magic)
		_ = file.Close()

		if err != nil || !bytes.Equal(magic, zipMagic) {
			return &pipeline.IntegrityError{Path: spec.Dest, Reason: "zip magic"}
		}
	}

	if spec.SHA256 == "" {
		return nil
	}

	digest, err := fileSHA256(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(digest, spec.SHA256) {
		return &pipeline.IntegrityError{
			Path:     spec.Dest,
			Reason:   "sha256",
			Expected: strings.ToLower(spec.SHA256),
			Actual:   digest,
		}
	}

	return nil
}

// fileSHA256 returns the lowercase hex digest of a file, streaming its contents.
func fileSHA256(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
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

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
