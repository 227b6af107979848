package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localis/runtime-bundler/internal/pipeline"
)

// failingTransport always fails, to force fallback.
type failingTransport struct {
	calls int
}

func (t *failingTransport) Name() string { return "failing" }

func (t *failingTransport) Fetch(context.Context, string, string) error {
	t.calls++
	return errors.New("transport unavailable")
}

func hexDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newFetcher(transports ...Transport) *Fetcher {
	return &Fetcher{
		Transports: transports,
		Timeout:    5 * time.Second,
		Retries:    2,
	}
}

// TestFetchVerifiesDigest serves a byte-flipped artifact and expects an
// IntegrityError with no file committed to the destination.
func TestFetchVerifiesDigest(t *testing.T) {
	t.Parallel()

	payload := []byte("expected artifact contents")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		corrupted := append([]byte(nil), payload...)
		corrupted[0] ^= 0xFF
		_, _ = w.Write(corrupted)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "artifact.bin")
	spec := ArtifactSpec{Name: "artifact", URL: server.URL, Dest: dest, SHA256: hexDigest(payload)}

	err := newFetcher(&HTTPTransport{}).Fetch(context.Background(), spec)

	var integrityErr *pipeline.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	require.Equal(t, "sha256", integrityErr.Reason)

	// Nothing from the corrupted download may appear at the destination.
	_, statErr := os.Stat(dest)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestFetchRejectsBadMagic expects a fatal IntegrityError for a zip artifact
// that does not start with the archive signature.
func TestFetchRejectsBadMagic(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>proxy error page</html>"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "runtime.zip")
	spec := ArtifactSpec{Name: "runtime", URL: server.URL, Dest: dest, Kind: KindZip}

	err := newFetcher(&HTTPTransport{}).Fetch(context.Background(), spec)

	var integrityErr *pipeline.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	require.Equal(t, "zip magic", integrityErr.Reason)
}

// TestFetchFallsBackToSecondaryTransport verifies the second transport is
// tried after the primary fails.
func TestFetchFallsBackToSecondaryTransport(t *testing.T) {
	t.Parallel()

	payload := []byte("PK\x03\x04 fake zip body")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	primary := &failingTransport{}
	dest := filepath.Join(t.TempDir(), "runtime.zip")
	spec := ArtifactSpec{Name: "runtime", URL: server.URL, Dest: dest, Kind: KindZip, SHA256: hexDigest(payload)}

	require.NoError(t, newFetcher(primary, &HTTPTransport{}).Fetch(context.Background(), spec))
	require.Equal(t, 1, primary.calls)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

// TestFetchExhaustsRetries verifies the typed error reports total attempts.
func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	primary := &failingTransport{}
	secondary := &failingTransport{}
	spec := ArtifactSpec{Name: "artifact", URL: "https://pinned.invalid/a.bin", Dest: filepath.Join(t.TempDir(), "a.bin")}

	err := newFetcher(primary, secondary).Fetch(context.Background(), spec)

	var downloadErr *pipeline.DownloadError
	require.ErrorAs(t, err, &downloadErr)
	require.Equal(t, 4, downloadErr.Attempts)
	require.Equal(t, spec.URL, downloadErr.URL)
}

// TestFetchReusesValidCache ensures a matching cached file skips the network.
func TestFetchReusesValidCache(t *testing.T) {
	t.Parallel()

	payload := []byte("cached artifact")
	dest := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(dest, payload, 0o644))

	primary := &failingTransport{}
	spec := ArtifactSpec{Name: "artifact", URL: "https://pinned.invalid/a.bin", Dest: dest, SHA256: hexDigest(payload)}

	require.NoError(t, newFetcher(primary).Fetch(context.Background(), spec))
	require.Zero(t, primary.calls)
}
