package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/localis/runtime-bundler/internal/execx"
)

// Transport downloads one URL to a local path. Implementations are tried in
// order by the Fetcher under a shared retry and timeout policy.
type Transport interface {
	// Name identifies the transport in logs and diagnostics.
	Name() string
	// Fetch downloads url into dest, overwriting any existing file.
	Fetch(ctx context.Context, url, dest string) error
}

// HTTPTransport is the primary transport backed by net/http.
type HTTPTransport struct {
	// Client is the HTTP client used for requests; http.DefaultClient when nil.
	Client *http.Client
}

// Name implements Transport.
func (t *HTTPTransport) Name() string { return "http" }

// Fetch implements Transport.
func (t *HTTPTransport) Fetch(ctx context.Context, url, dest string) error {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}

	output, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, resp.Body); err != nil {
		_ = output.Close()
		return err
	}

	return output.Close()
}

// CurlTransport is the secondary transport shelling out to curl, matching
// the fallback path hosts use when the primary HTTP stack is blocked by
// proxy or TLS interception quirks.
type CurlTransport struct {
	// Run executes the curl process; execx.Run when nil.
	Run execx.Runner
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
}

// Name implements Transport.
func (t *CurlTransport) Name() string { return "curl" }

// Fetch implements Transport.
func (t *CurlTransport) Fetch(ctx context.Context, url, dest string) error {
	run := t.Run
	if run == nil {
		run = execx.Run
	}

	connectTimeout := t.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}

	output, err := run(ctx, "curl",
		"-fsSL",
		"--connect-timeout", strconv.Itoa(int(connectTimeout.Seconds())),
		"-o", dest,
		url)
	if err != nil {
		return fmt.Errorf("curl %s: %w (%s)", url, err, string(output))
	}

	return nil
}
