package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/localis/runtime-bundler/internal/config"
	"github.com/localis/runtime-bundler/internal/logger"
	"github.com/localis/runtime-bundler/internal/pipeline"
	"github.com/localis/runtime-bundler/internal/zipx"
)

// Stage fetches every pinned artifact and lays the runtime trees out under
// the staging root.
type Stage struct {
	// Transports overrides the default transport list (HTTP, then curl).
	Transports []Transport
}

// Name implements pipeline.Stage.
func (s *Stage) Name() string { return "fetch" }

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, p *pipeline.Context) error {
	transports := s.Transports
	if transports == nil {
		transports = []Transport{&HTTPTransport{}, &CurlTransport{}}
	}

	f := &Fetcher{
		Transports: transports,
		Timeout:    p.Config.Timeout,
		Retries:    p.Config.RetryCount,
	}

	specs, err := Specs(p.Config, p.CacheDir)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		if err := f.Fetch(ctx, spec); err != nil {
			return err
		}
	}

	// Distribution zips are verified before this point; extraction of
	// unverified content never happens.
	pythonZip := filepath.Join(p.CacheDir, destName(p.Config.Artifacts.PythonEmbedURL))
	if err := zipx.Extract(pythonZip, p.PythonDir()); err != nil {
		return fmt.Errorf("extract interpreter distribution: %w", err)
	}

	gitZip := filepath.Join(p.CacheDir, destName(p.Config.Artifacts.GitURL))
	if err := zipx.Extract(gitZip, p.GitDir()); err != nil {
		return fmt.Errorf("extract git distribution: %w", err)
	}

	logger.InfoKV(ctx, "Runtime trees staged", "python", p.PythonDir(), "git", p.GitDir())

	return nil
}

// Specs builds the pinned artifact list for one run.
func Specs(cfg *config.Config, cacheDir string) ([]ArtifactSpec, error) {
	pins := cfg.Artifacts

	specs := []ArtifactSpec{
		{
			Name:   "python-embed",
			URL:    pins.PythonEmbedURL,
			SHA256: pins.PythonEmbedSHA256,
			Kind:   KindZip,
		},
		{
			Name:   "mingit",
			URL:    pins.GitURL,
			SHA256: pins.GitSHA256,
			Kind:   KindZip,
		},
		{
			Name: "get-pip",
			URL:  pins.GetPipURL,
			Kind: KindFile,
		},
		{
			Name: "vc-redist",
			URL:  pins.VCRedistURL,
			Kind: KindFile,
		},
	}

	for i := range specs {
		name := destName(specs[i].URL)
		if name == "" {
			return nil, fmt.Errorf("artifact %s: cannot derive filename from %s", specs[i].Name, specs[i].URL)
		}

		specs[i].Dest = filepath.Join(cacheDir, name)
	}

	return specs, nil
}

// destName derives the cache filename from the artifact URL.
func destName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}

	return name
}
