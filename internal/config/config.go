package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the pinned inputs for one bundler run.
type Config struct {
	// AppRepo is the path to the application repository providing
	// requirements.txt and the launcher entry point.
	AppRepo string `yaml:"app_repo"`
	// OutputDir is where the staging tree and the final archive are produced.
	OutputDir string `yaml:"output_dir"`
	// CacheDir holds downloaded artifacts that may be reused across runs.
	CacheDir string `yaml:"cache_dir"`
	// WheelSource is the raw wheel source token parsed by the resolver
	// (official-cpu, official-accelerated-<tag>, an URL, or a local path).
	WheelSource string `yaml:"wheel_source"`
	// AcceleratedTags is the accepted set of accelerated-index tag suffixes.
	// It mirrors the third-party index's published layout and is configuration
	// data on purpose: the index adds tags without notice.
	AcceleratedTags []string `yaml:"accelerated_tags"`
	// AcceleratedIndexURL is the base URL of the accelerated wheel index.
	AcceleratedIndexURL string `yaml:"accelerated_index_url"`
	// PythonVersion is the embedded interpreter version, e.g. "3.11.9".
	PythonVersion string `yaml:"python_version"`
	// Artifacts pins the external downloads.
	Artifacts ArtifactPins `yaml:"artifacts"`
	// Template seeds the runtime configuration file shipped in the bundle.
	Template RuntimeTemplate `yaml:"template"`
	// Timeout is the per-attempt duration for network operations.
	Timeout time.Duration `yaml:"timeout"`
	// RetryCount bounds download attempts per transport.
	RetryCount int `yaml:"retry_count"`
}

// ArtifactPins lists the external artifacts with their integrity hashes.
type ArtifactPins struct {
	// PythonEmbedURL points at the embeddable interpreter distribution zip.
	PythonEmbedURL string `yaml:"python_embed_url"`
	// PythonEmbedSHA256 is the expected hex digest of the interpreter zip.
	PythonEmbedSHA256 string `yaml:"python_embed_sha256"`
	// GitURL points at the minimal git distribution zip.
	GitURL string `yaml:"git_url"`
	// GitSHA256 is the expected hex digest of the git zip.
	GitSHA256 string `yaml:"git_sha256"`
	// GetPipURL points at the pip bootstrap script.
	GetPipURL string `yaml:"get_pip_url"`
	// VCRedistURL points at the native runtime redistributable installer.
	VCRedistURL string `yaml:"vc_redist_url"`
}

// RuntimeTemplate holds the values written into the bundled runtime config file.
type RuntimeTemplate struct {
	// AppRepoURL is the repository the launcher clones on first run.
	AppRepoURL string `yaml:"app_repo_url" json:"app_repo_url"`
	// AppBranch is the branch the launcher checks out.
	AppBranch string `yaml:"app_branch" json:"app_branch"`
	// Host is the address the launched server binds to.
	Host string `yaml:"host" json:"host"`
	// Port is the starting port for the launched server.
	Port int `yaml:"port" json:"port"`
}

const (
	// DefaultConfigFilename is the default filename for bundler settings.
	DefaultConfigFilename = "localis-bundler.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultTimeout is the default per-attempt duration for network operations.
	DefaultTimeout = 60 * time.Second

	// DefaultRetryCount is the default number of download attempts per transport.
	DefaultRetryCount = 3

	// DefaultPythonVersion is the pinned embedded interpreter version.
	DefaultPythonVersion = "3.11.9"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAppRepoRequired is returned when the app repository path is missing.
	errAppRepoRequired = errors.New("app_repo must be provided")
	// errWheelSourceRequired is returned when the wheel source token is missing.
	errWheelSourceRequired = errors.New("wheel_source must be provided")
)

// Default returns a configuration with every pinned value populated.
// Only AppRepo has no usable default.
func Default() *Config {
	return &Config{
		OutputDir:           "dist",
		CacheDir:            filepath.Join("dist", "cache"),
		WheelSource:         "official-cpu",
		AcceleratedTags:     []string{"cu121", "cu122", "cu123", "cu124", "metal"},
		AcceleratedIndexURL: "https://abetlen.github.io/llama-cpp-python/whl",
		PythonVersion:       DefaultPythonVersion,
		Artifacts: ArtifactPins{
			PythonEmbedURL: "https://www.python.org/ftp/python/3.11.9/python-3.11.9-embed-amd64.zip",
			GitURL:         "https://github.com/git-for-windows/git/releases/download/v2.45.2.windows.1/MinGit-2.45.2-64-bit.zip",
			GetPipURL:      "https://bootstrap.pypa.io/get-pip.py",
			VCRedistURL:    "https://aka.ms/vs/17/release/vc_redist.x64.exe",
		},
		Template: RuntimeTemplate{
			AppBranch: "main",
			Host:      "127.0.0.1",
			Port:      8000,
		},
		Timeout:    DefaultTimeout,
		RetryCount: DefaultRetryCount,
	}
}

// Load reads configuration from the provided path, layers it over defaults,
// and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for optional fields left empty.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.AppRepo == "" {
		return errAppRepoRequired
	}

	if cfg.WheelSource == "" {
		return errWheelSourceRequired
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "dist"
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.OutputDir, "cache")
	}

	if cfg.PythonVersion == "" {
		cfg.PythonVersion = DefaultPythonVersion
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.RetryCount <= 0 {
		cfg.RetryCount = DefaultRetryCount
	}

	for name, value := range map[string]string{
		"python_embed_url": cfg.Artifacts.PythonEmbedURL,
		"git_url":          cfg.Artifacts.GitURL,
		"get_pip_url":      cfg.Artifacts.GetPipURL,
		"vc_redist_url":    cfg.Artifacts.VCRedistURL,
	} {
		if value == "" {
			return fmt.Errorf("artifact %s must be provided", name)
		}

		if _, err := url.ParseRequestURI(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if cfg.AcceleratedIndexURL != "" {
		if _, err := url.ParseRequestURI(cfg.AcceleratedIndexURL); err != nil {
			return fmt.Errorf("invalid accelerated_index_url: %w", err)
		}
	}

	return nil
}
