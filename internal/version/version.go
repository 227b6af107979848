package version

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/localis/runtime-bundler/internal/execx"
)

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

const (
	// DefaultBundleVersion is the placeholder used when no override is given
	// and the app repository carries no usable tag.
	DefaultBundleVersion = "0.0.0-dev"

	// describeTimeout bounds the git describe call.
	describeTimeout = 10 * time.Second
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// DetectBundle resolves the version stamped on a produced bundle:
// the override if provided, else git describe output from the app repository,
// else DefaultBundleVersion.
func DetectBundle(ctx context.Context, run execx.Runner, repoDir, override string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}

	if run == nil {
		run = execx.Run
	}

	cmdCtx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	output, err := run(cmdCtx, "git", "-C", repoDir, "describe", "--tags", "--always")
	if err != nil {
		return DefaultBundleVersion
	}

	described := strings.TrimSpace(string(output))
	if described == "" {
		return DefaultBundleVersion
	}

	return strings.TrimPrefix(described, "v")
}
