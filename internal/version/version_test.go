package version

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

// TestDetectBundle covers override precedence, git describe output, and the fallback placeholder.
func TestDetectBundle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Override wins without touching git.
	got := DetectBundle(ctx, func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("runner must not be called when an override is provided")
		return nil, nil
	}, "/repo", " 2.1.0 ")
	require.Equal(t, "2.1.0", got)

	// Describe output is trimmed and the leading "v" dropped.
	got = DetectBundle(ctx, func(_ context.Context, name string, args ...string) ([]byte, error) {
		require.Equal(t, "git", name)
		require.Contains(t, args, "describe")
		return []byte("v1.4.2-3-gabc123\n"), nil
	}, "/repo", "")
	require.Equal(t, "1.4.2-3-gabc123", got)

	// Failure falls back to the placeholder.
	got = DetectBundle(ctx, func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("not a repository")
	}, "/repo", "")
	require.Equal(t, DefaultBundleVersion, got)
}
