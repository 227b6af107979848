package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContextFallback ensures the global logger is returned when no logger is stored.
func TestFromContextFallback(t *testing.T) {
	t.Parallel()

	require.NotNil(t, FromContext(context.Background()))
	require.Equal(t, Logger(), FromContext(context.Background()))
}

// TestWithNameStoresNamedLogger verifies that WithName stores a distinct logger in the context.
func TestWithNameStoresNamedLogger(t *testing.T) {
	t.Parallel()

	ctx := WithName(context.Background(), "fetcher")
	require.NotNil(t, FromContext(ctx))
	require.NotEqual(t, Logger(), FromContext(ctx))
}
