package execx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExitCode verifies exit code extraction from runner errors.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 3010, ExitCode(&CodeError{Code: 3010}))
	require.Equal(t, 1638, ExitCode(fmt.Errorf("installer: %w", &CodeError{Code: 1638})))
	require.Equal(t, -1, ExitCode(errors.New("no code attached")))
}
