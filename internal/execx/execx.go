package execx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes an external command and returns its combined output.
// Stages hold a Runner field so tests can substitute a fake implementation.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Run is the default Runner backed by os/exec.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w", name, err)
	}

	return output, nil
}

// CodeError carries an explicit process exit code.
// Fake runners return it so callers can classify exit codes without
// fabricating *exec.ExitError values.
type CodeError struct {
	// Code is the process exit code.
	Code int
}

// Error implements the error interface.
func (e *CodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode extracts a process exit code from an error returned by a Runner.
// It returns 0 for nil errors and -1 when no exit code is attached.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
