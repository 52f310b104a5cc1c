package util

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var ErrCommandTimeout = errors.New("command timed out")

// SafeCmdExecution runs the given executable with a bounded runtime and returns its trimmed stdout.
// The executable must be owned by root and must not be writable by anyone else.
func SafeCmdExecution(ctx context.Context, executable string, args []string, timeout time.Duration) (string, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return "", fmt.Errorf("cannot find %s: %w", executable, err)
	}
	if _, err := CheckFilePermissionsForExecution(path); err != nil {
		return "", fmt.Errorf("cannot execute %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.Output()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %s %s", ErrCommandTimeout, executable, strings.Join(args, " "))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s %s: %w: %s", executable, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s %s: %w", executable, strings.Join(args, " "), err)
	}

	return strings.Trim(string(out), "\n"), nil
}
