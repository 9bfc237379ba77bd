// Package command runs external tools and streams their output line by line.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner starts an external command and streams its combined output.
type Runner interface {
	// Run executes name with args in dir, calling onLine for every line of
	// combined stdout/stderr. It returns the exit code; err is non-nil only
	// when the process could not be run or ctx was cancelled.
	Run(ctx context.Context, dir, name string, args []string, onLine func(string)) (int, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args []string, onLine func(string)) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to attach output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(strings.TrimRight(scanner.Text(), "\r"))
		}
	}
	if scanner.Err() != nil {
		// keep the pipe flowing so the child can exit
		_, _ = io.Copy(io.Discard, stdout)
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed waiting for %s: %w", name, err)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return 0, fmt.Errorf("failed reading %s output: %w", name, scanErr)
	}
	return 0, nil
}
