// Package procrun runs external programs on behalf of the injection
// strategies and classifies how they failed.
//
// Every call blocks until the child exits. A program that cannot be found
// is reported as a *LaunchError with NotFound set so callers can attach an
// install hint; a program that ran but exited nonzero is an *ExitError
// carrying the literal status.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Runner executes external programs. Production code uses Exec; tests
// substitute a fake.
type Runner interface {
	// Run executes name with args and waits for it to exit.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes name with args and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// LaunchError reports that a program could not be started.
type LaunchError struct {
	Program  string
	NotFound bool
	Err      error
}

func (e *LaunchError) Error() string {
	if e.NotFound {
		return e.Program + " not found"
	}
	return fmt.Sprintf("failed to run %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports that a program ran but exited with a nonzero status.
type ExitError struct {
	Program string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}

// IsNotFound reports whether err means the program is not installed.
func IsNotFound(err error) bool {
	var le *LaunchError
	return errors.As(err, &le) && le.NotFound
}

// Exec is the os/exec backed Runner.
type Exec struct {
	// Env, if non-nil, replaces the child's environment.
	Env []string
}

// Run implements Runner.
func (x Exec) Run(ctx context.Context, name string, args ...string) error {
	_, err := x.run(ctx, name, args, false)
	return err
}

// Output implements Runner.
func (x Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return x.run(ctx, name, args, true)
}

func (x Exec) run(ctx context.Context, name string, args []string, capture bool) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if x.Env != nil {
		cmd.Env = x.Env
	}
	var stdout, stderr bytes.Buffer
	if capture {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classify(name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func classify(name string, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Program: name,
			Code:    exitErr.ExitCode(),
			Stderr:  strings.TrimSpace(stderr),
		}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &LaunchError{Program: name, NotFound: true, Err: err}
	}
	return &LaunchError{Program: name, Err: err}
}
