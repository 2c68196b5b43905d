package toolcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

const (
	// DefaultTimeout bounds every blocking tool call that does not set its own deadline.
	DefaultTimeout = 30 * time.Second

	waitDelay = 2 * time.Second
)

// Config controls Runner instantiation.
type Config struct {
	Locator *Locator
	Timeout time.Duration
}

// Runner is the single primitive through which every external tool is executed.
type Runner struct {
	locator *Locator
	timeout time.Duration
}

// NewRunner returns a Runner. A nil locator searches PATH for every tool.
func NewRunner(cfg Config) *Runner {
	locator := cfg.Locator
	if locator == nil {
		locator = NewLocator(nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{locator: locator, timeout: timeout}
}

// Locator exposes the tool locator shared by this runner.
func (r *Runner) Locator() *Locator {
	return r.locator
}

// Timeout returns the default per-call deadline.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run executes the tool with the runner's default timeout.
func (r *Runner) Run(ctx context.Context, kind models.ToolKind, args ...string) (models.CommandResult, error) {
	return r.RunWithTimeout(ctx, kind, r.timeout, args...)
}

// RunWithTimeout executes the tool and captures its result. The returned error is
// nil only when the tool exited with status zero; the CommandResult is always
// populated with whatever was captured.
func (r *Runner) RunWithTimeout(ctx context.Context, kind models.ToolKind, timeout time.Duration, args ...string) (models.CommandResult, error) {
	result := models.CommandResult{
		Command: append([]string{kind.DefaultBinary()}, args...),
	}

	bin, err := r.locator.Resolve(ctx, kind)
	if err != nil {
		result.FailureKind = models.FailureToolNotFound
		return result, err
	}
	result.Command[0] = bin.Path
	label := result.CommandLine()

	if timeout <= 0 {
		timeout = r.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin.Path, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	tflog.Debug(ctx, "Running external command", map[string]any{
		"tool":    string(kind),
		"command": label,
		"timeout": timeout.String(),
	})

	start := time.Now()
	err = cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil {
		result.Succeeded = true
		tflog.Trace(ctx, "External command finished", map[string]any{
			"command":  label,
			"duration": result.Duration.String(),
		})
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.FailureKind = models.FailureTimeout
		result.ExitCode = -1
		tflog.Warn(ctx, "External command timed out", map[string]any{"command": label, "timeout": timeout.String()})
		return result, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, label)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.FailureKind = models.FailureNonZeroExit
		result.ExitCode = exitErr.ExitCode()
		tflog.Debug(ctx, "External command exited non-zero", map[string]any{
			"command":   label,
			"exit_code": result.ExitCode,
			"stderr":    strings.TrimSpace(result.Stderr),
		})
		return result, &CLIError{
			Command:  label,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			ExitCode: result.ExitCode,
			Err:      err,
		}
	}

	result.ExitCode = -1
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		// The binary vanished between resolution and spawn.
		r.locator.Refresh()
		result.FailureKind = models.FailureToolNotFound
		return result, fmt.Errorf("%w: %s: %v", ErrToolNotFound, bin.Path, err)
	}

	result.FailureKind = models.FailureUnexpected
	tflog.Error(ctx, "External command failed unexpectedly", map[string]any{"command": label, "error": err.Error()})
	return result, &UnexpectedError{Command: label, Err: err}
}

// Process is a tool started in the background.
type Process struct {
	PID  int
	Args []string
	done chan error
}

// Done is closed after the process exits; the exit error, if any, is delivered first.
func (p *Process) Done() <-chan error {
	return p.done
}

// Start spawns the tool without waiting for it. The child is reaped in the background
// and is not bound to ctx, which is only used for logging.
func (r *Runner) Start(ctx context.Context, kind models.ToolKind, args ...string) (*Process, error) {
	bin, err := r.locator.Resolve(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	cmd := exec.Command(bin.Path, args...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			r.locator.Refresh()
			return nil, fmt.Errorf("%w: %w: %s", ErrLaunchFailed, ErrToolNotFound, bin.Path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, bin.Path, err)
	}

	proc := &Process{
		PID:  cmd.Process.Pid,
		Args: append([]string{bin.Path}, args...),
		done: make(chan error, 1),
	}
	tflog.Info(ctx, "Started background process", map[string]any{"tool": string(kind), "pid": proc.PID})

	go func() {
		proc.done <- cmd.Wait()
		close(proc.done)
	}()

	return proc, nil
}
