// Package orchestrator is the entry point front ends call: one method per user
// action, each validating, locating the tool, executing and reporting a single
// outcome message.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/container"
	"github.com/todoroff/terraform-provider-vmdock/internal/disk"
	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/registry"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/vm"
)

// Config controls Orchestrator instantiation.
type Config struct {
	// ToolPaths overrides the binary used for a tool kind. Missing kinds are searched on PATH.
	ToolPaths map[models.ToolKind]string
	// Locator replaces the default locator built from ToolPaths.
	Locator *toolcli.Locator
	// Timeout bounds every blocking tool call (default 30s).
	Timeout time.Duration

	RegistryURL       string
	SearchConcurrency int
	HTTPClient        *http.Client
}

// Orchestrator runs at most one action at a time.
type Orchestrator struct {
	mu sync.Mutex

	runner     *toolcli.Runner
	disks      *disk.Operations
	vms        *vm.Launcher
	containers *container.Operations
	registry   *registry.Client
}

// New wires the operation packages around a shared runner.
func New(cfg Config) *Orchestrator {
	locator := cfg.Locator
	if locator == nil {
		locator = toolcli.NewLocator(cfg.ToolPaths)
	}
	runner := toolcli.NewRunner(toolcli.Config{Locator: locator, Timeout: cfg.Timeout})
	containers := container.New(runner)

	return &Orchestrator{
		runner:     runner,
		disks:      disk.New(runner),
		vms:        vm.NewLauncher(runner),
		containers: containers,
		registry: registry.New(containers, registry.Config{
			BaseURL:     cfg.RegistryURL,
			HTTPClient:  cfg.HTTPClient,
			Concurrency: cfg.SearchConcurrency,
		}),
	}
}

// Outcome is the result of a successful action.
type Outcome struct {
	Action      string
	OperationID string
	Message     string
	Result      models.CommandResult

	Disk       *models.DiskInfo
	Launch     *models.LaunchHandle
	Rows       []models.SearchResultRow
	Images     []models.ImageSummary
	Containers []models.ContainerSummary
	Tools      []ToolStatus
}

// Failure is the error returned by every action. Its message is the single
// user-visible report for the action and includes the tool's own error text.
type Failure struct {
	Action string
	Kind   models.FailureKind
	Result models.CommandResult
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", f.Action, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Report carries an action's outcome across goroutines.
type Report struct {
	Outcome Outcome
	Err     error
}

// Async runs action on its own goroutine so a caller's event loop never blocks
// on an external tool. The channel receives exactly one Report.
func (o *Orchestrator) Async(ctx context.Context, action func(context.Context) (Outcome, error)) <-chan Report {
	ch := make(chan Report, 1)
	go func() {
		defer close(ch)
		out, err := action(ctx)
		ch <- Report{Outcome: out, Err: err}
	}()
	return ch
}

// RefreshTools forgets every resolved tool path.
func (o *Orchestrator) RefreshTools() {
	o.runner.Locator().Refresh()
}

// SetToolPath changes the binary used for kind.
func (o *Orchestrator) SetToolPath(kind models.ToolKind, path string) {
	o.runner.Locator().SetPath(kind, path)
}

// Timeout returns the default per-call deadline.
func (o *Orchestrator) Timeout() time.Duration {
	return o.runner.Timeout()
}

type actionFunc func(ctx context.Context, out *Outcome) error

func (o *Orchestrator) do(ctx context.Context, action string, fn actionFunc) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := Outcome{Action: action, OperationID: uuid.NewString()}
	ctx = tflog.SetField(ctx, "operation_id", out.OperationID)
	ctx = tflog.SetField(ctx, "action", action)

	tflog.Debug(ctx, "Starting action")
	if err := fn(ctx, &out); err != nil {
		failure := &Failure{Action: action, Kind: toolcli.Classify(err), Result: out.Result, Err: err}
		if failure.Result.FailureKind == models.FailureNone {
			failure.Result.FailureKind = failure.Kind
		}
		tflog.Warn(ctx, "Action failed", map[string]any{"kind": string(failure.Kind), "error": err.Error()})
		return out, failure
	}
	tflog.Debug(ctx, "Action finished", map[string]any{"message": out.Message})
	return out, nil
}

func outputOrFallback(res models.CommandResult, fallback string) string {
	if text := strings.TrimRight(res.Stdout, "\n"); text != "" {
		return text
	}
	return fallback
}
