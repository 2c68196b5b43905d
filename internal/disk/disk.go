// Package disk drives qemu-img to create, inspect and grow virtual disk images.
package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/validate"
)

// impliedAllocation lists formats for which an explicit full preallocation flag is
// not added even when Fixed allocation is requested.
var impliedAllocation = map[models.DiskFormat]bool{
	models.FormatVMDK:  true,
	models.FormatVDI:   true,
	models.FormatVHD:   true,
	models.FormatVHDX:  true,
	models.FormatQCOW:  true,
	models.FormatQCOW2: true,
	models.FormatRaw:   true,
}

// Operations runs disk image commands.
type Operations struct {
	runner *toolcli.Runner
}

// New returns disk Operations backed by runner.
func New(runner *toolcli.Runner) *Operations {
	return &Operations{runner: runner}
}

// Plan is a validated, normalized create request.
type Plan struct {
	Format     models.DiskFormat
	Size       models.Size
	TargetPath string
	Args       []string
}

// PlanCreate validates spec and builds the qemu-img argument vector without running it.
func PlanCreate(spec models.DiskSpec) (Plan, error) {
	size, err := validate.Size(strings.TrimSpace(spec.Size))
	if err != nil {
		return Plan{}, err
	}
	target, err := validate.NonEmpty("target_path", spec.TargetPath)
	if err != nil {
		return Plan{}, err
	}
	format, err := validate.DiskFormat(string(spec.Format))
	if err != nil {
		return Plan{}, err
	}
	allocation, err := validate.Allocation(string(spec.Allocation))
	if err != nil {
		return Plan{}, err
	}

	if format == models.FormatImg {
		format = models.FormatRaw
		if !strings.HasSuffix(target, ".img") {
			target += ".img"
		}
	}

	args := []string{"create", "-f", string(format)}
	if allocation == models.AllocationFixed && !impliedAllocation[format] {
		args = append(args, "-o", "preallocation=full")
	}
	args = append(args, target, size.String())

	return Plan{Format: format, Size: size, TargetPath: target, Args: args}, nil
}

// Create builds a new disk image. The returned plan carries the normalized target path.
func (o *Operations) Create(ctx context.Context, spec models.DiskSpec) (Plan, models.CommandResult, error) {
	plan, err := PlanCreate(spec)
	if err != nil {
		return Plan{}, models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}

	tflog.Info(ctx, "Creating virtual disk", map[string]any{
		"path":   plan.TargetPath,
		"format": string(plan.Format),
		"size":   plan.Size.String(),
	})

	res, err := o.runner.Run(ctx, models.DiskTool, plan.Args...)
	return plan, res, err
}

// Inspect reads the disk's virtual size through `qemu-img info --output=json`.
func (o *Operations) Inspect(ctx context.Context, path string) (models.DiskInfo, error) {
	path, err := validate.NonEmpty("path", path)
	if err != nil {
		return models.DiskInfo{}, err
	}

	res, err := o.runner.Run(ctx, models.DiskTool, "info", "--output=json", path)
	if err != nil {
		return models.DiskInfo{}, err
	}

	info, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		return models.DiskInfo{}, err
	}
	info.Path = path
	return info, nil
}

// Resize grows the disk at path to newSize. Shrinking is rejected locally without
// invoking qemu-img.
func (o *Operations) Resize(ctx context.Context, path, newSize string) (models.CommandResult, error) {
	size, err := validate.Size(strings.TrimSpace(newSize))
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}
	requested, err := validate.Bytes(size)
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}

	info, err := o.Inspect(ctx, path)
	if err != nil {
		return models.CommandResult{FailureKind: toolcli.Classify(err)}, err
	}

	if err := CheckGrow(info.VirtualSizeBytes, requested); err != nil {
		return models.CommandResult{FailureKind: models.FailureUnsupported}, err
	}

	tflog.Info(ctx, "Resizing virtual disk", map[string]any{
		"path":          info.Path,
		"current_bytes": info.VirtualSizeBytes,
		"new_size":      size.String(),
	})

	return o.runner.Run(ctx, models.DiskTool, "resize", info.Path, size.String())
}

// CheckGrow rejects a requested byte size smaller than the current virtual size.
func CheckGrow(currentBytes, requestedBytes uint64) error {
	if requestedBytes < currentBytes {
		return fmt.Errorf("%w: shrinking disks is not supported, only expansion is allowed (current %d bytes, requested %d bytes)",
			toolcli.ErrUnsupported, currentBytes, requestedBytes)
	}
	return nil
}

// Remove deletes the disk image file. A missing file is not an error.
func (o *Operations) Remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove disk %s: %w", path, err)
	}
	tflog.Info(ctx, "Removed virtual disk", map[string]any{"path": path})
	return nil
}
