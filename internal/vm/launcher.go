package vm

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/validate"
)

const (
	MinCPUCores = 1
	MaxCPUCores = 4
	MinMemoryMB = 512
	MaxMemoryMB = 32768

	defaultDisplay = "sdl"
)

// Launcher starts emulator processes without waiting for them.
type Launcher struct {
	runner *toolcli.Runner
}

// NewLauncher returns a Launcher backed by runner.
func NewLauncher(runner *toolcli.Runner) *Launcher {
	return &Launcher{runner: runner}
}

// BuildArgs validates spec and returns the emulator argument vector.
func BuildArgs(spec models.VMSpec) ([]string, error) {
	if _, err := validate.Identifier("name", spec.Name, validate.ForbiddenChars); err != nil {
		return nil, err
	}
	cores, err := validate.Range("cpu_cores", spec.CPUCores, MinCPUCores, MaxCPUCores)
	if err != nil {
		return nil, err
	}
	memory, err := validate.Range("memory_mb", spec.MemoryMB, MinMemoryMB, MaxMemoryMB)
	if err != nil {
		return nil, err
	}
	diskPath, err := validate.ExistingFile("disk_path", spec.DiskPath)
	if err != nil {
		return nil, err
	}
	if _, err := validate.DiskExtension("disk_path", diskPath); err != nil {
		return nil, err
	}
	isoPath, err := validate.ExistingFile("iso_path", spec.ISOPath)
	if err != nil {
		return nil, err
	}

	display := spec.Display
	if display == "" {
		display = defaultDisplay
	}

	return []string{
		"-m", strconv.Itoa(memory),
		"-cpu", "max",
		"-smp", strconv.Itoa(cores),
		"-hda", diskPath,
		"-cdrom", isoPath,
		"-boot", "menu=on",
		"-display", display,
	}, nil
}

// Launch validates spec, spawns the emulator and returns immediately.
func (l *Launcher) Launch(ctx context.Context, spec models.VMSpec) (*models.LaunchHandle, error) {
	args, err := BuildArgs(spec)
	if err != nil {
		return nil, err
	}

	proc, err := l.runner.Start(ctx, models.EmulatorTool, args...)
	if err != nil {
		tflog.Error(ctx, "Failed to launch virtual machine", map[string]any{"name": spec.Name, "error": err.Error()})
		return nil, err
	}

	go func() {
		if exitErr := <-proc.Done(); exitErr != nil {
			tflog.Warn(ctx, "Virtual machine exited with error", map[string]any{"name": spec.Name, "pid": proc.PID, "error": exitErr.Error()})
			return
		}
		tflog.Info(ctx, "Virtual machine exited", map[string]any{"name": spec.Name, "pid": proc.PID})
	}()

	return &models.LaunchHandle{
		Name:      spec.Name,
		PID:       proc.PID,
		Args:      proc.Args,
		StartedAt: time.Now(),
	}, nil
}
