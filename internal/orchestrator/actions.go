package orchestrator

import (
	"context"
	"fmt"

	"github.com/todoroff/terraform-provider-vmdock/internal/container"
	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/registry"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
)

// CreateDisk creates a virtual disk image.
func (o *Orchestrator) CreateDisk(ctx context.Context, spec models.DiskSpec) (Outcome, error) {
	return o.do(ctx, "create disk", func(ctx context.Context, out *Outcome) error {
		plan, res, err := o.disks.Create(ctx, spec)
		out.Result = res
		if err != nil {
			return err
		}
		out.Disk = &models.DiskInfo{Path: plan.TargetPath, Format: string(plan.Format)}
		out.Message = fmt.Sprintf("Virtual disk created at %s (%s, %s).", plan.TargetPath, plan.Format, plan.Size)
		return nil
	})
}

// InspectDisk reports a disk's virtual size.
func (o *Orchestrator) InspectDisk(ctx context.Context, path string) (Outcome, error) {
	return o.do(ctx, "inspect disk", func(ctx context.Context, out *Outcome) error {
		info, err := o.disks.Inspect(ctx, path)
		if err != nil {
			return err
		}
		out.Disk = &info
		out.Message = fmt.Sprintf("%s: format %s, virtual size %d bytes.", info.Path, info.Format, info.VirtualSizeBytes)
		return nil
	})
}

// ResizeDisk grows a disk. Shrinking fails with an UnsupportedOperation failure.
func (o *Orchestrator) ResizeDisk(ctx context.Context, path, newSize string) (Outcome, error) {
	return o.do(ctx, "resize disk", func(ctx context.Context, out *Outcome) error {
		res, err := o.disks.Resize(ctx, path, newSize)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = fmt.Sprintf("Disk resized to %s successfully.", newSize)
		return nil
	})
}

// RemoveDisk deletes a disk image file.
func (o *Orchestrator) RemoveDisk(ctx context.Context, path string) (Outcome, error) {
	return o.do(ctx, "remove disk", func(ctx context.Context, out *Outcome) error {
		if err := o.disks.Remove(ctx, path); err != nil {
			return err
		}
		out.Message = fmt.Sprintf("Removed %s.", path)
		return nil
	})
}

// LaunchVM starts the emulator and returns without waiting for it.
func (o *Orchestrator) LaunchVM(ctx context.Context, spec models.VMSpec) (Outcome, error) {
	return o.do(ctx, "launch virtual machine", func(ctx context.Context, out *Outcome) error {
		handle, err := o.vms.Launch(ctx, spec)
		if err != nil {
			return err
		}
		out.Launch = handle
		out.Message = fmt.Sprintf("Virtual machine %s launched (pid %d).", handle.Name, handle.PID)
		return nil
	})
}

// WriteDockerfile saves Dockerfile content.
func (o *Orchestrator) WriteDockerfile(ctx context.Context, path, content string) (Outcome, error) {
	return o.do(ctx, "create Dockerfile", func(ctx context.Context, out *Outcome) error {
		if err := container.WriteDockerfile(path, content); err != nil {
			return err
		}
		out.Message = fmt.Sprintf("Dockerfile created at %s.", path)
		return nil
	})
}

// BuildImage builds an image from a Dockerfile.
func (o *Orchestrator) BuildImage(ctx context.Context, dockerfile, contextDir, tag string) (Outcome, error) {
	return o.do(ctx, "build image", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.Build(ctx, dockerfile, contextDir, tag)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = fmt.Sprintf("Image '%s' built.", tag)
		return nil
	})
}

// ListImages shows local images.
func (o *Orchestrator) ListImages(ctx context.Context) (Outcome, error) {
	return o.do(ctx, "list images", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.ListImages(ctx)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = outputOrFallback(res, "No local images.")
		return nil
	})
}

// SearchLocalImage shows local images matching name.
func (o *Orchestrator) SearchLocalImage(ctx context.Context, name string) (Outcome, error) {
	return o.do(ctx, "search local image", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.SearchLocal(ctx, name)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = outputOrFallback(res, fmt.Sprintf("No local image named '%s'.", name))
		return nil
	})
}

// ListRunningContainers shows running containers.
func (o *Orchestrator) ListRunningContainers(ctx context.Context) (Outcome, error) {
	return o.do(ctx, "list running containers", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.ListRunning(ctx)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = outputOrFallback(res, "No running containers.")
		return nil
	})
}

// ListAllContainers shows every container.
func (o *Orchestrator) ListAllContainers(ctx context.Context) (Outcome, error) {
	return o.do(ctx, "list all containers", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.ListAll(ctx)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = outputOrFallback(res, "No containers.")
		return nil
	})
}

// StopContainer stops a container by ID or name.
func (o *Orchestrator) StopContainer(ctx context.Context, id string) (Outcome, error) {
	return o.do(ctx, "stop container", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.Stop(ctx, id)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = fmt.Sprintf("Container '%s' stopped.", id)
		return nil
	})
}

// PullImage pulls an image from its registry.
func (o *Orchestrator) PullImage(ctx context.Context, name string) (Outcome, error) {
	return o.do(ctx, "pull image", func(ctx context.Context, out *Outcome) error {
		res, err := o.containers.Pull(ctx, name)
		out.Result = res
		if err != nil {
			return err
		}
		out.Message = outputOrFallback(res, fmt.Sprintf("Image '%s' pulled.", name))
		return nil
	})
}

// ImageSummaries lists local images as typed records.
func (o *Orchestrator) ImageSummaries(ctx context.Context) (Outcome, error) {
	return o.do(ctx, "list images", func(ctx context.Context, out *Outcome) error {
		images, err := o.containers.ImageSummaries(ctx)
		if err != nil {
			return err
		}
		out.Images = images
		out.Message = fmt.Sprintf("%d local images.", len(images))
		return nil
	})
}

// ContainerSummaries lists containers as typed records.
func (o *Orchestrator) ContainerSummaries(ctx context.Context, all bool) (Outcome, error) {
	return o.do(ctx, "list containers", func(ctx context.Context, out *Outcome) error {
		containers, err := o.containers.ContainerSummaries(ctx, all)
		if err != nil {
			return err
		}
		out.Containers = containers
		out.Message = fmt.Sprintf("%d containers.", len(containers))
		return nil
	})
}

// SearchRemote searches Docker Hub through the engine and enriches each row with its pull count.
func (o *Orchestrator) SearchRemote(ctx context.Context, query string) (Outcome, error) {
	return o.do(ctx, "search Docker Hub", func(ctx context.Context, out *Outcome) error {
		rows, err := o.registry.SearchRemote(ctx, query)
		if err != nil {
			return err
		}
		out.Rows = rows
		if len(rows) == 0 {
			out.Message = fmt.Sprintf("No results found for '%s'. Please check the image name and try again.", query)
			return nil
		}
		out.Message = fmt.Sprintf("Displaying %d results for '%s'. View on Docker Hub: %s", len(rows), query, registry.HubURL(query))
		return nil
	})
}

// ToolStatus is one line of a tool check.
type ToolStatus struct {
	Binary  models.ToolBinary
	Problem string
}

// CheckTools resolves and probes every tool. Missing or outdated tools are
// reported in the outcome rather than failing the action.
func (o *Orchestrator) CheckTools(ctx context.Context) (Outcome, error) {
	return o.do(ctx, "check tools", func(ctx context.Context, out *Outcome) error {
		missing := 0
		for _, kind := range models.AllToolKinds {
			bin, err := o.runner.Probe(ctx, kind)
			status := ToolStatus{Binary: bin}
			switch {
			case err != nil:
				status.Problem = err.Error()
				if toolcli.Classify(err) == models.FailureToolNotFound {
					missing++
				}
			case bin.Version != "":
				if verr := toolcli.CheckMinimum(kind, bin.Version); verr != nil {
					status.Problem = verr.Error()
				}
			}
			out.Tools = append(out.Tools, status)
		}
		if missing > 0 {
			out.Message = fmt.Sprintf("%d of %d tools are missing.", missing, len(models.AllToolKinds))
		} else {
			out.Message = "All tools are available."
		}
		return nil
	})
}
