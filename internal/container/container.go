// Package container maps container-engine subcommands onto the shared runner.
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/validate"
)

const (
	// SearchTimeout is the hard limit on `docker search`.
	SearchTimeout = 10 * time.Second

	// SearchFormat renders one tab-separated row per search hit.
	SearchFormat = "{{.Name}}\t{{.Description}}\t{{.StarCount}}\t{{.IsOfficial}}"

	jsonLineFormat = "{{json .}}"
)

// Operations runs container engine commands.
type Operations struct {
	runner *toolcli.Runner
}

// New returns container Operations backed by runner.
func New(runner *toolcli.Runner) *Operations {
	return &Operations{runner: runner}
}

// BuildArgs validates a build request and returns the engine argument vector.
// An empty contextDir defaults to the Dockerfile's directory.
func BuildArgs(dockerfile, contextDir, tag string) ([]string, error) {
	dockerfile, err := validate.ExistingFile("dockerfile", dockerfile)
	if err != nil {
		return nil, err
	}
	tag, err = validate.NonEmpty("tag", tag)
	if err != nil {
		return nil, err
	}
	if contextDir == "" {
		contextDir = filepath.Dir(dockerfile)
	}
	return []string{"build", "-t", tag, "-f", dockerfile, contextDir}, nil
}

// Build runs `docker build -t <tag> -f <dockerfile> <context>`.
func (o *Operations) Build(ctx context.Context, dockerfile, contextDir, tag string) (models.CommandResult, error) {
	args, err := BuildArgs(dockerfile, contextDir, tag)
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}
	tflog.Info(ctx, "Building container image", map[string]any{"tag": args[2], "dockerfile": args[4], "context": args[5]})
	return o.runner.Run(ctx, models.ContainerTool, args...)
}

// ListImages runs `docker images`.
func (o *Operations) ListImages(ctx context.Context) (models.CommandResult, error) {
	return o.runner.Run(ctx, models.ContainerTool, "images")
}

// SearchLocal runs `docker images <name>`.
func (o *Operations) SearchLocal(ctx context.Context, name string) (models.CommandResult, error) {
	name, err := validate.NonEmpty("image", name)
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}
	return o.runner.Run(ctx, models.ContainerTool, "images", name)
}

// ListRunning runs `docker ps`.
func (o *Operations) ListRunning(ctx context.Context) (models.CommandResult, error) {
	return o.runner.Run(ctx, models.ContainerTool, "ps")
}

// ListAll runs `docker ps -a`.
func (o *Operations) ListAll(ctx context.Context) (models.CommandResult, error) {
	return o.runner.Run(ctx, models.ContainerTool, "ps", "-a")
}

// Stop runs `docker stop <id>`.
func (o *Operations) Stop(ctx context.Context, id string) (models.CommandResult, error) {
	id, err := validate.NonEmpty("container_id", id)
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}
	tflog.Info(ctx, "Stopping container", map[string]any{"container_id": id})
	return o.runner.Run(ctx, models.ContainerTool, "stop", id)
}

// Pull runs `docker pull <name>`.
func (o *Operations) Pull(ctx context.Context, name string) (models.CommandResult, error) {
	name, err := validate.NonEmpty("image", name)
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}
	tflog.Info(ctx, "Pulling container image", map[string]any{"image": name})
	return o.runner.Run(ctx, models.ContainerTool, "pull", name)
}

// Search runs `docker search` with the tab-separated row format and a 10s limit.
func (o *Operations) Search(ctx context.Context, query string) (models.CommandResult, error) {
	query, err := validate.NonEmpty("query", query)
	if err != nil {
		return models.CommandResult{FailureKind: models.FailureInvalidArgument}, err
	}
	return o.runner.RunWithTimeout(ctx, models.ContainerTool, SearchTimeout, "search", "--format", SearchFormat, query)
}

// ImageSummaries lists local images as typed records.
func (o *Operations) ImageSummaries(ctx context.Context) ([]models.ImageSummary, error) {
	res, err := o.runner.Run(ctx, models.ContainerTool, "images", "--format", jsonLineFormat)
	if err != nil {
		return nil, err
	}
	return parseImageLines(res.Stdout)
}

// ContainerSummaries lists running containers, or every container when all is set.
func (o *Operations) ContainerSummaries(ctx context.Context, all bool) ([]models.ContainerSummary, error) {
	args := []string{"ps"}
	if all {
		args = append(args, "-a")
	}
	args = append(args, "--format", jsonLineFormat)

	res, err := o.runner.Run(ctx, models.ContainerTool, args...)
	if err != nil {
		return nil, err
	}
	return parseContainerLines(res.Stdout)
}

// WriteDockerfile saves content to path, creating parent directories as needed.
func WriteDockerfile(path, content string) error {
	path, err := validate.NonEmpty("path", path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create Dockerfile directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write Dockerfile: %w", err)
	}
	return nil
}
