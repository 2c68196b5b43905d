package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/todoroff/terraform-provider-vmdock/internal/config"
	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/vm"
)

type actionFunc func(ctx context.Context) (orchestrator.Outcome, error)

// run executes action off the command goroutine and prints its message. An
// interrupt returns immediately; the runner kills the tool through ctx.
func (a *app) run(cmd *cobra.Command, action actionFunc) (orchestrator.Outcome, error) {
	ctx := cmd.Context()
	select {
	case report := <-a.orch.Async(ctx, action):
		if report.Err != nil {
			return report.Outcome, report.Err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Outcome.Message)
		return report.Outcome, nil
	case <-ctx.Done():
		return orchestrator.Outcome{}, ctx.Err()
	}
}

// runE builds a RunE that resolves the action from positional arguments once
// flags are parsed.
func (a *app) runE(action func(args []string) actionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, err := a.run(cmd, action(args))
		return err
	}
}

func newDiskCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Create, inspect and resize virtual disk images",
	}
	cmd.AddCommand(
		newDiskCreateCommand(a),
		newDiskInfoCommand(a),
		newDiskResizeCommand(a),
		newDiskRemoveCommand(a),
	)
	return cmd
}

func newDiskCreateCommand(a *app) *cobra.Command {
	var (
		format     string
		allocation string
		size       string
	)

	cmd := &cobra.Command{
		Use:   "create <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Create a virtual disk image with qemu-img",
		RunE: a.runE(func(args []string) actionFunc {
			spec := models.DiskSpec{
				Format:     models.DiskFormat(strings.ToLower(format)),
				Allocation: models.Allocation(allocation),
				Size:       size,
				TargetPath: args[0],
			}
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.CreateDisk(ctx, spec)
			}
		}),
	}

	cmd.Flags().StringVar(&format, "format", string(models.FormatQCOW2), "Disk format (vmdk, vdi, vhd, vhdx, qcow, qcow2, raw, img, qed)")
	cmd.Flags().StringVar(&allocation, "allocation", string(models.AllocationDynamic), "Dynamic or Fixed")
	cmd.Flags().StringVar(&size, "size", "", "Disk size such as 10G")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newDiskInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Show a disk image's format and virtual size",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.InspectDisk(ctx, args[0])
			}
		}),
	}
}

func newDiskResizeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resize <path> <size>",
		Args:  cobra.ExactArgs(2),
		Short: "Grow a disk image",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.ResizeDisk(ctx, args[0], args[1])
			}
		}),
	}
}

func newDiskRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Delete a disk image file",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.RemoveDisk(ctx, args[0])
			}
		}),
	}
}

func newVMCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "Launch virtual machines with qemu-system-x86_64",
	}
	cmd.AddCommand(newVMLaunchCommand(a))
	return cmd
}

func newVMLaunchCommand(a *app) *cobra.Command {
	var spec models.VMSpec

	cmd := &cobra.Command{
		Use:   "launch <name>",
		Args:  cobra.ExactArgs(1),
		Short: "Boot a virtual machine from a disk and an installation ISO",
		Long:  "Boot a virtual machine from a disk and an installation ISO. The emulator keeps running after vmdock exits.",
		RunE: a.runE(func(args []string) actionFunc {
			spec.Name = args[0]
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.LaunchVM(ctx, spec)
			}
		}),
	}

	cmd.Flags().IntVar(&spec.CPUCores, "cpus", vm.MinCPUCores, fmt.Sprintf("CPU cores (%d-%d)", vm.MinCPUCores, vm.MaxCPUCores))
	cmd.Flags().IntVar(&spec.MemoryMB, "memory", 2048, fmt.Sprintf("Memory in MB (%d-%d)", vm.MinMemoryMB, vm.MaxMemoryMB))
	cmd.Flags().StringVar(&spec.DiskPath, "disk", "", "Path to the disk image")
	cmd.Flags().StringVar(&spec.ISOPath, "iso", "", "Path to the installation ISO")
	cmd.Flags().StringVar(&spec.Display, "display", "", "Emulator display backend (default sdl)")
	_ = cmd.MarkFlagRequired("disk")
	_ = cmd.MarkFlagRequired("iso")
	return cmd
}

func newImageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Build, list, search and pull container images",
	}
	cmd.AddCommand(
		newImageBuildCommand(a),
		newImageListCommand(a),
		newImageSearchCommand(a),
		newImagePullCommand(a),
		newImageDockerfileCommand(a),
	)
	return cmd
}

func newImageBuildCommand(a *app) *cobra.Command {
	var (
		dockerfile string
		contextDir string
	)

	cmd := &cobra.Command{
		Use:   "build <tag>",
		Args:  cobra.ExactArgs(1),
		Short: "Build an image from a Dockerfile",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.BuildImage(ctx, dockerfile, contextDir, args[0])
			}
		}),
	}

	cmd.Flags().StringVarP(&dockerfile, "file", "f", "Dockerfile", "Path to the Dockerfile")
	cmd.Flags().StringVar(&contextDir, "context", "", "Build context directory (default: the Dockerfile's directory)")
	return cmd
}

func newImageListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Args:  cobra.NoArgs,
		Short: "List local images",
		RunE: a.runE(func(_ []string) actionFunc {
			return a.orch.ListImages
		}),
	}
}

func newImageSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <name>",
		Args:  cobra.ExactArgs(1),
		Short: "Search local images by name",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.SearchLocalImage(ctx, args[0])
			}
		}),
	}
}

func newImagePullCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <name>",
		Args:  cobra.ExactArgs(1),
		Short: "Pull an image from a registry",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.PullImage(ctx, args[0])
			}
		}),
	}
}

func newImageDockerfileCommand(a *app) *cobra.Command {
	var (
		content string
		from    string
	)

	cmd := &cobra.Command{
		Use:   "dockerfile <path>",
		Args:  cobra.ExactArgs(1),
		Short: "Write a Dockerfile",
		RunE: a.runE(func(args []string) actionFunc {
			text := content
			if from != "" {
				text = fmt.Sprintf("FROM %s\n", from)
			}
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.WriteDockerfile(ctx, args[0], text)
			}
		}),
	}

	cmd.Flags().StringVar(&content, "content", "", "Dockerfile content")
	cmd.Flags().StringVar(&from, "from", "", "Write a single FROM line for this base image")
	cmd.MarkFlagsMutuallyExclusive("content", "from")
	cmd.MarkFlagsOneRequired("content", "from")
	return cmd
}

func newContainerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "List and stop containers",
	}
	cmd.AddCommand(newContainerPsCommand(a), newContainerStopCommand(a))
	return cmd
}

func newContainerPsCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ps",
		Args:  cobra.NoArgs,
		Short: "List running containers",
		RunE: a.runE(func(_ []string) actionFunc {
			if all {
				return a.orch.ListAllContainers
			}
			return a.orch.ListRunningContainers
		}),
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include stopped containers")
	return cmd
}

func newContainerStopCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Args:  cobra.ExactArgs(1),
		Short: "Stop a running container",
		RunE: a.runE(func(args []string) actionFunc {
			return func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.StopContainer(ctx, args[0])
			}
		}),
	}
}

func newHubCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Query Docker Hub",
	}
	cmd.AddCommand(newHubSearchCommand(a))
	return cmd
}

func newHubSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Args:  cobra.ExactArgs(1),
		Short: "Search Docker Hub and show pull counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.run(cmd, func(ctx context.Context) (orchestrator.Outcome, error) {
				return a.orch.SearchRemote(ctx, args[0])
			})
			if err != nil || len(out.Rows) == 0 {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION\tSTARS\tOFFICIAL\tPULLS")
			for _, row := range out.Rows {
				official := ""
				if row.IsOfficial {
					official = "[OK]"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\n", row.Name, row.ShortDescription, row.StarCount, official, row.PullCount)
			}
			return w.Flush()
		},
	}
}

func newToolsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the external tools vmdock drives",
	}
	cmd.AddCommand(newToolsCheckCommand(a))
	return cmd
}

func newToolsCheckCommand(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "check",
		Args:  cobra.NoArgs,
		Short: "Report where each tool was found and its version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh {
				a.orch.RefreshTools()
			}
			out, err := a.run(cmd, a.orch.CheckTools)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tPATH\tVERSION\tPROBLEM")
			for _, t := range out.Tools {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Binary.Kind.DefaultBinary(), dash(t.Binary.Path), dash(t.Binary.Version), t.Problem)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Forget cached tool locations first")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newConfigCommand(a *app, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the vmdock configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Args:  cobra.NoArgs,
		Short: "Write a configuration file with default values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(*configPath); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", *configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg := config.DefaultConfig()
			if err := config.Save(*configPath, &cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s.\n", *configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Args:  cobra.NoArgs,
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
