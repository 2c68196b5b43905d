package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
	"github.com/spf13/cobra"

	"github.com/todoroff/terraform-provider-vmdock/internal/config"
	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(&app{})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// app carries state shared by every command once the root pre-run has loaded
// configuration.
type app struct {
	cfg  *config.Config
	orch *orchestrator.Orchestrator

	// locator replaces PATH lookups; set by tests.
	locator *toolcli.Locator
}

func newRootCommand(a *app) *cobra.Command {
	var (
		configPath string
		logLevel   string
		timeout    time.Duration
	)

	root := &cobra.Command{
		Use:           "vmdock",
		Short:         "Drive qemu-img, qemu-system-x86_64 and docker from one place",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log verbosity (trace, debug, info, warn, error, off)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Timeout for each external command (overrides the configuration)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if timeout != 0 {
			cfg.Timeout = timeout
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		level := hclog.LevelFromString(cfg.LogLevel)
		if level == hclog.NoLevel {
			return fmt.Errorf("unknown log level %q", cfg.LogLevel)
		}
		ctx := tfsdklog.NewRootProviderLogger(cmd.Context(),
			tfsdklog.WithLogName("vmdock"),
			tfsdklog.WithLevel(level),
			tfsdklog.WithoutLocation(),
		)
		cmd.SetContext(ctx)

		orchCfg := cfg.Orchestrator()
		orchCfg.Locator = a.locator
		a.cfg = cfg
		a.orch = orchestrator.New(orchCfg)
		return nil
	}

	root.AddCommand(
		newDiskCommand(a),
		newVMCommand(a),
		newImageCommand(a),
		newContainerCommand(a),
		newHubCommand(a),
		newToolsCommand(a),
		newConfigCommand(a, &configPath),
	)
	return root
}

// exitCode maps a classified failure to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	var failure *orchestrator.Failure
	if !errors.As(err, &failure) {
		return 1
	}
	switch failure.Kind {
	case models.FailureInvalidArgument:
		return 2
	case models.FailureTimeout:
		return 124
	case models.FailureToolNotFound:
		return 127
	default:
		return 1
	}
}
