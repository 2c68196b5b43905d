package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/registry"
)

const defaultTimeoutSec = 30

// New returns a function that instantiates a vmdock provider configured with
// the supplied version string (injected from the main package).
func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &VmdockProvider{
			version: version,
		}
	}
}

var _ provider.Provider = (*VmdockProvider)(nil)

// VmdockProvider implements the Terraform Plugin Framework provider.Provider interface.
type VmdockProvider struct {
	version string

	mu   sync.RWMutex
	orch *orchestrator.Orchestrator
}

// Metadata sets the provider type name and version exposed to Terraform.
func (p *VmdockProvider) Metadata(_ context.Context, _ provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "vmdock"
	resp.Version = p.version
}

// Schema defines the provider-level configuration attributes.
func (p *VmdockProvider) Schema(_ context.Context, _ provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Provider for local QEMU disks and virtual machines and Docker images, driven through the qemu-img, qemu-system-x86_64 and docker CLIs.",
		Attributes: map[string]schema.Attribute{
			"qemu_img_path": schema.StringAttribute{
				Optional:            true,
				Description:         "Path to the qemu-img binary. Defaults to the first qemu-img found in PATH.",
				MarkdownDescription: "Path to the `qemu-img` binary. Defaults to `qemu-img`, which requires it to be available on the `PATH`.",
			},
			"qemu_system_path": schema.StringAttribute{
				Optional:            true,
				Description:         "Path to the qemu-system-x86_64 binary. Defaults to the first qemu-system-x86_64 found in PATH.",
				MarkdownDescription: "Path to the `qemu-system-x86_64` binary. Defaults to `qemu-system-x86_64` on the `PATH`.",
			},
			"docker_path": schema.StringAttribute{
				Optional:            true,
				Description:         "Path to the docker binary. Defaults to the first docker found in PATH.",
				MarkdownDescription: "Path to the `docker` binary. Defaults to `docker` on the `PATH`.",
			},
			"command_timeout": schema.Int64Attribute{
				Optional: true,
				Description: fmt.Sprintf(
					"Timeout for external commands in seconds (default: %d).",
					defaultTimeoutSec,
				),
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"registry_url": schema.StringAttribute{
				Optional:    true,
				Description: fmt.Sprintf("Base URL of the Docker Hub web API used for pull counts (default: %s).", registry.DefaultBaseURL),
			},
			"search_concurrency": schema.Int64Attribute{
				Optional:    true,
				Description: fmt.Sprintf("Maximum concurrent pull-count lookups per search (default: %d).", registry.DefaultConcurrency),
				Validators: []validator.Int64{
					int64validator.Between(1, 64),
				},
			},
		},
	}
}

// Configure builds the orchestrator shared across resources and data sources.
func (p *VmdockProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var config providerConfigModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	cfg := orchestrator.Config{
		ToolPaths: map[models.ToolKind]string{
			models.DiskTool:      valueOrEmpty(config.QemuImgPath),
			models.EmulatorTool:  valueOrEmpty(config.QemuSystemPath),
			models.ContainerTool: valueOrEmpty(config.DockerPath),
		},
		Timeout:     defaultTimeoutSec * time.Second,
		RegistryURL: valueOrEmpty(config.RegistryURL),
	}

	if !config.CommandTimeout.IsNull() && !config.CommandTimeout.IsUnknown() {
		if config.CommandTimeout.ValueInt64() <= 0 {
			resp.Diagnostics.AddAttributeError(
				path.Root("command_timeout"),
				"Invalid command timeout",
				"Timeout must be a positive integer representing seconds.",
			)
			return
		}
		cfg.Timeout = time.Duration(config.CommandTimeout.ValueInt64()) * time.Second
	}

	if !config.SearchConcurrency.IsNull() && !config.SearchConcurrency.IsUnknown() {
		cfg.SearchConcurrency = int(config.SearchConcurrency.ValueInt64())
	}

	orch := orchestrator.New(cfg)

	// Tools are only needed by the resources that use them, so problems are warnings.
	out, err := orch.CheckTools(ctx)
	if err != nil {
		resp.Diagnostics.AddWarning("Unable to check external tools", err.Error())
	} else {
		for _, status := range out.Tools {
			if status.Problem != "" {
				resp.Diagnostics.AddWarning(
					fmt.Sprintf("Problem with %s", status.Binary.Kind.DefaultBinary()),
					status.Problem,
				)
				continue
			}
			tflog.Info(ctx, "Detected external tool", map[string]any{
				"tool":    string(status.Binary.Kind),
				"path":    status.Binary.Path,
				"version": status.Binary.Version,
			})
		}
	}

	p.mu.Lock()
	p.orch = orch
	p.mu.Unlock()

	resp.ResourceData = providerData{orch: orch}
	resp.DataSourceData = resp.ResourceData
}

// Resources returns the list of resources exposed by the provider.
func (p *VmdockProvider) Resources(_ context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewDiskResource,
		NewVMResource,
		NewImageResource,
		NewDockerfileResource,
	}
}

// DataSources returns the list of data sources supported by the provider.
func (p *VmdockProvider) DataSources(_ context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewDiskInfoDataSource,
		NewImagesDataSource,
		NewContainersDataSource,
		NewRegistrySearchDataSource,
		NewToolsDataSource,
	}
}
