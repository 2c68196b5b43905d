package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

var (
	_ datasource.DataSource              = (*diskInfoDataSource)(nil)
	_ datasource.DataSourceWithConfigure = (*diskInfoDataSource)(nil)
)

// NewDiskInfoDataSource returns the disk info data source.
func NewDiskInfoDataSource() datasource.DataSource {
	return &diskInfoDataSource{}
}

type diskInfoDataSource struct {
	orch *orchestrator.Orchestrator
}

type diskInfoDataSourceModel struct {
	Path             types.String `tfsdk:"path"`
	Format           types.String `tfsdk:"format"`
	Size             types.String `tfsdk:"size"`
	VirtualSizeBytes types.Int64  `tfsdk:"virtual_size_bytes"`
	ActualSizeBytes  types.Int64  `tfsdk:"actual_size_bytes"`
}

func (d *diskInfoDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_disk_info"
}

func (d *diskInfoDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Reads an existing disk image through `qemu-img info`.",
		Attributes: map[string]schema.Attribute{
			"path": schema.StringAttribute{
				Required:    true,
				Description: "Disk image to inspect.",
			},
			"format": schema.StringAttribute{
				Computed: true,
			},
			"size": schema.StringAttribute{
				Computed:    true,
				Description: "Virtual size in K/M/G/T notation.",
			},
			"virtual_size_bytes": schema.Int64Attribute{
				Computed: true,
			},
			"actual_size_bytes": schema.Int64Attribute{
				Computed: true,
			},
		},
	}
}

func (d *diskInfoDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	d.orch = data.orch
}

func (d *diskInfoDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if d.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var config diskInfoDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	out, err := d.orch.InspectDisk(ctx, config.Path.ValueString())
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to inspect disk", err)
		return
	}

	info := out.Disk
	state := diskInfoDataSourceModel{
		Path:             config.Path,
		Format:           types.StringValue(info.Format),
		Size:             types.StringValue(sizeFromBytes(info.VirtualSizeBytes)),
		VirtualSizeBytes: types.Int64Value(int64(info.VirtualSizeBytes)),
		ActualSizeBytes:  types.Int64Value(int64(info.ActualSizeBytes)),
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}
