package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

var (
	_ datasource.DataSource              = (*toolsDataSource)(nil)
	_ datasource.DataSourceWithConfigure = (*toolsDataSource)(nil)
)

// NewToolsDataSource returns the external tools data source.
func NewToolsDataSource() datasource.DataSource {
	return &toolsDataSource{}
}

type toolsDataSource struct {
	orch *orchestrator.Orchestrator
}

type toolsDataSourceModel struct {
	Refresh types.Bool  `tfsdk:"refresh"`
	Tools   []toolModel `tfsdk:"tools"`
}

type toolModel struct {
	Kind      types.String `tfsdk:"kind"`
	Path      types.String `tfsdk:"path"`
	Version   types.String `tfsdk:"version"`
	Available types.Bool   `tfsdk:"available"`
	Problem   types.String `tfsdk:"problem"`
}

func (d *toolsDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_tools"
}

func (d *toolsDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Reports where qemu-img, qemu-system-x86_64 and docker were found and which versions they are.",
		Attributes: map[string]schema.Attribute{
			"refresh": schema.BoolAttribute{
				Optional:    true,
				Description: "Forget cached tool locations before checking.",
			},
			"tools": schema.ListNestedAttribute{
				Computed: true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"kind": schema.StringAttribute{
							Computed: true,
						},
						"path": schema.StringAttribute{
							Computed: true,
						},
						"version": schema.StringAttribute{
							Computed: true,
						},
						"available": schema.BoolAttribute{
							Computed: true,
						},
						"problem": schema.StringAttribute{
							Computed:    true,
							Description: "Why the tool is unusable or outdated; empty when it is fine.",
						},
					},
				},
			},
		},
	}
}

func (d *toolsDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	d.orch = data.orch
}

func (d *toolsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if d.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var config toolsDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if config.Refresh.ValueBool() {
		d.orch.RefreshTools()
	}

	out, err := d.orch.CheckTools(ctx)
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to check tools", err)
		return
	}

	model := toolsDataSourceModel{
		Refresh: config.Refresh,
		Tools:   flattenTools(out.Tools),
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &model)...)
}

func flattenTools(tools []orchestrator.ToolStatus) []toolModel {
	result := make([]toolModel, 0, len(tools))
	for _, t := range tools {
		result = append(result, toolModel{
			Kind:      types.StringValue(string(t.Binary.Kind)),
			Path:      types.StringValue(t.Binary.Path),
			Version:   types.StringValue(t.Binary.Version),
			Available: types.BoolValue(t.Binary.Available()),
			Problem:   types.StringValue(t.Problem),
		})
	}
	return result
}
