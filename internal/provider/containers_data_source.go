package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

var (
	_ datasource.DataSource              = (*containersDataSource)(nil)
	_ datasource.DataSourceWithConfigure = (*containersDataSource)(nil)
)

// NewContainersDataSource returns the data source definition.
func NewContainersDataSource() datasource.DataSource {
	return &containersDataSource{}
}

type containersDataSource struct {
	orch *orchestrator.Orchestrator
}

type containersDataSourceModel struct {
	All        types.Bool       `tfsdk:"all"`
	Image      types.String     `tfsdk:"image"`
	Containers []containerModel `tfsdk:"containers"`
}

type containerModel struct {
	ID     types.String `tfsdk:"id"`
	Image  types.String `tfsdk:"image"`
	Names  types.String `tfsdk:"names"`
	Status types.String `tfsdk:"status"`
	State  types.String `tfsdk:"state"`
	Ports  types.String `tfsdk:"ports"`
}

func (d *containersDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_containers"
}

func (d *containersDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Lists containers via `docker ps`.",
		Attributes: map[string]schema.Attribute{
			"all": schema.BoolAttribute{
				Optional:    true,
				Description: "Include stopped containers (`docker ps -a`).",
			},
			"image": schema.StringAttribute{
				Optional:    true,
				Description: "Exact image filter.",
			},
			"containers": schema.ListNestedAttribute{
				Computed: true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"id": schema.StringAttribute{
							Computed: true,
						},
						"image": schema.StringAttribute{
							Computed: true,
						},
						"names": schema.StringAttribute{
							Computed: true,
						},
						"status": schema.StringAttribute{
							Computed: true,
						},
						"state": schema.StringAttribute{
							Computed: true,
						},
						"ports": schema.StringAttribute{
							Computed: true,
						},
					},
				},
			},
		},
	}
}

func (d *containersDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	d.orch = data.orch
}

func (d *containersDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if d.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var config containersDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	out, err := d.orch.ContainerSummaries(ctx, config.All.ValueBool())
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to list containers", err)
		return
	}

	imageFilter := strings.TrimSpace(config.Image.ValueString())
	var filtered []models.ContainerSummary
	for _, c := range out.Containers {
		if imageFilter != "" && c.Image != imageFilter {
			continue
		}
		filtered = append(filtered, c)
	}

	model := containersDataSourceModel{
		All:        config.All,
		Image:      config.Image,
		Containers: flattenContainers(filtered),
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &model)...)
}

func flattenContainers(containers []models.ContainerSummary) []containerModel {
	result := make([]containerModel, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerModel{
			ID:     types.StringValue(c.ID),
			Image:  types.StringValue(c.Image),
			Names:  types.StringValue(c.Names),
			Status: types.StringValue(c.Status),
			State:  types.StringValue(c.State),
			Ports:  types.StringValue(c.Ports),
		})
	}
	return result
}
