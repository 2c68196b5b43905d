package provider

import (
	"context"

	stringvalidator "github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/registry"
)

var (
	_ datasource.DataSource              = (*registrySearchDataSource)(nil)
	_ datasource.DataSourceWithConfigure = (*registrySearchDataSource)(nil)
)

// NewRegistrySearchDataSource returns the Docker Hub search data source.
func NewRegistrySearchDataSource() datasource.DataSource {
	return &registrySearchDataSource{}
}

type registrySearchDataSource struct {
	orch *orchestrator.Orchestrator
}

type registrySearchDataSourceModel struct {
	Query        types.String        `tfsdk:"query"`
	OnlyOfficial types.Bool          `tfsdk:"only_official"`
	HubURL       types.String        `tfsdk:"hub_url"`
	Results      []searchResultModel `tfsdk:"results"`
}

type searchResultModel struct {
	Name        types.String `tfsdk:"name"`
	Description types.String `tfsdk:"description"`
	Stars       types.Int64  `tfsdk:"stars"`
	Official    types.Bool   `tfsdk:"official"`
	PullCount   types.Int64  `tfsdk:"pull_count"`
}

func (d *registrySearchDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_registry_search"
}

func (d *registrySearchDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description:         "Searches Docker Hub through `docker search` and adds each repository's pull count.",
		MarkdownDescription: "Searches Docker Hub through `docker search` and adds each repository's pull count. A failed pull-count lookup reports `0` for that row.",
		Attributes: map[string]schema.Attribute{
			"query": schema.StringAttribute{
				Required:    true,
				Description: "Search term.",
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"only_official": schema.BoolAttribute{
				Optional:    true,
				Description: "Keep only official images.",
			},
			"hub_url": schema.StringAttribute{
				Computed:    true,
				Description: "Docker Hub web page for the query.",
			},
			"results": schema.ListNestedAttribute{
				Computed: true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"name": schema.StringAttribute{
							Computed: true,
						},
						"description": schema.StringAttribute{
							Computed:    true,
							Description: "Short description, truncated to 50 characters.",
						},
						"stars": schema.Int64Attribute{
							Computed: true,
						},
						"official": schema.BoolAttribute{
							Computed: true,
						},
						"pull_count": schema.Int64Attribute{
							Computed: true,
						},
					},
				},
			},
		},
	}
}

func (d *registrySearchDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	d.orch = data.orch
}

func (d *registrySearchDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if d.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var config registrySearchDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	query := config.Query.ValueString()
	out, err := d.orch.SearchRemote(ctx, query)
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to search Docker Hub", err)
		return
	}

	model := registrySearchDataSourceModel{
		Query:        config.Query,
		OnlyOfficial: config.OnlyOfficial,
		HubURL:       types.StringValue(registry.HubURL(query)),
		Results:      flattenSearchRows(out.Rows, config.OnlyOfficial.ValueBool()),
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &model)...)
}

func flattenSearchRows(rows []models.SearchResultRow, onlyOfficial bool) []searchResultModel {
	result := make([]searchResultModel, 0, len(rows))
	for _, row := range rows {
		if onlyOfficial && !row.IsOfficial {
			continue
		}
		result = append(result, searchResultModel{
			Name:        types.StringValue(row.Name),
			Description: types.StringValue(row.ShortDescription),
			Stars:       types.Int64Value(int64(row.StarCount)),
			Official:    types.BoolValue(row.IsOfficial),
			PullCount:   types.Int64Value(row.PullCount),
		})
	}
	return result
}
