package provider

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/samber/lo"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

var _ datasource.DataSource = (*imagesDataSource)(nil)
var _ datasource.DataSourceWithConfigure = (*imagesDataSource)(nil)

// NewImagesDataSource creates the data source.
func NewImagesDataSource() datasource.DataSource {
	return &imagesDataSource{}
}

type imagesDataSource struct {
	orch *orchestrator.Orchestrator
}

type imagesDataSourceModel struct {
	Repository types.String `tfsdk:"repository"`
	Tag        types.String `tfsdk:"tag"`
	Query      types.String `tfsdk:"query"`
	Images     []imageModel `tfsdk:"images"`
}

type imageModel struct {
	ID         types.String `tfsdk:"id"`
	Repository types.String `tfsdk:"repository"`
	Tag        types.String `tfsdk:"tag"`
	Size       types.String `tfsdk:"size"`
	CreatedAt  types.String `tfsdk:"created_at"`
}

func (d *imagesDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_images"
}

func (d *imagesDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Lists images in the local Docker store via `docker images`.",
		Attributes: map[string]schema.Attribute{
			"repository": schema.StringAttribute{
				Optional:    true,
				Description: "Exact repository filter.",
			},
			"tag": schema.StringAttribute{
				Optional:    true,
				Description: "Exact tag filter.",
			},
			"query": schema.StringAttribute{
				Optional:    true,
				Description: "Case-insensitive substring filter applied to repository names.",
			},
			"images": schema.ListNestedAttribute{
				Computed: true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"id": schema.StringAttribute{
							Computed: true,
						},
						"repository": schema.StringAttribute{
							Computed: true,
						},
						"tag": schema.StringAttribute{
							Computed: true,
						},
						"size": schema.StringAttribute{
							Computed: true,
						},
						"created_at": schema.StringAttribute{
							Computed: true,
						},
					},
				},
			},
		},
	}
}

func (d *imagesDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, _ *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	d.orch = data.orch
}

func (d *imagesDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	if d.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var config imagesDataSourceModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	out, err := d.orch.ImageSummaries(ctx)
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to list images", err)
		return
	}

	model := imagesDataSourceModel{
		Repository: config.Repository,
		Tag:        config.Tag,
		Query:      config.Query,
		Images:     flattenImages(filterImages(out.Images, config)),
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &model)...)
}

func filterImages(images []models.ImageSummary, config imagesDataSourceModel) []models.ImageSummary {
	repository := valueOrEmpty(config.Repository)
	tag := valueOrEmpty(config.Tag)
	query := strings.ToLower(valueOrEmpty(config.Query))

	return lo.Filter(images, func(img models.ImageSummary, _ int) bool {
		if repository != "" && img.Repository != repository {
			return false
		}
		if tag != "" && img.Tag != tag {
			return false
		}
		return query == "" || strings.Contains(strings.ToLower(img.Repository), query)
	})
}

func flattenImages(images []models.ImageSummary) []imageModel {
	return lo.Map(images, func(img models.ImageSummary, _ int) imageModel {
		return imageModel{
			ID:         types.StringValue(img.ID),
			Repository: types.StringValue(img.Repository),
			Tag:        types.StringValue(img.Tag),
			Size:       types.StringValue(img.Size),
			CreatedAt:  types.StringValue(img.CreatedAt),
		}
	})
}
