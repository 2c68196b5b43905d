package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	stringvalidator "github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

var (
	_ resource.Resource                = (*dockerfileResource)(nil)
	_ resource.ResourceWithConfigure   = (*dockerfileResource)(nil)
	_ resource.ResourceWithModifyPlan  = (*dockerfileResource)(nil)
	_ resource.ResourceWithImportState = (*dockerfileResource)(nil)
)

// NewDockerfileResource registers the Dockerfile resource with the provider.
func NewDockerfileResource() resource.Resource {
	return &dockerfileResource{}
}

type dockerfileResource struct {
	orch *orchestrator.Orchestrator
}

type dockerfileResourceModel struct {
	ID          types.String `tfsdk:"id"`
	Path        types.String `tfsdk:"path"`
	Content     types.String `tfsdk:"content"`
	BaseImage   types.String `tfsdk:"base_image"`
	ContentHash types.String `tfsdk:"content_hash"`
}

func (r *dockerfileResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_dockerfile"
}

func (r *dockerfileResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	oneOf := []path.Expression{
		path.MatchRelative().AtParent().AtName("content"),
		path.MatchRelative().AtParent().AtName("base_image"),
	}

	resp.Schema = schema.Schema{
		Description: "Writes a Dockerfile to the local filesystem.",
		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed:    true,
				Description: "Same as `path`.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"path": schema.StringAttribute{
				Required:    true,
				Description: "Where the Dockerfile is written. Missing parent directories are created.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"content": schema.StringAttribute{
				Optional:            true,
				Description:         "Full Dockerfile content.",
				MarkdownDescription: "Full Dockerfile content. Conflicts with `base_image`.",
				Validators: []validator.String{
					stringvalidator.ExactlyOneOf(oneOf...),
				},
			},
			"base_image": schema.StringAttribute{
				Optional:            true,
				Description:         "Write a single FROM line for this image.",
				MarkdownDescription: "Write a single `FROM` line for this image. Conflicts with `content`.",
				Validators: []validator.String{
					stringvalidator.ExactlyOneOf(oneOf...),
					stringvalidator.LengthAtLeast(1),
				},
			},
			"content_hash": schema.StringAttribute{
				Computed:    true,
				Description: "SHA256 of the file on disk. Local edits show up as a change.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
		},
	}
}

func (r *dockerfileResource) Configure(_ context.Context, req resource.ConfigureRequest, _ *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	r.orch = data.orch
}

func (r *dockerfileResource) ModifyPlan(ctx context.Context, req resource.ModifyPlanRequest, resp *resource.ModifyPlanResponse) {
	if req.Plan.Raw.IsNull() {
		return
	}

	var plan dockerfileResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if plan.Content.IsUnknown() || plan.BaseImage.IsUnknown() {
		return
	}

	plan.ContentHash = types.StringValue(hashBytes([]byte(renderDockerfile(plan))))
	resp.Diagnostics.Append(resp.Plan.Set(ctx, &plan)...)
}

func (r *dockerfileResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan dockerfileResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(r.write(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *dockerfileResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var state dockerfileResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	data, err := os.ReadFile(state.Path.ValueString())
	if errors.Is(err, fs.ErrNotExist) {
		resp.State.RemoveResource(ctx)
		return
	}
	if err != nil {
		resp.Diagnostics.AddError("Failed to read Dockerfile", err.Error())
		return
	}

	// Imported files have no configuration to compare against yet.
	if state.Content.IsNull() && state.BaseImage.IsNull() {
		state.Content = types.StringValue(string(data))
	}
	state.ContentHash = types.StringValue(hashBytes(data))
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

func (r *dockerfileResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan dockerfileResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(r.write(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *dockerfileResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var state dockerfileResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := os.Remove(state.Path.ValueString()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		resp.Diagnostics.AddWarning("Failed to remove Dockerfile", err.Error())
	}
}

func (r *dockerfileResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), req.ID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("path"), req.ID)...)
}

func (r *dockerfileResource) write(ctx context.Context, model *dockerfileResourceModel) diag.Diagnostics {
	var diags diag.Diagnostics
	if r.orch == nil {
		diags.AddError("Orchestrator not configured", notConfiguredDetail)
		return diags
	}

	content := renderDockerfile(*model)
	if _, err := r.orch.WriteDockerfile(ctx, model.Path.ValueString(), content); err != nil {
		addFailure(&diags, "Failed to write Dockerfile", err)
		return diags
	}
	tflog.Debug(ctx, "Wrote Dockerfile", map[string]any{"path": model.Path.ValueString()})

	model.ID = model.Path
	model.ContentHash = types.StringValue(hashBytes([]byte(content)))
	return diags
}

func renderDockerfile(model dockerfileResourceModel) string {
	if !model.BaseImage.IsNull() && model.BaseImage.ValueString() != "" {
		return fmt.Sprintf("FROM %s\n", model.BaseImage.ValueString())
	}
	return model.Content.ValueString()
}
