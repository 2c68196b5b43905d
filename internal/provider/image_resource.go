package provider

import (
	"context"
	"path/filepath"

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
	"github.com/samber/lo"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/registry"
)

var (
	_ resource.Resource                = (*imageResource)(nil)
	_ resource.ResourceWithConfigure   = (*imageResource)(nil)
	_ resource.ResourceWithModifyPlan  = (*imageResource)(nil)
	_ resource.ResourceWithImportState = (*imageResource)(nil)
)

// NewImageResource instantiates the resource.
func NewImageResource() resource.Resource {
	return &imageResource{}
}

type imageResource struct {
	orch *orchestrator.Orchestrator
}

type imageResourceModel struct {
	ID                types.String `tfsdk:"id"`
	Tag               types.String `tfsdk:"tag"`
	Dockerfile        types.String `tfsdk:"dockerfile"`
	DockerfileContent types.String `tfsdk:"dockerfile_content"`
	ContextDir        types.String `tfsdk:"context_dir"`
	ContextHash       types.String `tfsdk:"context_hash"`
	ImageID           types.String `tfsdk:"image_id"`
	Size              types.String `tfsdk:"size"`
}

func (r *imageResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_image"
}

func (r *imageResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "Builds a Docker image from a Dockerfile, or pulls it when no Dockerfile is given. Destroying the resource leaves the image in the local store.",
		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"tag": schema.StringAttribute{
				Required:            true,
				Description:         "Image name and tag to build or pull, e.g. app:1.0.",
				MarkdownDescription: "Image name and tag to build or pull, e.g. `app:1.0` or `nginx:latest`. Changing forces recreation.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"dockerfile": schema.StringAttribute{
				Optional:    true,
				Description: "Path of the Dockerfile to build. Required with `dockerfile_content`, which is written to this path first.",
			},
			"dockerfile_content": schema.StringAttribute{
				Optional:    true,
				Description: "Inline Dockerfile content written to `dockerfile` before building.",
				Validators: []validator.String{
					stringvalidator.AlsoRequires(path.MatchRoot("dockerfile")),
				},
			},
			"context_dir": schema.StringAttribute{
				Optional:    true,
				Description: "Build context directory. Defaults to the Dockerfile's directory.",
				Validators: []validator.String{
					stringvalidator.AlsoRequires(path.MatchRoot("dockerfile")),
				},
			},
			"context_hash": schema.StringAttribute{
				Computed:            true,
				Description:         "SHA256 over the Dockerfile and build context. Changes trigger a rebuild.",
				MarkdownDescription: "SHA256 over the Dockerfile and build context. Changes trigger a rebuild. Empty for pulled images.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"image_id": schema.StringAttribute{
				Computed:    true,
				Description: "Local image ID.",
			},
			"size": schema.StringAttribute{
				Computed:    true,
				Description: "Image size as reported by the engine.",
			},
		},
	}
}

func (r *imageResource) Configure(_ context.Context, req resource.ConfigureRequest, _ *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	r.orch = data.orch
}

func (r *imageResource) ModifyPlan(ctx context.Context, req resource.ModifyPlanRequest, resp *resource.ModifyPlanResponse) {
	if req.Plan.Raw.IsNull() {
		return
	}

	var plan imageResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if plan.Dockerfile.IsUnknown() || plan.DockerfileContent.IsUnknown() || plan.ContextDir.IsUnknown() {
		return
	}

	hashValue, diags := computeContextHash(&plan)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	plan.ContextHash = types.StringValue(hashValue)
	resp.Diagnostics.Append(resp.Plan.Set(ctx, &plan)...)
}

func (r *imageResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var plan imageResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(r.apply(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	plan.ID = plan.Tag
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *imageResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var state imageResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	found, diags := r.refreshState(ctx, &state)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}
	if !found {
		tflog.Info(ctx, "Image no longer present locally", map[string]any{"tag": state.Tag.ValueString()})
		resp.State.RemoveResource(ctx)
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

func (r *imageResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var plan imageResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(r.apply(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *imageResource) Delete(ctx context.Context, req resource.DeleteRequest, _ *resource.DeleteResponse) {
	var state imageResourceModel
	if diags := req.State.Get(ctx, &state); diags.HasError() {
		return
	}
	tflog.Info(ctx, "Removing image from state; the local image is kept", map[string]any{"tag": state.Tag.ValueString()})
}

func (r *imageResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), req.ID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("tag"), req.ID)...)
}

// apply builds when a Dockerfile is configured and pulls otherwise, then refreshes computed fields.
func (r *imageResource) apply(ctx context.Context, plan *imageResourceModel) diag.Diagnostics {
	var diags diag.Diagnostics
	tag := plan.Tag.ValueString()
	dockerfile := valueOrEmpty(plan.Dockerfile)

	if dockerfile == "" {
		if _, err := r.orch.PullImage(ctx, tag); err != nil {
			addFailure(&diags, "Failed to pull image", err)
			return diags
		}
		plan.ContextHash = types.StringValue("")
	} else {
		if content := valueOrEmpty(plan.DockerfileContent); content != "" {
			if _, err := r.orch.WriteDockerfile(ctx, dockerfile, content); err != nil {
				addFailure(&diags, "Failed to write Dockerfile", err)
				return diags
			}
		}

		hashValue, hashDiags := computeContextHash(plan)
		diags.Append(hashDiags...)
		if diags.HasError() {
			return diags
		}

		if _, err := r.orch.BuildImage(ctx, dockerfile, valueOrEmpty(plan.ContextDir), tag); err != nil {
			addFailure(&diags, "Failed to build image", err)
			return diags
		}
		plan.ContextHash = types.StringValue(hashValue)
	}

	found, refreshDiags := r.refreshState(ctx, plan)
	diags.Append(refreshDiags...)
	if !found && !diags.HasError() {
		diags.AddError("Image not found after apply", "The engine did not list "+tag+" after building or pulling it.")
	}
	return diags
}

func (r *imageResource) refreshState(ctx context.Context, model *imageResourceModel) (bool, diag.Diagnostics) {
	var diags diag.Diagnostics
	out, err := r.orch.ImageSummaries(ctx)
	if err != nil {
		addFailure(&diags, "Failed to list images", err)
		return false, diags
	}

	ref := registry.ParseImageRef(model.Tag.ValueString())
	img, ok := lo.Find(out.Images, func(img models.ImageSummary) bool {
		return img.Tag == ref.Tag && registry.ParseImageRef(img.Repository).Repository == ref.Repository
	})
	if !ok {
		return false, diags
	}
	model.ImageID = types.StringValue(img.ID)
	model.Size = types.StringValue(img.Size)
	if model.ContextHash.IsNull() || model.ContextHash.IsUnknown() {
		model.ContextHash = types.StringValue("")
	}
	return true, diags
}

// computeContextHash returns "" for pulled images. A Dockerfile that only
// exists as inline content is hashed from that content.
func computeContextHash(model *imageResourceModel) (string, diag.Diagnostics) {
	var diags diag.Diagnostics
	dockerfile := valueOrEmpty(model.Dockerfile)
	if dockerfile == "" {
		return "", diags
	}

	contextDir := valueOrEmpty(model.ContextDir)
	if contextDir == "" {
		contextDir = filepath.Dir(dockerfile)
	}

	hashValue, err := contextHash(dockerfile, valueOrEmpty(model.DockerfileContent), contextDir)
	if err != nil {
		diags.AddAttributeError(path.Root("context_dir"), "Failed to hash build context", err.Error())
		return "", diags
	}
	return hashValue, diags
}
