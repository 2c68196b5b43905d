package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	stringvalidator "github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/samber/lo"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

// Ensure implementation satisfies interfaces.
var (
	_ resource.Resource                = (*diskResource)(nil)
	_ resource.ResourceWithConfigure   = (*diskResource)(nil)
	_ resource.ResourceWithImportState = (*diskResource)(nil)
)

// NewDiskResource registers the resource with the provider.
func NewDiskResource() resource.Resource {
	return &diskResource{}
}

type diskResource struct {
	orch *orchestrator.Orchestrator
}

var sizeRegex = regexp.MustCompile(`^[0-9]+(K|M|G|T)$`)

type diskResourceModel struct {
	ID               types.String `tfsdk:"id"`
	Path             types.String `tfsdk:"path"`
	Format           types.String `tfsdk:"format"`
	Allocation       types.String `tfsdk:"allocation"`
	Size             types.String `tfsdk:"size"`
	VirtualSizeBytes types.Int64  `tfsdk:"virtual_size_bytes"`
	ActualSizeBytes  types.Int64  `tfsdk:"actual_size_bytes"`
}

func (r *diskResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_disk"
}

func (r *diskResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	formats := lo.Map(models.DiskFormats, func(f models.DiskFormat, _ int) string { return string(f) })

	resp.Schema = schema.Schema{
		Description: "Manages a virtual disk image created with qemu-img.",
		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed:    true,
				Description: "Path of the image file on disk. Differs from `path` when `.img` was appended.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"path": schema.StringAttribute{
				Required:    true,
				Description: "Target file path. Changing forces recreation.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
			},
			"format": schema.StringAttribute{
				Required:            true,
				Description:         "Image format. `img` is created as raw with an `.img` suffix. Changing forces recreation.",
				MarkdownDescription: "Image format, one of `vmdk`, `vdi`, `vhd`, `vhdx`, `qcow`, `qcow2`, `raw`, `img`, `qed`. `img` is created as raw with an `.img` suffix. Changing forces recreation.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.OneOfCaseInsensitive(formats...),
				},
			},
			"allocation": schema.StringAttribute{
				Optional:    true,
				Computed:    true,
				Default:     stringdefault.StaticString(string(models.AllocationDynamic)),
				Description: "`Dynamic` (grow on demand) or `Fixed` (preallocate). Changing forces recreation.",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.RequiresReplace(),
				},
				Validators: []validator.String{
					stringvalidator.OneOf(string(models.AllocationDynamic), string(models.AllocationFixed)),
				},
			},
			"size": schema.StringAttribute{
				Required:            true,
				Description:         "Virtual size such as 10G or 500M. Disks can grow in place but never shrink.",
				MarkdownDescription: "Virtual size such as `10G` or `500M`. Increasing it resizes the disk in place; shrinking is rejected.",
				Validators: []validator.String{
					stringvalidator.RegexMatches(sizeRegex, "must be a whole number followed by K, M, G or T, e.g. 10G"),
				},
			},
			"virtual_size_bytes": schema.Int64Attribute{
				Computed:    true,
				Description: "Virtual size reported by qemu-img info.",
			},
			"actual_size_bytes": schema.Int64Attribute{
				Computed:    true,
				Description: "Space used on the host file system.",
			},
		},
	}
}

func (r *diskResource) Configure(_ context.Context, req resource.ConfigureRequest, _ *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	r.orch = data.orch
}

func (r *diskResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var plan diskResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	spec := models.DiskSpec{
		Format:     models.DiskFormat(plan.Format.ValueString()),
		Allocation: models.Allocation(valueOrDefaultString(plan.Allocation, string(models.AllocationDynamic))),
		Size:       plan.Size.ValueString(),
		TargetPath: plan.Path.ValueString(),
	}

	out, err := r.orch.CreateDisk(ctx, spec)
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to create disk", err)
		return
	}

	plan.ID = types.StringValue(out.Disk.Path)
	resp.Diagnostics.Append(r.refreshState(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *diskResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var state diskResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	id := state.ID.ValueString()
	if _, err := os.Stat(id); errors.Is(err, os.ErrNotExist) {
		tflog.Info(ctx, "Disk image no longer exists", map[string]any{"path": id})
		resp.State.RemoveResource(ctx)
		return
	}

	resp.Diagnostics.Append(r.refreshState(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

func (r *diskResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var plan diskResourceModel
	var state diskResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	plan.ID = state.ID
	if plan.Size.ValueString() != state.Size.ValueString() {
		if _, err := r.orch.ResizeDisk(ctx, state.ID.ValueString(), plan.Size.ValueString()); err != nil {
			addFailure(&resp.Diagnostics, "Failed to resize disk", err)
			return
		}
	}

	resp.Diagnostics.Append(r.refreshState(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *diskResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var state diskResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if _, err := r.orch.RemoveDisk(ctx, state.ID.ValueString()); err != nil {
		addFailure(&resp.Diagnostics, "Failed to delete disk", err)
	}
}

func (r *diskResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("id"), req.ID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("path"), req.ID)...)
	resp.Diagnostics.Append(resp.State.SetAttribute(ctx, path.Root("allocation"), string(models.AllocationDynamic))...)
}

func (r *diskResource) refreshState(ctx context.Context, model *diskResourceModel) diag.Diagnostics {
	var diags diag.Diagnostics
	out, err := r.orch.InspectDisk(ctx, model.ID.ValueString())
	if err != nil {
		addFailure(&diags, "Failed to refresh disk state", err)
		return diags
	}

	info := out.Disk
	model.VirtualSizeBytes = types.Int64Value(int64(info.VirtualSizeBytes))
	model.ActualSizeBytes = types.Int64Value(int64(info.ActualSizeBytes))

	// Imported disks carry only their path.
	if model.Format.IsNull() {
		model.Format = types.StringValue(info.Format)
	}
	if model.Size.IsNull() {
		model.Size = types.StringValue(sizeFromBytes(info.VirtualSizeBytes))
	}
	return diags
}

// sizeFromBytes renders bytes with the largest unit that divides them exactly.
func sizeFromBytes(b uint64) string {
	for _, u := range []struct {
		unit  models.SizeUnit
		bytes uint64
	}{
		{models.UnitT, 1 << 40},
		{models.UnitG, 1 << 30},
		{models.UnitM, 1 << 20},
		{models.UnitK, 1 << 10},
	} {
		if b >= u.bytes && b%u.bytes == 0 {
			return models.Size{Count: b / u.bytes, Unit: u.unit}.String()
		}
	}
	return fmt.Sprintf("%dK", (b+1023)/1024)
}
