package provider

import (
	"context"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	stringvalidator "github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/int64default"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/int64planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/vm"
)

var (
	_ resource.Resource              = (*vmResource)(nil)
	_ resource.ResourceWithConfigure = (*vmResource)(nil)
)

// NewVMResource instantiates the resource.
func NewVMResource() resource.Resource {
	return &vmResource{}
}

type vmResource struct {
	orch *orchestrator.Orchestrator
}

type vmResourceModel struct {
	ID        types.String `tfsdk:"id"`
	Name      types.String `tfsdk:"name"`
	CPUCores  types.Int64  `tfsdk:"cpu_cores"`
	MemoryMB  types.Int64  `tfsdk:"memory_mb"`
	DiskPath  types.String `tfsdk:"disk_path"`
	ISOPath   types.String `tfsdk:"iso_path"`
	Display   types.String `tfsdk:"display"`
	PID       types.Int64  `tfsdk:"pid"`
	Command   types.List   `tfsdk:"command"`
	StartedAt types.String `tfsdk:"started_at"`
}

func (r *vmResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_vm"
}

func (r *vmResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	replaceString := []planmodifier.String{stringplanmodifier.RequiresReplace()}
	replaceInt := []planmodifier.Int64{int64planmodifier.RequiresReplace()}

	resp.Schema = schema.Schema{
		Description: "Launches a QEMU virtual machine booting from an ISO. The emulator runs detached; Terraform does not track or stop it.",
		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed: true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"name": schema.StringAttribute{
				Required:            true,
				Description:         "Machine name. May not start with a digit or contain special characters.",
				MarkdownDescription: "Machine name. May not start with a digit or contain special characters such as `-`, `_` or `.`.",
				PlanModifiers:       replaceString,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"cpu_cores": schema.Int64Attribute{
				Optional:      true,
				Computed:      true,
				Default:       int64default.StaticInt64(vm.MinCPUCores),
				Description:   "Virtual CPU cores (1-4).",
				PlanModifiers: replaceInt,
				Validators: []validator.Int64{
					int64validator.Between(vm.MinCPUCores, vm.MaxCPUCores),
				},
			},
			"memory_mb": schema.Int64Attribute{
				Optional:      true,
				Computed:      true,
				Default:       int64default.StaticInt64(2048),
				Description:   "Memory in MiB (512-32768).",
				PlanModifiers: replaceInt,
				Validators: []validator.Int64{
					int64validator.Between(vm.MinMemoryMB, vm.MaxMemoryMB),
				},
			},
			"disk_path": schema.StringAttribute{
				Required:      true,
				Description:   "Existing disk image attached as the first hard disk.",
				PlanModifiers: replaceString,
			},
			"iso_path": schema.StringAttribute{
				Required:      true,
				Description:   "Existing ISO attached as the CD-ROM.",
				PlanModifiers: replaceString,
			},
			"display": schema.StringAttribute{
				Optional:      true,
				Computed:      true,
				Default:       stringdefault.StaticString("sdl"),
				Description:   "QEMU display backend.",
				PlanModifiers: replaceString,
			},
			"pid": schema.Int64Attribute{
				Computed:    true,
				Description: "Process ID of the emulator at launch.",
			},
			"command": schema.ListAttribute{
				Computed:    true,
				ElementType: types.StringType,
				Description: "Argument vector the emulator was started with.",
			},
			"started_at": schema.StringAttribute{
				Computed:    true,
				Description: "Launch timestamp in RFC3339 format.",
			},
		},
	}
}

func (r *vmResource) Configure(_ context.Context, req resource.ConfigureRequest, _ *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	data := req.ProviderData.(providerData)
	r.orch = data.orch
}

func (r *vmResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	if r.orch == nil {
		resp.Diagnostics.AddError("Orchestrator not configured", notConfiguredDetail)
		return
	}

	var plan vmResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}

	spec := models.VMSpec{
		Name:     plan.Name.ValueString(),
		CPUCores: valueOrDefaultInt(plan.CPUCores, vm.MinCPUCores),
		MemoryMB: valueOrDefaultInt(plan.MemoryMB, 2048),
		DiskPath: plan.DiskPath.ValueString(),
		ISOPath:  plan.ISOPath.ValueString(),
		Display:  valueOrEmpty(plan.Display),
	}

	out, err := r.orch.LaunchVM(ctx, spec)
	if err != nil {
		addFailure(&resp.Diagnostics, "Failed to launch virtual machine", err)
		return
	}

	handle := out.Launch
	command, diags := types.ListValueFrom(ctx, types.StringType, handle.Args)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	plan.ID = types.StringValue(handle.Name)
	plan.PID = types.Int64Value(int64(handle.PID))
	plan.Command = command
	plan.StartedAt = types.StringValue(handle.StartedAt.UTC().Format(time.RFC3339))
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

// Read keeps the recorded launch; the emulator's lifetime is outside Terraform's control.
func (r *vmResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var state vmResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

// Update is never called with changes because every input forces replacement.
func (r *vmResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan vmResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

func (r *vmResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var state vmResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Info(ctx, "Forgetting virtual machine launch; the emulator process is left running", map[string]any{
		"name": state.Name.ValueString(),
		"pid":  state.PID.ValueInt64(),
	})
}
