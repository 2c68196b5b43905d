package provider

import (
	"errors"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
)

type providerConfigModel struct {
	QemuImgPath       types.String `tfsdk:"qemu_img_path"`
	QemuSystemPath    types.String `tfsdk:"qemu_system_path"`
	DockerPath        types.String `tfsdk:"docker_path"`
	CommandTimeout    types.Int64  `tfsdk:"command_timeout"`
	RegistryURL       types.String `tfsdk:"registry_url"`
	SearchConcurrency types.Int64  `tfsdk:"search_concurrency"`
}

type providerData struct {
	orch *orchestrator.Orchestrator
}

const notConfiguredDetail = "The provider vmdock orchestrator was not configured."

// addFailure reports an orchestrator error together with the command that produced it.
func addFailure(diags *diag.Diagnostics, summary string, err error) {
	detail := err.Error()
	var failure *orchestrator.Failure
	if errors.As(err, &failure) && len(failure.Result.Command) > 0 {
		detail += "\n\nCommand: " + failure.Result.CommandLine()
	}
	diags.AddError(summary, detail)
}

func valueOrEmpty(v types.String) string {
	if v.IsNull() || v.IsUnknown() {
		return ""
	}
	return v.ValueString()
}

func valueOrDefaultString(v types.String, def string) string {
	if v.IsNull() || v.IsUnknown() || v.ValueString() == "" {
		return def
	}
	return v.ValueString()
}

func valueOrDefaultInt(v types.Int64, def int) int {
	if v.IsNull() || v.IsUnknown() {
		return def
	}
	return int(v.ValueInt64())
}
