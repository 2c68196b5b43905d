package toolcli

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

const probeTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// minimumVersions are the oldest releases known to support every flag vmdock uses
// (`qemu-img info --output=json`, `docker search --format`).
var minimumVersions = map[models.ToolKind]string{
	models.DiskTool:      "2.10.0",
	models.ContainerTool: "17.06.0",
	models.EmulatorTool:  "2.10.0",
}

// Probe resolves the tool, asks it for its version and records the result on the locator.
func (r *Runner) Probe(ctx context.Context, kind models.ToolKind) (models.ToolBinary, error) {
	bin, err := r.locator.Resolve(ctx, kind)
	if err != nil {
		return bin, err
	}

	res, err := r.RunWithTimeout(ctx, kind, probeTimeout, "--version")
	if err != nil {
		return bin, err
	}

	ver, err := ParseVersion(res.Stdout)
	if err != nil {
		return bin, err
	}

	bin.Version = ver.String()
	r.locator.recordVersion(kind, bin.Version)
	return bin, nil
}

// ParseVersion extracts the first dotted version number from a `--version` banner.
func ParseVersion(output string) (*version.Version, error) {
	raw := versionPattern.FindString(output)
	if raw == "" {
		return nil, &ParseError{Raw: output, Err: fmt.Errorf("no version number in %q", strings.TrimSpace(output))}
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return nil, &ParseError{Raw: output, Err: err}
	}
	return v, nil
}

// CheckMinimum reports an error when raw is older than the supported minimum for kind.
func CheckMinimum(kind models.ToolKind, raw string) error {
	minRaw, ok := minimumVersions[kind]
	if !ok {
		return nil
	}
	min := version.Must(version.NewVersion(minRaw))
	current, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("could not parse %s version %q: %w", kind.DefaultBinary(), raw, err)
	}
	if current.LessThan(min) {
		return fmt.Errorf("%s version %s is older than supported minimum %s", kind.DefaultBinary(), current.Original(), min.Original())
	}
	return nil
}
