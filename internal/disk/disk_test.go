package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli/tooltest"
	"github.com/todoroff/terraform-provider-vmdock/internal/validate"
)

func TestPlanCreate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		spec       models.DiskSpec
		wantTarget string
		wantArgs   []string
	}{
		{
			name:       "qcow2 dynamic",
			spec:       models.DiskSpec{Format: models.FormatQCOW2, Size: "10G", TargetPath: "/tmp/d.qcow2"},
			wantTarget: "/tmp/d.qcow2",
			wantArgs:   []string{"create", "-f", "qcow2", "/tmp/d.qcow2", "10G"},
		},
		{
			name:       "img becomes raw",
			spec:       models.DiskSpec{Format: models.FormatImg, Allocation: models.AllocationDynamic, Size: "500M", TargetPath: "/tmp/d"},
			wantTarget: "/tmp/d.img",
			wantArgs:   []string{"create", "-f", "raw", "/tmp/d.img", "500M"},
		},
		{
			name:       "img keeps existing suffix",
			spec:       models.DiskSpec{Format: "IMG", Size: "1G", TargetPath: "/tmp/d.img"},
			wantTarget: "/tmp/d.img",
			wantArgs:   []string{"create", "-f", "raw", "/tmp/d.img", "1G"},
		},
		{
			name:       "fixed vhdx has implied allocation",
			spec:       models.DiskSpec{Format: models.FormatVHDX, Allocation: models.AllocationFixed, Size: "2T", TargetPath: "/tmp/d.vhdx"},
			wantTarget: "/tmp/d.vhdx",
			wantArgs:   []string{"create", "-f", "vhdx", "/tmp/d.vhdx", "2T"},
		},
		{
			name:       "fixed qed preallocates",
			spec:       models.DiskSpec{Format: models.FormatQED, Allocation: models.AllocationFixed, Size: "4G", TargetPath: "/tmp/d.qed"},
			wantTarget: "/tmp/d.qed",
			wantArgs:   []string{"create", "-f", "qed", "-o", "preallocation=full", "/tmp/d.qed", "4G"},
		},
	}

	for _, tc := range cases {
		plan, err := PlanCreate(tc.spec)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if plan.TargetPath != tc.wantTarget {
			t.Fatalf("%s: target = %s, want %s", tc.name, plan.TargetPath, tc.wantTarget)
		}
		if diff := cmp.Diff(tc.wantArgs, plan.Args); diff != "" {
			t.Fatalf("%s: args mismatch: %s", tc.name, diff)
		}
	}
}

func TestPlanCreateRejectsBadInput(t *testing.T) {
	t.Parallel()

	specs := []models.DiskSpec{
		{Format: models.FormatQCOW2, Size: "10GB", TargetPath: "/tmp/d.qcow2"},
		{Format: models.FormatQCOW2, Size: "10G", TargetPath: "  "},
		{Format: "ext4", Size: "10G", TargetPath: "/tmp/d"},
		{Format: models.FormatQCOW2, Allocation: "Sparse", Size: "10G", TargetPath: "/tmp/d"},
	}
	for _, spec := range specs {
		_, err := PlanCreate(spec)
		var verr *validate.Error
		if !errors.As(err, &verr) {
			t.Fatalf("PlanCreate(%+v) expected validation error, got %v", spec, err)
		}
	}
}

func TestCheckGrow(t *testing.T) {
	t.Parallel()

	if err := CheckGrow(10<<30, 10<<30); err != nil {
		t.Fatalf("equal size should be allowed: %v", err)
	}
	if err := CheckGrow(10<<30, 20<<30); err != nil {
		t.Fatalf("growth should be allowed: %v", err)
	}
	if err := CheckGrow(10<<30, 5<<30); !errors.Is(err, toolcli.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestParseInfo(t *testing.T) {
	t.Parallel()

	info, err := parseInfo([]byte(`{"virtual-size": 10737418240, "filename": "d.qcow2", "format": "qcow2", "actual-size": 200704}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.DiskInfo{Path: "d.qcow2", Format: "qcow2", VirtualSizeBytes: 10737418240, ActualSizeBytes: 200704}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Fatalf("info mismatch: %s", diff)
	}

	for _, raw := range []string{`not json`, `{"format": "raw"}`} {
		_, err := parseInfo([]byte(raw))
		var parseErr *toolcli.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("parseInfo(%q) expected ParseError, got %v", raw, err)
		}
	}
}

// fakeQemuImg writes a qemu-img stand-in that reports a 10G disk and appends
// every invocation to the returned log file.
func fakeQemuImg(t *testing.T) (*Operations, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	tool := tooltest.Script(t, dir, "qemu-img", `echo "$*" >> "`+logPath+`"
case "$1" in
  info) echo '{"virtual-size": 10737418240, "filename": "d.qcow2", "format": "qcow2"}' ;;
esac`)
	runner := tooltest.Runner(t, map[models.ToolKind]string{models.DiskTool: tool}, 0)
	return New(runner), logPath
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		t.Fatalf("read calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestCreateRunsQemuImg(t *testing.T) {
	t.Parallel()

	ops, logPath := fakeQemuImg(t)
	plan, res, err := ops.Create(context.Background(), models.DiskSpec{Format: models.FormatImg, Size: "1G", TargetPath: "/vms/boot"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !res.Succeeded || plan.TargetPath != "/vms/boot.img" {
		t.Fatalf("unexpected create: %+v %+v", plan, res)
	}
	if diff := cmp.Diff([]string{"create -f raw /vms/boot.img 1G"}, readCalls(t, logPath)); diff != "" {
		t.Fatalf("calls mismatch: %s", diff)
	}
}

func TestResizeRejectsShrinkWithoutInvokingResize(t *testing.T) {
	t.Parallel()

	ops, logPath := fakeQemuImg(t)
	res, err := ops.Resize(context.Background(), "d.qcow2", "5G")
	if !errors.Is(err, toolcli.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if res.FailureKind != models.FailureUnsupported {
		t.Fatalf("failure kind = %s", res.FailureKind)
	}
	if diff := cmp.Diff([]string{"info --output=json d.qcow2"}, readCalls(t, logPath)); diff != "" {
		t.Fatalf("calls mismatch: %s", diff)
	}
}

func TestResizeGrows(t *testing.T) {
	t.Parallel()

	ops, logPath := fakeQemuImg(t)
	res, err := ops.Resize(context.Background(), "d.qcow2", "20G")
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if !res.Succeeded {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []string{"info --output=json d.qcow2", "resize d.qcow2 20G"}
	if diff := cmp.Diff(want, readCalls(t, logPath)); diff != "" {
		t.Fatalf("calls mismatch: %s", diff)
	}
}

func TestResizeRejectsBadSizeBeforeInspecting(t *testing.T) {
	t.Parallel()

	ops, logPath := fakeQemuImg(t)
	_, err := ops.Resize(context.Background(), "d.qcow2", "20 gigs")
	if toolcli.Classify(err) != models.FailureInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if calls := readCalls(t, logPath); len(calls) != 0 {
		t.Fatalf("qemu-img should not run: %v", calls)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "d.raw")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write disk: %v", err)
	}
	ops := New(toolcli.NewRunner(toolcli.Config{}))
	if err := ops.Remove(context.Background(), path); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := ops.Remove(context.Background(), path); err != nil {
		t.Fatalf("Remove of a missing file returned error: %v", err)
	}
}
