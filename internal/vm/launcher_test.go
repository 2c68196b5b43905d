package vm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli/tooltest"
	"github.com/todoroff/terraform-provider-vmdock/internal/validate"
)

func fixtures(t *testing.T) (diskPath, isoPath string) {
	t.Helper()
	dir := t.TempDir()
	diskPath = filepath.Join(dir, "disk.qcow2")
	isoPath = filepath.Join(dir, "install.iso")
	for _, p := range []string{diskPath, isoPath} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return diskPath, isoPath
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	diskPath, isoPath := fixtures(t)
	args, err := BuildArgs(models.VMSpec{Name: "myvm", CPUCores: 2, MemoryMB: 2048, DiskPath: diskPath, ISOPath: isoPath})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"-m", "2048",
		"-cpu", "max",
		"-smp", "2",
		"-hda", diskPath,
		"-cdrom", isoPath,
		"-boot", "menu=on",
		"-display", "sdl",
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Fatalf("args mismatch: %s", diff)
	}
}

func TestBuildArgsRejects(t *testing.T) {
	t.Parallel()

	diskPath, isoPath := fixtures(t)
	dir := filepath.Dir(diskPath)
	wrongExt := filepath.Join(dir, "disk.txt")
	if err := os.WriteFile(wrongExt, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	valid := models.VMSpec{Name: "myvm", CPUCores: 2, MemoryMB: 2048, DiskPath: diskPath, ISOPath: isoPath}
	cases := []struct {
		name  string
		edit  func(*models.VMSpec)
		field string
		rule  validate.Rule
	}{
		{"leading digit", func(s *models.VMSpec) { s.Name = "3vm" }, "name", validate.RuleInvalidFormat},
		{"special char", func(s *models.VMSpec) { s.Name = "my-vm!" }, "name", validate.RuleInvalidFormat},
		{"empty name", func(s *models.VMSpec) { s.Name = "" }, "name", validate.RuleRequired},
		{"too many cores", func(s *models.VMSpec) { s.CPUCores = 5 }, "cpu_cores", validate.RuleOutOfRange},
		{"too little memory", func(s *models.VMSpec) { s.MemoryMB = 256 }, "memory_mb", validate.RuleOutOfRange},
		{"too much memory", func(s *models.VMSpec) { s.MemoryMB = 65536 }, "memory_mb", validate.RuleOutOfRange},
		{"missing disk", func(s *models.VMSpec) { s.DiskPath = filepath.Join(dir, "nope.qcow2") }, "disk_path", validate.RuleNotFound},
		{"bad extension", func(s *models.VMSpec) { s.DiskPath = wrongExt }, "disk_path", validate.RuleUnsupportedExtension},
		{"missing iso", func(s *models.VMSpec) { s.ISOPath = "" }, "iso_path", validate.RuleRequired},
	}

	for _, tc := range cases {
		spec := valid
		tc.edit(&spec)
		_, err := BuildArgs(spec)
		var verr *validate.Error
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if verr.Field != tc.field || verr.Rule != tc.rule {
			t.Fatalf("%s: got %s/%s, want %s/%s", tc.name, verr.Field, verr.Rule, tc.field, tc.rule)
		}
	}
}

func TestLaunch(t *testing.T) {
	t.Parallel()

	diskPath, isoPath := fixtures(t)
	tool := tooltest.Script(t, t.TempDir(), "qemu-system-x86_64", `exit 0`)
	launcher := NewLauncher(tooltest.Runner(t, map[models.ToolKind]string{models.EmulatorTool: tool}, 0))

	handle, err := launcher.Launch(context.Background(), models.VMSpec{
		Name: "myvm", CPUCores: 1, MemoryMB: 512, DiskPath: diskPath, ISOPath: isoPath, Display: "none",
	})
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	if handle.Name != "myvm" || handle.PID <= 0 {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if handle.Args[0] != tool || handle.Args[len(handle.Args)-1] != "none" {
		t.Fatalf("unexpected argv: %v", handle.Args)
	}
}

func TestLaunchWithoutEmulator(t *testing.T) {
	t.Parallel()

	diskPath, isoPath := fixtures(t)
	launcher := NewLauncher(tooltest.Runner(t, nil, 0))

	_, err := launcher.Launch(context.Background(), models.VMSpec{
		Name: "myvm", CPUCores: 1, MemoryMB: 512, DiskPath: diskPath, ISOPath: isoPath,
	})
	if !errors.Is(err, toolcli.ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
	if toolcli.Classify(err) != models.FailureToolNotFound {
		t.Fatalf("Classify = %s", toolcli.Classify(err))
	}
}
