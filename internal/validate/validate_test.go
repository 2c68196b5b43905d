package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

func TestSize(t *testing.T) {
	t.Parallel()

	valid := map[string]models.Size{
		"10G":  {Count: 10, Unit: models.UnitG},
		"500M": {Count: 500, Unit: models.UnitM},
		"1T":   {Count: 1, Unit: models.UnitT},
		"64K":  {Count: 64, Unit: models.UnitK},
	}
	for text, want := range valid {
		got, err := Size(text)
		if err != nil {
			t.Fatalf("Size(%q) returned error: %v", text, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Size(%q) mismatch: %s", text, diff)
		}
	}

	for _, text := range []string{"", "G", "10", "10g", "10GB", "1.5G", "-1G", " 10G", "10 G", "0G", "10P"} {
		_, err := Size(text)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("Size(%q) expected *Error, got %v", text, err)
		}
		if verr.Rule != RuleInvalidFormat {
			t.Fatalf("Size(%q) rule = %s", text, verr.Rule)
		}
	}
}

func TestBytes(t *testing.T) {
	t.Parallel()

	cases := map[string]uint64{
		"1K":  1024,
		"5M":  5 * 1024 * 1024,
		"10G": 10 * 1024 * 1024 * 1024,
		"2T":  2 * 1024 * 1024 * 1024 * 1024,
	}
	for text, want := range cases {
		size, err := Size(text)
		if err != nil {
			t.Fatalf("Size(%q): %v", text, err)
		}
		got, err := Bytes(size)
		if err != nil {
			t.Fatalf("Bytes(%q): %v", text, err)
		}
		if got != want {
			t.Fatalf("Bytes(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	if _, err := Identifier("name", "myvm", ForbiddenChars); err != nil {
		t.Fatalf("expected myvm to be valid: %v", err)
	}

	cases := map[string]Rule{
		"":       RuleRequired,
		"   ":    RuleRequired,
		"3vm":    RuleInvalidFormat,
		"my-vm!": RuleInvalidFormat,
		"vm.one": RuleInvalidFormat,
		"a b?":   RuleInvalidFormat,
	}
	for text, rule := range cases {
		_, err := Identifier("name", text, ForbiddenChars)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("Identifier(%q) expected *Error, got %v", text, err)
		}
		if verr.Rule != rule || verr.Field != "name" {
			t.Fatalf("Identifier(%q) = %s/%s, want name/%s", text, verr.Field, verr.Rule, rule)
		}
	}
}

func TestRange(t *testing.T) {
	t.Parallel()

	for _, v := range []int{1, 2, 4} {
		if _, err := Range("cpu_cores", v, 1, 4); err != nil {
			t.Fatalf("Range(%d) unexpected error: %v", v, err)
		}
	}
	for _, v := range []int{0, 5, -1} {
		_, err := Range("cpu_cores", v, 1, 4)
		var verr *Error
		if !errors.As(err, &verr) || verr.Rule != RuleOutOfRange {
			t.Fatalf("Range(%d) expected OutOfRange, got %v", v, err)
		}
	}
}

func TestDiskExtensionAndFormat(t *testing.T) {
	t.Parallel()

	if f, err := DiskExtension("disk_path", "/vms/disk.QCOW2"); err != nil || f != models.FormatQCOW2 {
		t.Fatalf("DiskExtension qcow2 = %q, %v", f, err)
	}
	if _, err := DiskExtension("disk_path", "/vms/disk.iso"); err == nil {
		t.Fatalf("expected iso extension to be rejected")
	}
	if f, err := DiskFormat("VHDX"); err != nil || f != models.FormatVHDX {
		t.Fatalf("DiskFormat VHDX = %q, %v", f, err)
	}
	if _, err := DiskFormat("ext4"); err == nil {
		t.Fatalf("expected ext4 to be rejected")
	}
	if a, err := Allocation(""); err != nil || a != models.AllocationDynamic {
		t.Fatalf("Allocation default = %q, %v", a, err)
	}
	if a, err := Allocation("fixed"); err != nil || a != models.AllocationFixed {
		t.Fatalf("Allocation fixed = %q, %v", a, err)
	}
}

func TestExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "boot.iso")
	if err := os.WriteFile(file, []byte("iso"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := ExistingFile("iso_path", file); err != nil {
		t.Fatalf("expected existing file to pass: %v", err)
	}
	for _, p := range []string{"", dir, filepath.Join(dir, "missing.iso")} {
		if _, err := ExistingFile("iso_path", p); err == nil {
			t.Fatalf("expected %q to be rejected", p)
		}
	}
}
