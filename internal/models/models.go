package models

import (
	"fmt"
	"strings"
	"time"
)

// ToolKind identifies one of the external binaries vmdock drives.
type ToolKind string

const (
	DiskTool      ToolKind = "disk"
	ContainerTool ToolKind = "container"
	EmulatorTool  ToolKind = "emulator"
)

// AllToolKinds lists every tool kind in a stable order.
var AllToolKinds = []ToolKind{DiskTool, ContainerTool, EmulatorTool}

// DefaultBinary returns the executable name searched on PATH for the kind.
func (k ToolKind) DefaultBinary() string {
	switch k {
	case DiskTool:
		return "qemu-img"
	case ContainerTool:
		return "docker"
	case EmulatorTool:
		return "qemu-system-x86_64"
	default:
		return ""
	}
}

// ToolBinary is a resolved external tool. An empty Path means the tool is absent.
type ToolBinary struct {
	Kind    ToolKind
	Path    string
	Version string
}

// Available reports whether the tool was found.
func (b ToolBinary) Available() bool {
	return b.Path != ""
}

// DiskFormat is a disk image format understood by qemu-img.
type DiskFormat string

const (
	FormatVMDK  DiskFormat = "vmdk"
	FormatVDI   DiskFormat = "vdi"
	FormatVHD   DiskFormat = "vhd"
	FormatVHDX  DiskFormat = "vhdx"
	FormatQCOW  DiskFormat = "qcow"
	FormatQCOW2 DiskFormat = "qcow2"
	FormatRaw   DiskFormat = "raw"
	FormatImg   DiskFormat = "img"
	FormatQED   DiskFormat = "qed"
)

// DiskFormats lists the formats accepted for creation and as VM disk extensions.
var DiskFormats = []DiskFormat{
	FormatVMDK, FormatVDI, FormatVHD, FormatVHDX, FormatQCOW, FormatQCOW2, FormatRaw, FormatImg, FormatQED,
}

// Allocation controls whether backing storage is reserved at creation time.
type Allocation string

const (
	AllocationDynamic Allocation = "Dynamic"
	AllocationFixed   Allocation = "Fixed"
)

// SizeUnit is a binary size suffix.
type SizeUnit byte

const (
	UnitK SizeUnit = 'K'
	UnitM SizeUnit = 'M'
	UnitG SizeUnit = 'G'
	UnitT SizeUnit = 'T'
)

// Size is a validated quantity such as 10G.
type Size struct {
	Count uint64
	Unit  SizeUnit
}

func (s Size) String() string {
	return fmt.Sprintf("%d%c", s.Count, s.Unit)
}

// DiskSpec describes a disk image to create.
type DiskSpec struct {
	Format     DiskFormat
	Allocation Allocation
	Size       string
	TargetPath string
}

// DiskInfo is the subset of `qemu-img info` output vmdock relies on.
type DiskInfo struct {
	Path             string
	Format           string
	VirtualSizeBytes uint64
	ActualSizeBytes  uint64
}

// VMSpec describes a virtual machine launch.
type VMSpec struct {
	Name     string
	CPUCores int
	MemoryMB int
	DiskPath string
	ISOPath  string
	// Display overrides the emulator display backend; empty means sdl.
	Display string
}

// LaunchHandle identifies an emulator process started in the background.
type LaunchHandle struct {
	Name      string
	PID       int
	Args      []string
	StartedAt time.Time
}

// ImageRef is a container image name split into repository and tag.
type ImageRef struct {
	Repository string
	Tag        string
}

// Namespace returns the registry namespace, "library" for official images.
func (r ImageRef) Namespace() string {
	if i := strings.Index(r.Repository, "/"); i >= 0 {
		return r.Repository[:i]
	}
	return "library"
}

// Name returns the repository without its namespace.
func (r ImageRef) Name() string {
	if i := strings.Index(r.Repository, "/"); i >= 0 {
		return r.Repository[i+1:]
	}
	return r.Repository
}

func (r ImageRef) String() string {
	tag := r.Tag
	if tag == "" {
		tag = "latest"
	}
	return r.Repository + ":" + tag
}

// SearchResultRow is one enriched `docker search` hit.
type SearchResultRow struct {
	Name             string
	ShortDescription string
	StarCount        int
	IsOfficial       bool
	PullCount        int64
}

// ImageSummary is a local image as reported by `docker images --format '{{json .}}'`.
type ImageSummary struct {
	ID         string
	Repository string
	Tag        string
	Size       string
	CreatedAt  string
}

// ContainerSummary is a container as reported by `docker ps --format '{{json .}}'`.
type ContainerSummary struct {
	ID     string
	Image  string
	Names  string
	Status string
	State  string
	Ports  string
}
