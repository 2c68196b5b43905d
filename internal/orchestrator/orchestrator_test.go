package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli/tooltest"
)

func newTestOrchestrator(t *testing.T, scripts map[models.ToolKind]string, registryURL string) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	paths := make(map[models.ToolKind]string, len(scripts))
	for kind, body := range scripts {
		paths[kind] = tooltest.Script(t, dir, kind.DefaultBinary(), body)
	}
	return New(Config{
		Locator:     tooltest.Locator(paths),
		Timeout:     5 * time.Second,
		RegistryURL: registryURL,
	})
}

func TestCreateDiskSuccess(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{models.DiskTool: `exit 0`}, "")

	out, err := o.CreateDisk(context.Background(), models.DiskSpec{Format: models.FormatQCOW2, Size: "10G", TargetPath: "/vms/a.qcow2"})
	require.NoError(t, err)
	assert.Equal(t, "create disk", out.Action)
	assert.NotEmpty(t, out.OperationID)
	assert.Equal(t, "Virtual disk created at /vms/a.qcow2 (qcow2, 10G).", out.Message)
	assert.True(t, out.Result.Succeeded)
	require.NotNil(t, out.Disk)
	assert.Equal(t, "/vms/a.qcow2", out.Disk.Path)
}

func TestFailuresAreClassified(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{
		models.ContainerTool: `echo "Error response from daemon: No such container: $2" >&2; exit 1`,
	}, "")
	ctx := context.Background()

	_, err := o.StopContainer(ctx, "ghost")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.FailureNonZeroExit, failure.Kind)
	assert.Equal(t, 1, failure.Result.ExitCode)
	assert.Equal(t, "Error response from daemon: No such container: ghost\n", failure.Result.Stderr)
	assert.Contains(t, err.Error(), "No such container: ghost")

	_, err = o.CreateDisk(ctx, models.DiskSpec{Format: models.FormatQCOW2, Size: "10GB", TargetPath: "/vms/a.qcow2"})
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.FailureInvalidArgument, failure.Kind)

	_, err = o.ResizeDisk(ctx, "/vms/a.qcow2", "20G")
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.FailureToolNotFound, failure.Kind)
	assert.True(t, errors.Is(err, toolcli.ErrToolNotFound))
}

func TestResizeDiskRejectsShrink(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{
		models.DiskTool: `case "$1" in
  info) echo '{"virtual-size": 10737418240, "format": "qcow2"}' ;;
  resize) exit 9 ;;
esac`,
	}, "")

	_, err := o.ResizeDisk(context.Background(), "/vms/a.qcow2", "5G")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.FailureUnsupported, failure.Kind)
	assert.ErrorIs(t, err, toolcli.ErrUnsupported)

	out, err := o.ResizeDisk(context.Background(), "/vms/a.qcow2", "10G")
	require.Error(t, err, "resize stand-in exits 9")
	assert.Empty(t, out.Message)
}

func TestInspectDiskParseError(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{models.DiskTool: `echo "not json"`}, "")

	_, err := o.InspectDisk(context.Background(), "/vms/a.qcow2")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.FailureParseError, failure.Kind)
}

func TestListImagesFallbackMessage(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{models.ContainerTool: `exit 0`}, "")

	out, err := o.ListImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No local images.", out.Message)

	out, err = o.SearchLocalImage(context.Background(), "nginx")
	require.NoError(t, err)
	assert.Equal(t, "No local image named 'nginx'.", out.Message)
}

func TestSearchRemote(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/repositories/library/nginx/" {
			fmt.Fprint(w, `{"pull_count":12}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	o := newTestOrchestrator(t, map[models.ToolKind]string{
		models.ContainerTool: `if [ "$4" = "nginx" ]; then printf 'nginx\tOfficial build of Nginx.\t100\t[OK]\n'; fi`,
	}, server.URL)
	ctx := context.Background()

	out, err := o.SearchRemote(ctx, "nginx")
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, int64(12), out.Rows[0].PullCount)
	assert.True(t, out.Rows[0].IsOfficial)
	assert.Equal(t, "Displaying 1 results for 'nginx'. View on Docker Hub: https://hub.docker.com/_/nginx", out.Message)

	out, err = o.SearchRemote(ctx, "nothing-matches")
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Equal(t, "No results found for 'nothing-matches'. Please check the image name and try again.", out.Message)
}

func TestWriteDockerfileAndBuild(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{models.ContainerTool: `echo "built $3"`}, "")
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Dockerfile")

	_, err := o.WriteDockerfile(ctx, path, "FROM alpine\n")
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err := o.BuildImage(ctx, path, "", "app:dev")
	require.NoError(t, err)
	assert.Equal(t, "Image 'app:dev' built.", out.Message)
	assert.Equal(t, "built app:dev\n", out.Result.Stdout)
}

func TestCheckToolsReportsMissingAndOld(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{
		models.DiskTool:      `echo "qemu-img version 8.2.2"`,
		models.ContainerTool: `echo "Docker version 1.13.1, build 092cba3"`,
	}, "")

	out, err := o.CheckTools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1 of 3 tools are missing.", out.Message)
	require.Len(t, out.Tools, len(models.AllToolKinds))

	byKind := map[models.ToolKind]ToolStatus{}
	for _, status := range out.Tools {
		byKind[status.Binary.Kind] = status
	}
	assert.Empty(t, byKind[models.DiskTool].Problem)
	assert.Equal(t, "8.2.2", byKind[models.DiskTool].Binary.Version)
	assert.Contains(t, byKind[models.ContainerTool].Problem, "older than supported minimum")
	assert.Contains(t, byKind[models.EmulatorTool].Problem, "tool not found")
}

func TestActionsAreSerialised(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, map[models.ToolKind]string{models.ContainerTool: `sleep 0.2`}, "")
	ctx := context.Background()

	start := time.Now()
	first := o.Async(ctx, o.ListRunningContainers)
	second := o.Async(ctx, o.ListAllContainers)
	for _, ch := range []<-chan Report{first, second} {
		select {
		case report := <-ch:
			require.NoError(t, report.Err)
		case <-time.After(5 * time.Second):
			t.Fatal("action did not report")
		}
	}
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestRefreshToolsPicksUpNewPath(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, nil, "")
	ctx := context.Background()

	_, err := o.PullImage(ctx, "redis")
	require.ErrorIs(t, err, toolcli.ErrToolNotFound)

	tool := tooltest.Script(t, t.TempDir(), "docker", `echo "pulled $2"`)
	o.SetToolPath(models.ContainerTool, tool)
	o.runner.Locator().WithLookPath(func(file string) (string, error) { return file, nil })

	out, err := o.PullImage(ctx, "redis")
	require.NoError(t, err)
	assert.Equal(t, "pulled redis", out.Message)
}
