package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
)

type fakeEngine struct {
	stdout string
	err    error
}

func (f fakeEngine) Search(_ context.Context, _ string) (models.CommandResult, error) {
	return models.CommandResult{Stdout: f.stdout, Succeeded: f.err == nil}, f.err
}

func TestParseSearchOutput(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("d", 60)
	out := "nginx\tOfficial build of Nginx.\t19000\t[OK]\n" +
		"bitnami/nginx\t" + long + "\t180\t\n" +
		"broken line without tabs\n" +
		"someone/empty\t\tnot-a-number\tfalse\n"

	rows := ParseSearchOutput(out)
	want := []models.SearchResultRow{
		{Name: "nginx", ShortDescription: "Official build of Nginx.", StarCount: 19000, IsOfficial: true},
		{Name: "bitnami/nginx", ShortDescription: strings.Repeat("d", 47) + "...", StarCount: 180},
		{Name: "someone/empty", ShortDescription: "N/A"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch: %s", diff)
	}

	if rows := ParseSearchOutput(""); len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}

func TestTruncateBoundary(t *testing.T) {
	t.Parallel()

	exact := strings.Repeat("x", 50)
	if got := truncate(exact, 50); got != exact {
		t.Fatalf("50-char text should be kept, got %q", got)
	}
	if got := truncate(exact+"y", 50); len(got) != 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("51-char text truncated to %q", got)
	}
}

func TestParseImageRef(t *testing.T) {
	t.Parallel()

	cases := map[string]models.ImageRef{
		"nginx":                {Repository: "library/nginx", Tag: "latest"},
		"bitnami/redis:7.2":    {Repository: "bitnami/redis", Tag: "7.2"},
		"library/ubuntu:22.04": {Repository: "library/ubuntu", Tag: "22.04"},
		"Weird/Name:tag":       {Repository: "Weird/Name", Tag: "tag"},
	}
	for name, want := range cases {
		if diff := cmp.Diff(want, ParseImageRef(name)); diff != "" {
			t.Fatalf("ParseImageRef(%q) mismatch: %s", name, diff)
		}
	}

	ref := ParseImageRef("bitnami/redis")
	if ref.Namespace() != "bitnami" || ref.Name() != "redis" {
		t.Fatalf("namespace/name = %s/%s", ref.Namespace(), ref.Name())
	}
}

func TestHubURL(t *testing.T) {
	t.Parallel()

	if got := HubURL("nginx"); got != "https://hub.docker.com/_/nginx" {
		t.Fatalf("HubURL(nginx) = %s", got)
	}
	if got := HubURL("bitnami/nginx"); got != "https://hub.docker.com/r/bitnami/nginx" {
		t.Fatalf("HubURL(bitnami/nginx) = %s", got)
	}
}

func TestSearchRemoteEnrichesRowsInOrder(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/v2/repositories/library/nginx/":
			fmt.Fprint(w, `{"name":"nginx","pull_count":1000000000}`)
		case "/v2/repositories/bitnami/nginx/":
			fmt.Fprint(w, `{"name":"nginx","pull_count":5000}`)
		case "/v2/repositories/slow/nginx/":
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			fmt.Fprint(w, `{"pull_count":42}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	engine := fakeEngine{stdout: "nginx\tOfficial\t10\t[OK]\n" +
		"slow/nginx\tSlow mirror\t1\t\n" +
		"gone/nginx\tDeleted\t0\t\n" +
		"bitnami/nginx\tBitnami\t5\t\n"}
	client := New(engine, Config{BaseURL: server.URL + "/", LookupTimeout: 200 * time.Millisecond, Concurrency: 2})

	start := time.Now()
	rows, err := client.SearchRemote(context.Background(), "nginx")
	if err != nil {
		t.Fatalf("SearchRemote returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("slow lookup was not bounded: %s", elapsed)
	}

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, fmt.Sprintf("%s=%d", r.Name, r.PullCount))
	}
	want := []string{"nginx=1000000000", "slow/nginx=0", "gone/nginx=0", "bitnami/nginx=5000"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch: %s", diff)
	}
	if requests.Load() != 4 {
		t.Fatalf("expected one lookup per row, got %d", requests.Load())
	}
}

func TestSearchRemotePropagatesEngineFailure(t *testing.T) {
	t.Parallel()

	client := New(fakeEngine{err: toolcli.ErrTimeout}, Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.SearchRemote(context.Background(), "nginx")
	if !errors.Is(err, toolcli.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSearchRemoteNoResults(t *testing.T) {
	t.Parallel()

	client := New(fakeEngine{stdout: ""}, Config{BaseURL: "http://127.0.0.1:1"})
	rows, err := client.SearchRemote(context.Background(), "zzzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %v", rows)
	}
}
