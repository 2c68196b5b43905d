// Package registry combines `docker search` with Docker Hub repository metadata.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

const (
	// DefaultBaseURL is the Docker Hub web API.
	DefaultBaseURL = "https://hub.docker.com"
	// DefaultLookupTimeout bounds each per-row metadata request.
	DefaultLookupTimeout = 5 * time.Second
	// DefaultConcurrency bounds concurrent metadata requests.
	DefaultConcurrency = 8

	descriptionLimit = 50
	officialMarker   = "[OK]"
)

// Engine runs the container engine's search subcommand.
type Engine interface {
	Search(ctx context.Context, query string) (models.CommandResult, error)
}

// Config controls Client instantiation.
type Config struct {
	BaseURL       string
	HTTPClient    *http.Client
	Concurrency   int
	LookupTimeout time.Duration
}

// Client performs enriched remote searches.
type Client struct {
	engine        Engine
	baseURL       string
	http          *http.Client
	concurrency   int
	lookupTimeout time.Duration
}

// New returns a Client that searches through engine and enriches rows from cfg.BaseURL.
func New(engine Engine, cfg Config) *Client {
	c := &Client{
		engine:        engine,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          cfg.HTTPClient,
		concurrency:   cfg.Concurrency,
		lookupTimeout: cfg.LookupTimeout,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	if c.lookupTimeout <= 0 {
		c.lookupTimeout = DefaultLookupTimeout
	}
	return c
}

// SearchRemote runs the engine search and fills every row's pull count.
// Rows keep the engine's order. A failed lookup leaves that row's pull count at
// zero and never fails the search.
func (c *Client) SearchRemote(ctx context.Context, query string) ([]models.SearchResultRow, error) {
	res, err := c.engine.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	rows := ParseSearchOutput(res.Stdout)
	if len(rows) == 0 {
		return rows, nil
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range rows {
		i := i
		g.Go(func() error {
			count, err := c.PullCount(ctx, rows[i].Name)
			if err != nil {
				tflog.Debug(ctx, "Pull count lookup failed", map[string]any{"name": rows[i].Name, "error": err.Error()})
				return nil
			}
			rows[i].PullCount = count
			return nil
		})
	}
	_ = g.Wait()

	tflog.Info(ctx, "Remote image search finished", map[string]any{"query": query, "results": len(rows)})
	return rows, nil
}

// ParseSearchOutput turns tab-separated search output into rows. Lines that do
// not split into exactly four fields are skipped.
func ParseSearchOutput(out string) []models.SearchResultRow {
	rows := []models.SearchResultRow{}
	for _, line := range strings.Split(strings.TrimRight(out, "\r\n"), "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) != 4 {
			continue
		}

		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		desc := strings.TrimSpace(fields[1])
		if desc == "" {
			desc = "N/A"
		}
		stars, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			stars = 0
		}
		official := strings.TrimSpace(fields[3])

		rows = append(rows, models.SearchResultRow{
			Name:             name,
			ShortDescription: truncate(desc, descriptionLimit),
			StarCount:        stars,
			IsOfficial:       official == officialMarker || strings.EqualFold(official, "true"),
		})
	}
	return rows
}

type repositoryResponse struct {
	PullCount int64 `json:"pull_count"`
}

// PullCount fetches the repository's pull count from the registry web API.
func (c *Client) PullCount(ctx context.Context, name string) (int64, error) {
	ref := ParseImageRef(name)

	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v2/repositories/%s/%s/", c.baseURL, ref.Namespace(), ref.Name())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	var payload repositoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode %s: %w", url, err)
	}
	return payload.PullCount, nil
}

// HubURL links to the web page for name on Docker Hub.
func HubURL(name string) string {
	if strings.Contains(name, "/") {
		return "https://hub.docker.com/r/" + name
	}
	return "https://hub.docker.com/_/" + name
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-3]) + "..."
}
