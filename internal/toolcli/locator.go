package toolcli

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

// LookPathFunc resolves an executable name or path.
type LookPathFunc func(file string) (string, error)

// Locator resolves and caches the filesystem path of each external tool.
// Absent tools are cached too; call Refresh after installing a tool.
type Locator struct {
	lookPath LookPathFunc

	mu    sync.RWMutex
	paths map[models.ToolKind]string
	cache map[models.ToolKind]models.ToolBinary
}

// NewLocator returns a Locator that prefers the configured paths and falls back
// to searching PATH for each kind's default binary.
func NewLocator(paths map[models.ToolKind]string) *Locator {
	configured := make(map[models.ToolKind]string, len(paths))
	for kind, p := range paths {
		if p != "" {
			configured[kind] = p
		}
	}
	return &Locator{
		lookPath: exec.LookPath,
		paths:    configured,
		cache:    make(map[models.ToolKind]models.ToolBinary),
	}
}

// WithLookPath replaces the resolution function, mainly for tests.
func (l *Locator) WithLookPath(fn LookPathFunc) *Locator {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookPath = fn
	l.cache = make(map[models.ToolKind]models.ToolBinary)
	return l
}

// Resolve returns the tool binary for kind, or ErrToolNotFound before anything is spawned.
func (l *Locator) Resolve(ctx context.Context, kind models.ToolKind) (models.ToolBinary, error) {
	l.mu.RLock()
	bin, ok := l.cache[kind]
	l.mu.RUnlock()

	if !ok {
		bin = l.resolve(ctx, kind)
		l.mu.Lock()
		if cached, raced := l.cache[kind]; raced {
			bin = cached
		} else {
			l.cache[kind] = bin
		}
		l.mu.Unlock()
	}

	if !bin.Available() {
		return bin, fmt.Errorf("%w: %s (%s)", ErrToolNotFound, kind, l.name(kind))
	}
	return bin, nil
}

// Refresh drops every cached resolution.
func (l *Locator) Refresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[models.ToolKind]models.ToolBinary)
}

// SetPath changes the configured path for kind and invalidates its cache entry.
// An empty path restores the PATH search.
func (l *Locator) SetPath(kind models.ToolKind, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if path == "" {
		delete(l.paths, kind)
	} else {
		l.paths[kind] = path
	}
	delete(l.cache, kind)
}

func (l *Locator) recordVersion(kind models.ToolKind, ver string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bin, ok := l.cache[kind]; ok {
		bin.Version = ver
		l.cache[kind] = bin
	}
}

func (l *Locator) name(kind models.ToolKind) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.paths[kind]; ok {
		return p
	}
	return kind.DefaultBinary()
}

func (l *Locator) resolve(ctx context.Context, kind models.ToolKind) models.ToolBinary {
	name := l.name(kind)
	bin := models.ToolBinary{Kind: kind}
	if name == "" {
		return bin
	}

	l.mu.RLock()
	lookPath := l.lookPath
	l.mu.RUnlock()

	resolved, err := lookPath(name)
	if err != nil {
		tflog.Warn(ctx, "External tool not found", map[string]any{"tool": string(kind), "name": name, "error": err.Error()})
		return bin
	}

	tflog.Debug(ctx, "Resolved external tool", map[string]any{"tool": string(kind), "path": resolved})
	bin.Path = resolved
	return bin
}
