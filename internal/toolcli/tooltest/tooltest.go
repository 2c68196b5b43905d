// Package tooltest builds stand-in executables for tests that drive external tools.
package tooltest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/toolcli"
)

// Script writes an executable /bin/sh script with body into dir and returns its path.
func Script(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// Runner returns a runner whose locator only knows the given tool paths.
func Runner(t testing.TB, paths map[models.ToolKind]string, timeout time.Duration) *toolcli.Runner {
	t.Helper()
	return toolcli.NewRunner(toolcli.Config{Locator: Locator(paths), Timeout: timeout})
}

// Locator returns a locator that resolves kinds only through paths, never PATH.
func Locator(paths map[models.ToolKind]string) *toolcli.Locator {
	return toolcli.NewLocator(paths).WithLookPath(func(file string) (string, error) {
		for _, p := range paths {
			if p == file {
				if _, err := os.Stat(p); err != nil {
					return "", err
				}
				return p, nil
			}
		}
		return "", errors.New("executable file not found")
	})
}
