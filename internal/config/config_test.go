package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  qemu_img: /opt/qemu/bin/qemu-img
timeout: 45s
registry:
  concurrency: 4
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/qemu/bin/qemu-img", cfg.Tools.QemuImg)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Registry.Concurrency)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().Registry.URL, cfg.Registry.URL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VMDOCK_DOCKER", "/usr/local/bin/docker")
	t.Setenv("VMDOCK_TIMEOUT", "2m")
	t.Setenv("VMDOCK_SEARCH_CONCURRENCY", "16")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/docker", cfg.Tools.Docker)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 16, cfg.Registry.Concurrency)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("bad env duration", func(t *testing.T) {
		t.Setenv("VMDOCK_TIMEOUT", "soon")
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "VMDOCK_TIMEOUT")
	})

	t.Run("concurrency out of range", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("registry:\n  concurrency: 0\n"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "concurrency")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("timeout: [\n"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Tools.QemuSystem = "/opt/qemu/bin/qemu-system-x86_64"
	cfg.Timeout = time.Minute

	require.NoError(t, Save(path, &cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools.Docker = "/usr/bin/podman"

	oc := cfg.Orchestrator()
	assert.Equal(t, map[models.ToolKind]string{models.ContainerTool: "/usr/bin/podman"}, oc.ToolPaths)
	assert.Equal(t, cfg.Timeout, oc.Timeout)
	assert.Equal(t, cfg.Registry.URL, oc.RegistryURL)
	assert.Equal(t, cfg.Registry.Concurrency, oc.SearchConcurrency)
}
