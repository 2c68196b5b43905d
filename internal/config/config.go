// Package config loads settings for the vmdock command-line tool.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/orchestrator"
	"github.com/todoroff/terraform-provider-vmdock/internal/registry"
)

// Config holds the CLI configuration.
type Config struct {
	// Tools overrides the binaries vmdock runs. Empty entries are searched on PATH.
	Tools ToolsConfig `yaml:"tools"`

	// Timeout bounds each external command.
	Timeout time.Duration `yaml:"timeout"`

	// Registry configures Docker Hub pull-count lookups.
	Registry RegistryConfig `yaml:"registry"`

	LogLevel string `yaml:"log_level"`
}

type ToolsConfig struct {
	QemuImg    string `yaml:"qemu_img"`
	QemuSystem string `yaml:"qemu_system"`
	Docker     string `yaml:"docker"`
}

type RegistryConfig struct {
	URL         string `yaml:"url"`
	Concurrency int    `yaml:"concurrency"`
}

// DefaultConfig returns a configuration with the defaults used when no file is present.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Registry: RegistryConfig{
			URL:         registry.DefaultBaseURL,
			Concurrency: registry.DefaultConcurrency,
		},
		LogLevel: "warn",
	}
}

// DefaultPath returns ~/.config/vmdock/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vmdock.yaml"
	}
	return filepath.Join(dir, "vmdock", "config.yaml")
}

// Load reads configuration from a YAML file, falling back to defaults when the
// file does not exist. A .env file in the working directory and VMDOCK_*
// environment variables are applied on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	// A missing .env is not an error.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Tools.QemuImg, "VMDOCK_QEMU_IMG")
	setString(&c.Tools.QemuSystem, "VMDOCK_QEMU_SYSTEM")
	setString(&c.Tools.Docker, "VMDOCK_DOCKER")
	setString(&c.Registry.URL, "VMDOCK_REGISTRY_URL")
	setString(&c.LogLevel, "VMDOCK_LOG_LEVEL")

	if v := os.Getenv("VMDOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VMDOCK_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("VMDOCK_SEARCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VMDOCK_SEARCH_CONCURRENCY: %w", err)
		}
		c.Registry.Concurrency = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects values the orchestrator cannot use.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Registry.Concurrency < 1 || c.Registry.Concurrency > 64 {
		return fmt.Errorf("registry concurrency must be between 1 and 64, got %d", c.Registry.Concurrency)
	}
	return nil
}

// Orchestrator converts the configuration into orchestrator settings.
func (c *Config) Orchestrator() orchestrator.Config {
	paths := map[models.ToolKind]string{}
	for kind, path := range map[models.ToolKind]string{
		models.DiskTool:      c.Tools.QemuImg,
		models.EmulatorTool:  c.Tools.QemuSystem,
		models.ContainerTool: c.Tools.Docker,
	} {
		if path != "" {
			paths[kind] = path
		}
	}
	return orchestrator.Config{
		ToolPaths:         paths,
		Timeout:           c.Timeout,
		RegistryURL:       c.Registry.URL,
		SearchConcurrency: c.Registry.Concurrency,
	}
}

// Save writes the configuration to a YAML file.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
