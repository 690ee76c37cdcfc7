package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSourceDir is the plugin source directory name under the root
	DefaultSourceDir = "source"

	// DefaultDestDir is the published repository directory name under the root
	DefaultDestDir = "repo"

	// EnvPrefix prefixes every environment variable
	EnvPrefix = "REPOBUILDER_"
)

// Installer backends
const (
	InstallerExec   = "exec"
	InstallerDocker = "docker"
	InstallerNone   = "none"
)

// FileNames are the config files looked up in the working directory when no
// explicit file is given
var FileNames = []string{"repobuilder.yaml", "repobuilder.yml", ".repobuilder.yaml", ".repobuilder.yml"}

// Config holds all builder configuration
type Config struct {
	// Paths
	Root      string `yaml:"root"`
	SourceDir string `yaml:"source_dir"`
	DestDir   string `yaml:"dest_dir"`

	// Dependency installation
	Installer      string        `yaml:"installer"`
	Python         string        `yaml:"python"`
	DockerImage    string        `yaml:"docker_image"`
	InstallTimeout time.Duration `yaml:"install_timeout"`

	// Failure policy
	KeepGoing bool `yaml:"keep_going"`
	Strict    bool `yaml:"strict"`

	// Observability
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsFile string `yaml:"metrics_file"`

	// Long-running modes
	WatchDelay time.Duration `yaml:"watch_delay"`
	Schedule   string        `yaml:"schedule"`
}

// Default returns the built-in defaults. SourceDir and DestDir stay empty
// until Resolve derives them from Root.
func Default() *Config {
	return &Config{
		Root:           ".",
		Installer:      InstallerExec,
		Python:         "python3",
		DockerImage:    "python:3.12-slim",
		InstallTimeout: 10 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "text",
		WatchDelay:     2 * time.Second,
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// FindFile returns the first config file from FileNames present in dir, or ""
func FindFile(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// LoadFile overlays the settings of a YAML file. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overlays REPOBUILDER_* environment variables
func (c *Config) ApplyEnv() {
	c.Root = getEnv(EnvPrefix+"ROOT", c.Root)
	c.SourceDir = getEnv(EnvPrefix+"SOURCE_DIR", c.SourceDir)
	c.DestDir = getEnv(EnvPrefix+"DEST_DIR", c.DestDir)
	c.Installer = getEnv(EnvPrefix+"INSTALLER", c.Installer)
	c.Python = getEnv(EnvPrefix+"PYTHON", c.Python)
	c.DockerImage = getEnv(EnvPrefix+"DOCKER_IMAGE", c.DockerImage)
	c.InstallTimeout = getEnvDuration(EnvPrefix+"INSTALL_TIMEOUT", c.InstallTimeout)
	c.KeepGoing = getEnvBool(EnvPrefix+"KEEP_GOING", c.KeepGoing)
	c.Strict = getEnvBool(EnvPrefix+"STRICT", c.Strict)
	c.LogLevel = getEnv(EnvPrefix+"LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv(EnvPrefix+"LOG_FORMAT", c.LogFormat)
	c.MetricsFile = getEnv(EnvPrefix+"METRICS_FILE", c.MetricsFile)
	c.WatchDelay = getEnvDuration(EnvPrefix+"WATCH_DELAY", c.WatchDelay)
	c.Schedule = getEnv(EnvPrefix+"SCHEDULE", c.Schedule)
}

// Resolve makes every path absolute. Empty source and destination
// directories default to <root>/source and <root>/repo; relative ones are
// taken relative to the root.
func (c *Config) Resolve() error {
	if c.Root == "" {
		c.Root = "."
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", c.Root, err)
	}
	c.Root = root

	if c.SourceDir == "" {
		c.SourceDir = DefaultSourceDir
	}
	if c.DestDir == "" {
		c.DestDir = DefaultDestDir
	}
	c.SourceDir = underRoot(root, c.SourceDir)
	c.DestDir = underRoot(root, c.DestDir)

	if c.MetricsFile != "" {
		if c.MetricsFile, err = filepath.Abs(c.MetricsFile); err != nil {
			return fmt.Errorf("failed to resolve metrics file %s: %w", c.MetricsFile, err)
		}
	}

	return nil
}

// Validate validates the configuration. It expects Resolve to have run.
func (c *Config) Validate() error {
	switch c.Installer {
	case InstallerExec:
		if strings.TrimSpace(c.Python) == "" {
			return fmt.Errorf("python interpreter is required for the exec installer")
		}
	case InstallerDocker:
		if strings.TrimSpace(c.DockerImage) == "" {
			return fmt.Errorf("docker image is required for the docker installer")
		}
	case InstallerNone:
	default:
		return fmt.Errorf("invalid installer: %s (must be exec, docker, or none)", c.Installer)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	if c.InstallTimeout < 0 {
		return fmt.Errorf("install timeout must not be negative")
	}
	if c.WatchDelay <= 0 {
		return fmt.Errorf("watch delay must be positive")
	}

	if c.SourceDir == "" || c.DestDir == "" {
		return fmt.Errorf("source and destination directories are required")
	}
	if filepath.Clean(c.SourceDir) == filepath.Clean(c.DestDir) {
		return fmt.Errorf("source and destination directories must be different")
	}
	if fsutil.IsWithin(c.SourceDir, c.DestDir) {
		return fmt.Errorf("destination %s must not be inside the source directory %s", c.DestDir, c.SourceDir)
	}
	if fsutil.IsWithin(c.DestDir, c.SourceDir) {
		return fmt.Errorf("source %s must not be inside the destination directory %s", c.SourceDir, c.DestDir)
	}

	return nil
}

// underRoot joins relative paths onto root
func underRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// getEnv returns an environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
