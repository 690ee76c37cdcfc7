package installer

import (
	"context"
	"path/filepath"
	"time"
)

const (
	// RequirementsFile is the dependency list looked up in each plugin directory
	RequirementsFile = "requirements.txt"

	// SitePackagesDir is the plugin-local install target, nested in the plugin source directory
	SitePackagesDir = "site-packages"
)

// Kind names an installer backend
type Kind string

const (
	KindExec   Kind = "exec"
	KindDocker Kind = "docker"
	KindNone   Kind = "none"
)

// Installer installs a plugin's third-party dependencies
type Installer interface {
	// Install installs or upgrades the requirements listed in req.RequirementsFile into req.TargetDir
	Install(ctx context.Context, req *Request) (*Result, error)

	// Kind reports the backend name
	Kind() Kind

	// Close releases resources
	Close() error
}

// Request represents a dependency installation request
type Request struct {
	Plugin           string // plugin source directory name, for diagnostics
	PluginDir        string
	RequirementsFile string
	TargetDir        string
	Timeout          time.Duration
}

// Result represents the outcome of an installer run
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// NewRequest builds the request for a plugin directory using the standard
// requirements file and site-packages target
func NewRequest(plugin, pluginDir string, timeout time.Duration) *Request {
	return &Request{
		Plugin:           plugin,
		PluginDir:        pluginDir,
		RequirementsFile: filepath.Join(pluginDir, RequirementsFile),
		TargetDir:        filepath.Join(pluginDir, SitePackagesDir),
		Timeout:          timeout,
	}
}

// Options configures installer construction
type Options struct {
	Python      string // interpreter for the exec backend
	DockerImage string // image for the docker backend
}
