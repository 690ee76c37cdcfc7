package builder

import (
	"time"

	"github.com/platinummonkey/repobuilder/pkg/observability"
)

// Outcome is the result of processing one plugin
type Outcome string

const (
	OutcomePackaged Outcome = observability.OutcomePackaged
	OutcomeSkipped  Outcome = observability.OutcomeSkipped
	OutcomeFailed   Outcome = observability.OutcomeFailed
)

// Options configures a Builder
type Options struct {
	SourceDir      string
	DestDir        string
	Strict         bool          // validate descriptors against the schema and require semver versions
	KeepGoing      bool          // continue past failing plugins
	InstallTimeout time.Duration // per-plugin installer timeout, 0 for none
}

// PluginResult records what happened to one plugin directory
type PluginResult struct {
	Dir     string
	ID      string
	Version string
	Outcome Outcome
	Archive string
	Entries int
	Err     error
}

// Report summarizes a build
type Report struct {
	RunID           string
	Plugins         []PluginResult
	ManifestPath    string // empty when the manifest was not regenerated
	ManifestPlugins int
	Duration        time.Duration
}

// Count returns the number of plugins with the given outcome
func (r *Report) Count(outcome Outcome) int {
	n := 0
	for _, p := range r.Plugins {
		if p.Outcome == outcome {
			n++
		}
	}
	return n
}

// Asset is an optional file copied next to the archive under a fixed name
type Asset struct {
	Pattern string // matched against file names in the plugin directory
	Target  string
}

// Assets lists the optional plugin files, in staging order
var Assets = []Asset{
	{Pattern: "*changelog.txt", Target: "changelog.txt"},
	{Pattern: "*icon.*", Target: "icon.png"},
	{Pattern: "*fanart.*", Target: "fanart.jpg"},
}
