package builder

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"github.com/platinummonkey/repobuilder/pkg/plugins"
	"github.com/platinummonkey/repobuilder/pkg/repository"
)

// CheckResult is the outcome of validating a source tree without building it
type CheckResult struct {
	Descriptors []*plugins.Descriptor
	Issues      []plugins.ValidationIssue
}

// Failed reports whether any issue is an error
func (c *CheckResult) Failed() bool {
	for _, issue := range c.Issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}

// Check validates every plugin descriptor and the source repo.json. Nothing
// is written.
func (b *Builder) Check() (*CheckResult, error) {
	names, err := fsutil.ListSubdirs(b.opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin sources: %w", err)
	}

	descriptors, issues := b.validator.ValidateDirs(b.opts.SourceDir, names)

	seen := make(map[string]string, len(descriptors))
	for _, desc := range descriptors {
		if other, ok := seen[desc.ID]; ok {
			issues = append(issues, plugins.ValidationIssue{
				Plugin:   desc.Dir,
				Field:    "id",
				Message:  fmt.Sprintf("%v: %q is also declared by %s", ErrDuplicateID, desc.ID, other),
				Severity: "error",
			})
			continue
		}
		seen[desc.ID] = desc.Dir
	}

	repoFile := filepath.Join(b.opts.SourceDir, repository.ManifestFile)
	if _, err := repository.LoadRepoInfo(repoFile); err != nil {
		severity := "error"
		if errors.Is(err, repository.ErrMissingRepoKey) {
			severity = "warning"
		}
		issues = append(issues, plugins.ValidationIssue{
			Plugin:   repository.ManifestFile,
			Field:    repository.RepoKey,
			Message:  err.Error(),
			Severity: severity,
		})
	}

	return &CheckResult{Descriptors: descriptors, Issues: issues}, nil
}

// SourceIDs returns the plugin ids declared by the source tree, skipping
// directories whose descriptor cannot be loaded
func (b *Builder) SourceIDs() (map[string]bool, error) {
	names, err := fsutil.ListSubdirs(b.opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin sources: %w", err)
	}

	ids := make(map[string]bool, len(names))
	for _, name := range names {
		desc, err := plugins.LoadDescriptorFromDir(filepath.Join(b.opts.SourceDir, name))
		if err != nil {
			b.log.WithField("plugin", name).WithError(err).Debug("Skipping unreadable descriptor")
			continue
		}
		ids[desc.ID] = true
	}
	return ids, nil
}
