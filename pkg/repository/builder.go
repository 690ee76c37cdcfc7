package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"github.com/platinummonkey/repobuilder/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// ManifestBuilder regenerates repo.json from a destination tree
type ManifestBuilder struct {
	sourceDir string
	destDir   string
	log       *logrus.Logger
}

// NewManifestBuilder creates a manifest builder for a source/destination pair
func NewManifestBuilder(sourceDir, destDir string, log *logrus.Logger) *ManifestBuilder {
	if log == nil {
		log = logrus.New()
	}
	return &ManifestBuilder{
		sourceDir: sourceDir,
		destDir:   destDir,
		log:       log,
	}
}

// Path returns where the manifest is written
func (b *ManifestBuilder) Path() string {
	return filepath.Join(b.destDir, ManifestFile)
}

// Build assembles the manifest without writing it
func (b *ManifestBuilder) Build() (*Manifest, error) {
	repo, err := LoadRepoInfo(filepath.Join(b.sourceDir, ManifestFile))
	if err != nil {
		if !errors.Is(err, ErrMissingRepoKey) {
			return nil, err
		}
		b.log.Warnf("%v; the manifest repo value will be null", err)
	}

	m := NewManifest(repo)
	entries, err := ScanPublished(b.destDir)
	if err != nil {
		return nil, err
	}
	m.Plugins = append(m.Plugins, entries...)

	return m, nil
}

// Generate builds the manifest and writes it, replacing any previous one
func (b *ManifestBuilder) Generate() (*Manifest, error) {
	m, err := b.Build()
	if err != nil {
		return nil, err
	}

	path := b.Path()
	b.log.Infof("Writing %s with %d plugin(s)", path, len(m.Plugins))
	if err := m.Write(path); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return m, nil
}

// ScanPublished returns the info.json documents of every published plugin
// directory under destDir, in directory name order
func ScanPublished(destDir string) ([]json.RawMessage, error) {
	names, err := fsutil.ListSubdirs(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan destination %s: %w", destDir, err)
	}

	entries := make([]json.RawMessage, 0, len(names))
	for _, name := range names {
		doc, err := plugins.ReadDocument(filepath.Join(destDir, name, plugins.InfoFile))
		if err != nil {
			return nil, err
		}
		entries = append(entries, doc)
	}

	return entries, nil
}
