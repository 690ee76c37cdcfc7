package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinummonkey/repobuilder/pkg/artifacts"
	"github.com/platinummonkey/repobuilder/pkg/plugins"
)

// Entry is a manifest plugin entry joined with what is on disk
type Entry struct {
	ID       string
	Name     string
	Version  string
	Author   string
	Tags     []string
	Archives []string // published versions, oldest first
	Orphaned bool     // no source directory declares this id
}

// Entries decodes the manifest's plugin list. sourceIDs holds the ids declared
// by the current source tree; a nil set disables orphan detection.
func Entries(m *Manifest, destDir string, sourceIDs map[string]bool) ([]Entry, error) {
	entries := make([]Entry, 0, len(m.Plugins))
	for i, raw := range m.Plugins {
		desc, err := plugins.ParseDescriptor("", filepath.Join(destDir, ManifestFile), raw)
		if err != nil {
			return nil, &plugins.MalformedMetadataError{
				Path: filepath.Join(destDir, ManifestFile),
				Err:  fmt.Errorf("plugin entry %d: %w", i, err),
			}
		}

		versions, err := ArchiveVersions(destDir, desc.ID)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			ID:       desc.ID,
			Name:     desc.Name,
			Version:  desc.Version,
			Author:   desc.Author,
			Tags:     desc.Tags,
			Archives: versions,
			Orphaned: sourceIDs != nil && !sourceIDs[desc.ID],
		})
	}
	return entries, nil
}

// ArchiveVersions lists the versions that have an archive under <destDir>/<id>
func ArchiveVersions(destDir, id string) ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(destDir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list archives for %s: %w", id, err)
	}

	prefix := id + "-"
	versions := []string{}
	for _, entry := range dirEntries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, artifacts.Extension) {
			continue
		}
		versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(name, prefix), artifacts.Extension))
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return plugins.CompareVersions(versions[i], versions[j]) < 0
	})
	return versions, nil
}
