package artifacts

import (
	"fmt"
	"path/filepath"
)

// Extension is the archive file extension
const Extension = ".zip"

// CreateRequest represents a request to archive a plugin directory
type CreateRequest struct {
	SourceDir   string // plugin source directory, walked recursively
	ArchivePath string // final archive location
}

// CreateResult represents the result of archiving a plugin directory
type CreateResult struct {
	ArchivePath string
	Entries     []string // archive-internal names, in write order
	Size        int64    // uncompressed bytes
	Compressed  int64    // archive file size
}

// ArchiveName returns the archive file name for a plugin version: "<id>-<version>.zip"
func ArchiveName(id, version string) string {
	return fmt.Sprintf("%s-%s%s", id, version, Extension)
}

// ArchivePath returns "<destDir>/<id>/<id>-<version>.zip"
func ArchivePath(destDir, id, version string) string {
	return filepath.Join(destDir, id, ArchiveName(id, version))
}
