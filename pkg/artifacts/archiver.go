package artifacts

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"github.com/sirupsen/logrus"
)

// Archiver writes plugin directories into DEFLATE-compressed zip archives
type Archiver struct {
	log *logrus.Logger
}

// NewArchiver creates a new archiver
func NewArchiver(log *logrus.Logger) *Archiver {
	if log == nil {
		log = logrus.New()
	}
	return &Archiver{log: log}
}

// Create archives every regular file under req.SourceDir into req.ArchivePath.
// Entry names are relative to SourceDir with forward slashes, in lexical walk
// order. An existing archive is never replaced: ErrArchiveExists is returned
// instead. The archive only appears at ArchivePath once it is complete.
func (a *Archiver) Create(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	if req == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}

	info, err := os.Stat(req.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", req.SourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, req.SourceDir)
	}

	exists, err := fsutil.Exists(req.ArchivePath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrArchiveExists, req.ArchivePath)
	}

	if err := os.MkdirAll(filepath.Dir(req.ArchivePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	result := &CreateResult{ArchivePath: req.ArchivePath}

	err = fsutil.WriteFileAtomic(req.ArchivePath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		if err := a.addTree(ctx, zw, req.SourceDir, result); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	if st, err := os.Stat(req.ArchivePath); err == nil {
		result.Compressed = st.Size()
	}

	return result, nil
}

// addTree walks root and writes each regular file into zw
func (a *Archiver) addTree(ctx context.Context, zw *zip.Writer, root string, result *CreateResult) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		// file symlinks are archived as the file they point to; WalkDir does
		// not descend into symlinked directories, so those are left out
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %q: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			a.log.Debugf("Skipping %s: not a regular file (%s)", path, info.Mode().Type())
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		name := filepath.ToSlash(relPath)

		a.log.Debugf("Zipping: %s >>> %s", path, name)

		if err := addFile(zw, path, name, info); err != nil {
			return err
		}

		result.Entries = append(result.Entries, name)
		result.Size += info.Size()
		return nil
	})
}

// addFile writes a single file entry
func addFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header for %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}

// ReadEntries lists the entry names of an existing archive
func ReadEntries(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
