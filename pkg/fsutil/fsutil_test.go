package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "src.txt")
	dst := filepath.Join(tmpDir, "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(dst, []byte("old content that is longer"), 0644))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCopyFile_MissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	err := CopyFile(filepath.Join(tmpDir, "missing"), filepath.Join(tmpDir, "dst"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open source file")
}

func TestWriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.json")

	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write([]byte("{}"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWriteFileAtomic_FailureLeavesTargetUntouched(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	boom := errors.New("boom")
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	ok, err := Exists(tmpDir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(filepath.Join(tmpDir, "nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListSubdirs(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", ".git", "plugin.git-backup", "mid"} {
		require.NoError(t, os.Mkdir(filepath.Join(tmpDir, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "repo.json"), []byte("{}"), 0644))

	names, err := ListSubdirs(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestListSubdirs_MissingDir(t *testing.T) {
	_, err := ListSubdirs(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestValidatePathWithinBoundary(t *testing.T) {
	tests := []struct {
		name     string
		boundary string
		target   string
		wantErr  bool
	}{
		{"same path", "/srv/repo", "/srv/repo", false},
		{"child", "/srv/repo", "/srv/repo/plugin", false},
		{"sibling", "/srv/repo", "/srv/source", true},
		{"traversal", "/srv/repo", "/srv/repo/../../etc", true},
		{"dotdot prefixed name", "/srv/repo", "/srv/repo/..hidden", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinBoundary(tt.boundary, tt.target)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, !tt.wantErr, IsWithin(tt.boundary, tt.target))
		})
	}
}
