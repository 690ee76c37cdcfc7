package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/platinummonkey/repobuilder/pkg/fsutil"
	"github.com/platinummonkey/repobuilder/pkg/plugins"
)

const (
	// ManifestFile is the repository metadata file name, both as input in the
	// source tree and as the generated manifest in the destination tree
	ManifestFile = "repo.json"

	// RepoKey is the top-level key copied from the source repo.json
	RepoKey = "repo"
)

// Manifest is the generated repository index
type Manifest struct {
	Repo    json.RawMessage   `json:"repo"`
	Plugins []json.RawMessage `json:"plugins"`
}

// NewManifest creates an empty manifest. Plugins serialize as [] rather than null.
func NewManifest(repo json.RawMessage) *Manifest {
	return &Manifest{
		Repo:    repo,
		Plugins: []json.RawMessage{},
	}
}

// Encode writes the manifest pretty-printed with four-space indentation
func (m *Manifest) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// Write replaces the manifest at path. The previous manifest stays intact
// until the new one is fully written.
func (m *Manifest) Write(path string) error {
	return fsutil.WriteFileAtomic(path, m.Encode)
}

// Load reads a manifest written by Write
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &plugins.MalformedMetadataError{Path: path, Err: err}
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, &plugins.MalformedMetadataError{Path: path, Err: err}
	}
	if m.Plugins == nil {
		m.Plugins = []json.RawMessage{}
	}
	if bytes.Equal(bytes.TrimSpace(m.Repo), []byte("null")) {
		m.Repo = nil
	}

	return m, nil
}

// ErrMissingRepoKey reports a source repo.json without a "repo" key
var ErrMissingRepoKey = errors.New(`repo.json has no "repo" key`)

// LoadRepoInfo reads the "repo" value of a source repo.json. A document
// without the key yields a nil value and ErrMissingRepoKey, which callers
// treat as a warning.
func LoadRepoInfo(path string) (json.RawMessage, error) {
	doc, err := plugins.ReadDocument(path)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, &plugins.MalformedMetadataError{Path: path, Err: err}
	}

	repo, ok := fields[RepoKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRepoKey, path)
	}
	return repo, nil
}
