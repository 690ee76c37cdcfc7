package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/repobuilder/pkg/fsutil"
)

// ReservedIDs are names the destination root already uses for its own files.
var ReservedIDs = []string{"repo.json"}

// ReadDocument reads a metadata file and checks that it holds a single JSON object.
// The returned bytes are the file contents, unmodified.
func ReadDocument(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedMetadataError{Path: path, Err: err}
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, &MalformedMetadataError{Path: path, Err: err}
	}
	if object == nil {
		return nil, &MalformedMetadataError{Path: path, Err: errors.New("document must be a JSON object")}
	}

	return json.RawMessage(bytes.TrimSpace(data)), nil
}

// LoadDescriptor loads and validates a plugin descriptor from an info.json file.
// The plugin name used in errors is the name of the directory holding the file.
func LoadDescriptor(path string) (*Descriptor, error) {
	raw, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Base(filepath.Dir(path))
	return ParseDescriptor(dir, path, raw)
}

// LoadDescriptorFromDir loads a plugin descriptor from a directory (looks for info.json)
func LoadDescriptorFromDir(dir string) (*Descriptor, error) {
	return LoadDescriptor(filepath.Join(dir, InfoFile))
}

// ParseDescriptor decodes raw info.json content. Every required key must be
// present, id and version must be scalars, and id must be usable as a single
// path component.
func ParseDescriptor(dir, path string, raw json.RawMessage) (*Descriptor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &MalformedMetadataError{Path: path, Err: err}
	}

	for _, field := range RequiredFields {
		if _, ok := fields[field]; !ok {
			return nil, &MissingFieldError{Plugin: dir, Path: path, Field: field}
		}
	}

	desc := &Descriptor{
		Dir:  dir,
		Path: path,
		Raw:  raw,
	}

	var err error
	if desc.ID, err = scalarString(fields["id"]); err != nil {
		return nil, &SchemaError{Plugin: dir, Field: "id", Err: err}
	}
	if desc.Version, err = scalarString(fields["version"]); err != nil {
		return nil, &SchemaError{Plugin: dir, Field: "version", Err: err}
	}
	// display-only fields are decoded leniently, strict mode checks their types
	desc.Name, _ = scalarString(fields["name"])
	desc.Author, _ = scalarString(fields["author"])
	desc.Description, _ = scalarString(fields["description"])
	_ = json.Unmarshal(fields["tags"], &desc.Tags)

	if err := ValidateID(desc.ID); err != nil {
		return nil, &SchemaError{Plugin: dir, Field: "id", Err: err}
	}
	if err := ValidateVersionComponent(desc.Version); err != nil {
		return nil, &SchemaError{Plugin: dir, Field: "version", Err: err}
	}

	return desc, nil
}

// ValidateID rejects ids that cannot be used as a destination directory name.
// The destination is scanned like the source, so an id containing the VCS
// marker would be published but never listed in the manifest.
func ValidateID(id string) error {
	switch {
	case id == "":
		return errors.New("id must not be empty")
	case id == "." || id == "..":
		return fmt.Errorf("id %q is not a valid directory name", id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("id %q must not contain path separators", id)
	case strings.Contains(id, fsutil.VCSMarker):
		return fmt.Errorf("id %q must not contain %q", id, fsutil.VCSMarker)
	}
	for _, reserved := range ReservedIDs {
		if strings.EqualFold(id, reserved) {
			return fmt.Errorf("id %q is reserved for the repository manifest", id)
		}
	}
	return nil
}

// ValidateVersionComponent rejects versions that would escape the archive name
func ValidateVersionComponent(version string) error {
	if strings.ContainsAny(version, `/\`) {
		return fmt.Errorf("version %q must not contain path separators", version)
	}
	return nil
}

// scalarString returns a JSON string's value, or the literal text of a JSON
// number (so "version": 1.0 keeps its spelling). null becomes "".
func scalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("expected a string, got %s", trimmed)
	}
}
