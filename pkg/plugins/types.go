package plugins

import "encoding/json"

const (
	// InfoFile is the per-plugin metadata file name, in both the source and destination trees
	InfoFile = "info.json"
)

// RequiredFields lists the info.json keys every plugin must define, in check order
var RequiredFields = []string{"id", "name", "author", "version", "tags", "description"}

// Descriptor describes plugin metadata loaded from info.json
type Descriptor struct {
	ID          string   `json:"id"`          // Unique ID, also the archive and destination directory name
	Name        string   `json:"name"`        // Display name
	Author      string   `json:"author"`      // Author name
	Version     string   `json:"version"`     // Version used in the archive name
	Tags        []string `json:"tags"`        // Free-form tags
	Description string   `json:"description"` // Short description

	// Dir is the name of the plugin's source directory
	Dir string `json:"-"`

	// Path is the file the descriptor was read from
	Path string `json:"-"`

	// Raw is the info.json document exactly as read; additional keys pass through
	Raw json.RawMessage `json:"-"`
}

// ValidationIssue represents a single descriptor validation finding
type ValidationIssue struct {
	Plugin   string `json:"plugin"`
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}
