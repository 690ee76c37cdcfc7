package plugins

import (
	"errors"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Validator loads and validates every descriptor of a source tree without writing anything
type Validator struct {
	strict bool
	logger *logrus.Logger
}

// NewValidator creates a new descriptor validator
func NewValidator(strict bool, logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{strict: strict, logger: logger}
}

// Load loads the descriptor in pluginDir, applying strict checks when enabled
func (v *Validator) Load(pluginDir string) (*Descriptor, error) {
	desc, err := LoadDescriptorFromDir(pluginDir)
	if err != nil {
		return nil, err
	}

	if v.strict {
		if err := ValidateStrict(desc); err != nil {
			return nil, err
		}
	}

	return desc, nil
}

// ValidateDirs validates the descriptors of the named plugin directories under
// sourceDir and returns one issue per failing plugin.
func (v *Validator) ValidateDirs(sourceDir string, names []string) ([]*Descriptor, []ValidationIssue) {
	var descriptors []*Descriptor
	var issues []ValidationIssue

	for _, name := range names {
		desc, err := v.Load(filepath.Join(sourceDir, name))
		if err != nil {
			v.logger.WithField("plugin", name).WithError(err).Debug("Descriptor validation failed")
			issues = append(issues, IssueFromError(name, err))
			continue
		}
		descriptors = append(descriptors, desc)
	}

	return descriptors, issues
}

// IssueFromError converts a descriptor error into a ValidationIssue
func IssueFromError(plugin string, err error) ValidationIssue {
	issue := ValidationIssue{
		Plugin:   plugin,
		Message:  err.Error(),
		Severity: "error",
	}

	var missing *MissingFieldError
	var schemaErr *SchemaError
	switch {
	case errors.As(err, &missing):
		issue.Field = missing.Field
	case errors.As(err, &schemaErr):
		issue.Field = schemaErr.Field
	}

	return issue
}
