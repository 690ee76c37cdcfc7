package plugins

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor is returned when a descriptor is structurally valid JSON but unusable
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")
)

// MissingFieldError is returned when a required info.json key is absent
type MissingFieldError struct {
	Plugin string // source directory name
	Path   string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("plugin %q is missing required information %q in its info.json file (%s)", e.Plugin, e.Field, e.Path)
}

// MalformedMetadataError is returned when a metadata file is missing or is not valid JSON
type MalformedMetadataError struct {
	Path string
	Err  error
}

func (e *MalformedMetadataError) Error() string {
	return fmt.Sprintf("malformed metadata file %s: %v", e.Path, e.Err)
}

func (e *MalformedMetadataError) Unwrap() error {
	return e.Err
}

// SchemaError is returned when a descriptor has all required keys but a field
// value is unusable (unsafe id, wrong type, or a strict-mode schema violation)
type SchemaError struct {
	Plugin string
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("plugin %q has an invalid descriptor", e.Plugin)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidDescriptor, e.Err}
	}
	return []error{ErrInvalidDescriptor}
}
