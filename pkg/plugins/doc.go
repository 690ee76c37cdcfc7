// Package plugins loads and validates plugin descriptors (info.json files).
//
// # Overview
//
// Every plugin in a source tree is a directory holding an info.json file with
// six required keys: id, name, author, version, tags and description. Any other
// keys are kept as-is; Descriptor.Raw holds the document exactly as read so it
// can be published unmodified in the repository manifest.
//
// # Errors
//
// MissingFieldError: a required key is absent
// MalformedMetadataError: the file is missing or is not a JSON object
// SchemaError: the id is unusable as a directory name, or strict validation failed
//
// # Strict Validation
//
// ValidateStrict checks the descriptor against an embedded JSON schema (field
// types, id character set) and requires a semantic version:
//
//	desc, err := plugins.LoadDescriptorFromDir("source/hello-world")
//	if err != nil {
//		return err
//	}
//	if err := plugins.ValidateStrict(desc); err != nil {
//		return err
//	}
//
// # Related Packages
//
//   - pkg/builder: Packages each plugin
//   - pkg/repository: Aggregates descriptors into the manifest
package plugins
