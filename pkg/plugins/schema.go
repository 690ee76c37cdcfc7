package plugins

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// InfoSchema is the embedded JSON schema used by strict validation.
//
//go:embed resources/info.schema.json
var InfoSchema []byte

// GetInfoSchema compiles the JSON schema once and caches it for reuse.
var GetInfoSchema = sync.OnceValues[*jsonschema.Schema, error](func() (*jsonschema.Schema, error) {
	return compileSchema(InfoSchema)
})

func compileSchema(data []byte) (*jsonschema.Schema, error) {
	const schemaFile = "resources/info.schema.json"
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	if err := c.AddResource(schemaFile, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	sch, err := c.Compile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

// ValidateStrict checks a loaded descriptor against the info.json schema and
// requires its version to be a semantic version.
func ValidateStrict(desc *Descriptor) error {
	schema, err := GetInfoSchema()
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(desc.Raw))
	if err != nil {
		return &MalformedMetadataError{Path: desc.Path, Err: err}
	}

	if err := schema.Validate(doc); err != nil {
		return &SchemaError{Plugin: desc.Dir, Reason: "schema validation failed", Err: err}
	}

	if _, err := semver.NewVersion(desc.Version); err != nil {
		return &SchemaError{Plugin: desc.Dir, Field: "version", Reason: fmt.Sprintf("%q is not a semantic version", desc.Version), Err: err}
	}

	return nil
}

// CompareVersions orders two version strings. Semantic versions compare by
// precedence; anything unparseable sorts before them and lexically among itself.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA != nil && errB == nil:
		return -1
	case errA == nil && errB != nil:
		return 1
	}

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
