package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

//go:embed manifest.schema.json
var manifestSchema []byte

const schemaURL = "manifest.schema.json"

// Validator checks raw package.json bytes in three passes: well formedness, the
// structural JSON schema, then the semantic rules on the decoded manifest. All
// problems of the failing pass are reported together.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaURL, bytes.NewReader(manifestSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: schema}, nil
}

// MustNewValidator panics if the embedded schema does not compile.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns the decoded manifest, or ErrInvalidManifest, ErrManifestValidationFailed
// with a ValidationReport as details, or ErrMissingDependency.
func (mv *Validator) Validate(data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidManifest
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrInvalidManifest.Err(err)
	}

	report := ValidationReport{}
	if err := mv.schema.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, ErrManifestValidationFailed.Err(err)
		}
		collectSchemaErrors(ve, report)
		return nil, ErrManifestValidationFailed.WithDetails(report)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrInvalidManifest.Err(err)
	}
	if err := V().Struct(&m); err != nil {
		ves, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, ErrManifestValidationFailed.Err(err)
		}
		for _, fe := range ves {
			report.Add(fieldPath(fe), validationMessage(fe))
		}
	}
	if api, ok := m.Dependencies[APIPackage]; ok && !IsSemverRange(api) {
		report.Add("dependencies/"+APIPackage, "must be a semantic version or range")
	}
	if len(report) > 0 {
		return nil, ErrManifestValidationFailed.WithDetails(report)
	}

	if m.APIVersion() == "" {
		return nil, ErrMissingDependency
	}
	return &m, nil
}

var quotedNames = regexp.MustCompile(`['"]([^'"]+)['"]`)

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}

// collectSchemaErrors flattens the leaves of a schema validation error into report.
func collectSchemaErrors(ve *jsonschema.ValidationError, report ValidationReport) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if strings.HasSuffix(ve.KeywordLocation, "/required") {
			if missing := quotedNames.FindAllStringSubmatch(ve.Message, -1); len(missing) > 0 {
				for _, m := range missing {
					report.Add(joinPath(loc, m[1]), "is required")
				}
				return
			}
		}
		report.Add(loc, ve.Message)
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, report)
	}
}
