package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

func CompileSchema(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc (any JSON-marshalable Go value) against the schema.
func (s *Schema) Validate(doc interface{}) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldOf(e),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// fieldOf reports the offending property; gojsonschema attributes
// "required" failures to the parent object.
func fieldOf(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok {
			return prop
		}
	}
	return strings.TrimPrefix(e.Field(), "(root).")
}

// FieldMessages keeps the first message per field.
func (vr *ValidationResult) FieldMessages() map[string]string {
	out := make(map[string]string, len(vr.Errors))
	for _, err := range vr.Errors {
		if _, exists := out[err.Field]; !exists {
			out[err.Field] = err.Message
		}
	}
	return out
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

var (
	emailPattern     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	leadEmailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	leadPhonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateLeadEmail is the permissive address check used by the contact form.
func ValidateLeadEmail(email string) bool {
	return leadEmailPattern.MatchString(email)
}

// ValidateLeadPhone accepts an optional leading '+', digits, spaces, hyphens
// and parentheses, and rejects input that is blank after trimming.
func ValidateLeadPhone(phone string) bool {
	if strings.TrimSpace(phone) == "" {
		return false
	}
	return leadPhonePattern.MatchString(phone)
}
