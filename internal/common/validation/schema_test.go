package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["name", "category"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"category": {"type": "string", "enum": ["Retail", "Other"]}
	}
}`

func TestSchemaValidate(t *testing.T) {
	s := MustCompileSchema(testSchema)

	tests := []struct {
		name       string
		doc        map[string]interface{}
		valid      bool
		wantFields []string
	}{
		{"valid", map[string]interface{}{"name": "Shop", "category": "Retail"}, true, nil},
		{"missing name", map[string]interface{}{"category": "Retail"}, false, []string{"name"}},
		{"bad enum", map[string]interface{}{"name": "Shop", "category": "Toys"}, false, []string{"category"}},
		{"empty name", map[string]interface{}{"name": "", "category": "Other"}, false, []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Validate(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			for _, f := range tt.wantFields {
				assert.True(t, res.HasErrors(f), "expected error on %s, got %+v", f, res.Errors)
				assert.Contains(t, res.FieldMessages(), f)
			}
		})
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(`{"type": 12}`)
	assert.Error(t, err)
}

func TestValidateLeadEmail(t *testing.T) {
	assert.True(t, ValidateLeadEmail("a@b.co"))
	assert.True(t, ValidateLeadEmail("first.last+tag@example.org"))
	assert.False(t, ValidateLeadEmail("not-an-email"))
	assert.False(t, ValidateLeadEmail("a@b"))
	assert.False(t, ValidateLeadEmail(""))
}

func TestValidateLeadPhone(t *testing.T) {
	for _, ok := range []string{"+1 (512) 555-0100", "9876543210", "12-34"} {
		assert.True(t, ValidateLeadPhone(ok), ok)
	}
	for _, bad := range []string{"", "   ", "call me", "+1 555 0100 ext. 4"} {
		assert.False(t, ValidateLeadPhone(bad), bad)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("owner@shop.com"))
	assert.False(t, ValidateEmail("owner@shop"))
}
