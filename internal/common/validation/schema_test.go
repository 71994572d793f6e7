package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() JSONSchema {
	return JSONSchema{
		Type:     "object",
		Required: []string{"name", "tags"},
		Properties: map[string]Property{
			"name": {Type: "string", MinLength: Int(2)},
			"tags": {
				Type:        "array",
				MinItems:    Int(1),
				UniqueItems: true,
				Items:       &Property{Type: "string", Enum: []string{"a", "b"}},
			},
			"count": {Type: "integer", Minimum: Float(0), Maximum: Float(10)},
			"limits": {
				Type:                 "object",
				Properties:           map[string]Property{"x": {Type: "string"}},
				AdditionalProperties: Bool(false),
			},
		},
	}
}

func TestValidateInput_Valid(t *testing.T) {
	result := ValidateInput(map[string]interface{}{
		"name":   "ok",
		"tags":   []interface{}{"a", "b"},
		"count":  3,
		"limits": map[string]interface{}{"x": "y"},
	}, testSchema())

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInput_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
		field string
		code  string
	}{
		{"missing required", map[string]interface{}{"tags": []interface{}{"a"}}, "name", "REQUIRED_FIELD_MISSING"},
		{"too short", map[string]interface{}{"name": "x", "tags": []interface{}{"a"}}, "name", "MIN_LENGTH_VIOLATION"},
		{"empty array", map[string]interface{}{"name": "ok", "tags": []interface{}{}}, "tags", "ARRAY_LENGTH_VIOLATION"},
		{"enum item", map[string]interface{}{"name": "ok", "tags": []interface{}{"z"}}, "tags[0]", "INVALID_ENUM_VALUE"},
		{"duplicate item", map[string]interface{}{"name": "ok", "tags": []interface{}{"a", "a"}}, "tags", "DUPLICATE_ITEM"},
		{"wrong type", map[string]interface{}{"name": "ok", "tags": []interface{}{"a"}, "count": "3"}, "count", "INVALID_TYPE"},
		{"above maximum", map[string]interface{}{"name": "ok", "tags": []interface{}{"a"}, "count": 11}, "count", "MAXIMUM_VIOLATION"},
		{"extra nested", map[string]interface{}{"name": "ok", "tags": []interface{}{"a"}, "limits": map[string]interface{}{"q": "1"}}, "limits", "EXTRA_FIELD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateInput(tt.input, testSchema())
			require.False(t, result.Valid)

			errs := result.GetErrorsForField(tt.field)
			require.NotEmpty(t, errs, "errors: %v", result.GetErrorMessages())
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidateInput_AdditionalRootPropertiesAllowed(t *testing.T) {
	schema := testSchema()
	schema.AdditionalProperties = true

	result := ValidateInput(map[string]interface{}{
		"name":    "ok",
		"tags":    []interface{}{"a"},
		"process": "extra",
	}, schema)
	assert.True(t, result.Valid)

	schema.AdditionalProperties = false
	result = ValidateInput(map[string]interface{}{
		"name":    "ok",
		"tags":    []interface{}{"a"},
		"process": "extra",
	}, schema)
	assert.False(t, result.Valid)
}

func TestValidationResult_Helpers(t *testing.T) {
	vr := &ValidationResult{Errors: []ValidationError{
		{Field: "a", Message: "bad"},
		{Field: "a.b", Message: "nested"},
		{Field: "c[0]", Message: "item"},
	}}

	assert.True(t, vr.HasErrors("a"))
	assert.False(t, vr.HasErrors("b"))
	assert.Len(t, vr.GetErrorsForField("a"), 2)
	assert.Len(t, vr.GetErrorsForField("c"), 1)
	assert.Equal(t, []string{"a: bad", "a.b: nested", "c[0]: item"}, vr.GetErrorMessages())
}
