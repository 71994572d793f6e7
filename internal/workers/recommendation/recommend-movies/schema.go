package recommendmovies

import (
	"movienight-workers/internal/common/validation"
	"movienight-workers/internal/models"
)

func moodNames() []string {
	out := make([]string, len(models.AllMoods))
	for i, m := range models.AllMoods {
		out[i] = string(m)
	}
	return out
}

// GetInputSchema describes the recommend-movies job variables.
func GetInputSchema() validation.JSONSchema {
	severities := []string{"none", "mild", "moderate", "severe"}
	limits := make(map[string]validation.Property, len(models.AdvisoryCategories))
	for _, cat := range models.AdvisoryCategories {
		limits[string(cat)] = validation.Property{Type: "string", Enum: severities}
	}

	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"collectiveId", "requestingUserId", "memberIds"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"requestId": {
				Type:      "string",
				MaxLength: validation.Int(64),
			},
			"collectiveId": {
				Type:        "string",
				Description: "Collective the shuffle runs for",
				MinLength:   validation.Int(1),
			},
			"requestingUserId": {
				Type:      "string",
				MinLength: validation.Int(1),
			},
			"memberIds": {
				Type:        "array",
				Description: "Members watching together",
				MinItems:    validation.Int(1),
				UniqueItems: true,
				Items:       &validation.Property{Type: "string", MinLength: validation.Int(1)},
			},
			"moods": {
				Type:        "array",
				UniqueItems: true,
				Items:       &validation.Property{Type: "string", Enum: moodNames()},
			},
			"audience": {
				Type: "string",
				Enum: []string{string(models.AudienceAnyone), string(models.AudienceTeens), string(models.AudienceAdults)},
			},
			"maxRuntime": {
				Type:        "integer",
				Description: "Runtime ceiling in minutes, 0 for none",
				Minimum:     validation.Float(0),
				Maximum:     validation.Float(600),
			},
			"eraFrom": {
				Type:    "integer",
				Minimum: validation.Float(0),
				Maximum: validation.Float(2100),
			},
			"eraTo": {
				Type:    "integer",
				Minimum: validation.Float(0),
				Maximum: validation.Float(2100),
			},
			"providers": {
				Type:  "array",
				Items: &validation.Property{Type: "integer", Minimum: validation.Float(1)},
			},
			"region": {
				Type:    "string",
				Pattern: strPtr("^[A-Z]{2}$"),
			},
			"session": {
				Type: "object",
				Properties: map[string]validation.Property{
					"shownIds": {Type: "array", Items: &validation.Property{Type: "integer"}},
					"page":     {Type: "integer", Minimum: validation.Float(0)},
				},
			},
			"advisoryLimits": {
				Type:                 "object",
				Properties:           limits,
				AdditionalProperties: validation.Bool(false),
			},
			"includeReasoning": {
				Type: "boolean",
			},
		},
	}
}

func strPtr(s string) *string { return &s }
