package recommendmovies

import (
	"encoding/json"
	"sort"

	apperrors "movienight-workers/internal/common/errors"
	"movienight-workers/internal/common/validation"
	"movienight-workers/pkg/registry"
)

const (
	activityVersion = "1.0.0"
	processID       = "movie-night-shuffle"
)

// GetOutputSchema describes the variables the worker completes the job with.
func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"requestId", "status", "recommendations", "session"},
		Properties: map[string]validation.Property{
			"requestId": {Type: "string"},
			"status":    {Type: "string", Enum: []string{"complete", "partial", "empty"}},
			"recommendations": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"movieId", "title", "groupFitScore", "scoreBreakdown"},
					Properties: map[string]validation.Property{
						"movieId":        {Type: "integer"},
						"title":          {Type: "string"},
						"groupFitScore":  {Type: "number"},
						"scoreBreakdown": {Type: "object"},
						"reasoning":      {Type: "string"},
						"pairing":        {Type: "string"},
					},
				},
			},
			"session": {
				Type: "object",
				Properties: map[string]validation.Property{
					"shownIds": {Type: "array", Items: &validation.Property{Type: "integer"}},
					"page":     {Type: "integer", Minimum: validation.Float(0)},
				},
			},
			"poolSize":          {Type: "integer", Minimum: validation.Float(0)},
			"emergencyFallback": {Type: "boolean"},
			"failedBranches":    {Type: "array", Items: &validation.Property{Type: "string"}},
		},
	}
}

// Activity is the registry entry for this worker.
func Activity() (registry.Activity, error) {
	in, err := schemaMap(GetInputSchema())
	if err != nil {
		return registry.Activity{}, err
	}
	out, err := schemaMap(GetOutputSchema())
	if err != nil {
		return registry.Activity{}, err
	}

	return registry.Activity{
		ID:                   TaskType,
		DisplayName:          "Recommend Movies",
		Description:          "Builds a group preference profile, sources and scores candidates, and returns the top picks for a movie night shuffle.",
		Category:             "recommendation",
		Version:              activityVersion,
		TaskType:             TaskType,
		ImplementationStatus: "completed",
		InputSchema:          in,
		OutputSchema:         out,
		ErrorCodes:           bpmnErrorCodes(),
		Timeout:              DefaultConfig().Timeout.String(),
		Retries:              3,
		Workflows:            []string{processID},
		Tags:                 []string{"recommendation", "movies", "group"},
	}, nil
}

func schemaMap(schema validation.JSONSchema) (map[string]interface{}, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	err = json.Unmarshal(raw, &out)
	return out, err
}

// bpmnErrorCodes lists the distinct codes the worker can throw.
func bpmnErrorCodes() []string {
	seen := map[string]bool{}
	var codes []string
	for _, code := range apperrors.BPMNErrorMapping {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}
