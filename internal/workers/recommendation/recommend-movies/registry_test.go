package recommendmovies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movienight-workers/internal/common/validation"
)

func TestActivity(t *testing.T) {
	activity, err := Activity()
	require.NoError(t, err)

	assert.Equal(t, TaskType, activity.ID)
	assert.Equal(t, TaskType, activity.TaskType)
	assert.Equal(t, "20s", activity.Timeout)
	assert.Equal(t, []string{"INVALID_RECOMMENDATION_REQUEST", "RECOMMENDATION_FAILED"}, activity.ErrorCodes)
	assert.Equal(t, []string{"movie-night-shuffle"}, activity.Workflows)
	assert.ElementsMatch(t,
		[]interface{}{"collectiveId", "requestingUserId", "memberIds"},
		activity.InputSchema["required"])
	assert.Contains(t, activity.OutputSchema["properties"], "recommendations")
}

func TestGetOutputSchema_AcceptsHandlerOutput(t *testing.T) {
	output := map[string]interface{}{
		"requestId": "req-1",
		"status":    "partial",
		"recommendations": []interface{}{
			map[string]interface{}{
				"movieId":        550,
				"title":          "Fight Club",
				"groupFitScore":  71.5,
				"scoreBreakdown": map[string]interface{}{"total": 71.5},
			},
		},
		"session":           map[string]interface{}{"shownIds": []interface{}{550}, "page": 1},
		"poolSize":          9,
		"emergencyFallback": true,
	}

	result := validation.ValidateInput(output, GetOutputSchema())
	assert.True(t, result.Valid, "errors: %v", result.GetErrorMessages())
}
