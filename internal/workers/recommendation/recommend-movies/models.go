package recommendmovies

import "movienight-workers/internal/models"

// Input is the job variable set read by the worker. Unknown process variables
// are ignored.
type Input struct {
	RequestID        string                `json:"requestId,omitempty"`
	CollectiveID     string                `json:"collectiveId"`
	RequestingUserID string                `json:"requestingUserId"`
	MemberIDs        []string              `json:"memberIds"`
	Moods            []string              `json:"moods,omitempty"`
	Audience         string                `json:"audience,omitempty"`
	MaxRuntime       int                   `json:"maxRuntime,omitempty"`
	EraFrom          int                   `json:"eraFrom,omitempty"`
	EraTo            int                   `json:"eraTo,omitempty"`
	Providers        []int                 `json:"providers,omitempty"`
	Region           string                `json:"region,omitempty"`
	Session          models.ShuffleSession `json:"session"`
	AdvisoryLimits   map[string]string     `json:"advisoryLimits,omitempty"`
	IncludeReasoning bool                  `json:"includeReasoning,omitempty"`
}

type Output struct {
	RequestID         string                  `json:"requestId"`
	Status            models.ResultStatus     `json:"status"`
	Recommendations   []models.Recommendation `json:"recommendations"`
	Session           models.ShuffleSession   `json:"session"`
	PoolSize          int                     `json:"poolSize"`
	EmergencyFallback bool                    `json:"emergencyFallback"`
	FailedBranches    []string                `json:"failedBranches,omitempty"`
}
