package models

// RecommendationRequest is the pipeline input for one shuffle.
type RecommendationRequest struct {
	RequestID        string
	CollectiveID     string
	RequestingUserID string
	MemberIDs        []string
	Moods            []Mood
	Audience         Audience
	MaxRuntime       int // minutes, 0 = no cap
	EraFrom          int // year, 0 = open
	EraTo            int
	Providers        []int
	Region           string
	Session          ShuffleSession
	AdvisoryLimits   map[AdvisoryCategory]Severity
	IncludeReasoning bool
}

// HasMood reports whether m is selected.
func (r RecommendationRequest) HasMood(m Mood) bool {
	return ContainsMood(r.Moods, m)
}

// ResultStatus distinguishes a full result from a short or empty one.
type ResultStatus string

const (
	ResultComplete ResultStatus = "complete"
	ResultPartial  ResultStatus = "partial"
	ResultEmpty    ResultStatus = "empty"
)

// Recommendation is one returned movie.
type Recommendation struct {
	MovieID       int64          `json:"movieId"`
	Title         string         `json:"title"`
	GroupFitScore float64        `json:"groupFitScore"`
	Breakdown     ScoreBreakdown `json:"scoreBreakdown"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Pairing       string         `json:"pairing,omitempty"`
}

// RecommendationResult is the pipeline output.
type RecommendationResult struct {
	Status            ResultStatus     `json:"status"`
	Recommendations   []Recommendation `json:"recommendations"`
	Session           ShuffleSession   `json:"session"`
	PoolSize          int              `json:"poolSize"`
	EmergencyFallback bool             `json:"emergencyFallback"`
	FailedBranches    []string         `json:"failedBranches,omitempty"`
}

// StatusFor classifies a result size against the target size.
func StatusFor(returned, target int) ResultStatus {
	switch {
	case returned == 0:
		return ResultEmpty
	case returned < target:
		return ResultPartial
	default:
		return ResultComplete
	}
}
