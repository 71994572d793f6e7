package recommendmovies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "movienight-workers/internal/common/errors"
	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/common/metrics"
	"movienight-workers/internal/common/observability"
	"movienight-workers/internal/common/validation"
	"movienight-workers/internal/models"
)

const TaskType = "recommend-movies"

// Recommender runs the recommendation pipeline for one request.
type Recommender interface {
	Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResult, error)
}

type Handler struct {
	config      *Config
	recommender Recommender
	errHandler  *apperrors.ErrorHandler
	obs         *observability.Observability
	logger      logger.Logger
	newID       func() string
}

type HandlerOptions struct {
	Config        *Config
	Recommender   Recommender
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Recommender == nil {
		return nil, fmt.Errorf("%s: recommender is required", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json", "")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:      cfg,
		recommender: opts.Recommender,
		errHandler:  apperrors.NewErrorHandler(log),
		obs:         opts.Observability,
		logger:      log,
		newID:       uuid.NewString,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err, start)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, "completed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "completed")
	h.obs.RecordRecommendations(ctx, len(output.Recommendations), string(output.Status))
}

// parseInput validates the raw variables against the input schema, then
// decodes them into Input.
func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("failed to parse job variables: %v", err))
	}

	if result := validation.ValidateInput(variables, GetInputSchema()); !result.Valid {
		return nil, apperrors.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("failed to decode job variables: %v", err))
	}
	return &input, nil
}

// Execute converts the input, runs the pipeline and shapes the output. An
// empty or short result is a normal completion.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input cannot be nil")
	}

	req, err := h.toRequest(input)
	if err != nil {
		return nil, err
	}

	result, err := h.recommender.Recommend(ctx, req)
	if err != nil {
		if _, ok := apperrors.AsStandardError(err); ok {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewRecommendationTimeoutError(err)
		}
		return nil, apperrors.NewRecommendationFailedError(err)
	}

	recs := result.Recommendations
	if recs == nil {
		recs = []models.Recommendation{}
	}

	h.logger.Info("recommendations ready", map[string]interface{}{
		"requestId":         req.RequestID,
		"collectiveId":      req.CollectiveID,
		"status":            result.Status,
		"returned":          len(recs),
		"poolSize":          result.PoolSize,
		"emergencyFallback": result.EmergencyFallback,
	})

	return &Output{
		RequestID:         req.RequestID,
		Status:            result.Status,
		Recommendations:   recs,
		Session:           result.Session,
		PoolSize:          result.PoolSize,
		EmergencyFallback: result.EmergencyFallback,
		FailedBranches:    result.FailedBranches,
	}, nil
}

func (h *Handler) toRequest(input *Input) (models.RecommendationRequest, error) {
	var req models.RecommendationRequest

	if strings.TrimSpace(input.CollectiveID) == "" {
		return req, apperrors.NewInvalidRequestError("collectiveId is required")
	}
	if len(input.MemberIDs) == 0 {
		return req, apperrors.NewInvalidRequestError("memberIds must contain at least one member")
	}

	audience, err := models.ParseAudience(input.Audience)
	if err != nil {
		return req, apperrors.NewInvalidRequestError(err.Error())
	}

	moods := make([]models.Mood, 0, len(input.Moods))
	for _, s := range input.Moods {
		m, err := models.ParseMood(s)
		if err != nil {
			return req, apperrors.NewInvalidRequestError(err.Error())
		}
		if !models.ContainsMood(moods, m) {
			moods = append(moods, m)
		}
	}

	if input.MaxRuntime < 0 {
		return req, apperrors.NewInvalidRequestError("maxRuntime must not be negative")
	}
	if input.EraFrom > 0 && input.EraTo > 0 && input.EraFrom > input.EraTo {
		return req, apperrors.NewInvalidRequestError(fmt.Sprintf("eraFrom %d is after eraTo %d", input.EraFrom, input.EraTo))
	}
	if input.Session.Page < 0 {
		return req, apperrors.NewInvalidRequestError("session.page must not be negative")
	}

	var limits map[models.AdvisoryCategory]models.Severity
	if len(input.AdvisoryLimits) > 0 {
		limits = make(map[models.AdvisoryCategory]models.Severity, len(input.AdvisoryLimits))
		for cat, s := range input.AdvisoryLimits {
			if !knownCategory(cat) {
				return req, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown advisory category %q", cat))
			}
			sev, err := models.ParseSeverity(s)
			if err != nil {
				return req, apperrors.NewInvalidRequestError(err.Error())
			}
			limits[models.AdvisoryCategory(cat)] = sev
		}
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = h.newID()
	}

	return models.RecommendationRequest{
		RequestID:        requestID,
		CollectiveID:     input.CollectiveID,
		RequestingUserID: input.RequestingUserID,
		MemberIDs:        input.MemberIDs,
		Moods:            moods,
		Audience:         audience,
		MaxRuntime:       input.MaxRuntime,
		EraFrom:          input.EraFrom,
		EraTo:            input.EraTo,
		Providers:        input.Providers,
		Region:           input.Region,
		Session:          input.Session,
		AdvisoryLimits:   limits,
		IncludeReasoning: input.IncludeReasoning,
	}, nil
}

func knownCategory(s string) bool {
	for _, c := range models.AdvisoryCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"requestId": output.RequestID,
		"status":    output.Status,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, "failed")
	h.obs.RecordJobDuration(ctx, time.Since(start), "failed")

	h.errHandler.HandleJobError(context.Background(), client, job, stdErr)
}
