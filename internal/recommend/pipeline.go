// Package recommend wires the recommendation stages into one request-scoped
// pipeline: profile, sourcing, pool assembly, scoring, mood gate, credits and
// final selection. Stages run sequentially; each fans out its own I/O.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "movienight-workers/internal/common/errors"
	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/common/metrics"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/mood"
	"movienight-workers/internal/recommend/profile"
	"movienight-workers/internal/recommend/scoring"
	"movienight-workers/internal/recommend/sourcing"
)

// ErrPipelineFailed marks the fatal outcome: neither the internal catalog nor
// any external source returned data.
var ErrPipelineFailed = errors.New("recommendation pipeline failed")

// Stage names used for spans, logs and metric labels.
const (
	StageProfile   = "profile"
	StageSourcing  = "sourcing"
	StageAssemble  = "assemble"
	StageEmergency = "emergency"
	StageScoring   = "scoring"
	StageMoodGate  = "mood_gate"
	StageCredits   = "credits"
	StageSelection = "selection"
)

type ProfileBuilder interface {
	Build(ctx context.Context, req models.RecommendationRequest) *profile.Result
}

type CandidateFetcher interface {
	Fetch(ctx context.Context, req models.RecommendationRequest, p *models.GroupPreferenceProfile) sourcing.Result
	Emergency(ctx context.Context, req models.RecommendationRequest) sourcing.Result
}

type PoolBuilder interface {
	Assemble(ctx context.Context, req models.RecommendationRequest, p *models.GroupPreferenceProfile, internal, external []models.Candidate) []models.Candidate
}

type CreditEnricher interface {
	Run(ctx context.Context, pool []models.ScoredCandidate, p *models.GroupPreferenceProfile, moods []models.Mood, session models.ShuffleSession) []models.ScoredCandidate
}

type Selector interface {
	Select(ctx context.Context, req models.RecommendationRequest, pool []models.ScoredCandidate) []models.Recommendation
}

// Stages groups the collaborators a Pipeline drives.
type Stages struct {
	Profiles  ProfileBuilder
	Sourcer   CandidateFetcher
	Assembler PoolBuilder
	Credits   CreditEnricher
	Selector  Selector
}

type Options struct {
	ResultSize         int
	GatePoolSize       int
	EmergencyThreshold int
}

type Pipeline struct {
	stages Stages
	opts   Options
	tracer trace.Tracer
	logger logger.Logger
}

func New(stages Stages, opts Options, tracer trace.Tracer, log logger.Logger) *Pipeline {
	if opts.ResultSize <= 0 {
		opts.ResultSize = 5
	}
	if opts.GatePoolSize <= 0 {
		opts.GatePoolSize = 30
	}
	if opts.EmergencyThreshold <= 0 {
		opts.EmergencyThreshold = 15
	}
	return &Pipeline{stages: stages, opts: opts, tracer: tracer, logger: log}
}

// Recommend runs one shuffle. A short or empty result is not an error; only
// total source failure is.
func (p *Pipeline) Recommend(ctx context.Context, req models.RecommendationRequest) (*models.RecommendationResult, error) {
	ctx, span := p.tracer.Start(ctx, "recommend.pipeline", trace.WithAttributes(
		attribute.String("collective.id", req.CollectiveID),
		attribute.String("request.id", req.RequestID),
		attribute.Int("members", len(req.MemberIDs)),
	))
	defer span.End()

	log := p.logger.With(map[string]interface{}{
		"collectiveId": req.CollectiveID,
		"requestId":    req.RequestID,
	})

	sctx, done := p.stage(ctx, log, StageProfile)
	prof := p.stages.Profiles.Build(sctx, req)
	done(len(prof.Internal))

	sctx, done = p.stage(ctx, log, StageSourcing)
	ext := p.stages.Sourcer.Fetch(sctx, req, prof.Profile)
	done(len(ext.Candidates))

	failed := append(append([]string(nil), prof.Report.Failed...), ext.Report.Failed...)

	if prof.InternalFailed && ext.Report.AllFailed() {
		err := p.fatal(ctx, failed, len(ext.Report.Failed))
		span.RecordError(err)
		span.SetStatus(codes.Error, "all sources failed")
		metrics.PipelineRuns.WithLabelValues("failed").Inc()
		log.Error("no candidate source reachable", map[string]interface{}{
			"failedBranches": failed,
		})
		return nil, err
	}

	sctx, done = p.stage(ctx, log, StageAssemble)
	pool := p.stages.Assembler.Assemble(sctx, req, prof.Profile, prof.Internal, ext.Candidates)
	done(len(pool))

	emergency := false
	if len(pool) < p.opts.EmergencyThreshold {
		emergency = true
		metrics.EmergencyFallbacks.Inc()
		log.Info("pool below threshold, running emergency fetch", map[string]interface{}{
			"poolSize":  len(pool),
			"threshold": p.opts.EmergencyThreshold,
		})

		sctx, done = p.stage(ctx, log, StageEmergency)
		extra := p.stages.Sourcer.Emergency(sctx, req)
		failed = append(failed, extra.Report.Failed...)
		external := append(append([]models.Candidate(nil), ext.Candidates...), extra.Candidates...)
		pool = p.stages.Assembler.Assemble(sctx, req, prof.Profile, prof.Internal, external)
		done(len(pool))
	}

	_, done = p.stage(ctx, log, StageScoring)
	ranked := scoring.Rank(pool, prof.Profile, req.Moods, req.Session)
	done(len(ranked))

	_, done = p.stage(ctx, log, StageMoodGate)
	gate := mood.Gate(ranked, req.Moods, p.opts.GatePoolSize, p.opts.GatePoolSize)
	done(len(gate.Survivors))
	if len(gate.Attempts) > 0 {
		span.SetAttributes(
			attribute.Float64("mood_gate.threshold", gate.Applied),
			attribute.Int("mood_gate.attempts", len(gate.Attempts)),
		)
	}

	sctx, done = p.stage(ctx, log, StageCredits)
	final := p.stages.Credits.Run(sctx, gate.Survivors, prof.Profile, req.Moods, req.Session)
	done(len(final))

	sctx, done = p.stage(ctx, log, StageSelection)
	recs := p.stages.Selector.Select(sctx, req, final)
	done(len(recs))

	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.MovieID
	}
	sort.Strings(failed)

	result := &models.RecommendationResult{
		Status:            models.StatusFor(len(recs), p.opts.ResultSize),
		Recommendations:   recs,
		Session:           req.Session.Advance(ids),
		PoolSize:          len(pool),
		EmergencyFallback: emergency,
		FailedBranches:    failed,
	}

	metrics.PipelineRuns.WithLabelValues(string(result.Status)).Inc()
	span.SetAttributes(
		attribute.String("result.status", string(result.Status)),
		attribute.Int("result.count", len(recs)),
		attribute.Bool("emergency_fallback", emergency),
	)
	log.Info("recommendations selected", map[string]interface{}{
		"status":            result.Status,
		"returned":          len(recs),
		"poolSize":          result.PoolSize,
		"emergencyFallback": emergency,
		"failedBranches":    len(failed),
	})
	return result, nil
}

func (p *Pipeline) fatal(ctx context.Context, failed []string, external int) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperrors.NewRecommendationTimeoutError(fmt.Errorf("%w: %v", ErrPipelineFailed, ctxErr)).
			WithMetadata("failedBranches", failed)
	}
	cause := fmt.Errorf("%w: internal catalog and %d external branches unreachable", ErrPipelineFailed, external)
	return apperrors.NewAllSourcesFailedError(failed, cause)
}

// stage opens a span and returns a func that closes it and records the
// stage duration and resulting pool size.
func (p *Pipeline) stage(ctx context.Context, log logger.Logger, name string) (context.Context, func(size int)) {
	ctx, span := p.tracer.Start(ctx, "recommend."+name)
	start := time.Now()
	return ctx, func(size int) {
		elapsed := time.Since(start)
		metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		metrics.PoolSize.WithLabelValues(name).Observe(float64(size))
		span.SetAttributes(attribute.Int("pool.size", size))
		span.End()
		log.Debug("stage finished", map[string]interface{}{
			"stage":      name,
			"poolSize":   size,
			"durationMs": elapsed.Milliseconds(),
		})
	}
}
