// Package selection picks the final recommendations and records them.
package selection

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"movienight-workers/internal/common/genai"
	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/models"
)

const historyWriteTimeout = 5 * time.Second

// AdvisorySource looks up content advisories. Missing IDs have no data.
type AdvisorySource interface {
	Advisories(ctx context.Context, ids []int64) (map[int64]models.ContentAdvisory, error)
}

// Explainer writes reasoning and pairings for the final picks.
type Explainer interface {
	Explain(ctx context.Context, moods []models.Mood, picks []models.ScoredCandidate) (map[int64]genai.Explanation, error)
}

// HistoryStore persists and garbage-collects recommendation history.
type HistoryStore interface {
	Log(ctx context.Context, collectiveID string, movieIDs []int64, at time.Time) ([]models.RecommendationHistoryEntry, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Options struct {
	ResultSize       int
	Retention        time.Duration
	PurgeProbability float64
}

type Stage struct {
	advisories AdvisorySource
	explainer  Explainer
	history    HistoryStore
	opts       Options
	logger     logger.Logger

	rand func() float64
	now  func() time.Time
	wg   sync.WaitGroup
}

func NewStage(advisories AdvisorySource, explainer Explainer, history HistoryStore, opts Options, log logger.Logger) *Stage {
	if opts.ResultSize <= 0 {
		opts.ResultSize = 5
	}
	return &Stage{
		advisories: advisories,
		explainer:  explainer,
		history:    history,
		opts:       opts,
		logger:     log,
		rand:       rand.Float64,
		now:        time.Now,
	}
}

// Select filters by advisory, takes the top ResultSize, optionally explains
// them and logs them to history in the background.
func (s *Stage) Select(ctx context.Context, req models.RecommendationRequest, pool []models.ScoredCandidate) []models.Recommendation {
	allowed := s.filterAdvisories(ctx, req, pool)
	if len(allowed) > s.opts.ResultSize {
		allowed = allowed[:s.opts.ResultSize]
	}

	var explanations map[int64]genai.Explanation
	if req.IncludeReasoning && s.explainer != nil && len(allowed) > 0 {
		var err error
		explanations, err = s.explainer.Explain(ctx, req.Moods, allowed)
		if err != nil {
			s.logger.Warn("reasoning unavailable, returning ranked picks only", map[string]interface{}{
				"collectiveId": req.CollectiveID,
				"error":        err.Error(),
			})
		}
	}

	recs := make([]models.Recommendation, 0, len(allowed))
	ids := make([]int64, 0, len(allowed))
	for _, sc := range allowed {
		rec := models.Recommendation{
			MovieID:       sc.Candidate.ID,
			Title:         sc.Candidate.Title,
			GroupFitScore: sc.Score(),
			Breakdown:     sc.Breakdown,
		}
		if e, ok := explanations[sc.Candidate.ID]; ok {
			rec.Reasoning = e.Reasoning
			rec.Pairing = e.Pairing
		}
		recs = append(recs, rec)
		ids = append(ids, sc.Candidate.ID)
	}

	if len(ids) > 0 && s.history != nil {
		s.recordHistory(ctx, req.CollectiveID, ids)
	}
	return recs
}

// filterAdvisories drops candidates whose advisory exceeds the user's limits.
// Candidates without data, or every candidate when the lookup fails, pass.
func (s *Stage) filterAdvisories(ctx context.Context, req models.RecommendationRequest, pool []models.ScoredCandidate) []models.ScoredCandidate {
	if len(req.AdvisoryLimits) == 0 || s.advisories == nil || len(pool) == 0 {
		return pool
	}

	ids := make([]int64, len(pool))
	for i, sc := range pool {
		ids[i] = sc.Candidate.ID
	}
	advisories, err := s.advisories.Advisories(ctx, ids)
	if err != nil {
		s.logger.Warn("advisory lookup failed, not filtering", map[string]interface{}{
			"collectiveId": req.CollectiveID,
			"error":        err.Error(),
		})
		return pool
	}

	out := make([]models.ScoredCandidate, 0, len(pool))
	for _, sc := range pool {
		if adv, ok := advisories[sc.Candidate.ID]; ok && adv.Exceeds(req.AdvisoryLimits) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

// recordHistory writes in the background, detached from the request's
// cancellation.
func (s *Stage) recordHistory(ctx context.Context, collectiveID string, ids []int64) {
	purge := s.opts.PurgeProbability > 0 && s.rand() < s.opts.PurgeProbability
	at := s.now()
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, historyWriteTimeout)
		defer cancel()

		if _, err := s.history.Log(ctx, collectiveID, ids, at); err != nil {
			s.logger.Warn("recommendation history write failed", map[string]interface{}{
				"collectiveId": collectiveID,
				"error":        err.Error(),
			})
		}

		if !purge {
			return
		}
		n, err := s.history.PurgeOlderThan(ctx, at.Add(-s.opts.Retention))
		if err != nil {
			s.logger.Warn("recommendation history purge failed", map[string]interface{}{"error": err.Error()})
			return
		}
		s.logger.Info("recommendation history purged", map[string]interface{}{"rows": n})
	}()
}

// Wait blocks until background history writes finish.
func (s *Stage) Wait() {
	s.wg.Wait()
}
