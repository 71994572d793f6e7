// Package profile builds the request-scoped GroupPreferenceProfile from the
// members' persisted history.
package profile

import (
	"context"
	"database/sql"
	"time"

	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/fanout"
	"movienight-workers/internal/store"
)

// CandidateSource serves the internal top-candidates query.
type CandidateSource interface {
	TopCandidates(ctx context.Context, f store.CandidateFilter) ([]models.Candidate, error)
}

// Result is the profile plus the internal candidates fetched alongside it.
type Result struct {
	Profile        *models.GroupPreferenceProfile
	Internal       []models.Candidate
	InternalFailed bool
	Report         fanout.Report
}

type Aggregator struct {
	db            *sql.DB
	catalog       CandidateSource
	group         *fanout.Group
	historyWindow time.Duration
	logger        logger.Logger
	now           func() time.Time
}

func NewAggregator(db *sql.DB, catalog CandidateSource, group *fanout.Group, historyWindow time.Duration, log logger.Logger) *Aggregator {
	return &Aggregator{
		db:            db,
		catalog:       catalog,
		group:         group,
		historyWindow: historyWindow,
		logger:        log,
		now:           time.Now,
	}
}

// InternalFilter derives the internal catalog constraints from a request.
func InternalFilter(req models.RecommendationRequest) store.CandidateFilter {
	return store.CandidateFilter{
		MaxRuntime:     req.MaxRuntime,
		EraFrom:        req.EraFrom,
		EraTo:          req.EraTo,
		Certifications: req.Audience.CertificationCeiling(),
		MinRaters:      2,
		Limit:          100,
	}
}

// Build runs every preference query and the internal catalog query in
// parallel. A failed query leaves its signal empty.
func (a *Aggregator) Build(ctx context.Context, req models.RecommendationRequest) *Result {
	profile := models.NewGroupPreferenceProfile(req.CollectiveID, req.MemberIDs, req.Audience)
	params := Params{
		CollectiveID: req.CollectiveID,
		MemberIDs:    req.MemberIDs,
		Since:        a.now().Add(-a.historyWindow),
	}

	var internal []models.Candidate
	appliers := make([]Apply, len(models.ProfileQueryTypes))
	tasks := make([]fanout.Task, 0, len(models.ProfileQueryTypes))

	for i, qt := range models.ProfileQueryTypes {
		i, qt := i, qt
		if qt == models.QueryTypeInternalCandidates {
			tasks = append(tasks, fanout.Task{Name: string(qt), Run: func(ctx context.Context) error {
				cands, err := a.catalog.TopCandidates(ctx, InternalFilter(req))
				if err != nil {
					return err
				}
				internal = cands
				return nil
			}})
			continue
		}
		tasks = append(tasks, fanout.Task{Name: string(qt), Run: func(ctx context.Context) error {
			apply, err := Execute(ctx, a.db, qt, params)
			if err != nil {
				return err
			}
			appliers[i] = apply
			return nil
		}})
	}

	report := a.group.Run(ctx, tasks)

	for _, apply := range appliers {
		if apply != nil {
			apply(profile)
		}
	}

	res := &Result{
		Profile:        profile,
		Internal:       internal,
		InternalFailed: report.FailedBranch(string(models.QueryTypeInternalCandidates)),
		Report:         report,
	}

	a.logger.Info("group profile built", map[string]interface{}{
		"collectiveId":    req.CollectiveID,
		"members":         len(req.MemberIDs),
		"preferredGenres": len(profile.PreferredGenres),
		"dislikedGenres":  len(profile.DislikedGenres),
		"seenMovies":      profile.SeenTotal(),
		"peers":           len(profile.Peers),
		"internalPool":    len(internal),
		"failedQueries":   report.Failed,
	})
	return res
}
