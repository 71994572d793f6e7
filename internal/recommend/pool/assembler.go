// Package pool merges sourced candidates, applies the quality gate and
// attaches cached enrichment signals.
package pool

import (
	"context"

	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/fanout"
	"movienight-workers/internal/recommend/mood"
)

// Gate reasons.
const (
	ReasonLowVotes   = "low_votes"
	ReasonLowRating  = "low_rating"
	ReasonNoPoster   = "no_poster"
	ReasonNoOverview = "no_overview"
	ReasonNoGenres   = "no_genres"
	ReasonDismissed  = "dismissed"
)

const (
	minVotes          = 50
	minVotesAcclaimed = 200
	minVoteAverage    = 5.0
)

// SignalSource serves cached critic scores and mood vectors.
type SignalSource interface {
	CriticScores(ctx context.Context, ids []int64) (map[int64]models.CriticScores, error)
	MoodVectors(ctx context.Context, ids []int64) (map[int64]map[models.Mood]float64, error)
}

// RatingSource serves per-member ratings and the internal aggregate signal.
type RatingSource interface {
	MemberRatings(ctx context.Context, members []string, ids []int64) (map[int64]map[string]float64, error)
	InternalSignals(ctx context.Context, ids []int64) (map[int64]models.InternalSignal, error)
}

type Assembler struct {
	signals SignalSource
	ratings RatingSource
	group   *fanout.Group
	logger  logger.Logger
}

func NewAssembler(signals SignalSource, ratings RatingSource, group *fanout.Group, log logger.Logger) *Assembler {
	return &Assembler{signals: signals, ratings: ratings, group: group, logger: log}
}

// Assemble merges, gates and enriches in that order.
func (a *Assembler) Assemble(ctx context.Context, req models.RecommendationRequest, profile *models.GroupPreferenceProfile, internal, external []models.Candidate) []models.Candidate {
	merged := Merge(internal, external)
	gated, rejected := QualityGate(merged, req, profile)

	a.logger.Debug("pool gated", map[string]interface{}{
		"collectiveId": req.CollectiveID,
		"merged":       len(merged),
		"kept":         len(gated),
		"rejected":     rejected,
	})
	return a.Enrich(ctx, gated, req.MemberIDs)
}

// Merge dedups by ID. Internal candidates seed the order; an external record
// replaces an internal one in place but keeps its internal provenance.
func Merge(internal, external []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(internal)+len(external))
	index := make(map[int64]int, len(internal)+len(external))

	add := func(c models.Candidate) {
		i, dup := index[c.ID]
		if !dup {
			index[c.ID] = len(out)
			out = append(out, c)
			return
		}
		prev := out[i]
		if prev.Source == models.ProvenanceExternal || c.Source != models.ProvenanceExternal {
			out[i].ViaSocial = prev.ViaSocial || c.ViaSocial
			return
		}
		out[i] = mergeInto(c, prev)
	}

	for _, c := range internal {
		add(c)
	}
	for _, c := range external {
		add(c)
	}
	return out
}

// mergeInto returns ext carrying the internal record's provenance and signals.
func mergeInto(ext, internal models.Candidate) models.Candidate {
	ext.InInternalCatalog = ext.InInternalCatalog || internal.InInternalCatalog
	ext.ViaSocial = ext.ViaSocial || internal.ViaSocial
	if ext.Internal == nil {
		ext.Internal = internal.Internal
	}
	if ext.Credits == nil {
		ext.Credits = internal.Credits
	}
	if ext.Runtime == 0 {
		ext.Runtime = internal.Runtime
	}
	if ext.Certification == "" {
		ext.Certification = internal.Certification
	}
	return ext
}

// GateReason returns why c fails the quality gate, or "" when it passes.
func GateReason(c models.Candidate, req models.RecommendationRequest, profile *models.GroupPreferenceProfile) string {
	floor := minVotes
	if req.HasMood(models.MoodAcclaimed) {
		floor = minVotesAcclaimed
	}
	switch {
	case profile != nil && profile.IsDismissed(c.ID):
		return ReasonDismissed
	case c.VoteCount < floor:
		return ReasonLowVotes
	case c.VoteAverage < minVoteAverage:
		return ReasonLowRating
	case !c.HasPoster:
		return ReasonNoPoster
	case !c.HasOverview:
		return ReasonNoOverview
	case len(c.GenreIDs) == 0:
		return ReasonNoGenres
	}
	return ""
}

// QualityGate returns the passing candidates and a count per rejection reason.
func QualityGate(pool []models.Candidate, req models.RecommendationRequest, profile *models.GroupPreferenceProfile) ([]models.Candidate, map[string]int) {
	kept := make([]models.Candidate, 0, len(pool))
	rejected := map[string]int{}
	for _, c := range pool {
		if reason := GateReason(c, req, profile); reason != "" {
			rejected[reason]++
			continue
		}
		kept = append(kept, c)
	}
	return kept, rejected
}

// Enrich batch-loads every signal in parallel and returns new candidates.
// Signals already attached are left as they are; a failed lookup leaves its
// signal absent.
func (a *Assembler) Enrich(ctx context.Context, pool []models.Candidate, members []string) []models.Candidate {
	if len(pool) == 0 {
		return nil
	}

	ids := make([]int64, len(pool))
	for i, c := range pool {
		ids[i] = c.ID
	}

	var (
		critic   map[int64]models.CriticScores
		moods    map[int64]map[models.Mood]float64
		ratings  map[int64]map[string]float64
		internal map[int64]models.InternalSignal
	)
	a.group.Run(ctx, []fanout.Task{
		{Name: "enrich_critic", Run: func(ctx context.Context) (err error) {
			critic, err = a.signals.CriticScores(ctx, ids)
			return err
		}},
		{Name: "enrich_mood", Run: func(ctx context.Context) (err error) {
			moods, err = a.signals.MoodVectors(ctx, ids)
			return err
		}},
		{Name: "enrich_member_ratings", Run: func(ctx context.Context) (err error) {
			ratings, err = a.ratings.MemberRatings(ctx, members, ids)
			return err
		}},
		{Name: "enrich_internal", Run: func(ctx context.Context) (err error) {
			internal, err = a.ratings.InternalSignals(ctx, ids)
			return err
		}},
	})

	out := make([]models.Candidate, len(pool))
	for i, c := range pool {
		if c.Critic == nil {
			if cs, ok := critic[c.ID]; ok {
				cs := cs
				c.Critic = &cs
			}
		}
		if c.Mood == nil {
			c.Mood = mood.Resolve(moods[c.ID], c.GenreIDs)
		}
		if c.MemberRatings == nil {
			if r, ok := ratings[c.ID]; ok {
				c.MemberRatings = r
			}
		}
		if c.Internal == nil {
			if sig, ok := internal[c.ID]; ok {
				sig := sig
				c.Internal = &sig
				c.InInternalCatalog = true
			}
		}
		out[i] = c
	}
	return out
}
