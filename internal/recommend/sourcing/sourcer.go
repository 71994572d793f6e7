package sourcing

import (
	"context"
	"strings"

	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/common/tmdb"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/fanout"
)

// Catalog is the external discovery, list and lookup interface.
type Catalog interface {
	Discover(ctx context.Context, q tmdb.DiscoverQuery) ([]models.Candidate, error)
	List(ctx context.Context, list tmdb.List, page int, region string) ([]models.Candidate, error)
	MovieByID(ctx context.Context, id int64) (models.Candidate, error)
}

// Result is every external candidate fetched, in plan order, with duplicates
// left for the pool assembler.
type Result struct {
	Candidates []models.Candidate
	Report     fanout.Report
}

type Sourcer struct {
	catalog Catalog
	group   *fanout.Group
	opts    Options
	logger  logger.Logger
}

func NewSourcer(catalog Catalog, group *fanout.Group, opts Options, log logger.Logger) *Sourcer {
	return &Sourcer{catalog: catalog, group: group, opts: opts, logger: log}
}

// Fetch runs the standard discovery bundle.
func (s *Sourcer) Fetch(ctx context.Context, req models.RecommendationRequest, profile *models.GroupPreferenceProfile) Result {
	return s.run(ctx, req, Plan(req, profile, s.opts))
}

// Emergency runs the relaxed fallback pages.
func (s *Sourcer) Emergency(ctx context.Context, req models.RecommendationRequest) Result {
	return s.run(ctx, req, EmergencyPlan(req, s.opts))
}

func (s *Sourcer) run(ctx context.Context, req models.RecommendationRequest, plan []Branch) Result {
	results := make([][]models.Candidate, len(plan))
	tasks := make([]fanout.Task, len(plan))
	for i, b := range plan {
		i, b := i, b
		tasks[i] = fanout.Task{Name: b.Name, Run: func(ctx context.Context) error {
			cands, err := s.fetch(ctx, req, b)
			if err != nil {
				return err
			}
			results[i] = cands
			return nil
		}}
	}

	report := s.group.Run(ctx, tasks)

	var out []models.Candidate
	for _, r := range results {
		out = append(out, r...)
	}

	s.logger.Debug("discovery bundle finished", map[string]interface{}{
		"collectiveId": req.CollectiveID,
		"branches":     len(plan),
		"failed":       len(report.Failed),
		"candidates":   len(out),
	})
	return Result{Candidates: out, Report: report}
}

func (s *Sourcer) fetch(ctx context.Context, req models.RecommendationRequest, b Branch) ([]models.Candidate, error) {
	switch b.Kind {
	case KindList:
		return s.catalog.List(ctx, b.List, b.Page, b.Region)
	case KindByID:
		c, err := s.catalog.MovieByID(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		if !WithinConstraints(c, req) {
			return nil, nil
		}
		c.ViaSocial = b.Social
		return []models.Candidate{c}, nil
	default:
		return s.catalog.Discover(ctx, b.Query)
	}
}

// WithinConstraints applies the hard constraints to a candidate fetched by ID,
// which bypasses discovery filters. Unknown runtime or year passes.
func WithinConstraints(c models.Candidate, req models.RecommendationRequest) bool {
	if req.MaxRuntime > 0 && c.Runtime > req.MaxRuntime {
		return false
	}
	if y := c.ReleaseYear(); y > 0 {
		if req.EraFrom > 0 && y < req.EraFrom {
			return false
		}
		if req.EraTo > 0 && y > req.EraTo {
			return false
		}
	}
	if ceiling := req.Audience.CertificationCeiling(); len(ceiling) > 0 {
		for _, cert := range ceiling {
			if strings.EqualFold(cert, c.Certification) {
				return true
			}
		}
		return false
	}
	return true
}
