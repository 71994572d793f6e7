// Package credits attaches cast and crew to the gated pool, rescores it with
// crew affinity active, and applies the popularity floor and franchise dedup.
package credits

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/fanout"
	"movienight-workers/internal/recommend/scoring"
)

const (
	popularityFloor = 2.0
	socialPeerFloor = 2
)

// Source returns credits for one movie, usually through the cache.
type Source interface {
	Credits(ctx context.Context, movieID int64) (models.Credits, error)
}

type Stage struct {
	source Source
	group  *fanout.Group
	topN   int
	logger logger.Logger
}

func NewStage(source Source, group *fanout.Group, topN int, log logger.Logger) *Stage {
	return &Stage{source: source, group: group, topN: topN, logger: log}
}

// Run enriches the top N, rescores, then filters. The input is not modified.
func (s *Stage) Run(ctx context.Context, pool []models.ScoredCandidate, profile *models.GroupPreferenceProfile, moods []models.Mood, session models.ShuffleSession) []models.ScoredCandidate {
	top := pool
	if s.topN > 0 && len(top) > s.topN {
		top = top[:s.topN]
	}

	cands := make([]models.Candidate, len(top))
	for i, sc := range top {
		cands[i] = sc.Candidate
	}

	fetched := make([]*models.Credits, len(cands))
	var tasks []fanout.Task
	for i, c := range cands {
		if c.Credits != nil {
			continue
		}
		i, id := i, c.ID
		tasks = append(tasks, fanout.Task{Name: fmt.Sprintf("credits_%d", id), Run: func(ctx context.Context) error {
			cr, err := s.source.Credits(ctx, id)
			if err != nil {
				return err
			}
			fetched[i] = &cr
			return nil
		}})
	}
	report := s.group.Run(ctx, tasks)

	for i := range cands {
		if fetched[i] != nil {
			cands[i].Credits = fetched[i]
		}
	}

	rescored := scoring.Rank(cands, profile, moods, session)
	floored := PopularityFloor(rescored, profile)
	deduped := DedupFranchises(floored)

	s.logger.Debug("credit enrichment finished", map[string]interface{}{
		"enriched":       len(tasks) - len(report.Failed),
		"failed":         len(report.Failed),
		"afterFloor":     len(floored),
		"afterFranchise": len(deduped),
	})
	return deduped
}

// PopularityFloor drops obscure titles unless they came in through the
// group's social graph.
func PopularityFloor(pool []models.ScoredCandidate, profile *models.GroupPreferenceProfile) []models.ScoredCandidate {
	out := make([]models.ScoredCandidate, 0, len(pool))
	for _, sc := range pool {
		c := sc.Candidate
		if c.Popularity < popularityFloor && !c.ViaSocial && (profile == nil || profile.PeerLoved[c.ID] < socialPeerFloor) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

var (
	subtitleSep    = regexp.MustCompile(`\s*(:| - | – )\s*.*$`)
	sequelSuffix   = regexp.MustCompile(`\s+(part|chapter|vol\.?|volume)?\s*([0-9]+|i{1,3}|iv|v|vi{1,3}|ix|x)$`)
	leadingArticle = regexp.MustCompile(`^(the|a|an)\s+`)
	nonWord        = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// FranchiseRoot reduces a title to its shared root: subtitles, sequel numbers
// and leading articles are removed.
func FranchiseRoot(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = subtitleSep.ReplaceAllString(t, "")
	t = nonWord.ReplaceAllString(t, " ")
	t = strings.Join(strings.Fields(t), " ")
	for {
		next := sequelSuffix.ReplaceAllString(t, "")
		if next == t || next == "" {
			break
		}
		t = next
	}
	t = leadingArticle.ReplaceAllString(t, "")
	return t
}

// DedupFranchises keeps the first, and so highest-scored, member of each
// franchise in a score-sorted pool.
func DedupFranchises(pool []models.ScoredCandidate) []models.ScoredCandidate {
	seen := make(map[string]struct{}, len(pool))
	out := make([]models.ScoredCandidate, 0, len(pool))
	for _, sc := range pool {
		root := FranchiseRoot(sc.Candidate.Title)
		if root != "" {
			if _, dup := seen[root]; dup {
				continue
			}
			seen[root] = struct{}{}
		}
		out = append(out, sc)
	}
	return out
}
