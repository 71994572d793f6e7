package mood

import (
	"movienight-workers/internal/models"
)

// Thresholds are tried in order until enough candidates survive.
var Thresholds = []float64{0.4, 0.25, 0.15}

// GateResult is the gated, trimmed pool plus the thresholds tried.
type GateResult struct {
	Survivors []models.ScoredCandidate
	Applied   float64
	Attempts  []float64
}

// Gate filters a score-sorted pool so every selected mood clears the current
// threshold, relaxing the threshold until minSurvivors pass or the list is
// exhausted, then keeps the top keep. Candidates without a cached affinity
// vector are exempt. With no moods selected the pool is only trimmed.
func Gate(pool []models.ScoredCandidate, moods []models.Mood, minSurvivors, keep int) GateResult {
	if len(moods) == 0 {
		return GateResult{Survivors: trim(pool, keep)}
	}

	var res GateResult
	var survivors []models.ScoredCandidate
	for _, threshold := range Thresholds {
		res.Attempts = append(res.Attempts, threshold)
		res.Applied = threshold
		survivors = survivors[:0:0]
		for _, sc := range pool {
			if passes(sc.Candidate, moods, threshold) {
				survivors = append(survivors, sc)
			}
		}
		if len(survivors) >= minSurvivors {
			break
		}
	}

	res.Survivors = trim(survivors, keep)
	return res
}

func passes(c models.Candidate, moods []models.Mood, threshold float64) bool {
	if c.Mood == nil || c.Mood.Source() != models.AffinityCached {
		return true
	}
	for _, m := range moods {
		score, ok := c.Mood.Score(m)
		if !ok {
			continue
		}
		if score < threshold {
			return false
		}
	}
	return true
}

func trim(pool []models.ScoredCandidate, keep int) []models.ScoredCandidate {
	if keep <= 0 || len(pool) <= keep {
		out := make([]models.ScoredCandidate, len(pool))
		copy(out, pool)
		return out
	}
	out := make([]models.ScoredCandidate, keep)
	copy(out, pool[:keep])
	return out
}
