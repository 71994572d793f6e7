package scoring

import (
	"fmt"
	"math"
	"sort"

	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/mood"
)

const genreAffinityCap = 40.0

// genreMatch returns the flat match bonus and the weighted affinity bonus.
func genreMatch(c models.Candidate, p *models.GroupPreferenceProfile) (float64, float64, string) {
	if len(p.PreferredGenres) == 0 {
		return 0, 0, ""
	}

	rank := make(map[int]int, len(p.PreferredGenres))
	for i, g := range p.PreferredGenres {
		rank[g.GenreID] = i
	}

	groupSize := float64(p.GroupSize())
	if groupSize < 1 {
		groupSize = 1
	}

	matched := 0
	weighted := 0.0
	seen := map[int]struct{}{}
	for _, g := range c.GenreIDs {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}

		r, ok := rank[g]
		if !ok {
			continue
		}
		matched++

		var weight float64
		switch {
		case r < 3:
			weight = 18
		case r < 8:
			weight = 15
		default:
			continue
		}
		aff := p.PreferredGenres[r]
		confidence := math.Min(1, float64(aff.RaterCount)/groupSize)
		weighted += weight * confidence * aff.MeanScore / 100
	}

	if matched == 0 {
		return 0, 0, ""
	}
	weighted = math.Min(weighted, genreAffinityCap)
	return 3, weighted, fmt.Sprintf("%d preferred genre(s) matched", matched)
}

func dislikedCount(c models.Candidate, p *models.GroupPreferenceProfile) int {
	n := 0
	seen := map[int]struct{}{}
	for _, g := range c.GenreIDs {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		if p.IsDisliked(g) {
			n++
		}
	}
	return n
}

// seenPenalty scales the base penalty linearly by the fraction of selected
// members who have seen the movie.
func seenPenalty(fraction float64, solo bool) float64 {
	base := -15.0
	if solo {
		base = -30.0
	}
	return base * fraction
}

func endorsement(c models.Candidate) (float64, float64, bool) {
	if len(c.MemberRatings) == 0 {
		return 0, 0, false
	}
	keys := make([]string, 0, len(c.MemberRatings))
	for k := range c.MemberRatings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := 0.0
	for _, k := range keys {
		sum += c.MemberRatings[k]
	}
	avg := sum / float64(len(keys))

	switch {
	case avg >= 85:
		return 30, avg, true
	case avg >= 70:
		return 20, avg, true
	case avg >= 55:
		return 10, avg, true
	case avg < 40:
		return -10, avg, true
	default:
		return 0, avg, false
	}
}

// moodFit is the geometric mean of per-mood affinities. A mood missing from
// a cached vector falls back to the genre heuristic for that mood.
func moodFit(c models.Candidate, moods []models.Mood) (float64, []float64) {
	aff := c.Mood
	if aff == nil {
		aff = mood.Heuristic{GenreIDs: c.GenreIDs}
	}
	fallback := mood.Heuristic{GenreIDs: c.GenreIDs}

	scores := make([]float64, len(moods))
	logSum := 0.0
	zero := false
	for i, m := range moods {
		s, ok := aff.Score(m)
		if !ok {
			s, _ = fallback.Score(m)
		}
		scores[i] = s
		if s <= 0 {
			zero = true
			continue
		}
		logSum += math.Log(s)
	}
	if zero {
		return 0, scores
	}
	return math.Exp(logSum / float64(len(moods))), scores
}

// qualityComposite weights IMDb 35%, RT 35% and Metacritic 30% over whichever
// sources are present, else falls back to the catalog vote average.
func qualityComposite(c models.Candidate) (float64, bool) {
	if c.Critic != nil && !c.Critic.Empty() {
		sum, weight := 0.0, 0.0
		if c.Critic.IMDb != nil {
			sum += *c.Critic.IMDb * 10 * 0.35
			weight += 0.35
		}
		if c.Critic.RottenTomatoes != nil {
			sum += *c.Critic.RottenTomatoes * 0.35
			weight += 0.35
		}
		if c.Critic.Metacritic != nil {
			sum += *c.Critic.Metacritic * 0.30
			weight += 0.30
		}
		return sum / weight, true
	}
	return c.VoteAverage * 10, false
}

func qualityBonus(composite float64) float64 {
	switch {
	case composite >= 85:
		return 15
	case composite >= 75:
		return 12
	case composite >= 65:
		return 8
	case composite >= 50:
		return 5
	default:
		return 0
	}
}

func qualityRationale(composite float64, fromCritics bool) string {
	if fromCritics {
		return fmt.Sprintf("critic composite %.1f", composite)
	}
	return fmt.Sprintf("vote average composite %.1f", composite)
}

func acclaimedBonus(critic *models.CriticScores) float64 {
	if critic == nil {
		return 0
	}
	bonus := 0.0
	if critic.RottenTomatoes != nil && *critic.RottenTomatoes >= 85 {
		bonus += 8
	}
	if critic.Metacritic != nil && *critic.Metacritic >= 75 {
		bonus += 6
	}
	if critic.IMDb != nil && *critic.IMDb >= 7.5 {
		bonus += 5
	}
	return bonus
}

func audienceMismatch(c models.Candidate, audience models.Audience) (float64, string) {
	family := c.HasGenre(models.GenreFamily)
	animation := c.HasGenre(models.GenreAnimation)
	switch audience {
	case models.AudienceAdults:
		if family || animation {
			return -15, "family/animation content for an adult audience"
		}
	case models.AudienceTeens:
		if family && animation {
			return -8, "kid-oriented animation for a teen audience"
		}
	}
	return 0, ""
}

func availabilityBonus(popularity float64, votes int) float64 {
	switch {
	case popularity >= 100 && votes >= 5000:
		return 13
	case popularity >= 50 && votes >= 2000:
		return 10
	case popularity >= 20 && votes >= 1000:
		return 7
	case popularity >= 10 && votes >= 500:
		return 4
	default:
		return 2
	}
}

// voteConfidence is log10(votes)/5 of a five-point term, floored at +1.
func voteConfidence(votes int) float64 {
	if votes <= 0 {
		return 0
	}
	return clamp(math.Log10(float64(votes)), 1, 5)
}

// directorBonus counts only the best matching director.
func directorBonus(directors []int64, affinity map[int64]float64) (float64, int64) {
	best, bestID := 0.0, int64(0)
	for _, id := range directors {
		if a := affinity[id]; a > best {
			best, bestID = a, id
		}
	}
	return 12 * clamp(best, 0, 1), bestID
}

// actorBonus sums the two strongest actor affinities at +6 each.
func actorBonus(actors []int64, affinity map[int64]float64) (float64, int) {
	var matches []float64
	for _, id := range actors {
		if a := affinity[id]; a > 0 {
			matches = append(matches, clamp(a, 0, 1))
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(matches)))
	if len(matches) > 2 {
		matches = matches[:2]
	}
	total := 0.0
	for _, a := range matches {
		total += 6 * a
	}
	return total, len(matches)
}

func internalBonus(sig models.InternalSignal) float64 {
	bonus := 0.0
	switch {
	case sig.AvgRating >= 80:
		bonus += 8
	case sig.AvgRating >= 65:
		bonus += 4
	}
	switch {
	case sig.RaterCount >= 5:
		bonus += 7
	case sig.RaterCount >= 3:
		bonus += 5
	case sig.RaterCount >= 2:
		bonus += 3
	}
	return bonus
}
