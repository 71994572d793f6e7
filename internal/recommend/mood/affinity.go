// Package mood maps moods to genres, resolves per-candidate mood affinity and
// gates scored pools on it.
package mood

import (
	"movienight-workers/internal/models"
)

// discoveryGenres are OR-combined into discovery queries for each mood.
var discoveryGenres = map[models.Mood][]int{
	models.MoodFunny:     {models.GenreComedy, models.GenreAnimation},
	models.MoodFun:       {models.GenreAdventure, models.GenreComedy, models.GenreAnimation, models.GenreFamily},
	models.MoodIntense:   {models.GenreThriller, models.GenreAction, models.GenreCrime, models.GenreWar},
	models.MoodEmotional: {models.GenreDrama, models.GenreRomance},
	models.MoodMindless:  {models.GenreAction, models.GenreComedy},
	models.MoodAcclaimed: {models.GenreDrama, models.GenreHistory},
	models.MoodScary:     {models.GenreHorror, models.GenreThriller},
}

// heuristicWeights is the rule table used when no cached affinity exists.
// A candidate's score for a mood is the strongest weight among its genres.
var heuristicWeights = map[models.Mood]map[int]float64{
	models.MoodFunny: {
		models.GenreComedy: 0.9, models.GenreAnimation: 0.6, models.GenreFamily: 0.4, models.GenreRomance: 0.3,
	},
	models.MoodFun: {
		models.GenreAdventure: 0.8, models.GenreComedy: 0.7, models.GenreAnimation: 0.7, models.GenreFamily: 0.6,
		models.GenreAction: 0.6, models.GenreFantasy: 0.6, models.GenreMusic: 0.5,
	},
	models.MoodIntense: {
		models.GenreThriller: 0.9, models.GenreAction: 0.8, models.GenreCrime: 0.7, models.GenreWar: 0.7,
		models.GenreHorror: 0.6, models.GenreMystery: 0.6, models.GenreSciFi: 0.5,
	},
	models.MoodEmotional: {
		models.GenreDrama: 0.9, models.GenreRomance: 0.8, models.GenreMusic: 0.5, models.GenreHistory: 0.5,
		models.GenreWar: 0.5, models.GenreFamily: 0.4,
	},
	models.MoodMindless: {
		models.GenreAction: 0.8, models.GenreComedy: 0.8, models.GenreAdventure: 0.6, models.GenreAnimation: 0.5,
		models.GenreHorror: 0.4,
	},
	models.MoodAcclaimed: {
		models.GenreDrama: 0.6, models.GenreHistory: 0.6, models.GenreWar: 0.5, models.GenreDocumentary: 0.5,
		models.GenreCrime: 0.5,
	},
	models.MoodScary: {
		models.GenreHorror: 0.95, models.GenreThriller: 0.7, models.GenreMystery: 0.5,
	},
}

// heuristicFloor is the affinity assigned when no genre matches a mood.
const heuristicFloor = 0.1

// GenresFor returns the union of discovery genres for the given moods,
// in first-seen order.
func GenresFor(moods []models.Mood) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, m := range moods {
		for _, g := range discoveryGenres[m] {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

// Cached is a precomputed affinity vector loaded from the cache.
type Cached map[models.Mood]float64

func (c Cached) Score(m models.Mood) (float64, bool) {
	v, ok := c[m]
	if !ok {
		return 0, false
	}
	return clamp01(v), true
}

func (c Cached) Source() models.AffinitySource { return models.AffinityCached }

// Heuristic scores moods from genre tags alone.
type Heuristic struct {
	GenreIDs []int
}

func (h Heuristic) Score(m models.Mood) (float64, bool) {
	weights, ok := heuristicWeights[m]
	if !ok {
		return 0, false
	}
	best := heuristicFloor
	for _, g := range h.GenreIDs {
		if w, ok := weights[g]; ok && w > best {
			best = w
		}
	}
	return best, true
}

func (h Heuristic) Source() models.AffinitySource { return models.AffinityHeuristic }

// Resolve picks the strategy for a candidate: the cached vector when one was
// found, the genre heuristic otherwise.
func Resolve(cached map[models.Mood]float64, genreIDs []int) models.MoodAffinity {
	if len(cached) > 0 {
		return Cached(cached)
	}
	return Heuristic{GenreIDs: genreIDs}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
