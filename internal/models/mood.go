package models

import "fmt"

// Mood is one of the fixed mood tags.
type Mood string

const (
	MoodFun       Mood = "fun"
	MoodFunny     Mood = "funny"
	MoodIntense   Mood = "intense"
	MoodEmotional Mood = "emotional"
	MoodMindless  Mood = "mindless"
	MoodAcclaimed Mood = "acclaimed"
	MoodScary     Mood = "scary"
)

// AllMoods lists the valid moods.
var AllMoods = []Mood{MoodFun, MoodFunny, MoodIntense, MoodEmotional, MoodMindless, MoodAcclaimed, MoodScary}

// ParseMood validates a mood tag.
func ParseMood(s string) (Mood, error) {
	for _, m := range AllMoods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mood %q", s)
}

// AffinitySource tags how a mood affinity vector was produced.
type AffinitySource string

const (
	AffinityCached    AffinitySource = "cached"
	AffinityHeuristic AffinitySource = "heuristic"
)

// MoodAffinity yields a per-mood affinity in [0,1]. Implementations are chosen
// at lookup time: a cached vector when one exists, a genre heuristic otherwise.
type MoodAffinity interface {
	Score(m Mood) (float64, bool)
	Source() AffinitySource
}

// ContainsMood reports whether moods includes m.
func ContainsMood(moods []Mood, m Mood) bool {
	for _, x := range moods {
		if x == m {
			return true
		}
	}
	return false
}
