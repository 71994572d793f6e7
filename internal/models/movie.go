package models

import "time"

// Provenance records which catalog a candidate record came from.
type Provenance string

const (
	ProvenanceInternal Provenance = "internal"
	ProvenanceExternal Provenance = "external"
)

// TMDB genre identifiers used as canonical genre IDs.
const (
	GenreAction      = 28
	GenreAdventure   = 12
	GenreAnimation   = 16
	GenreComedy      = 35
	GenreCrime       = 80
	GenreDocumentary = 99
	GenreDrama       = 18
	GenreFamily      = 10751
	GenreFantasy     = 14
	GenreHistory     = 36
	GenreHorror      = 27
	GenreMusic       = 10402
	GenreMystery     = 9648
	GenreRomance     = 10749
	GenreSciFi       = 878
	GenreTVMovie     = 10770
	GenreThriller    = 53
	GenreWar         = 10752
	GenreWestern     = 37
)

// CriticScores holds the cached third-party critic ratings. A nil pointer
// field means the source had no score for the title.
type CriticScores struct {
	IMDb           *float64 `json:"imdb,omitempty"`       // 0-10
	RottenTomatoes *float64 `json:"rt,omitempty"`         // 0-100
	Metacritic     *float64 `json:"metacritic,omitempty"` // 0-100
}

// Empty reports whether no critic source is present.
func (c CriticScores) Empty() bool {
	return c.IMDb == nil && c.RottenTomatoes == nil && c.Metacritic == nil
}

// InternalSignal is the platform's own aggregate rating for a movie.
type InternalSignal struct {
	AvgRating  float64 `json:"avgRating"` // 0-100
	RaterCount int     `json:"raterCount"`
}

// Credits holds director and top-billed actor person IDs.
type Credits struct {
	DirectorIDs []int64 `json:"directorIds"`
	ActorIDs    []int64 `json:"actorIds"`
}

// Candidate is a movie under consideration. Enrichment fields are attached
// once by the pool assembler and credit stage and are not changed afterwards.
type Candidate struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	GenreIDs      []int      `json:"genreIds"`
	Runtime       int        `json:"runtime,omitempty"`
	Certification string     `json:"certification,omitempty"`
	ReleaseDate   string     `json:"releaseDate,omitempty"` // YYYY-MM-DD
	Popularity    float64    `json:"popularity"`
	VoteAverage   float64    `json:"voteAverage"` // 0-10
	VoteCount     int        `json:"voteCount"`
	HasPoster     bool       `json:"hasPoster"`
	HasOverview   bool       `json:"hasOverview"`
	Source        Provenance `json:"source"`

	// InInternalCatalog survives dedup even when the external record wins.
	InInternalCatalog bool `json:"inInternalCatalog"`
	// ViaSocial marks peer-loved or friend-loved injections.
	ViaSocial         bool `json:"viaSocial,omitempty"`

	Critic        *CriticScores      `json:"critic,omitempty"`
	Mood          MoodAffinity       `json:"-"`
	Credits       *Credits           `json:"credits,omitempty"`
	Internal      *InternalSignal    `json:"internal,omitempty"`
	MemberRatings map[string]float64 `json:"memberRatings,omitempty"` // member ID -> 0-100
}

// HasGenre reports whether the candidate is tagged with genre.
func (c Candidate) HasGenre(genre int) bool {
	for _, g := range c.GenreIDs {
		if g == genre {
			return true
		}
	}
	return false
}

// ReleaseYear parses the year from ReleaseDate, or 0 when unknown.
func (c Candidate) ReleaseYear() int {
	if len(c.ReleaseDate) < 4 {
		return 0
	}
	t, err := time.Parse("2006", c.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return t.Year()
}

// Decade returns the release decade (1990, 2000, ...) or 0 when unknown.
func (c Candidate) Decade() int {
	y := c.ReleaseYear()
	if y == 0 {
		return 0
	}
	return y / 10 * 10
}

// ScoredCandidate pairs a candidate with its score breakdown.
type ScoredCandidate struct {
	Candidate Candidate      `json:"candidate"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Score is the clamped GroupFitScore.
func (s ScoredCandidate) Score() float64 {
	return s.Breakdown.Total
}

// SignalContribution is one audited step of the scoring function.
type SignalContribution struct {
	Signal    string  `json:"signal"`
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

// ScoreBreakdown is the ordered audit trail plus the final clamped score.
type ScoreBreakdown struct {
	Contributions []SignalContribution `json:"contributions"`
	Total         float64              `json:"total"`
}
