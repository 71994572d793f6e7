// Package scoring computes the GroupFitScore. Everything here is pure: the
// same SignalInputs always yield the same ScoreBreakdown.
package scoring

import (
	"fmt"
	"sort"

	"movienight-workers/internal/models"
)

const (
	baseScore = 55.0
	minScore  = 0.0
	maxScore  = 100.0
)

// SignalInputs is everything the score depends on.
type SignalInputs struct {
	Candidate models.Candidate
	Profile   *models.GroupPreferenceProfile
	Moods     []models.Mood
	Shown     map[int64]struct{}
}

type category string

const (
	catNone         category = ""
	catGenre        category = "genre"
	catMood         category = "mood"
	catQuality      category = "quality"
	catCrew         category = "crew"
	catSocial       category = "social"
	catAvailability category = "availability"
)

// ledger accumulates the running total and the audit trail.
type ledger struct {
	total    float64
	steps    []models.SignalContribution
	positive map[category]bool
}

func (l *ledger) add(cat category, signal string, delta float64, rationale string) {
	if delta == 0 {
		return
	}
	l.total += delta
	l.steps = append(l.steps, models.SignalContribution{Signal: signal, Delta: delta, Rationale: rationale})
	if delta > 0 && cat != catNone {
		l.positive[cat] = true
	}
}

// Score evaluates every signal in a fixed order and clamps the result.
func Score(in SignalInputs) models.ScoreBreakdown {
	c := in.Candidate
	p := in.Profile
	if p == nil {
		p = models.NewGroupPreferenceProfile("", nil, models.AudienceAnyone)
	}

	l := &ledger{positive: map[category]bool{}}
	l.total = baseScore
	l.steps = append(l.steps, models.SignalContribution{Signal: "base", Delta: baseScore, Rationale: "base score"})

	// 2-3. genre affinity
	if flat, weighted, why := genreMatch(c, p); flat > 0 {
		l.add(catGenre, "genre_match", flat, "matches a group-preferred genre")
		l.add(catGenre, "genre_affinity", weighted, why)
	}
	if n := dislikedCount(c, p); n > 0 {
		l.add(catNone, "disliked_genre", -15*float64(n), fmt.Sprintf("%d disliked genre(s)", n))
	}

	// 4. seen penalty
	if frac := p.SeenFraction(c.ID); frac > 0 {
		l.add(catNone, "seen", seenPenalty(frac, p.Solo()),
			fmt.Sprintf("seen by %.0f%% of selected members", frac*100))
	}

	// 5. member endorsement
	if delta, avg, ok := endorsement(c); ok {
		l.add(catSocial, "member_endorsement", delta, fmt.Sprintf("members rated it %.1f on average", avg))
	}

	// 6. shuffle/history
	if _, shown := in.Shown[c.ID]; shown {
		l.add(catNone, "shown_this_session", -25, "already shown this session")
	} else if p.RecentlyRecommended(c.ID) {
		l.add(catNone, "recently_recommended", -15, "recommended in the last 30 days")
	}

	// 7. mood
	fit := 1.0
	if len(in.Moods) > 0 {
		var scores []float64
		fit, scores = moodFit(c, in.Moods)
		l.add(catMood, "mood_fit", fit*40, fmt.Sprintf("combined mood fit %.2f", fit))
		for i, s := range scores {
			if s < 0.25 {
				l.add(catNone, "mood_threshold", -20, fmt.Sprintf("%s affinity %.2f below 0.25", in.Moods[i], s))
				break
			}
		}
	}

	// 8-9. quality
	composite, fromCritics := qualityComposite(c)
	l.add(catQuality, "quality", qualityBonus(composite), qualityRationale(composite, fromCritics))
	if models.ContainsMood(in.Moods, models.MoodAcclaimed) {
		l.add(catQuality, "acclaimed", acclaimedBonus(c.Critic), "critical acclaim")
	}

	// 10. audience
	if delta, why := audienceMismatch(c, p.Audience); delta != 0 {
		l.add(catNone, "audience_mismatch", delta, why)
	}

	// 11. availability
	l.add(catAvailability, "availability", availabilityBonus(c.Popularity, c.VoteCount),
		fmt.Sprintf("popularity %.1f, %d votes", c.Popularity, c.VoteCount))
	l.add(catAvailability, "vote_confidence", voteConfidence(c.VoteCount), "log10(votes) confidence")

	// 12. crew
	if c.Credits != nil {
		if delta, id := directorBonus(c.Credits.DirectorIDs, p.CrewAffinity); delta > 0 {
			l.add(catCrew, "director_affinity", delta, fmt.Sprintf("director %d", id))
		}
		if delta, n := actorBonus(c.Credits.ActorIDs, p.CrewAffinity); delta > 0 {
			l.add(catCrew, "actor_affinity", delta, fmt.Sprintf("%d favoured actor(s)", n))
		}
	}

	// 13. era
	if decade, ok := p.TopDecade(); ok && c.Decade() == decade {
		l.add(catGenre, "era", 5, fmt.Sprintf("%ds is the group's top decade", decade))
	}

	// 14-16. social and platform signals
	if n := p.PeerLoved[c.ID]; n >= 2 {
		l.add(catSocial, "collaborative_filtering", minf(20, 5*float64(n)), fmt.Sprintf("loved by %d taste-similar peers", n))
	}
	if n := p.FriendLoved[c.ID]; n > 0 {
		l.add(catSocial, "collective_influence", minf(30, 10*float64(n)), fmt.Sprintf("loved by %d collective friend(s)", n))
	}
	if c.Internal != nil {
		l.add(catSocial, "internal_signal", internalBonus(*c.Internal),
			fmt.Sprintf("platform avg %.1f from %d raters", c.Internal.AvgRating, c.Internal.RaterCount))
	}

	// 17. mood dampening scales everything earned above base
	if len(in.Moods) > 0 && fit < 0.5 {
		if excess := l.total - baseScore; excess > 0 {
			factor := 0.5 + fit
			l.add(catNone, "mood_dampening", -excess*(1-factor), fmt.Sprintf("bonuses scaled by %.2f for weak mood fit", factor))
		}
	}

	// 18. well-rounded
	if n := len(l.positive); n >= 3 {
		l.add(catNone, "well_rounded", 5, fmt.Sprintf("%d signal categories contributed", n))
	}

	// 19. clamp
	final := clamp(l.total, minScore, maxScore)
	if final != l.total {
		l.steps = append(l.steps, models.SignalContribution{Signal: "clamp", Delta: final - l.total, Rationale: "clamped to [0,100]"})
	}

	return models.ScoreBreakdown{Contributions: l.steps, Total: final}
}

// Rank scores every candidate and returns a new slice sorted by score
// descending, ties broken by ID for a stable order.
func Rank(candidates []models.Candidate, profile *models.GroupPreferenceProfile, moods []models.Mood, session models.ShuffleSession) []models.ScoredCandidate {
	shown := session.ShownSet()
	out := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, models.ScoredCandidate{
			Candidate: c,
			Breakdown: Score(SignalInputs{Candidate: c, Profile: profile, Moods: moods, Shown: shown}),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score() != out[j].Score() {
			return out[i].Score() > out[j].Score()
		}
		return out[i].Candidate.ID < out[j].Candidate.ID
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
