// Package sourcing plans and runs the external discovery bundle.
package sourcing

import (
	"fmt"
	"sort"

	"movienight-workers/internal/common/tmdb"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/mood"
)

// Kind selects the catalog call a branch makes.
type Kind int

const (
	KindDiscover Kind = iota
	KindList
	KindByID
)

// Branch names, used as fan-out task prefixes and metric labels.
const (
	BranchPrimary        = "primary"
	BranchMoodGenre      = "mood_genre"
	BranchUserPref       = "user_pref"
	BranchWildcard       = "wildcard"
	BranchPopular        = "popular"
	BranchTopRated       = "top_rated"
	BranchPowerUser      = "power_user"
	BranchPressureRelief = "pressure_relief"
	BranchSocialPeer     = "social_peer"
	BranchSocialFriend   = "social_friend"
	BranchEmergency      = "emergency"
)

const (
	primaryPages   = 3
	moodGenrePages = 2
	powerUserPages = 3
	pressurePages  = 2
	maxPeerLoved   = 10
	maxFriendLoved = 25

	// Pages consumed per branch per shuffle; later shuffles start further in.
	pagesPerShuffle = 6

	baseMinVotes      = 50
	acclaimedMinVotes = 200
	wildcardMinRating = 7.0
	wildcardMinVotes  = 500
	topRatedMinVotes  = 1000
	emergencyMinVotes = 10
)

// Options tunes plan triggers.
type Options struct {
	PowerUserSeenThreshold int
	PressureThreshold      int
	EmergencyPages         int
}

// Branch is one planned catalog request.
type Branch struct {
	Name   string
	Kind   Kind
	Query  tmdb.DiscoverQuery
	List   tmdb.List
	Page   int
	Region string
	ID     int64
	Social bool
}

// ActiveConstraints counts the hard constraints set on a request.
func ActiveConstraints(req models.RecommendationRequest) int {
	n := 0
	if req.MaxRuntime > 0 {
		n++
	}
	if req.EraFrom > 0 || req.EraTo > 0 {
		n++
	}
	if req.Audience != "" && req.Audience != models.AudienceAnyone {
		n++
	}
	if len(req.Providers) > 0 {
		n++
	}
	if len(req.AdvisoryLimits) > 0 {
		n++
	}
	return n
}

// constrained returns a discovery query carrying every hard constraint.
func constrained(req models.RecommendationRequest) tmdb.DiscoverQuery {
	return tmdb.DiscoverQuery{
		MaxRuntime:     req.MaxRuntime,
		ReleaseFrom:    req.EraFrom,
		ReleaseTo:      req.EraTo,
		Certifications: req.Audience.CertificationCeiling(),
		Providers:      req.Providers,
		Region:         req.Region,
	}
}

// hasListFilters reports whether curated list endpoints would ignore a
// constraint; such requests use discovery with the same sort instead.
func hasListFilters(req models.RecommendationRequest) bool {
	return req.MaxRuntime > 0 || req.EraFrom > 0 || req.EraTo > 0 ||
		len(req.Audience.CertificationCeiling()) > 0 || len(req.Providers) > 0
}

func minVotes(req models.RecommendationRequest) int {
	if req.HasMood(models.MoodAcclaimed) {
		return acclaimedMinVotes
	}
	return baseMinVotes
}

func pageFor(session models.ShuffleSession, i int) int {
	return session.Page*pagesPerShuffle + i + 1
}

func discoverPages(name string, q tmdb.DiscoverQuery, session models.ShuffleSession, first, count int) []Branch {
	out := make([]Branch, 0, count)
	for i := 0; i < count; i++ {
		page := pageFor(session, first+i)
		paged := q
		paged.Page = page
		out = append(out, Branch{Name: fmt.Sprintf("%s_p%d", name, page), Kind: KindDiscover, Query: paged, Page: page})
	}
	return out
}

// Plan lays out the standard discovery bundle for one request.
func Plan(req models.RecommendationRequest, profile *models.GroupPreferenceProfile, opts Options) []Branch {
	var plan []Branch
	session := req.Session
	moodGenres := mood.GenresFor(req.Moods)
	topGenres := profile.TopGenreIDs(3)

	primary := constrained(req)
	primary.MinVoteCount = minVotes(req)
	switch {
	case len(moodGenres) > 0:
		primary.GenreIDs = moodGenres
		primary.GenreMode = tmdb.GenresAny
	case len(topGenres) > 0:
		primary.GenreIDs = topGenres
		primary.GenreMode = tmdb.GenresAll
	}
	plan = append(plan, discoverPages(BranchPrimary, primary, session, 0, primaryPages)...)

	if len(moodGenres) > 0 {
		q := constrained(req)
		q.GenreIDs = moodGenres
		q.GenreMode = tmdb.GenresAny
		q.SortBy = tmdb.SortPopularity
		q.MinVoteCount = minVotes(req)
		plan = append(plan, discoverPages(BranchMoodGenre, q, session, 0, moodGenrePages)...)
	}

	if len(topGenres) > 0 {
		q := constrained(req)
		q.GenreIDs = topGenres
		q.GenreMode = tmdb.GenresAny
		q.MinVoteCount = minVotes(req)
		plan = append(plan, discoverPages(BranchUserPref, q, session, 0, 1)...)
	}

	wildcard := constrained(req)
	wildcard.MinVoteAverage = wildcardMinRating
	wildcard.MinVoteCount = wildcardMinVotes
	plan = append(plan, discoverPages(BranchWildcard, wildcard, session, 0, 1)...)

	if hasListFilters(req) {
		popular := constrained(req)
		popular.SortBy = tmdb.SortPopularity
		popular.MinVoteCount = minVotes(req)
		plan = append(plan, discoverPages(BranchPopular, popular, session, 0, 1)...)

		topRated := constrained(req)
		topRated.SortBy = tmdb.SortRating
		topRated.MinVoteCount = topRatedMinVotes
		plan = append(plan, discoverPages(BranchTopRated, topRated, session, 0, 1)...)
	} else {
		page := pageFor(session, 0)
		plan = append(plan,
			Branch{Name: fmt.Sprintf("%s_p%d", BranchPopular, page), Kind: KindList, List: tmdb.ListPopular, Page: page, Region: req.Region},
			Branch{Name: fmt.Sprintf("%s_p%d", BranchTopRated, page), Kind: KindList, List: tmdb.ListTopRated, Page: page, Region: req.Region},
		)
	}

	if opts.PowerUserSeenThreshold > 0 && profile.SeenTotal() >= opts.PowerUserSeenThreshold {
		plan = append(plan, discoverPages(BranchPowerUser, primary, session, primaryPages, powerUserPages)...)
	}

	if ActiveConstraints(req) > opts.PressureThreshold {
		relief := constrained(req)
		relief.SortBy = tmdb.SortVotes
		plan = append(plan, discoverPages(BranchPressureRelief, relief, session, 0, pressurePages)...)
	}

	plan = append(plan, socialBranches(profile)...)
	return plan
}

// EmergencyPlan relaxes genre and vote floors but keeps hard constraints.
func EmergencyPlan(req models.RecommendationRequest, opts Options) []Branch {
	pages := opts.EmergencyPages
	if pages <= 0 {
		pages = 5
	}
	q := constrained(req)
	q.SortBy = tmdb.SortVotes
	q.MinVoteCount = emergencyMinVotes
	return discoverPages(BranchEmergency, q, req.Session, 0, pages)
}

func socialBranches(profile *models.GroupPreferenceProfile) []Branch {
	var out []Branch
	taken := map[int64]struct{}{}

	for _, id := range topLoved(profile.PeerLoved, maxPeerLoved, taken) {
		out = append(out, Branch{Name: fmt.Sprintf("%s_%d", BranchSocialPeer, id), Kind: KindByID, ID: id, Social: true})
	}
	for _, id := range topLoved(profile.FriendLoved, maxFriendLoved, taken) {
		out = append(out, Branch{Name: fmt.Sprintf("%s_%d", BranchSocialFriend, id), Kind: KindByID, ID: id, Social: true})
	}
	return out
}

// topLoved returns up to n IDs by descending count, skipping taken IDs.
func topLoved(counts map[int64]int, n int, taken map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		if _, dup := taken[id]; dup {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	for _, id := range ids {
		taken[id] = struct{}{}
	}
	return ids
}
