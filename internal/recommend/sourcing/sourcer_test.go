package sourcing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/common/tmdb"
	"movienight-workers/internal/models"
	"movienight-workers/internal/recommend/fanout"
)

var testOpts = Options{PowerUserSeenThreshold: 200, PressureThreshold: 2, EmergencyPages: 5}

func pairRequest(moods ...models.Mood) models.RecommendationRequest {
	return models.RecommendationRequest{
		CollectiveID: "col-1",
		MemberIDs:    []string{"alice", "bob"},
		Moods:        moods,
		Audience:     models.AudienceAnyone,
	}
}

func emptyProfile() *models.GroupPreferenceProfile {
	return models.NewGroupPreferenceProfile("col-1", []string{"alice", "bob"}, models.AudienceAnyone)
}

func branchesNamed(plan []Branch, prefix string) []Branch {
	var out []Branch
	for _, b := range plan {
		if strings.HasPrefix(b.Name, prefix+"_") {
			out = append(out, b)
		}
	}
	return out
}

func TestPlan_FunnyMoodUsesOrOverComedyAndAnimation(t *testing.T) {
	plan := Plan(pairRequest(models.MoodFunny), emptyProfile(), testOpts)

	primary := branchesNamed(plan, BranchPrimary)
	require.Len(t, primary, 3)
	for i, b := range primary {
		assert.Equal(t, KindDiscover, b.Kind)
		assert.Equal(t, []int{models.GenreComedy, models.GenreAnimation}, b.Query.GenreIDs)
		assert.Equal(t, tmdb.GenresAny, b.Query.GenreMode)
		assert.Equal(t, i+1, b.Query.Page)
		assert.Equal(t, "35|16", b.Query.Values("US").Get("with_genres"))
	}

	moodGenre := branchesNamed(plan, BranchMoodGenre)
	require.Len(t, moodGenre, 2)
	assert.Equal(t, tmdb.SortPopularity, moodGenre[0].Query.SortBy)
	assert.Equal(t, tmdb.GenresAny, moodGenre[0].Query.GenreMode)

	assert.Empty(t, branchesNamed(plan, BranchUserPref), "no preferred genres yet")
	require.Len(t, branchesNamed(plan, BranchWildcard), 1)
	wildcard := branchesNamed(plan, BranchWildcard)[0].Query
	assert.Empty(t, wildcard.GenreIDs)
	assert.Equal(t, 7.0, wildcard.MinVoteAverage)
	assert.Equal(t, 500, wildcard.MinVoteCount)

	popular := branchesNamed(plan, BranchPopular)
	require.Len(t, popular, 1)
	assert.Equal(t, KindList, popular[0].Kind)
	assert.Equal(t, tmdb.ListTopRated, branchesNamed(plan, BranchTopRated)[0].List)

	assert.Empty(t, branchesNamed(plan, BranchPowerUser))
	assert.Empty(t, branchesNamed(plan, BranchPressureRelief))
	assert.Len(t, plan, 8)
}

func TestPlan_NoMoodUsesAndOverPreferredGenres(t *testing.T) {
	profile := emptyProfile()
	profile.PreferredGenres = []models.GenreAffinity{
		{GenreID: models.GenreDrama, MeanScore: 90}, {GenreID: models.GenreCrime, MeanScore: 80},
		{GenreID: models.GenreThriller, MeanScore: 75}, {GenreID: models.GenreWar, MeanScore: 70},
	}

	plan := Plan(pairRequest(), profile, testOpts)

	primary := branchesNamed(plan, BranchPrimary)[0].Query
	assert.Equal(t, []int{18, 80, 53}, primary.GenreIDs)
	assert.Equal(t, tmdb.GenresAll, primary.GenreMode)
	assert.Equal(t, "18,80,53", primary.Values("US").Get("with_genres"))

	assert.Empty(t, branchesNamed(plan, BranchMoodGenre))
	userPref := branchesNamed(plan, BranchUserPref)
	require.Len(t, userPref, 1)
	assert.Equal(t, tmdb.GenresAny, userPref[0].Query.GenreMode)
}

func TestPlan_AcclaimedRaisesVoteFloor(t *testing.T) {
	plan := Plan(pairRequest(models.MoodAcclaimed), emptyProfile(), testOpts)
	assert.Equal(t, 200, branchesNamed(plan, BranchPrimary)[0].Query.MinVoteCount)
}

func TestPlan_PowerUserDeepPages(t *testing.T) {
	profile := emptyProfile()
	for i := int64(0); i < 200; i++ {
		profile.Seen[i] = []string{"alice"}
	}

	deep := branchesNamed(Plan(pairRequest(models.MoodFun), profile, testOpts), BranchPowerUser)
	require.Len(t, deep, 3)
	assert.Equal(t, 4, deep[0].Query.Page)
	assert.Equal(t, 6, deep[2].Query.Page)
}

func TestPlan_PressureReliefAndConstrainedLists(t *testing.T) {
	req := pairRequest()
	req.MaxRuntime = 100
	req.EraFrom = 1980
	req.Audience = models.AudienceTeens
	require.Equal(t, 3, ActiveConstraints(req))

	plan := Plan(req, emptyProfile(), testOpts)

	relief := branchesNamed(plan, BranchPressureRelief)
	require.Len(t, relief, 2)
	assert.Equal(t, tmdb.SortVotes, relief[0].Query.SortBy)
	assert.Equal(t, 100, relief[0].Query.MaxRuntime)

	popular := branchesNamed(plan, BranchPopular)
	require.Len(t, popular, 1)
	assert.Equal(t, KindDiscover, popular[0].Kind, "constrained requests cannot use curated lists")
	assert.Equal(t, []string{"G", "PG", "PG-13"}, popular[0].Query.Certifications)
}

func TestPlan_SessionPageOffsetsDiscovery(t *testing.T) {
	req := pairRequest(models.MoodFunny)
	req.Session = models.ShuffleSession{Page: 1}

	primary := branchesNamed(Plan(req, emptyProfile(), testOpts), BranchPrimary)
	require.Len(t, primary, 3)
	assert.Equal(t, 7, primary[0].Query.Page)
	assert.Equal(t, 9, primary[2].Query.Page)
}

func TestPlan_SocialInjectionCaps(t *testing.T) {
	profile := emptyProfile()
	for i := int64(1); i <= 12; i++ {
		profile.PeerLoved[i] = int(i)
	}
	for i := int64(100); i < 130; i++ {
		profile.FriendLoved[i] = 1
	}
	profile.FriendLoved[12] = 5

	plan := Plan(pairRequest(), profile, testOpts)
	peers := branchesNamed(plan, BranchSocialPeer)
	friends := branchesNamed(plan, BranchSocialFriend)

	require.Len(t, peers, 10)
	assert.Equal(t, int64(12), peers[0].ID, "highest peer count first")
	require.Len(t, friends, 25)
	for _, b := range friends {
		assert.NotEqual(t, int64(12), b.ID, "already injected as peer-loved")
		assert.True(t, b.Social)
	}
}

func TestEmergencyPlan(t *testing.T) {
	req := pairRequest(models.MoodScary)
	req.MaxRuntime = 90

	plan := EmergencyPlan(req, testOpts)
	require.Len(t, plan, 5)
	for _, b := range plan {
		assert.Empty(t, b.Query.GenreIDs)
		assert.Equal(t, 10, b.Query.MinVoteCount)
		assert.Equal(t, 90, b.Query.MaxRuntime)
	}
}

// fakeCatalog serves canned pages and records calls.
type fakeCatalog struct {
	mu       sync.Mutex
	discover []tmdb.DiscoverQuery
	failPage int
	byID     map[int64]models.Candidate
}

func (f *fakeCatalog) Discover(_ context.Context, q tmdb.DiscoverQuery) ([]models.Candidate, error) {
	f.mu.Lock()
	f.discover = append(f.discover, q)
	f.mu.Unlock()
	if q.Page == f.failPage {
		return nil, errors.New("upstream 503")
	}
	return []models.Candidate{{ID: int64(q.Page * 1000), Source: models.ProvenanceExternal}}, nil
}

func (f *fakeCatalog) List(_ context.Context, list tmdb.List, page int, _ string) ([]models.Candidate, error) {
	id := int64(900000 + page)
	if list == tmdb.ListTopRated {
		id++
	}
	return []models.Candidate{{ID: id}}, nil
}

func (f *fakeCatalog) MovieByID(_ context.Context, id int64) (models.Candidate, error) {
	c, ok := f.byID[id]
	if !ok {
		return models.Candidate{}, errors.New("not found")
	}
	return c, nil
}

func TestSourcer_Fetch(t *testing.T) {
	catalog := &fakeCatalog{
		failPage: 2,
		byID: map[int64]models.Candidate{
			1: {ID: 1, Title: "Short", Runtime: 95},
			2: {ID: 2, Title: "Epic", Runtime: 201},
		},
	}
	profile := emptyProfile()
	profile.PeerLoved = map[int64]int{1: 3, 2: 2, 3: 2}

	req := pairRequest(models.MoodFunny)
	req.MaxRuntime = 150

	log := logger.NewTestLogger(t)
	s := NewSourcer(catalog, fanout.NewGroup(4, time.Second, log), testOpts, log)
	res := s.Fetch(context.Background(), req, profile)

	assert.Contains(t, res.Report.Failed, "primary_p2")
	assert.Contains(t, res.Report.Failed, "mood_genre_p2")
	assert.Contains(t, res.Report.Failed, "social_peer_3")
	assert.False(t, res.Report.AllFailed())

	var social []models.Candidate
	for _, c := range res.Candidates {
		if c.ViaSocial {
			social = append(social, c)
		}
	}
	require.Len(t, social, 1, "the 201-minute title exceeds the runtime cap")
	assert.Equal(t, int64(1), social[0].ID)

	for _, q := range catalog.discover {
		assert.Equal(t, 150, q.MaxRuntime)
	}
}

func TestSourcer_EmergencyRunsRelaxedPages(t *testing.T) {
	catalog := &fakeCatalog{}
	log := logger.NewTestLogger(t)
	s := NewSourcer(catalog, fanout.NewGroup(2, time.Second, log), testOpts, log)

	res := s.Emergency(context.Background(), pairRequest(models.MoodFunny))
	assert.Len(t, res.Candidates, 5)
	assert.Len(t, catalog.discover, 5)
}

func TestWithinConstraints(t *testing.T) {
	req := pairRequest()
	req.Audience = models.AudienceTeens
	req.EraFrom = 1990
	req.EraTo = 1999

	assert.True(t, WithinConstraints(models.Candidate{Certification: "PG-13", ReleaseDate: "1994-06-23"}, req))
	assert.False(t, WithinConstraints(models.Candidate{Certification: "R", ReleaseDate: "1994-06-23"}, req))
	assert.False(t, WithinConstraints(models.Candidate{Certification: "PG", ReleaseDate: "2004-01-01"}, req))
	assert.False(t, WithinConstraints(models.Candidate{Certification: "", ReleaseDate: "1995-01-01"}, req))
}
