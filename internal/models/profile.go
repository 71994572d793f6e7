package models

import "fmt"

// Audience is the viewing audience mode for a request.
type Audience string

const (
	AudienceAnyone Audience = "anyone"
	AudienceTeens  Audience = "teens"
	AudienceAdults Audience = "adults"
)

// ParseAudience validates an audience mode; empty defaults to anyone.
func ParseAudience(s string) (Audience, error) {
	switch Audience(s) {
	case "":
		return AudienceAnyone, nil
	case AudienceAnyone, AudienceTeens, AudienceAdults:
		return Audience(s), nil
	}
	return "", fmt.Errorf("unknown audience %q", s)
}

// CertificationCeiling returns the allowed US certifications, or nil for no ceiling.
func (a Audience) CertificationCeiling() []string {
	if a == AudienceTeens {
		return []string{"G", "PG", "PG-13"}
	}
	return nil
}

// GenreAffinity is the group's mean rating for a genre.
type GenreAffinity struct {
	GenreID    int     `json:"genreId"`
	MeanScore  float64 `json:"meanScore"` // 0-100
	RaterCount int     `json:"raterCount"`
}

// EraAffinity is the group's mean rating for a release decade.
type EraAffinity struct {
	Decade      int     `json:"decade"`
	MeanScore   float64 `json:"meanScore"`
	RatingCount int     `json:"ratingCount"`
}

// GroupPreferenceProfile is built once per request from persisted history and
// read by every later stage. Absent signals are empty, never nil-checked.
type GroupPreferenceProfile struct {
	CollectiveID string   `json:"collectiveId"`
	MemberIDs    []string `json:"memberIds"`
	Audience     Audience `json:"audience"`

	PreferredGenres []GenreAffinity    `json:"preferredGenres"` // ranked by MeanScore desc
	DislikedGenres  map[int]struct{}   `json:"-"`
	Eras            []EraAffinity      `json:"eras"`            // eligible decades only, ranked
	CrewAffinity    map[int64]float64  `json:"-"`               // person ID -> [0,1]
	Peers           []string           `json:"peers"`
	PeerLoved       map[int64]int      `json:"-"`               // movie ID -> peers who loved it
	FriendLoved     map[int64]int      `json:"-"`               // movie ID -> collective friends who loved it
	Seen            map[int64][]string `json:"-"`               // movie ID -> selected members who saw it
	Dismissed       map[int64]struct{} `json:"-"`
	RecentlyShown   map[int64]struct{} `json:"-"`               // recommendation history window
}

// NewGroupPreferenceProfile returns a profile with every signal empty.
func NewGroupPreferenceProfile(collectiveID string, members []string, audience Audience) *GroupPreferenceProfile {
	return &GroupPreferenceProfile{
		CollectiveID:   collectiveID,
		MemberIDs:      members,
		Audience:       audience,
		DislikedGenres: map[int]struct{}{},
		CrewAffinity:   map[int64]float64{},
		PeerLoved:      map[int64]int{},
		FriendLoved:    map[int64]int{},
		Seen:           map[int64][]string{},
		Dismissed:      map[int64]struct{}{},
		RecentlyShown:  map[int64]struct{}{},
	}
}

// GroupSize is the number of selected members.
func (p *GroupPreferenceProfile) GroupSize() int {
	return len(p.MemberIDs)
}

// Solo reports whether exactly one member is selected.
func (p *GroupPreferenceProfile) Solo() bool {
	return len(p.MemberIDs) == 1
}

// IsDisliked reports whether genre qualified as disliked.
func (p *GroupPreferenceProfile) IsDisliked(genre int) bool {
	_, ok := p.DislikedGenres[genre]
	return ok
}

// IsDismissed reports whether any member dismissed the movie.
func (p *GroupPreferenceProfile) IsDismissed(id int64) bool {
	_, ok := p.Dismissed[id]
	return ok
}

// RecentlyRecommended reports whether the movie is in the history window.
func (p *GroupPreferenceProfile) RecentlyRecommended(id int64) bool {
	_, ok := p.RecentlyShown[id]
	return ok
}

// SeenFraction is the share of selected members who have seen the movie.
func (p *GroupPreferenceProfile) SeenFraction(id int64) float64 {
	if len(p.MemberIDs) == 0 {
		return 0
	}
	f := float64(len(p.Seen[id])) / float64(len(p.MemberIDs))
	if f > 1 {
		return 1
	}
	return f
}

// SeenTotal counts distinct movies seen by any selected member.
func (p *GroupPreferenceProfile) SeenTotal() int {
	return len(p.Seen)
}

// TopDecade returns the single highest-rated eligible decade.
func (p *GroupPreferenceProfile) TopDecade() (int, bool) {
	if len(p.Eras) == 0 {
		return 0, false
	}
	return p.Eras[0].Decade, true
}

// TopGenreIDs returns up to n preferred genre IDs in rank order.
func (p *GroupPreferenceProfile) TopGenreIDs(n int) []int {
	if n > len(p.PreferredGenres) {
		n = len(p.PreferredGenres)
	}
	ids := make([]int, 0, n)
	for _, g := range p.PreferredGenres[:n] {
		ids = append(ids, g.GenreID)
	}
	return ids
}
