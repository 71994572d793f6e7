// Package tmdb is a client for the external movie catalog: discovery, list
// endpoints, lookups by ID and credits.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"movienight-workers/internal/common/config"
	apperrors "movienight-workers/internal/common/errors"
	httpclient "movienight-workers/internal/common/http"
	"movienight-workers/internal/models"
)

// GenreMode selects how discovery combines genre IDs.
type GenreMode int

const (
	GenresAll GenreMode = iota // AND
	GenresAny                  // OR
)

// Sort orders accepted by discovery.
const (
	SortPopularity = "popularity.desc"
	SortRating     = "vote_average.desc"
	SortVotes      = "vote_count.desc"
)

// List is a curated list endpoint.
type List string

const (
	ListPopular  List = "popular"
	ListTopRated List = "top_rated"
)

// DiscoverQuery is one discovery page request. Zero values are omitted.
type DiscoverQuery struct {
	GenreIDs       []int
	GenreMode      GenreMode
	SortBy         string
	Page           int
	MinVoteAverage float64
	MinVoteCount   int
	MaxRuntime     int
	ReleaseFrom    int // year
	ReleaseTo      int // year
	Certifications []string
	Providers      []int
	Region         string
}

// Values encodes the query parameters.
func (q DiscoverQuery) Values(defaultRegion string) url.Values {
	v := url.Values{}
	if len(q.GenreIDs) > 0 {
		sep := ","
		if q.GenreMode == GenresAny {
			sep = "|"
		}
		v.Set("with_genres", joinInts(q.GenreIDs, sep))
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortPopularity
	}
	v.Set("sort_by", sortBy)
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("include_adult", "false")
	if q.MinVoteAverage > 0 {
		v.Set("vote_average.gte", strconv.FormatFloat(q.MinVoteAverage, 'f', -1, 64))
	}
	if q.MinVoteCount > 0 {
		v.Set("vote_count.gte", strconv.Itoa(q.MinVoteCount))
	}
	if q.MaxRuntime > 0 {
		v.Set("with_runtime.lte", strconv.Itoa(q.MaxRuntime))
	}
	if q.ReleaseFrom > 0 {
		v.Set("primary_release_date.gte", fmt.Sprintf("%04d-01-01", q.ReleaseFrom))
	}
	if q.ReleaseTo > 0 {
		v.Set("primary_release_date.lte", fmt.Sprintf("%04d-12-31", q.ReleaseTo))
	}

	region := q.Region
	if region == "" {
		region = defaultRegion
	}
	if len(q.Certifications) > 0 {
		v.Set("certification_country", region)
		v.Set("certification", strings.Join(q.Certifications, "|"))
	}
	if len(q.Providers) > 0 {
		v.Set("with_watch_providers", joinInts(q.Providers, "|"))
		v.Set("watch_region", region)
	}
	return v
}

// Client talks to the external catalog API.
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	region  string
}

func NewClient(cfg config.TMDBConfig) *Client {
	return &Client{
		http: httpclient.NewClient(httpclient.Options{
			Name:              "tmdb",
			Timeout:           time.Duration(cfg.Timeout) * time.Millisecond,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			BreakerFailures:   cfg.BreakerFailures,
			BreakerCooldown:   time.Duration(cfg.BreakerCooldown) * time.Millisecond,
		}),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		region:  cfg.Region,
	}
}

// BreakerState exposes the circuit state for readiness output.
func (c *Client) BreakerState() string {
	return c.http.BreakerState()
}

type movieSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	GenreIDs    []int   `json:"genre_ids"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
}

func (m movieSummary) toCandidate() models.Candidate {
	return models.Candidate{
		ID:          m.ID,
		Title:       m.Title,
		GenreIDs:    m.GenreIDs,
		ReleaseDate: m.ReleaseDate,
		Popularity:  m.Popularity,
		VoteAverage: m.VoteAverage,
		VoteCount:   m.VoteCount,
		HasPoster:   m.PosterPath != "",
		HasOverview: strings.TrimSpace(m.Overview) != "",
		Source:      models.ProvenanceExternal,
	}
}

type pageResponse struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Results    []movieSummary `json:"results"`
}

// Discover fetches one discovery page.
func (c *Client) Discover(ctx context.Context, q DiscoverQuery) ([]models.Candidate, error) {
	var resp pageResponse
	if err := c.get(ctx, "discover", "/discover/movie", q.Values(c.region), &resp); err != nil {
		return nil, err
	}
	return toCandidates(resp.Results), nil
}

// List fetches one page of a curated list.
func (c *Client) List(ctx context.Context, list List, page int, region string) ([]models.Candidate, error) {
	if page < 1 {
		page = 1
	}
	if region == "" {
		region = c.region
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	if region != "" {
		v.Set("region", region)
	}

	var resp pageResponse
	if err := c.get(ctx, string(list), "/movie/"+string(list), v, &resp); err != nil {
		return nil, err
	}
	return toCandidates(resp.Results), nil
}

type movieDetail struct {
	movieSummary
	Runtime int `json:"runtime"`
	Genres  []struct {
		ID int `json:"id"`
	} `json:"genres"`
	ReleaseDates struct {
		Results []struct {
			Country      string `json:"iso_3166_1"`
			ReleaseDates []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	} `json:"release_dates"`
}

// MovieByID fetches full details, including runtime and the regional certification.
func (c *Client) MovieByID(ctx context.Context, id int64) (models.Candidate, error) {
	v := url.Values{}
	v.Set("append_to_response", "release_dates")

	var d movieDetail
	if err := c.get(ctx, "movie", "/movie/"+strconv.FormatInt(id, 10), v, &d); err != nil {
		return models.Candidate{}, err
	}

	cand := d.toCandidate()
	cand.Runtime = d.Runtime
	if len(cand.GenreIDs) == 0 {
		for _, g := range d.Genres {
			cand.GenreIDs = append(cand.GenreIDs, g.ID)
		}
	}
	for _, r := range d.ReleaseDates.Results {
		if r.Country != c.region {
			continue
		}
		for _, rd := range r.ReleaseDates {
			if rd.Certification != "" {
				cand.Certification = rd.Certification
				break
			}
		}
	}
	return cand, nil
}

// topBilledActors is how many cast members count as top-billed.
const topBilledActors = 5

type creditsResponse struct {
	Cast []struct {
		ID    int64 `json:"id"`
		Order int   `json:"order"`
	} `json:"cast"`
	Crew []struct {
		ID  int64  `json:"id"`
		Job string `json:"job"`
	} `json:"crew"`
}

// Credits returns directors and the top-billed cast.
func (c *Client) Credits(ctx context.Context, id int64) (models.Credits, error) {
	var resp creditsResponse
	if err := c.get(ctx, "credits", "/movie/"+strconv.FormatInt(id, 10)+"/credits", nil, &resp); err != nil {
		return models.Credits{}, err
	}

	var out models.Credits
	for _, crew := range resp.Crew {
		if crew.Job == "Director" {
			out.DirectorIDs = append(out.DirectorIDs, crew.ID)
		}
	}
	sort.SliceStable(resp.Cast, func(i, j int) bool { return resp.Cast[i].Order < resp.Cast[j].Order })
	for i, cast := range resp.Cast {
		if i == topBilledActors {
			break
		}
		out.ActorIDs = append(out.ActorIDs, cast.ID)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	if err := c.http.GetJSON(ctx, endpoint, headers, out); err != nil {
		if errors.Is(err, httpclient.ErrThrottled) {
			return apperrors.NewExternalCatalogThrottledError(op, err)
		}
		return apperrors.NewExternalCatalogError(op, err)
	}
	return nil
}

func toCandidates(in []movieSummary) []models.Candidate {
	out := make([]models.Candidate, 0, len(in))
	for _, m := range in {
		out = append(out, m.toCandidate())
	}
	return out
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
