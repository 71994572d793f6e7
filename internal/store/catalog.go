// Package store holds the pipeline's read/write contracts against PostgreSQL,
// Redis and Elasticsearch.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"movienight-workers/internal/models"
)

// CandidateFilter constrains the internal top-candidates query.
type CandidateFilter struct {
	MaxRuntime     int
	EraFrom        int
	EraTo          int
	Certifications []string
	MinRaters      int
	Limit          int
}

// Catalog reads the internal movie catalog and platform ratings.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

const topCandidatesQuery = `
	SELECT m.id, m.title, m.genre_ids, m.runtime, m.certification,
	       COALESCE(to_char(m.release_date, 'YYYY-MM-DD'), ''),
	       m.popularity, m.vote_average, m.vote_count, m.has_poster, m.has_overview,
	       m.director_ids, m.actor_ids,
	       AVG(r.score) AS avg_rating, COUNT(DISTINCT r.user_id) AS rater_count
	FROM movies m
	JOIN ratings r ON r.movie_id = m.id
	WHERE ($1 = 0 OR m.runtime <= $1)
	  AND ($2 = 0 OR EXTRACT(YEAR FROM m.release_date) >= $2)
	  AND ($3 = 0 OR EXTRACT(YEAR FROM m.release_date) <= $3)
	  AND (cardinality($4::text[]) = 0 OR m.certification = ANY($4))
	GROUP BY m.id
	HAVING COUNT(DISTINCT r.user_id) >= $5
	ORDER BY AVG(r.score) * LEAST(COUNT(DISTINCT r.user_id), 10) / 10.0 DESC, m.id
	LIMIT $6`

// TopCandidates returns internal candidates ranked by rating x rater confidence.
func (c *Catalog) TopCandidates(ctx context.Context, f CandidateFilter) ([]models.Candidate, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.MinRaters <= 0 {
		f.MinRaters = 2
	}
	certs := f.Certifications
	if certs == nil {
		certs = []string{}
	}

	rows, err := c.db.QueryContext(ctx, topCandidatesQuery,
		f.MaxRuntime, f.EraFrom, f.EraTo, pq.Array(certs), f.MinRaters, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("query internal candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var (
			cand              models.Candidate
			genres            pq.Int64Array
			directors, actors pq.Int64Array
			runtime           sql.NullInt64
			certification     sql.NullString
			avgRating         float64
			raterCount        int
		)
		if err := rows.Scan(
			&cand.ID, &cand.Title, &genres, &runtime, &certification, &cand.ReleaseDate,
			&cand.Popularity, &cand.VoteAverage, &cand.VoteCount, &cand.HasPoster, &cand.HasOverview,
			&directors, &actors, &avgRating, &raterCount,
		); err != nil {
			return nil, fmt.Errorf("scan internal candidate: %w", err)
		}

		cand.GenreIDs = toInts(genres)
		cand.Runtime = int(runtime.Int64)
		cand.Certification = certification.String
		cand.Source = models.ProvenanceInternal
		cand.InInternalCatalog = true
		cand.Internal = &models.InternalSignal{AvgRating: avgRating, RaterCount: raterCount}
		if len(directors) > 0 || len(actors) > 0 {
			cand.Credits = &models.Credits{DirectorIDs: []int64(directors), ActorIDs: []int64(actors)}
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

// InternalSignals returns platform aggregate ratings for any of ids that exist internally.
func (c *Catalog) InternalSignals(ctx context.Context, ids []int64) (map[int64]models.InternalSignal, error) {
	out := make(map[int64]models.InternalSignal)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT movie_id, AVG(score), COUNT(DISTINCT user_id)
		FROM ratings
		WHERE movie_id = ANY($1)
		GROUP BY movie_id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query internal signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var sig models.InternalSignal
		if err := rows.Scan(&id, &sig.AvgRating, &sig.RaterCount); err != nil {
			return nil, fmt.Errorf("scan internal signal: %w", err)
		}
		out[id] = sig
	}
	return out, rows.Err()
}

// MemberRatings returns each selected member's rating per movie.
func (c *Catalog) MemberRatings(ctx context.Context, members []string, ids []int64) (map[int64]map[string]float64, error) {
	out := make(map[int64]map[string]float64)
	if len(members) == 0 || len(ids) == 0 {
		return out, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT movie_id, user_id, score
		FROM ratings
		WHERE user_id = ANY($1) AND movie_id = ANY($2)`, pq.Array(members), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query member ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var user string
		var score float64
		if err := rows.Scan(&id, &user, &score); err != nil {
			return nil, fmt.Errorf("scan member rating: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]float64)
		}
		out[id][user] = score
	}
	return out, rows.Err()
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
