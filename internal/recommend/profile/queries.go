package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"movienight-workers/internal/models"
)

var ErrUnknownQueryType = errors.New("unknown query type")

// Thresholds for signal qualification.
const (
	preferredGenreMinMean = 60.0
	dislikedScoreCeiling  = 40.0
	dislikedMinRatings    = 2
	eraMinRatings         = 5
	crewMinRatings        = 2
	crewMinMean           = 70.0
	peerMinSimilarity     = 0.7
	peerLimit             = 20
	lovedScoreFloor       = 75.0
)

// Params are shared by every preference query.
type Params struct {
	CollectiveID string
	MemberIDs    []string
	Since        time.Time // recommendation history window start
}

// Apply folds one query's result into the profile. Appliers run sequentially
// after fan-in, so they never race.
type Apply func(p *models.GroupPreferenceProfile)

// QueryFunc runs one preference query.
type QueryFunc func(ctx context.Context, db *sql.DB, params Params) (Apply, error)

var Registry = map[models.QueryType]QueryFunc{
	models.QueryTypeGenrePreferences:  GenrePreferences,
	models.QueryTypeSeenMovies:        SeenMovies,
	models.QueryTypeDismissedMovies:   DismissedMovies,
	models.QueryTypeDislikedGenres:    DislikedGenres,
	models.QueryTypeEraPreferences:    EraPreferences,
	models.QueryTypeCrewAffinities:    CrewAffinities,
	models.QueryTypeTasteSimilarPeers: TasteSimilarPeers,
	models.QueryTypeRecommendHistory:  RecommendationHistory,
}

func Execute(ctx context.Context, db *sql.DB, queryType models.QueryType, params Params) (Apply, error) {
	fn, exists := Registry[queryType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueryType, queryType)
	}
	return fn(ctx, db, params)
}

func GenrePreferences(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT g.genre_id, AVG(r.score) AS mean_score, COUNT(DISTINCT r.user_id) AS rater_count
		FROM ratings r
		JOIN movies m ON m.id = r.movie_id
		CROSS JOIN LATERAL unnest(m.genre_ids) AS g(genre_id)
		WHERE r.user_id = ANY($1)
		GROUP BY g.genre_id
		HAVING AVG(r.score) >= $2
		ORDER BY mean_score DESC, g.genre_id`, pq.Array(params.MemberIDs), preferredGenreMinMean)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []models.GenreAffinity
	for rows.Next() {
		var g models.GenreAffinity
		if err := rows.Scan(&g.GenreID, &g.MeanScore, &g.RaterCount); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return func(p *models.GroupPreferenceProfile) { p.PreferredGenres = genres }, nil
}

func SeenMovies(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT movie_id, user_id FROM watched WHERE user_id = ANY($1)
		UNION
		SELECT movie_id, user_id FROM ratings WHERE user_id = ANY($1)`, pq.Array(params.MemberIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[int64][]string{}
	for rows.Next() {
		var id int64
		var user string
		if err := rows.Scan(&id, &user); err != nil {
			return nil, err
		}
		seen[id] = append(seen[id], user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return func(p *models.GroupPreferenceProfile) { p.Seen = seen }, nil
}

func DismissedMovies(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	ids, err := queryIDSet(ctx, db, `
		SELECT DISTINCT movie_id FROM dismissed_movies WHERE user_id = ANY($1)`, pq.Array(params.MemberIDs))
	if err != nil {
		return nil, err
	}
	return func(p *models.GroupPreferenceProfile) { p.Dismissed = ids }, nil
}

// DislikedGenres qualifies a genre only after two or more sub-40 ratings
// across the group.
func DislikedGenres(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT g.genre_id, COUNT(*) FILTER (WHERE r.score < $2) AS low_count
		FROM ratings r
		JOIN movies m ON m.id = r.movie_id
		CROSS JOIN LATERAL unnest(m.genre_ids) AS g(genre_id)
		WHERE r.user_id = ANY($1)
		GROUP BY g.genre_id`, pq.Array(params.MemberIDs), dislikedScoreCeiling)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	disliked := map[int]struct{}{}
	for rows.Next() {
		var genre, lowCount int
		if err := rows.Scan(&genre, &lowCount); err != nil {
			return nil, err
		}
		if lowCount >= dislikedMinRatings {
			disliked[genre] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return func(p *models.GroupPreferenceProfile) { p.DislikedGenres = disliked }, nil
}

// EraPreferences keeps decades with five or more ratings, best first.
func EraPreferences(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT (EXTRACT(YEAR FROM m.release_date)::int / 10) * 10 AS decade,
		       AVG(r.score), COUNT(*)
		FROM ratings r
		JOIN movies m ON m.id = r.movie_id
		WHERE r.user_id = ANY($1) AND m.release_date IS NOT NULL
		GROUP BY decade`, pq.Array(params.MemberIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eras []models.EraAffinity
	for rows.Next() {
		var e models.EraAffinity
		if err := rows.Scan(&e.Decade, &e.MeanScore, &e.RatingCount); err != nil {
			return nil, err
		}
		if e.RatingCount >= eraMinRatings {
			eras = append(eras, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(eras, func(i, j int) bool {
		if eras[i].MeanScore != eras[j].MeanScore {
			return eras[i].MeanScore > eras[j].MeanScore
		}
		return eras[i].Decade > eras[j].Decade
	})
	return func(p *models.GroupPreferenceProfile) { p.Eras = eras }, nil
}

// CrewAffinities maps directors and top-billed actors the group rates highly
// to an affinity in [0,1].
func CrewAffinities(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.person_id, AVG(r.score)
		FROM ratings r
		JOIN movie_credits c ON c.movie_id = r.movie_id
		WHERE r.user_id = ANY($1) AND (c.role = 'director' OR c.billing <= 5)
		GROUP BY c.person_id
		HAVING COUNT(*) >= $2 AND AVG(r.score) >= $3`,
		pq.Array(params.MemberIDs), crewMinRatings, crewMinMean)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	affinity := map[int64]float64{}
	for rows.Next() {
		var person int64
		var mean float64
		if err := rows.Scan(&person, &mean); err != nil {
			return nil, err
		}
		affinity[person] = crewAffinity(mean)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return func(p *models.GroupPreferenceProfile) { p.CrewAffinity = affinity }, nil
}

func crewAffinity(mean float64) float64 {
	a := (mean - 50) / 50
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// TasteSimilarPeers loads the peer set plus what peers and the rest of the
// collective loved.
func TasteSimilarPeers(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	peers, err := queryPeers(ctx, db, params.MemberIDs)
	if err != nil {
		return nil, err
	}

	peerLoved := map[int64]int{}
	if len(peers) > 0 {
		peerLoved, err = queryIDCounts(ctx, db, `
			SELECT movie_id, COUNT(DISTINCT user_id) AS peer_count
			FROM ratings
			WHERE user_id = ANY($1) AND score >= $2
			GROUP BY movie_id`, pq.Array(peers), lovedScoreFloor)
		if err != nil {
			return nil, err
		}
	}

	friendLoved := map[int64]int{}
	if params.CollectiveID != "" {
		friendLoved, err = queryIDCounts(ctx, db, `
			SELECT r.movie_id, COUNT(DISTINCT r.user_id) AS friend_count
			FROM ratings r
			JOIN collective_members cm ON cm.user_id = r.user_id
			WHERE cm.collective_id = $1 AND NOT (r.user_id = ANY($2)) AND r.score >= $3
			GROUP BY r.movie_id`, params.CollectiveID, pq.Array(params.MemberIDs), lovedScoreFloor)
		if err != nil {
			return nil, err
		}
	}

	return func(p *models.GroupPreferenceProfile) {
		p.Peers = peers
		p.PeerLoved = peerLoved
		p.FriendLoved = friendLoved
	}, nil
}

func queryPeers(ctx context.Context, db *sql.DB, members []string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT peer_id, MAX(similarity) AS best_similarity
		FROM taste_similarity
		WHERE user_id = ANY($1) AND NOT (peer_id = ANY($1)) AND similarity >= $2
		GROUP BY peer_id
		ORDER BY best_similarity DESC, peer_id
		LIMIT $3`, pq.Array(members), peerMinSimilarity, peerLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []string
	for rows.Next() {
		var peer string
		var sim float64
		if err := rows.Scan(&peer, &sim); err != nil {
			return nil, err
		}
		peers = append(peers, peer)
	}
	return peers, rows.Err()
}

func RecommendationHistory(ctx context.Context, db *sql.DB, params Params) (Apply, error) {
	if params.CollectiveID == "" {
		return func(*models.GroupPreferenceProfile) {}, nil
	}
	ids, err := queryIDSet(ctx, db, `
		SELECT DISTINCT movie_id FROM recommendation_history
		WHERE collective_id = $1 AND recommended_at >= $2`, params.CollectiveID, params.Since.UTC())
	if err != nil {
		return nil, err
	}
	return func(p *models.GroupPreferenceProfile) { p.RecentlyShown = ids }, nil
}

func queryIDSet(ctx context.Context, db *sql.DB, query string, args ...interface{}) (map[int64]struct{}, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func queryIDCounts(ctx context.Context, db *sql.DB, query string, args ...interface{}) (map[int64]int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64]int{}
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
