// internal/models/query_types.go
package models

// QueryType names one branch of the group preference fan-out.
type QueryType string

const (
	QueryTypeGenrePreferences   QueryType = "genre_preferences"
	QueryTypeSeenMovies         QueryType = "seen_movies"
	QueryTypeDismissedMovies    QueryType = "dismissed_movies"
	QueryTypeDislikedGenres     QueryType = "disliked_genres"
	QueryTypeEraPreferences     QueryType = "era_preferences"
	QueryTypeCrewAffinities     QueryType = "crew_affinities"
	QueryTypeTasteSimilarPeers  QueryType = "taste_similar_peers"
	QueryTypeRecommendHistory   QueryType = "recommendation_history"
	QueryTypeInternalCandidates QueryType = "internal_top_candidates"
)

// ProfileQueryTypes lists every preference query in the order results are logged.
var ProfileQueryTypes = []QueryType{
	QueryTypeGenrePreferences,
	QueryTypeSeenMovies,
	QueryTypeDismissedMovies,
	QueryTypeDislikedGenres,
	QueryTypeEraPreferences,
	QueryTypeCrewAffinities,
	QueryTypeTasteSimilarPeers,
	QueryTypeRecommendHistory,
	QueryTypeInternalCandidates,
}
