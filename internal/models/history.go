package models

import "time"

// RecommendationHistoryEntry is persisted for each returned movie.
type RecommendationHistoryEntry struct {
	ID            string    `json:"id" db:"id"`
	CollectiveID  string    `json:"collectiveId" db:"collective_id"`
	MovieID       int64     `json:"movieId" db:"movie_id"`
	RecommendedAt time.Time `json:"recommendedAt" db:"recommended_at"`
}
