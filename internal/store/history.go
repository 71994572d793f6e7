package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"movienight-workers/internal/models"
)

// HistoryStore persists recommendation history rows.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Log writes one row per movie in a single statement.
func (h *HistoryStore) Log(ctx context.Context, collectiveID string, movieIDs []int64, at time.Time) ([]models.RecommendationHistoryEntry, error) {
	if len(movieIDs) == 0 {
		return nil, nil
	}

	entries := make([]models.RecommendationHistoryEntry, 0, len(movieIDs))
	placeholders := make([]string, 0, len(movieIDs))
	args := make([]interface{}, 0, len(movieIDs)*4)
	for i, id := range movieIDs {
		e := models.RecommendationHistoryEntry{
			ID:            uuid.NewString(),
			CollectiveID:  collectiveID,
			MovieID:       id,
			RecommendedAt: at.UTC(),
		}
		entries = append(entries, e)
		n := i * 4
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
		args = append(args, e.ID, e.CollectiveID, e.MovieID, e.RecommendedAt)
	}

	query := "INSERT INTO recommendation_history (id, collective_id, movie_id, recommended_at) VALUES " +
		strings.Join(placeholders, ", ")
	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert recommendation history: %w", err)
	}
	return entries, nil
}

// PurgeOlderThan deletes history rows recommended before cutoff.
func (h *HistoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM recommendation_history WHERE recommended_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge recommendation history: %w", err)
	}
	return res.RowsAffected()
}
