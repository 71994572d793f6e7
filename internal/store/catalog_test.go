package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var candidateColumns = []string{
	"id", "title", "genre_ids", "runtime", "certification", "release_date",
	"popularity", "vote_average", "vote_count", "has_poster", "has_overview",
	"director_ids", "actor_ids", "avg_rating", "rater_count",
}

func TestCatalog_TopCandidates(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery("FROM movies m").
		WillReturnRows(sqlmock.NewRows(candidateColumns).
			AddRow(550, "Fight Club", "{18,53}", 139, "R", "1999-10-15", 61.4, 8.4, 27000, true, true, "{7467}", "{819,287}", 88.5, 6).
			AddRow(13, "Forrest Gump", "{35,18,10749}", nil, nil, "1994-06-23", 50.2, 8.5, 25000, true, true, "{}", "{}", 80.0, 3))

	cands, err := NewCatalog(db).TopCandidates(context.Background(), CandidateFilter{MaxRuntime: 150})
	require.NoError(t, err)
	require.Len(t, cands, 2)

	first := cands[0]
	assert.Equal(t, int64(550), first.ID)
	assert.Equal(t, []int{18, 53}, first.GenreIDs)
	assert.Equal(t, 139, first.Runtime)
	assert.Equal(t, "R", first.Certification)
	assert.True(t, first.InInternalCatalog)
	require.NotNil(t, first.Internal)
	assert.Equal(t, 6, first.Internal.RaterCount)
	require.NotNil(t, first.Credits)
	assert.Equal(t, []int64{7467}, first.Credits.DirectorIDs)
	assert.Equal(t, 1999, first.ReleaseYear())

	second := cands[1]
	assert.Equal(t, 0, second.Runtime)
	assert.Empty(t, second.Certification)
	assert.Nil(t, second.Credits)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_TopCandidates_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("FROM movies m").WillReturnError(errors.New("connection reset"))

	_, err := NewCatalog(db).TopCandidates(context.Background(), CandidateFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCatalog_InternalSignals(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("FROM ratings").
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "avg", "count"}).
			AddRow(550, 91.0, 4).
			AddRow(13, 72.5, 2))

	sigs, err := NewCatalog(db).InternalSignals(context.Background(), []int64{550, 13, 99})
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
	assert.Equal(t, 91.0, sigs[550].AvgRating)
	assert.Equal(t, 2, sigs[13].RaterCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_InternalSignals_EmptyInputSkipsQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	sigs, err := NewCatalog(db).InternalSignals(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, sigs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_MemberRatings(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("SELECT movie_id, user_id, score").
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "user_id", "score"}).
			AddRow(550, "alice", 95.0).
			AddRow(550, "bob", 70.0).
			AddRow(13, "alice", 40.0))

	ratings, err := NewCatalog(db).MemberRatings(context.Background(), []string{"alice", "bob"}, []int64{550, 13})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"alice": 95, "bob": 70}, ratings[550])
	assert.Equal(t, 40.0, ratings[13]["alice"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_Log(t *testing.T) {
	db, mock := setupMockDB(t)
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO recommendation_history").
		WithArgs(sqlmock.AnyArg(), "col-1", int64(550), at, sqlmock.AnyArg(), "col-1", int64(13), at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	entries, err := NewHistoryStore(db).Log(context.Background(), "col-1", []int64{550, 13}, at)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, int64(13), entries[1].MovieID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_LogNothing(t *testing.T) {
	db, mock := setupMockDB(t)
	entries, err := NewHistoryStore(db).Log(context.Background(), "col-1", nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_PurgeOlderThan(t *testing.T) {
	db, mock := setupMockDB(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM recommendation_history").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	n, err := NewHistoryStore(db).PurgeOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
