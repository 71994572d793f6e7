package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movienight-workers/internal/models"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestSignalCache_CriticScores(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	require.NoError(t, mr.Set("movie:critic:550", `{"imdb":8.8,"rt":79,"metacritic":66}`))
	require.NoError(t, mr.Set("movie:critic:13", `{}`))
	require.NoError(t, mr.Set("movie:critic:14", `not json`))

	scores, err := NewSignalCache(rdb).CriticScores(context.Background(), []int64{550, 13, 14, 99})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	require.NotNil(t, scores[550].IMDb)
	assert.Equal(t, 8.8, *scores[550].IMDb)
	assert.Equal(t, 79.0, *scores[550].RottenTomatoes)
}

func TestSignalCache_MoodVectors(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	require.NoError(t, mr.Set("movie:mood:550", `{"intense":0.9,"funny":0.05}`))

	vecs, err := NewSignalCache(rdb).MoodVectors(context.Background(), []int64{550, 13})
	require.NoError(t, err)
	require.Contains(t, vecs, int64(550))
	assert.Equal(t, 0.9, vecs[550][models.MoodIntense])
	assert.NotContains(t, vecs, int64(13))
}

func TestSignalCache_RedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectMGet("movie:critic:1", "movie:critic:2").SetErr(errors.New("redis down"))

	scores, err := NewSignalCache(rdb).CriticScores(context.Background(), []int64{1, 2})
	require.Error(t, err)
	assert.Empty(t, scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingFetcher struct {
	calls   int
	credits models.Credits
	err     error
}

func (f *countingFetcher) Credits(_ context.Context, _ int64) (models.Credits, error) {
	f.calls++
	return f.credits, f.err
}

func TestCreditsCache_CacheAside(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	fetcher := &countingFetcher{credits: models.Credits{DirectorIDs: []int64{7467}, ActorIDs: []int64{819, 287}}}
	cache := NewCreditsCache(rdb, fetcher, time.Hour)

	first, err := cache.Credits(context.Background(), 550)
	require.NoError(t, err)
	assert.Equal(t, fetcher.credits, first)
	assert.True(t, mr.Exists("movie:credits:550"))
	assert.Equal(t, time.Hour, mr.TTL("movie:credits:550"))

	second, err := cache.Credits(context.Background(), 550)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)
}

func TestCreditsCache_RedisErrorFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("movie:credits:42").SetErr(errors.New("redis down"))

	fetcher := &countingFetcher{credits: models.Credits{DirectorIDs: []int64{1}}}
	cr, err := NewCreditsCache(rdb, fetcher, time.Hour).Credits(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, cr.DirectorIDs)
	assert.Equal(t, 1, fetcher.calls)
}

func TestCreditsCache_FetcherError(t *testing.T) {
	_, rdb := setupMiniredis(t)
	fetcher := &countingFetcher{err: errors.New("upstream 503")}

	_, err := NewCreditsCache(rdb, fetcher, time.Hour).Credits(context.Background(), 42)
	require.Error(t, err)
}
