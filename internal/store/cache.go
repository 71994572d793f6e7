package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"movienight-workers/internal/common/metrics"
	"movienight-workers/internal/models"
)

const (
	criticKeyPrefix  = "movie:critic:"
	moodKeyPrefix    = "movie:mood:"
	creditsKeyPrefix = "movie:credits:"
)

func criticKey(id int64) string  { return criticKeyPrefix + strconv.FormatInt(id, 10) }
func moodKey(id int64) string    { return moodKeyPrefix + strconv.FormatInt(id, 10) }
func creditsKey(id int64) string { return creditsKeyPrefix + strconv.FormatInt(id, 10) }

// SignalCache reads precomputed critic scores and mood vectors from Redis.
// Both are written by an offline job; a missing key means the signal is absent.
type SignalCache struct {
	rdb redis.Cmdable
}

func NewSignalCache(rdb redis.Cmdable) *SignalCache {
	return &SignalCache{rdb: rdb}
}

// CriticScores returns cached critic scores for the ids that have any.
func (s *SignalCache) CriticScores(ctx context.Context, ids []int64) (map[int64]models.CriticScores, error) {
	out := make(map[int64]models.CriticScores)
	err := s.mget(ctx, "critic", ids, criticKey, func(id int64, raw string) error {
		var cs models.CriticScores
		if err := json.Unmarshal([]byte(raw), &cs); err != nil {
			return err
		}
		if !cs.Empty() {
			out[id] = cs
		}
		return nil
	})
	return out, err
}

// MoodVectors returns cached mood affinity vectors for the ids that have one.
func (s *SignalCache) MoodVectors(ctx context.Context, ids []int64) (map[int64]map[models.Mood]float64, error) {
	out := make(map[int64]map[models.Mood]float64)
	err := s.mget(ctx, "mood", ids, moodKey, func(id int64, raw string) error {
		var vec map[models.Mood]float64
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return err
		}
		if len(vec) > 0 {
			out[id] = vec
		}
		return nil
	})
	return out, err
}

// mget fetches keys in one round trip. Undecodable values count as misses.
func (s *SignalCache) mget(ctx context.Context, cache string, ids []int64, key func(int64) string, decode func(int64, string) error) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.CacheLookups.WithLabelValues(cache, "error").Add(float64(len(ids)))
		return fmt.Errorf("mget %s signals: %w", cache, err)
	}

	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			metrics.CacheLookups.WithLabelValues(cache, "miss").Inc()
			continue
		}
		if err := decode(ids[i], raw); err != nil {
			metrics.CacheLookups.WithLabelValues(cache, "miss").Inc()
			continue
		}
		metrics.CacheLookups.WithLabelValues(cache, "hit").Inc()
	}
	return nil
}

// CreditsFetcher loads credits from the source of truth.
type CreditsFetcher interface {
	Credits(ctx context.Context, movieID int64) (models.Credits, error)
}

// CreditsCache is a cache-aside layer in front of a CreditsFetcher. Redis
// failures fall through to the fetcher.
type CreditsCache struct {
	rdb    redis.Cmdable
	source CreditsFetcher
	ttl    time.Duration
}

func NewCreditsCache(rdb redis.Cmdable, source CreditsFetcher, ttl time.Duration) *CreditsCache {
	return &CreditsCache{rdb: rdb, source: source, ttl: ttl}
}

func (c *CreditsCache) Credits(ctx context.Context, movieID int64) (models.Credits, error) {
	key := creditsKey(movieID)

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cr models.Credits
		if jsonErr := json.Unmarshal([]byte(raw), &cr); jsonErr == nil {
			metrics.CacheLookups.WithLabelValues("credits", "hit").Inc()
			return cr, nil
		}
		metrics.CacheLookups.WithLabelValues("credits", "miss").Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("credits", "miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("credits", "error").Inc()
	}

	cr, err := c.source.Credits(ctx, movieID)
	if err != nil {
		return models.Credits{}, err
	}

	if payload, err := json.Marshal(cr); err == nil {
		_ = c.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	return cr, nil
}
