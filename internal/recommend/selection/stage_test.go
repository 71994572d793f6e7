package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"movienight-workers/internal/common/genai"
	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/models"
)

type fakeAdvisories struct {
	data map[int64]models.ContentAdvisory
	err  error
}

func (f *fakeAdvisories) Advisories(context.Context, []int64) (map[int64]models.ContentAdvisory, error) {
	return f.data, f.err
}

type fakeExplainer struct {
	out map[int64]genai.Explanation
	err error
}

func (f *fakeExplainer) Explain(context.Context, []models.Mood, []models.ScoredCandidate) (map[int64]genai.Explanation, error) {
	return f.out, f.err
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Log(ctx context.Context, collectiveID string, ids []int64, at time.Time) ([]models.RecommendationHistoryEntry, error) {
	args := m.Called(ctx, collectiveID, ids, at)
	return nil, args.Error(0)
}

func (m *mockHistory) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return int64(args.Int(0)), args.Error(1)
}

var fixedNow = time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)

func scoredPool(n int) []models.ScoredCandidate {
	pool := make([]models.ScoredCandidate, n)
	for i := range pool {
		pool[i] = models.ScoredCandidate{
			Candidate: models.Candidate{ID: int64(i + 1), Title: "Movie"},
			Breakdown: models.ScoreBreakdown{Total: float64(90 - i)},
		}
	}
	return pool
}

func newStage(t *testing.T, adv AdvisorySource, exp Explainer, hist HistoryStore, purgeRoll float64) *Stage {
	s := NewStage(adv, exp, hist, Options{ResultSize: 5, Retention: 90 * 24 * time.Hour, PurgeProbability: 0.05}, logger.NewTestLogger(t))
	s.rand = func() float64 { return purgeRoll }
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestSelect_TopFiveInScoreOrder(t *testing.T) {
	hist := &mockHistory{}
	hist.On("Log", mock.Anything, "col-1", []int64{1, 2, 3, 4, 5}, fixedNow).Return(nil)

	s := newStage(t, nil, nil, hist, 0.9)
	recs := s.Select(context.Background(), models.RecommendationRequest{CollectiveID: "col-1"}, scoredPool(8))
	s.Wait()

	require.Len(t, recs, 5)
	assert.Equal(t, int64(1), recs[0].MovieID)
	assert.Equal(t, 90.0, recs[0].GroupFitScore)
	assert.Empty(t, recs[0].Reasoning)
	hist.AssertExpectations(t)
	hist.AssertNotCalled(t, "PurgeOlderThan", mock.Anything, mock.Anything)
}

func TestSelect_AdvisoryFilterFailsOpen(t *testing.T) {
	limits := map[models.AdvisoryCategory]models.Severity{models.AdvisoryViolence: models.SeverityMild}
	req := models.RecommendationRequest{AdvisoryLimits: limits}

	t.Run("exceeding candidates are removed, unknown ones kept", func(t *testing.T) {
		adv := &fakeAdvisories{data: map[int64]models.ContentAdvisory{
			1: {models.AdvisoryViolence: models.SeveritySevere},
			2: {models.AdvisoryViolence: models.SeverityMild},
		}}
		recs := newStage(t, adv, nil, nil, 1).Select(context.Background(), req, scoredPool(3))
		require.Len(t, recs, 2)
		assert.Equal(t, int64(2), recs[0].MovieID)
		assert.Equal(t, int64(3), recs[1].MovieID)
	})

	t.Run("lookup failure keeps everything", func(t *testing.T) {
		adv := &fakeAdvisories{err: errors.New("es down")}
		recs := newStage(t, adv, nil, nil, 1).Select(context.Background(), req, scoredPool(3))
		assert.Len(t, recs, 3)
	})
}

func TestSelect_Reasoning(t *testing.T) {
	req := models.RecommendationRequest{IncludeReasoning: true}

	t.Run("attached when available", func(t *testing.T) {
		exp := &fakeExplainer{out: map[int64]genai.Explanation{2: {Reasoning: "Because.", Pairing: "Popcorn"}}}
		recs := newStage(t, nil, exp, nil, 1).Select(context.Background(), req, scoredPool(2))
		assert.Empty(t, recs[0].Reasoning)
		assert.Equal(t, "Popcorn", recs[1].Pairing)
	})

	t.Run("failure still returns ranked picks", func(t *testing.T) {
		exp := &fakeExplainer{err: errors.New("llm timeout")}
		recs := newStage(t, nil, exp, nil, 1).Select(context.Background(), req, scoredPool(2))
		assert.Len(t, recs, 2)
	})
}

func TestSelect_PurgesWithProbability(t *testing.T) {
	hist := &mockHistory{}
	hist.On("Log", mock.Anything, "col-1", []int64{1}, fixedNow).Return(nil)
	hist.On("PurgeOlderThan", mock.Anything, fixedNow.Add(-90*24*time.Hour)).Return(12, nil)

	s := newStage(t, nil, nil, hist, 0.01)
	s.Select(context.Background(), models.RecommendationRequest{CollectiveID: "col-1"}, scoredPool(1))
	s.Wait()

	hist.AssertExpectations(t)
}

func TestSelect_HistoryOutlivesCancelledRequest(t *testing.T) {
	hist := &mockHistory{}
	hist.On("Log", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "col-1", []int64{1}, fixedNow).
		Return(errors.New("write conflict"))

	ctx, cancel := context.WithCancel(context.Background())
	s := newStage(t, nil, nil, hist, 1)
	s.Select(ctx, models.RecommendationRequest{CollectiveID: "col-1"}, scoredPool(1))
	cancel()
	s.Wait()

	hist.AssertExpectations(t)
}

func TestSelect_EmptyPool(t *testing.T) {
	hist := &mockHistory{}
	recs := newStage(t, nil, nil, hist, 0).Select(context.Background(), models.RecommendationRequest{}, nil)
	assert.Empty(t, recs)
	hist.AssertNotCalled(t, "Log", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
