package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movienight-workers/internal/common/logger"
)

func TestGroup_FailingBranchDoesNotAbortOthers(t *testing.T) {
	g := NewGroup(4, time.Second, logger.NewTestLogger(t))

	var a, c []int
	report := g.Run(context.Background(), []Task{
		{Name: "a", Run: func(ctx context.Context) error { a = []int{1, 2}; return nil }},
		{Name: "b", Run: func(ctx context.Context) error { return errors.New("boom") }},
		{Name: "c", Run: func(ctx context.Context) error { c = []int{3}; return nil }},
	})

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{3}, c)
	assert.Equal(t, []string{"a", "c"}, report.Succeeded)
	assert.Equal(t, []string{"b"}, report.Failed)
	assert.True(t, report.FailedBranch("b"))
	assert.False(t, report.AllFailed())
}

func TestGroup_PerBranchTimeout(t *testing.T) {
	g := NewGroup(2, 20*time.Millisecond, logger.NewNoOpLogger())

	var fast bool
	report := g.Run(context.Background(), []Task{
		{Name: "slow", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		{Name: "fast", Run: func(ctx context.Context) error { fast = true; return nil }},
	})

	assert.True(t, fast)
	assert.Equal(t, []string{"slow"}, report.Failed)
}

func TestGroup_RespectsLimit(t *testing.T) {
	g := NewGroup(2, time.Second, logger.NewNoOpLogger())

	var inFlight, peak int32
	tasks := make([]Task, 0, 10)
	for i := 0; i < 10; i++ {
		tasks = append(tasks, Task{Name: "t", Run: func(ctx context.Context) error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		}})
	}

	report := g.Run(context.Background(), tasks)
	require.Len(t, report.Succeeded, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestGroup_PanicIsReportedAsFailure(t *testing.T) {
	g := NewGroup(1, time.Second, logger.NewNoOpLogger())
	report := g.Run(context.Background(), []Task{
		{Name: "panicky", Run: func(ctx context.Context) error { panic("nil map") }},
	})
	assert.True(t, report.AllFailed())
}

func TestGroup_CancelledParentFailsRemainingBranches(t *testing.T) {
	g := NewGroup(1, time.Second, logger.NewNoOpLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := g.Run(ctx, []Task{
		{Name: "x", Run: func(ctx context.Context) error { return nil }},
	})
	assert.Equal(t, []string{"x"}, report.Failed)
}

func TestFamily(t *testing.T) {
	tests := map[string]string{
		"primary_p2":        "primary",
		"credits_550":       "credits",
		"social_peer_101":   "social_peer",
		"genre_preferences": "genre_preferences",
		"enrich_critic":     "enrich_critic",
		"internal_top_p":    "internal_top_p",
		"wildcard_":         "wildcard_",
		"plain":             "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, Family(in), in)
	}
}
