// Package fanout runs independent I/O branches concurrently with bounded
// parallelism. A failing branch leaves its result at the zero value and never
// cancels its siblings.
package fanout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"movienight-workers/internal/common/logger"
	"movienight-workers/internal/common/metrics"
)

// Task is one branch. Run writes its own result (usually into a captured
// variable) and returns an error to mark the branch as degraded.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Report summarizes a fan-out.
type Report struct {
	Succeeded []string
	Failed    []string
}

// AllFailed reports whether every branch failed. An empty fan-out has not failed.
func (r Report) AllFailed() bool {
	return len(r.Failed) > 0 && len(r.Succeeded) == 0
}

// FailedBranch reports whether the named branch failed.
func (r Report) FailedBranch(name string) bool {
	for _, f := range r.Failed {
		if f == name {
			return true
		}
	}
	return false
}

// Group executes tasks with a concurrency limit and per-task timeout.
type Group struct {
	limit   int
	timeout time.Duration
	logger  logger.Logger
}

func NewGroup(limit int, timeout time.Duration, log logger.Logger) *Group {
	if limit <= 0 {
		limit = 1
	}
	return &Group{limit: limit, timeout: timeout, logger: log}
}

// Run blocks until every task finished or timed out. Panics inside a task are
// recovered and reported as failures.
func (g *Group) Run(ctx context.Context, tasks []Task) Report {
	var (
		mu     sync.Mutex
		report Report
	)

	eg := new(errgroup.Group)
	eg.SetLimit(g.limit)

	for _, task := range tasks {
		task := task
		eg.Go(func() error {
			err := g.runOne(ctx, task)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, task.Name)
				metrics.FetchFailures.WithLabelValues(Family(task.Name)).Inc()
				g.logger.Warn("fan-out branch degraded to empty", map[string]interface{}{
					"branch": task.Name,
					"error":  err.Error(),
				})
				return nil
			}
			report.Succeeded = append(report.Succeeded, task.Name)
			return nil
		})
	}
	_ = eg.Wait()

	sort.Strings(report.Succeeded)
	sort.Strings(report.Failed)
	return report
}

// Family strips a trailing page or ID suffix ("primary_p2", "credits_550") so
// metric labels stay bounded.
func Family(name string) string {
	i := strings.LastIndexByte(name, '_')
	if i <= 0 || i == len(name)-1 {
		return name
	}
	suffix := strings.TrimPrefix(name[i+1:], "p")
	if suffix == "" {
		return name
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return name
		}
	}
	return name[:i]
}

func (g *Group) runOne(ctx context.Context, task Task) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	branchCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		branchCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("branch %s panicked: %v", task.Name, r)
		}
	}()

	return task.Run(branchCtx)
}
