// Package gateway routes validated requests to the executor of their category
// and turns every outcome, panics included, into a terminal result.
package gateway

import (
	"context"
	"slices"
	"sync"
	"time"

	"execoj/internal/execution/executor"
	"execoj/internal/execution/model"
	"execoj/internal/execution/observer"
	appErr "execoj/pkg/errors"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// Gateway holds the category -> executor registry.
type Gateway struct {
	mu        sync.RWMutex
	executors map[model.Category]executor.Executor
	metrics   observer.MetricsRecorder
	now       func() time.Time
}

// New creates an empty gateway.
func New(metrics observer.MetricsRecorder) *Gateway {
	if metrics == nil {
		metrics = observer.Noop{}
	}
	return &Gateway{
		executors: make(map[model.Category]executor.Executor),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register binds exec to category, replacing any previous binding.
func (g *Gateway) Register(category model.Category, exec executor.Executor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.executors[category] = exec
}

// Supports reports whether category has an executor.
func (g *Gateway) Supports(category model.Category) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.executors[category]
	return ok
}

// Categories lists registered categories in sorted order.
func (g *Gateway) Categories() []model.Category {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.Category, 0, len(g.executors))
	for c := range g.executors {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

type optionsAdjuster interface {
	Options(opts model.Options) model.Options
}

// MemoryLimitMB reports the memory limit req will run with once its
// category executor has applied its floors.
func (g *Gateway) MemoryLimitMB(req *model.ExecutionRequest) int {
	g.mu.RLock()
	exec, ok := g.executors[req.Category]
	g.mu.RUnlock()
	if a, isAdjuster := exec.(optionsAdjuster); ok && isAdjuster {
		return a.Options(req.Options).MemoryLimitMB
	}
	return req.Options.MemoryLimitMB
}

// Execute runs req and always returns a result.
func (g *Gateway) Execute(ctx context.Context, req *model.ExecutionRequest) *model.ExecutionResult {
	start := g.now()
	result := &model.ExecutionResult{
		Status:      model.StatusFailed,
		Category:    req.Category,
		Language:    req.Language,
		TestResults: []model.TestResult{},
		StartTime:   start,
	}

	g.mu.RLock()
	exec, ok := g.executors[req.Category]
	g.mu.RUnlock()

	var err error
	if !ok {
		err = appErr.Newf(appErr.CategoryNotSupported, "category %s is not supported", req.Category)
	} else {
		var report *executor.Report
		report, err = g.run(ctx, exec, req)
		if report != nil {
			for _, tr := range report.TestResults {
				result.TestResults = append(result.TestResults, tr.Redact())
			}
			result.Visualizations = report.Visualizations
			result.Metrics = report.Metrics
			result.Passed = report.Passed
		}
	}

	result.EndTime = g.now()
	result.Metrics.ExecutionTimeMs = result.EndTime.Sub(start).Milliseconds()
	if err != nil {
		result.Passed = false
		result.Error = model.NewErrorDetail(err)
		logFailure(ctx, req, err)
	} else {
		result.Status = model.StatusCompleted
	}
	g.metrics.ObserveExecution(ctx, string(req.Category), string(result.Status), result.EndTime.Sub(start))
	return result
}

func (g *Gateway) run(ctx context.Context, exec executor.Executor, req *model.ExecutionRequest) (report *executor.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "executor panicked",
				zap.String("category", string(req.Category)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			report = nil
			err = appErr.Newf(appErr.InternalServerError, "executor panicked: %v", r)
		}
	}()
	return exec.Execute(ctx, req)
}

func logFailure(ctx context.Context, req *model.ExecutionRequest, err error) {
	fields := []zap.Field{
		zap.String("category", string(req.Category)),
		zap.String("language", string(req.Language)),
		zap.String("kind", model.KindOf(err)),
		zap.Error(err),
	}
	if diag := appErr.DetailString(err, model.DiagnosticKey); diag != "" {
		fields = append(fields, zap.String("diagnostic", diag))
	}
	if model.IsInfrastructure(err) {
		logger.Error(ctx, "execution aborted", fields...)
		return
	}
	logger.Info(ctx, "execution failed", fields...)
}
