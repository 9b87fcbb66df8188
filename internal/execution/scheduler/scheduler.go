// Package scheduler admits execution requests into a bounded priority queue
// and dispatches them under global and per-category concurrency caps.
package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"execoj/internal/execution/model"
	"execoj/internal/execution/observer"
	appErr "execoj/pkg/errors"
	"execoj/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher executes a request and always returns a terminal result.
type Dispatcher interface {
	Execute(ctx context.Context, req *model.ExecutionRequest) *model.ExecutionResult
}

// MemoryPlanner is implemented by dispatchers that raise requested limits.
// The scheduler reserves the planned figure instead of the requested one.
type MemoryPlanner interface {
	MemoryLimitMB(req *model.ExecutionRequest) int
}

// ResultStore retains terminal results.
type ResultStore interface {
	Save(ctx context.Context, result *model.ExecutionResult) error
	Get(ctx context.Context, id string) (*model.ExecutionResult, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// EventPublisher announces terminal transitions.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ExecutionEvent) error
}

// Archiver keeps a durable copy of finished executions.
type Archiver interface {
	Archive(ctx context.Context, req *model.ExecutionRequest, result *model.ExecutionResult) error
}

type entry struct {
	id         string
	req        *model.ExecutionRequest
	priority   model.Priority
	seq        uint64
	status     model.Status
	enqueuedAt time.Time
	startTime  time.Time
	endTime    time.Time
	memoryMB   int
	released   bool
}

type usage struct {
	active   int
	memoryMB int
}

// Scheduler owns the queue and the concurrency counters. All state is
// guarded by mu and only mutated by scheduler methods.
type Scheduler struct {
	cfg        Config
	dispatcher Dispatcher
	results    ResultStore
	publisher  EventPublisher
	archiver   Archiver
	metrics    observer.MetricsRecorder
	now        func() time.Time
	newID      func() string

	mu       sync.Mutex
	queue    []*entry
	entries  map[string]*entry
	active   int
	usage    map[model.Category]*usage
	seq      uint64
	closed   bool
	inflight sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc
	stopSweep  chan struct{}
	sweepDone  chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
	sweeping   bool
}

// Options holds scheduler dependencies. Dispatcher and Results are required.
type Options struct {
	Dispatcher Dispatcher
	Results    ResultStore
	Publisher  EventPublisher
	Archiver   Archiver
	Metrics    observer.MetricsRecorder
	Now        func() time.Time
}

// New creates a scheduler. Call Start to run the result sweeper.
func New(cfg Config, opts Options) (*Scheduler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Results == nil {
		return nil, errors.New("result store is required")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observer.Noop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:        cfg,
		dispatcher: opts.Dispatcher,
		results:    opts.Results,
		publisher:  opts.Publisher,
		archiver:   opts.Archiver,
		metrics:    metrics,
		now:        now,
		newID:      uuid.NewString,
		entries:    make(map[string]*entry),
		usage:      make(map[model.Category]*usage),
		baseCtx:    baseCtx,
		cancelBase: cancel,
		stopSweep:  make(chan struct{}),
		sweepDone:  make(chan struct{}),
	}
	for cat := range cfg.CategoryLimits {
		s.usage[cat] = &usage{}
	}
	return s, nil
}

// Enqueue admits req and returns its id. It never waits for execution.
func (s *Scheduler) Enqueue(ctx context.Context, req *model.ExecutionRequest) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", appErr.New(appErr.ServiceUnavailable).WithMessage("scheduler is shutting down")
	}
	if len(s.queue) >= s.cfg.MaxQueueSize {
		depth := len(s.queue)
		s.mu.Unlock()
		s.metrics.ObserveRejection("queue_full")
		logger.Warn(ctx, "execution queue full", zap.Int("queue_length", depth))
		return "", appErr.Newf(appErr.ExecutionQueueFull, "execution queue is full (%d entries)", depth)
	}
	priority := req.Priority
	if !priority.Valid() {
		priority = model.DefaultPriority
	}
	s.seq++
	e := &entry{
		id:         s.newID(),
		req:        req,
		priority:   priority,
		seq:        s.seq,
		status:     model.StatusQueued,
		enqueuedAt: s.now(),
		memoryMB:   s.memoryFor(req),
	}
	// New entries carry the largest seq, so they go before the first lower priority.
	at := slices.IndexFunc(s.queue, func(q *entry) bool { return q.priority < priority })
	if at < 0 {
		s.queue = append(s.queue, e)
	} else {
		s.queue = slices.Insert(s.queue, at, e)
	}
	s.entries[e.id] = e
	s.observeLocked()
	s.mu.Unlock()

	logger.Info(logger.WithExecutionID(ctx, e.id), "execution queued",
		zap.String("category", string(req.Category)),
		zap.String("language", string(req.Language)),
		zap.Int("priority", int(priority)),
	)
	s.drain()
	return e.id, nil
}

func (s *Scheduler) memoryFor(req *model.ExecutionRequest) int {
	if p, ok := s.dispatcher.(MemoryPlanner); ok {
		return p.MemoryLimitMB(req)
	}
	return req.Options.MemoryLimitMB
}

// drain dispatches eligible entries until a cap blocks.
func (s *Scheduler) drain() {
	s.mu.Lock()
	var ready []*entry
	for i := 0; i < len(s.queue) && !s.closed && s.active < s.cfg.MaxConcurrent; {
		e := s.queue[i]
		u, limit := s.usageLocked(e.req.Category)
		if u.active >= limit.MaxConcurrent {
			if s.cfg.DrainPolicy == SkipAhead {
				i++
				continue
			}
			break
		}
		s.queue = slices.Delete(s.queue, i, i+1)
		s.active++
		u.active++
		u.memoryMB += e.memoryMB
		e.status = model.StatusProcessing
		e.startTime = s.now()
		s.inflight.Add(1)
		ready = append(ready, e)
	}
	s.observeLocked()
	s.mu.Unlock()

	for _, e := range ready {
		go s.dispatch(e)
	}
}

func (s *Scheduler) dispatch(e *entry) {
	defer s.inflight.Done()
	ctx := logger.WithExecutionID(s.baseCtx, e.id)
	runCtx := ctx
	if s.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		defer cancel()
	}
	logger.Info(ctx, "execution started", zap.String("category", string(e.req.Category)))

	result := s.execute(runCtx, e)
	result.ID = e.id
	s.complete(ctx, e, result)
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (result *model.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "dispatch panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = s.failedResult(e, appErr.Newf(appErr.InternalServerError, "dispatch panicked: %v", r))
		}
	}()
	result = s.dispatcher.Execute(ctx, e.req)
	if result == nil {
		result = s.failedResult(e, appErr.New(appErr.InternalServerError).WithMessage("dispatcher returned no result"))
	}
	return result
}

func (s *Scheduler) failedResult(e *entry, err error) *model.ExecutionResult {
	return &model.ExecutionResult{
		Status:      model.StatusFailed,
		Category:    e.req.Category,
		Language:    e.req.Language,
		TestResults: []model.TestResult{},
		Error:       model.NewErrorDetail(err),
		StartTime:   e.startTime,
		EndTime:     s.now(),
	}
}

// complete stores the result, releases the counters once, announces the
// transition and resumes draining.
func (s *Scheduler) complete(ctx context.Context, e *entry, result *model.ExecutionResult) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.results.Save(storeCtx, result); err != nil {
		logger.Error(ctx, "save execution result failed", zap.Error(err))
	}
	s.release(e, result.EndTime)

	logger.Info(ctx, "execution finished",
		zap.String("status", string(result.Status)),
		zap.Bool("passed", result.Passed),
		zap.Int64("execution_time_ms", result.Metrics.ExecutionTimeMs),
	)
	s.announce(storeCtx, e.req, result)
	s.drain()
}

func (s *Scheduler) release(e *entry, endTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	e.endTime = endTime
	s.active--
	u, _ := s.usageLocked(e.req.Category)
	u.active--
	u.memoryMB -= e.memoryMB
	delete(s.entries, e.id)
	s.observeLocked()
}

func (s *Scheduler) announce(ctx context.Context, req *model.ExecutionRequest, result *model.ExecutionResult) {
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, req, result); err != nil {
			logger.Warn(ctx, "archive execution failed", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, model.NewExecutionEvent(req, result)); err != nil {
			logger.Warn(ctx, "publish execution event failed", zap.Error(err))
		}
	}
}

// Cancel removes a queued entry and records it as cancelled. Entries that
// are processing, finished or unknown are left untouched.
func (s *Scheduler) Cancel(ctx context.Context, id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.status != model.StatusQueued {
		s.mu.Unlock()
		return false
	}
	if i := slices.Index(s.queue, e); i >= 0 {
		s.queue = slices.Delete(s.queue, i, i+1)
	}
	e.status = model.StatusCancelled
	e.released = true
	e.endTime = s.now()
	s.observeLocked()
	s.mu.Unlock()

	ctx = logger.WithExecutionID(ctx, id)
	result := &model.ExecutionResult{
		ID:          id,
		Status:      model.StatusCancelled,
		Category:    e.req.Category,
		Language:    e.req.Language,
		TestResults: []model.TestResult{},
		StartTime:   e.enqueuedAt,
		EndTime:     e.endTime,
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.results.Save(storeCtx, result); err != nil {
		logger.Error(ctx, "save cancelled result failed", zap.Error(err))
	}

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	logger.Info(ctx, "execution cancelled")
	s.announce(storeCtx, e.req, result)
	s.drain()
	return true
}

// Status reports where id is in its lifecycle.
func (s *Scheduler) Status(ctx context.Context, id string) (*StatusView, error) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		view := s.viewLocked(e)
		s.mu.Unlock()
		return view, nil
	}
	s.mu.Unlock()

	result, err := s.results.Get(ctx, id)
	if err != nil {
		if appErr.IsAny(err, appErr.ExecutionNotFound, appErr.NotFound, appErr.CacheMiss) {
			return nil, appErr.Newf(appErr.ExecutionNotFound, "execution %s not found", id)
		}
		return nil, err
	}
	return terminalView(result), nil
}

func (s *Scheduler) viewLocked(e *entry) *StatusView {
	view := &StatusView{ID: e.id, Status: e.status}
	switch e.status {
	case model.StatusQueued:
		i := slices.Index(s.queue, e)
		wait := s.estimateLocked(e, i).Milliseconds()
		view.Position = i + 1
		view.TotalInQueue = len(s.queue)
		view.EstimatedWaitMs = &wait
	case model.StatusProcessing:
		start := e.startTime
		view.StartTime = &start
	case model.StatusCancelled:
		start, end := e.enqueuedAt, e.endTime
		view.StartTime = &start
		view.EndTime = &end
	}
	return view
}

// estimateLocked multiplies the number of entries ahead by the expected
// per-entry wait, which is larger while a cap is saturated.
func (s *Scheduler) estimateLocked(e *entry, ahead int) time.Duration {
	per := s.cfg.WaitPerPosition
	u, limit := s.usageLocked(e.req.Category)
	if u.active >= limit.MaxConcurrent || s.active >= s.cfg.MaxConcurrent {
		per = s.cfg.SaturatedWaitPerPosition
	}
	return time.Duration(ahead) * per
}

// Stats snapshots queue and capacity usage.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{
		QueueLength:             len(s.queue),
		ActiveExecutions:        s.active,
		MaxConcurrentExecutions: s.cfg.MaxConcurrent,
		MaxQueueSize:            s.cfg.MaxQueueSize,
		DrainPolicy:             s.cfg.DrainPolicy,
		CategoryUsage:           make(map[model.Category]CategoryUsage, len(s.usage)),
		CategoryLimits:          make(map[model.Category]CategoryLimit, len(s.usage)),
	}
	for cat, u := range s.usage {
		stats.CategoryUsage[cat] = CategoryUsage{ConcurrentExecutions: u.active, MemoryUsageMB: u.memoryMB}
		_, limit := s.usageLocked(cat)
		stats.CategoryLimits[cat] = limit
	}
	return stats
}

// Cleanup evicts terminal results older than maxAge.
func (s *Scheduler) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = s.cfg.ResultTTL
	}
	n, err := s.results.DeleteOlderThan(ctx, s.now().Add(-maxAge))
	if err != nil {
		return n, err
	}
	if n > 0 {
		logger.Info(ctx, "evicted old execution results", zap.Int("count", n), zap.Duration("max_age", maxAge))
	}
	return n, nil
}

// Start launches the periodic result sweeper.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.sweeping = true
		s.mu.Unlock()
		go s.sweep()
	})
}

func (s *Scheduler) sweep() {
	defer close(s.sweepDone)
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.StoreTimeout)
			if _, err := s.Cleanup(ctx, s.cfg.ResultTTL); err != nil {
				logger.Warn(ctx, "result cleanup failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Shutdown stops admitting and dispatching work, then waits for in-flight
// executions or ctx. Queued entries stay queued.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	sweeping := s.sweeping
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopSweep) })

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancelBase()
		return ctx.Err()
	}
	if sweeping {
		<-s.sweepDone
	}
	s.cancelBase()
	return nil
}

func (s *Scheduler) usageLocked(cat model.Category) (*usage, CategoryLimit) {
	u, ok := s.usage[cat]
	if !ok {
		u = &usage{}
		s.usage[cat] = u
	}
	limit, ok := s.cfg.CategoryLimits[cat]
	if !ok {
		limit = CategoryLimit{MaxConcurrent: 1}
	}
	return u, limit
}

func (s *Scheduler) observeLocked() {
	s.metrics.ObserveQueue(len(s.queue), s.active)
	for cat, u := range s.usage {
		s.metrics.ObserveCategory(string(cat), u.active, u.memoryMB)
	}
}
