// Package service orchestrates the execution boundary: validation, test case
// resolution and handing requests to the scheduler.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"execoj/internal/execution/model"
	"execoj/internal/execution/repository"
	"execoj/internal/execution/scheduler"
	"execoj/internal/execution/validator"
	appErr "execoj/pkg/errors"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultLookupTimeout = 3 * time.Second

// Scheduler is the queue surface the service drives.
type Scheduler interface {
	Enqueue(ctx context.Context, req *model.ExecutionRequest) (string, error)
	Status(ctx context.Context, id string) (*scheduler.StatusView, error)
	Cancel(ctx context.Context, id string) bool
	Stats() scheduler.Stats
}

// Config holds service dependencies and settings.
type Config struct {
	Validator *validator.Validator
	Scheduler Scheduler
	// TestCases resolves problemId lookups. Optional.
	TestCases     repository.TestCaseStore
	LookupTimeout time.Duration
}

// Service implements the execution boundary operations.
type Service struct {
	validator     *validator.Validator
	scheduler     Scheduler
	testCases     repository.TestCaseStore
	lookupTimeout time.Duration
}

// New creates a service.
func New(cfg Config) (*Service, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Service{
		validator:     cfg.Validator,
		scheduler:     cfg.Scheduler,
		testCases:     cfg.TestCases,
		lookupTimeout: timeout,
	}, nil
}

// Submit validates payload, fills in stored test cases when none were
// supplied and enqueues the request. It returns the execution id.
func (s *Service) Submit(ctx context.Context, payload validator.Payload) (string, error) {
	outcome := s.validator.Validate(payload)
	if !outcome.Valid() {
		return "", outcome.Err()
	}
	req := outcome.Request

	if len(req.TestCases) == 0 {
		tests, err := s.lookupTestCases(ctx, req.ProblemID)
		if err != nil {
			return "", err
		}
		req = req.WithTestCases(tests)
	}

	id, err := s.scheduler.Enqueue(ctx, req)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) lookupTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	if problemID == "" {
		return nil, appErr.New(appErr.NoTestCases).WithMessage("testCases or problemId is required")
	}
	if s.testCases == nil {
		return nil, appErr.Newf(appErr.NoTestCases, "no test cases supplied and problem lookup is disabled")
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	tests, err := s.testCases.ListByProblem(lookupCtx, problemID)
	if err != nil {
		logger.Error(ctx, "test case lookup failed", zap.String("problem_id", problemID), zap.Error(err))
		return nil, err
	}
	if len(tests) == 0 {
		return nil, appErr.Newf(appErr.NoTestCases, "no test cases found for problem %s", problemID)
	}
	logger.Debug(ctx, "resolved test cases", zap.String("problem_id", problemID), zap.Int("count", len(tests)))
	return tests, nil
}

// Status returns the current view of an execution.
func (s *Service) Status(ctx context.Context, id string) (*scheduler.StatusView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErr.ValidationError("requestId", "required")
	}
	return s.scheduler.Status(ctx, id)
}

// Cancel cancels a queued execution.
func (s *Service) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return appErr.ValidationError("requestId", "required")
	}
	if !s.scheduler.Cancel(ctx, id) {
		return appErr.Newf(appErr.NotCancellable, "execution %s cannot be cancelled", id)
	}
	return nil
}

// Stats returns queue and capacity usage.
func (s *Service) Stats() scheduler.Stats {
	return s.scheduler.Stats()
}
