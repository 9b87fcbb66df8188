// Package executor runs a validated request against its test cases inside a
// sandbox and grades the results.
package executor

import (
	"context"
	"time"

	"execoj/internal/execution/grader"
	"execoj/internal/execution/model"
	"execoj/internal/execution/observer"
	"execoj/internal/execution/sandbox"
	appErr "execoj/pkg/errors"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// Executor handles every request of one category.
type Executor interface {
	Execute(ctx context.Context, req *model.ExecutionRequest) (*Report, error)
}

// Report is what an executor produced. On abort it may hold the test results
// gathered before the failure.
type Report struct {
	Passed         bool
	TestResults    []model.TestResult
	Visualizations []model.Visualization
	Metrics        model.Metrics
}

// Profile adjusts resource bounds for a category.
type Profile struct {
	Category      model.Category `yaml:"category"`
	Mode          sandbox.Mode   `yaml:"mode"`
	MinMemoryMB   int            `yaml:"minMemoryMB"`
	MinTimeoutMs  int            `yaml:"minTimeoutMs"`
	Visualization bool           `yaml:"visualization"`
}

// Options returns the bounds the sandbox is built with.
func (p Profile) Options(opts model.Options) model.Options {
	if opts.MemoryLimitMB < p.MinMemoryMB {
		opts.MemoryLimitMB = p.MinMemoryMB
	}
	if opts.TimeoutMs < p.MinTimeoutMs {
		opts.TimeoutMs = p.MinTimeoutMs
	}
	return opts
}

// DefaultProfiles returns the built-in per-category profiles.
func DefaultProfiles() []Profile {
	profiles := make([]Profile, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		p := Profile{Category: c, Mode: sandbox.ModeContainer, Visualization: true}
		switch c {
		case model.CategoryAlgorithm:
			p.Mode = sandbox.ModeLocal
		case model.CategoryML:
			p.MinMemoryMB = 1024
			p.MinTimeoutMs = 30000
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// CategoryExecutor is the sandbox-backed Executor.
type CategoryExecutor struct {
	profile    Profile
	factory    sandbox.Factory
	visualizer Visualizer
	metrics    observer.MetricsRecorder
}

// Config holds executor dependencies.
type Config struct {
	Profile    Profile
	Factory    sandbox.Factory
	Visualizer Visualizer
	Metrics    observer.MetricsRecorder
}

// New creates a category executor.
func New(cfg Config) *CategoryExecutor {
	vis := cfg.Visualizer
	if vis == nil {
		vis = VisualizerFor(cfg.Profile.Category)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observer.Noop{}
	}
	return &CategoryExecutor{
		profile:    cfg.Profile,
		factory:    cfg.Factory,
		visualizer: vis,
		metrics:    metrics,
	}
}

// Options returns the limits the sandbox will be created with.
func (e *CategoryExecutor) Options(opts model.Options) model.Options {
	return e.profile.Options(opts)
}

// Execute prepares, compiles and runs every test case. Compile, environment
// and infrastructure failures abort; per-test failures are recorded.
func (e *CategoryExecutor) Execute(ctx context.Context, req *model.ExecutionRequest) (*Report, error) {
	if len(req.TestCases) == 0 {
		return nil, appErr.New(appErr.NoTestCases).WithMessage("no test cases to run")
	}
	opts := e.Options(req.Options)
	sb, err := e.factory.New(req.Language, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := sb.Cleanup(cleanupCtx); err != nil {
			logger.Warn(cleanupCtx, "sandbox cleanup failed", zap.Error(err))
		}
	}()

	if err := sb.Prepare(ctx, req.Code, req.Language); err != nil {
		return nil, err
	}
	compileStart := time.Now()
	err = sb.Compile(ctx)
	e.metrics.ObserveCompile(ctx, string(req.Language), err == nil, time.Since(compileStart))
	if err != nil {
		logger.Info(ctx, "compilation failed", zap.String("language", string(req.Language)), zap.Error(err))
		return nil, err
	}

	report := &Report{TestResults: make([]model.TestResult, 0, len(req.TestCases))}
	verdicts := make([]bool, 0, len(req.TestCases))
	for _, tc := range req.TestCases {
		if ctx.Err() != nil {
			return report, appErr.Wrapf(ctx.Err(), appErr.EnvironmentError, "execution interrupted")
		}
		res, err := e.runOne(ctx, sb, req, tc)
		if err != nil {
			return report, err
		}
		report.TestResults = append(report.TestResults, res)
		verdicts = append(verdicts, res.Passed)
		report.Metrics.TestsRun++
		report.Metrics.ExecutionTimeMs += res.TimeMs
		if res.MemoryKB > report.Metrics.MemoryUsedKB {
			report.Metrics.MemoryUsedKB = res.MemoryKB
		}
		if res.Passed {
			report.Metrics.TestsPassed++
		}
	}

	report.Passed, err = grader.Overall(verdicts)
	if err != nil {
		return report, err
	}
	if e.profile.Visualization {
		report.Visualizations = e.visualizer.Visualize(req, report.TestResults)
	}
	return report, nil
}

func (e *CategoryExecutor) runOne(ctx context.Context, sb sandbox.Sandbox, req *model.ExecutionRequest, tc model.TestCase) (model.TestResult, error) {
	out, err := sb.Run(ctx, tc.Input)
	res := model.TestResult{
		TestCaseID:  tc.ID,
		Input:       tc.Input,
		Expected:    tc.ExpectedOutput,
		Actual:      grader.Normalize(out.Stdout),
		Description: tc.Description,
		Hidden:      tc.Hidden,
		TimeMs:      out.Duration.Milliseconds(),
		MemoryKB:    out.MemoryKB,
	}
	if err != nil {
		if !perTestFailure(err) {
			return res, err
		}
		res.ErrorKind = model.KindOf(err)
		res.Error = err.Error()
		// stderr can echo stdin, so hidden tests report the bare error only.
		if diag := appErr.DetailString(err, model.DiagnosticKey); diag != "" && !tc.Hidden {
			res.Error += ": " + diag
		}
	} else {
		res.Passed = grader.Equal(out.Stdout, tc.ExpectedOutput)
	}
	verdict := "passed"
	switch {
	case res.ErrorKind != "":
		verdict = res.ErrorKind
	case !res.Passed:
		verdict = "wrong_answer"
	}
	e.metrics.ObserveTest(ctx, string(req.Category), string(req.Language), verdict, out.Duration, out.MemoryKB)
	return res, nil
}

func perTestFailure(err error) bool {
	return appErr.IsAny(err,
		appErr.RuntimeError,
		appErr.TimeLimitExceeded,
		appErr.MemoryLimitExceeded,
		appErr.OutputLimitExceeded,
	)
}
