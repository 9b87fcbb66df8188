package executor_test

import (
	"context"
	"strings"
	"testing"

	"execoj/internal/execution/executor"
	"execoj/internal/execution/model"
	"execoj/internal/execution/sandbox"
	appErr "execoj/pkg/errors"
)

type scriptedRun struct {
	out sandbox.RunOutput
	err error
}

type fakeSandbox struct {
	prepareErr error
	compileErr error
	runs       map[string]scriptedRun
	ran        []string
	cleanups   int
}

func (s *fakeSandbox) Prepare(context.Context, string, model.Language) error { return s.prepareErr }
func (s *fakeSandbox) Compile(context.Context) error                         { return s.compileErr }

func (s *fakeSandbox) Run(_ context.Context, input string) (sandbox.RunOutput, error) {
	s.ran = append(s.ran, input)
	if r, ok := s.runs[input]; ok {
		return r.out, r.err
	}
	return sandbox.RunOutput{Stdout: input}, nil
}

func (s *fakeSandbox) Cleanup(context.Context) error {
	s.cleanups++
	return nil
}

type fakeFactory struct {
	sb   *fakeSandbox
	opts model.Options
	err  error
}

func (f *fakeFactory) New(_ model.Language, opts model.Options) (sandbox.Sandbox, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.sb, nil
}

func newExecutor(category model.Category, sb *fakeSandbox) (*executor.CategoryExecutor, *fakeFactory) {
	factory := &fakeFactory{sb: sb}
	var profile executor.Profile
	for _, p := range executor.DefaultProfiles() {
		if p.Category == category {
			profile = p
		}
	}
	return executor.New(executor.Config{Profile: profile, Factory: factory}), factory
}

func request(category model.Category, tests ...model.TestCase) *model.ExecutionRequest {
	return &model.ExecutionRequest{
		Code:      "print(sum(map(int, input().split())))",
		Language:  model.LanguagePython,
		Category:  category,
		Options:   model.Options{TimeoutMs: 5000, MemoryLimitMB: 256},
		TestCases: tests,
	}
}

func TestExecuteRejectsEmptyTestCases(t *testing.T) {
	sb := &fakeSandbox{}
	exec, factory := newExecutor(model.CategoryAlgorithm, sb)
	_, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm))
	if !appErr.Is(err, appErr.NoTestCases) {
		t.Fatalf("expected NoTestCases, got %v", err)
	}
	if factory.opts != (model.Options{}) {
		t.Fatalf("sandbox should not be created")
	}
}

func TestExecuteGradesEveryTestCase(t *testing.T) {
	sb := &fakeSandbox{runs: map[string]scriptedRun{
		"1 2": {out: sandbox.RunOutput{Stdout: "3\r\n", MemoryKB: 900}},
		"2 2": {out: sandbox.RunOutput{Stdout: "5\n", MemoryKB: 1200}},
	}}
	exec, _ := newExecutor(model.CategoryAlgorithm, sb)

	report, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm,
		model.TestCase{ID: "a", Input: "1 2", ExpectedOutput: "3"},
		model.TestCase{ID: "b", Input: "2 2", ExpectedOutput: "4"},
	))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Passed {
		t.Fatalf("overall verdict should be false")
	}
	if !report.TestResults[0].Passed || report.TestResults[1].Passed {
		t.Fatalf("unexpected verdicts: %+v", report.TestResults)
	}
	if report.TestResults[1].Actual != "5" {
		t.Fatalf("actual output should be normalized: %q", report.TestResults[1].Actual)
	}
	if report.Metrics.TestsRun != 2 || report.Metrics.TestsPassed != 1 || report.Metrics.MemoryUsedKB != 1200 {
		t.Fatalf("unexpected metrics: %+v", report.Metrics)
	}
	if sb.cleanups != 1 {
		t.Fatalf("cleanup called %d times", sb.cleanups)
	}
}

func TestExecuteHiddenRuntimeErrorOmitsDiagnostic(t *testing.T) {
	sb := &fakeSandbox{runs: map[string]scriptedRun{
		"hidden-input-42": {err: appErr.New(appErr.RuntimeError).WithMessage("process exited with code 1").
			WithDetail(model.DiagnosticKey, "SECRET:hidden-input-42")},
		"visible": {err: appErr.New(appErr.RuntimeError).WithMessage("process exited with code 1").
			WithDetail(model.DiagnosticKey, "SECRET:visible")},
	}}
	exec, _ := newExecutor(model.CategoryAlgorithm, sb)

	report, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm,
		model.TestCase{ID: "h", Input: "hidden-input-42", ExpectedOutput: "x", Hidden: true},
		model.TestCase{ID: "v", Input: "visible", ExpectedOutput: "x"},
	))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	hidden := report.TestResults[0].Redact()
	if hidden.ErrorKind != model.KindRuntime || hidden.Error != "process exited with code 1" {
		t.Fatalf("unexpected hidden result: %+v", hidden)
	}
	if strings.Contains(hidden.Error, "hidden-input-42") || hidden.Input != "" {
		t.Fatalf("hidden input leaked: %+v", hidden)
	}
	if !strings.Contains(report.TestResults[1].Error, "SECRET:visible") {
		t.Fatalf("visible test should keep its diagnostic: %q", report.TestResults[1].Error)
	}
}

func TestExecuteRecordsPerTestFailuresAndContinues(t *testing.T) {
	sb := &fakeSandbox{runs: map[string]scriptedRun{
		"crash": {err: appErr.New(appErr.RuntimeError).WithMessage("process exited with code 1").
			WithDetail(model.DiagnosticKey, "Traceback: ZeroDivisionError")},
		"spin": {err: appErr.New(appErr.TimeLimitExceeded)},
		"oom":  {err: appErr.New(appErr.MemoryLimitExceeded)},
	}}
	exec, _ := newExecutor(model.CategoryAlgorithm, sb)

	report, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm,
		model.TestCase{ID: "1", Input: "crash", ExpectedOutput: "x"},
		model.TestCase{ID: "2", Input: "spin", ExpectedOutput: "x"},
		model.TestCase{ID: "3", Input: "oom", ExpectedOutput: "x"},
		model.TestCase{ID: "4", Input: "ok", ExpectedOutput: "ok"},
	))
	if err != nil {
		t.Fatalf("per-test failures must not abort: %v", err)
	}
	if len(sb.ran) != 4 {
		t.Fatalf("expected every test to run, ran %v", sb.ran)
	}
	kinds := []string{model.KindRuntime, model.KindTimeout, model.KindMemoryLimit, ""}
	for i, want := range kinds {
		if got := report.TestResults[i].ErrorKind; got != want {
			t.Fatalf("test %d kind = %q, want %q", i, got, want)
		}
	}
	if !strings.Contains(report.TestResults[0].Error, "ZeroDivisionError") {
		t.Fatalf("diagnostic missing from runtime error: %q", report.TestResults[0].Error)
	}
	if !report.TestResults[3].Passed || report.Passed {
		t.Fatalf("unexpected verdicts: %+v", report.TestResults)
	}
}

func TestExecuteCompileErrorAborts(t *testing.T) {
	sb := &fakeSandbox{compileErr: appErr.New(appErr.CompilationError)}
	exec, _ := newExecutor(model.CategoryAlgorithm, sb)

	_, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm,
		model.TestCase{ID: "1", Input: "1", ExpectedOutput: "1"}))
	if !appErr.Is(err, appErr.CompilationError) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if len(sb.ran) != 0 {
		t.Fatalf("no test should run after compile failure")
	}
	if sb.cleanups != 1 {
		t.Fatalf("cleanup called %d times", sb.cleanups)
	}
}

func TestExecuteInfrastructureErrorAbortsWithPartialReport(t *testing.T) {
	sb := &fakeSandbox{runs: map[string]scriptedRun{
		"b": {err: appErr.New(appErr.SandboxInfrastructureError)},
	}}
	exec, _ := newExecutor(model.CategoryWeb, sb)

	report, err := exec.Execute(context.Background(), request(model.CategoryWeb,
		model.TestCase{ID: "1", Input: "a", ExpectedOutput: "a"},
		model.TestCase{ID: "2", Input: "b", ExpectedOutput: "b"},
		model.TestCase{ID: "3", Input: "c", ExpectedOutput: "c"},
	))
	if !appErr.Is(err, appErr.SandboxInfrastructureError) {
		t.Fatalf("expected SandboxInfrastructureError, got %v", err)
	}
	if report == nil || len(report.TestResults) != 1 {
		t.Fatalf("expected partial report with one result, got %+v", report)
	}
	if len(sb.ran) != 2 {
		t.Fatalf("run should stop after the infrastructure failure: %v", sb.ran)
	}
}

func TestExecuteFactoryError(t *testing.T) {
	exec := executor.New(executor.Config{
		Profile: executor.Profile{Category: model.CategoryAlgorithm},
		Factory: &fakeFactory{err: appErr.New(appErr.LanguageNotSupported)},
	})
	_, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm,
		model.TestCase{ID: "1", Input: "1", ExpectedOutput: "1"}))
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestMLProfileRaisesResourceFloor(t *testing.T) {
	sb := &fakeSandbox{}
	exec, factory := newExecutor(model.CategoryML, sb)
	_, err := exec.Execute(context.Background(), request(model.CategoryML,
		model.TestCase{ID: "1", Input: "1", ExpectedOutput: "1"}))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if factory.opts.MemoryLimitMB != 1024 || factory.opts.TimeoutMs != 30000 {
		t.Fatalf("ml floor not applied: %+v", factory.opts)
	}
}

func TestDefaultProfilesUseLocalOnlyForAlgorithm(t *testing.T) {
	for _, p := range executor.DefaultProfiles() {
		want := sandbox.ModeContainer
		if p.Category == model.CategoryAlgorithm {
			want = sandbox.ModeLocal
		}
		if p.Mode != want {
			t.Fatalf("category %s mode = %s, want %s", p.Category, p.Mode, want)
		}
	}
}

func TestExecuteAttachesVisualizations(t *testing.T) {
	sb := &fakeSandbox{}
	exec, _ := newExecutor(model.CategoryAlgorithm, sb)
	report, err := exec.Execute(context.Background(), request(model.CategoryAlgorithm,
		model.TestCase{ID: "1", Input: "1", ExpectedOutput: "1"}))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(report.Visualizations) != 2 || report.Visualizations[0].Type != executor.VisExecutionSteps {
		t.Fatalf("unexpected visualizations: %+v", report.Visualizations)
	}
}
