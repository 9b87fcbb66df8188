package model

import "time"

// Language is a source language tag.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageRust       Language = "rust"
	LanguageGo         Language = "go"
	LanguageSQL        Language = "sql"
)

// Languages lists every language known to the service.
func Languages() []Language {
	return []Language{
		LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageJava,
		LanguageC, LanguageCPP, LanguageRust, LanguageGo, LanguageSQL,
	}
}

// Category classifies the problem domain and selects the executor.
type Category string

const (
	CategoryAlgorithm Category = "algorithm"
	CategoryDatabase  Category = "database"
	CategoryNetwork   Category = "network"
	CategorySecurity  Category = "security"
	CategoryWeb       Category = "web"
	CategoryOS        Category = "os"
	CategoryML        Category = "ml"
	CategoryBinary    Category = "binary"
	CategoryOOP       Category = "oop"
)

// Categories lists every category known to the service.
func Categories() []Category {
	return []Category{
		CategoryAlgorithm, CategoryDatabase, CategoryNetwork, CategorySecurity, CategoryWeb,
		CategoryOS, CategoryML, CategoryBinary, CategoryOOP,
	}
}

// Priority orders queued work; higher runs first.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityMedium   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3

	DefaultPriority = PriorityMedium
)

// Valid reports whether p is within the supported range.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// Status is the lifecycle state of an execution.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// AnonymousSubmitter marks requests without an authenticated user.
const AnonymousSubmitter = "anonymous"

// Options are per-run resource bounds.
type Options struct {
	TimeoutMs     int `json:"timeout"`
	MemoryLimitMB int `json:"memoryLimit"`
}

// Timeout returns the per-test-case run timeout.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// TestCase is one input/expected-output pair.
type TestCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Hidden         bool   `json:"isHidden"`
	Description    string `json:"description,omitempty"`
}

// ExecutionRequest is a validated request. It is not mutated after validation.
type ExecutionRequest struct {
	Code        string     `json:"code"`
	Language    Language   `json:"language"`
	Category    Category   `json:"category"`
	Options     Options    `json:"options"`
	Priority    Priority   `json:"priority"`
	SubmitterID string     `json:"submitterId"`
	ProblemID   string     `json:"problemId,omitempty"`
	TestCases   []TestCase `json:"testCases,omitempty"`
}

// WithTestCases returns a copy of the request carrying tests.
func (r ExecutionRequest) WithTestCases(tests []TestCase) *ExecutionRequest {
	r.TestCases = append([]TestCase(nil), tests...)
	return &r
}

// TestResult is the verdict for one test case.
type TestResult struct {
	TestCaseID  string `json:"testCaseId"`
	Passed      bool   `json:"passed"`
	Input       string `json:"input,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
	TimeMs      int64  `json:"timeMs"`
	MemoryKB    int64  `json:"memoryKb,omitempty"`
	ErrorKind   string `json:"errorKind,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Redact hides input and output of hidden test cases.
func (t TestResult) Redact() TestResult {
	if !t.Hidden {
		return t
	}
	t.Input = ""
	t.Expected = ""
	t.Actual = ""
	return t
}

// Visualization is executor-specific metadata passed through untouched.
type Visualization struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Metrics summarize one execution.
type Metrics struct {
	ExecutionTimeMs int64 `json:"executionTime"`
	MemoryUsedKB    int64 `json:"memoryUsed"`
	TestsRun        int   `json:"testsRun"`
	TestsPassed     int   `json:"testsPassed"`
}

// ErrorDetail describes why an execution failed.
type ErrorDetail struct {
	Kind       string `json:"kind"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// ExecutionResult is the terminal record of an execution.
type ExecutionResult struct {
	ID             string          `json:"requestId"`
	Status         Status          `json:"status"`
	Category       Category        `json:"category,omitempty"`
	Language       Language        `json:"language,omitempty"`
	Passed         bool            `json:"passed"`
	TestResults    []TestResult    `json:"testResults"`
	Visualizations []Visualization `json:"visualizations,omitempty"`
	Metrics        Metrics         `json:"metrics"`
	Error          *ErrorDetail    `json:"error,omitempty"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
}
