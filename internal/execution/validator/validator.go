package validator

import (
	"fmt"
	"strconv"
	"strings"

	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"
)

const (
	defaultMinTimeoutMs     = 1000
	defaultMaxTimeoutMs     = 30000
	defaultTimeoutMs        = 5000
	defaultMinMemoryMB      = 128
	defaultMaxMemoryMB      = 1024
	defaultMemoryMB         = 256
	defaultMaxCodeBytes     = 64 * 1024
	defaultMaxTestCaseCount = 100
)

// Config holds the supported sets and numeric bounds.
type Config struct {
	Languages        []model.Language `yaml:"languages"`
	Categories       []model.Category `yaml:"categories"`
	MinTimeoutMs     int              `yaml:"minTimeoutMs"`
	MaxTimeoutMs     int              `yaml:"maxTimeoutMs"`
	DefaultTimeoutMs int              `yaml:"defaultTimeoutMs"`
	MinMemoryMB      int              `yaml:"minMemoryMB"`
	MaxMemoryMB      int              `yaml:"maxMemoryMB"`
	DefaultMemoryMB  int              `yaml:"defaultMemoryMB"`
	MaxCodeBytes     int              `yaml:"maxCodeBytes"`
	MaxTestCases     int              `yaml:"maxTestCases"`
}

// DefaultConfig returns the stock bounds with every known language and category.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Languages) == 0 {
		c.Languages = model.Languages()
	}
	if len(c.Categories) == 0 {
		c.Categories = model.Categories()
	}
	if c.MinTimeoutMs <= 0 {
		c.MinTimeoutMs = defaultMinTimeoutMs
	}
	if c.MaxTimeoutMs <= 0 {
		c.MaxTimeoutMs = defaultMaxTimeoutMs
	}
	if c.DefaultTimeoutMs <= 0 {
		c.DefaultTimeoutMs = defaultTimeoutMs
	}
	if c.MinMemoryMB <= 0 {
		c.MinMemoryMB = defaultMinMemoryMB
	}
	if c.MaxMemoryMB <= 0 {
		c.MaxMemoryMB = defaultMaxMemoryMB
	}
	if c.DefaultMemoryMB <= 0 {
		c.DefaultMemoryMB = defaultMemoryMB
	}
	if c.MaxCodeBytes <= 0 {
		c.MaxCodeBytes = defaultMaxCodeBytes
	}
	if c.MaxTestCases <= 0 {
		c.MaxTestCases = defaultMaxTestCaseCount
	}
}

// Payload is a raw execution request as received from a caller.
type Payload struct {
	Code        string            `json:"code"`
	Language    string            `json:"language"`
	Category    string            `json:"category"`
	Options     *OptionsPayload   `json:"options,omitempty"`
	Priority    *int              `json:"priority,omitempty"`
	ProblemID   string            `json:"problemId,omitempty"`
	TestCases   []TestCasePayload `json:"testCases,omitempty"`
	SubmitterID string            `json:"-"`
}

// OptionsPayload carries optional resource bounds.
type OptionsPayload struct {
	Timeout     *int `json:"timeout,omitempty"`
	MemoryLimit *int `json:"memoryLimit,omitempty"`
}

// TestCasePayload is a caller-supplied test case. Input and ExpectedOutput
// must be present, although either may be empty.
type TestCasePayload struct {
	ID             string  `json:"id,omitempty"`
	Input          *string `json:"input"`
	ExpectedOutput *string `json:"expectedOutput"`
	Hidden         bool    `json:"isHidden,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// Outcome is either an accepted request or a list of violations.
type Outcome struct {
	Request    *model.ExecutionRequest
	Violations []string
}

// Valid reports whether the payload was accepted.
func (o Outcome) Valid() bool {
	return len(o.Violations) == 0 && o.Request != nil
}

// Err returns the validation error, or nil when valid.
func (o Outcome) Err() error {
	if o.Valid() {
		return nil
	}
	return appErr.Violations(o.Violations)
}

// Validator checks structural and policy validity of payloads. It holds no
// mutable state.
type Validator struct {
	cfg        Config
	languages  map[model.Language]struct{}
	categories map[model.Category]struct{}
}

// New creates a validator; zero config fields take defaults.
func New(cfg Config) *Validator {
	cfg.applyDefaults()
	v := &Validator{
		cfg:        cfg,
		languages:  make(map[model.Language]struct{}, len(cfg.Languages)),
		categories: make(map[model.Category]struct{}, len(cfg.Categories)),
	}
	for _, l := range cfg.Languages {
		v.languages[l] = struct{}{}
	}
	for _, c := range cfg.Categories {
		v.categories[c] = struct{}{}
	}
	return v
}

// Config returns the effective configuration.
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate checks p and returns the accepted request or every violation found.
func (v *Validator) Validate(p Payload) Outcome {
	var violations []string
	addf := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(p.Code) == "" {
		addf("code is required")
	} else if len(p.Code) > v.cfg.MaxCodeBytes {
		addf("code exceeds %d bytes", v.cfg.MaxCodeBytes)
	}

	lang := model.Language(strings.ToLower(strings.TrimSpace(p.Language)))
	if lang == "" {
		addf("language is required")
	} else if _, ok := v.languages[lang]; !ok {
		addf("unsupported language: %s", p.Language)
	}

	category := model.Category(strings.ToLower(strings.TrimSpace(p.Category)))
	if category == "" {
		addf("category is required")
	} else if _, ok := v.categories[category]; !ok {
		addf("unsupported category: %s", p.Category)
	}

	opts := model.Options{TimeoutMs: v.cfg.DefaultTimeoutMs, MemoryLimitMB: v.cfg.DefaultMemoryMB}
	if p.Options != nil {
		if p.Options.Timeout != nil {
			opts.TimeoutMs = *p.Options.Timeout
			if opts.TimeoutMs < v.cfg.MinTimeoutMs || opts.TimeoutMs > v.cfg.MaxTimeoutMs {
				addf("timeout must be between %d and %d ms", v.cfg.MinTimeoutMs, v.cfg.MaxTimeoutMs)
			}
		}
		if p.Options.MemoryLimit != nil {
			opts.MemoryLimitMB = *p.Options.MemoryLimit
			if opts.MemoryLimitMB < v.cfg.MinMemoryMB || opts.MemoryLimitMB > v.cfg.MaxMemoryMB {
				addf("memory limit must be between %d and %d MB", v.cfg.MinMemoryMB, v.cfg.MaxMemoryMB)
			}
		}
	}

	priority := model.DefaultPriority
	if p.Priority != nil {
		priority = model.Priority(*p.Priority)
		if !priority.Valid() {
			addf("priority must be between %d and %d", model.PriorityLow, model.PriorityCritical)
		}
	}

	if len(p.TestCases) > v.cfg.MaxTestCases {
		addf("at most %d test cases are allowed", v.cfg.MaxTestCases)
	}
	tests := make([]model.TestCase, 0, len(p.TestCases))
	for i, tc := range p.TestCases {
		if tc.Input == nil {
			addf("test case %d: input is required", i+1)
		}
		if tc.ExpectedOutput == nil {
			addf("test case %d: expectedOutput is required", i+1)
		}
		if tc.Input == nil || tc.ExpectedOutput == nil {
			continue
		}
		id := strings.TrimSpace(tc.ID)
		if id == "" {
			id = "tc-" + strconv.Itoa(i+1)
		}
		tests = append(tests, model.TestCase{
			ID:             id,
			Input:          *tc.Input,
			ExpectedOutput: *tc.ExpectedOutput,
			Hidden:         tc.Hidden,
			Description:    tc.Description,
		})
	}

	if len(violations) > 0 {
		return Outcome{Violations: violations}
	}

	submitter := strings.TrimSpace(p.SubmitterID)
	if submitter == "" {
		submitter = model.AnonymousSubmitter
	}
	return Outcome{Request: &model.ExecutionRequest{
		Code:        p.Code,
		Language:    lang,
		Category:    category,
		Options:     opts,
		Priority:    priority,
		SubmitterID: submitter,
		ProblemID:   strings.TrimSpace(p.ProblemID),
		TestCases:   tests,
	}}
}
