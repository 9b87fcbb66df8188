package scheduler

import (
	"fmt"
	"time"

	"execoj/internal/execution/model"
)

// DrainPolicy decides what happens when the head's category is saturated.
type DrainPolicy string

const (
	// HeadOfLine stops the pass and keeps the blocked head in place.
	HeadOfLine DrainPolicy = "head-of-line"
	// SkipAhead dispatches the first entry whose category has room.
	SkipAhead DrainPolicy = "skip-ahead"
)

const (
	defaultMaxQueueSize    = 100
	defaultMaxConcurrent   = 10
	defaultWaitPerPosition = time.Second
	defaultSaturatedWait   = 5 * time.Second
	defaultResultTTL       = time.Hour
	defaultCleanupInterval = 5 * time.Minute
	defaultStoreTimeout    = 3 * time.Second
)

// CategoryLimit bounds concurrent work in one category.
type CategoryLimit struct {
	MaxConcurrent int `yaml:"maxConcurrent" json:"maxConcurrent"`
	MemoryMB      int `yaml:"memoryMB" json:"maxMemory"`
}

// Config holds scheduler settings.
type Config struct {
	MaxQueueSize             int                              `yaml:"maxQueueSize"`
	MaxConcurrent            int                              `yaml:"maxConcurrent"`
	CategoryLimits           map[model.Category]CategoryLimit `yaml:"categoryLimits"`
	DrainPolicy              DrainPolicy                      `yaml:"drainPolicy"`
	WaitPerPosition          time.Duration                    `yaml:"waitPerPosition"`
	SaturatedWaitPerPosition time.Duration                    `yaml:"saturatedWaitPerPosition"`
	DispatchTimeout          time.Duration                    `yaml:"dispatchTimeout"`
	StoreTimeout             time.Duration                    `yaml:"storeTimeout"`
	ResultTTL                time.Duration                    `yaml:"resultTTL"`
	CleanupInterval          time.Duration                    `yaml:"cleanupInterval"`
}

// DefaultCategoryLimits returns the built-in per-category limits.
func DefaultCategoryLimits() map[model.Category]CategoryLimit {
	return map[model.Category]CategoryLimit{
		model.CategoryAlgorithm: {MaxConcurrent: 3, MemoryMB: 512},
		model.CategoryDatabase:  {MaxConcurrent: 2, MemoryMB: 256},
		model.CategoryNetwork:   {MaxConcurrent: 2, MemoryMB: 256},
		model.CategorySecurity:  {MaxConcurrent: 2, MemoryMB: 256},
		model.CategoryWeb:       {MaxConcurrent: 2, MemoryMB: 256},
		model.CategoryOS:        {MaxConcurrent: 2, MemoryMB: 256},
		model.CategoryML:        {MaxConcurrent: 1, MemoryMB: 512},
		model.CategoryBinary:    {MaxConcurrent: 1, MemoryMB: 256},
		model.CategoryOOP:       {MaxConcurrent: 2, MemoryMB: 256},
	}
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values. Configured category limits are merged over
// the defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	limits := DefaultCategoryLimits()
	for cat, l := range c.CategoryLimits {
		limits[cat] = l
	}
	c.CategoryLimits = limits
	if c.DrainPolicy == "" {
		c.DrainPolicy = HeadOfLine
	}
	if c.WaitPerPosition <= 0 {
		c.WaitPerPosition = defaultWaitPerPosition
	}
	if c.SaturatedWaitPerPosition <= 0 {
		c.SaturatedWaitPerPosition = defaultSaturatedWait
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = defaultResultTTL
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if c.DrainPolicy != HeadOfLine && c.DrainPolicy != SkipAhead {
		return fmt.Errorf("unknown drain policy %q", c.DrainPolicy)
	}
	for cat, l := range c.CategoryLimits {
		if l.MaxConcurrent <= 0 {
			return fmt.Errorf("category %s: maxConcurrent must be positive", cat)
		}
	}
	return nil
}
