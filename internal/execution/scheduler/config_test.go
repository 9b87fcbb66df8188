package scheduler_test

import (
	"testing"
	"time"

	"execoj/internal/execution/model"
	"execoj/internal/execution/scheduler"
)

func TestApplyDefaultsMergesCategoryLimits(t *testing.T) {
	cfg := scheduler.Config{
		CategoryLimits: map[model.Category]scheduler.CategoryLimit{
			model.CategoryML: {MaxConcurrent: 4, MemoryMB: 2048},
		},
	}
	cfg.ApplyDefaults()

	if cfg.MaxQueueSize != 100 || cfg.MaxConcurrent != 10 {
		t.Fatalf("unexpected global caps: %d %d", cfg.MaxQueueSize, cfg.MaxConcurrent)
	}
	if cfg.DrainPolicy != scheduler.HeadOfLine {
		t.Fatalf("unexpected drain policy: %s", cfg.DrainPolicy)
	}
	if cfg.ResultTTL != time.Hour {
		t.Fatalf("unexpected retention: %v", cfg.ResultTTL)
	}
	if got := cfg.CategoryLimits[model.CategoryML]; got.MaxConcurrent != 4 || got.MemoryMB != 2048 {
		t.Fatalf("override lost: %+v", got)
	}
	if got := cfg.CategoryLimits[model.CategoryAlgorithm]; got.MaxConcurrent != 3 {
		t.Fatalf("default limit lost: %+v", got)
	}
	if len(cfg.CategoryLimits) != len(model.Categories()) {
		t.Fatalf("expected a limit per category, got %d", len(cfg.CategoryLimits))
	}
}

func TestValidateRejectsNonPositiveCategoryCap(t *testing.T) {
	cfg := scheduler.DefaultConfig()
	cfg.CategoryLimits[model.CategoryWeb] = scheduler.CategoryLimit{MaxConcurrent: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
