// Package observer defines metrics hooks for scheduling and execution.
package observer

import (
	"context"
	"time"
)

// MetricsRecorder records execution metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, language string, ok bool, d time.Duration)
	ObserveTest(ctx context.Context, category, language, verdict string, d time.Duration, memoryKB int64)
	ObserveExecution(ctx context.Context, category, status string, d time.Duration)
	ObserveQueue(depth, active int)
	ObserveCategory(category string, active, memoryMB int)
	ObserveRejection(reason string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveCompile(context.Context, string, bool, time.Duration)               {}
func (Noop) ObserveTest(context.Context, string, string, string, time.Duration, int64) {}
func (Noop) ObserveExecution(context.Context, string, string, time.Duration)           {}
func (Noop) ObserveQueue(int, int)                                                     {}
func (Noop) ObserveCategory(string, int, int)                                          {}
func (Noop) ObserveRejection(string)                                                   {}
