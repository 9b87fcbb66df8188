package scheduler

import (
	"time"

	"execoj/internal/execution/model"
)

// StatusView is the externally visible state of one execution. Which fields
// are set depends on Status.
type StatusView struct {
	ID              string                 `json:"requestId"`
	Status          model.Status           `json:"status"`
	Position        int                    `json:"position,omitempty"`
	TotalInQueue    int                    `json:"totalInQueue,omitempty"`
	EstimatedWaitMs *int64                 `json:"estimatedWaitTime,omitempty"`
	Result          *model.ExecutionResult `json:"result,omitempty"`
	Error           *model.ErrorDetail     `json:"error,omitempty"`
	StartTime       *time.Time             `json:"startTime,omitempty"`
	EndTime         *time.Time             `json:"endTime,omitempty"`
}

func terminalView(result *model.ExecutionResult) *StatusView {
	start, end := result.StartTime, result.EndTime
	view := &StatusView{
		ID:        result.ID,
		Status:    result.Status,
		Error:     result.Error,
		StartTime: &start,
		EndTime:   &end,
	}
	if result.Status != model.StatusCancelled {
		view.Result = result
	}
	return view
}

// CategoryUsage is the live usage of one category.
type CategoryUsage struct {
	ConcurrentExecutions int `json:"concurrentExecutions"`
	MemoryUsageMB        int `json:"memoryUsage"`
}

// Stats is a point-in-time snapshot of the scheduler.
type Stats struct {
	QueueLength             int                              `json:"queueLength"`
	ActiveExecutions        int                              `json:"activeExecutions"`
	MaxConcurrentExecutions int                              `json:"maxConcurrentExecutions"`
	MaxQueueSize            int                              `json:"maxQueueSize"`
	DrainPolicy             DrainPolicy                      `json:"drainPolicy"`
	CategoryUsage           map[model.Category]CategoryUsage `json:"categoryUsage"`
	CategoryLimits          map[model.Category]CategoryLimit `json:"categoryLimits"`
}
