package model

import "time"

// ExecutionEvent announces a terminal transition to downstream consumers.
type ExecutionEvent struct {
	ID          string    `json:"requestId"`
	Status      Status    `json:"status"`
	Category    Category  `json:"category"`
	Language    Language  `json:"language"`
	Passed      bool      `json:"passed"`
	SubmitterID string    `json:"submitterId,omitempty"`
	ProblemID   string    `json:"problemId,omitempty"`
	TestsRun    int       `json:"testsRun"`
	TestsPassed int       `json:"testsPassed"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Timestamp   int64     `json:"timestamp"`
}

// NewExecutionEvent summarizes result for req.
func NewExecutionEvent(req *ExecutionRequest, result *ExecutionResult) *ExecutionEvent {
	ev := &ExecutionEvent{
		ID:          result.ID,
		Status:      result.Status,
		Category:    result.Category,
		Language:    result.Language,
		Passed:      result.Passed,
		TestsRun:    result.Metrics.TestsRun,
		TestsPassed: result.Metrics.TestsPassed,
		StartTime:   result.StartTime,
		EndTime:     result.EndTime,
		Timestamp:   time.Now().Unix(),
	}
	if req != nil {
		ev.SubmitterID = req.SubmitterID
		ev.ProblemID = req.ProblemID
	}
	if result.Error != nil {
		ev.ErrorKind = result.Error.Kind
	}
	return ev
}
