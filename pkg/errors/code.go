package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Test case errors
// 13000-13999: Execution & Sandbox errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Storage & messaging errors (10400-10499)
	StorageError ErrorCode = 10400
	PublishError ErrorCode = 10401

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Test Case Errors (12000-12999) ==========

	TestCaseNotFound ErrorCode = 12100
	TestCaseInvalid  ErrorCode = 12102
	NoTestCases      ErrorCode = 12104

	// ========== Execution & Sandbox Errors (13000-13999) ==========

	// Submission (13000-13099)
	ExecutionNotFound    ErrorCode = 13000
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	CategoryNotSupported ErrorCode = 13006
	NotCancellable       ErrorCode = 13007

	// Scheduling & sandbox (13100-13199)
	ExecutionQueueFull         ErrorCode = 13100
	SandboxInfrastructureError ErrorCode = 13101
	CompilationError           ErrorCode = 13102
	RuntimeError               ErrorCode = 13103
	TimeLimitExceeded          ErrorCode = 13104
	MemoryLimitExceeded        ErrorCode = 13105
	OutputLimitExceeded        ErrorCode = 13106
	EnvironmentError           ErrorCode = 13107
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	// Cache
	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",

	// Storage & messaging
	StorageError: "Object storage operation failed",
	PublishError: "Failed to publish event",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Test cases
	TestCaseNotFound: "Test case not found",
	TestCaseInvalid:  "Invalid test case format",
	NoTestCases:      "No test cases configured for this execution",

	// Submission
	ExecutionNotFound:    "Execution request not found",
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",
	CategoryNotSupported: "Execution category not supported",
	NotCancellable:       "Execution can no longer be cancelled",

	// Scheduling & sandbox
	ExecutionQueueFull:         "Execution queue is full, please try again later",
	SandboxInfrastructureError: "Sandbox infrastructure error",
	CompilationError:           "Compilation error",
	RuntimeError:               "Runtime error",
	TimeLimitExceeded:          "Time limit exceeded",
	MemoryLimitExceeded:        "Memory limit exceeded",
	OutputLimitExceeded:        "Output limit exceeded",
	EnvironmentError:           "Failed to prepare execution environment",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ExecutionNotFound, c == TestCaseNotFound:
		return 404
	case c == NotCancellable:
		return 409
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == ExecutionQueueFull:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == CodeTooLarge, c == LanguageNotSupported, c == CategoryNotSupported:
		return 400
	case c == TestCaseInvalid, c == NoTestCases:
		return 400
	default:
		return 500
	}
}
