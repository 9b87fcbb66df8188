package model

import appErr "execoj/pkg/errors"

// Error kinds reported to callers.
const (
	KindValidation     = "ValidationError"
	KindQueueFull      = "QueueFullError"
	KindUnsupported    = "UnsupportedCategoryError"
	KindEnvironment    = "EnvironmentError"
	KindCompilation    = "CompilationError"
	KindRuntime        = "RuntimeError"
	KindTimeout        = "TimeoutError"
	KindMemoryLimit    = "MemoryLimitExceeded"
	KindInfrastructure = "SandboxInfrastructureError"
	KindNotFound       = "NotFoundError"
	KindConfiguration  = "ConfigurationError"
	KindInternal       = "InternalError"
)

// DiagnosticKey is the error detail key carrying toolchain or runtime output.
const DiagnosticKey = "diagnostic"

// KindOf maps an error to its reported kind.
func KindOf(err error) string {
	switch appErr.GetCode(err) {
	case appErr.ValidationFailed, appErr.InvalidParams, appErr.CodeTooLarge,
		appErr.LanguageNotSupported, appErr.TestCaseInvalid:
		return KindValidation
	case appErr.ExecutionQueueFull:
		return KindQueueFull
	case appErr.CategoryNotSupported:
		return KindUnsupported
	case appErr.EnvironmentError:
		return KindEnvironment
	case appErr.CompilationError:
		return KindCompilation
	case appErr.RuntimeError, appErr.OutputLimitExceeded:
		return KindRuntime
	case appErr.TimeLimitExceeded:
		return KindTimeout
	case appErr.MemoryLimitExceeded:
		return KindMemoryLimit
	case appErr.SandboxInfrastructureError:
		return KindInfrastructure
	case appErr.ExecutionNotFound, appErr.NotFound, appErr.TestCaseNotFound:
		return KindNotFound
	case appErr.NoTestCases:
		return KindConfiguration
	default:
		return KindInternal
	}
}

// IsInfrastructure reports whether the error belongs to the operator-facing kinds.
func IsInfrastructure(err error) bool {
	switch KindOf(err) {
	case KindEnvironment, KindInfrastructure, KindInternal:
		return true
	}
	return false
}

// NewErrorDetail builds the caller-facing error detail. Infrastructure
// failures carry the generic code message only.
func NewErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	code := appErr.GetCode(err)
	detail := &ErrorDetail{
		Kind:    KindOf(err),
		Code:    int(code),
		Message: err.Error(),
	}
	if IsInfrastructure(err) {
		detail.Message = code.Message()
		return detail
	}
	detail.Diagnostic = appErr.DetailString(err, DiagnosticKey)
	return detail
}
