package sandbox

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"
)

const maxDiagnosticBytes = 8 * 1024

func environmentError(err error, format string, args ...interface{}) error {
	if err == nil {
		return appErr.Newf(appErr.EnvironmentError, format, args...)
	}
	return appErr.Wrapf(err, appErr.EnvironmentError, format, args...)
}

func infrastructureError(err error, format string, args ...interface{}) error {
	return appErr.Wrapf(err, appErr.SandboxInfrastructureError, format, args...)
}

func stateError(op string, s state) error {
	return appErr.Newf(appErr.EnvironmentError, "cannot %s: sandbox is %s", op, s)
}

func compileTimeoutError(limit time.Duration) error {
	return appErr.Newf(appErr.TimeLimitExceeded, "compilation exceeded %s", limit)
}

func runTimeoutError(limit time.Duration) error {
	return appErr.Newf(appErr.TimeLimitExceeded, "run exceeded %s", limit)
}

func compilationError(exitCode int, stdout, stderr string) error {
	diag := strings.TrimSpace(stderr)
	if out := strings.TrimSpace(stdout); out != "" {
		if diag != "" {
			diag += "\n"
		}
		diag += out
	}
	if diag == "" {
		diag = fmt.Sprintf("compiler exited with code %d", exitCode)
	}
	return appErr.Newf(appErr.CompilationError, "compilation failed with exit code %d", exitCode).
		WithDetail(model.DiagnosticKey, clip(diag))
}

func runtimeError(exitCode int, stderr string) error {
	return appErr.Newf(appErr.RuntimeError, "process exited with code %d", exitCode).
		WithDetail(model.DiagnosticKey, clip(strings.TrimSpace(stderr)))
}

func signalError(signal string, stderr string) error {
	return appErr.Newf(appErr.RuntimeError, "process terminated by %s", signal).
		WithDetail(model.DiagnosticKey, clip(strings.TrimSpace(stderr)))
}

func memoryLimitError(limitMB int64) error {
	return appErr.Newf(appErr.MemoryLimitExceeded, "memory limit of %d MB exceeded", limitMB)
}

func outputLimitError(limit int64) error {
	return appErr.Newf(appErr.OutputLimitExceeded, "output exceeded %d bytes", limit)
}

func clip(s string) string {
	if len(s) <= maxDiagnosticBytes {
		return s
	}
	cut := maxDiagnosticBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n...[truncated]"
}
