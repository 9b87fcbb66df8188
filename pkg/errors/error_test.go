package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "execoj/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{ExecutionNotFound, "Execution request not found"},
		{CompilationError, "Compilation error"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{ValidationFailed, 400},
		{CategoryNotSupported, 400},
		{ExecutionNotFound, 404},
		{NotCancellable, 409},
		{TooManyRequests, 429},
		{ExecutionQueueFull, 503},
		{SandboxInfrastructureError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ExecutionNotFound, "execution %s not found", "abc")

	want := "execution abc not found"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrapf(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrapf(originalErr, SandboxInfrastructureError, "create container failed")

	if wrappedErr.Code != SandboxInfrastructureError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, SandboxInfrastructureError)
	}
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("wrapped error should match the original")
	}
}

func TestGetCodeLooksThroughWrapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(TimeLimitExceeded), want: TimeLimitExceeded},
		{name: "fmt wrapped", err: fmt.Errorf("run: %w", New(RuntimeError)), want: RuntimeError},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAny(t *testing.T) {
	err := fmt.Errorf("prepare: %w", New(EnvironmentError))

	if !IsAny(err, SandboxInfrastructureError, EnvironmentError) {
		t.Error("IsAny() should match one of the codes")
	}
	if IsAny(err, CompilationError) {
		t.Error("IsAny() should not match unrelated code")
	}
	if IsAny(nil, EnvironmentError) {
		t.Error("IsAny() should be false for nil")
	}
}

func TestDetailString(t *testing.T) {
	err := New(CompilationError).WithDetail("diagnostic", "main.c:1: error")
	if got := DetailString(err, "diagnostic"); got != "main.c:1: error" {
		t.Fatalf("unexpected diagnostic: %q", got)
	}
	if got := DetailString(err, "missing"); got != "" {
		t.Fatalf("expected empty detail, got %q", got)
	}
}

func TestViolations(t *testing.T) {
	err := Violations([]string{"code is required", "language is required"})
	if err.Code != ValidationFailed {
		t.Fatalf("unexpected code: %v", err.Code)
	}
	if err.Error() != "code is required, language is required" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	list, ok := err.Details["violations"].([]string)
	if !ok || len(list) != 2 {
		t.Fatalf("unexpected violations detail: %v", err.Details["violations"])
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("timeout", "out of range")
	if err.Code != ValidationFailed {
		t.Error("ValidationError should use ValidationFailed code")
	}
	if err.Details["field"] != "timeout" {
		t.Error("Field detail not set")
	}
}
