//go:build linux

package sandbox_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"execoj/internal/execution/model"
	"execoj/internal/execution/sandbox"
	appErr "execoj/pkg/errors"
)

func shellToolchain() sandbox.Toolchain {
	return sandbox.Toolchain{
		Language:   model.LanguagePython,
		SourceFile: "main.sh",
		RunCmd:     "sh {src}",
	}
}

func newLocal(t *testing.T, tc sandbox.Toolchain, timeoutMs int) (*sandbox.LocalSandbox, string) {
	t.Helper()
	root := t.TempDir()
	sb := sandbox.NewLocalSandbox(sandbox.LocalConfig{WorkRoot: root, CompileTimeout: 2 * time.Second},
		tc, model.Options{TimeoutMs: timeoutMs, MemoryLimitMB: 256})
	t.Cleanup(func() { _ = sb.Cleanup(context.Background()) })
	return sb, root
}

func prepared(t *testing.T, sb sandbox.Sandbox, code string) {
	t.Helper()
	ctx := context.Background()
	if err := sb.Prepare(ctx, code, model.LanguagePython); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := sb.Compile(ctx); err != nil {
		t.Fatalf("compile: %v", err)
	}
}

func TestLocalSandboxRunsProgram(t *testing.T) {
	sb, _ := newLocal(t, shellToolchain(), 2000)
	prepared(t, sb, "read a b\necho $((a + b))\n")

	out, err := sb.Run(context.Background(), "3 5\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Stdout != "8\n" || out.ExitCode != 0 {
		t.Fatalf("unexpected output: %+v", out)
	}

	// the same sandbox serves several test cases
	out, err = sb.Run(context.Background(), "10 20\n")
	if err != nil || out.Stdout != "30\n" {
		t.Fatalf("second run: %+v %v", out, err)
	}
}

func TestLocalSandboxTimeoutKillsProcessGroup(t *testing.T) {
	sb, _ := newLocal(t, shellToolchain(), 200)
	prepared(t, sb, "sleep 10 &\nsleep 10\nwait\n")

	start := time.Now()
	_, err := sb.Run(context.Background(), "")
	if !appErr.Is(err, appErr.TimeLimitExceeded) {
		t.Fatalf("expected TimeLimitExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
}

func TestLocalSandboxRuntimeError(t *testing.T) {
	sb, _ := newLocal(t, shellToolchain(), 2000)
	prepared(t, sb, "echo oops >&2\nexit 3\n")

	out, err := sb.Run(context.Background(), "")
	if !appErr.Is(err, appErr.RuntimeError) {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
	if out.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", out.ExitCode)
	}
	if diag := appErr.DetailString(err, model.DiagnosticKey); diag != "oops" {
		t.Fatalf("unexpected diagnostic: %q", diag)
	}
}

func TestLocalSandboxCompilationError(t *testing.T) {
	tc := shellToolchain()
	tc.CompileCmd = "sh -c 'echo bad syntax >&2; exit 1'"
	sb, _ := newLocal(t, tc, 2000)

	if err := sb.Prepare(context.Background(), "irrelevant", model.LanguagePython); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	err := sb.Compile(context.Background())
	if !appErr.Is(err, appErr.CompilationError) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if diag := appErr.DetailString(err, model.DiagnosticKey); diag != "bad syntax" {
		t.Fatalf("unexpected diagnostic: %q", diag)
	}
	if _, err := sb.Run(context.Background(), ""); !appErr.Is(err, appErr.EnvironmentError) {
		t.Fatalf("run after failed compile should be rejected, got %v", err)
	}
}

func TestLocalSandboxCompiledToolchain(t *testing.T) {
	tc := shellToolchain()
	tc.CompileCmd = "cp {src} {bin}"
	tc.RunCmd = "sh {bin}"
	sb, _ := newLocal(t, tc, 2000)
	prepared(t, sb, "echo built\n")

	out, err := sb.Run(context.Background(), "")
	if err != nil || out.Stdout != "built\n" {
		t.Fatalf("unexpected run: %+v %v", out, err)
	}
}

func TestLocalSandboxOutputLimit(t *testing.T) {
	root := t.TempDir()
	sb := sandbox.NewLocalSandbox(sandbox.LocalConfig{WorkRoot: root, MaxOutputBytes: 8},
		shellToolchain(), model.Options{TimeoutMs: 2000})
	defer sb.Cleanup(context.Background())
	prepared(t, sb, "printf 0123456789abcdef\n")

	out, err := sb.Run(context.Background(), "")
	if !appErr.Is(err, appErr.OutputLimitExceeded) {
		t.Fatalf("expected OutputLimitExceeded, got %v", err)
	}
	if out.Stdout != "01234567" || !out.Truncated {
		t.Fatalf("unexpected truncated output: %+v", out)
	}
}

func TestLocalSandboxMissingToolchainProgram(t *testing.T) {
	tc := shellToolchain()
	tc.RunCmd = "definitely-not-installed-interpreter {src}"
	sb, _ := newLocal(t, tc, 2000)
	prepared(t, sb, "")

	if _, err := sb.Run(context.Background(), ""); !appErr.Is(err, appErr.EnvironmentError) {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
}

func TestLocalSandboxCleanupIsIdempotent(t *testing.T) {
	sb, root := newLocal(t, shellToolchain(), 2000)
	prepared(t, sb, "echo hi\n")

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "exec-") {
		t.Fatalf("expected one working directory, got %v", entries)
	}
	if err := sb.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := sb.Cleanup(context.Background()); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	entries, _ = os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("working directory not removed: %v", entries)
	}
	if _, err := sb.Run(context.Background(), ""); !appErr.Is(err, appErr.EnvironmentError) {
		t.Fatalf("run after cleanup should fail, got %v", err)
	}
}

func TestLocalSandboxCleanupBeforePrepare(t *testing.T) {
	sb, _ := newLocal(t, shellToolchain(), 2000)
	if err := sb.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup of unprepared sandbox: %v", err)
	}
}
