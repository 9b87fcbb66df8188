package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

const processWaitDelay = 500 * time.Millisecond

type processResult struct {
	stdout    string
	stderr    string
	exitCode  int
	signal    string
	duration  time.Duration
	memoryKB  int64
	timedOut  bool
	truncated bool
}

type processSpec struct {
	args      []string
	dir       string
	env       []string
	stdin     string
	timeout   time.Duration
	maxOutput int64
}

// runProcess runs one child in its own process group. The error is non-nil only
// when the child could not be started or the parent context ended.
func runProcess(ctx context.Context, spec processSpec) (processResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	stdout := newLimitedBuffer(spec.maxOutput)
	stderr := newLimitedBuffer(spec.maxOutput)

	cmd := exec.CommandContext(runCtx, spec.args[0], spec.args[1:]...)
	cmd.Dir = spec.dir
	cmd.Env = baseEnv(spec.dir, spec.env)
	cmd.Stdin = strings.NewReader(spec.stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = processWaitDelay
	configureProcess(cmd)

	start := time.Now()
	err := cmd.Run()
	res := processResult{
		stdout:    stdout.String(),
		stderr:    stderr.String(),
		duration:  time.Since(start),
		truncated: stdout.Truncated(),
	}
	if cmd.ProcessState == nil {
		return res, err
	}
	res.exitCode = cmd.ProcessState.ExitCode()
	res.memoryKB = peakMemoryKB(cmd.ProcessState)
	res.signal = terminatingSignal(cmd.ProcessState)

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.timedOut = true
	}
	return res, nil
}

func baseEnv(dir string, extra []string) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
	}
	return append(env, extra...)
}
