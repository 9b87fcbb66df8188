package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"execoj/internal/execution/model"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// LocalConfig configures subprocess sandboxes.
type LocalConfig struct {
	WorkRoot       string        `yaml:"workRoot"`
	CompileTimeout time.Duration `yaml:"compileTimeout"`
	MaxOutputBytes int64         `yaml:"maxOutputBytes"`
}

func (c *LocalConfig) applyDefaults() {
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = defaultCompileTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = defaultMaxOutputBytes
	}
}

// LocalSandbox runs the program as a host subprocess in a private temp
// directory. Memory limits are observed, not enforced.
type LocalSandbox struct {
	cfg        LocalConfig
	toolchain  Toolchain
	runTimeout time.Duration
	memoryMB   int64

	mu    sync.Mutex
	state state
	dir   string
	paths Paths
}

// NewLocalSandbox creates a sandbox for one execution.
func NewLocalSandbox(cfg LocalConfig, toolchain Toolchain, opts model.Options) *LocalSandbox {
	cfg.applyDefaults()
	timeout := opts.Timeout()
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &LocalSandbox{
		cfg:        cfg,
		toolchain:  toolchain,
		runTimeout: timeout,
		memoryMB:   int64(opts.MemoryLimitMB),
	}
}

// Prepare writes the source into a fresh working directory.
func (s *LocalSandbox) Prepare(ctx context.Context, code string, language model.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateCreated {
		return stateError("prepare", s.state)
	}
	if language != s.toolchain.Language {
		return environmentError(nil, "toolchain %s cannot prepare %s source", s.toolchain.Language, language)
	}
	if s.cfg.WorkRoot != "" {
		if err := os.MkdirAll(s.cfg.WorkRoot, 0o755); err != nil {
			return environmentError(err, "create work root")
		}
	}
	dir, err := os.MkdirTemp(s.cfg.WorkRoot, "exec-*")
	if err != nil {
		return environmentError(err, "create working directory")
	}
	s.dir = dir
	s.paths = Paths{
		Source: filepath.Join(dir, s.toolchain.SourceFile),
		Binary: filepath.Join(dir, s.toolchain.binaryName()),
		Output: dir,
	}
	if err := os.WriteFile(s.paths.Source, []byte(code), 0o644); err != nil {
		return environmentError(err, "write source file")
	}
	s.state = statePrepared
	logger.Debug(ctx, "local sandbox prepared", zap.String("dir", dir), zap.String("language", string(language)))
	return nil
}

// Compile runs the toolchain's build step under the compile timeout.
func (s *LocalSandbox) Compile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != statePrepared {
		return stateError("compile", s.state)
	}
	if !s.toolchain.NeedsCompile() {
		s.state = stateCompiled
		return nil
	}
	args, err := s.toolchain.CompileArgs(s.paths)
	if err != nil {
		return err
	}
	res, err := runProcess(ctx, processSpec{
		args:      args,
		dir:       s.dir,
		env:       s.toolchain.Environ(s.paths),
		timeout:   s.cfg.CompileTimeout,
		maxOutput: s.cfg.MaxOutputBytes,
	})
	if err != nil {
		return startError(err, args[0])
	}
	if res.timedOut {
		return compileTimeoutError(s.cfg.CompileTimeout)
	}
	if res.exitCode != 0 {
		return compilationError(res.exitCode, res.stdout, res.stderr)
	}
	s.state = stateCompiled
	return nil
}

// Run executes the program once with input on stdin.
func (s *LocalSandbox) Run(ctx context.Context, input string) (RunOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateCompiled {
		return RunOutput{}, stateError("run", s.state)
	}
	args, err := s.toolchain.RunArgs(s.paths)
	if err != nil {
		return RunOutput{}, err
	}
	res, err := runProcess(ctx, processSpec{
		args:      args,
		dir:       s.dir,
		env:       s.toolchain.Environ(s.paths),
		stdin:     input,
		timeout:   s.runTimeout,
		maxOutput: s.cfg.MaxOutputBytes,
	})
	out := RunOutput{
		Stdout:    res.stdout,
		Stderr:    res.stderr,
		ExitCode:  res.exitCode,
		Duration:  res.duration,
		MemoryKB:  res.memoryKB,
		Truncated: res.truncated,
	}
	if err != nil {
		return out, startError(err, args[0])
	}
	return out, classifyRun(res, s.runTimeout, s.memoryMB, s.cfg.MaxOutputBytes)
}

// Cleanup removes the working directory. Repeated calls are no-ops.
func (s *LocalSandbox) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateFinalized {
		return nil
	}
	s.state = stateFinalized
	if s.dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.dir); err != nil {
		logger.Warn(ctx, "remove sandbox directory failed", zap.String("dir", s.dir), zap.Error(err))
		return environmentError(err, "remove working directory")
	}
	return nil
}

func classifyRun(res processResult, timeout time.Duration, memoryMB, maxOutput int64) error {
	switch {
	case res.timedOut:
		return runTimeoutError(timeout)
	case memoryMB > 0 && res.memoryKB > memoryMB*1024:
		return memoryLimitError(memoryMB)
	case res.signal != "":
		return signalError(res.signal, res.stderr)
	case res.exitCode != 0:
		return runtimeError(res.exitCode, res.stderr)
	case res.truncated:
		return outputLimitError(maxOutput)
	}
	return nil
}

func startError(err error, program string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return environmentError(err, "toolchain program %s is not available", program)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return environmentError(err, "execution cancelled")
	}
	return environmentError(err, "start %s", program)
}
