package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"execoj/internal/execution/model"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	containerSourceDir = "/sandbox/src"
	containerOutputDir = "/sandbox/out"
	oomExitCode        = 137
	sandboxLabel       = "execoj.sandbox"
)

// ContainerProfile is the hardening applied to every sandbox container.
type ContainerProfile struct {
	CPUPeriod       int64         `yaml:"cpuPeriod"`
	CPUQuota        int64         `yaml:"cpuQuota"`
	PidsLimit       int64         `yaml:"pidsLimit"`
	TmpfsSize       string        `yaml:"tmpfsSize"`
	User            string        `yaml:"user"`
	NetworkDisabled *bool         `yaml:"networkDisabled"`
	StopTimeout     time.Duration `yaml:"stopTimeout"`
}

// ContainerConfig configures container sandboxes.
type ContainerConfig struct {
	WorkRoot       string           `yaml:"workRoot"`
	CompileTimeout time.Duration    `yaml:"compileTimeout"`
	MaxOutputBytes int64            `yaml:"maxOutputBytes"`
	Profile        ContainerProfile `yaml:"profile"`
}

func (c *ContainerConfig) applyDefaults() {
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = defaultCompileTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = defaultMaxOutputBytes
	}
	if c.Profile.CPUPeriod <= 0 {
		c.Profile.CPUPeriod = 100000
	}
	if c.Profile.CPUQuota <= 0 {
		c.Profile.CPUQuota = 50000
	}
	if c.Profile.PidsLimit <= 0 {
		c.Profile.PidsLimit = 64
	}
	if c.Profile.TmpfsSize == "" {
		c.Profile.TmpfsSize = "64m"
	}
	if c.Profile.NetworkDisabled == nil {
		disabled := true
		c.Profile.NetworkDisabled = &disabled
	}
	if c.Profile.StopTimeout <= 0 {
		c.Profile.StopTimeout = 2 * time.Second
	}
}

// ContainerSandbox runs every phase inside one long-lived container. The
// source directory is mounted read-only and the output directory writable.
// A timed-out or OOM-killed container is discarded and recreated on demand.
type ContainerSandbox struct {
	runtime    ContainerRuntime
	cfg        ContainerConfig
	toolchain  Toolchain
	runTimeout time.Duration
	memoryMB   int64

	mu          sync.Mutex
	state       state
	hostDir     string
	containerID string
	paths       Paths
}

// NewContainerSandbox creates a sandbox for one execution.
func NewContainerSandbox(runtime ContainerRuntime, cfg ContainerConfig, toolchain Toolchain, opts model.Options) *ContainerSandbox {
	cfg.applyDefaults()
	timeout := opts.Timeout()
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	return &ContainerSandbox{
		runtime:    runtime,
		cfg:        cfg,
		toolchain:  toolchain,
		runTimeout: timeout,
		memoryMB:   int64(opts.MemoryLimitMB),
	}
}

// Prepare stages the source on the host and starts the container.
func (s *ContainerSandbox) Prepare(ctx context.Context, code string, language model.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateCreated {
		return stateError("prepare", s.state)
	}
	if language != s.toolchain.Language {
		return environmentError(nil, "toolchain %s cannot prepare %s source", s.toolchain.Language, language)
	}
	if s.toolchain.Image == "" {
		return environmentError(nil, "no image configured for %s", language)
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
	s.hostDir = dir
	srcDir := filepath.Join(dir, "src")
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(srcDir, 0o755); err != nil {
		return environmentError(err, "create source directory")
	}
	if err := os.Mkdir(outDir, 0o777); err != nil {
		return environmentError(err, "create output directory")
	}
	// Mkdir is subject to umask; the container user may not be the host user.
	if err := os.Chmod(outDir, 0o777); err != nil {
		return environmentError(err, "chmod output directory")
	}
	if err := os.WriteFile(filepath.Join(srcDir, s.toolchain.SourceFile), []byte(code), 0o644); err != nil {
		return environmentError(err, "write source file")
	}
	s.paths = Paths{
		Source: path.Join(containerSourceDir, s.toolchain.SourceFile),
		Binary: path.Join(containerOutputDir, s.toolchain.binaryName()),
		Output: containerOutputDir,
	}

	if err := s.runtime.EnsureImage(ctx, s.toolchain.Image); err != nil {
		return infrastructureError(err, "ensure image %s", s.toolchain.Image)
	}
	if err := s.startContainer(ctx); err != nil {
		return err
	}
	s.state = statePrepared
	logger.Debug(ctx, "container sandbox prepared",
		zap.String("container_id", s.containerID),
		zap.String("image", s.toolchain.Image),
	)
	return nil
}

// Compile runs the build step inside the container.
func (s *ContainerSandbox) Compile(ctx context.Context) error {
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
	res, timedOut, err := s.exec(ctx, args, "", s.cfg.CompileTimeout)
	if err != nil {
		return err
	}
	if timedOut {
		return compileTimeoutError(s.cfg.CompileTimeout)
	}
	if res.ExitCode != 0 {
		return compilationError(res.ExitCode, res.Stdout, res.Stderr)
	}
	s.state = stateCompiled
	return nil
}

// Run executes the program once, recreating the container if an earlier run
// had to kill it.
func (s *ContainerSandbox) Run(ctx context.Context, input string) (RunOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateCompiled {
		return RunOutput{}, stateError("run", s.state)
	}
	if s.containerID == "" {
		if err := s.startContainer(ctx); err != nil {
			return RunOutput{}, err
		}
	}
	args, err := s.toolchain.RunArgs(s.paths)
	if err != nil {
		return RunOutput{}, err
	}
	res, timedOut, err := s.exec(ctx, args, input, s.runTimeout)
	out := RunOutput{
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		Duration:  res.Duration,
		Truncated: res.Truncated,
	}
	if err != nil {
		return out, err
	}
	switch {
	case timedOut:
		return out, runTimeoutError(s.runTimeout)
	case res.ExitCode == oomExitCode:
		oom := s.oomKilled(ctx)
		s.discardContainer(ctx)
		if oom {
			return out, memoryLimitError(s.memoryMB)
		}
		return out, signalError("SIGKILL", res.Stderr)
	case res.ExitCode != 0:
		return out, runtimeError(res.ExitCode, res.Stderr)
	case res.Truncated:
		return out, outputLimitError(s.cfg.MaxOutputBytes)
	}
	return out, nil
}

// Cleanup stops and removes the container and deletes the host directory.
// Repeated calls are no-ops.
func (s *ContainerSandbox) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateFinalized {
		return nil
	}
	s.state = stateFinalized

	var errs []error
	if s.containerID != "" {
		id := s.containerID
		s.containerID = ""
		if err := s.runtime.Stop(ctx, id, s.cfg.Profile.StopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("stop container %s: %w", id, err))
		}
		if err := s.runtime.Remove(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("remove container %s: %w", id, err))
		}
	}
	if s.hostDir != "" {
		if err := os.RemoveAll(s.hostDir); err != nil {
			errs = append(errs, fmt.Errorf("remove working directory: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn(ctx, "container sandbox cleanup incomplete", zap.Error(err))
		return infrastructureError(err, "cleanup sandbox")
	}
	return nil
}

func (s *ContainerSandbox) startContainer(ctx context.Context) error {
	spec := ContainerSpec{
		Image:   s.toolchain.Image,
		Cmd:     []string{"tail", "-f", "/dev/null"},
		WorkDir: containerOutputDir,
		Env:     s.toolchain.Environ(s.paths),
		User:    s.cfg.Profile.User,
		Labels:  map[string]string{sandboxLabel: string(s.toolchain.Language)},
		Mounts: []Mount{
			{Source: filepath.Join(s.hostDir, "src"), Target: containerSourceDir, ReadOnly: true},
			{Source: filepath.Join(s.hostDir, "out"), Target: containerOutputDir},
		},
		Tmpfs:           map[string]string{"/tmp": "rw,exec,nosuid,size=" + s.cfg.Profile.TmpfsSize},
		MemoryMB:        s.memoryMB,
		CPUPeriod:       s.cfg.Profile.CPUPeriod,
		CPUQuota:        s.cfg.Profile.CPUQuota,
		PidsLimit:       s.cfg.Profile.PidsLimit,
		NetworkDisabled: *s.cfg.Profile.NetworkDisabled,
		ReadOnlyRootfs:  true,
	}
	id, err := s.runtime.Create(ctx, spec)
	if err != nil {
		return infrastructureError(err, "create container")
	}
	if err := s.runtime.Start(ctx, id); err != nil {
		if rmErr := s.runtime.Remove(ctx, id); rmErr != nil {
			logger.Warn(ctx, "remove unstarted container failed", zap.String("container_id", id), zap.Error(rmErr))
		}
		return infrastructureError(err, "start container")
	}
	s.containerID = id
	return nil
}

// exec runs args with a deadline. On timeout the container is killed since
// the exec'd process may ignore the closed stream.
func (s *ContainerSandbox) exec(ctx context.Context, args []string, input string, timeout time.Duration) (ExecResult, bool, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := s.runtime.Exec(execCtx, s.containerID, ExecRequest{
		Cmd:            args,
		WorkDir:        containerOutputDir,
		Env:            s.toolchain.Environ(s.paths),
		Stdin:          input,
		MaxOutputBytes: s.cfg.MaxOutputBytes,
	})
	if err == nil {
		return res, false, nil
	}
	if ctx.Err() != nil {
		return res, false, environmentError(ctx.Err(), "execution cancelled")
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		s.discardContainer(ctx)
		return res, true, nil
	}
	return res, false, infrastructureError(err, "exec in container")
}

func (s *ContainerSandbox) oomKilled(ctx context.Context) bool {
	st, err := s.runtime.Inspect(ctx, s.containerID)
	if err != nil {
		logger.Warn(ctx, "inspect container failed", zap.String("container_id", s.containerID), zap.Error(err))
		return false
	}
	return st.OOMKilled
}

func (s *ContainerSandbox) discardContainer(ctx context.Context) {
	if s.containerID == "" {
		return
	}
	id := s.containerID
	s.containerID = ""
	ctx = context.WithoutCancel(ctx)
	if err := s.runtime.Stop(ctx, id, 0); err != nil {
		logger.Warn(ctx, "kill container failed", zap.String("container_id", id), zap.Error(err))
	}
	if err := s.runtime.Remove(ctx, id); err != nil {
		logger.Warn(ctx, "remove container failed", zap.String("container_id", id), zap.Error(err))
	}
}
