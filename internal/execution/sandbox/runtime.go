package sandbox

import (
	"context"
	"time"
)

// ContainerRuntime is the subset of a container engine the container
// sandbox needs.
type ContainerRuntime interface {
	EnsureImage(ctx context.Context, ref string) error
	Create(ctx context.Context, spec ContainerSpec) (string, error)
	Start(ctx context.Context, id string) error
	Exec(ctx context.Context, id string, req ExecRequest) (ExecResult, error)
	Inspect(ctx context.Context, id string) (ContainerState, error)
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Remove(ctx context.Context, id string) error
}

// Mount binds a host path into the container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerSpec describes a long-lived sandbox container.
type ContainerSpec struct {
	Name            string
	Image           string
	Cmd             []string
	WorkDir         string
	Env             []string
	User            string
	Labels          map[string]string
	Mounts          []Mount
	Tmpfs           map[string]string
	MemoryMB        int64
	CPUPeriod       int64
	CPUQuota        int64
	PidsLimit       int64
	NetworkDisabled bool
	ReadOnlyRootfs  bool
}

// ExecRequest is one command run inside a started container.
type ExecRequest struct {
	Cmd            []string
	WorkDir        string
	Env            []string
	Stdin          string
	MaxOutputBytes int64
}

// ExecResult is what an exec produced.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// ContainerState is the inspected state of a container.
type ContainerState struct {
	Running    bool
	OOMKilled  bool
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}
