package sandbox

import (
	"context"
	"io"
	"strings"
	"time"

	"execoj/pkg/utils/logger"

	"github.com/araddon/dateparse"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

// DockerRuntime implements ContainerRuntime against a Docker engine.
type DockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime connects using the environment, or host when set.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	return &DockerRuntime{cli: cli}, nil
}

// Ping checks the engine is reachable.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

// Close releases the client.
func (d *DockerRuntime) Close() error {
	return d.cli.Close()
}

// EnsureImage pulls ref when it is not present locally.
func (d *DockerRuntime) EnsureImage(ctx context.Context, ref string) error {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return err
	}
	logger.Info(ctx, "pulling sandbox image", zap.String("image", ref))
	rc, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

func (d *DockerRuntime) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	pids := spec.PidsLimit
	mounts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:     spec.MemoryMB << 20,
			MemorySwap: spec.MemoryMB << 20,
			CPUPeriod:  spec.CPUPeriod,
			CPUQuota:   spec.CPUQuota,
			PidsLimit:  &pids,
		},
		ReadonlyRootfs: spec.ReadOnlyRootfs,
		SecurityOpt:    []string{"no-new-privileges"},
		CapDrop:        []string{"ALL"},
		Tmpfs:          spec.Tmpfs,
		Mounts:         mounts,
	}
	if spec.NetworkDisabled {
		hostCfg.NetworkMode = "none"
	}
	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:           spec.Image,
		Cmd:             spec.Cmd,
		WorkingDir:      spec.WorkDir,
		Env:             spec.Env,
		User:            spec.User,
		Labels:          spec.Labels,
		NetworkDisabled: spec.NetworkDisabled,
	}, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", err
	}
	for _, w := range resp.Warnings {
		logger.Warn(ctx, "container create warning", zap.String("container_id", resp.ID), zap.String("warning", w))
	}
	return resp.ID, nil
}

func (d *DockerRuntime) Start(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, container.StartOptions{})
}

// Exec runs req inside the container and waits for it or ctx.
func (d *DockerRuntime) Exec(ctx context.Context, id string, req ExecRequest) (ExecResult, error) {
	created, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          req.Cmd,
		WorkingDir:   req.WorkDir,
		Env:          req.Env,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, err
	}
	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecResult{}, err
	}
	defer attach.Close()

	start := time.Now()
	go func() {
		if req.Stdin != "" {
			// The program may exit without reading; a broken pipe is expected then.
			_, _ = io.Copy(attach.Conn, strings.NewReader(req.Stdin))
		}
		_ = attach.CloseWrite()
	}()

	stdout := newLimitedBuffer(req.MaxOutputBytes)
	stderr := newLimitedBuffer(req.MaxOutputBytes)
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attach.Reader)
		done <- err
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		attach.Close()
		<-done
		return ExecResult{
			Stdout:    stdout.String(),
			Stderr:    stderr.String(),
			Duration:  time.Since(start),
			Truncated: stdout.Truncated(),
		}, ctx.Err()
	}
	res := ExecResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.Truncated(),
	}
	if err != nil {
		return res, err
	}
	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return res, err
	}
	res.ExitCode = inspect.ExitCode
	return res, nil
}

func (d *DockerRuntime) Inspect(ctx context.Context, id string) (ContainerState, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerState{}, err
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return ContainerState{}, nil
	}
	st := ContainerState{
		Running:   info.State.Running,
		OOMKilled: info.State.OOMKilled,
		ExitCode:  info.State.ExitCode,
	}
	if t, err := dateparse.ParseAny(info.State.StartedAt); err == nil {
		st.StartedAt = t
	}
	if t, err := dateparse.ParseAny(info.State.FinishedAt); err == nil {
		st.FinishedAt = t
	}
	return st, nil
}

func (d *DockerRuntime) Stop(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout / time.Second)
	err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs})
	if errdefs.IsNotFound(err) {
		return nil
	}
	return err
}

func (d *DockerRuntime) Remove(ctx context.Context, id string) error {
	err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if errdefs.IsNotFound(err) {
		return nil
	}
	return err
}
