package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

// Result is what a sandbox run reports back to the worker loop.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// DockerClient is the narrow subset of the Moby client the runner needs,
// so tests can substitute a fake without standing up a real daemon.
type DockerClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig interface{}, platform interface{}, containerName string) (string, error)
	ContainerStart(ctx context.Context, containerID string) error
	ContainerWait(ctx context.Context, containerID string) (int64, error)
	ContainerLogs(ctx context.Context, containerID string) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string) error
}

// Runner launches one ephemeral container per call and guarantees it is
// removed on every exit path, including cancellation.
type Runner struct {
	docker DockerClient
}

// NewRunner builds a Runner over an existing Docker client.
func NewRunner(docker DockerClient) *Runner {
	return &Runner{docker: docker}
}

// NewRunnerFromEnv opens a Docker client from the environment (DOCKER_HOST
// etc.), the same construction every other external-service adapter in
// this codebase uses.
func NewRunnerFromEnv() (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker client: %w", err)
	}
	return NewRunner(&moby{cli}), nil
}

// Run starts a container from cfg, waits for it to exit or for cfg.Timeout
// to elapse, and always removes the container before returning — on the
// success path, the timeout path, and any error path.
func (r *Runner) Run(ctx context.Context, cfg Config) (Result, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := r.docker.ContainerCreate(runCtx, toContainerConfig(cfg), toHostConfig(cfg), nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: create: %w", err)
	}

	// Scoped acquisition: from here on every return path removes id,
	// whether we reach it by success, timeout, or error.
	defer func() {
		removeCtx, removeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer removeCancel()
		_ = r.docker.ContainerRemove(removeCtx, id)
	}()

	start := time.Now()
	if err := r.docker.ContainerStart(runCtx, id); err != nil {
		return Result{}, fmt.Errorf("sandbox: start: %w", err)
	}

	exitCode, waitErr := r.docker.ContainerWait(runCtx, id)
	duration := time.Since(start)
	timedOut := runCtx.Err() == context.DeadlineExceeded

	stdout, stderr := r.collectLogs(ctx, id)

	if waitErr != nil && !timedOut {
		return Result{}, fmt.Errorf("sandbox: wait: %w", waitErr)
	}

	return Result{
		ExitCode: int(exitCode),
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: duration,
		TimedOut: timedOut,
	}, nil
}

// collectLogs reads whatever stdout/stderr the container produced before
// exit or kill. It uses a background context with its own short budget so
// a cancelled run context doesn't also swallow the logs we need to report.
func (r *Runner) collectLogs(ctx context.Context, id string) (string, string) {
	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := r.docker.ContainerLogs(logCtx, id)
	if err != nil {
		return "", ""
	}
	defer rc.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, rc)
	return buf.String(), ""
}

func toContainerConfig(cfg Config) *container.Config {
	return &container.Config{
		Image:        cfg.ImageName,
		Cmd:          cfg.Command,
		Env:          cfg.Env,
		WorkingDir:   cfg.WorkingDirectory,
		NetworkDisabled: cfg.NetworkDisabled,
	}
}

func toHostConfig(cfg Config) *container.HostConfig {
	var mounts []mount.Mount
	if cfg.WorkspaceVolume != "" {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   cfg.WorkspaceVolume,
			Target:   cfg.WorkingDirectory,
			ReadOnly: false,
		})
	}

	var securityOpt []string
	if cfg.NoNewPrivileges {
		securityOpt = append(securityOpt, "no-new-privileges")
	}

	return &container.HostConfig{
		AutoRemove:      false, // the runner removes explicitly so removal is observable/retryable
		ReadonlyRootfs:  cfg.ReadOnlyRootFilesystem,
		Privileged:      false,
		SecurityOpt:     securityOpt,
		Mounts:          mounts,
		Resources: container.Resources{
			Memory:   cfg.MemoryLimitBytes,
			NanoCPUs: cfg.CPUNanoCores,
		},
	}
}
