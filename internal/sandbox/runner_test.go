package sandbox_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"

	"github.com/reviewpipe/reviewpipe/internal/sandbox"
)

type fakeDocker struct {
	createErr error
	startErr  error
	waitDelay time.Duration
	waitErr   error
	exitCode  int64
	logs      string
	removed   []string
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig interface{}, platform interface{}, containerName string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "container-1", nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string) error {
	return f.startErr
}

func (f *fakeDocker) ContainerWait(ctx context.Context, containerID string) (int64, error) {
	select {
	case <-time.After(f.waitDelay):
		return f.exitCode, f.waitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeDocker) ContainerLogs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, containerID string) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func TestRunner_Run_Success(t *testing.T) {
	docker := &fakeDocker{exitCode: 0, logs: "all good"}
	runner := sandbox.NewRunner(docker)

	cfg, err := sandbox.SecureDefaults("golang:1.25")
	require.NoError(t, err)

	result, err := runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.False(t, result.TimedOut)
	require.Equal(t, "all good", result.Stdout)
	require.Equal(t, []string{"container-1"}, docker.removed)
}

// TestRunner_Run_Timeout covers spec scenario 5: exit 1 after 11 minutes
// with timeout=10m yields TimedOut=true and the container is still removed.
func TestRunner_Run_Timeout(t *testing.T) {
	docker := &fakeDocker{waitDelay: 50 * time.Millisecond, exitCode: 1}
	runner := sandbox.NewRunner(docker)

	cfg, err := sandbox.SecureDefaults("golang:1.25")
	require.NoError(t, err)
	cfg.Timeout = 10 * time.Millisecond

	result, err := runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, result.TimedOut)
	require.Equal(t, []string{"container-1"}, docker.removed)
}

func TestRunner_Run_RemovesContainerOnCreateFailure(t *testing.T) {
	docker := &fakeDocker{createErr: context.DeadlineExceeded}
	runner := sandbox.NewRunner(docker)

	cfg, err := sandbox.SecureDefaults("golang:1.25")
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), cfg)
	require.Error(t, err)
	require.Empty(t, docker.removed) // no container id was ever assigned
}

func TestRunner_Run_RemovesContainerOnStartFailure(t *testing.T) {
	docker := &fakeDocker{startErr: context.Canceled}
	runner := sandbox.NewRunner(docker)

	cfg, err := sandbox.SecureDefaults("golang:1.25")
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), cfg)
	require.Error(t, err)
	require.Equal(t, []string{"container-1"}, docker.removed)
}
