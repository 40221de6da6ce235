package watchdog

import (
	"context"
	"errors"
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"hellod/internal/logging"
)

// RestartStopTimeout is how long, in seconds, Docker waits for the container to stop
const RestartStopTimeout = 10

// ErrContainerNotFound is returned when the configured container does not exist
var ErrContainerNotFound = errors.New("container not found")

// containerAPI is the part of the Docker client the restarter needs
type containerAPI interface {
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	Close() error
}

// DockerRestarter restarts containers through the Docker Engine API
type DockerRestarter struct {
	api containerAPI
}

// NewDockerRestarter connects to the Docker daemon named by the environment
// (DOCKER_HOST, default unix:///var/run/docker.sock) and checks it answers.
func NewDockerRestarter(ctx context.Context) (*DockerRestarter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	return &DockerRestarter{api: cli}, nil
}

// Restart restarts the named container
func (d *DockerRestarter) Restart(ctx context.Context, containerName string) error {
	logging.Infof("Restarting container %s...", containerName)

	timeout := RestartStopTimeout
	err := d.api.ContainerRestart(ctx, containerName, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, containerName)
		}
		return fmt.Errorf("failed to restart container %s: %w", containerName, err)
	}

	logging.Infof("Container restart command issued.")
	return nil
}

// Close closes the Docker client connection
func (d *DockerRestarter) Close() error {
	return d.api.Close()
}
