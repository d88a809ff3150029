package agent

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// ContainerProbe reports whether a named container is running.
type ContainerProbe interface {
	Running(ctx context.Context, name string) (bool, error)
}

// DockerProbe inspects containers through the Docker Engine API.
type DockerProbe struct {
	client *client.Client
}

func NewDockerProbe(host string) (*DockerProbe, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("agent.NewDockerProbe: %w", err)
	}
	return &DockerProbe{client: c}, nil
}

func (p *DockerProbe) Running(ctx context.Context, name string) (bool, error) {
	info, err := p.client.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("agent.DockerProbe.Running: %w", err)
	}
	return info.State != nil && info.State.Running, nil
}

func (p *DockerProbe) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("agent.DockerProbe.Close: %w", err)
	}
	return nil
}

// DockerAdapter reaches the containerised agent. It is healthy only when its
// container is running and the service inside answers /health.
type DockerAdapter struct {
	*ServiceAdapter
	probe     ContainerProbe
	container string
}

// NewDockerAdapter builds the adapter. A nil probe skips the container check.
func NewDockerAdapter(baseURL, container string, probe ContainerProbe, opts ...ServiceOption) *DockerAdapter {
	return &DockerAdapter{
		ServiceAdapter: NewServiceAdapter("docker", baseURL, opts...),
		probe:          probe,
		container:      container,
	}
}

func (a *DockerAdapter) HealthCheck(ctx context.Context) bool {
	if a.probe != nil {
		ctx, cancel := context.WithTimeout(ctx, a.healthTimeout)
		running, err := a.probe.Running(ctx, a.container)
		cancel()
		if err != nil || !running {
			return false
		}
	}
	return a.ServiceAdapter.HealthCheck(ctx)
}

func (a *DockerAdapter) Chat(ctx context.Context, chat ChatRequest) (*ChatResponse, error) {
	if err := chat.Validate(); err != nil {
		return nil, fmt.Errorf("agent.DockerAdapter.Chat: %w", err)
	}
	if !a.HealthCheck(ctx) {
		return nil, fmt.Errorf("agent.DockerAdapter.Chat: %w", ErrUnavailable)
	}
	return a.forward(ctx, chat)
}
