package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// DockerBackend runs RunSpecs as one-shot containers via the Docker Engine
// API.
type DockerBackend struct {
	cli     *client.Client
	timeout time.Duration
}

// NewDockerBackend dials the local Docker daemon using the environment's
// usual DOCKER_HOST/DOCKER_CERT_PATH conventions.
func NewDockerBackend() (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker backend: %w", err)
	}
	return &DockerBackend{cli: cli, timeout: 2 * time.Minute}, nil
}

func (b *DockerBackend) Name() string { return "docker" }

func (b *DockerBackend) Run(spec RunSpec, mountPolicy MountPolicy, egressPolicy EgressPolicy) (CommandResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	binds := make([]string, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		binds = append(binds, fmt.Sprintf("%s:%s:%s", m.Source, m.Target, mode))
	}

	networkMode := container.NetworkMode("none")
	if len(spec.EgressHosts) > 0 || len(egressPolicy.AllowedHosts) > 0 {
		networkMode = container.NetworkMode("bridge")
	}

	created, err := b.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Env:          env,
		ExposedPorts: nat.PortSet{},
	}, &container.HostConfig{
		Binds:       binds,
		NetworkMode: networkMode,
		AutoRemove:  false,
	}, nil, nil, "")
	if err != nil {
		return CommandResult{}, fmt.Errorf("docker backend: create: %w", err)
	}
	defer b.cli.ContainerRemove(context.Background(), created.ID, container.RemoveOptions{Force: true})

	if err := b.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return CommandResult{}, fmt.Errorf("docker backend: start: %w", err)
	}

	statusCh, errCh := b.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	var status int64
	select {
	case err := <-errCh:
		if err != nil {
			return CommandResult{}, fmt.Errorf("docker backend: wait: %w", err)
		}
	case res := <-statusCh:
		status = res.StatusCode
	}

	logs, err := b.cli.ContainerLogs(ctx, created.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return CommandResult{}, fmt.Errorf("docker backend: logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, io.Reader(logs)); err != nil {
		return CommandResult{}, fmt.Errorf("docker backend: demux logs: %w", err)
	}

	return CommandResult{Status: int(status), Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Close releases the underlying Docker client connection.
func (b *DockerBackend) Close() error { return b.cli.Close() }
