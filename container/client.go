// Package container wraps the Docker Engine API behind a small collaborator
// interface so the execution driver can be tested with a fake runtime.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/ethereum/go-ethereum/log"
)

// ReportsMountPoint is where the shared reports directory is bind-mounted
// inside every test container. It is the only channel a test has to hand its
// artifact back to the orchestrator.
const ReportsMountPoint = "/reports"

// ErrImageNotFound indicates the registry does not know the requested image.
// Pulls that fail this way are downgraded to warnings; a locally cached image
// may still satisfy the run.
var ErrImageNotFound = errors.New("image not found")

// ExitError reports a container that ran but exited non-zero.
type ExitError struct {
	ExitCode int64
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("container exited with code %d", e.ExitCode)
}

// RunRequest describes one isolated test execution.
type RunRequest struct {
	Image           string
	Env             map[string]string
	ReportsHostPath string // host side of the reports bind mount
}

// Client is the isolated execution collaborator: it runs one test image to
// completion with the reports directory mounted read-write.
type Client interface {
	// PullImage pulls the image, returning ErrImageNotFound when the
	// registry does not have it.
	PullImage(ctx context.Context, img string) error
	// RunContainer runs the image to completion. A non-zero exit comes back
	// as *ExitError carrying the container's stderr; any other error is an
	// infrastructure fault.
	RunContainer(ctx context.Context, req RunRequest) error
	// DetectHostPath inspects the container this process runs in (if any)
	// and reports the host path mounted at containerPath.
	DetectHostPath(ctx context.Context, hostname, containerPath string) (string, bool)
	Close() error
}

type dockerClient struct {
	api *client.Client
	log log.Logger
}

// NewDockerClient connects to the Docker daemon using the standard
// environment configuration (DOCKER_HOST et al).
func NewDockerClient(logger log.Logger) (Client, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connecting to docker daemon: %w", err)
	}
	if logger == nil {
		logger = log.Root()
	}
	return &dockerClient{api: api, log: logger}, nil
}

func (d *dockerClient) PullImage(ctx context.Context, img string) error {
	rc, err := d.api.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, img)
		}
		return fmt.Errorf("pulling image %s: %w", img, err)
	}
	defer rc.Close()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pulling image %s: %w", img, err)
	}
	return nil
}

func (d *dockerClient) RunContainer(ctx context.Context, req RunRequest) error {
	cfg := &dockercontainer.Config{
		Image: req.Image,
		Env:   flattenEnv(req.Env),
	}
	hostCfg := &dockercontainer.HostConfig{
		NetworkMode: "bridge",
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: req.ReportsHostPath,
			Target: ReportsMountPoint,
		}},
	}

	created, err := d.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return fmt.Errorf("creating container for image %s: %w", req.Image, err)
	}
	// Removal is explicit rather than AutoRemove so stderr can still be
	// collected after a non-zero exit.
	defer func() {
		if rmErr := d.api.ContainerRemove(context.WithoutCancel(ctx), created.ID,
			dockercontainer.RemoveOptions{Force: true}); rmErr != nil {
			d.log.Warn("Failed to remove container", "id", created.ID, "err", rmErr)
		}
	}()

	if err := d.api.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		return fmt.Errorf("starting container for image %s: %w", req.Image, err)
	}

	statusCh, errCh := d.api.ContainerWait(ctx, created.ID, dockercontainer.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("waiting for container: %w", err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return &ExitError{
				ExitCode: status.StatusCode,
				Stderr:   d.containerStderr(ctx, created.ID),
			}
		}
	}
	return nil
}

// containerStderr fetches the container's stderr stream, best effort.
func (d *dockerClient) containerStderr(ctx context.Context, id string) string {
	rc, err := d.api.ContainerLogs(ctx, id, dockercontainer.LogsOptions{ShowStderr: true})
	if err != nil {
		d.log.Warn("Failed to fetch container logs", "id", id, "err", err)
		return ""
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		d.log.Warn("Failed to demultiplex container logs", "id", id, "err", err)
	}
	return stderr.String()
}

func (d *dockerClient) DetectHostPath(ctx context.Context, hostname, containerPath string) (string, bool) {
	if hostname == "" {
		return "", false
	}
	info, err := d.api.ContainerInspect(ctx, hostname)
	if err != nil {
		d.log.Warn("Could not inspect own container for host path detection",
			"hostname", hostname, "err", err)
		return "", false
	}
	for _, m := range info.Mounts {
		if m.Destination == containerPath {
			return m.Source, true
		}
	}
	return "", false
}

func (d *dockerClient) Close() error {
	return d.api.Close()
}

// flattenEnv renders an environment map to docker's KEY=value list form, in
// sorted key order so container creation is deterministic.
func flattenEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
