package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDockerImage is the image pip runs in when none is configured
	DefaultDockerImage = "python:3.12-slim"

	// containerPluginDir is where the plugin directory is mounted
	containerPluginDir = "/plugin"
)

// DockerInstaller runs pip inside a container with the plugin directory bind-mounted
type DockerInstaller struct {
	client     *client.Client
	image      string
	imageCache map[string]bool // Track pulled images
	cleanupIDs []string        // Container IDs to cleanup
	log        *logrus.Logger
}

// NewDockerInstaller creates a Docker-backed installer
func NewDockerInstaller(ctx context.Context, imageRef string, log *logrus.Logger) (*DockerInstaller, error) {
	if imageRef == "" {
		imageRef = DefaultDockerImage
	}
	if log == nil {
		log = logrus.New()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerNotAvailable, err)
	}

	// Verify Docker is available
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: %v", ErrDockerNotAvailable, err)
	}

	return &DockerInstaller{
		client:     cli,
		image:      imageRef,
		imageCache: make(map[string]bool),
		log:        log,
	}, nil
}

// Kind implements Installer.Kind
func (d *DockerInstaller) Kind() Kind {
	return KindDocker
}

// Install implements Installer.Install
func (d *DockerInstaller) Install(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("install request cannot be nil")
	}

	result := &Result{}
	startTime := time.Now()
	defer func() {
		result.Duration = time.Since(startTime)
	}()

	fail := func(err error) (*Result, error) {
		return result, &DependencyInstallError{Plugin: req.Plugin, Result: result, Err: err}
	}

	cmd, err := buildPipCommand(req)
	if err != nil {
		return fail(err)
	}

	if err := d.PullImage(ctx, d.image); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrImagePullFailed, err))
	}

	absPluginDir, err := filepath.Abs(req.PluginDir)
	if err != nil {
		return fail(fmt.Errorf("failed to resolve plugin directory: %w", err))
	}

	containerID, err := d.createContainer(ctx, cmd, absPluginDir)
	if err != nil {
		return fail(err)
	}
	d.cleanupIDs = append(d.cleanupIDs, containerID)

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fail(fmt.Errorf("container start failed: %w", err))
	}

	waitCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	statusCh, errCh := d.client.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if waitCtx.Err() != nil {
				return fail(fmt.Errorf("%w after %s", ErrTimeout, req.Timeout))
			}
			return fail(fmt.Errorf("container wait failed: %w", err))
		}
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-waitCtx.Done():
		return fail(fmt.Errorf("%w after %s", ErrTimeout, req.Timeout))
	}

	if logs, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	}); err == nil {
		var stdout, stderr bytes.Buffer
		if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
			d.log.WithError(err).Debug("Failed to demultiplex container logs")
		}
		logs.Close()
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		d.log.WithField("plugin", req.Plugin).Debug(result.Stdout)
	}

	if result.ExitCode != 0 {
		return fail(errors.New("pip reported failure"))
	}

	result.Success = true
	return result, nil
}

// PullImage ensures the Docker image is available locally
func (d *DockerInstaller) PullImage(ctx context.Context, imageRef string) error {
	if d.imageCache[imageRef] {
		return nil
	}

	if _, err := d.client.ImageInspect(ctx, imageRef); err == nil {
		d.imageCache[imageRef] = true
		return nil
	}

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	d.log.Infof("Pulling installer image %s", imageRef)
	reader, err := d.client.ImagePull(pullCtx, imageRef, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %v", imageRef, err)
	}
	defer reader.Close()

	// Read pull output to completion
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %v", imageRef, err)
	}

	d.imageCache[imageRef] = true
	return nil
}

// Cleanup removes the containers created by this installer
func (d *DockerInstaller) Cleanup(ctx context.Context) error {
	for _, containerID := range d.cleanupIDs {
		if err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		}); err != nil {
			d.log.WithError(err).Warnf("Failed to remove container %s", containerID)
		}
	}
	d.cleanupIDs = nil
	return nil
}

// Close implements Installer.Close
func (d *DockerInstaller) Close() error {
	if d.client == nil {
		return nil
	}
	if err := d.Cleanup(context.Background()); err != nil {
		return err
	}
	return d.client.Close()
}

// createContainer creates the pip container with the plugin directory mounted read-write
func (d *DockerInstaller) createContainer(ctx context.Context, cmd []string, pluginDir string) (string, error) {
	config := &container.Config{
		Image:        d.image,
		Cmd:          cmd,
		Env:          []string{"HOME=/tmp", "PIP_DISABLE_PIP_VERSION_CHECK=1"},
		WorkingDir:   containerPluginDir,
		User:         fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		AttachStdout: true,
		AttachStderr: true,
	}

	hostConfig := &container.HostConfig{
		Binds: []string{
			fmt.Sprintf("%s:%s", pluginDir, containerPluginDir),
		},
		AutoRemove: false, // removed in Cleanup after logs are read
	}

	resp, err := d.client.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return resp.ID, nil
}

// buildPipCommand maps the request's host paths to their in-container locations
func buildPipCommand(req *Request) ([]string, error) {
	requirements, err := containerPath(req.PluginDir, req.RequirementsFile)
	if err != nil {
		return nil, err
	}
	target, err := containerPath(req.PluginDir, req.TargetDir)
	if err != nil {
		return nil, err
	}

	return []string{
		"python", "-m", "pip",
		"install",
		"--upgrade",
		"-r", requirements,
		"--target=" + target,
	}, nil
}

// containerPath converts a host path inside pluginDir to its path under the mount point
func containerPath(pluginDir, hostPath string) (string, error) {
	rel, err := filepath.Rel(pluginDir, hostPath)
	if err != nil {
		return "", fmt.Errorf("failed to map %s into the container: %w", hostPath, err)
	}
	if rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("%s is outside the plugin directory %s", hostPath, pluginDir)
	}
	return path.Join(containerPluginDir, filepath.ToSlash(rel)), nil
}
