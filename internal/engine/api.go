// internal/engine/api.go
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"stagehand/pkg/utils"
)

// APIEngine pilote le démon Docker directement via son API.
// Alternative au client CLI pour les hôtes où le binaire n'est pas installé
// mais où la socket du démon est accessible.
type APIEngine struct {
	cli       *client.Client
	available bool
	logger    *logrus.Logger
}

// NewAPIEngine crée une nouvelle instance du moteur API
func NewAPIEngine(logger *logrus.Logger) (*APIEngine, error) {
	logger.Debug("Creating new Docker API client...")

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	e := &APIEngine{
		cli:    cli,
		logger: logger,
	}

	// Tester la connexion une seule fois; comme pour le moteur CLI, un
	// échec ici court-circuite toutes les opérations suivantes
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		logger.Errorf("Failed to connect to Docker daemon: %v", err)
		e.available = false
		return e, nil
	}

	logger.Debug("Successfully connected to Docker daemon")
	e.available = true
	return e, nil
}

// Name retourne le nom du moteur
func (e *APIEngine) Name() string {
	return "docker-api"
}

// Available indique si le démon a répondu au ping initial
func (e *APIEngine) Available() bool {
	return e.available
}

// Version retourne la version du démon
func (e *APIEngine) Version(ctx context.Context) (string, error) {
	if !e.available {
		return "", ErrUnavailable
	}

	version, err := e.cli.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get daemon version: %w", err)
	}
	return version.Version, nil
}

// ImageExists vérifie si une image est présente localement
func (e *APIEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	if !e.available {
		return false, ErrUnavailable
	}

	if _, _, err := e.cli.ImageInspectWithRaw(ctx, ref); err != nil {
		if client.IsErrNotFound(err) {
			e.logger.Debugf("Image %q not found locally", ref)
			return false, nil
		}
		e.logger.Errorf("Error checking image %q: %v", ref, err)
		return false, nil
	}

	e.logger.Debugf("Image %q found locally", ref)
	return true, nil
}

// PullImage télécharge une image depuis le registry
func (e *APIEngine) PullImage(ctx context.Context, ref string) error {
	if !e.available {
		return ErrUnavailable
	}

	e.logger.Infof("Pulling image %q...", ref)

	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	defer reader.Close()

	if _, err = io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("error reading pull response: %w", err)
	}

	e.logger.Infof("Successfully pulled image %q", ref)
	return nil
}

// Run crée et démarre un conteneur avec les options données
func (e *APIEngine) Run(ctx context.Context, opts RunOptions) (*CommandResult, error) {
	if !e.available {
		return &CommandResult{ExitCode: -1, Error: ErrUnavailable.Error()}, ErrUnavailable
	}

	exists, err := e.ImageExists(ctx, opts.Image)
	if err != nil {
		return &CommandResult{ExitCode: -1, Error: err.Error()}, err
	}
	if !exists {
		e.logger.Infof("Image %q not found locally, attempting to pull...", opts.Image)
		if err := e.PullImage(ctx, opts.Image); err != nil {
			e.logger.Errorf("Pull failed: %v", err)
			return &CommandResult{
				ExitCode: -1,
				Error:    fmt.Sprintf("failed to pull image %q", opts.Image),
			}, nil
		}
	}

	cfg, hostCfg, err := e.buildConfigs(opts)
	if err != nil {
		return &CommandResult{ExitCode: -1, Error: err.Error()}, nil
	}

	resp, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return &CommandResult{
			ExitCode: -1,
			Error:    fmt.Sprintf("failed to create container: %v", err),
		}, nil
	}

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return &CommandResult{
			ExitCode: -1,
			Error:    fmt.Sprintf("failed to start container: %v", err),
		}, nil
	}

	e.logger.Infof("Started container %s from image %q",
		utils.ShortenID(resp.ID), opts.Image)

	res := &CommandResult{Success: true, Stdout: resp.ID}
	if opts.Detach {
		return res, nil
	}

	// En mode attaché, attendre la fin du conteneur
	waitCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	statusCh, errCh := e.cli.ContainerWait(waitCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		res.Success = false
		res.ExitCode = -1
		res.Error = fmt.Sprintf("error waiting for container: %v", err)
	case status := <-statusCh:
		res.ExitCode = int(status.StatusCode)
		res.Success = status.StatusCode == 0
		if status.Error != nil {
			res.Error = status.Error.Message
		}
	}

	return res, nil
}

// buildConfigs traduit les options en configurations de l'API
func (e *APIEngine) buildConfigs(opts RunOptions) (*container.Config, *container.HostConfig, error) {
	var env []string
	for _, key := range sortedKeys(opts.Env) {
		env = append(env, fmt.Sprintf("%s=%s", key, opts.Env[key]))
	}

	var binds []string
	for _, host := range sortedKeys(opts.Volumes) {
		binds = append(binds, fmt.Sprintf("%s:%s", host, opts.Volumes[host]))
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, host := range sortedKeys(opts.Ports) {
		port, err := nat.NewPort("tcp", opts.Ports[host])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %q: %w", opts.Ports[host], err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: host})
	}

	cfg := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          env,
		Tty:          opts.TTY,
		OpenStdin:    opts.Interactive,
		WorkingDir:   opts.WorkDir,
		User:         opts.User,
		ExposedPorts: exposed,
	}

	hostCfg := &container.HostConfig{
		Binds:        binds,
		PortBindings: bindings,
		AutoRemove:   opts.Remove,
	}
	if opts.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(opts.Network)
	}

	return cfg, hostCfg, nil
}

// ListContainers liste les conteneurs via l'API
func (e *APIEngine) ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error) {
	if !e.available {
		return nil, ErrUnavailable
	}

	list, err := e.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	containers := make([]ContainerInfo, 0, len(list))
	for _, c := range list {
		names := make([]string, 0, len(c.Names))
		for _, n := range c.Names {
			names = append(names, utils.CleanContainerName(n))
		}
		containers = append(containers, ContainerInfo{
			ID:      c.ID,
			Image:   c.Image,
			Names:   strings.Join(names, ","),
			State:   c.State,
			Status:  c.Status,
			Command: c.Command,
		})
	}

	return containers, nil
}

// StopContainer arrête un conteneur
func (e *APIEngine) StopContainer(ctx context.Context, id string) error {
	if !e.available {
		return ErrUnavailable
	}

	timeout := int(stopTimeout / time.Second)
	if err := e.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container %q: %w", id, err)
	}

	e.logger.Infof("Successfully stopped container %q", id)
	return nil
}

// Close ferme le client API
func (e *APIEngine) Close() error {
	return e.cli.Close()
}
