// internal/engine/cli.go
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Timeouts par opération, alignés sur le client en ligne de commande
const (
	versionTimeout    = 10 * time.Second
	imageCheckTimeout = 30 * time.Second
	pullTimeout       = 5 * time.Minute
	runTimeout        = 5 * time.Minute
	launchTimeout     = 60 * time.Second
	listTimeout       = 30 * time.Second
	stopTimeout       = 30 * time.Second
)

// ExecCommandFunc permet d'injecter une fabrique de commandes dans les tests
type ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

// CLIEngine pilote le moteur de conteneurs via son client en ligne de commande
type CLIEngine struct {
	binary      string
	available   bool
	execCommand ExecCommandFunc
	logger      *logrus.Logger
}

// CLIOption configure un CLIEngine
type CLIOption func(*CLIEngine)

// WithExecCommand remplace la fabrique de commandes (tests)
func WithExecCommand(fn ExecCommandFunc) CLIOption {
	return func(e *CLIEngine) {
		e.execCommand = fn
	}
}

// NewCLIEngine crée un moteur CLI et vérifie sa disponibilité.
// La vérification n'est faite qu'une fois; si elle échoue, toutes les
// opérations suivantes échouent immédiatement.
func NewCLIEngine(binary string, logger *logrus.Logger, opts ...CLIOption) *CLIEngine {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	e := &CLIEngine{
		binary:      binary,
		execCommand: exec.CommandContext,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.available = e.checkAvailability()
	if !e.available {
		e.logger.Errorf("Container engine %q is not available on this system", binary)
	}

	return e
}

// checkAvailability vérifie que le client répond
func (e *CLIEngine) checkAvailability() bool {
	res := e.exec(context.Background(), versionTimeout, "--version")
	if res.Success {
		e.logger.Infof("Container engine is available: %s", strings.TrimSpace(res.Stdout))
		return true
	}
	e.logger.Errorf("Container engine not found or not responding: %s", res.Error)
	return false
}

// exec lance le binaire avec les arguments donnés et capture le résultat.
// Toute défaillance (processus introuvable, code non nul, timeout) est
// convertie en CommandResult, jamais propagée en panique.
func (e *CLIEngine) exec(ctx context.Context, timeout time.Duration, args ...string) *CommandResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := e.execCommand(ctx, e.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	switch {
	case err == nil:
		res.Success = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Error = fmt.Sprintf("timeout running %s %s", e.binary, strings.Join(args, " "))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Error = strings.TrimSpace(stderr.String())
			if res.Error == "" {
				res.Error = err.Error()
			}
		} else {
			res.ExitCode = -1
			res.Error = err.Error()
		}
	}

	return res
}

// Name retourne le nom du binaire piloté
func (e *CLIEngine) Name() string {
	return e.binary
}

// Available indique si le moteur a répondu à la vérification initiale
func (e *CLIEngine) Available() bool {
	return e.available
}

// Version retourne la version rapportée par le client
func (e *CLIEngine) Version(ctx context.Context) (string, error) {
	if !e.available {
		return "", ErrUnavailable
	}

	res := e.exec(ctx, versionTimeout, "--version")
	if !res.Success {
		return "", fmt.Errorf("failed to get engine version: %s", res.Error)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ImageExists vérifie si une image est présente localement
func (e *CLIEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	if !e.available {
		return false, ErrUnavailable
	}

	res := e.exec(ctx, imageCheckTimeout, "images", "-q", ref)
	if !res.Success {
		e.logger.Errorf("Error checking image %q: %s", ref, res.Error)
		return false, nil
	}

	if strings.TrimSpace(res.Stdout) != "" {
		e.logger.Debugf("Image %q found locally", ref)
		return true, nil
	}
	e.logger.Debugf("Image %q not found locally", ref)
	return false, nil
}

// PullImage télécharge une image depuis le registry
func (e *CLIEngine) PullImage(ctx context.Context, ref string) error {
	if !e.available {
		return ErrUnavailable
	}

	e.logger.Infof("Pulling image %q...", ref)
	res := e.exec(ctx, pullTimeout, "pull", ref)
	if !res.Success {
		return fmt.Errorf("failed to pull image %q: %s", ref, res.Error)
	}

	e.logger.Infof("Successfully pulled image %q", ref)
	return nil
}

// Run lance un conteneur avec les options données. L'image est
// téléchargée si absente; un échec de pull annule le run sans que la
// commande run ne soit invoquée.
func (e *CLIEngine) Run(ctx context.Context, opts RunOptions) (*CommandResult, error) {
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

	args := e.runArgs(opts)

	// Un conteneur détaché est lancé sans attendre sa fin; un conteneur
	// attaché bloque jusqu'à sa terminaison
	timeout := runTimeout
	if opts.Detach {
		timeout = launchTimeout
	}

	e.logger.Infof("Running container: %s %s", e.binary, strings.Join(args, " "))
	res := e.exec(ctx, timeout, args...)

	if opts.Detach {
		res.Stdout = strings.TrimSpace(res.Stdout)
		res.Stderr = strings.TrimSpace(res.Stderr)
	}

	return res, nil
}

// runArgs traduit les options en arguments de la commande run.
// Les maps sont parcourues en ordre trié pour produire une commande stable.
func (e *CLIEngine) runArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Detach {
		args = append(args, "-d")
	}
	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Interactive {
		args = append(args, "-i")
	}
	if opts.TTY {
		args = append(args, "-t")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	for _, host := range sortedKeys(opts.Volumes) {
		args = append(args, "-v", fmt.Sprintf("%s:%s", host, opts.Volumes[host]))
	}

	for _, host := range sortedKeys(opts.Ports) {
		args = append(args, "-p", fmt.Sprintf("%s:%s", host, opts.Ports[host]))
	}

	for _, key := range sortedKeys(opts.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, opts.Env[key]))
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	if opts.User != "" {
		args = append(args, "-u", opts.User)
	}
	if opts.Network != "" {
		args = append(args, "--network", opts.Network)
	}

	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return args
}

// ListContainers liste les conteneurs via la sortie JSON du client
func (e *CLIEngine) ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error) {
	if !e.available {
		return nil, ErrUnavailable
	}

	args := []string{"ps", "--format", "json"}
	if all {
		args = append(args, "-a")
	}

	res := e.exec(ctx, listTimeout, args...)
	if !res.Success {
		return nil, fmt.Errorf("failed to list containers: %s", res.Error)
	}

	// Une ligne JSON par conteneur
	var containers []ContainerInfo
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line == "" {
			continue
		}
		var info ContainerInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, fmt.Errorf("failed to parse container entry: %w", err)
		}
		containers = append(containers, info)
	}

	return containers, nil
}

// StopContainer arrête un conteneur
func (e *CLIEngine) StopContainer(ctx context.Context, id string) error {
	if !e.available {
		return ErrUnavailable
	}

	res := e.exec(ctx, stopTimeout, "stop", id)
	if !res.Success {
		return fmt.Errorf("failed to stop container %q: %s", id, res.Error)
	}

	e.logger.Infof("Successfully stopped container %q", id)
	return nil
}

// Close ne fait rien pour le moteur CLI
func (e *CLIEngine) Close() error {
	return nil
}

// sortedKeys retourne les clés d'une map en ordre trié
func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
