// internal/manager/run.go
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stagehand/internal/engine"
	"stagehand/internal/sim"
	"stagehand/internal/types"
	"stagehand/internal/types/options"
	"stagehand/pkg/utils"
)

// RunScenario exécute un run complet de scénario: démarrage de la
// simulation, chargement de la scène, lecture, lancement du conteneur
// auxiliaire, minuterie, puis démontage en ordre inverse du démarrage.
// L'échec du conteneur auxiliaire n'interrompt pas la simulation. Le
// rapport décrit toujours ce qui s'est passé; l'erreur retournée ne
// concerne que les options invalides.
func (m *RunManager) RunScenario(ctx context.Context, scene string, opts options.RunOptions) (*types.RunReport, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := opts.Validate(); err != nil {
		return nil, options.NewError(options.ErrTypeValidation, "invalid run options", err)
	}

	if scene == "" {
		scene = m.config.Scene
	}

	report := &types.RunReport{
		Scene:     scene,
		StartedAt: time.Now().UTC(),
	}

	if opts.DryRun {
		m.logger.Infof("Would run scene %q for %s", scene, opts.Timeout)
		if opts.Image != "" {
			m.logger.Infof("Would start sidecar container from image %s", opts.Image)
		}
		m.logger.Debugf("Run options:\n%s", utils.PrettyJSON(opts))
		report.Success = true
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	// Construire l'hôte de simulation
	host, err := m.hosts(sim.HostOptions{
		Headless: opts.Headless,
		Tick:     options.DefaultTickInterval,
	})
	if err != nil {
		report.Error = options.NewError(options.ErrTypeSimulation, "failed to start simulation host", err)
		report.FinishedAt = time.Now().UTC()
		m.recordRun(report, opts)
		return report, nil
	}

	session := sim.NewSession(host, m.logger)

	// Filet de sécurité: Shutdown est idempotent, l'appel explicite en fin
	// de run ne ferme pas le handle une deuxième fois
	defer func() {
		if err := session.Shutdown(); err != nil {
			m.logger.Errorf("Failed to shut down simulation: %v", err)
		}
	}()

	if err := session.Setup(scene); err != nil {
		report.Error = options.NewError(options.ErrTypeSimulation, "failed to set up simulation", err)
		report.FinishedAt = time.Now().UTC()
		m.recordRun(report, opts)
		return report, nil
	}

	if err := session.StartPlayback(); err != nil {
		report.Error = options.NewError(options.ErrTypeSimulation, "failed to start playback", err)
		report.FinishedAt = time.Now().UTC()
		m.recordRun(report, opts)
		return report, nil
	}

	// Lancer le conteneur auxiliaire; son échec n'arrête pas le run
	if opts.Image != "" {
		m.startSidecar(ctx, report, opts)
	}

	// Minuterie: à l'expiration du budget, abaisser le drapeau de la boucle
	var timedOut atomic.Bool
	timer := time.AfterFunc(opts.Timeout, func() {
		m.logger.Infof("Timeout reached (%s), stopping simulation...", opts.Timeout)
		timedOut.Store(true)
		session.RequestStop()
	})
	defer timer.Stop()

	m.logger.Infof("Scenario running (timeout %s), press Ctrl+C to stop early", opts.Timeout)

	if err := session.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			report.Interrupted = true
			m.logger.Info("Run interrupted, shutting down...")
		} else {
			report.Error = options.NewError(options.ErrTypeSimulation, "simulation loop failed", err)
		}
	}
	report.TimedOut = timedOut.Load()

	// Démontage en ordre inverse du démarrage: conteneur d'abord, puis
	// simulation. Contexte frais: le contexte du run peut déjà être annulé.
	if report.ContainerStarted {
		stopCtx, cancel := context.WithTimeout(context.Background(), options.DefaultStopTimeout)
		if err := m.engine.StopContainer(stopCtx, report.ContainerID); err != nil {
			m.logger.Warnf("Failed to stop sidecar container %s: %v",
				utils.ShortenID(report.ContainerID), err)
		} else {
			m.logger.Infof("Sidecar container %s stopped", utils.ShortenID(report.ContainerID))
		}
		cancel()
	}

	if err := session.Shutdown(); err != nil {
		m.logger.Errorf("Failed to shut down simulation: %v", err)
	}

	report.FinishedAt = time.Now().UTC()
	report.Success = report.Error == nil

	m.recordRun(report, opts)

	if report.Error != nil {
		m.logger.Errorf("✗ Scenario run failed after %s: %v",
			report.Duration().Round(time.Second), report.Error)
	} else {
		m.logger.Infof("✓ Scenario run finished (%s) after %s",
			report.Status(), report.Duration().Round(time.Second))
	}

	return report, nil
}

// startSidecar lance le conteneur auxiliaire et met à jour le rapport
func (m *RunManager) startSidecar(ctx context.Context, report *types.RunReport, opts options.RunOptions) {
	name := opts.ContainerName
	if name == "" {
		name = fmt.Sprintf("stagehand-%s", uuid.New().String()[:8])
	}

	result, err := m.engine.Run(ctx, engine.RunOptions{
		Image:   opts.Image,
		Command: opts.Command,
		Volumes: opts.Volumes,
		Ports:   opts.Ports,
		Env:     opts.Env,
		Name:    name,
		Network: opts.Network,
		Detach:  opts.Detach,
		Remove:  opts.Remove,
	})
	if err != nil {
		m.logger.Errorf("Failed to start sidecar container: %v", err)
		m.logger.Warn("Continuing simulation without sidecar container")
		return
	}
	if !result.Success {
		m.logger.Errorf("Failed to start sidecar container: %s", result.Error)
		m.logger.Warn("Continuing simulation without sidecar container")
		return
	}

	report.ContainerStarted = true
	report.ContainerID = strings.TrimSpace(result.Stdout)
	m.logger.Infof("Sidecar container started: %s (%s)",
		name, utils.ShortenID(report.ContainerID))
}

// recordRun enregistre le run en base et envoie la notification
func (m *RunManager) recordRun(report *types.RunReport, opts options.RunOptions) {
	record := &types.RunRecord{
		Scene:       report.Scene,
		Image:       opts.Image,
		ContainerID: utils.ShortenID(report.ContainerID),
		Status:      report.Status(),
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
	if report.Error != nil {
		record.Message = report.Error.Error()
	}

	if err := m.db.SaveRun(record); err != nil {
		m.logger.Warnf("Failed to record run history: %v", err)
	}

	if opts.Notify && m.notify != nil {
		var err error
		if report.Error != nil {
			err = m.notify.NotifyRunFailed(report.Scene, report.Error)
		} else {
			err = m.notify.NotifyRunCompleted(report)
		}
		if err != nil {
			m.logger.Warnf("Failed to send notification: %v", err)
		}
	}
}
