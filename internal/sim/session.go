// internal/sim/session.go
package sim

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Session pilote le cycle de vie du runtime de simulation: ouverture de la
// scène, démarrage de la lecture, boucle de mise à jour, fermeture. Le
// drapeau keepRunning est écrit une seule fois par run (timeout ou signal);
// une fois abaissé il ne remonte jamais.
type Session struct {
	host   Host
	logger *logrus.Logger

	keepRunning atomic.Bool

	mu     sync.Mutex
	closed bool
	scene  string
}

// NewSession crée une session autour de l'hôte donné
func NewSession(host Host, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	s := &Session{
		host:   host,
		logger: logger,
	}
	s.keepRunning.Store(true)
	return s
}

// Setup ouvre la scène si le fichier existe; sinon avertit et continue
// avec une scène vide
func (s *Session) Setup(scene string) error {
	s.logger.Info("Setting up simulation...")

	if scene == "" {
		s.logger.Info("No scene configured, starting with empty stage")
		return nil
	}

	if _, err := os.Stat(scene); err != nil {
		s.logger.Warnf("Scene file not found at %s", scene)
		s.logger.Warn("Continuing with empty stage...")
		return nil
	}

	s.logger.Infof("Loading scene: %s", scene)
	if err := s.host.OpenStage(scene); err != nil {
		return fmt.Errorf("failed to open stage: %w", err)
	}

	s.mu.Lock()
	s.scene = scene
	s.mu.Unlock()

	s.logger.Info("Simulation setup complete")
	return nil
}

// Scene retourne la scène effectivement chargée (vide si aucune)
func (s *Session) Scene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// StartPlayback démarre la lecture via la timeline
func (s *Session) StartPlayback() error {
	timeline := s.host.Timeline()
	if timeline == nil {
		return fmt.Errorf("failed to get timeline interface")
	}

	if err := timeline.Play(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	s.logger.Info("Simulation playback started")
	return nil
}

// Run exécute la boucle de mise à jour tant que le drapeau est levé et que
// l'hôte tourne. Retourne sans erreur quand le drapeau est abaissé.
func (s *Session) Run(ctx context.Context) error {
	for s.keepRunning.Load() && s.host.IsRunning() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.host.Update(); err != nil {
			return fmt.Errorf("simulation update failed: %w", err)
		}
	}
	return nil
}

// RequestStop abaisse le drapeau de la boucle de mise à jour
func (s *Session) RequestStop() {
	s.keepRunning.Store(false)
}

// Stopping indique si l'arrêt a été demandé
func (s *Session) Stopping() bool {
	return !s.keepRunning.Load()
}

// Shutdown ferme le runtime. Idempotent: le handle de l'hôte n'est jamais
// fermé deux fois.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("Simulation already shut down")
		return nil
	}
	s.closed = true
	s.keepRunning.Store(false)

	s.logger.Info("Shutting down simulation...")
	if err := s.host.Close(); err != nil {
		return fmt.Errorf("failed to close simulation host: %w", err)
	}
	return nil
}
