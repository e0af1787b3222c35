// internal/manager/manager.go
package manager

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"stagehand/internal/config"
	"stagehand/internal/engine"
	"stagehand/internal/notify"
	"stagehand/internal/sim"
	"stagehand/internal/storage/database"
	"stagehand/internal/types"
	"stagehand/internal/types/options"
)

// RunManager coordonne le cycle de vie complet d'un run: simulation,
// conteneur auxiliaire, minuterie, historique et notifications
type RunManager struct {
	engine engine.Engine
	db     *database.Database
	notify *notify.AppriseClient
	hosts  sim.HostFactory
	config *config.Config
	logger *logrus.Logger
	lock   sync.RWMutex
}

// ManagerOption configure un RunManager (injection pour les tests)
type ManagerOption func(*RunManager)

// WithEngine remplace le moteur de conteneurs
func WithEngine(e engine.Engine) ManagerOption {
	return func(m *RunManager) {
		m.engine = e
	}
}

// WithHostFactory remplace la fabrique d'hôtes de simulation
func WithHostFactory(f sim.HostFactory) ManagerOption {
	return func(m *RunManager) {
		m.hosts = f
	}
}

// NewRunManager crée une nouvelle instance du manager
func NewRunManager(cfg *config.Config, opts ...ManagerOption) (*RunManager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	m := &RunManager{
		hosts:  sim.DefaultHostFactory,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	// Initialiser le moteur de conteneurs
	if m.engine == nil {
		eng, err := engine.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create container engine: %w", err)
		}
		m.engine = eng
	}

	// Initialiser la base de données
	db, err := database.NewDatabase(cfg.DbPath, logger)
	if err != nil {
		m.engine.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	m.db = db

	// Initialiser le client Apprise si configuré
	if cfg.AppriseURL != "" {
		notifier, err := notify.NewAppriseClient(cfg.AppriseURL, logger)
		if err != nil {
			logger.Warnf("Failed to initialize Apprise notifications: %v", err)
		} else {
			m.notify = notifier
		}
	}

	return m, nil
}

// Close libère les ressources
func (m *RunManager) Close() error {
	var errs []error

	if err := m.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close container engine: %w", err))
	}
	if err := m.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if m.notify != nil {
		if err := m.notify.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Apprise client: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing manager: %v", errs)
	}
	return nil
}

// Engine retourne le moteur de conteneurs utilisé
func (m *RunManager) Engine() engine.Engine {
	return m.engine
}

// GetHistory récupère l'historique des runs
func (m *RunManager) GetHistory(opts options.HistoryOptions) ([]types.RunRecord, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.db.GetHistory(opts)
}

// PruneRuns purge l'historique des runs
func (m *RunManager) PruneRuns(opts options.PruneOptions) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.db.PruneRuns(opts)
}
