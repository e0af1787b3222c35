// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"stagehand/internal/manager"
	"stagehand/internal/types/options"
)

// Scheduler exécute des runs de scénario programmés
type Scheduler struct {
	manager  *manager.RunManager
	cron     *cron.Cron
	scene    string
	runOpts  options.RunOptions
	logger   *logrus.Logger
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// Options pour la configuration du scheduler
type Options struct {
	Scene   string
	RunOpts options.RunOptions
	Logger  *logrus.Logger
}

// NewScheduler crée une nouvelle instance du scheduler
func NewScheduler(m *manager.RunManager, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		manager: m,
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		scene:    opts.Scene,
		runOpts:  opts.RunOpts,
		logger:   opts.Logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start démarre le scheduler avec l'expression cron donnée
func (s *Scheduler) Start(cronExpr string) error {
	// Valider l'expression cron
	if _, err := s.cron.AddFunc(cronExpr, s.runScheduledScenario); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.logger.Infof("Starting scheduler with cron expression: %s", cronExpr)

	// Démarrer le cron
	s.cron.Start()

	// Gérer les signaux d'arrêt. La goroutine ne fait que signaler l'arrêt
	// demandé; le démontage complet (Stop) appartient à l'appelant, sans quoi
	// wg.Wait() attendrait la goroutine qui l'appelle
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			s.logger.Infof("Received signal %v, stopping scheduler...", sig)
			s.signalDone()
		case <-s.stopChan:
			return
		}
	}()

	return nil
}

// runScheduledScenario exécute le run programmé
func (s *Scheduler) runScheduledScenario() {
	ctx := context.Background()

	report, err := s.manager.RunScenario(ctx, s.scene, s.runOpts)
	if err != nil {
		s.logger.Errorf("✗ Scheduled run failed: %v", err)
		return
	}

	if report.Error != nil {
		s.logger.Errorf("✗ %s: %v", report.Scene, report.Error)
	} else {
		s.logger.Infof("✓ %s: run finished (%s) in %s",
			report.Scene, report.Status(), report.Duration().Round(time.Second))
	}
}

// Done retourne un canal fermé quand l'arrêt a été demandé (signal reçu
// ou Stop appelé); l'appelant attend dessus puis appelle Stop
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneChan
}

// signalDone marque l'arrêt comme demandé
func (s *Scheduler) signalDone() {
	s.doneOnce.Do(func() {
		close(s.doneChan)
	})
}

// Stop arrête le scheduler. Idempotent; ne doit jamais être appelé depuis
// la goroutine de gestion des signaux
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping scheduler...")

		// Arrêter le cron
		ctx := s.cron.Stop()

		// Signaler l'arrêt à la goroutine de gestion des signaux
		close(s.stopChan)

		// Attendre la fin de toutes les goroutines
		s.wg.Wait()

		// Attendre la fin des jobs en cours
		<-ctx.Done()

		s.signalDone()
		s.logger.Info("Scheduler stopped")
	})
}

// IsRunning indique si le scheduler est en cours d'exécution
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}

// NextRun retourne la prochaine exécution prévue
func (s *Scheduler) NextRun() *time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
