// internal/sim/host.go
package sim

import (
	"fmt"
	"sync"
	"time"
)

// Host représente le runtime de simulation du fournisseur. Le contrat est
// celui de l'application hôte: construction, ouverture de scène, accès à la
// timeline, tick de mise à jour, fermeture. Le runtime lui-même est opaque;
// aucune hypothèse n'est faite sur le rendu ou la physique.
type Host interface {
	// OpenStage charge la scène depuis l'URL donnée
	OpenStage(url string) error
	// Timeline retourne l'interface de contrôle de la lecture
	Timeline() Timeline
	// Update exécute un tick de la boucle principale du runtime
	Update() error
	// IsRunning indique si le runtime accepte encore des ticks
	IsRunning() bool
	// Close ferme le runtime et libère ses ressources
	Close() error
}

// Timeline contrôle la lecture de la scène chargée
type Timeline interface {
	Play() error
	Stop() error
}

// HostOptions configure la construction d'un hôte
type HostOptions struct {
	Headless bool          // Démarrer sans interface graphique
	Tick     time.Duration // Cadence de la boucle de mise à jour
}

// HostFactory construit un hôte de simulation
type HostFactory func(opts HostOptions) (Host, error)

// ClockHost est un hôte cadencé par l'horloge murale. Il sert de runtime
// par défaut quand aucun runtime fournisseur n'est relié au binaire, ainsi
// que pour les tests du harnais.
type ClockHost struct {
	tick     time.Duration
	timeline *clockTimeline

	mu      sync.Mutex
	running bool
	stage   string
}

// NewClockHost crée un hôte cadencé par l'horloge
func NewClockHost(opts HostOptions) *ClockHost {
	tick := opts.Tick
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &ClockHost{
		tick:     tick,
		timeline: &clockTimeline{},
		running:  true,
	}
}

// OpenStage mémorise la scène courante
func (h *ClockHost) OpenStage(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return fmt.Errorf("host is closed")
	}
	h.stage = url
	return nil
}

// Stage retourne la scène courante
func (h *ClockHost) Stage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stage
}

// Timeline retourne la timeline de l'hôte
func (h *ClockHost) Timeline() Timeline {
	return h.timeline
}

// Update attend un tick d'horloge
func (h *ClockHost) Update() error {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()
	if !running {
		return fmt.Errorf("host is closed")
	}
	time.Sleep(h.tick)
	return nil
}

// IsRunning indique si l'hôte accepte encore des ticks
func (h *ClockHost) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Close arrête l'hôte et sa timeline
func (h *ClockHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return fmt.Errorf("host already closed")
	}
	h.running = false
	return h.timeline.Stop()
}

type clockTimeline struct {
	mu      sync.Mutex
	playing bool
}

func (t *clockTimeline) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = true
	return nil
}

func (t *clockTimeline) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = false
	return nil
}

// Playing indique si la timeline est en lecture
func (t *clockTimeline) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// DefaultHostFactory retourne la fabrique d'hôtes par défaut
func DefaultHostFactory(opts HostOptions) (Host, error) {
	return NewClockHost(opts), nil
}
