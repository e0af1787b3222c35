// internal/types/result.go
package types

import "time"

// Statuts possibles d'un run enregistré en base
const (
	StatusCompleted   = "completed"
	StatusTimeout     = "timeout"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// RunReport décrit le déroulement d'un run de scénario
type RunReport struct {
	Scene            string    // Chemin de la scène chargée
	Success          bool      // Si le run s'est terminé sans erreur
	TimedOut         bool      // Si le run a été arrêté par le timeout
	Interrupted      bool      // Si le run a été arrêté par un signal
	ContainerStarted bool      // Si le conteneur auxiliaire a démarré
	ContainerID      string    // ID du conteneur auxiliaire (si démarré)
	StartedAt        time.Time // Début du run
	FinishedAt       time.Time // Fin du run
	Error            error     // Erreur éventuelle
}

// Status retourne le statut à enregistrer pour ce run
func (r *RunReport) Status() string {
	switch {
	case r.TimedOut:
		return StatusTimeout
	case r.Interrupted:
		return StatusInterrupted
	case r.Success:
		return StatusCompleted
	default:
		return StatusFailed
	}
}

// Duration retourne la durée totale du run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRecord représente une entrée de l'historique des runs
type RunRecord struct {
	ID          int64     `json:"id"`
	Scene       string    `json:"scene"`
	Image       string    `json:"image,omitempty"`
	ContainerID string    `json:"container_id,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
