// internal/types/options/prune.go
package options

import "time"

// PruneOptions contrôle la purge de l'historique des runs
type PruneOptions struct {
	All       bool          // Supprimer toutes les entrées
	Before    time.Time     // Supprimer les entrées antérieures à la date
	OlderThan time.Duration // Supprimer les entrées plus vieilles que la durée
	DryRun    bool          // Afficher sans supprimer
}
