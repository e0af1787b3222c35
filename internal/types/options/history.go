// internal/types/options/history.go
package options

import "time"

// HistoryOptions contrôle la consultation de l'historique des runs
type HistoryOptions struct {
	Scenes []string  // Filtrer sur certaines scènes
	Limit  int       // Limite d'entrées
	Last   bool      // Dernière entrée par scène seulement
	SortBy string    // Critère de tri (date|scene)
	JSON   bool      // Sortie JSON
	Search string    // Recherche dans statut et message
	Since  time.Time // Date de début
	Before time.Time // Date de fin
}
