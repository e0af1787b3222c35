// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"stagehand/internal/config"
)

// ErrUnavailable est retournée quand le moteur de conteneurs n'est pas disponible
var ErrUnavailable = errors.New("container engine is not available")

// Engine abstrait les opérations du moteur de conteneurs.
// L'implémentation par défaut passe par le client en ligne de commande;
// une implémentation alternative utilise directement l'API du démon.
type Engine interface {
	// Name retourne le nom du moteur (pour les logs)
	Name() string
	// Available indique si le moteur est utilisable; un échec de la
	// vérification initiale court-circuite toutes les autres opérations
	Available() bool
	// Version retourne la version du moteur
	Version(ctx context.Context) (string, error)
	// ImageExists vérifie si une image est présente localement
	ImageExists(ctx context.Context, ref string) (bool, error)
	// PullImage télécharge une image depuis le registry
	PullImage(ctx context.Context, ref string) error
	// Run lance un conteneur; l'image est téléchargée au besoin et un
	// échec de pull annule le run sans lancer le conteneur
	Run(ctx context.Context, opts RunOptions) (*CommandResult, error)
	// ListContainers liste les conteneurs
	ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error)
	// StopContainer arrête un conteneur
	StopContainer(ctx context.Context, id string) error
	// Close libère les ressources du moteur
	Close() error
}

// CommandResult représente le résultat d'une invocation du moteur.
// Créé à chaque appel, jamais conservé entre deux appels.
type CommandResult struct {
	Success  bool   // Dérivé du code de sortie
	Stdout   string // Sortie standard capturée
	Stderr   string // Sortie d'erreur capturée
	ExitCode int    // Code de sortie (-1 si le processus n'a pas abouti)
	Error    string // Message d'erreur éventuel
}

// RunOptions décrit un conteneur à lancer; chaque champ correspond
// à un flag du sous-commande run
type RunOptions struct {
	Image       string
	Command     []string
	Volumes     map[string]string // {chemin hôte: chemin conteneur}
	Ports       map[string]string // {port hôte: port conteneur}
	Env         map[string]string // {clé: valeur}
	Name        string
	Detach      bool
	Remove      bool
	Interactive bool
	TTY         bool
	WorkDir     string
	User        string
	Network     string
	ExtraArgs   []string
}

// ContainerInfo représente un conteneur tel que rapporté par le moteur
type ContainerInfo struct {
	ID      string `json:"ID"`
	Image   string `json:"Image"`
	Names   string `json:"Names"`
	State   string `json:"State"`
	Status  string `json:"Status"`
	Command string `json:"Command"`
	Ports   string `json:"Ports"`
}

// New crée le moteur configuré
func New(cfg *config.Config) (Engine, error) {
	switch cfg.Engine {
	case config.EngineCLI:
		return NewCLIEngine(cfg.EngineBinary, cfg.Logger), nil
	case config.EngineAPI:
		return NewAPIEngine(cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown container engine type: %s", cfg.Engine)
	}
}
