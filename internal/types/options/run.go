// internal/types/options/run.go
package options

import (
	"fmt"
	"time"
)

// RunOptions contrôle le déroulement d'un run de scénario
type RunOptions struct {
	Headless bool          // Démarrer le runtime de simulation sans interface
	Timeout  time.Duration // Durée maximale du run avant arrêt automatique
	Notify   bool          // Envoyer une notification en fin de run
	DryRun   bool          // Décrire le run sans l'exécuter

	// Conteneur auxiliaire (aucun si Image est vide)
	Image         string
	ContainerName string
	Command       []string
	Volumes       map[string]string
	Ports         map[string]string
	Env           map[string]string
	Network       string
	Detach        bool
	Remove        bool
}

// NewRunOptions crée des options de run avec les valeurs par défaut
func NewRunOptions(opts ...RunOption) RunOptions {
	options := RunOptions{
		Timeout: DefaultRunTimeout,
		Detach:  true,
		Remove:  true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Validate vérifie que les options sont valides
func (o *RunOptions) Validate() error {
	if o.Timeout < MinRunTimeout {
		return fmt.Errorf("timeout too short (minimum %s)", MinRunTimeout)
	}
	if o.Timeout > MaxRunTimeout {
		return fmt.Errorf("timeout too long (maximum %s)", MaxRunTimeout)
	}
	if o.Image == "" && o.ContainerName != "" {
		return fmt.Errorf("container name given without an image")
	}
	return nil
}

type RunOption func(*RunOptions)

func WithRunTimeout(timeout time.Duration) RunOption {
	return func(o *RunOptions) {
		o.Timeout = timeout
	}
}

func WithRunHeadless(headless bool) RunOption {
	return func(o *RunOptions) {
		o.Headless = headless
	}
}

func WithRunNotify(notify bool) RunOption {
	return func(o *RunOptions) {
		o.Notify = notify
	}
}

func WithRunImage(image string) RunOption {
	return func(o *RunOptions) {
		o.Image = image
	}
}

func WithRunDryRun(dryRun bool) RunOption {
	return func(o *RunOptions) {
		o.DryRun = dryRun
	}
}
