// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// Defaults
	DefaultLogLevel     = "info"
	DefaultDbPath       = "stagehand.db"
	DefaultTimeout      = 200
	DefaultEngine       = "cli"
	DefaultEngineBinary = "docker"
	DefaultSortBy       = "date"

	// Engines supportés
	EngineCLI = "cli"
	EngineAPI = "api"

	// Environment variables
	EnvPrefix       = "STAGEHAND_"
	EnvLogLevel     = EnvPrefix + "LOG_LEVEL"
	EnvDbPath       = EnvPrefix + "DB"
	EnvAppriseURL   = EnvPrefix + "APPRISE_URL"
	EnvTimeout      = EnvPrefix + "TIMEOUT"
	EnvEngine       = EnvPrefix + "ENGINE"
	EnvEngineBinary = EnvPrefix + "ENGINE_BINARY"
	EnvScene        = EnvPrefix + "SCENE"
	EnvImage        = EnvPrefix + "IMAGE"
)

// Config représente la configuration globale de l'application
type Config struct {
	// Paramètres généraux
	LogLevel   string `yaml:"log_level"`
	DbPath     string `yaml:"db"`
	AppriseURL string `yaml:"apprise_url"`

	// Runtime de simulation
	Scene    string `yaml:"scene"`    // Chemin de la scène à charger
	Headless bool   `yaml:"headless"` // Démarrer sans interface

	// Moteur de conteneurs
	Engine       string `yaml:"engine"`        // Implémentation: cli ou api
	EngineBinary string `yaml:"engine_binary"` // Binaire du client (mode cli)
	Image        string `yaml:"image"`         // Image du conteneur auxiliaire

	// Paramètres historique
	Limit  int    `yaml:"-"` // Limite d'entrées
	Last   bool   `yaml:"-"` // Dernière entrée seulement
	SortBy string `yaml:"-"` // Critère de tri
	JSON   bool   `yaml:"-"` // Format JSON
	Search string `yaml:"-"` // Terme de recherche
	Since  string `yaml:"-"` // Date début
	Before string `yaml:"-"` // Date fin

	// Paramètres système
	Timeout int `yaml:"timeout"` // Timeout du run en secondes

	// Logger configuré
	Logger *logrus.Logger `yaml:"-"`
}

// NewConfig crée une nouvelle configuration avec les valeurs par défaut
func NewConfig() *Config {
	return &Config{
		LogLevel:     DefaultLogLevel,
		DbPath:       DefaultDbPath,
		Timeout:      DefaultTimeout,
		Engine:       DefaultEngine,
		EngineBinary: DefaultEngineBinary,
		SortBy:       DefaultSortBy,
		Logger:       newLogger(DefaultLogLevel),
	}
}

// LoadFromFile charge la configuration depuis un fichier YAML
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return c.SetLogLevel(c.LogLevel)
}

// LoadFromEnv charge la configuration depuis les variables d'environnement
func (c *Config) LoadFromEnv() error {
	// Log level
	if level := os.Getenv(EnvLogLevel); level != "" {
		if err := c.SetLogLevel(level); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}

	// Database path
	if path := os.Getenv(EnvDbPath); path != "" {
		c.DbPath = path
	}

	// Apprise URL
	if url := os.Getenv(EnvAppriseURL); url != "" {
		c.AppriseURL = url
	}

	// Scène et image par défaut
	if scene := os.Getenv(EnvScene); scene != "" {
		c.Scene = scene
	}
	if image := os.Getenv(EnvImage); image != "" {
		c.Image = image
	}

	// Moteur de conteneurs
	if engine := os.Getenv(EnvEngine); engine != "" {
		c.Engine = engine
	}
	if binary := os.Getenv(EnvEngineBinary); binary != "" {
		c.EngineBinary = binary
	}

	// Timeout
	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		c.Timeout = t
	}

	return nil
}

// Validate vérifie la validité de la configuration
func (c *Config) Validate() error {
	// Vérifier le log level
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.LogLevel, err)
	}

	// Vérifier le chemin de la base de données
	if c.DbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// Vérifier le moteur de conteneurs
	if c.Engine != EngineCLI && c.Engine != EngineAPI {
		return fmt.Errorf("invalid engine '%s': must be '%s' or '%s'",
			c.Engine, EngineCLI, EngineAPI)
	}
	if c.Engine == EngineCLI && c.EngineBinary == "" {
		return fmt.Errorf("engine binary cannot be empty in cli mode")
	}

	// Vérifier le timeout
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second")
	}

	// Vérifier le critère de tri
	if c.SortBy != "date" && c.SortBy != "scene" {
		return fmt.Errorf("invalid sort criteria: must be 'date' or 'scene'")
	}

	return nil
}

// SetLogLevel configure le niveau de log
func (c *Config) SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	c.LogLevel = level
	c.Logger.SetLevel(lvl)
	return nil
}

// newLogger crée un nouveau logger configuré
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()

	// Configuration par défaut du logger
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// Niveau de log
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}
