// cmd/stagehand/main_test.go
package main

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/config"
)

// Un flag donné explicitement doit l'emporter sur l'environnement; un champ
// non flaggé garde la valeur de l'environnement
func TestExplicitFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvTimeout, "300")
	t.Setenv(config.EnvDbPath, "/var/lib/stagehand/env.db")

	cfg := config.NewConfig()
	cfg.Logger.SetOutput(io.Discard)

	root := newRootCmd(cfg)
	require.NoError(t, root.PersistentFlags().Parse(
		[]string{"--log-level", "debug", "--timeout", "42"}))

	require.NoError(t, root.PersistentPreRunE(root, nil))

	// Les flags explicites gagnent
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logrus.DebugLevel, cfg.Logger.GetLevel())
	assert.Equal(t, 42, cfg.Timeout)

	// Les champs sans flag explicite viennent de l'environnement
	assert.Equal(t, "/var/lib/stagehand/env.db", cfg.DbPath)
}

func TestEnvironmentAppliesWithoutFlags(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "warn")
	t.Setenv(config.EnvEngineBinary, "podman")

	cfg := config.NewConfig()
	cfg.Logger.SetOutput(io.Discard)

	root := newRootCmd(cfg)
	require.NoError(t, root.PersistentFlags().Parse(nil))

	require.NoError(t, root.PersistentPreRunE(root, nil))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "podman", cfg.EngineBinary)
}
