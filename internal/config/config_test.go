// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultDbPath, cfg.DbPath)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, EngineCLI, cfg.Engine)
	assert.Equal(t, DefaultEngineBinary, cfg.EngineBinary)
	assert.NotNil(t, cfg.Logger)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvDbPath, "/var/lib/stagehand/test.db")
	t.Setenv(EnvAppriseURL, "apprise://apprise:8000/notify")
	t.Setenv(EnvScene, "/scenes/warehouse.usd")
	t.Setenv(EnvImage, "nginx:latest")
	t.Setenv(EnvEngine, "api")
	t.Setenv(EnvEngineBinary, "podman")
	t.Setenv(EnvTimeout, "300")

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logrus.DebugLevel, cfg.Logger.GetLevel())
	assert.Equal(t, "/var/lib/stagehand/test.db", cfg.DbPath)
	assert.Equal(t, "apprise://apprise:8000/notify", cfg.AppriseURL)
	assert.Equal(t, "/scenes/warehouse.usd", cfg.Scene)
	assert.Equal(t, "nginx:latest", cfg.Image)
	assert.Equal(t, "api", cfg.Engine)
	assert.Equal(t, "podman", cfg.EngineBinary)
	assert.Equal(t, 300, cfg.Timeout)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv(EnvLogLevel, "verbose")
	cfg := NewConfig()
	assert.Error(t, cfg.LoadFromEnv())

	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvTimeout, "never")
	cfg = NewConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	content := `
log_level: warn
db: /tmp/stagehand.db
scene: /scenes/lab.usd
headless: true
engine: cli
engine_binary: podman
image: registry:2
timeout: 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, logrus.WarnLevel, cfg.Logger.GetLevel())
	assert.Equal(t, "/tmp/stagehand.db", cfg.DbPath)
	assert.Equal(t, "/scenes/lab.usd", cfg.Scene)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "podman", cfg.EngineBinary)
	assert.Equal(t, "registry:2", cfg.Image)
	assert.Equal(t, 120, cfg.Timeout)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, cfg.LoadFromFile("/nonexistent/stagehand.yaml"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "empty db path",
			mutate:  func(c *Config) { c.DbPath = "" },
			wantErr: "database path",
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.Engine = "lxc" },
			wantErr: "invalid engine",
		},
		{
			name: "cli engine without binary",
			mutate: func(c *Config) {
				c.Engine = EngineCLI
				c.EngineBinary = ""
			},
			wantErr: "engine binary",
		},
		{
			name:    "timeout too small",
			mutate:  func(c *Config) { c.Timeout = 0 },
			wantErr: "timeout",
		},
		{
			name:    "invalid sort criteria",
			mutate:  func(c *Config) { c.SortBy = "name" },
			wantErr: "sort criteria",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	cfg := NewConfig()

	require.NoError(t, cfg.SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, cfg.Logger.GetLevel())

	assert.Error(t, cfg.SetLogLevel("verbose"))
}
