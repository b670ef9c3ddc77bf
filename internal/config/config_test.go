package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":17171", cfg.Server.GRPC.Address)
	assert.Equal(t, ":17172", cfg.Server.WebSocket.Address)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 60*time.Second, cfg.Game.PhaseTimeout)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
	assert.Equal(t, 6, cfg.Game.MaxPlayers)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  grpc:
    address: ":9000"
logging:
  level: debug
  format: console
game:
  phase_timeout: 15s
  max_players: 4
storage:
  driver: sqlite
  dsn: /tmp/rooms.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("COUP_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.GRPC.Address)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 15*time.Second, cfg.Game.PhaseTimeout)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/rooms.db", cfg.Storage.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min players", func(c *Config) { c.Game.MinPlayers = 1 }},
		{"max players", func(c *Config) { c.Game.MaxPlayers = 7 }},
		{"max below min", func(c *Config) { c.Game.MinPlayers = 4; c.Game.MaxPlayers = 3 }},
		{"negative timeout", func(c *Config) { c.Game.PhaseTimeout = -time.Second }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }},
		{"missing dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
