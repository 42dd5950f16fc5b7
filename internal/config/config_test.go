package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[network]
bind_address = "127.0.0.1:9000"
tick_rate = "100ms"

[movement]
client_reported = true
player_speed = 5.0
grace_period = "150ms"

[database]
dsn = "postgres://u:p@localhost/db"

[logging]
file = "logs/gridmove.log"
compress = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Network.BindAddress)
	assert.Equal(t, 100*time.Millisecond, cfg.Network.TickRate)
	assert.True(t, cfg.Movement.ClientReported)
	assert.Equal(t, 5.0, cfg.Movement.PlayerSpeed)
	assert.Equal(t, 150*time.Millisecond, cfg.Movement.GracePeriod)
	assert.Equal(t, "logs/gridmove.log", cfg.Logging.File)
	assert.True(t, cfg.Logging.Compress)
	assert.NotZero(t, cfg.Server.StartTime)

	// untouched keys keep their defaults
	assert.Equal(t, 250*time.Millisecond, cfg.Network.PatrolRate)
	assert.Equal(t, 1.5, cfg.Movement.SpeedTolerance)
	assert.Equal(t, 500*time.Millisecond, cfg.Movement.TeleportThreshold)
	assert.Equal(t, "scripts", cfg.Scripting.Dir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[network\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[movement]\nnpc_speed = 0.0\n"))
	assert.ErrorContains(t, err, "npc_speed")
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Network.TickRate = 0
	cfg.Movement.SpeedTolerance = 0.5
	err := cfg.Validate()
	assert.ErrorContains(t, err, "tick_rate")
	assert.ErrorContains(t, err, "speed_tolerance")

	cfg = Default()
	cfg.Database.DSN = "postgres://x"
	cfg.Database.FlushInterval = 0
	assert.ErrorContains(t, cfg.Validate(), "flush_interval")
}
