package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Scheduler.SweepIntervalMinutes)
	assert.Equal(t, 0.8, cfg.Inventory.NearOverdueFraction)
	assert.Equal(t, "Asia/Manila", cfg.Location().String())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
[scheduler]
sweep_interval_minutes = 10

[inventory]
time_zone = "UTC"
expiring_supply_days = 14

[kafka]
brokers = ["a:9092"]
`)
	t.Setenv("KAFKA_BROKERS", "b:9092,c:9092")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scheduler.SweepIntervalMinutes)
	assert.Equal(t, 14, cfg.Inventory.ExpiringSupplyDays)
	assert.Equal(t, []string{"b:9092", "c:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	path := writeConfig(t, `
[inventory]
time_zone = "Mars/Olympus"
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeConfig(t, `
[inventory]
near_overdue_fraction = 1.5
`)
	_, err = Load(path)
	assert.Error(t, err)
}
