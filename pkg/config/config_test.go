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
	path := filepath.Join(t.TempDir(), "subsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.168.88.1
  username: api
  password: hunter2
  connectTimeout: 5s
sweep:
  interval: 1m
  gracePeriodDays: 7
http:
  listen: ":9090"
logLevel: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.88.1:8728", cfg.Device.Address())
	assert.Equal(t, 5*time.Second, cfg.Device.ConnectTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Device.CommandTimeout.Std(), "unset fields keep defaults")
	assert.Equal(t, time.Minute, cfg.Sweep.Interval.Std())
	assert.Equal(t, 7, cfg.Sweep.GracePeriodDays)
	assert.Equal(t, ":9090", cfg.HTTP.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingRequiredFieldsFails(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.168.88.1
  username: api
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
device:
  host: from-file
  username: api
  password: hunter2
`)
	t.Setenv("SUBSYNC_DEVICE_HOST", "from-env")
	t.Setenv("SUBSYNC_DEVICE_PORT", "9999")
	t.Setenv("SUBSYNC_SWEEP_INTERVAL", "30s")
	t.Setenv("SUBSYNC_GRACE_DAYS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env:9999", cfg.Device.Address())
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval.Std())
	assert.Equal(t, 3, cfg.Sweep.GracePeriodDays)
}

func TestEnvOnly(t *testing.T) {
	t.Setenv("SUBSYNC_DEVICE_HOST", "10.0.0.1")
	t.Setenv("SUBSYNC_DEVICE_USERNAME", "api")
	t.Setenv("SUBSYNC_DEVICE_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8728", cfg.Device.Address())
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("SUBSYNC_DEVICE_HOST", "10.0.0.1")
	t.Setenv("SUBSYNC_DEVICE_USERNAME", "api")
	t.Setenv("SUBSYNC_DEVICE_PASSWORD", "hunter2")
	t.Setenv("SUBSYNC_DEVICE_PORT", "not-a-port")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUBSYNC_DEVICE_PORT")
}

func TestBadDurationInFile(t *testing.T) {
	path := writeConfig(t, `
device:
  host: h
  username: u
  password: p
  connectTimeout: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestBadLogLevel(t *testing.T) {
	t.Setenv("SUBSYNC_DEVICE_HOST", "h")
	t.Setenv("SUBSYNC_DEVICE_USERNAME", "u")
	t.Setenv("SUBSYNC_DEVICE_PASSWORD", "p")
	t.Setenv("SUBSYNC_LOG_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
}
