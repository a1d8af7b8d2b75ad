package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParsesOwnDurations(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.resolveDurations())
	assert.Equal(t, 30*time.Second, cfg.BackoffCapDuration)
	assert.Equal(t, time.Hour, cfg.JobTimeoutDuration)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().DataDir, cfg.DataDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/hypervisor\nworkers: 8\nbackoff_cap: 1m\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/hypervisor", cfg.DataDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.BackoffCapDuration)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backoff_cap: not-a-duration\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
