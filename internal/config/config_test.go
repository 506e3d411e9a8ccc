package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, int64(5<<30), cfg.MaxArchiveSize)
	assert.Equal(t, "osfstorage", cfg.ArchiveProvider)
	assert.Equal(t, 4, cfg.WorkerConfig.Workers)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
max_archive_size: 1024
worker:
  workers: 8
  poll_delay: 2s
copy_service:
  url: "http://copy.local"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, int64(1024), cfg.MaxArchiveSize)
	assert.Equal(t, 8, cfg.WorkerConfig.Workers)
	assert.Equal(t, 2*time.Second, cfg.WorkerConfig.PollDelay)
	assert.Equal(t, "http://copy.local", cfg.CopyServiceConfig.URL)

	// Defaults survive a partial file.
	assert.Equal(t, "no_archive_limit", cfg.NoArchiveLimitTag)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `listen: ":9090"`)

	t.Setenv("ARCHIVER_LISTEN", ":7070")
	t.Setenv("ARCHIVER_MAX_ARCHIVE_SIZE", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, int64(2048), cfg.MaxArchiveSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
