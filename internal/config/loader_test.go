package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8170, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, "*/15 * * * *", cfg.Sweeper.Schedule)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.IdleTimeout)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoader_Load(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, 8170, cfg.Server.Port)
		// Derived paths are filled in.
		assert.NotEmpty(t, cfg.Storage.Path)
		assert.NotEmpty(t, cfg.Logging.File)
		assert.NotEmpty(t, cfg.Logging.Audit)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "kaiwa.json")
		doc := `{
			"server": {"host": "0.0.0.0", "port": 9999},
			"logging": {"level": "debug"},
			"data_dir": "` + filepath.ToSlash(dir) + `"
		}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		// Untouched fields keep defaults.
		assert.Equal(t, "*/15 * * * *", cfg.Sweeper.Schedule)
		// Derived paths land under the configured data dir.
		assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.Storage.Path)
		assert.Equal(t, filepath.Join(dir, "kaiwa.log"), cfg.Logging.File)
	})

	t.Run("explicit storage path is not overridden", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "kaiwa.json")
		doc := `{"storage": {"path": ":memory:"}, "data_dir": "` + filepath.ToSlash(dir) + `"}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)
		assert.Equal(t, ":memory:", cfg.Storage.Path)
	})

	t.Run("malformed file errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kaiwa.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "kaiwa.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 8200
	cfg.DataDir = dir
	cfg.Logging.Level = "warn"

	loader := NewLoader(path)
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 8200, loaded.Server.Port)
	assert.Equal(t, "warn", loaded.Logging.Level)
	assert.Equal(t, dir, loaded.DataDir)
}
