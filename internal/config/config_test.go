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
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8093", cfg.ListenAddr)
	assert.Equal(t, "en-US", cfg.DefaultLang)
	assert.Equal(t, 5*time.Second, cfg.LocationTimeout.Std())
	assert.Empty(t, cfg.AudioFrom)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
default_lang: es-ES
location_timeout: 2s
audio_from:
  - one.wav
  - two.mp3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "es-ES", cfg.DefaultLang)
	assert.Equal(t, 2*time.Second, cfg.LocationTimeout.Std())
	assert.Equal(t, []string{"one.wav", "two.mp3"}, cfg.AudioFrom)
	// Untouched keys keep their defaults.
	assert.Equal(t, "connectaid.db", cfg.HistoryDB)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8093", cfg.ListenAddr)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
