package config

import (
	"github.com/stretchr/testify/assert"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("loads defaults when no path is given", func(t *testing.T) {
		cfg, err := Load("")
		assert.NoError(t, err)
		assert.Equal(t, "habridge", cfg.Bridge.Name)
		assert.Equal(t, "bridged", cfg.Bridge.Mode)
		assert.True(t, cfg.Filter.DefaultAccept)
	})

	t.Run("yaml values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		assert.NoError(t, os.WriteFile(path, []byte(`
bridge:
  name: House Bridge
  mode: standalone
home_assistant:
  url: ws://hass.local:8123/api/websocket
  token: from-file
filter:
  default_accept: false
  rules:
    - description: bridge lights
      filter: Domain == "light"
      accept: true
`), 0o600))

		cfg, err := Load(path)
		assert.NoError(t, err)
		assert.Equal(t, "House Bridge", cfg.Bridge.Name)
		assert.Equal(t, "standalone", cfg.Bridge.Mode)
		assert.Equal(t, "from-file", cfg.HomeAssistant.Token)
		assert.False(t, cfg.Filter.DefaultAccept)
		assert.Len(t, cfg.Filter.Rules, 1)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		assert.NoError(t, os.WriteFile(path, []byte(`
home_assistant:
  token: from-file
`), 0o600))

		t.Setenv("HABRIDGE_HA_TOKEN", "from-env")

		cfg, err := Load(path)
		assert.NoError(t, err)
		assert.Equal(t, "from-env", cfg.HomeAssistant.Token)
	})

	t.Run("a missing file errors", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
