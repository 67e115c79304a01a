package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
dataset:
  path: /data/main_data.csv
  reload_interval: 15m
api:
  port: 9000
weather:
  enabled: true
  provider: openweather
  api_key: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/data/main_data.csv", cfg.Dataset.Path)
	require.Equal(t, 15*time.Minute, cfg.Dataset.ReloadInterval)
	require.Equal(t, 9000, cfg.API.Port)
	require.True(t, cfg.API.Enabled)
	require.False(t, cfg.MQTT.Enabled)
	require.Equal(t, "bikeshare", cfg.MQTT.TopicPrefix)
	require.Equal(t, "./bikeshare.db", cfg.Database.Path)
	require.Equal(t, "openweather", cfg.Weather.Provider)
	require.Equal(t, "metric", cfg.Weather.Units)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BIKESHARE_API_PORT", "7000")
	t.Setenv("BIKESHARE_DATABASE_PATH", "/tmp/other.db")

	cfg, err := Load(writeConfig(t, "api:\n  port: 9000\n"))
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.API.Port)
	require.Equal(t, "/tmp/other.db", cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"port out of range":   "api:\n  port: 70000\n",
		"unknown provider":    "weather:\n  provider: darksky\n",
		"mqtt without broker": "mqtt:\n  enabled: true\n  broker: \"\"\n",
		"bad latitude":        "weather:\n  latitude: 120\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
