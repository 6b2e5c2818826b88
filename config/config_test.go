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
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := Load(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, DefaultServerURL, cfg.Server.URL)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay())
	assert.Equal(t, "te", cfg.Params().Language)
	assert.Equal(t, 20, cfg.Params().BeamSize)
}

func TestLoadParsesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
url = "https://lyrics.example.com/"
timeout_seconds = 60

[channel]
heartbeat_seconds = 10

[transcription]
language = "Hindi"
model = "Medium"
beam_size = 5

[logging]
level = "DEBUG"
format = "json"
`)

	cfg, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "https://lyrics.example.com", cfg.Server.URL)
	assert.Equal(t, time.Minute, cfg.RequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay())
	assert.Equal(t, "hi", cfg.Transcription.Language)
	assert.Equal(t, "medium", cfg.Transcription.Model)
	assert.Equal(t, 5, cfg.Transcription.BeamSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[transcription]
model = "small"
`)
	idFile := filepath.Join(t.TempDir(), "id")
	t.Setenv("LYRICAL_SERVER_URL", "http://10.0.0.2:9000")
	t.Setenv("LYRICAL_MODEL", "base")
	t.Setenv("LYRICAL_BEAM_SIZE", "7")
	t.Setenv("LYRICAL_ID_FILE", idFile)

	cfg, _, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.Server.URL)
	assert.Equal(t, "base", cfg.Transcription.Model)
	assert.Equal(t, 7, cfg.Transcription.BeamSize)
	assert.Equal(t, idFile, cfg.Identity.Path)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"scheme":    "[server]\nurl = \"ftp://host\"\n",
		"beam size": "[transcription]\nbeam_size = 21\n",
		"model":     "[transcription]\nmodel = \"tiny\"\n",
		"language":  "[transcription]\nlanguage = \"fr\"\n",
		"log level": "[logging]\nlevel = \"loud\"\n",
		"field":     "[watch]\nfield = \"lyrics\"\n",
		"tls pair":  "[backend]\ncert_file = \"/tmp/cert.pem\"\n",
		"unknown":   "[server]\nhost = \"x\"\n",
		"syntax":    "[server\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "http://example.test:8000"

	text, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, text, "[server]")
	assert.Contains(t, text, "http://example.test:8000")

	path := writeConfig(t, text)
	loaded, _, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.URL, loaded.Server.URL)
}
