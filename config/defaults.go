package config

import (
	"os"
	"strconv"

	"github.com/bosley/lyrical/identity"
	"github.com/bosley/lyrical/upload"
)

const (
	DefaultServerURL        = "http://localhost:8000"
	defaultTimeoutSeconds   = 300
	defaultPoolSize         = 4
	defaultHeartbeatSeconds = 30
	defaultReconnectSeconds = 3
	defaultBind             = "127.0.0.1:8000"
	defaultWorkers          = 2
	defaultStepDelayMS      = 500
	defaultQueueSize        = 100
)

// Default returns a Config populated with built-in defaults.
func Default() Config {
	idPath, err := identity.DefaultPath()
	if err != nil {
		idPath = ""
	}
	return Config{
		Server: Server{
			URL:            DefaultServerURL,
			TimeoutSeconds: defaultTimeoutSeconds,
			PoolSize:       defaultPoolSize,
		},
		Channel: Channel{
			HeartbeatSeconds: defaultHeartbeatSeconds,
			ReconnectSeconds: defaultReconnectSeconds,
		},
		Transcription: Transcription{
			Language: upload.DefaultLanguage,
			Model:    upload.DefaultModel,
			BeamSize: upload.DefaultBeamSize,
		},
		Identity: Identity{Path: idPath},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Watch: Watch{
			QueueSize: defaultQueueSize,
			Field:     "text",
		},
		Backend: Backend{
			Bind:        defaultBind,
			Workers:     defaultWorkers,
			StepDelayMS: defaultStepDelayMS,
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.URL = envStr("LYRICAL_SERVER_URL", c.Server.URL)
	c.Transcription.Language = envStr("LYRICAL_LANGUAGE", c.Transcription.Language)
	c.Transcription.Model = envStr("LYRICAL_MODEL", c.Transcription.Model)
	c.Transcription.BeamSize = envInt("LYRICAL_BEAM_SIZE", c.Transcription.BeamSize)
	c.Logging.Level = envStr("LYRICAL_LOG_LEVEL", c.Logging.Level)
	c.Identity.Path = envStr("LYRICAL_ID_FILE", c.Identity.Path)
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
