// Package config loads lyrical settings from TOML and the environment.
//
// Resolution order: the explicit --config path, ~/.config/lyrical/config.toml,
// ./lyrical.toml, then built-in defaults. LYRICAL_* environment variables
// override file values; command-line flags override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bosley/lyrical/upload"
)

// Server describes the transcription backend the client talks to.
type Server struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PoolSize       int    `toml:"pool_size"`
}

// Channel tunes the push channel.
type Channel struct {
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
	ReconnectSeconds int `toml:"reconnect_seconds"`
}

// Transcription holds the default job parameters.
type Transcription struct {
	Language string `toml:"language"`
	Model    string `toml:"model"`
	BeamSize int    `toml:"beam_size"`
}

type Identity struct {
	Path string `toml:"path"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Watch configures the directory watch mode.
type Watch struct {
	Dir       string `toml:"dir"`
	QueueSize int    `toml:"queue_size"`
	Field     string `toml:"field"`
}

// Backend configures the loopback development backend.
type Backend struct {
	Bind        string `toml:"bind"`
	FixturesDir string `toml:"fixtures_dir"`
	Workers     int    `toml:"workers"`
	StepDelayMS int    `toml:"step_delay_ms"`
	CertFile    string `toml:"cert_file"`
	KeyFile     string `toml:"key_file"`
}

type Config struct {
	Server        Server        `toml:"server"`
	Channel       Channel       `toml:"channel"`
	Transcription Transcription `toml:"transcription"`
	Identity      Identity      `toml:"identity"`
	Logging       Logging       `toml:"logging"`
	Watch         Watch         `toml:"watch"`
	Backend       Backend       `toml:"backend"`
}

// Load locates, parses, and validates a configuration file. It returns the
// resolved path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}

// Params returns the default job parameters.
func (c *Config) Params() upload.Params {
	p := upload.DefaultParams()
	p.Language = c.Transcription.Language
	p.Model = c.Transcription.Model
	p.BeamSize = c.Transcription.BeamSize
	return p
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Channel.HeartbeatSeconds) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Channel.ReconnectSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Backend.StepDelayMS) * time.Millisecond
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lyrical/config.toml")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lyrical.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
