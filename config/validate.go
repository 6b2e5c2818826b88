package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bosley/lyrical/segments"
	"github.com/bosley/lyrical/upload"
)

func (c *Config) normalize() error {
	c.Server.URL = strings.TrimRight(strings.TrimSpace(c.Server.URL), "/")
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if lang, err := upload.NormalizeLanguage(c.Transcription.Language); err == nil {
		c.Transcription.Language = lang
	}
	c.Transcription.Model = strings.ToLower(strings.TrimSpace(c.Transcription.Model))

	for _, p := range []*string{&c.Identity.Path, &c.Watch.Dir, &c.Backend.FixturesDir, &c.Backend.CertFile, &c.Backend.KeyFile} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url: must be an http or https URL, got %q", c.Server.URL)
	}
	if c.Server.TimeoutSeconds <= 0 {
		return errors.New("server.timeout_seconds: must be positive")
	}
	if c.Channel.HeartbeatSeconds <= 0 {
		return errors.New("channel.heartbeat_seconds: must be positive")
	}
	if c.Channel.ReconnectSeconds <= 0 {
		return errors.New("channel.reconnect_seconds: must be positive")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if _, err := segments.ParseField(c.Watch.Field); err != nil {
		return fmt.Errorf("watch.field: %w", err)
	}
	if (c.Backend.CertFile == "") != (c.Backend.KeyFile == "") {
		return errors.New("backend: cert_file and key_file must be set together")
	}
	if c.Backend.Workers <= 0 {
		return errors.New("backend.workers: must be positive")
	}
	return nil
}
