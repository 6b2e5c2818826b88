package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bosley/lyrical/client"
	"github.com/bosley/lyrical/config"
	"github.com/bosley/lyrical/httpclient"
	"github.com/bosley/lyrical/logging"
)

type globalFlags struct {
	config   string
	server   string
	logLevel string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     *slog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once, applies global flag overrides
// and installs the logger as the slog default.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if s := strings.TrimSpace(c.flags.server); s != "" {
			cfg.Server.URL = strings.TrimRight(s, "/")
		}
		if l := strings.TrimSpace(c.flags.logLevel); l != "" {
			cfg.Logging.Level = strings.ToLower(l)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}

		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cmd.ErrOrStderr(),
		})
		if err != nil {
			c.configErr = err
			return
		}
		slog.SetDefault(logger)

		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// newClient builds and starts a client from the loaded configuration.
func (c *commandContext) newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	cl, err := client.New(client.Options{
		ServerURL:         cfg.Server.URL,
		IdentityPath:      cfg.Identity.Path,
		HTTPClient:        httpclient.NewPooled(cfg.Server.PoolSize, cfg.RequestTimeout()),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		ReconnectDelay:    cfg.ReconnectDelay(),
		Logger:            c.loggerValue(),
	})
	if err != nil {
		return nil, err
	}
	if err := cl.Start(cmd.Context()); err != nil {
		cl.Close()
		return nil, fmt.Errorf("start client: %w", err)
	}
	return cl, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
