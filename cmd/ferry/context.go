package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/ftpsession"
	"ferry/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	dialer       ftpsession.Dialer

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, dialer ftpsession.Dialer) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		dialer:       dialer,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = level
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// newLogger builds the run logger and reports configuration warnings
// collected while loading.
func (c *commandContext) newLogger(runID string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, runID)
	if err != nil {
		return nil, err
	}
	for _, warning := range cfg.Warnings {
		logging.WarnWithContext(logger, "configuration warning", "config_warning",
			logging.String("warning", warning),
			logging.String(logging.FieldErrorHint, "fix the environment variable or remove it"),
			logging.String(logging.FieldImpact, "the default or file value is used instead"),
		)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
