package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/overseer"
)

// commandContext carries the persistent flags and the lazily loaded configuration.
type commandContext struct {
	configFlag   string
	logLevelFlag string
	passwordFlag string
	ownerFlag    string

	configOnce sync.Once
	config     fileConfig
	configErr  error
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (fileConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := loadConfig(c.configFlag)
		if err != nil {
			c.configErr = err
			return
		}

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.LogLevel = c.logLevelFlag
		}
		if flags.Changed("password") {
			cfg.Password = c.passwordFlag
		}
		if flags.Changed("owner") {
			cfg.Owner = c.ownerFlag
		}
		if err := cfg.validate(); err != nil {
			c.configErr = err
			return
		}

		c.config = cfg
	})

	return c.config, c.configErr
}

// setupLogger sends log records to w at the configured level.
func setupLogger(w io.Writer, levelName string) error {
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger.SetLogger(logger.NewSlogWriter(w, level, false))

	return nil
}

// withOverseer connects every address and runs fn; connections are closed afterwards.
func (c *commandContext) withOverseer(ctx context.Context, addrs []string, fn func(*overseer.Overseer) error) error {
	o := overseer.New(
		overseer.WithConnOptions(c.config.connOptions()...),
		overseer.WithLogger(logger.GetLogger()),
	)
	defer o.Close()

	for _, addr := range addrs {
		// failures are kept by the overseer and reported by fn
		_ = o.Add(ctx, addr)
	}

	return fn(o)
}
