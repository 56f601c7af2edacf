package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/arloliu/go-overseer/chassis"
	"github.com/arloliu/go-overseer/logger"
	"github.com/arloliu/go-overseer/xena"
)

// fileConfig is the optional TOML configuration of the command.
type fileConfig struct {
	Addresses      []string `toml:"addresses"`
	LogLevel       string   `toml:"log_level"`
	Password       string   `toml:"password"`
	Owner          string   `toml:"owner"`
	DialTimeoutMs  int      `toml:"dial_timeout_ms"`
	ReplyTimeoutMs int      `toml:"reply_timeout_ms"`
	WriteTimeoutMs int      `toml:"write_timeout_ms"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		LogLevel:       "warn",
		Password:       xena.DefaultPassword,
		Owner:          xena.DefaultOwner,
		DialTimeoutMs:  3000,
		ReplyTimeoutMs: 10000,
		WriteTimeoutMs: 5000,
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()

	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c fileConfig) validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	for _, v := range []struct {
		name string
		ms   int
	}{
		{"dial_timeout_ms", c.DialTimeoutMs},
		{"reply_timeout_ms", c.ReplyTimeoutMs},
		{"write_timeout_ms", c.WriteTimeoutMs},
	} {
		if v.ms <= 0 {
			return fmt.Errorf("config: %s must be positive", v.name)
		}
	}

	if !xena.ValidCredential(c.Password) || !xena.ValidCredential(c.Owner) {
		return errors.New("config: password and owner must be non-empty without quotes or line breaks")
	}

	return nil
}

// connOptions converts the configuration into chassis options.
func (c fileConfig) connOptions() []chassis.ConnOption {
	return []chassis.ConnOption{
		chassis.WithDialTimeout(time.Duration(c.DialTimeoutMs) * time.Millisecond),
		chassis.WithReplyTimeout(time.Duration(c.ReplyTimeoutMs) * time.Millisecond),
		chassis.WithWriteTimeout(time.Duration(c.WriteTimeoutMs) * time.Millisecond),
		chassis.WithPassword(c.Password),
		chassis.WithOwner(c.Owner),
	}
}
