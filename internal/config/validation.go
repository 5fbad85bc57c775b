package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate checks semantic constraints that decoding cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "must be within 1-65535")
	}
	if strings.TrimSpace(g.LogLevel) != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("LogLevel", "unknown level "+g.LogLevel)
		}
	}
	if g.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "must not be negative")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "must not be negative")
	}
	if strings.TrimSpace(g.StateDir) == "" {
		return newFieldError("StateDir", "must not be empty")
	}
	if strings.TrimSpace(g.CacheDir) == "" {
		return newFieldError("CacheDir", "must not be empty")
	}
	if g.RefreshInterval.DurationValue() <= 0 {
		return newFieldError("RefreshInterval", "must be greater than 0")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("FetchTimeout", "must be greater than 0")
	}
	if g.FetchConcurrency <= 0 {
		return newFieldError("FetchConcurrency", "must be greater than 0")
	}
	if g.NotifyDebounce.DurationValue() <= 0 {
		return newFieldError("NotifyDebounce", "must be greater than 0")
	}
	if g.LeaseMaxAge.DurationValue() <= 0 {
		return newFieldError("LeaseMaxAge", "must be greater than 0")
	}

	for i, seed := range c.Seeds {
		name := strings.TrimSpace(seed.Name)
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if err := seed.Configuration().Validate(); err != nil {
			return newFieldError(seedField(name), err.Error())
		}
	}

	return nil
}
