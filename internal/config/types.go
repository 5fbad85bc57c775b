package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/style-hub/style-hub/internal/styles"
)

// Duration accepts both Go duration strings and plain seconds.
type Duration time.Duration

// UnmarshalText lets viper read values such as "30s", "5m" or a bare number
// of seconds.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue returns the underlying time.Duration.
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt accepts decimal or 0x-prefixed hexadecimal strings.
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig holds process-wide settings shared by the agent and the CLI.
type GlobalConfig struct {
	ListenHost       string   `mapstructure:"ListenHost"`
	ListenPort       int      `mapstructure:"ListenPort"`
	LogLevel         string   `mapstructure:"LogLevel"`
	LogFilePath      string   `mapstructure:"LogFilePath"`
	LogMaxSize       int      `mapstructure:"LogMaxSize"`
	LogMaxBackups    int      `mapstructure:"LogMaxBackups"`
	LogCompress      bool     `mapstructure:"LogCompress"`
	StateDir         string   `mapstructure:"StateDir"`
	CacheDir         string   `mapstructure:"CacheDir"`
	RefreshInterval  Duration `mapstructure:"RefreshInterval"`
	FetchTimeout     Duration `mapstructure:"FetchTimeout"`
	FetchConcurrency int      `mapstructure:"FetchConcurrency"`
	UserAgent        string   `mapstructure:"UserAgent"`
	NotifyDebounce   Duration `mapstructure:"NotifyDebounce"`
	LeaseMaxAge      Duration `mapstructure:"LeaseMaxAge"`
}

// ListenAddr joins ListenHost and ListenPort.
func (g GlobalConfig) ListenAddr() string {
	return net.JoinHostPort(g.ListenHost, strconv.Itoa(g.ListenPort))
}

// SeedConfig is one configuration written into an empty preference store.
type SeedConfig struct {
	Name        string `mapstructure:"Name"`
	SwiftFormat string `mapstructure:"SwiftFormat"`
	Uncrustify  string `mapstructure:"Uncrustify"`
}

// Configuration converts the seed into a record.
func (s SeedConfig) Configuration() styles.Configuration {
	return styles.Configuration{
		Name:        strings.TrimSpace(s.Name),
		SwiftFormat: strings.TrimSpace(s.SwiftFormat),
		Uncrustify:  strings.TrimSpace(s.Uncrustify),
	}
}

// Config mirrors the TOML file.
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Seeds  []SeedConfig `mapstructure:"Seed"`
}

// SeedConfigurations returns the records used to seed an empty store: the
// [[Seed]] tables when present, the built-in defaults otherwise.
func (c *Config) SeedConfigurations() []styles.Configuration {
	if len(c.Seeds) == 0 {
		return styles.Defaults()
	}
	out := make([]styles.Configuration, len(c.Seeds))
	for i, seed := range c.Seeds {
		out[i] = seed.Configuration()
	}
	return out
}
