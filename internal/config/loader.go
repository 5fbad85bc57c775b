package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/style-hub/style-hub/internal/version"
)

// EnvPrefix prefixes environment overrides, e.g. STYLE_HUB_LISTENPORT.
const EnvPrefix = "STYLE_HUB"

const appDirName = "style-hub"

// Load reads the TOML file at path, applies defaults and environment
// overrides, and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []*string{&cfg.Global.StateDir, &cfg.Global.CacheDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("resolve directory %s: %w", *dir, err)
		}
		*dir = abs
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenHost", "127.0.0.1")
	v.SetDefault("ListenPort", 5310)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StateDir", defaultDir(os.UserConfigDir, "state"))
	v.SetDefault("CacheDir", defaultDir(os.UserCacheDir, "cache"))
	v.SetDefault("RefreshInterval", "1h")
	v.SetDefault("FetchTimeout", "30s")
	v.SetDefault("FetchConcurrency", 4)
	v.SetDefault("UserAgent", "")
	v.SetDefault("NotifyDebounce", "50ms")
	v.SetDefault("LeaseMaxAge", "24h")
}

// defaultDir places app data under the platform's user directory, falling
// back to a relative directory when the platform has none.
func defaultDir(base func() (string, error), fallback string) string {
	dir, err := base()
	if err != nil || dir == "" {
		return filepath.Join(".", appDirName, fallback)
	}
	return filepath.Join(dir, appDirName)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if strings.TrimSpace(g.ListenHost) == "" {
		g.ListenHost = "127.0.0.1"
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5310
	}
	if g.RefreshInterval.DurationValue() == 0 {
		g.RefreshInterval = Duration(time.Hour)
	}
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(30 * time.Second)
	}
	if g.FetchConcurrency == 0 {
		g.FetchConcurrency = 4
	}
	if strings.TrimSpace(g.UserAgent) == "" {
		g.UserAgent = fmt.Sprintf("%s/%s", appDirName, version.Version)
	}
	if g.NotifyDebounce.DurationValue() == 0 {
		g.NotifyDebounce = Duration(50 * time.Millisecond)
	}
	if g.LeaseMaxAge.DurationValue() == 0 {
		g.LeaseMaxAge = Duration(24 * time.Hour)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("cannot parse duration: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
