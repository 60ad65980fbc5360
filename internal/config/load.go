//go:build !js || !wasm

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Load reads lark-kit.yaml from ., ./config or $HOME/.lark-kit (or the
// explicit path when set) and overlays environment variables.
func Load(path string, logger zerolog.Logger) (*Config, error) {
	v := viper.New()

	v.SetDefault("domain", "feishu")
	v.SetDefault("http_address", DefaultHTTPAddress)
	v.SetDefault("echo_replies", false)
	v.SetDefault("timeout", DefaultTimeout)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, envVar := range envKeys {
		if err := v.BindEnv(key, envVar); err != nil {
			logger.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, key)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lark-kit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.lark-kit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		logger.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		logger.Info().Str("path", v.ConfigFileUsed()).Msg("Using config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}
