package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath    = "IRCCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName       = "config.yaml"
	defaultClientConfigName = "client.yaml"
)

// Load builds server configuration from defaults, optional config file, env
// vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()
	path, err := load(logger, explicitPath, defaultConfigName, "IRCCHAT", &cfg)
	return cfg, path, err
}

// LoadClient is Load for the chat client. Env vars use the IRCCHAT_CLIENT
// prefix.
func LoadClient(logger *zerolog.Logger, explicitPath string) (ClientConfig, string, error) {
	cfg := DefaultClient()
	path, err := load(logger, explicitPath, defaultClientConfigName, "IRCCHAT_CLIENT", &cfg)
	return cfg, path, err
}

// load fills out, which must already hold the defaults.
func load(logger *zerolog.Logger, explicitPath, fileName, envPrefix string, out any) (string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := setDefaults(v, out); err != nil {
		return "", fmt.Errorf("set defaults: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath, fileName)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, out); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return configPath, nil
}

// setDefaults registers every top-level key of the defaults struct so that
// AutomaticEnv can see it. The yaml round trip keeps keys in sync with tags.
func setDefaults(v *viper.Viper, defaults any) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return err
	}
	for k, val := range m {
		v.SetDefault(k, val)
	}
	return nil
}

func resolveConfigPath(explicitPath, fileName string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, fileName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fileName
	}
	return filepath.Join(cwd, fileName)
}

func writeDefaultConfig(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
