package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".githound"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for githound settings.
const envPrefix = "GITHOUND"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("analysis.history_limit", DefaultHistoryLimit)

	viperCfg.SetDefault("search.default_timeout", DefaultSearchTimeout)
	viperCfg.SetDefault("search.max_results", DefaultSearchMaxResults)
	viperCfg.SetDefault("search.max_commits", DefaultSearchMaxCommits)
	viperCfg.SetDefault("search.context_lines", DefaultSearchContextLines)

	viperCfg.SetDefault("operations.retention", DefaultOperationRetention)
	viperCfg.SetDefault("operations.janitor_interval", DefaultJanitorInterval)

	viperCfg.SetDefault("observability.service_name", DefaultServiceName)
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.metrics_enabled", DefaultMetricsEnabled)
	viperCfg.SetDefault("observability.metrics_addr", DefaultMetricsAddr)
}
