package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gridwatch/gridwatch/errors"
)

var globalConfig *Config
var viperInstance *viper.Viper

// configFileName is the project/user/system config file name, mirroring
// the teacher's am.toml convention.
const configFileName = "gridwatch.toml"

// Load reads the gridwatch configuration using the layered Viper search
// path and caches the result for subsequent calls.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// GetViper returns the shared Viper instance for advanced configuration
// access (e.g. binding a --config flag before Load is first called).
func GetViper() *viper.Viper {
	return initViper()
}

// LoadFromFile loads configuration from a single explicit file path,
// bypassing the layered search path. Used for an explicit --config flag.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// Reset clears the cached configuration and Viper instance. Used by tests.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper builds the shared Viper instance: defaults, then layered
// config files (system -> user -> project), then environment variables,
// the last of which take precedence via AutomaticEnv.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("GRIDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig walks up from the working directory looking for a
// gridwatch.toml, the way the teacher locates am.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles layers config files onto v in precedence order, lowest
// first: system, then user, then project. Each file's keys overwrite
// anything set by a lower-precedence file; AutomaticEnv then takes
// precedence over all of them at read time.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()

	userDir := filepath.Join(homeDir, ".gridwatch")
	os.MkdirAll(userDir, 0o755)

	configPaths := []string{
		filepath.Join("/etc/gridwatch", configFileName), // system (lowest precedence)
		filepath.Join(userDir, configFileName),          // user
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		configPaths = append(configPaths, projectConfig) // project (highest file precedence)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		layer := viper.New()
		layer.SetConfigFile(configPath)
		layer.SetConfigType("toml")
		if err := layer.ReadInConfig(); err != nil {
			continue
		}

		if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
			continue
		}
	}
}
