package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/arbor/internal/paths"
)

// configHeader introduces the generated config.yaml.
const configHeader = `# arbor configuration
# data_dir: where the commit history database lives.
# Leave empty to use the default resolution order
# (--data-dir flag > this file > ARBOR_DATA_DIR > $CWD/.arbor-db).
`

// config holds the values read from config.yaml.
type config struct {
	DataDir string `yaml:"data_dir"`
}

// resolveConfig loads config.yaml (if present) from the resolved
// configuration directory and returns the effective config along with the
// directory it was read from. A missing config file is not an error.
func resolveConfig() (config, string, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return config{}, "", fmt.Errorf("resolving config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.SetDefault("data_dir", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	return config{DataDir: v.GetString("data_dir")}, configDir, nil
}

// resolveDataDir returns the effective data directory for the current
// invocation, honoring the flag, config.yaml, and environment precedence.
func resolveDataDir() (string, error) {
	cfg, _, err := resolveConfig()
	if err != nil {
		return "", err
	}
	return paths.ResolveDataDir(flags.dataDir, cfg.DataDir)
}

// ensureDefaultConfigFile creates the config directory and writes a default
// config.yaml if one does not already exist. Returns the config file path.
func ensureDefaultConfigFile(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking config file: %w", err)
	}
	body, err := yaml.Marshal(config{})
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), body...), 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}
