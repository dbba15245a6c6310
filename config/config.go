// Package config loads the server configuration from defaults, an optional
// config file and CONCIERGE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `mapstructure:"addr"`
	// Version is the server protocol version echoed in HELLO payloads.
	Version string `mapstructure:"version"`
	// MinVersion is the semver range accepted client versions must satisfy.
	MinVersion string `mapstructure:"min_version"`
	// Secret is the shared identification secret; empty disables the check.
	Secret string `mapstructure:"secret"`
	// FSRoot is the directory holding per-user file trees.
	FSRoot string `mapstructure:"fs_root"`
}

// Load reads configuration. path may be empty to use defaults and env only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":64209")
	v.SetDefault("version", "0.2.0")
	v.SetDefault("min_version", "^0.2.0")
	v.SetDefault("secret", "")
	v.SetDefault("fs_root", "./fs")

	v.SetEnvPrefix("concierge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
