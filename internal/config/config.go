// Package config resolves process configuration once at startup, the way
// BeadsLog/internal/config/config.go's Initialize does: a viper instance
// walking up from cwd for a project-local config file, then XDG, then
// home, then built-in defaults, with KB_-prefixed environment variables
// taking precedence over all of it.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved, typed configuration every entrypoint loads
// once and passes down. Nothing under internal/ other than this package
// touches viper or the environment directly.
type Config struct {
	DataDir      string
	DatabasePath string
	LogLevel     string
	LogFile      string
	Actor        string
}

// Load resolves configuration using the precedence documented in
// SPEC_FULL.md §2.1: KB_ environment variables, then a project-local
// .kb/config.yaml found by walking up from cwd, then
// $XDG_CONFIG_HOME/kb/config.yaml, then ~/.kb/config.yaml, then defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			path := filepath.Join(dir, ".kb", "config.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(configDir, "kb", "config.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if home, err := os.UserHomeDir(); err == nil {
			path := filepath.Join(home, ".kb", "config.yaml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("KB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".kb", "data")
	v.SetDefault("data_dir", defaultDataDir)
	// database_path has no default: an empty value tells engine.Open to
	// derive it from the (possibly --data-dir-overridden) data root
	// instead of baking in a path resolved before that override applied.
	v.SetDefault("database_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", filepath.Join(home, ".kb", "log", "kb.log"))
	v.SetDefault("actor", os.Getenv("USER"))

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &Config{
		DataDir:      v.GetString("data_dir"),
		DatabasePath: v.GetString("database_path"),
		LogLevel:     v.GetString("log_level"),
		LogFile:      v.GetString("log_file"),
		Actor:        v.GetString("actor"),
	}, nil
}
