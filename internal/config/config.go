// Package config handles configuration loading for dyncrew.
// It supports XDG config paths, project-level overrides, an environment file,
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// Config holds all configuration for dyncrew.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Exa       ExaConfig       `mapstructure:"exa"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Crew      CrewConfig      `mapstructure:"crew"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	History   HistoryConfig   `mapstructure:"history"`
	Log       LogConfig       `mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
}

// BedrockConfig routes model calls through AWS Bedrock instead of the direct API.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// ExaConfig holds search provider settings.
type ExaConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	NumResults int    `mapstructure:"num_results"`
}

// TimeoutsConfig holds network and run timeouts.
type TimeoutsConfig struct {
	// Request bounds a single outbound HTTP call.
	Request time.Duration `mapstructure:"request"`
	// Run bounds a whole execute call, analysis included.
	Run time.Duration `mapstructure:"run"`
}

// CrewConfig holds execution runtime settings.
type CrewConfig struct {
	DefaultProcess string `mapstructure:"default_process"`
	MaxIterations  int    `mapstructure:"max_iterations"`
}

// ToolsConfig holds settings for the built-in tools.
type ToolsConfig struct {
	FileRoot      string `mapstructure:"file_root"`
	MaxFetchBytes int64  `mapstructure:"max_fetch_bytes"`
}

// HistoryConfig controls the optional run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"anthropic.api_key": "ANTHROPIC_API_KEY",
	"anthropic.model":   "DYNCREW_MODEL",
	"bedrock.enabled":   "DYNCREW_USE_BEDROCK",
	"bedrock.region":    "AWS_REGION",
	"bedrock.profile":   "AWS_PROFILE",
	"exa.api_key":       "EXA_API_KEY",
	"history.enabled":   "DYNCREW_HISTORY",
	"log.level":         "DYNCREW_LOG_LEVEL",
}

// LoadOptions customizes Load.
type LoadOptions struct {
	// EnvFile is an explicit environment file. When empty, .env in the
	// current directory is used if present.
	EnvFile string
	// ConfigFile replaces the user and project config files when set.
	ConfigFile string
}

// Load loads configuration from XDG paths, project overrides, an environment
// file, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, EXA_API_KEY, ...)
// 2. Environment file (.env or LoadOptions.EnvFile)
// 3. Project config (.dyncrew.yaml in current directory or parent)
// 4. User config (~/.config/dyncrew/config.yaml)
// 5. Built-in defaults
//
// LoadOptions.ConfigFile takes the place of 3 and 4.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", opts.ConfigFile, err)
		}
	} else if err := readUserAndProject(v); err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		values, err := ReadEnvFile(envFile)
		if err != nil {
			return nil, err
		}
		applyEnvFile(v, values)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	return unmarshal(v)
}

// readUserAndProject reads the user config, then merges the nearest
// project config over it. A missing user config is not an error.
func readUserAndProject(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return fmt.Errorf("merging project config: %w", err)
		}
	}
	return nil
}

// ReadEnvFile parses a KEY=VALUE environment file. Keys are returned in
// upper case.
func ReadEnvFile(path string) (map[string]string, error) {
	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, key := range ev.AllKeys() {
		values[strings.ToUpper(key)] = ev.GetString(key)
	}
	return values, nil
}

// applyEnvFile copies env file values into v for every bound variable that
// is not already set in the process environment.
func applyEnvFile(v *viper.Viper, values map[string]string) {
	for key, env := range envBindings {
		if _, set := os.LookupEnv(env); set {
			continue
		}
		if val, ok := values[env]; ok && val != "" {
			v.Set(key, val)
		}
	}
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Exa.APIKey = expandEnv(cfg.Exa.APIKey)
	cfg.History.Path = expandEnv(cfg.History.Path)

	if _, err := models.ParseProcessMode(cfg.Crew.DefaultProcess); err != nil {
		return nil, fmt.Errorf("crew.default_process: %w", err)
	}

	return cfg, nil
}

// Validate fails fast when a credential required at start-up is missing.
// The Anthropic key is not required when Bedrock is enabled.
func Validate(cfg *Config) error {
	if !cfg.Bedrock.Enabled {
		if _, err := GetAPIKey(cfg); err != nil {
			return err
		}
	}
	if _, err := GetSearchKey(cfg); err != nil {
		return err
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// DefaultHistoryPath returns the XDG data path of the run history database.
func DefaultHistoryPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", ".dyncrew", "history.db")
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "dyncrew", "history.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.base_url", "")

	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("bedrock.region", "")
	v.SetDefault("bedrock.profile", "")

	v.SetDefault("exa.api_key", "")
	v.SetDefault("exa.base_url", "https://api.exa.ai")
	v.SetDefault("exa.num_results", 5)

	v.SetDefault("timeouts.request", "2m")
	v.SetDefault("timeouts.run", "30m")

	v.SetDefault("crew.default_process", string(models.DefaultProcessMode))
	v.SetDefault("crew.max_iterations", 25)

	v.SetDefault("tools.file_root", ".")
	v.SetDefault("tools.max_fetch_bytes", 2<<20)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "")

	v.SetDefault("log.level", "info")
}

// getUserConfigDir returns the XDG config directory for dyncrew.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dyncrew")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dyncrew")
	}
	return filepath.Join(home, ".config", "dyncrew")
}

// findProjectConfig searches for .dyncrew.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".dyncrew.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Exa: ExaConfig{
			BaseURL:    "https://api.exa.ai",
			NumResults: 5,
		},
		Timeouts: TimeoutsConfig{
			Request: 2 * time.Minute,
			Run:     30 * time.Minute,
		},
		Crew: CrewConfig{
			DefaultProcess: string(models.DefaultProcessMode),
			MaxIterations:  25,
		},
		Tools: ToolsConfig{
			FileRoot:      ".",
			MaxFetchBytes: 2 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
