// Package config provides API key management utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no Anthropic API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured (set ANTHROPIC_API_KEY)")

// ErrNoSearchKey is returned when no Exa API key is configured.
var ErrNoSearchKey = errors.New("no Exa API key configured (set EXA_API_KEY)")

// GetAPIKey returns the Anthropic API key from the configuration.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	var fromConfig string
	if cfg != nil {
		fromConfig = cfg.Anthropic.APIKey
	}
	if key, ok := lookupKey("ANTHROPIC_API_KEY", fromConfig); ok {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// GetSearchKey returns the Exa API key from the configuration.
// It checks in order: environment variable, config file.
func GetSearchKey(cfg *Config) (string, error) {
	var fromConfig string
	if cfg != nil {
		fromConfig = cfg.Exa.APIKey
	}
	if key, ok := lookupKey("EXA_API_KEY", fromConfig); ok {
		return key, nil
	}
	return "", ErrNoSearchKey
}

func lookupKey(env, fromConfig string) (string, bool) {
	if key := os.Getenv(env); key != "" {
		return key, true
	}
	if fromConfig != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(fromConfig)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, true
		}
	}
	return "", false
}

// ValidateAPIKey performs basic validation on an Anthropic API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of an API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the Anthropic API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	var fromConfig string
	if cfg != nil {
		fromConfig = cfg.Anthropic.APIKey
	}
	return keySource("ANTHROPIC_API_KEY", fromConfig)
}

// GetSearchKeySource returns where the Exa API key was sourced from.
func GetSearchKeySource(cfg *Config) KeySource {
	var fromConfig string
	if cfg != nil {
		fromConfig = cfg.Exa.APIKey
	}
	return keySource("EXA_API_KEY", fromConfig)
}

func keySource(env, fromConfig string) KeySource {
	if os.Getenv(env) != "" {
		return KeySourceEnv
	}
	if _, ok := lookupKey("", fromConfig); ok {
		return KeySourceConfig
	}
	return KeySourceNone
}
