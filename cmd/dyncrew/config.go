package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dyncrew/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show the effective configuration",
	Long: `Show the configuration dyncrew will use after merging defaults, the
user config (~/.config/dyncrew/config.yaml), project overrides
(.dyncrew.yaml), the environment file and environment variables.

With a key, prints only that value. API keys are always masked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		}
		displayAllConfig(os.Stdout, cfg)
		return nil
	},
}

// configKeys lists the keys shown by `dyncrew config`, in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.max_tokens",
	"anthropic.base_url",
	"bedrock.enabled",
	"bedrock.region",
	"bedrock.profile",
	"exa.api_key",
	"exa.base_url",
	"exa.num_results",
	"timeouts.request",
	"timeouts.run",
	"crew.default_process",
	"crew.max_iterations",
	"tools.file_root",
	"tools.max_fetch_bytes",
	"history.enabled",
	"history.path",
	"log.level",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	if configFile != "" {
		fmt.Fprintf(w, "\n# config file: %s\n", configFile)
		return
	}
	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Fprintf(w, "\n# project overrides: %s\n", path)
	}
	fmt.Fprintf(w, "# user config: %s\n", config.GetUserConfigPath())
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		key, _ := config.GetAPIKey(cfg)
		return fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), config.GetAPIKeySource(cfg)), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.base_url":
		return orDefault(cfg.Anthropic.BaseURL), nil
	case "bedrock.enabled":
		return strconv.FormatBool(cfg.Bedrock.Enabled), nil
	case "bedrock.region":
		return orDefault(cfg.Bedrock.Region), nil
	case "bedrock.profile":
		return orDefault(cfg.Bedrock.Profile), nil
	case "exa.api_key":
		key, _ := config.GetSearchKey(cfg)
		return fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), config.GetSearchKeySource(cfg)), nil
	case "exa.base_url":
		return cfg.Exa.BaseURL, nil
	case "exa.num_results":
		return strconv.Itoa(cfg.Exa.NumResults), nil
	case "timeouts.request":
		return cfg.Timeouts.Request.String(), nil
	case "timeouts.run":
		return cfg.Timeouts.Run.String(), nil
	case "crew.default_process":
		return cfg.Crew.DefaultProcess, nil
	case "crew.max_iterations":
		return strconv.Itoa(cfg.Crew.MaxIterations), nil
	case "tools.file_root":
		return cfg.Tools.FileRoot, nil
	case "tools.max_fetch_bytes":
		return strconv.FormatInt(cfg.Tools.MaxFetchBytes, 10), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return historyPath(cfg), nil
	case "log.level":
		return cfg.Log.Level, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
