package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points config discovery at empty temp directories and clears the
// bound environment variables.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Chdir(dir)
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("expected default model, got %q", cfg.Anthropic.Model)
	}

	if cfg.Crew.DefaultProcess != "sequential" {
		t.Errorf("expected default process 'sequential', got %q", cfg.Crew.DefaultProcess)
	}

	if cfg.Timeouts.Request != 2*time.Minute {
		t.Errorf("expected request timeout 2m, got %v", cfg.Timeouts.Request)
	}

	if cfg.Exa.NumResults != 5 {
		t.Errorf("expected 5 search results, got %d", cfg.Exa.NumResults)
	}

	if cfg.History.Enabled {
		t.Error("expected history to be disabled by default")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := isolate(t)
	configPath := filepath.Join(tmpDir, "custom.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-opus-4-1-20250805
exa:
  api_key: exa-key
  num_results: 3
timeouts:
  request: 30s
  run: 10m
crew:
  default_process: hierarchical
  max_iterations: 10
history:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// A project file is ignored when a config file is given.
	if err := os.WriteFile(filepath.Join(tmpDir, ".dyncrew.yaml"), []byte("exa:\n  num_results: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{ConfigFile: configPath})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-opus-4-1-20250805" {
		t.Errorf("expected model override, got %q", cfg.Anthropic.Model)
	}
	if cfg.Exa.NumResults != 3 {
		t.Errorf("expected num_results 3, got %d", cfg.Exa.NumResults)
	}
	if cfg.Timeouts.Request != 30*time.Second {
		t.Errorf("expected request timeout 30s, got %v", cfg.Timeouts.Request)
	}
	if cfg.Crew.DefaultProcess != "hierarchical" {
		t.Errorf("expected hierarchical, got %q", cfg.Crew.DefaultProcess)
	}
	if !cfg.History.Enabled {
		t.Error("expected history.enabled to be true")
	}
	// Untouched keys keep their defaults.
	if cfg.Anthropic.MaxTokens != 8192 {
		t.Errorf("expected default max_tokens 8192, got %d", cfg.Anthropic.MaxTokens)
	}

	// The environment still wins over the file.
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	cfg, err = Load(LoadOptions{ConfigFile: configPath})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "env-key" {
		t.Errorf("expected env api_key, got %q", cfg.Anthropic.APIKey)
	}
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	dir := isolate(t)

	if _, err := Load(LoadOptions{ConfigFile: filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("crew:\n  default_process: parallel\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(LoadOptions{ConfigFile: configPath}); err == nil {
		t.Fatal("expected error for unknown default_process")
	}
}

func TestLoad_EnvFileFillsMissingKeys(t *testing.T) {
	dir := isolate(t)

	envPath := filepath.Join(dir, ".env")
	content := "ANTHROPIC_API_KEY=sk-ant-from-file\nEXA_API_KEY=exa-from-file\n"
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-from-file" {
		t.Errorf("expected key from .env, got %q", cfg.Anthropic.APIKey)
	}
	if cfg.Exa.APIKey != "exa-from-file" {
		t.Errorf("expected exa key from .env, got %q", cfg.Exa.APIKey)
	}
}

func TestLoad_EnvironmentBeatsEnvFile(t *testing.T) {
	dir := isolate(t)

	envPath := filepath.Join(dir, "custom.env")
	if err := os.WriteFile(envPath, []byte("EXA_API_KEY=exa-from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EXA_API_KEY", "exa-from-env")

	cfg, err := Load(LoadOptions{EnvFile: envPath})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Exa.APIKey != "exa-from-env" {
		t.Errorf("expected environment to win, got %q", cfg.Exa.APIKey)
	}
}

func TestLoad_ProjectConfig(t *testing.T) {
	dir := isolate(t)

	project := "crew:\n  max_iterations: 7\nlog:\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, ".dyncrew.yaml"), []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Crew.MaxIterations != 7 {
		t.Errorf("expected max_iterations 7, got %d", cfg.Crew.MaxIterations)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "nope.env")})
	if err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)

	t.Run("both keys present", func(t *testing.T) {
		cfg := Default()
		cfg.Anthropic.APIKey = "sk-ant-test"
		cfg.Exa.APIKey = "exa"
		if err := Validate(cfg); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing anthropic key", func(t *testing.T) {
		cfg := Default()
		cfg.Exa.APIKey = "exa"
		if err := Validate(cfg); !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("bedrock needs no anthropic key", func(t *testing.T) {
		cfg := Default()
		cfg.Bedrock.Enabled = true
		cfg.Exa.APIKey = "exa"
		if err := Validate(cfg); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing search key", func(t *testing.T) {
		cfg := Default()
		cfg.Anthropic.APIKey = "sk-ant-test"
		if err := Validate(cfg); !errors.Is(err, ErrNoSearchKey) {
			t.Errorf("expected ErrNoSearchKey, got %v", err)
		}
	})
}

func TestReadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("foo_bar=baz\nEXA_API_KEY=k\n"), 0600); err != nil {
		t.Fatal(err)
	}

	values, err := ReadEnvFile(path)
	if err != nil {
		t.Fatalf("ReadEnvFile failed: %v", err)
	}
	if values["FOO_BAR"] != "baz" {
		t.Errorf("FOO_BAR = %q, want baz", values["FOO_BAR"])
	}
	if values["EXA_API_KEY"] != "k" {
		t.Errorf("EXA_API_KEY = %q, want k", values["EXA_API_KEY"])
	}
}

func TestDefaultHistoryPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	want := filepath.Join("/tmp/xdg-data", "dyncrew", "history.db")
	if got := DefaultHistoryPath(); got != want {
		t.Errorf("DefaultHistoryPath() = %q, want %q", got, want)
	}
}
