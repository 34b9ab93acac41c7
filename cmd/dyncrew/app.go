package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/dyncrew/internal/analyze"
	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/internal/config"
	"github.com/ShayCichocki/dyncrew/internal/crew"
	"github.com/ShayCichocki/dyncrew/internal/factory"
	"github.com/ShayCichocki/dyncrew/internal/logging"
	"github.com/ShayCichocki/dyncrew/internal/state"
	"github.com/ShayCichocki/dyncrew/internal/system"
	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// appOptions tunes how the command wires the system.
type appOptions struct {
	// LogWriter replaces stderr as the log destination. The TUI passes
	// io.Discard so log lines don't tear the display.
	LogWriter io.Writer
	// OnDesign is forwarded to system.Config.
	OnDesign func(runID string, spec *models.TeamSpecification)
}

// application is the fully wired dependency graph for one command.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	registry *tools.Registry
	history  *state.DB
	sys      *system.System
}

// loadConfig loads configuration and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFile: envFile, ConfigFile: configFile})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return logging.NewWithWriter(w, level), nil
}

// newAPIClient creates the model client from configuration, routing through
// Bedrock when enabled.
func newAPIClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:          anthropic.Model(cfg.Anthropic.Model),
		BaseURL:        cfg.Anthropic.BaseURL,
		MaxTokens:      cfg.Anthropic.MaxTokens,
		RequestTimeout: cfg.Timeouts.Request,
		UseAWSBedrock:  cfg.Bedrock.Enabled,
		AWSRegion:      cfg.Bedrock.Region,
		AWSProfile:     cfg.Bedrock.Profile,
	}
	if !cfg.Bedrock.Enabled {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// newApplication wires config, logging, the model client, the tool
// registry, the analyzer, the factory, the runtime and, when enabled, the
// run history.
func newApplication(opts appOptions) (*application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, opts.LogWriter)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	defaultProcess, err := models.ParseProcessMode(cfg.Crew.DefaultProcess)
	if err != nil {
		return nil, fmt.Errorf("crew.default_process: %w", err)
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := tools.Default(cfg)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	analyzer := analyze.New(api.NewRunner(client), registry, analyze.Options{
		DefaultProcess: defaultProcess,
		Logger:         logger,
	})

	loop := api.NewAgentLoop(api.AgentLoopConfig{
		Client:        client,
		MaxIterations: cfg.Crew.MaxIterations,
	})
	toolLog := logging.Component(logger, "agent")
	loop.SetStreamHandler(func(e api.StreamEvent) {
		switch e.Type {
		case "tool_use":
			toolLog.Debug("tool call", "tool", e.Tool, "input", string(e.Input))
		case "error":
			toolLog.Debug("agent error", "tool", e.Tool, "error", e.Content)
		}
	})

	runtime := crew.NewLoopRuntime(crew.LoopRuntimeConfig{
		Runner: loop,
		Logger: logger,
	})

	app := &application{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		registry: registry,
	}

	sysCfg := system.Config{
		Designer:       analyzer,
		Builder:        factory.New(registry, logger),
		Runtime:        runtime,
		Tools:          registry,
		DefaultProcess: defaultProcess,
		RunTimeout:     cfg.Timeouts.Run,
		OnDesign:       opts.OnDesign,
		Tokens:         client.Tracker(),
		Logger:         logger,
	}

	if cfg.History.Enabled {
		db, err := openHistory(cfg)
		if err != nil {
			// History is best effort.
			logger.Warn("run history disabled", "error", err)
		} else {
			app.history = db
			sysCfg.History = db
		}
	}

	app.sys = system.New(sysCfg)
	return app, nil
}

// Close releases the history database, if open.
func (a *application) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

func historyPath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return config.DefaultHistoryPath()
}

func openHistory(cfg *config.Config) (*state.DB, error) {
	return state.OpenAndMigrate(historyPath(cfg))
}
