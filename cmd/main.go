package main

import (
	"context"
	"os"

	"github.com/desertthunder/nutrivision/internal/session"
	"github.com/desertthunder/nutrivision/internal/shared"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("NUTRIVISION_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := config.ApplyEnv(os.Getenv); err != nil {
		logger.Warn("ignoring invalid environment override", "error", err)
	}

	store := session.NewStore(session.StoreOpts{
		Persister: session.NewFilePersister(config.Client.ResolvedSessionPath()),
		Logger:    shared.WithLogger(logger, "component", "session"),
	})

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Session:    store,
		Logger:     logger,
	})

	if err := runner.app().Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
