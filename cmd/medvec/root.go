package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/gops/agent"
	"github.com/spf13/cobra"
	"github.com/viant/medvec/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultConfigPath = ".medvec/config.yaml"

type app struct {
	configURL string
	envFile   string
	logLevel  string

	cfg    *service.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "medvec",
		Short: "Patient description vector index sync and similarity search",
		Long: `medvec keeps a vector index of patient descriptions consistent with the
patient source of record and answers similarity queries against it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configURL, "config", "", "config YAML path or URL (default ~/"+defaultConfigPath+" when present)")
	flags.StringVar(&a.envFile, "env-file", "", "env file to load (default ./.env when present)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug|info|warn|error")
	root.AddCommand(a.syncCmd(), a.searchCmd(), a.healthCmd(), a.auditCmd(), a.summaryCmd(), a.serveCmd())
	return root
}

func (a *app) init(ctx context.Context) error {
	if err := service.LoadEnv(a.envFile); err != nil {
		return err
	}
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	if cfg.Diagnostics.Gops {
		startGops(logger)
	}
	return nil
}

func (a *app) loadConfig(ctx context.Context) (*service.Config, error) {
	URL := a.configURL
	if URL == "" {
		URL = defaultConfigFile()
	}
	if URL != "" {
		return service.LoadConfig(ctx, URL)
	}
	cfg := service.DefaultConfig()
	if err := cfg.Resolve(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, defaultConfigPath)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func newLogger(cfg service.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	config := zap.NewProductionConfig()
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return logger, nil
}

func startGops(logger *zap.Logger) {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		logger.Warn("gops agent", zap.Error(err))
	}
}
