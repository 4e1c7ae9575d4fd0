package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"topicmon/internal/config"
	"topicmon/internal/constants"
	"topicmon/internal/logger"
	"topicmon/internal/schema"
	"topicmon/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Passive topic monitor for pub/sub brokers",
		Long:  "Topic monitor subscribes to topic patterns, classifies every message and exposes counters for Prometheus",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigFile(earlyLog *logging.EarlyLog) (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	if env := os.Getenv("CONFIG_FILE"); env != "" {
		return env, nil
	}
	earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
	return "", fmt.Errorf("config file is required")
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the topic monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			file, err := resolveConfigFile(earlyLog)
			if err != nil {
				return err
			}

			cfg, err := config.Load(file)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting topic monitor",
				"broker", cfg.Broker.Type,
				"patterns", cfg.Monitor.TopicsPatterns,
			)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				_ = app.Shutdown(context.Background())
				return err
			}

			runErr := app.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.ErrorwCtx(ctx, "Shutdown finished with errors", "error", err)
			}

			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", runErr)
				return runErr
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and schema directory, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			file, err := resolveConfigFile(earlyLog)
			if err != nil {
				return err
			}

			cfg, err := config.Load(file)
			if err != nil {
				earlyLog.Error("Invalid config: %v", err)
				return err
			}

			registry, err := schema.Load(cfg.Monitor.JSONSchemaDir, logger.NopLogger())
			if err != nil {
				earlyLog.Error("Invalid schema directory: %v", err)
				return err
			}
			earlyLog.Info("Config %s is valid, %d schemas loaded", file, registry.Len())
			return nil
		},
	}
}
