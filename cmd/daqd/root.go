// cmd/daqd/root.go
package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tamzrod/daq-orchestrator/internal/config"
	"github.com/tamzrod/daq-orchestrator/internal/logging"
)

// envPrefix prefixes environment overrides, e.g. DAQD_LOG_LEVEL.
const envPrefix = "DAQD"

func rootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "daqd",
		Short:         "Multi-board data acquisition daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "daqd.yaml", "Path to the YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
	if err := v.BindPFlags(root.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("daqd: binding flags: %v", err))
	}

	root.AddCommand(
		runCommand(v),
		boardsCommand(v),
		versionCommand(),
	)
	return root
}

// loadConfig reads the config named by viper and applies flag and
// environment overrides, then re-validates.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if lvl := v.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if addr := v.GetString("metrics-listen"); addr != "" {
		cfg.Metrics.Listen = addr
		cfg.Metrics.Disabled = false
	}
	if broker := v.GetString("mqtt-broker"); broker != "" {
		cfg.MQTT.Broker = broker
		cfg.MQTT.Enabled = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: overrides: %w", err)
	}
	return cfg, nil
}

// setupLogging initializes the process loggers from cfg. The returned closer
// flushes the log file, if any.
func setupLogging(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	lvl, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	logging.Init(lvl)

	logger := logging.ForService("daqd")
	if cfg.File == "" {
		return logger, func() error { return nil }, nil
	}

	fileLogger, closer, err := logging.NewFileLogger(cfg.File, "daqd", nil, logging.FileRotation{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, nil, err
	}
	return logging.Tee(logger, fileLogger), closer, nil
}
