// cmd/daqd/run.go
package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tamzrod/daq-orchestrator/internal/app"
)

func runCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire from every configured board until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			logger, closeLog, err := setupLogging(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			logger.Info("daqd starting", "version", version, "config", v.GetString("config"), "driver", cfg.Driver.Kind)

			a, err := app.New(cfg, app.Options{}, logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().String("metrics-listen", "", "Metrics listen address override (enables metrics)")
	cmd.Flags().String("mqtt-broker", "", "MQTT broker URL override (enables publishing)")
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}
	return cmd
}
