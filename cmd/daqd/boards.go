// cmd/daqd/boards.go
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tamzrod/daq-orchestrator/internal/driver"
	"github.com/tamzrod/daq-orchestrator/internal/orchestrator"
)

func boardsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "Open the driver and list the boards it reports",
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

			drv, err := orchestrator.NewDriver(cfg.Driver)
			if err != nil {
				return err
			}
			o := orchestrator.New(drv, nil, orchestrator.Config{Logger: logger})
			defer o.Close(0)

			boards, err := o.Open()
			if err != nil {
				return err
			}
			return printBoards(cmd.OutOrStdout(), boards)
		},
	}
}

func printBoards(w io.Writer, boards []driver.BoardInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BOARD\tMODEL\tAI\tAO\tDI\tDO\tDIO")
	for _, b := range boards {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
			b.Index, b.Model, b.AIChannels, b.AOChannels, b.DIPorts, b.DOPorts, b.DIOPorts)
	}
	return tw.Flush()
}
