// Package cmd is the command line entry point.
package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/MazarSayed/stock-platform/pkg/config"
	logx "github.com/MazarSayed/stock-platform/pkg/logger"
)

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "stock-platform",
		Short:         "Stock trading platform assistant",
		Long:          "Multi-agent assistant for a stock trading platform: FAQ answers, order placement and market insights behind input, output and tool guardrails.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				configx.SetEnvFile(envFile)
			}
			// The env file may carry LOG_* values the autoload init never saw.
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			log.Debug().Str("command", cmd.Name()).Msg("starting")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to an env file (defaults to ./.env)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newIngestCmd())

	return rootCmd
}
