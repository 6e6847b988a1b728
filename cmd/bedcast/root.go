package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bedcast",
		Short:         "Bed occupancy and cleaning-duration prediction service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	cmd.AddCommand(serveCmd(), trainCmd())
	return cmd
}
